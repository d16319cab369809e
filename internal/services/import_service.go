package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/images"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/mapping"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/models"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/repository"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/slug"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/spreadsheet"
)

// ErrUnreadableInput means the uploaded file cannot be used at all. It is the
// only error that aborts an import before any row is processed.
var ErrUnreadableInput = errors.New("unreadable import file")

// Import defaults
const (
	DefaultMaxImagesPerProduct = 50
	DefaultPreviewRows         = 5
	DefaultSlugRetries         = 3
	DefaultImageKeyPrefix      = "products"
)

// CatalogStore persists products and answers registry and slug lookups
type CatalogStore interface {
	RegistrySource
	slug.Checker
	CreateProduct(ctx context.Context, tenantID string, product *models.Product) error
}

// ProductEvents is notified after a row is persisted
type ProductEvents interface {
	PublishProductCreated(ctx context.Context, product *models.Product, tenantID, actorID string) error
}

// ImageFetcher downloads the images of a URL cell
type ImageFetcher interface {
	Fetch(ctx context.Context, cell string) images.FetchResult
}

// ImageNormalizer resizes, re-encodes and stores acquired images
type ImageNormalizer interface {
	NormalizeFile(ctx context.Context, path, tenantID, keyPrefix string) (*images.StoredImage, error)
	NormalizeBytes(ctx context.Context, data []byte, tenantID, keyPrefix string) (*images.StoredImage, error)
}

// ImportConfig tunes the import pipeline
type ImportConfig struct {
	MaxImagesPerProduct int
	PreviewRows         int
	SlugRetries         int // inserts attempted when the slug index reports a duplicate
	ImageKeyPrefix      string
}

// PreviewRequest is a dry run over an uploaded file
type PreviewRequest struct {
	TenantID string
	Filename string
	Data     []byte
}

// CommitRequest imports an uploaded file. Mapping entries override the
// auto-detected mapping header by header; a nil Mapping keeps auto-detection.
type CommitRequest struct {
	TenantID string
	ActorID  string
	Filename string
	Data     []byte
	Mapping  mapping.ColumnMapping
}

// ImportService runs import previews and commits
type ImportService struct {
	store      CatalogStore
	slugs      *slug.Allocator
	extractor  *spreadsheet.Extractor
	fetcher    ImageFetcher
	normalizer ImageNormalizer
	events     ProductEvents
	cfg        ImportConfig
	logger     *logrus.Entry
}

// NewImportService creates a new import service. events may be nil.
func NewImportService(
	store CatalogStore,
	slugs *slug.Allocator,
	extractor *spreadsheet.Extractor,
	fetcher ImageFetcher,
	normalizer ImageNormalizer,
	events ProductEvents,
	cfg ImportConfig,
	logger *logrus.Entry,
) *ImportService {
	if cfg.MaxImagesPerProduct <= 0 {
		cfg.MaxImagesPerProduct = DefaultMaxImagesPerProduct
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = DefaultPreviewRows
	}
	if cfg.SlugRetries <= 0 {
		cfg.SlugRetries = DefaultSlugRetries
	}
	if cfg.ImageKeyPrefix == "" {
		cfg.ImageKeyPrefix = DefaultImageKeyPrefix
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ImportService{
		store:      store,
		slugs:      slugs,
		extractor:  extractor,
		fetcher:    fetcher,
		normalizer: normalizer,
		events:     events,
		cfg:        cfg,
		logger:     logger.WithField("component", "import_service"),
	}
}

// load parses the workbook and its embedded images
func (s *ImportService) load(filename string, data []byte) (*spreadsheet.Workbook, spreadsheet.EmbeddedImages, error) {
	format, err := spreadsheet.DetectFormat(filename, data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnreadableInput, err)
	}
	wb, err := spreadsheet.Read(data, format)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnreadableInput, err)
	}

	embedded, err := s.extractor.Extract(data, format, wb.Sheet)
	if err != nil {
		s.logger.WithError(err).WithField("filename", filename).Warn("Embedded image extraction failed, continuing without embedded images")
		embedded = spreadsheet.EmbeddedImages{}
	}
	return wb, embedded, nil
}

// Preview reads the file and suggests a mapping without writing anything or
// fetching remote images
func (s *ImportService) Preview(ctx context.Context, req PreviewRequest) (*models.ImportPreview, error) {
	wb, embedded, err := s.load(req.Filename, req.Data)
	if err != nil {
		return nil, err
	}

	var attributeNames []string
	if defs, err := s.store.ListAttributeDefinitions(ctx, req.TenantID); err != nil {
		s.logger.WithError(err).WithField("tenantID", req.TenantID).Warn("Attribute registry unavailable for preview")
	} else {
		for _, d := range defs {
			attributeNames = append(attributeNames, d.Name)
		}
	}

	columns := make([]int, 0, len(wb.Headers))
	headers := make([]string, 0, len(wb.Headers))
	for i, h := range wb.Headers {
		if h != "" {
			columns = append(columns, i)
			headers = append(headers, h)
		}
	}

	preview := make([][]string, 0, s.cfg.PreviewRows)
	total := 0
	for _, row := range wb.Rows {
		if spreadsheet.IsBlank(row) {
			continue
		}
		total++
		if len(preview) < s.cfg.PreviewRows {
			cells := make([]string, len(columns))
			for j, col := range columns {
				cells[j] = row[col]
			}
			preview = append(preview, cells)
		}
	}

	count := embedded.Count()
	return &models.ImportPreview{
		Headers:             headers,
		Preview:             preview,
		AutoMapping:         mapping.AutoDetect(wb.Headers, attributeNames).Wire(),
		TotalRows:           total,
		HasEmbeddedImages:   count > 0,
		EmbeddedImagesCount: count,
	}, nil
}

// Commit imports every data row independently. Row failures are collected in
// the outcome and never stop the loop. When ctx ends, Commit stops at the next
// row boundary and returns the partial outcome with the context error; rows
// already persisted stay persisted.
func (s *ImportService) Commit(ctx context.Context, req CommitRequest) (*models.ImportOutcome, error) {
	wb, embedded, err := s.load(req.Filename, req.Data)
	if err != nil {
		return nil, err
	}

	registry, err := LoadRegistry(ctx, s.store, req.TenantID)
	if err != nil {
		return nil, err
	}

	run := &importRun{
		svc:      s,
		tenantID: req.TenantID,
		actorID:  req.ActorID,
		wb:       wb,
		embedded: embedded,
		registry: registry,
		mapping:  mapping.AutoDetect(wb.Headers, registry.AttributeNames()).Merge(req.Mapping),
		outcome:  models.NewImportOutcome(),
		logger:   s.logger.WithField("tenantID", req.TenantID),
	}

	run.logger.WithFields(logrus.Fields{
		"filename": req.Filename,
		"rows":     len(wb.Rows),
		"embedded": embedded.Count(),
	}).Info("Import started")

	for idx, row := range wb.Rows {
		if err := ctx.Err(); err != nil {
			run.logger.WithError(err).WithField("row", wb.LineNumber(idx)).Warn("Import interrupted")
			return run.outcome, err
		}
		if spreadsheet.IsBlank(row) {
			continue
		}
		if err := run.processRow(ctx, idx, row); err != nil {
			run.logger.WithError(err).WithField("row", wb.LineNumber(idx)).Warn("Import interrupted")
			return run.outcome, err
		}
	}

	run.logger.WithFields(logrus.Fields{
		"imported": run.outcome.Imported,
		"errors":   run.outcome.Errors,
	}).Info("Import finished")
	return run.outcome, nil
}

// importRun carries the per-request state of one commit
type importRun struct {
	svc      *ImportService
	tenantID string
	actorID  string
	wb       *spreadsheet.Workbook
	embedded spreadsheet.EmbeddedImages
	registry *Registry
	mapping  mapping.ColumnMapping
	outcome  *models.ImportOutcome
	logger   *logrus.Entry
}

// rowDraft is a row after FieldsAssembled
type rowDraft struct {
	product   *models.Product
	rawPrice  string
	category  string
	sub       string
	brand     string
	imageCell string
	warnings  []models.ImageWarning
}

// processRow walks one row through FieldsAssembled, ImagesAttached, Validated
// and Persisted or Rejected. It only returns an error when ctx has ended.
func (r *importRun) processRow(ctx context.Context, idx int, row []string) error {
	line := r.wb.LineNumber(idx)
	log := r.logger.WithField("row", line)

	draft := r.assemble(row)
	log.WithField("stage", "fields_assembled").Debug("Row assembled")

	r.attachImages(ctx, idx, draft)
	log.WithFields(logrus.Fields{
		"stage":    "images_attached",
		"images":   len(draft.product.Images),
		"warnings": len(draft.warnings),
	}).Debug("Row images attached")

	if failure := r.validate(draft, log); failure != nil {
		failure.Row = line
		log.WithFields(logrus.Fields{"stage": "rejected", "code": failure.Code}).Info(failure.Error)
		r.outcome.AddFailure(*failure)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := r.persist(ctx, draft.product); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.WithError(err).WithField("stage", "rejected").Warn("Failed to persist product")
		r.outcome.AddFailure(models.ImportFailure{
			Row:   line,
			Error: fmt.Sprintf("failed to save product: %v", err),
			Code:  models.ImportCodePersistFailed,
		})
		return nil
	}

	p := draft.product
	log.WithFields(logrus.Fields{"stage": "persisted", "productID": p.ID, "slug": p.Slug}).Debug("Row persisted")
	r.outcome.AddSuccess(models.ImportSuccess{
		Row:           line,
		Name:          p.Name,
		ProductID:     p.ID.String(),
		Slug:          p.Slug,
		ImageWarnings: draft.warnings,
	})
	return nil
}

// assemble applies the mapping to a row and coerces typed fields. Values
// that fail optional coercions are dropped here; required fields are checked
// by validate.
func (r *importRun) assemble(row []string) *rowDraft {
	fields := make(map[mapping.Field]string)
	var imageCells []string
	attributes := models.Attributes{}

	for i, header := range r.wb.Headers {
		if header == "" || i >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}

		target := r.mapping.Target(header)
		switch target.Kind {
		case mapping.TargetCanonical:
			if target.Field == mapping.FieldImages {
				imageCells = append(imageCells, value)
				continue
			}
			if _, set := fields[target.Field]; !set {
				fields[target.Field] = value
			}
		case mapping.TargetAttribute:
			name := target.Attribute
			def, known := r.registry.Attribute(name)
			if known {
				name = def.Name
			}
			attributes[name] = coerceAttribute(value, def.Kind, known)
		}
	}

	p := &models.Product{
		ID:               uuid.New(),
		Name:             fields[mapping.FieldName],
		SKU:              optionalString(fields[mapping.FieldSKU]),
		Description:      optionalString(fields[mapping.FieldDescription]),
		ShortDescription: optionalString(fields[mapping.FieldShortDescription]),
		Status:           models.ProductStatusActive,
		Images:           models.ProductImages{},
		Attributes:       attributes,
		CreatedBy:        optionalString(r.actorID),
	}

	if raw := fields[mapping.FieldCompareAtPrice]; raw != "" {
		if d, err := ParsePrice(raw); err == nil && !d.IsNegative() {
			d = d.Round(2)
			p.CompareAtPrice = &d
		}
	}

	stockSet := false
	if raw := fields[mapping.FieldStock]; raw != "" {
		if n, err := ParseInt(raw); err == nil && n >= 0 {
			p.Stock = n
			stockSet = true
		}
	}

	if b, ok := ParseBool(fields[mapping.FieldInStock]); ok {
		p.InStock = b
	} else {
		p.InStock = !stockSet || p.Stock > 0
	}
	p.IsFeatured, _ = ParseBool(fields[mapping.FieldFeatured])
	p.IsBestSeller, _ = ParseBool(fields[mapping.FieldBestSeller])

	return &rowDraft{
		product:   p,
		rawPrice:  fields[mapping.FieldPrice],
		category:  fields[mapping.FieldCategory],
		sub:       fields[mapping.FieldSubCategory],
		brand:     fields[mapping.FieldBrand],
		imageCell: strings.Join(imageCells, ","),
	}
}

// attachImages acquires URL images first, then images embedded at the row,
// up to the per-product cap. The first stored image is primary. Every
// acquisition failure becomes a warning on the row.
func (r *importRun) attachImages(ctx context.Context, idx int, d *rowDraft) {
	limit := r.svc.cfg.MaxImagesPerProduct
	prefix := fmt.Sprintf("%s/%s", r.svc.cfg.ImageKeyPrefix, d.product.ID)
	var acquired models.ProductImages

	if d.imageCell != "" && r.svc.fetcher != nil {
		fetched := r.svc.fetcher.Fetch(ctx, d.imageCell)
		d.warnings = append(d.warnings, fetched.Errors...)
		for i, img := range fetched.Images {
			if len(acquired) >= limit {
				images.FetchResult{Images: fetched.Images[i:]}.Cleanup()
				break
			}
			stored, err := r.svc.normalizer.NormalizeFile(ctx, img.Path, r.tenantID, prefix)
			if err != nil {
				d.warnings = append(d.warnings, models.ImageWarning{
					URL:     img.URL,
					Source:  models.ImageSourceURL,
					Message: err.Error(),
				})
				continue
			}
			acquired = append(acquired, productImage(stored, models.ImageSourceURL))
		}
	}

	for _, emb := range r.embedded.At(r.wb.SheetRow(idx)) {
		if len(acquired) >= limit {
			break
		}
		stored, err := r.svc.normalizer.NormalizeBytes(ctx, emb.Bytes, r.tenantID, prefix)
		if err != nil {
			d.warnings = append(d.warnings, models.ImageWarning{
				Source:  models.ImageSourceEmbedded,
				Message: fmt.Sprintf("%s: %v", emb.SourceName, err),
			})
			continue
		}
		acquired = append(acquired, productImage(stored, models.ImageSourceEmbedded))
	}

	for i := range acquired {
		acquired[i].Position = i
		acquired[i].IsPrimary = i == 0
	}
	if acquired != nil {
		d.product.Images = acquired
	}
}

func productImage(stored *images.StoredImage, source string) models.ProductImage {
	return models.ProductImage{
		URL:    stored.URL,
		Key:    stored.Key,
		Source: source,
		Width:  stored.Width,
		Height: stored.Height,
	}
}

// validate checks the required fields and resolves registry references.
// Unknown brands and sub-categories are dropped, not rejected.
func (r *importRun) validate(d *rowDraft, log *logrus.Entry) *models.ImportFailure {
	p := d.product

	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return &models.ImportFailure{Column: string(mapping.FieldName), Code: models.ImportCodeRequired, Error: "product name is required"}
	}

	if d.rawPrice == "" {
		return &models.ImportFailure{Column: string(mapping.FieldPrice), Code: models.ImportCodeRequired, Error: "price is required"}
	}
	price, err := ParsePrice(d.rawPrice)
	if err != nil {
		return &models.ImportFailure{Column: string(mapping.FieldPrice), Code: models.ImportCodeInvalid, Error: fmt.Sprintf("price %q is not a valid number", d.rawPrice)}
	}
	if price.IsNegative() {
		return &models.ImportFailure{Column: string(mapping.FieldPrice), Code: models.ImportCodeInvalid, Error: fmt.Sprintf("price %q must not be negative", d.rawPrice)}
	}
	p.Price = price.Round(2)

	if d.category == "" {
		return &models.ImportFailure{Column: string(mapping.FieldCategory), Code: models.ImportCodeRequired, Error: "category is required"}
	}
	category, ok := r.registry.Category(d.category)
	if !ok {
		return &models.ImportFailure{Column: string(mapping.FieldCategory), Code: models.ImportCodeNotFound, Error: fmt.Sprintf("category %q does not exist", d.category)}
	}
	p.CategoryID = category.ID.String()

	if d.sub != "" {
		if sub, ok := r.registry.SubCategory(d.sub, category); ok {
			id := sub.ID.String()
			p.SubCategoryID = &id
		} else {
			log.WithField("subCategory", d.sub).Debug("Unknown sub-category ignored")
		}
	}
	if d.brand != "" {
		if brand, ok := r.registry.Brand(d.brand); ok {
			id := brand.ID.String()
			p.BrandID = &id
		} else {
			log.WithField("brand", d.brand).Debug("Unknown brand ignored")
		}
	}

	log.WithField("stage", "validated").Debug("Row validated")
	return nil
}

// persist allocates a slug and creates the product. A duplicate reported by
// the slug index means a concurrent import took the slug between the check
// and the insert, so a fresh slug is allocated and the insert retried.
func (r *importRun) persist(ctx context.Context, p *models.Product) error {
	var err error
	for attempt := 1; attempt <= r.svc.cfg.SlugRetries; attempt++ {
		p.Slug = r.svc.slugs.Allocate(ctx, r.tenantID, p.Name)
		err = r.svc.store.CreateProduct(ctx, r.tenantID, p)
		if !errors.Is(err, repository.ErrDuplicateSlug) {
			break
		}
		r.logger.WithFields(logrus.Fields{"slug": p.Slug, "attempt": attempt}).Warn("Slug taken concurrently, reallocating")
	}
	if err != nil {
		return err
	}

	if r.svc.events != nil {
		if err := r.svc.events.PublishProductCreated(ctx, p, r.tenantID, r.actorID); err != nil {
			r.logger.WithError(err).WithField("productID", p.ID).Warn("Failed to publish product created event")
		}
	}
	return nil
}

// optionalString returns nil for empty strings, pointer otherwise
func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
