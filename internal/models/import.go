package models

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, boolean, urls
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity     string                 `json:"entity"`
	Version    string                 `json:"version"`
	Columns    []ImportTemplateColumn `json:"columns"`
	SampleData []map[string]string    `json:"sampleData,omitempty"`
}

// ImageWarning is a non-fatal image acquisition problem attached to a successful row
type ImageWarning struct {
	URL     string `json:"url,omitempty"`
	Source  string `json:"source,omitempty"`
	Message string `json:"message"`
}

// ImportSuccess describes a persisted row
type ImportSuccess struct {
	Row           int            `json:"row"`
	Name          string         `json:"name"`
	ProductID     string         `json:"productId,omitempty"`
	Slug          string         `json:"slug,omitempty"`
	ImageWarnings []ImageWarning `json:"imageWarnings,omitempty"`
}

// ImportFailure describes a rejected row
type ImportFailure struct {
	Row    int    `json:"row"`
	Error  string `json:"error"`
	Column string `json:"column,omitempty"`
	Code   string `json:"code,omitempty"`
}

// Row failure codes
const (
	ImportCodeRequired      = "REQUIRED"
	ImportCodeInvalid       = "INVALID"
	ImportCodeNotFound      = "NOT_FOUND"
	ImportCodePersistFailed = "PERSIST_FAILED"
)

// ImportDetails lists every success and failure in row order
type ImportDetails struct {
	Success []ImportSuccess `json:"success"`
	Errors  []ImportFailure `json:"errors"`
}

// ImportOutcome is the result of committing an import
type ImportOutcome struct {
	Imported int           `json:"imported"`
	Errors   int           `json:"errors"`
	Details  ImportDetails `json:"details"`
}

// NewImportOutcome returns an empty outcome with non-nil detail slices
func NewImportOutcome() *ImportOutcome {
	return &ImportOutcome{
		Details: ImportDetails{
			Success: []ImportSuccess{},
			Errors:  []ImportFailure{},
		},
	}
}

// AddSuccess records a persisted row
func (o *ImportOutcome) AddSuccess(s ImportSuccess) {
	o.Details.Success = append(o.Details.Success, s)
	o.Imported++
}

// AddFailure records a rejected row
func (o *ImportOutcome) AddFailure(f ImportFailure) {
	o.Details.Errors = append(o.Details.Errors, f)
	o.Errors++
}

// ImportPreview is the read-only dry run shown before commit
type ImportPreview struct {
	Headers             []string          `json:"headers"`
	Preview             [][]string        `json:"preview"`
	AutoMapping         map[string]string `json:"autoMapping"`
	TotalRows           int               `json:"totalRows"`
	HasEmbeddedImages   bool              `json:"hasEmbeddedImages"`
	EmbeddedImagesCount int               `json:"embeddedImagesCount"`
}

// ProductImportColumns returns the canonical column definitions for product import
func ProductImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "name", Description: "Product name", Required: true, Type: "string", Example: "Aspirateur Pro"},
		{Name: "description", Description: "Long description", Required: false, Type: "string", Example: ""},
		{Name: "shortDescription", Description: "Short description", Required: false, Type: "string", Example: ""},
		{Name: "sku", Description: "Product reference", Required: false, Type: "string", Example: "ASP-PRO-001"},
		{Name: "price", Description: "Sale price, comma or dot decimal separator", Required: true, Type: "number", Example: "1 234,56"},
		{Name: "compareAtPrice", Description: "Original price shown crossed out", Required: false, Type: "number", Example: ""},
		{Name: "brand", Description: "Brand name, ignored if unknown", Required: false, Type: "string", Example: ""},
		{Name: "category", Description: "Category name or ID, must exist", Required: true, Type: "string", Example: "Electroménager"},
		{Name: "subCategory", Description: "Sub-category name or ID, ignored if unknown", Required: false, Type: "string", Example: ""},
		{Name: "stock", Description: "Stock quantity", Required: false, Type: "number", Example: "12"},
		{Name: "inStock", Description: "Availability (oui/non, yes/no, 1/0)", Required: false, Type: "boolean", Example: "oui"},
		{Name: "featured", Description: "Featured product (oui/non)", Required: false, Type: "boolean", Example: ""},
		{Name: "bestSeller", Description: "Best seller (oui/non)", Required: false, Type: "boolean", Example: ""},
		{Name: "images", Description: "Image URLs separated by comma, semicolon or space. Images can also be pasted in the row.", Required: false, Type: "urls", Example: "https://example.com/a.jpg"},
	}
}

// ProductImportTemplate returns the template definition for products, with
// one sample row built from the column examples
func ProductImportTemplate() ImportTemplate {
	columns := ProductImportColumns()
	sample := make(map[string]string, len(columns))
	for _, col := range columns {
		if col.Example != "" {
			sample[col.Name] = col.Example
		}
	}
	return ImportTemplate{
		Entity:     "products",
		Version:    "2.0",
		Columns:    columns,
		SampleData: []map[string]string{sample},
	}
}
