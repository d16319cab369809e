package spreadsheet

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// EmbeddedImage is a raster image placed inside the workbook
type EmbeddedImage struct {
	RowIndex   int // 0-based sheet row of the anchor's top-left cell
	Bytes      []byte
	Format     string // file extension without the dot, e.g. "png"
	SourceName string // Sheet!Cell
}

// EmbeddedImages buckets images by anchor row
type EmbeddedImages map[int][]EmbeddedImage

// At returns the images anchored at a 0-based sheet row
func (e EmbeddedImages) At(sheetRow int) []EmbeddedImage {
	return e[sheetRow]
}

// Count returns the number of images across all rows
func (e EmbeddedImages) Count() int {
	n := 0
	for _, imgs := range e {
		n += len(imgs)
	}
	return n
}

// Extractor reads the drawing layer of a workbook
type Extractor struct {
	logger *logrus.Entry
}

// NewExtractor creates a new embedded image extractor
func NewExtractor(logger *logrus.Entry) *Extractor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Extractor{logger: logger.WithField("component", "image_extractor")}
}

type anchoredCell struct {
	ref      string
	col, row int
}

// Extract buckets every picture of sheet by the 0-based row of its anchor.
// An empty sheet name means the sheet Read would pick. Cells whose pictures
// cannot be read are skipped; CSV input has no drawings and yields an empty map.
func (x *Extractor) Extract(data []byte, format Format, sheet string) (EmbeddedImages, error) {
	out := make(EmbeddedImages)
	if format != FormatXLSX {
		return out, nil
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer f.Close()

	if sheet == "" {
		if sheet, err = pickSheet(f); err != nil {
			return nil, err
		}
	}

	refs, err := f.GetPictureCells(sheet)
	if err != nil {
		x.logger.WithError(err).WithField("sheet", sheet).Warn("Failed to list picture cells")
		return out, nil
	}

	cells := make([]anchoredCell, 0, len(refs))
	for _, ref := range refs {
		col, row, err := excelize.CellNameToCoordinates(ref)
		if err != nil {
			x.logger.WithError(err).WithField("cell", ref).Warn("Skipping picture with malformed anchor")
			continue
		}
		cells = append(cells, anchoredCell{ref: ref, col: col, row: row})
	}
	// column order within a row, drawing order within a cell
	sort.SliceStable(cells, func(i, j int) bool {
		if cells[i].row != cells[j].row {
			return cells[i].row < cells[j].row
		}
		return cells[i].col < cells[j].col
	})

	for _, c := range cells {
		pics, err := f.GetPictures(sheet, c.ref)
		if err != nil {
			x.logger.WithError(err).WithFields(logrus.Fields{
				"sheet": sheet,
				"cell":  c.ref,
			}).Warn("Skipping unreadable embedded picture")
			continue
		}
		rowIndex := c.row - 1
		for _, pic := range pics {
			if len(pic.File) == 0 {
				x.logger.WithField("cell", c.ref).Debug("Skipping empty embedded picture")
				continue
			}
			out[rowIndex] = append(out[rowIndex], EmbeddedImage{
				RowIndex:   rowIndex,
				Bytes:      pic.File,
				Format:     strings.ToLower(strings.TrimPrefix(pic.Extension, ".")),
				SourceName: fmt.Sprintf("%s!%s", sheet, c.ref),
			})
		}
	}

	return out, nil
}
