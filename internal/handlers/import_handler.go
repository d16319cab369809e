package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/mapping"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/middleware"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/models"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/services"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/spreadsheet"
)

const (
	DefaultMaxUploadBytes = 50 << 20
	DefaultImportTimeout  = 10 * time.Minute
)

// Importer runs import previews and commits
type Importer interface {
	Preview(ctx context.Context, req services.PreviewRequest) (*models.ImportPreview, error)
	Commit(ctx context.Context, req services.CommitRequest) (*models.ImportOutcome, error)
}

type ImportHandler struct {
	importer  Importer
	maxUpload int64
	timeout   time.Duration
	logger    *logrus.Entry
}

func NewImportHandler(importer Importer, maxUpload int64, timeout time.Duration, logger *logrus.Logger) *ImportHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	if timeout <= 0 {
		timeout = DefaultImportTimeout
	}
	return &ImportHandler{
		importer:  importer,
		maxUpload: maxUpload,
		timeout:   timeout,
		logger:    logger.WithField("component", "import_handler"),
	}
}

// GetImportTemplate returns the import template definition or file
// @Summary Get import template
// @Tags Import
// @Produce json
// @Param format query string false "json, csv or xlsx" default(json)
// @Success 200 {object} models.ImportTemplate
// @Router /products/import/template [get]
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	template := models.ProductImportTemplate()

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateCSVTemplate writes a header-only CSV
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.csv")

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}

	writer := csv.NewWriter(c.Writer)
	if err := writer.Write(headers); err != nil {
		h.logger.WithError(err).Warn("Failed to write CSV template")
	}
	writer.Flush()
}

// generateXLSXTemplate writes a styled Products sheet plus an Instructions sheet
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})

	// Required headers carry a trailing " *"; the column mapper ignores it
	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		style := headerStyle
		headerText := col.Name
		if col.Required {
			headerText = col.Name + " *"
			style = requiredStyle
		}
		f.SetCellValue(sheetName, cell, headerText)
		f.SetCellStyle(sheetName, cell, cell, style)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	const instructions = "Instructions"
	f.NewSheet(instructions)
	f.SetCellValue(instructions, "A1", "Product Import Instructions")
	f.SetCellValue(instructions, "A3", "Headers are matched by name, in French or English, ignoring case and accents.")
	f.SetCellValue(instructions, "A4", "Columns that match no product field are imported as product attributes.")
	f.SetCellValue(instructions, "A5", "Categories must already exist. Unknown brands and sub-categories are left empty.")
	f.SetCellValue(instructions, "A6", "Images: list URLs in the images column, or paste pictures directly into the product row.")

	f.SetCellValue(instructions, "A8", "Column")
	f.SetCellValue(instructions, "B8", "Description")
	f.SetCellValue(instructions, "C8", "Required")
	f.SetCellValue(instructions, "D8", "Type")
	f.SetCellValue(instructions, "E8", "Example")

	for i, col := range template.Columns {
		row := i + 9
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue(instructions, fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue(instructions, fmt.Sprintf("B%d", row), col.Description)
		f.SetCellValue(instructions, fmt.Sprintf("C%d", row), required)
		f.SetCellValue(instructions, fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue(instructions, fmt.Sprintf("E%d", row), col.Example)
	}

	f.SetColWidth(instructions, "A", "A", 25)
	f.SetColWidth(instructions, "B", "B", 60)
	f.SetColWidth(instructions, "C", "D", 15)
	f.SetColWidth(instructions, "E", "E", 40)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.xlsx")

	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Warn("Failed to write XLSX template")
	}
}

// PreviewImport parses an uploaded file without writing anything
// @Summary Preview a product import
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Success 200 {object} models.ImportPreview
// @Failure 400 {object} models.ErrorResponse
// @Router /products/import/preview [post]
func (h *ImportHandler) PreviewImport(c *gin.Context) {
	filename, data, ok := h.readUpload(c)
	if !ok {
		return
	}

	preview, err := h.importer.Preview(c.Request.Context(), services.PreviewRequest{
		TenantID: middleware.GetTenantID(c),
		Filename: filename,
		Data:     data,
	})
	if err != nil {
		h.respondError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, preview)
}

// ImportProducts imports every row of an uploaded file
// @Summary Import products
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Param mapping formData string false "JSON object of header to field, attribute:<name> or ignore"
// @Success 200 {object} models.ImportOutcome
// @Failure 400 {object} models.ErrorResponse
// @Failure 504 {object} models.ErrorResponse
// @Router /products/import [post]
func (h *ImportHandler) ImportProducts(c *gin.Context) {
	startTime := time.Now()

	filename, data, ok := h.readUpload(c)
	if !ok {
		return
	}

	override, err := parseMappingField(c.PostForm("mapping"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_MAPPING",
				Message: err.Error(),
			},
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	tenantID := middleware.GetTenantID(c)
	outcome, err := h.importer.Commit(ctx, services.CommitRequest{
		TenantID: tenantID,
		ActorID:  middleware.GetUserID(c),
		Filename: filename,
		Data:     data,
		Mapping:  override,
	})
	if err != nil {
		h.respondError(c, err, outcome)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"tenantID":     tenantID,
		"filename":     filename,
		"imported":     outcome.Imported,
		"errors":       outcome.Errors,
		"processingMs": time.Since(startTime).Milliseconds(),
	}).Info("Product import completed")

	c.JSON(http.StatusOK, outcome)
}

// readUpload reads the multipart "file" field, bounded by the upload limit.
// It writes the error response itself and reports false on failure.
func (h *ImportHandler) readUpload(c *gin.Context) (string, []byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "FILE_TOO_LARGE",
					Message: fmt.Sprintf("The file exceeds %d bytes", h.maxUpload),
				},
			})
			return "", nil, false
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_REQUIRED",
				Message: "Please upload a CSV or Excel file",
			},
		})
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "UNREADABLE_FILE",
				Message: "The uploaded file could not be read",
			},
		})
		return "", nil, false
	}

	return header.Filename, data, true
}

func parseMappingField(raw string) (mapping.ColumnMapping, error) {
	if raw == "" {
		return nil, nil
	}
	var wire map[string]string
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("mapping must be a JSON object of strings: %w", err)
	}
	return mapping.ParseMapping(wire)
}

// respondError maps import errors onto the error envelope. A timed out commit
// still reports the rows processed before the deadline.
func (h *ImportHandler) respondError(c *gin.Context, err error, partial *models.ImportOutcome) {
	switch {
	case errors.Is(err, spreadsheet.ErrEmptyWorkbook):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "EMPTY_FILE",
				Message: "The file contains no data rows",
			},
		})
	case errors.Is(err, services.ErrUnreadableInput):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "UNREADABLE_FILE",
				Message: "The file is not a readable CSV or Excel workbook",
			},
		})
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.WithError(err).Warn("Product import timed out")
		resp := models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "IMPORT_TIMEOUT",
				Message: "The import did not finish in time; rows listed in details were processed",
			},
		}
		if partial != nil {
			resp.Error.Details = partial
		}
		c.JSON(http.StatusGatewayTimeout, resp)
	default:
		h.logger.WithError(err).Error("Product import failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "IMPORT_FAILED",
				Message: "Failed to import products",
			},
		})
	}
}
