package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/mapping"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/models"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/services"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/spreadsheet"
)

// MockImporter is a mock implementation of Importer
type MockImporter struct {
	mock.Mock
}

func (m *MockImporter) Preview(ctx context.Context, req services.PreviewRequest) (*models.ImportPreview, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportPreview), args.Error(1)
}

func (m *MockImporter) Commit(ctx context.Context, req services.CommitRequest) (*models.ImportOutcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportOutcome), args.Error(1)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// Helper to setup test router with tenant and user already resolved
func setupTestRouter(importer Importer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("tenant_id", "tenant-1")
		c.Set("user_id", "user-1")
		c.Next()
	})

	h := NewImportHandler(importer, 0, time.Minute, quietLogger())
	r.GET("/products/import/template", h.GetImportTemplate)
	r.POST("/products/import/preview", h.PreviewImport)
	r.POST("/products/import", h.ImportProducts)
	return r
}

// multipartBody builds a form with an optional file part and extra fields
func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func post(t *testing.T, r *gin.Engine, path, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, filename, data, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetImportTemplate_JSON(t *testing.T) {
	r := setupTestRouter(new(MockImporter))

	req := httptest.NewRequest(http.MethodGet, "/products/import/template", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success  bool                  `json:"success"`
		Template models.ImportTemplate `json:"template"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "products", resp.Template.Entity)
	assert.Len(t, resp.Template.Columns, len(models.ProductImportColumns()))
	require.Len(t, resp.Template.SampleData, 1)
	sample := resp.Template.SampleData[0]
	assert.Equal(t, "Aspirateur Pro", sample["name"])
	assert.Equal(t, "1 234,56", sample["price"])
	assert.Equal(t, "Electroménager", sample["category"])
	assert.NotContains(t, sample, "description")
}

func TestGetImportTemplate_CSV(t *testing.T) {
	r := setupTestRouter(new(MockImporter))

	req := httptest.NewRequest(http.MethodGet, "/products/import/template?format=csv", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "products_import_template.csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "name,description,shortDescription,sku,price"))
}

func TestGetImportTemplate_XLSX(t *testing.T) {
	r := setupTestRouter(new(MockImporter))

	req := httptest.NewRequest(http.MethodGet, "/products/import/template?format=xlsx", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Products", "Instructions"}, f.GetSheetList())
	name, err := f.GetCellValue("Products", "A1")
	require.NoError(t, err)
	assert.Equal(t, "name *", name)
	desc, err := f.GetCellValue("Products", "B1")
	require.NoError(t, err)
	assert.Equal(t, "description", desc)
}

func TestPreviewImport_Success(t *testing.T) {
	importer := new(MockImporter)
	r := setupTestRouter(importer)

	preview := &models.ImportPreview{
		Headers:     []string{"Nom", "Prix"},
		Preview:     [][]string{{"Lampe", "12,50"}},
		AutoMapping: map[string]string{"Nom": "name", "Prix": "price"},
		TotalRows:   1,
	}
	importer.On("Preview", mock.Anything, services.PreviewRequest{
		TenantID: "tenant-1",
		Filename: "products.csv",
		Data:     []byte("Nom;Prix\nLampe;12,50\n"),
	}).Return(preview, nil)

	w := post(t, r, "/products/import/preview", "products.csv", []byte("Nom;Prix\nLampe;12,50\n"), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var got models.ImportPreview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, *preview, got)
	importer.AssertExpectations(t)
}

func TestPreviewImport_FileRequired(t *testing.T) {
	importer := new(MockImporter)
	r := setupTestRouter(importer)

	w := post(t, r, "/products/import/preview", "", nil, map[string]string{"other": "x"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "FILE_REQUIRED", decodeError(t, w).Error.Code)
	importer.AssertNotCalled(t, "Preview", mock.Anything, mock.Anything)
}

func TestPreviewImport_InputErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"empty workbook", fmt.Errorf("%w: %w", services.ErrUnreadableInput, spreadsheet.ErrEmptyWorkbook), "EMPTY_FILE"},
		{"unreadable", fmt.Errorf("%w: %w", services.ErrUnreadableInput, spreadsheet.ErrUnreadableWorkbook), "UNREADABLE_FILE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			importer := new(MockImporter)
			r := setupTestRouter(importer)
			importer.On("Preview", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := post(t, r, "/products/import/preview", "products.xlsx", []byte("garbage"), nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeError(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestImportProducts_PassesMappingAndActor(t *testing.T) {
	importer := new(MockImporter)
	r := setupTestRouter(importer)

	outcome := models.NewImportOutcome()
	outcome.AddSuccess(models.ImportSuccess{Row: 2, Name: "Lampe"})
	outcome.AddFailure(models.ImportFailure{Row: 3, Error: "name is required"})

	importer.On("Commit",
		mock.MatchedBy(func(ctx context.Context) bool {
			_, ok := ctx.Deadline()
			return ok
		}),
		mock.MatchedBy(func(req services.CommitRequest) bool {
			return req.TenantID == "tenant-1" &&
				req.ActorID == "user-1" &&
				req.Filename == "products.csv" &&
				req.Mapping["Tarif public"] == mapping.Canonical(mapping.FieldPrice) &&
				req.Mapping["Notes"] == mapping.Ignore &&
				req.Mapping["Coloris"] == mapping.Attribute("Couleur")
		}),
	).Return(outcome, nil)

	w := post(t, r, "/products/import", "products.csv", []byte("Nom\nLampe\n"), map[string]string{
		"mapping": `{"Tarif public":"price","Notes":"ignore","Coloris":"attribute:Couleur"}`,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	var got models.ImportOutcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Imported)
	assert.Equal(t, 1, got.Errors)
	assert.Equal(t, 3, got.Details.Errors[0].Row)
	importer.AssertExpectations(t)
}

func TestImportProducts_NoMappingKeepsAutoDetection(t *testing.T) {
	importer := new(MockImporter)
	r := setupTestRouter(importer)

	importer.On("Commit", mock.Anything, mock.MatchedBy(func(req services.CommitRequest) bool {
		return req.Mapping == nil
	})).Return(models.NewImportOutcome(), nil)

	w := post(t, r, "/products/import", "products.csv", []byte("Nom\nLampe\n"), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"imported":0,"errors":0,"details":{"success":[],"errors":[]}}`, w.Body.String())
}

func TestImportProducts_InvalidMapping(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":      `{price`,
		"unknown field": `{"Prix":"cost"}`,
		"not strings":   `{"Prix":3}`,
	} {
		t.Run(name, func(t *testing.T) {
			importer := new(MockImporter)
			r := setupTestRouter(importer)

			w := post(t, r, "/products/import", "products.csv", []byte("Prix\n1\n"), map[string]string{"mapping": raw})

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_MAPPING", decodeError(t, w).Error.Code)
			importer.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
		})
	}
}

func TestImportProducts_TimeoutReturnsPartialOutcome(t *testing.T) {
	importer := new(MockImporter)
	r := setupTestRouter(importer)

	partial := models.NewImportOutcome()
	partial.AddSuccess(models.ImportSuccess{Row: 2, Name: "Lampe"})
	importer.On("Commit", mock.Anything, mock.Anything).Return(partial, context.DeadlineExceeded)

	w := post(t, r, "/products/import", "products.csv", []byte("Nom\nLampe\nTable\n"), nil)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	var resp struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string               `json:"code"`
			Details models.ImportOutcome `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "IMPORT_TIMEOUT", resp.Error.Code)
	assert.Equal(t, 1, resp.Error.Details.Imported)
	assert.Equal(t, "Lampe", resp.Error.Details.Details.Success[0].Name)
}

func TestImportProducts_InternalError(t *testing.T) {
	importer := new(MockImporter)
	r := setupTestRouter(importer)
	importer.On("Commit", mock.Anything, mock.Anything).Return(nil, errors.New("registry unavailable"))

	w := post(t, r, "/products/import", "products.csv", []byte("Nom\nLampe\n"), nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "IMPORT_FAILED", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "registry unavailable")
}
