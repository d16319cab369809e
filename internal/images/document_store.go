package images

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"
)

const documentBucket = "product-images"

// DocumentStore uploads images to the platform document service
type DocumentStore struct {
	documentServiceURL string
	productID          string
	httpClient         *http.Client
}

type documentUploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL       string `json:"url"`
		PublicURL string `json:"publicUrl"`
		Path      string `json:"path"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewDocumentStore creates a document-service backed image store
func NewDocumentStore(documentServiceURL, productID string, client *http.Client) *DocumentStore {
	if productID == "" {
		productID = "marketplace"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &DocumentStore{
		documentServiceURL: strings.TrimSuffix(documentServiceURL, "/"),
		productID:          productID,
		httpClient:         client,
	}
}

func (s *DocumentStore) Put(ctx context.Context, obj Object) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	_ = writer.WriteField("bucket", documentBucket)
	_ = writer.WriteField("isPublic", "true")
	_ = writer.WriteField("path", obj.Key)
	_ = writer.WriteField("tags", fmt.Sprintf("tenant_id:%s,source:import", obj.TenantID))

	part, err := writer.CreateFormFile("file", path.Base(obj.Key))
	if err != nil {
		return "", fmt.Errorf("failed to create form: %w", err)
	}
	if _, err := part.Write(obj.Data); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.documentServiceURL+"/api/v1/documents/upload", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Tenant-ID", obj.TenantID)
	req.Header.Set("X-Product-ID", s.productID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to communicate with document service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read document service response: %w", err)
	}

	var parsed documentUploadResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unexpected document service response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 300 || !parsed.Success {
		if parsed.Error != nil {
			return "", fmt.Errorf("document service error %s: %s", parsed.Error.Code, parsed.Error.Message)
		}
		return "", fmt.Errorf("document service returned status %d", resp.StatusCode)
	}

	switch {
	case parsed.Data.PublicURL != "":
		return parsed.Data.PublicURL, nil
	case parsed.Data.URL != "":
		return parsed.Data.URL, nil
	case parsed.Data.Path != "":
		return fmt.Sprintf("%s/api/v1/documents/%s/%s", s.documentServiceURL, documentBucket, parsed.Data.Path), nil
	}
	return "", fmt.Errorf("document service response has no url")
}
