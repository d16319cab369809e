package images

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Object is a normalized image ready for durable storage
type Object struct {
	TenantID    string
	Key         string
	Data        []byte
	ContentType string
}

// Store persists normalized images and returns a retrievable URL
type Store interface {
	Put(ctx context.Context, obj Object) (string, error)
}

// LocalStore writes images below a directory served at PublicBaseURL
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates a filesystem-backed image store
func NewLocalStore(dir, publicBaseURL string) *LocalStore {
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

func (s *LocalStore) Put(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, filepath.FromSlash(obj.Key))
	if !strings.HasPrefix(path, filepath.Clean(s.dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid image key %q", obj.Key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	if err := os.WriteFile(path, obj.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return s.baseURL + "/" + obj.Key, nil
}

// Storage backends
const (
	BackendLocal    = "local"
	BackendS3       = "s3"
	BackendDocument = "document"
)

// StoreConfig selects and configures a storage backend
type StoreConfig struct {
	Backend            string
	LocalDir           string
	PublicBaseURL      string
	S3                 S3Config
	DocumentServiceURL string
	ProductID          string
}

// NewStore builds the configured backend
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendLocal:
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL), nil
	case BackendS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 image storage requires a bucket")
		}
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, cfg.S3), nil
	case BackendDocument:
		return NewDocumentStore(cfg.DocumentServiceURL, cfg.ProductID, nil), nil
	}
	return nil, fmt.Errorf("unknown image storage backend %q", cfg.Backend)
}
