package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8087", cfg.Port)
	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, 50, cfg.Import.MaxImagesPerProduct)
	assert.Equal(t, 50, cfg.Import.MaxURLsPerCell)
	assert.Equal(t, 5, cfg.Import.PreviewRows)
	assert.Equal(t, 1000, cfg.Import.SlugMaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Import.Timeout)
	assert.Equal(t, int64(50<<20), cfg.Import.MaxUploadBytes)
	assert.Equal(t, 20*time.Second, cfg.Images.FetchTimeout)
	assert.Equal(t, 1920, cfg.Images.MaxWidth)
	assert.Equal(t, 82, cfg.Images.JPEGQuality)
	assert.Equal(t, int64(40_000_000), cfg.Images.MaxPixels)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "marketplace", cfg.Storage.ProductID)
	assert.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("IMPORT_TIMEOUT", "90s")
	t.Setenv("IMPORT_MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("IMAGE_MAX_WIDTH", "800")
	t.Setenv("IMAGE_MAX_PIXELS", "1000000")
	t.Setenv("IMAGE_STORAGE", "s3")
	t.Setenv("S3_BUCKET", "catalog-images")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://admin.example.com, ,http://localhost:3000")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 6543, cfg.DBPort)
	assert.Equal(t, 90*time.Second, cfg.Import.Timeout)
	assert.Equal(t, int64(1048576), cfg.Import.MaxUploadBytes)
	assert.Equal(t, 800, cfg.Images.MaxWidth)
	assert.Equal(t, int64(1000000), cfg.Images.MaxPixels)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "catalog-images", cfg.Storage.S3Bucket)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, []string{"https://admin.example.com", "http://localhost:3000"}, cfg.CORSAllowedOrigins)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("IMPORT_PREVIEW_ROWS", "five")
	t.Setenv("IMAGE_FETCH_TIMEOUT", "20")

	cfg := Load()

	assert.Equal(t, 5, cfg.Import.PreviewRows)
	assert.Equal(t, 20*time.Second, cfg.Images.FetchTimeout)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: 5432, DBUser: "u", DBPassword: "p", DBName: "products_db", DBSSLMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=products_db sslmode=disable", cfg.DSN())
}
