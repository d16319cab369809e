package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Tesseract-Nexus/go-shared/secrets"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/models"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisURL string

	// NATS, empty disables product events
	NATSURL string

	// Server
	Port               string
	Environment        string
	StaffServiceURL    string
	CORSAllowedOrigins []string

	Import  ImportConfig
	Images  ImageConfig
	Storage StorageConfig
}

// ImportConfig bounds a single import request
type ImportConfig struct {
	MaxImagesPerProduct int
	MaxURLsPerCell      int
	PreviewRows         int
	SlugMaxAttempts     int
	Timeout             time.Duration
	MaxUploadBytes      int64
}

// ImageConfig drives remote fetching and normalization
type ImageConfig struct {
	FetchTimeout time.Duration
	MaxBytes     int64
	MaxWidth     int
	MaxHeight    int
	JPEGQuality  int
	MaxPixels    int64
	TempDir      string
}

// StorageConfig selects where normalized images are kept
type StorageConfig struct {
	Backend       string // local, s3 or document
	LocalDir      string
	PublicBaseURL string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Document service, with the product identifier it expects
	DocumentServiceURL string
	ProductID          string
}

func Load() *Config {
	return &Config{
		// Database - fetch password from GCP Secret Manager if enabled
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: secrets.GetDBPassword(),
		DBName:     getEnv("DB_NAME", "products_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", "redis://redis.redis-marketplace.svc.cluster.local:6379/0"),
		NATSURL:  os.Getenv("NATS_URL"),

		Port:               getEnv("PORT", "8087"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		StaffServiceURL:    getEnv("STAFF_SERVICE_URL", "http://staff-service:8080"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		Import: ImportConfig{
			MaxImagesPerProduct: getEnvInt("IMPORT_MAX_IMAGES_PER_PRODUCT", 50),
			MaxURLsPerCell:      getEnvInt("IMPORT_MAX_URLS_PER_CELL", 50),
			PreviewRows:         getEnvInt("IMPORT_PREVIEW_ROWS", 5),
			SlugMaxAttempts:     getEnvInt("IMPORT_SLUG_MAX_ATTEMPTS", 1000),
			Timeout:             getEnvDuration("IMPORT_TIMEOUT", 10*time.Minute),
			MaxUploadBytes:      getEnvInt64("IMPORT_MAX_UPLOAD_BYTES", 50<<20),
		},

		Images: ImageConfig{
			FetchTimeout: getEnvDuration("IMAGE_FETCH_TIMEOUT", 20*time.Second),
			MaxBytes:     getEnvInt64("IMAGE_MAX_BYTES", 15<<20),
			MaxWidth:     getEnvInt("IMAGE_MAX_WIDTH", 1920),
			MaxHeight:    getEnvInt("IMAGE_MAX_HEIGHT", 1920),
			JPEGQuality:  getEnvInt("IMAGE_JPEG_QUALITY", 82),
			MaxPixels:    getEnvInt64("IMAGE_MAX_PIXELS", 40_000_000),
			TempDir:      getEnv("IMAGE_TEMP_DIR", os.TempDir()),
		},

		Storage: StorageConfig{
			Backend:            getEnv("IMAGE_STORAGE", "local"),
			LocalDir:           getEnv("IMAGE_LOCAL_DIR", filepath.Join("data", "images")),
			PublicBaseURL:      getEnv("IMAGE_PUBLIC_BASE_URL", "/images"),
			S3Bucket:           os.Getenv("S3_BUCKET"),
			S3Region:           getEnv("S3_REGION", "eu-west-3"),
			S3Endpoint:         os.Getenv("S3_ENDPOINT"),
			S3AccessKeyID:      os.Getenv("S3_ACCESS_KEY_ID"),
			S3SecretAccessKey:  os.Getenv("S3_SECRET_ACCESS_KEY"),
			DocumentServiceURL: getEnv("DOCUMENT_SERVICE_URL", "http://localhost:8082"),

			// Multi-product support - identifies this service to document-service
			ProductID: getEnv("PRODUCT_ID", "marketplace"),
		},
	}
}

// DSN returns the postgres connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	// TranslateError turns unique violations into gorm.ErrDuplicatedKey,
	// which the slug retry loop relies on
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Running auto-migrations...")
	if err := Migrate(db); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "does not exist") && strings.Contains(errStr, "constraint") {
			log.Printf("Note: Migration constraint warning (safe to ignore): %v", err)
		} else {
			return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
		}
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

// Migrate creates or updates the catalog tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Category{},
		&models.Brand{},
		&models.AttributeDefinition{},
		&models.Product{},
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
