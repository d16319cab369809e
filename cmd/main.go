package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/rbac"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/Tesseract-Nexus/go-shared/tracing"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/config"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/events"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/handlers"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/images"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/middleware"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/repository"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/services"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/slug"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/spreadsheet"
)

const serviceName = "products-import-service"

// @title Products Import API
// @version 1.0.0
// @description Bulk product catalog import from CSV and Excel files, with remote and embedded images

// @host localhost:8087
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing with localhost)", err)
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	// Set Redis password from GCP Secret Manager
	redisOpts.Password = secrets.GetRedisPassword()
	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (caching will be disabled)", err)
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancel()

	productsRepo := repository.NewProductsRepository(db, redisClient)

	// Durable image storage
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	imageStore, err := images.NewStore(ctx, images.StoreConfig{
		Backend:       cfg.Storage.Backend,
		LocalDir:      cfg.Storage.LocalDir,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		S3: images.S3Config{
			Bucket:          cfg.Storage.S3Bucket,
			Region:          cfg.Storage.S3Region,
			Endpoint:        cfg.Storage.S3Endpoint,
			AccessKeyID:     cfg.Storage.S3AccessKeyID,
			SecretAccessKey: cfg.Storage.S3SecretAccessKey,
			PublicBaseURL:   publicBaseURL(cfg),
		},
		DocumentServiceURL: cfg.Storage.DocumentServiceURL,
		ProductID:          cfg.Storage.ProductID,
	})
	cancel()
	if err != nil {
		log.Fatal("Failed to initialize image storage:", err)
	}
	log.Printf("✓ Image storage initialized (%s)", cfg.Storage.Backend)

	// Product events are optional; the import runs without them
	var productEvents services.ProductEvents
	var eventsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		eventsPublisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
			productEvents = eventsPublisher
			log.Println("✓ Events publisher initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer func() {
		if eventsPublisher != nil {
			eventsPublisher.Close()
		}
	}()

	baseLogger := logrus.NewEntry(logger)
	fetcher := images.NewFetcher(images.FetcherConfig{
		MaxURLs:  cfg.Import.MaxURLsPerCell,
		Timeout:  cfg.Images.FetchTimeout,
		MaxBytes: cfg.Images.MaxBytes,
		TempDir:  cfg.Images.TempDir,
	}, nil, baseLogger)
	normalizer := images.NewNormalizer(imageStore, images.NormalizerConfig{
		MaxWidth:  cfg.Images.MaxWidth,
		MaxHeight: cfg.Images.MaxHeight,
		Quality:   cfg.Images.JPEGQuality,
		MaxPixels: cfg.Images.MaxPixels,
	}, baseLogger)

	importService := services.NewImportService(
		productsRepo,
		slug.NewAllocator(productsRepo, cfg.Import.SlugMaxAttempts, baseLogger),
		spreadsheet.NewExtractor(baseLogger),
		fetcher,
		normalizer,
		productEvents,
		services.ImportConfig{
			MaxImagesPerProduct: cfg.Import.MaxImagesPerProduct,
			PreviewRows:         cfg.Import.PreviewRows,
		},
		baseLogger,
	)

	importHandler := handlers.NewImportHandler(importService, cfg.Import.MaxUploadBytes, cfg.Import.Timeout, logger)
	healthHandler := handlers.NewHealthHandler(productsRepo, serviceName)

	// Initialize OpenTelemetry tracing
	var tracerProvider *tracing.TracerProvider
	if cfg.Environment == "production" {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig(serviceName))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig(serviceName))
	}
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v (continuing without tracing)", err)
	} else {
		log.Println("✓ OpenTelemetry tracing initialized")
	}

	metrics := gosharedmw.InitGlobalMetrics("tesseract", "products_import_service")
	log.Println("✓ Prometheus metrics initialized")

	rbacMw := rbac.NewMiddlewareWithURL(cfg.StaffServiceURL, nil)
	log.Println("✓ RBAC middleware initialized")

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware(serviceName))
	router.Use(gosharedmw.CompressionMiddleware())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Health check endpoints (no auth required)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gosharedmw.Handler())

	// Locally stored images are served by this process
	if strings.EqualFold(cfg.Storage.Backend, images.BackendLocal) && strings.HasPrefix(cfg.Storage.PublicBaseURL, "/") {
		router.Static(cfg.Storage.PublicBaseURL, cfg.Storage.LocalDir)
	}

	api := router.Group("/api/v1")

	// In development: DevelopmentAuthMiddleware for local testing
	// Otherwise: IstioAuth reads x-jwt-claim-* headers, falling back to X-* headers from auth-bff
	if cfg.Environment == "development" {
		api.Use(middleware.DevelopmentAuthMiddleware())
	} else {
		api.Use(gosharedmw.IstioAuth(gosharedmw.IstioAuthConfig{
			RequireAuth:        true,
			AllowLegacyHeaders: true,
			Logger:             baseLogger.WithField("component", "istio_auth"),
		}))
		api.Use(gosharedmw.VendorScopeFilter())
	}
	api.Use(middleware.TenantMiddleware())

	products := api.Group("/products")
	{
		products.GET("/import/template", rbacMw.RequirePermission(rbac.PermissionProductsImport), importHandler.GetImportTemplate)
		products.POST("/import/preview", rbacMw.RequirePermission(rbac.PermissionProductsImport), importHandler.PreviewImport)
		products.POST("/import", rbacMw.RequirePermission(rbac.PermissionProductsImport), importHandler.ImportProducts)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// A commit may run for the whole import timeout, so only the header read is bounded
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Products import service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down products-import-service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shut down: %v", err)
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		} else {
			log.Println("✓ Tracer provider shut down")
		}
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	log.Println("Products import service stopped")
}

// publicBaseURL is only meaningful for S3 when it is absolute
func publicBaseURL(cfg *config.Config) string {
	if strings.HasPrefix(cfg.Storage.PublicBaseURL, "http") {
		return cfg.Storage.PublicBaseURL
	}
	return ""
}
