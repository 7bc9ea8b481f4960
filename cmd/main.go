package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"catalog-service/internal/config"
	"catalog-service/internal/events"
	"catalog-service/internal/handlers"
	"catalog-service/internal/jobs"
	"catalog-service/internal/middleware"
	"catalog-service/internal/repository"
	"catalog-service/internal/services"
)

// @title Product Catalog API
// @version 1.0.0
// @description Product catalog service with CSV bulk import and webhook notifications

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
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
	var redisClient *redis.Client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
	} else {
		redisClient = redis.NewClient(redisOpts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("WARNING: Failed to connect to Redis: %v (caching and job persistence disabled)", err)
			redisClient = nil
		} else {
			log.Println("✓ Redis connected successfully")
		}
		cancel()
	}

	// Job status store: Redis-backed when available so progress survives
	// restarts, in-memory otherwise.
	var jobStore jobs.Store
	if redisClient != nil {
		jobStore = jobs.NewRedisStore(redisClient, cfg.JobStatusTTL)
	} else {
		jobStore = jobs.NewMemoryStore()
	}

	// Initialize repositories
	productsRepo := repository.NewProductsRepository(db, redisClient)
	webhooksRepo := repository.NewWebhooksRepository(db)

	// Initialize event publisher only if NATS_URL is set
	var eventsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		eventsPublisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
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

	// Initialize services
	webhookService := services.NewWebhookService(webhooksRepo, cfg.WebhookTimeout, logger)
	importService := services.NewImportService(productsRepo, jobStore, webhookService, eventsPublisher, cfg.ImportBatchSize, logger)

	// Initialize handlers
	productsHandler := handlers.NewProductsHandler(productsRepo, eventsPublisher, cfg.DefaultPageSize, cfg.MaxPageSize)
	importHandler := handlers.NewImportHandler(importService, jobStore, cfg.UploadDir, logger)
	webhooksHandler := handlers.NewWebhooksHandler(webhooksRepo, webhookService, logger)
	healthHandler := handlers.NewHealthHandler(db, redisClient)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS())

	// Health check endpoints
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", middleware.MetricsHandler())

	// Products
	router.GET("/products", productsHandler.GetProducts)
	router.POST("/products", productsHandler.CreateProduct)
	router.PUT("/products/:sku", productsHandler.UpdateProduct)
	router.DELETE("/products/:sku", productsHandler.DeleteProduct)
	router.DELETE("/products", productsHandler.DeleteAllProducts)
	router.GET("/products/import/template", importHandler.GetImportTemplate)

	// CSV import
	router.POST("/upload", importHandler.UploadCSV)
	router.GET("/job_status/:job_id", importHandler.GetJobStatus)

	// Webhooks
	router.GET("/webhooks", webhooksHandler.ListWebhooks)
	router.POST("/webhooks", webhooksHandler.CreateWebhook)
	router.PUT("/webhooks/:id", webhooksHandler.UpdateWebhook)
	router.DELETE("/webhooks/:id", webhooksHandler.DeleteWebhook)
	router.POST("/webhooks/:id/test", webhooksHandler.TestWebhook)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Starting catalog service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down catalog service")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Forced shutdown:", err)
	}
}
