package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/storybook-services-backend/docs"
	"github.com/onegreenvn/storybook-services-backend/internal/cache"
	"github.com/onegreenvn/storybook-services-backend/internal/config"
	"github.com/onegreenvn/storybook-services-backend/internal/database"
	"github.com/onegreenvn/storybook-services-backend/internal/database/repository"
	"github.com/onegreenvn/storybook-services-backend/internal/handlers"
	"github.com/onegreenvn/storybook-services-backend/internal/middleware"
	"github.com/onegreenvn/storybook-services-backend/internal/router"
	"github.com/onegreenvn/storybook-services-backend/internal/services"
	"github.com/onegreenvn/storybook-services-backend/internal/services/api_key"
	"github.com/onegreenvn/storybook-services-backend/internal/services/excel"
	"github.com/onegreenvn/storybook-services-backend/internal/services/gemini"
	"github.com/onegreenvn/storybook-services-backend/internal/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	docs.SwaggerInfo.BasePath = cfg.BasePath

	configureLogging(cfg.LogLevel)

	if utils.InitSentry(cfg.SentryDSN, cfg.GinMode) {
		defer utils.FlushSentry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A missing key leaves the model unset; generation endpoints then answer 500
	var model services.StoryModel
	geminiClient, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:     cfg.GoogleAPIKey,
		StoryModel: cfg.StoryModel,
		ImageModel: cfg.ImageModel,
		Timeout:    cfg.ModelTimeout,
	})
	if err != nil {
		logrus.Errorf("Failed to initialize Gemini client: %v", err)
	} else {
		model = geminiClient
		logrus.Infof("Gemini client initialized (story model: %s, image model: %s)", geminiClient.StoryModel(), geminiClient.ImageModel())
	}

	healthChecks := map[string]handlers.DependencyCheck{
		"database": nil,
		"rabbitmq": nil,
		"redis":    nil,
	}

	var store services.StoryStore
	if cfg.Database.Enabled() {
		db, err := database.InitDB(cfg.Database)
		if err != nil {
			logrus.Warnf("Failed to initialize database, story history disabled: %v", err)
		} else {
			store = repository.NewStoryRepository(db)
			healthChecks["database"] = func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			}
		}
	} else {
		logrus.Info("Database not configured, story history disabled")
	}

	var queue services.JobQueue
	if cfg.RabbitMQ.Enabled() {
		rabbitMQService, err := services.NewRabbitMQService(cfg.RabbitMQ)
		if err != nil {
			logrus.Warnf("Failed to initialize RabbitMQ: %v", err)
		} else {
			defer rabbitMQService.Close()
			queue = rabbitMQService
			healthChecks["rabbitmq"] = func(ctx context.Context) error {
				if !rabbitMQService.IsConnected() {
					return fmt.Errorf("connection closed")
				}
				return nil
			}
		}
	} else {
		logrus.Info("RabbitMQ not configured, background jobs disabled")
	}

	var limiter middleware.RateLimiter
	if cfg.Redis.Enabled() {
		redisClient, err := cache.NewClient(cfg.Redis)
		if err != nil {
			logrus.Warnf("Failed to initialize Redis, rate limiting disabled: %v", err)
		} else {
			defer redisClient.Close()
			limiter = cache.NewRateLimiter(redisClient)
			healthChecks["redis"] = redisClient.Ping
		}
	} else {
		logrus.Info("Redis not configured, rate limiting disabled")
	}

	sseHub := services.NewSSEHub()

	storyService := services.NewStoryService(model, services.StoryServiceOptions{
		Store:            store,
		Publisher:        queue,
		Progress:         sseHub,
		MaxIllustrations: cfg.MaxIllustrations,
		SummaryMaxChars:  cfg.SummaryMaxChars,
	})

	historyService := services.NewStoryHistoryService(store, cfg.StoryRetentionDays)
	historyService.StartCleanupJob()
	defer historyService.StopCleanupJob()

	jobService := services.NewStoryJobService(storyService, store, queue)
	if queue != nil && store != nil {
		if err := jobService.StartConsumer(ctx); err != nil {
			logrus.Warnf("Failed to start story job consumer: %v", err)
		} else {
			defer jobService.StopConsumer()
		}
	}

	apiKeys := api_key.NewService(cfg.APIKeyHashes)
	if apiKeys.Enabled() {
		logrus.Infof("API key authentication enabled (%d keys)", len(cfg.APIKeyHashes))
	} else {
		logrus.Warn("API_KEY_HASHES not set, story endpoints are public")
	}

	r := router.SetupRouter(router.Dependencies{
		Config:         cfg,
		StoryService:   storyService,
		JobService:     jobService,
		HistoryService: historyService,
		ExcelService:   excel.NewExcelService(historyService, cfg.ExportsDir),
		SSEHub:         sseHub,
		APIKeys:        apiKeys,
		RateLimiter:    limiter,
		HealthChecks:   healthChecks,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logrus.Infof("Server starting on port %s", cfg.Port)
		logrus.Infof("API Health Check: http://localhost:%s/api/v1/health", cfg.Port)
		logrus.Infof("Swagger UI: http://localhost:%s/swagger/index.html", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Let in-flight generations finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ModelTimeout+10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited properly")
}

func configureLogging(logLevel string) {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}
