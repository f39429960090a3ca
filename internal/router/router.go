package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/onegreenvn/storybook-services-backend/internal/config"
	"github.com/onegreenvn/storybook-services-backend/internal/handlers"
	"github.com/onegreenvn/storybook-services-backend/internal/middleware"
	"github.com/onegreenvn/storybook-services-backend/internal/services"
	"github.com/onegreenvn/storybook-services-backend/internal/services/excel"
)

// Dependencies are the services the HTTP layer is built from
type Dependencies struct {
	Config         *config.Config
	StoryService   *services.StoryService
	JobService     *services.StoryJobService
	HistoryService *services.StoryHistoryService
	ExcelService   *excel.Service
	SSEHub         *services.SSEHub
	APIKeys        middleware.APIKeyValidator
	RateLimiter    middleware.RateLimiter
	HealthChecks   map[string]handlers.DependencyCheck
}

// SetupRouter configures the Gin router with the story routes
func SetupRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	switch cfg.GinMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.GinMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: !allowsAllOrigins(cfg.CORSAllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	storyHandler := handlers.NewStoryHandler(deps.StoryService, deps.JobService, deps.HistoryService, deps.ExcelService, deps.SSEHub)
	healthHandler := handlers.NewHealthHandler(deps.StoryService.Available(), deps.HealthChecks)

	apiKeyAuth := middleware.NewAPIKeyMiddleware(deps.APIKeys).APIKeyAuthMiddleware()
	rateLimit := middleware.RateLimit(cfg.RateLimit, deps.RateLimiter)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	logrus.Info("Swagger UI endpoint registered at /swagger/index.html")

	r.POST("/generate", apiKeyAuth, rateLimit, storyHandler.GenerateStory)

	api := r.Group("/api/v1")
	{
		api.GET("/health", healthHandler.Health)

		stories := api.Group("/stories")
		stories.Use(apiKeyAuth)
		{
			stories.POST("/generate", rateLimit, storyHandler.GenerateStory)
			stories.POST("/jobs", rateLimit, storyHandler.CreateStoryJob)
			stories.GET("", storyHandler.ListStories)
			stories.GET("/export", storyHandler.ExportStories)
			stories.GET("/:id", storyHandler.GetStory)
			stories.DELETE("/:id", storyHandler.DeleteStory)
			stories.GET("/:id/events", storyHandler.StreamStoryEvents)
		}
	}

	return r
}

func allowsAllOrigins(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
