package handlers

import (
	"github.com/gin-gonic/gin"

	"video-studio/internal/config"
	"video-studio/internal/middleware"
)

// NewRouter mounts the public and authenticated routes.
func NewRouter(cfg *config.Config, health *HealthHandler, videos *VideosHandler, credits *CreditsHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", health.Check)

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg))
	{
		api.POST("/videos", videos.CreateVideo)
		api.PUT("/videos/:id", videos.UpdateVideo)
		api.GET("/videos/:id/status", videos.GetVideoStatus)
		api.GET("/videos/:id/download", videos.DownloadVideo)

		api.GET("/video-credits/current-user", credits.GetCurrentUserCredits)
		api.GET("/video-creditos/current-user", credits.GetCurrentUserCredits)
	}

	return router
}
