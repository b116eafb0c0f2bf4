package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lifecalendar.app/api/internal/http/handler"
	"lifecalendar.app/api/internal/service"
)

type RouterConfig struct {
	AdminAPIKey string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	withingsHandler := handler.NewWithingsHandler(services.OAuth(), services.Day(), services.Backfill())
	WithingsRouter(router.Group("/withings"), withingsHandler)

	adminHandler := handler.NewAdminHandler(services.Credentials(), services.Settings(), cfg.AdminAPIKey)
	AdminRouter(router.Group("/admin"), adminHandler)
}
