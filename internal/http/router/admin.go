package router

import (
	"github.com/gin-gonic/gin"

	"lifecalendar.app/api/internal/http/handler"
)

// AdminRouter sets up admin routes. All of them require the admin API key.
func AdminRouter(rg *gin.RouterGroup, h *handler.AdminHandler) {
	admin := rg.Group("")
	admin.Use(h.RequireAdminAPIKey())
	{
		admin.GET("/withings/credentials", h.GetCredentials)
		admin.POST("/withings/credentials", h.SaveCredentials)
		admin.GET("/withings/test-oauth", h.TestOAuth)
		admin.GET("/settings", h.GetSettings)
		admin.POST("/settings", h.SaveSettings)
	}
}
