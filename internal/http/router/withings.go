package router

import (
	"github.com/gin-gonic/gin"

	"lifecalendar.app/api/internal/http/handler"
)

func WithingsRouter(rg *gin.RouterGroup, h *handler.WithingsHandler) {
	rg.GET("/day", h.Day)
	rg.GET("/status", h.Status)
	rg.GET("/oauth/initiate", h.Initiate)
	rg.POST("/oauth/callback", h.Callback)
}
