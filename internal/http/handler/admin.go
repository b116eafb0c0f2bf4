package handler

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"lifecalendar.app/api/internal/http/dto"
	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/service"
)

type AdminHandler struct {
	credentials service.CredentialService
	settings    service.SettingsService
	adminAPIKey string
}

func NewAdminHandler(credentials service.CredentialService, settings service.SettingsService, adminAPIKey string) *AdminHandler {
	return &AdminHandler{
		credentials: credentials,
		settings:    settings,
		adminAPIKey: adminAPIKey,
	}
}

// GetCredentials returns the stored credentials with the secret masked, or null.
func (h *AdminHandler) GetCredentials(c *gin.Context) {
	ctx := c.Request.Context()

	creds, err := h.credentials.Get(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get withings credentials", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, dto.ToCredentialsResponse(creds))
}

func (h *AdminHandler) SaveCredentials(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SaveCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	if err := h.credentials.Save(ctx, req.ToModel()); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to save withings credentials", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}

// TestOAuth reports whether the stored credentials are complete.
func (h *AdminHandler) TestOAuth(c *gin.Context) {
	ctx := c.Request.Context()

	check, err := h.credentials.Test(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to test withings credentials", "error", err)
		c.JSON(http.StatusInternalServerError, dto.CredentialCheckResponse{Success: false, Message: "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, dto.CredentialCheckResponse{Success: check.OK, Message: check.Message})
}

func (h *AdminHandler) GetSettings(c *gin.Context) {
	ctx := c.Request.Context()

	settings, err := h.settings.Get(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, settings)
}

func (h *AdminHandler) SaveSettings(c *gin.Context) {
	ctx := c.Request.Context()

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	var req *model.AppSettings
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	if req == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing settings payload"})
		return
	}

	if err := h.settings.Save(ctx, *req); err != nil {
		if errors.Is(err, service.ErrInvalidSettings) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to save settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}

// RequireAdminAPIKey middleware checks for valid admin API key
func (h *AdminHandler) RequireAdminAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.adminAPIKey == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin API not configured"})
			c.Abort()
			return
		}

		apiKey := c.GetHeader("X-Admin-API-Key")
		if apiKey == "" {
			apiKey = c.GetHeader("Authorization")
			if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
				apiKey = apiKey[7:]
			}
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(h.adminAPIKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
