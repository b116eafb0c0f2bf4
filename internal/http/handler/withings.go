package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lifecalendar.app/api/common/logger"
	"lifecalendar.app/api/internal/http/dto"
	"lifecalendar.app/api/internal/service"
)

type WithingsHandler struct {
	oauth    service.OAuthService
	days     service.DayService
	backfill service.BackfillScheduler
}

func NewWithingsHandler(oauth service.OAuthService, days service.DayService, backfill service.BackfillScheduler) *WithingsHandler {
	return &WithingsHandler{
		oauth:    oauth,
		days:     days,
		backfill: backfill,
	}
}

// Day returns the normalized Withings data for ?date=YYYY-MM-DD&userId=.
// ?refresh=true skips the day cache.
func (h *WithingsHandler) Day(c *gin.Context) {
	ctx := c.Request.Context()

	userID := strings.TrimSpace(c.Query("userId"))
	date := strings.TrimSpace(c.Query("date"))
	if userID == "" || date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date and userId are required"})
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{UserID: &userID, Date: &date})

	snapshot, err := h.days.GetDay(ctx, userID, date, service.DayOptions{
		BypassCache: c.Query("refresh") == "true",
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNotConnected):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_connected"})
		case errors.Is(err, service.ErrConfiguration):
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "not_configured"})
		case service.IsUpstream(err):
			slog.WarnContext(ctx, "withings day fetch failed upstream", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			slog.ErrorContext(ctx, "failed to get withings day", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get withings data"})
		}
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// Initiate starts the OAuth flow and returns the Withings authorize URL.
func (h *WithingsHandler) Initiate(c *gin.Context) {
	ctx := c.Request.Context()

	authReq, err := h.oauth.AuthorizationURL(ctx)
	if err != nil {
		if errors.Is(err, service.ErrConfiguration) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No Withings credentials stored", "code": "not_configured"})
			return
		}
		slog.ErrorContext(ctx, "failed to initiate withings oauth", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, dto.OAuthInitiateResponse{
		AuthURL: authReq.URL,
		State:   authReq.State,
	})
}

// Callback exchanges the authorization code and stores the user's tokens.
func (h *WithingsHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.OAuthCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing code or userId"})
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{UserID: &req.UserID})

	if req.State != "" {
		if err := h.oauth.VerifyState(ctx, req.State); err != nil {
			if errors.Is(err, service.ErrInvalidState) {
				slog.WarnContext(ctx, "rejected oauth callback with unknown state")
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			slog.ErrorContext(ctx, "failed to verify oauth state", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
	}

	token, grant, err := h.oauth.ExchangeCode(ctx, req.UserID, req.Code)
	if err != nil {
		slog.ErrorContext(ctx, "withings oauth callback failed", "error", err)
		if errors.Is(err, service.ErrConfiguration) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "not_configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// The tokens are stored, a failed enqueue only delays the first cached days.
	if err := h.backfill.ScheduleBackfill(ctx, req.UserID); err != nil {
		slog.WarnContext(ctx, "failed to schedule withings backfill", "error", err)
	}

	c.JSON(http.StatusOK, dto.OAuthCallbackResponse{
		Success:   true,
		UserID:    grant.WithingsUser,
		ExpiresAt: token.ExpiresAt,
	})
}

// Status reports whether ?userId= has connected Withings.
func (h *WithingsHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	status, err := h.oauth.Status(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get withings status", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get withings status"})
		return
	}

	c.JSON(http.StatusOK, dto.ToConnectionStatusResponse(status))
}
