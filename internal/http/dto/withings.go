package dto

import (
	"time"

	"lifecalendar.app/api/internal/service"
)

type OAuthCallbackRequest struct {
	Code   string `json:"code" binding:"required"`
	UserID string `json:"userId" binding:"required"`
	// State is verified when present. Older clients verify it themselves.
	State string `json:"state"`
}

type OAuthCallbackResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"userid"`
	Success   bool      `json:"success"`
}

type OAuthInitiateResponse struct {
	AuthURL string `json:"authUrl"`
	State   string `json:"state"`
}

type ConnectionStatusResponse struct {
	ExpiresAt *time.Time `json:"expires_at"`
	Connected bool       `json:"connected"`
}

func ToConnectionStatusResponse(s *service.ConnectionStatus) ConnectionStatusResponse {
	return ConnectionStatusResponse{
		Connected: s.Connected,
		ExpiresAt: s.ExpiresAt,
	}
}
