package dto

import (
	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/service"
)

type SaveCredentialsRequest struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURI  string   `json:"redirect_uri"`
	Scopes       []string `json:"scopes"`
}

func (r SaveCredentialsRequest) ToModel() model.WithingsCredentials {
	return model.WithingsCredentials{
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		RedirectURI:  r.RedirectURI,
		Scopes:       r.Scopes,
	}
}

// CredentialsResponse never carries the real secret. client_secret holds the
// masked value for clients that read that field.
type CredentialsResponse struct {
	ClientID           string   `json:"client_id"`
	ClientSecret       string   `json:"client_secret"`
	ClientSecretMasked string   `json:"client_secret_masked"`
	RedirectURI        string   `json:"redirect_uri"`
	Scopes             []string `json:"scopes"`
}

func ToCredentialsResponse(c *service.MaskedCredentials) *CredentialsResponse {
	if c == nil {
		return nil
	}
	scopes := c.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return &CredentialsResponse{
		ClientID:           c.ClientID,
		ClientSecret:       c.ClientSecretMasked,
		ClientSecretMasked: c.ClientSecretMasked,
		RedirectURI:        c.RedirectURI,
		Scopes:             scopes,
	}
}

type CredentialCheckResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
