package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"lifecalendar.app/api/common"
	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/store"
)

// MaskedCredentials is the admin view of the stored credentials.
type MaskedCredentials struct {
	ClientID           string
	ClientSecretMasked string
	RedirectURI        string
	Scopes             []string
}

// CredentialCheck is the outcome of a credential self-test.
type CredentialCheck struct {
	Message string
	OK      bool
}

type CredentialService interface {
	// Get returns nil, nil when no credentials are stored.
	Get(ctx context.Context) (*MaskedCredentials, error)
	Save(ctx context.Context, creds model.WithingsCredentials) error
	// Test checks that credentials are present and complete without calling Withings.
	Test(ctx context.Context) (*CredentialCheck, error)
}

type credentialService struct {
	store store.CredentialStore
}

func NewCredentialService(credentialStore store.CredentialStore) CredentialService {
	return &credentialService{store: credentialStore}
}

func (s *credentialService) Get(ctx context.Context) (*MaskedCredentials, error) {
	creds, err := s.store.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting withings credentials: %w", err)
	}

	return &MaskedCredentials{
		ClientID:           creds.ClientID,
		ClientSecretMasked: common.MaskSecret(creds.ClientSecret),
		RedirectURI:        creds.RedirectURI,
		Scopes:             creds.Scopes,
	}, nil
}

func (s *credentialService) Save(ctx context.Context, creds model.WithingsCredentials) error {
	creds.ClientID = strings.TrimSpace(creds.ClientID)
	creds.ClientSecret = strings.TrimSpace(creds.ClientSecret)
	creds.RedirectURI = strings.TrimSpace(creds.RedirectURI)
	if field := creds.MissingField(); field != "" {
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, field)
	}

	if err := s.store.Upsert(ctx, creds); err != nil {
		return err
	}

	slog.InfoContext(ctx, "withings credentials updated",
		"client_id", creds.ClientID,
		"client_secret", common.MaskSecret(creds.ClientSecret),
		"scopes", len(creds.Scopes),
	)
	return nil
}

func (s *credentialService) Test(ctx context.Context) (*CredentialCheck, error) {
	creds, err := s.store.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &CredentialCheck{OK: false, Message: "No credentials stored"}, nil
		}
		return nil, fmt.Errorf("getting withings credentials: %w", err)
	}

	switch {
	case creds.ClientID == "" || creds.ClientSecret == "":
		return &CredentialCheck{OK: false, Message: "Missing client ID or secret"}, nil
	case creds.RedirectURI == "":
		return &CredentialCheck{OK: false, Message: "Missing redirect URI"}, nil
	}
	return &CredentialCheck{OK: true, Message: "Credentials are present. Complete OAuth by connecting via Withings."}, nil
}
