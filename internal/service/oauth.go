package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"lifecalendar.app/api/common/logger"
	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/observability"
	"lifecalendar.app/api/internal/store"
	"lifecalendar.app/api/internal/withings"
)

const stateBytes = 16

type OAuthConfig struct {
	AuthorizeURL  string
	DefaultScopes []string
	// RefreshSkew is how close to expiry a token may get before GetValidToken refreshes it.
	RefreshSkew time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// AuthorizationRequest is what the initiate endpoint hands the browser.
type AuthorizationRequest struct {
	URL   string
	State string
}

// ConnectionStatus reports whether a user has a stored Withings token.
type ConnectionStatus struct {
	ExpiresAt *time.Time
	Connected bool
}

// OAuthService owns the Withings token lifecycle.
type OAuthService interface {
	// GetValidToken returns a token that stays valid for at least the
	// configured skew, refreshing it first when needed.
	GetValidToken(ctx context.Context, userID string) (*model.WithingsToken, error)
	// RefreshIfExpiring refreshes the token when it expires within window.
	// The bool reports whether a refresh happened.
	RefreshIfExpiring(ctx context.Context, userID string, window time.Duration) (*model.WithingsToken, bool, error)
	ExchangeCode(ctx context.Context, userID, code string) (*model.WithingsToken, *model.TokenGrant, error)
	AuthorizationURL(ctx context.Context) (*AuthorizationRequest, error)
	// VerifyState consumes a state nonce issued by AuthorizationURL.
	VerifyState(ctx context.Context, state string) error
	Status(ctx context.Context, userID string) (*ConnectionStatus, error)
}

type oauthService struct {
	credentials store.CredentialStore
	tokens      store.WithingsTokenStore
	states      store.OAuthStateStore
	client      WithingsClient
	cfg         OAuthConfig
	refreshes   *singleflight.Group
}

func NewOAuthService(
	credentials store.CredentialStore,
	tokens store.WithingsTokenStore,
	states store.OAuthStateStore,
	client WithingsClient,
	cfg OAuthConfig,
) OAuthService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &oauthService{
		credentials: credentials,
		tokens:      tokens,
		states:      states,
		client:      client,
		cfg:         cfg,
		refreshes:   &singleflight.Group{},
	}
}

func (s *oauthService) GetValidToken(ctx context.Context, userID string) (*model.WithingsToken, error) {
	token, _, err := s.RefreshIfExpiring(ctx, userID, s.cfg.RefreshSkew)
	return token, err
}

func (s *oauthService) RefreshIfExpiring(ctx context.Context, userID string, window time.Duration) (*model.WithingsToken, bool, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(userID),
		Component: "lifecal.service.oauth",
	})

	creds, err := s.loadCredentials(ctx)
	if err != nil {
		return nil, false, err
	}

	token, err := s.tokens.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, ErrNotConnected
		}
		return nil, false, fmt.Errorf("getting withings token: %w", err)
	}

	if !token.ExpiresWithin(s.cfg.Now(), window) {
		return token, false, nil
	}

	refreshed, err := s.refresh(ctx, creds, token)
	if err != nil {
		return nil, false, err
	}
	return refreshed, true, nil
}

// refresh collapses concurrent refreshes for one user into a single remote call.
func (s *oauthService) refresh(ctx context.Context, creds *model.WithingsCredentials, token *model.WithingsToken) (*model.WithingsToken, error) {
	// The shared call must not die with whichever caller happened to start it.
	flightCtx := context.WithoutCancel(ctx)

	result, err, shared := s.refreshes.Do(token.UserID, func() (any, error) {
		sc := logger.StartSpan(flightCtx, "oauth.refresh_token")
		defer sc.End()

		grant, err := s.client.RefreshToken(sc.Context(), withings.RefreshRequest{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RefreshToken: token.RefreshToken,
		})
		if err != nil {
			sc.RecordError(err)
			observability.RecordTokenRefresh(err)
			return nil, fmt.Errorf("%w: %w", ErrRefresh, err)
		}

		updated := &model.WithingsToken{
			ID:           token.ID,
			UserID:       token.UserID,
			AccessToken:  grant.AccessToken,
			RefreshToken: grant.RefreshToken,
			ExpiresAt:    s.expiry(grant),
		}
		if err := s.tokens.Upsert(sc.Context(), updated); err != nil {
			sc.RecordError(err)
			observability.RecordTokenRefresh(err)
			return nil, fmt.Errorf("%w: storing refreshed token: %w", ErrRefresh, err)
		}

		observability.RecordTokenRefresh(nil)
		slog.InfoContext(sc.Context(), "withings token refreshed", "expires_at", updated.ExpiresAt)
		return updated, nil
	})
	if err != nil {
		slog.WarnContext(ctx, "withings token refresh failed", "error", err, "shared", shared)
		return nil, err
	}

	// Followers get a copy so callers never share a mutable record.
	refreshed := *result.(*model.WithingsToken)
	return &refreshed, nil
}

func (s *oauthService) ExchangeCode(ctx context.Context, userID, code string) (*model.WithingsToken, *model.TokenGrant, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(userID),
		Component: "lifecal.service.oauth",
	})

	creds, err := s.loadCredentials(ctx)
	if err != nil {
		return nil, nil, err
	}

	grant, err := s.client.ExchangeCodeForToken(ctx, withings.ExchangeRequest{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURI:  creds.RedirectURI,
		Code:         code,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrOAuthExchange, err)
	}

	token := &model.WithingsToken{
		UserID:       userID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    s.expiry(grant),
	}
	if err := s.tokens.Upsert(ctx, token); err != nil {
		return nil, nil, fmt.Errorf("%w: storing token: %w", ErrOAuthExchange, err)
	}

	slog.InfoContext(ctx, "withings account connected",
		"withings_user", grant.WithingsUser,
		"expires_at", token.ExpiresAt,
	)
	return token, grant, nil
}

func (s *oauthService) AuthorizationURL(ctx context.Context) (*AuthorizationRequest, error) {
	creds, err := s.loadCredentials(ctx)
	if err != nil {
		return nil, err
	}

	state, err := newState()
	if err != nil {
		return nil, fmt.Errorf("generating oauth state: %w", err)
	}
	if err := s.states.Save(ctx, state); err != nil {
		return nil, err
	}

	scopes := creds.Scopes
	if len(scopes) == 0 {
		scopes = s.cfg.DefaultScopes
	}

	oauthCfg := oauth2.Config{
		ClientID:    creds.ClientID,
		RedirectURL: creds.RedirectURI,
		// Withings expects one comma-separated scope parameter.
		Scopes:   []string{strings.Join(scopes, ",")},
		Endpoint: oauth2.Endpoint{AuthURL: s.cfg.AuthorizeURL},
	}

	return &AuthorizationRequest{URL: oauthCfg.AuthCodeURL(state), State: state}, nil
}

func (s *oauthService) VerifyState(ctx context.Context, state string) error {
	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidState
	}
	return nil
}

func (s *oauthService) Status(ctx context.Context, userID string) (*ConnectionStatus, error) {
	token, err := s.tokens.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &ConnectionStatus{Connected: false}, nil
		}
		return nil, fmt.Errorf("getting withings token: %w", err)
	}

	status := &ConnectionStatus{Connected: true}
	if !token.ExpiresAt.IsZero() {
		expiresAt := token.ExpiresAt
		status.ExpiresAt = &expiresAt
	}
	return status, nil
}

func (s *oauthService) loadCredentials(ctx context.Context) (*model.WithingsCredentials, error) {
	creds, err := s.credentials.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConfiguration
		}
		return nil, fmt.Errorf("getting withings credentials: %w", err)
	}
	if creds.MissingField() != "" {
		return nil, ErrConfiguration
	}
	return creds, nil
}

func (s *oauthService) expiry(grant *model.TokenGrant) time.Time {
	return s.cfg.Now().Add(time.Duration(grant.ExpiresIn) * time.Second).UTC()
}

func newState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
