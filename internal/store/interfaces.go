package store

import (
	"context"
	"errors"

	"lifecalendar.app/api/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// SettingStore is the key/value settings table.
type SettingStore interface {
	Get(ctx context.Context, key string) (*model.Setting, error)
	Upsert(ctx context.Context, key, value string) (*model.Setting, error)
}

// CredentialStore holds the single set of Withings app credentials.
type CredentialStore interface {
	Get(ctx context.Context) (*model.WithingsCredentials, error)
	Upsert(ctx context.Context, creds model.WithingsCredentials) error
}

// WithingsTokenStore holds one OAuth token record per user.
// Upsert creates the record when none exists for token.UserID.
type WithingsTokenStore interface {
	GetByUser(ctx context.Context, userID string) (*model.WithingsToken, error)
	Upsert(ctx context.Context, token *model.WithingsToken) error
	List(ctx context.Context) ([]model.WithingsToken, error)
}

// DayCache caches normalized day snapshots. A miss returns ErrNotFound.
type DayCache interface {
	Get(ctx context.Context, userID, date string) (*model.DayHealthSnapshot, error)
	Set(ctx context.Context, userID, date string, snapshot *model.DayHealthSnapshot) error
}

// OAuthStateStore tracks OAuth state nonces issued by the initiate endpoint.
type OAuthStateStore interface {
	Save(ctx context.Context, state string) error
	// Consume deletes the nonce and reports whether it was outstanding.
	Consume(ctx context.Context, state string) (bool, error)
}
