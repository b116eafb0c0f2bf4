package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"lifecalendar.app/api/common/crypto"
	"lifecalendar.app/api/common/id"
	"lifecalendar.app/api/core/db"
	"lifecalendar.app/api/internal/model"
)

type withingsTokenStore struct {
	queries db.Querier
	cipher  crypto.Cipher
}

func newWithingsTokenStore(queries db.Querier, cipher crypto.Cipher) WithingsTokenStore {
	return &withingsTokenStore{queries: queries, cipher: cipher}
}

const tokenColumns = `id, user_id, access_token, refresh_token, expires_at, created_at, updated_at`

const getTokenByUserSQL = `
SELECT ` + tokenColumns + `
FROM withings_tokens
WHERE user_id = $1`

const upsertTokenSQL = `
INSERT INTO withings_tokens (id, user_id, access_token, refresh_token, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE
SET access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    expires_at = EXCLUDED.expires_at,
    updated_at = now()
RETURNING id, created_at, updated_at`

const listTokensSQL = `
SELECT ` + tokenColumns + `
FROM withings_tokens
ORDER BY user_id`

func (s *withingsTokenStore) GetByUser(ctx context.Context, userID string) (*model.WithingsToken, error) {
	row := s.queries.QueryRow(ctx, getTokenByUserSQL, userID)
	token, err := s.scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return token, nil
}

func (s *withingsTokenStore) Upsert(ctx context.Context, token *model.WithingsToken) error {
	access, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypting access token: %w", err)
	}
	refresh, err := s.cipher.Encrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypting refresh token: %w", err)
	}

	rowID := token.ID
	if rowID == 0 {
		rowID = id.New()
	}

	err = s.queries.QueryRow(ctx, upsertTokenSQL,
		rowID,
		token.UserID,
		access,
		refresh,
		timeToPgTimestamptz(token.ExpiresAt),
	).Scan(&token.ID, &token.CreatedAt, &token.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting withings token: %w", err)
	}
	return nil
}

func (s *withingsTokenStore) List(ctx context.Context) ([]model.WithingsToken, error) {
	rows, err := s.queries.Query(ctx, listTokensSQL)
	if err != nil {
		return nil, err
	}
	return s.collect(rows)
}

func (s *withingsTokenStore) collect(rows pgx.Rows) ([]model.WithingsToken, error) {
	defer rows.Close()

	var tokens []model.WithingsToken
	for rows.Next() {
		token, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *withingsTokenStore) scan(row pgx.Row) (*model.WithingsToken, error) {
	var (
		token     model.WithingsToken
		access    string
		refresh   string
		expiresAt pgtype.Timestamptz
	)
	if err := row.Scan(&token.ID, &token.UserID, &access, &refresh, &expiresAt, &token.CreatedAt, &token.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if token.AccessToken, err = s.cipher.Decrypt(access); err != nil {
		return nil, fmt.Errorf("decrypting access token for %s: %w", token.UserID, err)
	}
	if token.RefreshToken, err = s.cipher.Decrypt(refresh); err != nil {
		return nil, fmt.Errorf("decrypting refresh token for %s: %w", token.UserID, err)
	}
	if expiresAt.Valid {
		token.ExpiresAt = expiresAt.Time
	}
	return &token, nil
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
