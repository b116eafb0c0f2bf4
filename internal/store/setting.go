package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"lifecalendar.app/api/common/id"
	"lifecalendar.app/api/core/db"
	"lifecalendar.app/api/internal/model"
)

type settingStore struct {
	queries db.Querier
}

func newSettingStore(queries db.Querier) SettingStore {
	return &settingStore{queries: queries}
}

const getSettingSQL = `
SELECT id, key, value, created_at, updated_at
FROM settings
WHERE key = $1`

const upsertSettingSQL = `
INSERT INTO settings (id, key, value)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value, updated_at = now()
RETURNING id, key, value, created_at, updated_at`

func (s *settingStore) Get(ctx context.Context, key string) (*model.Setting, error) {
	row := s.queries.QueryRow(ctx, getSettingSQL, key)
	setting, err := scanSetting(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return setting, nil
}

func (s *settingStore) Upsert(ctx context.Context, key, value string) (*model.Setting, error) {
	row := s.queries.QueryRow(ctx, upsertSettingSQL, id.New(), key, value)
	return scanSetting(row)
}

func scanSetting(row pgx.Row) (*model.Setting, error) {
	var setting model.Setting
	if err := row.Scan(&setting.ID, &setting.Key, &setting.Value, &setting.CreatedAt, &setting.UpdatedAt); err != nil {
		return nil, err
	}
	return &setting, nil
}
