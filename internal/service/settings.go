package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/store"
)

type SettingsService interface {
	// Get returns the stored settings, or the defaults when none are stored.
	Get(ctx context.Context) (*model.AppSettings, error)
	Save(ctx context.Context, settings model.AppSettings) error
}

type settingsService struct {
	store store.SettingStore
}

func NewSettingsService(settingStore store.SettingStore) SettingsService {
	return &settingsService{store: settingStore}
}

func (s *settingsService) Get(ctx context.Context) (*model.AppSettings, error) {
	setting, err := s.store.Get(ctx, model.SettingKeyApp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			defaults := model.DefaultAppSettings()
			return &defaults, nil
		}
		return nil, fmt.Errorf("getting app settings: %w", err)
	}

	settings := model.DefaultAppSettings()
	if err := json.Unmarshal([]byte(setting.Value), &settings); err != nil {
		return nil, fmt.Errorf("decoding app settings: %w", err)
	}
	return &settings, nil
}

func (s *settingsService) Save(ctx context.Context, settings model.AppSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if _, err := s.store.Upsert(ctx, model.SettingKeyApp, string(raw)); err != nil {
		return fmt.Errorf("saving app settings: %w", err)
	}
	return nil
}
