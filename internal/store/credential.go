package store

import (
	"context"
	"encoding/json"
	"fmt"

	"lifecalendar.app/api/common/crypto"
	"lifecalendar.app/api/internal/model"
)

// credentialStore keeps the Withings app credentials as a sealed JSON
// document in the settings table.
type credentialStore struct {
	settings SettingStore
	cipher   crypto.Cipher
}

func newCredentialStore(settings SettingStore, cipher crypto.Cipher) CredentialStore {
	return &credentialStore{settings: settings, cipher: cipher}
}

func (s *credentialStore) Get(ctx context.Context) (*model.WithingsCredentials, error) {
	setting, err := s.settings.Get(ctx, model.SettingKeyWithingsCredentials)
	if err != nil {
		return nil, err
	}

	plain, err := s.cipher.Decrypt(setting.Value)
	if err != nil {
		return nil, fmt.Errorf("decrypting withings credentials: %w", err)
	}

	var creds model.WithingsCredentials
	if err := json.Unmarshal([]byte(plain), &creds); err != nil {
		return nil, fmt.Errorf("decoding withings credentials: %w", err)
	}
	return &creds, nil
}

func (s *credentialStore) Upsert(ctx context.Context, creds model.WithingsCredentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encoding withings credentials: %w", err)
	}

	sealed, err := s.cipher.Encrypt(string(raw))
	if err != nil {
		return fmt.Errorf("encrypting withings credentials: %w", err)
	}

	if _, err := s.settings.Upsert(ctx, model.SettingKeyWithingsCredentials, sealed); err != nil {
		return fmt.Errorf("saving withings credentials: %w", err)
	}
	return nil
}
