package service

import (
	"lifecalendar.app/api/internal/store"
)

type Services struct {
	stores   *store.Stores
	client   WithingsClient
	oauth    OAuthService
	backfill BackfillScheduler
}

// NewServices wires the services. The OAuth service is built once so every
// caller shares its refresh deduplication.
func NewServices(stores *store.Stores, client WithingsClient, oauthCfg OAuthConfig, backfillCfg BackfillConfig) *Services {
	return &Services{
		stores: stores,
		client: client,
		oauth: NewOAuthService(
			stores.Credentials(),
			stores.WithingsTokens(),
			stores.OAuthStates(),
			client,
			oauthCfg,
		),
		backfill: NewBackfillScheduler(backfillCfg),
	}
}

func (s *Services) OAuth() OAuthService {
	return s.oauth
}

func (s *Services) Backfill() BackfillScheduler {
	return s.backfill
}

func (s *Services) Day() DayService {
	return NewDayService(s.oauth, s.client, s.stores.DayCache())
}

func (s *Services) Credentials() CredentialService {
	return NewCredentialService(s.stores.Credentials())
}

func (s *Services) Settings() SettingsService {
	return NewSettingsService(s.stores.Settings())
}

func (s *Services) WithingsTokens() store.WithingsTokenStore {
	return s.stores.WithingsTokens()
}
