package store

import (
	"time"

	"github.com/redis/go-redis/v9"

	"lifecalendar.app/api/common/crypto"
	"lifecalendar.app/api/core/db"
)

type Stores struct {
	queries db.Querier
	cipher  crypto.Cipher
	redis   redis.Cmdable
	cfg     Config
}

// Config holds cache lifetimes for the Redis-backed stores.
type Config struct {
	DayTTL   time.Duration
	StateTTL time.Duration
}

func NewStores(queries db.Querier, cipher crypto.Cipher, redisClient redis.Cmdable, cfg Config) *Stores {
	return &Stores{
		queries: queries,
		cipher:  cipher,
		redis:   redisClient,
		cfg:     cfg,
	}
}

func (s *Stores) Settings() SettingStore {
	return newSettingStore(s.queries)
}

func (s *Stores) Credentials() CredentialStore {
	return newCredentialStore(s.Settings(), s.cipher)
}

func (s *Stores) WithingsTokens() WithingsTokenStore {
	return newWithingsTokenStore(s.queries, s.cipher)
}

func (s *Stores) DayCache() DayCache {
	return newDayCache(s.redis, s.cfg.DayTTL)
}

func (s *Stores) OAuthStates() OAuthStateStore {
	return newOAuthStateStore(s.redis, s.cfg.StateTTL)
}
