package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const oauthStateKeyPrefix = "withings:oauth_state:"

type oauthStateStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func newOAuthStateStore(client redis.Cmdable, ttl time.Duration) OAuthStateStore {
	return &oauthStateStore{client: client, ttl: ttl}
}

func (s *oauthStateStore) Save(ctx context.Context, state string) error {
	if err := s.client.Set(ctx, oauthStateKeyPrefix+state, "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("saving oauth state: %w", err)
	}
	return nil
}

func (s *oauthStateStore) Consume(ctx context.Context, state string) (bool, error) {
	err := s.client.GetDel(ctx, oauthStateKeyPrefix+state).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("consuming oauth state: %w", err)
	}
	return true, nil
}
