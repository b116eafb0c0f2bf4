package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lifecalendar.app/api/internal/model"
)

const dayCacheKeyPrefix = "withings:day:"

type dayCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func newDayCache(client redis.Cmdable, ttl time.Duration) DayCache {
	return &dayCache{client: client, ttl: ttl}
}

func dayCacheKey(userID, date string) string {
	return dayCacheKeyPrefix + userID + ":" + date
}

func (c *dayCache) Get(ctx context.Context, userID, date string) (*model.DayHealthSnapshot, error) {
	raw, err := c.client.Get(ctx, dayCacheKey(userID, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading day cache: %w", err)
	}

	var snapshot model.DayHealthSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding day cache: %w", err)
	}
	return &snapshot, nil
}

func (c *dayCache) Set(ctx context.Context, userID, date string, snapshot *model.DayHealthSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding day cache: %w", err)
	}
	if err := c.client.Set(ctx, dayCacheKey(userID, date), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing day cache: %w", err)
	}
	return nil
}
