package worker

import (
	"context"
	"time"

	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/queue"
	"lifecalendar.app/api/internal/service"
)

// TokenLister abstracts the token store for testability.
type TokenLister interface {
	List(ctx context.Context) ([]model.WithingsToken, error)
}

// TokenRefresher abstracts the OAuth service for testability.
type TokenRefresher interface {
	RefreshIfExpiring(ctx context.Context, userID string, window time.Duration) (*model.WithingsToken, bool, error)
}

// DayWarmer abstracts the day aggregator for testability.
type DayWarmer interface {
	GetDay(ctx context.Context, userID, date string, opts service.DayOptions) (*model.DayHealthSnapshot, error)
}

// BackfillQueue is the slice of queue.RedisConsumer the backfill worker uses.
type BackfillQueue interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}
