package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"lifecalendar.app/api/internal/queue"
)

// BackfillScheduler queues a cache warm-up for a user who just connected.
type BackfillScheduler interface {
	ScheduleBackfill(ctx context.Context, userID string) error
}

type BackfillConfig struct {
	// Producer is nil for processes that never schedule backfills.
	Producer queue.Producer
	Days     int
}

type backfillScheduler struct {
	producer queue.Producer
	days     int
}

func NewBackfillScheduler(cfg BackfillConfig) BackfillScheduler {
	return &backfillScheduler{producer: cfg.Producer, days: cfg.Days}
}

func (s *backfillScheduler) ScheduleBackfill(ctx context.Context, userID string) error {
	if s.producer == nil || s.days <= 0 {
		slog.DebugContext(ctx, "backfill disabled, skipping")
		return nil
	}

	task := queue.Task{
		TaskType: queue.TaskTypeBackfill,
		UserID:   userID,
		Days:     s.days,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID := sc.TraceID().String()
		task.TraceID = &traceID
	}

	return s.producer.Enqueue(ctx, task)
}
