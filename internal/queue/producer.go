package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Enqueue(ctx context.Context, task Task) error
}

type redisProducer struct {
	client redis.Cmdable
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client redis.Cmdable, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, task Task) error {
	if task.TaskType == "" {
		task.TaskType = TaskTypeBackfill
	}
	if task.Attempt <= 0 {
		task.Attempt = 1
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: taskValues(task),
	}).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued task", "task_type", task.TaskType, "user_id", task.UserID, "days", task.Days, "attempt", task.Attempt)
	return nil
}

func taskValues(task Task) map[string]any {
	values := map[string]any{
		"task_type": string(task.TaskType),
		"user_id":   task.UserID,
		"days":      task.Days,
		"attempt":   task.Attempt,
	}
	if task.TraceID != nil && *task.TraceID != "" {
		values["trace_id"] = *task.TraceID
	}
	return values
}
