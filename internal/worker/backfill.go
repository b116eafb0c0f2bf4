package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lifecalendar.app/api/common/logger"
	"lifecalendar.app/api/internal/observability"
	"lifecalendar.app/api/internal/queue"
	"lifecalendar.app/api/internal/service"
)

type BackfillConfig struct {
	MaxAttempts int
	// ErrorBackoff is the pause after a failed stream read.
	ErrorBackoff time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// BackfillWorker consumes backfill tasks and warms the day cache for users
// who just connected Withings.
type BackfillWorker struct {
	queue BackfillQueue
	days  DayWarmer
	cfg   BackfillConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewBackfillWorker(q BackfillQueue, days DayWarmer, cfg BackfillConfig) *BackfillWorker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &BackfillWorker{
		queue:     q,
		days:      days,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *BackfillWorker) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "lifecal.worker.backfill",
	})

	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "backfill worker started", "max_attempts", w.cfg.MaxAttempts)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "backfill worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-ctx.Done():
				case <-w.stopCh:
				case <-time.After(w.cfg.ErrorBackoff):
				}
			}
		}
	}
}

func (w *BackfillWorker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *BackfillWorker) processOneBatch(ctx context.Context) error {
	messages, err := w.queue.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		_ = w.HandleMessage(ctx, msg)
	}

	return nil
}

// HandleMessage processes msg and routes a failure to requeue or the DLQ.
// The processing error is returned for the caller to log.
func (w *BackfillWorker) HandleMessage(ctx context.Context, msg queue.Message) error {
	if err := w.processMessageSafe(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "message processing failed",
			"error", err,
			"message_id", msg.ID,
			"user_id", msg.UserID)
		w.handleFailedMessage(ctx, msg, err)
		return err
	}
	return nil
}

func (w *BackfillWorker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"user_id", msg.UserID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage warms msg.Days days ending today. It acks the message unless
// an upstream failure makes a retry worthwhile.
func (w *BackfillWorker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	userID, msgID := msg.UserID, msg.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{UserID: &userID, MessageID: &msgID})

	slog.InfoContext(ctx, "processing backfill", "days", msg.Days, "attempt", msg.Attempt)

	warm := warmDays(ctx, w.days, msg.UserID, w.cfg.Now().UTC(), msg.Days)

	switch {
	case warm.lastErr == nil:
		observability.RecordBackfillTask(observability.OutcomeSuccess)
	case errors.Is(warm.lastErr, service.ErrNotConnected), errors.Is(warm.lastErr, service.ErrConfiguration):
		// Retrying cannot help until the user reconnects or an admin stores credentials.
		slog.WarnContext(ctx, "dropping backfill", "error", warm.lastErr)
		observability.RecordBackfillTask(observability.OutcomeSkipped)
	case service.IsUpstream(warm.lastErr), errors.Is(warm.lastErr, context.Canceled), errors.Is(warm.lastErr, context.DeadlineExceeded):
		return fmt.Errorf("backfill incomplete (%d/%d days): %w", warm.warmed, msg.Days, warm.lastErr)
	default:
		slog.WarnContext(ctx, "backfill finished with skipped days", "error", warm.lastErr, "skipped", warm.skipped)
		observability.RecordBackfillTask(observability.OutcomeSuccess)
	}

	if err := w.queue.Ack(ctx, msg); err != nil {
		// The reclaimer will redeliver, warming again is harmless.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}

	slog.InfoContext(ctx, "backfill completed", "warmed", warm.warmed, "skipped", warm.skipped)
	return nil
}

func (w *BackfillWorker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"user_id", msg.UserID,
			"attempts", msg.Attempt)
		observability.RecordBackfillTask(observability.OutcomeDeadLettered)
		if dlqErr := w.queue.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"user_id", msg.UserID,
		"attempt", msg.Attempt)
	observability.RecordBackfillTask(observability.OutcomeRequeued)
	if requeueErr := w.queue.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
