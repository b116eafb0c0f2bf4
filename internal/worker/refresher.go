package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lifecalendar.app/api/common/logger"
	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/observability"
)

type RefresherConfig struct {
	Interval time.Duration
	// Window refreshes tokens expiring within it, well ahead of the request-time skew.
	Window time.Duration
	// CacheDays is how many days, ending today, are re-fetched into the day cache.
	CacheDays int
	// Now defaults to time.Now.
	Now func() time.Time
}

// RefreshResult summarizes one refresher pass.
type RefreshResult struct {
	Users       int
	Refreshed   int
	Failed      int
	DaysWarmed  int
	DaysSkipped int
}

// Refresher periodically refreshes expiring Withings tokens and re-warms the
// day cache for every connected user.
type Refresher struct {
	tokens TokenLister
	oauth  TokenRefresher
	days   DayWarmer
	cfg    RefresherConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRefresher(tokens TokenLister, oauth TokenRefresher, days DayWarmer, cfg RefresherConfig) *Refresher {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Refresher{
		tokens:    tokens,
		oauth:     oauth,
		days:      days,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run performs a pass immediately and then on every tick. Blocks until Stop()
// is called or ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "lifecal.worker.refresher",
	})

	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "refresher started",
		"interval", r.cfg.Interval,
		"window", r.cfg.Window,
		"cache_days", r.cfg.CacheDays)

	r.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "refresher stopping")
			return
		case <-ticker.C:
			r.runLogged(ctx)
		}
	}
}

// Stop signals the refresher to stop and waits for the current pass to end.
func (r *Refresher) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

func (r *Refresher) runLogged(ctx context.Context) {
	start := time.Now()
	result, err := r.RunOnce(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "refresher pass failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "refresher pass completed",
		"users", result.Users,
		"refreshed", result.Refreshed,
		"failed", result.Failed,
		"days_warmed", result.DaysWarmed,
		"days_skipped", result.DaysSkipped,
		"duration_ms", time.Since(start).Milliseconds())
}

// RunOnce processes every stored token once. Per-user failures are logged and
// counted, they never abort the pass.
func (r *Refresher) RunOnce(ctx context.Context) (*RefreshResult, error) {
	tokens, err := r.tokens.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing withings tokens: %w", err)
	}

	result := &RefreshResult{Users: len(tokens)}
	for _, token := range tokens {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		r.processUser(ctx, token, result)
	}

	observability.RecordRefresherRun(r.cfg.Now())
	return result, nil
}

func (r *Refresher) processUser(ctx context.Context, token model.WithingsToken, result *RefreshResult) {
	userID := token.UserID
	ctx = logger.WithLogFields(ctx, logger.LogFields{UserID: &userID})

	_, refreshed, err := r.oauth.RefreshIfExpiring(ctx, userID, r.cfg.Window)
	if err != nil {
		result.Failed++
		slog.ErrorContext(ctx, "token refresh failed, skipping user", "error", err)
		return
	}
	if refreshed {
		result.Refreshed++
	}

	warm := warmDays(ctx, r.days, userID, r.cfg.Now().UTC(), r.cfg.CacheDays)
	result.DaysWarmed += warm.warmed
	result.DaysSkipped += warm.skipped
}
