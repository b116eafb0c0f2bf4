package worker

import (
	"context"
	"log/slog"
	"time"

	"lifecalendar.app/api/internal/service"
)

type warmResult struct {
	warmed  int
	skipped int
	lastErr error
}

// warmDays re-fetches n days ending at today (inclusive) into the day cache.
// A failed day is logged and skipped. The remaining days are still warmed.
func warmDays(ctx context.Context, days DayWarmer, userID string, today time.Time, n int) warmResult {
	var res warmResult
	for offset := range n {
		if ctx.Err() != nil {
			res.lastErr = ctx.Err()
			res.skipped += n - offset
			return res
		}
		date := today.AddDate(0, 0, -offset).Format(time.DateOnly)
		if _, err := days.GetDay(ctx, userID, date, service.DayOptions{BypassCache: true}); err != nil {
			res.skipped++
			res.lastErr = err
			slog.WarnContext(ctx, "day cache warm failed", "error", err, "date", date)
			continue
		}
		res.warmed++
	}
	return res
}
