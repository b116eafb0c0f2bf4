package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the counters below.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"

	OutcomeRequeued     = "requeued"
	OutcomeDeadLettered = "dead_lettered"
)

var (
	withingsRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lifecalendar",
		Subsystem: "withings",
		Name:      "requests_total",
		Help:      "Withings API calls by action and outcome.",
	}, []string{"action", "outcome"})
	withingsLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lifecalendar",
		Subsystem: "withings",
		Name:      "request_duration_seconds",
		Help:      "Latency of Withings API calls by action.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})
	tokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lifecalendar",
		Subsystem: "oauth",
		Name:      "token_refreshes_total",
		Help:      "Withings token refresh attempts by outcome.",
	}, []string{"outcome"})
	dayCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lifecalendar",
		Subsystem: "day_cache",
		Name:      "lookups_total",
		Help:      "Day snapshot cache lookups by result.",
	}, []string{"result"})
	refresherLastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lifecalendar",
		Subsystem: "refresher",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the most recent refresher pass.",
	})
	backfillTasks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lifecalendar",
		Subsystem: "backfill",
		Name:      "tasks_total",
		Help:      "Backfill tasks handled by the worker, by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(withingsRequests, withingsLatency, tokenRefreshes, dayCacheLookups, refresherLastRun, backfillTasks)
}

// RecordWithingsCall counts one Withings API call and observes its latency.
func RecordWithingsCall(action string, elapsed time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	withingsRequests.WithLabelValues(action, outcome).Inc()
	withingsLatency.WithLabelValues(action).Observe(elapsed.Seconds())
}

func RecordTokenRefresh(err error) {
	if err != nil {
		tokenRefreshes.WithLabelValues(OutcomeError).Inc()
		return
	}
	tokenRefreshes.WithLabelValues(OutcomeSuccess).Inc()
}

func RecordDayCache(hit bool) {
	if hit {
		dayCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	dayCacheLookups.WithLabelValues("miss").Inc()
}

// RecordRefresherRun updates the refresher watermark gauge.
func RecordRefresherRun(ts time.Time) {
	if ts.IsZero() {
		return
	}
	refresherLastRun.Set(float64(ts.Unix()))
}

func RecordBackfillTask(outcome string) {
	backfillTasks.WithLabelValues(outcome).Inc()
}
