package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"lifecalendar.app/api/common/logger"
	"lifecalendar.app/api/internal/mapper"
	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/observability"
	"lifecalendar.app/api/internal/store"
	"lifecalendar.app/api/internal/withings"
)

type DayOptions struct {
	// BypassCache skips the cache read. The fresh snapshot is still cached.
	BypassCache bool
}

// DayService aggregates one user's Withings data for one day.
type DayService interface {
	GetDay(ctx context.Context, userID, date string, opts DayOptions) (*model.DayHealthSnapshot, error)
}

type dayService struct {
	oauth  OAuthService
	client WithingsClient
	cache  store.DayCache
	mapper *mapper.WithingsMapper
}

// NewDayService builds the aggregator. cache may be nil.
func NewDayService(oauth OAuthService, client WithingsClient, cache store.DayCache) DayService {
	return &dayService{
		oauth:  oauth,
		client: client,
		cache:  cache,
		mapper: mapper.NewWithingsMapper(),
	}
}

// ParseDay parses a YYYY-MM-DD date as midnight UTC.
func ParseDay(date string) (time.Time, error) {
	day, err := time.ParseInLocation(time.DateOnly, date, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return day, nil
}

func (s *dayService) GetDay(ctx context.Context, userID, date string, opts DayOptions) (snapshot *model.DayHealthSnapshot, err error) {
	day, err := ParseDay(date)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(userID),
		Date:      logger.Ptr(date),
		Component: "lifecal.service.day",
	})
	sc := logger.StartSpan(ctx, "day.get")
	defer func() {
		sc.RecordError(err)
		sc.End()
	}()
	ctx = sc.Context()
	sc.SetAttributes(attribute.String("day.date", date), attribute.Bool("day.bypass_cache", opts.BypassCache))

	if !opts.BypassCache {
		if cached := s.readCache(ctx, userID, date); cached != nil {
			return cached, nil
		}
	}

	token, err := s.oauth.GetValidToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot, err = s.aggregate(ctx, token.AccessToken, day)
	if err != nil {
		return nil, err
	}

	s.writeCache(ctx, userID, date, snapshot)
	return snapshot, nil
}

// aggregate runs the four reads concurrently. Activity, measurements and
// workouts are required; a sleep failure only empties the sleep section.
func (s *dayService) aggregate(ctx context.Context, accessToken string, day time.Time) (*model.DayHealthSnapshot, error) {
	var payloads mapper.DayPayloads

	sleepCtx, cancelSleep := context.WithCancel(ctx)
	defer cancelSleep()

	sleepDone := make(chan struct{})
	go func() {
		defer close(sleepDone)
		sleep, err := s.client.GetSleep(sleepCtx, accessToken, day)
		if err != nil {
			slog.WarnContext(ctx, "withings sleep unavailable, continuing without it", "error", err)
			return
		}
		payloads.Sleep = sleep
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		activity, err := s.client.GetActivity(gctx, accessToken, day)
		if err != nil {
			return fmt.Errorf("fetching activity: %w", err)
		}
		payloads.Activity = activity
		return nil
	})
	g.Go(func() error {
		measurements, err := s.client.GetMeasurements(gctx, accessToken, day)
		if err != nil {
			return fmt.Errorf("fetching measurements: %w", err)
		}
		payloads.Measurements = measurements
		return nil
	})
	g.Go(func() error {
		workouts, err := s.client.GetWorkouts(gctx, accessToken, day)
		if err != nil {
			return fmt.Errorf("fetching workouts: %w", err)
		}
		payloads.Workouts = workouts
		return nil
	})

	if err := g.Wait(); err != nil {
		cancelSleep()
		<-sleepDone
		return nil, err
	}
	<-sleepDone

	return s.mapper.Day(payloads), nil
}

func (s *dayService) readCache(ctx context.Context, userID, date string) *model.DayHealthSnapshot {
	if s.cache == nil {
		return nil
	}
	snapshot, err := s.cache.Get(ctx, userID, date)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "day cache read failed", "error", err)
		}
		observability.RecordDayCache(false)
		return nil
	}
	observability.RecordDayCache(true)
	return snapshot
}

func (s *dayService) writeCache(ctx context.Context, userID, date string, snapshot *model.DayHealthSnapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, userID, date, snapshot); err != nil {
		slog.WarnContext(ctx, "day cache write failed", "error", err)
	}
}

// IsUpstream reports whether err originated from Withings or a token
// operation against it.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrRefresh) || errors.Is(err, ErrOAuthExchange) ||
		errors.Is(err, withings.ErrUnavailable) || withings.IsRemote(err)
}
