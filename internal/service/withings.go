package service

import (
	"context"
	"time"

	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/withings"
)

// WithingsClient is the subset of the Withings API the services depend on.
// *withings.Client satisfies it.
type WithingsClient interface {
	GetActivity(ctx context.Context, accessToken string, day time.Time) (*withings.Activity, error)
	GetMeasurements(ctx context.Context, accessToken string, day time.Time) (map[int]float64, error)
	GetSleep(ctx context.Context, accessToken string, day time.Time) (*withings.SleepSeries, error)
	GetWorkouts(ctx context.Context, accessToken string, day time.Time) ([]withings.WorkoutSeries, error)
	ExchangeCodeForToken(ctx context.Context, req withings.ExchangeRequest) (*model.TokenGrant, error)
	RefreshToken(ctx context.Context, req withings.RefreshRequest) (*model.TokenGrant, error)
}

var _ WithingsClient = (*withings.Client)(nil)
