package withings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lifecalendar.app/api/common/logger"
	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/observability"
)

const (
	defaultBaseURL   = "https://wbsapi.withings.net"
	defaultUserAgent = "LifeCalendar/1.0"
	defaultTimeout   = 15 * time.Second

	// Responses larger than this are rejected rather than buffered.
	maxBodyBytes = 8 << 20

	measureWindow = 24 * time.Hour
	sleepWindow   = 12 * time.Hour
)

// Withings action names, also used as metric and log labels.
const (
	ActionGetActivity  = "getactivity"
	ActionGetMeas      = "getmeas"
	ActionGetSleep     = "getsleep"
	ActionGetWorkouts  = "getworkouts"
	ActionRequestToken = "requesttoken"
)

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// Client talks to the Withings public API. It performs no retries.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      httpClient,
	}
}

// ExchangeRequest carries the authorization_code grant parameters.
type ExchangeRequest struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Code         string
}

// RefreshRequest carries the refresh_token grant parameters.
type RefreshRequest struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// GetActivity returns the first activity summary for day, or nil when
// Withings has none.
func (c *Client) GetActivity(ctx context.Context, accessToken string, day time.Time) (*Activity, error) {
	params := url.Values{}
	params.Set("action", ActionGetActivity)
	params.Set("access_token", accessToken)
	params.Set("startdateymd", day.Format(time.DateOnly))
	params.Set("enddateymd", day.Format(time.DateOnly))

	var body activityBody
	if err := c.get(ctx, "/v2/measure", ActionGetActivity, params, &body); err != nil {
		return nil, err
	}
	if len(body.Activities) == 0 {
		return nil, nil
	}
	activity := body.Activities[0]
	return &activity, nil
}

// GetMeasurements returns measurement values keyed by Withings type code,
// scaled as value * 10^unit. When a type appears in several groups the last
// one wins.
func (c *Client) GetMeasurements(ctx context.Context, accessToken string, day time.Time) (map[int]float64, error) {
	params := url.Values{}
	params.Set("action", ActionGetMeas)
	params.Set("access_token", accessToken)
	params.Set("meastype", joinInts(RequestedMeasTypes))
	params.Set("startdate", strconv.FormatInt(day.Add(-measureWindow).Unix(), 10))
	params.Set("enddate", strconv.FormatInt(day.Add(measureWindow).Unix(), 10))

	var body measureBody
	if err := c.get(ctx, "/measure", ActionGetMeas, params, &body); err != nil {
		return nil, err
	}

	values := make(map[int]float64)
	for _, group := range body.MeasureGroups {
		for _, m := range group.Measures {
			values[m.Type] = ScaleMeasure(m.Value, m.Unit)
		}
	}
	return values, nil
}

// GetSleep returns the first sleep series entry around day, or nil.
func (c *Client) GetSleep(ctx context.Context, accessToken string, day time.Time) (*SleepSeries, error) {
	params := url.Values{}
	params.Set("action", ActionGetSleep)
	params.Set("access_token", accessToken)
	params.Set("startdate", strconv.FormatInt(day.Add(-sleepWindow).Unix(), 10))
	params.Set("enddate", strconv.FormatInt(day.Add(sleepWindow).Unix(), 10))

	var body sleepBody
	if err := c.get(ctx, "/v2/sleep", ActionGetSleep, params, &body); err != nil {
		return nil, err
	}
	if len(body.Series) == 0 {
		return nil, nil
	}
	series := body.Series[0]
	return &series, nil
}

// GetWorkouts returns the raw workout series for day. Never nil on success.
func (c *Client) GetWorkouts(ctx context.Context, accessToken string, day time.Time) ([]WorkoutSeries, error) {
	params := url.Values{}
	params.Set("action", ActionGetWorkouts)
	params.Set("access_token", accessToken)
	params.Set("startdateymd", day.Format(time.DateOnly))
	params.Set("enddateymd", day.Format(time.DateOnly))

	var body workoutBody
	if err := c.get(ctx, "/v2/measure", ActionGetWorkouts, params, &body); err != nil {
		return nil, err
	}
	if body.Series == nil {
		return []WorkoutSeries{}, nil
	}
	return body.Series, nil
}

func (c *Client) ExchangeCodeForToken(ctx context.Context, req ExchangeRequest) (*model.TokenGrant, error) {
	form := url.Values{}
	form.Set("action", ActionRequestToken)
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", req.ClientID)
	form.Set("client_secret", req.ClientSecret)
	form.Set("code", req.Code)
	form.Set("redirect_uri", req.RedirectURI)
	return c.requestToken(ctx, form)
}

func (c *Client) RefreshToken(ctx context.Context, req RefreshRequest) (*model.TokenGrant, error) {
	form := url.Values{}
	form.Set("action", ActionRequestToken)
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", req.ClientID)
	form.Set("client_secret", req.ClientSecret)
	form.Set("refresh_token", req.RefreshToken)
	return c.requestToken(ctx, form)
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (*model.TokenGrant, error) {
	grantType := form.Get("grant_type")

	var body tokenBody
	if err := c.post(ctx, "/v2/oauth2", ActionRequestToken, form, &body); err != nil {
		return nil, err
	}
	if body.AccessToken == "" || body.RefreshToken == "" || body.ExpiresIn == nil {
		return nil, &RemoteAPIError{
			Action:     ActionRequestToken,
			Status:     0,
			HTTPStatus: http.StatusOK,
			Message:    fmt.Sprintf("incomplete %s token response", grantType),
		}
	}

	return &model.TokenGrant{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		WithingsUser: body.UserID.String(),
		Scope:        body.Scope,
		ExpiresIn:    *body.ExpiresIn,
	}, nil
}

func (c *Client) get(ctx context.Context, path, action string, params url.Values, out any) error {
	reqURL := c.baseURL + path + "?" + params.Encode()
	return c.do(ctx, action, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	}, out)
}

func (c *Client) post(ctx context.Context, path, action string, form url.Values, out any) error {
	reqURL := c.baseURL + path
	return c.do(ctx, action, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, out)
}

func (c *Client) do(ctx context.Context, action string, build func(context.Context) (*http.Request, error), out any) (err error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Endpoint: logger.Ptr(action)})
	sc := logger.StartSpan(ctx, "withings."+action, trace.WithSpanKind(trace.SpanKindClient))
	ctx = sc.Context()
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		observability.RecordWithingsCall(action, elapsed, err)
		if err != nil {
			sc.RecordError(err)
			slog.WarnContext(ctx, "withings request failed", "error", err, "duration_ms", elapsed.Milliseconds())
		} else {
			slog.DebugContext(ctx, "withings request completed", "duration_ms", elapsed.Milliseconds())
		}
		sc.End()
	}()

	req, err := build(ctx)
	if err != nil {
		return fmt.Errorf("building %s request: %w", action, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, action, err)
	}
	defer resp.Body.Close()

	sc.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %w", ErrUnavailable, action, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteAPIError{
			Action:     action,
			Status:     -1,
			HTTPStatus: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	return decodeEnvelope(action, resp.StatusCode, raw, out)
}

func decodeEnvelope(action string, httpStatus int, raw []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &RemoteAPIError{Action: action, Status: -1, HTTPStatus: httpStatus, Message: "malformed response envelope"}
	}
	if env.Status == nil {
		return &RemoteAPIError{Action: action, Status: -1, HTTPStatus: httpStatus, Message: "response envelope has no status"}
	}
	if *env.Status != 0 {
		msg := env.Error
		if msg == "" {
			msg = "request rejected"
		}
		return &RemoteAPIError{Action: action, Status: *env.Status, HTTPStatus: httpStatus, Message: msg}
	}
	if len(env.Body) == 0 || string(env.Body) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Body, out); err != nil {
		return &RemoteAPIError{Action: action, Status: 0, HTTPStatus: httpStatus, Message: "malformed response body"}
	}
	return nil
}

// ScaleMeasure converts a Withings (value, unit) pair into a plain number.
// Negative units divide so that 72345e-3 yields exactly 72.345.
func ScaleMeasure(value float64, unit int) float64 {
	if unit < 0 {
		return value / math.Pow10(-unit)
	}
	return value * math.Pow10(unit)
}

// IsRemote reports whether err came from Withings rather than the transport.
// Use errors.Is(err, ErrUnavailable) for transport failures.
func IsRemote(err error) bool {
	var remote *RemoteAPIError
	return errors.As(err, &remote)
}
