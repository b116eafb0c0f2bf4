package service

import "errors"

var (
	// ErrConfiguration means the Withings app credentials are missing or incomplete.
	ErrConfiguration = errors.New("withings credentials not configured")
	// ErrNotConnected means the user has no stored Withings token.
	ErrNotConnected = errors.New("withings account not connected")
	// ErrOAuthExchange wraps any failure to trade an authorization code for tokens.
	ErrOAuthExchange = errors.New("withings authorization code exchange failed")
	// ErrRefresh wraps any failure to refresh a token. Nothing is written when it occurs.
	ErrRefresh = errors.New("withings token refresh failed")

	ErrInvalidDate        = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidState       = errors.New("unknown or expired oauth state")
	ErrInvalidCredentials = errors.New("missing required credential fields")
	ErrInvalidSettings    = errors.New("invalid settings payload")
)
