package model

import "time"

// WithingsToken is the OAuth token pair stored for one user.
// ExpiresAt is zero when the stored value could not be parsed; such tokens are
// treated as expiring.
type WithingsToken struct {
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ID           int64     `json:"id"`
}

// ExpiresWithin reports whether the token is unusable for at least skew from now.
func (t WithingsToken) ExpiresWithin(now time.Time, skew time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return true
	}
	return !t.ExpiresAt.After(now.Add(skew))
}

// TokenGrant is what a successful code exchange or refresh yields.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	WithingsUser string
	Scope        string
	ExpiresIn    int64 // seconds
}
