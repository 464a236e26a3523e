package models

import "time"

// RefreshToken is an opaque, server-side refresh token row.
type RefreshToken struct {
	ID        int64
	Token     string
	UserID    int64
	IsActive  bool
	ExpiresAt time.Time
	UserAgent *string
	IPAddress *string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ClientMeta describes the client a token was issued to.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}
