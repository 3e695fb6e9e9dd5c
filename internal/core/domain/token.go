package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenUse distinguishes the channel a token was minted for.
type TokenUse string

const (
	TokenUseAccess  TokenUse = "access"
	TokenUseRefresh TokenUse = "refresh"
)

// TokenClaims is the claim set carried inside an issued token.
// Everything except Roles is mandatory.
type TokenClaims struct {
	TokenID   uuid.UUID
	SubjectID uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
	Audience  string
	Roles     string
	Use       TokenUse
}

// IsExpired reports whether the claims have elapsed their validity window.
// A token whose expiry equals the supplied instant is already expired.
func (c TokenClaims) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}

// Complete reports whether every mandatory claim is populated.
func (c TokenClaims) Complete() bool {
	return c.TokenID != uuid.Nil &&
		c.SubjectID != uuid.Nil &&
		!c.IssuedAt.IsZero() &&
		!c.ExpiresAt.IsZero() &&
		c.Issuer != "" &&
		c.Audience != ""
}

// RequestContext carries the per-request facts token evaluation depends on.
type RequestContext struct {
	// Instant is the request arrival time truncated to whole seconds.
	Instant time.Time
	// ClientOrigin is the normalised client IP.
	ClientOrigin string
}

// NewRequestContext builds a RequestContext, truncating the instant to seconds.
func NewRequestContext(at time.Time, origin string) RequestContext {
	return RequestContext{Instant: at.UTC().Truncate(time.Second), ClientOrigin: origin}
}
