package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionLoginEvent represents the payload for auth.session.login messages.
type SessionLoginEvent struct {
	EventID     string
	PrincipalID uuid.UUID
	TokenID     uuid.UUID
	Origin      string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// SessionLogoutEvent represents the payload for auth.session.logout messages.
type SessionLogoutEvent struct {
	EventID     string
	PrincipalID uuid.UUID
	TokenID     uuid.UUID
	Origin      string
	LoggedOutAt time.Time
}

// SessionRefreshedEvent represents the payload for auth.session.refreshed messages.
type SessionRefreshedEvent struct {
	EventID         string
	PrincipalID     uuid.UUID
	PreviousTokenID uuid.UUID
	TokenID         uuid.UUID
	Origin          string
	RefreshedAt     time.Time
	ExpiresAt       time.Time
}

// SessionsInvalidatedEvent represents the payload for auth.principal.sessions_invalidated messages.
type SessionsInvalidatedEvent struct {
	EventID       string
	PrincipalID   uuid.UUID
	InvalidatedBy uuid.UUID
	InvalidatedAt time.Time
	Count         int
}
