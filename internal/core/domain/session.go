package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the persisted state of a token id record.
type SessionStatus string

const (
	SessionStatusOK          SessionStatus = "OK"
	SessionStatusBlacklisted SessionStatus = "BLACKLISTED"
)

// Session is the backend record of an issued token id.
type Session struct {
	TokenID       uuid.UUID
	PrincipalID   uuid.UUID
	Status        SessionStatus
	IssuedAt      time.Time
	ExpiresAt     time.Time
	RequestOrigin string
	LoggedOutAt   *time.Time
}

// IsActive reports whether the session still authenticates requests at the supplied moment.
func (s Session) IsActive(at time.Time) bool {
	if s.Status != SessionStatusOK {
		return false
	}
	return s.ExpiresAt.After(at)
}

// LoginRequest asks the backend to authenticate credentials and record a session.
type LoginRequest struct {
	Username  string
	Password  string
	TokenID   uuid.UUID
	Origin    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// LogoutRequest asks the backend to blacklist a session.
type LogoutRequest struct {
	SubjectID uuid.UUID
	TokenID   uuid.UUID
	Origin    string
	At        time.Time
}

// RotateRequest replaces a session's token id during a refresh.
type RotateRequest struct {
	SubjectID       uuid.UUID
	PreviousTokenID uuid.UUID
	TokenID         uuid.UUID
	Origin          string
	IssuedAt        time.Time
	ExpiresAt       time.Time
}

// LoginResult is what the backend reports after a successful login.
type LoginResult struct {
	Principal Principal
	Session   Session
}
