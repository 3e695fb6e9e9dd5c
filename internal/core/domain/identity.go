package domain

import (
	"time"

	"github.com/google/uuid"
)

// PrincipalStatus enumerates directory account states.
type PrincipalStatus string

const (
	PrincipalStatusActive   PrincipalStatus = "ACTIVE"
	PrincipalStatusInactive PrincipalStatus = "INACTIVE"
	PrincipalStatusLocked   PrincipalStatus = "LOCKED"
)

// Principal mirrors the persisted representation in auth.principals.
type Principal struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Username     string
	PasswordHash string
	Status       PrincipalStatus
	Roles        []string
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// IsActive reports whether the principal may hold sessions.
func (p Principal) IsActive() bool {
	return p.Status == PrincipalStatusActive
}

// RoleClaim returns the comma-joined roles carried in issued tokens.
func (p Principal) RoleClaim() string {
	return JoinRoles(p.Roles)
}
