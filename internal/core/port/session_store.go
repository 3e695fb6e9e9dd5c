package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arklim/directory-auth/internal/core/domain"
)

// SessionStore persists principals and the sessions issued to them.
type SessionStore interface {
	LookupStatus(ctx context.Context, tokenID uuid.UUID, at time.Time) (domain.BackendStatus, error)
	GetPrincipalByUsername(ctx context.Context, username string) (*domain.Principal, error)
	GetPrincipal(ctx context.Context, id uuid.UUID) (*domain.Principal, error)
	CreateSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, tokenID uuid.UUID) (*domain.Session, error)
	Blacklist(ctx context.Context, principalID, tokenID uuid.UUID, at time.Time) error
	Rotate(ctx context.Context, req domain.RotateRequest) error
	ListActive(ctx context.Context, principalID uuid.UUID, at time.Time) ([]domain.Session, error)
	BlacklistAll(ctx context.Context, principalID uuid.UUID, at time.Time) ([]domain.Session, error)
}
