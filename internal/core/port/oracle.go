package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/arklim/directory-auth/internal/core/domain"
)

// StatusOracle is the authoritative source of session state for token ids.
// Lookup never fails: infrastructure faults are reported as BackendStatusError.
type StatusOracle interface {
	Lookup(ctx context.Context, tokenID uuid.UUID) domain.BackendStatus
	Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error)
	Logout(ctx context.Context, req domain.LogoutRequest) error
}

// SessionBackend extends the oracle with the session management flows.
type SessionBackend interface {
	StatusOracle
	Rotate(ctx context.Context, req domain.RotateRequest) error
	ActiveSessions(ctx context.Context, principalID uuid.UUID) ([]domain.Session, error)
	InvalidateAll(ctx context.Context, principalID, invalidatedBy uuid.UUID) (int, error)
	Principal(ctx context.Context, id uuid.UUID) (*domain.Principal, error)
}

// StatusCache fronts a StatusOracle with bounded, time-limited memoisation.
type StatusCache interface {
	Get(ctx context.Context, tokenID uuid.UUID) domain.BackendStatus
}

// RequestEvaluator produces the verdict for a presented token.
type RequestEvaluator interface {
	Evaluate(ctx context.Context, rc domain.RequestContext, token string) domain.RequestStatus
}
