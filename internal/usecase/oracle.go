package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/directory-auth/internal/core/domain"
	"github.com/arklim/directory-auth/internal/core/port"
	"github.com/arklim/directory-auth/internal/repository"
)

const (
	revokeReasonLogout        = "logout"
	revokeReasonRotated       = "rotated"
	revokeReasonInvalidateAll = "invalidate_all"
)

// BackendOracle answers token status questions from the session store,
// short-circuiting through the revocation store when one is configured.
type BackendOracle struct {
	store       port.SessionStore
	hasher      port.PasswordHasher
	revocations port.RevocationStore
	policy      domain.DegradationPolicy
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewBackendOracle constructs an oracle over the session store.
func NewBackendOracle(store port.SessionStore, hasher port.PasswordHasher, logger *zap.Logger) *BackendOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackendOracle{
		store:  store,
		hasher: hasher,
		policy: domain.NewDegradationPolicy(domain.DegradationPolicyModeLenient),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithRevocationStore enables the revocation fast path under the supplied policy.
func (o *BackendOracle) WithRevocationStore(store port.RevocationStore, policy domain.DegradationPolicy) *BackendOracle {
	o.revocations = store
	o.policy = policy
	return o
}

// WithEventPublisher enables session lifecycle events.
func (o *BackendOracle) WithEventPublisher(events port.EventPublisher) *BackendOracle {
	o.events = events
	return o
}

// WithClock overrides the internal clock for deterministic tests.
func (o *BackendOracle) WithClock(clock func() time.Time) *BackendOracle {
	if clock != nil {
		o.now = clock
	}
	return o
}

// Lookup resolves the backend verdict for a token id.
func (o *BackendOracle) Lookup(ctx context.Context, tokenID uuid.UUID) domain.BackendStatus {
	if o.revocations != nil {
		revoked, _, err := o.revocations.IsRevoked(ctx, tokenID)
		switch {
		case err != nil:
			o.logger.Warn("revocation store check failed", zap.String("token_id", tokenID.String()), zap.Error(err))
			if !o.policy.AllowsFallback(domain.DegradationReasonRevocationStoreUnavailable) {
				return domain.BackendStatusError
			}
		case revoked:
			return domain.BackendStatusBlacklisted
		}
	}

	status, err := o.store.LookupStatus(ctx, tokenID, o.now())
	if err != nil {
		o.logger.Error("session status lookup failed", zap.String("token_id", tokenID.String()), zap.Error(err))
		return domain.BackendStatusError
	}
	return status
}

// Login verifies credentials and records the candidate token id as a new session.
func (o *BackendOracle) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, ErrCredentialsRequired
	}
	if req.TokenID == uuid.Nil {
		return nil, fmt.Errorf("candidate token id is required")
	}

	principal, err := o.store.GetPrincipalByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup principal: %w", err)
	}

	ok, err := o.hasher.Verify(req.Password, principal.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !principal.IsActive() {
		return nil, ErrInactivePrincipal
	}

	session := domain.Session{
		TokenID:       req.TokenID,
		PrincipalID:   principal.ID,
		Status:        domain.SessionStatusOK,
		IssuedAt:      req.IssuedAt,
		ExpiresAt:     req.ExpiresAt,
		RequestOrigin: req.Origin,
	}
	if err := o.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}

	o.publish(ctx, "login", func(ctx context.Context, events port.EventPublisher) error {
		return events.PublishSessionLogin(ctx, domain.SessionLoginEvent{
			PrincipalID: principal.ID,
			TokenID:     req.TokenID,
			Origin:      req.Origin,
			IssuedAt:    req.IssuedAt,
			ExpiresAt:   req.ExpiresAt,
		})
	})

	sanitized := *principal
	sanitized.PasswordHash = ""
	return &domain.LoginResult{Principal: sanitized, Session: session}, nil
}

// Logout blacklists the session backing a token.
func (o *BackendOracle) Logout(ctx context.Context, req domain.LogoutRequest) error {
	session, err := o.store.GetSession(ctx, req.TokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("load session: %w", err)
	}
	if session.PrincipalID != req.SubjectID {
		return ErrSessionNotFound
	}

	at := req.At
	if at.IsZero() {
		at = o.now()
	}

	if err := o.store.Blacklist(ctx, req.SubjectID, req.TokenID, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("blacklist session: %w", err)
	}
	o.markRevoked(ctx, req.TokenID, revokeReasonLogout, session.ExpiresAt.Sub(at))

	o.publish(ctx, "logout", func(ctx context.Context, events port.EventPublisher) error {
		return events.PublishSessionLogout(ctx, domain.SessionLogoutEvent{
			PrincipalID: req.SubjectID,
			TokenID:     req.TokenID,
			Origin:      req.Origin,
			LoggedOutAt: at,
		})
	})
	return nil
}

// Rotate replaces the session's token id during a refresh.
func (o *BackendOracle) Rotate(ctx context.Context, req domain.RotateRequest) error {
	if req.TokenID == uuid.Nil || req.PreviousTokenID == uuid.Nil {
		return fmt.Errorf("token ids are required")
	}

	previous, err := o.store.GetSession(ctx, req.PreviousTokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("load session: %w", err)
	}

	if err := o.store.Rotate(ctx, req); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("rotate session: %w", err)
	}
	o.markRevoked(ctx, req.PreviousTokenID, revokeReasonRotated, previous.ExpiresAt.Sub(req.IssuedAt))

	o.publish(ctx, "refreshed", func(ctx context.Context, events port.EventPublisher) error {
		return events.PublishSessionRefreshed(ctx, domain.SessionRefreshedEvent{
			PrincipalID:     req.SubjectID,
			PreviousTokenID: req.PreviousTokenID,
			TokenID:         req.TokenID,
			Origin:          req.Origin,
			RefreshedAt:     req.IssuedAt,
			ExpiresAt:       req.ExpiresAt,
		})
	})
	return nil
}

// ActiveSessions lists the sessions still able to authenticate requests.
func (o *BackendOracle) ActiveSessions(ctx context.Context, principalID uuid.UUID) ([]domain.Session, error) {
	sessions, err := o.store.ListActive(ctx, principalID, o.now())
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// InvalidateAll blacklists every session of a principal and returns how many were affected.
func (o *BackendOracle) InvalidateAll(ctx context.Context, principalID, invalidatedBy uuid.UUID) (int, error) {
	if _, err := o.Principal(ctx, principalID); err != nil {
		return 0, err
	}

	at := o.now()
	sessions, err := o.store.BlacklistAll(ctx, principalID, at)
	if err != nil {
		return 0, fmt.Errorf("invalidate sessions: %w", err)
	}
	for _, session := range sessions {
		o.markRevoked(ctx, session.TokenID, revokeReasonInvalidateAll, session.ExpiresAt.Sub(at))
	}

	o.publish(ctx, "sessions_invalidated", func(ctx context.Context, events port.EventPublisher) error {
		return events.PublishSessionsInvalidated(ctx, domain.SessionsInvalidatedEvent{
			PrincipalID:   principalID,
			InvalidatedBy: invalidatedBy,
			InvalidatedAt: at,
			Count:         len(sessions),
		})
	})
	return len(sessions), nil
}

// Principal loads a principal without its password hash.
func (o *BackendOracle) Principal(ctx context.Context, id uuid.UUID) (*domain.Principal, error) {
	principal, err := o.store.GetPrincipal(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("load principal: %w", err)
	}
	sanitized := *principal
	sanitized.PasswordHash = ""
	return &sanitized, nil
}

func (o *BackendOracle) markRevoked(ctx context.Context, tokenID uuid.UUID, reason string, ttl time.Duration) {
	if o.revocations == nil || ttl <= 0 {
		return
	}
	if err := o.revocations.MarkRevoked(ctx, tokenID, reason, ttl); err != nil {
		o.logger.Warn("cache revoked token failed",
			zap.String("token_id", tokenID.String()),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

func (o *BackendOracle) publish(ctx context.Context, kind string, fn func(context.Context, port.EventPublisher) error) {
	if o.events == nil {
		return
	}
	if err := fn(ctx, o.events); err != nil {
		o.logger.Warn("publish session event failed", zap.String("event", kind), zap.Error(err))
	}
}

var _ port.SessionBackend = (*BackendOracle)(nil)
