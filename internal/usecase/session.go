package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/directory-auth/internal/core/domain"
	"github.com/arklim/directory-auth/internal/core/port"
)

// IssuedTokens bundles the credentials handed back after login or refresh.
// RefreshToken is empty when refresh tokens are disabled.
type IssuedTokens struct {
	TokenID          uuid.UUID
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Principal        domain.Principal
}

// SessionService drives login, logout and refresh on top of the session backend.
type SessionService struct {
	backend          port.SessionBackend
	access           port.TokenCodec
	refresh          port.TokenCodec
	refreshEvaluator port.RequestEvaluator
	logger           *zap.Logger
	newID            func() uuid.UUID
}

// NewSessionService constructs a service minting access tokens with codec.
func NewSessionService(backend port.SessionBackend, access port.TokenCodec, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		backend: backend,
		access:  access,
		logger:  logger,
		newID:   uuid.New,
	}
}

// WithRefresh enables refresh tokens minted by codec and checked by evaluator.
func (s *SessionService) WithRefresh(codec port.TokenCodec, evaluator port.RequestEvaluator) *SessionService {
	s.refresh = codec
	s.refreshEvaluator = evaluator
	return s
}

// WithIDGenerator overrides token id generation for deterministic tests.
func (s *SessionService) WithIDGenerator(fn func() uuid.UUID) *SessionService {
	if fn != nil {
		s.newID = fn
	}
	return s
}

// RefreshEnabled reports whether refresh tokens are issued.
func (s *SessionService) RefreshEnabled() bool {
	return s.refresh != nil && s.refreshEvaluator != nil
}

// Login authenticates credentials and mints tokens for a new session.
// It is only permitted while the current verdict is NOT_PRESENT or EXPIRED.
func (s *SessionService) Login(ctx context.Context, current domain.RequestStatus, rc domain.RequestContext, username, password string) (*IssuedTokens, error) {
	if !current.ExpiredOrNotPresent() {
		return nil, ErrAlreadyAuthenticated
	}
	if username == "" || password == "" {
		return nil, ErrCredentialsRequired
	}

	tokenID := s.newID()
	result, err := s.backend.Login(ctx, domain.LoginRequest{
		Username:  username,
		Password:  password,
		TokenID:   tokenID,
		Origin:    rc.ClientOrigin,
		IssuedAt:  rc.Instant,
		ExpiresAt: rc.Instant.Add(s.sessionTTL()),
	})
	if err != nil {
		return nil, err
	}

	tokens, err := s.mint(tokenID, result.Principal, rc)
	if err != nil {
		s.abandon(ctx, result.Principal.ID, tokenID, rc)
		return nil, err
	}

	s.logger.Info("session opened",
		zap.String("principal_id", result.Principal.ID.String()),
		zap.String("token_id", tokenID.String()),
	)
	return tokens, nil
}

// Logout blacklists the session behind the current VALID token.
func (s *SessionService) Logout(ctx context.Context, current domain.RequestStatus, rc domain.RequestContext) error {
	if !current.IsValid() {
		return ErrNotAuthenticated
	}

	if err := s.backend.Logout(ctx, domain.LogoutRequest{
		SubjectID: current.SubjectID,
		TokenID:   current.TokenID,
		Origin:    rc.ClientOrigin,
		At:        rc.Instant,
	}); err != nil {
		return err
	}

	s.logger.Info("session closed",
		zap.String("principal_id", current.SubjectID.String()),
		zap.String("token_id", current.TokenID.String()),
	)
	return nil
}

// Refresh validates a refresh token, rotates the session to a new token id
// and mints a new token pair. Roles are re-read from the principal.
func (s *SessionService) Refresh(ctx context.Context, rc domain.RequestContext, refreshToken string) (*IssuedTokens, error) {
	if !s.RefreshEnabled() {
		return nil, ErrRefreshDisabled
	}

	status := s.refreshEvaluator.Evaluate(ctx, rc, refreshToken)
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRefreshToken, status.Status)
	}

	principal, err := s.backend.Principal(ctx, status.SubjectID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if !principal.IsActive() {
		return nil, ErrInactivePrincipal
	}

	tokenID := s.newID()
	if err := s.backend.Rotate(ctx, domain.RotateRequest{
		SubjectID:       status.SubjectID,
		PreviousTokenID: status.TokenID,
		TokenID:         tokenID,
		Origin:          rc.ClientOrigin,
		IssuedAt:        rc.Instant,
		ExpiresAt:       rc.Instant.Add(s.refresh.TTL()),
	}); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	tokens, err := s.mint(tokenID, *principal, rc)
	if err != nil {
		s.abandon(ctx, principal.ID, tokenID, rc)
		return nil, err
	}
	return tokens, nil
}

// CurrentLogin returns the principal behind the current VALID token.
func (s *SessionService) CurrentLogin(ctx context.Context, current domain.RequestStatus) (*domain.Principal, error) {
	if !current.IsValid() {
		return nil, ErrNotAuthenticated
	}
	return s.backend.Principal(ctx, current.SubjectID)
}

// ActiveLogins lists the live sessions of the current principal.
func (s *SessionService) ActiveLogins(ctx context.Context, current domain.RequestStatus) ([]domain.Session, error) {
	if !current.IsValid() {
		return nil, ErrNotAuthenticated
	}
	return s.backend.ActiveSessions(ctx, current.SubjectID)
}

// InvalidateAll blacklists every session of principalID on behalf of the current principal.
// Callers enforce the administrative role.
func (s *SessionService) InvalidateAll(ctx context.Context, current domain.RequestStatus, principalID uuid.UUID) (int, error) {
	if !current.IsValid() {
		return 0, ErrNotAuthenticated
	}

	count, err := s.backend.InvalidateAll(ctx, principalID, current.SubjectID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("principal sessions invalidated",
		zap.String("principal_id", principalID.String()),
		zap.String("invalidated_by", current.SubjectID.String()),
		zap.Int("count", count),
	)
	return count, nil
}

func (s *SessionService) sessionTTL() time.Duration {
	if s.RefreshEnabled() {
		return s.refresh.TTL()
	}
	return s.access.TTL()
}

func (s *SessionService) mint(tokenID uuid.UUID, principal domain.Principal, rc domain.RequestContext) (*IssuedTokens, error) {
	roles := principal.RoleClaim()

	access, err := s.access.Generate(tokenID, principal.ID, roles, rc)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	tokens := &IssuedTokens{
		TokenID:         tokenID,
		AccessToken:     access,
		AccessExpiresAt: rc.Instant.Add(s.access.TTL()),
		Principal:       principal,
	}

	if s.RefreshEnabled() {
		refresh, err := s.refresh.Generate(tokenID, principal.ID, roles, rc)
		if err != nil {
			return nil, fmt.Errorf("mint refresh token: %w", err)
		}
		tokens.RefreshToken = refresh
		tokens.RefreshExpiresAt = rc.Instant.Add(s.refresh.TTL())
	}
	return tokens, nil
}

// abandon closes a session whose tokens could not be minted.
func (s *SessionService) abandon(ctx context.Context, principalID, tokenID uuid.UUID, rc domain.RequestContext) {
	err := s.backend.Logout(ctx, domain.LogoutRequest{
		SubjectID: principalID,
		TokenID:   tokenID,
		Origin:    rc.ClientOrigin,
		At:        rc.Instant,
	})
	if err != nil {
		s.logger.Error("close unusable session failed",
			zap.String("token_id", tokenID.String()),
			zap.Error(err),
		)
	}
}
