package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arklim/directory-auth/internal/core/domain"
	"github.com/arklim/directory-auth/internal/usecase"
)

// memoryBackend is an in-memory session backend keyed by token id.
type memoryBackend struct {
	mu         sync.Mutex
	principals map[uuid.UUID]domain.Principal
	passwords  map[string]string
	sessions   map[uuid.UUID]domain.Session
	now        func() time.Time
}

func newMemoryBackend(now func() time.Time) *memoryBackend {
	return &memoryBackend{
		principals: make(map[uuid.UUID]domain.Principal),
		passwords:  make(map[string]string),
		sessions:   make(map[uuid.UUID]domain.Session),
		now:        now,
	}
}

func (m *memoryBackend) addPrincipal(username, password string, roles ...string) domain.Principal {
	m.mu.Lock()
	defer m.mu.Unlock()
	principal := domain.Principal{
		ID:       uuid.New(),
		Name:     username,
		Username: username,
		Email:    username + "@example.com",
		Status:   domain.PrincipalStatusActive,
		Roles:    roles,
	}
	m.principals[principal.ID] = principal
	m.passwords[username] = password
	return principal
}

func (m *memoryBackend) Lookup(_ context.Context, tokenID uuid.UUID) domain.BackendStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[tokenID]
	switch {
	case !ok:
		return domain.BackendStatusNotPresent
	case session.Status == domain.SessionStatusBlacklisted:
		return domain.BackendStatusBlacklisted
	case !session.ExpiresAt.After(m.now()):
		return domain.BackendStatusExpired
	}
	return domain.BackendStatusValid
}

// Get lets the backend stand in for the status cache.
func (m *memoryBackend) Get(ctx context.Context, tokenID uuid.UUID) domain.BackendStatus {
	return m.Lookup(ctx, tokenID)
}

func (m *memoryBackend) Login(_ context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	password, ok := m.passwords[req.Username]
	if !ok || password != req.Password {
		return nil, usecase.ErrInvalidCredentials
	}
	for _, principal := range m.principals {
		if principal.Username != req.Username {
			continue
		}
		session := domain.Session{
			TokenID:       req.TokenID,
			PrincipalID:   principal.ID,
			Status:        domain.SessionStatusOK,
			IssuedAt:      req.IssuedAt,
			ExpiresAt:     req.ExpiresAt,
			RequestOrigin: req.Origin,
		}
		m.sessions[req.TokenID] = session
		return &domain.LoginResult{Principal: principal, Session: session}, nil
	}
	return nil, usecase.ErrInvalidCredentials
}

func (m *memoryBackend) Logout(_ context.Context, req domain.LogoutRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blacklistLocked(req.SubjectID, req.TokenID)
}

func (m *memoryBackend) blacklistLocked(principalID, tokenID uuid.UUID) error {
	session, ok := m.sessions[tokenID]
	if !ok || session.PrincipalID != principalID || session.Status != domain.SessionStatusOK {
		return usecase.ErrSessionNotFound
	}
	session.Status = domain.SessionStatusBlacklisted
	m.sessions[tokenID] = session
	return nil
}

func (m *memoryBackend) Rotate(_ context.Context, req domain.RotateRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.blacklistLocked(req.SubjectID, req.PreviousTokenID); err != nil {
		return err
	}
	m.sessions[req.TokenID] = domain.Session{
		TokenID:       req.TokenID,
		PrincipalID:   req.SubjectID,
		Status:        domain.SessionStatusOK,
		IssuedAt:      req.IssuedAt,
		ExpiresAt:     req.ExpiresAt,
		RequestOrigin: req.Origin,
	}
	return nil
}

func (m *memoryBackend) ActiveSessions(_ context.Context, principalID uuid.UUID) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.Session, 0)
	for _, session := range m.sessions {
		if session.PrincipalID == principalID && session.IsActive(m.now()) {
			result = append(result, session)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].IssuedAt.After(result[j].IssuedAt)
	})
	return result, nil
}

func (m *memoryBackend) InvalidateAll(_ context.Context, principalID, _ uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.principals[principalID]; !ok {
		return 0, usecase.ErrPrincipalNotFound
	}
	count := 0
	for tokenID, session := range m.sessions {
		if session.PrincipalID != principalID || session.Status != domain.SessionStatusOK {
			continue
		}
		session.Status = domain.SessionStatusBlacklisted
		m.sessions[tokenID] = session
		count++
	}
	return count, nil
}

func (m *memoryBackend) Principal(_ context.Context, id uuid.UUID) (*domain.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	principal, ok := m.principals[id]
	if !ok {
		return nil, usecase.ErrPrincipalNotFound
	}
	return &principal, nil
}
