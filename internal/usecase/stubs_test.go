package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arklim/directory-auth/internal/core/domain"
	"github.com/arklim/directory-auth/internal/repository"
)

type fakeSessionStore struct {
	mu         sync.Mutex
	principals map[uuid.UUID]*domain.Principal
	sessions   map[uuid.UUID]*domain.Session

	errors struct {
		lookup error
		create error
		rotate error
	}
	lookupCalls int
}

func newFakeSessionStore(principals ...domain.Principal) *fakeSessionStore {
	store := &fakeSessionStore{
		principals: make(map[uuid.UUID]*domain.Principal),
		sessions:   make(map[uuid.UUID]*domain.Session),
	}
	for i := range principals {
		principalCopy := principals[i]
		store.principals[principalCopy.ID] = &principalCopy
	}
	return store
}

func (f *fakeSessionStore) LookupStatus(_ context.Context, tokenID uuid.UUID, at time.Time) (domain.BackendStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCalls++

	if f.errors.lookup != nil {
		return domain.BackendStatusError, f.errors.lookup
	}
	session, ok := f.sessions[tokenID]
	if !ok {
		return domain.BackendStatusNotPresent, nil
	}
	switch session.Status {
	case domain.SessionStatusBlacklisted:
		return domain.BackendStatusBlacklisted, nil
	case domain.SessionStatusOK:
	default:
		return domain.BackendStatusPresentBadState, nil
	}
	principal, ok := f.principals[session.PrincipalID]
	if !ok || !principal.IsActive() {
		return domain.BackendStatusBadPrincipal, nil
	}
	if !session.ExpiresAt.After(at) {
		return domain.BackendStatusExpired, nil
	}
	return domain.BackendStatusValid, nil
}

func (f *fakeSessionStore) GetPrincipalByUsername(_ context.Context, username string) (*domain.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, principal := range f.principals {
		if strings.EqualFold(principal.Username, username) {
			copy := *principal
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSessionStore) GetPrincipal(_ context.Context, id uuid.UUID) (*domain.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	principal, ok := f.principals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *principal
	return &copy, nil
}

func (f *fakeSessionStore) CreateSession(_ context.Context, session domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errors.create != nil {
		return f.errors.create
	}
	if _, exists := f.sessions[session.TokenID]; exists {
		return errors.New("duplicate token id")
	}
	copy := session
	f.sessions[session.TokenID] = &copy
	return nil
}

func (f *fakeSessionStore) GetSession(_ context.Context, tokenID uuid.UUID) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[tokenID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *session
	return &copy, nil
}

func (f *fakeSessionStore) Blacklist(_ context.Context, principalID, tokenID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blacklistLocked(principalID, tokenID, at)
}

func (f *fakeSessionStore) blacklistLocked(principalID, tokenID uuid.UUID, at time.Time) error {
	session, ok := f.sessions[tokenID]
	if !ok || session.PrincipalID != principalID || session.Status != domain.SessionStatusOK {
		return repository.ErrNotFound
	}
	loggedOut := at
	session.Status = domain.SessionStatusBlacklisted
	session.LoggedOutAt = &loggedOut
	return nil
}

func (f *fakeSessionStore) Rotate(_ context.Context, req domain.RotateRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errors.rotate != nil {
		return f.errors.rotate
	}
	if err := f.blacklistLocked(req.SubjectID, req.PreviousTokenID, req.IssuedAt); err != nil {
		return err
	}
	f.sessions[req.TokenID] = &domain.Session{
		TokenID:       req.TokenID,
		PrincipalID:   req.SubjectID,
		Status:        domain.SessionStatusOK,
		IssuedAt:      req.IssuedAt,
		ExpiresAt:     req.ExpiresAt,
		RequestOrigin: req.Origin,
	}
	return nil
}

func (f *fakeSessionStore) ListActive(_ context.Context, principalID uuid.UUID, at time.Time) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]domain.Session, 0)
	for _, session := range f.sessions {
		if session.PrincipalID == principalID && session.IsActive(at) {
			result = append(result, *session)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].IssuedAt.After(result[j].IssuedAt)
	})
	return result, nil
}

func (f *fakeSessionStore) BlacklistAll(_ context.Context, principalID uuid.UUID, at time.Time) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	affected := make([]domain.Session, 0)
	for _, session := range f.sessions {
		if session.PrincipalID != principalID || session.Status != domain.SessionStatusOK {
			continue
		}
		if err := f.blacklistLocked(principalID, session.TokenID, at); err != nil {
			return nil, err
		}
		affected = append(affected, *session)
	}
	return affected, nil
}

func (f *fakeSessionStore) setPrincipalStatus(id uuid.UUID, status domain.PrincipalStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.principals[id].Status = status
}

type stubRevocationStore struct {
	entries map[uuid.UUID]struct {
		reason string
		ttl    time.Duration
	}
	errors struct {
		mark error
		get  error
	}
}

func (s *stubRevocationStore) MarkRevoked(_ context.Context, tokenID uuid.UUID, reason string, ttl time.Duration) error {
	if s.errors.mark != nil {
		return s.errors.mark
	}
	if s.entries == nil {
		s.entries = make(map[uuid.UUID]struct {
			reason string
			ttl    time.Duration
		})
	}
	s.entries[tokenID] = struct {
		reason string
		ttl    time.Duration
	}{reason: reason, ttl: ttl}
	return nil
}

func (s *stubRevocationStore) IsRevoked(_ context.Context, tokenID uuid.UUID) (bool, string, error) {
	if s.errors.get != nil {
		return false, "", s.errors.get
	}
	entry, ok := s.entries[tokenID]
	if !ok {
		return false, "", nil
	}
	return true, entry.reason, nil
}

type recordingPublisher struct {
	logins      []domain.SessionLoginEvent
	logouts     []domain.SessionLogoutEvent
	refreshes   []domain.SessionRefreshedEvent
	invalidated []domain.SessionsInvalidatedEvent
	err         error
}

func (p *recordingPublisher) PublishSessionLogin(_ context.Context, event domain.SessionLoginEvent) error {
	p.logins = append(p.logins, event)
	return p.err
}

func (p *recordingPublisher) PublishSessionLogout(_ context.Context, event domain.SessionLogoutEvent) error {
	p.logouts = append(p.logouts, event)
	return p.err
}

func (p *recordingPublisher) PublishSessionRefreshed(_ context.Context, event domain.SessionRefreshedEvent) error {
	p.refreshes = append(p.refreshes, event)
	return p.err
}

func (p *recordingPublisher) PublishSessionsInvalidated(_ context.Context, event domain.SessionsInvalidatedEvent) error {
	p.invalidated = append(p.invalidated, event)
	return p.err
}

// plainHasher stores passwords with a fixed prefix so tests stay fast.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "plain$" + password, nil
}

func (plainHasher) Verify(password, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "plain$") {
		return false, errors.New("unsupported hash")
	}
	return encoded == "plain$"+password, nil
}

func newTestPrincipal(username, password string, roles ...string) domain.Principal {
	hash, _ := plainHasher{}.Hash(password)
	return domain.Principal{
		ID:           uuid.New(),
		Name:         strings.ToUpper(username[:1]) + username[1:],
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: hash,
		Status:       domain.PrincipalStatusActive,
		Roles:        roles,
	}
}
