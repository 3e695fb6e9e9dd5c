package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/directory-auth/internal/core/domain"
)

var oracleNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestOracle(t *testing.T, store *fakeSessionStore) *BackendOracle {
	t.Helper()
	return NewBackendOracle(store, plainHasher{}, zaptest.NewLogger(t)).
		WithClock(func() time.Time { return oracleNow })
}

func loginRequest(username, password string) domain.LoginRequest {
	return domain.LoginRequest{
		Username:  username,
		Password:  password,
		TokenID:   uuid.New(),
		Origin:    "203.0.113.7",
		IssuedAt:  oracleNow,
		ExpiresAt: oracleNow.Add(time.Hour),
	}
}

func TestBackendOracleLoginAndLookup(t *testing.T) {
	alice := newTestPrincipal("alice", "s3cret", "user")
	store := newFakeSessionStore(alice)
	events := &recordingPublisher{}
	oracle := newTestOracle(t, store).WithEventPublisher(events)

	req := loginRequest("ALICE", "s3cret")
	result, err := oracle.Login(context.Background(), req)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Principal.ID != alice.ID {
		t.Fatalf("expected principal %s, got %s", alice.ID, result.Principal.ID)
	}
	if result.Principal.PasswordHash != "" {
		t.Fatalf("expected password hash to be stripped")
	}
	if result.Session.TokenID != req.TokenID || result.Session.Status != domain.SessionStatusOK {
		t.Fatalf("unexpected session: %+v", result.Session)
	}

	if status := oracle.Lookup(context.Background(), req.TokenID); status != domain.BackendStatusValid {
		t.Fatalf("expected VALID, got %s", status)
	}
	if status := oracle.Lookup(context.Background(), uuid.New()); status != domain.BackendStatusNotPresent {
		t.Fatalf("expected NOT_PRESENT for unknown token id, got %s", status)
	}

	if len(events.logins) != 1 || events.logins[0].TokenID != req.TokenID {
		t.Fatalf("expected login event, got %+v", events.logins)
	}
}

func TestBackendOracleLoginRejectsBadCredentials(t *testing.T) {
	alice := newTestPrincipal("alice", "s3cret")
	locked := newTestPrincipal("bob", "hunter2")
	locked.Status = domain.PrincipalStatusLocked
	store := newFakeSessionStore(alice, locked)
	oracle := newTestOracle(t, store)

	cases := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{name: "blank username", username: "  ", password: "x", want: ErrCredentialsRequired},
		{name: "blank password", username: "alice", password: "", want: ErrCredentialsRequired},
		{name: "unknown user", username: "carol", password: "x", want: ErrInvalidCredentials},
		{name: "wrong password", username: "alice", password: "nope", want: ErrInvalidCredentials},
		{name: "inactive principal", username: "bob", password: "hunter2", want: ErrInactivePrincipal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := oracle.Login(context.Background(), loginRequest(tc.username, tc.password))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if len(store.sessions) != 0 {
		t.Fatalf("expected no sessions to be recorded, got %d", len(store.sessions))
	}
}

func TestBackendOracleLogoutBlacklistsSession(t *testing.T) {
	alice := newTestPrincipal("alice", "s3cret")
	store := newFakeSessionStore(alice)
	revocations := &stubRevocationStore{}
	events := &recordingPublisher{}
	oracle := newTestOracle(t, store).
		WithRevocationStore(revocations, domain.NewDegradationPolicy(domain.DegradationPolicyModeLenient)).
		WithEventPublisher(events)

	req := loginRequest("alice", "s3cret")
	if _, err := oracle.Login(context.Background(), req); err != nil {
		t.Fatalf("login: %v", err)
	}

	err := oracle.Logout(context.Background(), domain.LogoutRequest{
		SubjectID: alice.ID,
		TokenID:   req.TokenID,
		Origin:    req.Origin,
		At:        oracleNow.Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("logout: %v", err)
	}

	if status := oracle.Lookup(context.Background(), req.TokenID); status != domain.BackendStatusBlacklisted {
		t.Fatalf("expected BLACKLISTED, got %s", status)
	}
	entry, ok := revocations.entries[req.TokenID]
	if !ok {
		t.Fatalf("expected token id to be marked revoked")
	}
	if entry.reason != revokeReasonLogout || entry.ttl != 50*time.Minute {
		t.Fatalf("unexpected revocation entry: %+v", entry)
	}
	if len(events.logouts) != 1 {
		t.Fatalf("expected logout event, got %d", len(events.logouts))
	}

	err = oracle.Logout(context.Background(), domain.LogoutRequest{SubjectID: alice.ID, TokenID: req.TokenID})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second logout, got %v", err)
	}
}

func TestBackendOracleLogoutRejectsForeignSession(t *testing.T) {
	alice := newTestPrincipal("alice", "s3cret")
	store := newFakeSessionStore(alice)
	oracle := newTestOracle(t, store)

	req := loginRequest("alice", "s3cret")
	if _, err := oracle.Login(context.Background(), req); err != nil {
		t.Fatalf("login: %v", err)
	}

	err := oracle.Logout(context.Background(), domain.LogoutRequest{SubjectID: uuid.New(), TokenID: req.TokenID})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if status := oracle.Lookup(context.Background(), req.TokenID); status != domain.BackendStatusValid {
		t.Fatalf("expected session to stay VALID, got %s", status)
	}
}

func TestBackendOracleLookupBackendStates(t *testing.T) {
	alice := newTestPrincipal("alice", "s3cret")
	store := newFakeSessionStore(alice)
	oracle := newTestOracle(t, store)

	req := loginRequest("alice", "s3cret")
	if _, err := oracle.Login(context.Background(), req); err != nil {
		t.Fatalf("login: %v", err)
	}

	store.setPrincipalStatus(alice.ID, domain.PrincipalStatusInactive)
	if status := oracle.Lookup(context.Background(), req.TokenID); status != domain.BackendStatusBadPrincipal {
		t.Fatalf("expected BAD_PRINCIPAL, got %s", status)
	}
	store.setPrincipalStatus(alice.ID, domain.PrincipalStatusActive)

	expired := newTestOracle(t, store).WithClock(func() time.Time { return oracleNow.Add(2 * time.Hour) })
	if status := expired.Lookup(context.Background(), req.TokenID); status != domain.BackendStatusExpired {
		t.Fatalf("expected EXPIRED, got %s", status)
	}

	store.errors.lookup = errors.New("connection refused")
	if status := oracle.Lookup(context.Background(), req.TokenID); status != domain.BackendStatusError {
		t.Fatalf("expected ERROR, got %s", status)
	}
}

func TestBackendOracleRevocationDegradation(t *testing.T) {
	alice := newTestPrincipal("alice", "s3cret")
	store := newFakeSessionStore(alice)
	revocations := &stubRevocationStore{}
	revocations.errors.get = errors.New("redis: connection refused")

	req := loginRequest("alice", "s3cret")
	if _, err := newTestOracle(t, store).Login(context.Background(), req); err != nil {
		t.Fatalf("login: %v", err)
	}

	lenient := newTestOracle(t, store).
		WithRevocationStore(revocations, domain.NewDegradationPolicy(domain.DegradationPolicyModeLenient))
	if status := lenient.Lookup(context.Background(), req.TokenID); status != domain.BackendStatusValid {
		t.Fatalf("expected lenient policy to fall through to the session store, got %s", status)
	}

	strict := newTestOracle(t, store).
		WithRevocationStore(revocations, domain.NewDegradationPolicy(domain.DegradationPolicyModeStrict))
	calls := store.lookupCalls
	if status := strict.Lookup(context.Background(), req.TokenID); status != domain.BackendStatusError {
		t.Fatalf("expected strict policy to report ERROR, got %s", status)
	}
	if store.lookupCalls != calls {
		t.Fatalf("expected strict policy to skip the session store")
	}
}

func TestBackendOracleRevokedShortCircuits(t *testing.T) {
	store := newFakeSessionStore()
	revocations := &stubRevocationStore{}
	tokenID := uuid.New()
	if err := revocations.MarkRevoked(context.Background(), tokenID, revokeReasonLogout, time.Minute); err != nil {
		t.Fatalf("mark revoked: %v", err)
	}

	oracle := newTestOracle(t, store).
		WithRevocationStore(revocations, domain.NewDegradationPolicy(domain.DegradationPolicyModeLenient))
	if status := oracle.Lookup(context.Background(), tokenID); status != domain.BackendStatusBlacklisted {
		t.Fatalf("expected BLACKLISTED, got %s", status)
	}
	if store.lookupCalls != 0 {
		t.Fatalf("expected session store not to be consulted, got %d calls", store.lookupCalls)
	}
}

func TestBackendOracleRotate(t *testing.T) {
	alice := newTestPrincipal("alice", "s3cret")
	store := newFakeSessionStore(alice)
	revocations := &stubRevocationStore{}
	events := &recordingPublisher{}
	oracle := newTestOracle(t, store).
		WithRevocationStore(revocations, domain.NewDegradationPolicy(domain.DegradationPolicyModeLenient)).
		WithEventPublisher(events)

	req := loginRequest("alice", "s3cret")
	if _, err := oracle.Login(context.Background(), req); err != nil {
		t.Fatalf("login: %v", err)
	}

	rotate := domain.RotateRequest{
		SubjectID:       alice.ID,
		PreviousTokenID: req.TokenID,
		TokenID:         uuid.New(),
		Origin:          req.Origin,
		IssuedAt:        oracleNow.Add(5 * time.Minute),
		ExpiresAt:       oracleNow.Add(65 * time.Minute),
	}
	if err := oracle.Rotate(context.Background(), rotate); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if status := oracle.Lookup(context.Background(), req.TokenID); status != domain.BackendStatusBlacklisted {
		t.Fatalf("expected previous token id BLACKLISTED, got %s", status)
	}
	if status := oracle.Lookup(context.Background(), rotate.TokenID); status != domain.BackendStatusValid {
		t.Fatalf("expected rotated token id VALID, got %s", status)
	}
	if entry := revocations.entries[req.TokenID]; entry.reason != revokeReasonRotated {
		t.Fatalf("expected rotated revocation reason, got %q", entry.reason)
	}
	if len(events.refreshes) != 1 || events.refreshes[0].PreviousTokenID != req.TokenID {
		t.Fatalf("unexpected refresh events: %+v", events.refreshes)
	}

	if err := oracle.Rotate(context.Background(), rotate); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected replayed rotation to fail with ErrSessionNotFound, got %v", err)
	}
}

func TestBackendOracleInvalidateAll(t *testing.T) {
	alice := newTestPrincipal("alice", "s3cret")
	admin := newTestPrincipal("root", "toor", "admin")
	store := newFakeSessionStore(alice, admin)
	revocations := &stubRevocationStore{}
	events := &recordingPublisher{err: errors.New("broker unavailable")}
	oracle := newTestOracle(t, store).
		WithRevocationStore(revocations, domain.NewDegradationPolicy(domain.DegradationPolicyModeLenient)).
		WithEventPublisher(events)

	first := loginRequest("alice", "s3cret")
	second := loginRequest("alice", "s3cret")
	for _, req := range []domain.LoginRequest{first, second} {
		if _, err := oracle.Login(context.Background(), req); err != nil {
			t.Fatalf("login: %v", err)
		}
	}

	active, err := oracle.ActiveSessions(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("active sessions: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active sessions, got %d", len(active))
	}

	count, err := oracle.InvalidateAll(context.Background(), alice.ID, admin.ID)
	if err != nil {
		t.Fatalf("invalidate all: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 invalidated sessions, got %d", count)
	}
	for _, tokenID := range []uuid.UUID{first.TokenID, second.TokenID} {
		if status := oracle.Lookup(context.Background(), tokenID); status != domain.BackendStatusBlacklisted {
			t.Fatalf("expected BLACKLISTED, got %s", status)
		}
	}
	if len(events.invalidated) != 1 || events.invalidated[0].Count != 2 || events.invalidated[0].InvalidatedBy != admin.ID {
		t.Fatalf("unexpected invalidation events: %+v", events.invalidated)
	}

	if _, err := oracle.InvalidateAll(context.Background(), uuid.New(), admin.ID); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}
