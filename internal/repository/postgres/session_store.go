package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/directory-auth/internal/core/domain"
	"github.com/arklim/directory-auth/internal/core/port"
	"github.com/arklim/directory-auth/internal/repository"
)

var (
	principalColumns = []string{"id", "name", "email", "username", "password_hash", "status", "roles", "created_at", "modified_at"}
	sessionColumns   = []string{"token_id", "principal_id", "status", "issued_at", "expires_at", "request_origin", "logged_out_at"}
)

// SessionStore implements port.SessionStore backed by PostgreSQL.
type SessionStore struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionStore constructs a store backed by any executor that satisfies pgExecutor.
func NewSessionStore(exec pgExecutor) *SessionStore {
	return &SessionStore{exec: exec, builder: newBuilder()}
}

// LookupStatus resolves the backend verdict for a token id at the supplied instant.
func (s *SessionStore) LookupStatus(ctx context.Context, tokenID uuid.UUID, at time.Time) (domain.BackendStatus, error) {
	query, args, err := s.builder.
		Select("s.status", "s.expires_at", "p.status").
		From(sessionsTable + " s").
		Join(principalsTable + " p ON p.id = s.principal_id").
		Where(squirrel.Eq{"s.token_id": tokenID}).
		ToSql()
	if err != nil {
		return domain.BackendStatusError, fmt.Errorf("build lookup status sql: %w", err)
	}

	var (
		sessionStatus   string
		expiresAt       time.Time
		principalStatus string
	)
	if err := s.exec.QueryRow(ctx, query, args...).Scan(&sessionStatus, &expiresAt, &principalStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BackendStatusNotPresent, nil
		}
		return domain.BackendStatusError, fmt.Errorf("lookup session status: %w", err)
	}

	switch domain.SessionStatus(sessionStatus) {
	case domain.SessionStatusBlacklisted:
		return domain.BackendStatusBlacklisted, nil
	case domain.SessionStatusOK:
	default:
		return domain.BackendStatusPresentBadState, nil
	}
	if domain.PrincipalStatus(principalStatus) != domain.PrincipalStatusActive {
		return domain.BackendStatusBadPrincipal, nil
	}
	if !expiresAt.After(at) {
		return domain.BackendStatusExpired, nil
	}
	return domain.BackendStatusValid, nil
}

// GetPrincipalByUsername fetches a principal by case-insensitive username.
func (s *SessionStore) GetPrincipalByUsername(ctx context.Context, username string) (*domain.Principal, error) {
	query, args, err := s.builder.Select(principalColumns...).
		From(principalsTable).
		Where("lower(username) = lower(?)", strings.TrimSpace(username)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get principal by username sql: %w", err)
	}
	return s.queryPrincipal(ctx, query, args...)
}

// GetPrincipal fetches a principal by id.
func (s *SessionStore) GetPrincipal(ctx context.Context, id uuid.UUID) (*domain.Principal, error) {
	query, args, err := s.builder.Select(principalColumns...).
		From(principalsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get principal sql: %w", err)
	}
	return s.queryPrincipal(ctx, query, args...)
}

func (s *SessionStore) queryPrincipal(ctx context.Context, query string, args ...any) (*domain.Principal, error) {
	principal, err := scanPrincipal(s.exec.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get principal: %w", err)
	}
	return principal, nil
}

// CreateSession records a freshly issued token id.
func (s *SessionStore) CreateSession(ctx context.Context, session domain.Session) error {
	return insertSession(ctx, s.exec, s.builder, session)
}

// GetSession fetches the session record for a token id.
func (s *SessionStore) GetSession(ctx context.Context, tokenID uuid.UUID) (*domain.Session, error) {
	query, args, err := s.builder.Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"token_id": tokenID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get session sql: %w", err)
	}

	session, err := scanSession(s.exec.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// Blacklist marks an OK session as BLACKLISTED. Returns repository.ErrNotFound
// when no OK session matches both ids.
func (s *SessionStore) Blacklist(ctx context.Context, principalID, tokenID uuid.UUID, at time.Time) error {
	return blacklistSession(ctx, s.exec, s.builder, principalID, tokenID, at)
}

// Rotate blacklists the previous token id and records its replacement atomically.
func (s *SessionStore) Rotate(ctx context.Context, req domain.RotateRequest) error {
	tx, err := s.exec.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rotate: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := blacklistSession(ctx, tx, s.builder, req.SubjectID, req.PreviousTokenID, req.IssuedAt); err != nil {
		return err
	}

	if err := insertSession(ctx, tx, s.builder, domain.Session{
		TokenID:       req.TokenID,
		PrincipalID:   req.SubjectID,
		Status:        domain.SessionStatusOK,
		IssuedAt:      req.IssuedAt,
		ExpiresAt:     req.ExpiresAt,
		RequestOrigin: req.Origin,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rotate: %w", err)
	}
	committed = true
	return nil
}

// ListActive returns OK, unexpired sessions for a principal, newest first.
func (s *SessionStore) ListActive(ctx context.Context, principalID uuid.UUID, at time.Time) ([]domain.Session, error) {
	query, args, err := s.builder.Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"principal_id": principalID}).
		Where(squirrel.Eq{"status": string(domain.SessionStatusOK)}).
		Where(squirrel.Gt{"expires_at": at}).
		OrderBy("issued_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list active sessions sql: %w", err)
	}

	rows, err := s.exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// BlacklistAll blacklists every OK session of a principal and returns the affected records.
func (s *SessionStore) BlacklistAll(ctx context.Context, principalID uuid.UUID, at time.Time) ([]domain.Session, error) {
	query, args, err := s.builder.Update(sessionsTable).
		Set("status", string(domain.SessionStatusBlacklisted)).
		Set("logged_out_at", at).
		Where(squirrel.Eq{"principal_id": principalID}).
		Where(squirrel.Eq{"status": string(domain.SessionStatusOK)}).
		Suffix("RETURNING " + strings.Join(sessionColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build blacklist all sql: %w", err)
	}

	rows, err := s.exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("blacklist sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func insertSession(ctx context.Context, exec statementExecer, builder squirrel.StatementBuilderType, session domain.Session) error {
	status := session.Status
	if status == "" {
		status = domain.SessionStatusOK
	}

	query, args, err := builder.Insert(sessionsTable).
		Columns("token_id", "principal_id", "status", "issued_at", "expires_at", "request_origin").
		Values(session.TokenID, session.PrincipalID, string(status), session.IssuedAt, session.ExpiresAt, session.RequestOrigin).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := exec.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func blacklistSession(ctx context.Context, exec statementExecer, builder squirrel.StatementBuilderType, principalID, tokenID uuid.UUID, at time.Time) error {
	query, args, err := builder.Update(sessionsTable).
		Set("status", string(domain.SessionStatusBlacklisted)).
		Set("logged_out_at", at).
		Where(squirrel.Eq{"token_id": tokenID}).
		Where(squirrel.Eq{"principal_id": principalID}).
		Where(squirrel.Eq{"status": string(domain.SessionStatusOK)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build blacklist session sql: %w", err)
	}

	tag, err := exec.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("blacklist session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanPrincipal(row pgx.Row) (*domain.Principal, error) {
	var (
		p      domain.Principal
		status string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Username, &p.PasswordHash, &status, &p.Roles, &p.CreatedAt, &p.ModifiedAt); err != nil {
		return nil, err
	}
	p.Status = domain.PrincipalStatus(status)
	return &p, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		session domain.Session
		status  string
	)
	if err := row.Scan(
		&session.TokenID,
		&session.PrincipalID,
		&status,
		&session.IssuedAt,
		&session.ExpiresAt,
		&session.RequestOrigin,
		&session.LoggedOutAt,
	); err != nil {
		return nil, err
	}
	session.Status = domain.SessionStatus(status)
	return &session, nil
}

var _ port.SessionStore = (*SessionStore)(nil)
