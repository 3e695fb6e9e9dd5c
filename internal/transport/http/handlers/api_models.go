package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/directory-auth/internal/core/domain"
	"github.com/arklim/directory-auth/internal/transport/http/middleware"
	"github.com/arklim/directory-auth/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// PrincipalSummary describes a minimal view of a principal returned by the API.
type PrincipalSummary struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Email    string                 `json:"email,omitempty"`
	Username string                 `json:"username"`
	Status   domain.PrincipalStatus `json:"status"`
	Roles    []string               `json:"roles,omitempty"`
}

// TokenResponse is returned after login and refresh. The access token itself
// travels in the Authorization response header, the refresh token in a cookie.
type TokenResponse struct {
	TokenType        string           `json:"token_type"`
	ExpiresIn        int              `json:"expires_in"`
	ExpiresAt        time.Time        `json:"expires_at"`
	RefreshExpiresAt *time.Time       `json:"refresh_expires_at,omitempty"`
	Principal        PrincipalSummary `json:"principal"`
}

// StatusResponse reports the verdict for the presented access token.
type StatusResponse struct {
	Status    domain.AuthStatus `json:"status"`
	TokenID   string            `json:"token_id,omitempty"`
	SubjectID string            `json:"subject_id,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Roles     []string          `json:"roles,omitempty"`
}

// SessionSummary describes one live session of a principal.
type SessionSummary struct {
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Origin    string    `json:"origin"`
	Current   bool      `json:"current"`
}

// SessionListResponse wraps the caller's active sessions.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// InvalidateResponse reports how many sessions were invalidated.
type InvalidateResponse struct {
	PrincipalID string `json:"principal_id"`
	Invalidated int    `json:"invalidated"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newPrincipalSummary(principal domain.Principal) PrincipalSummary {
	return PrincipalSummary{
		ID:       principal.ID.String(),
		Name:     principal.Name,
		Email:    principal.Email,
		Username: principal.Username,
		Status:   principal.Status,
		Roles:    principal.Roles,
	}
}

func newTokenResponse(tokens *usecase.IssuedTokens, now time.Time) TokenResponse {
	resp := TokenResponse{
		TokenType: middleware.BearerScheme,
		ExpiresAt: tokens.AccessExpiresAt,
		Principal: newPrincipalSummary(tokens.Principal),
	}
	if remaining := tokens.AccessExpiresAt.Sub(now); remaining > 0 {
		resp.ExpiresIn = int(remaining.Seconds())
	}
	if tokens.RefreshToken != "" {
		refreshExpiresAt := tokens.RefreshExpiresAt
		resp.RefreshExpiresAt = &refreshExpiresAt
	}
	return resp
}

func newStatusResponse(verdict domain.RequestStatus) StatusResponse {
	resp := StatusResponse{Status: verdict.Status}
	if !verdict.IsValid() {
		return resp
	}
	expiresAt := verdict.ExpiresAt
	resp.TokenID = verdict.TokenID.String()
	resp.SubjectID = verdict.SubjectID.String()
	resp.ExpiresAt = &expiresAt
	resp.Roles = domain.ParseRoles(verdict.Roles)
	return resp
}

func newSessionSummary(session domain.Session, current domain.RequestStatus) SessionSummary {
	return SessionSummary{
		TokenID:   session.TokenID.String(),
		IssuedAt:  session.IssuedAt,
		ExpiresAt: session.ExpiresAt,
		Origin:    session.RequestOrigin,
		Current:   session.TokenID == current.TokenID,
	}
}
