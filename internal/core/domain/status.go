package domain

import (
	"time"

	"github.com/google/uuid"
)

// BackendStatus is the verdict of the authoritative session store for a token id.
type BackendStatus string

const (
	BackendStatusNotPresent      BackendStatus = "NOT_PRESENT"
	BackendStatusPresentBadState BackendStatus = "PRESENT_BAD_STATE"
	BackendStatusBlacklisted     BackendStatus = "BLACKLISTED"
	BackendStatusBadPrincipal    BackendStatus = "BAD_PRINCIPAL"
	BackendStatusExpired         BackendStatus = "EXPIRED"
	BackendStatusValid           BackendStatus = "VALID"
	BackendStatusError           BackendStatus = "ERROR"
)

// AuthStatus is the closed set of request-level token verdicts.
type AuthStatus string

const (
	AuthStatusNotPresent        AuthStatus = "NOT_PRESENT"
	AuthStatusMalformed         AuthStatus = "MALFORMED"
	AuthStatusBadSignature      AuthStatus = "BAD_SIGNATURE"
	AuthStatusBadClaims         AuthStatus = "BAD_CLAIMS"
	AuthStatusNotPresentBackend AuthStatus = "NOT_PRESENT_BACKEND"
	AuthStatusExpired           AuthStatus = "EXPIRED"
	AuthStatusBlocked           AuthStatus = "BLOCKED"
	AuthStatusError             AuthStatus = "ERROR"
	AuthStatusValid             AuthStatus = "VALID"
)

// AuthStatusFromBackend maps a backend verdict to the request-level verdict.
func AuthStatusFromBackend(status BackendStatus) AuthStatus {
	switch status {
	case BackendStatusNotPresent:
		return AuthStatusNotPresentBackend
	case BackendStatusBlacklisted, BackendStatusBadPrincipal:
		return AuthStatusBlocked
	case BackendStatusExpired:
		return AuthStatusExpired
	case BackendStatusValid:
		return AuthStatusValid
	default:
		return AuthStatusError
	}
}

// RequestStatus is the single verdict produced for an incoming request's token.
// Identity fields are populated whenever the token could be decoded.
type RequestStatus struct {
	Status    AuthStatus
	TokenID   uuid.UUID
	SubjectID uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
	Roles     string
}

// NewRequestStatus builds a verdict without identity information.
func NewRequestStatus(status AuthStatus) RequestStatus {
	return RequestStatus{Status: status}
}

// NewRequestStatusFromClaims builds a verdict that carries the token identity.
func NewRequestStatusFromClaims(status AuthStatus, claims TokenClaims) RequestStatus {
	return RequestStatus{
		Status:    status,
		TokenID:   claims.TokenID,
		SubjectID: claims.SubjectID,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
		Roles:     claims.Roles,
	}
}

// IsPresent reports whether a token was supplied at all.
func (s RequestStatus) IsPresent() bool {
	return s.Status != "" && s.Status != AuthStatusNotPresent
}

// IsValid reports whether the request is authenticated.
func (s RequestStatus) IsValid() bool {
	return s.Status == AuthStatusValid
}

// IsExpired reports whether the presented token has expired.
func (s RequestStatus) IsExpired() bool {
	return s.Status == AuthStatusExpired
}

// ExpiredOrNotPresent reports whether a fresh login is permitted.
func (s RequestStatus) ExpiredOrNotPresent() bool {
	return !s.IsPresent() || s.IsExpired()
}

// HasRole reports whether the verdict is VALID and carries the supplied role.
func (s RequestStatus) HasRole(role string) bool {
	return s.IsValid() && HasRole(s.Roles, role)
}
