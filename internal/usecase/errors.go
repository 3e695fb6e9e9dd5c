package usecase

import "errors"

var (
	// ErrInvalidCredentials indicates the supplied username or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCredentialsRequired indicates a blank username or password.
	ErrCredentialsRequired = errors.New("username and password are required")
	// ErrInactivePrincipal indicates the principal may not hold sessions.
	ErrInactivePrincipal = errors.New("principal is not active")
	// ErrAlreadyAuthenticated indicates a login was attempted while holding a live token.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	// ErrNotAuthenticated indicates the operation requires a VALID token.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionNotFound indicates no active session matched the token.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPrincipalNotFound indicates the referenced principal does not exist.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrInvalidRefreshToken indicates the refresh token is absent, invalid or already rotated.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshDisabled indicates refresh tokens are not issued by this deployment.
	ErrRefreshDisabled = errors.New("refresh tokens disabled")
)
