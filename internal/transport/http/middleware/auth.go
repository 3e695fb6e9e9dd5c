package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/directory-auth/internal/core/domain"
	"github.com/arklim/directory-auth/internal/core/port"
)

const (
	// AuthorizationHeader carries access tokens on requests and responses.
	AuthorizationHeader = "Authorization"
	// BearerScheme prefixes access tokens in AuthorizationHeader.
	BearerScheme = "Bearer"

	requestStatusKey = "request_status"
)

// StatusCode maps a token verdict to the HTTP status returned when it blocks a request.
func StatusCode(status domain.AuthStatus) int {
	switch status {
	case domain.AuthStatusValid:
		return http.StatusOK
	case domain.AuthStatusMalformed, domain.AuthStatusBadSignature, domain.AuthStatusBadClaims:
		return http.StatusForbidden
	case domain.AuthStatusError:
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}

// BearerToken extracts the token from an Authorization header value.
// The second result is false when a header is present but does not use the Bearer scheme.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", true
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, BearerScheme) {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// Authenticate evaluates the request's access token once and stores the verdict for
// handlers and route guards. It never rejects a request based on the verdict itself;
// only an unresolvable client origin is refused.
func Authenticate(evaluator port.RequestEvaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := GetRequestContext(c)
		if rc.ClientOrigin == "" {
			abortWithError(c, http.StatusUnauthorized, "client origin could not be determined")
			return
		}

		token, ok := BearerToken(c.GetHeader(AuthorizationHeader))
		var verdict domain.RequestStatus
		if ok {
			verdict = evaluator.Evaluate(c.Request.Context(), rc, token)
		} else {
			verdict = domain.NewRequestStatus(domain.AuthStatusMalformed)
		}

		c.Set(requestStatusKey, verdict)
		c.Next()
	}
}

// RequireValid rejects requests whose token verdict is not VALID.
func RequireValid() gin.HandlerFunc {
	return func(c *gin.Context) {
		verdict := GetRequestStatus(c)
		if !verdict.IsValid() {
			abortWithError(c, StatusCode(verdict.Status), statusMessage(verdict.Status))
			return
		}
		c.Next()
	}
}

// RequireRole rejects requests that are not VALID or lack role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		verdict := GetRequestStatus(c)
		if !verdict.IsValid() {
			abortWithError(c, StatusCode(verdict.Status), statusMessage(verdict.Status))
			return
		}
		if !verdict.HasRole(role) {
			abortWithError(c, http.StatusForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}

// GetRequestStatus returns the verdict stored by Authenticate, or NOT_PRESENT when none was stored.
func GetRequestStatus(c *gin.Context) domain.RequestStatus {
	if verdict, ok := lookupRequestStatus(c); ok {
		return verdict
	}
	return domain.NewRequestStatus(domain.AuthStatusNotPresent)
}

func lookupRequestStatus(c *gin.Context) (domain.RequestStatus, bool) {
	val, exists := c.Get(requestStatusKey)
	if !exists {
		return domain.RequestStatus{}, false
	}
	verdict, ok := val.(domain.RequestStatus)
	return verdict, ok
}

func statusMessage(status domain.AuthStatus) string {
	switch status {
	case domain.AuthStatusNotPresent:
		return "authentication required"
	case domain.AuthStatusExpired:
		return "access token expired"
	case domain.AuthStatusBlocked, domain.AuthStatusNotPresentBackend:
		return "session is no longer valid"
	case domain.AuthStatusError:
		return "authentication failed"
	default:
		return "invalid access token"
	}
}
