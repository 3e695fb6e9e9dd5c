package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/directory-auth/internal/transport/http/middleware"
	"github.com/arklim/directory-auth/internal/usecase"
)

const defaultRefreshCookie = "rft"

// AuthHandler exposes login, logout, refresh and session introspection endpoints.
type AuthHandler struct {
	sessions      *usecase.SessionService
	cookie        middleware.CookieOptions
	refreshCookie string
	logger        *zap.Logger
}

// AuthHandlerOption configures optional AuthHandler dependencies.
type AuthHandlerOption func(*AuthHandler)

// WithCookieOptions sets the attributes of the refresh cookie.
func WithCookieOptions(opts middleware.CookieOptions, refreshName string) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.cookie = opts
		if name := strings.TrimSpace(refreshName); name != "" {
			h.refreshCookie = name
		}
	}
}

// WithLogger injects the handler logger.
func WithLogger(logger *zap.Logger) AuthHandlerOption {
	return func(h *AuthHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(sessions *usecase.SessionService, opts ...AuthHandlerOption) *AuthHandler {
	handler := &AuthHandler{
		sessions:      sessions,
		cookie:        middleware.CookieOptions{Secure: true, Path: "/"},
		refreshCookie: defaultRefreshCookie,
		logger:        zap.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}

	return handler
}

// RegisterRoutes binds authentication routes. Authenticate must already run on the group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.login)
	r.POST("/refresh", h.refresh)
	r.GET("/status", h.status)

	r.POST("/logout", middleware.RequireValid(), h.logout)
	r.GET("/me", middleware.RequireValid(), h.me)
	r.GET("/sessions", middleware.RequireValid(), h.listSessions)
}

// login handles POST /api/v1/auth/login.
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	rc := middleware.GetRequestContext(c)
	tokens, err := h.sessions.Login(c.Request.Context(), middleware.GetRequestStatus(c), rc, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		h.respondError(c, "login", err)
		return
	}

	h.writeTokens(c, tokens)
	c.JSON(http.StatusOK, newTokenResponse(tokens, rc.Instant))
}

// logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) logout(c *gin.Context) {
	err := h.sessions.Logout(c.Request.Context(), middleware.GetRequestStatus(c), middleware.GetRequestContext(c))
	if err != nil {
		h.respondError(c, "logout", err)
		return
	}

	middleware.ClearCookie(c, h.cookie, h.refreshCookie)
	c.Status(http.StatusNoContent)
}

// refresh handles POST /api/v1/auth/refresh. The refresh token is read from its cookie.
func (h *AuthHandler) refresh(c *gin.Context) {
	if !h.sessions.RefreshEnabled() {
		RespondWithMappedError(c, usecase.ErrRefreshDisabled, sessionErrorCases, http.StatusInternalServerError, "failed to refresh session")
		return
	}

	token, err := c.Cookie(h.refreshCookie)
	if err != nil || token == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "refresh token required"))
		return
	}

	rc := middleware.GetRequestContext(c)
	tokens, err := h.sessions.Refresh(c.Request.Context(), rc, token)
	if err != nil {
		h.respondError(c, "refresh", err)
		return
	}

	h.writeTokens(c, tokens)
	c.JSON(http.StatusOK, newTokenResponse(tokens, rc.Instant))
}

// status handles GET /api/v1/auth/status. It always answers 200 with the verdict.
func (h *AuthHandler) status(c *gin.Context) {
	c.JSON(http.StatusOK, newStatusResponse(middleware.GetRequestStatus(c)))
}

// me handles GET /api/v1/auth/me.
func (h *AuthHandler) me(c *gin.Context) {
	principal, err := h.sessions.CurrentLogin(c.Request.Context(), middleware.GetRequestStatus(c))
	if err != nil {
		h.respondError(c, "current login", err)
		return
	}
	c.JSON(http.StatusOK, newPrincipalSummary(*principal))
}

// listSessions handles GET /api/v1/auth/sessions.
func (h *AuthHandler) listSessions(c *gin.Context) {
	current := middleware.GetRequestStatus(c)
	sessions, err := h.sessions.ActiveLogins(c.Request.Context(), current)
	if err != nil {
		h.respondError(c, "active logins", err)
		return
	}

	resp := SessionListResponse{Sessions: make([]SessionSummary, 0, len(sessions))}
	for _, session := range sessions {
		resp.Sessions = append(resp.Sessions, newSessionSummary(session, current))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) writeTokens(c *gin.Context, tokens *usecase.IssuedTokens) {
	c.Header(middleware.AuthorizationHeader, middleware.BearerScheme+" "+tokens.AccessToken)
	if tokens.RefreshToken == "" {
		return
	}
	ttl := tokens.RefreshExpiresAt.Sub(middleware.GetRequestContext(c).Instant)
	middleware.SetCookie(c, h.cookie, h.refreshCookie, tokens.RefreshToken, ttl)
}

func (h *AuthHandler) respondError(c *gin.Context, op string, err error) {
	h.logger.Debug("auth request failed",
		zap.String("op", op),
		zap.String("trace_id", middleware.GetTraceID(c)),
		zap.Error(err),
	)
	RespondWithMappedError(c, err, sessionErrorCases, http.StatusInternalServerError, op+" failed")
}
