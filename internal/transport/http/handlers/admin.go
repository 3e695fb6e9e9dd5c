package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/directory-auth/internal/transport/http/middleware"
	"github.com/arklim/directory-auth/internal/usecase"
)

// AdminHandler exposes administrative session endpoints.
type AdminHandler struct {
	sessions *usecase.SessionService
	logger   *zap.Logger
}

// NewAdminHandler constructs a new handler instance.
func NewAdminHandler(sessions *usecase.SessionService, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{sessions: sessions, logger: logger}
}

// RegisterRoutes binds admin routes behind the administrative role.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, adminRole string) {
	r.POST("/principals/:id/invalidate", middleware.RequireRole(adminRole), h.InvalidateSessions)
}

// InvalidateSessions handles POST /api/v1/admin/principals/{id}/invalidate.
func (h *AdminHandler) InvalidateSessions(c *gin.Context) {
	principalID, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "principal id must be a UUID"))
		return
	}

	count, err := h.sessions.InvalidateAll(c.Request.Context(), middleware.GetRequestStatus(c), principalID)
	if err != nil {
		h.logger.Error("invalidate sessions failed",
			zap.String("principal_id", principalID.String()),
			zap.Error(err),
		)
		RespondWithMappedError(c, err, sessionErrorCases, http.StatusInternalServerError, "failed to invalidate sessions")
		return
	}

	c.JSON(http.StatusOK, InvalidateResponse{
		PrincipalID: principalID.String(),
		Invalidated: count,
	})
}
