package handlers

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/arklim/directory-auth/internal/core/domain"
)

func TestAdminInvalidateSessions(t *testing.T) {
	h := newAuthHarness(t, false)
	h.backend.addPrincipal("root", "toor", "admin")
	alice := h.backend.addPrincipal("alice", "s3cret", "user")

	adminToken, _ := h.login(t, "root", "toor")
	aliceFirst, _ := h.login(t, "alice", "s3cret")
	h.login(t, "alice", "s3cret")

	rr := h.do(http.MethodPost, "/api/v1/admin/principals/"+alice.ID.String()+"/invalidate", nil, withBearer(adminToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if resp := decode[InvalidateResponse](t, rr); resp.Invalidated != 2 || resp.PrincipalID != alice.ID.String() {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp := decode[StatusResponse](t, h.do("GET", "/api/v1/auth/status", nil, withBearer(aliceFirst)))
	if resp.Status != domain.AuthStatusBlocked {
		t.Fatalf("expected invalidated token to be BLOCKED, got %s", resp.Status)
	}
}

func TestAdminInvalidateRequiresRole(t *testing.T) {
	h := newAuthHarness(t, false)
	alice := h.backend.addPrincipal("alice", "s3cret", "user")
	token, _ := h.login(t, "alice", "s3cret")

	path := "/api/v1/admin/principals/" + alice.ID.String() + "/invalidate"
	if rr := h.do(http.MethodPost, path, nil, withBearer(token)); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without admin role, got %d", rr.Code)
	}
	if rr := h.do(http.MethodPost, path, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
}

func TestAdminInvalidateValidatesPrincipal(t *testing.T) {
	h := newAuthHarness(t, false)
	h.backend.addPrincipal("root", "toor", "admin")
	token, _ := h.login(t, "root", "toor")

	if rr := h.do(http.MethodPost, "/api/v1/admin/principals/not-a-uuid/invalidate", nil, withBearer(token)); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if rr := h.do(http.MethodPost, "/api/v1/admin/principals/"+uuid.NewString()+"/invalidate", nil, withBearer(token)); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown principal, got %d", rr.Code)
	}
}
