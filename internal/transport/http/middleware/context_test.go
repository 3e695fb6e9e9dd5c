package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/directory-auth/internal/core/domain"
)

func TestClientOrigin(t *testing.T) {
	cases := []struct {
		name      string
		forwarded string
		remote    string
		trust     bool
		want      string
	}{
		{name: "remote address", remote: "192.0.2.10:51234", want: "192.0.2.10"},
		{name: "first forwarded entry", forwarded: "203.0.113.7, 10.0.0.1", remote: "10.0.0.1:80", trust: true, want: "203.0.113.7"},
		{name: "forwarded ignored when untrusted", forwarded: "203.0.113.7", remote: "10.0.0.1:80", want: "10.0.0.1"},
		{name: "ipv6 remote", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "garbage forwarded entry", forwarded: "unknown", remote: "10.0.0.1:80", trust: true, want: ""},
		{name: "unresolvable remote", remote: "pipe", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClientOrigin(tc.forwarded, tc.remote, tc.trust); got != tc.want {
				t.Fatalf("ClientOrigin = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEnrichContextCapturesRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	at := time.Date(2026, 3, 1, 12, 0, 0, 900_000_000, time.UTC)

	var captured domain.RequestContext
	router := gin.New()
	router.Use(EnrichContext(ContextOptions{TrustForwardedFor: true, Clock: func() time.Time { return at }}))
	router.GET("/origin", func(c *gin.Context) {
		captured = GetRequestContext(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/origin", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.4")
	req.Header.Set(TraceIDHeader, "trace-abc")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if captured.ClientOrigin != "198.51.100.4" {
		t.Fatalf("unexpected origin: %q", captured.ClientOrigin)
	}
	if !captured.Instant.Equal(at.Truncate(time.Second)) {
		t.Fatalf("expected instant truncated to seconds, got %s", captured.Instant)
	}
	if got := rr.Header().Get(TraceIDHeader); got != "trace-abc" {
		t.Fatalf("expected trace id to be echoed, got %q", got)
	}
}
