package middleware

import (
	"net"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/arklim/directory-auth/internal/core/domain"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"

	requestContextKey  = "request_context"
	forwardedForHeader = "X-Forwarded-For"
)

// ContextOptions configures EnrichContext.
type ContextOptions struct {
	// TrustForwardedFor takes the client origin from the first X-Forwarded-For entry.
	TrustForwardedFor bool
	Clock             func() time.Time
}

// EnrichContext stamps each request with a trace id, its arrival instant and the client origin.
func EnrichContext(opts ContextOptions) gin.HandlerFunc {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
				traceID = sc.TraceID().String()
			} else {
				traceID = uuid.NewString()
			}
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		origin := ClientOrigin(c.GetHeader(forwardedForHeader), c.Request.RemoteAddr, opts.TrustForwardedFor)
		c.Set(requestContextKey, domain.NewRequestContext(clock(), origin))

		c.Next()
	}
}

// ClientOrigin resolves the normalised client IP. The first X-Forwarded-For
// entry wins when trusted; otherwise the connection's remote address is used.
// An empty result means the origin could not be resolved.
func ClientOrigin(forwardedFor, remoteAddr string, trustForwardedFor bool) string {
	if trustForwardedFor && forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		return normaliseIP(first)
	}

	host := strings.TrimSpace(remoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return normaliseIP(host)
}

func normaliseIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return ""
	}
	return ip.String()
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext returns the instant and origin captured for the request.
func GetRequestContext(c *gin.Context) domain.RequestContext {
	if val, exists := c.Get(requestContextKey); exists {
		if rc, ok := val.(domain.RequestContext); ok {
			return rc
		}
	}
	return domain.RequestContext{}
}
