package middleware

import (
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/arklim/directory-auth/internal/infra/logger"
	"github.com/arklim/directory-auth/internal/infra/security"
)

const (
	defaultCSRFName      = "rst"
	defaultCSRFTokenTTL  = 30 * time.Minute
	defaultCSRFResyncTTL = 120 * time.Second
)

// CookieOptions carries the attributes shared by every cookie the service sets.
type CookieOptions struct {
	Secure bool
	Domain string
	Path   string
}

// CSRFOptions configures the double-submit guard.
type CSRFOptions struct {
	// Name is used for both the cookie and the header.
	Name      string
	TokenTTL  time.Duration
	ResyncTTL time.Duration
	// PathPattern selects guarded requests; nil guards every path.
	PathPattern *regexp.Regexp
	Cookie      CookieOptions
	Logger      *zap.Logger
}

// CSRF enforces the double-submit token check on mutating requests whose path
// matches the pattern. A request carrying neither cookie nor header is answered
// with 205 and a short-lived token; one without the other, or a mismatch, is
// rejected with 400. Every matching response carries a freshly minted token.
func CSRF(opts CSRFOptions) gin.HandlerFunc {
	name := opts.Name
	if name == "" {
		name = defaultCSRFName
	}
	tokenTTL := opts.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultCSRFTokenTTL
	}
	resyncTTL := opts.ResyncTTL
	if resyncTTL <= 0 {
		resyncTTL = defaultCSRFResyncTTL
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	issue := func(c *gin.Context, ttl time.Duration) bool {
		token, err := security.GenerateCSRFToken()
		if err != nil {
			log.Error("generate csrf token failed", zap.Error(err))
			abortWithError(c, http.StatusInternalServerError, "internal server error")
			return false
		}
		setCookie(c, opts.Cookie, name, token, ttl, false)
		c.Header(name, token)
		return true
	}

	return func(c *gin.Context) {
		if opts.PathPattern != nil && !opts.PathPattern.MatchString(c.Request.URL.Path) {
			c.Next()
			return
		}

		if isMutating(c.Request.Method) {
			cookieToken, _ := c.Cookie(name)
			headerToken := c.GetHeader(name)

			switch {
			case cookieToken == "" && headerToken == "":
				if issue(c, resyncTTL) {
					c.AbortWithStatus(http.StatusResetContent)
				}
				return
			case cookieToken == "" || headerToken == "":
				log.Debug("csrf token missing from one channel",
					zap.String("path", c.Request.URL.Path),
					zap.Bool("cookie_present", cookieToken != ""),
				)
				if issue(c, tokenTTL) {
					abortWithError(c, http.StatusBadRequest, "csrf token mismatch")
				}
				return
			case !security.TokensEqual(cookieToken, headerToken):
				log.Debug("csrf token mismatch",
					zap.String("path", c.Request.URL.Path),
					zap.String("header_token", appLogger.MaskString(headerToken)),
				)
				if issue(c, tokenTTL) {
					abortWithError(c, http.StatusBadRequest, "csrf token mismatch")
				}
				return
			}
		}

		if !issue(c, tokenTTL) {
			return
		}
		c.Next()
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

// setCookie writes a SameSite=Strict cookie. A non-positive ttl expires the cookie.
func setCookie(c *gin.Context, opts CookieOptions, name, value string, ttl time.Duration, httpOnly bool) {
	path := opts.Path
	if path == "" {
		path = "/"
	}

	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   opts.Domain,
		Secure:   opts.Secure,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteStrictMode,
	}
	if ttl > 0 {
		cookie.MaxAge = int(ttl / time.Second)
	} else {
		cookie.MaxAge = -1
	}
	http.SetCookie(c.Writer, cookie)
}

// SetCookie writes an HttpOnly, SameSite=Strict cookie.
func SetCookie(c *gin.Context, opts CookieOptions, name, value string, ttl time.Duration) {
	setCookie(c, opts, name, value, ttl, true)
}

// ClearCookie expires a cookie previously set with SetCookie.
func ClearCookie(c *gin.Context, opts CookieOptions, name string) {
	setCookie(c, opts, name, "", 0, true)
}
