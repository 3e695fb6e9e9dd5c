package routes

import (
	"context"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/directory-auth/internal/core/port"
	"github.com/arklim/directory-auth/internal/infra/config"
	"github.com/arklim/directory-auth/internal/infra/telemetry"
	"github.com/arklim/directory-auth/internal/transport/http/handlers"
	"github.com/arklim/directory-auth/internal/transport/http/middleware"
	"github.com/arklim/directory-auth/internal/usecase"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config    *config.AppConfig
	Logger    *zap.Logger
	Sessions  *usecase.SessionService
	Evaluator port.RequestEvaluator
	Database  DatabaseChecker
	Cache     CacheChecker
	// Registerer and Gatherer default to the Prometheus global registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext(middleware.ContextOptions{TrustForwardedFor: cfg.App.TrustForwardedFor}))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{
		Registerer: registerer,
		Namespace:  telemetry.DefaultNamespace,
	})
	if err != nil {
		log.Error("http metrics disabled", zap.Error(err))
	} else {
		r.Use(metrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if deps.Sessions == nil || deps.Evaluator == nil {
		log.Warn("session service not configured, auth routes disabled")
		return r
	}

	cookie := middleware.CookieOptions{
		Secure: cfg.Cookie.Secure,
		Domain: cfg.Cookie.Domain,
		Path:   cfg.Cookie.Path,
	}

	api := r.Group("/api/v1")
	api.Use(middleware.CSRF(middleware.CSRFOptions{
		Name:        cfg.CSRF.Name,
		TokenTTL:    cfg.CSRF.TokenTTL,
		ResyncTTL:   cfg.CSRF.ResyncTTL,
		PathPattern: csrfPattern(cfg.CSRF.PathPattern, log),
		Cookie:      cookie,
		Logger:      log,
	}))
	api.Use(middleware.Authenticate(deps.Evaluator))
	{
		authHandler := handlers.NewAuthHandler(deps.Sessions,
			handlers.WithCookieOptions(cookie, cfg.Cookie.RefreshName),
			handlers.WithLogger(log),
		)
		authHandler.RegisterRoutes(api.Group("/auth"))

		adminHandler := handlers.NewAdminHandler(deps.Sessions, log)
		adminHandler.RegisterRoutes(api.Group("/admin"), cfg.Authz.AdminRole)
	}

	return r
}

func csrfPattern(expr string, log *zap.Logger) *regexp.Regexp {
	if expr == "" {
		return nil
	}
	pattern, err := regexp.Compile(expr)
	if err != nil {
		log.Error("invalid csrf path pattern, guarding every path", zap.String("pattern", expr), zap.Error(err))
		return nil
	}
	return pattern
}
