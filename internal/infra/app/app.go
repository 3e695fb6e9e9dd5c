package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/directory-auth/internal/core/domain"
	"github.com/arklim/directory-auth/internal/core/port"
	"github.com/arklim/directory-auth/internal/infra/cache"
	"github.com/arklim/directory-auth/internal/infra/config"
	"github.com/arklim/directory-auth/internal/infra/database"
	kafkainfra "github.com/arklim/directory-auth/internal/infra/kafka"
	"github.com/arklim/directory-auth/internal/infra/logger"
	redisinfra "github.com/arklim/directory-auth/internal/infra/redis"
	"github.com/arklim/directory-auth/internal/infra/security"
	"github.com/arklim/directory-auth/internal/infra/telemetry"
	postgresrepo "github.com/arklim/directory-auth/internal/repository/postgres"
	redisrepo "github.com/arklim/directory-auth/internal/repository/redis"
	"github.com/arklim/directory-auth/internal/transport/http/routes"
	"github.com/arklim/directory-auth/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	success := false
	defer func() {
		if !success {
			a.close(context.Background())
		}
	}()

	if cfg.Telemetry.Enabled {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		a.tracer = tp
	}

	secret, err := security.ParseSharedSecret(cfg.JWT.SharedSecret)
	if err != nil {
		return nil, fmt.Errorf("decode jwt shared secret: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(port.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	oracle := usecase.NewBackendOracle(postgresrepo.NewSessionStore(pool), hasher, log)

	if cfg.Redis.Enabled {
		redisClient, err := redisinfra.NewClient(cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.redis = redisClient

		policy := domain.NewDegradationPolicy(domain.ParseDegradationPolicyMode(cfg.Revocation.DegradationPolicy))
		oracle.WithRevocationStore(redisrepo.NewRevocationRepository(redisClient.Client(), cfg.Redis.RevocationPrefix), policy)
		log.Info("revocation denylist enabled", zap.String("degradation_policy", string(policy.Mode())))
	}

	oracle.WithEventPublisher(a.eventPublisher())

	statusCache, err := cache.NewStatusCache(oracle, cache.StatusCacheOptions{
		TTL:        cfg.StatusCache.TTL,
		MaxSize:    cfg.StatusCache.MaxSize,
		Registerer: prometheus.DefaultRegisterer,
		Namespace:  telemetry.DefaultNamespace,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init status cache: %w", err)
	}

	accessCodec := security.NewTokenCodec(security.TokenCodecConfig{
		Secret: secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.AccessTokenTTL,
		Use:    domain.TokenUseAccess,
	}, log)
	accessEvaluator, err := newEvaluator(accessCodec, statusCache, domain.TokenUseAccess, log)
	if err != nil {
		return nil, err
	}

	sessions := usecase.NewSessionService(oracle, accessCodec, log)
	if cfg.JWT.RefreshEnabled() {
		refreshCodec := security.NewTokenCodec(security.TokenCodecConfig{
			Secret: secret,
			Issuer: cfg.JWT.Issuer,
			TTL:    cfg.JWT.RefreshTokenTTL,
			Use:    domain.TokenUseRefresh,
		}, log)
		refreshEvaluator, err := newEvaluator(refreshCodec, statusCache, domain.TokenUseRefresh, log)
		if err != nil {
			return nil, err
		}
		sessions.WithRefresh(refreshCodec, refreshEvaluator)
	}

	deps := routes.Dependencies{
		Config:    cfg,
		Logger:    log,
		Sessions:  sessions,
		Evaluator: accessEvaluator,
		Database:  pool,
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	success = true
	return a, nil
}

func newEvaluator(codec *security.TokenCodec, statusCache *cache.StatusCache, use domain.TokenUse, log *zap.Logger) (*usecase.StatusEvaluator, error) {
	evaluator, err := usecase.NewStatusEvaluator(codec, statusCache, usecase.EvaluatorOptions{
		Registerer: prometheus.DefaultRegisterer,
		Namespace:  telemetry.DefaultNamespace,
		Use:        use,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init %s evaluator: %w", use, err)
	}
	return evaluator, nil
}

func (a *Application) eventPublisher() port.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

func (a *Application) Run(ctx context.Context) error {
	defer a.close(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// close releases infrastructure in reverse order of construction.
func (a *Application) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
