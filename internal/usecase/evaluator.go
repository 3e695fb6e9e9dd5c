package usecase

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/arklim/directory-auth/internal/core/domain"
	"github.com/arklim/directory-auth/internal/core/port"
	"github.com/arklim/directory-auth/internal/infra/telemetry"
)

// EvaluatorOptions configures verdict metrics for a StatusEvaluator.
type EvaluatorOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	// Use labels the verdict metric; it does not affect evaluation.
	Use domain.TokenUse
}

// StatusEvaluator turns a presented token into a single RequestStatus.
type StatusEvaluator struct {
	codec    port.TokenCodec
	cache    port.StatusCache
	use      string
	verdicts *prometheus.CounterVec
	logger   *zap.Logger
}

// NewStatusEvaluator wires the codec and the backend status cache.
func NewStatusEvaluator(codec port.TokenCodec, cache port.StatusCache, opts EvaluatorOptions, logger *zap.Logger) (*StatusEvaluator, error) {
	if codec == nil || cache == nil {
		return nil, fmt.Errorf("status evaluator: codec and cache are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	use := opts.Use
	if use == "" {
		use = domain.TokenUseAccess
	}

	verdicts, err := telemetry.Register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: telemetry.Namespace(opts.Namespace),
		Subsystem: "evaluator",
		Name:      "verdicts_total",
		Help:      "Request token verdicts partitioned by status and token use.",
	}, []string{"status", "use"}))
	if err != nil {
		return nil, err
	}

	return &StatusEvaluator{
		codec:    codec,
		cache:    cache,
		use:      string(use),
		verdicts: verdicts,
		logger:   logger,
	}, nil
}

// Evaluate checks presence, envelope, issuer, audience, expiry and finally the
// cached backend status, stopping at the first failing step.
func (e *StatusEvaluator) Evaluate(ctx context.Context, rc domain.RequestContext, token string) domain.RequestStatus {
	ctx, span := telemetry.Tracer().Start(ctx, "auth.evaluate")
	defer span.End()

	result := e.evaluate(ctx, rc, token)

	span.SetAttributes(
		attribute.String("auth.status", string(result.Status)),
		attribute.String("auth.token_use", e.use),
	)
	e.verdicts.WithLabelValues(string(result.Status), e.use).Inc()
	return result
}

func (e *StatusEvaluator) evaluate(ctx context.Context, rc domain.RequestContext, token string) domain.RequestStatus {
	if token == "" {
		return domain.NewRequestStatus(domain.AuthStatusNotPresent)
	}

	claims, status := e.codec.DecryptAndVerify(token)
	if status != domain.AuthStatusValid {
		return domain.NewRequestStatus(status)
	}

	if claims.Issuer != e.codec.Issuer() {
		e.logger.Debug("token issuer mismatch", zap.String("token_id", claims.TokenID.String()))
		return domain.NewRequestStatusFromClaims(domain.AuthStatusBadClaims, claims)
	}
	if claims.Audience != rc.ClientOrigin {
		e.logger.Debug("token audience mismatch", zap.String("token_id", claims.TokenID.String()))
		return domain.NewRequestStatusFromClaims(domain.AuthStatusBadClaims, claims)
	}
	if claims.IsExpired(rc.Instant) {
		return domain.NewRequestStatusFromClaims(domain.AuthStatusExpired, claims)
	}

	backend := e.cache.Get(ctx, claims.TokenID)
	return domain.NewRequestStatusFromClaims(domain.AuthStatusFromBackend(backend), claims)
}
