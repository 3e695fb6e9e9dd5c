package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/arklim/directory-auth/internal/core/domain"
	"github.com/arklim/directory-auth/internal/core/port"
	"github.com/arklim/directory-auth/internal/infra/telemetry"
)

// DefaultMaxSize bounds the cache when no size is configured.
const DefaultMaxSize = 8

// StatusCacheOptions configures a StatusCache.
type StatusCacheOptions struct {
	// TTL is the maximum age of a cached verdict. TTL <= 0 disables caching.
	TTL        time.Duration
	MaxSize    int
	Registerer prometheus.Registerer
	Namespace  string
}

type statusEntry struct {
	status     domain.BackendStatus
	insertedAt time.Time
}

// StatusCache memoises oracle verdicts per token id for at most TTL.
// Revocations are observed only after the cached entry ages out; there is no push invalidation.
type StatusCache struct {
	oracle  port.StatusOracle
	ttl     time.Duration
	entries *lru.Cache[uuid.UUID, statusEntry]
	group   singleflight.Group
	metrics *statusCacheMetrics
	logger  *zap.Logger

	mu  sync.RWMutex
	now func() time.Time
}

// NewStatusCache constructs a cache in front of oracle.
func NewStatusCache(oracle port.StatusOracle, opts StatusCacheOptions, logger *zap.Logger) (*StatusCache, error) {
	if oracle == nil {
		return nil, fmt.Errorf("status cache: oracle is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	size := opts.MaxSize
	if size <= 0 {
		size = DefaultMaxSize
	}

	entries, err := lru.New[uuid.UUID, statusEntry](size)
	if err != nil {
		return nil, fmt.Errorf("status cache: %w", err)
	}

	metrics, err := newStatusCacheMetrics(opts.Registerer, telemetry.Namespace(opts.Namespace))
	if err != nil {
		return nil, err
	}

	if opts.TTL <= 0 {
		logger.Info("backend status cache disabled", zap.Duration("ttl", opts.TTL))
	}

	return &StatusCache{
		oracle:  oracle,
		ttl:     opts.TTL,
		entries: entries,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the internal clock for deterministic testing.
func (c *StatusCache) WithClock(clock func() time.Time) *StatusCache {
	if clock != nil {
		c.mu.Lock()
		c.now = clock
		c.mu.Unlock()
	}
	return c
}

func (c *StatusCache) currentTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now()
}

// Get returns the backend verdict for tokenID, consulting the oracle on a miss or stale entry.
// Concurrent misses for the same id share a single oracle call. ERROR verdicts are not stored.
func (c *StatusCache) Get(ctx context.Context, tokenID uuid.UUID) domain.BackendStatus {
	if c.ttl <= 0 {
		c.metrics.misses.Inc()
		return c.load(ctx, tokenID)
	}

	if entry, ok := c.entries.Get(tokenID); ok {
		if c.currentTime().Sub(entry.insertedAt) < c.ttl {
			c.metrics.hits.Inc()
			return entry.status
		}
		c.entries.Remove(tokenID)
	}
	c.metrics.misses.Inc()

	// Shared across callers; detached from the first caller's cancellation.
	detached := context.WithoutCancel(ctx)
	result, _, _ := c.group.Do(tokenID.String(), func() (any, error) {
		status := c.load(detached, tokenID)
		if status != domain.BackendStatusError {
			if evicted := c.entries.Add(tokenID, statusEntry{status: status, insertedAt: c.currentTime()}); evicted {
				c.metrics.evictions.Inc()
			}
		}
		return status, nil
	})

	return result.(domain.BackendStatus)
}

// Len reports the number of entries currently held, including stale ones not yet observed.
func (c *StatusCache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached verdict.
func (c *StatusCache) Purge() {
	c.entries.Purge()
}

func (c *StatusCache) load(ctx context.Context, tokenID uuid.UUID) domain.BackendStatus {
	ctx, span := telemetry.Tracer().Start(ctx, "auth.status_cache.load")
	defer span.End()

	status := c.oracle.Lookup(ctx, tokenID)
	span.SetAttributes(attribute.String("auth.backend_status", string(status)))
	c.metrics.lookups.WithLabelValues(string(status)).Inc()

	if status == domain.BackendStatusError {
		c.logger.Warn("backend status lookup failed", zap.String("token_id", tokenID.String()))
	}
	return status
}

type statusCacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	lookups   *prometheus.CounterVec
}

func newStatusCacheMetrics(reg prometheus.Registerer, namespace string) (*statusCacheMetrics, error) {
	hits, err := telemetry.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "status_cache",
		Name:      "hits_total",
		Help:      "Backend status lookups answered from the cache.",
	}))
	if err != nil {
		return nil, err
	}

	misses, err := telemetry.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "status_cache",
		Name:      "misses_total",
		Help:      "Backend status lookups that required an oracle call.",
	}))
	if err != nil {
		return nil, err
	}

	evictions, err := telemetry.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "status_cache",
		Name:      "evictions_total",
		Help:      "Entries evicted because the cache reached capacity.",
	}))
	if err != nil {
		return nil, err
	}

	lookups, err := telemetry.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "status_cache",
		Name:      "oracle_lookups_total",
		Help:      "Oracle lookups partitioned by backend status.",
	}, []string{"status"}))
	if err != nil {
		return nil, err
	}

	return &statusCacheMetrics{hits: hits, misses: misses, evictions: evictions, lookups: lookups}, nil
}

var _ port.StatusCache = (*StatusCache)(nil)
