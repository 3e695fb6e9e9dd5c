package port

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RevocationStore caches token id revocations for fast backend checks.
type RevocationStore interface {
	MarkRevoked(ctx context.Context, tokenID uuid.UUID, reason string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID uuid.UUID) (bool, string, error)
}
