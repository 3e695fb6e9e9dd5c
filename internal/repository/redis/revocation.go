package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/directory-auth/internal/core/port"
)

const defaultRevocationPrefix = "auth:revoked"

// RevocationRepository keeps revoked token ids in Redis until the token would have expired anyway.
type RevocationRepository struct {
	client red.Cmdable
	prefix string
}

// NewRevocationRepository wires a Redis client into a revocation repository.
func NewRevocationRepository(client red.Cmdable, keyPrefix string) *RevocationRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}
	return &RevocationRepository{client: client, prefix: prefix}
}

// MarkRevoked stores the token id with reason for ttl.
func (r *RevocationRepository) MarkRevoked(ctx context.Context, tokenID uuid.UUID, reason string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	if tokenID == uuid.Nil {
		return errors.New("token id must not be nil")
	}

	if err := r.client.Set(ctx, r.key(tokenID), reason, ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id has been revoked and returns the stored reason.
func (r *RevocationRepository) IsRevoked(ctx context.Context, tokenID uuid.UUID) (bool, string, error) {
	if tokenID == uuid.Nil {
		return false, "", errors.New("token id must not be nil")
	}

	value, err := r.client.Get(ctx, r.key(tokenID)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("redis get revoked token: %w", err)
	}
	return true, value, nil
}

func (r *RevocationRepository) key(tokenID uuid.UUID) string {
	return r.prefix + ":" + tokenID.String()
}

var _ port.RevocationStore = (*RevocationRepository)(nil)
