package port

import (
	"time"

	"github.com/google/uuid"

	"github.com/arklim/directory-auth/internal/core/domain"
)

// Argon2Params captures tunable parameters for the Argon2id hashing algorithm.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// TokenCodec mints and decodes session tokens.
type TokenCodec interface {
	Generate(tokenID, subjectID uuid.UUID, roles string, rc domain.RequestContext) (string, error)
	DecryptAndVerify(token string) (domain.TokenClaims, domain.AuthStatus)
	Issuer() string
	TTL() time.Duration
}
