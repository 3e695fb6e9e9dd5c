package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/directory-auth/internal/core/domain"
	"github.com/arklim/directory-auth/internal/core/port"
)

// ErrTokenGeneration indicates a token could not be signed or encrypted.
var ErrTokenGeneration = errors.New("jwt: token generation failed")

const (
	// SecretLength is the shared secret size required by A256GCM direct encryption.
	SecretLength = 32

	defaultAccessTokenTTL = 15 * time.Minute
	contentTypeJWT        = "JWT"
)

// sessionClaims is the signed payload nested inside the encrypted envelope.
type sessionClaims struct {
	Roles string `json:"roles,omitempty"`
	Use   string `json:"use,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodecConfig configures a TokenCodec.
type TokenCodecConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Use    domain.TokenUse
}

// TokenCodec signs claims with HS256 and wraps the result in a dir/A256GCM JWE.
// The same shared secret is used for both layers.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	use    domain.TokenUse
	parser *jwt.Parser
}

// NewTokenCodec constructs a codec. A malformed secret is not rejected here;
// Generate reports it as ErrTokenGeneration.
func NewTokenCodec(cfg TokenCodecConfig, logger *zap.Logger) *TokenCodec {
	if logger == nil {
		logger = zap.NewNop()
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
		logger.Info("token ttl not configured, using default", zap.Duration("ttl", ttl), zap.String("use", string(cfg.Use)))
	}

	use := cfg.Use
	if use == "" {
		use = domain.TokenUseAccess
	}

	return &TokenCodec{
		secret: bytes.Clone(cfg.Secret),
		issuer: strings.TrimSpace(cfg.Issuer),
		ttl:    ttl,
		use:    use,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

// Issuer returns the issuer string stamped into generated tokens.
func (c *TokenCodec) Issuer() string {
	return c.issuer
}

// TTL returns the lifetime of generated tokens.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Use returns the channel this codec mints tokens for.
func (c *TokenCodec) Use() domain.TokenUse {
	return c.use
}

// Generate mints a token for the supplied ids bound to the request's instant and origin.
func (c *TokenCodec) Generate(tokenID, subjectID uuid.UUID, roles string, rc domain.RequestContext) (string, error) {
	if tokenID == uuid.Nil {
		return "", fmt.Errorf("%w: token id is required", ErrTokenGeneration)
	}
	if subjectID == uuid.Nil {
		return "", fmt.Errorf("%w: subject id is required", ErrTokenGeneration)
	}
	if strings.TrimSpace(rc.ClientOrigin) == "" {
		return "", fmt.Errorf("%w: client origin is required", ErrTokenGeneration)
	}
	if len(c.secret) != SecretLength {
		return "", fmt.Errorf("%w: shared secret must be %d bytes", ErrTokenGeneration, SecretLength)
	}

	issuedAt := rc.Instant.UTC().Truncate(time.Second)
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC().Truncate(time.Second)
	}

	claims := sessionClaims{
		Roles: strings.TrimSpace(roles),
		Use:   string(c.use),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Subject:   subjectID.String(),
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{rc.ClientOrigin},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%w: sign: %v", ErrTokenGeneration, err)
	}

	encrypter, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.DIRECT, Key: c.secret},
		(&jose.EncrypterOptions{}).WithContentType(contentTypeJWT),
	)
	if err != nil {
		return "", fmt.Errorf("%w: encrypter: %v", ErrTokenGeneration, err)
	}

	object, err := encrypter.Encrypt([]byte(signed))
	if err != nil {
		return "", fmt.Errorf("%w: encrypt: %v", ErrTokenGeneration, err)
	}

	serialized, err := object.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("%w: serialize: %v", ErrTokenGeneration, err)
	}

	return serialized, nil
}

// DecryptAndVerify opens the envelope, verifies the inner signature and extracts the claims.
// AuthStatusValid signals a structurally sound token; issuer, audience and expiry are not checked here.
func (c *TokenCodec) DecryptAndVerify(token string) (domain.TokenClaims, domain.AuthStatus) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.TokenClaims{}, domain.AuthStatusNotPresent
	}

	object, err := jose.ParseEncrypted(token)
	if err != nil {
		return domain.TokenClaims{}, domain.AuthStatusMalformed
	}
	if object.Header.Algorithm != string(jose.DIRECT) {
		return domain.TokenClaims{}, domain.AuthStatusMalformed
	}

	plaintext, err := object.Decrypt(c.secret)
	if err != nil {
		return domain.TokenClaims{}, domain.AuthStatusMalformed
	}

	// Signature first; MapClaims accepts any JSON object.
	if _, err := c.parser.ParseWithClaims(string(plaintext), jwt.MapClaims{}, c.keyFunc); err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return domain.TokenClaims{}, domain.AuthStatusBadSignature
		default:
			return domain.TokenClaims{}, domain.AuthStatusMalformed
		}
	}

	claims, err := c.decodeClaims(string(plaintext))
	if err != nil {
		return domain.TokenClaims{}, domain.AuthStatusBadClaims
	}

	out, ok := claims.toDomain()
	if !ok {
		return domain.TokenClaims{}, domain.AuthStatusBadClaims
	}
	if out.Use != c.use {
		return domain.TokenClaims{}, domain.AuthStatusBadClaims
	}

	return out, domain.AuthStatusValid
}

func (c *TokenCodec) keyFunc(*jwt.Token) (any, error) {
	return c.secret, nil
}

// decodeClaims reads the payload of an already verified compact JWS into typed claims.
func (c *TokenCodec) decodeClaims(compact string) (sessionClaims, error) {
	var claims sessionClaims
	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return claims, fmt.Errorf("jwt: expected 3 segments, got %d", len(parts))
	}
	payload, err := c.parser.DecodeSegment(parts[1])
	if err != nil {
		return claims, fmt.Errorf("jwt: decode payload: %w", err)
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return claims, fmt.Errorf("jwt: decode claims: %w", err)
	}
	return claims, nil
}

func (s sessionClaims) toDomain() (domain.TokenClaims, bool) {
	tokenID, err := uuid.Parse(s.ID)
	if err != nil {
		return domain.TokenClaims{}, false
	}
	subjectID, err := uuid.Parse(s.Subject)
	if err != nil {
		return domain.TokenClaims{}, false
	}
	if s.IssuedAt == nil || s.ExpiresAt == nil || len(s.Audience) != 1 {
		return domain.TokenClaims{}, false
	}

	claims := domain.TokenClaims{
		TokenID:   tokenID,
		SubjectID: subjectID,
		IssuedAt:  s.IssuedAt.Time.UTC(),
		ExpiresAt: s.ExpiresAt.Time.UTC(),
		Issuer:    s.Issuer,
		Audience:  s.Audience[0],
		Roles:     s.Roles,
		Use:       domain.TokenUse(s.Use),
	}
	if !claims.Complete() {
		return domain.TokenClaims{}, false
	}
	return claims, true
}

var _ port.TokenCodec = (*TokenCodec)(nil)
