package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var errInvalidSecret = errors.New("jwt: invalid shared secret")

// GenerateSharedSecret returns SecretLength cryptographically random bytes.
func GenerateSharedSecret() ([]byte, error) {
	return GenerateRandomBytes(SecretLength)
}

// GenerateRandomBytes returns n cryptographically random bytes.
func GenerateRandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	return buf, nil
}

// SerializeSecret encodes a secret as lowercase hex for configuration files.
func SerializeSecret(secret []byte) string {
	return hex.EncodeToString(secret)
}

// DeserializeSecret decodes a hex secret produced by SerializeSecret.
func DeserializeSecret(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty", errInvalidSecret)
	}
	secret, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidSecret, err)
	}
	return secret, nil
}

// ParseSharedSecret decodes a configured secret and requires exactly SecretLength bytes.
func ParseSharedSecret(encoded string) ([]byte, error) {
	secret, err := DeserializeSecret(encoded)
	if err != nil {
		return nil, err
	}
	if len(secret) != SecretLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", errInvalidSecret, SecretLength, len(secret))
	}
	return secret, nil
}
