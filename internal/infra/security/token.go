package security

import (
	"crypto/subtle"
	"encoding/base64"
)

// CSRFTokenBytes is the amount of randomness in a CSRF token.
const CSRFTokenBytes = 32

// GenerateSecureToken returns a base64 URL-safe random string using the specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	buf, err := GenerateRandomBytes(byteLength)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateCSRFToken returns a fresh double-submit token.
func GenerateCSRFToken() (string, error) {
	return GenerateSecureToken(CSRFTokenBytes)
}

// TokensEqual compares two tokens in constant time.
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
