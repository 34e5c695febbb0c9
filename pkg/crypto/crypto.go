// Package crypto holds the password and one-time token primitives.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the default bcrypt work factor for stored passwords.
const PasswordCost = 12

// HashPasswordWithCost bcrypt-hashes password. Tests pass bcrypt.MinCost.
func HashPasswordWithCost(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hashed. Empty or
// non-bcrypt hashes never match.
func VerifyPassword(hashed, password string) bool {
	return hashed != "" && bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// NeedsRehash reports whether hashed was produced below the wanted cost.
// Unparseable hashes are left alone.
func NeedsRehash(hashed string, want int) bool {
	cost, err := bcrypt.Cost([]byte(hashed))
	return err == nil && cost < want
}

// GenerateToken returns n random bytes, base64url encoded without padding.
func GenerateToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken is the digest stored in place of a one-time token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

// MatchesTokenHash compares token against a stored HashToken digest in
// constant time.
func MatchesTokenHash(stored, token string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(HashToken(token))) == 1
}
