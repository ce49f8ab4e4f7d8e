// Package auth handles credential hashing and server-held login sessions.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/serije/internal/shared"
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes new passwords with bcrypt and verifies stored hashes.
//
// When LegacySalt is set, stored hashes that are not bcrypt are checked as
// hex(sha256(password + salt)). The fixed salt is a known weakness and is
// never used to produce new hashes.
type Hasher struct {
	Cost       int
	LegacySalt string
}

// NewHasher creates a [Hasher] from security settings. A cost outside
// bcrypt's range falls back to [bcrypt.DefaultCost].
func NewHasher(cfg shared.SecurityConfig) *Hasher {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{Cost: cost, LegacySalt: cfg.LegacySalt}
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: empty password", shared.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches the stored hash.
// A mismatch yields [shared.ErrAuthFailed]; other errors mean the hash could not be checked.
func (h *Hasher) Verify(hash, password string) error {
	if hash == "" || password == "" {
		return shared.ErrAuthFailed
	}

	if isBcrypt(hash) {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		switch {
		case err == nil:
			return nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return shared.ErrAuthFailed
		default:
			return fmt.Errorf("failed to verify password: %w", err)
		}
	}

	if h.LegacySalt == "" {
		return shared.ErrAuthFailed
	}

	want := LegacyHash(password, h.LegacySalt)
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(want)) != 1 {
		return shared.ErrAuthFailed
	}
	return nil
}

// LegacyHash computes the fixed-salt SHA-256 digest used by accounts created
// before bcrypt, as lowercase hex.
func LegacyHash(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2")
}
