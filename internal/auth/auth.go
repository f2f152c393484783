package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/alecgard/tasker/internal/apperr"
)

// Identity is the authenticated user a session token resolves to.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// SessionStore maps opaque session tokens to identities.
//
// Resolve returns ErrNoSession for unknown or expired tokens. Destroy is
// idempotent: destroying an absent session is not an error.
type SessionStore interface {
	Create(ctx context.Context, id Identity) (string, error)
	Resolve(ctx context.Context, token string) (*Identity, error)
	Destroy(ctx context.Context, token string) error
}

// ErrNoSession is returned when a token does not name a live session.
var ErrNoSession = apperr.New(apperr.KindUnauthenticated, "invalid or expired session")

// GenerateToken returns 32 random bytes, hex encoded.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the hex-encoded SHA-256 hash of a session token. Stores
// key sessions by this hash so a leaked table does not leak live tokens.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
