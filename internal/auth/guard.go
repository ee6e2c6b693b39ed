// Package auth implements the session guard that gates every tree operation.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"projectmate/api/internal/session"
)

// Guard issues and validates the single opaque session token. Only the
// SHA-256 hash of the token is stored; expiry is checked lazily on each
// IsAuthed call.
type Guard struct {
	slots session.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewGuard(slots session.Store, ttl time.Duration) *Guard {
	return &Guard{
		slots: slots,
		ttl:   ttl,
		now:   time.Now,
	}
}

// IssueSession creates a new session token, overwriting any previous slot.
func (g *Guard) IssueSession(ctx context.Context) (string, time.Time, error) {
	token, err := generateToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate session token: %w", err)
	}

	expiresAt := g.now().Add(g.ttl)
	slot := session.Slot{
		TokenHash: HashToken(token),
		ExpiresAt: expiresAt,
	}
	if err := g.slots.Save(ctx, slot); err != nil {
		return "", time.Time{}, fmt.Errorf("save session slot: %w", err)
	}
	return token, expiresAt, nil
}

// IsAuthed reports whether token matches the accepted slot and has not
// expired. An expired slot is cleared on the way out.
func (g *Guard) IsAuthed(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	slot, ok, err := g.slots.Load(ctx)
	if err != nil || !ok {
		return false
	}
	if g.now().After(slot.ExpiresAt) {
		_ = g.slots.Clear(ctx)
		return false
	}
	return hmac.Equal([]byte(slot.TokenHash), []byte(HashToken(token)))
}

// Revoke invalidates the current session immediately, independent of expiry.
func (g *Guard) Revoke(ctx context.Context) error {
	if err := g.slots.Clear(ctx); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// SessionTTL exposes the configured lifetime for cookie max-age.
func (g *Guard) SessionTTL() time.Duration {
	return g.ttl
}

func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
