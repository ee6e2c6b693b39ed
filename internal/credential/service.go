// Package credential holds the single password credential.
package credential

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrTooShort reports a password below the minimum length.
var ErrTooShort = errors.New("password must be at least 4 characters")

// bootstrapPassword keeps a fresh install usable before the first credential
// is stored. Deployments disable the fallback through configuration.
const bootstrapPassword = "admin"

// Store is the persistence contract for the single credential row.
type Store interface {
	GetCredentialHash(ctx context.Context) (string, error)
	SetCredentialHash(ctx context.Context, hash string) error
}

type Service struct {
	store          Store
	allowBootstrap bool
}

func NewService(store Store, allowBootstrap bool) *Service {
	return &Service{store: store, allowBootstrap: allowBootstrap}
}

// SetPassword stores a salted bcrypt hash of plaintext, overwriting any
// previous credential. The plaintext is never persisted.
func (s *Service) SetPassword(ctx context.Context, plaintext string) error {
	if len(plaintext) < 4 {
		return ErrTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.SetCredentialHash(ctx, string(hash)); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// VerifyPassword compares plaintext against the stored hash. When no
// credential has ever been stored it falls back to the bootstrap password,
// unless the fallback is disabled.
func (s *Service) VerifyPassword(ctx context.Context, plaintext string) (bool, error) {
	hash, err := s.store.GetCredentialHash(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		if !s.allowBootstrap {
			return false, nil
		}
		return subtle.ConstantTimeCompare([]byte(plaintext), []byte(bootstrapPassword)) == 1, nil
	}
	if err != nil {
		return false, fmt.Errorf("load credential: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("compare password: %w", err)
	}
	return true, nil
}
