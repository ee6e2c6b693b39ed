// Package otp issues and verifies one-time passcodes for password reset.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

var (
	ErrNoPending = errors.New("no pending code")
	ErrExpired   = errors.New("code expired")
	ErrMismatch  = errors.New("code mismatch")
)

// Mailer dispatches the code out-of-band to the recipient.
type Mailer interface {
	SendOTPEmail(to, code string) error
}

type pendingCode struct {
	code      string
	expiresAt time.Time
}

// Issuer generates short-lived 6-digit codes for the single fixed recipient.
// Storage is volatile and process-lifetime only: a restart clears any
// pending code, and issuing a new code overwrites the previous one.
type Issuer struct {
	mailer    Mailer
	recipient string
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]pendingCode
}

func New(mailer Mailer, recipient string, ttl time.Duration) *Issuer {
	return &Issuer{
		mailer:    mailer,
		recipient: recipient,
		ttl:       ttl,
		now:       time.Now,
		pending:   make(map[string]pendingCode),
	}
}

// Issue generates and stores a new code, then dispatches it by email. A
// dispatch failure is returned to the caller but the stored code stays
// pending: the recipient may still have received it.
func (i *Issuer) Issue() (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	i.mu.Lock()
	i.pending[i.recipient] = pendingCode{
		code:      code,
		expiresAt: i.now().Add(i.ttl),
	}
	i.mu.Unlock()

	if err := i.mailer.SendOTPEmail(i.recipient, code); err != nil {
		return code, fmt.Errorf("send otp email: %w", err)
	}
	return code, nil
}

// Verify checks code against the pending slot and consumes it on success,
// so each issuance can be verified at most once.
func (i *Issuer) Verify(code string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	record, ok := i.pending[i.recipient]
	if !ok {
		return ErrNoPending
	}
	if i.now().After(record.expiresAt) {
		return ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(record.code), []byte(code)) != 1 {
		return ErrMismatch
	}

	delete(i.pending, i.recipient)
	return nil
}

// generateCode produces a 6-digit numeric code in [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
