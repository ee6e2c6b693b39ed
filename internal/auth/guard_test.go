package auth

import (
	"context"
	"testing"
	"time"

	"projectmate/api/internal/session"
)

func TestIssueSessionAndIsAuthed(t *testing.T) {
	ctx := context.Background()
	guard := NewGuard(session.NewMemoryStore(), 24*time.Hour)

	token, expiresAt, err := guard.IssueSession(ctx)
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}
	if token == "" {
		t.Fatal("token should not be empty")
	}
	if !expiresAt.After(time.Now()) {
		t.Error("expiry should be in the future")
	}

	if !guard.IsAuthed(ctx, token) {
		t.Error("issued token should be authed")
	}
	if guard.IsAuthed(ctx, "forged") {
		t.Error("unknown token should not be authed")
	}
	if guard.IsAuthed(ctx, "") {
		t.Error("empty token should not be authed")
	}
}

func TestIssueSessionOverwritesPrevious(t *testing.T) {
	ctx := context.Background()
	guard := NewGuard(session.NewMemoryStore(), 24*time.Hour)

	first, _, err := guard.IssueSession(ctx)
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}
	second, _, err := guard.IssueSession(ctx)
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	if guard.IsAuthed(ctx, first) {
		t.Error("previous token should be invalidated by a new login")
	}
	if !guard.IsAuthed(ctx, second) {
		t.Error("latest token should be authed")
	}
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	guard := NewGuard(session.NewMemoryStore(), 24*time.Hour)

	token, _, err := guard.IssueSession(ctx)
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}
	if err := guard.Revoke(ctx); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	if guard.IsAuthed(ctx, token) {
		t.Error("revoked token should not be authed")
	}
}

func TestLazyExpiry(t *testing.T) {
	ctx := context.Background()
	slots := session.NewMemoryStore()
	guard := NewGuard(slots, time.Hour)

	token, _, err := guard.IssueSession(ctx)
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	guard.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if guard.IsAuthed(ctx, token) {
		t.Error("expired token should not be authed")
	}

	// The expired slot is cleared on the way out.
	if _, ok, _ := slots.Load(ctx); ok {
		t.Error("expired slot should have been cleared")
	}
}
