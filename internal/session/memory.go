// Package session provides storage backends for the login session slot.
//
// The system supports a single logical session: one slot, last write wins.
// The default backend is in-memory and volatile, so a process restart logs
// the user out. A Redis backend is available for deployments that want the
// slot to survive restarts.
package session

import (
	"context"
	"sync"
	"time"
)

// Slot holds the hash of the currently accepted session token and its expiry.
type Slot struct {
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store is the single-slot storage contract shared by the backends.
type Store interface {
	Save(ctx context.Context, slot Slot) error
	Load(ctx context.Context) (Slot, bool, error)
	Clear(ctx context.Context) error
}

// MemoryStore keeps the slot in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	slot *Slot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, slot Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot = &slot
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (Slot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == nil {
		return Slot{}, false, nil
	}
	return *s.slot, true, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot = nil
	return nil
}
