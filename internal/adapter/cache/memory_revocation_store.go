package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smallbiznis/valora-identity/internal/repository"
)

// MemoryRevocationStore keeps revoked token ids in process memory.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

var _ repository.RevocationStore = (*MemoryRevocationStore)(nil)

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{entries: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return fmt.Errorf("revoke token: empty token id")
	}
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, until := range s.entries {
		if !now.Before(until) {
			delete(s.entries, id)
		}
	}
	s.entries[tokenID] = now.Add(ttl)
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(until) {
		delete(s.entries, tokenID)
		return false, nil
	}
	return true, nil
}
