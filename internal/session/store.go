package session

import (
	"sync"

	"github.com/NEARBuilders/crosspost/internal/domain"
)

// Store owns the token pair for one connection. The HTTP layer binds an
// implementation to the request/response cookie pair; tests use MemoryStore.
// PlatformClient callers borrow the pair per call and must propagate refreshed
// values back through Set.
type Store interface {
	// Get returns the current pair and whether a usable one exists.
	Get() (domain.TokenPair, bool)
	// Set replaces the pair in place (OAuth callback or successful refresh).
	Set(pair domain.TokenPair)
	// Clear removes the pair (explicit disconnect).
	Clear()
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.Mutex
	pair domain.TokenPair
	set  bool
}

// NewMemoryStore creates an empty store, optionally seeded with a pair.
func NewMemoryStore(pair ...domain.TokenPair) *MemoryStore {
	s := &MemoryStore{}
	if len(pair) > 0 {
		s.Set(pair[0])
	}
	return s
}

func (s *MemoryStore) Get() (domain.TokenPair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set || !s.pair.Valid() {
		return domain.TokenPair{}, false
	}
	return s.pair, true
}

func (s *MemoryStore) Set(pair domain.TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	s.set = true
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = domain.TokenPair{}
	s.set = false
}
