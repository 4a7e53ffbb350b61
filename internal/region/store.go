// Package region holds cached image payloads keyed by (cache key, region name)
// and substitutes references to them inside style attributes.
package region

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"diagram_engine/src/logger"
)

// ErrKeyExists is returned by Put when the cache key is already stored.
// Entries are immutable for their lifetime.
var ErrKeyExists = errors.New("region: cache key already stored")

// Store is the process-wide payload store. Entries are never removed on read.
type Store interface {
	// Put stores regions under key and returns the key. An empty key mints one.
	Put(ctx context.Context, key string, regions map[string]string) (string, error)
	// Get returns the regions stored under key. ok is false for unknown or expired keys.
	Get(ctx context.Context, key string) (regions map[string]string, ok bool, err error)
}

type memoryEntry struct {
	regions   map[string]string
	expiresAt time.Time
}

// MemoryStore is an in-process Store with a fixed time-to-live per entry.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(ctx context.Context, key string, regions map[string]string) (string, error) {
	if key == "" {
		key = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return "", ErrKeyExists
	}
	s.entries[key] = memoryEntry{
		regions:   maps.Clone(regions),
		expiresAt: now.Add(s.ttl),
	}
	return key, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (map[string]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return maps.Clone(e.regions), true, nil
}

// Sweep removes expired entries and returns how many it removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len counts stored entries including expired ones not yet swept
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Run sweeps every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug().Int("removed", n).Msg("expired region payloads swept")
			}
		}
	}
}
