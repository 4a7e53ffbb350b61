package assembler

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps pending assemblies in process. Entries idle longer than
// ttl are dropped on read.
type MemoryStore struct {
	mu      sync.Mutex
	pending map[string]PendingAssembly
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store. A zero ttl never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		pending: make(map[string]PendingAssembly),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Load(ctx context.Context, token string) (*PendingAssembly, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[token]
	if !ok {
		return nil, false, nil
	}
	if m.ttl > 0 && m.now().Sub(p.UpdatedAt) > m.ttl {
		delete(m.pending, token)
		return nil, false, nil
	}
	return &p, true, nil
}

func (m *MemoryStore) Save(ctx context.Context, p *PendingAssembly) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[p.Token] = *p
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, token)
	return nil
}

// Len returns the number of stored entries, expired or not
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
