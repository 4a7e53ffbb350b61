package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type storedDocument struct {
	document  string
	updatedAt time.Time
}

// MemoryDocumentStore is an in-memory document store for development and tests
type MemoryDocumentStore struct {
	mu   sync.Mutex
	docs map[string]storedDocument
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryDocumentStore creates a store whose entries expire ttl after their
// last use. A zero ttl never expires.
func NewMemoryDocumentStore(ttl time.Duration) *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs: make(map[string]storedDocument),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Load returns the latest document of a session
func (m *MemoryDocumentStore) Load(ctx context.Context, sessionID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[sessionID]
	if !ok {
		return "", false, nil
	}

	now := m.now()
	if m.ttl > 0 && now.Sub(d.updatedAt) > m.ttl {
		delete(m.docs, sessionID)
		return "", false, nil
	}
	d.updatedAt = now
	m.docs[sessionID] = d
	return d.document, true, nil
}

// Save replaces the document of a session
func (m *MemoryDocumentStore) Save(ctx context.Context, sessionID, document string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[sessionID] = storedDocument{document: document, updatedAt: m.now()}
	return nil
}

// Delete removes a session's document
func (m *MemoryDocumentStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, sessionID)
	return nil
}
