package docstore

import (
	"context"
	"fmt"
	"sync"
)

// MemStore is a thread-safe in-memory Store.
type MemStore struct {
	mu       sync.RWMutex
	docs     map[string]document
	children map[string][]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		docs:     make(map[string]document),
		children: make(map[string][]string),
	}
}

func (m *MemStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	coll, err := Collection(collection)
	if err != nil {
		return "", err
	}
	d, err := newDocument(fields)
	if err != nil {
		return "", err
	}
	id := NewID()
	path := Join(coll, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[path]; exists {
		return "", fmt.Errorf("document %s already exists", path)
	}
	m.docs[path] = d
	m.children[coll] = append(m.children[coll], path)
	return id, nil
}

func (m *MemStore) Get(ctx context.Context, doc string) (map[string]any, error) {
	m.mu.RLock()
	d, ok := m.docs[doc]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return d.fields()
}

func (m *MemStore) GetField(ctx context.Context, doc string, name string) (any, bool, error) {
	m.mu.RLock()
	d, ok := m.docs[doc]
	m.mu.RUnlock()
	if !ok {
		return nil, false, ErrNotFound
	}
	return d.field(name)
}

func (m *MemStore) UpdateField(ctx context.Context, doc string, name string, value any) error {
	raw, err := EncodeValue(value)
	if err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[doc]
	if !ok {
		return ErrNotFound
	}
	// Readers use documents outside the lock: replace, never mutate.
	next := make(document, len(d)+1)
	for k, v := range d {
		next[k] = v
	}
	next[name] = raw
	m.docs[doc] = next
	return nil
}

func (m *MemStore) ListChildDocuments(ctx context.Context, collection string) ([]string, error) {
	coll, err := Collection(collection)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.children[coll]...), nil
}

// Raw returns the persisted bytes of one field. Used by tests that check
// untouched fields survive an update unchanged.
func (m *MemStore) Raw(doc string, name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[doc]
	if !ok {
		return nil, false
	}
	raw, ok := d[name]
	return append([]byte(nil), raw...), ok
}

func (m *MemStore) Close() error { return nil }
