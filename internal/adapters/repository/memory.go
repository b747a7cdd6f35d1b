package repository

import (
	"context"
	"errors"
	"sync"
)

type memoryEntry struct {
	raw     []byte
	version int64
}

// MemoryStore keeps documents in process memory. Documents are stored
// encoded so callers never share maps with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]memoryEntry
	closed      bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore(_ ...Option) *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]memoryEntry)}
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	e, ok := m.collections[collection][id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeDocument(e.raw)
}

func (m *MemoryStore) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	entries := m.collections[collection]
	records := make([]Record, 0, len(entries))
	for id, e := range entries {
		doc, err := decodeDocument(e.raw)
		if err != nil {
			m.mu.RUnlock()
			return nil, err
		}
		records = append(records, Record{ID: id, Data: doc})
	}
	m.mu.RUnlock()
	return q.apply(records), nil
}

func (m *MemoryStore) Put(ctx context.Context, collection, id string, fields Document, mode Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := fields
	prev, exists := m.collections[collection][id]
	if exists && mode == Merge {
		base, err := decodeDocument(prev.raw)
		if err != nil {
			return err
		}
		doc = merge(base, fields)
	}
	raw, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	m.write(collection, id, raw, prev.version+1)
	return nil
}

func (m *MemoryStore) TransactionalUpdate(ctx context.Context, collection, id string, fn UpdateFunc) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, exists := m.collections[collection][id]
	var current Document
	if exists {
		doc, err := decodeDocument(prev.raw)
		if err != nil {
			return nil, err
		}
		current = doc
	}

	next, err := fn(current, exists)
	if errors.Is(err, ErrSkipWrite) {
		return current, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := encodeDocument(next)
	if err != nil {
		return nil, err
	}
	m.write(collection, id, raw, prev.version+1)
	return decodeDocument(raw)
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.collections[collection], id)
	return nil
}

// Version reports how many writes a document has seen, 0 when absent.
func (m *MemoryStore) Version(collection, id string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collections[collection][id].version
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errors.New("memory store closed")
	}
	return ctx.Err()
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) write(collection, id string, raw []byte, version int64) {
	c, ok := m.collections[collection]
	if !ok {
		c = make(map[string]memoryEntry)
		m.collections[collection] = c
	}
	c[id] = memoryEntry{raw: raw, version: version}
}
