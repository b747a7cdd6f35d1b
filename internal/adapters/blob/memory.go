package blob

import (
	"context"
	"path"
	"sync"
)

// MemoryStore keeps objects in memory. It is used by tests and the
// single-process dev setup.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, objects: make(map[string][]byte)}
}

func (m *MemoryStore) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := ObjectKey(path.Dir(name), path.Base(name))
	if err != nil {
		return "", err
	}
	url := m.baseURL + "/" + key
	m.mu.Lock()
	m.objects[url] = append([]byte(nil), data...)
	m.mu.Unlock()
	return url, nil
}

func (m *MemoryStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[url]; !ok {
		return ErrNotFound
	}
	delete(m.objects, url)
	return nil
}

// Len reports the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
