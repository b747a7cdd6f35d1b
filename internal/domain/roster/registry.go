package roster

import (
	"sync"
)

// Registry records values already in use, such as team ids or sign-in
// codes, so that new ones can be checked for collisions.
type Registry interface {
	// SeenAndRecord reports whether v was already taken and records it if not.
	SeenAndRecord(v string) bool

	// Unrecord releases v, e.g. when the write that claimed it failed.
	Unrecord(v string)

	Size() int
}

type memoryRegistry struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewRegistry creates a registry pre-loaded with existing values. Empty
// values are ignored.
func NewRegistry(existing ...string) Registry {
	r := &memoryRegistry{seen: make(map[string]struct{}, len(existing))}
	for _, v := range existing {
		if v != "" {
			r.seen[v] = struct{}{}
		}
	}
	return r
}

func (r *memoryRegistry) SeenAndRecord(v string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[v]; ok {
		return true
	}
	r.seen[v] = struct{}{}
	return false
}

func (r *memoryRegistry) Unrecord(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.seen, v)
}

func (r *memoryRegistry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}
