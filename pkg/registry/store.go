package registry

import "sort"

// Store is the keyed-store boundary between registry logic and persistence.
// The in-memory implementation is the only backend today; scanning logic
// never touches storage directly, so a durable backend can replace it.
type Store[T any] interface {
	Get(key string) (T, bool)
	Put(key string, value T)
	Delete(key string)
	Keys() []string
	Len() int
}

type memStore[T any] struct {
	items map[string]T
}

func newMemStore[T any]() *memStore[T] {
	return &memStore[T]{items: make(map[string]T)}
}

func (s *memStore[T]) Get(key string) (T, bool) {
	v, ok := s.items[key]
	return v, ok
}

func (s *memStore[T]) Put(key string, value T) {
	s.items[key] = value
}

func (s *memStore[T]) Delete(key string) {
	delete(s.items, key)
}

// Keys returns the stored keys in sorted order for deterministic listings.
func (s *memStore[T]) Keys() []string {
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *memStore[T]) Len() int {
	return len(s.items)
}
