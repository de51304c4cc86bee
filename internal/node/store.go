package node

import (
	"sort"
	"strings"
	"sync"
)

// Store is the node's in-memory key/value state. Values are copied on the
// way in and on the way out.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Put(key, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	s.mu.Lock()
	s.data[string(key)] = v
	s.mu.Unlock()
}

func (s *Store) Get(key []byte) ([]byte, bool) {
	s.mu.RLock()
	v, ok := s.data[string(key)]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys lists keys with the given prefix in sorted order.
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}
