package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/pager/service/dao"
)

// MemoryStore is a generic in-memory dao.Service keeping entities of type *T
// by the key the keySelector extracts. List returns entities in the order
// they were first saved.
type MemoryStore[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]*T
	order       []K
	keySelector func(*T) K
	fields      map[string]func(*T) string
}

// Option configures a store.
type Option[K comparable, T any] func(s *MemoryStore[K, T])

// WithField exposes a string field of the entity to List parameters.
func WithField[K comparable, T any](name string, fn func(*T) string) Option[K, T] {
	return func(s *MemoryStore[K, T]) {
		s.fields[name] = fn
	}
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore[K comparable, T any](keySelector func(*T) K, options ...Option[K, T]) *MemoryStore[K, T] {
	ret := &MemoryStore[K, T]{
		records:     make(map[K]*T),
		keySelector: keySelector,
		fields:      make(map[string]func(*T) string),
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		s.order = append(s.order, key)
	}
	s.records[key] = v
	return nil
}

// Load returns a record by key.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %v", dao.ErrNotFound, key)
	}
	return v, nil
}

// Delete removes a record.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return fmt.Errorf("%w: %v", dao.ErrNotFound, key)
	}
	delete(s.records, key)
	for i, candidate := range s.order {
		if candidate == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns the records matching every parameter whose name is a
// registered field; unknown parameters are ignored.
func (s *MemoryStore[K, T]) List(_ context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.order))
	for _, key := range s.order {
		v := s.records[key]
		if s.matches(v, parameters) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *MemoryStore[K, T]) matches(v *T, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		field, ok := s.fields[parameter.Name]
		if !ok {
			continue
		}
		if !parameter.Matches(field(v)) {
			return false
		}
	}
	return true
}

var _ dao.Service[string, struct{}] = (*MemoryStore[string, struct{}])(nil)
