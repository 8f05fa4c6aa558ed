package switcher

import "sync/atomic"

// Store holds the single shared "active origin" value.
// The monitor is the only writer; request handlers read a snapshot per request.
type Store interface {
	Active() Role
	SetActive(r Role)
}

// InMemoryStore is a lock-free in-process Store. It starts at Primary.
type InMemoryStore struct {
	active atomic.Int32
}

// NewInMemoryStore returns a store with Primary active.
func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{}
	s.active.Store(int32(Primary))
	return s
}

// Active implements Store.Active.
func (s *InMemoryStore) Active() Role {
	return Role(s.active.Load())
}

// SetActive implements Store.SetActive.
func (s *InMemoryStore) SetActive(r Role) {
	s.active.Store(int32(r))
}
