package engine

import (
	"log"
	"sync"
)

// HandleSet issues opaque handles for the state of a Go engine, so that
// stale and foreign handles are refused instead of dereferenced. A released
// handle keeps only its id; the state it named is dropped from the set.
type HandleSet struct {
	mu     sync.Mutex
	nextID uint64
	live   map[uint64]interface{}
}

// handleRef is the Handle a HandleSet gives out.
type handleRef struct {
	set *HandleSet
	id  uint64
}

// Add registers state and returns a fresh handle naming it.
func (s *HandleSet) Add(state interface{}) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == nil {
		s.live = make(map[uint64]interface{})
	}
	s.nextID++
	s.live[s.nextID] = state
	return &handleRef{set: s, id: s.nextID}
}

func (s *HandleSet) ref(h Handle) (*handleRef, bool) {
	r, ok := h.(*handleRef)
	if !ok || r == nil || r.set != s {
		return nil, false
	}
	return r, true
}

// Get returns the state h names.
func (s *HandleSet) Get(h Handle) (interface{}, error) {
	r, ok := s.ref(h)
	if !ok {
		return nil, ErrForeignHandle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.live[r.id]
	if !ok {
		return nil, ErrHandleFreed
	}
	return state, nil
}

// Release retires h and returns the state it named. Releasing a handle
// twice is fatal.
func (s *HandleSet) Release(h Handle) interface{} {
	r, ok := s.ref(h)
	if !ok {
		log.Panicf("engine: teardown of foreign handle %T", h)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.live[r.id]
	if !ok {
		log.Panicf("engine: handle %d torn down twice", r.id)
	}
	delete(s.live, r.id)
	return state
}

// Live is the number of handles issued and not yet released.
func (s *HandleSet) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}
