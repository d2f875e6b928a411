package controller

import (
	"strings"
	"sync"
)

// VarStore lets sibling sequences in a fork group coordinate without going
// through the host (§4.6, supplemented from the original's storage.rs
// StorageCmd set: Set, Append, ReadVar, Eq). It is in-process coordination
// state only, never persisted across a restart and distinct from the
// operator-facing run log.
type VarStore interface {
	// Set replaces the value stored under name.
	Set(name, value string)

	// Append concatenates value onto whatever is currently stored under
	// name, treating a missing name as the empty string.
	Append(name, value string)

	// Get returns the value stored under name and whether it has ever been
	// set.
	Get(name string) (string, bool)

	// Eq reports whether name is currently set to exactly value.
	Eq(name, value string) bool
}

// MapVarStore is the default VarStore: a mutex-guarded map, safe for the
// concurrent sibling access a fork group produces once the host starts
// parallelizing across its children.
type MapVarStore struct {
	mu   sync.Mutex
	vars map[string]string
}

// NewMapVarStore returns a ready-to-use, empty MapVarStore.
func NewMapVarStore() *MapVarStore {
	return &MapVarStore{vars: make(map[string]string)}
}

func (s *MapVarStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
}

func (s *MapVarStore) Append(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	b.WriteString(s.vars[name])
	b.WriteString(value)
	s.vars[name] = b.String()
}

func (s *MapVarStore) Get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[name]
	return v, ok
}

func (s *MapVarStore) Eq(name, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vars[name] == value
}

var _ VarStore = (*MapVarStore)(nil)
