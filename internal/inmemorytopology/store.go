package inmemorytopology

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/specialistvlad/causalgrid/internal/topologystore"
)

// Store implements the topologystore.Store interface using maps and a mutex
// for thread-safe concurrent access.
type Store struct {
	mu         sync.RWMutex
	mechanisms map[nodeid.ID]*model.Mechanism
	from       map[nodeid.ID]map[nodeid.ID]struct{} // Key: declared source, Value: set of mechanism IDs
	to         map[nodeid.ID]map[nodeid.ID]struct{} // Key: declared target, Value: set of mechanism IDs
}

// New creates a new, empty in-memory topology store.
func New() topologystore.Store {
	return &Store{
		mechanisms: make(map[nodeid.ID]*model.Mechanism),
		from:       make(map[nodeid.ID]map[nodeid.ID]struct{}),
		to:         make(map[nodeid.ID]map[nodeid.ID]struct{}),
	}
}

func link(index map[nodeid.ID]map[nodeid.ID]struct{}, key, id nodeid.ID) {
	if index[key] == nil {
		index[key] = make(map[nodeid.ID]struct{})
	}
	index[key][id] = struct{}{}
}

// AddMechanism adds a new mechanism to the store.
func (s *Store) AddMechanism(ctx context.Context, m *model.Mechanism) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.mechanisms[m.ID]; exists {
		return fmt.Errorf("%w: id '%s' already stored", model.ErrDuplicateMechanism, m.ID)
	}
	s.mechanisms[m.ID] = m
	link(s.from, m.Source, m.ID)
	link(s.to, m.Target, m.ID)
	return nil
}

// ReplaceMechanism swaps an existing record. Endpoints may not change.
func (s *Store) ReplaceMechanism(ctx context.Context, m *model.Mechanism) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.mechanisms[m.ID]
	if !exists {
		return fmt.Errorf("%w: '%s'", model.ErrUnknownMechanism, m.ID)
	}
	if old.Source != m.Source || old.Target != m.Target {
		return fmt.Errorf("mechanism '%s': endpoints are immutable", m.ID)
	}
	s.mechanisms[m.ID] = m
	return nil
}

// Mechanism retrieves a single mechanism by id.
func (s *Store) Mechanism(ctx context.Context, id nodeid.ID) (*model.Mechanism, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mechanisms[id]
	return m, ok
}

// AllMechanisms returns every mechanism sorted by id.
func (s *Store) AllMechanisms(ctx context.Context) []*model.Mechanism {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Mechanism, 0, len(s.mechanisms))
	for _, id := range slices.Sorted(maps.Keys(s.mechanisms)) {
		out = append(out, s.mechanisms[id])
	}
	return out
}

// DeclaredFrom returns the mechanisms declared with id as source.
func (s *Store) DeclaredFrom(ctx context.Context, id nodeid.ID) []nodeid.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.from[id]))
}

// DeclaredTo returns the mechanisms declared with id as target.
func (s *Store) DeclaredTo(ctx context.Context, id nodeid.ID) []nodeid.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.to[id]))
}

// Len returns the number of stored mechanisms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mechanisms)
}

// Clone copies the indexes; the records themselves are shared.
func (s *Store) Clone() topologystore.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := &Store{
		mechanisms: maps.Clone(s.mechanisms),
		from:       make(map[nodeid.ID]map[nodeid.ID]struct{}, len(s.from)),
		to:         make(map[nodeid.ID]map[nodeid.ID]struct{}, len(s.to)),
	}
	for k, set := range s.from {
		cp.from[k] = maps.Clone(set)
	}
	for k, set := range s.to {
		cp.to[k] = maps.Clone(set)
	}
	return cp
}
