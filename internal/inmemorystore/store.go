package inmemorystore

import (
	"context"
	"slices"
	"sync"

	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/specialistvlad/causalgrid/internal/nodestore"
)

type history struct {
	mu       sync.Mutex
	versions []*model.Node
}

// Store keeps node histories in a sync.Map keyed by node id, each history
// guarded by its own mutex, so appends for different nodes do not contend.
// The audit trail has a single mutex since it is totally ordered.
type Store struct {
	histories sync.Map // Key: nodeid.ID, Value: *history

	auditMu sync.Mutex
	audit   []model.AuditEntry
	seq     uint64
}

// New creates a new, empty in-memory history store.
func New() nodestore.Store {
	return &Store{}
}

func (s *Store) historyFor(id nodeid.ID) *history {
	h, _ := s.histories.LoadOrStore(id, &history{})
	return h.(*history)
}

// PutVersion implements nodestore.Store.
func (s *Store) PutVersion(ctx context.Context, n *model.Node) (bool, error) {
	h := s.historyFor(n.ID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.versions) > 0 && h.versions[len(h.versions)-1].Fingerprint() == n.Fingerprint() {
		return false, nil
	}
	h.versions = append(h.versions, n.Clone())
	return true, nil
}

// Versions implements nodestore.Store.
func (s *Store) Versions(ctx context.Context, id nodeid.ID) ([]*model.Node, error) {
	v, ok := s.histories.Load(id)
	if !ok {
		return []*model.Node{}, nil
	}
	h := v.(*history)
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*model.Node, len(h.versions))
	for i, n := range h.versions {
		out[i] = n.Clone()
	}
	return out, nil
}

// Latest implements nodestore.Store.
func (s *Store) Latest(ctx context.Context, id nodeid.ID) (*model.Node, bool, error) {
	v, ok := s.histories.Load(id)
	if !ok {
		return nil, false, nil
	}
	h := v.(*history)
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.versions) == 0 {
		return nil, false, nil
	}
	return h.versions[len(h.versions)-1].Clone(), true, nil
}

// AppendAudit implements nodestore.Store.
func (s *Store) AppendAudit(ctx context.Context, entries ...model.AuditEntry) ([]model.AuditEntry, error) {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	stored := make([]model.AuditEntry, len(entries))
	for i, e := range entries {
		s.seq++
		e.Seq = s.seq
		stored[i] = e
	}
	s.audit = append(s.audit, stored...)
	return stored, nil
}

// Audit implements nodestore.Store.
func (s *Store) Audit(ctx context.Context) ([]model.AuditEntry, error) {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	return slices.Clone(s.audit), nil
}

// Close implements nodestore.Store.
func (s *Store) Close() error {
	return nil
}
