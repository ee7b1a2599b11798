package registry

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Journal collects the history produced by writes that have not been
// flushed to a nodestore.Store yet.
type Journal struct {
	Versions []*model.Node
	Audit    []model.AuditEntry
}

// IsEmpty reports whether nothing is pending.
func (j Journal) IsEmpty() bool {
	return len(j.Versions) == 0 && len(j.Audit) == 0
}

// Registry holds every node ever registered, keyed by id.
type Registry struct {
	nodes   map[nodeid.ID]*model.Node
	journal Journal
	now     func() time.Time
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		nodes: make(map[nodeid.ID]*model.Node),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Clone returns an independent registry sharing the immutable node records.
// The journal is not carried over.
func (r *Registry) Clone() *Registry {
	return &Registry{nodes: maps.Clone(r.nodes), now: r.now}
}

// Len returns the number of issued ids, tombstones included.
func (r *Registry) Len() int {
	return len(r.nodes)
}

// Lookup returns the record stored under id without resolving tombstones.
func (r *Registry) Lookup(id nodeid.ID) (*model.Node, bool) {
	n, ok := r.nodes[id]
	return n, ok
}

// All returns every record sorted by id.
func (r *Registry) All() []*model.Node {
	out := make([]*model.Node, 0, len(r.nodes))
	for _, id := range slices.Sorted(maps.Keys(r.nodes)) {
		out = append(out, r.nodes[id])
	}
	return out
}

func (r *Registry) record(n *model.Node, action model.AuditAction, detail string) {
	r.journal.Versions = append(r.journal.Versions, n)
	r.journal.Audit = append(r.journal.Audit, model.NewAuditEntry(action, string(n.ID), n.Version, detail))
}

// RecordAudit queues an audit entry for a non-node mutation.
func (r *Registry) RecordAudit(e model.AuditEntry) {
	r.journal.Audit = append(r.journal.Audit, e)
}

// Drain returns the pending journal and resets it.
func (r *Registry) Drain() Journal {
	j := r.journal
	r.journal = Journal{}
	return j
}

// Register validates spec and stores it as version 1 of an active node.
func (r *Registry) Register(ctx context.Context, spec *model.Node) (*model.Node, error) {
	if existing, ok := r.nodes[spec.ID]; ok {
		status := existing.Status
		return nil, &model.DuplicateNodeIDError{ID: spec.ID, Status: status}
	}

	n := spec.Clone()
	n.Scales = model.NewScaleSet(n.Scales...)
	n.Type = model.NodeType(strings.ToLower(strings.TrimSpace(string(n.Type))))
	n.Status = model.StatusActive
	n.Version = 1
	n.UpdatedAt = r.now()
	if err := ValidateNode(n); err != nil {
		return nil, err
	}

	r.nodes[n.ID] = n
	r.record(n, model.AuditRegister, n.Origin)
	ctxlog.FromContext(ctx).Debug("Node registered.", "node", n.ID)
	return n, nil
}

// Update applies a non-identity patch, producing a new version. Tombstoned
// nodes are immutable.
func (r *Registry) Update(ctx context.Context, id nodeid.ID, patch model.NodePatch) (*model.Node, error) {
	current, ok := r.nodes[id]
	if !ok {
		return nil, model.UnknownNodeError(id)
	}
	if current.Status.IsTombstone() {
		return nil, fmt.Errorf("%w: %q (%s)", model.ErrTombstoned, id, current.Status)
	}
	if patch.IsEmpty() {
		return current, nil
	}

	next := patch.Apply(current)
	next.Type = model.NodeType(strings.ToLower(strings.TrimSpace(string(next.Type))))
	if err := ValidateNode(next); err != nil {
		return nil, err
	}
	if next.Fingerprint() == current.Fingerprint() {
		return current, nil
	}
	next.Version = current.Version + 1
	next.UpdatedAt = r.now()

	r.nodes[id] = next
	r.record(next, model.AuditUpdate, "")
	ctxlog.FromContext(ctx).Debug("Node updated.", "node", id, "version", next.Version)
	return next, nil
}

// Tombstone moves an active node to a retired status as a new version.
// The lineage tracker owns the successor bookkeeping.
func (r *Registry) Tombstone(ctx context.Context, id nodeid.ID, status model.NodeStatus, action model.AuditAction, detail string) (*model.Node, error) {
	if !status.IsTombstone() {
		return nil, fmt.Errorf("status %q is not a tombstone status", status)
	}
	current, ok := r.nodes[id]
	if !ok {
		return nil, model.UnknownNodeError(id)
	}
	if current.Status.IsTombstone() {
		return nil, fmt.Errorf("%w: %q (%s)", model.ErrTombstoned, id, current.Status)
	}

	next := current.Clone()
	next.Status = status
	next.Version = current.Version + 1
	next.UpdatedAt = r.now()
	r.nodes[id] = next
	r.record(next, action, detail)
	ctxlog.FromContext(ctx).Debug("Node tombstoned.", "node", id, "status", status)
	return next, nil
}

// Restore stores a record exactly as given, bypassing id issuance. It is
// used when importing an exported snapshot and still validates the schema.
func (r *Registry) Restore(n *model.Node) error {
	if _, ok := r.nodes[n.ID]; ok {
		return &model.DuplicateNodeIDError{ID: n.ID, Status: r.nodes[n.ID].Status}
	}
	if err := ValidateNode(n); err != nil {
		return err
	}
	restored := n.Clone()
	if restored.Status == "" {
		restored.Status = model.StatusActive
	}
	if restored.Version == 0 {
		restored.Version = 1
	}
	r.nodes[n.ID] = restored
	r.record(restored, model.AuditRestore, "")
	return nil
}
