package lineage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/specialistvlad/causalgrid/internal/registry"
)

// NodeLookup is the read side of the registry that resolution needs.
type NodeLookup interface {
	Lookup(id nodeid.ID) (*model.Node, bool)
}

// Resolution is the outcome of following a tombstone chain.
type Resolution struct {
	// ID is the first active node on the chain.
	ID nodeid.ID
	// Chain lists every id visited, starting with the requested one and
	// ending with ID.
	Chain []nodeid.ID
	// Weight is the product of component weights met along the chain. It is
	// 1 when no weighted merge was crossed.
	Weight float64
}

// Redirected reports whether the requested id was a tombstone.
func (r Resolution) Redirected() bool {
	return len(r.Chain) > 1
}

// Component describes a retired id folded into a composite.
type Component struct {
	ID        nodeid.ID
	Composite nodeid.ID
	Weight    float64
}

// Tracker holds the tombstone records. Like the registry it is mutated by a
// single writer and cloned per write.
type Tracker struct {
	tombstones map[nodeid.ID]*model.Tombstone
	now        func() time.Time
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{
		tombstones: make(map[nodeid.ID]*model.Tombstone),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Clone returns an independent copy sharing the immutable records.
func (t *Tracker) Clone() *Tracker {
	return &Tracker{tombstones: maps.Clone(t.tombstones), now: t.now}
}

// Len returns the number of tombstones.
func (t *Tracker) Len() int {
	return len(t.tombstones)
}

// Lookup returns the tombstone record for id.
func (t *Tracker) Lookup(id nodeid.ID) (*model.Tombstone, bool) {
	ts, ok := t.tombstones[id]
	return ts, ok
}

// All returns every tombstone sorted by id.
func (t *Tracker) All() []*model.Tombstone {
	out := make([]*model.Tombstone, 0, len(t.tombstones))
	for _, id := range slices.Sorted(maps.Keys(t.tombstones)) {
		out = append(out, t.tombstones[id])
	}
	return out
}

// Resolve follows the tombstone chain from id to the first active node.
//
// An id that was never issued yields model.ErrUnknownNode, a tombstone
// without a successor yields *model.UnresolvableError and a chain that
// revisits an id yields *model.ConsistencyError. Resolve always terminates:
// every step either stops or visits an id not seen before.
func (t *Tracker) Resolve(nodes NodeLookup, id nodeid.ID) (Resolution, error) {
	chain := []nodeid.ID{id}
	seen := map[nodeid.ID]struct{}{id: {}}
	weight := 1.0
	cur := id
	for {
		n, ok := nodes.Lookup(cur)
		if !ok {
			if cur == id {
				return Resolution{}, model.UnknownNodeError(id)
			}
			return Resolution{}, fmt.Errorf("resolving %q: successor %w", id, model.UnknownNodeError(cur))
		}
		if !n.Status.IsTombstone() {
			return Resolution{ID: cur, Chain: chain, Weight: weight}, nil
		}
		ts, ok := t.tombstones[cur]
		if !ok || ts.Successor == "" {
			return Resolution{}, &model.UnresolvableError{ID: cur, Chain: chain}
		}
		if ts.HasWeight() {
			weight *= ts.Weight
		}
		next := ts.Successor
		chain = append(chain, next)
		if _, dup := seen[next]; dup {
			return Resolution{}, &model.ConsistencyError{Chain: chain}
		}
		seen[next] = struct{}{}
		cur = next
	}
}

// guardSuccessor checks that successor resolves to an active node without
// passing through any of the ids about to be retired.
func (t *Tracker) guardSuccessor(nodes NodeLookup, successor nodeid.ID, retiring []nodeid.ID) error {
	if slices.Contains(retiring, successor) {
		return &model.ConsistencyError{Chain: []nodeid.ID{successor, successor}}
	}
	res, err := t.Resolve(nodes, successor)
	if err != nil {
		return fmt.Errorf("successor %q: %w", successor, err)
	}
	for _, id := range res.Chain {
		if slices.Contains(retiring, id) {
			return &model.ConsistencyError{Chain: append([]nodeid.ID{id}, res.Chain...)}
		}
	}
	return nil
}

// Deprecate retires id. A non-empty successor becomes its resolution
// target; without one the tombstone resolves nowhere and mechanisms still
// naming it are reported as orphans by validation.
func (t *Tracker) Deprecate(ctx context.Context, reg *registry.Registry, id, successor nodeid.ID, reason string) (*model.Tombstone, error) {
	if _, ok := reg.Lookup(id); !ok {
		return nil, model.UnknownNodeError(id)
	}
	if successor != "" {
		if err := t.guardSuccessor(reg, successor, []nodeid.ID{id}); err != nil {
			return nil, err
		}
	}
	detail := reason
	if successor != "" {
		detail = fmt.Sprintf("successor=%s %s", successor, reason)
	}
	if _, err := reg.Tombstone(ctx, id, model.StatusDeprecated, model.AuditDeprecate, detail); err != nil {
		return nil, err
	}
	ts := &model.Tombstone{
		ID:        id,
		Action:    model.ActionDeprecate,
		Successor: successor,
		Reason:    reason,
		At:        t.now(),
	}
	t.tombstones[id] = ts
	ctxlog.FromContext(ctx).Debug("Node deprecated.", "node", id, "successor", successor)
	return ts, nil
}

// Merge retires every id in from, pointing each at into. Weights, when
// given, must be keyed by ids in from and are kept on the tombstones.
// Nothing is changed unless every id can be retired.
func (t *Tracker) Merge(ctx context.Context, reg *registry.Registry, from []nodeid.ID, into nodeid.ID, weights map[nodeid.ID]float64, reason string) ([]*model.Tombstone, error) {
	if len(from) == 0 {
		return nil, fmt.Errorf("merge into %q: no ids to retire", into)
	}
	retiring := slices.Clone(from)
	slices.Sort(retiring)
	retiring = slices.Compact(retiring)

	for _, id := range retiring {
		n, ok := reg.Lookup(id)
		if !ok {
			return nil, model.UnknownNodeError(id)
		}
		if n.Status.IsTombstone() {
			return nil, fmt.Errorf("merge into %q: %w: %q (%s)", into, model.ErrTombstoned, id, n.Status)
		}
	}
	for id, w := range weights {
		if !slices.Contains(retiring, id) {
			return nil, fmt.Errorf("merge into %q: weight given for %q which is not being merged", into, id)
		}
		if !(w > 0) {
			return nil, fmt.Errorf("merge into %q: weight for %q must be positive", into, id)
		}
	}
	if err := t.guardSuccessor(reg, into, retiring); err != nil {
		return nil, err
	}

	out := make([]*model.Tombstone, 0, len(retiring))
	for _, id := range retiring {
		detail := fmt.Sprintf("into=%s %s", into, reason)
		if _, err := reg.Tombstone(ctx, id, model.StatusMerged, model.AuditMerge, detail); err != nil {
			return nil, err
		}
		ts := &model.Tombstone{
			ID:        id,
			Action:    model.ActionMerge,
			Successor: into,
			Weight:    weights[id],
			Reason:    reason,
			At:        t.now(),
		}
		t.tombstones[id] = ts
		out = append(out, ts)
	}
	ctxlog.FromContext(ctx).Debug("Nodes merged.", "from", retiring, "into", into)
	return out, nil
}

// Restore installs a tombstone record as exported. The node itself must
// already be present in the registry with a tombstone status.
func (t *Tracker) Restore(nodes NodeLookup, ts *model.Tombstone) error {
	n, ok := nodes.Lookup(ts.ID)
	if !ok {
		return model.UnknownNodeError(ts.ID)
	}
	if !n.Status.IsTombstone() {
		return fmt.Errorf("restoring tombstone %q: node is %s", ts.ID, n.Status)
	}
	if _, dup := t.tombstones[ts.ID]; dup {
		return fmt.Errorf("restoring tombstone %q: already present", ts.ID)
	}
	cp := *ts
	t.tombstones[ts.ID] = &cp
	return nil
}

// ComponentOf reports the composite a retired id was folded into with a
// weight. Redirects without a weight are not components.
func (t *Tracker) ComponentOf(id nodeid.ID) (Component, bool) {
	ts, ok := t.tombstones[id]
	if !ok || !ts.HasWeight() {
		return Component{}, false
	}
	return Component{ID: id, Composite: ts.Successor, Weight: ts.Weight}, true
}

// Components lists the weighted components folded directly into composite,
// sorted by id.
func (t *Tracker) Components(composite nodeid.ID) []Component {
	var out []Component
	for _, id := range slices.Sorted(maps.Keys(t.tombstones)) {
		ts := t.tombstones[id]
		if ts.Successor == composite && ts.HasWeight() {
			out = append(out, Component{ID: id, Composite: composite, Weight: ts.Weight})
		}
	}
	return out
}
