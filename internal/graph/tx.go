package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/causalgrid/internal/lineage"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/specialistvlad/causalgrid/internal/registry"
	"github.com/specialistvlad/causalgrid/internal/topologystore"
)

// Tx is a write transaction. It owns private copies of the graph state and
// is only valid inside the function passed to Graph.Write. The context it
// carries is the one Write was called with.
type Tx struct {
	ctx      context.Context
	registry *registry.Registry
	lineage  *lineage.Tracker
	topology topologystore.Store

	// resolvedKeys indexes active mechanisms by resolved endpoints and
	// pathway. It is built lazily and dropped on lifecycle changes.
	resolvedKeys map[edgeKey]nodeid.ID
}

// Resolve follows the tombstone chain of id in the transaction's state.
func (tx *Tx) Resolve(id nodeid.ID) (lineage.Resolution, error) {
	return tx.lineage.Resolve(tx.registry, id)
}

// Register adds a new node.
func (tx *Tx) Register(n *model.Node) (*model.Node, error) {
	return tx.registry.Register(tx.ctx, n)
}

// UpdateNode patches a node.
func (tx *Tx) UpdateNode(id nodeid.ID, patch model.NodePatch) (*model.Node, error) {
	return tx.registry.Update(tx.ctx, id, patch)
}

// Deprecate tombstones id.
func (tx *Tx) Deprecate(id, successor nodeid.ID, reason string) (*model.Tombstone, error) {
	tx.resolvedKeys = nil
	return tx.lineage.Deprecate(tx.ctx, tx.registry, id, successor, reason)
}

// Merge tombstones from into into.
func (tx *Tx) Merge(from []nodeid.ID, into nodeid.ID, weights map[nodeid.ID]float64, reason string) ([]*model.Tombstone, error) {
	tx.resolvedKeys = nil
	return tx.lineage.Merge(tx.ctx, tx.registry, from, into, weights, reason)
}

// Consolidate applies a consolidation record as authored in the corpus.
func (tx *Tx) Consolidate(c *model.Consolidation) error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch model.ConsolidationAction(strings.ToLower(string(c.Action))) {
	case model.ActionDeprecate:
		_, err := tx.Deprecate(c.From[0], c.Into, c.Reason)
		return err
	default:
		_, err := tx.Merge(c.From, c.Into, c.Weights, c.Reason)
		return err
	}
}

func (tx *Tx) keys() map[edgeKey]nodeid.ID {
	if tx.resolvedKeys != nil {
		return tx.resolvedKeys
	}
	tx.resolvedKeys = make(map[edgeKey]nodeid.ID)
	for _, m := range tx.topology.AllMechanisms(tx.ctx) {
		if !m.Active() {
			continue
		}
		src, errS := tx.Resolve(m.Source)
		tgt, errT := tx.Resolve(m.Target)
		if errS != nil || errT != nil {
			continue
		}
		key := edgeKey{src.ID, tgt.ID, normalizePathway(m.Pathway)}
		if _, taken := tx.resolvedKeys[key]; !taken {
			tx.resolvedKeys[key] = m.ID
		}
	}
	return tx.resolvedKeys
}

func (tx *Tx) uniqueID(base nodeid.ID, pending map[nodeid.ID]struct{}) nodeid.ID {
	taken := func(id nodeid.ID) bool {
		if _, ok := pending[id]; ok {
			return true
		}
		_, ok := tx.topology.Mechanism(tx.ctx, id)
		return ok
	}
	if !taken(base) {
		return base
	}
	for i := 2; ; i++ {
		id := nodeid.ID(fmt.Sprintf("%s_%d", base, i))
		if !taken(id) {
			return id
		}
	}
}

// AddMechanism expands spec and adds every pairwise edge. Every endpoint
// must resolve to an active node; if any does not, the first failure is
// returned as a *model.ReferentialIntegrityError and nothing is added.
func (tx *Tx) AddMechanism(spec *model.MechanismSpec) ([]*model.Mechanism, error) {
	expanded, err := spec.Expand()
	if err != nil {
		return nil, err
	}

	keys := tx.keys()
	pending := make(map[nodeid.ID]struct{}, len(expanded))
	pendingKeys := make(map[edgeKey]nodeid.ID, len(expanded))
	for _, m := range expanded {
		src, err := tx.Resolve(m.Source)
		if err != nil {
			return nil, &model.ReferentialIntegrityError{MechanismID: m.ID, NodeID: m.Source, Endpoint: "source", Cause: err}
		}
		tgt, err := tx.Resolve(m.Target)
		if err != nil {
			return nil, &model.ReferentialIntegrityError{MechanismID: m.ID, NodeID: m.Target, Endpoint: "target", Cause: err}
		}

		if spec.ID == "" {
			m.ID = tx.uniqueID(m.ID, pending)
		} else if _, exists := tx.topology.Mechanism(tx.ctx, m.ID); exists {
			return nil, fmt.Errorf("%w: id %q already stored", model.ErrDuplicateMechanism, m.ID)
		}
		pending[m.ID] = struct{}{}

		if !m.Active() {
			continue
		}
		key := edgeKey{src.ID, tgt.ID, normalizePathway(m.Pathway)}
		if other, dup := keys[key]; dup {
			return nil, fmt.Errorf("%w: %q repeats %q (%s -> %s, same pathway)", model.ErrDuplicateMechanism, m.ID, other, src.ID, tgt.ID)
		}
		if other, dup := pendingKeys[key]; dup {
			return nil, fmt.Errorf("%w: %q repeats %q (%s -> %s, same pathway)", model.ErrDuplicateMechanism, m.ID, other, src.ID, tgt.ID)
		}
		pendingKeys[key] = m.ID
	}

	for _, m := range expanded {
		if err := tx.topology.AddMechanism(tx.ctx, m); err != nil {
			return nil, err
		}
		tx.registry.RecordAudit(model.NewAuditEntry(model.AuditAddMechanism, string(m.ID), 0, fmt.Sprintf("%s -> %s", m.Source, m.Target)))
	}
	for k, id := range pendingKeys {
		keys[k] = id
	}
	return expanded, nil
}

// RetireMechanism marks a mechanism retired. Retiring twice is a no-op.
func (tx *Tx) RetireMechanism(id nodeid.ID, reason string) error {
	m, ok := tx.topology.Mechanism(tx.ctx, id)
	if !ok {
		return fmt.Errorf("%w: %q", model.ErrUnknownMechanism, id)
	}
	if !m.Active() {
		return nil
	}
	retired := m.Clone()
	retired.Status = model.MechanismRetired
	retired.RetiredReason = reason
	if err := tx.topology.ReplaceMechanism(tx.ctx, retired); err != nil {
		return err
	}
	tx.resolvedKeys = nil
	tx.registry.RecordAudit(model.NewAuditEntry(model.AuditRetireMechanism, string(id), 0, reason))
	return nil
}

// RestoreNode installs an exported node record as-is.
func (tx *Tx) RestoreNode(n *model.Node) error {
	return tx.registry.Restore(n)
}

// RestoreTombstone installs an exported tombstone record.
func (tx *Tx) RestoreTombstone(ts *model.Tombstone) error {
	tx.resolvedKeys = nil
	return tx.lineage.Restore(tx.registry, ts)
}

// RestoreMechanism installs an exported mechanism without endpoint checks;
// validation reports anything that no longer resolves.
func (tx *Tx) RestoreMechanism(m *model.Mechanism) error {
	if err := m.Strength.Validate(); err != nil {
		return &model.SchemaValidationError{Kind: "mechanism", ID: string(m.ID), Field: "strength", Reason: err.Error()}
	}
	tx.resolvedKeys = nil
	if err := tx.topology.AddMechanism(tx.ctx, m.Clone()); err != nil {
		return err
	}
	tx.registry.RecordAudit(model.NewAuditEntry(model.AuditRestore, string(m.ID), 0, "mechanism"))
	return nil
}
