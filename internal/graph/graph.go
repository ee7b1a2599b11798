package graph

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/lineage"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/specialistvlad/causalgrid/internal/nodestore"
	"github.com/specialistvlad/causalgrid/internal/registry"
	"github.com/specialistvlad/causalgrid/internal/topologystore"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Manager provides a high-level, thread-safe interface to the causal graph
// by composing and orchestrating lower-level stores.
type Manager struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	history nodestore.Store
}

// New creates a new graph manager over an empty graph. The topology store
// seeds the first snapshot and is cloned on every write; it should be empty.
func New(history nodestore.Store, topology topologystore.Store) Graph {
	m := &Manager{history: history}
	m.current.Store(newSnapshot(0, registry.New(), lineage.New(), topology))
	return m
}

// Snapshot returns the published snapshot.
func (m *Manager) Snapshot() *Snapshot {
	return m.current.Load()
}

// Write runs fn against clones of the current state and publishes the
// result.
func (m *Manager) Write(ctx context.Context, fn func(tx *Tx) error, checks ...Check) (published *Snapshot, err error) {
	ctx, span := tracer.Start(ctx, "Graph.Write")
	defer span.End()
	start := time.Now()
	defer func() {
		recordWriteMetrics(ctx, time.Since(start), published, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	base := m.current.Load()
	tx := &Tx{
		ctx:      ctx,
		registry: base.registry.Clone(),
		lineage:  base.lineage.Clone(),
		topology: base.topology.Clone(),
	}
	if err := fn(tx); err != nil {
		return nil, err
	}

	journal := tx.registry.Drain()
	if journal.IsEmpty() {
		return base, nil
	}

	next := newSnapshot(base.version+1, tx.registry, tx.lineage, tx.topology)
	for _, check := range checks {
		if err := check(ctx, next); err != nil {
			return nil, err
		}
	}
	if err := m.flush(ctx, journal); err != nil {
		return nil, fmt.Errorf("flushing history for snapshot %d: %w", next.version, err)
	}

	m.current.Store(next)
	span.SetAttributes(
		attribute.Int64("graph.version", int64(next.version)),
		attribute.Int("graph.edge_count", len(next.edges)),
	)
	ctxlog.FromContext(ctx).Debug("Snapshot published.",
		"version", next.version,
		"nodes", next.registry.Len(),
		"edges", len(next.edges),
		"changes", len(journal.Audit),
	)
	return next, nil
}

func (m *Manager) flush(ctx context.Context, j registry.Journal) error {
	for _, n := range j.Versions {
		if _, err := m.history.PutVersion(ctx, n); err != nil {
			return err
		}
	}
	if len(j.Audit) > 0 {
		if _, err := m.history.AppendAudit(ctx, j.Audit...); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) Register(ctx context.Context, n *model.Node) (*model.Node, error) {
	var out *model.Node
	_, err := m.Write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.Register(n)
		return err
	})
	return out, err
}

func (m *Manager) UpdateNode(ctx context.Context, id nodeid.ID, patch model.NodePatch) (*model.Node, error) {
	var out *model.Node
	_, err := m.Write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.UpdateNode(id, patch)
		return err
	})
	return out, err
}

func (m *Manager) Deprecate(ctx context.Context, id, successor nodeid.ID, reason string) error {
	_, err := m.Write(ctx, func(tx *Tx) error {
		_, err := tx.Deprecate(id, successor, reason)
		return err
	})
	return err
}

func (m *Manager) Merge(ctx context.Context, from []nodeid.ID, into nodeid.ID, weights map[nodeid.ID]float64, reason string) error {
	_, err := m.Write(ctx, func(tx *Tx) error {
		_, err := tx.Merge(from, into, weights, reason)
		return err
	})
	return err
}

func (m *Manager) AddMechanism(ctx context.Context, spec *model.MechanismSpec) ([]*model.Mechanism, error) {
	var out []*model.Mechanism
	_, err := m.Write(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.AddMechanism(spec)
		return err
	})
	return out, err
}

func (m *Manager) RetireMechanism(ctx context.Context, id nodeid.ID, reason string) error {
	_, err := m.Write(ctx, func(tx *Tx) error {
		return tx.RetireMechanism(id, reason)
	})
	return err
}

func (m *Manager) History(ctx context.Context, id nodeid.ID) ([]*model.Node, error) {
	if _, ok := m.Snapshot().RawNode(id); !ok {
		return nil, model.UnknownNodeError(id)
	}
	return m.history.Versions(ctx, id)
}

func (m *Manager) Audit(ctx context.Context) ([]model.AuditEntry, error) {
	return m.history.Audit(ctx)
}
