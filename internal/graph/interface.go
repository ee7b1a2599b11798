package graph

import (
	"context"

	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Check inspects a candidate snapshot before it is published. A non-nil
// error aborts the write.
type Check func(ctx context.Context, candidate *Snapshot) error

// Graph is the unified interface for reading and mutating the causal graph.
//
// # Usage Patterns
//
// **Engine** uses Graph to:
//   - Bulk load a corpus atomically: Write() with a validation Check
//   - Hand snapshots to simulation and queries: Snapshot()
//
// **HTTP handlers** use Graph to:
//   - Serve node records and history: Snapshot(), History()
//
// # Thread-Safety
//
// Implementations MUST be thread-safe. Writes are serialised internally and
// reads are lock-free against published snapshots.
//
// # Typical Implementation
//
// See internal/graph.Manager for the reference implementation that composes
// the registry, the lineage tracker, a topologystore.Store and a
// nodestore.Store.
type Graph interface {
	// Snapshot returns the currently published immutable snapshot.
	Snapshot() *Snapshot

	// Write runs fn inside a transaction over private copies of the graph
	// state. The result is published only if fn and every check succeed.
	// A write that changes nothing returns the current snapshot.
	Write(ctx context.Context, fn func(tx *Tx) error, checks ...Check) (*Snapshot, error)

	// Register adds a new node. See registry.Registry.Register.
	Register(ctx context.Context, n *model.Node) (*model.Node, error)

	// UpdateNode patches non-identity fields, creating a new version.
	UpdateNode(ctx context.Context, id nodeid.ID, patch model.NodePatch) (*model.Node, error)

	// Deprecate tombstones id, optionally pointing it at successor.
	Deprecate(ctx context.Context, id, successor nodeid.ID, reason string) error

	// Merge tombstones every id in from, pointing them at into.
	Merge(ctx context.Context, from []nodeid.ID, into nodeid.ID, weights map[nodeid.ID]float64, reason string) error

	// AddMechanism expands spec and adds every resulting pairwise edge, or
	// none of them.
	AddMechanism(ctx context.Context, spec *model.MechanismSpec) ([]*model.Mechanism, error)

	// RetireMechanism withdraws a mechanism from propagation. Retired
	// mechanisms are kept for history.
	RetireMechanism(ctx context.Context, id nodeid.ID, reason string) error

	// History returns every stored version of id, oldest first.
	History(ctx context.Context, id nodeid.ID) ([]*model.Node, error)

	// Audit returns the audit trail in commit order.
	Audit(ctx context.Context) ([]model.AuditEntry, error)
}
