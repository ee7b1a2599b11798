// Package topologystore defines the interface for storing the declared
// mechanisms of the causal graph.
//
// # Why Topology Store Exists
//
// The topology store keeps mechanisms exactly as they were declared: their
// endpoints are the ids written in the corpus, which may since have been
// deprecated or merged. Resolving those endpoints to live nodes is the job
// of the graph package, which rebuilds its resolved edge index every time a
// new snapshot is published. Keeping the declared form means a merge never
// rewrites a mechanism and a retired endpoint stays traceable.
//
// # Lifecycle and Usage
//
// A store is:
//  1. **Cloned** by the graph manager at the start of every write.
//  2. **Mutated** only through that private clone by the single writer.
//  3. **Frozen** once the clone is published inside a graph.Snapshot; from
//     then on it is only read.
package topologystore

import (
	"context"

	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Store is the interface for managing the declared mechanisms of the graph.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent reads. Writes only ever happen
// on a clone owned by one goroutine, but readers of a published snapshot may
// still run in parallel with each other.
//
// # Typical Implementation
//
// See internal/inmemorytopology for the reference in-memory implementation
// using maps and sync.RWMutex.
type Store interface {
	// AddMechanism stores m under its id.
	//
	// Adding an id that is already present fails with an error wrapping
	// model.ErrDuplicateMechanism. The store does not check endpoints; the
	// graph resolves them before calling AddMechanism.
	AddMechanism(ctx context.Context, m *model.Mechanism) error

	// ReplaceMechanism swaps the record stored under m.ID. It is used to
	// retire mechanisms and fails with model.ErrUnknownMechanism when the id
	// is absent.
	ReplaceMechanism(ctx context.Context, m *model.Mechanism) error

	// Mechanism returns the record stored under id.
	Mechanism(ctx context.Context, id nodeid.ID) (*model.Mechanism, bool)

	// AllMechanisms returns every record, retired ones included, sorted by id.
	AllMechanisms(ctx context.Context) []*model.Mechanism

	// DeclaredFrom returns the ids of mechanisms whose declared source is id,
	// sorted. DeclaredTo does the same for targets. Both are used to find
	// mechanisms affected by a lifecycle change.
	DeclaredFrom(ctx context.Context, id nodeid.ID) []nodeid.ID
	DeclaredTo(ctx context.Context, id nodeid.ID) []nodeid.ID

	// Len returns the number of stored mechanisms.
	Len() int

	// Clone returns an independent copy. Mechanism records are shared, so
	// callers must replace rather than mutate them.
	Clone() Store
}
