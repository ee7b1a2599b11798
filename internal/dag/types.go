package dag

import (
	"sync"

	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Graph is a collection of vertices and directed edges.
// All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the nodes map during concurrent access.
	mutex sync.RWMutex
	// nodes stores all vertices in the graph, keyed by their unique ID.
	nodes map[nodeid.ID]*node
}

// node represents a single vertex in the graph. It is un-exported to
// enforce interaction with the graph via the public API (using IDs),
// not by direct struct manipulation.
type node struct {
	// id is the unique identifier for the node.
	id nodeid.ID
	// dependents holds the set of nodes this node has an edge to (successors).
	dependents map[nodeid.ID]*node
}

// Component is a strongly connected component.
type Component struct {
	// Index is the position of the component in topological order.
	Index int
	// Members are sorted by id.
	Members []nodeid.ID
	// Cyclic is true when the component contains a cycle: more than one
	// member, or a single member with a self-loop.
	Cyclic bool
}
