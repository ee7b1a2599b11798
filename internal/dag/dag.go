package dag

import (
	"fmt"
	"maps"
	"slices"

	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[nodeid.ID]*node),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id nodeid.ID) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &node{
		id:         id,
		dependents: make(map[nodeid.ID]*node),
	}
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// Self-loops are allowed. An error is returned if either node does not exist.
func (g *Graph) AddEdge(fromID, toID nodeid.ID) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	fromNode.dependents[toID] = toNode

	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// Nodes returns every node id, sorted.
func (g *Graph) Nodes() []nodeid.ID {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return slices.Sorted(maps.Keys(g.nodes))
}

// Reachable returns every node reachable from the given ids, the ids
// themselves included. Unknown ids are ignored.
func (g *Graph) Reachable(from ...nodeid.ID) map[nodeid.ID]struct{} {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	seen := make(map[nodeid.ID]struct{})
	queue := make([]*node, 0, len(from))
	for _, id := range from {
		if n, ok := g.nodes[id]; ok {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				queue = append(queue, n)
			}
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for id, next := range n.dependents {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			queue = append(queue, next)
		}
	}
	return seen
}
