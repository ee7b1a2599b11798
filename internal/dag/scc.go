package dag

import (
	"maps"
	"slices"

	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Condensation is the DAG obtained by collapsing every strongly connected
// component of a Graph into a single vertex.
type Condensation struct {
	// Components are in topological order: every edge between components
	// goes from a lower Index to a higher one.
	Components []Component
	index      map[nodeid.ID]int
	edges      map[int]map[int]struct{}
}

// ComponentOf returns the index of the component holding id.
func (c *Condensation) ComponentOf(id nodeid.ID) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

// Successors returns the sorted indexes of components directly downstream
// of component i.
func (c *Condensation) Successors(i int) []int {
	return slices.Sorted(maps.Keys(c.edges[i]))
}

// Cyclic returns the components that contain a cycle, in topological order.
func (c *Condensation) Cyclic() []Component {
	var out []Component
	for _, comp := range c.Components {
		if comp.Cyclic {
			out = append(out, comp)
		}
	}
	return out
}

// Condense computes the strongly connected components with Tarjan's
// algorithm and the edges between them. Traversal follows sorted ids, so
// the result is deterministic for a given graph.
func (g *Graph) Condense() *Condensation {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var (
		counter int
		index   = make(map[nodeid.ID]int, len(g.nodes))
		lowlink = make(map[nodeid.ID]int, len(g.nodes))
		onStack = make(map[nodeid.ID]bool, len(g.nodes))
		stack   []nodeid.ID
		found   [][]nodeid.ID
	)

	var strongConnect func(n *node)
	strongConnect = func(n *node) {
		index[n.id] = counter
		lowlink[n.id] = counter
		counter++
		stack = append(stack, n.id)
		onStack[n.id] = true

		for _, id := range slices.Sorted(maps.Keys(n.dependents)) {
			if _, visited := index[id]; !visited {
				strongConnect(n.dependents[id])
				lowlink[n.id] = min(lowlink[n.id], lowlink[id])
			} else if onStack[id] {
				lowlink[n.id] = min(lowlink[n.id], index[id])
			}
		}

		if lowlink[n.id] == index[n.id] {
			var members []nodeid.ID
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[top] = false
				members = append(members, top)
				if top == n.id {
					break
				}
			}
			slices.Sort(members)
			found = append(found, members)
		}
	}

	for _, id := range slices.Sorted(maps.Keys(g.nodes)) {
		if _, visited := index[id]; !visited {
			strongConnect(g.nodes[id])
		}
	}

	// Tarjan emits components in reverse topological order.
	slices.Reverse(found)
	c := &Condensation{
		Components: make([]Component, len(found)),
		index:      make(map[nodeid.ID]int, len(g.nodes)),
		edges:      make(map[int]map[int]struct{}),
	}
	for i, members := range found {
		for _, id := range members {
			c.index[id] = i
		}
	}
	for i, members := range found {
		comp := Component{Index: i, Members: members, Cyclic: len(members) > 1}
		for _, id := range members {
			n := g.nodes[id]
			if _, self := n.dependents[id]; self {
				comp.Cyclic = true
			}
			for succ := range n.dependents {
				j := c.index[succ]
				if j == i {
					continue
				}
				if c.edges[i] == nil {
					c.edges[i] = make(map[int]struct{})
				}
				c.edges[i][j] = struct{}{}
			}
		}
		c.Components[i] = comp
	}
	return c
}
