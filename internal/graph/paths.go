package graph

import (
	"context"
	"fmt"

	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Path is a simple path through resolved edges.
type Path struct {
	Nodes []nodeid.ID
	Edges []Edge
	// Gain is the product of edge coefficients along the path.
	Gain float64
}

// Hops is the number of edges on the path.
func (p Path) Hops() int { return len(p.Edges) }

// PathVisitor receives every path found. Returning false stops the search.
type PathVisitor func(p Path) bool

// WalkPaths enumerates simple paths starting at the resolved id source, up
// to maxHops edges, calling visit for every path that ends at a node
// accepted by stop (all paths when stop is nil). The search does not extend
// a path past an accepted node unless stop is nil. The visited set is local to
// the current path: a node may appear on many paths but never twice on one.
// Edges are followed in source, target, id order, so enumeration is
// deterministic. The context is checked every 256 expansions.
func (s *Snapshot) WalkPaths(ctx context.Context, source nodeid.ID, maxHops int, stop func(nodeid.ID) bool, visit PathVisitor) error {
	onPath := map[nodeid.ID]bool{source: true}
	nodes := []nodeid.ID{source}
	var edges []Edge
	expansions := 0
	halted := false

	var dfs func(cur nodeid.ID, gain float64) error
	dfs = func(cur nodeid.ID, gain float64) error {
		if len(edges) == maxHops {
			return nil
		}
		for _, i := range s.out[cur] {
			e := s.edges[i]
			if onPath[e.Target] {
				continue
			}
			expansions++
			if expansions%256 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			onPath[e.Target] = true
			nodes = append(nodes, e.Target)
			edges = append(edges, e)
			g := gain * e.Coefficient

			accepted := stop == nil || stop(e.Target)
			if accepted {
				p := Path{
					Nodes: append([]nodeid.ID(nil), nodes...),
					Edges: append([]Edge(nil), edges...),
					Gain:  g,
				}
				if !visit(p) {
					halted = true
				}
			}
			if !halted && (stop == nil || !accepted) {
				if err := dfs(e.Target, g); err != nil {
					return err
				}
			}

			edges = edges[:len(edges)-1]
			nodes = nodes[:len(nodes)-1]
			delete(onPath, e.Target)
			if halted {
				return nil
			}
		}
		return nil
	}
	return dfs(source, 1)
}

// FindPaths returns up to limit simple paths from source to target with at
// most maxHops edges. Tombstoned endpoints are resolved first. The boolean
// reports whether the limit cut the enumeration short.
func (s *Snapshot) FindPaths(ctx context.Context, source, target nodeid.ID, maxHops, limit int) ([]Path, bool, error) {
	if maxHops <= 0 {
		return nil, false, fmt.Errorf("max hops must be positive, got %d", maxHops)
	}
	src, err := s.Resolve(source)
	if err != nil {
		return nil, false, err
	}
	tgt, err := s.Resolve(target)
	if err != nil {
		return nil, false, err
	}
	if src.ID == tgt.ID {
		return []Path{{Nodes: []nodeid.ID{src.ID}, Gain: 1}}, false, nil
	}

	var paths []Path
	truncated := false
	err = s.WalkPaths(ctx, src.ID, maxHops, func(id nodeid.ID) bool { return id == tgt.ID }, func(p Path) bool {
		if limit > 0 && len(paths) == limit {
			truncated = true
			return false
		}
		paths = append(paths, p)
		return true
	})
	if err != nil {
		return nil, false, err
	}
	return paths, truncated, nil
}
