package query

import (
	"cmp"
	"context"
	"iter"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/specialistvlad/causalgrid/internal/graph"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Reached is one node found by a reachability query with its hop distance
// from the origin.
type Reached struct {
	Node  nodeid.ID `json:"node"`
	Depth int       `json:"depth"`
}

// ReachResult lists the nodes reachable from Origin, ordered by depth then id.
type ReachResult struct {
	Origin    nodeid.ID `json:"origin"`
	Nodes     []Reached `json:"nodes"`
	Truncated bool      `json:"truncated"`
}

// Contains reports whether id was reached.
func (r *ReachResult) Contains(id nodeid.ID) bool {
	return slices.ContainsFunc(r.Nodes, func(n Reached) bool { return n.Node == id })
}

// IDs returns the reached ids in result order.
func (r *ReachResult) IDs() []nodeid.ID {
	out := make([]nodeid.ID, len(r.Nodes))
	for i, n := range r.Nodes {
		out[i] = n.Node
	}
	return out
}

// Descendants returns every node reachable from id along resolved edges
// within the configured depth. The origin itself is not listed.
func Descendants(ctx context.Context, snap *graph.Snapshot, id nodeid.ID, opts ...Option) (*ReachResult, error) {
	return reach(ctx, snap, id, "Query.Descendants", func(e graph.Edge) nodeid.ID { return e.Target }, snap.Outgoing, opts)
}

// Ancestors returns every node from which id is reachable within the
// configured depth. Y is a descendant of X exactly when X is an ancestor of Y.
func Ancestors(ctx context.Context, snap *graph.Snapshot, id nodeid.ID, opts ...Option) (*ReachResult, error) {
	return reach(ctx, snap, id, "Query.Ancestors", func(e graph.Edge) nodeid.ID { return e.Source }, snap.Incoming, opts)
}

// reach is a breadth-first search. BFS depth is the shortest hop count, and
// a shortest walk is always a simple path, so a node is listed exactly when
// some simple path of at most MaxDepth hops connects it to the origin.
func reach(ctx context.Context, snap *graph.Snapshot, id nodeid.ID, span string, next func(graph.Edge) nodeid.ID, edges func(nodeid.ID) iter.Seq[graph.Edge], opts []Option) (*ReachResult, error) {
	options := applyOptions(opts)
	ctx, sp := tracer.Start(ctx, span, trace.WithAttributes(
		attribute.String("node", string(id)),
		attribute.Int("max_depth", options.MaxDepth),
	))
	defer sp.End()

	res, err := snap.Resolve(id)
	if err != nil {
		sp.RecordError(err)
		return nil, err
	}
	qctx, cancel := context.WithTimeout(ctx, options.Timeout)
	defer cancel()

	result := &ReachResult{Origin: res.ID}
	type queueItem struct {
		node  nodeid.ID
		depth int
	}
	visited := map[nodeid.ID]bool{res.ID: true}
	queue := []queueItem{{res.ID, 0}}
	checkCounter := 0

loop:
	for len(queue) > 0 {
		checkCounter++
		if checkCounter%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if qctx.Err() != nil {
				result.Truncated = true
				break
			}
		}

		item := queue[0]
		queue = queue[1:]
		if item.depth >= options.MaxDepth {
			continue
		}
		for e := range edges(item.node) {
			n := next(e)
			if visited[n] {
				continue
			}
			if len(result.Nodes) >= options.Limit {
				result.Truncated = true
				break loop
			}
			visited[n] = true
			result.Nodes = append(result.Nodes, Reached{Node: n, Depth: item.depth + 1})
			queue = append(queue, queueItem{n, item.depth + 1})
		}
	}

	slices.SortFunc(result.Nodes, func(a, b Reached) int {
		return cmp.Or(cmp.Compare(a.Depth, b.Depth), cmp.Compare(a.Node, b.Node))
	})
	sp.SetAttributes(attribute.Int("results", len(result.Nodes)), attribute.Bool("truncated", result.Truncated))
	return result, nil
}
