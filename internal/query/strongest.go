package query

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/specialistvlad/causalgrid/internal/graph"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// ErrNoPath is returned when no path with non-zero strength connects two
// nodes.
var ErrNoPath = errors.New("no path")

// StrongestResult is the path whose product of edge magnitudes is largest.
type StrongestResult struct {
	Path graph.Path `json:"-"`
	// Strength is the product of min(|coef|, 1) along the path.
	Strength float64 `json:"strength"`
	// Gain is the signed product of the coefficients.
	Gain       float64     `json:"gain"`
	Nodes      []nodeid.ID `json:"nodes"`
	Mechanisms []nodeid.ID `json:"mechanisms"`
}

type distItem struct {
	node nodeid.ID
	dist float64
}

type distQueue []*distItem

func (q distQueue) Len() int { return len(q) }
func (q distQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].node < q[j].node
}
func (q distQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *distQueue) Push(x any)   { *q = append(*q, x.(*distItem)) }
func (q *distQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// edgeCost is -log(min(|coef|, 1)). Magnitudes above one cost nothing so
// that all costs stay non-negative.
func edgeCost(coef float64) float64 {
	return -math.Log(math.Min(math.Abs(coef), 1))
}

// StrongestPath finds the path from a to b that maximises the product of
// edge magnitudes, by Dijkstra on -log(min(|coef|, 1)). Zero-strength edges
// are never followed. Paths tied on the capped cost prefer the larger
// uncapped product; remaining ties are broken by node id.
func StrongestPath(ctx context.Context, snap *graph.Snapshot, a, b nodeid.ID, opts ...Option) (*StrongestResult, error) {
	options := applyOptions(opts)
	ctx, sp := tracer.Start(ctx, "Query.StrongestPath", trace.WithAttributes(
		attribute.String("from", string(a)),
		attribute.String("to", string(b)),
	))
	defer sp.End()

	src, err := snap.Resolve(a)
	if err != nil {
		return nil, err
	}
	tgt, err := snap.Resolve(b)
	if err != nil {
		return nil, err
	}
	if src.ID == tgt.ID {
		return &StrongestResult{Path: graph.Path{Nodes: []nodeid.ID{src.ID}, Gain: 1}, Strength: 1, Gain: 1, Nodes: []nodeid.ID{src.ID}}, nil
	}
	qctx, cancel := context.WithTimeout(ctx, options.Timeout)
	defer cancel()

	dist := map[nodeid.ID]float64{src.ID: 0}
	// uncapped is -log|product| without the cap; it breaks ties in dist.
	uncapped := map[nodeid.ID]float64{src.ID: 0}
	prev := make(map[nodeid.ID]graph.Edge)
	done := make(map[nodeid.ID]bool)
	q := &distQueue{}
	heap.Push(q, &distItem{node: src.ID})

	pops := 0
	for q.Len() > 0 {
		pops++
		if pops%contextCheckInterval == 0 {
			if err := qctx.Err(); err != nil {
				return nil, fmt.Errorf("strongest path from %q to %q: %w", a, b, err)
			}
		}
		cur := heap.Pop(q).(*distItem)
		if done[cur.node] {
			continue
		}
		done[cur.node] = true
		if cur.node == tgt.ID {
			break
		}
		for e := range snap.Outgoing(cur.node) {
			if e.Coefficient == 0 || done[e.Target] {
				continue
			}
			d := cur.dist + edgeCost(e.Coefficient)
			r := uncapped[cur.node] - math.Log(math.Abs(e.Coefficient))
			old, seen := dist[e.Target]
			if seen && (d > old || d == old && r >= uncapped[e.Target]) {
				continue
			}
			dist[e.Target] = d
			uncapped[e.Target] = r
			prev[e.Target] = e
			// Stale entries are skipped when popped.
			heap.Push(q, &distItem{node: e.Target, dist: d})
		}
	}
	if !done[tgt.ID] {
		return nil, fmt.Errorf("%w from %q to %q", ErrNoPath, a, b)
	}

	var edges []graph.Edge
	for n := tgt.ID; n != src.ID; {
		e := prev[n]
		edges = append(edges, e)
		n = e.Source
	}
	result := &StrongestResult{Gain: 1, Strength: math.Exp(-dist[tgt.ID])}
	result.Nodes = append(result.Nodes, src.ID)
	for i := len(edges) - 1; i >= 0; i-- {
		e := edges[i]
		result.Path.Edges = append(result.Path.Edges, e)
		result.Nodes = append(result.Nodes, e.Target)
		result.Mechanisms = append(result.Mechanisms, e.ID)
		result.Gain *= e.Coefficient
	}
	result.Path.Nodes = result.Nodes
	result.Path.Gain = result.Gain
	sp.SetAttributes(attribute.Float64("strength", result.Strength), attribute.Int("hops", len(edges)))
	return result, nil
}
