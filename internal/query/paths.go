package query

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/specialistvlad/causalgrid/internal/graph"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// PathResult holds enumerated simple paths.
type PathResult struct {
	Paths     []graph.Path `json:"paths"`
	Truncated bool         `json:"truncated"`
}

// FindPaths enumerates simple paths from a to b of at most MaxDepth hops,
// up to Limit paths.
func FindPaths(ctx context.Context, snap *graph.Snapshot, a, b nodeid.ID, opts ...Option) (*PathResult, error) {
	options := applyOptions(opts)
	ctx, sp := tracer.Start(ctx, "Query.FindPaths", trace.WithAttributes(
		attribute.String("from", string(a)),
		attribute.String("to", string(b)),
	))
	defer sp.End()

	qctx, cancel := context.WithTimeout(ctx, options.Timeout)
	defer cancel()
	paths, truncated, err := snap.FindPaths(qctx, a, b, options.MaxDepth, options.Limit)
	if err != nil {
		if ctx.Err() == nil && qctx.Err() != nil {
			return &PathResult{Truncated: true}, nil
		}
		return nil, err
	}
	return &PathResult{Paths: paths, Truncated: truncated}, nil
}

// Chain is a causal chain that starts at one scale and ends at another.
type Chain struct {
	Path graph.Path `json:"-"`
	// Strength is |gain|, the ranking key.
	Strength   float64     `json:"strength"`
	Gain       float64     `json:"gain"`
	Nodes      []nodeid.ID `json:"nodes"`
	Mechanisms []nodeid.ID `json:"mechanisms"`
}

// ChainResult lists chains sorted by strength, strongest first.
type ChainResult struct {
	From      model.Scale `json:"from_scale"`
	To        model.Scale `json:"to_scale"`
	Chains    []Chain     `json:"chains"`
	Truncated bool        `json:"truncated"`
}

// ScaleCrossingChains enumerates simple chains from any active node at
// scale from to any node at scale to, stopping each chain at the first node
// that operates at the target scale. Chains are bounded by MaxDepth hops and
// Limit results.
func ScaleCrossingChains(ctx context.Context, snap *graph.Snapshot, from, to model.Scale, opts ...Option) (*ChainResult, error) {
	if !from.Valid() || !to.Valid() {
		return nil, fmt.Errorf("%w: scales must be within 1..5, got %d and %d", model.ErrSchemaValidation, from, to)
	}
	options := applyOptions(opts)
	ctx, sp := tracer.Start(ctx, "Query.ScaleCrossingChains", trace.WithAttributes(
		attribute.Int("from_scale", int(from)),
		attribute.Int("to_scale", int(to)),
	))
	defer sp.End()

	qctx, cancel := context.WithTimeout(ctx, options.Timeout)
	defer cancel()

	atTarget := func(id nodeid.ID) bool {
		n, ok := snap.RawNode(id)
		return ok && n.Scales.Contains(to)
	}
	result := &ChainResult{From: from, To: to}
	full := false
	for _, n := range snap.ActiveNodes() {
		if !n.Scales.Contains(from) {
			continue
		}
		err := snap.WalkPaths(qctx, n.ID, options.MaxDepth, atTarget, func(p graph.Path) bool {
			if len(result.Chains) == options.Limit {
				full = true
				return false
			}
			c := Chain{Path: p, Strength: math.Abs(p.Gain), Gain: p.Gain, Nodes: p.Nodes}
			for _, e := range p.Edges {
				c.Mechanisms = append(c.Mechanisms, e.ID)
			}
			result.Chains = append(result.Chains, c)
			return true
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			full = true
		}
		if full {
			result.Truncated = true
			break
		}
	}

	slices.SortStableFunc(result.Chains, func(a, b Chain) int {
		return cmp.Or(cmp.Compare(b.Strength, a.Strength), slices.Compare(a.Mechanisms, b.Mechanisms))
	})
	sp.SetAttributes(attribute.Int("results", len(result.Chains)), attribute.Bool("truncated", result.Truncated))
	return result, nil
}
