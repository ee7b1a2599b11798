package propagation

import (
	"container/heap"
	"context"
	"math"
	"slices"

	"github.com/specialistvlad/causalgrid/internal/graph"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// contributionHeap is a min-heap on |Effect| holding the strongest paths
// seen so far for one node.
type contributionHeap []Contribution

func (h contributionHeap) Len() int { return len(h) }
func (h contributionHeap) Less(i, j int) bool {
	return math.Abs(h[i].Effect) < math.Abs(h[j].Effect)
}
func (h contributionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *contributionHeap) Push(x any)   { *h = append(*h, x.(Contribution)) }
func (h *contributionHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topPaths ranks simple paths from every perturbed node by
// |delta_source · gain| and keeps the k strongest per reached node. Direct
// perturbations count as zero-hop paths. At most budget paths are walked in
// total.
func topPaths(ctx context.Context, snap *graph.Snapshot, s *system, k, maxHops, budget int) (map[nodeid.ID][]Contribution, error) {
	if k == 0 || maxHops == 0 {
		return nil, nil
	}
	best := make(map[nodeid.ID]*contributionHeap)
	offer := func(id nodeid.ID, c Contribution) {
		h, ok := best[id]
		if !ok {
			h = &contributionHeap{}
			best[id] = h
		}
		if h.Len() < k {
			heap.Push(h, c)
			return
		}
		if math.Abs(c.Effect) > math.Abs((*h)[0].Effect) {
			(*h)[0] = c
			heap.Fix(h, 0)
		}
	}

	walked := 0
	for i, id := range s.ids {
		d := s.delta[i]
		if d == 0 || !s.active[i] {
			continue
		}
		offer(id, Contribution{Nodes: []nodeid.ID{id}, Effect: d})
		err := snap.WalkPaths(ctx, id, maxHops, nil, func(p graph.Path) bool {
			if budget > 0 && walked >= budget {
				return false
			}
			walked++
			end := p.Nodes[len(p.Nodes)-1]
			if j, ok := s.index[end]; !ok || !s.active[j] {
				return true
			}
			mechs := make([]nodeid.ID, len(p.Edges))
			for n, e := range p.Edges {
				mechs[n] = e.ID
			}
			offer(end, Contribution{Nodes: p.Nodes, Mechanisms: mechs, Effect: d * p.Gain})
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	out := make(map[nodeid.ID][]Contribution, len(best))
	for id, h := range best {
		list := slices.Clone(*h)
		slices.SortStableFunc(list, func(a, b Contribution) int {
			switch ma, mb := math.Abs(a.Effect), math.Abs(b.Effect); {
			case ma > mb:
				return -1
			case ma < mb:
				return 1
			}
			return slices.Compare(a.Mechanisms, b.Mechanisms)
		})
		out[id] = list
	}
	return out, nil
}
