package propagation

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/specialistvlad/causalgrid/internal/dag"
	"github.com/specialistvlad/causalgrid/internal/graph"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// term is one incoming edge of a node in the dense system.
type term struct {
	src    int
	edge   int
	coef   float64
	lo, hi float64
}

// system is the linear system restricted to nodes reachable from the
// perturbed nodes.
type system struct {
	ids   []nodeid.ID
	index map[nodeid.ID]int
	delta []float64
	in    [][]term
	edges []graph.Edge
	// active is false for nodes excluded from relaxation (diverged).
	active []bool
}

// resolveDeltas maps every perturbation onto its resolved node. A
// perturbation of a weighted component is scaled by its weight.
func resolveDeltas(snap *graph.Snapshot, iv *model.Intervention) (map[nodeid.ID]float64, error) {
	if err := iv.Validate(); err != nil {
		return nil, err
	}
	deltas := make(map[nodeid.ID]float64, len(iv.Perturbations))
	for _, p := range iv.Perturbations {
		n, res, err := snap.Node(p.NodeID)
		if err != nil {
			return nil, fmt.Errorf("intervention %q: perturbation of %q: %w", iv.Name, p.NodeID, err)
		}
		if p.Unit != "" && !strings.EqualFold(strings.TrimSpace(p.Unit), strings.TrimSpace(n.Unit)) {
			return nil, &model.UnitMismatchError{NodeID: n.ID, From: p.Unit, To: n.Unit}
		}
		deltas[res.ID] += p.Delta * res.Weight
	}
	return deltas, nil
}

func buildSystem(snap *graph.Snapshot, deltas map[nodeid.ID]float64) *system {
	var seeds []nodeid.ID
	for _, id := range slices.Sorted(maps.Keys(deltas)) {
		if deltas[id] != 0 {
			seeds = append(seeds, id)
		}
	}
	reach := snap.Structure().Reachable(seeds...)
	for id := range deltas {
		reach[id] = struct{}{}
	}

	s := &system{
		ids:   slices.Sorted(maps.Keys(reach)),
		index: make(map[nodeid.ID]int, len(reach)),
	}
	for i, id := range s.ids {
		s.index[id] = i
	}
	s.delta = make([]float64, len(s.ids))
	s.in = make([][]term, len(s.ids))
	s.active = make([]bool, len(s.ids))
	for i, id := range s.ids {
		s.delta[i] = deltas[id]
		s.active[i] = true
	}
	for _, e := range snap.Edges() {
		si, okS := s.index[e.Source]
		ti, okT := s.index[e.Target]
		if !okS || !okT {
			continue
		}
		s.edges = append(s.edges, e)
		s.in[ti] = append(s.in[ti], term{src: si, edge: len(s.edges) - 1, coef: e.Coefficient, lo: e.Low, hi: e.High})
	}
	return s
}

// loop is a cyclic component inside the system with its gain. A certain
// loop diverges whatever the damping; an uncertain one has a gain of at
// least 1 only in magnitude, and the relaxation decides.
type loop struct {
	members []nodeid.ID
	gain    float64
	certain bool
}

// divergentLoops returns the cyclic components of the reachable subgraph
// whose gain is at least 1. Parallel mechanisms between the same pair of
// nodes are netted before magnitudes are taken. When upper is set the gain
// uses the confidence bounds instead of the point estimate.
//
// ρ(|W|) bounds the spectral radius of the signed matrix W, with equality
// when W is sign-balanced (every cycle has a positive product). Below 1 the
// loop converges; at or above 1 with a balanced W it diverges.
func (s *system) divergentLoops(cond *dag.Condensation, upper bool) []loop {
	var out []loop
	for _, comp := range cond.Cyclic() {
		if _, ok := s.index[comp.Members[0]]; !ok {
			continue
		}
		local := make(map[int]int, len(comp.Members))
		for k, id := range comp.Members {
			local[s.index[id]] = k
		}
		n := len(comp.Members)
		netLo, netHi := square(n), square(n)
		for _, id := range comp.Members {
			ti := local[s.index[id]]
			for _, t := range s.in[s.index[id]] {
				k, ok := local[t.src]
				if !ok {
					continue
				}
				if upper {
					netLo[ti][k] += t.lo
					netHi[ti][k] += t.hi
				} else {
					netLo[ti][k] += t.coef
					netHi[ti][k] += t.coef
				}
			}
		}

		w := square(n)
		sign := square(n)
		for i := range w {
			for k := range w[i] {
				lo, hi := netLo[i][k], netHi[i][k]
				w[i][k] = max(math.Abs(lo), math.Abs(hi))
				switch {
				case lo > 0:
					sign[i][k] = 1
				case hi < 0:
					sign[i][k] = -1
				case w[i][k] > 0:
					// The interval straddles zero: no fixed sign.
					sign[i][k] = math.NaN()
				}
			}
		}
		if g := perronRoot(w); g >= 1-gainTolerance {
			out = append(out, loop{members: comp.Members, gain: g, certain: balanced(sign)})
		}
	}
	return out
}

func square(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}

// balanced reports whether a ±1 labelling l exists with
// sign[i][k] == l[i]*l[k] for every non-zero entry. sign holds 1, -1, 0
// for no edge, or NaN for an edge of unknown sign.
func balanced(sign [][]float64) bool {
	n := len(sign)
	label := make([]float64, n)
	for root := range label {
		if label[root] != 0 {
			continue
		}
		label[root] = 1
		queue := []int{root}
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			for k := 0; k < n; k++ {
				for _, sg := range []float64{sign[i][k], sign[k][i]} {
					if sg == 0 {
						continue
					}
					if math.IsNaN(sg) {
						return false
					}
					want := sg * label[i]
					if label[k] == 0 {
						label[k] = want
						queue = append(queue, k)
					} else if label[k] != want {
						return false
					}
				}
			}
		}
	}
	return true
}

// exclude marks the given nodes and everything downstream of them inactive
// and returns the sorted ids affected.
func (s *system) exclude(structure *dag.Graph, from []nodeid.ID) []nodeid.ID {
	if len(from) == 0 {
		return nil
	}
	var out []nodeid.ID
	for id := range structure.Reachable(from...) {
		if i, ok := s.index[id]; ok && s.active[i] {
			s.active[i] = false
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
