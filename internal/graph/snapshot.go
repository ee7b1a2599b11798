package graph

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/specialistvlad/causalgrid/internal/dag"
	"github.com/specialistvlad/causalgrid/internal/lineage"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/specialistvlad/causalgrid/internal/registry"
	"github.com/specialistvlad/causalgrid/internal/topologystore"
)

// Edge is an active mechanism with both endpoints resolved to active nodes.
type Edge struct {
	ID             nodeid.ID
	Source         nodeid.ID
	Target         nodeid.ID
	DeclaredSource nodeid.ID
	DeclaredTarget nodeid.ID
	Pathway        string
	Direction      model.Direction
	// Coefficient is the signed linear transfer coefficient; Low and High
	// bound it with the confidence interval.
	Coefficient  float64
	Low          float64
	High         float64
	EvidenceTier int
	Transform    string
	SelfLoop     bool
	// Collapsed lists mechanisms that resolved onto this edge and were
	// folded into it.
	Collapsed []nodeid.ID
}

// Unresolved is an active mechanism with an endpoint that no longer
// resolves to an active node.
type Unresolved struct {
	Mechanism *model.Mechanism
	Endpoint  string
	NodeID    nodeid.ID
	Err       error
}

type edgeKey struct {
	source, target nodeid.ID
	pathway        string
}

func normalizePathway(p string) string {
	return strings.Join(strings.Fields(strings.ToLower(p)), " ")
}

// Snapshot is an immutable view of the graph at one version.
type Snapshot struct {
	version   uint64
	createdAt time.Time

	registry *registry.Registry
	lineage  *lineage.Tracker
	topology topologystore.Store

	edges      []Edge
	out        map[nodeid.ID][]int
	in         map[nodeid.ID][]int
	unresolved []Unresolved

	structureOnce sync.Once
	structure     *dag.Graph
	condensed     *dag.Condensation
}

func newSnapshot(version uint64, reg *registry.Registry, tr *lineage.Tracker, topo topologystore.Store) *Snapshot {
	s := &Snapshot{
		version:   version,
		createdAt: time.Now().UTC(),
		registry:  reg,
		lineage:   tr,
		topology:  topo,
		out:       make(map[nodeid.ID][]int),
		in:        make(map[nodeid.ID][]int),
	}
	s.indexEdges()
	return s
}

// indexEdges resolves every active mechanism. Mechanisms are visited in id
// order, so the lowest id wins when several collapse onto one edge.
func (s *Snapshot) indexEdges() {
	byKey := make(map[edgeKey]int)
	for _, m := range s.topology.AllMechanisms(context.Background()) {
		if !m.Active() {
			continue
		}
		src, err := s.lineage.Resolve(s.registry, m.Source)
		if err != nil {
			s.unresolved = append(s.unresolved, Unresolved{Mechanism: m, Endpoint: "source", NodeID: m.Source, Err: err})
			continue
		}
		tgt, err := s.lineage.Resolve(s.registry, m.Target)
		if err != nil {
			s.unresolved = append(s.unresolved, Unresolved{Mechanism: m, Endpoint: "target", NodeID: m.Target, Err: err})
			continue
		}

		key := edgeKey{src.ID, tgt.ID, normalizePathway(m.Pathway)}
		if i, ok := byKey[key]; ok {
			s.edges[i].Collapsed = append(s.edges[i].Collapsed, m.ID)
			continue
		}
		lo, hi := m.CoefficientInterval()
		byKey[key] = len(s.edges)
		s.edges = append(s.edges, Edge{
			ID:             m.ID,
			Source:         src.ID,
			Target:         tgt.ID,
			DeclaredSource: m.Source,
			DeclaredTarget: m.Target,
			Pathway:        m.Pathway,
			Direction:      m.Direction,
			Coefficient:    m.Coefficient(),
			Low:            lo,
			High:           hi,
			EvidenceTier:   m.EvidenceTier,
			Transform:      m.Transform,
			SelfLoop:       src.ID == tgt.ID,
		})
	}

	slices.SortFunc(s.edges, func(a, b Edge) int {
		return cmp.Or(cmp.Compare(a.Source, b.Source), cmp.Compare(a.Target, b.Target), cmp.Compare(a.ID, b.ID))
	})
	for i, e := range s.edges {
		s.out[e.Source] = append(s.out[e.Source], i)
		s.in[e.Target] = append(s.in[e.Target], i)
	}
}

// Version is the monotonically increasing snapshot number. The empty graph
// is version 0.
func (s *Snapshot) Version() uint64 { return s.version }

// CreatedAt is the publication time.
func (s *Snapshot) CreatedAt() time.Time { return s.createdAt }

// Resolve follows the tombstone chain of id.
func (s *Snapshot) Resolve(id nodeid.ID) (lineage.Resolution, error) {
	return s.lineage.Resolve(s.registry, id)
}

// Node returns the live record for id after resolution.
func (s *Snapshot) Node(id nodeid.ID) (*model.Node, lineage.Resolution, error) {
	res, err := s.Resolve(id)
	if err != nil {
		return nil, lineage.Resolution{}, err
	}
	n, _ := s.registry.Lookup(res.ID)
	return n, res, nil
}

// RawNode returns the record stored under id without resolving it.
func (s *Snapshot) RawNode(id nodeid.ID) (*model.Node, bool) {
	return s.registry.Lookup(id)
}

// Nodes returns every record, tombstones included, sorted by id.
func (s *Snapshot) Nodes() []*model.Node {
	return s.registry.All()
}

// ActiveNodes returns the active records sorted by id.
func (s *Snapshot) ActiveNodes() []*model.Node {
	var out []*model.Node
	for _, n := range s.registry.All() {
		if n.Active() {
			out = append(out, n)
		}
	}
	return out
}

// Tombstones returns the tombstone records sorted by id.
func (s *Snapshot) Tombstones() []*model.Tombstone {
	return s.lineage.All()
}

// ComponentOf reports the composite a retired id was folded into.
func (s *Snapshot) ComponentOf(id nodeid.ID) (lineage.Component, bool) {
	return s.lineage.ComponentOf(id)
}

// Components lists the weighted components of composite.
func (s *Snapshot) Components(composite nodeid.ID) []lineage.Component {
	return s.lineage.Components(composite)
}

// Mechanism returns a declared mechanism by id.
func (s *Snapshot) Mechanism(id nodeid.ID) (*model.Mechanism, bool) {
	return s.topology.Mechanism(context.Background(), id)
}

// Mechanisms returns every declared mechanism, retired ones included,
// sorted by id.
func (s *Snapshot) Mechanisms() []*model.Mechanism {
	return s.topology.AllMechanisms(context.Background())
}

// Edges returns the resolved active edges sorted by source, target and id.
// The slice must not be modified.
func (s *Snapshot) Edges() []Edge {
	return s.edges
}

// Unresolved returns the active mechanisms whose endpoints do not resolve.
func (s *Snapshot) Unresolved() []Unresolved {
	return s.unresolved
}

func (s *Snapshot) seq(idx []int) iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		for _, i := range idx {
			if !yield(s.edges[i]) {
				return
			}
		}
	}
}

func (s *Snapshot) resolvedOrSelf(id nodeid.ID) nodeid.ID {
	if res, err := s.Resolve(id); err == nil {
		return res.ID
	}
	return id
}

// Outgoing iterates the resolved edges leaving id. A tombstoned id is
// resolved first.
func (s *Snapshot) Outgoing(id nodeid.ID) iter.Seq[Edge] {
	return s.seq(s.out[s.resolvedOrSelf(id)])
}

// Incoming iterates the resolved edges entering id.
func (s *Snapshot) Incoming(id nodeid.ID) iter.Seq[Edge] {
	return s.seq(s.in[s.resolvedOrSelf(id)])
}

// OutDegree and InDegree count resolved edges of an already resolved id.
func (s *Snapshot) OutDegree(id nodeid.ID) int { return len(s.out[id]) }
func (s *Snapshot) InDegree(id nodeid.ID) int  { return len(s.in[id]) }

func (s *Snapshot) buildStructure() {
	s.structureOnce.Do(func() {
		g := dag.New()
		for _, n := range s.ActiveNodes() {
			g.AddNode(n.ID)
		}
		for _, e := range s.edges {
			// Both endpoints are active by construction.
			_ = g.AddEdge(e.Source, e.Target)
		}
		s.structure = g
		s.condensed = g.Condense()
	})
}

// Structure returns the unweighted resolved graph over active nodes.
func (s *Snapshot) Structure() *dag.Graph {
	s.buildStructure()
	return s.structure
}

// Condensation returns the strongly connected components of the resolved
// graph in topological order.
func (s *Snapshot) Condensation() *dag.Condensation {
	s.buildStructure()
	return s.condensed
}
