package validation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/graph"
	"github.com/specialistvlad/causalgrid/internal/inmemorystore"
	"github.com/specialistvlad/causalgrid/internal/inmemorytopology"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	return ctxlog.Discard(context.Background())
}

func node(id, unit string, typ model.NodeType) *model.Node {
	point := 1.0
	return &model.Node{
		ID:       nodeid.ID(id),
		Name:     id,
		Scales:   model.ScaleSet{model.ScaleInstitutional},
		Domains:  []string{"housing"},
		Type:     typ,
		Unit:     unit,
		Source:   "test",
		Baseline: &model.Baseline{Point: &point},
	}
}

func edge(src, tgt string, strength float64) *model.MechanismSpec {
	return &model.MechanismSpec{Sources: []string{src}, Targets: []string{tgt}, Pathway: src + " to " + tgt, Strength: strength, EvidenceTier: 2}
}

func build(t *testing.T, fn func(tx *graph.Tx) error) *graph.Snapshot {
	t.Helper()
	g := graph.New(inmemorystore.New(), inmemorytopology.New())
	snap, err := g.Write(testContext(), fn)
	require.NoError(t, err)
	return snap
}

func run(t *testing.T, snap *graph.Snapshot) *Report {
	t.Helper()
	r, err := Run(testContext(), snap)
	require.NoError(t, err)
	return r
}

func register(tx *graph.Tx, nodes ...*model.Node) error {
	for _, n := range nodes {
		if _, err := tx.Register(n); err != nil {
			return err
		}
	}
	return nil
}

func findings(r *Report, code Code) []Finding {
	var out []Finding
	for _, f := range append(append([]Finding{}, r.Errors...), r.Warnings...) {
		if f.Code == code {
			out = append(out, f)
		}
	}
	return out
}

func TestRun_CleanChain(t *testing.T) {
	snap := build(t, func(tx *graph.Tx) error {
		if err := register(tx,
			node("a", "index score", model.TypeStock),
			node("b", "index score", model.TypeStock),
		); err != nil {
			return err
		}
		_, err := tx.AddMechanism(edge("a", "b", 0.4))
		return err
	})
	r := run(t, snap)
	assert.True(t, r.OK())
	assert.Empty(t, r.Warnings)
	assert.NoError(t, r.Err())
	assert.Equal(t, snap.Version(), r.SnapshotVersion)
}

func TestRun_UnitMismatch(t *testing.T) {
	snap := build(t, func(tx *graph.Tx) error {
		if err := register(tx,
			node("eviction_ban", "yes/no indicator", model.TypePolicy),
			node("eviction_rate", "evictions per 1,000 renter households per year", model.TypeRate),
			node("shelter_use", "persons per 10,000 residents per year", model.TypeRate),
		); err != nil {
			return err
		}
		if _, err := tx.AddMechanism(edge("eviction_ban", "eviction_rate", -0.3)); err != nil {
			return err
		}
		withTransform := edge("eviction_ban", "shelter_use", -0.1)
		withTransform.Transform = "logistic"
		_, err := tx.AddMechanism(withTransform)
		return err
	})
	r := run(t, snap)
	assert.True(t, r.OK(), "unit mismatch is a warning")
	got := findings(r, CodeUnitMismatch)
	require.Len(t, got, 1)
	assert.Equal(t, nodeid.ID("eviction_ban__eviction_rate"), got[0].MechanismID)
	assert.True(t, errors.Is(got[0].Err, model.ErrUnitMismatch))
}

func TestRun_TagWarnings(t *testing.T) {
	snap := build(t, func(tx *graph.Tx) error {
		odd := node("odd", "index score", "sentiment")
		odd.Domains = []string{"Unknown"}
		odd.Baseline = nil
		if err := register(tx, odd, node("loop", "index score", model.TypeStock)); err != nil {
			return err
		}
		_, err := tx.AddMechanism(edge("loop", "loop", 0.2))
		return err
	})
	r := run(t, snap)
	assert.True(t, r.OK())
	assert.Len(t, findings(r, CodeUnknownType), 1)
	assert.Len(t, findings(r, CodeUnknownDomain), 1)
	assert.Len(t, findings(r, CodeMissingBaseline), 1)
	assert.Len(t, findings(r, CodeSelfLoop), 1)
	isolated := findings(r, CodeIsolatedNode)
	require.Len(t, isolated, 1)
	assert.Equal(t, []nodeid.ID{"odd"}, isolated[0].Nodes)
}

func TestRun_OrphanMechanism(t *testing.T) {
	g := graph.New(inmemorystore.New(), inmemorytopology.New())
	ctx := testContext()
	_, err := g.Write(ctx, func(tx *graph.Tx) error {
		if err := register(tx, node("a", "index score", model.TypeStock), node("b", "index score", model.TypeStock)); err != nil {
			return err
		}
		_, err := tx.AddMechanism(edge("a", "b", 0.4))
		return err
	})
	require.NoError(t, err)
	require.NoError(t, g.Deprecate(ctx, "a", "", "withdrawn"))

	r := run(t, g.Snapshot())
	require.False(t, r.OK())
	orphans := findings(r, CodeOrphanMechanism)
	require.Len(t, orphans, 1)
	assert.Equal(t, nodeid.ID("a__b"), orphans[0].MechanismID)
	var refErr *model.ReferentialIntegrityError
	require.True(t, errors.As(r.Err(), &refErr))
	assert.Equal(t, nodeid.ID("a"), refErr.NodeID)
}

func TestRun_AliasCycle(t *testing.T) {
	snap := build(t, func(tx *graph.Tx) error {
		for _, id := range []string{"x", "y"} {
			n := node(id, "index score", model.TypeStock)
			n.Status = model.StatusMerged
			if err := tx.RestoreNode(n); err != nil {
				return err
			}
		}
		if err := tx.RestoreTombstone(&model.Tombstone{ID: "x", Action: model.ActionMerge, Successor: "y"}); err != nil {
			return err
		}
		return tx.RestoreTombstone(&model.Tombstone{ID: "y", Action: model.ActionMerge, Successor: "x"})
	})
	r := run(t, snap)
	cycles := findings(r, CodeAliasCycle)
	require.Len(t, cycles, 2)
	assert.Equal(t, SeverityError, cycles[0].Severity)
	assert.True(t, errors.Is(r.Err(), model.ErrConsistency))
}

func TestRun_CompositesAndCollapsedEdges(t *testing.T) {
	snap := build(t, func(tx *graph.Tx) error {
		if err := register(tx,
			node("broadband", "index score", model.TypeAccess),
			node("devices", "index score", model.TypeAccess),
			node("digital_access", "index score", model.TypeAccess),
			node("employment", "index score", model.TypeStock),
		); err != nil {
			return err
		}
		for _, src := range []string{"broadband", "devices"} {
			s := edge(src, "employment", 0.2)
			s.Pathway = "job search"
			if _, err := tx.AddMechanism(s); err != nil {
				return err
			}
		}
		_, err := tx.Merge([]nodeid.ID{"broadband", "devices"}, "digital_access",
			map[nodeid.ID]float64{"broadband": 0.6, "devices": 0.3}, "composite index")
		return err
	})
	r := run(t, snap)
	assert.True(t, r.OK())

	weights := findings(r, CodeCompositeWeights)
	require.Len(t, weights, 1)
	assert.Contains(t, weights[0].Message, "0.9")

	collapsed := findings(r, CodeCollapsedEdge)
	require.Len(t, collapsed, 1)
	assert.Equal(t, nodeid.ID("devices__employment"), collapsed[0].MechanismID)
}

func TestRun_DuplicateMechanism(t *testing.T) {
	snap := build(t, func(tx *graph.Tx) error {
		if err := register(tx, node("a", "index score", model.TypeStock), node("b", "index score", model.TypeStock)); err != nil {
			return err
		}
		for _, id := range []nodeid.ID{"m1", "m2"} {
			m := &model.Mechanism{ID: id, Source: "a", Target: "b", Pathway: "same", Direction: model.Positive,
				Strength: model.Strength{Point: 0.1, Low: 0.1, High: 0.1}, EvidenceTier: 1, Status: model.MechanismActive}
			if err := tx.RestoreMechanism(m); err != nil {
				return err
			}
		}
		return nil
	})
	r := run(t, snap)
	dups := findings(r, CodeDuplicateMechanism)
	require.Len(t, dups, 1)
	assert.Equal(t, nodeid.ID("m2"), dups[0].MechanismID)
	assert.True(t, errors.Is(r.Err(), model.ErrDuplicateMechanism))
}

func TestRun_FeedbackLoopIsInformational(t *testing.T) {
	snap := build(t, func(tx *graph.Tx) error {
		if err := register(tx,
			node("housing_cost", "index score", model.TypeStock),
			node("stress", "index score", model.TypeStock),
			node("insecurity", "index score", model.TypeStock),
		); err != nil {
			return err
		}
		for _, s := range []*model.MechanismSpec{
			edge("housing_cost", "stress", 0.3),
			edge("stress", "insecurity", 0.3),
			edge("insecurity", "housing_cost", 0.3),
		} {
			if _, err := tx.AddMechanism(s); err != nil {
				return err
			}
		}
		return nil
	})
	r := run(t, snap)
	assert.True(t, r.OK())
	loops := findings(r, CodeFeedbackLoop)
	require.Len(t, loops, 1)
	assert.Equal(t, []nodeid.ID{"housing_cost", "insecurity", "stress"}, loops[0].Nodes)
}

func TestRun_Deterministic(t *testing.T) {
	snap := build(t, func(tx *graph.Tx) error {
		var nodes []*model.Node
		for _, id := range []string{"e", "d", "c", "b", "a"} {
			n := node(id, "index score", "custom")
			n.Baseline = nil
			nodes = append(nodes, n)
		}
		return register(tx, nodes...)
	})
	first, err := json.Marshal(run(t, snap))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := json.Marshal(run(t, snap))
		require.NoError(t, err)
		assert.JSONEq(t, string(first), string(again))
		assert.Equal(t, first, again)
	}
}

func TestRun_Cancelled(t *testing.T) {
	snap := build(t, func(tx *graph.Tx) error {
		return register(tx, node("a", "index score", model.TypeStock))
	})
	ctx, cancel := context.WithCancel(testContext())
	cancel()
	_, err := Run(ctx, snap)
	assert.ErrorIs(t, err, context.Canceled)
}
