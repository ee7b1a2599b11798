package graph

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/inmemorystore"
	"github.com/specialistvlad/causalgrid/internal/inmemorytopology"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestGraph creates a graph manager with in-memory stores for testing
func createTestGraph() Graph {
	return New(inmemorystore.New(), inmemorytopology.New())
}

func testContext() context.Context {
	return ctxlog.Discard(context.Background())
}

func testNode(id string) *model.Node {
	return &model.Node{
		ID:      nodeid.ID(id),
		Name:    id,
		Scales:  model.ScaleSet{model.ScaleIndividual},
		Domains: []string{"economic"},
		Type:    model.TypeStock,
		Unit:    "index score",
		Source:  "test",
	}
}

// addNodes is a helper that registers plain nodes
func addNodes(t *testing.T, g Graph, ids ...string) {
	t.Helper()
	_, err := g.Write(testContext(), func(tx *Tx) error {
		for _, id := range ids {
			if _, err := tx.Register(testNode(id)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func spec(src, tgt string, strength float64, pathway string) *model.MechanismSpec {
	return &model.MechanismSpec{
		Sources:      []string{src},
		Targets:      []string{tgt},
		Pathway:      pathway,
		Strength:     strength,
		EvidenceTier: 2,
	}
}

func collect(seq func(func(Edge) bool)) []Edge {
	var out []Edge
	for e := range seq {
		out = append(out, e)
	}
	return out
}

func TestSnapshot_Empty(t *testing.T) {
	g := createTestGraph()
	snap := g.Snapshot()
	assert.Equal(t, uint64(0), snap.Version())
	assert.Empty(t, snap.Nodes())
	assert.Empty(t, snap.Edges())
}

func TestRegisterAndGet(t *testing.T) {
	g := createTestGraph()
	ctx := testContext()

	n, err := g.Register(ctx, testNode("household_income"))
	require.NoError(t, err)
	assert.Equal(t, 1, n.Version)

	got, res, err := g.Snapshot().Node("household_income")
	require.NoError(t, err)
	assert.Equal(t, n, got)
	assert.False(t, res.Redirected())
	assert.Equal(t, uint64(1), g.Snapshot().Version())

	_, _, err = g.Snapshot().Node("missing")
	assert.True(t, errors.Is(err, model.ErrUnknownNode))
}

func TestFailedWritePublishesNothing(t *testing.T) {
	g := createTestGraph()
	ctx := testContext()
	addNodes(t, g, "a")
	before := g.Snapshot()

	_, err := g.Write(ctx, func(tx *Tx) error {
		if _, err := tx.Register(testNode("b")); err != nil {
			return err
		}
		_, err := tx.AddMechanism(spec("a", "ghost", 0.5, "p"))
		return err
	})
	require.Error(t, err)
	assert.Same(t, before, g.Snapshot())
	_, ok := g.Snapshot().RawNode("b")
	assert.False(t, ok)

	audit, err := g.Audit(ctx)
	require.NoError(t, err)
	assert.Len(t, audit, 1, "only the first registration reached history")
}

func TestAddMechanism_ReferentialIntegrity(t *testing.T) {
	g := createTestGraph()
	ctx := testContext()
	addNodes(t, g, "a", "b")

	_, err := g.AddMechanism(ctx, &model.MechanismSpec{
		ID:           "composite",
		Sources:      []string{"a"},
		Targets:      []string{"b", "ghost"},
		Pathway:      "p",
		Strength:     0.3,
		EvidenceTier: 1,
	})
	var refErr *model.ReferentialIntegrityError
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, nodeid.ID("ghost"), refErr.NodeID)
	assert.Equal(t, "target", refErr.Endpoint)
	assert.Empty(t, g.Snapshot().Mechanisms(), "no part of the composite is added")
}

func TestAddMechanism_ParallelAndDuplicate(t *testing.T) {
	g := createTestGraph()
	ctx := testContext()
	addNodes(t, g, "a", "b")

	first, err := g.AddMechanism(ctx, spec("a", "b", 0.4, "wages"))
	require.NoError(t, err)
	assert.Equal(t, nodeid.ID("a__b"), first[0].ID)

	second, err := g.AddMechanism(ctx, spec("a", "b", 0.2, "benefits"))
	require.NoError(t, err)
	assert.Equal(t, nodeid.ID("a__b_2"), second[0].ID, "derived ids get a suffix")

	_, err = g.AddMechanism(ctx, spec("a", "b", 0.9, "  Wages "))
	assert.True(t, errors.Is(err, model.ErrDuplicateMechanism))

	assert.Len(t, g.Snapshot().Edges(), 2)
	assert.Len(t, collect(g.Snapshot().Outgoing("a")), 2)
	assert.Len(t, collect(g.Snapshot().Incoming("b")), 2)
}

func TestSelfLoopFlagged(t *testing.T) {
	g := createTestGraph()
	addNodes(t, g, "stress")
	_, err := g.AddMechanism(testContext(), spec("stress", "stress", 0.1, "rumination"))
	require.NoError(t, err)
	edges := g.Snapshot().Edges()
	require.Len(t, edges, 1)
	assert.True(t, edges[0].SelfLoop)
}

func TestMerge_NoDuplicateEdges(t *testing.T) {
	g := createTestGraph()
	ctx := testContext()
	addNodes(t, g, "a", "b", "c", "x")

	for _, s := range []*model.MechanismSpec{
		spec("a", "x", 0.5, "shared"),
		spec("b", "x", 0.3, "shared"),
		spec("x", "b", 0.2, "feedback"),
	} {
		_, err := g.AddMechanism(ctx, s)
		require.NoError(t, err)
	}

	require.NoError(t, g.Merge(ctx, []nodeid.ID{"a", "b"}, "c", nil, "consolidated"))
	snap := g.Snapshot()

	for _, id := range []nodeid.ID{"a", "b"} {
		res, err := snap.Resolve(id)
		require.NoError(t, err)
		assert.Equal(t, nodeid.ID("c"), res.ID)
	}

	out := collect(snap.Outgoing("c"))
	require.Len(t, out, 1, "a->x and b->x collapse onto c->x")
	assert.Equal(t, nodeid.ID("a__x"), out[0].ID)
	assert.Equal(t, []nodeid.ID{"b__x"}, out[0].Collapsed)
	assert.Equal(t, nodeid.ID("a"), out[0].DeclaredSource)

	in := collect(snap.Incoming("b"))
	require.Len(t, in, 1, "incoming on a tombstone resolves first")
	assert.Equal(t, nodeid.ID("c"), in[0].Target)

	// Adding a mechanism that now coincides with an existing resolved edge
	// is rejected.
	_, err := g.AddMechanism(ctx, spec("c", "x", 0.1, "shared"))
	assert.True(t, errors.Is(err, model.ErrDuplicateMechanism))
}

func TestDeprecate_OrphansMechanisms(t *testing.T) {
	g := createTestGraph()
	ctx := testContext()
	addNodes(t, g, "a", "b")
	_, err := g.AddMechanism(ctx, spec("a", "b", 0.5, "p"))
	require.NoError(t, err)

	require.NoError(t, g.Deprecate(ctx, "a", "", "evidence withdrawn"))
	snap := g.Snapshot()
	assert.Empty(t, snap.Edges())
	require.Len(t, snap.Unresolved(), 1)
	u := snap.Unresolved()[0]
	assert.Equal(t, "source", u.Endpoint)
	assert.True(t, errors.Is(u.Err, model.ErrUnresolvable))

	_, err = g.AddMechanism(ctx, spec("a", "b", 0.5, "other"))
	assert.True(t, errors.Is(err, model.ErrReferentialIntegrity))
}

func TestRetireMechanism(t *testing.T) {
	g := createTestGraph()
	ctx := testContext()
	addNodes(t, g, "a", "b")
	_, err := g.AddMechanism(ctx, spec("a", "b", 0.5, "p"))
	require.NoError(t, err)

	require.NoError(t, g.RetireMechanism(ctx, "a__b", "retracted"))
	snap := g.Snapshot()
	assert.Empty(t, snap.Edges())
	m, ok := snap.Mechanism("a__b")
	require.True(t, ok)
	assert.Equal(t, model.MechanismRetired, m.Status)

	assert.True(t, errors.Is(g.RetireMechanism(ctx, "nope", ""), model.ErrUnknownMechanism))
}

func TestHistoryAndAudit(t *testing.T) {
	g := createTestGraph()
	ctx := testContext()
	addNodes(t, g, "a", "b")
	desc := "refreshed"
	_, err := g.UpdateNode(ctx, "a", model.NodePatch{Description: &desc})
	require.NoError(t, err)
	require.NoError(t, g.Merge(ctx, []nodeid.ID{"a"}, "b", nil, ""))

	versions, err := g.History(ctx, "a")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{versions[0].Version, versions[1].Version, versions[2].Version})
	assert.Equal(t, model.StatusMerged, versions[2].Status)

	audit, err := g.Audit(ctx)
	require.NoError(t, err)
	var actions []model.AuditAction
	for _, e := range audit {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []model.AuditAction{model.AuditRegister, model.AuditRegister, model.AuditUpdate, model.AuditMerge}, actions)

	_, err = g.History(ctx, "ghost")
	assert.True(t, errors.Is(err, model.ErrUnknownNode))
}

func TestNoOpWriteKeepsSnapshot(t *testing.T) {
	g := createTestGraph()
	addNodes(t, g, "a")
	before := g.Snapshot()
	got, err := g.Write(testContext(), func(tx *Tx) error { return nil })
	require.NoError(t, err)
	assert.Same(t, before, got)
}

func TestCheckAbortsPublication(t *testing.T) {
	g := createTestGraph()
	sentinel := errors.New("rejected")
	_, err := g.Write(testContext(), func(tx *Tx) error {
		_, err := tx.Register(testNode("a"))
		return err
	}, func(ctx context.Context, candidate *Snapshot) error {
		assert.Equal(t, uint64(1), candidate.Version())
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, uint64(0), g.Snapshot().Version())
}

func TestConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	g := createTestGraph()
	ctx := testContext()
	addNodes(t, g, "root")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			id := nodeid.ID("n" + string(rune('a'+i%26)) + string(rune('a'+i/26)))
			_, err := g.Write(ctx, func(tx *Tx) error {
				if _, err := tx.Register(testNode(string(id))); err != nil {
					return err
				}
				_, err := tx.AddMechanism(spec("root", string(id), 0.1, "p"))
				return err
			})
			assert.NoError(t, err)
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				snap := g.Snapshot()
				// Every edge in a snapshot points at a node of the same snapshot.
				for _, e := range snap.Edges() {
					_, ok := snap.RawNode(e.Target)
					assert.True(t, ok)
				}
				assert.Equal(t, len(snap.Nodes())-1, len(snap.Edges()))
			}
		}()
	}
	wg.Wait()
	assert.Len(t, g.Snapshot().Edges(), 50)
}

func TestCondensationFromSnapshot(t *testing.T) {
	g := createTestGraph()
	ctx := testContext()
	addNodes(t, g, "housing", "stress", "income")
	for _, s := range []*model.MechanismSpec{
		spec("housing", "stress", 0.5, "p"),
		spec("stress", "income", 0.5, "p"),
		spec("income", "housing", 0.5, "p"),
	} {
		_, err := g.AddMechanism(ctx, s)
		require.NoError(t, err)
	}
	cyclic := g.Snapshot().Condensation().Cyclic()
	require.Len(t, cyclic, 1)
	assert.Equal(t, []nodeid.ID{"housing", "income", "stress"}, cyclic[0].Members)
	assert.True(t, slices.Contains(g.Snapshot().Structure().Nodes(), "income"))
}
