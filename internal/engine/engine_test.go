package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/causalgrid/internal/config"
	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/graph"
	"github.com/specialistvlad/causalgrid/internal/hcl"
	"github.com/specialistvlad/causalgrid/internal/inmemorystore"
	"github.com/specialistvlad/causalgrid/internal/inmemorytopology"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/specialistvlad/causalgrid/internal/propagation"
	"github.com/specialistvlad/causalgrid/internal/query"
	"github.com/specialistvlad/causalgrid/internal/testutil"
	"github.com/specialistvlad/causalgrid/internal/validation"
	"github.com/specialistvlad/causalgrid/internal/yamlcfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	return ctxlog.Discard(context.Background())
}

func newEngine() *Engine {
	return New(graph.New(inmemorystore.New(), inmemorytopology.New()), propagation.DefaultOptions())
}

func loadCorpus(t *testing.T, files map[string]string) *config.Model {
	t.Helper()
	dir := testutil.WriteCorpus(t, files)
	m, err := config.NewMultiLoader(hcl.NewLoader(), yamlcfg.NewLoader()).LoadPaths(testContext(), dir)
	require.NoError(t, err)
	return m
}

func TestEngine_MinimumWageEndToEnd(t *testing.T) {
	e := newEngine()
	ctx := testContext()

	snap, report, err := e.Load(ctx, loadCorpus(t, map[string]string{"corpus.hcl": testutil.MinimumWageHCL}))
	require.NoError(t, err)
	require.True(t, report.OK())
	assert.Equal(t, uint64(1), snap.Version())
	assert.Len(t, snap.Edges(), 2)
	assert.Same(t, report, e.Report())

	iv, err := e.Intervention("raise_wage")
	require.NoError(t, err)
	result, err := e.Simulate(ctx, iv)
	require.NoError(t, err)

	assert.InDelta(t, 0.8, result.Delta("household_income"), 1e-6)
	assert.InDelta(t, -0.24, result.Delta("food_insecurity"), 1e-6)
	assert.True(t, result.Converged)
}

func TestEngine_LoadRejectsDanglingMechanismAtomically(t *testing.T) {
	e := newEngine()
	m := config.NewModel()
	m.Nodes = []*model.Node{testutil.Node("a"), testutil.Node("b")}
	m.Mechanisms = []*model.MechanismSpec{
		testutil.Link("a", "b", 0.5),
		testutil.Link("b", "ghost", 0.5),
	}

	snap, report, err := e.Load(testContext(), m)
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, ErrValidationFailed)

	require.Len(t, report.Errors, 1, "exactly one finding for the one bad record")
	f := report.Errors[0]
	assert.Equal(t, validation.CodeDanglingEdge, f.Code)
	assert.Equal(t, []nodeid.ID{"ghost"}, f.Nodes)

	var ref *model.ReferentialIntegrityError
	require.True(t, errors.As(err, &ref))
	assert.Equal(t, nodeid.ID("ghost"), ref.NodeID)
	assert.Equal(t, nodeid.ID("b__ghost"), ref.MechanismID)

	current := e.Snapshot()
	assert.Equal(t, uint64(0), current.Version(), "nothing published")
	assert.Empty(t, current.Nodes())
	assert.Empty(t, current.Mechanisms())
}

func TestEngine_LoadCollectsOneFindingPerRecord(t *testing.T) {
	e := newEngine()
	bad := testutil.Node("bad")
	bad.Unit = ""
	m := config.NewModel()
	m.Nodes = []*model.Node{testutil.Node("a"), testutil.Node("a"), bad}
	m.Mechanisms = []*model.MechanismSpec{testutil.Link("a", "x", 0.1), testutil.Link("y", "a", 0.1)}

	_, report, err := e.Load(testContext(), m)
	require.Error(t, err)
	assert.Len(t, report.Errors, 4)
	assert.Equal(t, 1, report.Count(validation.CodeDuplicateNode))
	assert.Equal(t, 1, report.Count(validation.CodeSchema))
	assert.Equal(t, 2, report.Count(validation.CodeDanglingEdge))
	assert.ErrorIs(t, err, model.ErrSchemaValidation)
	assert.ErrorIs(t, err, model.ErrDuplicateNodeID)
}

func TestEngine_ValidationErrorsBlockPublication(t *testing.T) {
	e := newEngine()
	ctx := testContext()

	first := config.NewModel()
	first.Nodes = []*model.Node{testutil.Node("a"), testutil.Node("b")}
	first.Mechanisms = []*model.MechanismSpec{testutil.Link("a", "b", 0.5)}
	before, _, err := e.Load(ctx, first)
	require.NoError(t, err)

	second := config.NewModel()
	second.Consolidations = []*model.Consolidation{
		{Name: "drop_b", Action: model.ActionDeprecate, From: []nodeid.ID{"b"}, Reason: "no longer measured"},
	}
	_, report, err := e.Load(ctx, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, 1, report.Count(validation.CodeOrphanMechanism))
	assert.Same(t, before, e.Snapshot(), "previous snapshot stays published")
}

func TestEngine_LoadNoChangesStillReports(t *testing.T) {
	e := newEngine()
	snap, report, err := e.Load(testContext(), config.NewModel())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.Version())
	require.NotNil(t, report)
	assert.True(t, report.OK())
}

func TestEngine_Queries(t *testing.T) {
	e := newEngine()
	ctx := testContext()
	m := config.NewModel()
	m.Nodes = []*model.Node{testutil.Node("a"), testutil.Node("b"), testutil.Node("c")}
	m.Mechanisms = []*model.MechanismSpec{testutil.Link("a", "b", 0.5), testutil.Link("b", "c", 0.5)}
	_, _, err := e.Load(ctx, m)
	require.NoError(t, err)

	desc, err := e.Descendants(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []nodeid.ID{"b", "c"}, desc.IDs())

	anc, err := e.Ancestors(ctx, "c", query.WithMaxDepth(1))
	require.NoError(t, err)
	assert.Equal(t, []nodeid.ID{"b"}, anc.IDs())

	strongest, err := e.StrongestPath(ctx, "a", "c")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, strongest.Gain, 1e-12)

	paths, err := e.FindPaths(ctx, "a", "c")
	require.NoError(t, err)
	assert.Len(t, paths.Paths, 1)

	chains, err := e.ScaleCrossingChains(ctx, model.ScaleIndividual, model.ScaleIndividual)
	require.NoError(t, err)
	assert.NotEmpty(t, chains.Chains)

	_, err = e.Intervention("missing")
	assert.ErrorIs(t, err, ErrUnknownIntervention)
}

func TestEngine_ExportImport(t *testing.T) {
	ctx := testContext()
	src := newEngine()
	_, _, err := src.Load(ctx, loadCorpus(t, map[string]string{"corpus.hcl": testutil.MinimumWageHCL}))
	require.NoError(t, err)

	doc := src.Export(ctx)
	require.NoError(t, doc.Verify())

	dst := newEngine()
	snap, report, err := dst.Import(ctx, doc)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Len(t, snap.Edges(), 2)

	iv := &model.Intervention{Name: "again", Perturbations: []model.Perturbation{{NodeID: "minimum_wage", Delta: 2}}}
	result, err := dst.Simulate(ctx, iv)
	require.NoError(t, err)
	assert.InDelta(t, -0.24, result.Delta("food_insecurity"), 1e-6)

	_, _, err = dst.Import(ctx, doc)
	assert.ErrorContains(t, err, "empty graph")
}
