package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/causalgrid/internal/badgerstore"
	"github.com/specialistvlad/causalgrid/internal/engine"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/testutil"
	"github.com/specialistvlad/causalgrid/internal/validation"
)

const extraNodeYAML = `
nodes:
  - id: school_meals
    name: School meal participation
    scale: 2
    domains: [nutrition]
    type: access
    unit: percent of students
    source: USDA
mechanisms:
  - source: school_meals
    target: food_insecurity
    pathway: meal coverage
    strength: -0.1
    evidence_tier: 2
`

func TestLoad_RejectsDanglingCorpus(t *testing.T) {
	dir := testutil.WriteCorpus(t, map[string]string{"bad.yaml": testutil.DanglingYAML})
	a, logs := SetupAppTest(t, Config{Paths: []string{dir}})

	report, err := a.Load(a.Context())
	require.ErrorIs(t, err, engine.ErrValidationFailed)
	require.ErrorIs(t, err, model.ErrReferentialIntegrity)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, validation.CodeDanglingEdge, report.Errors[0].Code)
	assert.Empty(t, a.Engine().Snapshot().Nodes())
	assert.Contains(t, logs.String(), "Records rejected")
}

func TestReload(t *testing.T) {
	dir := testutil.WriteCorpus(t, map[string]string{"corpus.hcl": testutil.MinimumWageHCL})
	a, _ := SetupAppTest(t, Config{Paths: []string{dir}})
	ctx := a.Context()
	_, err := a.Load(ctx)
	require.NoError(t, err)
	first := a.Engine()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(testutil.DanglingYAML), 0o644))
	_, err = a.Reload(ctx)
	require.Error(t, err)
	assert.Same(t, first, a.Engine(), "rejected reload keeps the serving engine")

	require.NoError(t, os.Remove(filepath.Join(dir, "bad.yaml")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(extraNodeYAML), 0o644))
	report, err := a.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.NotSame(t, first, a.Engine())
	assert.Len(t, a.Engine().Snapshot().Nodes(), 4)

	iv, err := a.Engine().Intervention("raise_wage")
	require.NoError(t, err)
	result, err := a.Engine().Simulate(ctx, iv)
	require.NoError(t, err)
	assert.InDelta(t, -0.24, result.Delta("food_insecurity"), 1e-6)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := testutil.WriteCorpus(t, map[string]string{"corpus.hcl": testutil.MinimumWageHCL})
	a, _ := SetupAppTest(t, Config{Paths: []string{dir}, ReloadDebounce: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(a.Context())
	defer cancel()

	_, err := a.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Watch(ctx))

	// Ignored: not a corpus extension.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("draft"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(extraNodeYAML), 0o644))

	require.Eventually(t, func() bool {
		return len(a.Engine().Snapshot().Nodes()) == 4
	}, 5*time.Second, 20*time.Millisecond)
}

func TestCorpusWatcher_Relevant(t *testing.T) {
	dir := testutil.WriteCorpus(t, map[string]string{"one.hcl": testutil.MinimumWageHCL, "sub/two.yaml": extraNodeYAML})
	w, err := newCorpusWatcher([]string{dir, filepath.Join(dir, "sub", "two.yaml")}, []string{".hcl", ".yaml"}, time.Millisecond, func(context.Context) {})
	require.NoError(t, err)
	defer w.stop()

	assert.True(t, w.relevant(filepath.Join(dir, "one.hcl")))
	assert.True(t, w.relevant(filepath.Join(dir, "sub", "two.yaml")))
	assert.True(t, w.relevant(filepath.Join(dir, "NEW.HCL")))
	assert.False(t, w.relevant(filepath.Join(dir, "notes.txt")))

	_, err = newCorpusWatcher([]string{filepath.Join(dir, "missing")}, nil, time.Millisecond, func(context.Context) {})
	assert.Error(t, err)
}

func TestBadgerHistory(t *testing.T) {
	storeDir := t.TempDir()
	corpus := testutil.WriteCorpus(t, map[string]string{"corpus.hcl": testutil.MinimumWageHCL})

	a, logs := SetupAppTest(t, Config{Paths: []string{corpus}, StorePath: storeDir})
	_, err := a.Load(a.Context())
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "History store opened.")

	versions, err := a.Engine().Graph().History(a.Context(), "household_income")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	require.NoError(t, a.Close())

	store, err := badgerstore.Open(badgerstore.DefaultConfig(storeDir))
	require.NoError(t, err)
	defer store.Close()
	persisted, err := store.Versions(context.Background(), "household_income")
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "Household income", persisted[0].Name)
}
