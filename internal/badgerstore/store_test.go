package badgerstore

import (
	"context"
	"testing"

	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNode(name string, version int) *model.Node {
	return &model.Node{
		ID: nodeid.ID("housing.cost_burden"), Name: name, Scales: model.ScaleSet{3}, Domains: []string{"housing"},
		Type: model.TypeRate, Unit: "percent of income per month", Source: "AHS", Status: model.StatusActive, Version: version,
	}
}

func TestStore_VersionsInMemory(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	for i, name := range []string{"Cost burden", "Cost burden", "Housing cost burden"} {
		_, err := s.PutVersion(ctx, testNode(name, i+1))
		require.NoError(t, err)
	}

	versions, err := s.Versions(ctx, "housing.cost_burden")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "Cost burden", versions[0].Name)
	assert.Equal(t, "Housing cost burden", versions[1].Name)

	latest, ok, err := s.Latest(ctx, "housing.cost_burden")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, latest.Version)

	_, ok, err = s.Latest(ctx, "housing")
	require.NoError(t, err)
	assert.False(t, ok, "prefix of another id must not match")
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cfg := DefaultConfig(dir)
	cfg.GCInterval = 0

	s, err := Open(cfg)
	require.NoError(t, err)
	_, err = s.PutVersion(ctx, testNode("Cost burden", 1))
	require.NoError(t, err)
	_, err = s.AppendAudit(ctx, model.NewAuditEntry(model.AuditRegister, "housing.cost_burden", 1, ""))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	appended, err := s.PutVersion(ctx, testNode("Cost burden", 1))
	require.NoError(t, err)
	assert.False(t, appended, "unchanged record after restart is not duplicated")

	stored, err := s.AppendAudit(ctx, model.NewAuditEntry(model.AuditUpdate, "housing.cost_burden", 2, ""))
	require.NoError(t, err)

	trail, err := s.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, model.AuditRegister, trail[0].Action)
	assert.Greater(t, stored[0].Seq, trail[0].Seq)
}
