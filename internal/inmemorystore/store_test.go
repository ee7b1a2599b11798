package inmemorystore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNode(id string, name string, version int) *model.Node {
	return &model.Node{
		ID: nodeid.ID(id), Name: name, Scales: model.ScaleSet{3}, Domains: []string{"economic"},
		Type: model.TypeStock, Unit: "USD", Source: "ACS", Status: model.StatusActive, Version: version,
	}
}

func TestPutVersionAndHistory(t *testing.T) {
	s := New()
	ctx := context.Background()

	versions, err := s.Versions(ctx, "income")
	require.NoError(t, err)
	assert.Empty(t, versions)
	_, ok, err := s.Latest(ctx, "income")
	require.NoError(t, err)
	assert.False(t, ok)

	appended, err := s.PutVersion(ctx, testNode("income", "Income", 1))
	require.NoError(t, err)
	assert.True(t, appended)

	appended, err = s.PutVersion(ctx, testNode("income", "Income", 1))
	require.NoError(t, err)
	assert.False(t, appended, "identical content is not appended twice")

	appended, err = s.PutVersion(ctx, testNode("income", "Household income", 2))
	require.NoError(t, err)
	assert.True(t, appended)

	versions, err = s.Versions(ctx, "income")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "Income", versions[0].Name)
	assert.Equal(t, 2, versions[1].Version)

	latest, ok, err := s.Latest(ctx, "income")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Household income", latest.Name)

	latest.Name = "mutated"
	again, _, _ := s.Latest(ctx, "income")
	assert.Equal(t, "Household income", again.Name, "returned records are copies")
}

func TestAuditSequence(t *testing.T) {
	s := New()
	ctx := context.Background()

	stored, err := s.AppendAudit(ctx,
		model.NewAuditEntry(model.AuditRegister, "a", 1, ""),
		model.NewAuditEntry(model.AuditRegister, "b", 1, ""),
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stored[0].Seq)
	assert.Equal(t, uint64(2), stored[1].Seq)

	trail, err := s.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "b", trail[1].Subject)
	assert.NoError(t, s.Close())
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("node_%d", i%5)
			_, err := s.PutVersion(ctx, testNode(id, fmt.Sprintf("name %d", i), i))
			assert.NoError(t, err)
			_, err = s.AppendAudit(ctx, model.NewAuditEntry(model.AuditUpdate, id, i, ""))
			assert.NoError(t, err)
			_, err = s.Versions(ctx, nodeid.ID(id))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	trail, err := s.Audit(ctx)
	require.NoError(t, err)
	assert.Len(t, trail, 50)
	for i, e := range trail {
		assert.Equal(t, uint64(i+1), e.Seq)
	}
}
