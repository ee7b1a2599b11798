package inmemorytopology

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mech(id, src, tgt string) *model.Mechanism {
	return &model.Mechanism{
		ID:           nodeid.ID(id),
		Source:       nodeid.ID(src),
		Target:       nodeid.ID(tgt),
		Pathway:      "test pathway",
		Direction:    model.Positive,
		Strength:     model.Strength{Point: 0.5, Low: 0.4, High: 0.6},
		EvidenceTier: 2,
		Status:       model.MechanismActive,
	}
}

func TestAddAndGetMechanism(t *testing.T) {
	s := New()
	ctx := context.Background()
	m := mech("m1", "a", "b")

	require.NoError(t, s.AddMechanism(ctx, m))

	got, ok := s.Mechanism(ctx, "m1")
	require.True(t, ok)
	assert.Same(t, m, got)
	assert.Equal(t, 1, s.Len())

	err := s.AddMechanism(ctx, mech("m1", "a", "c"))
	assert.True(t, errors.Is(err, model.ErrDuplicateMechanism))
}

func TestDeclaredIndexes(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.AddMechanism(ctx, mech("m2", "a", "b")))
	require.NoError(t, s.AddMechanism(ctx, mech("m1", "a", "c")))
	require.NoError(t, s.AddMechanism(ctx, mech("m3", "c", "b")))

	assert.Equal(t, []nodeid.ID{"m1", "m2"}, s.DeclaredFrom(ctx, "a"))
	assert.Equal(t, []nodeid.ID{"m2", "m3"}, s.DeclaredTo(ctx, "b"))
	assert.Empty(t, s.DeclaredFrom(ctx, "b"))

	all := s.AllMechanisms(ctx)
	require.Len(t, all, 3)
	assert.Equal(t, nodeid.ID("m1"), all[0].ID)
}

func TestReplaceMechanism(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.AddMechanism(ctx, mech("m1", "a", "b")))

	retired := mech("m1", "a", "b")
	retired.Status = model.MechanismRetired
	require.NoError(t, s.ReplaceMechanism(ctx, retired))
	got, _ := s.Mechanism(ctx, "m1")
	assert.False(t, got.Active())

	assert.True(t, errors.Is(s.ReplaceMechanism(ctx, mech("nope", "a", "b")), model.ErrUnknownMechanism))
	assert.Error(t, s.ReplaceMechanism(ctx, mech("m1", "a", "z")))
}

func TestClone_IsIndependent(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.AddMechanism(ctx, mech("m1", "a", "b")))

	cp := s.Clone()
	require.NoError(t, cp.AddMechanism(ctx, mech("m2", "a", "c")))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []nodeid.ID{"m1"}, s.DeclaredFrom(ctx, "a"))
	assert.Equal(t, []nodeid.ID{"m1", "m2"}, cp.DeclaredFrom(ctx, "a"))
}

func TestConcurrentReads(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.AddMechanism(ctx, mech("m1", "a", "b")))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := s.Mechanism(ctx, "m1")
			assert.True(t, ok)
			assert.Len(t, s.AllMechanisms(ctx), 1)
		}()
	}
	wg.Wait()
}
