package model

import (
	"errors"
	"testing"

	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestMechanismSpec_Expand(t *testing.T) {
	t.Run("single pair keeps id and derives negative direction", func(t *testing.T) {
		spec := &MechanismSpec{
			ID: "income_food", Sources: []string{"household_income"}, Targets: []string{"food_insecurity"},
			Pathway: "purchasing power", Strength: -0.3, EvidenceTier: 2,
		}
		mechs, err := spec.Expand()
		require.NoError(t, err)
		require.Len(t, mechs, 1)
		m := mechs[0]
		assert.Equal(t, nodeid.ID("income_food"), m.ID)
		assert.Equal(t, Negative, m.Direction)
		assert.Equal(t, 0.3, m.Strength.Point)
		assert.InDelta(t, -0.3, m.Coefficient(), 1e-12)
		lo, hi := m.CoefficientInterval()
		assert.InDelta(t, -0.3, lo, 1e-12)
		assert.InDelta(t, -0.3, hi, 1e-12)
		assert.True(t, m.Active())
	})

	t.Run("composite expands pairwise", func(t *testing.T) {
		spec := &MechanismSpec{
			ID: "stress", Sources: []string{"a", "b"}, Targets: []string{"c", "d"},
			Pathway: "allostatic load", Strength: 0.2, Low: ptr(0.1), High: ptr(0.4), EvidenceTier: 3,
		}
		mechs, err := spec.Expand()
		require.NoError(t, err)
		require.Len(t, mechs, 4)
		assert.Equal(t, nodeid.ID("stress.a.c"), mechs[0].ID)
		assert.Equal(t, nodeid.ID("stress.b.d"), mechs[3].ID)
		for _, m := range mechs {
			assert.Equal(t, nodeid.ID("stress"), m.Composite)
			assert.Equal(t, Strength{Point: 0.2, Low: 0.1, High: 0.4}, m.Strength)
		}
	})

	t.Run("missing id is derived", func(t *testing.T) {
		spec := &MechanismSpec{Sources: []string{"a"}, Targets: []string{"b"}, Pathway: "p", Strength: 1, EvidenceTier: 1}
		mechs, err := spec.Expand()
		require.NoError(t, err)
		assert.Equal(t, nodeid.ID("a__b"), mechs[0].ID)
	})

	intervalCases := []struct {
		name     string
		strength float64
		low      *float64
		high     *float64
		want     Strength
		lo, hi   float64
	}{
		{"positive crossing zero", 0.2, ptr(-0.1), ptr(0.5), Strength{Point: 0.2, Low: -0.1, High: 0.5}, -0.1, 0.5},
		{"negative signed bounds", -0.3, ptr(-0.5), ptr(-0.1), Strength{Point: 0.3, Low: 0.1, High: 0.5}, -0.5, -0.1},
		{"negative crossing zero", -0.3, ptr(-0.5), ptr(0.1), Strength{Point: 0.3, Low: -0.1, High: 0.5}, -0.5, 0.1},
		{"negative magnitude bounds", -0.3, ptr(0.2), ptr(0.4), Strength{Point: 0.3, Low: 0.2, High: 0.4}, -0.4, -0.2},
		{"negative low only", -0.3, ptr(-0.5), nil, Strength{Point: 0.3, Low: 0.3, High: 0.5}, -0.5, -0.3},
	}
	for _, tc := range intervalCases {
		t.Run(tc.name, func(t *testing.T) {
			spec := &MechanismSpec{
				Sources: []string{"a"}, Targets: []string{"b"}, Pathway: "p",
				Strength: tc.strength, Low: tc.low, High: tc.high, EvidenceTier: 2,
			}
			mechs, err := spec.Expand()
			require.NoError(t, err)
			assert.Equal(t, tc.want, mechs[0].Strength)
			lo, hi := mechs[0].CoefficientInterval()
			assert.InDelta(t, tc.lo, lo, 1e-12)
			assert.InDelta(t, tc.hi, hi, 1e-12)
		})
	}

	errCases := []struct {
		name  string
		spec  MechanismSpec
		field string
	}{
		{"no sources", MechanismSpec{Targets: []string{"b"}, Pathway: "p", EvidenceTier: 1}, "source"},
		{"no targets", MechanismSpec{Sources: []string{"a"}, Pathway: "p", EvidenceTier: 1}, "target"},
		{"no pathway", MechanismSpec{Sources: []string{"a"}, Targets: []string{"b"}, EvidenceTier: 1}, "pathway"},
		{"sign conflict", MechanismSpec{Sources: []string{"a"}, Targets: []string{"b"}, Pathway: "p", Direction: "positive", Strength: -1, EvidenceTier: 1}, "direction"},
		{"bad tier", MechanismSpec{Sources: []string{"a"}, Targets: []string{"b"}, Pathway: "p", Strength: 1, EvidenceTier: 5}, "evidence_tier"},
		{"ci excludes point", MechanismSpec{Sources: []string{"a"}, Targets: []string{"b"}, Pathway: "p", Strength: 1, Low: ptr(0.1), High: ptr(0.5), EvidenceTier: 1}, "strength"},
		{"inverted ci", MechanismSpec{Sources: []string{"a"}, Targets: []string{"b"}, Pathway: "p", Strength: 0.3, Low: ptr(0.5), High: ptr(0.1), EvidenceTier: 1}, "strength"},
		{"bad endpoint", MechanismSpec{Sources: []string{"a b"}, Targets: []string{"b"}, Pathway: "p", Strength: 1, EvidenceTier: 1}, "source"},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.spec.Expand()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchemaValidation))
			var schemaErr *SchemaValidationError
			require.True(t, errors.As(err, &schemaErr))
			assert.Equal(t, tc.field, schemaErr.Field)
		})
	}
}

func TestDirection_Text(t *testing.T) {
	b, err := Negative.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "negative", string(b))

	var d Direction
	require.NoError(t, d.UnmarshalText([]byte("+")))
	assert.Equal(t, Positive, d)
	assert.Error(t, d.UnmarshalText([]byte("sideways")))
}
