package dag

import (
	"testing"

	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, ids []nodeid.ID, edges [][2]nodeid.ID) *Graph {
	t.Helper()
	g := New()
	for _, id := range ids {
		g.AddNode(id)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.NotNil(t, g.nodes)
	assert.Empty(t, g.nodes)
}

func TestAddNode(t *testing.T) {
	g := New()

	g.AddNode("a")
	assert.Len(t, g.nodes, 1)
	nodeA, ok := g.nodes["a"]
	require.True(t, ok)
	assert.Equal(t, nodeid.ID("a"), nodeA.id)
	assert.NotNil(t, nodeA.dependents)

	g.AddNode("a") // Test idempotency
	assert.Len(t, g.nodes, 1)

	g.AddNode("b")
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []nodeid.ID{"a", "b"}, g.Nodes())
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := build(t, []nodeid.ID{"a", "b"}, [][2]nodeid.ID{{"a", "b"}})

		assert.Equal(t, map[nodeid.ID]struct{}{"a": {}, "b": {}}, g.Reachable("a"))
		assert.Equal(t, map[nodeid.ID]struct{}{"b": {}}, g.Reachable("b"))
	})

	t.Run("self loop is allowed", func(t *testing.T) {
		g := build(t, []nodeid.ID{"a"}, nil)
		require.NoError(t, g.AddEdge("a", "a"))
		cyclic := g.Condense().Cyclic()
		require.Len(t, cyclic, 1)
		assert.Equal(t, []nodeid.ID{"a"}, cyclic[0].Members)
	})

	t.Run("error cases", func(t *testing.T) {
		g := build(t, []nodeid.ID{"a", "b"}, nil)

		err := g.AddEdge("dne", "a")
		assert.ErrorContains(t, err, "source node not found")

		err = g.AddEdge("a", "dne")
		assert.ErrorContains(t, err, "destination node not found")
	})
}

func TestCondense(t *testing.T) {
	// housing -> stress -> insecurity -> housing forms a feedback loop that
	// feeds crisis; policy sits upstream.
	g := build(t,
		[]nodeid.ID{"policy", "housing", "stress", "insecurity", "crisis", "lonely"},
		[][2]nodeid.ID{
			{"policy", "housing"},
			{"housing", "stress"},
			{"stress", "insecurity"},
			{"insecurity", "housing"},
			{"stress", "crisis"},
		})
	g.AddNode("loop")
	require.NoError(t, g.AddEdge("loop", "loop"))

	c := g.Condense()
	require.Len(t, c.Components, 5)

	cyclic := c.Cyclic()
	require.Len(t, cyclic, 2)
	members := [][]nodeid.ID{cyclic[0].Members, cyclic[1].Members}
	assert.Contains(t, members, []nodeid.ID{"housing", "insecurity", "stress"})
	assert.Contains(t, members, []nodeid.ID{"loop"})

	policy, ok := c.ComponentOf("policy")
	require.True(t, ok)
	loop, _ := c.ComponentOf("housing")
	crisis, _ := c.ComponentOf("crisis")
	assert.Less(t, policy, loop, "topological order")
	assert.Less(t, loop, crisis, "topological order")
	assert.Equal(t, []int{loop}, c.Successors(policy))
	assert.Equal(t, []int{crisis}, c.Successors(loop))

	_, ok = c.ComponentOf("missing")
	assert.False(t, ok)
}

func TestCondense_Deterministic(t *testing.T) {
	mk := func() *Condensation {
		return build(t, []nodeid.ID{"a", "b", "c", "d"}, [][2]nodeid.ID{
			{"a", "b"}, {"b", "a"}, {"c", "d"}, {"b", "c"},
		}).Condense()
	}
	assert.Equal(t, mk().Components, mk().Components)
}

func TestReachable(t *testing.T) {
	g := build(t, []nodeid.ID{"a", "b", "c", "d"}, [][2]nodeid.ID{
		{"a", "b"}, {"b", "c"}, {"c", "b"},
	})
	got := g.Reachable("b", "missing")
	assert.Equal(t, map[nodeid.ID]struct{}{"b": {}, "c": {}}, got)
	assert.Len(t, g.Reachable("a"), 3)
	assert.Len(t, g.Reachable("d"), 1)
}
