package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain builds CWE-89 -> CWE-943 -> CWE-74 plus an isolated CWE-1.
func chain(t *testing.T) *Graph {
	t.Helper()
	g := New()
	for _, id := range []string{"CWE-89", "CWE-943", "CWE-74", "CWE-1"} {
		require.True(t, g.AddNode(Node{ID: id}))
	}
	_, err := g.AddEdge("CWE-89", "CWE-943", "CHILD_OF")
	require.NoError(t, err)
	_, err = g.AddEdge("CWE-943", "CWE-74", "CHILD_OF")
	require.NoError(t, err)
	return g
}

func TestAddNode(t *testing.T) {
	t.Run("first write wins", func(t *testing.T) {
		g := New()
		assert.True(t, g.AddNode(Node{ID: "CWE-89", Label: "SQL Injection"}))
		assert.False(t, g.AddNode(Node{ID: "CWE-89", Label: "Something else"}))

		require.Len(t, g.Nodes, 1)
		assert.Equal(t, "SQL Injection", g.Nodes[0].Label)
	})

	t.Run("label and kind defaults", func(t *testing.T) {
		g := New()
		g.AddNode(Node{ID: "T1566"})
		n, ok := g.Node("T1566")
		require.True(t, ok)
		assert.Equal(t, "T1566", n.Label)
		assert.Equal(t, KindUnknown, n.Kind)
	})

	t.Run("empty id rejected", func(t *testing.T) {
		g := New()
		assert.False(t, g.AddNode(Node{Label: "nameless"}))
		assert.Empty(t, g.Nodes)
	})
}

func TestAddEdge(t *testing.T) {
	g := chain(t)

	t.Run("duplicate edge is a no-op", func(t *testing.T) {
		e, err := g.AddEdge("CWE-89", "CWE-943", "CHILD_OF")
		require.NoError(t, err)
		assert.Equal(t, EdgeID("CWE-89", "CWE-943", "CHILD_OF"), e.ID)
		assert.Len(t, g.Edges, 2)
	})

	t.Run("different relation is a different edge", func(t *testing.T) {
		_, err := g.AddEdge("CWE-89", "CWE-943", "PEER_OF")
		require.NoError(t, err)
		assert.Len(t, g.Edges, 3)
	})

	t.Run("missing endpoint fails", func(t *testing.T) {
		_, err := g.AddEdge("CWE-89", "CWE-999", "CHILD_OF")
		assert.Error(t, err)
		_, err = g.AddEdge("CWE-999", "CWE-89", "CHILD_OF")
		assert.Error(t, err)
	})
}

func TestNeighbors(t *testing.T) {
	g := chain(t)
	assert.Equal(t, []string{"CWE-74", "CWE-89"}, g.Neighbors("CWE-943"))
	assert.Empty(t, g.Neighbors("CWE-1"))
}

func TestDegreeCentrality(t *testing.T) {
	ranks := chain(t).DegreeCentrality()

	require.Len(t, ranks, 4)
	assert.Equal(t, Centrality{ID: "CWE-943", In: 1, Out: 1, Degree: 2}, ranks[0])
	assert.Equal(t, "CWE-74", ranks[1].ID)
	assert.Equal(t, "CWE-89", ranks[2].ID)
	assert.Equal(t, Centrality{ID: "CWE-1"}, ranks[3])
}

func TestShortestPath(t *testing.T) {
	g := chain(t)

	assert.Equal(t, []string{"CWE-89", "CWE-943", "CWE-74"}, g.ShortestPath("CWE-89", "CWE-74"))
	assert.Equal(t, []string{"CWE-74", "CWE-943", "CWE-89"}, g.ShortestPath("CWE-74", "CWE-89"))
	assert.Equal(t, []string{"CWE-89"}, g.ShortestPath("CWE-89", "CWE-89"))
	assert.Nil(t, g.ShortestPath("CWE-89", "CWE-1"))
	assert.Nil(t, g.ShortestPath("CWE-89", "missing"))
}

func TestSearch(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "def_Account_Locking", Label: "Account Locking"})
	g.AddNode(Node{ID: "atk_Brute_Force", Label: "Brute Force"})

	found := g.Search("lock")
	require.Len(t, found, 1)
	assert.Equal(t, "def_Account_Locking", found[0].ID)
	assert.Len(t, g.Search("ATK_"), 1)
	assert.Nil(t, g.Search("  "))
}

func TestStats(t *testing.T) {
	g := chain(t)
	g.Diagnose(3, "row matched no pattern")

	s := g.Stats()
	assert.Equal(t, 4, s.TotalNodes)
	assert.Equal(t, 2, s.TotalEdges)
	assert.Equal(t, 4, s.NodesByKind[KindUnknown])
	assert.Equal(t, 1, s.Skipped)
}

func TestLookupOnDecodedGraph(t *testing.T) {
	data, err := json.Marshal(chain(t))
	require.NoError(t, err)

	var g Graph
	require.NoError(t, json.Unmarshal(data, &g))
	assert.True(t, g.HasNode("CWE-943"))
	assert.Equal(t, []string{"CWE-89", "CWE-943", "CWE-74"}, g.ShortestPath("CWE-89", "CWE-74"))
}
