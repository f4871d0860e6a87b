package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestGraph_AddTask(t *testing.T) {
	t.Run("Should idempotently merge attributes on repeated add", func(t *testing.T) {
		g := New()
		g.AddTask("t1", map[string]any{"a": 1})
		g.AddTask("t1", map[string]any{"b": 2})

		attrs, err := g.GetTask("t1")
		require.NoError(t, err)
		assert.Equal(t, 1, attrs["a"])
		assert.Equal(t, 2, attrs["b"])
		assert.Equal(t, "t1", attrs["id"])
		assert.Equal(t, 1, g.NodeCount())
	})
}

func TestGraph_UpdateTask(t *testing.T) {
	t.Run("Should fail with InvalidTask when task is missing", func(t *testing.T) {
		g := New()
		err := g.UpdateTask("missing", map[string]any{"a": 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing")
	})

	t.Run("Should merge attributes into an existing task", func(t *testing.T) {
		g := New()
		g.AddTask("t1", nil)
		require.NoError(t, g.UpdateTask("t1", map[string]any{"barrier": "*"}))
		assert.True(t, g.HasBarrier("t1"))
	})
}

func TestGraph_GetTask(t *testing.T) {
	t.Run("Should fail with InvalidTask when absent", func(t *testing.T) {
		g := New()
		_, err := g.GetTask("nope")
		require.Error(t, err)
	})
}

func TestGraph_AddTransition(t *testing.T) {
	t.Run("Should auto-create missing endpoints", func(t *testing.T) {
		g := New()
		_, err := g.AddTransition("t1", "t2", nil)
		require.NoError(t, err)
		assert.True(t, g.HasTask("t1"))
		assert.True(t, g.HasTask("t2"))
	})

	t.Run("Should fail as ambiguous when an edge already exists", func(t *testing.T) {
		g := New()
		_, err := g.AddTransition("t1", "t2", nil)
		require.NoError(t, err)
		_, err = g.AddTransition("t1", "t2", strp("<% true %>"))
		require.Error(t, err)
		assert.ErrorContains(t, err, "ambiguous")
	})
}

func TestGraph_GetTransition(t *testing.T) {
	t.Run("Should fail when no edge exists", func(t *testing.T) {
		g := New()
		g.AddTask("t1", nil)
		g.AddTask("t2", nil)
		_, err := g.GetTransition("t1", "t2")
		require.Error(t, err)
	})

	t.Run("Should fail ambiguous when more than one edge exists", func(t *testing.T) {
		g := New()
		g.addEdgeWithKey("t1", "t2", 0, nil)
		g.addEdgeWithKey("t1", "t2", 1, nil)
		_, err := g.GetTransition("t1", "t2")
		require.Error(t, err)
		assert.ErrorContains(t, err, "ambiguous")
	})

	t.Run("Should return the unique edge", func(t *testing.T) {
		g := New()
		_, err := g.AddTransition("t1", "t2", strp("cond"))
		require.NoError(t, err)
		tr, err := g.GetTransition("t1", "t2")
		require.NoError(t, err)
		assert.Equal(t, "t1", tr.Src)
		assert.Equal(t, "t2", tr.Dst)
		require.NotNil(t, tr.Criteria)
		assert.Equal(t, "cond", *tr.Criteria)
	})
}

func TestGraph_Roots(t *testing.T) {
	t.Run("Should return tasks with no inbound edges sorted by id", func(t *testing.T) {
		g := New()
		_, _ = g.AddTransition("b", "c", nil)
		_, _ = g.AddTransition("a", "c", nil)
		g.AddTask("z", nil)

		roots := g.Roots()
		ids := make([]string, len(roots))
		for i, r := range roots {
			ids[i] = r.ID
		}
		assert.Equal(t, []string{"a", "b", "z"}, ids)
	})
}

func TestGraph_HasBarrier(t *testing.T) {
	t.Run("Should report barrier attribute presence", func(t *testing.T) {
		g := New()
		g.AddTask("t1", map[string]any{"barrier": "*"})
		g.AddTask("t2", nil)
		assert.True(t, g.HasBarrier("t1"))
		assert.False(t, g.HasBarrier("t2"))
		assert.False(t, g.HasBarrier("missing"))
	})
}

func TestGraph_GetTaskAttributes(t *testing.T) {
	t.Run("Should map every task id to the attribute value or nil", func(t *testing.T) {
		g := New()
		g.AddTask("t1", map[string]any{"join": "all"})
		g.AddTask("t2", nil)

		attrs := g.GetTaskAttributes("join")
		assert.Equal(t, "all", attrs["t1"])
		assert.Nil(t, attrs["t2"])
	})
}

func TestGraph_SerializeRoundTrip(t *testing.T) {
	t.Run("Should round-trip through serialize/deserialize", func(t *testing.T) {
		g := New()
		g.AddTask("t1", map[string]any{"join": "all"})
		_, err := g.AddTransition("t1", "t2", strp("<% true %>"))
		require.NoError(t, err)
		_, err = g.AddTransition("t1", "t3", nil)
		require.NoError(t, err)

		s, err := g.Serialize()
		require.NoError(t, err)
		assert.True(t, s.Directed)
		assert.True(t, s.Multigraph)
		assert.Len(t, s.Nodes, 3)
		assert.Len(t, s.Adjacency, 3)

		g2, err := Deserialize(s)
		require.NoError(t, err)
		assert.True(t, g.Equal(g2))
	})

	t.Run("Should round-trip through JSON marshaling", func(t *testing.T) {
		g := New()
		g.AddTask("t1", map[string]any{"barrier": "*"})
		_, err := g.AddTransition("t1", "t2", strp("x > 1"))
		require.NoError(t, err)

		data, err := json.Marshal(g)
		require.NoError(t, err)

		var g2 Graph
		require.NoError(t, json.Unmarshal(data, &g2))
		assert.True(t, g.Equal(&g2))
	})

	t.Run("Should preserve parallel edges introduced at a lower level", func(t *testing.T) {
		g := New()
		g.addEdgeWithKey("t1", "t2", 0, strp("a"))
		g.addEdgeWithKey("t1", "t2", 1, strp("b"))
		g.AddTask("t1", nil)
		g.AddTask("t2", nil)

		s, err := g.Serialize()
		require.NoError(t, err)
		g2, err := Deserialize(s)
		require.NoError(t, err)

		_, err = g2.GetTransition("t1", "t2")
		require.Error(t, err)
		assert.ErrorContains(t, err, "ambiguous")
	})

	t.Run("Should reject adjacency referencing an unknown node", func(t *testing.T) {
		s := &Serialized{
			Nodes:     []map[string]any{{"id": "t1"}},
			Adjacency: [][]AdjEntry{{{ID: "missing", Key: 0}}},
		}
		_, err := Deserialize(s)
		require.Error(t, err)
	})
}
