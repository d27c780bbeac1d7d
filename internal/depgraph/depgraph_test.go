package depgraph

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewline/internal/domain"
)

func mustGraph(t *testing.T, ids ...string) *Graph {
	t.Helper()
	g, err := New(ids, nil)
	require.NoError(t, err)
	return g
}

func TestAddEdgeErrors(t *testing.T) {
	g := mustGraph(t, "a", "b", "c")
	require.ErrorIs(t, g.AddEdge("a", "a"), domain.ErrInvalidState)
	require.NoError(t, g.AddEdge("a", "b"))
	require.ErrorIs(t, g.AddEdge("a", "b"), domain.ErrConflict)
	require.NoError(t, g.AddEdge("b", "c"))
	require.ErrorIs(t, g.AddEdge("c", "a"), domain.ErrInvalidState)
	require.ErrorIs(t, g.AddEdge("a", "zz"), domain.ErrNotFound)
	assert.Equal(t, []Edge{{"a", "b"}, {"b", "c"}}, g.Edges())
}

func TestRejectedEdgeLeavesGraphUnchanged(t *testing.T) {
	g := mustGraph(t, "a", "b", "c")
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	before := g.Edges()
	require.Error(t, g.AddEdge("c", "a"))
	assert.ElementsMatch(t, before, g.Edges())
}

func TestRandomEdgesNeverFormCycle(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%02d", i)
	}
	g := mustGraph(t, ids...)
	for i := 0; i < 400; i++ {
		a, b := ids[rng.Intn(len(ids))], ids[rng.Intn(len(ids))]
		_ = g.AddEdge(a, b)
		require.NoError(t, g.Validate())
	}
}

func TestValidateReportsCycle(t *testing.T) {
	g, err := New([]string{"a", "b", "c"}, []Edge{{"a", "b"}, {"b", "c"}, {"c", "a"}})
	require.NoError(t, err)
	err = g.Validate()
	require.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Contains(t, err.Error(), "->")
}

func TestNewRejectsUnknownEndpoint(t *testing.T) {
	_, err := New([]string{"a"}, []Edge{{"a", "ghost"}})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIsSatisfied(t *testing.T) {
	g := mustGraph(t, "a", "b", "c")
	require.NoError(t, g.AddEdge("b", "a"))
	require.NoError(t, g.AddEdge("c", "b"))
	status := map[string]domain.TaskStatus{"a": domain.StatusDone, "b": domain.StatusTodo, "c": domain.StatusTodo}
	lookup := func(id string) domain.TaskStatus { return status[id] }
	assert.True(t, g.IsSatisfied("b", lookup))
	assert.False(t, g.IsSatisfied("c", lookup))
	status["b"] = domain.StatusDone
	assert.True(t, g.IsSatisfied("c", lookup))
	assert.True(t, g.IsSatisfied("a", lookup))
}
