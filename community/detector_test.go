package community

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

func TestDetectGroupsDenselyConnectedNodes(t *testing.T) {
	nodes := []string{"a", "b", "c", "x", "y", "z"}
	edges := []WeightedEdge{
		{A: "a", B: "b", Weight: 1.0},
		{A: "b", B: "c", Weight: 1.0},
		{A: "a", B: "c", Weight: 1.0},
		{A: "x", B: "y", Weight: 1.0},
		{A: "y", B: "z", Weight: 1.0},
		{A: "x", B: "z", Weight: 1.0},
	}

	communities, err := Detector{}.Detect(context.Background(), nodes, edges, Options{MinEdgeWeight: 0.1, TopConceptsPerCommunity: 2})
	require.NoError(t, err)
	require.NotEmpty(t, communities)

	level0 := 0
	for _, c := range communities {
		if c.Level == 0 {
			level0++
		}
	}
	assert.GreaterOrEqual(t, level0, 2, "expected at least two level-0 communities for two disjoint triangles")
}

func TestDetectIsDeterministicAcrossRuns(t *testing.T) {
	nodes := []string{"a", "b", "c", "d"}
	edges := []WeightedEdge{
		{A: "a", B: "b", Weight: 0.9},
		{A: "b", B: "c", Weight: 0.2},
		{A: "c", B: "d", Weight: 0.9},
	}
	opts := Options{MinEdgeWeight: 0.0, TopConceptsPerCommunity: 1}

	first, err := Detector{}.Detect(context.Background(), nodes, edges, opts)
	require.NoError(t, err)
	second, err := Detector{}.Detect(context.Background(), nodes, edges, opts)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Members, second[i].Members)
	}
}

func TestDetectHandlesIsolatedNodes(t *testing.T) {
	nodes := []string{"lonely", "a", "b"}
	edges := []WeightedEdge{{A: "a", B: "b", Weight: 1.0}}

	communities, err := Detector{}.Detect(context.Background(), nodes, edges, Options{MinEdgeWeight: 0.1})
	require.NoError(t, err)

	found := false
	for _, c := range communities {
		if c.Level != 0 {
			continue
		}
		for _, m := range c.Members {
			if m == "lonely" {
				found = true
			}
		}
	}
	assert.True(t, found)
}

func TestHierarchyAncestorsAndChildren(t *testing.T) {
	communities := []knowledge.Community{
		{ID: "p", Level: 1, Members: []string{"a", "b"}, ChildIDs: []string{"a-comm", "b-comm"}},
		{ID: "a-comm", Level: 0, Members: []string{"a"}, ParentID: "p"},
		{ID: "b-comm", Level: 0, Members: []string{"b"}, ParentID: "p"},
	}
	h := NewHierarchy(communities)

	children := h.Children("p")
	require.Len(t, children, 2)

	ancestors := h.Ancestors("a-comm")
	require.Len(t, ancestors, 1)
	assert.Equal(t, "p", ancestors[0].ID)
}
