// Package query implements the three retrieval modes of the query engine
// (local, global, hybrid), generalized from the teacher's rag/engine/graph.go
// GraphRAGEngine (entity extraction -> graph query -> context assembly ->
// confidence scoring) and rag/retriever/hybrid.go's weighted multi-retriever
// merge. Unlike the teacher, context here is built from typed
// knowledge.Entity/Relation/Community records rather than ad hoc
// map[string]any properties, and the hybrid fan-out is a genuinely
// concurrent join rather than the teacher's sequential CompositeEngine loop.
package query

import (
	"context"

	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

// Engine answers a natural-language query against the knowledge graph.
type Engine interface {
	Query(ctx context.Context, query string, opts Options) (knowledge.QueryResponse, error)
}

// SearchMode tunes how seed entities/communities are retrieved.
type SearchMode string

const (
	SearchKeyword  SearchMode = "keyword"
	SearchSemantic SearchMode = "semantic"
	SearchHybrid   SearchMode = "hybrid"
)

// Options configures a query across all three engines; zero values take the
// spec's documented defaults via withDefaults.
type Options struct {
	// Local
	MaxEntities   int
	MinSimilarity float64
	HopDepth      int

	// Global
	CommunityLevel int
	MaxCommunities int
	BatchSize      int

	// Hybrid
	LocalWeight  float64
	GlobalWeight float64

	SearchMode SearchMode
}

func (o Options) withDefaults() Options {
	if o.MaxEntities <= 0 {
		o.MaxEntities = 20
	}
	if o.MinSimilarity <= 0 {
		o.MinSimilarity = 0.5
	}
	if o.HopDepth <= 0 {
		o.HopDepth = 2
	}
	if o.CommunityLevel < 0 {
		o.CommunityLevel = 0
	}
	if o.MaxCommunities <= 0 {
		o.MaxCommunities = 10
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 5
	}
	if o.LocalWeight <= 0 {
		o.LocalWeight = 0.5
	}
	if o.GlobalWeight <= 0 {
		o.GlobalWeight = 0.5
	}
	if o.SearchMode == "" {
		o.SearchMode = SearchHybrid
	}
	return o
}

func failureResponse(query string, qt knowledge.QueryType, err error) knowledge.QueryResponse {
	return knowledge.QueryResponse{
		Query:     query,
		QueryType: qt,
		Success:   false,
		Error:     err.Error(),
	}
}
