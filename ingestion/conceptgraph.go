package ingestion

import (
	"context"

	"github.com/nahisaho/YAGOKORO-sub003/community"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

// ConceptGraphBuilderOptions configures ConceptGraphBuilder.
type ConceptGraphBuilderOptions struct {
	MinEdgeWeight           float64
	TopConceptsPerCommunity int
}

// ConceptGraphBuilder assembles a knowledge.ConceptGraph from extracted
// concepts and cooccurrences: a weighted undirected graph, its hierarchical
// community partition (§4.4's algorithm applied to concept nodes instead of
// entities), and the two reverse indexes.
type ConceptGraphBuilder struct {
	Detector community.Detector
}

// Build implements ConceptGraphBuilder(concepts, cooccurrences, chunks, opts) -> ConceptGraph.
func (b ConceptGraphBuilder) Build(ctx context.Context, concepts []knowledge.Concept, cooccurrences []knowledge.ConceptCooccurrence, chunks []knowledge.TextChunk, opts ConceptGraphBuilderOptions) (knowledge.ConceptGraph, error) {
	conceptByText := make(map[string]knowledge.Concept, len(concepts))
	nodes := make([]string, 0, len(concepts))
	for _, c := range concepts {
		conceptByText[c.Text] = c
		nodes = append(nodes, c.Text)
	}

	edges := make([]community.WeightedEdge, 0, len(cooccurrences))
	for _, co := range cooccurrences {
		edges = append(edges, community.WeightedEdge{A: co.ConceptA, B: co.ConceptB, Weight: co.Strength})
	}

	communities, err := b.Detector.Detect(ctx, nodes, edges, community.Options{
		MinEdgeWeight:           opts.MinEdgeWeight,
		TopConceptsPerCommunity: opts.TopConceptsPerCommunity,
	})
	if err != nil {
		return knowledge.ConceptGraph{}, err
	}

	chunkConcepts := map[string][]string{}
	conceptChunks := map[string][]string{}
	for _, c := range concepts {
		conceptChunks[c.Text] = append(conceptChunks[c.Text], c.SourceChunks...)
		for _, chunkID := range c.SourceChunks {
			chunkConcepts[chunkID] = append(chunkConcepts[chunkID], c.Text)
		}
	}

	return knowledge.ConceptGraph{
		Concepts:      conceptByText,
		Cooccurrences: cooccurrences,
		Communities:   communities,
		ChunkConcepts: chunkConcepts,
		ConceptChunks: conceptChunks,
	}, nil
}
