package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nahisaho/YAGOKORO-sub003/community"
	"github.com/nahisaho/YAGOKORO-sub003/embedclient"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
	"github.com/nahisaho/YAGOKORO-sub003/llmclient"
	"github.com/nahisaho/YAGOKORO-sub003/vectorstore"
)

const (
	globalPartialPrompt = `Using only the community summary below, answer the question as far as the
summary allows. If it says nothing relevant, reply "no relevant information".

Community %s summary: %s
Keywords: %s

Question: %s
`
	globalReducePrompt = `Combine the following partial answers into one coherent answer to the
question. Ignore partial answers that say they have no relevant information.

Question: %s

Partial answers:
%s
`
)

// GlobalEngine is the community-centric retrieval mode (spec §4.5 "Global"):
// rank communities at a level by summary similarity, map-reduce partial
// answers over batches of the top communities. Grounded on the same
// GraphRAGEngine context-then-generate shape as LocalEngine, applied to
// community.Hierarchy records instead of entities.
type GlobalEngine struct {
	Hierarchy *community.Hierarchy
	Embedder  embedclient.Client
	LLM       llmclient.Client
}

type scoredCommunity struct {
	community knowledge.Community
	score     float64
}

// Query implements Engine.
func (e *GlobalEngine) Query(ctx context.Context, query string, opts Options) (knowledge.QueryResponse, error) {
	start := time.Now()
	opts = opts.withDefaults()

	candidates := e.Hierarchy.ByLevel(opts.CommunityLevel)
	if len(candidates) == 0 {
		resp := knowledge.QueryResponse{
			Query:     query,
			Answer:    "No communities found at the requested level.",
			QueryType: knowledge.QueryGlobal,
			Success:   true,
		}
		resp.Metrics.RetrievalMS = time.Since(start).Milliseconds()
		return resp, nil
	}

	retrievalStart := time.Now()
	queryVec, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		return failureResponse(query, knowledge.QueryGlobal, err), err
	}

	ranked := make([]scoredCommunity, 0, len(candidates))
	for _, c := range candidates {
		if c.Summary == "" {
			continue
		}
		summaryVec, err := e.Embedder.Embed(ctx, c.Summary)
		if err != nil {
			return failureResponse(query, knowledge.QueryGlobal, err), err
		}
		score := vectorstore.CosineSimilarity32(queryVec, summaryVec)
		ranked = append(ranked, scoredCommunity{community: c, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].community.ID < ranked[j].community.ID
	})
	if len(ranked) > opts.MaxCommunities {
		ranked = ranked[:opts.MaxCommunities]
	}
	retrievalMS := time.Since(retrievalStart).Milliseconds()

	if len(ranked) == 0 {
		resp := knowledge.QueryResponse{
			Query:     query,
			Answer:    "No summarised communities found at the requested level.",
			QueryType: knowledge.QueryGlobal,
			Success:   true,
		}
		resp.Metrics.RetrievalMS = retrievalMS
		return resp, nil
	}

	generationStart := time.Now()
	partials := make([]string, 0, len(ranked))
	var totalTokens int
	for i := 0; i < len(ranked); i += opts.BatchSize {
		end := i + opts.BatchSize
		if end > len(ranked) {
			end = len(ranked)
		}
		for _, sc := range ranked[i:end] {
			result, err := e.LLM.Chat(ctx, []llmclient.Message{
				{Role: llmclient.RoleUser, Content: fmt.Sprintf(globalPartialPrompt,
					sc.community.ID, sc.community.Summary, strings.Join(sc.community.Keywords, ", "), query)},
			}, llmclient.ChatOptions{})
			if err != nil {
				return failureResponse(query, knowledge.QueryGlobal, err), err
			}
			totalTokens += result.Usage.TotalTokens
			partials = append(partials, fmt.Sprintf("(%s) %s", sc.community.ID, result.Content))
		}
	}

	final, err := e.LLM.Chat(ctx, []llmclient.Message{
		{Role: llmclient.RoleUser, Content: fmt.Sprintf(globalReducePrompt, query, strings.Join(partials, "\n"))},
	}, llmclient.ChatOptions{})
	if err != nil {
		return failureResponse(query, knowledge.QueryGlobal, err), err
	}
	totalTokens += final.Usage.TotalTokens
	generationMS := time.Since(generationStart).Milliseconds()

	citations := make([]knowledge.Citation, 0, len(ranked))
	summaries := make([]string, 0, len(ranked))
	for _, sc := range ranked {
		citations = append(citations, knowledge.Citation{
			SourceID:   sc.community.ID,
			SourceName: sc.community.ID,
			SourceType: knowledge.CitationCommunity,
			Relevance:  sc.score,
			Excerpt:    sc.community.Summary,
		})
		summaries = append(summaries, sc.community.Summary)
	}

	return knowledge.QueryResponse{
		Query:     query,
		Answer:    final.Content,
		QueryType: knowledge.QueryGlobal,
		Citations: citations,
		Context: knowledge.QueryContext{
			CommunitySummaries: summaries,
		},
		Metrics: knowledge.QueryMetrics{
			RetrievalMS:  retrievalMS,
			GenerationMS: generationMS,
			Communities:  len(ranked),
			Tokens:       totalTokens,
		},
		Success: true,
	}, nil
}
