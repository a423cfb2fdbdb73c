package query

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
	"github.com/nahisaho/YAGOKORO-sub003/llmclient"
)

const hybridReconcilePrompt = `Two independent answers were produced for the same question, one from
entity-level context and one from community-level context. Reconcile them
into a single answer; prefer specifics when they agree, and note any
conflict instead of silently picking one.

Question: %s

Entity-level answer: %s

Community-level answer: %s
`

// HybridEngine runs Local and Global concurrently and fails open: if exactly
// one succeeds, its response is returned unscaled; if both succeed their
// citations and context are merged, entity relevances scaled by LocalWeight
// and community relevances by GlobalWeight (spec §4.5 "Hybrid"). Grounded on
// rag/engine.go's CompositeEngine and rag/retriever/hybrid.go's
// combineResults weighted merge, generalized from the teacher's sequential
// for-loop fan-out to a genuinely concurrent sync.WaitGroup join.
type HybridEngine struct {
	Local  *LocalEngine
	Global *GlobalEngine
	LLM    llmclient.Client
}

// Query implements Engine.
func (e *HybridEngine) Query(ctx context.Context, query string, opts Options) (knowledge.QueryResponse, error) {
	opts = opts.withDefaults()

	var (
		wg                    sync.WaitGroup
		localResp, globalResp knowledge.QueryResponse
		localErr, globalErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		localResp, localErr = e.Local.Query(ctx, query, opts)
	}()
	go func() {
		defer wg.Done()
		globalResp, globalErr = e.Global.Query(ctx, query, opts)
	}()
	wg.Wait()

	switch {
	case localErr != nil && globalErr != nil:
		err := fmt.Errorf("local engine failed: %w; global engine failed: %v", localErr, globalErr)
		return failureResponse(query, knowledge.QueryHybrid, err), err
	case localErr != nil:
		globalResp.QueryType = knowledge.QueryHybrid
		return globalResp, nil
	case globalErr != nil:
		localResp.QueryType = knowledge.QueryHybrid
		return localResp, nil
	}

	return e.merge(ctx, query, localResp, globalResp, opts)
}

func (e *HybridEngine) merge(ctx context.Context, query string, local, global knowledge.QueryResponse, opts Options) (knowledge.QueryResponse, error) {
	citations := make([]knowledge.Citation, 0, len(local.Citations)+len(global.Citations))
	for _, c := range local.Citations {
		c.Relevance *= opts.LocalWeight
		citations = append(citations, c)
	}
	for _, c := range global.Citations {
		c.Relevance *= opts.GlobalWeight
		citations = append(citations, c)
	}
	sort.Slice(citations, func(i, j int) bool { return citations[i].Relevance > citations[j].Relevance })

	generationStart := time.Now()
	result, err := e.LLM.Chat(ctx, []llmclient.Message{
		{Role: llmclient.RoleUser, Content: fmt.Sprintf(hybridReconcilePrompt, query, local.Answer, global.Answer)},
	}, llmclient.ChatOptions{})
	if err != nil {
		return failureResponse(query, knowledge.QueryHybrid, err), err
	}
	reconcileMS := time.Since(generationStart).Milliseconds()

	textChunks := append(append([]knowledge.TextChunk{}, local.Context.TextChunks...), global.Context.TextChunks...)
	communitySummaries := append([]string{}, global.Context.CommunitySummaries...)

	return knowledge.QueryResponse{
		Query:     query,
		Answer:    result.Content,
		QueryType: knowledge.QueryHybrid,
		Citations: citations,
		Context: knowledge.QueryContext{
			Entities:           local.Context.Entities,
			Relations:          local.Context.Relations,
			CommunitySummaries: communitySummaries,
			TextChunks:         textChunks,
		},
		Metrics: knowledge.QueryMetrics{
			RetrievalMS:  local.Metrics.RetrievalMS + global.Metrics.RetrievalMS,
			GenerationMS: local.Metrics.GenerationMS + global.Metrics.GenerationMS + reconcileMS,
			Entities:     local.Metrics.Entities,
			Relations:    local.Metrics.Relations,
			Communities:  global.Metrics.Communities,
			Tokens:       local.Metrics.Tokens + global.Metrics.Tokens + result.Usage.TotalTokens,
		},
		Success: true,
	}, nil
}
