// Package lazybudget implements the lazy-budget retrieval core (C8, spec
// §4.7): a query is expanded into sub-queries, candidate chunks are
// enumerated from the ConceptGraph's reverse indexes, a budgeted LLM
// assessor scores each candidate's relevance, surviving chunks have claims
// extracted, and a (possibly different) generator LLM produces the final
// answer. Grounded on `ingestion.Pipeline`'s use of the teacher's own
// `graph.StateGraph` orchestration engine (§9 "Keep HOW, replace WHAT"):
// the five named stages (Expand, Search, Assess, Extract, Generate) compile
// to a 5-node graph with the same checkpoint/retry machinery ingestion
// already exercises.
package lazybudget

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nahisaho/YAGOKORO-sub003/graph"
	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
	"github.com/nahisaho/YAGOKORO-sub003/llmclient"
)

// Preset names a budget/sub-query configuration (spec §4.7).
type Preset string

const (
	Z100Lite Preset = "Z100_LITE"
	Z500     Preset = "Z500"
	Z1500    Preset = "Z1500"
)

// Config is the budget/sub-query-count pair for one preset.
type Config struct {
	Budget             int
	SubQueries         int
	RelevanceThreshold float64 // minimum assessor score to survive to Extract, default 0.5
}

// Presets maps each named preset to its Config, per spec §4.7.
var Presets = map[Preset]Config{
	Z100Lite: {Budget: 100, SubQueries: 3, RelevanceThreshold: 0.5},
	Z500:     {Budget: 500, SubQueries: 4, RelevanceThreshold: 0.5},
	Z1500:    {Budget: 1500, SubQueries: 5, RelevanceThreshold: 0.5},
}

// FromPreset returns the Config for a named preset, defaulting to Z100Lite.
func FromPreset(p Preset) Config {
	if cfg, ok := Presets[p]; ok {
		return cfg
	}
	return Presets[Z100Lite]
}

// Claim is a fact extracted from a surviving chunk, scored for relevance to
// the original query (spec §4.7 stage 4).
type Claim struct {
	Text      string
	ChunkID   string
	Relevance float64
}

// Assessment is one chunk's relevance-test outcome (spec §4.7 stage 3).
type Assessment struct {
	Chunk      knowledge.TextChunk
	IsRelevant bool
	Score      float64
}

// Result is the lazy-budget engine's internal result, convertible to a
// knowledge.QueryResponse via ToQueryResponse.
type Result struct {
	SubQueries         []string
	CandidateChunks    []knowledge.TextChunk
	Assessments        []Assessment
	Claims             []Claim
	Answer             string
	RelevanceTestsUsed int
	BudgetRemaining    int
}

// Engine runs the expand -> search -> assess -> extract -> generate
// pipeline. Assessor and Generator may be distinct llmclient.Client values
// with different cost profiles (spec §4.7: "may be different model
// endpoints").
type Engine struct {
	Assessor  llmclient.Client
	Generator llmclient.Client
	Config    Config

	runner *graph.StateRunnable
}

// New constructs an Engine and compiles its StateGraph pipeline.
func New(assessor, generator llmclient.Client, config Config) (*Engine, error) {
	if config.Budget <= 0 {
		config = FromPreset(Z100Lite)
	}
	if config.RelevanceThreshold <= 0 {
		config.RelevanceThreshold = 0.5
	}
	e := &Engine{Assessor: assessor, Generator: generator, Config: config}

	g := graph.NewStateGraph()
	g.AddNode("expand", "turn the query into N sub-queries hitting distinct concept clusters", func(ctx context.Context, state any) (any, error) {
		s := state.(lazyState)
		subQueries, err := e.expand(ctx, s.Query)
		if err != nil {
			return nil, err
		}
		s.SubQueries = subQueries
		return s, nil
	})
	g.AddNode("search", "enumerate candidate chunks via the concept graph's reverse indexes", func(ctx context.Context, state any) (any, error) {
		s := state.(lazyState)
		s.Candidates = search(s.SubQueries, s.ConceptGraph, s.Chunks)
		return s, nil
	})
	g.AddNode("assess", "budgeted LLM relevance test per candidate chunk", func(ctx context.Context, state any) (any, error) {
		s := state.(lazyState)
		assessments, used, err := e.assess(ctx, s.Query, s.Candidates)
		s.Assessments = assessments
		s.TestsUsed = used
		return s, err
	})
	g.AddNode("extract", "extract claims from surviving chunks", func(ctx context.Context, state any) (any, error) {
		s := state.(lazyState)
		claims, err := e.extractClaims(ctx, s.Query, s.Assessments)
		if err != nil {
			return nil, err
		}
		s.Claims = claims
		return s, nil
	})
	g.AddNode("generate", "produce the final answer from surviving claims", func(ctx context.Context, state any) (any, error) {
		s := state.(lazyState)
		answer, err := e.generate(ctx, s.Query, s.Claims)
		if err != nil {
			return nil, err
		}
		s.Answer = answer
		return s, nil
	})

	g.AddEdge("expand", "search")
	g.AddEdge("search", "assess")
	g.AddEdge("assess", "extract")
	g.AddEdge("extract", "generate")
	g.SetEntryPoint("expand")

	runner, err := g.Compile()
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Fatal, err, "failed to compile lazybudget pipeline")
	}
	e.runner = runner
	return e, nil
}

type lazyState struct {
	Query        string
	ConceptGraph knowledge.ConceptGraph
	Chunks       map[string]knowledge.TextChunk

	SubQueries  []string
	Candidates  []knowledge.TextChunk
	Assessments []Assessment
	TestsUsed   int
	Claims      []Claim
	Answer      string
}

// Query runs the full expand->search->assess->extract->generate pipeline.
func (e *Engine) Query(ctx context.Context, query string, cg knowledge.ConceptGraph, chunks map[string]knowledge.TextChunk) (Result, error) {
	out, err := e.runner.Invoke(ctx, lazyState{Query: query, ConceptGraph: cg, Chunks: chunks})
	if err != nil {
		return Result{}, err
	}
	s := out.(lazyState)
	return Result{
		SubQueries:         s.SubQueries,
		CandidateChunks:    s.Candidates,
		Assessments:        s.Assessments,
		Claims:             s.Claims,
		Answer:             s.Answer,
		RelevanceTestsUsed: s.TestsUsed,
		BudgetRemaining:    e.Config.Budget - s.TestsUsed,
	}, nil
}

// expand (stage 1): LLM turns the query into Config.SubQueries sub-queries.
func (e *Engine) expand(ctx context.Context, query string) ([]string, error) {
	prompt := fmt.Sprintf(
		"Decompose this research question into %d distinct sub-questions, each targeting a different aspect or concept cluster. Reply with one sub-question per line, no numbering.\n\nQuestion: %s",
		e.Config.SubQueries, query)
	resp, err := e.Generator.Chat(ctx, []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}}, llmclient.ChatOptions{Temperature: 0.4})
	if err != nil {
		return []string{query}, nil // best-effort: fall back to the original query as its own sole sub-query
	}
	var subQueries []string
	for _, line := range strings.Split(resp.Content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-0123456789. "))
		if line != "" {
			subQueries = append(subQueries, line)
		}
	}
	if len(subQueries) == 0 {
		subQueries = []string{query}
	}
	if len(subQueries) > e.Config.SubQueries {
		subQueries = subQueries[:e.Config.SubQueries]
	}
	return subQueries, nil
}

// search (stage 2): candidate chunks come from intersecting each
// sub-query's matching concepts against the ConceptGraph's concept->chunk
// reverse index, ranked by total concept importance and de-duplicated.
func search(subQueries []string, cg knowledge.ConceptGraph, chunks map[string]knowledge.TextChunk) []knowledge.TextChunk {
	scored := make(map[string]float64)
	for _, sq := range subQueries {
		normalized := knowledge.Normalize(sq)
		words := strings.Fields(normalized)
		for conceptText, concept := range cg.Concepts {
			if !matchesAny(conceptText, words) {
				continue
			}
			for _, chunkID := range cg.ConceptChunks[conceptText] {
				scored[chunkID] += concept.Importance
			}
		}
	}

	type scoredChunk struct {
		id    string
		score float64
	}
	ranked := make([]scoredChunk, 0, len(scored))
	for id, score := range scored {
		ranked = append(ranked, scoredChunk{id, score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})

	out := make([]knowledge.TextChunk, 0, len(ranked))
	for _, r := range ranked {
		if chunk, ok := chunks[r.id]; ok {
			out = append(out, chunk)
		}
	}
	return out
}

func matchesAny(conceptText string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(conceptText, w) {
			return true
		}
	}
	return false
}

// assess (stage 3): one LLM relevance test per candidate, stopping when the
// budget is exhausted (spec §4.7: "Decrement the budget per test; stop when
// budget reaches zero").
func (e *Engine) assess(ctx context.Context, query string, candidates []knowledge.TextChunk) ([]Assessment, int, error) {
	var assessments []Assessment
	used := 0
	for _, chunk := range candidates {
		if used >= e.Config.Budget {
			break
		}
		isRelevant, score, err := e.assessOne(ctx, query, chunk)
		used++
		if err != nil {
			continue // a failed test still consumes budget but contributes no assessment
		}
		assessments = append(assessments, Assessment{Chunk: chunk, IsRelevant: isRelevant, Score: score})
	}
	return assessments, used, nil
}

func (e *Engine) assessOne(ctx context.Context, query string, chunk knowledge.TextChunk) (bool, float64, error) {
	prompt := fmt.Sprintf(
		"Question: %s\n\nPassage: %s\n\nIs this passage relevant to answering the question? Reply with exactly two lines:\nisRelevant: true|false\nscore: <0.0-1.0>",
		query, chunk.Content)
	resp, err := e.Assessor.Chat(ctx, []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}}, llmclient.ChatOptions{Temperature: 0})
	if err != nil {
		return false, 0, err
	}
	return parseAssessment(resp.Content)
}

func parseAssessment(content string) (bool, float64, error) {
	isRelevant := false
	var score float64
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "isrelevant":
			isRelevant = strings.EqualFold(value, "true")
		case "score":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				score = f
			}
		}
	}
	return isRelevant, score, nil
}

// extractClaims (stage 4): chunks surviving the assessor threshold have
// claims[] extracted via the generator LLM.
func (e *Engine) extractClaims(ctx context.Context, query string, assessments []Assessment) ([]Claim, error) {
	var claims []Claim
	for _, a := range assessments {
		if !a.IsRelevant || a.Score < e.Config.RelevanceThreshold {
			continue
		}
		prompt := fmt.Sprintf(
			"Question: %s\n\nPassage: %s\n\nExtract the single most relevant factual claim from this passage, one sentence, no preamble.",
			query, a.Chunk.Content)
		resp, err := e.Generator.Chat(ctx, []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}}, llmclient.ChatOptions{Temperature: 0.2})
		if err != nil {
			continue // best-effort extraction; a failed extraction drops that chunk's claim, not the whole query
		}
		text := strings.TrimSpace(resp.Content)
		if text == "" {
			continue
		}
		claims = append(claims, Claim{Text: text, ChunkID: a.Chunk.ID, Relevance: a.Score})
	}
	return claims, nil
}

// generate (stage 5): the final answer is produced from surviving claims.
// Per spec §7 "LazyQueryEngine generates a best-effort answer even when all
// relevance tests return negative", an empty claim set still produces an
// answer (the generator is told no supporting evidence was found).
func (e *Engine) generate(ctx context.Context, query string, claims []Claim) (string, error) {
	var sb strings.Builder
	if len(claims) == 0 {
		sb.WriteString("No claims cleared the relevance threshold for this query.")
	} else {
		for _, c := range claims {
			sb.WriteString("- ")
			sb.WriteString(c.Text)
			sb.WriteString("\n")
		}
	}
	prompt := fmt.Sprintf("Question: %s\n\nSupporting claims:\n%s\n\nWrite a concise answer to the question using only these claims.", query, sb.String())
	resp, err := e.Generator.Chat(ctx, []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}}, llmclient.ChatOptions{Temperature: 0.3})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// ToQueryResponse converts a Result into the unified knowledge.QueryResponse
// shape (spec §3), citing each claim's source chunk.
func (r Result) ToQueryResponse(query string) knowledge.QueryResponse {
	citations := make([]knowledge.Citation, 0, len(r.Claims))
	textChunks := make([]knowledge.TextChunk, 0, len(r.Claims))
	chunkByID := make(map[string]knowledge.TextChunk, len(r.CandidateChunks))
	for _, c := range r.CandidateChunks {
		chunkByID[c.ID] = c
	}
	seen := make(map[string]bool)
	for _, claim := range r.Claims {
		citations = append(citations, knowledge.Citation{
			SourceID:   claim.ChunkID,
			SourceName: claim.ChunkID,
			SourceType: knowledge.CitationDocument,
			Relevance:  claim.Relevance,
			Excerpt:    claim.Text,
		})
		if !seen[claim.ChunkID] {
			seen[claim.ChunkID] = true
			if chunk, ok := chunkByID[claim.ChunkID]; ok {
				textChunks = append(textChunks, chunk)
			}
		}
	}
	return knowledge.QueryResponse{
		Query:     query,
		Answer:    r.Answer,
		QueryType: knowledge.QueryLazy,
		Citations: citations,
		Context:   knowledge.QueryContext{TextChunks: textChunks},
		Metrics:   knowledge.QueryMetrics{Tokens: 0},
		Success:   true,
	}
}
