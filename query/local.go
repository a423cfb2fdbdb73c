package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nahisaho/YAGOKORO-sub003/embedclient"
	"github.com/nahisaho/YAGOKORO-sub003/graphstore"
	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
	"github.com/nahisaho/YAGOKORO-sub003/llmclient"
	"github.com/nahisaho/YAGOKORO-sub003/vectorstore"
)

const localAnswerPrompt = `Answer the question using only the knowledge-graph context below. Cite
supporting entities by their ID in square brackets, e.g. [e_123]. If the
context is insufficient, say so plainly.

Context:
%s

Question: %s
`

// LocalEngine is the entity-centric retrieval mode (spec §4.5 "Local"):
// resolve seed entities, expand by hop depth, assemble context, answer with
// entity-ID citations. Grounded on GraphRAGEngine.QueryWithConfig's
// extract-entities -> graph-query -> build-context -> generate flow, with
// seed resolution replaced by the spec's vector-similarity + exact-name-match
// combination instead of the teacher's own-query LLM entity extraction.
type LocalEngine struct {
	Graph    graphstore.Store
	Vectors  vectorstore.Store
	Embedder embedclient.Client
	LLM      llmclient.Client
}

type scoredEntity struct {
	entity knowledge.Entity
	score  float64
}

// Query implements Engine.
func (e *LocalEngine) Query(ctx context.Context, query string, opts Options) (knowledge.QueryResponse, error) {
	start := time.Now()
	opts = opts.withDefaults()

	seeds, err := e.resolveSeeds(ctx, query, opts)
	if err != nil {
		return failureResponse(query, knowledge.QueryLocal, err), err
	}
	if len(seeds) == 0 {
		resp := knowledge.QueryResponse{
			Query:     query,
			Answer:    "No relevant entities found in the knowledge graph.",
			QueryType: knowledge.QueryLocal,
			Success:   true,
		}
		resp.Metrics.RetrievalMS = time.Since(start).Milliseconds()
		return resp, nil
	}

	entityScore := make(map[string]float64, len(seeds))
	allEntities := make(map[string]knowledge.Entity, len(seeds))
	allRelations := make(map[string]knowledge.Relation)

	for _, s := range seeds {
		entityScore[s.entity.ID] = s.score
		allEntities[s.entity.ID] = s.entity
	}

	retrievalStart := time.Now()
	for _, s := range seeds {
		neighbours, relations, err := e.Graph.FetchNeighbours(ctx, s.entity.ID, opts.HopDepth, nil)
		if err != nil {
			return failureResponse(query, knowledge.QueryLocal, err), err
		}
		for _, n := range neighbours {
			if _, ok := allEntities[n.ID]; !ok {
				allEntities[n.ID] = n
				entityScore[n.ID] = 0.3
			}
		}
		for _, r := range relations {
			allRelations[r.Key()] = r
		}
	}

	entities := make([]knowledge.Entity, 0, len(allEntities))
	for _, e := range allEntities {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	relations := make([]knowledge.Relation, 0, len(allRelations))
	for _, r := range allRelations {
		relations = append(relations, r)
	}
	sort.Slice(relations, func(i, j int) bool { return relations[i].Key() < relations[j].Key() })

	contextStr := buildLocalContext(entities, relations)
	retrievalMS := time.Since(retrievalStart).Milliseconds()

	generationStart := time.Now()
	answer, err := e.LLM.Chat(ctx, []llmclient.Message{
		{Role: llmclient.RoleUser, Content: fmt.Sprintf(localAnswerPrompt, contextStr, query)},
	}, llmclient.ChatOptions{})
	if err != nil {
		return failureResponse(query, knowledge.QueryLocal, err), err
	}
	generationMS := time.Since(generationStart).Milliseconds()

	citations := make([]knowledge.Citation, 0, len(entities))
	for _, ent := range entities {
		citations = append(citations, knowledge.Citation{
			SourceID:   ent.ID,
			SourceName: ent.Name,
			SourceType: knowledge.CitationEntity,
			Relevance:  entityScore[ent.ID],
			Excerpt:    ent.Description,
		})
	}
	sort.Slice(citations, func(i, j int) bool { return citations[i].Relevance > citations[j].Relevance })

	return knowledge.QueryResponse{
		Query:     query,
		Answer:    answer.Content,
		QueryType: knowledge.QueryLocal,
		Citations: citations,
		Context: knowledge.QueryContext{
			Entities:  entities,
			Relations: relations,
		},
		Metrics: knowledge.QueryMetrics{
			RetrievalMS:  retrievalMS,
			GenerationMS: generationMS,
			Entities:     len(entities),
			Relations:    len(relations),
			Tokens:       answer.Usage.TotalTokens,
		},
		Success: true,
	}, nil
}

// resolveSeeds implements the spec's "vector similarity and exact name
// match, capping at max_entities" seed-resolution step, tuned by SearchMode.
func (e *LocalEngine) resolveSeeds(ctx context.Context, query string, opts Options) ([]scoredEntity, error) {
	byID := make(map[string]scoredEntity)

	if opts.SearchMode == SearchSemantic || opts.SearchMode == SearchHybrid {
		vec, err := e.Embedder.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		hits, err := e.Vectors.Search(ctx, vec, opts.MaxEntities, opts.MinSimilarity)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			ent, err := e.Graph.FetchByID(ctx, h.EntityID)
			if err != nil {
				if kinderr.Is(err, kinderr.NotFound) {
					continue
				}
				return nil, err
			}
			byID[ent.ID] = scoredEntity{entity: *ent, score: h.Score}
		}
	}

	if opts.SearchMode == SearchKeyword || opts.SearchMode == SearchHybrid {
		normalized := knowledge.Normalize(query)
		for t := range allEntityTypes() {
			ent, err := e.Graph.FetchByName(ctx, t, normalized)
			if err != nil {
				if kinderr.Is(err, kinderr.NotFound) {
					continue
				}
				return nil, err
			}
			if existing, ok := byID[ent.ID]; !ok || existing.score < 1.0 {
				byID[ent.ID] = scoredEntity{entity: *ent, score: 1.0}
			}
		}
	}

	out := make([]scoredEntity, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].entity.ID < out[j].entity.ID
	})
	if len(out) > opts.MaxEntities {
		out = out[:opts.MaxEntities]
	}
	return out, nil
}

func allEntityTypes() map[knowledge.EntityType]struct{} {
	return map[knowledge.EntityType]struct{}{
		knowledge.EntityAIModel: {}, knowledge.EntityOrganization: {}, knowledge.EntityPerson: {},
		knowledge.EntityTechnique: {}, knowledge.EntityConcept: {}, knowledge.EntityPublication: {},
		knowledge.EntityBenchmark: {}, knowledge.EntityEvent: {},
	}
}

func buildLocalContext(entities []knowledge.Entity, relations []knowledge.Relation) string {
	var b strings.Builder
	b.WriteString("Entities:\n")
	for _, ent := range entities {
		b.WriteString(fmt.Sprintf("- [%s] %s (%s): %s\n", ent.ID, ent.Name, ent.Type, ent.Description))
	}
	if len(relations) > 0 {
		b.WriteString("\nRelations:\n")
		for _, r := range relations {
			b.WriteString(fmt.Sprintf("- %s -[%s]-> %s\n", r.SourceID, r.Type, r.TargetID))
		}
	}
	return b.String()
}
