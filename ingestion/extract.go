// Package ingestion turns raw text chunks into entities, relations, and
// concept co-occurrences, merged idempotently into the graph and vector
// store. Grounded on rag/engine/graph.go's extractEntities/extractRelationships
// (LLM-prompt-then-JSON-parse, with a manual fallback on parse failure) and
// rag/pipeline.go's graph.StateGraph-compiled RAGPipeline.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
	"github.com/nahisaho/YAGOKORO-sub003/llmclient"
)

const entityExtractionPrompt = `Extract entities from the following text. Focus on these entity types: %s.
Return a JSON response with this structure:
{
  "entities": [
    {"name": "entity_name", "type": "entity_type", "description": "brief description", "properties": {}, "confidence": 0.9}
  ]
}

Text: %s
`

const relationExtractionPrompt = `Extract relationships between the following entities from this text.
Return a JSON response with this structure:
{
  "relationships": [
    {"source": "entity1_name", "target": "entity2_name", "type": "relationship_type", "properties": {}, "confidence": 0.9}
  ]
}

Text: %s
Entities: %s
`

// ExtractedEntity is one LLM-reported mention, keyed by a temp_id so
// RelationExtractor can reference it before it has a stable graph ID.
type ExtractedEntity struct {
	TempID      string
	Name        string
	Type        knowledge.EntityType
	Description string
	Properties  map[string]any
	Confidence  float64
}

type entityExtractionResult struct {
	Entities []struct {
		Name        string         `json:"name"`
		Type        string         `json:"type"`
		Description string         `json:"description"`
		Properties  map[string]any `json:"properties"`
		Confidence  float64        `json:"confidence"`
	} `json:"entities"`
}

// EntityExtractorOptions configures EntityExtractor.
type EntityExtractorOptions struct {
	Types         []knowledge.EntityType // empty = all closed types allowed
	MinConfidence float64
}

// EntityExtractionMetadata reports processing cost for observability.
type EntityExtractionMetadata struct {
	ProcessingTimeMS int64
	PromptTokens     int
	CompletionTokens int
}

// EntityExtractor uses an LLM to extract typed entity mentions from a chunk.
type EntityExtractor struct {
	LLM llmclient.Client
}

// Extract implements the EntityExtractor(chunk, opts) -> {entities, metadata}
// stage. Unrecognized or below-threshold mentions are dropped, not coerced.
func (x *EntityExtractor) Extract(ctx context.Context, chunk knowledge.TextChunk, opts EntityExtractorOptions) ([]ExtractedEntity, EntityExtractionMetadata, error) {
	start := time.Now()

	allowed := opts.Types
	if len(allowed) == 0 {
		allowed = []knowledge.EntityType{
			knowledge.EntityAIModel, knowledge.EntityOrganization, knowledge.EntityPerson,
			knowledge.EntityTechnique, knowledge.EntityConcept, knowledge.EntityPublication,
			knowledge.EntityBenchmark, knowledge.EntityEvent,
		}
	}
	typeNames := make([]string, len(allowed))
	for i, t := range allowed {
		typeNames[i] = string(t)
	}

	prompt := fmt.Sprintf(entityExtractionPrompt, strings.Join(typeNames, ", "), chunk.Content)
	resp, err := x.LLM.Chat(ctx, []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}}, llmclient.ChatOptions{Temperature: 0})
	if err != nil {
		return nil, EntityExtractionMetadata{}, err
	}

	var parsed entityExtractionResult
	var rawEntities []ExtractedEntity
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		rawEntities = manualEntityExtraction(chunk)
	} else {
		rawEntities = make([]ExtractedEntity, 0, len(parsed.Entities))
		for _, e := range parsed.Entities {
			rawEntities = append(rawEntities, ExtractedEntity{
				TempID:      uuid.NewString(),
				Name:        e.Name,
				Type:        knowledge.EntityType(e.Type),
				Description: e.Description,
				Properties:  e.Properties,
				Confidence:  e.Confidence,
			})
		}
	}

	allowedSet := make(map[knowledge.EntityType]struct{}, len(allowed))
	for _, t := range allowed {
		allowedSet[t] = struct{}{}
	}

	filtered := make([]ExtractedEntity, 0, len(rawEntities))
	for _, e := range rawEntities {
		if _, ok := allowedSet[e.Type]; !ok {
			continue
		}
		if e.Confidence != 0 && e.Confidence < opts.MinConfidence {
			continue
		}
		filtered = append(filtered, e)
	}

	meta := EntityExtractionMetadata{
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	return filtered, meta, nil
}

// manualEntityExtraction is a parse-failure fallback: capitalized words are
// treated as candidate entity mentions, tagged EntityConcept since the
// caller has no type signal to go on.
func manualEntityExtraction(chunk knowledge.TextChunk) []ExtractedEntity {
	var out []ExtractedEntity
	for _, word := range strings.Fields(chunk.Content) {
		trimmed := strings.Trim(word, ".,;:()\"'")
		if len(trimmed) > 2 && unicode.IsUpper(rune(trimmed[0])) {
			out = append(out, ExtractedEntity{
				TempID:      uuid.NewString(),
				Name:        trimmed,
				Type:        knowledge.EntityConcept,
				Description: fmt.Sprintf("entity extracted from text: %s", trimmed),
				Confidence:  0.5,
			})
		}
	}
	return out
}

// ExtractedRelation is one LLM-reported relationship between two temp_ids.
type ExtractedRelation struct {
	SourceTempID string
	TargetTempID string
	Type         knowledge.RelationType
	Properties   map[string]any
	Confidence   float64
}

type relationExtractionResult struct {
	Relationships []struct {
		Source     string         `json:"source"`
		Target     string         `json:"target"`
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Confidence float64        `json:"confidence"`
	} `json:"relationships"`
}

// RelationExtractorOptions configures RelationExtractor.
type RelationExtractorOptions struct {
	Types         []knowledge.RelationType
	MinConfidence float64
}

// RelationExtractionMetadata reports processing cost for observability.
type RelationExtractionMetadata struct {
	ProcessingTimeMS int64
	PromptTokens     int
	CompletionTokens int
}

// RelationExtractor uses an LLM to extract relationships between previously
// extracted entities.
type RelationExtractor struct {
	LLM llmclient.Client
}

// Extract implements RelationExtractor(chunk, entities, opts) ->
// {relations, metadata}. A relation whose source or target name does not
// match an entity by name is dropped (per the §4.3 "endpoints not in
// entities" edge case); invalid JSON is a permanent parse failure, not a
// fallback, since co-occurrence guessing for relations (unlike entities)
// produces low-value noise at scale.
func (x *RelationExtractor) Extract(ctx context.Context, chunk knowledge.TextChunk, entities []ExtractedEntity, opts RelationExtractorOptions) ([]ExtractedRelation, RelationExtractionMetadata, error) {
	start := time.Now()

	if len(entities) < 2 {
		return nil, RelationExtractionMetadata{}, nil
	}

	byName := make(map[string]ExtractedEntity, len(entities))
	descriptions := make([]string, len(entities))
	for i, e := range entities {
		byName[knowledge.Normalize(e.Name)] = e
		descriptions[i] = fmt.Sprintf("%s (%s)", e.Name, e.Type)
	}

	prompt := fmt.Sprintf(relationExtractionPrompt, chunk.Content, strings.Join(descriptions, ", "))
	resp, err := x.LLM.Chat(ctx, []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}}, llmclient.ChatOptions{Temperature: 0})
	if err != nil {
		return nil, RelationExtractionMetadata{}, err
	}

	var parsed relationExtractionResult
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return nil, RelationExtractionMetadata{}, kinderr.Wrap(kinderr.ValidationError, err, "relation extractor received invalid JSON")
	}

	allowedSet := make(map[knowledge.RelationType]struct{}, len(opts.Types))
	for _, t := range opts.Types {
		allowedSet[t] = struct{}{}
	}

	out := make([]ExtractedRelation, 0, len(parsed.Relationships))
	for _, r := range parsed.Relationships {
		source, ok := byName[knowledge.Normalize(r.Source)]
		if !ok {
			continue
		}
		target, ok := byName[knowledge.Normalize(r.Target)]
		if !ok {
			continue
		}
		relType := knowledge.RelationType(r.Type)
		if len(allowedSet) > 0 {
			if _, ok := allowedSet[relType]; !ok {
				continue
			}
		}
		if r.Confidence != 0 && r.Confidence < opts.MinConfidence {
			continue
		}
		out = append(out, ExtractedRelation{
			SourceTempID: source.TempID,
			TargetTempID: target.TempID,
			Type:         relType,
			Properties:   r.Properties,
			Confidence:   r.Confidence,
		})
	}

	meta := RelationExtractionMetadata{
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	return out, meta, nil
}
