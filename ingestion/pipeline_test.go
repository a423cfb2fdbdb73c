package ingestion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nahisaho/YAGOKORO-sub003/graphstore/memory"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

func TestPipelineIngestChunkCreatesEntities(t *testing.T) {
	llm := &fakeLLM{content: `{"entities":[
		{"name":"GPT-4","type":"AIModel","description":"a language model","confidence":0.95},
		{"name":"OpenAI","type":"Organization","description":"an AI company","confidence":0.95}
	]}`}
	store := memory.New()
	defer store.Close()

	pipeline, err := NewPipeline(PipelineConfig{
		LLM:                   llm,
		GraphStore:            store,
		EntityTypes:           []knowledge.EntityType{knowledge.EntityAIModel, knowledge.EntityOrganization},
		RelationTypes:         []knowledge.RelationType{knowledge.RelDevelopedBy},
		MinEntityConfidence:   0.5,
		MinRelationConfidence: 0.5,
	})
	require.NoError(t, err)

	chunk := knowledge.TextChunk{ID: "c1", Content: "GPT-4 is a large language model developed by OpenAI."}
	status, err := pipeline.IngestChunk(context.Background(), chunk)
	require.NoError(t, err)
	assert.Equal(t, 2, status.EntitiesCreated)
	assert.Empty(t, status.Errors)
}

func TestPipelineIngestChunkIsIdempotent(t *testing.T) {
	llm := &fakeLLM{content: `{"entities":[
		{"name":"GPT-4","type":"AIModel","description":"a model","confidence":0.95}
	]}`}
	store := memory.New()
	defer store.Close()

	pipeline, err := NewPipeline(PipelineConfig{
		LLM:                 llm,
		GraphStore:          store,
		EntityTypes:         []knowledge.EntityType{knowledge.EntityAIModel},
		MinEntityConfidence: 0.5,
	})
	require.NoError(t, err)

	chunk := knowledge.TextChunk{ID: "c1", Content: "GPT-4 is a model."}
	_, err = pipeline.IngestChunk(context.Background(), chunk)
	require.NoError(t, err)
	_, err = pipeline.IngestChunk(context.Background(), chunk)
	require.NoError(t, err)

	entity, err := store.FetchByName(context.Background(), knowledge.EntityAIModel, "GPT-4")
	require.NoError(t, err)
	assert.Contains(t, entity.Provenance, "c1")
	assert.Len(t, entity.Provenance, 1, "re-ingesting the same chunk must not duplicate provenance")
}

func TestPipelineIngestDocumentsRunsConcurrentlyAndReturnsPerDocumentStatus(t *testing.T) {
	llm := &fakeLLM{content: `{"entities":[{"name":"Widget","type":"Concept","confidence":0.9}]}`}
	store := memory.New()
	defer store.Close()

	pipeline, err := NewPipeline(PipelineConfig{
		LLM:                    llm,
		GraphStore:             store,
		EntityTypes:            []knowledge.EntityType{knowledge.EntityConcept},
		MinEntityConfidence:    0.5,
		MaxConcurrentDocuments: 2,
	})
	require.NoError(t, err)

	docs := [][]knowledge.TextChunk{
		{{ID: "d1c1", Content: "Widget one.", Metadata: knowledge.ChunkMetadata{DocumentID: "d1"}}},
		{{ID: "d2c1", Content: "Widget two.", Metadata: knowledge.ChunkMetadata{DocumentID: "d2"}}},
	}
	statuses := pipeline.IngestDocuments(context.Background(), docs)
	require.Len(t, statuses, 2)
	for _, s := range statuses {
		assert.Equal(t, 1, s.EntitiesCreated)
	}
}
