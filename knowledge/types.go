// Package knowledge defines the core data model shared across the graph
// store, vector store, ingestion, community, query, and path packages:
// entities, relations, text chunks, concepts, communities, paths, citations,
// and the closed sum types that tag them.
package knowledge

import (
	"strings"
	"time"
)

// EntityType is a closed tag drawn from the research-literature domain.
// Unknown values are rejected at construction, never silently coerced.
type EntityType string

const (
	EntityAIModel       EntityType = "AIModel"
	EntityOrganization  EntityType = "Organization"
	EntityPerson        EntityType = "Person"
	EntityTechnique     EntityType = "Technique"
	EntityConcept       EntityType = "Concept"
	EntityPublication   EntityType = "Publication"
	EntityBenchmark     EntityType = "Benchmark"
	EntityEvent         EntityType = "Event"
	EntityCommunityType EntityType = "Community"
)

var validEntityTypes = map[EntityType]struct{}{
	EntityAIModel: {}, EntityOrganization: {}, EntityPerson: {}, EntityTechnique: {},
	EntityConcept: {}, EntityPublication: {}, EntityBenchmark: {}, EntityEvent: {},
	EntityCommunityType: {},
}

// IsValid reports whether t is one of the declared entity types.
func (t EntityType) IsValid() bool {
	_, ok := validEntityTypes[t]
	return ok
}

// RelationType is a closed tag for directed, labelled edges.
type RelationType string

const (
	RelDevelopedBy   RelationType = "DEVELOPED_BY"
	RelUsesTechnique RelationType = "USES_TECHNIQUE"
	RelBasedOn       RelationType = "BASED_ON"
	RelEmployedAt    RelationType = "EMPLOYED_AT"
	RelEvaluatedOn   RelationType = "EVALUATED_ON"
	RelAuthored      RelationType = "AUTHORED"
	RelMemberOf      RelationType = "MEMBER_OF"
	RelImproves      RelationType = "IMPROVES"
	RelDerivedFrom   RelationType = "DERIVED_FROM"
	RelBelongsTo     RelationType = "BELONGS_TO"
	RelCites         RelationType = "CITES"
)

var validRelationTypes = map[RelationType]struct{}{
	RelDevelopedBy: {}, RelUsesTechnique: {}, RelBasedOn: {}, RelEmployedAt: {},
	RelEvaluatedOn: {}, RelAuthored: {}, RelMemberOf: {}, RelImproves: {},
	RelDerivedFrom: {}, RelBelongsTo: {}, RelCites: {},
}

// IsValid reports whether t is one of the declared relation types.
func (t RelationType) IsValid() bool {
	_, ok := validRelationTypes[t]
	return ok
}

// Normalize canonicalizes a name for uniqueness and alias matching: lower
// case, trimmed, interior whitespace collapsed. Shared by graphstore and
// ingestion so the uniqueness invariant cannot drift between the two.
func Normalize(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(fields, " ")
}

// PropertyValue is a scalar, string, or string-list attribute value.
type PropertyValue = any

// Entity is a node in the knowledge graph: typed, named, embedded.
type Entity struct {
	ID          string                    `json:"id"`
	Type        EntityType                `json:"type"`
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Properties  map[string]PropertyValue  `json:"properties,omitempty"`
	Embedding   []float32                 `json:"embedding,omitempty"`
	Provenance  []string                  `json:"provenance,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

// NormalizedName is the key used for the (type, normalized(name)) uniqueness
// invariant.
func (e Entity) NormalizedName() string { return Normalize(e.Name) }

// Relation is a directed, labelled edge between two Entities.
type Relation struct {
	ID         string                   `json:"id"`
	Type       RelationType             `json:"type"`
	SourceID   string                   `json:"source_id"`
	TargetID   string                   `json:"target_id"`
	Confidence float64                  `json:"confidence"`
	Properties map[string]PropertyValue `json:"properties,omitempty"`
	Provenance []string                 `json:"provenance,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

// Key returns the (source, target, type) triple identifying an edge.
func (r Relation) Key() string { return r.SourceID + "|" + r.TargetID + "|" + string(r.Type) }

// ChunkMetadata is the optional provenance metadata carried by a TextChunk.
type ChunkMetadata struct {
	DocumentID string   `json:"document_id,omitempty"`
	Title      string   `json:"title,omitempty"`
	Authors    []string `json:"authors,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Year       int      `json:"year,omitempty"`
	Offset     int      `json:"offset,omitempty"`
}

// TextChunk is an immutable text fragment with provenance, the ingestion unit.
type TextChunk struct {
	ID       string        `json:"id"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata,omitempty"`
}

// Concept is a lightweight NLP-derived noun phrase, distinct from an Entity.
type Concept struct {
	Text         string   `json:"text"`
	Frequency    int      `json:"frequency"`
	Importance   float64  `json:"importance"`
	SourceChunks []string `json:"source_chunks,omitempty"`
}

// NormalizedText returns the canonical form of the concept's text.
func (c Concept) NormalizedText() string { return Normalize(c.Text) }

// ConceptCooccurrence is a pair of concepts observed together within a chunk.
type ConceptCooccurrence struct {
	ConceptA string  `json:"concept_a"`
	ConceptB string  `json:"concept_b"`
	Strength float64 `json:"strength"`
	Count    int     `json:"count"`
}

// ConceptGraph is a weighted undirected graph over concepts plus a
// hierarchical set of Community partitions and two reverse indexes.
type ConceptGraph struct {
	Concepts      map[string]Concept               `json:"concepts"`
	Cooccurrences []ConceptCooccurrence             `json:"cooccurrences"`
	Communities   []Community                       `json:"communities"`
	ChunkConcepts map[string][]string               `json:"chunk_concepts"` // chunk -> concepts
	ConceptChunks map[string][]string               `json:"concept_chunks"` // concept -> chunks
}

// Community is a partition of the graph at some hierarchical level; carries
// an optional LLM-generated summary.
type Community struct {
	ID          string   `json:"id"`
	Level       int      `json:"level"`
	Members     []string `json:"members"`
	ParentID    string   `json:"parent_id,omitempty"`
	ChildIDs    []string `json:"child_ids,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	MemberCount int      `json:"member_count"`
}

// PathStep pairs an entity with the relation that led to it (Relation is the
// zero value for the first step).
type PathStep struct {
	Entity   Entity
	Relation *Relation
}

// Path is an ordered simple sequence of entities connected by relations.
type Path struct {
	Steps []PathStep `json:"steps"`
	Hops  int        `json:"hops"`
	Score float64    `json:"score"`
}

// EntityIDs returns the ordered entity IDs visited by the path.
func (p Path) EntityIDs() []string {
	ids := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		ids[i] = s.Entity.ID
	}
	return ids
}

// CitationSourceType is a closed tag for where a Citation points.
type CitationSourceType string

const (
	CitationEntity   CitationSourceType = "entity"
	CitationCommunity CitationSourceType = "community"
	CitationDocument CitationSourceType = "document"
)

// Citation attributes a piece of an answer to a source.
type Citation struct {
	SourceID   string             `json:"source_id"`
	SourceName string             `json:"source_name"`
	SourceType CitationSourceType `json:"source_type"`
	Relevance  float64            `json:"relevance"`
	Excerpt    string             `json:"excerpt,omitempty"`
}

// QueryType is a closed tag for the retrieval strategy used.
type QueryType string

const (
	QueryLocal  QueryType = "local"
	QueryGlobal QueryType = "global"
	QueryHybrid QueryType = "hybrid"
	QueryLazy   QueryType = "lazy"
)

// QueryContext carries the retrieval context assembled for an answer.
type QueryContext struct {
	Entities           []Entity    `json:"entities,omitempty"`
	Relations          []Relation  `json:"relations,omitempty"`
	CommunitySummaries []string    `json:"community_summaries,omitempty"`
	TextChunks         []TextChunk `json:"text_chunks,omitempty"`
}

// QueryMetrics records the cost and shape of a query response.
type QueryMetrics struct {
	RetrievalMS int64 `json:"retrieval_ms"`
	GenerationMS int64 `json:"generation_ms"`
	Entities    int   `json:"entities"`
	Relations   int   `json:"relations"`
	Communities int   `json:"communities"`
	Tokens      int   `json:"tokens"`
}

// QueryResponse is the unified response shape for local/global/hybrid/lazy
// queries.
type QueryResponse struct {
	Query     string       `json:"query"`
	Answer    string       `json:"answer"`
	QueryType QueryType    `json:"query_type"`
	Citations []Citation   `json:"citations"`
	Context   QueryContext `json:"context"`
	Metrics   QueryMetrics `json:"metrics"`
	Success   bool         `json:"success"`
	Error     string       `json:"error,omitempty"`
}

// UserRole is a closed tag for API-key roles.
type UserRole string

const (
	RoleReader UserRole = "reader"
	RoleWriter UserRole = "writer"
	RoleAdmin  UserRole = "admin"
)

// IsValid reports whether r is one of the declared roles.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleReader, RoleWriter, RoleAdmin:
		return true
	}
	return false
}

// Permission is an "operation:resource" string, e.g. "write:entities".
type Permission string

// APIKey identifies a caller and the role it was issued under.
type APIKey struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Role        UserRole     `json:"role"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	LastUsedAt  *time.Time   `json:"last_used_at,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
}

// Valid reports whether the key exists (non-zero) and is not past expiry.
func (k APIKey) Valid(now time.Time) bool {
	if k.ID == "" {
		return false
	}
	if k.ExpiresAt != nil && now.After(*k.ExpiresAt) {
		return false
	}
	return true
}
