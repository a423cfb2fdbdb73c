// Package graphstore adapts the knowledge graph to a pluggable backend. It
// generalizes the teacher's rag.KnowledgeGraph interface
// (AddEntity/AddRelationship/Query/GetRelatedEntities) into an idempotent
// upsert contract with merge-on-conflict semantics, parameterised traversal
// templates, and named projections for community-detection algorithms. The
// adapter is the only component allowed to know the wire format of the
// underlying store; no raw query string ever reaches it from user input.
package graphstore

import (
	"context"

	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

// Orientation selects how a projection treats relation direction.
type Orientation string

const (
	Directed   Orientation = "directed"
	Undirected Orientation = "undirected"
)

// NeighbourFilter narrows fetch_neighbours to specific relation types; a nil
// or empty filter matches every relation type.
type NeighbourFilter struct {
	RelationTypes []knowledge.RelationType
}

// TraversalRecord is one row returned by a named traversal template.
type TraversalRecord map[string]any

// Projection is a handle to a named, materialised subgraph used as input to
// community-detection and analytics algorithms.
type Projection struct {
	Name          string
	EntityFilter  []knowledge.EntityType
	RelationFilter []knowledge.RelationType
	Orientation   Orientation
}

// Store is the graph-store adapter contract (§4.1). Three backends exist:
// memory (in-process, for tests and small deployments), falkordb
// (openCypher over go-redis) and neo4j (Bolt driver).
type Store interface {
	// UpsertEntity creates or merges an entity keyed by (type, normalized name).
	// A second call with the same key merges Properties (new keys added,
	// existing keys overwritten by the incoming value; entities carry no
	// confidence, so no confidence comparison is made) and unions Provenance.
	UpsertEntity(ctx context.Context, e *knowledge.Entity) (*knowledge.Entity, error)

	// UpsertRelation creates or merges a relation keyed by (source, target, type),
	// keeping the maximum confidence and the union of provenance.
	UpsertRelation(ctx context.Context, r *knowledge.Relation) (*knowledge.Relation, error)

	FetchByID(ctx context.Context, id string) (*knowledge.Entity, error)

	// FetchByName looks up an entity by (type, normalized name); used by the
	// ingestion merge step to decide create vs. merge.
	FetchByName(ctx context.Context, t knowledge.EntityType, name string) (*knowledge.Entity, error)

	FetchNeighbours(ctx context.Context, id string, depth int, filter *NeighbourFilter) ([]knowledge.Entity, []knowledge.Relation, error)

	// RunTraversal executes a pre-registered named traversal template with
	// bound parameters. Template IDs are registered ahead of time via
	// RegisterTemplate; an unregistered template ID is a permanent error.
	RunTraversal(ctx context.Context, templateID string, params map[string]any) ([]TraversalRecord, error)

	CreateProjection(ctx context.Context, name string, entityFilter []knowledge.EntityType, relationFilter []knowledge.RelationType, orientation Orientation) (*Projection, error)
	DropProjection(ctx context.Context, name string) error

	DeleteEntity(ctx context.Context, id string) error
	DeleteRelation(ctx context.Context, id string) error

	Close() error
}

// Template is a named, parameterised query fragment. Backends register a
// fixed set of templates at construction time; RunTraversal never accepts
// raw query text.
type Template struct {
	ID          string
	Description string
}
