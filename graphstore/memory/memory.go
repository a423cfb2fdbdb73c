// Package memory implements graphstore.Store in-process, adapted from the
// teacher's rag/store.MemoryGraph. It adds the (type, normalized-name)
// uniqueness invariant, confidence-max / provenance-union merge on upsert,
// multi-hop neighbour traversal (the teacher's GetRelatedEntities only
// handled depth 1), and named projections.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nahisaho/YAGOKORO-sub003/graphstore"
	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

// Store is an in-memory graphstore.Store. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	entities  map[string]knowledge.Entity
	relations map[string]knowledge.Relation

	// byKey indexes entities by (type, normalized name) for the uniqueness
	// invariant, and relations by (source, target, type).
	entityByKey   map[string]string // "type|normalized" -> entity ID
	relationByKey map[string]string // Relation.Key() -> relation ID

	typeIndex map[knowledge.EntityType][]string // entity type -> IDs

	projections map[string]*graphstore.Projection
	templates   map[string]graphstore.Template
}

// New constructs an empty in-memory store with the standard traversal
// template set registered.
func New() *Store {
	s := &Store{
		entities:      make(map[string]knowledge.Entity),
		relations:     make(map[string]knowledge.Relation),
		entityByKey:   make(map[string]string),
		relationByKey: make(map[string]string),
		typeIndex:     make(map[knowledge.EntityType][]string),
		projections:   make(map[string]*graphstore.Projection),
		templates:     make(map[string]graphstore.Template),
	}
	s.RegisterTemplate(graphstore.Template{ID: "neighbours_by_type", Description: "neighbours of an entity filtered by entity type"})
	s.RegisterTemplate(graphstore.Template{ID: "entities_by_type", Description: "all entities of a given type"})
	return s
}

// RegisterTemplate adds a named traversal template. Production code
// registers templates at construction; tests may add more.
func (s *Store) RegisterTemplate(t graphstore.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
}

func entityKey(t knowledge.EntityType, normalizedName string) string {
	return string(t) + "|" + normalizedName
}

// UpsertEntity implements graphstore.Store.
func (s *Store) UpsertEntity(ctx context.Context, e *knowledge.Entity) (*knowledge.Entity, error) {
	if !e.Type.IsValid() {
		return nil, kinderr.New(kinderr.ValidationError, "unknown entity type %q", e.Type).WithField("type")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entityKey(e.Type, e.NormalizedName())
	now := time.Now()

	if existingID, ok := s.entityByKey[key]; ok {
		existing := s.entities[existingID]
		merged := mergeEntity(existing, *e)
		merged.UpdatedAt = now
		s.entities[existingID] = merged
		out := merged
		return &out, nil
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = now
	e.UpdatedAt = now
	s.entities[e.ID] = *e
	s.entityByKey[key] = e.ID
	s.typeIndex[e.Type] = append(s.typeIndex[e.Type], e.ID)

	out := *e
	return &out, nil
}

// mergeEntity implements the idempotent-merge contract: new Property keys
// are added; existing keys are only overwritten when present in the
// incoming value (callers are expected to pre-filter by confidence before
// calling upsert again); Provenance is unioned.
func mergeEntity(existing, incoming knowledge.Entity) knowledge.Entity {
	merged := existing
	if incoming.Description != "" {
		merged.Description = incoming.Description
	}
	if merged.Properties == nil {
		merged.Properties = make(map[string]knowledge.PropertyValue)
	}
	for k, v := range incoming.Properties {
		merged.Properties[k] = v
	}
	merged.Provenance = unionStrings(existing.Provenance, incoming.Provenance)
	if len(incoming.Embedding) > 0 {
		merged.Embedding = incoming.Embedding
	}
	return merged
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// UpsertRelation implements graphstore.Store.
func (s *Store) UpsertRelation(ctx context.Context, r *knowledge.Relation) (*knowledge.Relation, error) {
	if !r.Type.IsValid() {
		return nil, kinderr.New(kinderr.ValidationError, "unknown relation type %q", r.Type).WithField("type")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[r.SourceID]; !ok {
		return nil, kinderr.New(kinderr.NotFound, "relation source entity %q not found", r.SourceID)
	}
	if _, ok := s.entities[r.TargetID]; !ok {
		return nil, kinderr.New(kinderr.NotFound, "relation target entity %q not found", r.TargetID)
	}

	key := r.Key()
	now := time.Now()
	if existingID, ok := s.relationByKey[key]; ok {
		existing := s.relations[existingID]
		merged := existing
		if r.Confidence > merged.Confidence {
			merged.Confidence = r.Confidence
		}
		merged.Provenance = unionStrings(existing.Provenance, r.Provenance)
		if merged.Properties == nil {
			merged.Properties = make(map[string]knowledge.PropertyValue)
		}
		for k, v := range r.Properties {
			merged.Properties[k] = v
		}
		merged.UpdatedAt = now
		s.relations[existingID] = merged
		out := merged
		return &out, nil
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	s.relations[r.ID] = *r
	s.relationByKey[key] = r.ID

	out := *r
	return &out, nil
}

// FetchByID implements graphstore.Store.
func (s *Store) FetchByID(ctx context.Context, id string) (*knowledge.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, kinderr.New(kinderr.NotFound, "entity %q not found", id)
	}
	return &e, nil
}

// FetchByName implements graphstore.Store.
func (s *Store) FetchByName(ctx context.Context, t knowledge.EntityType, name string) (*knowledge.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.entityByKey[entityKey(t, knowledge.Normalize(name))]
	if !ok {
		return nil, kinderr.New(kinderr.NotFound, "entity (%s, %s) not found", t, name)
	}
	e := s.entities[id]
	return &e, nil
}

// FetchNeighbours implements graphstore.Store via breadth-first expansion up
// to depth, generalizing the teacher's depth-1-only GetRelatedEntities.
func (s *Store) FetchNeighbours(ctx context.Context, id string, depth int, filter *graphstore.NeighbourFilter) ([]knowledge.Entity, []knowledge.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.entities[id]; !ok {
		return nil, nil, kinderr.New(kinderr.NotFound, "entity %q not found", id)
	}

	allowed := map[knowledge.RelationType]struct{}{}
	if filter != nil {
		for _, rt := range filter.RelationTypes {
			allowed[rt] = struct{}{}
		}
	}
	matchesFilter := func(rt knowledge.RelationType) bool {
		if filter == nil || len(filter.RelationTypes) == 0 {
			return true
		}
		_, ok := allowed[rt]
		return ok
	}

	visitedEntities := map[string]struct{}{id: {}}
	visitedRelations := map[string]struct{}{}
	frontier := []string{id}

	var entOut []knowledge.Entity
	var relOut []knowledge.Relation

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, curID := range frontier {
			for _, rel := range s.relations {
				if !matchesFilter(rel.Type) {
					continue
				}
				var otherID string
				switch curID {
				case rel.SourceID:
					otherID = rel.TargetID
				case rel.TargetID:
					otherID = rel.SourceID
				default:
					continue
				}
				if _, ok := visitedRelations[rel.ID]; !ok {
					visitedRelations[rel.ID] = struct{}{}
					relOut = append(relOut, rel)
				}
				if _, ok := visitedEntities[otherID]; !ok {
					visitedEntities[otherID] = struct{}{}
					if e, ok := s.entities[otherID]; ok {
						entOut = append(entOut, e)
					}
					next = append(next, otherID)
				}
			}
		}
		frontier = next
	}

	return entOut, relOut, nil
}

// RunTraversal implements graphstore.Store for the registered template set.
func (s *Store) RunTraversal(ctx context.Context, templateID string, params map[string]any) ([]graphstore.TraversalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.templates[templateID]; !ok {
		return nil, kinderr.New(kinderr.ConflictingState, "traversal template %q not registered", templateID)
	}

	switch templateID {
	case "entities_by_type":
		t, _ := params["type"].(string)
		var out []graphstore.TraversalRecord
		for _, id := range s.typeIndex[knowledge.EntityType(t)] {
			e := s.entities[id]
			out = append(out, graphstore.TraversalRecord{"id": e.ID, "name": e.Name, "type": e.Type})
		}
		return out, nil

	case "neighbours_by_type":
		id, _ := params["id"].(string)
		t, _ := params["type"].(string)
		var out []graphstore.TraversalRecord
		for _, rel := range s.relations {
			var otherID string
			switch id {
			case rel.SourceID:
				otherID = rel.TargetID
			case rel.TargetID:
				otherID = rel.SourceID
			default:
				continue
			}
			if e, ok := s.entities[otherID]; ok && (t == "" || string(e.Type) == t) {
				out = append(out, graphstore.TraversalRecord{"id": e.ID, "name": e.Name, "relation": rel.Type})
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unhandled registered template %q", templateID)
}

// CreateProjection implements graphstore.Store.
func (s *Store) CreateProjection(ctx context.Context, name string, entityFilter []knowledge.EntityType, relationFilter []knowledge.RelationType, orientation graphstore.Orientation) (*graphstore.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &graphstore.Projection{Name: name, EntityFilter: entityFilter, RelationFilter: relationFilter, Orientation: orientation}
	s.projections[name] = p
	return p, nil
}

// DropProjection implements graphstore.Store.
func (s *Store) DropProjection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projections, name)
	return nil
}

// Projection returns the materialised entity/relation set for a named
// projection, used by the community detector.
func (s *Store) Projection(name string) ([]knowledge.Entity, []knowledge.Relation, graphstore.Orientation, error) {
	s.mu.RLock()
	p, ok := s.projections[name]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, "", kinderr.New(kinderr.NotFound, "projection %q not found", name)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entTypes := map[knowledge.EntityType]struct{}{}
	for _, t := range p.EntityFilter {
		entTypes[t] = struct{}{}
	}
	relTypes := map[knowledge.RelationType]struct{}{}
	for _, t := range p.RelationFilter {
		relTypes[t] = struct{}{}
	}

	var ents []knowledge.Entity
	for _, e := range s.entities {
		if len(entTypes) == 0 {
			ents = append(ents, e)
			continue
		}
		if _, ok := entTypes[e.Type]; ok {
			ents = append(ents, e)
		}
	}
	var rels []knowledge.Relation
	for _, r := range s.relations {
		if len(relTypes) == 0 {
			rels = append(rels, r)
			continue
		}
		if _, ok := relTypes[r.Type]; ok {
			rels = append(rels, r)
		}
	}
	return ents, rels, p.Orientation, nil
}

// DeleteEntity implements graphstore.Store. Cascades to incident relations.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return kinderr.New(kinderr.NotFound, "entity %q not found", id)
	}
	delete(s.entities, id)
	delete(s.entityByKey, entityKey(e.Type, e.NormalizedName()))

	ids := s.typeIndex[e.Type]
	for i, eid := range ids {
		if eid == id {
			s.typeIndex[e.Type] = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	for rid, rel := range s.relations {
		if rel.SourceID == id || rel.TargetID == id {
			delete(s.relations, rid)
			delete(s.relationByKey, rel.Key())
		}
	}
	return nil
}

// DeleteRelation implements graphstore.Store.
func (s *Store) DeleteRelation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[id]
	if !ok {
		return kinderr.New(kinderr.NotFound, "relation %q not found", id)
	}
	delete(s.relations, id)
	delete(s.relationByKey, r.Key())
	return nil
}

// Close implements graphstore.Store. No-op for the in-memory backend besides
// releasing references, mirroring the teacher's MemoryGraph.Close.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = make(map[string]knowledge.Entity)
	s.relations = make(map[string]knowledge.Relation)
	s.entityByKey = make(map[string]string)
	s.relationByKey = make(map[string]string)
	s.typeIndex = make(map[knowledge.EntityType][]string)
	return nil
}

var _ graphstore.Store = (*Store)(nil)
