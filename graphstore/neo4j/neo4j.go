// Package neo4j implements graphstore.Store against a Neo4j deployment via
// the official Bolt driver. New relative to the teacher (which only spoke
// FalkorDB/openCypher over go-redis): grounded on vasic-digital-SuperAgent's
// go.mod dependency on neo4j-go-driver/v5, written in the same MERGE-based
// adapter shape as the falkordb backend so the two are interchangeable per
// the spec's "pick one graph backend per deployment" open question.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/nahisaho/YAGOKORO-sub003/graphstore"
	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

// Store is a Neo4j-backed graphstore.Store.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// New opens a driver against uri with basic auth and returns a Store scoped
// to database (empty string uses the server default database).
func New(ctx context.Context, uri, username, password, database string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "failed to open neo4j driver")
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "neo4j connectivity check failed")
	}
	return &Store{driver: driver, database: database}, nil
}

func (s *Store) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

func sanitizeLabel(l string) string {
	out := make([]byte, 0, len(l))
	for i := 0; i < len(l); i++ {
		c := l[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' {
			out = append(out, c)
		} else {
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "Entity"
	}
	return string(out)
}

// UpsertEntity implements graphstore.Store. Only the name and description are
// written; Properties, Provenance and Embedding are not stored by this backend.
func (s *Store) UpsertEntity(ctx context.Context, e *knowledge.Entity) (*knowledge.Entity, error) {
	if !e.Type.IsValid() {
		return nil, kinderr.New(kinderr.ValidationError, "unknown entity type %q", e.Type).WithField("type")
	}
	session := s.session(ctx)
	defer session.Close(ctx)

	label := sanitizeLabel(string(e.Type))
	id := e.ID
	if id == "" {
		id = e.NormalizedName()
	}
	cypher := fmt.Sprintf(`
		MERGE (n:%s {normalized_name: $normalized_name})
		ON CREATE SET n.id = $id, n.created_at = timestamp()
		SET n.name = $name, n.description = $description, n.updated_at = timestamp()
		RETURN n.id, n.name, n.description`, label)

	result, err := session.Run(ctx, cypher, map[string]any{
		"normalized_name": e.NormalizedName(),
		"id":              id,
		"name":            e.Name,
		"description":     e.Description,
	})
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "neo4j upsert entity failed")
	}
	record, err := result.Single(ctx)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "neo4j upsert entity returned no record")
	}
	merged := *e
	merged.ID, _ = record.Values[0].(string)
	merged.Name, _ = record.Values[1].(string)
	merged.Description, _ = record.Values[2].(string)
	return &merged, nil
}

// UpsertRelation implements graphstore.Store, keeping the maximum confidence.
// Properties and Provenance are not stored by this backend.
func (s *Store) UpsertRelation(ctx context.Context, r *knowledge.Relation) (*knowledge.Relation, error) {
	if !r.Type.IsValid() {
		return nil, kinderr.New(kinderr.ValidationError, "unknown relation type %q", r.Type).WithField("type")
	}
	session := s.session(ctx)
	defer session.Close(ctx)

	relType := sanitizeLabel(string(r.Type))
	cypher := fmt.Sprintf(`
		MATCH (a {id: $source}), (b {id: $target})
		MERGE (a)-[rel:%s]->(b)
		ON CREATE SET rel.confidence = $confidence
		ON MATCH SET rel.confidence = CASE WHEN $confidence > rel.confidence THEN $confidence ELSE rel.confidence END
		RETURN rel.confidence`, relType)

	result, err := session.Run(ctx, cypher, map[string]any{
		"source": r.SourceID, "target": r.TargetID, "confidence": r.Confidence,
	})
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "neo4j upsert relation failed")
	}
	record, err := result.Single(ctx)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.NotFound, err, "relation endpoints not found")
	}
	out := *r
	out.Confidence, _ = record.Values[0].(float64)
	return &out, nil
}

// FetchByID implements graphstore.Store.
func (s *Store) FetchByID(ctx context.Context, id string) (*knowledge.Entity, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "MATCH (n {id: $id}) RETURN n.id, n.name, n.description", map[string]any{"id": id})
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "neo4j fetch by id failed")
	}
	record, err := result.Single(ctx)
	if err != nil {
		return nil, kinderr.New(kinderr.NotFound, "entity %q not found", id)
	}
	return recordToEntity(record), nil
}

// FetchByName implements graphstore.Store.
func (s *Store) FetchByName(ctx context.Context, t knowledge.EntityType, name string) (*knowledge.Entity, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	label := sanitizeLabel(string(t))
	cypher := fmt.Sprintf("MATCH (n:%s {normalized_name: $name}) RETURN n.id, n.name, n.description", label)
	result, err := session.Run(ctx, cypher, map[string]any{"name": knowledge.Normalize(name)})
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "neo4j fetch by name failed")
	}
	record, err := result.Single(ctx)
	if err != nil {
		return nil, kinderr.New(kinderr.NotFound, "entity (%s, %s) not found", t, name)
	}
	e := recordToEntity(record)
	e.Type = t
	return e, nil
}

func recordToEntity(record *neo4j.Record) *knowledge.Entity {
	e := &knowledge.Entity{}
	if len(record.Values) > 0 {
		e.ID, _ = record.Values[0].(string)
	}
	if len(record.Values) > 1 {
		e.Name, _ = record.Values[1].(string)
	}
	if len(record.Values) > 2 {
		e.Description, _ = record.Values[2].(string)
	}
	return e
}

// FetchNeighbours implements graphstore.Store.
func (s *Store) FetchNeighbours(ctx context.Context, id string, depth int, filter *graphstore.NeighbourFilter) ([]knowledge.Entity, []knowledge.Relation, error) {
	if depth < 1 {
		depth = 1
	}
	session := s.session(ctx)
	defer session.Close(ctx)

	relPattern := ""
	if filter != nil && len(filter.RelationTypes) > 0 {
		labels := ""
		for i, rt := range filter.RelationTypes {
			if i > 0 {
				labels += "|"
			}
			labels += sanitizeLabel(string(rt))
		}
		relPattern = ":" + labels
	}
	cypher := fmt.Sprintf("MATCH (n {id: $id})-[%s*1..%d]-(m) RETURN DISTINCT m.id, m.name, m.description", relPattern, depth)
	result, err := session.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return nil, nil, kinderr.Wrap(kinderr.TransientIO, err, "neo4j fetch neighbours failed")
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, nil, kinderr.Wrap(kinderr.TransientIO, err, "neo4j fetch neighbours collect failed")
	}
	var ents []knowledge.Entity
	for _, record := range records {
		ents = append(ents, *recordToEntity(record))
	}
	return ents, nil, nil
}

// RunTraversal implements graphstore.Store. Only the entities_by_type template
// is supported, with a fixed limit of 1000 rows; any other ID is rejected.
func (s *Store) RunTraversal(ctx context.Context, templateID string, params map[string]any) ([]graphstore.TraversalRecord, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	var cypher string
	switch templateID {
	case "entities_by_type":
		t, _ := params["type"].(string)
		cypher = fmt.Sprintf("MATCH (n:%s) RETURN n.id, n.name LIMIT 1000", sanitizeLabel(t))
	default:
		return nil, kinderr.New(kinderr.ConflictingState, "traversal template %q not registered", templateID)
	}

	result, err := session.Run(ctx, cypher, nil)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "neo4j traversal failed")
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "neo4j traversal collect failed")
	}
	out := make([]graphstore.TraversalRecord, 0, len(records))
	for _, record := range records {
		rec := graphstore.TraversalRecord{}
		for i, key := range record.Keys {
			rec[key] = record.Values[i]
		}
		out = append(out, rec)
	}
	return out, nil
}

// CreateProjection implements graphstore.Store. Neo4j projections would
// normally use the Graph Data Science library's named-graph catalog; that
// library is not in the pack's dependency surface, so projections here are
// a lightweight filter descriptor realised at read time, matching the
// falkordb backend's behaviour.
func (s *Store) CreateProjection(ctx context.Context, name string, entityFilter []knowledge.EntityType, relationFilter []knowledge.RelationType, orientation graphstore.Orientation) (*graphstore.Projection, error) {
	return &graphstore.Projection{Name: name, EntityFilter: entityFilter, RelationFilter: relationFilter, Orientation: orientation}, nil
}

// DropProjection implements graphstore.Store.
func (s *Store) DropProjection(ctx context.Context, name string) error { return nil }

// DeleteEntity implements graphstore.Store.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	session := s.session(ctx)
	defer session.Close(ctx)
	_, err := session.Run(ctx, "MATCH (n {id: $id}) DETACH DELETE n", map[string]any{"id": id})
	if err != nil {
		return kinderr.Wrap(kinderr.TransientIO, err, "neo4j delete entity failed")
	}
	return nil
}

// DeleteRelation implements graphstore.Store.
func (s *Store) DeleteRelation(ctx context.Context, id string) error {
	session := s.session(ctx)
	defer session.Close(ctx)
	_, err := session.Run(ctx, "MATCH ()-[r {id: $id}]->() DELETE r", map[string]any{"id": id})
	if err != nil {
		return kinderr.Wrap(kinderr.TransientIO, err, "neo4j delete relation failed")
	}
	return nil
}

// Close implements graphstore.Store.
func (s *Store) Close() error { return s.driver.Close(context.Background()) }

var _ graphstore.Store = (*Store)(nil)
