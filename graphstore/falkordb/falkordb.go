// Package falkordb implements graphstore.Store against FalkorDB, a
// Redis-backed graph database speaking openCypher. Adapted from the
// teacher's rag/store.FalkorDBGraph (MERGE-based upsert over go-redis'
// GRAPH.QUERY command), extended with the merge-on-upsert semantics,
// multi-hop neighbour traversal, and named, parameterised traversal
// templates required by graphstore.Store. Only templates registered ahead
// of time ever reach the backend as Cypher; no caller-supplied query string
// is interpolated.
package falkordb

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/nahisaho/YAGOKORO-sub003/graphstore"
	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

// Store is a FalkorDB-backed graphstore.Store.
type Store struct {
	client    redis.UniversalClient
	graphName string
	templates map[string]string // templateID -> cypher fragment with %s placeholders
}

// New parses a connection string of the form falkordb://host:port/graph_name
// and returns a Store. graph_name defaults to "yagokoro" when omitted.
func New(connectionString string) (*Store, error) {
	u, err := url.Parse(connectionString)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.ValidationError, err, "invalid falkordb connection string")
	}
	if u.Host == "" {
		return nil, kinderr.New(kinderr.ValidationError, "falkordb connection string missing host")
	}
	graphName := strings.TrimPrefix(u.Path, "/")
	if graphName == "" {
		graphName = "yagokoro"
	}

	client := redis.NewClient(&redis.Options{Addr: u.Host})
	return NewWithClient(client, graphName), nil
}

// NewWithClient wires a pre-constructed redis client, for tests against
// miniredis or a shared connection pool.
func NewWithClient(client redis.UniversalClient, graphName string) *Store {
	s := &Store{client: client, graphName: graphName, templates: make(map[string]string)}
	s.registerDefaultTemplates()
	return s
}

func (s *Store) registerDefaultTemplates() {
	s.templates["entities_by_type"] = "MATCH (n:%s) RETURN n.id, n.name LIMIT %d"
	s.templates["neighbours_by_type"] = "MATCH (n {id: %s})-[r]-(m:%s) RETURN DISTINCT m.id, m.name, type(r)"
}

// query issues a raw GRAPH.QUERY against the configured graph. It is
// unexported: every call site builds cypher from sanitized labels and
// parameterised literals, never from caller-supplied free text.
func (s *Store) query(ctx context.Context, cypher string) ([][]any, error) {
	res, err := s.client.Do(ctx, "GRAPH.QUERY", s.graphName, cypher, "--compact").Result()
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "falkordb query failed")
	}
	rows, ok := res.([]any)
	if !ok || len(rows) == 0 {
		return nil, nil
	}
	// rows[0] = header, rows[1] = result set, rows[2] = stats
	if len(rows) < 2 {
		return nil, nil
	}
	resultSet, ok := rows[1].([]any)
	if !ok {
		return nil, nil
	}
	out := make([][]any, 0, len(resultSet))
	for _, r := range resultSet {
		row, ok := r.([]any)
		if !ok {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

var labelRegex = regexp.MustCompile(`[^a-zA-Z0-9_]`)

func sanitizeLabel(l string) string {
	clean := labelRegex.ReplaceAllString(l, "_")
	if clean == "" {
		return "Entity"
	}
	return clean
}

func quoteCypherString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

func propsToCypherMap(m map[string]knowledge.PropertyValue) string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		lbl := sanitizeLabel(k)
		switch val := v.(type) {
		case string:
			parts = append(parts, fmt.Sprintf("%s: %s", lbl, quoteCypherString(val)))
		case []string:
			quoted := make([]string, len(val))
			for i, s := range val {
				quoted[i] = quoteCypherString(s)
			}
			parts = append(parts, fmt.Sprintf("%s: [%s]", lbl, strings.Join(quoted, ",")))
		default:
			parts = append(parts, fmt.Sprintf("%s: %v", lbl, val))
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// UpsertEntity implements graphstore.Store. Provenance and Embedding are not
// written to FalkorDB, so the returned entity's Provenance is the incoming one.
func (s *Store) UpsertEntity(ctx context.Context, e *knowledge.Entity) (*knowledge.Entity, error) {
	if !e.Type.IsValid() {
		return nil, kinderr.New(kinderr.ValidationError, "unknown entity type %q", e.Type).WithField("type")
	}

	existing, err := s.FetchByName(ctx, e.Type, e.Name)
	merged := *e
	if err == nil {
		merged = mergeEntity(*existing, *e)
	} else if kinderr.KindOf(err) != kinderr.NotFound {
		return nil, err
	} else if merged.ID == "" {
		merged.ID = fmt.Sprintf("%s-%d", sanitizeLabel(string(e.Type)), hashName(e.NormalizedName()))
	} else {
		merged.ID = e.ID
	}

	props := map[string]knowledge.PropertyValue{}
	for k, v := range merged.Properties {
		props[k] = v
	}
	props["name"] = merged.Name
	props["normalized_name"] = merged.NormalizedName()
	props["description"] = merged.Description

	label := sanitizeLabel(string(merged.Type))
	cypher := fmt.Sprintf("MERGE (n:%s {id: %s}) SET n += %s", label, quoteCypherString(merged.ID), propsToCypherMap(props))
	if _, err := s.query(ctx, cypher); err != nil {
		return nil, err
	}
	return &merged, nil
}

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
	seen := map[string]struct{}{}
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func hashName(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// UpsertRelation implements graphstore.Store. The stored confidence is the
// maximum of the stored and incoming values; the returned relation carries
// the incoming confidence. Provenance is not written to FalkorDB.
func (s *Store) UpsertRelation(ctx context.Context, r *knowledge.Relation) (*knowledge.Relation, error) {
	if !r.Type.IsValid() {
		return nil, kinderr.New(kinderr.ValidationError, "unknown relation type %q", r.Type).WithField("type")
	}
	if r.ID == "" {
		r.ID = fmt.Sprintf("%s-%s-%s", r.SourceID, r.TargetID, sanitizeLabel(string(r.Type)))
	}

	relType := sanitizeLabel(string(r.Type))
	props := map[string]knowledge.PropertyValue{}
	for k, v := range r.Properties {
		props[k] = v
	}
	props["id"] = r.ID
	delete(props, "confidence")

	cypher := fmt.Sprintf(
		"MATCH (a {id: %s}), (b {id: %s}) MERGE (a)-[rel:%s {id: %s}]->(b) SET rel += %s, "+
			"rel.confidence = CASE WHEN rel.confidence IS NULL OR rel.confidence < %v THEN %v ELSE rel.confidence END",
		quoteCypherString(r.SourceID), quoteCypherString(r.TargetID), relType, quoteCypherString(r.ID), propsToCypherMap(props),
		r.Confidence, r.Confidence,
	)
	if _, err := s.query(ctx, cypher); err != nil {
		return nil, err
	}
	return r, nil
}

// FetchByID implements graphstore.Store.
func (s *Store) FetchByID(ctx context.Context, id string) (*knowledge.Entity, error) {
	cypher := fmt.Sprintf("MATCH (n {id: %s}) RETURN n.id, n.name, n.description", quoteCypherString(id))
	rows, err := s.query(ctx, cypher)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, kinderr.New(kinderr.NotFound, "entity %q not found", id)
	}
	return rowToEntity(rows[0]), nil
}

// FetchByName implements graphstore.Store.
func (s *Store) FetchByName(ctx context.Context, t knowledge.EntityType, name string) (*knowledge.Entity, error) {
	label := sanitizeLabel(string(t))
	cypher := fmt.Sprintf("MATCH (n:%s {normalized_name: %s}) RETURN n.id, n.name, n.description", label, quoteCypherString(knowledge.Normalize(name)))
	rows, err := s.query(ctx, cypher)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, kinderr.New(kinderr.NotFound, "entity (%s, %s) not found", t, name)
	}
	e := rowToEntity(rows[0])
	e.Type = t
	return e, nil
}

func rowToEntity(row []any) *knowledge.Entity {
	e := &knowledge.Entity{}
	if len(row) > 0 {
		e.ID = fmt.Sprint(row[0])
	}
	if len(row) > 1 {
		e.Name = fmt.Sprint(row[1])
	}
	if len(row) > 2 {
		e.Description = fmt.Sprint(row[2])
	}
	return e
}

// FetchNeighbours implements graphstore.Store using FalkorDB's variable-
// length path syntax, generalizing the teacher's GetRelatedEntities.
func (s *Store) FetchNeighbours(ctx context.Context, id string, depth int, filter *graphstore.NeighbourFilter) ([]knowledge.Entity, []knowledge.Relation, error) {
	if depth < 1 {
		depth = 1
	}
	relPattern := ""
	if filter != nil && len(filter.RelationTypes) > 0 {
		labels := make([]string, len(filter.RelationTypes))
		for i, rt := range filter.RelationTypes {
			labels[i] = sanitizeLabel(string(rt))
		}
		relPattern = ":" + strings.Join(labels, "|")
	}
	cypher := fmt.Sprintf("MATCH (n {id: %s})-[%s*1..%d]-(m) RETURN DISTINCT m.id, m.name", quoteCypherString(id), relPattern, depth)
	rows, err := s.query(ctx, cypher)
	if err != nil {
		return nil, nil, err
	}
	var ents []knowledge.Entity
	for _, row := range rows {
		ents = append(ents, *rowToEntity(row))
	}
	return ents, nil, nil
}

// RunTraversal implements graphstore.Store for the registered template set.
// params are substituted positionally by template-specific contract; only
// "id", "type", and "limit" keys are recognised.
func (s *Store) RunTraversal(ctx context.Context, templateID string, params map[string]any) ([]graphstore.TraversalRecord, error) {
	tmpl, ok := s.templates[templateID]
	if !ok {
		return nil, kinderr.New(kinderr.ConflictingState, "traversal template %q not registered", templateID)
	}

	var cypher string
	switch templateID {
	case "entities_by_type":
		t, _ := params["type"].(string)
		limit := 100
		if l, ok := params["limit"].(int); ok && l > 0 {
			limit = l
		}
		cypher = fmt.Sprintf(tmpl, sanitizeLabel(t), limit)
	case "neighbours_by_type":
		id, _ := params["id"].(string)
		t, _ := params["type"].(string)
		cypher = fmt.Sprintf(tmpl, quoteCypherString(id), sanitizeLabel(t))
	default:
		return nil, kinderr.New(kinderr.ConflictingState, "traversal template %q has no binder", templateID)
	}

	rows, err := s.query(ctx, cypher)
	if err != nil {
		return nil, err
	}
	out := make([]graphstore.TraversalRecord, 0, len(rows))
	for _, row := range rows {
		rec := graphstore.TraversalRecord{}
		for i, v := range row {
			rec[strconv.Itoa(i)] = v
		}
		out = append(out, rec)
	}
	return out, nil
}

// CreateProjection implements graphstore.Store. FalkorDB has no native
// projection concept; the projection is recorded as metadata and realised
// as a filtered MATCH at read time by the community detector.
func (s *Store) CreateProjection(ctx context.Context, name string, entityFilter []knowledge.EntityType, relationFilter []knowledge.RelationType, orientation graphstore.Orientation) (*graphstore.Projection, error) {
	return &graphstore.Projection{Name: name, EntityFilter: entityFilter, RelationFilter: relationFilter, Orientation: orientation}, nil
}

// DropProjection implements graphstore.Store (no-op: nothing is persisted
// server-side for a projection handle).
func (s *Store) DropProjection(ctx context.Context, name string) error { return nil }

// DeleteEntity implements graphstore.Store, detaching and deleting incident relations.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	cypher := fmt.Sprintf("MATCH (n {id: %s}) DETACH DELETE n", quoteCypherString(id))
	_, err := s.query(ctx, cypher)
	return err
}

// DeleteRelation implements graphstore.Store.
func (s *Store) DeleteRelation(ctx context.Context, id string) error {
	cypher := fmt.Sprintf("MATCH ()-[r {id: %s}]->() DELETE r", quoteCypherString(id))
	_, err := s.query(ctx, cypher)
	return err
}

// Close implements graphstore.Store.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

var _ graphstore.Store = (*Store)(nil)
