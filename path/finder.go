// Package path implements the multi-hop path reasoner (spec §4.6):
// bounded breadth-first path enumeration over the knowledge graph, scoring,
// a TTL+invalidation cache, and locale-aware natural-language explanation.
// Grounded on graphstore.Store.FetchNeighbours's own BFS-to-depth traversal,
// reused one hop at a time here so each step's relation set can be filtered
// and accumulated into simple (non-repeating) paths.
package path

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/nahisaho/YAGOKORO-sub003/graphstore"
	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

const (
	maxHopsCap          = 6
	defaultMaxHops      = 3
	defaultPathBudget   = 100
	recencyWindowYears  = 10
)

// Options bounds and filters a path search.
type Options struct {
	MaxHops       int
	RelationTypes []knowledge.RelationType
	StartType     knowledge.EntityType
	EndType       knowledge.EntityType
	MaxPaths      int
}

func (o Options) withDefaults() Options {
	if o.MaxHops <= 0 {
		o.MaxHops = defaultMaxHops
	}
	if o.MaxHops > maxHopsCap {
		o.MaxHops = maxHopsCap
	}
	if o.MaxPaths <= 0 {
		o.MaxPaths = defaultPathBudget
	}
	return o
}

// Query identifies the endpoints of a path search. Start/End may each be
// given by ID or by name (optionally narrowed by type); an empty End means
// "any reachable entity matching EndType" (or any entity, if EndType is also
// empty).
type Query struct {
	StartID   string
	StartName string

	EndID   string
	EndName string

	Options Options
}

// Finder runs bounded BFS path enumeration over a graphstore.Store.
type Finder struct {
	Graph graphstore.Store
}

// FindPaths implements PathFinder.find_paths (spec §4.6).
func (f *Finder) FindPaths(ctx context.Context, q Query) ([]knowledge.Path, error) {
	opts := q.Options.withDefaults()

	start, err := f.resolveEndpoint(ctx, q.StartID, q.StartName, opts.StartType)
	if err != nil {
		return nil, err
	}

	var endID string
	if q.EndID != "" || q.EndName != "" {
		end, err := f.resolveEndpoint(ctx, q.EndID, q.EndName, opts.EndType)
		if err != nil {
			return nil, err
		}
		endID = end.ID
	}

	var filter *graphstore.NeighbourFilter
	if len(opts.RelationTypes) > 0 {
		filter = &graphstore.NeighbourFilter{RelationTypes: opts.RelationTypes}
	}

	var paths []knowledge.Path
	visited := map[string]bool{start.ID: true}
	initial := knowledge.Path{Steps: []knowledge.PathStep{{Entity: *start}}}

	f.expand(ctx, initial, visited, endID, opts, filter, &paths)

	sortPaths(paths)
	if len(paths) > opts.MaxPaths {
		paths = paths[:opts.MaxPaths]
	}
	return paths, nil
}

// expand recursively extends current by one hop at a time, recording every
// simple path that satisfies the end-entity/end-type constraints, up to
// max_hops and the total-paths budget.
func (f *Finder) expand(ctx context.Context, current knowledge.Path, visited map[string]bool, endID string, opts Options, filter *graphstore.NeighbourFilter, out *[]knowledge.Path) {
	if len(*out) >= opts.MaxPaths {
		return
	}
	last := current.Steps[len(current.Steps)-1].Entity

	if current.Hops > 0 {
		matchesEnd := endID == "" || last.ID == endID
		matchesType := opts.EndType == "" || last.Type == opts.EndType
		if matchesEnd && matchesType {
			*out = append(*out, current)
		}
		if endID != "" && last.ID == endID {
			return
		}
	}
	if current.Hops >= opts.MaxHops {
		return
	}

	neighbours, relations, err := f.Graph.FetchNeighbours(ctx, last.ID, 1, filter)
	if err != nil {
		return
	}
	byOther := make(map[string]knowledge.Relation, len(relations))
	for _, r := range relations {
		other := r.TargetID
		if other == last.ID {
			other = r.SourceID
		}
		if existing, ok := byOther[other]; !ok || r.Confidence > existing.Confidence {
			byOther[other] = r
		}
	}

	for _, n := range neighbours {
		if visited[n.ID] || len(*out) >= opts.MaxPaths {
			continue
		}
		rel, ok := byOther[n.ID]
		if !ok {
			continue
		}

		next := clonePath(current)
		next.Steps = append(next.Steps, knowledge.PathStep{Entity: n, Relation: &rel})
		next.Hops = current.Hops + 1
		next.Score = scorePath(next)

		visited[n.ID] = true
		f.expand(ctx, next, visited, endID, opts, filter, out)
		delete(visited, n.ID)
	}
}

func clonePath(p knowledge.Path) knowledge.Path {
	steps := make([]knowledge.PathStep, len(p.Steps))
	copy(steps, p.Steps)
	return knowledge.Path{Steps: steps, Hops: p.Hops, Score: p.Score}
}

func scorePath(p knowledge.Path) float64 {
	if p.Hops == 0 {
		return 0
	}
	var sumConfidence float64
	var mostRecent time.Time
	for _, step := range p.Steps {
		if step.Relation == nil {
			continue
		}
		sumConfidence += step.Relation.Confidence
		if step.Relation.CreatedAt.After(mostRecent) {
			mostRecent = step.Relation.CreatedAt
		}
	}
	return (sumConfidence / float64(p.Hops)) * recencyFactor(mostRecent)
}

// recencyFactor linearly interpolates from 1.0 (this year) to a 0.2 floor at
// recencyWindowYears or older, per spec.md §4.6. A relation carries no
// explicit provenance year field, so its CreatedAt stands in for "most
// recent provenance year".
func recencyFactor(t time.Time) float64 {
	if t.IsZero() {
		return 1.0
	}
	age := time.Now().Year() - t.Year()
	if age <= 0 {
		return 1.0
	}
	if age >= recencyWindowYears {
		return 0.2
	}
	return 1.0 - 0.8*(float64(age)/float64(recencyWindowYears))
}

func sortPaths(paths []knowledge.Path) {
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Score != paths[j].Score {
			return paths[i].Score > paths[j].Score
		}
		if paths[i].Hops != paths[j].Hops {
			return paths[i].Hops < paths[j].Hops
		}
		return strings.Join(paths[i].EntityIDs(), "|") < strings.Join(paths[j].EntityIDs(), "|")
	})
}

func (f *Finder) resolveEndpoint(ctx context.Context, id, name string, t knowledge.EntityType) (*knowledge.Entity, error) {
	if id != "" {
		return f.Graph.FetchByID(ctx, id)
	}
	if name == "" {
		return nil, kinderr.New(kinderr.ValidationError, "path search requires a start entity ID or name")
	}
	normalized := knowledge.Normalize(name)
	if t != "" {
		return f.Graph.FetchByName(ctx, t, normalized)
	}
	for et := range allEntityTypes() {
		if e, err := f.Graph.FetchByName(ctx, et, normalized); err == nil {
			return e, nil
		}
	}
	return nil, kinderr.New(kinderr.NotFound, "no entity named %q found in any type", name)
}

func allEntityTypes() map[knowledge.EntityType]struct{} {
	return map[knowledge.EntityType]struct{}{
		knowledge.EntityAIModel: {}, knowledge.EntityOrganization: {}, knowledge.EntityPerson: {},
		knowledge.EntityTechnique: {}, knowledge.EntityConcept: {}, knowledge.EntityPublication: {},
		knowledge.EntityBenchmark: {}, knowledge.EntityEvent: {},
	}
}
