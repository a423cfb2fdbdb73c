package path

import (
	"context"

	"github.com/nahisaho/YAGOKORO-sub003/graphstore"
	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

// FindShortest returns the fewest-hops path between start and end, or
// (knowledge.Path{}, false) if none exists within options.MaxHops.
func (f *Finder) FindShortest(ctx context.Context, startID, endID string, opts Options) (knowledge.Path, bool, error) {
	paths, err := f.FindPaths(ctx, Query{StartID: startID, EndID: endID, Options: opts})
	if err != nil {
		return knowledge.Path{}, false, err
	}
	if len(paths) == 0 {
		return knowledge.Path{}, false, nil
	}
	shortest := paths[0]
	for _, p := range paths[1:] {
		if p.Hops < shortest.Hops {
			shortest = p
		}
	}
	return shortest, true, nil
}

// AreConnected reports whether any simple path connects startID and endID
// within options.MaxHops.
func (f *Finder) AreConnected(ctx context.Context, startID, endID string, opts Options) (bool, error) {
	_, found, err := f.FindShortest(ctx, startID, endID, opts)
	return found, err
}

// DegreesOfSeparation returns the hop count of the shortest path between
// startID and endID, or -1 if they are not connected within options.MaxHops.
func (f *Finder) DegreesOfSeparation(ctx context.Context, startID, endID string, opts Options) (int, error) {
	shortest, found, err := f.FindShortest(ctx, startID, endID, opts)
	if err != nil {
		return -1, err
	}
	if !found {
		return -1, nil
	}
	return shortest.Hops, nil
}

// CommonConnections returns the entities found in both a's and b's 1-hop
// neighbourhoods, excluding a and b themselves (so a direct edge between a
// and b does not make either one a "common" third party).
func (f *Finder) CommonConnections(ctx context.Context, aID, bID string, opts Options) ([]knowledge.Entity, error) {
	neighboursOf := func(id string) (map[string]knowledge.Entity, error) {
		oneHop := opts
		oneHop.MaxHops = 1
		entities, _, err := f.Graph.FetchNeighbours(ctx, id, 1, relationFilter(oneHop))
		if err != nil {
			return nil, err
		}
		out := make(map[string]knowledge.Entity, len(entities))
		for _, e := range entities {
			out[e.ID] = e
		}
		return out, nil
	}

	aNeighbours, err := neighboursOf(aID)
	if err != nil {
		return nil, err
	}
	bNeighbours, err := neighboursOf(bID)
	if err != nil {
		return nil, err
	}

	var common []knowledge.Entity
	for id, e := range aNeighbours {
		if id == aID || id == bID {
			continue
		}
		if _, ok := bNeighbours[id]; ok {
			common = append(common, e)
		}
	}
	return common, nil
}

// FindRelationPaths resolves two entities by name and returns the simple
// paths connecting them, the find_paths convenience form keyed on names
// rather than IDs.
func (f *Finder) FindRelationPaths(ctx context.Context, nameA, nameB string, opts Options) ([]knowledge.Path, error) {
	a, err := f.resolveEndpoint(ctx, "", nameA, opts.StartType)
	if err != nil {
		return nil, err
	}
	b, err := f.resolveEndpoint(ctx, "", nameB, opts.EndType)
	if err != nil {
		return nil, err
	}
	if a.ID == b.ID {
		return nil, kinderr.New(kinderr.ValidationError, "start and end resolve to the same entity %q", a.ID)
	}
	return f.FindPaths(ctx, Query{StartID: a.ID, EndID: b.ID, Options: opts})
}

func relationFilter(opts Options) *graphstore.NeighbourFilter {
	if len(opts.RelationTypes) == 0 {
		return nil
	}
	return &graphstore.NeighbourFilter{RelationTypes: opts.RelationTypes}
}
