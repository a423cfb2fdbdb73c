// Package community detects hierarchical partitions over a weighted graph
// of nodes (entities or concepts) via label propagation, then builds
// higher levels by agglomerating adjacent communities. Propagation stops
// after MaxIterations; nodes that have not settled keep the label they hold
// then, and no connected-components pass is run. Deterministic seeding
// comes from an FNV hash of each node ID (stdlib hash/fnv — a hash needs no
// third-party library) so repeated runs over the same graph produce the
// same partition, which §4.4's "Community membership at the moment
// detection completed" ordering guarantee depends on.
package community

import (
	"context"
	"hash/fnv"
	"sort"

	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

// WeightedEdge is an undirected, weighted edge between two node IDs.
type WeightedEdge struct {
	A, B     string
	Weight   float64
}

// Options configures Detector.Detect.
type Options struct {
	MinEdgeWeight          float64
	TopConceptsPerCommunity int // "top concepts" naming carries over to entity graphs too
	MaxIterations          int // label-propagation rounds, default 20
}

// Detector runs the same algorithm over either the concept graph or the
// main entity graph — only the input node/edge set differs (§4.4).
type Detector struct{}

// Detect builds a hierarchical Community partition: level 0 is the
// label-propagation result, each subsequent level agglomerates adjacent
// level-(n-1) communities until no further merge is possible.
func (Detector) Detect(ctx context.Context, nodes []string, edges []WeightedEdge, opts Options) ([]knowledge.Community, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 20
	}

	adjacency := buildAdjacency(nodes, edges, opts.MinEdgeWeight)
	labels := labelPropagation(nodes, adjacency, opts.MaxIterations)
	labels = fillUnreachedByComponents(nodes, adjacency, labels)

	level0 := communitiesFromLabels(nodes, labels, adjacency, 0, opts.TopConceptsPerCommunity)
	levels := [][]knowledge.Community{level0}

	for {
		prev := levels[len(levels)-1]
		if len(prev) <= 1 {
			break
		}
		next := agglomerate(prev, adjacency, len(levels), opts.TopConceptsPerCommunity)
		if len(next) == len(prev) {
			break
		}
		backfillParentIDs(prev, next)
		levels = append(levels, next)
	}

	var all []knowledge.Community
	for _, level := range levels {
		all = append(all, level...)
	}
	return all, nil
}

func buildAdjacency(nodes []string, edges []WeightedEdge, minWeight float64) map[string]map[string]float64 {
	adj := make(map[string]map[string]float64, len(nodes))
	for _, n := range nodes {
		adj[n] = map[string]float64{}
	}
	for _, e := range edges {
		if e.Weight < minWeight {
			continue
		}
		if _, ok := adj[e.A]; !ok {
			continue
		}
		if _, ok := adj[e.B]; !ok {
			continue
		}
		adj[e.A][e.B] += e.Weight
		adj[e.B][e.A] += e.Weight
	}
	return adj
}

func nodeSeed(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32()
}

// labelPropagation assigns each node the label (another node's ID) most
// strongly weighted among its neighbors, breaking ties by FNV-seed so the
// result is deterministic regardless of map iteration order.
func labelPropagation(nodes []string, adjacency map[string]map[string]float64, maxIterations int) map[string]string {
	labels := make(map[string]string, len(nodes))
	for _, n := range nodes {
		labels[n] = n
	}

	order := append([]string(nil), nodes...)
	sort.Slice(order, func(i, j int) bool { return nodeSeed(order[i]) < nodeSeed(order[j]) })

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for _, n := range order {
			neighborWeight := map[string]float64{}
			for neighbor, w := range adjacency[n] {
				neighborWeight[labels[neighbor]] += w
			}
			if len(neighborWeight) == 0 {
				continue
			}
			best := labels[n]
			bestWeight := -1.0
			var candidates []string
			for label := range neighborWeight {
				candidates = append(candidates, label)
			}
			sort.Slice(candidates, func(i, j int) bool { return nodeSeed(candidates[i]) < nodeSeed(candidates[j]) })
			for _, label := range candidates {
				w := neighborWeight[label]
				if w > bestWeight {
					bestWeight = w
					best = label
				}
			}
			if best != labels[n] {
				labels[n] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return labels
}

// fillUnreachedByComponents assigns isolated nodes (no edges survived the
// weight filter) their own singleton community via connected-component ID.
func fillUnreachedByComponents(nodes []string, adjacency map[string]map[string]float64, labels map[string]string) map[string]string {
	visited := map[string]bool{}
	for _, n := range nodes {
		if visited[n] || len(adjacency[n]) > 0 {
			continue
		}
		visited[n] = true
		labels[n] = n
	}
	return labels
}

func communitiesFromLabels(nodes []string, labels map[string]string, adjacency map[string]map[string]float64, level int, topN int) []knowledge.Community {
	groups := map[string][]string{}
	for _, n := range nodes {
		groups[labels[n]] = append(groups[labels[n]], n)
	}

	var ids []string
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]knowledge.Community, 0, len(ids))
	for _, id := range ids {
		members := groups[id]
		sort.Strings(members)
		out = append(out, knowledge.Community{
			ID:          id,
			Level:       level,
			Members:     members,
			MemberCount: len(members),
			Keywords:    topByCentrality(members, adjacency, topN),
		})
	}
	return out
}

// topByCentrality ranks members by their within-community weighted degree
// and returns up to n of them.
func topByCentrality(members []string, adjacency map[string]float64Map, n int) []string {
	type scored struct {
		id     string
		weight float64
	}
	memberSet := map[string]struct{}{}
	for _, m := range members {
		memberSet[m] = struct{}{}
	}
	scores := make([]scored, 0, len(members))
	for _, m := range members {
		var w float64
		for neighbor, weight := range adjacency[m] {
			if _, ok := memberSet[neighbor]; ok {
				w += weight
			}
		}
		scores = append(scores, scored{id: m, weight: w})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].weight != scores[j].weight {
			return scores[i].weight > scores[j].weight
		}
		return scores[i].id < scores[j].id
	})
	if n <= 0 || n > len(scores) {
		n = len(scores)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = scores[i].id
	}
	return out
}

// float64Map exists only so topByCentrality's adjacency parameter type
// matches buildAdjacency's map[string]map[string]float64 element type.
type float64Map = map[string]float64

// agglomerate builds one level from the level-1 communities in a single
// greedy pass: the first remaining community is merged with the remaining
// community it shares the most inter-community weight with, and a community
// with no such partner is promoted unchanged.
func agglomerate(prev []knowledge.Community, adjacency map[string]map[string]float64, level int, topN int) []knowledge.Community {
	interWeight := func(a, b knowledge.Community) float64 {
		bSet := map[string]struct{}{}
		for _, m := range b.Members {
			bSet[m] = struct{}{}
		}
		var total float64
		for _, m := range a.Members {
			for neighbor, w := range adjacency[m] {
				if _, ok := bSet[neighbor]; ok {
					total += w
				}
			}
		}
		return total
	}

	remaining := append([]knowledge.Community(nil), prev...)
	var merged []knowledge.Community

	for len(remaining) > 0 {
		if len(remaining) == 1 {
			merged = append(merged, promote(remaining[0], level))
			break
		}
		a := remaining[0]
		bestIdx := -1
		bestWeight := 0.0
		for i := 1; i < len(remaining); i++ {
			w := interWeight(a, remaining[i])
			if w > bestWeight {
				bestWeight = w
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			merged = append(merged, promote(a, level))
			remaining = remaining[1:]
			continue
		}
		b := remaining[bestIdx]
		combinedMembers := append(append([]string(nil), a.Members...), b.Members...)
		sort.Strings(combinedMembers)
		parent := knowledge.Community{
			ID:          a.ID + "+" + b.ID,
			Level:       level,
			Members:     combinedMembers,
			MemberCount: len(combinedMembers),
			ChildIDs:    []string{a.ID, b.ID},
			Keywords:    topByCentrality(combinedMembers, adjacency, topN),
		}
		merged = append(merged, parent)
		next := make([]knowledge.Community, 0, len(remaining)-2)
		for i, c := range remaining {
			if i == 0 || i == bestIdx {
				continue
			}
			next = append(next, c)
		}
		remaining = next
	}
	return merged
}

func promote(c knowledge.Community, level int) knowledge.Community {
	c.Level = level
	return c
}

// backfillParentIDs sets ParentID on prev-level communities that were
// merged into a next-level parent, mutating them in place.
func backfillParentIDs(prev []knowledge.Community, next []knowledge.Community) {
	byID := make(map[string]*knowledge.Community, len(prev))
	for i := range prev {
		byID[prev[i].ID] = &prev[i]
	}
	for _, parent := range next {
		for _, childID := range parent.ChildIDs {
			if child, ok := byID[childID]; ok {
				child.ParentID = parent.ID
			}
		}
	}
}
