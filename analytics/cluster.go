// Package analytics implements cluster and trend analysis over the
// knowledge graph's communities (C9, spec §4.9): ClusterAnalyzer annotates
// existing communities with publication metrics and inter-cluster
// connection strength, and locates under-connected cluster pairs enriched
// with candidate bridge topics; TrendPredictor fits a simple linear trend
// to monthly activity and projects lifecycle-phase transitions. Grounded
// on `community.Detector`'s own partition shape (no teacher analogue
// exists for analytics; this is new per DESIGN NOTES), reusing
// `vectorstore.CosineSimilarity32` (teacher's cosine-similarity helper,
// already in vectorstore) for embedding-based bridge detection and stdlib
// `math` for regression per DESIGN.md's justification (no statistics
// library appears anywhere in the example pack).
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/nahisaho/YAGOKORO-sub003/graphstore"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
	"github.com/nahisaho/YAGOKORO-sub003/vectorstore"
)

const defaultMinClusterSize = 2

// ClusterSummary is one community annotated with publication metrics and
// its connection strength to every other analyzed cluster.
type ClusterSummary struct {
	Community          knowledge.Community
	AvgPublicationYear float64
	PublicationCount   int
	GrowthRate         float64 // (recent 3y count - prior count) / prior count; 1 if only recent publications exist, 0 if there are none
	ConnectionStrength map[string]float64
}

// ClusterGap is an under-connected pair of clusters plus candidate bridge
// topics that could plausibly connect them.
type ClusterGap struct {
	ClusterAID   string
	ClusterBID   string
	Strength     float64
	BridgeTopics []string
}

// ClusterAnalyzer annotates communities with publication-derived metrics
// and finds structurally distant cluster pairs. Graph is optional; when
// set, it is used to discover "shared entities" bridge topics via 1-hop
// neighbour lookups.
type ClusterAnalyzer struct {
	Graph          graphstore.Store
	MinClusterSize int
	GapThreshold   float64 // connection strength below which a pair counts as a gap, default 0.1
}

func (a ClusterAnalyzer) withDefaults() ClusterAnalyzer {
	if a.MinClusterSize <= 0 {
		a.MinClusterSize = defaultMinClusterSize
	}
	if a.GapThreshold <= 0 {
		a.GapThreshold = 0.1
	}
	return a
}

// AnalyzeExistingClusters annotates every community with at least
// MinClusterSize members, given the entities keyed by ID (for publication
// years) and every relation in the analyzed subgraph (for connection
// strength).
func (a ClusterAnalyzer) AnalyzeExistingClusters(communities []knowledge.Community, entitiesByID map[string]knowledge.Entity, relations []knowledge.Relation) []ClusterSummary {
	a = a.withDefaults()

	var eligible []knowledge.Community
	for _, c := range communities {
		if len(c.Members) >= a.MinClusterSize {
			eligible = append(eligible, c)
		}
	}

	memberCommunity := make(map[string]string) // entity ID -> community ID
	for _, c := range eligible {
		for _, m := range c.Members {
			memberCommunity[m] = c.ID
		}
	}

	// crossCounts[a][b] = number of relations with one endpoint in a and the
	// other in b (a != b).
	crossCounts := make(map[string]map[string]int)
	addCross := func(x, y string) {
		if crossCounts[x] == nil {
			crossCounts[x] = make(map[string]int)
		}
		crossCounts[x][y]++
	}
	for _, r := range relations {
		ca, okA := memberCommunity[r.SourceID]
		cb, okB := memberCommunity[r.TargetID]
		if !okA || !okB || ca == cb {
			continue
		}
		addCross(ca, cb)
		addCross(cb, ca)
	}

	now := time.Now().Year()
	summaries := make([]ClusterSummary, 0, len(eligible))
	for _, c := range eligible {
		var years []int
		for _, m := range c.Members {
			if e, ok := entitiesByID[m]; ok && e.Type == knowledge.EntityPublication {
				if y, ok := e.Properties["year"]; ok {
					if yi, ok := toInt(y); ok && yi > 0 {
						years = append(years, yi)
					}
				}
			}
		}

		summary := ClusterSummary{Community: c, ConnectionStrength: map[string]float64{}}
		if len(years) > 0 {
			var sum int
			recent, prior := 0, 0
			for _, y := range years {
				sum += y
				if y >= now-3 {
					recent++
				} else {
					prior++
				}
			}
			summary.AvgPublicationYear = float64(sum) / float64(len(years))
			summary.PublicationCount = len(years)
			if prior > 0 {
				summary.GrowthRate = float64(recent-prior) / float64(prior)
			} else if recent > 0 {
				summary.GrowthRate = 1.0
			}
		}

		denom := float64(len(eligible) - 1)
		for _, other := range eligible {
			if other.ID == c.ID {
				continue
			}
			count := crossCounts[c.ID][other.ID]
			strength := float64(count) / (float64(len(c.Members)) * float64(len(other.Members)))
			if strength > 1 {
				strength = 1
			}
			summary.ConnectionStrength[other.ID] = strength
		}
		_ = denom
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Community.ID < summaries[j].Community.ID })
	return summaries
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// FindClusterGaps returns every pair of summaries whose connection strength
// is below GapThreshold, ordered by ascending strength, each enriched with
// bridge-topic candidates in priority order: shared keywords, then
// vector-semantic bridges between member entities, then shared 1-hop
// neighbour entities (requires Graph).
func (a ClusterAnalyzer) FindClusterGaps(ctx context.Context, summaries []ClusterSummary, entitiesByID map[string]knowledge.Entity) []ClusterGap {
	a = a.withDefaults()

	var gaps []ClusterGap
	for i := 0; i < len(summaries); i++ {
		for j := i + 1; j < len(summaries); j++ {
			ca, cb := summaries[i], summaries[j]
			strength := ca.ConnectionStrength[cb.Community.ID]
			if strength >= a.GapThreshold {
				continue
			}
			gaps = append(gaps, ClusterGap{
				ClusterAID:   ca.Community.ID,
				ClusterBID:   cb.Community.ID,
				Strength:     strength,
				BridgeTopics: a.bridgeTopics(ctx, ca.Community, cb.Community, entitiesByID),
			})
		}
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].Strength < gaps[j].Strength })
	return gaps
}

func (a ClusterAnalyzer) bridgeTopics(ctx context.Context, ca, cb knowledge.Community, entitiesByID map[string]knowledge.Entity) []string {
	if shared := sharedKeywords(ca, cb); len(shared) > 0 {
		return shared
	}
	if bridges := a.semanticBridges(ca, cb, entitiesByID); len(bridges) > 0 {
		return bridges
	}
	if a.Graph != nil {
		if shared := a.sharedNeighbourEntities(ctx, ca, cb); len(shared) > 0 {
			return shared
		}
	}
	return nil
}

func sharedKeywords(ca, cb knowledge.Community) []string {
	inA := make(map[string]bool, len(ca.Keywords))
	for _, k := range ca.Keywords {
		inA[k] = true
	}
	var shared []string
	for _, k := range cb.Keywords {
		if inA[k] {
			shared = append(shared, k)
		}
	}
	sort.Strings(shared)
	return shared
}

// semanticBridges pairs each cluster's members by embedding cosine
// similarity, returning the names of the single closest cross-cluster pair
// above a fixed similarity floor.
func (a ClusterAnalyzer) semanticBridges(ca, cb knowledge.Community, entitiesByID map[string]knowledge.Entity) []string {
	const similarityFloor = 0.75
	var bestScore float64
	var bestPair []string
	for _, ma := range ca.Members {
		ea, ok := entitiesByID[ma]
		if !ok || len(ea.Embedding) == 0 {
			continue
		}
		for _, mb := range cb.Members {
			eb, ok := entitiesByID[mb]
			if !ok || len(eb.Embedding) == 0 {
				continue
			}
			score := vectorstore.CosineSimilarity32(ea.Embedding, eb.Embedding)
			if score > bestScore {
				bestScore = score
				bestPair = []string{ea.Name, eb.Name}
			}
		}
	}
	if bestScore >= similarityFloor {
		return bestPair
	}
	return nil
}

func (a ClusterAnalyzer) sharedNeighbourEntities(ctx context.Context, ca, cb knowledge.Community) []string {
	neighboursOf := func(members []string) map[string]string {
		out := make(map[string]string)
		for _, m := range members {
			entities, _, err := a.Graph.FetchNeighbours(ctx, m, 1, nil)
			if err != nil {
				continue
			}
			for _, e := range entities {
				out[e.ID] = e.Name
			}
		}
		return out
	}
	aNeighbours := neighboursOf(ca.Members)
	bNeighbours := neighboursOf(cb.Members)

	var shared []string
	for id, name := range aNeighbours {
		if _, ok := bNeighbours[id]; ok {
			shared = append(shared, name)
		}
	}
	sort.Strings(shared)
	return shared
}
