// Package memory implements vectorstore.Store in-process, adapted from the
// teacher's rag/store.InMemoryVectorStore: brute-force cosine similarity
// search, including its bubble-sort-style ranking pass (the corpus size this
// adapter targets — per-entity embeddings for one deployment's graph — never
// approaches a scale where the sort's O(n^2) behaviour matters).
package memory

import (
	"context"
	"sync"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/vectorstore"
)

type entry struct {
	vector  []float32
	payload map[string]any
}

// Store is an in-memory vectorstore.Store. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]entry
	dimension int
}

// New constructs an empty in-memory vector store.
func New() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Upsert implements vectorstore.Store.
func (s *Store) Upsert(ctx context.Context, entityID string, vector []float32, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		s.dimension = len(vector)
	} else if len(vector) != s.dimension {
		return kinderr.New(kinderr.ValidationError, "vector dimension %d does not match deployment dimension %d", len(vector), s.dimension)
	}
	s.entries[entityID] = entry{vector: vector, payload: payload}
	return nil
}

type scored struct {
	id    string
	score float64
}

// Search implements vectorstore.Store, ranking with the teacher's own
// bubble-sort-style descending pass over cosine similarity.
func (s *Store) Search(ctx context.Context, vector []float32, topK int, minSimilarity float64) ([]vectorstore.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 {
		return nil, kinderr.New(kinderr.ValidationError, "topK must be positive")
	}
	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, kinderr.New(kinderr.ValidationError, "query vector dimension %d does not match deployment dimension %d", len(vector), s.dimension)
	}

	scores := make([]scored, 0, len(s.entries))
	for id, e := range s.entries {
		scores = append(scores, scored{id: id, score: vectorstore.CosineSimilarity32(vector, e.vector)})
	}

	for i := range scores {
		for j := i + 1; j < len(scores); j++ {
			if scores[j].score > scores[i].score {
				scores[i], scores[j] = scores[j], scores[i]
			}
		}
	}

	var out []vectorstore.SearchResult
	for _, sc := range scores {
		if sc.score < minSimilarity {
			continue
		}
		out = append(out, vectorstore.SearchResult{EntityID: sc.id, Score: sc.score, Payload: s.entries[sc.id].payload})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

// Similarity implements vectorstore.Store.
func (s *Store) Similarity(ctx context.Context, entityIDA, entityIDB string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.entries[entityIDA]
	if !ok {
		return 0, kinderr.New(kinderr.NotFound, "entity %q has no vector", entityIDA)
	}
	b, ok := s.entries[entityIDB]
	if !ok {
		return 0, kinderr.New(kinderr.NotFound, "entity %q has no vector", entityIDB)
	}
	return vectorstore.CosineSimilarity32(a.vector, b.vector), nil
}

// Delete implements vectorstore.Store.
func (s *Store) Delete(ctx context.Context, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, entityID)
	return nil
}

// Close implements vectorstore.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
	return nil
}

// Len reports the number of stored vectors, used by tests and GetStats-style
// diagnostics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ vectorstore.Store = (*Store)(nil)
