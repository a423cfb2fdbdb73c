// Package pgvector implements vectorstore.Store against PostgreSQL with the
// pgvector extension. New relative to the teacher: grounded on
// MrWong99-glyphoxa's go.mod, which pairs pgvector-go with jackc/pgx/v5 for
// an agent memory store — the same pairing used here for entity-embedding
// storage, with cosine distance via the `<=>` operator and upsert via
// `ON CONFLICT`.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/vectorstore"
)

// Store is a pgvector-backed vectorstore.Store.
type Store struct {
	pool      *pgxpool.Pool
	tableName string
}

// Options configures the pgvector backend.
type Options struct {
	ConnString string
	TableName  string // default "entity_embeddings"
}

// New connects to Postgres and returns a Store. InitSchema must be called
// once per deployment before first use.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.TableName == "" {
		opts.TableName = "entity_embeddings"
	}
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "failed to connect to pgvector store")
	}
	return &Store{pool: pool, tableName: opts.TableName}, nil
}

// InitSchema creates the embeddings table and its vector index if absent.
// dimension must match every vector passed to Upsert thereafter.
func (s *Store) InitSchema(ctx context.Context, dimension int) error {
	_, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return kinderr.Wrap(kinderr.TransientIO, err, "failed to create vector extension")
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		entity_id TEXT PRIMARY KEY,
		embedding vector(%d) NOT NULL,
		payload JSONB NOT NULL DEFAULT '{}'::jsonb
	)`, s.tableName, dimension)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return kinderr.Wrap(kinderr.TransientIO, err, "failed to create embeddings table")
	}
	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING ivfflat (embedding vector_cosine_ops)", s.tableName, s.tableName)
	if _, err := s.pool.Exec(ctx, idx); err != nil {
		return kinderr.Wrap(kinderr.TransientIO, err, "failed to create embedding index")
	}
	return nil
}

// Upsert implements vectorstore.Store.
func (s *Store) Upsert(ctx context.Context, entityID string, vector []float32, payload map[string]any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return kinderr.Wrap(kinderr.ValidationError, err, "failed to marshal payload")
	}
	q := fmt.Sprintf(`INSERT INTO %s (entity_id, embedding, payload) VALUES ($1, $2, $3)
		ON CONFLICT (entity_id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`, s.tableName)
	_, err = s.pool.Exec(ctx, q, entityID, pgv.NewVector(vector), payloadJSON)
	if err != nil {
		return kinderr.Wrap(kinderr.TransientIO, err, "pgvector upsert failed")
	}
	return nil
}

// Search implements vectorstore.Store using the `<=>` cosine-distance
// operator; pgvector returns distance (1 - cosine similarity), so the score
// reported back is 1 - distance.
func (s *Store) Search(ctx context.Context, vector []float32, topK int, minSimilarity float64) ([]vectorstore.SearchResult, error) {
	if topK <= 0 {
		return nil, kinderr.New(kinderr.ValidationError, "topK must be positive")
	}
	maxDistance := 1 - minSimilarity
	q := fmt.Sprintf(`SELECT entity_id, payload, (embedding <=> $1) AS distance FROM %s
		WHERE (embedding <=> $1) <= $2
		ORDER BY distance ASC LIMIT $3`, s.tableName)

	rows, err := s.pool.Query(ctx, q, pgv.NewVector(vector), maxDistance, topK)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "pgvector search failed")
	}
	defer rows.Close()

	var out []vectorstore.SearchResult
	for rows.Next() {
		var entityID string
		var payloadJSON []byte
		var distance float64
		if err := rows.Scan(&entityID, &payloadJSON, &distance); err != nil {
			return nil, kinderr.Wrap(kinderr.TransientIO, err, "pgvector row scan failed")
		}
		var payload map[string]any
		_ = json.Unmarshal(payloadJSON, &payload)
		out = append(out, vectorstore.SearchResult{EntityID: entityID, Score: 1 - distance, Payload: payload})
	}
	return out, rows.Err()
}

// Similarity implements vectorstore.Store.
func (s *Store) Similarity(ctx context.Context, entityIDA, entityIDB string) (float64, error) {
	q := fmt.Sprintf(`SELECT (a.embedding <=> b.embedding) FROM %s a, %s b WHERE a.entity_id = $1 AND b.entity_id = $2`, s.tableName, s.tableName)
	var distance float64
	if err := s.pool.QueryRow(ctx, q, entityIDA, entityIDB).Scan(&distance); err != nil {
		return 0, kinderr.Wrap(kinderr.NotFound, err, "pgvector similarity lookup failed")
	}
	return 1 - distance, nil
}

// Delete implements vectorstore.Store.
func (s *Store) Delete(ctx context.Context, entityID string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE entity_id = $1", s.tableName)
	_, err := s.pool.Exec(ctx, q, entityID)
	if err != nil {
		return kinderr.Wrap(kinderr.TransientIO, err, "pgvector delete failed")
	}
	return nil
}

// Close implements vectorstore.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ vectorstore.Store = (*Store)(nil)
