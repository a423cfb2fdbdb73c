// Package embedclient adapts langchaingo's embeddings.Embedder to the
// spec's §6 embed/embed_many/get_dimension contract, generalized from the
// teacher's rag/adapters.go LangChainEmbedder (float64->float32 conversion,
// dimension probed via a test embed call since langchaingo embedders don't
// expose it directly).
package embedclient

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
)

// Client is the embedding-client contract (§6).
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	GetDimension(ctx context.Context) (int, error)
}

// LangchainClient adapts a langchaingo embeddings.Embedder to Client.
type LangchainClient struct {
	embedder embeddings.Embedder

	mu        sync.Mutex
	dimension int // 0 until probed
}

// New wraps embedder.
func New(embedder embeddings.Embedder) *LangchainClient {
	return &LangchainClient{embedder: embedder}
}

// Embed implements Client.
func (c *LangchainClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "embed call failed")
	}
	return toFloat32(vec), nil
}

// EmbedMany implements Client.
func (c *LangchainClient) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, kinderr.New(kinderr.ValidationError, "embed_many requires at least one text")
	}
	vecs, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.TransientIO, err, "embed_many call failed")
	}
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		out[i] = toFloat32(v)
	}
	return out, nil
}

// GetDimension implements Client, caching the result of a one-off probe
// embed since langchaingo embedders don't expose dimension directly.
func (c *LangchainClient) GetDimension(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dimension > 0 {
		return c.dimension, nil
	}
	probe, err := c.embedder.EmbedQuery(ctx, "test")
	if err != nil {
		return 0, kinderr.Wrap(kinderr.TransientIO, err, "dimension probe embed failed")
	}
	c.dimension = len(probe)
	return c.dimension, nil
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

var _ Client = (*LangchainClient)(nil)
