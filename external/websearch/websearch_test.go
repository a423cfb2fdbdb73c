package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
)

func TestSearchParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-token", r.Header.Get("X-Subscription-Token"))
		w.Write([]byte(`{"web":{"results":[{"title":"GraphRAG","url":"https://example.com/graphrag","description":"a survey"}]}}`))
	}))
	defer server.Close()

	c := New("secret-token")
	c.BaseURL = server.URL

	results, err := c.Search(context.Background(), "graphrag")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "GraphRAG", results[0].Title)
	assert.Equal(t, "https://example.com/graphrag", results[0].URL)
}

func TestSearchMissingAPIKey(t *testing.T) {
	c := New("")
	_, err := c.Search(context.Background(), "graphrag")
	require.Error(t, err)
	assert.Equal(t, kinderr.ValidationError, kinderr.KindOf(err))
}

func TestSearchRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := New("secret-token")
	c.BaseURL = server.URL
	_, err := c.Search(context.Background(), "graphrag")
	require.Error(t, err)
	assert.Equal(t, kinderr.RateLimited, kinderr.KindOf(err))
}
