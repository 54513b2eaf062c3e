package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		out := embedResponse{}
		for i := range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{float32(i), 1})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text")
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}}, vecs)

	empty, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestOllamaEmbedder_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(srv.URL, "m").Embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "expected 2 embeddings, got 1")
}

func TestOpenAIEmbedder_SortsByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[
			{"object":"embedding","index":1,"embedding":[0.5,0.5]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL, "k", "m")
	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0.5, 0.5}}, vecs)
	assert.Equal(t, "m", e.Model())
}

type failing struct{}

func (failing) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("connection refused")
}
func (failing) Model() string { return "none" }

type blank struct{}

func (blank) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}
func (blank) Model() string { return "blank" }

func TestSingle(t *testing.T) {
	v, err := Single(context.Background(), failing{}, "x")
	assert.Error(t, err)
	assert.Empty(t, v)
	assert.NotNil(t, v)

	v, err = Single(context.Background(), blank{}, "x")
	assert.ErrorIs(t, err, ErrNoEmbedding)
	assert.Empty(t, v)
}

func TestDocument(t *testing.T) {
	doc := Document("pkg/mod.py", "Foo.bar", "method", "Does things.", "def bar(self):\n    pass")
	assert.Equal(t, "File: pkg/mod.py\nSymbol: Foo.bar\nType: method\nSummary: Does things.\nCode:\ndef bar(self):\n    pass", doc)
}

func TestNew(t *testing.T) {
	e, err := New(Config{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", e.Model())

	_, err = New(Config{Provider: "nope"})
	assert.Error(t, err)
}

func TestOllamaEmbedder_Batches(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.LessOrEqual(t, len(req.Input), ollamaBatch)
		out := embedResponse{}
		for range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{float32(calls)})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	texts := make([]string, ollamaBatch+5)
	vecs, err := NewOllamaEmbedder(srv.URL, "m").Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	assert.Equal(t, 2, calls)
	assert.Equal(t, []float32{1}, vecs[0])
	assert.Equal(t, []float32{2}, vecs[len(vecs)-1])
}
