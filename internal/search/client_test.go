package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/askfloyd/orchestrator/internal/config"
)

func testConfig(baseURL string) config.SearchConfig {
	return config.SearchConfig{
		BaseURL:        baseURL,
		Index:          "docs",
		Timeout:        2 * time.Second,
		MinScore:       1.0,
		DefaultTop:     6,
		SourceField:    "sourcepage",
		ContentField:   "content",
		SemanticConfig: "default",
	}
}

func TestFilterEscaping(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "internal", "category ne 'internal'"},
		{"quote doubled", "o'brien", "category ne 'o''brien'"},
		{"injection attempt", "x' or category ne 'y", "category ne 'x'' or category ne ''y'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filter(tt.value))
		})
	}
}

func TestRetrieveScoreCutoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]interface{}{
				{"sourcepage": "a.txt", "content": "low", "@search.score": 0.4},
				{"sourcepage": "b.txt", "content": "high", "@search.score": 1.2},
				{"sourcepage": "c.txt", "content": "boundary", "@search.score": 1.0},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), zaptest.NewLogger(t))
	sources, err := c.Retrieve(context.Background(), Request{Query: "insurance"})
	require.NoError(t, err)

	// Scores at or below the floor are excluded; only the 1.2 hit survives.
	require.Len(t, sources, 1)
	assert.Equal(t, "b.txt", sources[0].ID)
	assert.Equal(t, "high", sources[0].Snippet)
}

func TestRetrieveFlattensNewlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]interface{}{
				{"sourcepage": "a.txt", "content": "line one\nline two\r\nline three", "@search.score": 2.0},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), zaptest.NewLogger(t))
	sources, err := c.Retrieve(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.NotContains(t, sources[0].Snippet, "\n")
	assert.Equal(t, "line one line two  line three", sources[0].Snippet)
}

func TestRetrievePrefersCaptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]interface{}{
				{
					"sourcepage":       "a.txt",
					"content":          "full body text",
					"@search.score":    2.0,
					"@search.captions": []map[string]string{{"text": "first cap"}, {"text": "second cap"}},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), zaptest.NewLogger(t))
	sources, err := c.Retrieve(context.Background(), Request{Query: "q", Captions: true})
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "first cap . second cap", sources[0].Snippet)
}

func TestSearchSemanticParameters(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{"value": []interface{}{}})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), zaptest.NewLogger(t))
	_, err := c.Search(context.Background(), Request{
		Query:           "house insurance",
		SemanticRanker:  true,
		Captions:        true,
		ExcludeCategory: "archived",
	})
	require.NoError(t, err)

	assert.Equal(t, "semantic", got["queryType"])
	assert.Equal(t, "en-us", got["queryLanguage"])
	assert.Equal(t, "lexicon", got["speller"])
	assert.Equal(t, "default", got["semanticConfiguration"])
	assert.Equal(t, "extractive|highlight-false", got["captions"])
	assert.Equal(t, "category ne 'archived'", got["filter"])
	assert.Equal(t, float64(6), got["top"])
}

func TestSearchDefaultsOmitSemanticParams(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{"value": []interface{}{}})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), zaptest.NewLogger(t))
	_, err := c.Search(context.Background(), Request{Query: "q", Top: 3})
	require.NoError(t, err)

	assert.Equal(t, float64(3), got["top"])
	_, hasQueryType := got["queryType"]
	assert.False(t, hasQueryType)
	_, hasCaptions := got["captions"]
	assert.False(t, hasCaptions)
}
