package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ticketshow/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeCluster(t *testing.T, indexStatus int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/movies":
			w.WriteHeader(indexStatus)
		case r.URL.Path == "/movies/_doc/movie-1":
			w.Write([]byte(`{"_index":"movies","_id":"movie-1","found":true,"_source":{"title":"Arrival","primary_image":"https://img.test/arrival.jpg","genres":["Drama","Sci-Fi"]}}`))
		case r.URL.Path == "/movies/_doc/broken":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"boom"}`))
		case r.URL.Path == "/_cluster/health":
			w.Write([]byte(`{"status":"yellow"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"_index":"movies","found":false}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, url string) (*ElasticsearchClient, error) {
	t.Helper()
	return NewElasticsearchClient(config.ElasticsearchConfig{
		URL:     url,
		Index:   "movies",
		Timeout: 2 * time.Second,
	})
}

func TestGetMovie(t *testing.T) {
	client, err := newTestClient(t, fakeCluster(t, http.StatusOK).URL)
	require.NoError(t, err)
	ctx := context.Background()

	movie, err := client.GetMovie(ctx, "movie-1")
	require.NoError(t, err)
	require.NotNil(t, movie)
	assert.Equal(t, "movie-1", movie.ID)
	assert.Equal(t, "Arrival", movie.Title)
	assert.Equal(t, []string{"Drama", "Sci-Fi"}, movie.Genres)

	movie, err = client.GetMovie(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, movie)

	_, err = client.GetMovie(ctx, "broken")
	assert.Error(t, err)

	assert.NoError(t, client.HealthCheck(ctx))
}

func TestNewElasticsearchClient_MissingIndexIsTolerated(t *testing.T) {
	client, err := newTestClient(t, fakeCluster(t, http.StatusNotFound).URL)
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewElasticsearchClient_Unreachable(t *testing.T) {
	server := fakeCluster(t, http.StatusOK)
	url := server.URL
	server.Close()

	_, err := newTestClient(t, url)
	assert.Error(t, err)
}
