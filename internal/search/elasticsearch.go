package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ticketshow/internal/config"
	"ticketshow/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient читает каталог фильмов. Индекс ведёт сервис каталога,
// здесь он только читается.
type ElasticsearchClient struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticsearchClient создает клиент и проверяет доступность кластера
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests},
		MaxRetries:    cfg.MaxRetries,
		Transport: &http.Transport{
			ResponseHeaderTimeout: cfg.Timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{client: es, index: cfg.Index}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.checkIndex(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// checkIndex fails only when the cluster is unreachable; a missing index
// just means the catalog has not published anything yet
func (c *ElasticsearchClient) checkIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{c.index}}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("elasticsearch unreachable: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		slog.Info("Using movie catalog index", "index", c.index)
	case http.StatusNotFound:
		slog.Warn("Movie catalog index does not exist yet", "index", c.index)
	default:
		return fmt.Errorf("elasticsearch index check: %s", res.Status())
	}
	return nil
}

// GetMovie получает фильм по ID, nil если не найден
func (c *ElasticsearchClient) GetMovie(ctx context.Context, id string) (*models.Movie, error) {
	res, err := esapi.GetRequest{Index: c.index, DocumentID: id}.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to get movie %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch error for movie %s: %s", id, res.String())
	}

	var doc struct {
		Found  bool         `json:"found"`
		Source models.Movie `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode movie %s: %w", id, err)
	}
	if !doc.Found {
		return nil, nil
	}

	if doc.Source.ID == "" {
		doc.Source.ID = id
	}
	return &doc.Source, nil
}

// HealthCheck проверяет состояние кластера
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	res, err := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       5 * time.Second,
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}
	return nil
}
