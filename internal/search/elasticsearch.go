package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"carrental/internal/config"
	"carrental/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient keeps the car catalogue searchable
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

var textField = map[string]any{"type": "text", "analyzer": "car_text"}

func indexMapping() map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
			"analysis": map[string]any{
				"analyzer": map[string]any{
					"car_text": map[string]any{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"lowercase", "english_stop", "english_stemmer"},
					},
				},
				"filter": map[string]any{
					"english_stop":    map[string]any{"type": "stop", "stopwords": "_english_"},
					"english_stemmer": map[string]any{"type": "stemmer", "language": "english"},
				},
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"_id":           map[string]any{"type": "keyword"},
				"name":          textField,
				"description":   textField,
				"Manufacturers": textField,
				"vehicleType":   textField,
				"color":         map[string]any{"type": "keyword"},
				"features":      map[string]any{"type": "keyword"},
				"pricePerHour":  map[string]any{"type": "double"},
				"isElectric":    map[string]any{"type": "boolean"},
				"isDeleted":     map[string]any{"type": "boolean"},
				"status":        map[string]any{"type": "keyword"},
				"createdAt":     map[string]any{"type": "date"},
				"updatedAt":     map[string]any{"type": "date"},
			},
		},
	}
}

func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{c.config.Index}}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	body, err := json.Marshal(indexMapping())
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createRes, err := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// IndexCar writes the car document. Deleted cars stay indexed with isDeleted set
// and are filtered out at query time.
func (c *ElasticsearchClient) IndexCar(ctx context.Context, car *models.Car) error {
	doc, err := json.Marshal(car)
	if err != nil {
		return fmt.Errorf("failed to marshal car: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: car.ID,
		Body:       bytes.NewReader(doc),
		Refresh:    "wait_for",
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index car: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}
	return nil
}

func (c *ElasticsearchClient) DeleteCar(ctx context.Context, id string) error {
	res, err := esapi.DeleteRequest{
		Index:      c.config.Index,
		DocumentID: id,
		Refresh:    "wait_for",
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete car: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}
	return nil
}

func buildSearchQuery(query string) map[string]any {
	filter := []any{
		map[string]any{"term": map[string]any{"isDeleted": false}},
	}

	var must any = map[string]any{"match_all": map[string]any{}}
	if q := strings.TrimSpace(query); q != "" {
		must = map[string]any{
			"multi_match": map[string]any{
				"query":     q,
				"fields":    []string{"name^2", "description", "Manufacturers", "vehicleType"},
				"fuzziness": "AUTO",
			},
		}
	}

	return map[string]any{
		"bool": map[string]any{
			"must":   must,
			"filter": filter,
		},
	}
}

// SearchCars returns one page of matching cars and the total hit count
func (c *ElasticsearchClient) SearchCars(ctx context.Context, query string, page, pageSize int) ([]models.Car, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	body, err := json.Marshal(map[string]any{
		"query":            buildSearchQuery(query),
		"sort":             []any{map[string]any{"_score": "desc"}, map[string]any{"createdAt": "asc"}},
		"from":             (page - 1) * pageSize,
		"size":             pageSize,
		"track_total_hits": true,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.client)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Car `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, 0, fmt.Errorf("failed to decode search response: %w", err)
	}

	cars := make([]models.Car, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		cars[i] = hit.Source
	}
	return cars, response.Hits.Total.Value, nil
}

func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	res, err := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
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
