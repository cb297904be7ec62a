package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "requestId":   {"type": "keyword"},
      "category":    {"type": "keyword"},
      "model":       {"type": "keyword"},
      "promptChars": {"type": "integer"},
      "outcome":     {"type": "keyword"},
      "failureKind": {"type": "keyword"},
      "latencyMs":   {"type": "long"},
      "createdAt":   {"type": "date"}
    }
  }
}`

type document struct {
	RequestID   string    `json:"requestId"`
	Category    string    `json:"category"`
	Model       string    `json:"model"`
	PromptChars int       `json:"promptChars"`
	Outcome     string    `json:"outcome"`
	FailureKind string    `json:"failureKind"`
	LatencyMS   int64     `json:"latencyMs"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ElasticsearchStore indexes one document per record, keyed by record ID.
type ElasticsearchStore struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchStore(client *elasticsearch.Client, index string) *ElasticsearchStore {
	return &ElasticsearchStore{client: client, index: index}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (s *ElasticsearchStore) EnsureIndex(ctx context.Context) error {
	exists, err := esapi.IndicesExistsRequest{Index: []string{s.index}}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("check index %s: %w", s.index, err)
	}
	exists.Body.Close()

	switch exists.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("check index %s: %s", s.index, exists.Status())
	}

	res, err := esapi.IndicesCreateRequest{
		Index: s.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("create index %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("create index %s: %s", s.index, res.Status())
	}
	return nil
}

// Save indexes rec, filling ID and CreatedAt when they are zero.
func (s *ElasticsearchStore) Save(ctx context.Context, rec Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(document{
		RequestID:   rec.RequestID.String(),
		Category:    rec.Category,
		Model:       rec.Model,
		PromptChars: rec.PromptChars,
		Outcome:     rec.Outcome,
		FailureKind: rec.FailureKind,
		LatencyMS:   rec.LatencyMS,
		CreatedAt:   rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: rec.ID.String(),
		Body:       bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index audit record: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index audit record: %s", res.Status())
	}
	return nil
}
