package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/models"
)

var _ core.VectorIndex = (*QdrantIndex)(nil)

// QdrantIndex is a minimal REST client to a Qdrant collection configured for
// cosine distance. The collection is created or verified once at startup.
type QdrantIndex struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
}

// QdrantConfig holds connection details for the Qdrant backend.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewQdrantIndex(cfg QdrantConfig) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantIndex{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection with the given dimension if it
// does not exist, or verifies the stored dimension otherwise. A mismatch
// means the index was built with a different embedding model and is fatal.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dim)
	}

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := q.do(ctx, http.MethodGet, q.collectionURL(""), nil, &info)
	if err != nil {
		return err
	}

	switch {
	case status == http.StatusOK:
		if got := info.Result.Config.Params.Vectors.Size; got != dim {
			return fmt.Errorf("%w: collection %q has dimension %d, configured %d",
				core.ErrDimensionMismatch, q.collection, got, dim)
		}
		return nil
	case status == http.StatusNotFound:
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dim,
				"distance": "Cosine",
			},
		}
		status, err = q.do(ctx, http.MethodPut, q.collectionURL(""), body, nil)
		if err != nil {
			return err
		}
		if status >= 300 {
			return fmt.Errorf("qdrant create collection %q: status %d", q.collection, status)
		}
		return nil
	default:
		return fmt.Errorf("qdrant get collection %q: status %d", q.collection, status)
	}
}

// UpsertBatch writes all records in one call with wait=true so a successful
// return means the points are persisted, keeping the partial-failure window
// at whole-batch granularity.
func (q *QdrantIndex) UpsertBatch(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		points[i] = map[string]any{
			"id":      r.ID,
			"vector":  r.Vector,
			"payload": r.Payload,
		}
	}
	status, err := q.do(ctx, http.MethodPut, q.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant upsert %d points: status %d", len(points), status)
	}
	return nil
}

// Search runs a cosine nearest-neighbor query, optionally restricted to
// payloads matching every filter key/value exactly.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]models.SearchMatch, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if len(filter) > 0 {
		req["filter"] = matchFilter(filter)
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	status, err := q.do(ctx, http.MethodPost, q.collectionURL("/points/search"), req, &resp)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant search: status %d", status)
	}

	matches := make([]models.SearchMatch, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, models.SearchMatch{
			ID:      fmt.Sprint(r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		})
	}
	return matches, nil
}

// DeleteByDocument removes all points carrying the document id in their
// payload. Best-effort cleanup for document deletion.
func (q *QdrantIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": matchFilter(map[string]any{"document_id": documentID}),
	}
	status, err := q.do(ctx, http.MethodPost, q.collectionURL("/points/delete?wait=true"), body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant delete points for document %s: status %d", documentID, status)
	}
	return nil
}

// matchFilter builds a Qdrant must-clause of exact payload matches.
func matchFilter(filter map[string]any) map[string]any {
	must := make([]map[string]any, 0, len(filter))
	for k, v := range filter {
		must = append(must, map[string]any{
			"key":   k,
			"match": map[string]any{"value": v},
		})
	}
	return map[string]any{"must": must}
}

func (q *QdrantIndex) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", q.baseURL, q.collection, suffix)
}

// do issues one JSON request and decodes the response into out when
// provided. The HTTP status is returned so callers can branch on 404 without
// treating it as a transport error.
func (q *QdrantIndex) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("qdrant decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
