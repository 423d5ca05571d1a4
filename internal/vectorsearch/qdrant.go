package vectorsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/afedeli/pressline/internal/reliability"
)

// payloadTextField is where ingested articles carry their passage text.
const payloadTextField = "maintext"

// Match is one similarity hit from the index.
type Match struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Text returns the passage text of the match, if present.
func (m Match) Text() string {
	if m.Payload == nil {
		return ""
	}
	s, _ := m.Payload[payloadTextField].(string)
	return s
}

// Point is an index entry for the out-of-band ingestion path.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Client queries a Qdrant index, restricted to one collection.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	WithVectors bool      `json:"with_vectors"`
}

type searchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search returns up to limit matches ordered by descending similarity score.
// The remote ordering is not trusted: results are re-sorted locally because
// context truncation drops lowest-ranked passages first. An empty result is
// a valid outcome, not an error.
func (c *Client) Search(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 3
	}
	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", c.collection), searchRequest{
		Vector:      vector,
		Limit:       limit,
		WithPayload: true,
	})
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, reliability.NewRemoteError("qdrant", fmt.Errorf("decode response: %w", err))
	}

	matches := make([]Match, 0, len(parsed.Result))
	for _, r := range parsed.Result {
		matches = append(matches, Match{
			ID:      fmt.Sprint(r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches, nil
}

type upsertRequest struct {
	Points []Point `json:"points"`
}

// Upsert writes points to the collection. Points without an ID are assigned
// one. Used by the ingestion path, not the live chat path.
func (c *Client) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	for i := range points {
		if strings.TrimSpace(points[i].ID) == "" {
			points[i].ID = uuid.NewString()
		}
	}
	_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", c.collection), upsertRequest{Points: points})
	return err
}

type deleteRequest struct {
	Points []string `json:"points"`
}

// Delete removes points by ID.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection), deleteRequest{Points: ids})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, reliability.NewRemoteError("qdrant", fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, reliability.NewRemoteError("qdrant", fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, reliability.NewRemoteError("qdrant", fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return nil, reliability.NewRemoteError("qdrant", fmt.Errorf("read response: %w", err))
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, reliability.NewRemoteError("qdrant", fmt.Errorf("http status %d: %s", res.StatusCode, string(body)))
	}
	return body, nil
}
