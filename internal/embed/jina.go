package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/afedeli/pressline/internal/reliability"
)

const defaultBaseURL = "https://api.jina.ai"

// Client turns free text into fixed-length vectors via the Jina embeddings
// API. It never retries: retry policy belongs to the caller.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type embeddingInput struct {
	Text string `json:"text"`
}

type embeddingRequest struct {
	Model string           `json:"model"`
	Input []embeddingInput `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request. Output order matches input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	reqBody := embeddingRequest{Model: c.model}
	for _, t := range texts {
		reqBody.Input = append(reqBody.Input, embeddingInput{Text: t})
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, reliability.NewRemoteError("jina", fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, reliability.NewRemoteError("jina", fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, reliability.NewRemoteError("jina", fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, reliability.NewRemoteError("jina", fmt.Errorf("http status %d: %s", res.StatusCode, string(body)))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, reliability.NewRemoteError("jina", fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Data) != len(texts) {
		return nil, reliability.NewRemoteError("jina", fmt.Errorf("got %d embeddings for %d inputs", len(parsed.Data), len(texts)))
	}

	vecs := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		if len(d.Embedding) == 0 {
			return nil, reliability.NewRemoteError("jina", fmt.Errorf("missing embedding at index %d", i))
		}
		vecs[i] = d.Embedding
	}
	return vecs, nil
}
