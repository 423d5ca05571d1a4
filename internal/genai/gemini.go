package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/afedeli/pressline/internal/reliability"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// ErrEmptyGeneration marks a model response with no usable text. Empty
// output is rejected rather than cached or returned as a reply.
var ErrEmptyGeneration = errors.New("model returned empty output")

// DefaultSystemInstruction is the news-analyst persona sent with every
// prompt.
const DefaultSystemInstruction = `You are an AI-powered news analyst and reporter. Your job is to deliver crisp, well-contextualized, and fact-based reports in response to user questions, with clarity, precision, and adaptability to the topic and tone of the query.

Your outputs should:
- Lead with the key insight or headline. Prioritize what matters most.
- Support it with relevant, factual, and timely detail. Stick to verified information from reliable sources.
- Adapt tone and format based on the topic and how the user frames their question.
- Avoid fluff, hype, or speculation. No opinions, just clear reporting with intelligent framing.

If the question involves a very recent event, summarize the most recent developments clearly and factually, adding any necessary background.
If there is no recent news on the topic, briefly state that, but add any relevant synthesis or context you can provide based on general knowledge.
If the topic is not newsworthy or clearly unrelated to news, say:
"I'm a news-focused AI. Please ask about current events, recent developments, or major topics in the news."

Format:
- Max 2-3 concise paragraphs.
- Use a neutral but smart and context-aware tone.`

// HistoryLine is one role-labeled line of prior conversation.
type HistoryLine struct {
	Role    string
	Content string
}

// PromptSpec bundles everything the model sees for one request.
type PromptSpec struct {
	SystemInstruction string
	Context           string
	History           []HistoryLine
	Query             string
}

// Render assembles the outbound prompt text. Deterministic and pure: the
// same spec always yields the same prompt, which the response cache relies
// on.
func (p PromptSpec) Render() string {
	var b strings.Builder
	if p.SystemInstruction != "" {
		b.WriteString(p.SystemInstruction)
		b.WriteString("\n\n")
	}
	b.WriteString("Context:\n")
	b.WriteString(p.Context)
	b.WriteString("\n\nChat History:\n")
	for _, line := range p.History {
		b.WriteString(line.Role)
		b.WriteString(": ")
		b.WriteString(line.Content)
		b.WriteString("\n")
	}
	b.WriteString("\nUser: ")
	b.WriteString(p.Query)
	b.WriteString("\n\nAssistant:")
	return b.String()
}

// Client calls the Gemini generateContent API. No internal retries.
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

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends the rendered prompt and returns the first candidate's text.
// Unreachable provider, zero candidates and whitespace-only output all fail
// with a remote error.
func (c *Client) Generate(ctx context.Context, spec PromptSpec) (string, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: spec.Render()}}}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", reliability.NewRemoteError("gemini", fmt.Errorf("marshal request: %w", err))
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", reliability.NewRemoteError("gemini", fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return "", reliability.NewRemoteError("gemini", fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", reliability.NewRemoteError("gemini", fmt.Errorf("http status %d: %s", res.StatusCode, string(body)))
	}

	var parsed generateResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", reliability.NewRemoteError("gemini", fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Candidates) == 0 {
		return "", reliability.NewRemoteError("gemini", fmt.Errorf("no candidates: %w", ErrEmptyGeneration))
	}

	var b strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", reliability.NewRemoteError("gemini", ErrEmptyGeneration)
	}
	return text, nil
}
