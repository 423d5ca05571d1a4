package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/afedeli/pressline/internal/reliability"
)

func candidateResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
}

func TestGenerateReturnsFirstCandidate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(candidateResponse("Ceasefire talks resumed today."))
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "gm-key", Model: "gemini-2.0-flash", BaseURL: ts.URL})
	text, err := c.Generate(context.Background(), PromptSpec{
		SystemInstruction: "You are a news assistant.",
		Context:           "Ceasefire talks resumed.",
		Query:             "What happened in Ukraine today?",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "Ceasefire talks resumed today." {
		t.Fatalf("text = %q", text)
	}
	if gotPath != "/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "gm-key" {
		t.Errorf("key = %q", gotKey)
	}
	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 1 {
		t.Fatalf("request shape = %+v", gotBody)
	}
	prompt := gotBody.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "Ceasefire talks resumed.") || !strings.Contains(prompt, "What happened in Ukraine today?") {
		t.Errorf("prompt missing context or query: %q", prompt)
	}
}

func TestGenerateRejectsEmptyOutput(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
	}{
		{"no candidates", map[string]any{"candidates": []any{}}},
		{"whitespace only", candidateResponse("   \n\t ")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(tc.body)
			}))
			defer ts.Close()

			c := NewClient(Config{APIKey: "k", Model: "m", BaseURL: ts.URL})
			_, err := c.Generate(context.Background(), PromptSpec{Query: "q"})
			if err == nil {
				t.Fatalf("Generate() should reject empty output")
			}
			if !errors.Is(err, ErrEmptyGeneration) {
				t.Errorf("error should wrap ErrEmptyGeneration, got %v", err)
			}
			if !reliability.IsRemote(err) {
				t.Errorf("error should be a remote error, got %v", err)
			}
		})
	}
}

func TestGenerateRemoteFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "k", Model: "m", BaseURL: ts.URL})
	_, err := c.Generate(context.Background(), PromptSpec{Query: "q"})
	if err == nil {
		t.Fatalf("Generate() should fail")
	}
	if !reliability.IsRemote(err) {
		t.Errorf("error should be a remote error, got %v", err)
	}
}

func TestPromptSpecRenderDeterministic(t *testing.T) {
	spec := PromptSpec{
		SystemInstruction: "sys",
		Context:           "ctx",
		History: []HistoryLine{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
		Query: "next?",
	}

	a, b := spec.Render(), spec.Render()
	if a != b {
		t.Fatalf("Render() should be deterministic")
	}
	for _, want := range []string{"sys", "Context:\nctx", "user: hi\n", "assistant: hello\n", "User: next?", "Assistant:"} {
		if !strings.Contains(a, want) {
			t.Errorf("rendered prompt missing %q:\n%s", want, a)
		}
	}
	if userIdx := strings.Index(a, "user: hi"); userIdx > strings.Index(a, "assistant: hello") {
		t.Errorf("history order not preserved")
	}
}
