package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/afedeli/pressline/internal/reliability"
)

func TestEmbedSingle(t *testing.T) {
	var gotAuth string
	var gotBody embeddingRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3}}},
		})
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "key-1", Model: "jina-clip-v2", BaseURL: ts.URL})
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("vector = %v", vec)
	}
	if gotAuth != "Bearer key-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.Model != "jina-clip-v2" || len(gotBody.Input) != 1 || gotBody.Input[0].Text != "hello" {
		t.Errorf("request body = %+v", gotBody)
	}
}

func TestEmbedBatchOrderPreserved(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"embedding": []float32{float32(i)}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "k", Model: "m", BaseURL: ts.URL})
	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("len = %d, want 3", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 1 || v[0] != float32(i) {
			t.Fatalf("vecs[%d] = %v", i, v)
		}
	}
}

func TestEmbedRemoteFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{"missing embedding", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{}}})
		}},
		{"count mismatch", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(tc.handler)
			defer ts.Close()
			c := NewClient(Config{APIKey: "k", Model: "m", BaseURL: ts.URL})
			_, err := c.Embed(context.Background(), "q")
			if err == nil {
				t.Fatalf("Embed() should fail")
			}
			if !reliability.IsRemote(err) {
				t.Errorf("error should be a remote error, got %v", err)
			}
		})
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	c := NewClient(Config{APIKey: "k", Model: "m", BaseURL: "http://127.0.0.1:1"})
	vecs, err := c.EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("empty batch = %v, %v; want nil, nil", vecs, err)
	}
}
