package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/afedeli/pressline/internal/vectorsearch"
)

type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Index interface {
	Upsert(ctx context.Context, points []vectorsearch.Point) error
	Delete(ctx context.Context, ids []string) error
}

// Article is one ingestable news item.
type Article struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	MainText string `json:"maintext"`
}

// Ingestor is the out-of-band index-maintenance path: it embeds article
// bodies batch-wise and upserts them into the similarity index. Not part of
// the live chat path.
type Ingestor struct {
	embedder BatchEmbedder
	index    Index
}

func NewIngestor(embedder BatchEmbedder, index Index) *Ingestor {
	return &Ingestor{embedder: embedder, index: index}
}

// Ingest embeds and indexes the articles with non-empty bodies, returning
// how many were written.
func (in *Ingestor) Ingest(ctx context.Context, articles []Article) (int, error) {
	kept := make([]Article, 0, len(articles))
	texts := make([]string, 0, len(articles))
	for _, a := range articles {
		if strings.TrimSpace(a.MainText) == "" {
			continue
		}
		kept = append(kept, a)
		texts = append(texts, a.MainText)
	}
	if len(kept) == 0 {
		return 0, nil
	}

	vectors, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed articles: %w", err)
	}
	if len(vectors) != len(kept) {
		return 0, fmt.Errorf("got %d vectors for %d articles", len(vectors), len(kept))
	}

	points := make([]vectorsearch.Point, len(kept))
	for i, a := range kept {
		payload := map[string]any{"maintext": a.MainText}
		if a.Title != "" {
			payload["title"] = a.Title
		}
		if a.URL != "" {
			payload["url"] = a.URL
		}
		points[i] = vectorsearch.Point{
			ID:      a.ID,
			Vector:  vectors[i],
			Payload: payload,
		}
	}

	if err := in.index.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("upsert articles: %w", err)
	}
	return len(points), nil
}

// Remove deletes articles from the index by ID.
func (in *Ingestor) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := in.index.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete articles: %w", err)
	}
	return nil
}
