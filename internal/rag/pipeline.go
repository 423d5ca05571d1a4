package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/afedeli/pressline/internal/cache"
	"github.com/afedeli/pressline/internal/genai"
	"github.com/afedeli/pressline/internal/history"
	"github.com/afedeli/pressline/internal/kvstore"
	"github.com/afedeli/pressline/internal/observability"
	"github.com/afedeli/pressline/internal/vectorsearch"
)

// NoContextFound is the context sentinel used when retrieval returns nothing
// or is unreachable; generation proceeds with degraded quality rather than
// failing the request.
const NoContextFound = "No relevant news articles found."

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]vectorsearch.Match, error)
}

type Generator interface {
	Generate(ctx context.Context, spec genai.PromptSpec) (string, error)
}

type Config struct {
	TopK              int
	MaxContextChars   int
	PromptHistory     int
	CacheTTL          time.Duration
	SystemInstruction string
}

// Pipeline composes embed, search, compose, generate and persist for one
// chat request. Embed and generate failures are fatal; search and store
// failures degrade.
type Pipeline struct {
	embedder  Embedder
	searcher  Searcher
	generator Generator
	cache     *cache.Cache
	log       *history.Log
	metrics   *observability.Metrics
	cfg       Config
}

func NewPipeline(embedder Embedder, searcher Searcher, generator Generator, c *cache.Cache, l *history.Log, metrics *observability.Metrics, cfg Config) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = 8000
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = genai.DefaultSystemInstruction
	}
	return &Pipeline{
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		cache:     c,
		log:       l,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Answer produces the bot reply for (sessionID, message) and records the
// turn. The inputs are assumed already sanitized at the boundary.
func (p *Pipeline) Answer(ctx context.Context, sessionID, message string) (string, error) {
	vector, err := p.embedQuery(ctx, message)
	if err != nil {
		p.metrics.ObserveProviderError("jina")
		p.metrics.ObserveChat("embed_failed")
		return "", fmt.Errorf("embed query: %w", err)
	}

	contextText := p.retrieveContext(ctx, vector)

	turns, err := p.log.Turns(ctx, sessionID)
	if err != nil {
		// Degrade to an empty history inside the pipeline; the history
		// endpoint is where a store failure must surface.
		log.Printf("history read failed for session %s, continuing without history: %v", sessionID, err)
		turns = nil
	}

	spec := genai.PromptSpec{
		SystemInstruction: p.cfg.SystemInstruction,
		Context:           contextText,
		History:           historyLines(turns, p.cfg.PromptHistory),
		Query:             message,
	}

	// The response cache is keyed on (context, query): a change in retrieved
	// passages, even reordering, misses. The prompt's history lines are
	// deliberately not part of the key.
	genKey := kvstore.GenerationKey(cache.Digest(contextText, message))
	reply, err := p.cache.GetOrCompute(ctx, "gemini", genKey, p.cfg.CacheTTL, func() (string, error) {
		return p.generator.Generate(ctx, spec)
	})
	if err != nil {
		p.metrics.ObserveProviderError("gemini")
		p.metrics.ObserveChat("generate_failed")
		return "", fmt.Errorf("generate reply: %w", err)
	}

	if err := p.log.Append(ctx, sessionID, message, reply); err != nil {
		log.Printf("history append failed for session %s: %v", sessionID, err)
	}

	p.metrics.ObserveChat("ok")
	return reply, nil
}

func (p *Pipeline) embedQuery(ctx context.Context, message string) ([]float32, error) {
	encoded, err := p.cache.GetOrCompute(ctx, "embedding", kvstore.EmbeddingKey(message), p.cfg.CacheTTL, func() (string, error) {
		vec, err := p.embedder.Embed(ctx, message)
		if err != nil {
			return "", err
		}
		b, err := json.Marshal(vec)
		if err != nil {
			return "", fmt.Errorf("encode vector: %w", err)
		}
		return string(b), nil
	})
	if err != nil {
		return nil, err
	}

	var vector []float32
	if err := json.Unmarshal([]byte(encoded), &vector); err != nil {
		log.Printf("cached embedding undecodable, re-embedding: %v", err)
		return p.embedder.Embed(ctx, message)
	}
	return vector, nil
}

func (p *Pipeline) retrieveContext(ctx context.Context, vector []float32) string {
	matches, err := p.searcher.Search(ctx, vector, p.cfg.TopK)
	if err != nil {
		log.Printf("vector search failed, continuing without context: %v", err)
		p.metrics.ObserveProviderError("qdrant")
		return NoContextFound
	}

	passages := make([]string, 0, len(matches))
	for _, m := range matches {
		if text := m.Text(); text != "" {
			passages = append(passages, text)
		}
	}
	if len(passages) == 0 {
		return NoContextFound
	}
	return truncateRanked(passages, p.cfg.MaxContextChars)
}

// truncateRanked joins passages in ranked order under a rune budget,
// dropping lowest-ranked passages first. A single oversized top passage is
// clipped rather than dropped so the prompt never loses all context.
func truncateRanked(passages []string, maxChars int) string {
	var b strings.Builder
	used := 0
	for _, passage := range passages {
		sep := 0
		if used > 0 {
			sep = 2
		}
		n := utf8.RuneCountInString(passage)
		if used+sep+n > maxChars {
			break
		}
		if sep > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(passage)
		used += sep + n
	}
	if used == 0 {
		runes := []rune(passages[0])
		if len(runes) > maxChars {
			runes = runes[:maxChars]
		}
		return string(runes)
	}
	return b.String()
}

func historyLines(turns []history.Turn, limit int) []genai.HistoryLine {
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	lines := make([]genai.HistoryLine, 0, len(turns)*2)
	for _, t := range turns {
		lines = append(lines,
			genai.HistoryLine{Role: "user", Content: t.User},
			genai.HistoryLine{Role: "assistant", Content: t.Bot},
		)
	}
	return lines
}
