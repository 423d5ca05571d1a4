package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/afedeli/pressline/internal/cache"
	"github.com/afedeli/pressline/internal/config"
	"github.com/afedeli/pressline/internal/embed"
	"github.com/afedeli/pressline/internal/genai"
	"github.com/afedeli/pressline/internal/history"
	"github.com/afedeli/pressline/internal/httpapi"
	"github.com/afedeli/pressline/internal/kvstore"
	"github.com/afedeli/pressline/internal/observability"
	"github.com/afedeli/pressline/internal/rag"
	"github.com/afedeli/pressline/internal/vectorsearch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store := kvstore.NewRedisStore(kvstore.RedisConfig{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		MaxListLen: int64(cfg.HistoryLimit),
		ListTTL:    cfg.HistoryTTL,
	}, metrics)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.Connect(connectCtx); err != nil {
		connectCancel()
		log.Fatalf("store connect failed: %v", err)
	}
	connectCancel()
	defer store.Close()

	embedder := embed.NewClient(embed.Config{
		APIKey:  cfg.JinaAPIKey,
		Model:   cfg.JinaModel,
		Timeout: cfg.RequestTimeout,
	})
	searcher := vectorsearch.NewClient(vectorsearch.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
		Timeout:    cfg.RequestTimeout,
	})
	generator := genai.NewClient(genai.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.RequestTimeout,
	})

	responseCache := cache.New(store, metrics)
	historyLog := history.NewLog(store)

	pipeline := rag.NewPipeline(embedder, searcher, generator, responseCache, historyLog, metrics, rag.Config{
		TopK:            cfg.TopK,
		MaxContextChars: cfg.MaxContextChars,
		PromptHistory:   cfg.PromptHistory,
		CacheTTL:        cfg.CacheTTL,
	})
	ingestor := rag.NewIngestor(embedder, searcher)

	api := httpapi.New(cfg, pipeline, historyLog, ingestor, store, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
