package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/afedeli/pressline/internal/config"
	"github.com/afedeli/pressline/internal/history"
	"github.com/afedeli/pressline/internal/kvstore"
	"github.com/afedeli/pressline/internal/observability"
	"github.com/afedeli/pressline/internal/rag"
)

type Chatter interface {
	Answer(ctx context.Context, sessionID, message string) (string, error)
}

type ArticleIngestor interface {
	Ingest(ctx context.Context, articles []rag.Article) (int, error)
	Remove(ctx context.Context, ids []string) error
}

type Server struct {
	cfg     config.Config
	chat    Chatter
	history *history.Log
	ingest  ArticleIngestor
	store   kvstore.Store
	metrics *observability.Metrics
}

func New(cfg config.Config, chat Chatter, hist *history.Log, ingest ArticleIngestor, store kvstore.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		chat:    chat,
		history: hist,
		ingest:  ingest,
		store:   store,
		metrics: metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Post("/metrics/reset", s.handleMetricsReset)
	r.Get("/metrics/prom", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/chat", s.handleChat)
	r.Get("/history", s.handleHistory)
	r.Post("/reset", s.handleReset)
	r.Post("/ingest", s.handleIngest)
	r.Post("/ingest/delete", s.handleIngestDelete)

	return r
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	sessionID := sanitize(req.SessionID)
	message := sanitize(req.Message)
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}
	if message == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}

	reply, err := s.chat.Answer(r.Context(), sessionID, message)
	if err != nil {
		log.Printf("chat failed for session %s: %v", sessionID, err)
		respondError(w, http.StatusInternalServerError, "chat_failed", "failed to produce a reply")
		return
	}
	respondJSON(w, http.StatusOK, chatResponse{Response: reply})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := sanitize(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter session_id is required")
		return
	}

	var (
		turns []history.Turn
		err   error
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, perr := strconv.Atoi(raw)
		if perr != nil || page < 1 {
			respondError(w, http.StatusBadRequest, "invalid_request", "page must be a positive integer")
			return
		}
		pageSize := 10
		if raw := strings.TrimSpace(r.URL.Query().Get("page_size")); raw != "" {
			n, perr := strconv.Atoi(raw)
			if perr != nil || n < 1 {
				respondError(w, http.StatusBadRequest, "invalid_request", "page_size must be a positive integer")
				return
			}
			if n > 50 {
				n = 50
			}
			pageSize = n
		}
		turns, err = s.history.Page(r.Context(), sessionID, page, pageSize)
	} else {
		turns, err = s.history.Turns(r.Context(), sessionID)
	}
	if err != nil {
		log.Printf("history read failed for session %s: %v", sessionID, err)
		respondError(w, http.StatusInternalServerError, "history_unavailable", "failed to load history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"messages":   history.Messages(turns),
	})
}

type resetRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	sessionID := sanitize(req.SessionID)
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	if err := s.history.Reset(r.Context(), sessionID); err != nil {
		log.Printf("history reset failed for session %s: %v", sessionID, err)
		respondError(w, http.StatusInternalServerError, "reset_failed", "failed to reset history")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.metrics.Snapshot()
	storeState := "connected"
	status := "ok"
	if !s.store.Connected() {
		storeState = "disconnected"
		status = "degraded"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"store":  storeState,
		"cache": map[string]any{
			"hits":    snap.Hits,
			"misses":  snap.Misses,
			"hitRate": snap.HitRate,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	snap := s.metrics.Snapshot()
	storeState := "connected"
	if !s.store.Connected() {
		storeState = "disconnected"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"store": map[string]any{
			"status": storeState,
			"uptime": snap.Uptime.Seconds(),
		},
		"cache": map[string]any{
			"hits":            snap.Hits,
			"misses":          snap.Misses,
			"hitRate":         snap.HitRate,
			"totalOperations": snap.TotalOperations,
		},
		"performance": map[string]any{
			"averageLatency":      snap.AverageLatencyMS,
			"operationsPerSecond": snap.OpsPerSecond,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMetricsReset(w http.ResponseWriter, _ *http.Request) {
	s.metrics.Reset()
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type ingestRequest struct {
	Articles []rag.Article `json:"articles"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Articles) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "articles is required")
		return
	}

	n, err := s.ingest.Ingest(r.Context(), req.Articles)
	if err != nil {
		log.Printf("ingest failed: %v", err)
		respondError(w, http.StatusInternalServerError, "ingest_failed", "failed to index articles")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ingested": n})
}

type ingestDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleIngestDelete(w http.ResponseWriter, r *http.Request) {
	var req ingestDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.IDs) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "ids is required")
		return
	}

	if err := s.ingest.Remove(r.Context(), req.IDs); err != nil {
		log.Printf("ingest delete failed: %v", err)
		respondError(w, http.StatusInternalServerError, "delete_failed", "failed to delete articles")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": len(req.IDs)})
}

// sanitize strips markup-control characters from caller-supplied values
// before they reach store keys or prompt content.
var sanitizer = strings.NewReplacer("<", "", ">", "", "{", "", "}", "")

func sanitize(v string) string {
	return strings.TrimSpace(sanitizer.Replace(v))
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Printf("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
