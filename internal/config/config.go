package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the news RAG relay.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	JinaAPIKey string
	JinaModel  string

	GeminiAPIKey string
	GeminiModel  string

	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TopK            int
	HistoryLimit    int
	HistoryTTL      time.Duration
	CacheTTL        time.Duration
	MaxContextChars int
	PromptHistory   int
	RequestTimeout  time.Duration
}

// Load reads environment variables and applies safe defaults. Provider
// credentials, the vector index address, the store address and the listen
// port have no sane default and are required.
func Load() (Config, error) {
	cfg := Config{
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "pressline"),
		JinaModel:        envOrDefault("JINA_MODEL", "jina-clip-v2"),
		GeminiModel:      envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		QdrantCollection: envOrDefault("QDRANT_COLLECTION", "news_articles"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		TopK:             3,
		HistoryLimit:     50,
		HistoryTTL:       24 * time.Hour,
		CacheTTL:         24 * time.Hour,
		MaxContextChars:  8000,
		PromptHistory:    8,
		RequestTimeout:   10 * time.Second,
		ShutdownTimeout:  15 * time.Second,
	}

	for _, req := range []struct {
		key string
		dst *string
	}{
		{"JINA_API_KEY", &cfg.JinaAPIKey},
		{"GEMINI_API_KEY", &cfg.GeminiAPIKey},
		{"QDRANT_URL", &cfg.QdrantURL},
		{"QDRANT_API_KEY", &cfg.QdrantAPIKey},
		{"REDIS_ADDR", &cfg.RedisAddr},
	} {
		v := strings.TrimSpace(os.Getenv(req.key))
		if v == "" {
			return Config{}, fmt.Errorf("missing required environment variable %s", req.key)
		}
		*req.dst = v
	}

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return Config{}, fmt.Errorf("missing required environment variable PORT")
	}
	if _, err := strconv.Atoi(port); err != nil {
		return Config{}, fmt.Errorf("PORT parse error: %w", err)
	}
	cfg.BindAddr = ":" + port

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RequestTimeout, err = durationFromEnv("APP_REQUEST_TIMEOUT", cfg.RequestTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryTTL, err = durationFromEnv("APP_HISTORY_TTL", cfg.HistoryTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheTTL, err = durationFromEnv("APP_CACHE_TTL", cfg.CacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.TopK, err = intFromEnv("APP_SEARCH_TOP_K", cfg.TopK)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryLimit, err = intFromEnv("APP_HISTORY_LIMIT", cfg.HistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxContextChars, err = intFromEnv("APP_MAX_CONTEXT_CHARS", cfg.MaxContextChars)
	if err != nil {
		return Config{}, err
	}
	cfg.PromptHistory, err = intFromEnv("APP_PROMPT_HISTORY_TURNS", cfg.PromptHistory)
	if err != nil {
		return Config{}, err
	}
	cfg.RedisDB, err = intFromEnv("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return Config{}, err
	}

	if cfg.TopK <= 0 {
		return Config{}, fmt.Errorf("APP_SEARCH_TOP_K must be positive")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("APP_HISTORY_LIMIT must be positive")
	}
	if cfg.MaxContextChars <= 0 {
		return Config{}, fmt.Errorf("APP_MAX_CONTEXT_CHARS must be positive")
	}
	if cfg.PromptHistory < 0 {
		return Config{}, fmt.Errorf("APP_PROMPT_HISTORY_TURNS must be >= 0")
	}
	if cfg.HistoryTTL <= 0 || cfg.CacheTTL <= 0 {
		return Config{}, fmt.Errorf("history and cache TTLs must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
