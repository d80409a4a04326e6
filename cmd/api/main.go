// Package main implements the car-search assistant API server. It
// answers conversational queries by extracting filters with OpenAI,
// searching Qdrant with Ollama embeddings, and streaming a formatted
// answer back over SSE.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/otoasist/otoasist/engine/assist"
	"github.com/otoasist/otoasist/engine/domain"
	"github.com/otoasist/otoasist/engine/filters"
	"github.com/otoasist/otoasist/engine/format"
	"github.com/otoasist/otoasist/engine/search"
	"github.com/otoasist/otoasist/engine/semantic"
	"github.com/otoasist/otoasist/engine/topic"
	"github.com/otoasist/otoasist/pkg/metrics"
	"github.com/otoasist/otoasist/pkg/mid"
	"github.com/otoasist/otoasist/pkg/ollama"
	"github.com/otoasist/otoasist/pkg/openai"
	"github.com/otoasist/otoasist/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	OpenAIKey    string
	ExtractModel string
	FormatModel  string
	OpenAIRPS    float64
	OllamaURL    string
	EmbedModel   string
	QdrantAddr   string
	Collection   string
	CORSOrigin   string
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		ExtractModel: envOr("EXTRACT_MODEL", "gpt-4o-mini"),
		FormatModel:  envOr("FORMAT_MODEL", "gpt-4o"),
		OpenAIRPS:    envFloat("OPENAI_RPS", 5),
		OllamaURL:    envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:   envOr("EMBED_MODEL", "nomic-embed-text"),
		QdrantAddr:   envOr("QDRANT_URL", "localhost:6334"),
		Collection:   envOr("QDRANT_COLLECTION", "car_listings"),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OpenAIKey == "" {
		return fmt.Errorf("config: %w: OPENAI_API_KEY", domain.ErrConfiguration)
	}

	// --- Qdrant ---
	store, err := semantic.New(cfg.QdrantAddr, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	// --- Embeddings (Ollama) ---
	embedClient := ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel)

	// --- OpenAI: extraction (deterministic) and formatting (streaming) ---
	extractLLM, err := openai.New(cfg.OpenAIKey, cfg.ExtractModel, openai.WithRateLimit(cfg.OpenAIRPS, 2))
	if err != nil {
		return fmt.Errorf("openai extract client: %w", err)
	}
	formatLLM, err := openai.New(cfg.OpenAIKey, cfg.FormatModel, openai.WithRateLimit(cfg.OpenAIRPS, 2))
	if err != nil {
		return fmt.Errorf("openai format client: %w", err)
	}

	breaker := resilience.NewBreaker(resilience.DefaultBreakerOpts)
	extractor := filters.New(&guardedCompleter{breaker: breaker, llm: extractLLM}, logger)

	// --- Pipeline service ---
	svc := assist.New(
		topic.New(embedClient, topic.DefaultOptions(), logger),
		extractor,
		search.New(embedClient, store, search.DefaultOptions(), logger),
		format.New(formatLLM, logger),
		assist.Options{},
		logger,
	)

	// --- Metrics ---
	reg := metrics.New()
	m := apiMetrics{
		searches: reg.Counter("search_requests_total", "Search requests received."),
		errors:   reg.Counter("search_errors_total", "Search requests that failed."),
		duration: reg.Histogram("search_duration_seconds", "End-to-end search latency.", nil),
	}

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("POST /api/search", handleSearch(svc, m, logger))
	mux.Handle("POST /api/search/stream", handleSearchStream(svc, m, logger))
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("otoasist-api"),
	)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Streaming responses can stay open for a while.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// guardedCompleter runs filter-extraction completions through the
// circuit breaker so a dead LLM fails fast instead of piling up.
type guardedCompleter struct {
	breaker *resilience.Breaker
	llm     *openai.Client
}

func (g *guardedCompleter) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	var out string
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = g.llm.Complete(ctx, system, user, temperature)
		return callErr
	})
	return out, err
}

type apiMetrics struct {
	searches *metrics.Counter
	errors   *metrics.Counter
	duration *metrics.Histogram
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// SearchRequest is the JSON body for both search endpoints.
type SearchRequest struct {
	Query   string   `json:"query"`
	History []string `json:"history"`
}

func handleSearch(svc *assist.Service, m apiMetrics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		m.searches.Inc()
		start := time.Now()
		cars, err := svc.Query(r.Context(), req.Query, req.History)
		m.duration.Since(start)
		if err != nil {
			m.errors.Inc()
			writeError(w, err, logger)
			return
		}
		if cars == nil {
			cars = []domain.CarResult{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cars)
	}
}

func handleSearchStream(svc *assist.Service, m apiMetrics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
			return
		}

		m.searches.Inc()
		start := time.Now()
		defer m.duration.Since(start)

		headersSent := false
		err := svc.Stream(r.Context(), req.Query, req.History,
			func(cars []domain.CarResult) error {
				if cars == nil {
					cars = []domain.CarResult{}
				}
				data, err := json.Marshal(cars)
				if err != nil {
					return err
				}
				w.Header().Set("Content-Type", "text/event-stream")
				w.Header().Set("Cache-Control", "no-cache")
				w.Header().Set("Connection", "keep-alive")
				headersSent = true
				fmt.Fprintf(w, "event: results\ndata: %s\n\n", data)
				flusher.Flush()
				return nil
			},
			func(chunk string) error {
				data, err := json.Marshal(map[string]string{"token": chunk})
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "event: token\ndata: %s\n\n", data)
				flusher.Flush()
				return r.Context().Err()
			},
		)
		if err != nil {
			m.errors.Inc()
			if !headersSent {
				writeError(w, err, logger)
				return
			}
			logger.Error("stream aborted", "err", err)
			fmt.Fprintf(w, "event: error\ndata: {\"error\":\"stream failed\"}\n\n")
			flusher.Flush()
			return
		}

		fmt.Fprintf(w, "event: done\ndata: {}\n\n")
		flusher.Flush()
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses:
// caller mistakes are 400, our misconfiguration is 500, upstream
// failures (LLM, embeddings, vector store) are 502.
func writeError(w http.ResponseWriter, err error, logger *slog.Logger) {
	logger.Error("search failed", "err", err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrQueryTooShort):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConfiguration):
		status = http.StatusInternalServerError
	case errors.Is(err, domain.ErrSchema), errors.Is(err, domain.ErrExternal):
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
