package server

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/learning-notebook/question-service/internal/config"
	"github.com/learning-notebook/question-service/internal/question"
)

// NewHTTPServer wires base routes (health, metrics) plus the question
// record API. redisClient may be nil when the service runs cache-less.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redisClient *redis.Client, questionHandlers *question.HTTPHandlers) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), pool, redisClient); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	mux.HandleFunc("POST /v1/questions", questionHandlers.Create)
	mux.HandleFunc("GET /v1/questions", questionHandlers.List)
	mux.HandleFunc("POST /v1/questions/import", questionHandlers.Import)
	mux.HandleFunc("GET /v1/questions/{id}", questionHandlers.Get)
	mux.HandleFunc("PUT /v1/questions/{id}", questionHandlers.Update)
	mux.HandleFunc("DELETE /v1/questions/{id}", questionHandlers.Delete)

	handler := withRequestLogging(logger, withMetrics(withCORS(cfg.CORS, mux)))

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redisClient *redis.Client) error {
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	if redisClient != nil {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}
