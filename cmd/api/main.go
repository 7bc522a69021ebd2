package main

import (
	"net/http"

	"github.com/rs/zerolog/log"

	server "review_harvester/internal/adapters/http_server"
	"review_harvester/internal/adapters/observability"
	redisad "review_harvester/internal/adapters/redis"
	"review_harvester/internal/shared"
)

// api serves harvest progress to whatever started the harvest.
func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	cfg.LogWarnings()

	if cfg.RedisAddr == "" {
		log.Fatal().Msg("REDIS_ADDR is required")
	}
	progress := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer progress.Close()

	srv := server.New(0)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{P: progress})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
