package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"hush/relay/internal/api"
	"hush/relay/internal/code"
	"hush/relay/internal/config"
	"hush/relay/internal/relay"
	"hush/relay/internal/service"
	"hush/relay/internal/session"
	"hush/relay/internal/stream"
	"hush/relay/internal/sweep"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	store := newStore(cfg, logger)
	codes := code.NewRegistry(logger)
	conns := relay.NewRegistry(time.Duration(cfg.Relay.TerminateGraceMs)*time.Millisecond, logger)
	queue := relay.NewQueue()

	svc := service.New(store, codes, conns, queue, service.Config{
		BaseURL:     cfg.Server.BaseURL,
		MaxDuration: time.Duration(cfg.Session.MaxDurationMin) * time.Minute,
		IDLength:    cfg.Session.IDLength,
	}, logger)

	relayHandler := relay.NewHandler(store, conns,
		time.Duration(cfg.Relay.HeartbeatSecs)*time.Second,
		cfg.Server.CORSOrigins, logger)

	provider := stream.NewClient(cfg.Stream.APIKey, cfg.Stream.APISecret, cfg.Stream.BaseURL)
	if !provider.Enabled() {
		logger.Info().Msg("stream provider not configured; endpoints disabled")
	}

	sweeper := sweep.New(store, codes, conns,
		time.Duration(cfg.Sweep.IntervalSecs)*time.Second,
		time.Duration(cfg.Sweep.GraceSecs)*time.Second, logger)
	sweeper.Start()

	handlers := api.NewHandlers(svc, relayHandler, conns, queue, store, provider, logger)
	var handler http.Handler = api.NewRouter(handlers)
	handler = api.CORSMiddleware(cfg.Server.CORSOrigins, handler)
	handler = api.LogMiddleware(logger, handler)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info().Msg("shutdown signal received; stopping server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sweeper.Stop(ctx)
		_ = srv.Shutdown(ctx)
	}()

	logger.Info().Str("addr", addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
}

// newStore picks redis when configured, otherwise the in-memory store.
func newStore(cfg config.Config, logger zerolog.Logger) session.Store {
	if cfg.Redis.Addr == "" {
		logger.Info().Msg("using in-memory session store")
		return session.NewMemoryStore()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable")
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis session store")
	return session.NewRedisStore(client)
}
