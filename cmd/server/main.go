package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Chatter/internal/adapters/feed"
	router "github.com/dkeye/Chatter/internal/adapters/http"
	"github.com/dkeye/Chatter/internal/app"
	"github.com/dkeye/Chatter/internal/app/orch"
	"github.com/dkeye/Chatter/internal/config"
	"github.com/dkeye/Chatter/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)
	core.Strict = cfg.Debug()

	clock := core.SystemClock{}
	rooms := core.NewRoomRegistry(cfg.Rooms.TTL, clock, core.NewDefaultIDs())

	var (
		publisher app.FeedPublisher = app.NopFeed{}
		pinger    router.Pinger
	)
	if cfg.Feed.RedisURL != "" {
		rf, err := feed.NewRedisFeed(ctx, cfg.Feed.RedisURL, cfg.Feed.ChannelPrefix, cfg.Feed.Retention)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect feed")
		}
		defer func() { _ = rf.Close() }()
		publisher, pinger = rf, rf
	}

	o := &orch.Orchestrator{
		Rooms:         rooms,
		Registry:      app.NewRegistry(),
		Policy:        app.ParsePolicy(cfg.WS.Backpressure),
		Feed:          publisher,
		AdminPassword: cfg.Rooms.AdminPassword,
	}

	r := router.SetupRouter(ctx, cfg, o, pinger)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Chatter server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Rooms.SweepEnabled {
		sweeper := &app.Sweeper{
			Rooms:       rooms,
			Evictor:     o,
			Clock:       clock,
			Interval:    cfg.Rooms.SweepInterval,
			IdleTimeout: cfg.Rooms.IdleTimeout,
		}
		g.Go(func() error { return sweeper.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !cfg.Debug() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
