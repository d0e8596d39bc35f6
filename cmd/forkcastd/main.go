// Package main provides the forkcast ops server: batch triggers, reports,
// catalog lookups, and seed reloading on file change.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thebtf/forkcast/internal/catalog"
	"github.com/thebtf/forkcast/internal/config"
	gormdb "github.com/thebtf/forkcast/internal/db/gorm"
	"github.com/thebtf/forkcast/internal/llm"
	"github.com/thebtf/forkcast/internal/server"
	"github.com/thebtf/forkcast/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		cancel()
	}()

	store, err := gormdb.NewStore(gormdb.Config{
		DSN:      cfg.DBDSN,
		MaxConns: cfg.MaxConns,
		LogLevel: gormlogger.Silent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer store.Close()

	if _, err := catalog.LoadSeed(ctx, store.DB, cfg.SeedPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to load seed catalog")
	}

	svc := server.NewService(cfg, store, llm.NewHTTPCompleter(cfg.BaseURL, cfg.APIKey))

	// Reseed when the CSV changes; a bad edit rolls back and keeps the
	// previous catalog intact.
	seedWatcher, err := watcher.New(cfg.SeedPath, func() {
		if _, err := catalog.LoadSeed(context.Background(), store.DB, cfg.SeedPath); err != nil {
			log.Error().Err(err).Msg("Seed reload failed")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("Seed watcher unavailable")
	} else if err := seedWatcher.Start(); err == nil {
		defer seedWatcher.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Serve(gctx)
	})

	log.Info().Str("addr", cfg.ListenAddr).Str("version", Version).Msg("forkcastd started")
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
}
