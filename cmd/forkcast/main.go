// Package main provides the forkcast batch CLI: seed the catalog, run N
// simulated users, print a cost summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thebtf/forkcast/internal/catalog"
	"github.com/thebtf/forkcast/internal/config"
	gormdb "github.com/thebtf/forkcast/internal/db/gorm"
	"github.com/thebtf/forkcast/internal/llm"
	"github.com/thebtf/forkcast/internal/sim"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	runs := flag.Int("runs", 100, "Number of users to simulate")
	runID := flag.String("run-id", "", "Run identifier (default: generated)")
	offline := flag.Bool("offline", false, "Pick foods from the catalog instead of asking")
	keepGoing := flag.Bool("keep-going", false, "Continue the batch when an iteration fails")
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
		log.Info().Msg("Interrupted, stopping after current iteration")
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

	budget := llm.Unlimited()
	if cfg.CallBudget != nil {
		budget = llm.NewBudget(*cfg.CallBudget)
	}
	client := llm.NewClient(
		llm.NewHTTPCompleter(cfg.BaseURL, cfg.APIKey),
		gormdb.NewCatalogStore(store.DB),
		budget,
		llm.ClientConfig{
			Model:            cfg.Model,
			PricePer1KInput:  cfg.PricePer1KInput,
			PricePer1KOutput: cfg.PricePer1KOutput,
			DryRun:           cfg.DryRun,
		},
	)

	log.Info().Str("version", Version).Int("runs", *runs).Bool("dry_run", cfg.DryRun).
		Msg("Starting forkcast batch")

	runner := sim.NewRunner(store, client)
	summary, err := runner.Run(ctx, sim.Options{
		Runs:            *runs,
		RunID:           *runID,
		ContinueOnError: *keepGoing,
		Offline:         *offline,
		BucketHint:      cfg.BucketHint,
	})
	if err != nil {
		log.Fatal().Err(err).Str("run_id", summary.RunID).Msg("Simulation aborted")
	}

	fmt.Printf("Done. users=%d run_id=%s llm_input_tokens=%d llm_output_tokens=%d llm_cost_usd≈%.5f\n",
		summary.Users, summary.RunID, summary.InputTokens, summary.OutputTokens, summary.CostUSD)
}
