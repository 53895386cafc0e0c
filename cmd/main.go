package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collab-lab/internal"
	"collab-lab/presence"
	"collab-lab/repositories"
	"collab-lab/runtime"
	"collab-lab/runtime/workers"
	"collab-lab/search"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the engine lifecycle, and
// centralizes error reporting, so every defer (database cleanup
// included) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Databases (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing Bluge index...")
		_ = blugeWriter.Close()
	}()

	// 3. Supervision & Orchestration
	sup := workers.NewSupervisor(log)
	registry := runtime.NewRegistry()
	aggregator := presence.NewAggregator(log, config.TypingTTL, config.PresenceTTL)

	orchestrator := runtime.NewOrchestrator(
		log, sup, registry, aggregator,
		repositories.NewBoardRepository(db, log),
		repositories.NewReactionRepository(db, log),
		repositories.NewThreadRepository(db, log),
		repositories.NewMessageRepository(db, log, config.LimitMessages),
		search.NewMessageIndex(blugeWriter, log),
		runtime.Tunables{
			BufferSize:     config.BufferSize,
			SinkTimeout:    config.SinkTimeout,
			SweepInterval:  config.SweepInterval,
			MetricInterval: config.MetricInterval,
		},
	)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Start the Engine
	if err = orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("orchestrator failed to start: %w", err)
	}

	// 6. Debug server, optional
	if config.DebugPort > 0 {
		stats := func() map[string]any {
			return map[string]any{
				"Status": "Running",
				"Time":   time.Now().Format(time.RFC822),
			}
		}
		internal.StartDebugServer(db, config.DebugPort, "/inspect", nil, stats)
		log.Info(fmt.Sprintf("Inspector started at http://localhost:%d/inspect", config.DebugPort))
	}

	// 7. Wait for Stop
	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	// 8. Final Cleanup
	orchestrator.Stop()
	sup.Wait()
	log.Info("Program stopped cleanly")

	return nil
}
