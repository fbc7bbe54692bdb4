// main package for the unitselect-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/unitselect-service/internal/config"
	"github.com/book-expert/unitselect-service/internal/objectstore"
	"github.com/book-expert/unitselect-service/internal/selector"
	"github.com/book-expert/unitselect-service/internal/worker"
	"github.com/nats-io/nats.go"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "unitselect-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		// If bootstrap logger fails, we can only print to stderr
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return serve(cfg, finalLog)
}

// serve connects to NATS, opens the buckets and runs the worker until a
// termination signal arrives.
func serve(cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		log.Error("Failed to connect to NATS at %s: %v", cfg.NATS.URL, err)

		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inventories, err := objectstore.Open(jetstreamContext, cfg.NATS.InventoryBucket)
	if err != nil {
		return fmt.Errorf("failed to open inventory bucket: %w", err)
	}

	voices, err := inventories.Keys(ctx)
	if err != nil {
		log.Warn("Could not list inventories in bucket %s: %v", inventories.Name(), err)
	} else {
		log.Info("Inventory bucket %s holds %d voices: %v", inventories.Name(), len(voices), voices)
	}

	results, err := objectstore.Open(jetstreamContext, cfg.NATS.ResultBucket)
	if err != nil {
		return fmt.Errorf("failed to open result bucket: %w", err)
	}

	sel, err := selector.New(cfg.Selection.Core(), log)
	if err != nil {
		return fmt.Errorf("failed to create selector: %w", err)
	}

	unitWorker, err := worker.NewNatsWorker(
		natsConnection, cfg.NATS.SelectionSubject, inventories, results, sel, log,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	logMessage := "Unitselect-Service successfully initialized. Listening for jobs on subject: %s " +
		"(inventories: %s, results: %s)"
	log.System(logMessage, cfg.NATS.SelectionSubject, inventories.Name(), results.Name())

	err = unitWorker.Run(ctx)
	if err != nil {
		log.Error("Worker stopped with error: %v", err)

		return fmt.Errorf("worker failed: %w", err)
	}

	log.Info("Unitselect-Service shut down cleanly.")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
