// Package main is the outbox relay worker. It drains pending events from
// the transactional outbox, logs them as the delivery target, retries
// failures with backoff, and periodically sweeps exhausted messages to the
// dead letter queue. Expired recalc run records are cleaned up on the same
// hourly sweep.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stockbook/internal/infrastructure/storage/postgres"
	"stockbook/pkg/logger"
)

const runLedgerTTL = 7 * 24 * time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("no .env file loaded: %v\n", err)
	}

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal(ctx, "DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		logger.Fatal(ctx, "failed to connect to database", "error", err)
	}
	defer pool.Close()

	batchSize := getEnvInt("RELAY_BATCH_SIZE", 100)
	pollInterval := getEnvDuration("RELAY_POLL_INTERVAL", 500*time.Millisecond)

	relay := postgres.NewOutboxRelay(pool.Unwrap(), batchSize, &logHandler{})
	runs := postgres.NewJobRunStore(postgres.NewTxManager(pool), runLedgerTTL)

	logger.Info(ctx, "outbox relay started",
		"batch_size", batchSize,
		"poll_interval", pollInterval,
	)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := relay.ProcessBatch(ctx)
				if err != nil {
					logger.Error(ctx, "process batch failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Info(ctx, "processed outbox messages", "count", n)
				}
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				moved, err := relay.MoveToDLQ(ctx)
				if err != nil {
					logger.Error(ctx, "dead letter sweep failed", "error", err)
				} else if moved > 0 {
					logger.Warn(ctx, "moved exhausted messages to dead letter queue", "count", moved)
				}

				cleaned, err := runs.CleanupExpired(ctx)
				if err != nil {
					logger.Error(ctx, "run ledger cleanup failed", "error", err)
				} else if cleaned > 0 {
					logger.Info(ctx, "cleaned expired run records", "count", cleaned)
				}
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "shutting down relay")
	cancel()
	wg.Wait()
	logger.Info(ctx, "relay stopped")
}

// logHandler is the default delivery target: it writes each event to the
// structured log. Swap in a broker-backed handler to fan events out.
type logHandler struct{}

func (h *logHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	logger.Info(ctx, "outbox event",
		"event_id", msg.ID,
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"retry_count", msg.RetryCount,
	)
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
