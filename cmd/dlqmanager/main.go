package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/chazstevenson112/Steppr/internal/config"
	"github.com/chazstevenson112/Steppr/internal/lifecycle"
	"github.com/chazstevenson112/Steppr/internal/outbox"
	"github.com/chazstevenson112/Steppr/internal/persistence/postgres"
	httptransport "github.com/chazstevenson112/Steppr/internal/transport/http"
	"github.com/chazstevenson112/Steppr/pkg/logger"
)

const defaultDLQBatchSize = 50

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("configuration rejected", zap.Error(err))
	}

	lc := lifecycle.New(cfg.ShutdownTimeout, log)
	ctx, stop := lc.SignalContext(context.Background())
	defer stop()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{URL: cfg.PostgresURL}, logger.Named(log, "postgres"))
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	lc.Register("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, log)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: httptransport.NewMetricsHandler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("dlq manager metrics listening", zap.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	lc.Register("metrics-server", metricsSrv.Shutdown)

	ticker := time.NewTicker(cfg.DLQPollInterval)
	defer ticker.Stop()

	log.Info("dlq manager started",
		zap.Duration("interval", cfg.DLQPollInterval),
		zap.Int("max_retries", cfg.DLQMaxRetries),
	)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			processed, err := manager.RunOnce(ctx, defaultDLQBatchSize)
			if err != nil {
				log.Error("dlq run failed", zap.Error(err))
			} else if processed > 0 {
				log.Info("dlq entries processed", zap.Int("count", processed))
			}
		}
	}

	if err := lc.Shutdown(context.Background()); err != nil {
		log.Error("shutdown incomplete", zap.Error(err))
	}
}
