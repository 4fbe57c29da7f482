package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/chazstevenson112/Steppr/internal/config"
	"github.com/chazstevenson112/Steppr/internal/consumer"
	"github.com/chazstevenson112/Steppr/internal/domain"
	"github.com/chazstevenson112/Steppr/internal/lifecycle"
	"github.com/chazstevenson112/Steppr/internal/persistence/postgres"
	httptransport "github.com/chazstevenson112/Steppr/internal/transport/http"
	"github.com/chazstevenson112/Steppr/pkg/logger"
)

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

	repo := postgres.NewRepository(pool)
	challenges := domain.NewChallengeService(repo, repo, domain.WithLogger(log))
	handler := consumer.NewStandingsHandler(challenges, logger.Named(log, "standings"))

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: httptransport.NewMetricsHandler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("consumer metrics listening", zap.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	lc.Register("metrics-server", metricsSrv.Shutdown)

	var wg sync.WaitGroup
	for _, topic := range cfg.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})

		proc := consumer.NewProcessor(reader, handler,
			consumer.WithLogger(log.Named("consumer").With(zap.String("topic", topic))),
			consumer.WithRetryDelay(time.Second),
			consumer.WithMaxAttempts(cfg.ConsumerAttempts),
		)

		wg.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			log.Info("consumer started", zap.String("topic", topic), zap.String("group", cfg.ConsumerGroupID))
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("consumer stopped", zap.String("topic", topic), zap.Error(err))
			}
		}(topic, reader)
	}

	<-ctx.Done()
	log.Info("consumer shutdown requested")
	wg.Wait()

	if err := lc.Shutdown(context.Background()); err != nil {
		log.Error("shutdown incomplete", zap.Error(err))
	}
}
