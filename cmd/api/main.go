package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/chazstevenson112/Steppr/internal/api"
	"github.com/chazstevenson112/Steppr/internal/auth"
	"github.com/chazstevenson112/Steppr/internal/config"
	"github.com/chazstevenson112/Steppr/internal/domain"
	"github.com/chazstevenson112/Steppr/internal/health"
	"github.com/chazstevenson112/Steppr/internal/lifecycle"
	"github.com/chazstevenson112/Steppr/internal/middleware"
	"github.com/chazstevenson112/Steppr/internal/outbox"
	"github.com/chazstevenson112/Steppr/internal/persistence/memory"
	"github.com/chazstevenson112/Steppr/internal/persistence/postgres"
	"github.com/chazstevenson112/Steppr/internal/scheduler"
	httptransport "github.com/chazstevenson112/Steppr/internal/transport/http"
	"github.com/chazstevenson112/Steppr/pkg/logger"
)

type store interface {
	domain.ActivityStore
	domain.ChallengeStore
	domain.StandingsStore
	domain.UserStore
}

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
	if err := run(cfg, log); err != nil {
		log.Fatal("steppr api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	lc := lifecycle.New(cfg.ShutdownTimeout, log)
	ctx, stop := lc.SignalContext(context.Background())
	defer stop()

	st, err := openStore(ctx, cfg, log, lc)
	if err != nil {
		_ = lc.Shutdown(context.Background())
		return err
	}

	opts := []domain.Option{
		domain.WithLogger(log),
		domain.WithConverter(domain.Converter{Lenient: cfg.ConversionLenient}),
	}
	challenges := domain.NewChallengeService(st, st, opts...)
	activityOpts := append([]domain.Option{}, opts...)
	if !cfg.UsesPostgres() {
		// Without the event pipeline, standings are refreshed in-line.
		activityOpts = append(activityOpts, domain.WithStandingsRefresher(challenges))
	}
	activities := domain.NewActivityService(st, activityOpts...)
	profiles := domain.NewProfileService(st, st, st, opts...)

	var provider health.Provider = health.NewLedgerProvider(st)
	if cfg.RedisURL != "" {
		client, err := health.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, health cache disabled", zap.Error(err))
		} else {
			lc.Register("redis", func(context.Context) error { return client.Close() })
			provider = health.NewCachedProvider(provider, client, cfg.HealthCacheTTL, logger.Named(log, "health"))
		}
	}
	dashboard := health.NewDashboardService(provider, profiles, nil)

	job := scheduler.NewStandingsJob(challenges, cfg.StandingsInterval, logger.Named(log, "scheduler"))
	if err := job.Start(); err != nil {
		_ = lc.Shutdown(context.Background())
		return err
	}
	lc.Register("standings-scheduler", job.Stop)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, auth.SkipPaths(httptransport.PublicPaths...))
	go sweepLimiter(ctx, limiter)

	handler := api.NewHandler(api.Services{
		Activities: activities,
		Challenges: challenges,
		Profiles:   profiles,
		Dashboard:  dashboard,
	}, log)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
		Logger:         log,
	}, handler))
	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: httptransport.NewMetricsHandler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 2)
	serve(server, "http", log, errCh)
	serve(metricsSrv, "metrics", log, errCh)
	lc.Register("metrics-server", metricsSrv.Shutdown)
	lc.Register("http-server", server.Shutdown)

	log.Info("steppr api started",
		zap.String("address", cfg.HTTPAddress),
		zap.String("storage", cfg.StorageDriver),
		zap.Bool("lenient_conversion", cfg.ConversionLenient),
	)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	return errors.Join(serveErr, lc.Shutdown(context.Background()))
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger, lc *lifecycle.Manager) (store, error) {
	if !cfg.UsesPostgres() {
		log.Info("using in-memory storage")
		return memory.NewStore(), nil
	}

	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.PostgresURL, logger.Named(log, "migrate")); err != nil {
			return nil, err
		}
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{URL: cfg.PostgresURL}, logger.Named(log, "postgres"))
	if err != nil {
		return nil, err
	}
	lc.Register("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	lc.Register("kafka-producer", func(context.Context) error { return producer.Close() })

	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, log).
		WithDLQBaseDelay(cfg.DLQBaseDelay)

	dispatchCtx, cancelDispatch := context.WithCancel(context.WithoutCancel(ctx))
	go dispatcher.Start(dispatchCtx)
	lc.Register("outbox-dispatcher", func(ctx context.Context) error {
		cancelDispatch()
		done := make(chan struct{})
		go func() {
			dispatcher.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	return postgres.NewRepository(pool), nil
}

func serve(srv *http.Server, name string, log *zap.Logger, errCh chan<- error) {
	go func() {
		log.Info("listening", zap.String("server", name), zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
		}
	}()
}

func sweepLimiter(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}
