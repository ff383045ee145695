package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/item-enricher/config"
	"github.com/angeloszaimis/item-enricher/internal/cache"
	"github.com/angeloszaimis/item-enricher/internal/circuitbreaker"
	"github.com/angeloszaimis/item-enricher/internal/dependency"
	"github.com/angeloszaimis/item-enricher/internal/enrichment"
	"github.com/angeloszaimis/item-enricher/internal/fallback"
	"github.com/angeloszaimis/item-enricher/internal/handler"
	"github.com/angeloszaimis/item-enricher/internal/healthcheck"
	"github.com/angeloszaimis/item-enricher/internal/httpserver"
	"github.com/angeloszaimis/item-enricher/internal/metrics"
	"github.com/angeloszaimis/item-enricher/internal/store"
	"github.com/angeloszaimis/item-enricher/pkg/logger"
)

const enrichmentBreaker = "enrichment"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Item service stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("Error releasing resources", slog.Any("err", err))
		}
	}()

	srv, err := httpserver.New(cfg.Server.Address, app.handler, httpserver.Options{
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	app.collector.Start(gctx)

	g.Go(func() error {
		app.monitor.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info("Item service listening",
			slog.String("address", cfg.Server.Address),
			slog.String("base_path", cfg.Server.BasePath))
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

type application struct {
	handler   http.Handler
	monitor   *healthcheck.Monitor
	collector *metrics.Collector
	breakers  *circuitbreaker.Registry
	closers   []func() error
}

func (a *application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	app := &application{
		collector: metrics.NewCollector(cfg.Metrics.BufferSize, log),
	}

	records, err := createStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	app.closers = append(app.closers, records.Close)

	backend, closeBackend := createCacheBackend(cfg.Cache, log, app.collector)
	app.closers = append(app.closers, closeBackend)

	layer := cache.NewLayer(backend, records, cfg.Cache.TTL, log, app.collector)

	client, err := dependency.New(cfg.Dependency.BaseURL, dependency.Options{
		ConnectTimeout: cfg.Dependency.ConnectTimeout,
		Timeout:        cfg.Dependency.Timeout,
	}, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.breakers = circuitbreaker.NewRegistry(circuitbreaker.Settings{
		WindowSize:    cfg.Breaker.WindowSize,
		MinCalls:      cfg.Breaker.MinCalls,
		FailureRatio:  cfg.Breaker.FailureRatio,
		CoolDown:      cfg.Breaker.CoolDown,
		HalfOpenCalls: cfg.Breaker.HalfOpenCalls,
		OnStateChange: breakerListener(log, app.collector),
	})

	orchestrator := enrichment.New(
		layer,
		client,
		app.breakers.Get(enrichmentBreaker),
		fallback.New(""),
		log,
		app.collector,
	)

	app.monitor = healthcheck.NewMonitor(cfg.HealthCheck.Interval, log, app.collector)
	app.monitor.Register("store", true, records.Ping)
	app.monitor.Register("cache", false, layer.Ping)
	app.monitor.Register(enrichmentBreaker, false, breakerProbe(app.breakers))

	items := handler.NewItemHandler(log, layer, records, orchestrator)
	mux := setupRouter(cfg.Server.BasePath, items, handler.NewHealthHandler(app.monitor), app.collector)

	app.handler = handler.Chain(mux,
		handler.Correlation,
		handler.AccessLog(log, app.collector),
		handler.Recover(log),
	)

	return app, nil
}

func createStore(ctx context.Context, cfg config.StoreConfig) (*store.SQLStore, error) {
	return store.Open(ctx, cfg.Driver, cfg.DSN, store.Options{
		Timeout:      cfg.Timeout,
		MaxOpenConns: cfg.MaxOpenConns,
	})
}

// createCacheBackend returns the configured backend and a function releasing
// its resources.
func createCacheBackend(cfg config.CacheConfig, log *slog.Logger, collector *metrics.Collector) (cache.Backend, func() error) {
	switch cfg.Backend {
	case config.CacheBackendRedis:
		redisBackend := cache.NewRedisBackend(cache.RedisOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  cfg.Redis.Timeout,
		})

		guarded := cache.NewGuardedBackend("cache", redisBackend, cache.GuardOptions{
			ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
			CoolDown:            cfg.Breaker.CoolDown,
			OnStateChange: func(name, from, to string) {
				collector.Emit(metrics.MetricEvent{
					Type:      metrics.EventBreakerTransition,
					Component: name,
					From:      from,
					To:        to,
				})
			},
		}, log)

		log.Info("Using redis cache", slog.String("address", cfg.Redis.Address))
		return guarded, redisBackend.Close

	default:
		log.Info("Using in-memory cache", slog.Duration("ttl", cfg.TTL))
		return cache.NewMemoryBackend(nil), func() error { return nil }
	}
}

func breakerListener(log *slog.Logger, collector *metrics.Collector) func(name string, from, to circuitbreaker.State) {
	return func(name string, from, to circuitbreaker.State) {
		attrs := []any{
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		}
		if to == circuitbreaker.StateOpen {
			log.Warn("Circuit breaker opened", attrs...)
		} else {
			log.Info("Circuit breaker state changed", attrs...)
		}

		collector.Emit(metrics.MetricEvent{
			Type:      metrics.EventBreakerTransition,
			Component: name,
			From:      from.String(),
			To:        to.String(),
		})
	}
}

// breakerProbe reports a dependency as down while its breaker is open.
func breakerProbe(registry *circuitbreaker.Registry) healthcheck.Probe {
	return func(context.Context) error {
		for name, state := range registry.Stats() {
			if state == circuitbreaker.StateOpen {
				return fmt.Errorf("circuit breaker %s is %s", name, state)
			}
		}
		return nil
	}
}
