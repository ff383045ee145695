package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/angeloszaimis/item-enricher/internal/correlation"
	"github.com/angeloszaimis/item-enricher/internal/metrics"
	"github.com/angeloszaimis/item-enricher/internal/record"
	"github.com/angeloszaimis/item-enricher/internal/store"
)

const DefaultTTL = 10 * time.Minute

// Loader fetches a record from the source of truth on a cache miss.
type Loader func(ctx context.Context) (record.Record, error)

type Layer struct {
	backend   Backend
	gateway   store.Gateway
	ttl       time.Duration
	logger    *slog.Logger
	collector *metrics.Collector
}

// NewLayer builds a Layer. collector may be nil.
func NewLayer(backend Backend, gateway store.Gateway, ttl time.Duration, logger *slog.Logger, collector *metrics.Collector) *Layer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Layer{
		backend:   backend,
		gateway:   gateway,
		ttl:       ttl,
		logger:    logger,
		collector: collector,
	}
}

// GetOrLoad returns the cached record for id or, on a miss, the loader's
// result cached under the loader's returned identifier. Loader errors are
// returned unchanged. A backend failure bypasses the cache.
func (l *Layer) GetOrLoad(ctx context.Context, id int64, loader Loader) (record.Record, error) {
	cached, ok, err := l.backend.Get(ctx, id)
	switch {
	case err != nil:
		l.backendFailed(ctx, "get", id, err)
		return loader(ctx)
	case ok:
		l.collector.Emit(metrics.MetricEvent{Type: metrics.EventCacheHit})
		return cached, nil
	}

	l.collector.Emit(metrics.MetricEvent{Type: metrics.EventCacheMiss})

	loaded, err := loader(ctx)
	if err != nil {
		return record.Record{}, err
	}

	if err := l.backend.Set(ctx, loaded, l.ttl); err != nil {
		l.backendFailed(ctx, "set", loaded.ID, err)
	}

	return loaded, nil
}

// Get reads id through the cache from the store.
func (l *Layer) Get(ctx context.Context, id int64) (record.Record, error) {
	return l.GetOrLoad(ctx, id, func(ctx context.Context) (record.Record, error) {
		return l.gateway.GetByID(ctx, id)
	})
}

// Put persists r and caches the stored copy. Nothing is cached when the store
// write fails; a cache failure after a successful write is logged only.
func (l *Layer) Put(ctx context.Context, r record.Record) (record.Record, error) {
	saved, err := l.gateway.Save(ctx, r)
	if err != nil {
		return record.Record{}, err
	}

	if err := l.backend.Set(ctx, saved, l.ttl); err != nil {
		l.backendFailed(ctx, "set", saved.ID, err)
	}

	return saved, nil
}

func (l *Layer) Invalidate(ctx context.Context, id int64) error {
	if err := l.backend.Delete(ctx, id); err != nil {
		l.backendFailed(ctx, "delete", id, err)
		return err
	}
	return nil
}

func (l *Layer) Ping(ctx context.Context) error {
	return l.backend.Ping(ctx)
}

func (l *Layer) backendFailed(ctx context.Context, op string, id int64, err error) {
	l.collector.Emit(metrics.MetricEvent{Type: metrics.EventCacheError})
	l.logger.Warn("Cache backend failed, bypassing cache",
		correlation.Attr(ctx),
		slog.String("op", op),
		slog.Int64("id", id),
		slog.String("error", err.Error()))
}
