// Package enrichment combines a stored record with live data from the
// enrichment dependency, degrading to a fallback whenever the dependency
// cannot answer.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/angeloszaimis/item-enricher/internal/circuitbreaker"
	"github.com/angeloszaimis/item-enricher/internal/correlation"
	"github.com/angeloszaimis/item-enricher/internal/fallback"
	"github.com/angeloszaimis/item-enricher/internal/metrics"
	"github.com/angeloszaimis/item-enricher/internal/record"
)

// RecordSource resolves records, normally through the cache layer.
type RecordSource interface {
	Get(ctx context.Context, id int64) (record.Record, error)
}

// InfoFetcher performs the live dependency call.
type InfoFetcher interface {
	Fetch(ctx context.Context, id int64) (record.EnrichmentInfo, error)
}

type Orchestrator struct {
	records   RecordSource
	fetcher   InfoFetcher
	breaker   *circuitbreaker.CircuitBreaker
	composer  *fallback.Composer
	logger    *slog.Logger
	collector *metrics.Collector
}

// New builds an Orchestrator. collector may be nil.
func New(
	records RecordSource,
	fetcher InfoFetcher,
	breaker *circuitbreaker.CircuitBreaker,
	composer *fallback.Composer,
	logger *slog.Logger,
	collector *metrics.Collector,
) *Orchestrator {
	return &Orchestrator{
		records:   records,
		fetcher:   fetcher,
		breaker:   breaker,
		composer:  composer,
		logger:    logger,
		collector: collector,
	}
}

// Enrich returns the record for id paired with its EnrichmentInfo. Record
// lookup errors are returned unchanged. Once the record is resolved Enrich
// always succeeds: dependency failures are replaced by a fallback.
func (o *Orchestrator) Enrich(ctx context.Context, id int64) (record.EnrichedRecord, error) {
	item, err := o.records.Get(ctx, id)
	if err != nil {
		return record.EnrichedRecord{}, err
	}

	info, err := o.fetch(ctx, item.ID)
	if err != nil {
		info = o.composer.Compose(item.ID, err)

		o.collector.Emit(metrics.MetricEvent{
			Type:  metrics.EventFallback,
			Cause: fallback.Category(err),
		})
		o.logger.Warn("Enrichment degraded to fallback",
			correlation.Attr(ctx),
			slog.Int64("id", item.ID),
			slog.String("cause", fallback.Category(err)),
			slog.String("error", err.Error()))
	}

	return record.EnrichedRecord{Item: item, ExternalInfo: info}, nil
}

type fetchResult struct {
	info record.EnrichmentInfo
	err  error
}

// fetch runs the guarded call detached from ctx so that its outcome reaches
// the breaker even when the caller stops waiting.
func (o *Orchestrator) fetch(ctx context.Context, id int64) (record.EnrichmentInfo, error) {
	detached := context.WithoutCancel(ctx)
	done := make(chan fetchResult, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fetchResult{err: fmt.Errorf("enrichment call panicked: %v", p)}
			}
		}()

		info, err := circuitbreaker.Execute(o.breaker, func() (record.EnrichmentInfo, error) {
			return o.fetcher.Fetch(detached, id)
		})
		done <- fetchResult{info: info, err: err}
	}()

	select {
	case res := <-done:
		if errors.Is(res.err, circuitbreaker.ErrOpenState) {
			return record.EnrichmentInfo{}, fmt.Errorf("%w: %v", record.ErrCircuitOpen, res.err)
		}
		return res.info, res.err

	case <-ctx.Done():
		return record.EnrichmentInfo{}, fmt.Errorf("%w: caller gave up: %v", record.ErrDependencyTimeout, ctx.Err())
	}
}
