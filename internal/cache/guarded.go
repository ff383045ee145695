package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/angeloszaimis/item-enricher/internal/record"
)

type GuardOptions struct {
	// ConsecutiveFailures trips the guard. Defaults to 3.
	ConsecutiveFailures uint32
	// CoolDown is how long the guard stays open. Defaults to 5s.
	CoolDown time.Duration
	// OnStateChange is called with gobreaker state names.
	OnStateChange func(name, from, to string)
}

// GuardedBackend short-circuits a failing backend so cache outages cost no
// latency. While open every call fails with ErrBackendUnavailable.
type GuardedBackend struct {
	next    Backend
	breaker *gobreaker.CircuitBreaker
}

type lookup struct {
	record record.Record
	ok     bool
}

func NewGuardedBackend(name string, next Backend, opts GuardOptions, logger *slog.Logger) *GuardedBackend {
	if opts.ConsecutiveFailures == 0 {
		opts.ConsecutiveFailures = 3
	}
	if opts.CoolDown <= 0 {
		opts.CoolDown = 5 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Cache guard state changed",
				slog.String("guard", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if opts.OnStateChange != nil {
				opts.OnStateChange(name, from.String(), to.String())
			}
		},
	}

	return &GuardedBackend{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *GuardedBackend) Get(ctx context.Context, id int64) (record.Record, bool, error) {
	res, err := g.breaker.Execute(func() (interface{}, error) {
		r, ok, err := g.next.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return lookup{record: r, ok: ok}, nil
	})
	if err != nil {
		return record.Record{}, false, guardError(err)
	}

	l := res.(lookup)
	return l.record, l.ok, nil
}

func (g *GuardedBackend) Set(ctx context.Context, r record.Record, ttl time.Duration) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.next.Set(ctx, r, ttl)
	})
	return guardError(err)
}

func (g *GuardedBackend) Delete(ctx context.Context, id int64) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.next.Delete(ctx, id)
	})
	return guardError(err)
}

// Ping bypasses the guard so health checks observe recovery even while the
// guard is open.
func (g *GuardedBackend) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}

func (g *GuardedBackend) State() string {
	return g.breaker.State().String()
}

func guardError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return err
}
