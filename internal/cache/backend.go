package cache

import (
	"context"
	"errors"
	"time"

	"github.com/angeloszaimis/item-enricher/internal/record"
)

var ErrBackendUnavailable = errors.New("cache backend unavailable")

// Backend stores record copies keyed by identifier. Get reports a miss with
// ok == false and a nil error; a non-nil error means the backend itself
// failed.
type Backend interface {
	Get(ctx context.Context, id int64) (r record.Record, ok bool, err error)
	Set(ctx context.Context, r record.Record, ttl time.Duration) error
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}
