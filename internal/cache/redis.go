package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/angeloszaimis/item-enricher/internal/record"
)

const (
	keyPrefix           = "items:"
	defaultRedisTimeout = 100 * time.Millisecond
)

type RedisOptions struct {
	Address  string
	Password string
	DB       int
	Timeout  time.Duration
}

// RedisBackend stores records as JSON under items:{id}. Expiry is delegated to
// Redis key TTLs.
type RedisBackend struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisBackend(opts RedisOptions) *RedisBackend {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRedisTimeout
	}

	return &RedisBackend{
		client: redis.NewClient(&redis.Options{
			Addr:         opts.Address,
			Password:     opts.Password,
			DB:           opts.DB,
			DialTimeout:  opts.Timeout,
			ReadTimeout:  opts.Timeout,
			WriteTimeout: opts.Timeout,
			MaxRetries:   -1,
		}),
		timeout: opts.Timeout,
	}
}

func (b *RedisBackend) Get(ctx context.Context, id int64) (record.Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	data, err := b.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return record.Record{}, false, nil
	}
	if err != nil {
		return record.Record{}, false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	var r record.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return record.Record{}, false, fmt.Errorf("decode cached item %d: %w", id, err)
	}

	return r, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, r record.Record, ttl time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.client.Set(ctx, key(r.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func key(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}
