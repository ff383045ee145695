package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/angeloszaimis/item-enricher/internal/record"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultTimeout = 5 * time.Second
)

// Gateway is the contract the cache layer and handlers depend on.
type Gateway interface {
	Save(ctx context.Context, r record.Record) (record.Record, error)
	GetByID(ctx context.Context, id int64) (record.Record, error)
	List(ctx context.Context) ([]record.Record, error)
	Ping(ctx context.Context) error
}

type dialect struct {
	sqlDriver string
	schema    string
}

var dialects = map[string]dialect{
	DriverPostgres: {
		sqlDriver: "pgx",
		schema: `CREATE TABLE IF NOT EXISTS items (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    value DOUBLE PRECISION NOT NULL
)`,
	},
	DriverSQLite: {
		sqlDriver: "sqlite",
		schema: `CREATE TABLE IF NOT EXISTS items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    value REAL NOT NULL
)`,
	},
}

const (
	insertItem = `INSERT INTO items (name, value) VALUES ($1, $2) RETURNING id`
	selectItem = `SELECT id, name, value FROM items WHERE id = $1`
	listItems  = `SELECT id, name, value FROM items ORDER BY id`
)

// Options tunes the connection pool and the per-operation time budget.
type Options struct {
	Timeout      time.Duration
	MaxOpenConns int
}

// SQLStore implements Gateway on database/sql.
type SQLStore struct {
	db      *sql.DB
	timeout time.Duration
}

// Open connects to the given engine and ensures the items table exists.
func Open(ctx context.Context, driver, dsn string, opts Options) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(d.sqlDriver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		// One connection keeps in-memory databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	s := New(db, opts.Timeout)

	if err := s.EnsureSchema(ctx, d.schema); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// New wraps an already opened database. The items table must exist.
func New(db *sql.DB, timeout time.Duration) *SQLStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SQLStore{db: db, timeout: timeout}
}

func (s *SQLStore) EnsureSchema(ctx context.Context, schema string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return classify(ctx, err)
	}
	return nil
}

// Save inserts r and returns it with the identifier assigned by the store.
func (s *SQLStore) Save(ctx context.Context, r record.Record) (record.Record, error) {
	if err := r.Validate(); err != nil {
		return record.Record{}, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var id int64
	if err := s.db.QueryRowContext(ctx, insertItem, r.Name, r.Value).Scan(&id); err != nil {
		return record.Record{}, classify(ctx, err)
	}

	r.ID = id
	return r, nil
}

func (s *SQLStore) GetByID(ctx context.Context, id int64) (record.Record, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var r record.Record
	err := s.db.QueryRowContext(ctx, selectItem, id).Scan(&r.ID, &r.Name, &r.Value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return record.Record{}, fmt.Errorf("%w: id %d", record.ErrNotFound, id)
		}
		return record.Record{}, classify(ctx, err)
	}

	return r, nil
}

func (s *SQLStore) List(ctx context.Context) ([]record.Record, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, listItems)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer rows.Close()

	records := make([]record.Record, 0)
	for rows.Next() {
		var r record.Record
		if err := rows.Scan(&r.ID, &r.Name, &r.Value); err != nil {
			return nil, classify(ctx, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, err)
	}

	return records, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return classify(ctx, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// bounded detaches ctx from caller cancellation and applies the store budget.
func (s *SQLStore) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

func classify(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", record.ErrStoreTimeout, err)
	default:
		return fmt.Errorf("%w: %v", record.ErrStoreUnavailable, err)
	}
}
