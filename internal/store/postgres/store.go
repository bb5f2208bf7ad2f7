// Package postgres provides a Postgres-backed subscription store. Each Put
// is a single upsert, so the atomic-replace contract rides on row-level
// transactionality.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odanko/outagebot/internal/address"
	"github.com/odanko/outagebot/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the connection pool.
//
// Expected schema:
//
//	CREATE TABLE subscriptions (
//	    subscriber_id TEXT PRIMARY KEY,
//	    street TEXT NOT NULL,
//	    house TEXT NOT NULL,
//	    last_marker TEXT NOT NULL DEFAULT '',
//	    last_update_timestamp TEXT NOT NULL DEFAULT '',
//	    last_error TEXT NOT NULL DEFAULT '',
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the pool surface the store needs; pgxmock satisfies it.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Store reads and writes subscription rows in Postgres.
type Store struct {
	pool  querier
	table string
}

// New connects a pool using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("store.postgres.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "subscriptions"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for
// testing).
func NewWithPool(pool querier, table string) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = "subscriptions"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// List returns all subscription rows.
func (s *Store) List(ctx context.Context) ([]store.Subscription, error) {
	q := fmt.Sprintf(
		`SELECT subscriber_id, street, house, last_marker, last_update_timestamp, last_error FROM %s`,
		s.table)
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []store.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return out, nil
}

// Get returns the subscription row for id.
func (s *Store) Get(ctx context.Context, id string) (store.Subscription, bool, error) {
	q := fmt.Sprintf(
		`SELECT subscriber_id, street, house, last_marker, last_update_timestamp, last_error FROM %s WHERE subscriber_id = $1`,
		s.table)
	sub, err := scanSubscription(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Subscription{}, false, nil
	}
	if err != nil {
		return store.Subscription{}, false, fmt.Errorf("get subscription: %w", err)
	}
	return sub, true, nil
}

// Put upserts the row for sub.SubscriberID.
func (s *Store) Put(ctx context.Context, sub store.Subscription) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (subscriber_id, street, house, last_marker, last_update_timestamp, last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (subscriber_id) DO UPDATE SET
			street = EXCLUDED.street,
			house = EXCLUDED.house,
			last_marker = EXCLUDED.last_marker,
			last_update_timestamp = EXCLUDED.last_update_timestamp,
			last_error = EXCLUDED.last_error,
			updated_at = NOW()`, s.table)
	if _, err := s.pool.Exec(ctx, q,
		sub.SubscriberID,
		sub.Address.Street,
		sub.Address.House,
		sub.LastMarker,
		sub.LastUpdateTimestamp,
		sub.LastError,
	); err != nil {
		return fmt.Errorf("put subscription: %w", err)
	}
	return nil
}

// Delete removes the row for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE subscriber_id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

func scanSubscription(row pgx.Row) (store.Subscription, error) {
	var sub store.Subscription
	var addr address.Address
	if err := row.Scan(
		&sub.SubscriberID,
		&addr.Street,
		&addr.House,
		&sub.LastMarker,
		&sub.LastUpdateTimestamp,
		&sub.LastError,
	); err != nil {
		return store.Subscription{}, err
	}
	sub.Address = addr
	return sub, nil
}
