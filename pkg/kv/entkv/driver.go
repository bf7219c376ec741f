// Package entkv implements kv.Driver over any SQL database ent supports.
// The sqlite and postgres packages open the database and wrap this driver.
package entkv

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/recall/pkg/kv"
)

// Driver implements kv.Driver with ent's SQL builder on a single table.
type Driver struct {
	drv *entsql.Driver
	now func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock replaces time.Now, letting tests move time forward.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

// Open runs the schema migration on drv and returns a driver over it.
// On error drv is left open for the caller to close.
func Open(ctx context.Context, drv *entsql.Driver, opts ...Option) (*Driver, error) {
	if err := migrate(ctx, drv); err != nil {
		return nil, err
	}

	d := &Driver{drv: drv, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Driver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(d.drv.Dialect())
}

// live matches rows that have not expired at now.
func live(now int64) *entsql.Predicate {
	return entsql.Or(
		entsql.EQ(columnExpiresAt, 0),
		entsql.GT(columnExpiresAt, now),
	)
}

// Get returns the value stored under key.
func (d *Driver) Get(ctx context.Context, key string) ([]byte, error) {
	b := d.builder()
	query, args := b.Select(columnValue).
		From(b.Table(entriesTable)).
		Where(entsql.And(entsql.EQ(columnKey, key), live(d.now().UnixNano()))).
		Query()

	var rows entsql.Rows
	if err := d.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", key, err)
		}
		return nil, kv.NotFoundError{Key: key}
	}

	var value []byte
	if err := rows.Scan(&value); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", key, err)
	}
	return value, nil
}

// Set upserts or removes every entry inside one transaction.
func (d *Driver) Set(ctx context.Context, ttl time.Duration, entries ...kv.Entry) error {
	tx, err := d.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	b := d.builder()
	expiresAt := d.expiry(ttl)
	for _, e := range entries {
		var (
			query string
			args  []any
		)
		if e.Delete {
			query, args = b.Delete(entriesTable).Where(entsql.EQ(columnKey, e.Key)).Query()
		} else {
			query, args = b.Insert(entriesTable).
				Columns(columnKey, columnValue, columnExpiresAt).
				Values(e.Key, e.Value, expiresAt).
				OnConflict(entsql.ConflictColumns(columnKey), entsql.ResolveWithNewValues()).
				Query()
		}
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("failed to set %s: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Expire resets the expiry of live keys.
func (d *Driver) Expire(ctx context.Context, ttl time.Duration, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args := d.builder().Update(entriesTable).
		Set(columnExpiresAt, d.expiry(ttl)).
		Where(entsql.And(entsql.In(columnKey, anys(keys)...), live(d.now().UnixNano()))).
		Query()
	if err := d.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("failed to expire: %w", err)
	}
	return nil
}

// Delete removes keys.
func (d *Driver) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args := d.builder().Delete(entriesTable).
		Where(entsql.In(columnKey, anys(keys)...)).
		Query()
	if err := d.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return nil
}

// Sweep removes expired rows and returns how many were removed.
func (d *Driver) Sweep(ctx context.Context) (int64, error) {
	query, args := d.builder().Delete(entriesTable).
		Where(entsql.And(
			entsql.NEQ(columnExpiresAt, 0),
			entsql.LTE(columnExpiresAt, d.now().UnixNano()),
		)).
		Query()

	var res entsql.Result
	if err := d.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, fmt.Errorf("failed to sweep: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.drv.Close()
}

func (d *Driver) expiry(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return d.now().Add(ttl).UnixNano()
}

func anys(keys []string) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
