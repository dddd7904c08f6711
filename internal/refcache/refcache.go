// Package refcache holds the full-replace logic shared by the reference-data
// caches: fetch the whole remote table, then swap the local copy in one
// transaction together with its sync metadata.
package refcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warimas-pos/internal/logger"
	"warimas-pos/internal/metrics"
	"warimas-pos/internal/store"
	"warimas-pos/internal/syncmeta"
	"warimas-pos/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrNoData is returned when the remote query succeeds without a result set.
var ErrNoData = errors.New("no data returned")

// FetchFunc loads a full remote table.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Table is one locally cached reference table.
type Table[T any] struct {
	*syncmeta.Tracker

	db    *store.DB
	table store.Table
	key   func(*T) string
	now   func() time.Time
}

func NewTable[T any](db *store.DB, table store.Table, entity string, key func(*T) string, now func() time.Time) *Table[T] {
	if now == nil {
		now = time.Now
	}
	return &Table[T]{
		Tracker: syncmeta.NewTracker(db, entity, now),
		db:      db,
		table:   table,
		key:     key,
		now:     now,
	}
}

func (t *Table[T]) DB() *store.DB     { return t.db }
func (t *Table[T]) Name() store.Table { return t.table }
func (t *Table[T]) Now() time.Time    { return t.now() }

// Fetch calls fetch and normalises its failures.
func (t *Table[T]) Fetch(ctx context.Context, fetch FetchFunc[T]) ([]T, error) {
	ctx, span := tracing.StartSpan(ctx, "refcache.Fetch", attribute.String("entity", t.Entity()))
	rows, err := fetch(ctx)
	if err != nil {
		err = fmt.Errorf("failed to fetch %s: %w", t.Entity(), err)
	} else if rows == nil {
		err = fmt.Errorf("%w from %s query", ErrNoData, t.Entity())
	}
	tracing.End(span, err)
	return rows, err
}

// Replace fetches the remote table and swaps it in: clear, bulk put and
// metadata commit together, so readers never observe an empty table.
func (t *Table[T]) Replace(ctx context.Context, fetch FetchFunc[T]) (int, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "cache"),
		zap.String("entity", t.Entity()),
	)
	timer := metrics.StartTimer()

	rows, err := t.Fetch(ctx, fetch)
	if err != nil {
		metrics.CacheRefreshTotal.WithLabelValues(t.Entity(), "fetch_error").Inc()
		log.Error("fetch failed", zap.Error(err))
		return 0, err
	}

	err = t.db.Update(ctx, store.Tables(t.table, store.TableSyncMeta), func(tx *store.Tx) error {
		if err := tx.Clear(t.table); err != nil {
			return err
		}
		for i := range rows {
			if err := tx.Put(t.table, t.key(&rows[i]), rows[i]); err != nil {
				return err
			}
		}
		return syncmeta.Put(tx, t.Entity(), len(rows), t.now())
	})
	if err != nil {
		metrics.CacheRefreshTotal.WithLabelValues(t.Entity(), "store_error").Inc()
		log.Error("failed to replace cache", zap.Error(err))
		return 0, err
	}

	metrics.CacheRefreshTotal.WithLabelValues(t.Entity(), "success").Inc()
	metrics.CacheRecordCount.WithLabelValues(t.Entity()).Set(float64(len(rows)))
	d := timer.ObserveDuration(metrics.CacheRefreshDuration.WithLabelValues(t.Entity()))
	log.Info("cache refreshed", zap.Int("count", len(rows)), zap.Duration("duration", d))
	return len(rows), nil
}

// RefreshIfNeeded replaces the table when forced or when ShouldRefresh says so.
func (t *Table[T]) RefreshIfNeeded(ctx context.Context, force bool, fetch FetchFunc[T]) (bool, error) {
	if !force {
		stale, err := t.ShouldRefresh(ctx)
		if err == nil && !stale {
			return false, nil
		}
	}
	if _, err := t.Replace(ctx, fetch); err != nil {
		return false, err
	}
	return true, nil
}

// Clear wipes the table and its metadata row.
func (t *Table[T]) Clear(ctx context.Context) error {
	return t.db.Update(ctx, store.Tables(t.table, store.TableSyncMeta), func(tx *store.Tx) error {
		if err := tx.Clear(t.table); err != nil {
			return err
		}
		return syncmeta.Delete(tx, t.Entity())
	})
}

func (t *Table[T]) Count(ctx context.Context) (int, error) {
	var n int
	err := t.db.View(ctx, store.Tables(t.table), func(tx *store.Tx) error {
		var err error
		n, err = tx.Count(t.table)
		return err
	})
	return n, err
}

// Get returns the row stored under key, or nil.
func (t *Table[T]) Get(ctx context.Context, key string) (*T, error) {
	var row *T
	err := t.db.View(ctx, store.Tables(t.table), func(tx *store.Tx) error {
		var err error
		row, err = store.Get[T](tx, t.table, key)
		return err
	})
	return row, err
}

// List returns the rows accepted by keep (all rows when keep is nil).
func (t *Table[T]) List(ctx context.Context, keep func(*T) bool) ([]T, error) {
	var rows []T
	err := t.db.View(ctx, store.Tables(t.table), func(tx *store.Tx) error {
		var err error
		rows, err = store.List(tx, t.table, keep)
		return err
	})
	return rows, err
}
