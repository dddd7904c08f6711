// Package syncmeta tracks when each reference cache was last refreshed.
package syncmeta

import (
	"context"
	"time"

	"warimas-pos/internal/store"
)

const (
	// CacheTTL is the age after which a cache should be refreshed.
	CacheTTL = 24 * time.Hour
	// RefreshInterval is the age checked by the hourly background refresh.
	RefreshInterval = time.Hour
)

// Meta is one row of offline_sync_meta.
type Meta struct {
	Entity      string `json:"entity"`
	LastSyncAt  string `json:"lastSyncAt"`
	RecordCount int    `json:"recordCount"`
}

// Put writes the metadata row for entity inside tx.
func Put(tx *store.Tx, entity string, count int, now time.Time) error {
	return tx.Put(store.TableSyncMeta, entity, Meta{
		Entity:      entity,
		LastSyncAt:  store.FormatTime(now),
		RecordCount: count,
	})
}

func Delete(tx *store.Tx, entity string) error {
	return tx.Delete(store.TableSyncMeta, entity)
}

var tables = store.Tables(store.TableSyncMeta)

// Get returns the metadata row for entity, or nil.
func Get(ctx context.Context, db *store.DB, entity string) (*Meta, error) {
	var m *Meta
	err := db.View(ctx, tables, func(tx *store.Tx) error {
		var err error
		m, err = store.Get[Meta](tx, store.TableSyncMeta, entity)
		return err
	})
	return m, err
}

// All returns every metadata row.
func All(ctx context.Context, db *store.DB) ([]Meta, error) {
	var out []Meta
	err := db.View(ctx, tables, func(tx *store.Tx) error {
		var err error
		out, err = store.List[Meta](tx, store.TableSyncMeta, nil)
		return err
	})
	return out, err
}

// Tracker answers freshness questions for one entity.
type Tracker struct {
	db     *store.DB
	entity string
	now    func() time.Time
}

func NewTracker(db *store.DB, entity string, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{db: db, entity: entity, now: now}
}

func (t *Tracker) Entity() string { return t.entity }

func (t *Tracker) Meta(ctx context.Context) (*Meta, error) {
	return Get(ctx, t.db, t.entity)
}

// LastSyncAt returns the last refresh time, or nil when never refreshed.
func (t *Tracker) LastSyncAt(ctx context.Context) (*time.Time, error) {
	m, err := t.Meta(ctx)
	if err != nil || m == nil {
		return nil, err
	}
	ts, err := store.ParseTime(m.LastSyncAt)
	if err != nil {
		return nil, nil
	}
	return &ts, nil
}

// OlderThan reports whether the cache is missing or at least age old.
func (t *Tracker) OlderThan(ctx context.Context, age time.Duration) (bool, error) {
	last, err := t.LastSyncAt(ctx)
	if err != nil {
		return true, err
	}
	if last == nil {
		return true, nil
	}
	return t.now().Sub(*last) >= age, nil
}

func (t *Tracker) ShouldRefresh(ctx context.Context) (bool, error) {
	return t.OlderThan(ctx, CacheTTL)
}

func (t *Tracker) ShouldRefreshHourly(ctx context.Context) (bool, error) {
	return t.OlderThan(ctx, RefreshInterval)
}
