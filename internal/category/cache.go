package category

import (
	"context"
	"sort"
	"time"

	"warimas-pos/internal/refcache"
	"warimas-pos/internal/store"
)

const Entity = "categories"

type Fetcher interface {
	FetchCategories(ctx context.Context) ([]Category, error)
}

type Cache struct {
	*refcache.Table[Category]
	fetcher Fetcher
}

func NewCache(db *store.DB, fetcher Fetcher, now func() time.Time) *Cache {
	return &Cache{
		Table:   refcache.NewTable(db, store.TableCategories, Entity, func(c *Category) string { return c.ID }, now),
		fetcher: fetcher,
	}
}

func (c *Cache) CacheAll(ctx context.Context) error {
	_, err := c.Replace(ctx, c.fetcher.FetchCategories)
	return err
}

func (c *Cache) RefreshIfNeeded(ctx context.Context, force bool) (bool, error) {
	return c.Table.RefreshIfNeeded(ctx, force, c.fetcher.FetchCategories)
}

// GetCached returns active, non raw-material categories in display order.
func (c *Cache) GetCached(ctx context.Context) ([]Category, error) {
	rows, err := c.List(ctx, func(cat *Category) bool {
		return cat.IsActive && !cat.IsRawMaterial
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].SortOrder, rows[j].SortOrder
		switch {
		case a == nil && b == nil:
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a < *b
		}
		return rows[i].Name < rows[j].Name
	})
	return rows, nil
}

func (c *Cache) GetByID(ctx context.Context, id string) (*Category, error) {
	return c.Get(ctx, id)
}

// DispatchStation resolves the station of a category, falling back to none
// when the category is unknown.
func (c *Cache) DispatchStation(ctx context.Context, categoryID string) (Station, error) {
	if categoryID == "" {
		return StationNone, nil
	}
	cat, err := c.Get(ctx, categoryID)
	if err != nil {
		return StationNone, err
	}
	return cat.Station(), nil
}
