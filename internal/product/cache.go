package product

import (
	"context"
	"sort"
	"strings"
	"time"

	"warimas-pos/internal/refcache"
	"warimas-pos/internal/store"
)

const Entity = "products"

// Fetcher loads the full product table from the backend.
type Fetcher interface {
	FetchProducts(ctx context.Context) ([]Product, error)
}

type Cache struct {
	*refcache.Table[Product]
	fetcher Fetcher
}

func NewCache(db *store.DB, fetcher Fetcher, now func() time.Time) *Cache {
	return &Cache{
		Table:   refcache.NewTable(db, store.TableProducts, Entity, func(p *Product) string { return p.ID }, now),
		fetcher: fetcher,
	}
}

// CacheAll replaces the local products with the backend's.
func (c *Cache) CacheAll(ctx context.Context) error {
	_, err := c.Replace(ctx, c.fetcher.FetchProducts)
	return err
}

func (c *Cache) RefreshIfNeeded(ctx context.Context, force bool) (bool, error) {
	return c.Table.RefreshIfNeeded(ctx, force, c.fetcher.FetchProducts)
}

// GetCached returns sellable products, optionally limited to one category.
func (c *Cache) GetCached(ctx context.Context, categoryID string) ([]Product, error) {
	rows, err := c.List(ctx, func(p *Product) bool {
		if !p.Sellable() {
			return false
		}
		return categoryID == "" || (p.CategoryID != nil && *p.CategoryID == categoryID)
	})
	if err != nil {
		return nil, err
	}
	sortByName(rows)
	return rows, nil
}

// GetByID returns the raw row, sellable or not.
func (c *Cache) GetByID(ctx context.Context, id string) (*Product, error) {
	return c.Get(ctx, id)
}

// Search matches sellable products by name or SKU, case-insensitively.
func (c *Cache) Search(ctx context.Context, query string) ([]Product, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.GetCached(ctx, "")
	}

	rows, err := c.List(ctx, func(p *Product) bool {
		if !p.Sellable() {
			return false
		}
		if strings.Contains(strings.ToLower(p.Name), q) {
			return true
		}
		return p.SKU != nil && strings.Contains(strings.ToLower(*p.SKU), q)
	})
	if err != nil {
		return nil, err
	}
	sortByName(rows)
	return rows, nil
}

func sortByName(rows []Product) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].ID < rows[j].ID
	})
}
