package modifier

import (
	"context"
	"time"

	"warimas-pos/internal/refcache"
	"warimas-pos/internal/store"
)

const Entity = "modifiers"

type Fetcher interface {
	FetchModifiers(ctx context.Context) ([]Modifier, error)
}

type Cache struct {
	*refcache.Table[Modifier]
	fetcher Fetcher
}

func NewCache(db *store.DB, fetcher Fetcher, now func() time.Time) *Cache {
	return &Cache{
		Table:   refcache.NewTable(db, store.TableModifiers, Entity, func(m *Modifier) string { return m.ID }, now),
		fetcher: fetcher,
	}
}

func (c *Cache) CacheAll(ctx context.Context) error {
	_, err := c.Replace(ctx, c.fetcher.FetchModifiers)
	return err
}

func (c *Cache) RefreshIfNeeded(ctx context.Context, force bool) (bool, error) {
	return c.Table.RefreshIfNeeded(ctx, force, c.fetcher.FetchModifiers)
}

// ForProduct returns the active rows attached to a product.
func (c *Cache) ForProduct(ctx context.Context, productID string) ([]Modifier, error) {
	return c.List(ctx, func(m *Modifier) bool {
		return m.IsActive && m.ProductID != nil && *m.ProductID == productID
	})
}

// ForCategory returns the active rows attached to a category.
func (c *Cache) ForCategory(ctx context.Context, categoryID string) ([]Modifier, error) {
	return c.List(ctx, func(m *Modifier) bool {
		return m.IsActive && m.CategoryID != nil && *m.CategoryID == categoryID
	})
}

func (c *Cache) GetByID(ctx context.Context, id string) (*Modifier, error) {
	return c.Get(ctx, id)
}

// Resolve returns the modifier groups offered for a product. Either id may be empty.
func (c *Cache) Resolve(ctx context.Context, productID, categoryID string) ([]Group, error) {
	var productRows, categoryRows []Modifier
	var err error

	if productID != "" {
		if productRows, err = c.ForProduct(ctx, productID); err != nil {
			return nil, err
		}
	}
	if categoryID != "" {
		if categoryRows, err = c.ForCategory(ctx, categoryID); err != nil {
			return nil, err
		}
	}

	return Merge(GroupRows(productRows, false), GroupRows(categoryRows, true)), nil
}
