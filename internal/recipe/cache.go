package recipe

import (
	"context"
	"sort"
	"time"

	"warimas-pos/internal/product"
	"warimas-pos/internal/refcache"
	"warimas-pos/internal/store"

	"github.com/shopspring/decimal"
)

const Entity = "recipes"

type Fetcher interface {
	FetchRecipes(ctx context.Context) ([]Recipe, error)
}

type Cache struct {
	*refcache.Table[Recipe]
	fetcher Fetcher
}

func NewCache(db *store.DB, fetcher Fetcher, now func() time.Time) *Cache {
	return &Cache{
		Table:   refcache.NewTable(db, store.TableRecipes, Entity, func(r *Recipe) string { return r.ID }, now),
		fetcher: fetcher,
	}
}

func (c *Cache) CacheAll(ctx context.Context) error {
	_, err := c.Replace(ctx, c.fetcher.FetchRecipes)
	return err
}

func (c *Cache) RefreshIfNeeded(ctx context.Context, force bool) (bool, error) {
	return c.Table.RefreshIfNeeded(ctx, force, c.fetcher.FetchRecipes)
}

// ForProduct returns the active recipe rows of a product.
func (c *Cache) ForProduct(ctx context.Context, productID string) ([]Recipe, error) {
	rows, err := c.List(ctx, func(r *Recipe) bool {
		return r.IsActive && r.ProductID == productID
	})
	if err != nil {
		return nil, err
	}
	sortRecipes(rows)
	return rows, nil
}

// All returns every active recipe row.
func (c *Cache) All(ctx context.Context) ([]Recipe, error) {
	rows, err := c.List(ctx, func(r *Recipe) bool { return r.IsActive })
	if err != nil {
		return nil, err
	}
	sortRecipes(rows)
	return rows, nil
}

func (c *Cache) GetByID(ctx context.Context, id string) (*Recipe, error) {
	return c.Get(ctx, id)
}

// WithMaterials joins the active recipes of a product with their material
// rows from the products cache, in one read transaction.
func (c *Cache) WithMaterials(ctx context.Context, productID string) ([]WithMaterial, error) {
	var out []WithMaterial
	err := c.DB().View(ctx, store.Tables(store.TableRecipes, store.TableProducts), func(tx *store.Tx) error {
		rows, err := store.List(tx, store.TableRecipes, func(r *Recipe) bool {
			return r.IsActive && r.ProductID == productID
		})
		if err != nil {
			return err
		}
		sortRecipes(rows)

		out = make([]WithMaterial, 0, len(rows))
		for _, r := range rows {
			p, err := store.Get[product.Product](tx, store.TableProducts, r.MaterialID)
			if err != nil {
				return err
			}
			wm := WithMaterial{Recipe: r}
			if p != nil {
				wm.Material = &Material{
					ID:        p.ID,
					Name:      p.Name,
					SKU:       p.SKU,
					Unit:      p.Unit,
					CostPrice: p.CostPrice,
				}
			}
			out = append(out, wm)
		}
		return nil
	})
	return out, err
}

// Cost sums cost_price × quantity over active rows. Rows without a material
// or a cost price contribute nothing.
func Cost(rows []WithMaterial) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		if !r.IsActive || r.Material == nil || r.Material.CostPrice == nil {
			continue
		}
		line := decimal.NewFromInt(*r.Material.CostPrice).Mul(decimal.NewFromFloat(r.Quantity))
		total = total.Add(line)
	}
	return total
}

// ProductCost is the recipe cost of one product.
func (c *Cache) ProductCost(ctx context.Context, productID string) (decimal.Decimal, error) {
	rows, err := c.WithMaterials(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return Cost(rows), nil
}

func sortRecipes(rows []Recipe) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := deref(rows[i].CreatedAt), deref(rows[j].CreatedAt)
		if a != b {
			return a < b
		}
		return rows[i].ID < rows[j].ID
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
