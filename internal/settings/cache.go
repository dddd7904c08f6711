package settings

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"warimas-pos/internal/logger"
	"warimas-pos/internal/refcache"
	"warimas-pos/internal/store"
	"warimas-pos/internal/syncmeta"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	EntitySettings       = "settings"
	EntityTaxRates       = "tax_rates"
	EntityPaymentMethods = "payment_methods"
	EntityBusinessHours  = "business_hours"

	defaultValueType = "string"
)

type Fetcher interface {
	FetchSettings(ctx context.Context) ([]Setting, error)
	FetchTaxRates(ctx context.Context) ([]TaxRate, error)
	FetchPaymentMethods(ctx context.Context) ([]PaymentMethod, error)
	FetchBusinessHours(ctx context.Context) ([]BusinessHours, error)
}

// Cache holds the four settings-family tables. The settings table itself
// drives the freshness checks of the family.
type Cache struct {
	*refcache.Table[Setting]

	taxRates       *refcache.Table[TaxRate]
	paymentMethods *refcache.Table[PaymentMethod]
	businessHours  *refcache.Table[BusinessHours]

	db      *store.DB
	fetcher Fetcher
	now     func() time.Time
}

func NewCache(db *store.DB, fetcher Fetcher, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		Table:          refcache.NewTable(db, store.TableSettings, EntitySettings, func(s *Setting) string { return s.Key }, now),
		taxRates:       refcache.NewTable(db, store.TableTaxRates, EntityTaxRates, func(r *TaxRate) string { return r.ID }, now),
		paymentMethods: refcache.NewTable(db, store.TablePaymentMethods, EntityPaymentMethods, func(m *PaymentMethod) string { return m.ID }, now),
		businessHours:  refcache.NewTable(db, store.TableBusinessHours, EntityBusinessHours, func(h *BusinessHours) string { return strconv.Itoa(h.DayOfWeek) }, now),
		db:             db,
		fetcher:        fetcher,
		now:            now,
	}
}

func (c *Cache) fetchSettings(ctx context.Context) ([]Setting, error) {
	rows, err := c.fetcher.FetchSettings(ctx)
	for i := range rows {
		if rows[i].ValueType == "" {
			rows[i].ValueType = defaultValueType
		}
	}
	return rows, err
}

func (c *Cache) CacheSettings(ctx context.Context) error {
	_, err := c.Replace(ctx, c.fetchSettings)
	return err
}

func (c *Cache) CacheTaxRates(ctx context.Context) error {
	_, err := c.taxRates.Replace(ctx, c.fetcher.FetchTaxRates)
	return err
}

func (c *Cache) CachePaymentMethods(ctx context.Context) error {
	_, err := c.paymentMethods.Replace(ctx, c.fetcher.FetchPaymentMethods)
	return err
}

func (c *Cache) CacheBusinessHours(ctx context.Context) error {
	_, err := c.businessHours.Replace(ctx, c.fetcher.FetchBusinessHours)
	return err
}

// CacheAllData refreshes the four tables concurrently. A failing table does
// not stop the others; each failure is reported in Result.Errors.
func (c *Cache) CacheAllData(ctx context.Context) Result {
	lastSyncAt := store.FormatTime(c.now())
	jobs := []struct {
		entity string
		run    func(context.Context) error
	}{
		{EntitySettings, c.CacheSettings},
		{EntityTaxRates, c.CacheTaxRates},
		{EntityPaymentMethods, c.CachePaymentMethods},
		{EntityBusinessHours, c.CacheBusinessHours},
	}

	errs := make([]error, len(jobs))
	var g errgroup.Group
	for i, job := range jobs {
		g.Go(func() error {
			errs[i] = job.run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Errors: []string{}, LastSyncAt: lastSyncAt}
	for i, err := range errs {
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("failed to cache %s: %v", jobs[i].entity, err))
		}
	}
	res.Success = len(res.Errors) == 0

	if !res.Success {
		logger.FromCtx(ctx).Warn("settings cache partially refreshed",
			zap.String("layer", "cache"),
			zap.Strings("errors", res.Errors),
		)
	}
	return res
}

// CacheAll refreshes the whole settings family and fails when any table failed.
func (c *Cache) CacheAll(ctx context.Context) error {
	res := c.CacheAllData(ctx)
	if !res.Success {
		return fmt.Errorf("settings refresh: %v", res.Errors)
	}
	return nil
}

func (c *Cache) RefreshIfNeeded(ctx context.Context, force bool) (bool, error) {
	if !force {
		stale, err := c.ShouldRefresh(ctx)
		if err == nil && !stale {
			return false, nil
		}
	}
	if err := c.CacheAll(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Clear wipes the four tables and their metadata rows.
func (c *Cache) Clear(ctx context.Context) error {
	for _, clearFn := range []func(context.Context) error{
		c.Table.Clear, c.taxRates.Clear, c.paymentMethods.Clear, c.businessHours.Clear,
	} {
		if err := clearFn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// --- Reads ---

func (c *Cache) Settings(ctx context.Context) ([]Setting, error) {
	return c.List(ctx, nil)
}

func (c *Cache) Setting(ctx context.Context, key string) (*Setting, error) {
	return c.Get(ctx, key)
}

func (c *Cache) TaxRates(ctx context.Context) ([]TaxRate, error) {
	return c.taxRates.List(ctx, nil)
}

func (c *Cache) ActiveTaxRates(ctx context.Context) ([]TaxRate, error) {
	return c.taxRates.List(ctx, func(r *TaxRate) bool { return r.IsActive })
}

// DefaultTaxRate returns the active default rate, or nil.
func (c *Cache) DefaultTaxRate(ctx context.Context) (*TaxRate, error) {
	rows, err := c.taxRates.List(ctx, func(r *TaxRate) bool { return r.IsActive && r.IsDefault })
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (c *Cache) PaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	rows, err := c.paymentMethods.List(ctx, nil)
	sortPaymentMethods(rows)
	return rows, err
}

func (c *Cache) ActivePaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	rows, err := c.paymentMethods.List(ctx, func(m *PaymentMethod) bool { return m.IsActive })
	sortPaymentMethods(rows)
	return rows, err
}

func (c *Cache) DefaultPaymentMethod(ctx context.Context) (*PaymentMethod, error) {
	rows, err := c.paymentMethods.List(ctx, func(m *PaymentMethod) bool { return m.IsActive && m.IsDefault })
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// BusinessHours returns the week ordered by day.
func (c *Cache) BusinessHours(ctx context.Context) ([]BusinessHours, error) {
	rows, err := c.businessHours.List(ctx, nil)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].DayOfWeek < rows[j].DayOfWeek })
	return rows, err
}

func (c *Cache) SyncMetaFor(ctx context.Context, entity string) (*syncmeta.Meta, error) {
	return syncmeta.Get(ctx, c.db, entity)
}

func (c *Cache) AllSyncMeta(ctx context.Context) ([]syncmeta.Meta, error) {
	return syncmeta.All(ctx, c.db)
}

func sortPaymentMethods(rows []PaymentMethod) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SortOrder != rows[j].SortOrder {
			return rows[i].SortOrder < rows[j].SortOrder
		}
		return rows[i].Name < rows[j].Name
	})
}
