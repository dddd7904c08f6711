// Package remote reads full reference-table snapshots from the backend
// Postgres database.
package remote

import (
	"context"
	"database/sql"
	"time"

	"warimas-pos/internal/category"
	"warimas-pos/internal/modifier"
	"warimas-pos/internal/product"
	"warimas-pos/internal/recipe"
	"warimas-pos/internal/settings"
	"warimas-pos/internal/tracing"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
)

const pingTimeout = 2 * time.Second

// Source implements the Fetcher interface of every reference cache.
type Source struct {
	db *sqlx.DB
}

func NewSource(db *sql.DB) *Source {
	return &Source{db: sqlx.NewDb(db, "postgres")}
}

// Online reports whether the backend answers a ping.
func (s *Source) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(ctx) == nil
}

func selectAll[T any](ctx context.Context, db *sqlx.DB, entity, query string) ([]T, error) {
	ctx, span := tracing.StartSpan(ctx, "remote.Select", attribute.String("entity", entity))
	rows := []T{}
	err := db.SelectContext(ctx, &rows, query)
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

const productsQuery = `
	SELECT id, category_id, sku, name, product_type, unit,
		retail_price::bigint AS retail_price,
		wholesale_price::bigint AS wholesale_price,
		cost_price::bigint AS cost_price,
		current_stock, min_stock_level, image_url,
		is_active, pos_visible, available_for_sale,
		to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.MS"Z"') AS updated_at
	FROM products
	WHERE is_active = true`

func (s *Source) FetchProducts(ctx context.Context) ([]product.Product, error) {
	return selectAll[product.Product](ctx, s.db, product.Entity, productsQuery)
}

const categoriesQuery = `
	SELECT id, name, icon, color, sort_order, dispatch_station,
		is_active, is_raw_material, show_in_pos,
		to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.MS"Z"') AS updated_at
	FROM categories`

func (s *Source) FetchCategories(ctx context.Context) ([]category.Category, error) {
	return selectAll[category.Category](ctx, s.db, category.Entity, categoriesQuery)
}

const modifiersQuery = `
	SELECT id, product_id, category_id, group_name,
		COALESCE(group_type, 'single') AS group_type,
		COALESCE(group_required, false) AS group_required,
		COALESCE(group_sort_order, 0) AS group_sort_order,
		option_id, option_label, option_icon,
		COALESCE(price_adjustment, 0)::bigint AS price_adjustment,
		COALESCE(is_default, false) AS is_default,
		COALESCE(option_sort_order, 0) AS option_sort_order,
		is_active,
		to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.MS"Z"') AS created_at
	FROM product_modifiers
	WHERE is_active = true`

func (s *Source) FetchModifiers(ctx context.Context) ([]modifier.Modifier, error) {
	return selectAll[modifier.Modifier](ctx, s.db, modifier.Entity, modifiersQuery)
}

const recipesQuery = `
	SELECT id, product_id, material_id, quantity, unit, is_active,
		to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.MS"Z"') AS created_at,
		to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.MS"Z"') AS updated_at
	FROM recipes
	WHERE is_active = true`

func (s *Source) FetchRecipes(ctx context.Context) ([]recipe.Recipe, error) {
	return selectAll[recipe.Recipe](ctx, s.db, recipe.Entity, recipesQuery)
}

const settingsQuery = `
	SELECT key, COALESCE(value, 'null'::jsonb) AS value, category_id,
		COALESCE(value_type, 'string') AS value_type,
		to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.MS"Z"') AS updated_at
	FROM settings`

func (s *Source) FetchSettings(ctx context.Context) ([]settings.Setting, error) {
	return selectAll[settings.Setting](ctx, s.db, settings.EntitySettings, settingsQuery)
}

const taxRatesQuery = `
	SELECT id, name, rate, is_default, is_active,
		to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.MS"Z"') AS created_at,
		to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.MS"Z"') AS updated_at
	FROM tax_rates`

func (s *Source) FetchTaxRates(ctx context.Context) ([]settings.TaxRate, error) {
	return selectAll[settings.TaxRate](ctx, s.db, settings.EntityTaxRates, taxRatesQuery)
}

const paymentMethodsQuery = `
	SELECT id, name, type, is_default, is_active, COALESCE(sort_order, 0) AS sort_order,
		to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.MS"Z"') AS created_at,
		to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.MS"Z"') AS updated_at
	FROM payment_methods`

func (s *Source) FetchPaymentMethods(ctx context.Context) ([]settings.PaymentMethod, error) {
	return selectAll[settings.PaymentMethod](ctx, s.db, settings.EntityPaymentMethods, paymentMethodsQuery)
}

const businessHoursQuery = `
	SELECT day_of_week, open_time::text AS open_time, close_time::text AS close_time, is_open
	FROM business_hours`

func (s *Source) FetchBusinessHours(ctx context.Context) ([]settings.BusinessHours, error) {
	return selectAll[settings.BusinessHours](ctx, s.db, settings.EntityBusinessHours, businessHoursQuery)
}

var (
	_ product.Fetcher  = (*Source)(nil)
	_ category.Fetcher = (*Source)(nil)
	_ modifier.Fetcher = (*Source)(nil)
	_ recipe.Fetcher   = (*Source)(nil)
	_ settings.Fetcher = (*Source)(nil)
)
