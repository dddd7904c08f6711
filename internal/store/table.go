package store

// Table names a bucket in the local store.
type Table string

const (
	TableUsers          Table = "offline_users"
	TableSyncQueue      Table = "offline_sync_queue"
	TableSettings       Table = "offline_settings"
	TableTaxRates       Table = "offline_tax_rates"
	TablePaymentMethods Table = "offline_payment_methods"
	TableBusinessHours  Table = "offline_business_hours"
	TableSyncMeta       Table = "offline_sync_meta"
	TableProducts       Table = "offline_products"
	TableCategories     Table = "offline_categories"
	TableModifiers      Table = "offline_modifiers"
	TableRecipes        Table = "offline_recipes"
	TableOrders         Table = "offline_orders"
	TableOrderItems     Table = "offline_order_items"
	TableOrderNumbers   Table = "offline_orders_by_number"
	TablePayments       Table = "offline_payments"
	TableSessions       Table = "offline_sessions"
	TableDispatchQueue  Table = "offline_dispatch_queue"
)

const schemaBucket = "_schema"

func (t Table) String() string { return string(t) }
