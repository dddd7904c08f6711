package product

// Product is a row of the offline products cache.
type Product struct {
	ID               string   `json:"id" db:"id"`
	CategoryID       *string  `json:"category_id" db:"category_id"`
	SKU              *string  `json:"sku" db:"sku"`
	Name             string   `json:"name" db:"name"`
	ProductType      *string  `json:"product_type" db:"product_type"`
	Unit             *string  `json:"unit,omitempty" db:"unit"`
	RetailPrice      int64    `json:"retail_price" db:"retail_price"`
	WholesalePrice   *int64   `json:"wholesale_price" db:"wholesale_price"`
	CostPrice        *int64   `json:"cost_price" db:"cost_price"`
	CurrentStock     *float64 `json:"current_stock" db:"current_stock"`
	MinStockLevel    *float64 `json:"min_stock_level,omitempty" db:"min_stock_level"`
	ImageURL         *string  `json:"image_url" db:"image_url"`
	IsActive         bool     `json:"is_active" db:"is_active"`
	POSVisible       bool     `json:"pos_visible" db:"pos_visible"`
	AvailableForSale bool     `json:"available_for_sale" db:"available_for_sale"`
	UpdatedAt        string   `json:"updated_at" db:"updated_at"`
}

// Sellable reports whether the product may be shown and sold at the POS.
func (p *Product) Sellable() bool {
	return p.IsActive && p.POSVisible && p.AvailableForSale
}
