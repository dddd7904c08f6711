package recipe

// Recipe links a sellable product to one raw material and the quantity it consumes.
type Recipe struct {
	ID         string  `json:"id" db:"id"`
	ProductID  string  `json:"product_id" db:"product_id"`
	MaterialID string  `json:"material_id" db:"material_id"`
	Quantity   float64 `json:"quantity" db:"quantity"`
	Unit       *string `json:"unit" db:"unit"`
	IsActive   bool    `json:"is_active" db:"is_active"`
	CreatedAt  *string `json:"created_at" db:"created_at"`
	UpdatedAt  *string `json:"updated_at" db:"updated_at"`
}

// Material is the slice of a product row needed for costing.
type Material struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	SKU       *string `json:"sku"`
	Unit      *string `json:"unit"`
	CostPrice *int64  `json:"cost_price"`
}

// WithMaterial is a recipe joined with its material. Material is nil when
// the material is not in the products cache.
type WithMaterial struct {
	Recipe
	Material *Material `json:"material"`
}
