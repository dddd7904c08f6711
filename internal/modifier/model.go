package modifier

type GroupType string

const (
	GroupSingle   GroupType = "single"
	GroupMultiple GroupType = "multiple"
)

// Modifier is one option row of a modifier group, attached either to a
// product or to a category.
type Modifier struct {
	ID              string    `json:"id" db:"id"`
	ProductID       *string   `json:"product_id" db:"product_id"`
	CategoryID      *string   `json:"category_id" db:"category_id"`
	GroupName       string    `json:"group_name" db:"group_name"`
	GroupType       GroupType `json:"group_type" db:"group_type"`
	GroupRequired   bool      `json:"group_required" db:"group_required"`
	GroupSortOrder  int       `json:"group_sort_order" db:"group_sort_order"`
	OptionID        string    `json:"option_id" db:"option_id"`
	OptionLabel     string    `json:"option_label" db:"option_label"`
	OptionIcon      *string   `json:"option_icon" db:"option_icon"`
	PriceAdjustment int64     `json:"price_adjustment" db:"price_adjustment"`
	IsDefault       bool      `json:"is_default" db:"is_default"`
	OptionSortOrder int       `json:"option_sort_order" db:"option_sort_order"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	CreatedAt       *string   `json:"created_at" db:"created_at"`
}

// Option is a selectable choice inside a Group.
type Option struct {
	ID              string  `json:"id"`
	DBID            string  `json:"dbId"`
	Label           string  `json:"label"`
	Icon            *string `json:"icon,omitempty"`
	PriceAdjustment int64   `json:"priceAdjustment"`
	IsDefault       bool    `json:"isDefault"`
	SortOrder       int     `json:"sortOrder"`
}

// Group is the shape the POS renders: a named set of options.
type Group struct {
	Name        string    `json:"name"`
	Type        GroupType `json:"type"`
	Required    bool      `json:"required"`
	SortOrder   int       `json:"sortOrder"`
	Options     []Option  `json:"options"`
	IsInherited bool      `json:"isInherited"`
}
