package cart

import (
	"time"

	"warimas-pos/internal/product"
	"warimas-pos/internal/store"
)

type ItemType string

const (
	ItemTypeProduct ItemType = "product"
	ItemTypeCombo   ItemType = "combo"
)

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountAmount  DiscountType = "amount"
)

type Modifier struct {
	GroupName       string `json:"groupName"`
	OptionID        string `json:"optionId"`
	OptionLabel     string `json:"optionLabel"`
	PriceAdjustment int64  `json:"priceAdjustment"`
}

// Combo identifies the combo a combo-type line was built from.
type Combo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type ComboSelection struct {
	GroupID         string `json:"group_id"`
	GroupName       string `json:"group_name"`
	ItemID          string `json:"item_id"`
	ProductID       string `json:"product_id"`
	ProductName     string `json:"product_name"`
	PriceAdjustment int64  `json:"price_adjustment"`
}

// Item is one cart line. Product lines carry Product, combo lines carry
// Combo and ComboSelections.
type Item struct {
	ID              string           `json:"id"`
	Type            ItemType         `json:"type"`
	Product         *product.Product `json:"product,omitempty"`
	Combo           *Combo           `json:"combo,omitempty"`
	ComboSelections []ComboSelection `json:"comboSelections,omitempty"`
	Quantity        float64          `json:"quantity"`
	UnitPrice       int64            `json:"unitPrice"`
	Modifiers       []Modifier       `json:"modifiers"`
	ModifiersTotal  int64            `json:"modifiersTotal"`
	Notes           string           `json:"notes"`
	TotalPrice      int64            `json:"totalPrice"`
}

// DisplayName is the name shown to the cashier for this line.
func (i *Item) DisplayName() string {
	switch {
	case i.Product != nil:
		return i.Product.Name
	case i.Combo != nil:
		return i.Combo.Name
	}
	return i.ID
}

// State is the in-progress cart, including the totals the UI computed.
type State struct {
	Items             []Item        `json:"items"`
	LockedItemIDs     []string      `json:"lockedItemIds"`
	ActiveOrderID     *string       `json:"activeOrderId"`
	ActiveOrderNumber *string       `json:"activeOrderNumber"`
	OrderType         OrderType     `json:"orderType"`
	TableNumber       *string       `json:"tableNumber"`
	CustomerID        *string       `json:"customerId"`
	CustomerName      *string       `json:"customerName"`
	DiscountType      *DiscountType `json:"discountType"`
	DiscountValue     float64       `json:"discountValue"`
	DiscountReason    *string       `json:"discountReason"`
	Subtotal          int64         `json:"subtotal"`
	DiscountAmount    int64         `json:"discountAmount"`
	Total             int64         `json:"total"`
}

// PersistedState is a State as written to local storage.
type PersistedState struct {
	State
	SavedAt string `json:"savedAt"`
}

// SavedTime parses SavedAt. A snapshot without a stamp yields the zero time.
func (p *PersistedState) SavedTime() time.Time {
	t, err := store.ParseTime(p.SavedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}
