package order

import (
	"warimas-pos/internal/category"
	"warimas-pos/internal/localid"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusServed    Status = "served"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusVoided    Status = "voided"
)

type Type string

const (
	TypeDineIn   Type = "dine_in"
	TypeTakeaway Type = "takeaway"
	TypeDelivery Type = "delivery"
	TypeB2B      Type = "b2b"
)

type SyncStatus string

const (
	SyncLocal       SyncStatus = "local"
	SyncPendingSync SyncStatus = "pending_sync"
	SyncSynced      SyncStatus = "synced"
	SyncConflict    SyncStatus = "conflict"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountAmount     DiscountType = "amount"
)

type DispatchStatus string

const (
	DispatchPending    DispatchStatus = "pending"
	DispatchDispatched DispatchStatus = "dispatched"
	DispatchFailed     DispatchStatus = "failed"
)

type ItemStatus string

const (
	ItemNew       ItemStatus = "new"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemServed    ItemStatus = "served"
)

// Order is an order captured on this terminal.
type Order struct {
	ID             string          `json:"id"`
	OrderNumber    string          `json:"order_number"`
	Status         Status          `json:"status"`
	OrderType      Type            `json:"order_type"`
	Subtotal       int64           `json:"subtotal"`
	TaxAmount      int64           `json:"tax_amount"`
	DiscountAmount int64           `json:"discount_amount"`
	DiscountType   *DiscountType   `json:"discount_type"`
	DiscountValue  *float64        `json:"discount_value"`
	Total          int64           `json:"total"`
	CustomerID     *string         `json:"customer_id"`
	TableNumber    *string         `json:"table_number"`
	Notes          *string         `json:"notes"`
	UserID         string          `json:"user_id"`
	SessionID      *string         `json:"session_id"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
	SyncStatus     SyncStatus      `json:"sync_status"`
	ServerID       *string         `json:"server_id,omitempty"`
	DispatchStatus *DispatchStatus `json:"dispatch_status,omitempty"`
	DispatchedAt   *string         `json:"dispatched_at,omitempty"`
	DispatchError  *string         `json:"dispatch_error,omitempty"`
}

// IDOrigin tells whether the order id was minted locally or by the server.
func (o *Order) IDOrigin() localid.Origin {
	return localid.Parse(o.ID, localid.OrderPrefix).Origin
}

type ItemModifier struct {
	OptionID        string `json:"option_id"`
	GroupName       string `json:"group_name"`
	OptionLabel     string `json:"option_label"`
	PriceAdjustment int64  `json:"price_adjustment"`
}

// Item is a line of an order. Items are owned by their order.
type Item struct {
	ID              string            `json:"id"`
	OrderID         string            `json:"order_id"`
	ProductID       string            `json:"product_id"`
	ProductName     string            `json:"product_name"`
	ProductSKU      *string           `json:"product_sku"`
	Quantity        float64           `json:"quantity"`
	UnitPrice       int64             `json:"unit_price"`
	Subtotal        int64             `json:"subtotal"`
	Modifiers       []ItemModifier    `json:"modifiers"`
	Notes           *string           `json:"notes"`
	DispatchStation *category.Station `json:"dispatch_station"`
	ItemStatus      ItemStatus        `json:"item_status"`
	CreatedAt       string            `json:"created_at"`
}

// Input is the caller-supplied part of a new order.
type Input struct {
	Status         Status        `json:"status" validate:"omitempty,oneof=new preparing ready served completed cancelled voided"`
	OrderType      Type          `json:"order_type" validate:"required,oneof=dine_in takeaway delivery b2b"`
	Subtotal       int64         `json:"subtotal"`
	TaxAmount      int64         `json:"tax_amount"`
	DiscountAmount int64         `json:"discount_amount"`
	DiscountType   *DiscountType `json:"discount_type" validate:"omitempty,oneof=percentage amount"`
	DiscountValue  *float64      `json:"discount_value"`
	Total          int64         `json:"total"`
	CustomerID     *string       `json:"customer_id"`
	TableNumber    *string       `json:"table_number"`
	Notes          *string       `json:"notes"`
	UserID         string        `json:"user_id"`
	SessionID      *string       `json:"session_id"`
}

type ItemInput struct {
	ProductID       string            `json:"product_id"`
	ProductName     string            `json:"product_name"`
	ProductSKU      *string           `json:"product_sku"`
	Quantity        float64           `json:"quantity"`
	UnitPrice       int64             `json:"unit_price"`
	Subtotal        int64             `json:"subtotal"`
	Modifiers       []ItemModifier    `json:"modifiers"`
	Notes           *string           `json:"notes"`
	DispatchStation *category.Station `json:"dispatch_station" validate:"omitempty,oneof=kitchen barista display none"`
	ItemStatus      ItemStatus        `json:"item_status" validate:"omitempty,oneof=new preparing ready served"`
}

// WithItems is an order together with its lines.
type WithItems struct {
	Order Order  `json:"order"`
	Items []Item `json:"items"`
}
