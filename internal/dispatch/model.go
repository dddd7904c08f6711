package dispatch

import (
	"context"

	"warimas-pos/internal/category"
)

const (
	MessageKDSNewOrder = "kds_new_order"
	MessageKDSOrderAck = "kds_order_ack"

	MaxAttempts = 3
)

// Stations that receive tickets, in dispatch order.
var Stations = []category.Station{category.StationKitchen, category.StationBarista}

// Transport delivers frames to the kitchen displays.
type Transport interface {
	IsActive() bool
	Broadcast(ctx context.Context, msgType string, payload any) error
}

type QueueStatus string

const (
	QueuePending QueueStatus = "pending"
	QueueSending QueueStatus = "sending"
	QueueFailed  QueueStatus = "failed"
)

// KDSItem is one ticket line as shown on a kitchen display.
type KDSItem struct {
	ID        string   `json:"id"`
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Quantity  float64  `json:"quantity"`
	Modifiers []string `json:"modifiers"`
	Notes     *string  `json:"notes"`
	// CategoryID carries the line's dispatch station.
	CategoryID string `json:"category_id"`
}

// NewOrderPayload is the body of a kds_new_order frame.
type NewOrderPayload struct {
	OrderID     string           `json:"order_id"`
	OrderNumber string           `json:"order_number"`
	TableNumber *int             `json:"table_number"`
	OrderType   string           `json:"order_type"`
	Items       []KDSItem        `json:"items"`
	Station     category.Station `json:"station"`
	Timestamp   string           `json:"timestamp"`
}

// AckPayload is the body of a kds_order_ack frame.
type AckPayload struct {
	OrderID   string           `json:"order_id"`
	Station   category.Station `json:"station"`
	DeviceID  string           `json:"device_id"`
	Timestamp string           `json:"timestamp"`
}

// QueueItem is a ticket waiting for the LAN to come back.
type QueueItem struct {
	ID            int64            `json:"id"`
	OrderID       string           `json:"order_id"`
	Station       category.Station `json:"station"`
	Items         []KDSItem        `json:"items"`
	CreatedAt     string           `json:"created_at"`
	Attempts      int              `json:"attempts"`
	LastError     *string          `json:"last_error"`
	LastAttemptAt *string          `json:"last_attempt_at"`
	NextAttemptAt *string          `json:"next_attempt_at,omitempty"`
	Status        QueueStatus      `json:"status"`
}

// Result reports where each station's ticket went.
type Result struct {
	Dispatched []category.Station `json:"dispatched"`
	Queued     []category.Station `json:"queued"`
}

// Stats summarises one pass over the queue.
type Stats struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}
