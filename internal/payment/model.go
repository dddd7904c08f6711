package payment

import "warimas-pos/internal/localid"

type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodQRIS     Method = "qris"
	MethodTransfer Method = "transfer"
	MethodEwallet  Method = "ewallet"
	MethodEDC      Method = "edc"
)

type SyncStatus string

const (
	SyncPendingSync       SyncStatus = "pending_sync"
	SyncPendingValidation SyncStatus = "pending_validation"
	SyncSynced            SyncStatus = "synced"
	SyncConflict          SyncStatus = "conflict"
)

// Payment is a tender captured on this terminal.
type Payment struct {
	ID           string     `json:"id"`
	OrderID      string     `json:"order_id"`
	Method       Method     `json:"method"`
	Amount       int64      `json:"amount"`
	CashReceived *int64     `json:"cash_received"`
	ChangeGiven  *int64     `json:"change_given"`
	Reference    *string    `json:"reference"`
	UserID       string     `json:"user_id"`
	SessionID    *string    `json:"session_id"`
	CreatedAt    string     `json:"created_at"`
	SyncStatus   SyncStatus `json:"sync_status"`
	ServerID     *string    `json:"server_id,omitempty"`
}

func (p *Payment) IDOrigin() localid.Origin {
	return localid.Parse(p.ID, localid.PaymentPrefix).Origin
}

type Input struct {
	OrderID      string  `json:"order_id"`
	Method       Method  `json:"method" validate:"required,oneof=cash card qris transfer ewallet edc"`
	Amount       int64   `json:"amount"`
	CashReceived *int64  `json:"cash_received,omitempty"`
	ChangeGiven  *int64  `json:"change_given,omitempty"`
	Reference    *string `json:"reference,omitempty"`
	UserID       string  `json:"user_id"`
	SessionID    *string `json:"session_id,omitempty"`
}

// SyncStatusFor returns the initial sync status of a payment. Only cash is
// final offline; every other method needs validation once online.
func SyncStatusFor(m Method) SyncStatus {
	if m == MethodCash {
		return SyncPendingSync
	}
	return SyncPendingValidation
}

// CalculateChange returns the change owed, never negative.
func CalculateChange(total, received int64) int64 {
	return max(0, received-total)
}
