package session

import "warimas-pos/internal/localid"

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type SyncStatus string

const (
	SyncPendingSync SyncStatus = "pending_sync"
	SyncSynced      SyncStatus = "synced"
	SyncConflict    SyncStatus = "conflict"
)

// Totals are payment sums per method for one shift.
type Totals struct {
	Cash     int64 `json:"cash"`
	Card     int64 `json:"card"`
	QRIS     int64 `json:"qris"`
	EDC      int64 `json:"edc"`
	Transfer int64 `json:"transfer"`
	Total    int64 `json:"total"`
}

// ClosingData is what the cashier counted at close.
type ClosingData struct {
	ActualCash     int64   `json:"actual_cash"`
	ActualCard     int64   `json:"actual_card"`
	ActualQRIS     int64   `json:"actual_qris"`
	ActualEDC      int64   `json:"actual_edc"`
	ActualTransfer int64   `json:"actual_transfer"`
	Notes          *string `json:"notes,omitempty"`
}

// Session is a cashier shift opened on this terminal.
type Session struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Status         Status     `json:"status"`
	OpeningAmount  int64      `json:"opening_amount"`
	ExpectedTotals *Totals    `json:"expected_totals"`
	ActualTotals   *Totals    `json:"actual_totals"`
	CashVariance   *int64     `json:"cash_variance"`
	Notes          *string    `json:"notes"`
	OpenedAt       string     `json:"opened_at"`
	ClosedAt       *string    `json:"closed_at"`
	SyncStatus     SyncStatus `json:"sync_status"`
	ServerID       *string    `json:"server_id,omitempty"`
}

func (s *Session) IDOrigin() localid.Origin {
	return localid.Parse(s.ID, localid.SessionPrefix).Origin
}
