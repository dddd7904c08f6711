// Package localid generates identifiers for rows created while offline and
// tells them apart from ids assigned by the backend.
package localid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	OrderPrefix   = "LOCAL-"
	PaymentPrefix = "LOCAL-PAY-"
	SessionPrefix = "LOCAL-SESSION-"

	OrderNumberPrefix = "OFFLINE-"
)

// Origin records who assigned an identifier.
type Origin int

const (
	OriginServer Origin = iota
	OriginLocal
)

func (o Origin) String() string {
	if o == OriginLocal {
		return "local"
	}
	return "server"
}

// ID is an identifier tagged with its origin.
type ID struct {
	Value  string
	Origin Origin
}

// Parse tags value as local when it carries prefix.
func Parse(value, prefix string) ID {
	if strings.HasPrefix(value, prefix) {
		return ID{Value: value, Origin: OriginLocal}
	}
	return ID{Value: value, Origin: OriginServer}
}

func (id ID) IsLocal() bool  { return id.Origin == OriginLocal }
func (id ID) String() string { return id.Value }

func NewOrderID() string   { return OrderPrefix + uuid.NewString() }
func NewPaymentID() string { return PaymentPrefix + uuid.NewString() }
func NewSessionID() string { return SessionPrefix + uuid.NewString() }

// IsLocalOrderID is a pure prefix check. Payment and session ids also match
// since they share the LOCAL- root.
func IsLocalOrderID(id string) bool   { return strings.HasPrefix(id, OrderPrefix) }
func IsLocalPaymentID(id string) bool { return strings.HasPrefix(id, PaymentPrefix) }
func IsLocalSessionID(id string) bool { return strings.HasPrefix(id, SessionPrefix) }

// OrderNumberDatePrefix returns OFFLINE-YYYYMMDD- for the calendar day of t.
func OrderNumberDatePrefix(t time.Time) string {
	return OrderNumberPrefix + t.Format("20060102") + "-"
}

// FormatOrderNumber builds OFFLINE-YYYYMMDD-NNN.
func FormatOrderNumber(t time.Time, seq int) string {
	return fmt.Sprintf("%s%03d", OrderNumberDatePrefix(t), seq)
}
