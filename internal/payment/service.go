package payment

import (
	"context"
	"sort"
	"time"

	"warimas-pos/internal/localid"
	"warimas-pos/internal/logger"
	"warimas-pos/internal/metrics"
	"warimas-pos/internal/store"
	"warimas-pos/internal/syncqueue"
	"warimas-pos/internal/validate"

	"go.uber.org/zap"
)

type Service interface {
	SaveOfflinePayment(ctx context.Context, input Input) (*Payment, error)
	SaveOfflinePayments(ctx context.Context, orderID string, inputs []Input) ([]Payment, error)

	GetPaymentsByOrderID(ctx context.Context, orderID string) ([]Payment, error)
	GetOfflinePaymentByID(ctx context.Context, id string) (*Payment, error)
	GetOrderPaidAmount(ctx context.Context, orderID string) (int64, error)
	GetPaymentsBySyncStatus(ctx context.Context, status SyncStatus) ([]Payment, error)
	GetPendingSyncPaymentsCount(ctx context.Context) (int, error)
	// GetPaymentsForOrders returns the payments of every listed order.
	GetPaymentsForOrders(ctx context.Context, orderIDs []string) ([]Payment, error)

	MarkPaymentSynced(ctx context.Context, localID, serverID string) error
	MarkPaymentConflict(ctx context.Context, id string) error

	DeletePaymentsByOrderID(ctx context.Context, orderID string) error
	ClearOfflinePayments(ctx context.Context) error
}

type service struct {
	db  *store.DB
	now func() time.Time
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(db *store.DB, opts ...Option) Service {
	s := &service{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var writeTables = store.Tables(store.TablePayments, store.TableSyncQueue)

func validateInput(in Input, requireOrder bool) error {
	if requireOrder && in.OrderID == "" {
		return ErrPaymentOrderRequired
	}
	if in.UserID == "" {
		return ErrPaymentUserRequired
	}
	if in.Amount <= 0 {
		return ErrPaymentAmount
	}
	return validate.Struct(ErrInvalidInput, in)
}

func newPayment(in Input, orderID, ts string) Payment {
	return Payment{
		ID:           localid.NewPaymentID(),
		OrderID:      orderID,
		Method:       in.Method,
		Amount:       in.Amount,
		CashReceived: in.CashReceived,
		ChangeGiven:  in.ChangeGiven,
		Reference:    in.Reference,
		UserID:       in.UserID,
		SessionID:    in.SessionID,
		CreatedAt:    ts,
		SyncStatus:   SyncStatusFor(in.Method),
	}
}

func (s *service) SaveOfflinePayment(ctx context.Context, input Input) (*Payment, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "SaveOfflinePayment"),
		zap.String("order_id", input.OrderID),
		zap.String("payment_method", string(input.Method)),
	)

	if err := validateInput(input, true); err != nil {
		log.Warn("payment validation failed", zap.Error(err))
		return nil, err
	}

	now := s.now()
	p := newPayment(input, input.OrderID, store.FormatTime(now))

	err := s.db.Update(ctx, writeTables, func(tx *store.Tx) error {
		if err := tx.Put(store.TablePayments, p.ID, &p); err != nil {
			return err
		}
		_, err := syncqueue.Enqueue(tx, syncqueue.EntityPayments, syncqueue.ActionCreate, p.ID,
			map[string]any{"payment": p}, now)
		return err
	})
	if err != nil {
		log.Error("failed to save offline payment", zap.Error(err))
		return nil, err
	}

	metrics.OfflinePaymentsSavedTotal.WithLabelValues(string(p.Method)).Inc()
	log.Info("offline payment saved", zap.String("payment_id", p.ID), zap.Int64("amount", p.Amount))
	return &p, nil
}

// SaveOfflinePayments records a split tender. All rows and a single outbox
// entry keyed by the order id commit together.
func (s *service) SaveOfflinePayments(ctx context.Context, orderID string, inputs []Input) ([]Payment, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "SaveOfflinePayments"),
		zap.String("order_id", orderID),
		zap.Int("payment_count", len(inputs)),
	)

	if orderID == "" {
		return nil, ErrOrderIDRequired
	}
	if len(inputs) == 0 {
		return nil, ErrNoPayments
	}

	now := s.now()
	ts := store.FormatTime(now)
	payments := make([]Payment, 0, len(inputs))
	for _, in := range inputs {
		if err := validateInput(in, false); err != nil {
			log.Warn("payment validation failed", zap.Error(err))
			return nil, err
		}
		payments = append(payments, newPayment(in, orderID, ts))
	}

	err := s.db.Update(ctx, writeTables, func(tx *store.Tx) error {
		for i := range payments {
			if err := tx.Put(store.TablePayments, payments[i].ID, &payments[i]); err != nil {
				return err
			}
		}
		_, err := syncqueue.Enqueue(tx, syncqueue.EntityPayments, syncqueue.ActionCreate, orderID,
			map[string]any{"payments": payments}, now)
		return err
	})
	if err != nil {
		log.Error("failed to save offline payments", zap.Error(err))
		return nil, err
	}

	for _, p := range payments {
		metrics.OfflinePaymentsSavedTotal.WithLabelValues(string(p.Method)).Inc()
	}
	log.Info("offline payments saved")
	return payments, nil
}

func (s *service) list(ctx context.Context, keep func(*Payment) bool) ([]Payment, error) {
	var out []Payment
	err := s.db.View(ctx, store.Tables(store.TablePayments), func(tx *store.Tx) error {
		var err error
		out, err = store.List(tx, store.TablePayments, keep)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *service) GetPaymentsByOrderID(ctx context.Context, orderID string) ([]Payment, error) {
	return s.list(ctx, func(p *Payment) bool { return p.OrderID == orderID })
}

func (s *service) GetPaymentsForOrders(ctx context.Context, orderIDs []string) ([]Payment, error) {
	ids := make(map[string]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		ids[id] = struct{}{}
	}
	return s.list(ctx, func(p *Payment) bool {
		_, ok := ids[p.OrderID]
		return ok
	})
}

func (s *service) GetOfflinePaymentByID(ctx context.Context, id string) (*Payment, error) {
	var p *Payment
	err := s.db.View(ctx, store.Tables(store.TablePayments), func(tx *store.Tx) error {
		var err error
		p, err = store.Get[Payment](tx, store.TablePayments, id)
		return err
	})
	return p, err
}

func (s *service) GetOrderPaidAmount(ctx context.Context, orderID string) (int64, error) {
	payments, err := s.GetPaymentsByOrderID(ctx, orderID)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, p := range payments {
		sum += p.Amount
	}
	return sum, nil
}

func (s *service) GetPaymentsBySyncStatus(ctx context.Context, status SyncStatus) ([]Payment, error) {
	return s.list(ctx, func(p *Payment) bool { return p.SyncStatus == status })
}

// GetPendingSyncPaymentsCount counts payments still waiting for the server,
// including those that need online validation.
func (s *service) GetPendingSyncPaymentsCount(ctx context.Context) (int, error) {
	payments, err := s.list(ctx, func(p *Payment) bool {
		return p.SyncStatus == SyncPendingSync || p.SyncStatus == SyncPendingValidation
	})
	return len(payments), err
}

func (s *service) update(ctx context.Context, id string, fn func(*Payment)) error {
	return s.db.Update(ctx, store.Tables(store.TablePayments), func(tx *store.Tx) error {
		p, err := store.Get[Payment](tx, store.TablePayments, id)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrPaymentNotFound
		}
		fn(p)
		return tx.Put(store.TablePayments, id, p)
	})
}

func (s *service) MarkPaymentSynced(ctx context.Context, localID, serverID string) error {
	return s.update(ctx, localID, func(p *Payment) {
		p.SyncStatus = SyncSynced
		p.ServerID = &serverID
	})
}

func (s *service) MarkPaymentConflict(ctx context.Context, id string) error {
	return s.update(ctx, id, func(p *Payment) {
		p.SyncStatus = SyncConflict
	})
}

func (s *service) DeletePaymentsByOrderID(ctx context.Context, orderID string) error {
	return s.db.Update(ctx, store.Tables(store.TablePayments), func(tx *store.Tx) error {
		matches, err := store.List(tx, store.TablePayments, func(p *Payment) bool { return p.OrderID == orderID })
		if err != nil {
			return err
		}
		for _, p := range matches {
			if err := tx.Delete(store.TablePayments, p.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) ClearOfflinePayments(ctx context.Context) error {
	return s.db.Update(ctx, store.Tables(store.TablePayments), func(tx *store.Tx) error {
		return tx.Clear(store.TablePayments)
	})
}
