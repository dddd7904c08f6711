package session

import (
	"context"
	"sort"
	"time"

	"warimas-pos/internal/localid"
	"warimas-pos/internal/logger"
	"warimas-pos/internal/order"
	"warimas-pos/internal/payment"
	"warimas-pos/internal/store"
	"warimas-pos/internal/syncqueue"

	"go.uber.org/zap"
)

// OrderLister finds the orders rung up during a session.
type OrderLister interface {
	GetOfflineOrdersBySession(ctx context.Context, sessionID string) ([]order.Order, error)
}

// PaymentLister finds the payments of a set of orders.
type PaymentLister interface {
	GetPaymentsForOrders(ctx context.Context, orderIDs []string) ([]payment.Payment, error)
}

type Service interface {
	OpenSession(ctx context.Context, userID string, openingAmount int64) (*Session, error)
	CloseSession(ctx context.Context, sessionID string, data ClosingData) (*Session, error)
	CalculateSessionTotals(ctx context.Context, sessionID string) (Totals, error)

	GetActiveSession(ctx context.Context, userID string) (*Session, error)
	HasActiveSession(ctx context.Context, userID string) (bool, error)
	GetSessionByID(ctx context.Context, id string) (*Session, error)
	GetSessionsByUserID(ctx context.Context, userID string) ([]Session, error)

	MarkSessionSynced(ctx context.Context, localID, serverID string) error
}

type service struct {
	db       *store.DB
	orders   OrderLister
	payments PaymentLister
	now      func() time.Time
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(db *store.DB, orders OrderLister, payments PaymentLister, opts ...Option) Service {
	s := &service{db: db, orders: orders, payments: payments, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var writeTables = store.Tables(store.TableSessions, store.TableSyncQueue)

func openFor(tx *store.Tx, userID string) (*Session, error) {
	open, err := store.List(tx, store.TableSessions, func(s *Session) bool {
		return s.UserID == userID && s.Status == StatusOpen
	})
	if err != nil || len(open) == 0 {
		return nil, err
	}
	return &open[0], nil
}

// OpenSession starts a shift for userID. The check for an already open shift
// runs in the same transaction as the insert, so two concurrent opens cannot
// both succeed.
func (s *service) OpenSession(ctx context.Context, userID string, openingAmount int64) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "OpenSession"),
		zap.String("user_id", userID),
	)

	if userID == "" {
		return nil, ErrUserRequired
	}
	if openingAmount < 0 {
		return nil, ErrNegativeOpening
	}

	now := s.now()
	sess := Session{
		ID:            localid.NewSessionID(),
		UserID:        userID,
		Status:        StatusOpen,
		OpeningAmount: openingAmount,
		OpenedAt:      store.FormatTime(now),
		SyncStatus:    SyncPendingSync,
	}

	err := s.db.Update(ctx, writeTables, func(tx *store.Tx) error {
		existing, err := openFor(tx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrSessionAlreadyActive
		}

		if err := tx.Put(store.TableSessions, sess.ID, &sess); err != nil {
			return err
		}
		_, err = syncqueue.Enqueue(tx, syncqueue.EntitySessions, syncqueue.ActionCreate, sess.ID,
			map[string]any{"session": sess}, now)
		return err
	})
	if err != nil {
		log.Warn("open session failed", zap.Error(err))
		return nil, err
	}

	log.Info("session opened", zap.String("session_id", sess.ID), zap.Int64("opening_amount", openingAmount))
	return &sess, nil
}

// CalculateSessionTotals sums the payments of the session's orders by
// method. Methods without a column of their own count toward Total only.
func (s *service) CalculateSessionTotals(ctx context.Context, sessionID string) (Totals, error) {
	var totals Totals

	orders, err := s.orders.GetOfflineOrdersBySession(ctx, sessionID)
	if err != nil {
		return totals, err
	}
	if len(orders) == 0 {
		return totals, nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	payments, err := s.payments.GetPaymentsForOrders(ctx, ids)
	if err != nil {
		return totals, err
	}

	for _, p := range payments {
		switch p.Method {
		case payment.MethodCash:
			totals.Cash += p.Amount
		case payment.MethodCard:
			totals.Card += p.Amount
		case payment.MethodQRIS:
			totals.QRIS += p.Amount
		case payment.MethodEDC:
			totals.EDC += p.Amount
		case payment.MethodTransfer:
			totals.Transfer += p.Amount
		}
		totals.Total += p.Amount
	}
	return totals, nil
}

func (s *service) CloseSession(ctx context.Context, sessionID string, data ClosingData) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CloseSession"),
		zap.String("session_id", sessionID),
	)

	// 1. Load and check state
	sess, err := s.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Status != StatusOpen {
		return nil, ErrSessionNotOpen
	}

	// 2. Reconcile
	expected, err := s.CalculateSessionTotals(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	actual := Totals{
		Cash:     data.ActualCash,
		Card:     data.ActualCard,
		QRIS:     data.ActualQRIS,
		EDC:      data.ActualEDC,
		Transfer: data.ActualTransfer,
		Total:    data.ActualCash + data.ActualCard + data.ActualQRIS + data.ActualEDC + data.ActualTransfer,
	}
	variance := data.ActualCash - (sess.OpeningAmount + expected.Cash)

	now := s.now()
	closedAt := store.FormatTime(now)
	sess.Status = StatusClosed
	sess.ExpectedTotals = &expected
	sess.ActualTotals = &actual
	sess.CashVariance = &variance
	sess.Notes = data.Notes
	sess.ClosedAt = &closedAt
	sess.SyncStatus = SyncPendingSync

	// 3. Persist, unless another close won the race
	err = s.db.Update(ctx, writeTables, func(tx *store.Tx) error {
		current, err := store.Get[Session](tx, store.TableSessions, sessionID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrSessionNotFound
		}
		if current.Status != StatusOpen {
			return ErrSessionNotOpen
		}

		if err := tx.Put(store.TableSessions, sessionID, sess); err != nil {
			return err
		}
		_, err = syncqueue.Enqueue(tx, syncqueue.EntitySessions, syncqueue.ActionUpdate, sessionID,
			map[string]any{"session": sess}, now)
		return err
	})
	if err != nil {
		log.Warn("close session failed", zap.Error(err))
		return nil, err
	}

	log.Info("session closed",
		zap.Int64("expected_cash", expected.Cash),
		zap.Int64("actual_cash", actual.Cash),
		zap.Int64("cash_variance", variance),
	)
	return sess, nil
}

func (s *service) GetActiveSession(ctx context.Context, userID string) (*Session, error) {
	var sess *Session
	err := s.db.View(ctx, store.Tables(store.TableSessions), func(tx *store.Tx) error {
		var err error
		sess, err = openFor(tx, userID)
		return err
	})
	return sess, err
}

func (s *service) HasActiveSession(ctx context.Context, userID string) (bool, error) {
	sess, err := s.GetActiveSession(ctx, userID)
	return sess != nil, err
}

func (s *service) GetSessionByID(ctx context.Context, id string) (*Session, error) {
	var sess *Session
	err := s.db.View(ctx, store.Tables(store.TableSessions), func(tx *store.Tx) error {
		var err error
		sess, err = store.Get[Session](tx, store.TableSessions, id)
		return err
	})
	return sess, err
}

// GetSessionsByUserID returns the user's sessions, most recently opened first.
func (s *service) GetSessionsByUserID(ctx context.Context, userID string) ([]Session, error) {
	var out []Session
	err := s.db.View(ctx, store.Tables(store.TableSessions), func(tx *store.Tx) error {
		var err error
		out, err = store.List(tx, store.TableSessions, func(s *Session) bool { return s.UserID == userID })
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenedAt > out[j].OpenedAt })
	return out, nil
}

func (s *service) MarkSessionSynced(ctx context.Context, localID, serverID string) error {
	return s.db.Update(ctx, store.Tables(store.TableSessions), func(tx *store.Tx) error {
		sess, err := store.Get[Session](tx, store.TableSessions, localID)
		if err != nil {
			return err
		}
		if sess == nil {
			return ErrSessionNotFound
		}
		sess.SyncStatus = SyncSynced
		sess.ServerID = &serverID
		return tx.Put(store.TableSessions, localID, sess)
	})
}
