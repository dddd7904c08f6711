package order

import (
	"context"
	"fmt"
	"sort"
	"time"

	"warimas-pos/internal/localid"
	"warimas-pos/internal/logger"
	"warimas-pos/internal/metrics"
	"warimas-pos/internal/store"
	"warimas-pos/internal/validate"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	SaveOfflineOrder(ctx context.Context, input Input, items []ItemInput) (*WithItems, error)
	GenerateOfflineOrderNumber(ctx context.Context) (string, error)

	GetOfflineOrders(ctx context.Context) ([]Order, error)
	GetOfflineOrderByID(ctx context.Context, id string) (*Order, error)
	GetOfflineOrderByNumber(ctx context.Context, number string) (*Order, error)
	GetOfflineOrderItems(ctx context.Context, orderID string) ([]Item, error)
	GetOfflineOrderWithItems(ctx context.Context, id string) (*WithItems, error)
	GetOfflineOrdersByStatus(ctx context.Context, status Status) ([]Order, error)
	GetOfflineOrdersBySyncStatus(ctx context.Context, status SyncStatus) ([]Order, error)
	GetOfflineOrdersBySession(ctx context.Context, sessionID string) ([]Order, error)
	GetOfflineOrdersByCustomer(ctx context.Context, customerID string) ([]Order, error)
	GetOfflineOrdersCount(ctx context.Context) (int, error)
	GetPendingSyncOrdersCount(ctx context.Context) (int, error)

	UpdateOfflineOrderStatus(ctx context.Context, id string, status Status) error
	UpdateOfflineOrderItemStatus(ctx context.Context, itemID string, status ItemStatus) error
	UpdateDispatchStatus(ctx context.Context, id string, status DispatchStatus, dispatchErr *string) error

	MarkOrderSynced(ctx context.Context, localID, serverID string) error
	MarkOrderConflict(ctx context.Context, id string) error

	DeleteOfflineOrder(ctx context.Context, id string) error
	ClearOfflineOrders(ctx context.Context) error
}

const (
	statusTag     = "required,oneof=new preparing ready served completed cancelled voided"
	itemStatusTag = "required,oneof=new preparing ready served"
)

type service struct {
	repo Repository
	now  func() time.Time
}

type Option func(*service)

// WithClock overrides the time source used for ids, numbers and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(repo Repository, opts ...Option) Service {
	s := &service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateOrder(input Input, items []ItemInput) error {
	if input.UserID == "" {
		return ErrOrderUserRequired
	}
	if input.Total < 0 {
		return ErrNegativeTotal
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: %s", ErrItemQuantity, it.ProductName)
		}
		if it.ProductID == "" {
			return ErrItemProductRequired
		}
	}

	if err := validate.Struct(ErrInvalidInput, input); err != nil {
		return err
	}
	for _, it := range items {
		if err := validate.Struct(ErrInvalidInput, it); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) SaveOfflineOrder(ctx context.Context, input Input, items []ItemInput) (*WithItems, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "SaveOfflineOrder"),
		zap.Int("item_count", len(items)),
	)

	// 1. Validate before touching the store
	if err := validateOrder(input, items); err != nil {
		log.Warn("order validation failed", zap.Error(err))
		return nil, err
	}

	// 2. Build the rows
	now := s.now()
	ts := store.FormatTime(now)
	status := input.Status
	if status == "" {
		status = StatusNew
	}

	o := Order{
		ID:             localid.NewOrderID(),
		Status:         status,
		OrderType:      input.OrderType,
		Subtotal:       input.Subtotal,
		TaxAmount:      input.TaxAmount,
		DiscountAmount: input.DiscountAmount,
		DiscountType:   input.DiscountType,
		DiscountValue:  input.DiscountValue,
		Total:          input.Total,
		CustomerID:     input.CustomerID,
		TableNumber:    input.TableNumber,
		Notes:          input.Notes,
		UserID:         input.UserID,
		SessionID:      input.SessionID,
		CreatedAt:      ts,
		UpdatedAt:      ts,
		SyncStatus:     SyncPendingSync,
	}

	rows := make([]Item, 0, len(items))
	for _, in := range items {
		itemStatus := in.ItemStatus
		if itemStatus == "" {
			itemStatus = ItemNew
		}
		mods := in.Modifiers
		if mods == nil {
			mods = []ItemModifier{}
		}
		rows = append(rows, Item{
			ID:              uuid.NewString(),
			OrderID:         o.ID,
			ProductID:       in.ProductID,
			ProductName:     in.ProductName,
			ProductSKU:      in.ProductSKU,
			Quantity:        in.Quantity,
			UnitPrice:       in.UnitPrice,
			Subtotal:        in.Subtotal,
			Modifiers:       mods,
			Notes:           in.Notes,
			DispatchStation: in.DispatchStation,
			ItemStatus:      itemStatus,
			CreatedAt:       ts,
		})
	}

	// 3. Number, rows and outbox entry commit together
	if err := s.repo.Create(ctx, &o, rows, now); err != nil {
		return nil, err
	}

	metrics.OfflineOrdersSavedTotal.Inc()
	return &WithItems{Order: o, Items: rows}, nil
}

func (s *service) GenerateOfflineOrderNumber(ctx context.Context) (string, error) {
	return s.repo.NextOrderNumber(ctx, s.now())
}

// GetOfflineOrders returns every order, newest first.
func (s *service) GetOfflineOrders(ctx context.Context) ([]Order, error) {
	return s.list(ctx, nil)
}

func (s *service) GetOfflineOrderByID(ctx context.Context, id string) (*Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) GetOfflineOrderByNumber(ctx context.Context, number string) (*Order, error) {
	return s.repo.GetByNumber(ctx, number)
}

func (s *service) GetOfflineOrderItems(ctx context.Context, orderID string) ([]Item, error) {
	return s.repo.Items(ctx, orderID)
}

// GetOfflineOrderWithItems returns nil when the order does not exist.
func (s *service) GetOfflineOrderWithItems(ctx context.Context, id string) (*WithItems, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil || o == nil {
		return nil, err
	}
	items, err := s.repo.Items(ctx, id)
	if err != nil {
		return nil, err
	}
	return &WithItems{Order: *o, Items: items}, nil
}

func (s *service) GetOfflineOrdersByStatus(ctx context.Context, status Status) ([]Order, error) {
	return s.list(ctx, func(o *Order) bool { return o.Status == status })
}

func (s *service) GetOfflineOrdersBySyncStatus(ctx context.Context, status SyncStatus) ([]Order, error) {
	return s.list(ctx, func(o *Order) bool { return o.SyncStatus == status })
}

func (s *service) GetOfflineOrdersBySession(ctx context.Context, sessionID string) ([]Order, error) {
	return s.list(ctx, func(o *Order) bool { return o.SessionID != nil && *o.SessionID == sessionID })
}

func (s *service) GetOfflineOrdersByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return s.list(ctx, func(o *Order) bool { return o.CustomerID != nil && *o.CustomerID == customerID })
}

func (s *service) GetOfflineOrdersCount(ctx context.Context) (int, error) {
	orders, err := s.repo.List(ctx, nil)
	return len(orders), err
}

func (s *service) GetPendingSyncOrdersCount(ctx context.Context) (int, error) {
	orders, err := s.repo.List(ctx, func(o *Order) bool { return o.SyncStatus == SyncPendingSync })
	return len(orders), err
}

func (s *service) list(ctx context.Context, keep func(*Order) bool) ([]Order, error) {
	orders, err := s.repo.List(ctx, keep)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt > orders[j].CreatedAt
	})
	return orders, nil
}

func (s *service) UpdateOfflineOrderStatus(ctx context.Context, id string, status Status) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "UpdateOfflineOrderStatus"),
		zap.String("order_id", id),
		zap.String("status", string(status)),
	)

	if err := validate.Var(ErrInvalidInput, "status", string(status), statusTag); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, id, status, s.now()); err != nil {
		log.Error("failed to update order status", zap.Error(err))
		return err
	}

	log.Info("order status updated")
	return nil
}

func (s *service) UpdateOfflineOrderItemStatus(ctx context.Context, itemID string, status ItemStatus) error {
	if err := validate.Var(ErrInvalidInput, "item_status", string(status), itemStatusTag); err != nil {
		return err
	}
	return s.repo.UpdateItemStatus(ctx, itemID, status)
}

// UpdateDispatchStatus records the kitchen dispatch outcome of an order.
// Only a dispatched order carries a dispatch timestamp.
func (s *service) UpdateDispatchStatus(ctx context.Context, id string, status DispatchStatus, dispatchErr *string) error {
	_, err := s.repo.Update(ctx, id, func(o *Order) error {
		o.DispatchStatus = &status
		o.DispatchError = dispatchErr
		o.DispatchedAt = nil
		if status == DispatchDispatched {
			ts := store.FormatTime(s.now())
			o.DispatchedAt = &ts
		}
		return nil
	})
	return err
}

func (s *service) MarkOrderSynced(ctx context.Context, localID, serverID string) error {
	_, err := s.repo.Update(ctx, localID, func(o *Order) error {
		o.SyncStatus = SyncSynced
		o.ServerID = &serverID
		o.UpdatedAt = store.FormatTime(s.now())
		return nil
	})
	return err
}

func (s *service) MarkOrderConflict(ctx context.Context, id string) error {
	_, err := s.repo.Update(ctx, id, func(o *Order) error {
		o.SyncStatus = SyncConflict
		o.UpdatedAt = store.FormatTime(s.now())
		return nil
	})
	return err
}

func (s *service) DeleteOfflineOrder(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *service) ClearOfflineOrders(ctx context.Context) error {
	return s.repo.Clear(ctx)
}
