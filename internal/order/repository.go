package order

import (
	"context"
	"strings"
	"time"

	"warimas-pos/internal/localid"
	"warimas-pos/internal/logger"
	"warimas-pos/internal/store"
	"warimas-pos/internal/syncqueue"

	"go.uber.org/zap"
)

type Repository interface {
	// Create reserves the order number, stores the order with its items and
	// enqueues orders/create, all in one transaction.
	Create(ctx context.Context, o *Order, items []Item, now time.Time) error
	NextOrderNumber(ctx context.Context, now time.Time) (string, error)

	Get(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	List(ctx context.Context, keep func(*Order) bool) ([]Order, error)
	Items(ctx context.Context, orderID string) ([]Item, error)

	// UpdateStatus changes the order status and enqueues orders/update.
	UpdateStatus(ctx context.Context, id string, status Status, now time.Time) error
	UpdateItemStatus(ctx context.Context, itemID string, status ItemStatus) error
	// Update applies fn to a stored order without touching the sync queue.
	Update(ctx context.Context, id string, fn func(*Order) error) (*Order, error)

	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

type repository struct {
	db *store.DB
}

func NewRepository(db *store.DB) Repository {
	return &repository{db: db}
}

var (
	orderTables = store.Tables(store.TableOrders, store.TableOrderItems, store.TableOrderNumbers)
	writeTables = store.Tables(store.TableOrders, store.TableOrderItems, store.TableOrderNumbers, store.TableSyncQueue)
)

func itemKey(orderID, itemID string) string { return orderID + "/" + itemID }

func (r *repository) Create(ctx context.Context, o *Order, items []Item, now time.Time) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Create"),
		zap.String("order_id", o.ID),
	)

	err := r.db.Update(ctx, writeTables, func(tx *store.Tx) error {
		// 1. Reserve the next number of the day
		prefix := localid.OrderNumberDatePrefix(now)
		n, err := tx.CountPrefix(store.TableOrderNumbers, prefix)
		if err != nil {
			return err
		}
		o.OrderNumber = localid.FormatOrderNumber(now, n+1)

		// 2. Order, items and number index
		if err := tx.Put(store.TableOrders, o.ID, o); err != nil {
			return err
		}
		for i := range items {
			if err := tx.Put(store.TableOrderItems, itemKey(o.ID, items[i].ID), &items[i]); err != nil {
				return err
			}
		}
		if err := tx.PutRaw(store.TableOrderNumbers, o.OrderNumber, []byte(o.ID)); err != nil {
			return err
		}

		// 3. Outbox entry
		_, err = syncqueue.Enqueue(tx, syncqueue.EntityOrders, syncqueue.ActionCreate, o.ID,
			WithItems{Order: *o, Items: items}, now)
		return err
	})
	if err != nil {
		log.Error("failed to save offline order", zap.Error(err))
		return err
	}

	log.Info("offline order saved",
		zap.String("order_number", o.OrderNumber),
		zap.Int("item_count", len(items)),
	)
	return nil
}

func (r *repository) NextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	var number string
	err := r.db.View(ctx, store.Tables(store.TableOrderNumbers), func(tx *store.Tx) error {
		n, err := tx.CountPrefix(store.TableOrderNumbers, localid.OrderNumberDatePrefix(now))
		if err != nil {
			return err
		}
		number = localid.FormatOrderNumber(now, n+1)
		return nil
	})
	return number, err
}

func (r *repository) Get(ctx context.Context, id string) (*Order, error) {
	var o *Order
	err := r.db.View(ctx, store.Tables(store.TableOrders), func(tx *store.Tx) error {
		var err error
		o, err = store.Get[Order](tx, store.TableOrders, id)
		return err
	})
	return o, err
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	var o *Order
	err := r.db.View(ctx, orderTables, func(tx *store.Tx) error {
		id, err := tx.GetRaw(store.TableOrderNumbers, number)
		if err != nil || id == nil {
			return err
		}
		o, err = store.Get[Order](tx, store.TableOrders, string(id))
		return err
	})
	return o, err
}

func (r *repository) List(ctx context.Context, keep func(*Order) bool) ([]Order, error) {
	var orders []Order
	err := r.db.View(ctx, store.Tables(store.TableOrders), func(tx *store.Tx) error {
		var err error
		orders, err = store.List(tx, store.TableOrders, keep)
		return err
	})
	return orders, err
}

func (r *repository) Items(ctx context.Context, orderID string) ([]Item, error) {
	items := []Item{}
	err := r.db.View(ctx, store.Tables(store.TableOrderItems), func(tx *store.Tx) error {
		return forEachItem(tx, orderID, func(_ string, it Item) error {
			items = append(items, it)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id string, status Status, now time.Time) error {
	return r.db.Update(ctx, store.Tables(store.TableOrders, store.TableSyncQueue), func(tx *store.Tx) error {
		o, err := store.Get[Order](tx, store.TableOrders, id)
		if err != nil {
			return err
		}
		if o == nil {
			return ErrOrderNotFound
		}

		o.Status = status
		o.UpdatedAt = store.FormatTime(now)
		if err := tx.Put(store.TableOrders, id, o); err != nil {
			return err
		}

		_, err = syncqueue.Enqueue(tx, syncqueue.EntityOrders, syncqueue.ActionUpdate, id, map[string]any{
			"status":     status,
			"updated_at": o.UpdatedAt,
		}, now)
		return err
	})
}

func (r *repository) UpdateItemStatus(ctx context.Context, itemID string, status ItemStatus) error {
	return r.db.Update(ctx, store.Tables(store.TableOrderItems), func(tx *store.Tx) error {
		var (
			key   string
			found *Item
		)
		err := tx.ForEach(store.TableOrderItems, func(k string, _ []byte) error {
			if !strings.HasSuffix(k, "/"+itemID) {
				return nil
			}
			var it Item
			if ok, err := tx.Get(store.TableOrderItems, k, &it); err != nil || !ok {
				return err
			}
			key, found = k, &it
			return nil
		})
		if err != nil {
			return err
		}
		if found == nil {
			return ErrOrderItemNotFound
		}

		found.ItemStatus = status
		return tx.Put(store.TableOrderItems, key, found)
	})
}

func (r *repository) Update(ctx context.Context, id string, fn func(*Order) error) (*Order, error) {
	var o *Order
	err := r.db.Update(ctx, store.Tables(store.TableOrders), func(tx *store.Tx) error {
		var err error
		o, err = store.Get[Order](tx, store.TableOrders, id)
		if err != nil {
			return err
		}
		if o == nil {
			return ErrOrderNotFound
		}
		if err := fn(o); err != nil {
			return err
		}
		return tx.Put(store.TableOrders, id, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.db.Update(ctx, store.Tables(store.TableOrders, store.TableOrderItems), func(tx *store.Tx) error {
		var keys []string
		err := forEachItem(tx, id, func(k string, _ Item) error {
			keys = append(keys, k)
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := tx.Delete(store.TableOrderItems, k); err != nil {
				return err
			}
		}

		// The number index entry stays so the day's numbering never reuses a number.
		return tx.Delete(store.TableOrders, id)
	})
}

func (r *repository) Clear(ctx context.Context) error {
	return r.db.Update(ctx, orderTables, func(tx *store.Tx) error {
		for _, t := range orderTables {
			if err := tx.Clear(t); err != nil {
				return err
			}
		}
		return nil
	})
}

func forEachItem(tx *store.Tx, orderID string, fn func(key string, it Item) error) error {
	return tx.ForEachPrefix(store.TableOrderItems, orderID+"/", func(k string, _ []byte) error {
		var it Item
		if _, err := tx.Get(store.TableOrderItems, k, &it); err != nil {
			return err
		}
		return fn(k, it)
	})
}
