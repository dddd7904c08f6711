// Package syncqueue is the producer side of the outbox that the sync engine
// drains once the terminal is back online.
package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"warimas-pos/internal/metrics"
	"warimas-pos/internal/store"
)

type Entity string

const (
	EntityOrders     Entity = "orders"
	EntityOrderItems Entity = "order_items"
	EntityPayments   Entity = "payments"
	EntitySessions   Entity = "pos_sessions"
	EntityCustomers  Entity = "customers"
	EntityProducts   Entity = "products"
	EntityCategories Entity = "categories"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSyncing   Status = "syncing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Item is one pending remote operation.
type Item struct {
	ID        int64           `json:"id"`
	Entity    Entity          `json:"entity"`
	Action    Action          `json:"action"`
	EntityID  string          `json:"entityId"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
	Status    Status          `json:"status"`
	Retries   int             `json:"retries"`
	LastError *string         `json:"last_error,omitempty"`
}

// priority orders entities so that foreign keys resolve upstream: sessions
// before orders before items before payments.
var priority = map[Entity]int{
	EntitySessions:   1,
	EntityOrders:     2,
	EntityOrderItems: 3,
	EntityPayments:   4,
	EntityCustomers:  0,
	EntityProducts:   0,
	EntityCategories: 0,
}

func Priority(e Entity) int {
	if p, ok := priority[e]; ok {
		return p
	}
	return 99
}

// Enqueue appends an entry inside the caller's transaction, so the entry
// commits together with the domain write it describes.
func Enqueue(tx *store.Tx, entity Entity, action Action, entityID string, payload any, now time.Time) (*Item, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode sync payload: %w", err)
	}

	id, err := tx.NextSequence(store.TableSyncQueue)
	if err != nil {
		return nil, err
	}

	item := &Item{
		ID:        id,
		Entity:    entity,
		Action:    action,
		EntityID:  entityID,
		Payload:   raw,
		CreatedAt: store.FormatTime(now),
		Status:    StatusPending,
		Retries:   0,
	}
	if err := tx.Put(store.TableSyncQueue, store.SequenceKey(id), item); err != nil {
		return nil, err
	}

	metrics.SyncQueueEnqueuedTotal.WithLabelValues(string(entity), string(action)).Inc()
	return item, nil
}

// SortByDependency orders items by entity priority, then FIFO.
func SortByDependency(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := Priority(items[i].Entity), Priority(items[j].Entity)
		if pi != pj {
			return pi < pj
		}
		return items[i].ID < items[j].ID
	})
}

// Queue reads the outbox.
type Queue struct {
	db *store.DB
}

func NewQueue(db *store.DB) *Queue {
	return &Queue{db: db}
}

var tables = store.Tables(store.TableSyncQueue)

// Pending returns pending entries in dependency order.
func (q *Queue) Pending(ctx context.Context) ([]Item, error) {
	var items []Item
	err := q.db.View(ctx, tables, func(tx *store.Tx) error {
		var err error
		items, err = store.List(tx, store.TableSyncQueue, func(it *Item) bool {
			return it.Status == StatusPending
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	SortByDependency(items)
	return items, nil
}

func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	items, err := q.Pending(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (q *Queue) Get(ctx context.Context, id int64) (*Item, error) {
	var item *Item
	err := q.db.View(ctx, tables, func(tx *store.Tx) error {
		var err error
		item, err = store.Get[Item](tx, store.TableSyncQueue, store.SequenceKey(id))
		return err
	})
	return item, err
}

// ForEntity returns every entry, in insertion order, that targets entityID.
func (q *Queue) ForEntity(ctx context.Context, entity Entity, entityID string) ([]Item, error) {
	var items []Item
	err := q.db.View(ctx, tables, func(tx *store.Tx) error {
		var err error
		items, err = store.List(tx, store.TableSyncQueue, func(it *Item) bool {
			return it.Entity == entity && it.EntityID == entityID
		})
		return err
	})
	return items, err
}

// CountByEntity reports pending entries per entity.
func (q *Queue) CountByEntity(ctx context.Context) (map[Entity]int, error) {
	items, err := q.Pending(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[Entity]int)
	for _, it := range items {
		out[it.Entity]++
	}
	return out, nil
}
