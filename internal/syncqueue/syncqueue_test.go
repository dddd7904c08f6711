package syncqueue

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"warimas-pos/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEnqueue(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	var item *Item
	err := db.Update(ctx, tables, func(tx *store.Tx) error {
		var err error
		item, err = Enqueue(tx, EntityOrders, ActionUpdate, "LOCAL-1", map[string]string{"status": "ready"}, now)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), item.ID)
	assert.Equal(t, StatusPending, item.Status)
	assert.Equal(t, 0, item.Retries)
	assert.Equal(t, "2026-02-01T10:00:00.000Z", item.CreatedAt)

	q := NewQueue(db)
	got, err := q.Get(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, "ready", payload["status"])
}

func TestEnqueue_RollsBackWithCaller(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.Update(ctx, tables, func(tx *store.Tx) error {
		if _, err := Enqueue(tx, EntityOrders, ActionCreate, "LOCAL-1", nil, time.Now()); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	n, err := NewQueue(db).PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestQueue_PendingOrdersByDependency(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	err := db.Update(ctx, tables, func(tx *store.Tx) error {
		for _, e := range []struct {
			entity Entity
			id     string
		}{
			{EntityPayments, "p1"},
			{EntityOrders, "o1"},
			{EntitySessions, "s1"},
			{EntityOrders, "o2"},
			{EntityProducts, "x1"},
		} {
			if _, err := Enqueue(tx, e.entity, ActionCreate, e.id, nil, now); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	q := NewQueue(db)
	items, err := q.Pending(ctx)
	require.NoError(t, err)

	var ids []string
	for _, it := range items {
		ids = append(ids, it.EntityID)
	}
	assert.Equal(t, []string{"x1", "s1", "o1", "o2", "p1"}, ids)

	counts, err := q.CountByEntity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[EntityOrders])

	forOrder, err := q.ForEntity(ctx, EntityOrders, "o2")
	require.NoError(t, err)
	assert.Len(t, forOrder, 1)
}

func TestPriority_Unknown(t *testing.T) {
	assert.Equal(t, 99, Priority(Entity("stock_movements")))
	assert.Equal(t, 1, Priority(EntitySessions))
}
