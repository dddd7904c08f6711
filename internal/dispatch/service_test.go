package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"warimas-pos/internal/category"
	"warimas-pos/internal/order"
	"warimas-pos/internal/product"
	"warimas-pos/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) IsActive() bool {
	return m.Called().Bool(0)
}

func (m *MockTransport) Broadcast(ctx context.Context, msgType string, payload any) error {
	return m.Called(ctx, msgType, payload).Error(0)
}

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) GetOfflineOrderByID(ctx context.Context, id string) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderStore) UpdateDispatchStatus(ctx context.Context, id string, status order.DispatchStatus, dispatchErr *string) error {
	return m.Called(ctx, id, status, dispatchErr).Error(0)
}

type MockProductLookup struct {
	mock.Mock
}

func (m *MockProductLookup) GetByID(ctx context.Context, id string) (*product.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

type MockStationResolver struct {
	mock.Mock
}

func (m *MockStationResolver) DispatchStation(ctx context.Context, categoryID string) (category.Station, error) {
	args := m.Called(ctx, categoryID)
	return args.Get(0).(category.Station), args.Error(1)
}

var now = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	transport *MockTransport
	orders    *MockOrderStore
	products  *MockProductLookup
	stations  *MockStationResolver
	clock     *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := now
	f := &fixture{
		transport: new(MockTransport),
		orders:    new(MockOrderStore),
		products:  new(MockProductLookup),
		stations:  new(MockStationResolver),
		clock:     &clock,
	}
	f.svc = NewService(db, f.transport, f.orders, f.products, f.stations,
		WithClock(func() time.Time { return *f.clock }),
		WithBackoff(NewBackoff(30*time.Second, 0)),
		WithRateLimit(0),
	)
	return f
}

// withMenu registers a coffee product on the barista station and a rice
// product on the kitchen station.
func (f *fixture) withMenu() {
	coffee, rice := "cat-coffee", "cat-rice"
	f.products.On("GetByID", mock.Anything, "p-latte").Return(&product.Product{ID: "p-latte", CategoryID: &coffee}, nil)
	f.products.On("GetByID", mock.Anything, "p-rice").Return(&product.Product{ID: "p-rice", CategoryID: &rice}, nil)
	f.stations.On("DispatchStation", mock.Anything, "cat-coffee").Return(category.StationBarista, nil)
	f.stations.On("DispatchStation", mock.Anything, "cat-rice").Return(category.StationKitchen, nil)
}

func sampleOrder() (*order.Order, []order.Item) {
	table := "12A"
	o := &order.Order{ID: "LOCAL-ORDER-1", OrderNumber: "OFFLINE-20261017-001", OrderType: order.TypeDineIn, TableNumber: &table}
	items := []order.Item{
		{ID: "i1", ProductID: "p-latte", ProductName: "Latte", Quantity: 2, Modifiers: []order.ItemModifier{{OptionLabel: "Oat milk"}}},
		{ID: "i2", ProductID: "p-rice", ProductName: "Nasi Goreng", Quantity: 1},
	}
	return o, items
}

func TestRetryDelay(t *testing.T) {
	b := NewBackoff(30*time.Second, 0)
	assert.Equal(t, 2*time.Second, b.RetryDelay(0))
	assert.Equal(t, 4*time.Second, b.RetryDelay(1))
	assert.Equal(t, 8*time.Second, b.RetryDelay(2))
	assert.Equal(t, 30*time.Second, b.RetryDelay(10))
	assert.Equal(t, 2*time.Second, b.RetryDelay(-1))
}

func TestBackoffJitter(t *testing.T) {
	b := NewBackoff(0, 0.5)
	b.rand = func() float64 { return 1 }
	assert.Equal(t, 3*time.Second, b.next(0))
	assert.Equal(t, 2*time.Second, b.RetryDelay(0))
}

func TestIsReadyForRetry(t *testing.T) {
	b := NewBackoff(30*time.Second, 0)
	last := store.FormatTime(now)

	assert.True(t, b.IsReadyForRetry(&QueueItem{}, now))
	assert.True(t, b.IsReadyForRetry(&QueueItem{Attempts: 2}, now))

	item := &QueueItem{Attempts: 1, LastAttemptAt: &last}
	assert.False(t, b.IsReadyForRetry(item, now.Add(1999*time.Millisecond)))
	assert.True(t, b.IsReadyForRetry(item, now.Add(2*time.Second)))

	item.Attempts = 2
	assert.False(t, b.IsReadyForRetry(item, now.Add(3*time.Second)))
	assert.True(t, b.IsReadyForRetry(item, now.Add(4*time.Second)))

	next := store.FormatTime(now.Add(10 * time.Second))
	item.NextAttemptAt = &next
	assert.False(t, b.IsReadyForRetry(item, now.Add(9*time.Second)))
	assert.True(t, b.IsReadyForRetry(item, now.Add(10*time.Second)))
}

func TestTableNumber(t *testing.T) {
	s := func(v string) *string { return &v }
	assert.Nil(t, tableNumber(nil))
	assert.Nil(t, tableNumber(s("")))
	assert.Nil(t, tableNumber(s("Patio")))
	assert.Equal(t, 12, *tableNumber(s("12A")))
	assert.Equal(t, 7, *tableNumber(s("7")))
}

func TestItemStation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.withMenu()
	f.products.On("GetByID", mock.Anything, "p-gone").Return(nil, nil)

	st, err := f.svc.ItemStation(ctx, &order.Item{ProductID: "p-latte"})
	require.NoError(t, err)
	assert.Equal(t, category.StationBarista, st)

	kitchen := category.StationKitchen
	st, err = f.svc.ItemStation(ctx, &order.Item{ProductID: "p-gone", DispatchStation: &kitchen})
	require.NoError(t, err)
	assert.Equal(t, category.StationKitchen, st)

	st, err = f.svc.ItemStation(ctx, &order.Item{ProductID: "p-gone"})
	require.NoError(t, err)
	assert.Equal(t, category.StationNone, st)
}

func TestDispatchOrderToKitchen(t *testing.T) {
	ctx := context.Background()

	t.Run("All stations dispatched", func(t *testing.T) {
		f := newFixture(t)
		f.withMenu()
		o, items := sampleOrder()

		var sent []NewOrderPayload
		f.transport.On("IsActive").Return(true)
		f.transport.On("Broadcast", mock.Anything, MessageKDSNewOrder, mock.Anything).
			Run(func(args mock.Arguments) { sent = append(sent, args.Get(2).(NewOrderPayload)) }).
			Return(nil)
		f.orders.On("UpdateDispatchStatus", mock.Anything, o.ID, order.DispatchDispatched, (*string)(nil)).Return(nil)

		res, err := f.svc.DispatchOrderToKitchen(ctx, o, items)
		require.NoError(t, err)
		assert.Equal(t, []category.Station{category.StationKitchen, category.StationBarista}, res.Dispatched)
		assert.Empty(t, res.Queued)

		require.Len(t, sent, 2)
		assert.Equal(t, category.StationKitchen, sent[0].Station)
		assert.Equal(t, "Nasi Goreng", sent[0].Items[0].Name)
		assert.Equal(t, 12, *sent[0].TableNumber)
		assert.Equal(t, []string{"Oat milk"}, sent[1].Items[0].Modifiers)
		assert.Equal(t, store.FormatTime(now), sent[1].Timestamp)

		pending, err := f.svc.PendingCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, pending)
		f.orders.AssertExpectations(t)
	})

	t.Run("Offline queues every station", func(t *testing.T) {
		f := newFixture(t)
		f.withMenu()
		o, items := sampleOrder()

		f.transport.On("IsActive").Return(false)
		f.orders.On("UpdateDispatchStatus", mock.Anything, o.ID, order.DispatchPending, (*string)(nil)).Return(nil)

		res, err := f.svc.DispatchOrderToKitchen(ctx, o, items)
		require.NoError(t, err)
		assert.Empty(t, res.Dispatched)
		assert.Len(t, res.Queued, 2)

		queue, err := f.svc.OrderQueue(ctx, o.ID)
		require.NoError(t, err)
		require.Len(t, queue, 2)
		assert.Equal(t, QueuePending, queue[0].Status)
		assert.Zero(t, queue[0].Attempts)
		f.transport.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Broadcast error queues that station only", func(t *testing.T) {
		f := newFixture(t)
		f.withMenu()
		o, items := sampleOrder()

		f.transport.On("IsActive").Return(true)
		f.transport.On("Broadcast", mock.Anything, MessageKDSNewOrder, mock.MatchedBy(func(p NewOrderPayload) bool {
			return p.Station == category.StationKitchen
		})).Return(errors.New("hub closed"))
		f.transport.On("Broadcast", mock.Anything, MessageKDSNewOrder, mock.Anything).Return(nil)
		f.orders.On("UpdateDispatchStatus", mock.Anything, o.ID, order.DispatchPending, (*string)(nil)).Return(nil)

		res, err := f.svc.DispatchOrderToKitchen(ctx, o, items)
		require.NoError(t, err)
		assert.Equal(t, []category.Station{category.StationBarista}, res.Dispatched)
		assert.Equal(t, []category.Station{category.StationKitchen}, res.Queued)
	})

	t.Run("Display items are never sent", func(t *testing.T) {
		f := newFixture(t)
		cat := "cat-retail"
		f.products.On("GetByID", mock.Anything, "p-mug").Return(&product.Product{ID: "p-mug", CategoryID: &cat}, nil)
		f.stations.On("DispatchStation", mock.Anything, "cat-retail").Return(category.StationDisplay, nil)
		f.transport.On("IsActive").Return(true)
		f.orders.On("UpdateDispatchStatus", mock.Anything, "o1", order.DispatchDispatched, (*string)(nil)).Return(nil)

		res, err := f.svc.DispatchOrderToKitchen(ctx, &order.Order{ID: "o1"}, []order.Item{{ID: "i1", ProductID: "p-mug"}})
		require.NoError(t, err)
		assert.Empty(t, res.Dispatched)
		assert.Empty(t, res.Queued)
		f.transport.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestProcessQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("Inactive transport is a no-op", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AddToQueue(ctx, "o1", category.StationKitchen, nil)
		require.NoError(t, err)
		f.transport.On("IsActive").Return(false)

		stats, err := f.svc.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{}, stats)

		pending, err := f.svc.PendingCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, pending)
	})

	t.Run("Sends and deletes", func(t *testing.T) {
		f := newFixture(t)
		o, _ := sampleOrder()
		_, err := f.svc.AddToQueue(ctx, o.ID, category.StationKitchen, []KDSItem{{ID: "i2", Name: "Nasi Goreng"}})
		require.NoError(t, err)

		f.transport.On("IsActive").Return(true)
		f.transport.On("Broadcast", mock.Anything, MessageKDSNewOrder, mock.Anything).Return(nil)
		f.orders.On("GetOfflineOrderByID", mock.Anything, o.ID).Return(o, nil)

		stats, err := f.svc.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{Processed: 1}, stats)

		queue, err := f.svc.OrderQueue(ctx, o.ID)
		require.NoError(t, err)
		assert.Empty(t, queue)
	})

	t.Run("Missing order drops the ticket", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AddToQueue(ctx, "gone", category.StationKitchen, nil)
		require.NoError(t, err)

		f.transport.On("IsActive").Return(true)
		f.orders.On("GetOfflineOrderByID", mock.Anything, "gone").Return(nil, nil)

		stats, err := f.svc.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{}, stats)

		pending, err := f.svc.PendingCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, pending)
		f.transport.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Three failures mark the order failed", func(t *testing.T) {
		f := newFixture(t)
		o, _ := sampleOrder()
		_, err := f.svc.AddToQueue(ctx, o.ID, category.StationBarista, nil)
		require.NoError(t, err)

		f.transport.On("IsActive").Return(true)
		f.transport.On("Broadcast", mock.Anything, MessageKDSNewOrder, mock.Anything).Return(errors.New("timeout"))
		f.orders.On("GetOfflineOrderByID", mock.Anything, o.ID).Return(o, nil)
		f.orders.On("UpdateDispatchStatus", mock.Anything, o.ID, order.DispatchFailed, mock.MatchedBy(func(e *string) bool {
			return e != nil && *e == "timeout"
		})).Return(nil).Once()

		// first attempt
		stats, err := f.svc.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{}, stats)

		queue, err := f.svc.OrderQueue(ctx, o.ID)
		require.NoError(t, err)
		require.Len(t, queue, 1)
		assert.Equal(t, 1, queue[0].Attempts)
		assert.Equal(t, QueuePending, queue[0].Status)
		assert.Equal(t, "timeout", *queue[0].LastError)

		// too early for the second
		*f.clock = now.Add(time.Second)
		stats, err = f.svc.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{Skipped: 1}, stats)

		*f.clock = now.Add(3 * time.Second)
		_, err = f.svc.ProcessQueue(ctx)
		require.NoError(t, err)

		*f.clock = now.Add(10 * time.Second)
		stats, err = f.svc.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{Failed: 1}, stats)

		failed, err := f.svc.FailedCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, failed)
		f.orders.AssertExpectations(t)

		// failed tickets are left alone by later passes
		stats, err = f.svc.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{}, stats)
	})

	t.Run("Cancelled pass keeps the ticket queued", func(t *testing.T) {
		f := newFixture(t)
		o, _ := sampleOrder()
		_, err := f.svc.AddToQueue(ctx, o.ID, category.StationKitchen, nil)
		require.NoError(t, err)

		passCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		f.transport.On("IsActive").Return(true)
		f.orders.On("GetOfflineOrderByID", mock.Anything, o.ID).Return(o, nil)
		f.transport.On("Broadcast", mock.Anything, MessageKDSNewOrder, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(errors.New("connection closed")).Once()
		f.transport.On("Broadcast", mock.Anything, MessageKDSNewOrder, mock.Anything).Return(nil)

		_, err = f.svc.ProcessQueue(passCtx)
		assert.ErrorIs(t, err, context.Canceled)

		queue, err := f.svc.OrderQueue(ctx, o.ID)
		require.NoError(t, err)
		require.Len(t, queue, 1)
		assert.Equal(t, QueuePending, queue[0].Status)
		assert.Equal(t, 1, queue[0].Attempts)
		assert.Equal(t, "connection closed", *queue[0].LastError)

		pending, err := f.svc.PendingCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, pending)

		*f.clock = now.Add(24 * time.Hour)
		stats, err := f.svc.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{Processed: 1}, stats)
	})

	t.Run("Order lookup error counts as an attempt", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AddToQueue(ctx, "o1", category.StationKitchen, nil)
		require.NoError(t, err)

		f.transport.On("IsActive").Return(true)
		f.orders.On("GetOfflineOrderByID", mock.Anything, "o1").Return(nil, errors.New("disk busy"))

		stats, err := f.svc.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{}, stats)

		queue, err := f.svc.OrderQueue(ctx, "o1")
		require.NoError(t, err)
		require.Len(t, queue, 1)
		assert.Equal(t, QueuePending, queue[0].Status)
		assert.Equal(t, 1, queue[0].Attempts)
		assert.Equal(t, "disk busy", *queue[0].LastError)
		require.NotNil(t, queue[0].NextAttemptAt)
		f.transport.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Lookup error on the last attempt fails the ticket", func(t *testing.T) {
		f := newFixture(t)
		item, err := f.svc.AddToQueue(ctx, "o1", category.StationKitchen, nil)
		require.NoError(t, err)
		require.NoError(t, f.svc.updateItem(ctx, item.ID, func(q *QueueItem) { q.Attempts = MaxAttempts - 1 }))

		f.transport.On("IsActive").Return(true)
		f.orders.On("GetOfflineOrderByID", mock.Anything, "o1").Return(nil, errors.New("disk busy"))
		f.orders.On("UpdateDispatchStatus", mock.Anything, "o1", order.DispatchFailed, mock.Anything).Return(nil).Once()

		stats, err := f.svc.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{Failed: 1}, stats)

		failed, err := f.svc.FailedCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, failed)
		f.orders.AssertExpectations(t)
	})

	t.Run("Limiter wait error counts as an attempt", func(t *testing.T) {
		f := newFixture(t)
		o, _ := sampleOrder()
		_, err := f.svc.AddToQueue(ctx, o.ID, category.StationKitchen, nil)
		require.NoError(t, err)

		// One token per hour, already spent.
		f.svc.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
		require.True(t, f.svc.limiter.Allow())

		f.transport.On("IsActive").Return(true)
		f.orders.On("GetOfflineOrderByID", mock.Anything, o.ID).Return(o, nil)

		passCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		stats, err := f.svc.ProcessQueue(passCtx)
		require.NoError(t, err)
		assert.Equal(t, Stats{}, stats)

		queue, err := f.svc.OrderQueue(ctx, o.ID)
		require.NoError(t, err)
		require.Len(t, queue, 1)
		assert.Equal(t, QueuePending, queue[0].Status)
		assert.Equal(t, 1, queue[0].Attempts)
		f.transport.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Releases tickets left in sending", func(t *testing.T) {
		f := newFixture(t)
		o, _ := sampleOrder()
		item, err := f.svc.AddToQueue(ctx, o.ID, category.StationKitchen, nil)
		require.NoError(t, err)
		require.NoError(t, f.svc.updateItem(ctx, item.ID, func(q *QueueItem) { q.Status = QueueSending }))

		pending, err := f.svc.PendingCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, pending)

		f.transport.On("IsActive").Return(true)
		f.orders.On("GetOfflineOrderByID", mock.Anything, o.ID).Return(o, nil)
		f.transport.On("Broadcast", mock.Anything, MessageKDSNewOrder, mock.Anything).Return(nil)

		stats, err := f.svc.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{Processed: 1}, stats)

		queue, err := f.svc.OrderQueue(ctx, o.ID)
		require.NoError(t, err)
		assert.Empty(t, queue)
	})
}

func TestRetryAndClearFailedItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	item, err := f.svc.AddToQueue(ctx, "o1", category.StationKitchen, nil)
	require.NoError(t, err)
	msg := "timeout"
	require.NoError(t, f.svc.updateItem(ctx, item.ID, func(q *QueueItem) {
		q.Status = QueueFailed
		q.Attempts = MaxAttempts
		q.LastError = &msg
	}))

	f.orders.On("UpdateDispatchStatus", mock.Anything, "o1", order.DispatchPending, (*string)(nil)).Return(nil)
	require.NoError(t, f.svc.RetryFailedItems(ctx, "o1"))

	pending, err := f.svc.PendingItems(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].Attempts)
	assert.Nil(t, pending[0].LastError)

	require.NoError(t, f.svc.updateItem(ctx, item.ID, func(q *QueueItem) { q.Status = QueueFailed }))
	require.NoError(t, f.svc.ClearFailedItems(ctx, "o1"))
	queue, err := f.svc.OrderQueue(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestMarkStationDispatched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddToQueue(ctx, "o1", category.StationKitchen, nil)
	require.NoError(t, err)
	_, err = f.svc.AddToQueue(ctx, "o1", category.StationBarista, nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkStationDispatched(ctx, "o1", category.StationKitchen))
	f.orders.AssertNotCalled(t, "UpdateDispatchStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	f.orders.On("UpdateDispatchStatus", mock.Anything, "o1", order.DispatchDispatched, (*string)(nil)).Return(nil).Once()
	require.NoError(t, f.svc.MarkStationDispatched(ctx, "o1", category.StationBarista))
	f.orders.AssertExpectations(t)

	queue, err := f.svc.OrderQueue(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestPump(t *testing.T) {
	f := newFixture(t)
	var passes atomic.Int32
	f.transport.On("IsActive").Return(false).Run(func(mock.Arguments) { passes.Add(1) })

	p := NewPump(f.svc, 5*time.Millisecond)
	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrPumpRunning)

	assert.Eventually(t, func() bool { return passes.Load() >= 2 }, time.Second, 5*time.Millisecond)

	assert.NoError(t, p.Stop())
}
