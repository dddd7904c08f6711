package dispatch

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"
	"unicode"

	"warimas-pos/internal/category"
	"warimas-pos/internal/logger"
	"warimas-pos/internal/metrics"
	"warimas-pos/internal/order"
	"warimas-pos/internal/product"
	"warimas-pos/internal/store"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OrderStore reads orders and records their dispatch outcome.
type OrderStore interface {
	GetOfflineOrderByID(ctx context.Context, id string) (*order.Order, error)
	UpdateDispatchStatus(ctx context.Context, id string, status order.DispatchStatus, dispatchErr *string) error
}

type ProductLookup interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

type StationResolver interface {
	DispatchStation(ctx context.Context, categoryID string) (category.Station, error)
}

// Service sends kitchen tickets over the LAN and queues them while the LAN
// is unreachable.
type Service struct {
	db        *store.DB
	transport Transport
	orders    OrderStore
	products  ProductLookup
	stations  StationResolver
	backoff   Backoff
	limiter   *rate.Limiter
	now       func() time.Time

	// mu serialises queue passes.
	mu sync.Mutex
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithBackoff(b Backoff) Option {
	return func(s *Service) { s.backoff = b }
}

// WithRateLimit caps broadcasts per second during a queue pass. Zero or a
// negative value removes the cap.
func WithRateLimit(perSecond float64) Option {
	return func(s *Service) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func NewService(db *store.DB, transport Transport, orders OrderStore, products ProductLookup, stations StationResolver, opts ...Option) *Service {
	s := &Service{
		db:        db,
		transport: transport,
		orders:    orders,
		products:  products,
		stations:  stations,
		backoff:   NewBackoff(30*time.Second, 0),
		limiter:   rate.NewLimiter(rate.Limit(10), 1),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var queueTables = store.Tables(store.TableDispatchQueue)

// RetryDelay is the unjittered delay after the given number of failures.
func (s *Service) RetryDelay(attempts int) time.Duration {
	return s.backoff.RetryDelay(attempts)
}

func (s *Service) IsReadyForRetry(item *QueueItem) bool {
	return s.backoff.IsReadyForRetry(item, s.now())
}

// ItemStation resolves the station an order line is prepared at. The
// product's category wins; the line's stored station is used when the
// product is no longer cached.
func (s *Service) ItemStation(ctx context.Context, it *order.Item) (category.Station, error) {
	p, err := s.products.GetByID(ctx, it.ProductID)
	if err != nil {
		return category.StationNone, err
	}
	if p == nil {
		if it.DispatchStation != nil && *it.DispatchStation != "" {
			return *it.DispatchStation, nil
		}
		return category.StationNone, nil
	}
	if p.CategoryID == nil {
		return category.StationNone, nil
	}
	return s.stations.DispatchStation(ctx, *p.CategoryID)
}

// FilterItemsByStation keeps the lines prepared at station.
func (s *Service) FilterItemsByStation(ctx context.Context, items []order.Item, station category.Station) ([]order.Item, error) {
	var out []order.Item
	for i := range items {
		st, err := s.ItemStation(ctx, &items[i])
		if err != nil {
			return nil, err
		}
		if st == station {
			out = append(out, items[i])
		}
	}
	return out, nil
}

func toKDSItems(items []order.Item) []KDSItem {
	out := make([]KDSItem, 0, len(items))
	for _, it := range items {
		mods := make([]string, 0, len(it.Modifiers))
		for _, m := range it.Modifiers {
			mods = append(mods, m.OptionLabel)
		}
		var notes *string
		if it.Notes != nil && *it.Notes != "" {
			notes = it.Notes
		}
		station := ""
		if it.DispatchStation != nil {
			station = string(*it.DispatchStation)
		}
		out = append(out, KDSItem{
			ID:         it.ID,
			ProductID:  it.ProductID,
			Name:       it.ProductName,
			Quantity:   it.Quantity,
			Modifiers:  mods,
			Notes:      notes,
			CategoryID: station,
		})
	}
	return out
}

// tableNumber reads the leading digits of a table label, or nil when there
// are none.
func tableNumber(label *string) *int {
	if label == nil {
		return nil
	}
	end := 0
	for end < len(*label) && unicode.IsDigit(rune((*label)[end])) {
		end++
	}
	if end == 0 {
		return nil
	}
	n, err := strconv.Atoi((*label)[:end])
	if err != nil {
		return nil
	}
	return &n
}

func newOrderPayload(o *order.Order, station category.Station, items []KDSItem, ts string) NewOrderPayload {
	return NewOrderPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		TableNumber: tableNumber(o.TableNumber),
		OrderType:   string(o.OrderType),
		Items:       items,
		Station:     station,
		Timestamp:   ts,
	}
}

func (s *Service) broadcast(ctx context.Context, station category.Station, payload NewOrderPayload) error {
	timer := metrics.StartTimer()
	err := s.transport.Broadcast(ctx, MessageKDSNewOrder, payload)
	timer.ObserveDuration(metrics.DispatchLatency)

	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.DispatchAttemptsTotal.WithLabelValues(string(station), result).Inc()
	return err
}

// DispatchOrderToKitchen sends one ticket per station that has lines in the
// order. Tickets that cannot be sent now are queued.
func (s *Service) DispatchOrderToKitchen(ctx context.Context, o *order.Order, items []order.Item) (*Result, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "DispatchOrderToKitchen"),
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
	)

	res := &Result{Dispatched: []category.Station{}, Queued: []category.Station{}}
	for _, station := range Stations {
		stationItems, err := s.FilterItemsByStation(ctx, items, station)
		if err != nil {
			return nil, err
		}
		if len(stationItems) == 0 {
			continue
		}

		kds := toKDSItems(stationItems)
		stationLog := log.With(zap.String("station", string(station)))

		if s.transport.IsActive() {
			payload := newOrderPayload(o, station, kds, store.FormatTime(s.now()))
			err := s.broadcast(ctx, station, payload)
			if err == nil {
				res.Dispatched = append(res.Dispatched, station)
				stationLog.Debug("ticket dispatched")
				continue
			}
			stationLog.Warn("ticket broadcast failed, queueing", zap.Error(err))
		} else {
			stationLog.Debug("lan unavailable, queueing ticket")
		}

		if _, err := s.AddToQueue(ctx, o.ID, station, kds); err != nil {
			return nil, err
		}
		res.Queued = append(res.Queued, station)
	}

	status := order.DispatchDispatched
	if len(res.Queued) > 0 {
		status = order.DispatchPending
	}
	if err := s.orders.UpdateDispatchStatus(ctx, o.ID, status, nil); err != nil {
		return nil, err
	}
	return res, nil
}

// AddToQueue stores a ticket for a later pass.
func (s *Service) AddToQueue(ctx context.Context, orderID string, station category.Station, items []KDSItem) (*QueueItem, error) {
	var item *QueueItem
	err := s.db.Update(ctx, queueTables, func(tx *store.Tx) error {
		id, err := tx.NextSequence(store.TableDispatchQueue)
		if err != nil {
			return err
		}
		item = &QueueItem{
			ID:        id,
			OrderID:   orderID,
			Station:   station,
			Items:     items,
			CreatedAt: store.FormatTime(s.now()),
			Status:    QueuePending,
		}
		return tx.Put(store.TableDispatchQueue, store.SequenceKey(id), item)
	})
	if err != nil {
		return nil, err
	}
	metrics.DispatchQueuedTotal.WithLabelValues(string(station)).Inc()
	return item, nil
}

func (s *Service) updateItem(ctx context.Context, id int64, fn func(*QueueItem)) error {
	return s.db.Update(ctx, queueTables, func(tx *store.Tx) error {
		key := store.SequenceKey(id)
		item, err := store.Get[QueueItem](tx, store.TableDispatchQueue, key)
		if err != nil || item == nil {
			return err
		}
		fn(item)
		return tx.Put(store.TableDispatchQueue, key, item)
	})
}

func (s *Service) deleteItem(ctx context.Context, id int64) error {
	return s.db.Update(ctx, queueTables, func(tx *store.Tx) error {
		return tx.Delete(store.TableDispatchQueue, store.SequenceKey(id))
	})
}

// ProcessQueue makes one pass over pending tickets. It does nothing while
// the transport is down. Once a ticket is claimed every error counts as a
// failed attempt, and the outcome is written even if ctx is cancelled.
func (s *Service) ProcessQueue(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	if !s.transport.IsActive() {
		return stats, nil
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ProcessQueue"),
	)

	if n, err := s.releaseClaims(ctx); err != nil {
		return stats, err
	} else if n > 0 {
		log.Warn("released tickets left in sending", zap.Int("count", n))
	}

	pending, err := s.PendingItems(ctx)
	if err != nil {
		return stats, err
	}

	for i := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		item := &pending[i]
		if !s.IsReadyForRetry(item) {
			stats.Skipped++
			continue
		}

		itemLog := log.With(
			zap.Int64("queue_id", item.ID),
			zap.String("order_id", item.OrderID),
			zap.String("station", string(item.Station)),
		)

		// 1. Claim the row
		now := s.now()
		ts := store.FormatTime(now)
		if err := s.updateItem(ctx, item.ID, func(q *QueueItem) {
			q.Status = QueueSending
			q.LastAttemptAt = &ts
		}); err != nil {
			return stats, err
		}

		done := context.WithoutCancel(ctx)
		sent, sendErr := s.send(ctx, item, ts, itemLog)
		if sendErr == nil {
			if !sent {
				continue
			}
			if err := s.deleteItem(done, item.ID); err != nil {
				return stats, err
			}
			stats.Processed++
			itemLog.Debug("queued ticket dispatched")
			continue
		}

		// 2. Record the failure
		failed, err := s.recordFailure(done, item, now, sendErr, itemLog)
		if err != nil {
			return stats, err
		}
		if failed {
			stats.Failed++
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// send broadcasts a claimed ticket. It reports false with a nil error when
// the order is gone and the ticket was dropped.
func (s *Service) send(ctx context.Context, item *QueueItem, ts string, log *zap.Logger) (bool, error) {
	o, err := s.orders.GetOfflineOrderByID(ctx, item.OrderID)
	if err != nil {
		return false, err
	}
	if o == nil {
		log.Info("order gone, dropping ticket")
		if err := s.deleteItem(context.WithoutCancel(ctx), item.ID); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return false, err
	}
	if err := s.broadcast(ctx, item.Station, newOrderPayload(o, item.Station, item.Items, ts)); err != nil {
		return false, err
	}
	return true, nil
}

// recordFailure counts a failed attempt. The ticket goes back to pending
// with a backoff, or to failed once MaxAttempts is reached.
func (s *Service) recordFailure(ctx context.Context, item *QueueItem, now time.Time, cause error, log *zap.Logger) (bool, error) {
	attempts := item.Attempts + 1
	msg := cause.Error()
	if attempts >= MaxAttempts {
		if err := s.updateItem(ctx, item.ID, func(q *QueueItem) {
			q.Status = QueueFailed
			q.Attempts = attempts
			q.LastError = &msg
		}); err != nil {
			return false, err
		}
		if err := s.orders.UpdateDispatchStatus(ctx, item.OrderID, order.DispatchFailed, &msg); err != nil {
			return false, err
		}
		log.Error("ticket dispatch failed", zap.Int("attempts", attempts), zap.Error(cause))
		return true, nil
	}

	delay := s.backoff.next(attempts - 1)
	nextAt := store.FormatTime(now.Add(delay))
	if err := s.updateItem(ctx, item.ID, func(q *QueueItem) {
		q.Status = QueuePending
		q.Attempts = attempts
		q.LastError = &msg
		q.NextAttemptAt = &nextAt
	}); err != nil {
		return false, err
	}
	log.Warn("ticket dispatch attempt failed",
		zap.Int("attempts", attempts),
		zap.Duration("retry_in", delay),
		zap.Error(cause),
	)
	return false, nil
}

// releaseClaims puts tickets left in sending by an interrupted pass back in
// the queue. Passes are serialised, so none is in flight here.
func (s *Service) releaseClaims(ctx context.Context) (int, error) {
	var n int
	err := s.db.Update(ctx, queueTables, func(tx *store.Tx) error {
		rows, err := store.List(tx, store.TableDispatchQueue, func(q *QueueItem) bool { return q.Status == QueueSending })
		if err != nil {
			return err
		}
		for _, q := range rows {
			q.Status = QueuePending
			if err := tx.Put(store.TableDispatchQueue, store.SequenceKey(q.ID), &q); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// MarkStationDispatched handles a station's acknowledgement. Once no queued
// ticket is left for the order, the order is dispatched.
func (s *Service) MarkStationDispatched(ctx context.Context, orderID string, station category.Station) error {
	var remaining int
	err := s.db.Update(ctx, queueTables, func(tx *store.Tx) error {
		rows, err := store.List(tx, store.TableDispatchQueue, func(q *QueueItem) bool { return q.OrderID == orderID })
		if err != nil {
			return err
		}
		for _, q := range rows {
			if q.Station != station {
				remaining++
				continue
			}
			if err := tx.Delete(store.TableDispatchQueue, store.SequenceKey(q.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.FromCtx(ctx).Debug("station acknowledged order",
		zap.String("order_id", orderID),
		zap.String("station", string(station)),
		zap.Int("remaining", remaining),
	)

	if remaining > 0 {
		return nil
	}
	err = s.orders.UpdateDispatchStatus(ctx, orderID, order.DispatchDispatched, nil)
	if errors.Is(err, order.ErrOrderNotFound) {
		return nil
	}
	return err
}

func (s *Service) list(ctx context.Context, keep func(*QueueItem) bool) ([]QueueItem, error) {
	var out []QueueItem
	err := s.db.View(ctx, queueTables, func(tx *store.Tx) error {
		var err error
		out, err = store.List(tx, store.TableDispatchQueue, keep)
		return err
	})
	return out, err
}

// PendingItems returns pending tickets, oldest first.
func (s *Service) PendingItems(ctx context.Context) ([]QueueItem, error) {
	items, err := s.list(ctx, func(q *QueueItem) bool { return q.Status == QueuePending })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt != items[j].CreatedAt {
			return items[i].CreatedAt < items[j].CreatedAt
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// PendingCount includes tickets claimed by a pass that has not finished.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	items, err := s.list(ctx, func(q *QueueItem) bool { return q.Status == QueuePending || q.Status == QueueSending })
	return len(items), err
}

func (s *Service) FailedCount(ctx context.Context) (int, error) {
	items, err := s.list(ctx, func(q *QueueItem) bool { return q.Status == QueueFailed })
	return len(items), err
}

func (s *Service) OrderQueue(ctx context.Context, orderID string) ([]QueueItem, error) {
	return s.list(ctx, func(q *QueueItem) bool { return q.OrderID == orderID })
}

func (s *Service) ClearFailedItems(ctx context.Context, orderID string) error {
	return s.db.Update(ctx, queueTables, func(tx *store.Tx) error {
		rows, err := store.List(tx, store.TableDispatchQueue, func(q *QueueItem) bool {
			return q.OrderID == orderID && q.Status == QueueFailed
		})
		if err != nil {
			return err
		}
		for _, q := range rows {
			if err := tx.Delete(store.TableDispatchQueue, store.SequenceKey(q.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// RetryFailedItems puts an order's failed tickets back in the queue with a
// fresh attempt budget.
func (s *Service) RetryFailedItems(ctx context.Context, orderID string) error {
	err := s.db.Update(ctx, queueTables, func(tx *store.Tx) error {
		rows, err := store.List(tx, store.TableDispatchQueue, func(q *QueueItem) bool {
			return q.OrderID == orderID && q.Status == QueueFailed
		})
		if err != nil {
			return err
		}
		for _, q := range rows {
			q.Status = QueuePending
			q.Attempts = 0
			q.LastError = nil
			q.NextAttemptAt = nil
			if err := tx.Put(store.TableDispatchQueue, store.SequenceKey(q.ID), &q); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.orders.UpdateDispatchStatus(ctx, orderID, order.DispatchPending, nil)
}
