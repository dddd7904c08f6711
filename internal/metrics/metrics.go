package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncQueueEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sync_queue_enqueued_total",
		Help: "Total number of sync queue entries written",
	}, []string{"entity", "action"})

	OfflineOrdersSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_offline_orders_saved_total",
		Help: "Total number of orders saved to the local store",
	})

	OfflinePaymentsSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_offline_payments_saved_total",
		Help: "Total number of payments saved to the local store",
	}, []string{"method"})

	CacheRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_cache_refresh_total",
		Help: "Total number of reference cache refreshes",
	}, []string{"entity", "result"})

	CacheRefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_cache_refresh_duration_seconds",
		Help:    "Duration of a full reference cache refresh",
		Buckets: prometheus.DefBuckets,
	}, []string{"entity"})

	CacheRecordCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pos_cache_records",
		Help: "Number of rows held by each reference cache after the last refresh",
	}, []string{"entity"})

	DispatchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_dispatch_attempts_total",
		Help: "Total number of kitchen ticket broadcasts",
	}, []string{"station", "result"})

	DispatchQueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_dispatch_queued_total",
		Help: "Total number of kitchen tickets queued for retry",
	}, []string{"station"})

	DispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_dispatch_latency_seconds",
		Help:    "Latency of a kitchen ticket broadcast",
		Buckets: prometheus.DefBuckets,
	})

	PinAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_pin_attempts_total",
		Help: "Total number of offline PIN verifications",
	}, []string{"result"})

	LanFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_lan_frames_total",
		Help: "Total number of LAN hub frames",
	}, []string{"direction", "type"})
)
