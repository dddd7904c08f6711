// Package cacheinit fills the reference caches at startup and keeps them
// fresh with an hourly refresh while the terminal is online.
package cacheinit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"warimas-pos/internal/logger"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/tomb.v2"
)

const DefaultInterval = time.Hour

// Refresher is one reference cache. Every refcache-backed cache satisfies it.
type Refresher interface {
	Entity() string
	ShouldRefresh(ctx context.Context) (bool, error)
	ShouldRefreshHourly(ctx context.Context) (bool, error)
	CacheAll(ctx context.Context) error
}

// Orchestrator owns the startup refresh and the hourly loop.
type Orchestrator struct {
	refreshers []Refresher
	online     func() bool
	interval   time.Duration
	now        func() time.Time

	mu          sync.Mutex
	initialized bool
	lastRun     time.Time
	t           *tomb.Tomb
}

type Option func(*Orchestrator)

// WithOnlineCheck sets the check consulted before every hourly refresh.
func WithOnlineCheck(online func() bool) Option {
	return func(o *Orchestrator) { o.online = online }
}

func WithInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.interval = d }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(refreshers []Refresher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		refreshers: refreshers,
		online:     func() bool { return true },
		interval:   DefaultInterval,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.interval <= 0 {
		o.interval = DefaultInterval
	}
	return o
}

// Init refreshes every cache that is stale (or all of them when force is set)
// and arms the hourly loop on first use. It reports whether anything needed a
// refresh. The returned error lists per-entity failures and is informational:
// the caches that succeeded are committed either way.
func (o *Orchestrator) Init(ctx context.Context, force bool) (bool, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "cacheinit"), zap.Bool("force", force))

	needed := o.pick(ctx, force, Refresher.ShouldRefresh)
	err := o.refresh(ctx, needed)

	o.mu.Lock()
	o.lastRun = o.now()
	if !o.initialized {
		o.arm(ctx)
		o.initialized = true
	}
	o.mu.Unlock()

	log.Info("cache init finished",
		zap.Int("refreshed", len(needed)),
		zap.Int("failed", len(multierr.Errors(err))),
	)
	return len(needed) > 0, err
}

// pick returns the refreshers whose check says stale. A failing check counts
// as stale.
func (o *Orchestrator) pick(ctx context.Context, force bool, check func(Refresher, context.Context) (bool, error)) []Refresher {
	if force {
		return o.refreshers
	}
	var needed []Refresher
	for _, r := range o.refreshers {
		stale, err := check(r, ctx)
		if err != nil {
			logger.FromCtx(ctx).Warn("freshness check failed",
				zap.String("entity", r.Entity()),
				zap.Error(err),
			)
			stale = true
		}
		if stale {
			needed = append(needed, r)
		}
	}
	return needed
}

// refresh runs CacheAll on each refresher concurrently. A failure never
// cancels the others.
func (o *Orchestrator) refresh(ctx context.Context, refreshers []Refresher) error {
	errs := make([]error, len(refreshers))
	var g errgroup.Group
	for i, r := range refreshers {
		g.Go(func() error {
			if err := r.CacheAll(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", r.Entity(), err)
				logger.FromCtx(ctx).Error("cache refresh failed",
					zap.String("entity", r.Entity()),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}

// arm starts the hourly loop. Callers hold o.mu.
func (o *Orchestrator) arm(ctx context.Context) {
	t, tctx := tomb.WithContext(context.WithoutCancel(ctx))
	o.t = t
	t.Go(func() error {
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				o.tick(logger.WithRun(tctx, "cache_refresh"))
			case <-t.Dying():
				return nil
			}
		}
	})
}

func (o *Orchestrator) tick(ctx context.Context) {
	log := logger.FromCtx(ctx)
	if !o.online() {
		log.Debug("offline, skipping hourly refresh")
		return
	}

	needed := o.pick(ctx, false, Refresher.ShouldRefreshHourly)
	if len(needed) == 0 {
		return
	}
	if err := o.refresh(ctx, needed); err != nil {
		log.Warn("hourly refresh incomplete", zap.Error(err))
	}

	o.mu.Lock()
	o.lastRun = o.now()
	o.mu.Unlock()
}

// Stop disarms the hourly loop. It is safe to call more than once and before
// Init.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	t := o.t
	o.t = nil
	o.initialized = false
	o.mu.Unlock()

	if t == nil {
		return
	}
	t.Kill(nil)
	_ = t.Wait()
}

func (o *Orchestrator) IsInitialized() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.initialized
}

// LastRun returns when a refresh pass last completed, zero if never.
func (o *Orchestrator) LastRun() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastRun
}
