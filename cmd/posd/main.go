package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warimas-pos/internal/cacheinit"
	"warimas-pos/internal/cart"
	"warimas-pos/internal/category"
	"warimas-pos/internal/config"
	"warimas-pos/internal/db"
	"warimas-pos/internal/dispatch"
	"warimas-pos/internal/lan"
	"warimas-pos/internal/localstore"
	"warimas-pos/internal/logger"
	"warimas-pos/internal/middleware"
	"warimas-pos/internal/modifier"
	"warimas-pos/internal/offlineauth"
	"warimas-pos/internal/order"
	"warimas-pos/internal/payment"
	"warimas-pos/internal/product"
	"warimas-pos/internal/ratelimit"
	"warimas-pos/internal/recipe"
	"warimas-pos/internal/reminder"
	"warimas-pos/internal/remote"
	"warimas-pos/internal/session"
	"warimas-pos/internal/settings"
	"warimas-pos/internal/store"
	"warimas-pos/internal/syncqueue"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	shutdownTimeout     = 10 * time.Second
	housekeepingEvery   = time.Minute
	lanReconnectBackoff = 5 * time.Second
)

// terminal holds every service of one POS terminal. The local HTTP surface
// covers health, PIN login, kitchen dispatch and the active cash session.
// TODO: add routes for checkout (converter, payments), cart and reminders;
// they are wired to the shared stores but not reachable over HTTP.
type terminal struct {
	products   *product.Cache
	categories *category.Cache
	modifiers  *modifier.Cache
	recipes    *recipe.Cache
	settings   *settings.Cache

	orders    order.Service
	converter *order.CartConverter
	payments  payment.Service
	sessions  session.Service
	syncQueue *syncqueue.Queue

	cart      cart.Service
	reminders *reminder.Service

	pinLimiter *ratelimit.Limiter
	auth       *offlineauth.Service

	lan        *lan.Client
	dispatcher *dispatch.Service
	pump       *dispatch.Pump
	cacheInit  *cacheinit.Orchestrator
}

func newTerminal(ctx context.Context, cfg *config.Config, localDB *store.DB, local localstore.Storage, source *remote.Source) *terminal {
	t := &terminal{}

	// source is nil when no backend is configured; the caches then serve
	// what they hold and are never refreshed.
	t.products = product.NewCache(localDB, source, time.Now)
	t.categories = category.NewCache(localDB, source, time.Now)
	t.modifiers = modifier.NewCache(localDB, source, time.Now)
	t.recipes = recipe.NewCache(localDB, source, time.Now)
	t.settings = settings.NewCache(localDB, source, time.Now)

	t.orders = order.NewService(order.NewRepository(localDB))
	t.converter = order.NewCartConverter(t.orders, t.categories)
	t.payments = payment.NewService(localDB)
	t.sessions = session.NewService(localDB, t.orders, t.payments)
	t.syncQueue = syncqueue.NewQueue(localDB)

	t.cart = cart.NewService(local, t.products)
	t.reminders = reminder.NewService(local)

	t.pinLimiter = ratelimit.New()
	t.auth = offlineauth.NewService(localDB, t.pinLimiter, cfg.OfflineTokenSecret)

	t.lan = lan.NewClient(cfg.LanHubURL, cfg.DeviceID,
		lan.WithAckHandler(func(ctx context.Context, ack dispatch.AckPayload) error {
			return t.dispatcher.MarkStationDispatched(ctx, ack.OrderID, ack.Station)
		}),
	)
	t.dispatcher = dispatch.NewService(localDB, t.lan, t.orders, t.products, t.categories,
		dispatch.WithBackoff(dispatch.NewBackoff(cfg.DispatchMaxBackoff, cfg.DispatchJitter)),
		dispatch.WithRateLimit(cfg.DispatchRatePerSecond),
	)
	t.pump = dispatch.NewPump(t.dispatcher, cfg.DispatchPollInterval)

	var refreshers []cacheinit.Refresher
	online := func() bool { return false }
	if source != nil {
		refreshers = []cacheinit.Refresher{t.products, t.categories, t.modifiers, t.recipes}
		online = func() bool { return source.Online(ctx) }
	}
	t.cacheInit = cacheinit.New(refreshers,
		cacheinit.WithInterval(cfg.CacheRefreshInterval),
		cacheinit.WithOnlineCheck(online),
	)
	return t
}

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv, cfg.DeviceID)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.L().Fatal("posd stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config) (err error) {
	log := logger.FromCtx(ctx)

	localDB, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, localDB.Close()) }()

	local, err := localstore.Open(cfg.LocalStoragePath)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, local.Close()) }()

	var source *remote.Source
	if cfg.RemoteEnabled() {
		database, dbErr := db.NewDatabase(cfg)
		if dbErr != nil {
			log.Warn("backend unreachable, starting offline", zap.Error(dbErr))
		} else {
			defer database.Close()
			source = remote.NewSource(database)
		}
	}

	t := newTerminal(ctx, cfg, localDB, local, source)

	if source != nil {
		if _, initErr := t.cacheInit.Init(ctx, false); initErr != nil {
			log.Warn("reference caches partially initialised", zap.Error(initErr))
		}
		if _, setErr := t.settings.RefreshIfNeeded(ctx, false); setErr != nil {
			log.Warn("settings refresh failed", zap.Error(setErr))
		}
	}
	defer t.cacheInit.Stop()

	if lanErr := t.lan.Connect(ctx); lanErr != nil {
		log.Warn("lan hub unreachable, kitchen tickets will be queued", zap.Error(lanErr))
	}
	defer t.lan.Close()

	if err := t.pump.Start(ctx); err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, t.pump.Stop()) }()

	httpLimiter := middleware.NewRateLimiter(pinPath)
	go housekeeping(ctx, t, httpLimiter)

	srv := &http.Server{
		Addr: ":" + cfg.MetricsPort,
		Handler: setupRouter(routeDeps{
			dispatch: t.dispatcher,
			sync:     t.syncQueue,
			auth:     t.auth,
			orders:   t.orders,
			sessions: t.sessions,
			lan:      t.lan,
			cache:    t.cacheInit,
			limiter:  httpLimiter,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("🚀 posd listening", zap.String("addr", srv.Addr), zap.Bool("remote", source != nil))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// housekeeping reconnects the LAN client and prunes idle rate-limit entries
// until ctx is done.
func housekeeping(ctx context.Context, t *terminal, httpLimiter *middleware.RateLimiter) {
	cleanup := time.NewTicker(housekeepingEvery)
	defer cleanup.Stop()
	reconnect := time.NewTicker(lanReconnectBackoff)
	defer reconnect.Stop()

	for {
		select {
		case <-reconnect.C:
			if t.lan.IsActive() {
				continue
			}
			if err := t.lan.Connect(ctx); err == nil {
				logger.FromCtx(ctx).Info("lan hub reconnected")
			}
		case <-cleanup.C:
			t.pinLimiter.CleanupExpired()
			httpLimiter.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}
