package main

import (
	"context"
	"encoding/json"
	"net/http"

	"warimas-pos/internal/dispatch"
	"warimas-pos/internal/logger"
	"warimas-pos/internal/middleware"
	"warimas-pos/internal/offlineauth"
	"warimas-pos/internal/order"
	"warimas-pos/internal/session"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const pinPath = "/auth/pin"

type dispatchQueue interface {
	PendingCount(ctx context.Context) (int, error)
	FailedCount(ctx context.Context) (int, error)
	RetryFailedItems(ctx context.Context, orderID string) error
	DispatchOrderToKitchen(ctx context.Context, o *order.Order, items []order.Item) (*dispatch.Result, error)
}

type orderReader interface {
	GetOfflineOrderWithItems(ctx context.Context, id string) (*order.WithItems, error)
}

type sessionReader interface {
	GetActiveSession(ctx context.Context, userID string) (*session.Session, error)
}

type syncBacklog interface {
	PendingCount(ctx context.Context) (int, error)
}

type pinAuth interface {
	VerifyPinOffline(ctx context.Context, userID, pin string) offlineauth.AuthResult
	IsManagerOrAboveOffline(ctx context.Context, userID string) bool
	ParseOfflineToken(token string) (*offlineauth.Claims, error)
}

// routeDeps are the services the terminal's local HTTP surface reads from.
type routeDeps struct {
	dispatch dispatchQueue
	sync     syncBacklog
	auth     pinAuth
	orders   orderReader
	sessions sessionReader
	lan      interface{ IsActive() bool }
	cache    interface{ IsInitialized() bool }
	limiter  *middleware.RateLimiter
}

type healthResponse struct {
	Status           string `json:"status"`
	LanConnected     bool   `json:"lan_connected"`
	CacheInitialized bool   `json:"cache_initialized"`
	DispatchPending  int    `json:"dispatch_pending"`
	DispatchFailed   int    `json:"dispatch_failed"`
	SyncPending      int    `json:"sync_pending"`
}

type pinRequest struct {
	UserID string `json:"user_id"`
	PIN    string `json:"pin"`
}

// pinResponse is the wire form of an offline login. The cached PIN hash
// never leaves the terminal.
type pinResponse struct {
	Success     bool                  `json:"success"`
	User        *sessionUser          `json:"user,omitempty"`
	Token       string                `json:"token,omitempty"`
	Error       offlineauth.AuthError `json:"error,omitempty"`
	WaitSeconds int                   `json:"waitSeconds,omitempty"`
}

type sessionUser struct {
	ID                string                   `json:"id"`
	Roles             []offlineauth.Role       `json:"roles"`
	Permissions       []offlineauth.Permission `json:"permissions"`
	DisplayName       *string                  `json:"display_name"`
	PreferredLanguage string                   `json:"preferred_language"`
}

func toPinResponse(res offlineauth.AuthResult) pinResponse {
	out := pinResponse{
		Success:     res.Success,
		Token:       res.Token,
		Error:       res.Error,
		WaitSeconds: res.WaitSeconds,
	}
	if u := res.User; u != nil {
		out.User = &sessionUser{
			ID:                u.ID,
			Roles:             u.Roles,
			Permissions:       u.Permissions,
			DisplayName:       u.DisplayName,
			PreferredLanguage: u.PreferredLanguage,
		}
	}
	return out
}

func setupRouter(d routeDeps) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", healthHandler(d))
	mux.HandleFunc("POST "+pinPath, pinHandler(d.auth))
	mux.Handle("POST /dispatch/retry", middleware.RequireUser(retryHandler(d)))
	mux.Handle("POST /orders/{id}/dispatch", middleware.RequireUser(dispatchHandler(d)))
	mux.Handle("GET /sessions/active", middleware.RequireUser(activeSessionHandler(d.sessions)))

	var h http.Handler = mux
	h = middleware.AuthMiddleware(d.auth.ParseOfflineToken)(h)
	h = d.limiter.Middleware(h)
	h = logger.LoggingMiddleware(h)
	h = logger.RequestIDMiddleware(h)
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func healthHandler(d routeDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		res := healthResponse{
			Status:           "ok",
			LanConnected:     d.lan.IsActive(),
			CacheInitialized: d.cache.IsInitialized(),
		}

		var err error
		if res.DispatchPending, err = d.dispatch.PendingCount(ctx); err == nil {
			if res.DispatchFailed, err = d.dispatch.FailedCount(ctx); err == nil {
				res.SyncPending, err = d.sync.PendingCount(ctx)
			}
		}
		if err != nil {
			logger.FromCtx(ctx).Error("health check failed", zap.Error(err))
			res.Status = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func pinHandler(auth pinAuth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.PIN == "" {
			http.Error(w, "user_id and pin are required", http.StatusBadRequest)
			return
		}

		res := auth.VerifyPinOffline(r.Context(), req.UserID, req.PIN)
		body := toPinResponse(res)
		switch {
		case res.Success:
			writeJSON(w, http.StatusOK, body)
		case res.Error == offlineauth.ErrCodeRateLimited:
			writeJSON(w, http.StatusTooManyRequests, body)
		default:
			writeJSON(w, http.StatusUnauthorized, body)
		}
	}
}

// retryHandler requeues the failed kitchen tickets of one order. Managers only.
func retryHandler(d routeDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.ClaimsFrom(r.Context())
		if !d.auth.IsManagerOrAboveOffline(r.Context(), claims.UserID) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		orderID := r.URL.Query().Get("order_id")
		if orderID == "" {
			http.Error(w, "order_id is required", http.StatusBadRequest)
			return
		}
		if err := d.dispatch.RetryFailedItems(r.Context(), orderID); err != nil {
			logger.FromCtx(r.Context()).Error("retry failed items", zap.String("order_id", orderID), zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// dispatchHandler sends a saved order to the kitchen displays. Stations that
// cannot be reached are queued and reported in the result.
func dispatchHandler(d routeDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		log := logger.FromCtx(r.Context()).With(zap.String("order_id", id))

		o, err := d.orders.GetOfflineOrderWithItems(r.Context(), id)
		if err != nil {
			log.Error("load order for dispatch", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if o == nil {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}

		res, err := d.dispatch.DispatchOrderToKitchen(r.Context(), &o.Order, o.Items)
		if err != nil {
			log.Error("dispatch order", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func activeSessionHandler(sessions sessionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.ClaimsFrom(r.Context())
		sess, err := sessions.GetActiveSession(r.Context(), claims.UserID)
		if err != nil {
			logger.FromCtx(r.Context()).Error("load active session", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if sess == nil {
			http.Error(w, "no open session", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}
