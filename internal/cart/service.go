package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"time"

	"warimas-pos/internal/localstore"
	"warimas-pos/internal/logger"
	"warimas-pos/internal/product"
	"warimas-pos/internal/store"

	"go.uber.org/zap"
)

// StorageKey is the local storage key of the cart snapshot.
const StorageKey = "pos_cart_state"

type ProductLookup interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

// Service snapshots the in-progress cart so it survives a crash or reload.
// Snapshots live in local storage only and are never synced.
type Service interface {
	Save(ctx context.Context, state State)
	Load(ctx context.Context) *PersistedState
	Clear(ctx context.Context)
	HasPersisted(ctx context.Context) bool
	ValidateAndFilterItems(ctx context.Context, items []Item) (valid []Item, removedNames []string)
}

type service struct {
	storage  localstore.Storage
	products ProductLookup
	now      func() time.Time
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(storage localstore.Storage, products ProductLookup, opts ...Option) Service {
	s := &service{storage: storage, products: products, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func logFor(ctx context.Context, method string) *zap.Logger {
	return logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", method),
	)
}

func (s *service) Save(ctx context.Context, state State) {
	log := logFor(ctx, "SaveCart")

	if state.Items == nil {
		state.Items = []Item{}
	}
	if state.LockedItemIDs == nil {
		state.LockedItemIDs = []string{}
	}
	snapshot := PersistedState{State: state, SavedAt: store.FormatTime(s.now())}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		log.Warn("failed to encode cart snapshot", zap.Error(err))
		return
	}
	if err := s.storage.Set(ctx, StorageKey, string(raw)); err != nil {
		log.Warn("failed to persist cart", zap.Error(err))
		return
	}
	log.Debug("cart persisted", zap.Int("items", len(state.Items)))
}

// Load returns the last snapshot, or nil when there is none or it cannot be
// read. Fields missing from older snapshots get their defaults.
func (s *service) Load(ctx context.Context) *PersistedState {
	log := logFor(ctx, "LoadCart")

	raw, ok, err := s.storage.Get(ctx, StorageKey)
	if err != nil {
		log.Warn("failed to read cart snapshot", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	var peek struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal([]byte(raw), &peek); err != nil {
		log.Warn("discarding unreadable cart snapshot", zap.Error(err))
		return nil
	}
	if !bytes.HasPrefix(bytes.TrimSpace(peek.Items), []byte("[")) {
		log.Warn("discarding cart snapshot without items")
		return nil
	}

	var snapshot PersistedState
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		log.Warn("discarding unreadable cart snapshot", zap.Error(err))
		return nil
	}
	applyDefaults(&snapshot)
	return &snapshot
}

func applyDefaults(p *PersistedState) {
	if p.Items == nil {
		p.Items = []Item{}
	}
	if p.LockedItemIDs == nil {
		p.LockedItemIDs = []string{}
	}
	if p.OrderType == "" {
		p.OrderType = OrderTypeDineIn
	}
}

func (s *service) Clear(ctx context.Context) {
	if err := s.storage.Remove(ctx, StorageKey); err != nil {
		logFor(ctx, "ClearCart").Warn("failed to clear cart snapshot", zap.Error(err))
	}
}

func (s *service) HasPersisted(ctx context.Context) bool {
	_, ok, err := s.storage.Get(ctx, StorageKey)
	if err != nil {
		logFor(ctx, "HasPersistedCart").Warn("failed to read cart snapshot", zap.Error(err))
		return false
	}
	return ok
}

// ValidateAndFilterItems drops product lines whose product is gone from the
// offline cache or can no longer be sold. Combo lines are kept unchecked.
func (s *service) ValidateAndFilterItems(ctx context.Context, items []Item) ([]Item, []string) {
	log := logFor(ctx, "ValidateAndFilterItems")

	valid := make([]Item, 0, len(items))
	removed := []string{}
	for _, it := range items {
		if it.Type != ItemTypeProduct {
			valid = append(valid, it)
			continue
		}

		if it.Product == nil {
			removed = append(removed, it.DisplayName())
			continue
		}
		p, err := s.products.GetByID(ctx, it.Product.ID)
		if err != nil {
			log.Warn("product lookup failed, dropping line",
				zap.String("product_id", it.Product.ID),
				zap.Error(err),
			)
		}
		if err != nil || p == nil || !p.Sellable() {
			removed = append(removed, it.DisplayName())
			continue
		}
		valid = append(valid, it)
	}

	if len(removed) > 0 {
		log.Info("removed unavailable cart lines", zap.Strings("names", removed))
	}
	return valid, removed
}

// RequireUnlock guards a quantity reduction or removal. Lines already sent
// to the kitchen are locked and need a verified manager PIN.
func RequireUnlock(itemID string, lockedItemIDs []string, pinVerified bool) error {
	if pinVerified || !slices.Contains(lockedItemIDs, itemID) {
		return nil
	}
	return ErrLockedItemRequiresPIN
}
