package reminder

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"warimas-pos/internal/localstore"
	"warimas-pos/internal/logger"
	"warimas-pos/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const StorageKey = "offline_production_reminders"

// Service keeps production reminders in local storage. Storage failures are
// logged and never returned.
type Service struct {
	storage localstore.Storage
	now     func() time.Time

	// mu serialises read-modify-write cycles on the stored list.
	mu sync.Mutex
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(storage localstore.Storage, opts ...Option) *Service {
	s := &Service{storage: storage, now: time.Now}
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

func (s *Service) read(ctx context.Context) []Reminder {
	raw, ok, err := s.storage.Get(ctx, StorageKey)
	if err != nil {
		logFor(ctx, "read").Warn("failed to read reminders", zap.Error(err))
		return []Reminder{}
	}
	if !ok {
		return []Reminder{}
	}
	var out []Reminder
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return []Reminder{}
	}
	return out
}

func (s *Service) write(ctx context.Context, reminders []Reminder) {
	raw, err := json.Marshal(reminders)
	if err != nil {
		logFor(ctx, "write").Warn("failed to encode reminders", zap.Error(err))
		return
	}
	if err := s.storage.Set(ctx, StorageKey, string(raw)); err != nil {
		logFor(ctx, "write").Warn("failed to write reminders", zap.Error(err))
	}
}

func (s *Service) expired(r *Reminder, now time.Time) bool {
	created, err := store.ParseTime(r.CreatedAt)
	if err != nil {
		return true
	}
	return now.Sub(created) > TTL
}

// Save stores a new reminder and returns its id.
func (s *Service) Save(ctx context.Context, in Input) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Reminder{
		ID:             uuid.NewString(),
		SectionID:      in.SectionID,
		SectionName:    in.SectionName,
		ProductionDate: store.FormatTime(in.ProductionDate),
		Items:          slices.Clone(in.Items),
		CreatedAt:      store.FormatTime(s.now()),
	}
	if r.Items == nil {
		r.Items = []Item{}
	}
	if in.Note != nil {
		note := *in.Note
		r.Note = &note
	}

	reminders := append(s.listLocked(ctx), r)
	s.write(ctx, reminders)

	logFor(ctx, "Save").Info("production reminder saved",
		zap.String("reminder_id", r.ID),
		zap.String("section_id", r.SectionID),
		zap.Int("items", len(r.Items)),
	)
	return r.ID
}

// List returns the live reminders. Expired ones are dropped from storage on
// the way.
func (s *Service) List(ctx context.Context) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(ctx)
}

func (s *Service) listLocked(ctx context.Context) []Reminder {
	all := s.read(ctx)
	now := s.now()
	live := slices.DeleteFunc(slices.Clone(all), func(r Reminder) bool { return s.expired(&r, now) })
	if len(live) != len(all) {
		logFor(ctx, "List").Info("dropped expired reminders", zap.Int("count", len(all)-len(live)))
		s.write(ctx, live)
	}
	return live
}

func (s *Service) Get(ctx context.Context, id string) *Reminder {
	for _, r := range s.List(ctx) {
		if r.ID == id {
			return &r
		}
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders := s.listLocked(ctx)
	kept := slices.DeleteFunc(reminders, func(r Reminder) bool { return r.ID == id })
	s.write(ctx, kept)
}

func (s *Service) ClearAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Remove(ctx, StorageKey); err != nil {
		logFor(ctx, "ClearAll").Warn("failed to clear reminders", zap.Error(err))
	}
}

func (s *Service) Count(ctx context.Context) int {
	return len(s.List(ctx))
}

func (s *Service) Has(ctx context.Context) bool {
	return s.Count(ctx) > 0
}
