package offlineauth

import (
	"context"
	"slices"
	"time"

	"warimas-pos/internal/logger"
	"warimas-pos/internal/metrics"
	"warimas-pos/internal/ratelimit"
	"warimas-pos/internal/store"

	"go.uber.org/zap"
)

// Service caches credentials after an online login so cashiers can sign in
// with their PIN while the terminal is offline.
type Service struct {
	db      *store.DB
	limiter *ratelimit.Limiter
	secret  []byte
	now     func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *store.DB, limiter *ratelimit.Limiter, secret string, opts ...Option) *Service {
	s := &Service{db: db, limiter: limiter, secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var userTables = store.Tables(store.TableUsers)

func logFor(ctx context.Context, method, userID string) *zap.Logger {
	return logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", method),
		zap.String("user_id", userID),
	)
}

// CacheUserCredentials stores the profile's PIN hash with its roles and
// permissions. Profiles without an id or a PIN hash are skipped.
func (s *Service) CacheUserCredentials(ctx context.Context, profile Profile, roles []Role, perms []Permission) {
	log := logFor(ctx, "CacheUserCredentials", profile.ID)

	if profile.ID == "" || profile.PinHash == "" {
		log.Debug("skipping credential cache, no pin hash")
		return
	}

	lang := "id"
	if profile.PreferredLanguage != nil && *profile.PreferredLanguage != "" {
		lang = *profile.PreferredLanguage
	}
	if roles == nil {
		roles = []Role{}
	}
	if perms == nil {
		perms = []Permission{}
	}

	u := User{
		ID:                profile.ID,
		PinHash:           profile.PinHash,
		Roles:             roles,
		Permissions:       perms,
		DisplayName:       profile.DisplayName,
		PreferredLanguage: lang,
		CachedAt:          store.FormatTime(s.now()),
	}
	err := s.db.Update(ctx, userTables, func(tx *store.Tx) error {
		return tx.Put(store.TableUsers, u.ID, &u)
	})
	if err != nil {
		log.Error("failed to cache user credentials", zap.Error(err))
		return
	}
	log.Debug("user credentials cached")
}

// GetCachedUser returns the cached user, or nil when absent or unreadable.
func (s *Service) GetCachedUser(ctx context.Context, userID string) *User {
	var u *User
	err := s.db.View(ctx, userTables, func(tx *store.Tx) error {
		var err error
		u, err = store.Get[User](tx, store.TableUsers, userID)
		return err
	})
	if err != nil {
		logFor(ctx, "GetCachedUser", userID).Error("failed to read cached user", zap.Error(err))
		return nil
	}
	return u
}

func (s *Service) age(u *User) (time.Duration, bool) {
	cachedAt, err := store.ParseTime(u.CachedAt)
	if err != nil {
		return 0, false
	}
	return s.now().Sub(cachedAt), true
}

func (s *Service) fresh(u *User) bool {
	age, ok := s.age(u)
	return ok && age < CacheTTL
}

func (s *Service) IsCacheValid(ctx context.Context, userID string) bool {
	u := s.GetCachedUser(ctx, userID)
	return u != nil && s.fresh(u)
}

// GetCacheAge returns the cache age in milliseconds, or -1 when the user is
// not cached.
func (s *Service) GetCacheAge(ctx context.Context, userID string) int64 {
	u := s.GetCachedUser(ctx, userID)
	if u == nil {
		return -1
	}
	age, ok := s.age(u)
	if !ok {
		return -1
	}
	return age.Milliseconds()
}

func (s *Service) IsOfflineAuthAvailable(ctx context.Context, userID string) bool {
	u := s.GetCachedUser(ctx, userID)
	return u != nil && u.PinHash != "" && s.fresh(u)
}

// VerifyPinOffline checks pin against the cached hash. An unknown user and a
// wrong PIN both report INVALID_PIN.
func (s *Service) VerifyPinOffline(ctx context.Context, userID, pin string) AuthResult {
	log := logFor(ctx, "VerifyPinOffline", userID)

	// 1. Rate limit
	if check := s.limiter.Check(userID); !check.Allowed {
		metrics.PinAttemptsTotal.WithLabelValues("rate_limited").Inc()
		log.Warn("pin login rate limited", zap.Int("wait_seconds", check.WaitSeconds))
		return AuthResult{Error: ErrCodeRateLimited, WaitSeconds: check.WaitSeconds}
	}

	// 2. Cached credentials
	u := s.GetCachedUser(ctx, userID)
	if u == nil {
		s.limiter.RecordFailedAttempt(userID)
		metrics.PinAttemptsTotal.WithLabelValues("invalid_pin").Inc()
		log.Debug("user not in offline cache")
		return AuthResult{Error: ErrCodeInvalidPIN}
	}
	if !s.fresh(u) {
		metrics.PinAttemptsTotal.WithLabelValues("cache_expired").Inc()
		log.Info("offline credentials expired")
		return AuthResult{Error: ErrCodeCacheExpired}
	}

	// 3. Compare
	if !checkPIN(pin, u.PinHash) {
		s.limiter.RecordFailedAttempt(userID)
		metrics.PinAttemptsTotal.WithLabelValues("invalid_pin").Inc()
		log.Info("pin verification failed", zap.Int("attempts", s.limiter.AttemptCount(userID)))
		return AuthResult{Error: ErrCodeInvalidPIN}
	}

	// 4. Success
	s.limiter.Reset(userID)
	metrics.PinAttemptsTotal.WithLabelValues("success").Inc()

	token, err := s.issueToken(u)
	if err != nil {
		log.Warn("offline token not issued", zap.Error(err))
	}
	log.Info("pin verified offline")
	return AuthResult{Success: true, User: u, Token: token}
}

func (s *Service) HasPermissionOffline(ctx context.Context, userID, code string) bool {
	u := s.GetCachedUser(ctx, userID)
	if u == nil {
		return false
	}
	i := slices.IndexFunc(u.Permissions, func(p Permission) bool { return p.PermissionCode == code })
	return i >= 0 && u.Permissions[i].IsGranted
}

func (s *Service) HasRoleOffline(ctx context.Context, userID, roleCode string) bool {
	u := s.GetCachedUser(ctx, userID)
	if u == nil {
		return false
	}
	return slices.ContainsFunc(u.Roles, func(r Role) bool { return r.Code == roleCode })
}

func (s *Service) GetOfflinePermissions(ctx context.Context, userID string) []Permission {
	if u := s.GetCachedUser(ctx, userID); u != nil && u.Permissions != nil {
		return u.Permissions
	}
	return []Permission{}
}

func (s *Service) GetOfflineRoles(ctx context.Context, userID string) []Role {
	if u := s.GetCachedUser(ctx, userID); u != nil && u.Roles != nil {
		return u.Roles
	}
	return []Role{}
}

// IsManagerOrAboveOffline reports whether the user may approve sensitive
// actions offline.
func (s *Service) IsManagerOrAboveOffline(ctx context.Context, userID string) bool {
	u := s.GetCachedUser(ctx, userID)
	if u == nil {
		return false
	}
	return slices.ContainsFunc(u.Roles, func(r Role) bool { return slices.Contains(managerRoles, r.Code) })
}

func (s *Service) ClearUserCache(ctx context.Context, userID string) {
	err := s.db.Update(ctx, userTables, func(tx *store.Tx) error {
		return tx.Delete(store.TableUsers, userID)
	})
	if err != nil {
		logFor(ctx, "ClearUserCache", userID).Error("failed to clear user cache", zap.Error(err))
	}
}

func (s *Service) ClearAllCache(ctx context.Context) {
	err := s.db.Update(ctx, userTables, func(tx *store.Tx) error {
		return tx.Clear(store.TableUsers)
	})
	if err != nil {
		logger.FromCtx(ctx).Error("failed to clear offline user cache", zap.Error(err))
	}
}
