package offlineauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// CacheTTL is how long cached credentials allow offline login.
	CacheTTL = 24 * time.Hour
	// TokenTTL is the lifetime of an offline session token.
	TokenTTL = 12 * time.Hour
)

// Role codes allowed to approve sensitive actions offline.
var managerRoles = []string{"SUPER_ADMIN", "ADMIN", "MANAGER"}

type Role struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	NameFR         string  `json:"name_fr"`
	NameEN         string  `json:"name_en"`
	NameID         string  `json:"name_id"`
	Description    *string `json:"description"`
	IsSystem       bool    `json:"is_system"`
	IsActive       bool    `json:"is_active"`
	HierarchyLevel int     `json:"hierarchy_level"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type Permission struct {
	PermissionCode   string `json:"permission_code"`
	PermissionModule string `json:"permission_module"`
	PermissionAction string `json:"permission_action"`
	IsGranted        bool   `json:"is_granted"`
	Source           string `json:"source"`
	IsSensitive      bool   `json:"is_sensitive"`
}

// Profile is the part of the online user profile needed to cache credentials.
type Profile struct {
	ID                string  `json:"id"`
	PinHash           string  `json:"pin_hash"`
	DisplayName       *string `json:"display_name"`
	PreferredLanguage *string `json:"preferred_language"`
}

// User is a row of the offline users table.
type User struct {
	ID                string       `json:"id"`
	PinHash           string       `json:"pin_hash"`
	Roles             []Role       `json:"roles"`
	Permissions       []Permission `json:"permissions"`
	DisplayName       *string      `json:"display_name"`
	PreferredLanguage string       `json:"preferred_language"`
	CachedAt          string       `json:"cached_at"`
}

type AuthError string

const (
	ErrCodeInvalidPIN   AuthError = "INVALID_PIN"
	ErrCodeCacheExpired AuthError = "CACHE_EXPIRED"
	ErrCodeRateLimited  AuthError = "RATE_LIMITED"
)

// AuthResult is the outcome of an offline PIN login. Failures are reported
// here rather than as errors.
type AuthResult struct {
	Success     bool      `json:"success"`
	User        *User     `json:"user,omitempty"`
	Token       string    `json:"token,omitempty"`
	Error       AuthError `json:"error,omitempty"`
	WaitSeconds int       `json:"waitSeconds,omitempty"`
}

// Claims of an offline session token.
type Claims struct {
	UserID  string   `json:"user_id"`
	Roles   []string `json:"roles"`
	Offline bool     `json:"offline"`
	jwt.RegisteredClaims
}
