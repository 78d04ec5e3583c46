package model

import (
	"context"
	"time"
)

// Portal roles. The auth core treats these as opaque values; only the
// authorization middleware interprets them.
const (
	RoleAdmin = "ADMIN"
	RoleASHA  = "ASHA"
)

// -------------------- USER MODEL --------------------
type User struct {
	UserID        string     `json:"user_id" db:"user_id"`               // UUID
	Email         string     `json:"email" db:"email"`                   // stored lowercase, unique
	PasswordHash  string     `json:"-" db:"password_hash"`               // bcrypt hash, never serialized
	Role          string     `json:"role" db:"role"`                     // ADMIN or ASHA
	IsActive      bool       `json:"is_active" db:"is_active"`           // deactivated accounts cannot log in
	IsLocked      bool       `json:"is_locked" db:"is_locked"`           // explicit flag, cleared only by unlock
	LoginAttempts int        `json:"login_attempts" db:"login_attempts"` // consecutive failed password checks
	LastLoginAt   *time.Time `json:"last_login_at" db:"last_login_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// -------------------- OTP MODEL --------------------
type OTP struct {
	OTPID        string    `json:"otp_id" db:"otp_id"` // UUID
	UserID       string    `json:"user_id" db:"user_id"`
	Email        string    `json:"email" db:"email"` // denormalized, lowercase
	CodeHash     string    `json:"-" db:"code_hash"` // argon2id hash, raw code is never stored
	CodeSalt     string    `json:"-" db:"code_salt"`
	AttemptCount int       `json:"attempt_count" db:"attempt_count"`
	IsUsed       bool      `json:"is_used" db:"is_used"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// -------------------- STORE INTERFACES --------------------

// UserStore defines credential storage operations. Lookups return (nil, nil)
// when no record matches; errors are reserved for infrastructure failures.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, userID string) (*User, error)
	IncrementLoginAttempts(ctx context.Context, userID string) (int, error)
	ResetLoginAttempts(ctx context.Context, userID string) error
	SetLocked(ctx context.Context, userID string, locked bool) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// OTPStore defines one-time-code storage operations. At most one live code
// exists per (user, email) pair; Replace supersedes any prior record for the
// pair. GetLive returns the unused record regardless of expiry so the caller
// can distinguish expired from missing.
type OTPStore interface {
	Replace(ctx context.Context, rec *OTP) error
	GetLive(ctx context.Context, userID, email string) (*OTP, error)
	IncrementAttempts(ctx context.Context, rec *OTP) (int, error)
	MarkUsed(ctx context.Context, rec *OTP) error
	Delete(ctx context.Context, rec *OTP) error
	DeleteExpired(ctx context.Context) (int, error)
}

// RateLimitCache defines the fixed-window counters backing the per-IP
// limits on the login and OTP endpoints.
type RateLimitCache interface {
	IncrementCounter(key string, ttl time.Duration) (int, error)
	GetCounter(key string) (int, error)
	ResetCounter(key string) error
}
