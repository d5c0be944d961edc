package auth

import "time"

// User is a back-office account. Every user belongs to exactly one tenant.
type User struct {
	ID           int64
	TenantID     int64
	Email        string
	PasswordHash string
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Login describes one successful sign-in for the session audit table.
type Login struct {
	SessionID string
	UserID    int64
	TenantID  int64
	ExpiresAt time.Time
	IP        string
	UserAgent string
}
