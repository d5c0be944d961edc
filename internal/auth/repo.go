package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	RecordLogin(ctx context.Context, login Login) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, now: time.Now}
}

const getUserByEmail = `
SELECT id, tenant_id, email, password_hash, is_active, last_login_at, created_at, updated_at
FROM users
WHERE lower(email) = lower($1)`

// FindByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var (
		user      User
		lastLogin pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, getUserByEmail, email).Scan(
		&user.ID, &user.TenantID, &user.Email, &user.PasswordHash, &user.IsActive,
		&lastLogin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return &user, nil
}

// RecordLogin stamps the user's last login and stores the session row in
// one transaction.
func (r *PGRepository) RecordLogin(ctx context.Context, login Login) error {
	now := r.now().UTC()
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE users SET last_login_at = $2, updated_at = $2 WHERE id = $1`,
			login.UserID, now); err != nil {
			return fmt.Errorf("update last login: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_sessions (id, user_id, tenant_id, created_at, expires_at, ip, user_agent)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			login.SessionID, login.UserID, login.TenantID, now, login.ExpiresAt.UTC(),
			pgtype.Text{String: login.IP, Valid: login.IP != ""},
			pgtype.Text{String: login.UserAgent, Valid: login.UserAgent != ""},
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
