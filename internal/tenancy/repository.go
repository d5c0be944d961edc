package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Store reads tenants and their entitlements.
type Store interface {
	Tenant(ctx context.Context, id int64) (Tenant, error)
	Modules(ctx context.Context, tenantID int64) ([]string, error)
}

// PGRepository implements Store on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed store.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const getTenant = `
SELECT id, name, is_active, upstream_url, upstream_db, upstream_uid, upstream_api_key, updated_at
FROM tenants
WHERE id = $1`

// Tenant fetches one tenant by id.
func (r *PGRepository) Tenant(ctx context.Context, id int64) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, getTenant, id).Scan(
		&t.ID, &t.Name, &t.Active, &t.UpstreamURL, &t.UpstreamDB, &t.UpstreamUID, &t.APIKey, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, fmt.Errorf("tenant %d: %w", id, httpx.ErrNotFound)
		}
		return Tenant{}, fmt.Errorf("get tenant %d: %w", id, err)
	}
	return t, nil
}

const listModules = `
SELECT module
FROM tenant_modules
WHERE tenant_id = $1 AND enabled AND module = ANY($2)
ORDER BY module`

// Modules lists the modules a tenant is entitled to. Rows naming modules this
// build does not serve are ignored.
func (r *PGRepository) Modules(ctx context.Context, tenantID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, listModules, tenantID, shared.Modules())
	if err != nil {
		return nil, fmt.Errorf("list tenant modules: %w", err)
	}
	modules, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan tenant modules: %w", err)
	}
	return modules, nil
}

var _ Store = (*PGRepository)(nil)
