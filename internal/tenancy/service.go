package tenancy

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/upstream"
)

// Service answers entitlement checks and builds upstream clients.
type Service struct {
	store      Store
	cache      *ModuleCache
	metrics    *upstream.Metrics
	httpClient *http.Client
}

// NewService constructs the tenancy service. All tenants share one HTTP
// client so connections to the same upstream host are pooled.
func NewService(store Store, cache *ModuleCache, metrics *upstream.Metrics, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		store:      store,
		cache:      cache,
		metrics:    metrics,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Entitled loads the tenant and checks it may use module. Inactive tenants
// and missing entitlements are forbidden.
func (s *Service) Entitled(ctx context.Context, tenantID int64, module string) (Tenant, error) {
	tenant, err := s.store.Tenant(ctx, tenantID)
	if err != nil {
		return Tenant{}, err
	}
	if !tenant.Active {
		return Tenant{}, fmt.Errorf("tenant %d inactive: %w", tenantID, httpx.ErrForbidden)
	}
	modules, err := s.cache.Fetch(ctx, tenantID, func(ctx context.Context) ([]string, error) {
		return s.store.Modules(ctx, tenantID)
	})
	if err != nil {
		return Tenant{}, fmt.Errorf("load tenant modules: %w", err)
	}
	if !slices.Contains(modules, module) {
		return Tenant{}, fmt.Errorf("tenant %d lacks %s: %w", tenantID, module, httpx.ErrForbidden)
	}
	return tenant, nil
}

// Client returns an upstream client bound to the tenant's database.
func (s *Service) Client(t Tenant) *upstream.Client {
	return upstream.NewClient(upstream.Config{
		URL:      t.UpstreamURL,
		Database: t.UpstreamDB,
		UID:      t.UpstreamUID,
		APIKey:   t.APIKey,
	}, s.httpClient, s.metrics)
}

// ClientFromContext returns the client for the tenant RequireModule resolved.
func (s *Service) ClientFromContext(ctx context.Context) (*upstream.Client, int64, error) {
	t, ok := TenantFromContext(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no tenant in context: %w", httpx.ErrUnauthorized)
	}
	return s.Client(t), t.ID, nil
}
