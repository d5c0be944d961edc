package tenancy

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Middleware guards module endpoints.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireModule rejects requests without an authenticated session with
// UNAUTHORIZED and tenants lacking module with FORBIDDEN. Otherwise the
// tenant is stored in the request context.
func (m Middleware) RequireModule(module string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := shared.CurrentUserID(r.Context()); !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			tenantID, ok := shared.CurrentTenantID(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			tenant, err := m.Service.Entitled(r.Context(), tenantID, module)
			if err != nil {
				switch {
				case errors.Is(err, httpx.ErrForbidden):
				case errors.Is(err, httpx.ErrNotFound):
					// A session pointing at a deleted tenant is no longer valid.
					err = httpx.ErrUnauthorized
				default:
					if m.Logger != nil {
						m.Logger.ErrorContext(r.Context(), "tenancy require module",
							slog.String("module", module),
							slog.Int64("tenant_id", tenantID),
							slog.Any("error", err))
					}
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithTenant(r.Context(), tenant)))
		})
	}
}
