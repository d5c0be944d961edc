package queueshttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/queues"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// MountRoutes registers one flow's endpoints under /{flow}. guard runs before
// every handler and is expected to reject unauthenticated or unentitled
// tenants. Order creation is rate limited per user.
func (h *Handler) MountRoutes(r chi.Router, flow queues.Flow, guard func(http.Handler) http.Handler, writesPerMinute int) {
	if h == nil {
		return
	}
	if writesPerMinute <= 0 {
		writesPerMinute = 30
	}
	limiter := httprate.Limit(writesPerMinute, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Fail(w, http.StatusTooManyRequests, httpx.CodeRateLimited, http.StatusText(http.StatusTooManyRequests))
		}),
	)

	r.Route("/"+flow.Name, func(fr chi.Router) {
		if guard != nil {
			fr.Use(guard)
		}
		fr.Get("/queues", h.handleQueue(flow))
		fr.With(limiter).Post("/orders", h.handleCreateOrder(flow))
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if user := strings.TrimSpace(sess.User()); user != "" {
			return "user:" + user, nil
		}
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
