// Package queueshttp exposes the purchase and sales queues over HTTP.
package queueshttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/queues"
)

// IdempotencyHeader carries the optional client supplied key on create.
const IdempotencyHeader = "Idempotency-Key"

const dateLayout = "2006-01-02"

// CallerFunc resolves the upstream client and tenant for the current request.
type CallerFunc func(ctx context.Context) (queues.Caller, int64, error)

// Handler serves queue listings and order creation.
type Handler struct {
	service   *queues.Service
	callers   CallerFunc
	logger    *slog.Logger
	validator *validator.Validate
}

// NewHandler constructs a handler.
func NewHandler(service *queues.Service, callers CallerFunc, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:   service,
		callers:   callers,
		logger:    logger,
		validator: httpx.NewValidator(),
	}
}

func (h *Handler) handleQueue(flow queues.Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query, err := parseQuery(r.URL.Query())
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		caller, _, err := h.callers(r.Context())
		if err != nil {
			h.respondServerError(w, r, flow, "resolve upstream", err)
			return
		}
		result, err := h.service.Queue(r.Context(), caller, flow, query)
		if err != nil {
			h.respondServerError(w, r, flow, "load queue", err)
			return
		}
		httpx.OK(w, http.StatusOK, result)
	}
}

type createOrderRequest struct {
	CounterpartyID int64               `json:"counterpartyId" validate:"required,gt=0"`
	DateOrder      string              `json:"dateOrder" validate:"omitempty,datetime=2006-01-02"`
	Lines          []createLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type createLineRequest struct {
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	PriceUnit float64 `json:"priceUnit" validate:"gte=0"`
}

type createdOrder struct {
	ID               int64            `json:"id"`
	DisplayName      string           `json:"displayName"`
	CounterpartyID   *int64           `json:"counterpartyId"`
	CounterpartyName *string          `json:"counterpartyName"`
	OrderDate        time.Time        `json:"orderDate"`
	TotalAmount      decimal.Decimal  `json:"totalAmount"`
	Lifecycle        queues.Lifecycle `json:"lifecycleState"`
}

func (h *Handler) handleCreateOrder(flow queues.Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := httpx.Validate(h.validator, req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		input := queues.CreateOrderInput{CounterpartyID: req.CounterpartyID}
		if req.DateOrder != "" {
			date, _ := time.Parse(dateLayout, req.DateOrder)
			input.OrderDate = &date
		}
		for _, line := range req.Lines {
			input.Lines = append(input.Lines, queues.OrderLineInput{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				PriceUnit: line.PriceUnit,
			})
		}

		caller, tenantID, err := h.callers(r.Context())
		if err != nil {
			h.respondServerError(w, r, flow, "resolve upstream", err)
			return
		}
		key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		order, err := h.service.CreateOrder(r.Context(), caller, flow, tenantID, key, input)
		if err != nil {
			h.respondServerError(w, r, flow, "create order", err)
			return
		}
		httpx.OK(w, http.StatusCreated, createdOrder{
			ID:               order.ID,
			DisplayName:      order.DisplayName,
			CounterpartyID:   order.CounterpartyID,
			CounterpartyName: order.CounterpartyName,
			OrderDate:        order.OrderDate,
			TotalAmount:      order.TotalAmount,
			Lifecycle:        order.Lifecycle,
		})
	}
}

// respondServerError logs failures that map to INTERNAL_ERROR and writes the
// envelope for every error kind.
func (h *Handler) respondServerError(w http.ResponseWriter, r *http.Request, flow queues.Flow, op string, err error) {
	if !isClientError(err) {
		h.logger.ErrorContext(r.Context(), op,
			slog.String("flow", flow.Name),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isClientError(err error) bool {
	for _, target := range []error{httpx.ErrValidation, httpx.ErrConflict, httpx.ErrNotFound, httpx.ErrForbidden, httpx.ErrUnauthorized} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// parseQuery reads the listing parameters. Unknown queue or sort values and
// non-positive page or limit fall back to defaults; malformed dates fail.
func parseQuery(values url.Values) (queues.Query, error) {
	query := queues.Query{
		Queue: queues.QueueAll,
		Sort:  queues.ParseSort(values.Get("sort")),
		Page:  positiveInt(values.Get("page")),
		Limit: positiveInt(values.Get("limit")),
	}
	if q, ok := queues.ParseQueue(values.Get("queue")); ok {
		query.Queue = q
	}
	from, err := parseDate(values.Get("date_from"), "date_from")
	if err != nil {
		return queues.Query{}, err
	}
	to, err := parseDate(values.Get("date_to"), "date_to")
	if err != nil {
		return queues.Query{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return queues.Query{}, httpx.Invalid("date_to", "must not be before date_from")
	}
	query.Dates = queues.DateRange{From: from, To: to}
	return query, nil
}

func parseDate(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, httpx.Invalid(field, "must be a date in YYYY-MM-DD format")
	}
	return &t, nil
}

func positiveInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0
	}
	return n
}
