package queues

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/shared"
	"github.com/odyssey-erp/backoffice/internal/upstream"
)

// KeyClaimer records idempotency keys for write requests.
type KeyClaimer interface {
	Claim(ctx context.Context, tenantID int64, module, key string) error
	Release(ctx context.Context, tenantID int64, module, key string) error
}

// Options configures the service.
type Options struct {
	FetchLimit   int
	DefaultLimit int
	MaxLimit     int
}

// Service answers queue listings and order creation for both flows.
type Service struct {
	detector *Detector
	metrics  *Metrics
	keys     KeyClaimer
	logger   *slog.Logger
	opts     Options
	now      func() time.Time
}

// NewService constructs the queue service.
func NewService(opts Options, keys KeyClaimer, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = 2000
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	return &Service{
		detector: NewDetector(logger, metrics),
		metrics:  metrics,
		keys:     keys,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Query selects one page of one queue.
type Query struct {
	Queue Queue
	Sort  SortMode
	Page  int
	Limit int
	Dates DateRange
}

// Result is the queue listing payload.
type Result struct {
	Capabilities Capabilities      `json:"capabilities"`
	KPI          KPISet            `json:"kpi"`
	ItemType     ItemType          `json:"itemType"`
	Items        any               `json:"items"`
	Pagination   shared.Pagination `json:"pagination"`
	Queue        Queue             `json:"queue"`
}

// Queue fetches the flow's orders and downstream records, classifies them
// and returns the KPI set along with the requested page.
func (s *Service) Queue(ctx context.Context, caller Caller, flow Flow, q Query) (Result, error) {
	if q.Queue == "" {
		q.Queue = QueueAll
	}
	if q.Sort == "" {
		q.Sort = SortAmount
	}
	if q.Limit > s.opts.MaxLimit {
		q.Limit = s.opts.MaxLimit
	}
	today := truncateDay(s.now())
	repo := NewRepository(caller, flow, s.opts.FetchLimit)

	var (
		caps      Capabilities
		orders    []Order
		movements []FulfillmentRecord
		docs      []FinancialDocument
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		caps = s.detector.Detect(gctx, caller, flow)
		return nil
	})
	g.Go(func() error {
		var err error
		orders, err = repo.Orders(gctx, q.Dates)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("load %s orders: %w", flow.Name, err)
	}
	// Probes swallow their errors, so a cancelled request must not pass as
	// degraded access.
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("load %s orders: %w", flow.Name, err)
	}

	g, gctx = errgroup.WithContext(ctx)
	if caps.HasFulfillmentAccess && len(orders) > 0 {
		g.Go(func() error {
			refs := make([]string, 0, len(orders))
			for _, order := range orders {
				refs = append(refs, order.DisplayName)
			}
			var err error
			movements, err = repo.Movements(gctx, refs)
			return err
		})
	}
	if caps.HasSettlementAccess {
		g.Go(func() error {
			var err error
			docs, err = repo.OpenDocuments(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("load %s downstream records: %w", flow.Name, err)
	}

	classified := ClassifyAll(orders, movements, docs, caps, today)
	kpi := Aggregate(classified, docs, today)
	page := Project(classified.Orders, docs, PageRequest{
		Queue:        q.Queue,
		Sort:         q.Sort,
		Page:         q.Page,
		Limit:        q.Limit,
		DefaultLimit: s.opts.DefaultLimit,
	})
	s.metrics.request(flow.Name, q.Queue)

	return Result{
		Capabilities: caps,
		KPI:          kpi,
		ItemType:     page.ItemType,
		Items:        page.Items,
		Pagination:   page.Pagination,
		Queue:        q.Queue,
	}, nil
}

// CreateOrderInput is a validated order creation request.
type CreateOrderInput struct {
	CounterpartyID int64
	OrderDate      *time.Time
	Lines          []OrderLineInput
}

// OrderLineInput is one order line.
type OrderLineInput struct {
	ProductID int64
	Quantity  float64
	PriceUnit float64
}

// CreateOrder creates an order upstream. A non-empty key is claimed first and
// released again when the upstream call fails, so the client can retry.
func (s *Service) CreateOrder(ctx context.Context, caller Caller, flow Flow, tenantID int64, key string, input CreateOrderInput) (Order, error) {
	if len(input.Lines) == 0 {
		return Order{}, httpx.Invalid("lines", "at least one line is required")
	}
	if key != "" && s.keys != nil {
		if err := s.keys.Claim(ctx, tenantID, flow.Module, key); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Order{}, fmt.Errorf("%w: idempotency key already used", httpx.ErrConflict)
			}
			return Order{}, fmt.Errorf("claim idempotency key: %w", err)
		}
	}

	order, err := NewRepository(caller, flow, s.opts.FetchLimit).CreateOrder(ctx, input)
	if err != nil {
		if key != "" && s.keys != nil {
			if relErr := s.keys.Release(context.WithoutCancel(ctx), tenantID, flow.Module, key); relErr != nil {
				s.logger.WarnContext(ctx, "release idempotency key", slog.String("flow", flow.Name), slog.Any("error", relErr))
			}
		}
		if upstream.IsUserError(err) {
			var rErr *upstream.RemoteError
			errors.As(err, &rErr)
			return Order{}, httpx.Invalid("", rErr.Message)
		}
		return Order{}, err
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("flow", flow.Name),
		slog.Int64("tenant_id", tenantID),
		slog.Int64("order_id", order.ID),
		slog.String("reference", order.DisplayName))
	return order, nil
}
