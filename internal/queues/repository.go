package queues

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/backoffice/internal/upstream"
)

const (
	movementBatchSize   = 100
	movementConcurrency = 4
)

// Caller is the subset of the upstream client the engine relies on.
type Caller interface {
	SearchRead(ctx context.Context, model string, domain upstream.Domain, opts upstream.SearchOptions) ([]upstream.Record, error)
	SearchCount(ctx context.Context, model string, domain upstream.Domain) (int, error)
	Create(ctx context.Context, model string, values map[string]any) (int64, error)
	Read(ctx context.Context, model string, ids []int64, fields []string) ([]upstream.Record, error)
}

// DateRange bounds orders by order date. Both ends are inclusive calendar
// days; nil means unbounded.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Repository reads one flow's records from the upstream.
type Repository struct {
	caller Caller
	flow   Flow
	limit  int
}

// NewRepository constructs a repository. limit caps every bulk read.
func NewRepository(caller Caller, flow Flow, limit int) *Repository {
	return &Repository{caller: caller, flow: flow, limit: limit}
}

// Orders returns the flow's orders in range, cancelled ones included.
func (r *Repository) Orders(ctx context.Context, dates DateRange) ([]Order, error) {
	domain := upstream.Domain{}
	if dates.From != nil {
		from := truncateDay(*dates.From)
		domain = append(domain, upstream.Cond("date_order", ">=", upstream.FormatDatetime(from)))
	}
	if dates.To != nil {
		to := truncateDay(*dates.To).Add(24*time.Hour - time.Second)
		domain = append(domain, upstream.Cond("date_order", "<=", upstream.FormatDatetime(to)))
	}
	records, err := r.caller.SearchRead(ctx, r.flow.OrderModel, domain, upstream.SearchOptions{
		Fields: r.flow.orderFields(),
		Limit:  r.limit,
		Order:  "date_order desc, id desc",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", r.flow.OrderModel, err)
	}
	orders := make([]Order, 0, len(records))
	for _, rec := range records {
		orders = append(orders, r.flow.orderFromRecord(rec))
	}
	return orders, nil
}

// Movements returns the receipts or deliveries whose origin mentions any of
// the references. References are queried in batches; a movement matching
// several batches is returned once.
func (r *Repository) Movements(ctx context.Context, references []string) ([]FulfillmentRecord, error) {
	refs := uniqueNonEmpty(references)
	if len(refs) == 0 {
		return nil, nil
	}

	var (
		mu   sync.Mutex
		seen = make(map[int64]FulfillmentRecord)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(movementConcurrency)
	for batch := range slices.Chunk(refs, movementBatchSize) {
		g.Go(func() error {
			conds := make([][]any, 0, len(batch))
			for _, ref := range batch {
				conds = append(conds, upstream.Cond("origin", "like", ref))
			}
			domain := upstream.Join(
				upstream.And(upstream.Cond("picking_type_code", "=", r.flow.MovementTypeCode)),
				upstream.AnyOf(conds...),
			)
			records, err := r.caller.SearchRead(gctx, r.flow.MovementModel, domain, upstream.SearchOptions{
				Fields: movementFields,
				Limit:  r.limit,
			})
			if err != nil {
				return fmt.Errorf("fetch %s: %w", r.flow.MovementModel, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, rec := range records {
				m := movementFromRecord(rec)
				seen[m.ID] = m
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]FulfillmentRecord, 0, len(seen))
	for _, m := range seen {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b FulfillmentRecord) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// OpenDocuments returns every posted, unpaid bill or invoice of the flow,
// regardless of date.
func (r *Repository) OpenDocuments(ctx context.Context) ([]FinancialDocument, error) {
	domain := upstream.And(
		upstream.Cond("move_type", "=", r.flow.DocumentMoveType),
		upstream.Cond("state", "=", "posted"),
		upstream.Cond("payment_state", "not in", []string{"paid", "in_payment"}),
	)
	records, err := r.caller.SearchRead(ctx, r.flow.DocumentModel, domain, upstream.SearchOptions{
		Fields: documentFields,
		Limit:  r.limit,
		Order:  "invoice_date_due asc, id asc",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", r.flow.DocumentModel, err)
	}
	docs := make([]FinancialDocument, 0, len(records))
	for _, rec := range records {
		doc := documentFromRecord(rec)
		if doc.Open() {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// CreateOrder inserts an order with its lines and reads it back.
func (r *Repository) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error) {
	lines := make([]any, 0, len(input.Lines))
	for _, line := range input.Lines {
		lines = append(lines, []any{0, 0, map[string]any{
			"product_id":             line.ProductID,
			r.flow.LineQuantityField: line.Quantity,
			"price_unit":             line.PriceUnit,
		}})
	}
	values := map[string]any{
		"partner_id": input.CounterpartyID,
		"order_line": lines,
	}
	if input.OrderDate != nil {
		values["date_order"] = upstream.FormatDatetime(*input.OrderDate)
	}

	id, err := r.caller.Create(ctx, r.flow.OrderModel, values)
	if err != nil {
		return Order{}, fmt.Errorf("create %s: %w", r.flow.OrderModel, err)
	}
	records, err := r.caller.Read(ctx, r.flow.OrderModel, []int64{id}, r.flow.orderFields())
	if err != nil {
		return Order{}, fmt.Errorf("read %s %d: %w", r.flow.OrderModel, id, err)
	}
	if len(records) == 0 {
		return Order{}, fmt.Errorf("read %s %d: record missing after create", r.flow.OrderModel, id)
	}
	return r.flow.orderFromRecord(records[0]), nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
