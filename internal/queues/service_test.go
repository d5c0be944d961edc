package queues

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/shared"
	"github.com/odyssey-erp/backoffice/internal/upstream"
)

type fakeCaller struct {
	mu       sync.Mutex
	records  map[string][]upstream.Record
	countErr map[string]error
	readErr  map[string]error
	createFn func(values map[string]any) (int64, error)
	calls    []string
	domains  map[string][]upstream.Domain
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{
		records:  map[string][]upstream.Record{},
		countErr: map[string]error{},
		readErr:  map[string]error{},
		domains:  map[string][]upstream.Domain{},
	}
}

func (f *fakeCaller) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeCaller) SearchRead(_ context.Context, model string, domain upstream.Domain, _ upstream.SearchOptions) ([]upstream.Record, error) {
	f.record(model + ".search_read")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.domains[model] = append(f.domains[model], domain)
	if err := f.readErr[model]; err != nil {
		return nil, err
	}
	return f.records[model], nil
}

func (f *fakeCaller) SearchCount(_ context.Context, model string, _ upstream.Domain) (int, error) {
	f.record(model + ".search_count")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.countErr[model]; err != nil {
		return 0, err
	}
	return len(f.records[model]), nil
}

func (f *fakeCaller) Create(_ context.Context, model string, values map[string]any) (int64, error) {
	f.record(model + ".create")
	if f.createFn == nil {
		return 0, errors.New("create not configured")
	}
	return f.createFn(values)
}

func (f *fakeCaller) Read(_ context.Context, model string, ids []int64, _ []string) ([]upstream.Record, error) {
	f.record(model + ".read")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []upstream.Record
	for _, rec := range f.records[model] {
		for _, id := range ids {
			if rec.ID() == id {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func (f *fakeCaller) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func purchaseRecord(id int64, name, state, total string, partner int64) upstream.Record {
	return upstream.Record{
		"id":             id,
		"name":           name,
		"partner_id":     []any{partner, "Vendor"},
		"date_order":     "2024-12-01 09:30:00",
		"amount_total":   total,
		"state":          state,
		"receipt_status": "pending",
		"invoice_status": "to invoice",
	}
}

func pickingRecord(id int64, origin, state, deadline string) upstream.Record {
	return upstream.Record{
		"id":             id,
		"origin":         origin,
		"state":          state,
		"scheduled_date": false,
		"date_deadline":  deadline,
	}
}

func billRecord(id int64, origin, residual, due string, partner int64) upstream.Record {
	return upstream.Record{
		"id":               id,
		"name":             "BILL/" + origin,
		"partner_id":       []any{partner, "Vendor"},
		"invoice_date":     "2024-11-01",
		"invoice_date_due": due,
		"amount_residual":  residual,
		"amount_total":     residual,
		"payment_state":    "not_paid",
		"state":            "posted",
		"invoice_origin":   origin,
	}
}

func newTestService(keys KeyClaimer) *Service {
	svc := NewService(Options{FetchLimit: 500, DefaultLimit: 20, MaxLimit: 50}, keys, NewMetrics(prometheus.NewRegistry()), nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC) })
	return svc
}

func TestServiceQueueClassifiesWithFullAccess(t *testing.T) {
	caller := newFakeCaller()
	caller.records["purchase.order"] = []upstream.Record{
		purchaseRecord(1, "PO00001", "sent", "100", 7),
		purchaseRecord(2, "PO00002", "purchase", "200", 7),
		purchaseRecord(3, "PO00003", "purchase", "300", 8),
		purchaseRecord(4, "PO00004", "cancel", "400", 8),
	}
	caller.records["stock.picking"] = []upstream.Record{
		pickingRecord(10, "PO00002", "assigned", "2020-01-01 00:00:00"),
		pickingRecord(11, "PO00003", "done", "2020-01-01 00:00:00"),
	}
	caller.records["account.move"] = []upstream.Record{
		billRecord(20, "PO00003", "120.50", "2024-12-15", 8),
		billRecord(21, "", "10", "2025-03-01", 9),
	}
	svc := newTestService(nil)

	res, err := svc.Queue(context.Background(), caller, Purchase, Query{Queue: QueueAll})
	require.NoError(t, err)
	require.Equal(t, fullAccess, res.Capabilities)
	require.Equal(t, ItemOrder, res.ItemType)
	require.Equal(t, QueueAll, res.Queue)

	items := res.Items.([]ClassifiedOrder)
	require.Len(t, items, 3)
	byID := map[int64]ClassifiedOrder{}
	for _, item := range items {
		byID[item.ID] = item
	}
	require.Equal(t, QueueToConfirm, byID[1].Queue)
	require.Equal(t, QueueToFulfill, byID[2].Queue)
	require.True(t, byID[2].IsOverdue)
	require.Equal(t, QueueCompleted, byID[3].Queue)
	require.True(t, byID[3].HasOpenFinancials)
	require.Equal(t, "120.5", byID[3].OpenAmount.String())

	require.Equal(t, 1, res.KPI.ToConfirm.Count)
	require.Equal(t, 1, res.KPI.ToFulfill.Count)
	require.Equal(t, 1, res.KPI.Completed.Count)
	require.Equal(t, 2, res.KPI.ToSettle.Count)
	require.Equal(t, "130.5", res.KPI.ToSettle.Amount.String())
	require.Equal(t, 1, res.KPI.Overdue.Count)

	require.InDelta(t, 1, testutil.ToFloat64(svc.metrics.requests.WithLabelValues("purchase", "all")), 0)
	require.Equal(t, 0, testutil.CollectAndCount(svc.metrics.downgrades))
}

func TestServiceQueueDegradesPerProbe(t *testing.T) {
	caller := newFakeCaller()
	caller.records["purchase.order"] = []upstream.Record{
		purchaseRecord(1, "PO00001", "purchase", "100", 7),
	}
	caller.records["account.move"] = []upstream.Record{
		billRecord(20, "PO00001", "60", "2024-12-15", 7),
	}
	caller.countErr["stock.picking"] = &upstream.RemoteError{Name: "odoo.exceptions.AccessError", Message: "denied"}
	svc := newTestService(nil)

	res, err := svc.Queue(context.Background(), caller, Purchase, Query{Queue: QueueToFulfill})
	require.NoError(t, err)
	require.False(t, res.Capabilities.HasFulfillmentAccess)
	require.True(t, res.Capabilities.HasSettlementAccess)
	require.False(t, caller.called("stock.picking.search_read"))

	items := res.Items.([]ClassifiedOrder)
	require.Len(t, items, 1)
	require.Equal(t, FulfillmentPending, items[0].FulfillmentStatus)
	require.False(t, items[0].IsOverdue)
	require.Equal(t, "60", items[0].OpenAmount.String())
	require.InDelta(t, 1, testutil.ToFloat64(svc.metrics.downgrades.WithLabelValues("purchase", probeFulfillment)), 0)
}

func TestServiceQueueWithoutSettlementAccess(t *testing.T) {
	caller := newFakeCaller()
	caller.records["purchase.order"] = []upstream.Record{
		purchaseRecord(1, "PO00001", "done", "100", 7),
	}
	caller.countErr["account.move"] = errors.New("connection reset")
	svc := newTestService(nil)

	res, err := svc.Queue(context.Background(), caller, Purchase, Query{Queue: QueueToSettle})
	require.NoError(t, err)
	require.False(t, res.Capabilities.HasSettlementAccess)
	require.False(t, caller.called("account.move.search_read"))
	require.Equal(t, ItemDocument, res.ItemType)
	require.Empty(t, res.Items)
	require.Equal(t, 0, res.KPI.ToSettle.Count)
	require.Equal(t, 1, res.KPI.OrdersWithOpenFinancials.Count)
	require.True(t, res.KPI.OrdersWithOpenFinancials.Amount.IsZero())
}

func TestServiceQueueSkipsMovementsWithoutOrders(t *testing.T) {
	caller := newFakeCaller()
	caller.records["stock.picking"] = []upstream.Record{pickingRecord(10, "PO00002", "assigned", "")}
	svc := newTestService(nil)

	res, err := svc.Queue(context.Background(), caller, Purchase, Query{})
	require.NoError(t, err)
	require.True(t, res.Capabilities.HasFulfillmentAccess)
	require.False(t, caller.called("stock.picking.search_read"))
	require.Equal(t, QueueAll, res.Queue)
	require.Equal(t, 0, res.Pagination.Total)
}

func TestServiceQueueFetchFailure(t *testing.T) {
	caller := newFakeCaller()
	caller.records["purchase.order"] = []upstream.Record{purchaseRecord(1, "PO00001", "purchase", "100", 7)}
	caller.readErr["account.move"] = errors.New("boom")
	svc := newTestService(nil)

	_, err := svc.Queue(context.Background(), caller, Purchase, Query{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func TestServiceQueueCancelledContextIsAnError(t *testing.T) {
	caller := newFakeCaller()
	caller.records["purchase.order"] = []upstream.Record{purchaseRecord(1, "PO00001", "purchase", "100", 7)}
	svc := newTestService(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Queue(ctx, caller, Purchase, Query{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestServiceQueueDateRangeIsInclusive(t *testing.T) {
	caller := newFakeCaller()
	svc := newTestService(nil)
	from := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	_, err := svc.Queue(context.Background(), caller, Sales, Query{Dates: DateRange{From: &from, To: &to}})
	require.NoError(t, err)
	domains := caller.domains["sale.order"]
	require.Len(t, domains, 1)
	require.Equal(t, upstream.Domain{
		[]any{"date_order", ">=", "2024-12-01 00:00:00"},
		[]any{"date_order", "<=", "2024-12-31 23:59:59"},
	}, domains[0])
}

func TestServiceQueueClampsLimit(t *testing.T) {
	caller := newFakeCaller()
	svc := newTestService(nil)

	res, err := svc.Queue(context.Background(), caller, Purchase, Query{Limit: 10000})
	require.NoError(t, err)
	require.Equal(t, 50, res.Pagination.Limit)
}

func TestServiceQueueMovementDomainUsesReferences(t *testing.T) {
	caller := newFakeCaller()
	caller.records["sale.order"] = []upstream.Record{
		{"id": int64(1), "name": "S00001", "state": "sale", "amount_total": "10", "delivery_status": "started"},
	}
	svc := newTestService(nil)

	_, err := svc.Queue(context.Background(), caller, Sales, Query{})
	require.NoError(t, err)
	domains := caller.domains["stock.picking"]
	require.Len(t, domains, 1)
	require.Equal(t, upstream.Domain{
		[]any{"picking_type_code", "=", "outgoing"},
		[]any{"origin", "like", "S00001"},
	}, domains[0])
}

type memoryKeys struct {
	mu       sync.Mutex
	claimed  map[string]bool
	released []string
}

func (m *memoryKeys) Claim(_ context.Context, tenantID int64, module, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed == nil {
		m.claimed = map[string]bool{}
	}
	k := module + ":" + key
	if m.claimed[k] {
		return shared.ErrIdempotencyConflict
	}
	m.claimed[k] = true
	return nil
}

func (m *memoryKeys) Release(_ context.Context, tenantID int64, module, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, module+":"+key)
	m.released = append(m.released, key)
	return nil
}

func TestServiceCreateOrder(t *testing.T) {
	caller := newFakeCaller()
	var sent map[string]any
	caller.createFn = func(values map[string]any) (int64, error) {
		sent = values
		caller.mu.Lock()
		caller.records["purchase.order"] = append(caller.records["purchase.order"], purchaseRecord(42, "PO00042", "draft", "25", 7))
		caller.mu.Unlock()
		return 42, nil
	}
	keys := &memoryKeys{}
	svc := newTestService(keys)
	date := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	input := CreateOrderInput{
		CounterpartyID: 7,
		OrderDate:      &date,
		Lines:          []OrderLineInput{{ProductID: 3, Quantity: 5, PriceUnit: 5}},
	}
	created, err := svc.CreateOrder(context.Background(), caller, Purchase, 1, "key-1", input)
	require.NoError(t, err)
	require.Equal(t, int64(42), created.ID)
	require.Equal(t, "PO00042", created.DisplayName)
	require.Equal(t, LifecycleDraft, created.Lifecycle)
	require.Equal(t, int64(7), sent["partner_id"])
	require.Equal(t, "2025-01-05 00:00:00", sent["date_order"])
	lines := sent["order_line"].([]any)
	require.Len(t, lines, 1)
	line := lines[0].([]any)
	require.Equal(t, 0, line[0])
	require.Equal(t, float64(5), line[2].(map[string]any)["product_qty"])

	_, err = svc.CreateOrder(context.Background(), caller, Purchase, 1, "key-1", input)
	require.ErrorIs(t, err, httpx.ErrConflict)
}

func TestServiceCreateOrderReleasesKeyOnFailure(t *testing.T) {
	caller := newFakeCaller()
	caller.createFn = func(map[string]any) (int64, error) {
		return 0, &upstream.RemoteError{Name: "odoo.exceptions.UserError", Message: "Product is archived"}
	}
	keys := &memoryKeys{}
	svc := newTestService(keys)

	input := CreateOrderInput{CounterpartyID: 7, Lines: []OrderLineInput{{ProductID: 3, Quantity: 1, PriceUnit: 1}}}
	_, err := svc.CreateOrder(context.Background(), caller, Sales, 1, "key-2", input)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.True(t, strings.Contains(err.Error(), "archived"))
	require.Equal(t, []string{"key-2"}, keys.released)
}

func TestServiceCreateOrderRequiresLines(t *testing.T) {
	svc := newTestService(nil)
	_, err := svc.CreateOrder(context.Background(), newFakeCaller(), Sales, 1, "", CreateOrderInput{CounterpartyID: 7})
	require.ErrorIs(t, err, httpx.ErrValidation)
}
