package queues

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bucket is a count with the matching monetary sum.
type Bucket struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

func (b *Bucket) add(amount decimal.Decimal) {
	b.Count++
	b.Amount = b.Amount.Add(amount)
}

// KPISet is the dashboard summary for one request. ToSettle and Overdue are
// document-scoped and span every open document, not only those tied to the
// orders in range. OrdersWithOpenFinancials is the order-scoped view of the
// same money and is kept apart so the two are never mixed.
type KPISet struct {
	ToConfirm                Bucket `json:"toConfirm"`
	ToFulfill                Bucket `json:"toFulfill"`
	ToSettle                 Bucket `json:"toSettle"`
	Completed                Bucket `json:"completed"`
	Overdue                  Bucket `json:"overdue"`
	OrdersWithOpenFinancials Bucket `json:"ordersWithOpenFinancials"`
}

func newKPISet() KPISet {
	zero := Bucket{Amount: decimal.Zero}
	return KPISet{
		ToConfirm:                zero,
		ToFulfill:                zero,
		ToSettle:                 zero,
		Completed:                zero,
		Overdue:                  zero,
		OrdersWithOpenFinancials: zero,
	}
}

// Aggregate computes the KPI set. Documents that are not open are ignored and
// excluded orders never reach it.
func Aggregate(classified Classification, docs []FinancialDocument, today time.Time) KPISet {
	kpi := newKPISet()

	for _, order := range classified.Orders {
		switch order.Queue {
		case QueueToConfirm:
			kpi.ToConfirm.add(order.TotalAmount)
		case QueueToFulfill:
			kpi.ToFulfill.add(order.TotalAmount)
		case QueueCompleted:
			kpi.Completed.add(order.TotalAmount)
		}
		if order.HasOpenFinancials {
			kpi.OrdersWithOpenFinancials.add(order.OpenAmount)
		}
	}

	for _, doc := range docs {
		if !doc.Open() {
			continue
		}
		kpi.ToSettle.add(doc.ResidualAmount)
		if doc.DueDate != nil && beforeDay(*doc.DueDate, today) {
			kpi.Overdue.add(doc.ResidualAmount)
		}
	}
	return kpi
}
