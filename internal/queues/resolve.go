package queues

import (
	"time"

	"github.com/shopspring/decimal"
)

type movementSummary struct {
	total         int
	settled       int
	earliestDueBy *time.Time
}

// FulfillmentIndex maps an order reference to the movements whose origin
// mentions it.
type FulfillmentIndex map[string]*movementSummary

// BuildFulfillmentIndex attributes every movement to each order reference its
// origin contains. A composite origin counts towards several orders.
func BuildFulfillmentIndex(orders []Order, records []FulfillmentRecord) FulfillmentIndex {
	index := make(FulfillmentIndex, len(orders))
	for _, order := range orders {
		if order.DisplayName == "" {
			continue
		}
		if _, ok := index[order.DisplayName]; ok {
			continue
		}
		summary := &movementSummary{}
		for _, record := range records {
			if !ReferenceMatches(record.OriginReference, order.DisplayName) {
				continue
			}
			summary.total++
			if record.State.Settled() {
				summary.settled++
				continue
			}
			if record.DueBy != nil && (summary.earliestDueBy == nil || record.DueBy.Before(*summary.earliestDueBy)) {
				due := *record.DueBy
				summary.earliestDueBy = &due
			}
		}
		index[order.DisplayName] = summary
	}
	return index
}

// ResolveFulfillment determines whether an order's goods have moved. Without
// fulfillment access the index is never consulted and the order's own hint is
// used instead.
func ResolveFulfillment(order Order, index FulfillmentIndex, caps Capabilities, today time.Time) FulfillmentResult {
	if !caps.HasFulfillmentAccess {
		switch {
		case order.FulfillmentHint == HintFull:
			return FulfillmentResult{Status: FulfillmentFulfilled}
		case order.Lifecycle == LifecycleConfirmed:
			return FulfillmentResult{Status: FulfillmentPending}
		default:
			return FulfillmentResult{Status: FulfillmentUnknown}
		}
	}

	summary, ok := index[order.DisplayName]
	if !ok || summary.total == 0 {
		// Confirmed orders need goods to move even before a movement exists.
		if order.Lifecycle == LifecycleConfirmed {
			return FulfillmentResult{Status: FulfillmentPending}
		}
		return FulfillmentResult{Status: FulfillmentUnknown}
	}
	if summary.settled == summary.total {
		return FulfillmentResult{Status: FulfillmentFulfilled}
	}
	overdue := summary.earliestDueBy != nil && beforeDay(*summary.earliestDueBy, today)
	return FulfillmentResult{Status: FulfillmentPending, Overdue: overdue}
}

// OpenDocuments groups open financial documents by counterparty.
type OpenDocuments map[int64][]FinancialDocument

// GroupByCounterparty indexes open documents. Documents without a
// counterparty cannot be attributed to any order and are skipped.
func GroupByCounterparty(docs []FinancialDocument) OpenDocuments {
	grouped := make(OpenDocuments)
	for _, doc := range docs {
		if doc.CounterpartyID == nil || !doc.Open() {
			continue
		}
		grouped[*doc.CounterpartyID] = append(grouped[*doc.CounterpartyID], doc)
	}
	return grouped
}

// ResolveSettlement determines whether an order still has unpaid bills or
// invoices. When no document references the order but the order is done or
// fulfilled and its counterparty has any open document, the order is flagged
// with a zero open amount.
//
// Without settlement access only a partial hint ("to invoice") counts as open.
// A full hint means the order is billed, and the hint carries no payment
// state, so it is never reported as open.
func ResolveSettlement(order Order, fulfillment FulfillmentResult, open OpenDocuments, caps Capabilities) SettlementResult {
	if !caps.HasSettlementAccess || order.CounterpartyID == nil {
		return SettlementResult{HasOpen: order.SettlementHint == HintPartial, OpenAmount: decimal.Zero}
	}

	docs := open[*order.CounterpartyID]
	amount := decimal.Zero
	matched := false
	for _, doc := range docs {
		if !ReferenceMatches(doc.OriginReference, order.DisplayName) {
			continue
		}
		matched = true
		amount = amount.Add(doc.ResidualAmount)
	}
	if matched {
		return SettlementResult{HasOpen: amount.IsPositive(), OpenAmount: amount}
	}

	finished := order.Lifecycle == LifecycleDone || fulfillment.Status == FulfillmentFulfilled
	if finished && len(docs) > 0 {
		return SettlementResult{HasOpen: true, OpenAmount: decimal.Zero}
	}
	return SettlementResult{OpenAmount: decimal.Zero}
}
