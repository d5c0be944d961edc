package queues

import "time"

// Classify assigns an order to exactly one queue, or QueueExcluded when it was
// cancelled. Settlement never gates membership; an order can be completed and
// still carry open financials.
func Classify(order Order, fulfillment FulfillmentResult) Queue {
	switch order.Lifecycle {
	case LifecycleDraft, LifecycleSent:
		return QueueToConfirm
	case LifecycleCancelled:
		return QueueExcluded
	case LifecycleConfirmed:
		if fulfillment.Status != FulfillmentFulfilled {
			return QueueToFulfill
		}
		return QueueCompleted
	case LifecycleDone:
		return QueueCompleted
	default:
		return QueueToConfirm
	}
}

// Classification is the outcome of classifying one request's orders.
type Classification struct {
	Orders   []ClassifiedOrder
	Excluded int
}

// ClassifyAll resolves and classifies every order. Cancelled orders are
// counted but dropped.
func ClassifyAll(orders []Order, movements []FulfillmentRecord, docs []FinancialDocument, caps Capabilities, today time.Time) Classification {
	var index FulfillmentIndex
	if caps.HasFulfillmentAccess {
		index = BuildFulfillmentIndex(orders, movements)
	}
	var open OpenDocuments
	if caps.HasSettlementAccess {
		open = GroupByCounterparty(docs)
	}

	out := Classification{Orders: make([]ClassifiedOrder, 0, len(orders))}
	for _, order := range orders {
		fulfillment := ResolveFulfillment(order, index, caps, today)
		queue := Classify(order, fulfillment)
		if queue == QueueExcluded {
			out.Excluded++
			continue
		}
		settlement := ResolveSettlement(order, fulfillment, open, caps)
		out.Orders = append(out.Orders, ClassifiedOrder{
			Order:             order,
			Queue:             queue,
			FulfillmentStatus: fulfillment.Status,
			IsOverdue:         fulfillment.Overdue,
			HasOpenFinancials: settlement.HasOpen,
			OpenAmount:        settlement.OpenAmount,
		})
	}
	return out
}
