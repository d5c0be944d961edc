// Package queues classifies upstream purchase and sales orders into the
// back-office workflow queues and computes the dashboard KPIs that go with them.
package queues

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lifecycle is the order state owned by the upstream system.
type Lifecycle string

const (
	LifecycleDraft     Lifecycle = "draft"
	LifecycleSent      Lifecycle = "sent"
	LifecycleConfirmed Lifecycle = "confirmed"
	LifecycleDone      Lifecycle = "done"
	LifecycleCancelled Lifecycle = "cancelled"
)

// Hint is a coarse progress marker carried on the order record itself, used
// when the authoritative downstream records cannot be read.
type Hint string

const (
	HintNone    Hint = "none"
	HintPartial Hint = "partial"
	HintFull    Hint = "full"
)

// MovementState is the state of a receipt or delivery.
type MovementState string

const (
	MovementPending   MovementState = "pending"
	MovementAssigned  MovementState = "assigned"
	MovementDone      MovementState = "done"
	MovementCancelled MovementState = "cancelled"
)

// Settled reports whether the movement no longer awaits goods.
func (s MovementState) Settled() bool {
	return s == MovementDone || s == MovementCancelled
}

// SettlementState is the payment state of a bill or invoice.
type SettlementState string

const (
	SettlementPaid     SettlementState = "paid"
	SettlementNotPaid  SettlementState = "notPaid"
	SettlementPartial  SettlementState = "partial"
	SettlementReversed SettlementState = "reversed"
)

// Queue is a workflow bucket.
type Queue string

const (
	QueueToConfirm Queue = "to_confirm"
	QueueToFulfill Queue = "to_fulfill"
	QueueToSettle  Queue = "to_settle"
	QueueCompleted Queue = "completed"
	// QueueAll is the pseudo-queue listing every non-excluded order.
	QueueAll Queue = "all"
	// QueueExcluded marks cancelled orders; it never appears in results.
	QueueExcluded Queue = ""
)

// ParseQueue maps a query value to a queue, reporting false for unknown values.
func ParseQueue(raw string) (Queue, bool) {
	switch q := Queue(raw); q {
	case QueueToConfirm, QueueToFulfill, QueueToSettle, QueueCompleted, QueueAll:
		return q, true
	default:
		return "", false
	}
}

// FulfillmentStatus is the resolved goods-movement status of an order.
type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "pending"
	FulfillmentFulfilled FulfillmentStatus = "fulfilled"
	FulfillmentUnknown   FulfillmentStatus = "unknown"
)

// SortMode orders queue items.
type SortMode string

const (
	SortAmount SortMode = "amount"
	SortDate   SortMode = "date"
)

// ParseSort maps a query value to a sort mode, defaulting to SortAmount.
func ParseSort(raw string) SortMode {
	if SortMode(raw) == SortDate {
		return SortDate
	}
	return SortAmount
}

// ItemType tells clients which shape a page of items has.
type ItemType string

const (
	ItemOrder    ItemType = "order"
	ItemDocument ItemType = "document"
)

// Order is a purchase or sales order as read from the upstream.
type Order struct {
	ID               int64           `json:"id"`
	DisplayName      string          `json:"displayName"`
	CounterpartyID   *int64          `json:"counterpartyId"`
	CounterpartyName *string         `json:"counterpartyName"`
	OrderDate        time.Time       `json:"orderDate"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Lifecycle        Lifecycle       `json:"lifecycleState"`
	FulfillmentHint  Hint            `json:"fulfillmentHint"`
	SettlementHint   Hint            `json:"settlementHint"`
}

// FulfillmentRecord is a receipt (purchase) or delivery (sales).
type FulfillmentRecord struct {
	ID              int64         `json:"id"`
	OriginReference string        `json:"originReference"`
	State           MovementState `json:"movementState"`
	DueBy           *time.Time    `json:"dueBy"`
}

// FinancialDocument is a vendor bill (purchase) or customer invoice (sales).
type FinancialDocument struct {
	ID              int64           `json:"id"`
	DisplayName     string          `json:"displayName"`
	CounterpartyID  *int64          `json:"counterpartyId"`
	IssueDate       *time.Time      `json:"issueDate"`
	DueDate         *time.Time      `json:"dueDate"`
	ResidualAmount  decimal.Decimal `json:"residualAmount"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	SettlementState SettlementState `json:"settlementState"`
	Posted          bool            `json:"-"`
	OriginReference string          `json:"originReference"`
}

// Open reports whether the document is posted and not fully paid.
func (d FinancialDocument) Open() bool {
	return d.Posted && d.SettlementState != SettlementPaid
}

// Capabilities tells which downstream record types the tenant may read. It is
// computed once per request and never cached.
type Capabilities struct {
	HasFulfillmentAccess bool `json:"hasFulfillmentAccess"`
	HasSettlementAccess  bool `json:"hasSettlementAccess"`
}

// FulfillmentResult is the output of ResolveFulfillment.
type FulfillmentResult struct {
	Status  FulfillmentStatus
	Overdue bool
}

// SettlementResult is the output of ResolveSettlement.
type SettlementResult struct {
	HasOpen    bool
	OpenAmount decimal.Decimal
}

// ClassifiedOrder is an order with its queue and derived flags. It lives for
// one request only.
type ClassifiedOrder struct {
	Order
	Queue             Queue             `json:"queue"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillmentStatus"`
	IsOverdue         bool              `json:"isOverdue"`
	HasOpenFinancials bool              `json:"hasOpenFinancials"`
	OpenAmount        decimal.Decimal   `json:"openAmount"`
}

const dayLayout = "2006-01-02"

// beforeDay compares calendar dates only, in UTC.
func beforeDay(a, b time.Time) bool {
	return a.UTC().Format(dayLayout) < b.UTC().Format(dayLayout)
}
