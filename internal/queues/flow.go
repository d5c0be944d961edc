package queues

import (
	"github.com/odyssey-erp/backoffice/internal/shared"
	"github.com/odyssey-erp/backoffice/internal/upstream"
)

// Flow describes one side of the business, purchase or sales. The engine is
// the same for both; only the upstream models, fields and state vocabularies
// differ.
type Flow struct {
	Name   string
	Module string

	OrderModel           string
	FulfillmentHintField string
	SettlementHintField  string
	LineQuantityField    string

	MovementModel    string
	MovementTypeCode string

	DocumentModel    string
	DocumentMoveType string

	lifecycle        map[string]Lifecycle
	fulfillmentHints map[string]Hint
	settlementHints  map[string]Hint
}

var invoiceHints = map[string]Hint{
	"no":         HintNone,
	"to invoice": HintPartial,
	"invoiced":   HintFull,
}

// Purchase covers purchase orders, goods receipts and vendor bills.
var Purchase = Flow{
	Name:                 "purchase",
	Module:               shared.ModulePurchase,
	OrderModel:           "purchase.order",
	FulfillmentHintField: "receipt_status",
	SettlementHintField:  "invoice_status",
	LineQuantityField:    "product_qty",
	MovementModel:        "stock.picking",
	MovementTypeCode:     "incoming",
	DocumentModel:        "account.move",
	DocumentMoveType:     "in_invoice",
	lifecycle: map[string]Lifecycle{
		"draft":      LifecycleDraft,
		"sent":       LifecycleSent,
		"to approve": LifecycleSent,
		"purchase":   LifecycleConfirmed,
		"done":       LifecycleDone,
		"cancel":     LifecycleCancelled,
	},
	fulfillmentHints: map[string]Hint{
		"pending": HintNone,
		"partial": HintPartial,
		"full":    HintFull,
	},
	settlementHints: invoiceHints,
}

// Sales covers sales orders, deliveries and customer invoices.
var Sales = Flow{
	Name:                 "sales",
	Module:               shared.ModuleSales,
	OrderModel:           "sale.order",
	FulfillmentHintField: "delivery_status",
	SettlementHintField:  "invoice_status",
	LineQuantityField:    "product_uom_qty",
	MovementModel:        "stock.picking",
	MovementTypeCode:     "outgoing",
	DocumentModel:        "account.move",
	DocumentMoveType:     "out_invoice",
	lifecycle: map[string]Lifecycle{
		"draft":  LifecycleDraft,
		"sent":   LifecycleSent,
		"sale":   LifecycleConfirmed,
		"done":   LifecycleDone,
		"cancel": LifecycleCancelled,
	},
	fulfillmentHints: map[string]Hint{
		"pending": HintNone,
		"started": HintPartial,
		"partial": HintPartial,
		"full":    HintFull,
	},
	settlementHints: invoiceHints,
}

// Flows lists every supported flow.
func Flows() []Flow {
	return []Flow{Purchase, Sales}
}

var movementStates = map[string]MovementState{
	"draft":     MovementPending,
	"waiting":   MovementPending,
	"confirmed": MovementPending,
	"assigned":  MovementAssigned,
	"done":      MovementDone,
	"cancel":    MovementCancelled,
}

var paymentStates = map[string]SettlementState{
	"not_paid":   SettlementNotPaid,
	"partial":    SettlementPartial,
	"in_payment": SettlementPaid,
	"paid":       SettlementPaid,
	"reversed":   SettlementReversed,
}

func (f Flow) orderFields() []string {
	return []string{
		"id", "name", "partner_id", "date_order", "amount_total", "state",
		f.FulfillmentHintField, f.SettlementHintField,
	}
}

var (
	movementFields = []string{"id", "origin", "state", "scheduled_date", "date_deadline"}
	documentFields = []string{
		"id", "name", "partner_id", "invoice_date", "invoice_date_due",
		"amount_residual", "amount_total", "payment_state", "state", "invoice_origin",
	}
)

// orderFromRecord maps an upstream order. Unknown states fall back to the
// least advanced value.
func (f Flow) orderFromRecord(r upstream.Record) Order {
	order := Order{
		ID:              r.ID(),
		DisplayName:     r.String("name"),
		TotalAmount:     r.Decimal("amount_total"),
		Lifecycle:       LifecycleDraft,
		FulfillmentHint: HintNone,
		SettlementHint:  HintNone,
	}
	if id, name, ok := r.Many2One("partner_id"); ok {
		order.CounterpartyID = &id
		if name != "" {
			order.CounterpartyName = &name
		}
	}
	if t, ok := r.Time("date_order"); ok {
		order.OrderDate = t
	}
	if v, ok := f.lifecycle[r.String("state")]; ok {
		order.Lifecycle = v
	}
	if v, ok := f.fulfillmentHints[r.String(f.FulfillmentHintField)]; ok {
		order.FulfillmentHint = v
	}
	if v, ok := f.settlementHints[r.String(f.SettlementHintField)]; ok {
		order.SettlementHint = v
	}
	return order
}

// movementFromRecord maps a picking. The deadline wins over the scheduled
// date when both are set. Unknown states count as pending.
func movementFromRecord(r upstream.Record) FulfillmentRecord {
	record := FulfillmentRecord{
		ID:              r.ID(),
		OriginReference: r.String("origin"),
		State:           MovementPending,
	}
	if v, ok := movementStates[r.String("state")]; ok {
		record.State = v
	}
	if t, ok := r.Time("date_deadline"); ok {
		record.DueBy = &t
	} else if t, ok := r.Time("scheduled_date"); ok {
		record.DueBy = &t
	}
	return record
}

// documentFromRecord maps a bill or invoice. Unknown payment states count as
// not paid.
func documentFromRecord(r upstream.Record) FinancialDocument {
	doc := FinancialDocument{
		ID:              r.ID(),
		DisplayName:     r.String("name"),
		ResidualAmount:  r.Decimal("amount_residual"),
		TotalAmount:     r.Decimal("amount_total"),
		SettlementState: SettlementNotPaid,
		Posted:          r.String("state") == "posted",
		OriginReference: r.String("invoice_origin"),
	}
	if id, _, ok := r.Many2One("partner_id"); ok {
		doc.CounterpartyID = &id
	}
	if t, ok := r.Time("invoice_date"); ok {
		doc.IssueDate = &t
	}
	if t, ok := r.Time("invoice_date_due"); ok {
		doc.DueDate = &t
	}
	if v, ok := paymentStates[r.String("payment_state")]; ok {
		doc.SettlementState = v
	}
	return doc
}
