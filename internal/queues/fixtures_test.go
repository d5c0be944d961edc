package queues

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	fullAccess     = Capabilities{HasFulfillmentAccess: true, HasSettlementAccess: true}
	noAccess       = Capabilities{}
	referenceToday = day("2025-01-01")
)

func day(s string) time.Time {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

func idPtr(id int64) *int64 { return &id }

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func order(id int64, name string, lifecycle Lifecycle, total string) Order {
	return Order{
		ID:              id,
		DisplayName:     name,
		CounterpartyID:  idPtr(100),
		OrderDate:       day("2024-12-01"),
		TotalAmount:     amount(total),
		Lifecycle:       lifecycle,
		FulfillmentHint: HintNone,
		SettlementHint:  HintNone,
	}
}

func movement(id int64, origin string, state MovementState, dueBy string) FulfillmentRecord {
	m := FulfillmentRecord{ID: id, OriginReference: origin, State: state}
	if dueBy != "" {
		m.DueBy = dayPtr(dueBy)
	}
	return m
}

func document(id int64, counterparty int64, origin, residual, due string) FinancialDocument {
	d := FinancialDocument{
		ID:              id,
		DisplayName:     "BILL/" + origin,
		CounterpartyID:  idPtr(counterparty),
		ResidualAmount:  amount(residual),
		TotalAmount:     amount(residual),
		SettlementState: SettlementNotPaid,
		Posted:          true,
		OriginReference: origin,
	}
	if due != "" {
		d.DueDate = dayPtr(due)
	}
	return d
}
