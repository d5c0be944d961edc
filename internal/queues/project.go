package queues

import (
	"cmp"
	"slices"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// PageRequest selects and orders the items of one queue.
type PageRequest struct {
	Queue        Queue
	Sort         SortMode
	Page         int
	Limit        int
	DefaultLimit int
}

// Page is one page of projected items. Items holds []ClassifiedOrder or
// []FinancialDocument depending on ItemType.
type Page struct {
	ItemType   ItemType          `json:"itemType"`
	Items      any               `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// Project filters, sorts and paginates. The to_settle queue lists open
// documents; every other queue lists orders. Ties always break on id so that
// pages are stable across requests.
func Project(classified []ClassifiedOrder, docs []FinancialDocument, req PageRequest) Page {
	if req.Queue == QueueToSettle {
		return projectDocuments(docs, req)
	}
	return projectOrders(classified, req)
}

func projectOrders(classified []ClassifiedOrder, req PageRequest) Page {
	selected := make([]ClassifiedOrder, 0, len(classified))
	for _, order := range classified {
		if req.Queue == QueueAll || order.Queue == req.Queue {
			selected = append(selected, order)
		}
	}

	slices.SortStableFunc(selected, func(a, b ClassifiedOrder) int {
		var c int
		if req.Sort == SortDate {
			c = b.OrderDate.Compare(a.OrderDate)
		} else {
			c = b.TotalAmount.Cmp(a.TotalAmount)
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	pagination := shared.NewPagination(req.Page, req.Limit, len(selected), req.DefaultLimit)
	start, end := pagination.Window()
	items := make([]ClassifiedOrder, 0, end-start)
	items = append(items, selected[start:end]...)
	return Page{ItemType: ItemOrder, Items: items, Pagination: pagination}
}

func projectDocuments(docs []FinancialDocument, req PageRequest) Page {
	selected := make([]FinancialDocument, 0, len(docs))
	for _, doc := range docs {
		if doc.Open() {
			selected = append(selected, doc)
		}
	}

	slices.SortStableFunc(selected, func(a, b FinancialDocument) int {
		var c int
		if req.Sort == SortDate {
			c = compareDueDates(a, b)
		} else {
			c = b.ResidualAmount.Cmp(a.ResidualAmount)
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	pagination := shared.NewPagination(req.Page, req.Limit, len(selected), req.DefaultLimit)
	start, end := pagination.Window()
	items := make([]FinancialDocument, 0, end-start)
	items = append(items, selected[start:end]...)
	return Page{ItemType: ItemDocument, Items: items, Pagination: pagination}
}

// compareDueDates sorts ascending with missing due dates last.
func compareDueDates(a, b FinancialDocument) int {
	switch {
	case a.DueDate == nil && b.DueDate == nil:
		return 0
	case a.DueDate == nil:
		return 1
	case b.DueDate == nil:
		return -1
	default:
		return a.DueDate.Compare(*b.DueDate)
	}
}
