package queues

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func classifiedFixture() []ClassifiedOrder {
	orders := []Order{
		order(1, "PO00001", LifecycleDraft, "50"),
		order(2, "PO00002", LifecycleSent, "75"),
		order(3, "PO00003", LifecycleDraft, "50"),
		order(4, "PO00004", LifecycleConfirmed, "10"),
		order(5, "PO00005", LifecycleDone, "90"),
	}
	orders[0].OrderDate = day("2024-10-01")
	orders[1].OrderDate = day("2024-11-01")
	orders[2].OrderDate = day("2024-11-01")
	return ClassifyAll(orders, nil, nil, noAccess, referenceToday).Orders
}

func orderIDs(t *testing.T, page Page) []int64 {
	t.Helper()
	require.Equal(t, ItemOrder, page.ItemType)
	items, ok := page.Items.([]ClassifiedOrder)
	require.True(t, ok)
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func documentIDs(t *testing.T, page Page) []int64 {
	t.Helper()
	require.Equal(t, ItemDocument, page.ItemType)
	items, ok := page.Items.([]FinancialDocument)
	require.True(t, ok)
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func TestProjectOrdersByAmount(t *testing.T) {
	page := Project(classifiedFixture(), nil, PageRequest{Queue: QueueToConfirm, Sort: SortAmount, Page: 1, Limit: 10})
	require.Equal(t, []int64{2, 1, 3}, orderIDs(t, page))
	require.Equal(t, 3, page.Pagination.Total)
	require.Equal(t, 1, page.Pagination.TotalPages)
}

func TestProjectOrdersByDate(t *testing.T) {
	page := Project(classifiedFixture(), nil, PageRequest{Queue: QueueToConfirm, Sort: SortDate, Page: 1, Limit: 10})
	require.Equal(t, []int64{2, 3, 1}, orderIDs(t, page))
}

func TestProjectAllListsEveryOrder(t *testing.T) {
	page := Project(classifiedFixture(), nil, PageRequest{Queue: QueueAll, Sort: SortAmount, Page: 1, Limit: 10})
	require.Equal(t, []int64{5, 2, 1, 3, 4}, orderIDs(t, page))
}

func TestProjectPagination(t *testing.T) {
	classified := classifiedFixture()

	first := Project(classified, nil, PageRequest{Queue: QueueAll, Page: 1, Limit: 2})
	require.Equal(t, []int64{5, 2}, orderIDs(t, first))
	require.Equal(t, 3, first.Pagination.TotalPages)

	last := Project(classified, nil, PageRequest{Queue: QueueAll, Page: 3, Limit: 2})
	require.Equal(t, []int64{4}, orderIDs(t, last))

	beyond := Project(classified, nil, PageRequest{Queue: QueueAll, Page: 9, Limit: 2})
	require.Empty(t, orderIDs(t, beyond))
	require.NotNil(t, beyond.Items)
	require.Equal(t, 5, beyond.Pagination.Total)
	require.Equal(t, 3, beyond.Pagination.TotalPages)
	require.Equal(t, 9, beyond.Pagination.Page)
}

func TestProjectDefaultsPageAndLimit(t *testing.T) {
	page := Project(classifiedFixture(), nil, PageRequest{Queue: QueueAll, DefaultLimit: 4})
	require.Equal(t, 1, page.Pagination.Page)
	require.Equal(t, 4, page.Pagination.Limit)
	require.Len(t, orderIDs(t, page), 4)
}

func TestProjectToSettleIgnoresOrders(t *testing.T) {
	docs := []FinancialDocument{
		document(1, 100, "X", "10", "2025-03-01"),
		document(2, 100, "Y", "30", ""),
		document(3, 100, "Z", "30", "2025-01-15"),
		document(4, 100, "W", "5", "2025-01-15"),
	}

	byAmount := Project(classifiedFixture(), docs, PageRequest{Queue: QueueToSettle, Sort: SortAmount, Page: 1, Limit: 10})
	require.Equal(t, []int64{2, 3, 1, 4}, documentIDs(t, byAmount))

	byDate := Project(classifiedFixture(), docs, PageRequest{Queue: QueueToSettle, Sort: SortDate, Page: 1, Limit: 10})
	require.Equal(t, []int64{3, 4, 1, 2}, documentIDs(t, byDate))
}

func TestProjectToSettleBeyondLastPage(t *testing.T) {
	docs := []FinancialDocument{document(1, 100, "X", "10", "")}
	page := Project(nil, docs, PageRequest{Queue: QueueToSettle, Page: 2, Limit: 1})
	require.Empty(t, documentIDs(t, page))
	require.Equal(t, 1, page.Pagination.TotalPages)
}

func TestProjectHugePageIsEmpty(t *testing.T) {
	require.NotPanics(t, func() {
		page := Project(classifiedFixture(), nil, PageRequest{Queue: QueueAll, Page: math.MaxInt / 10, Limit: 20})
		require.Empty(t, orderIDs(t, page))
		require.Equal(t, 1, page.Pagination.TotalPages)
	})
	require.NotPanics(t, func() {
		docs := []FinancialDocument{document(1, 100, "X", "10", "")}
		page := Project(nil, docs, PageRequest{Queue: QueueToSettle, Page: math.MaxInt / 10, Limit: 20})
		require.Empty(t, documentIDs(t, page))
	})
}

func TestProjectCountMatchesKPI(t *testing.T) {
	classified := ClassifyAll([]Order{
		order(1, "PO00001", LifecycleDraft, "1"),
		order(2, "PO00002", LifecycleSent, "2"),
		order(3, "PO00003", LifecycleConfirmed, "3"),
		order(4, "PO00004", LifecycleCancelled, "4"),
	}, nil, nil, noAccess, referenceToday)
	kpi := Aggregate(classified, nil, referenceToday)

	for queue, bucket := range map[Queue]Bucket{
		QueueToConfirm: kpi.ToConfirm,
		QueueToFulfill: kpi.ToFulfill,
		QueueCompleted: kpi.Completed,
	} {
		page := Project(classified.Orders, nil, PageRequest{Queue: queue, Page: 1, Limit: 100})
		require.Equal(t, bucket.Count, page.Pagination.Total, queue)
		require.Len(t, orderIDs(t, page), bucket.Count, queue)
	}
}
