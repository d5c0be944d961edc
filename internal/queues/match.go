package queues

import "strings"

// ReferenceMatches is the only join between orders and their downstream
// movements and documents: the free-text origin must contain the order
// reference. It is deliberately fuzzy. "PO0001" matches an origin of
// "PO00010", and a composite origin such as "PO00001, PO00002" matches both
// orders. An empty reference matches nothing.
func ReferenceMatches(origin, reference string) bool {
	if reference == "" {
		return false
	}
	return strings.Contains(origin, reference)
}
