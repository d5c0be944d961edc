package upstream

// Domain is an upstream search filter in prefix (Polish) notation, e.g.
// ["|", ["origin","ilike","PO001"], ["origin","ilike","PO002"]].
type Domain []any

// Cond builds a single leaf condition.
func Cond(field, op string, value any) []any {
	return []any{field, op, value}
}

// And joins conditions with the implicit upstream AND.
func And(conds ...[]any) Domain {
	d := make(Domain, 0, len(conds))
	for _, c := range conds {
		d = append(d, c)
	}
	return d
}

// AnyOf returns a domain matching when at least one condition holds. An empty
// list yields a domain that matches nothing.
func AnyOf(conds ...[]any) Domain {
	if len(conds) == 0 {
		return Domain{Cond("id", "=", 0)}
	}
	d := make(Domain, 0, 2*len(conds)-1)
	for i := 0; i < len(conds)-1; i++ {
		d = append(d, "|")
	}
	for _, c := range conds {
		d = append(d, c)
	}
	return d
}

// Join concatenates domains; upstream ANDs top-level terms.
func Join(domains ...Domain) Domain {
	var out Domain
	for _, d := range domains {
		out = append(out, d...)
	}
	if out == nil {
		out = Domain{}
	}
	return out
}
