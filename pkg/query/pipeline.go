package query

// Queryable is a store handle a Spec can be applied to. Each method returns
// the refined handle; nothing executes until the caller runs it.
type Queryable[Q any] interface {
	Where(p Predicate) Q
	OrderBy(keys ...SortKey) Q
	Select(fields ...string) Q
	Skip(n int) Q
	Limit(n int) Q
}

// Apply refines q with spec in a fixed order: filters, sort, projection,
// then skip/limit. Sorting sees the whole filtered set and pagination acts
// on the sorted result.
func Apply[Q Queryable[Q]](q Q, spec Spec) Q {
	for _, p := range spec.Predicates() {
		q = q.Where(p)
	}
	q = q.OrderBy(spec.Sort()...)
	if fields := spec.Fields(); len(fields) > 0 {
		q = q.Select(fields...)
	}
	return q.Skip(spec.Offset()).Limit(spec.Limit())
}
