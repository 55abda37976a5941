// Package query turns list-endpoint request parameters into a structured
// filter/sort/projection/pagination plan and applies it to a store handle.
package query

import "math"

// Operator is a comparison used by a filter predicate. Tokens outside the
// known set are kept verbatim for the store to interpret.
type Operator string

const (
	OpEq  Operator = "eq"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
)

// Known reports whether op is one of eq, gt, gte, lt, lte.
func (op Operator) Known() bool {
	switch op {
	case OpEq, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Predicate is a single filter condition on a named attribute.
type Predicate struct {
	Field string
	Op    Operator
	Value string
}

// SortKey orders results by Field; Desc selects descending order.
type SortKey struct {
	Field string
	Desc  bool
}

const (
	DefaultPage      = 1
	DefaultLimit     = 100
	DefaultSortField = "createdAt"
)

// Spec is the parsed plan for one list request. It is immutable: accessors
// return copies.
type Spec struct {
	predicates []Predicate
	sort       []SortKey
	fields     []string
	page       int
	limit      int
}

// NewSpec builds a Spec, applying the same defaults as Parse for empty sort
// and non-positive page/limit.
func NewSpec(predicates []Predicate, sort []SortKey, fields []string, page, limit int) Spec {
	if len(sort) == 0 {
		sort = []SortKey{{Field: DefaultSortField, Desc: true}}
	}
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	return Spec{
		predicates: append([]Predicate(nil), predicates...),
		sort:       append([]SortKey(nil), sort...),
		fields:     append([]string(nil), fields...),
		page:       page,
		limit:      limit,
	}
}

func (s Spec) Predicates() []Predicate { return append([]Predicate(nil), s.predicates...) }
func (s Spec) Sort() []SortKey         { return append([]SortKey(nil), s.sort...) }

// Fields returns the projection list; nil means no restriction.
func (s Spec) Fields() []string { return append([]string(nil), s.fields...) }

func (s Spec) Page() int  { return s.page }
func (s Spec) Limit() int { return s.limit }

// Offset is (page-1)*limit, saturating at math.MaxInt so a huge page still
// lands past the end.
func (s Spec) Offset() int {
	if s.page <= 1 {
		return 0
	}
	if s.page-1 > math.MaxInt/s.limit {
		return math.MaxInt
	}
	return (s.page - 1) * s.limit
}

// WithPredicate returns a copy of s with p appended to the filters.
func (s Spec) WithPredicate(p Predicate) Spec {
	out := s
	out.predicates = append(s.Predicates(), p)
	out.sort = s.Sort()
	out.fields = s.Fields()
	return out
}

// Result is a materialized page of records. Count is len(Records); Total is
// the number of records matching the filters before pagination.
type Result struct {
	Records []map[string]any
	Count   int
	Total   int64
}
