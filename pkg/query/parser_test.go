package query

import (
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustValues(t *testing.T, raw string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return v
}

func TestParse_FullExample(t *testing.T) {
	spec := Parse(mustValues(t, "price[gte]=100&sort=-price,name&fields=name,price&page=2&limit=10"))

	assert.Equal(t, []Predicate{{Field: "price", Op: OpGte, Value: "100"}}, spec.Predicates())
	assert.Equal(t, []SortKey{{Field: "price", Desc: true}, {Field: "name"}}, spec.Sort())
	assert.Equal(t, []string{"name", "price"}, spec.Fields())
	assert.Equal(t, 2, spec.Page())
	assert.Equal(t, 10, spec.Limit())
	assert.Equal(t, 10, spec.Offset())
}

func TestParse_Defaults(t *testing.T) {
	spec := Parse(url.Values{})

	assert.Empty(t, spec.Predicates())
	assert.Equal(t, []SortKey{{Field: "createdAt", Desc: true}}, spec.Sort())
	assert.Nil(t, spec.Fields())
	assert.Equal(t, 1, spec.Page())
	assert.Equal(t, 100, spec.Limit())
	assert.Equal(t, 0, spec.Offset())
}

func TestParse_InvalidPagination(t *testing.T) {
	tests := []struct {
		raw       string
		page, lim int
	}{
		{"page=abc&limit=xyz", 1, 100},
		{"page=0&limit=0", 1, 100},
		{"page=-3&limit=-1", 1, 100},
		{"page=2.5&limit=7", 1, 7},
		{"page=1000&limit=5", 1000, 5},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec := Parse(mustValues(t, tt.raw))
			assert.Equal(t, tt.page, spec.Page())
			assert.Equal(t, tt.lim, spec.Limit())
			assert.Equal(t, (tt.page-1)*tt.lim, spec.Offset())
		})
	}
}

func TestParse_HugePageSaturatesOffset(t *testing.T) {
	spec := Parse(mustValues(t, "page=922337203685477581&limit=100"))
	assert.Equal(t, 922337203685477581, spec.Page())
	assert.Equal(t, math.MaxInt, spec.Offset())

	spec = NewSpec(nil, nil, nil, math.MaxInt, math.MaxInt)
	assert.Equal(t, math.MaxInt, spec.Offset())
}

func TestParse_Predicates(t *testing.T) {
	spec := Parse(mustValues(t, "difficulty=easy&duration[lt]=10&duration[gt]=2&ratingsAverage[lte]=4.8&name[regex]=^The"))

	assert.Equal(t, []Predicate{
		{Field: "difficulty", Op: OpEq, Value: "easy"},
		{Field: "duration", Op: OpGt, Value: "2"},
		{Field: "duration", Op: OpLt, Value: "10"},
		{Field: "name", Op: Operator("regex"), Value: "^The"},
		{Field: "ratingsAverage", Op: OpLte, Value: "4.8"},
	}, spec.Predicates())
}

func TestParse_LastValueWins(t *testing.T) {
	spec := Parse(mustValues(t, "role=user&role=admin"))
	assert.Equal(t, []Predicate{{Field: "role", Op: OpEq, Value: "admin"}}, spec.Predicates())
}

func TestParse_MalformedKeysIgnored(t *testing.T) {
	spec := Parse(mustValues(t, "[gte]=1&price[=2&price[]=3&a]=4&ok=5"))
	assert.Equal(t, []Predicate{{Field: "ok", Op: OpEq, Value: "5"}}, spec.Predicates())
}

func TestParse_SortAndFieldsTrimmed(t *testing.T) {
	spec := Parse(mustValues(t, "sort= -price , ,name,-&fields=name,,price "))

	assert.Equal(t, []SortKey{{Field: "price", Desc: true}, {Field: "name"}}, spec.Sort())
	assert.Equal(t, []string{"name", "price"}, spec.Fields())
}

func TestSpec_Immutable(t *testing.T) {
	spec := Parse(mustValues(t, "price[gte]=100&fields=name"))

	preds := spec.Predicates()
	preds[0].Value = "0"
	fields := spec.Fields()
	fields[0] = "password"

	assert.Equal(t, "100", spec.Predicates()[0].Value)
	assert.Equal(t, []string{"name"}, spec.Fields())

	extended := spec.WithPredicate(Predicate{Field: "active", Op: OpEq, Value: "true"})
	assert.Len(t, spec.Predicates(), 1)
	assert.Len(t, extended.Predicates(), 2)
}

func TestOperator_Known(t *testing.T) {
	for _, op := range []Operator{OpEq, OpGt, OpGte, OpLt, OpLte} {
		assert.True(t, op.Known())
	}
	assert.False(t, Operator("regex").Known())
}
