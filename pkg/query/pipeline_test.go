package query

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// recorder is a Queryable that logs each refinement.
type recorder struct {
	steps []string
}

func (r recorder) add(s string) recorder {
	return recorder{steps: append(append([]string(nil), r.steps...), s)}
}

func (r recorder) Where(p Predicate) recorder {
	return r.add(fmt.Sprintf("where %s %s %s", p.Field, p.Op, p.Value))
}

func (r recorder) OrderBy(keys ...SortKey) recorder {
	s := "order"
	for _, k := range keys {
		s += fmt.Sprintf(" %s:%v", k.Field, k.Desc)
	}
	return r.add(s)
}

func (r recorder) Select(fields ...string) recorder { return r.add(fmt.Sprintf("select %v", fields)) }
func (r recorder) Skip(n int) recorder              { return r.add(fmt.Sprintf("skip %d", n)) }
func (r recorder) Limit(n int) recorder             { return r.add(fmt.Sprintf("limit %d", n)) }

func TestApply_Order(t *testing.T) {
	spec := NewSpec(
		[]Predicate{{Field: "price", Op: OpGte, Value: "100"}, {Field: "difficulty", Op: OpEq, Value: "easy"}},
		[]SortKey{{Field: "price", Desc: true}},
		[]string{"name", "price"},
		3, 20,
	)

	got := Apply(recorder{}, spec)

	assert.Equal(t, []string{
		"where price gte 100",
		"where difficulty eq easy",
		"order price:true",
		"select [name price]",
		"skip 40",
		"limit 20",
	}, got.steps)
}

func TestApply_NoProjection(t *testing.T) {
	got := Apply(recorder{}, NewSpec(nil, nil, nil, 0, 0))

	assert.Equal(t, []string{"order createdAt:true", "skip 0", "limit 100"}, got.steps)
}
