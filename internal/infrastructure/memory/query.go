package memory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/natours/natours-api/pkg/apperror"
	"github.com/natours/natours-api/pkg/query"
)

// Store vocabulary beyond the parser's comparison set.
const (
	OpNe query.Operator = "ne"
	OpIn query.Operator = "in"
)

type stepKind int

const (
	stepWhere stepKind = iota
	stepOrder
	stepSelect
	stepSkip
	stepLimit
)

type step struct {
	kind   stepKind
	pred   query.Predicate
	keys   []query.SortKey
	fields []string
	n      int
}

// Query is an immutable, lazily executed plan over a Collection. Steps run in
// the order they were added.
type Query struct {
	coll       *Collection
	steps      []step
	restricted bool
}

var _ query.Queryable[*Query] = (*Query)(nil)

func (q *Query) with(s step) *Query {
	out := *q
	out.steps = append(slices.Clone(q.steps), s)
	return &out
}

func (q *Query) Where(p query.Predicate) *Query { return q.with(step{kind: stepWhere, pred: p}) }

func (q *Query) OrderBy(keys ...query.SortKey) *Query {
	return q.with(step{kind: stepOrder, keys: slices.Clone(keys)})
}

func (q *Query) Select(fields ...string) *Query {
	return q.with(step{kind: stepSelect, fields: slices.Clone(fields)})
}

func (q *Query) Skip(n int) *Query  { return q.with(step{kind: stepSkip, n: n}) }
func (q *Query) Limit(n int) *Query { return q.with(step{kind: stepLimit, n: n}) }

// Run executes the plan and returns the documents plus the number that
// matched before the first skip or limit.
func (q *Query) Run(ctx context.Context) ([]Document, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if err := q.check(); err != nil {
		return nil, 0, err
	}

	docs := q.coll.snapshot()
	total := int64(-1)
	for _, s := range q.steps {
		switch s.kind {
		case stepWhere:
			docs = slices.DeleteFunc(docs, func(d Document) bool { return !matches(d, s.pred) })
		case stepOrder:
			slices.SortStableFunc(docs, func(a, b Document) int { return compareDocs(a, b, s.keys) })
		case stepSelect:
			for i, d := range docs {
				docs[i] = project(d, s.fields)
			}
		case stepSkip:
			if total < 0 {
				total = int64(len(docs))
			}
			docs = docs[min(max(s.n, 0), len(docs)):]
		case stepLimit:
			if total < 0 {
				total = int64(len(docs))
			}
			if s.n > 0 && s.n < len(docs) {
				docs = docs[:s.n]
			}
		}
	}
	if total < 0 {
		total = int64(len(docs))
	}
	if q.restricted {
		for _, d := range docs {
			for f := range q.coll.hidden {
				delete(d, f)
			}
		}
	}
	return docs, total, nil
}

// Result runs the plan and packages it as a query.Result.
func (q *Query) Result(ctx context.Context) (query.Result, error) {
	docs, total, err := q.Run(ctx)
	if err != nil {
		return query.Result{}, err
	}
	records := make([]map[string]any, len(docs))
	for i, d := range docs {
		records[i] = d
	}
	return query.Result{Records: records, Count: len(records), Total: total}, nil
}

// First returns the first matching document or ErrNotFound.
func (q *Query) First(ctx context.Context) (Document, error) {
	docs, _, err := q.Limit(1).Run(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (q *Query) check() error {
	bad := map[string]string{}
	hidden := func(f string) bool { return q.restricted && q.coll.hidden[f] }
	for _, s := range q.steps {
		switch s.kind {
		case stepWhere:
			key := fmt.Sprintf("%s[%s]", s.pred.Field, s.pred.Op)
			if hidden(s.pred.Field) {
				bad[s.pred.Field] = "is not a filterable field"
			} else if !supported(s.pred.Op) {
				bad[key] = fmt.Sprintf("unsupported operator %q", s.pred.Op)
			}
		case stepOrder:
			for _, k := range s.keys {
				if hidden(k.Field) {
					bad["sort"] = fmt.Sprintf("cannot sort by %q", k.Field)
				}
			}
		case stepSelect:
			for _, f := range s.fields {
				if hidden(f) {
					bad["fields"] = fmt.Sprintf("cannot select %q", f)
				}
			}
		}
	}
	if len(bad) > 0 {
		return apperror.Validation(bad)
	}
	return nil
}

func supported(op query.Operator) bool {
	return op.Known() || op == OpNe || op == OpIn
}

func matches(d Document, p query.Predicate) bool {
	v := d[p.Field]
	switch p.Op {
	case OpNe:
		c, ok := compareRaw(v, p.Value)
		return !ok || c != 0
	case OpIn:
		for _, raw := range strings.Split(p.Value, ",") {
			if c, ok := compareRaw(v, strings.TrimSpace(raw)); ok && c == 0 {
				return true
			}
		}
		return false
	}
	c, ok := compareRaw(v, p.Value)
	if !ok {
		return false
	}
	switch p.Op {
	case query.OpEq:
		return c == 0
	case query.OpGt:
		return c > 0
	case query.OpGte:
		return c >= 0
	case query.OpLt:
		return c < 0
	case query.OpLte:
		return c <= 0
	}
	return false
}

// compareRaw compares a stored value with a request string, interpreting the
// string by the stored value's type. ok is false when the string cannot be
// read as that type or the value is absent.
func compareRaw(v any, raw string) (int, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case string:
		return strings.Compare(x, raw), true
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return 0, false
		}
		return compareBool(x, b), true
	case time.Time:
		t, ok := parseTime(raw)
		if !ok {
			return 0, false
		}
		return x.Compare(t), true
	}
	f, ok := toFloat(v)
	if !ok {
		return strings.Compare(fmt.Sprint(v), raw), true
	}
	r, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return compareFloat(f, r), true
}

func compareDocs(a, b Document, keys []query.SortKey) int {
	for _, k := range keys {
		c := compareValues(a[k.Field], b[k.Field])
		if k.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// compareValues orders two stored values. Absent values sort first.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return compareFloat(fa, fb)
		}
	}
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			return compareBool(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func project(d Document, fields []string) Document {
	out := Document{"id": d["id"]}
	for _, f := range fields {
		if v, ok := d[f]; ok {
			out[f] = v
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly}

func parseTime(raw string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
