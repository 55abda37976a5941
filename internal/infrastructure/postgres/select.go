package postgres

import (
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

// ColumnKind decides how request strings are decoded into query arguments.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindNumeric
	KindBool
	KindTime
)

// Column maps an API attribute to a SQL expression.
type Column struct {
	Expr   string
	Kind   ColumnKind
	Hidden bool
}

// Table is the whitelist of attributes a Select may touch.
type Table struct {
	Name    string
	Columns map[string]Column
	// TieBreak is appended to every ORDER BY so pages are stable.
	TieBreak string
}

const totalColumn = "__total"

// Select is an immutable SQL query plan. Clauses compose in SQL order
// regardless of call order. Unknown attributes, unsupported operators and
// undecodable values surface as a validation error from Build.
type Select struct {
	table      *Table
	restricted bool
	where      []query.Predicate
	order      []query.SortKey
	fields     []string
	offset     int
	limit      int
}

var _ query.Queryable[*Select] = (*Select)(nil)

// From starts an unrestricted plan; hidden columns may be filtered on.
func From(t *Table) *Select { return &Select{table: t} }

// ListFrom starts a plan that refuses hidden columns anywhere.
func ListFrom(t *Table) *Select { return &Select{table: t, restricted: true} }

func (s *Select) clone() *Select {
	out := *s
	out.where = slices.Clone(s.where)
	out.order = slices.Clone(s.order)
	out.fields = slices.Clone(s.fields)
	return &out
}

func (s *Select) Where(p query.Predicate) *Select {
	out := s.clone()
	out.where = append(out.where, p)
	return out
}

func (s *Select) OrderBy(keys ...query.SortKey) *Select {
	out := s.clone()
	out.order = append(out.order, keys...)
	return out
}

func (s *Select) Select(fields ...string) *Select {
	out := s.clone()
	out.fields = append(out.fields, fields...)
	return out
}

func (s *Select) Skip(n int) *Select {
	out := s.clone()
	out.offset = max(n, 0)
	return out
}

func (s *Select) Limit(n int) *Select {
	out := s.clone()
	out.limit = max(n, 0)
	return out
}

// Offset reports the skip applied to the plan.
func (s *Select) Offset() int { return s.offset }

type builder struct {
	args []any
	bad  map[string]string
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) fail(key, reason string) {
	if b.bad == nil {
		b.bad = map[string]string{}
	}
	b.bad[key] = reason
}

func (b *builder) err() error {
	if len(b.bad) == 0 {
		return nil
	}
	return apperror.Validation(b.bad)
}

func (s *Select) column(field string) (Column, bool) {
	c, ok := s.table.Columns[field]
	if !ok || (s.restricted && c.Hidden) {
		return Column{}, false
	}
	return c, true
}

// Build renders the list query: the projection (every visible column when no
// fields were selected) aliased to API names, plus a window count of all
// filtered rows under the "__total" alias.
func (s *Select) Build() (string, []any, error) {
	b := &builder{}
	fields := s.fields
	if len(fields) == 0 {
		fields = s.visibleFields()
	} else if !slices.Contains(fields, "id") {
		fields = append([]string{"id"}, fields...)
	}
	proj := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		c, ok := s.column(f)
		if !ok {
			b.fail("fields", fmt.Sprintf("cannot select %q", f))
			continue
		}
		proj = append(proj, fmt.Sprintf("%s AS %q", c.Expr, f))
	}
	proj = append(proj, fmt.Sprintf("COUNT(*) OVER() AS %q", totalColumn))
	sql := s.render(b, strings.Join(proj, ", "), true)
	if err := b.err(); err != nil {
		return "", nil, err
	}
	return sql, b.args, nil
}

// BuildWith renders the plan with a caller-supplied select list.
func (s *Select) BuildWith(selectList string) (string, []any, error) {
	b := &builder{}
	sql := s.render(b, selectList, true)
	if err := b.err(); err != nil {
		return "", nil, err
	}
	return sql, b.args, nil
}

// BuildCount renders a COUNT(*) over the filters only.
func (s *Select) BuildCount() (string, []any, error) {
	b := &builder{}
	sql := s.render(b, "COUNT(*)", false)
	if err := b.err(); err != nil {
		return "", nil, err
	}
	return sql, b.args, nil
}

func (s *Select) render(b *builder, selectList string, paged bool) string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectList)
	sb.WriteString(" FROM ")
	sb.WriteString(s.table.Name)

	if conds := s.conditions(b); len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	if !paged {
		return sb.String()
	}
	if order := s.orderBy(b); len(order) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(order, ", "))
	}
	if s.offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(b.arg(s.offset))
	}
	if s.limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(b.arg(s.limit))
	}
	return sb.String()
}

var comparators = map[query.Operator]string{
	query.OpEq:  "=",
	OpNe:        "<>",
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

func (s *Select) conditions(b *builder) []string {
	out := make([]string, 0, len(s.where))
	for _, p := range s.where {
		key := fmt.Sprintf("%s[%s]", p.Field, p.Op)
		c, ok := s.column(p.Field)
		if !ok {
			b.fail(p.Field, "is not a filterable field")
			continue
		}
		if p.Op == OpIn {
			list, err := decodeList(c.Kind, p.Value)
			if err != nil {
				b.fail(key, err.Error())
				continue
			}
			out = append(out, fmt.Sprintf("%s = ANY(%s)", c.Expr, b.arg(list)))
			continue
		}
		cmp, ok := comparators[p.Op]
		if !ok {
			b.fail(key, fmt.Sprintf("unsupported operator %q", p.Op))
			continue
		}
		v, err := decode(c.Kind, p.Value)
		if err != nil {
			b.fail(key, err.Error())
			continue
		}
		out = append(out, fmt.Sprintf("%s %s %s", c.Expr, cmp, b.arg(v)))
	}
	return out
}

func (s *Select) orderBy(b *builder) []string {
	out := make([]string, 0, len(s.order)+1)
	for _, k := range s.order {
		c, ok := s.column(k.Field)
		if !ok {
			b.fail("sort", fmt.Sprintf("cannot sort by %q", k.Field))
			continue
		}
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		out = append(out, c.Expr+" "+dir)
	}
	if s.table.TieBreak != "" && len(out) > 0 {
		out = append(out, s.table.TieBreak)
	}
	return out
}

func (s *Select) visibleFields() []string {
	out := make([]string, 0, len(s.table.Columns))
	for name, c := range s.table.Columns {
		if !c.Hidden {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

func decode(kind ColumnKind, raw string) (any, error) {
	switch kind {
	case KindNumeric:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return f, nil
	case KindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", raw)
		}
		return v, nil
	case KindTime:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("%q is not a timestamp", raw)
	}
	return raw, nil
}

func decodeList(kind ColumnKind, raw string) (any, error) {
	parts := strings.Split(raw, ",")
	switch kind {
	case KindText:
		out := make([]string, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out, nil
	case KindNumeric:
		out := make([]float64, len(parts))
		for i, p := range parts {
			v, err := decode(kind, strings.TrimSpace(p))
			if err != nil {
				return nil, err
			}
			out[i] = v.(float64)
		}
		return out, nil
	}
	return nil, fmt.Errorf("operator %q is not supported on this field", OpIn)
}
