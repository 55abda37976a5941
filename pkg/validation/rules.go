package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MinPasswordLen is the shortest password any account flow accepts.
const MinPasswordLen = 8

var engine = newEngine()

func newEngine() *validator.Validate {
	v := validator.New()
	registerAliases(v)
	return v
}

// Rule is one named check on a field value. Rules other than Required pass
// on an empty value so a missing field reports a single reason.
type Rule struct {
	Name  string
	Param string
	check func(value string, input map[string]string) bool
	msg   string
}

// Message is the reason reported when the rule fails.
func (r Rule) Message() string { return r.msg }

func (r Rule) String() string {
	if r.Param == "" {
		return r.Name
	}
	return r.Name + "=" + r.Param
}

func tagRule(tag, param string) Rule {
	expr := tag
	if param != "" {
		expr = tag + "=" + param
	}
	return Rule{
		Name:  tag,
		Param: param,
		check: func(v string, _ map[string]string) bool {
			return engine.Var(v, expr) == nil
		},
		msg: message(tag, param, false),
	}
}

func Required() Rule { return tagRule("required", "") }

func Email() Rule { return optional(tagRule("email", "")) }

func MinLen(n int) Rule { return optional(tagRule("min", fmt.Sprint(n))) }

func MaxLen(n int) Rule { return optional(tagRule("max", fmt.Sprint(n))) }

// OneOf accepts only the listed values.
func OneOf(values ...string) Rule {
	return optional(tagRule("oneof", strings.Join(values, " ")))
}

// EqualsField requires the value to equal the value of another field in the
// same input.
func EqualsField(other string) Rule {
	return Rule{
		Name:  "eqfield",
		Param: other,
		check: func(v string, input map[string]string) bool {
			return v == input[other]
		},
		msg: message("eqfield", other, false),
	}
}

// Custom wraps an arbitrary predicate under a name.
func Custom(name, msg string, fn func(string) bool) Rule {
	return optional(Rule{
		Name:  name,
		check: func(v string, _ map[string]string) bool { return fn(v) },
		msg:   msg,
	})
}

func optional(r Rule) Rule {
	check := r.check
	r.check = func(v string, input map[string]string) bool {
		return v == "" || check(v, input)
	}
	return r
}

type fieldRules struct {
	field string
	rules []Rule
}

// RuleSet is an ordered, inspectable list of per-field rules. Validate
// reports the first failing rule of each field.
type RuleSet struct {
	fields []fieldRules
}

func NewRuleSet() *RuleSet { return &RuleSet{} }

// Field appends rules for field. Calling Field twice for the same name adds
// to the existing list.
func (s *RuleSet) Field(field string, rules ...Rule) *RuleSet {
	for i := range s.fields {
		if s.fields[i].field == field {
			s.fields[i].rules = append(s.fields[i].rules, rules...)
			return s
		}
	}
	s.fields = append(s.fields, fieldRules{field: field, rules: rules})
	return s
}

// Validate checks input and returns field -> reason, or nil when every rule passes.
func (s *RuleSet) Validate(input map[string]string) map[string]string {
	var out map[string]string
	for _, f := range s.fields {
		v := input[f.field]
		for _, r := range f.rules {
			if r.check(v, input) {
				continue
			}
			if out == nil {
				out = map[string]string{}
			}
			out[f.field] = r.Message()
			break
		}
	}
	return out
}

// Describe lists each field with its rule names, in registration order.
func (s *RuleSet) Describe() map[string][]string {
	out := make(map[string][]string, len(s.fields))
	for _, f := range s.fields {
		names := make([]string, len(f.rules))
		for i, r := range f.rules {
			names[i] = r.String()
		}
		out[f.field] = names
	}
	return out
}

// Fields returns the validated field names in registration order.
func (s *RuleSet) Fields() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.field
	}
	return out
}
