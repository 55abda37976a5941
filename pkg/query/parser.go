package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// reserved parameters never become filters
var reserved = map[string]struct{}{
	"page":   {},
	"sort":   {},
	"limit":  {},
	"fields": {},
}

// Parse builds a Spec from raw request parameters.
//
//	price[gte]=100&sort=-price,name&fields=name,price&page=2&limit=10
//
// A bare key is an equality filter, key[op] a comparison. When a key is
// repeated the last value wins.
func Parse(values url.Values) Spec {
	var preds []Predicate
	for key, vals := range values {
		if _, ok := reserved[key]; ok || len(vals) == 0 {
			continue
		}
		field, op, ok := splitKey(key)
		if !ok {
			continue
		}
		preds = append(preds, Predicate{Field: field, Op: op, Value: vals[len(vals)-1]})
	}
	sort.Slice(preds, func(i, j int) bool {
		if preds[i].Field != preds[j].Field {
			return preds[i].Field < preds[j].Field
		}
		return preds[i].Op < preds[j].Op
	})

	return NewSpec(
		preds,
		parseSort(values["sort"]),
		splitCSV(values["fields"]),
		positiveInt(values.Get("page"), DefaultPage),
		positiveInt(values.Get("limit"), DefaultLimit),
	)
}

// splitKey splits "field[op]" into its parts. A bare "field" is equality.
func splitKey(key string) (string, Operator, bool) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		if key == "" || strings.ContainsRune(key, ']') {
			return "", "", false
		}
		return key, OpEq, true
	}
	if open == 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	field := key[:open]
	token := key[open+1 : len(key)-1]
	if token == "" || strings.ContainsAny(token, "[]") {
		return "", "", false
	}
	return field, Operator(token), true
}

func parseSort(raw []string) []SortKey {
	var keys []SortKey
	for _, f := range splitCSV(raw) {
		desc := strings.HasPrefix(f, "-")
		f = strings.TrimPrefix(f, "-")
		if f == "" {
			continue
		}
		keys = append(keys, SortKey{Field: f, Desc: desc})
	}
	return keys
}

func splitCSV(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}
