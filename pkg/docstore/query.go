package docstore

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEqual         Op = "=="
	OpLess          Op = "<"
	OpLessEqual     Op = "<="
	OpGreater       Op = ">"
	OpGreaterEqual  Op = ">="
	OpArrayContains Op = "array-contains"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Query selects documents of one collection path.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
	Limit      int
}

// Collection starts a query over a collection path.
func Collection(path string) Query {
	return Query{Collection: path}
}

func (q Query) Where(field string, op Op, value interface{}) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) Order(field string, dir Direction) Query {
	q.OrderBy = field
	q.Direction = dir
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

func (q Query) validate() error {
	if q.Collection == "" {
		return fmt.Errorf("query collection is required")
	}
	for _, f := range q.Filters {
		switch f.Op {
		case OpEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpArrayContains:
		default:
			return fmt.Errorf("unsupported query operator %q", f.Op)
		}
	}
	return nil
}

// Matches reports whether doc satisfies every filter of the query.
func (q Query) Matches(doc Document) bool {
	for _, f := range q.Filters {
		value, ok := Lookup(doc, f.Field)
		if !ok {
			return false
		}
		if !matchFilter(f, value) {
			return false
		}
	}
	return true
}

func matchFilter(f Filter, value interface{}) bool {
	switch f.Op {
	case OpArrayContains:
		arr, ok := value.([]interface{})
		if !ok {
			return false
		}
		for _, elem := range arr {
			if equalValues(elem, f.Value) {
				return true
			}
		}
		return false
	case OpEqual:
		return equalValues(value, f.Value)
	}

	cmp, ok := compareValues(value, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpLess:
		return cmp < 0
	case OpLessEqual:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	case OpGreaterEqual:
		return cmp >= 0
	}
	return false
}

// apply filters, orders and limits a document set in place of a server.
func (q Query) apply(snaps []*Snapshot) []*Snapshot {
	out := make([]*Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if q.Matches(s.Data) {
			out = append(out, s)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := Lookup(out[i].Data, q.OrderBy)
			b, _ := Lookup(out[j].Data, q.OrderBy)
			cmp, _ := compareValues(a, b)
			if q.Direction == Desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Lookup resolves a dotted field path inside a document.
func Lookup(doc Document, path string) (interface{}, bool) {
	var current interface{} = map[string]interface{}(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

func equalValues(a, b interface{}) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders numbers, strings, booleans and times. Mixed kinds are not
// comparable.
func compareValues(a, b interface{}) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
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
