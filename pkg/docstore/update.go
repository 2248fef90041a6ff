package docstore

import (
	"fmt"
	"strings"
	"time"
)

type arrayUnion struct{ elems []interface{} }

type arrayRemove struct{ elems []interface{} }

type increment struct{ by int64 }

type deleteField struct{}

// ArrayUnion appends elements that are not already present (set-union semantics).
func ArrayUnion(elems ...interface{}) interface{} { return arrayUnion{elems: elems} }

// ArrayRemove removes every occurrence of the given elements.
func ArrayRemove(elems ...interface{}) interface{} { return arrayRemove{elems: elems} }

// Increment adds n to a numeric field, treating a missing field as zero.
func Increment(n int64) interface{} { return increment{by: n} }

// Delete removes the field.
var Delete interface{} = deleteField{}

// applyUpdates mutates doc in place with dotted-path updates.
func applyUpdates(doc Document, updates []Update) error {
	for _, u := range updates {
		if u.Path == "" {
			return fmt.Errorf("update path is required")
		}
		parts := strings.Split(u.Path, ".")
		parent := map[string]interface{}(doc)
		for _, part := range parts[:len(parts)-1] {
			next, ok := asMap(parent[part])
			if !ok {
				next = make(map[string]interface{})
				parent[part] = next
			}
			parent = next
		}
		leaf := parts[len(parts)-1]

		switch v := u.Value.(type) {
		case deleteField:
			delete(parent, leaf)
		case increment:
			current, _ := toFloat(parent[leaf])
			if f, isFloat := parent[leaf].(float64); isFloat {
				parent[leaf] = f + float64(v.by)
			} else {
				parent[leaf] = int64(current) + v.by
			}
		case arrayUnion:
			arr, _ := parent[leaf].([]interface{})
			out := append([]interface{}(nil), arr...)
			for _, elem := range v.elems {
				elem = normalizeValue(elem)
				if !containsValue(out, elem) {
					out = append(out, elem)
				}
			}
			parent[leaf] = out
		case arrayRemove:
			arr, _ := parent[leaf].([]interface{})
			out := make([]interface{}, 0, len(arr))
			for _, elem := range arr {
				if !containsValue(v.elems, elem) {
					out = append(out, elem)
				}
			}
			parent[leaf] = out
		default:
			parent[leaf] = normalizeValue(u.Value)
		}
	}
	return nil
}

func containsValue(arr []interface{}, v interface{}) bool {
	for _, elem := range arr {
		if equalValues(elem, normalizeValue(v)) {
			return true
		}
	}
	return false
}

// normalizeValue deep-copies a value into the shapes a document database returns:
// maps become map[string]interface{}, slices []interface{}, integers int64 and
// times UTC.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case Document:
		return normalizeMap(val)
	case map[string]interface{}:
		return normalizeMap(val)
	case map[string]string:
		out := make(map[string]interface{}, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	case map[string]int:
		out := make(map[string]interface{}, len(val))
		for k, n := range val {
			out[k] = int64(n)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = normalizeValue(elem)
		}
		return out
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(val))
		for i, m := range val {
			out[i] = normalizeMap(m)
		}
		return out
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case time.Time:
		return val.UTC()
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC()
	case *string:
		if val == nil {
			return nil
		}
		return *val
	case *float64:
		if val == nil {
			return nil
		}
		return *val
	case *int:
		if val == nil {
			return nil
		}
		return int64(*val)
	}
	return v
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func cloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	return Document(normalizeMap(doc))
}
