package documents

import (
	"math"
	"strconv"
	"time"
)

// The readers below are lenient: a wrong or missing type yields the zero value.

func str(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

func boolean(m map[string]interface{}, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func number(v interface{}) (float64, bool) {
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
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func integer(m map[string]interface{}, key string) int {
	f, _ := number(m[key])
	return int(math.Floor(f))
}

func float(m map[string]interface{}, key string) (float64, bool) {
	return number(m[key])
}

func floatPtr(m map[string]interface{}, key string) *float64 {
	if f, ok := number(m[key]); ok {
		return &f
	}
	return nil
}

// instant accepts native times, RFC 3339 strings and Unix milliseconds.
func instant(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		if t == "" {
			return time.Time{}, false
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	case map[string]interface{}:
		// Serialized timestamps written by a JSON export.
		if secs, ok := number(t["seconds"]); ok {
			nanos, _ := number(t["nanoseconds"])
			return time.Unix(int64(secs), int64(nanos)).UTC(), true
		}
	}
	if ms, ok := number(v); ok {
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	return time.Time{}, false
}

func timeValue(m map[string]interface{}, key string) time.Time {
	t, _ := instant(m[key])
	return t
}

func timePtr(m map[string]interface{}, key string) *time.Time {
	if t, ok := instant(m[key]); ok {
		return &t
	}
	return nil
}

func mapValue(m map[string]interface{}, key string) (map[string]interface{}, bool) {
	v, ok := m[key].(map[string]interface{})
	return v, ok && v != nil
}

func slice(m map[string]interface{}, key string) []interface{} {
	switch v := m[key].(type) {
	case []interface{}:
		return v
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return nil
}

func stringSlice(m map[string]interface{}, key string) []string {
	raw := slice(m, key)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringMap(m map[string]interface{}, key string) map[string]string {
	raw, _ := mapValue(m, key)
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func intMap(m map[string]interface{}, key string) map[string]int {
	raw, _ := mapValue(m, key)
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		if f, ok := number(v); ok {
			out[k] = int(f)
		}
	}
	return out
}

func optionalTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
