// Package props reads loosely-typed GeoJSON property values.
package props

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// String renders v as trimmed text; nil and empty become "".
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Float reads numbers, numeric strings and Colombian-formatted amounts
// ("$ 1.200.000,50", "45,5%").
func Float(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		return parseNumber(t)
	default:
		return 0, false
	}
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return 0, false
	}
	switch {
	case strings.Contains(s, ","):
		// es-CO: "." groups thousands, "," is the decimal mark
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1 || thousandsDots(s):
		s = strings.ReplaceAll(s, ".", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// thousandsDots reports a single dot followed by exactly three digits after
// a leading group of 1..3 digits, e.g. "1.200".
func thousandsDots(s string) bool {
	i := strings.IndexByte(s, '.')
	if i <= 0 || i > 4 || strings.Count(s, ".") != 1 {
		return false
	}
	head := strings.TrimPrefix(s[:i], "-")
	tail := s[i+1:]
	if head == "0" || len(tail) != 3 {
		return false
	}
	for _, r := range head + tail {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// First returns the first non-empty value among the aliased keys.
func First(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func FirstString(m map[string]any, keys ...string) string {
	v, _ := First(m, keys...)
	return String(v)
}

func FirstFloat(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if f, ok := Float(v); ok {
			return &f
		}
	}
	return nil
}
