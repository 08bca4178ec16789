package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RawRecord is an untyped record as decoded from an upstream JSON payload.
// Accessors never panic: a missing key, a null value and a value of the wrong
// type all report absence.
type RawRecord map[string]any

// Has reports whether key is present with a non-null value.
func (r RawRecord) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Float returns the numeric value stored under key.
// Numeric strings are accepted; NaN and Inf are treated as absent.
func (r RawRecord) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	return toFloat(v)
}

// String returns the value under key rendered as a string.
// Numbers are formatted without a trailing fraction so an id of 2269 yields "2269".
func (r RawRecord) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case bool:
		return strconv.FormatBool(s), true
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}

// StringOr returns the string under key, or def when absent.
func (r RawRecord) StringOr(key, def string) string {
	if s, ok := r.String(key); ok {
		return s
	}
	return def
}

// Bool returns the boolean under key; anything else is false.
func (r RawRecord) Bool(key string) bool {
	b, ok := r[key].(bool)
	return ok && b
}

// Strings returns the string elements of the list under key in order.
// Non-string elements are skipped. The result is never nil.
func (r RawRecord) Strings(key string) []string {
	out := []string{}
	switch list := r[key].(type) {
	case []string:
		out = append(out, list...)
	case []any:
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// Record returns the nested object under key.
func (r RawRecord) Record(key string) (RawRecord, bool) {
	switch m := r[key].(type) {
	case map[string]any:
		return RawRecord(m), true
	case RawRecord:
		return m, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
