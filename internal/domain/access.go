package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Object is a decoded JSON object. Sections of a NormalizedAnalysis are
// Objects and are never nil.
type Object = map[string]any

// DefaultReason explains why a numeric coercion fell back to its default.
type DefaultReason int

const (
	ReasonNone DefaultReason = iota
	ReasonMissing
	ReasonNotNumeric
	ReasonNonFinite
)

func (r DefaultReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonMissing:
		return "missing"
	case ReasonNotNumeric:
		return "not_numeric"
	case ReasonNonFinite:
		return "non_finite"
	default:
		return "unknown"
	}
}

// SafeGet walks a dot-separated path through nested JSON objects. It returns
// def as soon as a segment is missing, null, or the current value is not an
// object. It never panics, whatever root is.
func SafeGet(root any, path string, def any) any {
	cur := root
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return def
		}
		next, ok := obj[seg]
		if !ok || next == nil {
			return def
		}
		cur = next
	}
	if cur == nil {
		return def
	}
	return cur
}

// CoerceNumber converts a decoded JSON value to a finite float64. The reason is
// ReasonNone on success; otherwise the returned value is 0 and the reason says
// why the caller's default should apply.
func CoerceNumber(v any) (float64, DefaultReason) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, ReasonMissing
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
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, ReasonNotNumeric
		}
		f = parsed
	case bool:
		if n {
			return 1, ReasonNone
		}
		return 0, ReasonNone
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, ReasonMissing
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, ReasonNotNumeric
		}
		f = parsed
	default:
		return 0, ReasonNotNumeric
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ReasonNonFinite
	}
	return f, ReasonNone
}

// SafeNumber coerces v to a finite number, returning def when it cannot.
func SafeNumber(v any, def float64) float64 {
	f, reason := CoerceNumber(v)
	if reason != ReasonNone {
		return def
	}
	return f
}

// SafeArray returns v unchanged only if it is a JSON array with at least one
// element; otherwise it returns def.
func SafeArray(v any, def []any) []any {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return def
	}
	return arr
}

// SafeObject returns v when it is a JSON object, otherwise a fresh empty Object.
func SafeObject(v any) Object {
	if obj, ok := v.(map[string]any); ok && obj != nil {
		return obj
	}
	return Object{}
}

// SafeString stringifies scalars and returns def for nil, objects, and arrays.
func SafeString(v any, def string) string {
	switch s := v.(type) {
	case nil:
		return def
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case map[string]any, []any:
		return def
	default:
		return fmt.Sprint(s)
	}
}

// IsFalsy reports whether a raw analysis payload carries nothing: nil, false,
// zero, the empty string, or a nil map/slice. Empty objects are not falsy.
func IsFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case float64:
		return x == 0 || math.IsNaN(x)
	case int:
		return x == 0
	case string:
		return x == ""
	case json.Number:
		return x.String() == "0"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
