package model

import (
	"iter"
	"reflect"
)

// NormalizeItems flattens a callback's return value into a slice of work
// items. A bare value becomes a one-element slice, so dispatch never has to
// distinguish single results from sequences.
func NormalizeItems(v any) []any {
	switch items := v.(type) {
	case nil:
		return nil
	case []any:
		return items
	case iter.Seq[any]:
		var out []any
		for item := range items {
			out = append(out, item)
		}
		return out
	default:
		return []any{v}
	}
}

// IsDataRecord reports whether v is an admissible data record: a map, a
// struct, or a pointer to one. Requests are not data records, and scalar
// values in the work stream indicate a programming error upstream.
func IsDataRecord(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.(*Request); ok {
		return false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Struct:
		return true
	default:
		return false
	}
}
