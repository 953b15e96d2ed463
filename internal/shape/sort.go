package shape

import (
	"cmp"
	"reflect"
	"slices"
	"strings"
)

// Sort orders values deterministically. values of different types order by
// type name, pointers by address
func Sort(vals []reflect.Value) {
	slices.SortStableFunc(vals, Compare)
}

// SortKeys orders arbitrary comparable keys, as found in map keys & diff
// node children
func SortKeys(keys []interface{}) {
	slices.SortStableFunc(keys, func(a, b interface{}) int {
		return Compare(reflect.ValueOf(a), reflect.ValueOf(b))
	})
}

// Compare returns -1, 0 or +1 ordering a against b
func Compare(a, b reflect.Value) int {
	a, b = unwrap(a), unwrap(b)
	if !a.IsValid() || !b.IsValid() {
		switch {
		case a.IsValid():
			return 1
		case b.IsValid():
			return -1
		}
		return 0
	}
	if a.Type() != b.Type() {
		return strings.Compare(a.Type().String(), b.Type().String())
	}

	switch a.Kind() {
	case reflect.Bool:
		switch {
		case a.Bool() == b.Bool():
			return 0
		case a.Bool():
			return 1
		}
		return -1
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.Complex64, reflect.Complex128:
		if c := cmp.Compare(real(a.Complex()), real(b.Complex())); c != 0 {
			return c
		}
		return cmp.Compare(imag(a.Complex()), imag(b.Complex()))
	case reflect.String:
		return strings.Compare(a.String(), b.String())
	case reflect.Ptr, reflect.Chan, reflect.UnsafePointer, reflect.Func, reflect.Map, reflect.Slice:
		return cmp.Compare(a.Pointer(), b.Pointer())
	case reflect.Array:
		for i := 0; i < a.Len(); i++ {
			if c := Compare(a.Index(i), b.Index(i)); c != 0 {
				return c
			}
		}
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if c := Compare(a.Field(i), b.Field(i)); c != 0 {
				return c
			}
		}
	}
	return 0
}
