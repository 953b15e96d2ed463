package objdiff

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/mitchellh/hashstructure"
	"github.com/qri-io/objdiff/internal/shape"
)

// exportAll lets go-cmp read unexported fields
var exportAll = cmp.Exporter(func(reflect.Type) bool { return true })

// equal reports whether a & b can be treated as unchanged without looking
// inside them. in order: identical references, a registered checker, the
// hash policy, then value equality for leaves & types with an Equal method.
// other composites report false, and are compared structurally by the
// differ
func (m *Mapper) equal(a, b reflect.Value) bool {
	absentA, absentB := shape.Absent(a), shape.Absent(b)
	if absentA || absentB {
		return absentA && absentB
	}
	if shape.Identical(a, b) {
		return true
	}

	if fn, v, ok := resolve(m, m.equality, a); ok {
		if w, ok := matching(v.Type(), b); ok {
			return fn(v.Interface(), w.Interface())
		}
		return false
	}

	if m.IsEnabled(EqualityUseHash) {
		if eq, ok := m.hashEqual(a, b); ok {
			return eq
		}
	}

	x, y := shape.Indirect(a), shape.Indirect(b)
	if x.Type() != y.Type() {
		return false
	}
	if m.kindOf(x.Type()) == KindLeaf || shape.Of(x.Type()).Equal {
		return cmp.Equal(x.Interface(), y.Interface(), exportAll)
	}
	return false
}

// matching follows v's pointers & interfaces until it reaches type t
func matching(t reflect.Type, v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() {
		if v.Type() == t {
			return v, true
		}
		if k := v.Kind(); (k != reflect.Ptr && k != reflect.Interface) || v.IsNil() {
			break
		}
		v = v.Elem()
	}
	return reflect.Value{}, false
}

// hashEqual compares structural hashes. ok is false if either value can't be
// hashed, leaving the decision to value equality
func (m *Mapper) hashEqual(a, b reflect.Value) (eq, ok bool) {
	x, y := shape.Indirect(a), shape.Indirect(b)
	if x.Type() != y.Type() {
		return false, true
	}
	ha, err := hashstructure.Hash(x.Interface(), &hashstructure.HashOptions{Hasher: NewHash()})
	if err != nil {
		m.log.V(2).Info("falling back to value equality", "type", x.Type().String(), "error", err)
		return false, false
	}
	hb, err := hashstructure.Hash(y.Interface(), &hashstructure.HashOptions{Hasher: NewHash()})
	if err != nil {
		m.log.V(2).Info("falling back to value equality", "type", y.Type().String(), "error", err)
		return false, false
	}
	return ha == hb, true
}

// matches reports whether a live value equals the value a diff recorded, for
// merge validation. unlike equal it always decides, comparing composites deeply
func (m *Mapper) matches(live reflect.Value, recorded interface{}) bool {
	r := reflect.ValueOf(recorded)
	absentL, absentR := shape.Absent(live), shape.Absent(r)
	if absentL || absentR {
		return absentL && absentR
	}
	if fn, v, ok := resolve(m, m.equality, live); ok {
		if w, ok := matching(v.Type(), r); ok {
			return fn(v.Interface(), w.Interface())
		}
		return false
	}
	return cmp.Equal(shape.Interface(live), recorded, exportAll)
}
