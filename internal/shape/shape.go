// Package shape classifies Go types into the structural kinds objdiff walks,
// and caches per-type field descriptors so reflection happens once per type
package shape

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
	"unsafe"
)

// Kind is the structural category of a type
type Kind uint8

const (
	// Invalid marks pointers & interfaces, which must be dereferenced before
	// they can be classified
	Invalid Kind = iota
	// Leaf values are compared and replaced whole
	Leaf
	// Array is a fixed-length sequence: a Go array, or a slice registered as one
	Array
	// List is an ordered, growable sequence
	List
	// Set is a map whose element type is an empty struct
	Set
	// Map is any other map
	Map
	// Record is a struct
	Record
)

var kindNames = [...]string{"invalid", "leaf", "array", "list", "set", "map", "record"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Collection reports whether k is one of the container kinds
func (k Kind) Collection() bool {
	return k == Array || k == List || k == Set || k == Map
}

// TagName is the struct tag key field options are read from
const TagName = "objdiff"

// Options are the per-field settings declared in a struct tag, eg:
//
//	Created time.Time `objdiff:"diff=unixmilli,merge=unixmilli"`
//	cache   []byte    `objdiff:"transient"`
//	Secret  string    `objdiff:"-"`
type Options struct {
	Skip      bool
	Transient bool
	Diff      string
	Merge     string
}

// ParseTag reads field options from the value of an objdiff struct tag.
// unknown options are ignored
func ParseTag(tag string) Options {
	var o Options
	if tag == "-" {
		o.Skip = true
		return o
	}
	for _, part := range strings.Split(tag, ",") {
		key, val, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "transient":
			o.Transient = true
		case "diff":
			o.Diff = val
		case "merge":
			o.Merge = val
		}
	}
	return o
}

// Field describes one struct field
type Field struct {
	Name     string
	Index    int
	Type     reflect.Type
	Exported bool
	Options
}

// Get returns the field's value from struct v. unexported fields are only
// readable when v is addressable
func (f *Field) Get(v reflect.Value) reflect.Value {
	return Expose(v.Field(f.Index))
}

// Set assigns x to the field of addressable struct v
func (f *Field) Set(v, x reflect.Value) {
	Expose(v.Field(f.Index)).Set(x)
}

// Type is a cached descriptor for a reflect.Type
type Type struct {
	reflect.Type
	Kind   Kind
	Fields []Field
	// Flat types hold no pointers, maps, slices, interfaces, funcs or
	// channels, so assignment is a deep copy
	Flat bool
	// Equal is true when the type has an Equal(T) bool method
	Equal bool

	byName map[string]int
}

// Field looks up a field descriptor by name
func (t *Type) Field(name string) (*Field, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return &t.Fields[i], true
}

var cache sync.Map

// Of returns the descriptor for t, building & caching it on first use
func Of(t reflect.Type) *Type {
	if d, ok := cache.Load(t); ok {
		return d.(*Type)
	}
	d, _ := cache.LoadOrStore(t, describe(t))
	return d.(*Type)
}

var timeType = reflect.TypeOf(time.Time{})

func describe(t reflect.Type) *Type {
	d := &Type{Type: t, Kind: defaultKind(t), Equal: hasEqual(t)}

	switch t.Kind() {
	case reflect.Struct:
		d.byName = make(map[string]int, t.NumField())
		d.Flat = true
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !Of(sf.Type).Flat {
				d.Flat = false
			}
			if sf.Name == "_" {
				continue
			}
			d.byName[sf.Name] = len(d.Fields)
			d.Fields = append(d.Fields, Field{
				Name:     sf.Name,
				Index:    i,
				Type:     sf.Type,
				Exported: sf.IsExported(),
				Options:  ParseTag(sf.Tag.Get(TagName)),
			})
		}
	case reflect.Array:
		d.Flat = Of(t.Elem()).Flat
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		d.Flat = false
	default:
		d.Flat = true
	}
	return d
}

func defaultKind(t reflect.Type) Kind {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface:
		return Invalid
	case reflect.Array:
		return Array
	case reflect.Slice:
		return List
	case reflect.Map:
		if e := t.Elem(); e.Kind() == reflect.Struct && e.NumField() == 0 {
			return Set
		}
		return Map
	case reflect.Struct:
		if t == timeType {
			return Leaf
		}
		return Record
	default:
		return Leaf
	}
}

// hasEqual mirrors the method go-cmp looks for: (T) Equal(T) bool
func hasEqual(t reflect.Type) bool {
	m, ok := t.MethodByName("Equal")
	if !ok {
		return false
	}
	ft := m.Type
	return ft.NumIn() == 2 && ft.NumOut() == 1 &&
		ft.Out(0).Kind() == reflect.Bool && t.AssignableTo(ft.In(1))
}

// Expose returns a usable view of v, lifting the read-only flag reflect puts
// on values reached through unexported fields. v must be addressable for the
// lift to happen, otherwise v is returned as-is
func Expose(v reflect.Value) reflect.Value {
	if v.CanInterface() || !v.CanAddr() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}

// Addressable returns v if it is addressable, or an addressable copy
func Addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	return c
}

// Indirect follows pointers & interfaces to the value underneath, returning
// the zero Value if a nil is reached along the way
func Indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// Absent reports whether v represents no value: invalid, or a nil pointer,
// interface, map, slice, func or channel
func Absent(v reflect.Value) bool {
	v = Indirect(v)
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return v.IsNil()
	}
	return false
}

// Identical reports whether a & b are the same reference: equal non-nil
// pointers, maps sharing storage, or slices sharing a backing array & length
func Identical(a, b reflect.Value) bool {
	a, b = unwrap(a), unwrap(b)
	if !a.IsValid() || !b.IsValid() || a.Type() != b.Type() {
		return false
	}
	switch a.Kind() {
	case reflect.Ptr, reflect.Map, reflect.UnsafePointer:
		return !a.IsNil() && a.Pointer() == b.Pointer()
	case reflect.Slice:
		return !a.IsNil() && a.Pointer() == b.Pointer() && a.Len() == b.Len()
	}
	return false
}

func unwrap(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// Interface is v.Interface(), with the zero Value mapping to nil
func Interface(v reflect.Value) interface{} {
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}
