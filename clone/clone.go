// Package clone copies arbitrary Go object graphs.
//
// Deep copies allocate an empty shell for every composite value (never
// calling a constructor) and fill shells bottom-up from a post-order walk,
// so graphs of any depth clone without recursion. A pointer reached twice
// clones to a single shared copy, which also lets cyclic graphs terminate.
//
// Types may take over copying by defining DeepCopy() T or ShallowCopy() T
// methods.
package clone

import (
	"fmt"
	"reflect"
	"time"

	"github.com/pkg/errors"
	"github.com/qri-io/objdiff/internal/shape"
	"github.com/qri-io/objdiff/traverse"
)

// ErrClone is matched by every error this package returns
var ErrClone = errors.New("value cannot be cloned")

// Error reports a value with no construction path
type Error struct {
	Type   reflect.Type
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("clone %s: %s", e.Type, e.Reason)
}

// Is lets errors.Is match ErrClone
func (e *Error) Is(target error) bool { return target == ErrClone }

// Cloner copies values. the zero Cloner is ready to use
type Cloner struct {
	// Immutable reports types whose values are shared by the copy instead of
	// cloned. time.Time & types with no indirection are always shared
	Immutable func(reflect.Type) bool
}

var defaultCloner = &Cloner{}

// Deep returns a fully independent copy of v
func Deep[T any](v T) (T, error) {
	out, err := defaultCloner.DeepValue(reflect.ValueOf(&v).Elem())
	if err != nil {
		var zero T
		return zero, err
	}
	res, _ := out.Interface().(T)
	return res, nil
}

// Shallow returns a new top-level value whose immediate children are shared
// with v
func Shallow[T any](v T) (T, error) {
	out, err := defaultCloner.ShallowValue(reflect.ValueOf(&v).Elem())
	if err != nil {
		var zero T
		return zero, err
	}
	res, _ := out.Interface().(T)
	return res, nil
}

var timeType = reflect.TypeOf(time.Time{})

func (c *Cloner) shared(t reflect.Type) bool {
	if t == timeType || shape.Of(t).Flat {
		return true
	}
	return c.Immutable != nil && c.Immutable(t)
}

// ShallowValue copies the top level of v
func (c *Cloner) ShallowValue(v reflect.Value) (reflect.Value, error) {
	if !v.IsValid() {
		return v, nil
	}
	if out, ok := callCopy(v, "ShallowCopy"); ok {
		return out, nil
	}

	t := v.Type()
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return v, nil
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(v.Elem())
		return p, nil
	case reflect.Interface:
		if v.IsNil() {
			return v, nil
		}
		e, err := c.ShallowValue(v.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t).Elem()
		out.Set(e)
		return out, nil
	case reflect.Struct, reflect.Array:
		out := reflect.New(t).Elem()
		out.Set(v)
		return out, nil
	case reflect.Slice:
		if v.IsNil() {
			return v, nil
		}
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		reflect.Copy(out, v)
		return out, nil
	case reflect.Map:
		if v.IsNil() {
			return v, nil
		}
		out := reflect.MakeMapWithSize(t, v.Len())
		for it := v.MapRange(); it.Next(); {
			out.SetMapIndex(it.Key(), it.Value())
		}
		return out, nil
	case reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			return v, nil
		}
		return reflect.Value{}, &Error{Type: t, Reason: "no construction path"}
	}
	return v, nil
}

// DeepValue returns an independent copy of v
func (c *Cloner) DeepValue(v reflect.Value) (reflect.Value, error) {
	if !v.IsValid() {
		return v, nil
	}

	d := &deep{c: c, seen: map[ref]reflect.Value{}}
	out := reflect.New(v.Type()).Elem()
	root := d.task(v, out)
	for w := traverse.NewPostOrder[*task](root); w.Next(); {
		if d.err != nil {
			break
		}
		if t := w.Value(); t.done != nil {
			t.done()
		}
	}
	if d.err != nil {
		return reflect.Value{}, d.err
	}
	return out, nil
}

// task fills dst, an addressable value, with a copy of src
type task struct {
	gen  traverse.Children[*task]
	done func()
}

func (t *task) Value() *task { return t }

func (t *task) Children() traverse.Children[*task] {
	if t.gen == nil {
		return traverse.Empty[*task]()
	}
	return t.gen
}

type ref struct {
	p uintptr
	t reflect.Type
}

type deep struct {
	c    *Cloner
	seen map[ref]reflect.Value
	err  error
}

// each returns a generator creating one child task per index in [0, n)
func (d *deep) each(n int, child func(i int) *task) traverse.Func[*task] {
	i := 0
	return func() (traverse.Node[*task], bool) {
		if i >= n || d.err != nil {
			return nil, false
		}
		t := child(i)
		i++
		return t, true
	}
}

func (d *deep) task(src, dst reflect.Value) *task {
	t := &task{}
	if d.err != nil {
		return t
	}
	typ := src.Type()

	if out, ok := callCopy(src, "DeepCopy"); ok {
		dst.Set(out)
		return t
	}

	switch src.Kind() {
	case reflect.Chan, reflect.UnsafePointer:
		if !src.IsNil() {
			d.err = &Error{Type: typ, Reason: "no construction path"}
		}
		return t
	case reflect.Func:
		dst.Set(src)
		return t
	}
	if d.c.shared(typ) {
		dst.Set(src)
		return t
	}

	switch src.Kind() {
	case reflect.Ptr:
		if src.IsNil() {
			return t
		}
		key := ref{src.Pointer(), typ}
		if p, ok := d.seen[key]; ok {
			dst.Set(p)
			return t
		}
		p := reflect.New(typ.Elem())
		d.seen[key] = p
		dst.Set(p)
		elem := src.Elem()
		t.gen = d.each(1, func(int) *task { return d.task(elem, p.Elem()) })
	case reflect.Interface:
		if src.IsNil() {
			return t
		}
		elem := src.Elem()
		tmp := reflect.New(elem.Type()).Elem()
		t.gen = d.each(1, func(int) *task { return d.task(elem, tmp) })
		t.done = func() { dst.Set(tmp) }
	case reflect.Struct:
		src = shape.Addressable(src)
		t.gen = d.each(typ.NumField(), func(i int) *task {
			return d.task(shape.Expose(src.Field(i)), shape.Expose(dst.Field(i)))
		})
	case reflect.Array:
		t.gen = d.each(src.Len(), func(i int) *task {
			return d.task(src.Index(i), dst.Index(i))
		})
	case reflect.Slice:
		if src.IsNil() {
			return t
		}
		s := reflect.MakeSlice(typ, src.Len(), src.Len())
		dst.Set(s)
		t.gen = d.each(src.Len(), func(i int) *task {
			return d.task(src.Index(i), s.Index(i))
		})
	case reflect.Map:
		if src.IsNil() {
			return t
		}
		key := ref{src.Pointer(), typ}
		if m, ok := d.seen[key]; ok {
			dst.Set(m)
			return t
		}
		m := reflect.MakeMapWithSize(typ, src.Len())
		d.seen[key] = m
		dst.Set(m)

		type entry struct{ k, v reflect.Value }
		var entries []entry
		it := src.MapRange()
		t.gen = traverse.Func[*task](func() (traverse.Node[*task], bool) {
			if d.err != nil || !it.Next() {
				return nil, false
			}
			e := entry{reflect.New(typ.Key()).Elem(), reflect.New(typ.Elem()).Elem()}
			entries = append(entries, e)
			pair := &task{gen: traverse.Slice[*task](d.task(it.Key(), e.k), d.task(it.Value(), e.v))}
			return pair, true
		})
		t.done = func() {
			for _, e := range entries {
				m.SetMapIndex(e.k, e.v)
			}
		}
	default:
		dst.Set(src)
	}
	return t
}

// callCopy invokes a copy method named name if v's type defines one returning
// its own type
func callCopy(v reflect.Value, name string) (reflect.Value, bool) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return reflect.Value{}, false
		}
	}
	if v.Kind() == reflect.Interface || !v.CanInterface() {
		return reflect.Value{}, false
	}
	m := v.MethodByName(name)
	if !m.IsValid() {
		return reflect.Value{}, false
	}
	mt := m.Type()
	if mt.NumIn() != 0 || mt.NumOut() != 1 || mt.Out(0) != v.Type() {
		return reflect.Value{}, false
	}
	return m.Call(nil)[0], true
}
