package objdiff

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
	"github.com/qri-io/objdiff/internal/shape"
	"github.com/qri-io/objdiff/traverse"
)

// Diff computes a tree of changes that turns src into target. values that
// are reference-identical or equal produce an empty node. Diff returns a
// *DiffError if the values contain structurally incomparable parts, like a
// map where target has a slice
func (m *Mapper) Diff(src, target interface{}) (node *DiffNode, err error) {
	defer func() {
		if r := recover(); r != nil {
			node, err = nil, &DiffError{Path: "/", Reason: fmt.Sprint(r)}
		}
	}()

	d := &differ{m: m}
	node = Unchanged()
	visited := 0
	if root := d.visit(nil, nil, reflect.ValueOf(src), reflect.ValueOf(target)); root != nil {
		for w := traverse.NewPreOrder[*diffFrame](root); w.Next() && d.err == nil; {
			visited++
		}
		node = root.node
	}
	if d.err != nil {
		return nil, d.err
	}
	prune(node)

	if m.stats != nil {
		*m.stats = Stats{}
		m.stats.collect(node)
	}
	m.log.V(1).Info("computed diff", "visited", visited, "empty", node.IsEmpty())
	return node, nil
}

// diffFrame is a node of the lazily-built comparison tree. building a
// frame's children attaches their diff nodes to the frame's node
type diffFrame struct {
	parent *diffFrame
	key    interface{}
	node   *DiffNode
	gen    traverse.Func[*diffFrame]
}

func (f *diffFrame) Value() *diffFrame { return f }

func (f *diffFrame) Children() traverse.Children[*diffFrame] {
	if f.gen == nil {
		return traverse.Empty[*diffFrame]()
	}
	return f.gen
}

func (f *diffFrame) path() []interface{} {
	var keys []interface{}
	for ; f != nil && f.parent != nil; f = f.parent {
		keys = append(keys, f.key)
	}
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

type differ struct {
	m   *Mapper
	err error
}

func (d *differ) fail(f *diffFrame, cause error, format string, args ...interface{}) {
	if d.err == nil {
		d.err = &DiffError{Path: formatPath(f.path()), Reason: fmt.Sprintf(format, args...), Err: cause}
	}
}

// visit compares src & target at key below parent, returning nil if they are
// equal or an error occurred
func (d *differ) visit(parent *diffFrame, key interface{}, src, target reflect.Value) *diffFrame {
	if d.err != nil || d.m.equal(src, target) {
		return nil
	}
	f := &diffFrame{parent: parent, key: key}
	d.build(f, src, target)
	if d.err != nil || f.node == nil {
		return nil
	}
	return d.attach(f)
}

// attach links f's node into its parent's node
func (d *differ) attach(f *diffFrame) *diffFrame {
	if f.parent != nil {
		f.parent.node.SetChild(f.key, f.node)
	}
	return f
}

// leaf attaches a node that needs no further comparison
func (d *differ) leaf(parent *diffFrame, key interface{}, n *DiffNode) *diffFrame {
	return d.attach(&diffFrame{parent: parent, key: key, node: n})
}

// build sets f's node entry & child generator
func (d *differ) build(f *diffFrame, src, target reflect.Value) {
	if shape.Absent(src) || shape.Absent(target) {
		f.node = Updated(present(src), present(target))
		return
	}
	if d.delegate(f, src, target) {
		return
	}

	a, b := shape.Indirect(src), shape.Indirect(target)
	ka, kb := d.m.kindOf(a.Type()), d.m.kindOf(b.Type())
	if ka == KindLeaf || kb == KindLeaf {
		f.node = Updated(src.Interface(), target.Interface())
		return
	}
	if ka != kb {
		d.fail(f, nil, "cannot compare %s (%s) with %s (%s)", a.Type(), ka, b.Type(), kb)
		return
	}

	switch ka {
	case KindArray:
		if a.Type() != b.Type() {
			d.fail(f, nil, "cannot compare arrays of type %s and %s", a.Type(), b.Type())
			return
		}
		f.node = Unchanged()
		if a.Len() != b.Len() {
			f.node = Resized(a.Len(), b.Len())
		}
		f.gen = d.sequence(f, a, b)
	case KindList:
		f.node = Unchanged()
		f.gen = d.sequence(f, a, b)
	case KindSet:
		f.node = Unchanged()
		f.gen = d.set(f, a, b)
	case KindMap:
		f.node = Unchanged()
		f.gen = d.mapping(f, a, b)
	case KindRecord:
		if a.Type() != b.Type() {
			d.fail(f, nil, "cannot compare records of type %s and %s", a.Type(), b.Type())
			return
		}
		f.node = Unchanged()
		f.gen = d.record(f, a, b)
	default:
		d.fail(f, nil, "unsupported kind %s", ka)
	}
}

// delegate hands the comparison to a class-level or global handler,
// reporting whether one took it
func (d *differ) delegate(f *diffFrame, src, target reflect.Value) bool {
	var (
		h    DiffHandler
		x, y reflect.Value
		from string
	)
	if !d.m.IsEnabled(IgnoreClassDiffHandlers) {
		if sd, ok := src.Interface().(SelfDiffer); ok {
			h, x, y, from = DiffHandlerFunc(func(_, target interface{}, ctx *DiffContext) (*DiffNode, error) {
				return sd.DiffAgainst(target, ctx)
			}), src, target, "class"
		}
	}
	if h == nil && !d.m.IsEnabled(IgnoreGlobalDiffHandlers) {
		if gh, v, ok := resolve(d.m, d.m.diffHandlers, src); ok {
			if w, ok := matching(v.Type(), target); ok {
				h, x, y, from = gh, v, w, "global"
			}
		}
	}
	if h == nil {
		return false
	}

	d.m.log.V(2).Info("delegating to diff handler", "level", from, "type", x.Type().String())
	d.run(f, h, x.Interface(), y.Interface())
	return true
}

// run calls a handler, storing its result as f's node
func (d *differ) run(f *diffFrame, h DiffHandler, src, target interface{}) {
	ctx := &DiffContext{m: d.m, path: f.path()}
	n, err := h.Diff(src, target, ctx)
	if err != nil {
		d.fail(f, errors.Wrapf(err, "%T", h), "diff handler failed")
		return
	}
	if !n.IsEmpty() {
		f.node = n
	}
}

// sequence compares arrays & lists position by position
func (d *differ) sequence(f *diffFrame, a, b reflect.Value) traverse.Func[*diffFrame] {
	la, lb := a.Len(), b.Len()
	n := max(la, lb)
	i := 0
	return func() (traverse.Node[*diffFrame], bool) {
		for i < n && d.err == nil {
			idx := i
			i++
			switch {
			case idx < la && idx < lb:
				if c := d.visit(f, idx, a.Index(idx), b.Index(idx)); c != nil {
					return c, true
				}
			case idx < lb:
				return d.leaf(f, idx, Added(present(b.Index(idx)))), true
			default:
				return d.leaf(f, idx, Removed(present(a.Index(idx)))), true
			}
		}
		return nil, false
	}
}

// set compares set membership. children are keyed by their position in the
// sorted union of both sets
func (d *differ) set(f *diffFrame, a, b reflect.Value) traverse.Func[*diffFrame] {
	union := unionKeys(a, b)
	i, key := 0, 0
	return func() (traverse.Node[*diffFrame], bool) {
		for i < len(union) && d.err == nil {
			k := union[i]
			i++
			inA, inB := hasKey(a, k), hasKey(b, k)
			if inA && inB {
				continue
			}
			n := Added(k.Interface())
			if inA {
				n = Removed(k.Interface())
			}
			key++
			return d.leaf(f, key-1, n), true
		}
		return nil, false
	}
}

// mapping compares the union of two maps' keys
func (d *differ) mapping(f *diffFrame, a, b reflect.Value) traverse.Func[*diffFrame] {
	union := unionKeys(a, b)
	i := 0
	return func() (traverse.Node[*diffFrame], bool) {
		for i < len(union) && d.err == nil {
			k := union[i]
			i++
			va, vb := mapIndex(a, k), mapIndex(b, k)
			switch {
			case va.IsValid() && vb.IsValid():
				if c := d.visit(f, k.Interface(), va, vb); c != nil {
					return c, true
				}
			case vb.IsValid():
				return d.leaf(f, k.Interface(), Added(present(vb))), true
			default:
				return d.leaf(f, k.Interface(), Removed(present(va))), true
			}
		}
		return nil, false
	}
}

// record compares struct fields in declaration order
func (d *differ) record(f *diffFrame, a, b reflect.Value) traverse.Func[*diffFrame] {
	a, b = shape.Addressable(a), shape.Addressable(b)
	fields := shape.Of(a.Type()).Fields
	ignoreTransient := d.m.IsEnabled(IgnoreTransient)
	ignoreUnexported := d.m.IsEnabled(IgnoreUnexported)
	useFieldHandlers := !d.m.IsEnabled(IgnoreFieldDiffHandlers)
	i := 0

	return func() (traverse.Node[*diffFrame], bool) {
		for i < len(fields) && d.err == nil {
			fld := &fields[i]
			i++
			if fld.Skip || (ignoreTransient && fld.Transient) || (ignoreUnexported && !fld.Exported) {
				continue
			}
			fa, fb := fld.Get(a), fld.Get(b)

			if useFieldHandlers && fld.Diff != "" {
				c := &diffFrame{parent: f, key: fld.Name}
				h, ok := lookup(d.m, d.m.namedDiff, fld.Diff)
				if !ok {
					d.fail(c, nil, "no diff handler named %q", fld.Diff)
					return nil, false
				}
				d.run(c, h, fa.Interface(), fb.Interface())
				if d.err != nil || c.node == nil {
					continue
				}
				return d.attach(c), true
			}

			if c := d.visit(f, fld.Name, fa, fb); c != nil {
				return c, true
			}
		}
		return nil, false
	}
}

// present returns v's interface value, or nil for absent values
func present(v reflect.Value) interface{} {
	if shape.Absent(v) {
		return nil
	}
	return v.Interface()
}

func unionKeys(a, b reflect.Value) []reflect.Value {
	keys := a.MapKeys()
	for _, k := range b.MapKeys() {
		if !hasKey(a, k) {
			keys = append(keys, k)
		}
	}
	shape.Sort(keys)
	return keys
}

// mapIndex is MapIndex that tolerates keys of a different type
func mapIndex(m, k reflect.Value) reflect.Value {
	kt := m.Type().Key()
	if !k.Type().AssignableTo(kt) {
		if k.Kind() != reflect.Interface || k.IsNil() || !k.Elem().Type().AssignableTo(kt) {
			return reflect.Value{}
		}
		k = k.Elem()
	}
	return m.MapIndex(k)
}

func hasKey(m, k reflect.Value) bool {
	return mapIndex(m, k).IsValid()
}
