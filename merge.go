package objdiff

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
	"github.com/qri-io/objdiff/internal/shape"
	"github.com/qri-io/objdiff/traverse"
)

// ApplyDiff applies node to src, returning the merged value. Pointers &
// maps in src are changed in place unless a merge strategy says otherwise.
// struct values & slice headers can't be changed in place, so callers should
// always use the returned value. strategies are applied on top of any the
// Mapper enables globally, for this call only
func (m *Mapper) ApplyDiff(src interface{}, node *DiffNode, strategies ...MergeStrategy) (interface{}, error) {
	if node.IsEmpty() {
		return src, nil
	}
	ctx := &MergeContext{m: m, strategies: m.strategySet(strategies), root: true}
	return m.apply(reflect.ValueOf(src), node, ctx)
}

// ApplyTo is ApplyDiff for a statically typed value. T is used as the
// declared type of the root when checking that updates fit
func ApplyTo[T any](m *Mapper, src T, node *DiffNode, strategies ...MergeStrategy) (T, error) {
	if node.IsEmpty() {
		return src, nil
	}
	ctx := &MergeContext{m: m, strategies: m.strategySet(strategies), root: true, slot: reflect.TypeFor[T]()}
	out, err := m.apply(reflect.ValueOf(&src).Elem(), node, ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	res, _ := out.(T)
	return res, nil
}

func (m *Mapper) apply(live reflect.Value, node *DiffNode, ctx *MergeContext) (out interface{}, err error) {
	if node.IsEmpty() {
		return shape.Interface(live), nil
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &MergeError{Path: formatPath(ctx.path), Reason: fmt.Sprint(r)}
		}
	}()

	a := &applier{m: m}
	root := a.frame(live, node, ctx, nil)
	if a.err != nil {
		return nil, a.err
	}
	for w := traverse.NewPostOrder[*mergeFrame](root); w.Next(); {
		if a.err != nil {
			break
		}
		a.exit(w.Value())
	}
	if a.err != nil {
		return nil, a.err
	}

	m.log.V(1).Info("applied diff", "path", formatPath(ctx.path), "strategies", ctx.Strategies())
	return shape.Interface(root.result), nil
}

// mergeFrame applies one diff node. enter logic runs when the frame is
// created, exit logic once all of its children have been applied
type mergeFrame struct {
	node  *DiffNode
	ctx   *MergeContext
	field *shape.Field

	// live is the value being merged into, base is live with pointers &
	// interfaces followed, work is the value children are applied to
	live, base, work reflect.Value
	kind             Kind
	composite        bool
	// cloned & replaced record that work is no longer base
	cloned, replaced bool

	result reflect.Value
	assign func(reflect.Value) error
	gen    traverse.Func[*mergeFrame]

	appends  []reflect.Value
	removals map[int]bool
}

func (f *mergeFrame) Value() *mergeFrame { return f }

func (f *mergeFrame) Children() traverse.Children[*mergeFrame] {
	if f.gen == nil {
		return traverse.Empty[*mergeFrame]()
	}
	return f.gen
}

type applier struct {
	m   *Mapper
	err error
}

func (a *applier) fail(f *mergeFrame, cause error, format string, args ...interface{}) {
	if a.err == nil {
		a.err = &MergeError{Path: formatPath(f.ctx.path), Reason: fmt.Sprintf(format, args...), Err: cause}
	}
}

func (a *applier) invalid(f *mergeFrame, expected interface{}, actual reflect.Value) {
	if a.err == nil {
		a.err = &MergeValidationError{Path: formatPath(f.ctx.path), Expected: expected, Actual: shape.Interface(actual)}
	}
}

// frame creates a frame & runs its enter logic
func (a *applier) frame(live reflect.Value, node *DiffNode, ctx *MergeContext, field *shape.Field) *mergeFrame {
	f := &mergeFrame{node: node, ctx: ctx, field: field, live: live}
	if a.err != nil || a.delegate(f) {
		return f
	}

	switch node.Op {
	case OpAdd, OpUpdate:
		a.replace(f)
	case OpNoop, "", OpResize:
		a.enterComposite(f)
	case OpRemove:
		if ctx.root {
			a.fail(f, nil, "cannot remove the root value")
		} else {
			a.fail(f, nil, "cannot remove a value outside of a list, set or map")
		}
	default:
		a.fail(f, nil, "unknown operation %q", node.Op)
	}
	return f
}

// exit finalises f's result & writes it into the parent
func (a *applier) exit(f *mergeFrame) {
	if f.composite {
		if f.kind == KindList {
			a.flushList(f)
		}
		switch {
		case f.cloned:
			f.result = rewrap(f.live, f.work)
		case f.replaced && f.base.CanSet():
			f.base.Set(f.work)
			f.result = f.live
		case f.replaced:
			f.result = rewrap(f.live, f.work)
		default:
			f.result = f.live
		}
	}
	if f.assign != nil && a.err == nil {
		if err := f.assign(f.result); err != nil {
			a.fail(f, err, "cannot write merged value")
		}
	}
}

// delegate hands the node to a field, class or global merge handler,
// reporting whether one took it
func (a *applier) delegate(f *mergeFrame) bool {
	var (
		h    MergeHandler
		from string
		m    = a.m
	)

	if f.field != nil && f.field.Merge != "" && !m.IsEnabled(IgnoreFieldMergeHandlers) {
		fh, ok := lookup(m, m.namedMerge, f.field.Merge)
		if !ok {
			a.fail(f, nil, "no merge handler named %q", f.field.Merge)
			return true
		}
		h, from = fh, "field"
	}
	if h == nil && !m.IsEnabled(IgnoreClassMergeHandlers) && !shape.Absent(f.live) {
		if sm, ok := f.live.Interface().(SelfMerger); ok {
			h = MergeHandlerFunc(func(_ interface{}, node *DiffNode, ctx *MergeContext) (interface{}, error) {
				return sm.MergeDiff(node, ctx)
			})
			from = "class"
		}
	}
	if h == nil && !m.IsEnabled(IgnoreGlobalMergeHandlers) {
		if gh, _, ok := resolve(m, m.mergeHandlers, f.live); ok {
			h, from = gh, "global"
		} else if gh, ok := lookup(m, m.mergeHandlers, f.ctx.slot); ok && f.ctx.slot != nil {
			h, from = gh, "global"
		} else if f.node.Next != nil {
			if gh, ok := lookup(m, m.mergeHandlers, reflect.TypeOf(f.node.Next)); ok {
				h, from = gh, "global"
			}
		}
	}
	if h == nil {
		return false
	}

	live := f.live
	if !shape.Absent(live) {
		var err error
		if live, err = a.cloneRoot(f, live); err == nil && f.ctx.StrategyEnabled(CloneCollectionsOnly) && m.kindOf(shape.Indirect(live).Type()).Collection() {
			live, err = m.cloner.ShallowValue(live)
		}
		if err != nil {
			a.fail(f, err, "cannot clone value for merge handler")
			return true
		}
	}
	m.log.V(2).Info("delegating to merge handler", "level", from, "path", formatPath(f.ctx.path))
	out, err := h.Merge(shape.Interface(live), f.node, f.ctx)
	if err != nil {
		a.fail(f, errors.Wrapf(err, "%T", h), "merge handler failed")
		return true
	}
	f.result = reflect.ValueOf(out)
	return true
}

// cloneRoot copies the root value as the context's merge strategies require
func (a *applier) cloneRoot(f *mergeFrame, live reflect.Value) (reflect.Value, error) {
	if !f.ctx.root {
		return live, nil
	}
	switch {
	case f.ctx.StrategyEnabled(CloneFullObject):
		a.m.log.V(2).Info("deep cloning root")
		return a.m.cloner.DeepValue(live)
	case f.ctx.StrategyEnabled(CloneRootOnly):
		a.m.log.V(2).Info("shallow cloning root")
		return a.m.cloner.ShallowValue(live)
	}
	return live, nil
}

// replace handles adds & updates: the node's next value becomes the result
func (a *applier) replace(f *mergeFrame) {
	next := reflect.ValueOf(f.node.Next)
	if next.IsValid() && !fits(next.Type(), f.live, f.ctx.slot) {
		a.fail(f, nil, "cannot update %s with %s", describe(f.live, f.ctx.slot), next.Type())
		return
	}
	if f.node.Op == OpUpdate && a.m.IsEnabled(ValidateSourceValue) && !a.m.matches(f.live, f.node.Prev) {
		a.invalid(f, f.node.Prev, f.live)
		return
	}
	f.result = next
}

// fits reports whether a value of type t can replace live: it must be
// assignable to live's dynamic type or the slot's declared type
func fits(t reflect.Type, live reflect.Value, slot reflect.Type) bool {
	if slot != nil && t.AssignableTo(slot) {
		return true
	}
	for live.IsValid() && live.Kind() == reflect.Interface && !live.IsNil() {
		live = live.Elem()
	}
	if live.IsValid() && live.Kind() != reflect.Interface {
		return t.AssignableTo(live.Type())
	}
	return slot == nil
}

func describe(live reflect.Value, slot reflect.Type) string {
	if v := shape.Indirect(live); v.IsValid() {
		return v.Type().String()
	}
	if slot != nil {
		return slot.String()
	}
	return "nil"
}

// enterComposite prepares a no-op or resize node for its children
func (a *applier) enterComposite(f *mergeFrame) {
	if shape.Absent(f.live) {
		if f.node.Op == OpResize {
			a.fail(f, nil, "cannot resize an absent value")
			return
		}
		f.result = f.live
		return
	}

	f.base = shape.Indirect(f.live)
	f.kind = a.m.kindOf(f.base.Type())
	if f.kind == KindLeaf {
		if f.node.Op == OpResize || len(f.node.Children) > 0 {
			a.fail(f, nil, "cannot apply changes inside %s", f.base.Type())
			return
		}
		f.result = f.live
		return
	}
	if f.node.Op == OpResize && f.kind != KindArray {
		a.fail(f, nil, "cannot resize %s", f.base.Type())
		return
	}

	live, err := a.cloneRoot(f, f.live)
	if err != nil {
		a.fail(f, err, "cannot clone root")
		return
	}
	f.live, f.base = live, shape.Indirect(live)
	f.work = f.base
	if f.node.Op != OpResize && f.ctx.StrategyEnabled(CloneCollectionsOnly) && f.kind.Collection() {
		work, err := a.m.cloner.ShallowValue(f.base)
		if err != nil {
			a.fail(f, err, "cannot clone %s", f.base.Type())
			return
		}
		f.work, f.cloned = work, true
	}
	if !writable(f.work) {
		f.work = shape.Addressable(f.work)
		f.replaced = true
	}
	f.composite = true

	switch f.kind {
	case KindArray:
		a.array(f)
	case KindList:
		a.list(f)
	case KindSet:
		a.set(f)
	case KindMap:
		a.mapping(f)
	case KindRecord:
		a.record(f)
	default:
		a.fail(f, nil, "unsupported kind %s", f.kind)
	}
}

// writable reports whether children can be applied to v without copying it
func writable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Map, reflect.Slice:
		return true
	}
	return v.CanAddr()
}

// children returns a generator over f's child nodes in key order. next
// handles one child, returning a frame to descend into or nil to move on
func (a *applier) children(f *mergeFrame, next func(key interface{}, child *DiffNode) *mergeFrame) traverse.Func[*mergeFrame] {
	keys := f.node.Keys()
	i := 0
	return func() (traverse.Node[*mergeFrame], bool) {
		for i < len(keys) && a.err == nil {
			k := keys[i]
			i++
			if c := next(k, f.node.Children[k]); c != nil && a.err == nil {
				return c, true
			}
		}
		return nil, false
	}
}

// child creates the frame for an element that will be written back with set
func (a *applier) child(f *mergeFrame, key interface{}, node *DiffNode, live reflect.Value, slot reflect.Type, field *shape.Field, set func(reflect.Value)) *mergeFrame {
	c := a.frame(live, node, f.ctx.child(key, slot), field)
	c.assign = func(v reflect.Value) error {
		x, err := valueFor(v, slot)
		if err != nil {
			return err
		}
		set(x)
		return nil
	}
	return c
}

func index(key interface{}) (int, bool) {
	i, ok := key.(int)
	return i, ok && i >= 0
}

// array applies index children to a fixed-length sequence, resizing first if
// the node says so
func (a *applier) array(f *mergeFrame) {
	if f.node.Op == OpResize {
		n, ok := f.node.Next.(int)
		if !ok || n < 0 {
			a.fail(f, nil, "invalid resize length %v", f.node.Next)
			return
		}
		if f.base.Kind() != reflect.Slice {
			a.fail(f, nil, "cannot resize array type %s", f.base.Type())
			return
		}
		if a.m.IsEnabled(ValidateSourceValue) && f.node.Prev != f.base.Len() {
			a.invalid(f, f.node.Prev, reflect.ValueOf(f.base.Len()))
			return
		}
		resized := reflect.MakeSlice(f.base.Type(), n, n)
		reflect.Copy(resized, f.work)
		f.work = resized
		if f.ctx.StrategyEnabled(CloneCollectionsOnly) {
			f.cloned = true
		} else {
			f.replaced = true
		}
	}

	work := f.work
	elem := work.Type().Elem()
	f.gen = a.children(f, func(key interface{}, node *DiffNode) *mergeFrame {
		i, ok := index(key)
		if !ok {
			a.fail(f, nil, "invalid index %v", key)
			return nil
		}
		if i >= work.Len() {
			return nil
		}
		slot := work.Index(i)
		if node.Op == OpRemove {
			slot.Set(reflect.Zero(elem))
			return nil
		}
		return a.child(f, i, node, slot, elem, nil, slot.Set)
	})
}

// list applies positional changes to a slice: updates in place, then adds
// appended in index order & removals dropped once every child is done
func (a *applier) list(f *mergeFrame) {
	work := f.work
	elem := work.Type().Elem()
	validate := a.m.IsEnabled(ValidateSourceValue)

	f.gen = a.children(f, func(key interface{}, node *DiffNode) *mergeFrame {
		i, ok := index(key)
		if !ok {
			a.fail(f, nil, "invalid index %v", key)
			return nil
		}
		if node.Op == OpAdd {
			f.appends = append(f.appends, reflect.ValueOf(node.Next))
			return nil
		}
		if i >= work.Len() {
			a.fail(f, nil, "index %d out of range for length %d", i, work.Len())
			return nil
		}
		slot := work.Index(i)
		if node.Op == OpRemove {
			if validate && !a.m.matches(slot, node.Prev) {
				a.invalid(f, node.Prev, slot)
				return nil
			}
			if f.removals == nil {
				f.removals = map[int]bool{}
			}
			f.removals[i] = true
			return nil
		}
		return a.child(f, i, node, slot, elem, nil, slot.Set)
	})
}

func (a *applier) flushList(f *mergeFrame) {
	if len(f.appends) == 0 && len(f.removals) == 0 {
		return
	}
	t := f.work.Type()
	for _, v := range f.appends {
		x, err := valueFor(v, t.Elem())
		if err != nil {
			a.fail(f, err, "cannot append to %s", t)
			return
		}
		f.work = reflect.Append(f.work, x)
	}
	if len(f.removals) > 0 {
		kept := reflect.MakeSlice(t, 0, f.work.Len()-len(f.removals))
		for i := 0; i < f.work.Len(); i++ {
			if !f.removals[i] {
				kept = reflect.Append(kept, f.work.Index(i))
			}
		}
		f.work = kept
	}
	if !f.cloned {
		f.replaced = true
	}
}

// set adds & removes elements. set children are leaves, so they're applied
// immediately
func (a *applier) set(f *mergeFrame) {
	keyType, elem := f.work.Type().Key(), f.work.Type().Elem()
	validate := a.m.IsEnabled(ValidateSourceValue)

	for _, k := range f.node.Keys() {
		node := f.node.Children[k]
		switch node.Op {
		case OpAdd, OpUpdate:
			if node.Op == OpUpdate && validate && !hasKey(f.work, reflect.ValueOf(node.Prev)) {
				a.invalid(f, node.Prev, reflect.Value{})
				return
			}
			x, err := valueFor(reflect.ValueOf(node.Next), keyType)
			if err != nil {
				a.fail(f, err, "cannot add to %s", f.work.Type())
				return
			}
			f.work.SetMapIndex(x, reflect.Zero(elem))
		case OpRemove:
			x, err := valueFor(reflect.ValueOf(node.Prev), keyType)
			if err != nil {
				a.fail(f, err, "cannot remove from %s", f.work.Type())
				return
			}
			if validate && !f.work.MapIndex(x).IsValid() {
				a.invalid(f, node.Prev, reflect.Value{})
				return
			}
			f.work.SetMapIndex(x, reflect.Value{})
		default:
			a.fail(f, nil, "cannot apply %q to a set element", node.Op)
			return
		}
	}
}

// mapping puts, deletes & descends into map entries
func (a *applier) mapping(f *mergeFrame) {
	work := f.work
	keyType, elem := work.Type().Key(), work.Type().Elem()
	validate := a.m.IsEnabled(ValidateSourceValue)

	f.gen = a.children(f, func(key interface{}, node *DiffNode) *mergeFrame {
		k, err := valueFor(reflect.ValueOf(key), keyType)
		if err != nil {
			a.fail(f, err, "invalid key %v", key)
			return nil
		}
		switch node.Op {
		case OpAdd:
			x, err := valueFor(reflect.ValueOf(node.Next), elem)
			if err != nil {
				a.fail(f, err, "cannot add to %s", work.Type())
				return nil
			}
			work.SetMapIndex(k, x)
			return nil
		case OpRemove:
			if validate && !work.MapIndex(k).IsValid() {
				a.invalid(f, node.Prev, reflect.Value{})
				return nil
			}
			work.SetMapIndex(k, reflect.Value{})
			return nil
		}

		live := work.MapIndex(k)
		if !live.IsValid() && node.Op != OpUpdate {
			a.m.log.V(2).Info("skipping change to missing map key", "key", key)
			return nil
		}
		return a.child(f, key, node, live, elem, nil, func(x reflect.Value) { work.SetMapIndex(k, x) })
	})
}

// record applies changes to struct fields by name
func (a *applier) record(f *mergeFrame) {
	work := f.work
	desc := shape.Of(work.Type())
	requireField := a.m.IsEnabled(ValidateFieldExistence)
	fieldHandlers := !a.m.IsEnabled(IgnoreFieldMergeHandlers)

	f.gen = a.children(f, func(key interface{}, node *DiffNode) *mergeFrame {
		name, ok := key.(string)
		if !ok {
			a.fail(f, nil, "invalid field key %v", key)
			return nil
		}
		fld, ok := desc.Field(name)
		if !ok || fld.Skip {
			if requireField {
				a.fail(f, nil, "%s has no field %s", work.Type(), name)
			}
			return nil
		}
		if (node.Op == OpAdd || node.Op == OpRemove) && !(fieldHandlers && fld.Merge != "") {
			a.fail(f, nil, "cannot apply %q to field %s", node.Op, name)
			return nil
		}
		return a.child(f, name, node, fld.Get(work), fld.Type, fld, func(x reflect.Value) { fld.Set(work, x) })
	})
}

// valueFor converts v for assignment to a slot of type t. the zero Value
// becomes t's zero value
func valueFor(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Zero(t), nil
	}
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if v.Kind() == reflect.Interface && !v.IsNil() && v.Elem().Type().AssignableTo(t) {
		return v.Elem(), nil
	}
	return reflect.Value{}, errors.Errorf("cannot assign %s to %s", v.Type(), t)
}

// rewrap rebuilds live's chain of pointers around a replacement for the
// value at the bottom of it
func rewrap(live, inner reflect.Value) reflect.Value {
	var ptrs []reflect.Type
	for v := live; v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) && !v.IsNil(); v = v.Elem() {
		if v.Kind() == reflect.Ptr {
			ptrs = append(ptrs, v.Type())
		}
	}
	cur := inner
	for i := len(ptrs) - 1; i >= 0; i-- {
		p := reflect.New(ptrs[i].Elem())
		p.Elem().Set(cur)
		cur = p
	}
	return cur
}
