package objdiff

import (
	"reflect"
	"strings"
)

// EqualityFunc reports whether two values of a registered type are equal
type EqualityFunc func(a, b interface{}) bool

// DiffHandler takes over diffing a value. returning an empty node (or nil)
// means the values are equal
type DiffHandler interface {
	Diff(src, target interface{}, ctx *DiffContext) (*DiffNode, error)
}

// DiffHandlerFunc adapts a function to the DiffHandler interface
type DiffHandlerFunc func(src, target interface{}, ctx *DiffContext) (*DiffNode, error)

// Diff calls f
func (f DiffHandlerFunc) Diff(src, target interface{}, ctx *DiffContext) (*DiffNode, error) {
	return f(src, target, ctx)
}

// MergeHandler takes over applying a diff node to a value, returning the
// merged value
type MergeHandler interface {
	Merge(src interface{}, node *DiffNode, ctx *MergeContext) (interface{}, error)
}

// MergeHandlerFunc adapts a function to the MergeHandler interface
type MergeHandlerFunc func(src interface{}, node *DiffNode, ctx *MergeContext) (interface{}, error)

// Merge calls f
func (f MergeHandlerFunc) Merge(src interface{}, node *DiffNode, ctx *MergeContext) (interface{}, error) {
	return f(src, node, ctx)
}

// SelfDiffer is implemented by types that diff themselves. Diff consults it
// unless IgnoreClassDiffHandlers is enabled
type SelfDiffer interface {
	DiffAgainst(target interface{}, ctx *DiffContext) (*DiffNode, error)
}

// SelfMerger is implemented by types that apply diffs to themselves.
// ApplyDiff consults it unless IgnoreClassMergeHandlers is enabled
type SelfMerger interface {
	MergeDiff(node *DiffNode, ctx *MergeContext) (interface{}, error)
}

// DiffContext is passed to diff handlers
type DiffContext struct {
	m    *Mapper
	path []interface{}
}

// Mapper returns the Mapper running the diff
func (c *DiffContext) Mapper() *Mapper { return c.m }

// Path is the slash-separated location of the value being diffed
func (c *DiffContext) Path() string { return formatPath(c.path) }

// Diff computes a nested diff with the running Mapper
func (c *DiffContext) Diff(src, target interface{}) (*DiffNode, error) {
	return c.m.Diff(src, target)
}

// MergeContext is passed to merge handlers. it carries the strategies in
// effect for the ApplyDiff call
type MergeContext struct {
	m          *Mapper
	strategies strategySet
	root       bool
	slot       reflect.Type
	path       []interface{}
}

// Mapper returns the Mapper running the merge
func (c *MergeContext) Mapper() *Mapper { return c.m }

// IsRoot is true when the value being merged is the root of the call
func (c *MergeContext) IsRoot() bool { return c.root }

// StrategyEnabled reports whether a merge strategy is in effect
func (c *MergeContext) StrategyEnabled(s MergeStrategy) bool { return c.strategies.has(s) }

// Strategies lists the merge strategies in effect
func (c *MergeContext) Strategies() []MergeStrategy { return c.strategies.list() }

// Type is the declared type of the slot the merged value is written to. it
// is nil for the root of an untyped ApplyDiff call
func (c *MergeContext) Type() reflect.Type { return c.slot }

// Path is the slash-separated location of the value being merged
func (c *MergeContext) Path() string { return formatPath(c.path) }

// Apply applies a nested diff with the running Mapper & strategies
func (c *MergeContext) Apply(src interface{}, node *DiffNode) (interface{}, error) {
	ctx := &MergeContext{m: c.m, strategies: c.strategies, path: c.path}
	if src != nil {
		ctx.slot = reflect.TypeOf(src)
	}
	out, err := c.m.apply(reflect.ValueOf(src), node, ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MergeContext) child(key interface{}, slot reflect.Type) *MergeContext {
	path := make([]interface{}, len(c.path), len(c.path)+1)
	copy(path, c.path)
	return &MergeContext{m: c.m, strategies: c.strategies, slot: slot, path: append(path, key)}
}

// EqualityFor registers an equality function for values of type T
func EqualityFor[T any](m *Mapper, eq func(a, b T) bool) {
	m.RegisterEqualityChecker(reflect.TypeFor[T](), func(a, b interface{}) bool {
		x, _ := a.(T)
		y, _ := b.(T)
		return eq(x, y)
	})
}

// DiffHandlerFor registers a diff handler for values of type T
func DiffHandlerFor[T any](m *Mapper, fn func(src, target T, ctx *DiffContext) (*DiffNode, error)) {
	m.RegisterDiffHandler(reflect.TypeFor[T](), DiffHandlerFunc(func(src, target interface{}, ctx *DiffContext) (*DiffNode, error) {
		x, _ := src.(T)
		y, _ := target.(T)
		return fn(x, y, ctx)
	}))
}

// MergeHandlerFor registers a merge handler for values of type T
func MergeHandlerFor[T any](m *Mapper, fn func(src T, node *DiffNode, ctx *MergeContext) (T, error)) {
	m.RegisterMergeHandler(reflect.TypeFor[T](), MergeHandlerFunc(func(src interface{}, node *DiffNode, ctx *MergeContext) (interface{}, error) {
		x, _ := src.(T)
		return fn(x, node, ctx)
	}))
}

func formatPath(path []interface{}) string {
	if len(path) == 0 {
		return "/"
	}
	b := &strings.Builder{}
	for _, k := range path {
		b.WriteByte('/')
		b.WriteString(keyString(k))
	}
	return b.String()
}
