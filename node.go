package objdiff

import (
	"github.com/qri-io/objdiff/internal/shape"
	"github.com/qri-io/objdiff/traverse"
	"github.com/samber/lo"
)

// Operation defines the kind of change an Entry records
type Operation string

const (
	// OpNoop marks a node that is unchanged itself, but may have changed
	// children
	OpNoop = Operation(" ")
	// OpAdd introduces a value that didn't exist in the source
	OpAdd = Operation("+")
	// OpUpdate replaces a value wholesale
	OpUpdate = Operation("~")
	// OpRemove deletes a value present in the source
	OpRemove = Operation("-")
	// OpResize changes the length of a fixed-length sequence. Prev & Next
	// hold the old & new lengths as ints
	OpResize = Operation("#")
)

// Entry is the change recorded at a single node. OpUpdate carries both
// values, OpAdd only Next, OpRemove only Prev
type Entry struct {
	Op   Operation
	Prev interface{}
	Next interface{}
}

// DiffNode is one node of a diff tree. children are keyed by struct field
// name, sequence index, map key, or a synthetic index for set elements
type DiffNode struct {
	Entry
	Children map[interface{}]*DiffNode
}

// NewDiffNode creates a node holding e
func NewDiffNode(e Entry) *DiffNode {
	return &DiffNode{Entry: e}
}

// Unchanged returns a no-op node, for use as the parent of changed children
func Unchanged() *DiffNode { return NewDiffNode(Entry{Op: OpNoop}) }

// Added returns a node recording the introduction of next
func Added(next interface{}) *DiffNode { return NewDiffNode(Entry{Op: OpAdd, Next: next}) }

// Removed returns a node recording the deletion of prev
func Removed(prev interface{}) *DiffNode { return NewDiffNode(Entry{Op: OpRemove, Prev: prev}) }

// Updated returns a node recording prev being replaced by next
func Updated(prev, next interface{}) *DiffNode {
	return NewDiffNode(Entry{Op: OpUpdate, Prev: prev, Next: next})
}

// Resized returns a node recording a fixed-length sequence changing length
func Resized(from, to int) *DiffNode {
	return NewDiffNode(Entry{Op: OpResize, Prev: from, Next: to})
}

// IsEmpty is true when n records no change at all
func (n *DiffNode) IsEmpty() bool {
	return n == nil || ((n.Op == OpNoop || n.Op == "") && len(n.Children) == 0)
}

// Child returns the child at key, or nil
func (n *DiffNode) Child(key interface{}) *DiffNode {
	if n == nil {
		return nil
	}
	return n.Children[key]
}

// SetChild attaches c at key, replacing any existing child
func (n *DiffNode) SetChild(key interface{}, c *DiffNode) {
	if n.Children == nil {
		n.Children = map[interface{}]*DiffNode{}
	}
	n.Children[key] = c
}

// Keys returns the node's child keys in a deterministic order: numbers
// ascending, strings lexically
func (n *DiffNode) Keys() []interface{} {
	if n == nil || len(n.Children) == 0 {
		return nil
	}
	keys := lo.Keys(n.Children)
	shape.SortKeys(keys)
	return keys
}

// nodeRef positions a DiffNode within its tree for walking
type nodeRef struct {
	parent *DiffNode
	key    interface{}
	node   *DiffNode
}

func (r nodeRef) Value() nodeRef { return r }

func (r nodeRef) Children() traverse.Children[nodeRef] {
	keys := r.node.Keys()
	i := 0
	return traverse.Func[nodeRef](func() (traverse.Node[nodeRef], bool) {
		if i >= len(keys) {
			return nil, false
		}
		k := keys[i]
		i++
		return nodeRef{parent: r.node, key: k, node: r.node.Children[k]}, true
	})
}

// prune drops empty subtrees from n, bottom-up
func prune(n *DiffNode) {
	for r := range traverse.PostOrderSeq[nodeRef](nodeRef{node: n}) {
		if len(r.node.Children) == 0 {
			r.node.Children = nil
		}
		if r.parent != nil && r.node.IsEmpty() {
			delete(r.parent.Children, r.key)
		}
	}
}
