// Package traverse walks lazily-produced trees in pre-order & post-order
// without recursion. Walkers keep an explicit stack of child iterators, so
// memory is bounded by depth times the state of one iterator per level, and
// arbitrarily deep trees (a linked list thousands of nodes long, say) can be
// walked without growing the goroutine stack.
//
// Children are pulled one at a time. producers can build nodes on demand,
// and consumers can mutate external state (attaching results to a parent,
// for example) while the walk is in progress.
package traverse

import "iter"

// Node is a tree node carrying a value of type T
type Node[T any] interface {
	Value() T
	// Children returns a fresh forward-only iterator over the node's children.
	// walkers call Children exactly once per visited node
	Children() Children[T]
}

// Children is a forward-only iterator over child nodes
type Children[T any] interface {
	// Next returns the next child, or false once the children are exhausted
	Next() (Node[T], bool)
}

// Func adapts a generator function to the Children interface
type Func[T any] func() (Node[T], bool)

// Next calls f
func (f Func[T]) Next() (Node[T], bool) { return f() }

// Empty returns a Children iterator with nothing in it
func Empty[T any]() Children[T] {
	return Func[T](func() (Node[T], bool) { return nil, false })
}

// Slice returns a Children iterator over already-built nodes
func Slice[T any](nodes ...Node[T]) Children[T] {
	i := 0
	return Func[T](func() (Node[T], bool) {
		if i >= len(nodes) {
			return nil, false
		}
		n := nodes[i]
		i++
		return n, true
	})
}

// Tree is a general-purpose Node. children may be nil for a leaf
type Tree[T any] struct {
	value    T
	children func() Children[T]
}

// New creates a tree node. children is called each time the node is visited
func New[T any](value T, children func() Children[T]) *Tree[T] {
	return &Tree[T]{value: value, children: children}
}

// Leaf creates a node with no children
func Leaf[T any](value T) *Tree[T] {
	return &Tree[T]{value: value}
}

// Value implements Node
func (t *Tree[T]) Value() T { return t.value }

// Children implements Node
func (t *Tree[T]) Children() Children[T] {
	if t.children == nil {
		return Empty[T]()
	}
	return t.children()
}

// PreOrder yields each node before any of its descendants
type PreOrder[T any] struct {
	root    Node[T]
	started bool
	cur     Node[T]
	stack   []Children[T]
}

// NewPreOrder creates a pre-order walker rooted at root. a nil root yields
// nothing
func NewPreOrder[T any](root Node[T]) *PreOrder[T] {
	return &PreOrder[T]{root: root}
}

// Next advances the walker, returning false when the walk is complete
func (w *PreOrder[T]) Next() bool {
	if !w.started {
		w.started = true
		if w.root == nil {
			return false
		}
		w.cur = w.root
		w.stack = append(w.stack, w.root.Children())
		return true
	}

	for len(w.stack) > 0 {
		top := w.stack[len(w.stack)-1]
		n, ok := top.Next()
		if !ok {
			w.stack[len(w.stack)-1] = nil
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}
		w.cur = n
		w.stack = append(w.stack, n.Children())
		return true
	}
	w.cur = nil
	return false
}

// Node returns the current node
func (w *PreOrder[T]) Node() Node[T] { return w.cur }

// Value returns the current node's value
func (w *PreOrder[T]) Value() T { return w.cur.Value() }

// Depth is the current node's distance from the root
func (w *PreOrder[T]) Depth() int { return len(w.stack) - 1 }

type frame[T any] struct {
	node     Node[T]
	children Children[T]
}

// PostOrder yields each node after all of its descendants
type PostOrder[T any] struct {
	root    Node[T]
	started bool
	cur     Node[T]
	stack   []frame[T]
}

// NewPostOrder creates a post-order walker rooted at root. a nil root yields
// nothing
func NewPostOrder[T any](root Node[T]) *PostOrder[T] {
	return &PostOrder[T]{root: root}
}

// Next advances the walker, returning false when the walk is complete
func (w *PostOrder[T]) Next() bool {
	if !w.started {
		w.started = true
		if w.root == nil {
			return false
		}
		w.stack = append(w.stack, frame[T]{w.root, w.root.Children()})
	}

	for len(w.stack) > 0 {
		top := w.stack[len(w.stack)-1]
		if n, ok := top.children.Next(); ok {
			w.stack = append(w.stack, frame[T]{n, n.Children()})
			continue
		}
		w.cur = top.node
		w.stack[len(w.stack)-1] = frame[T]{}
		w.stack = w.stack[:len(w.stack)-1]
		return true
	}
	w.cur = nil
	return false
}

// Node returns the current node
func (w *PostOrder[T]) Node() Node[T] { return w.cur }

// Value returns the current node's value
func (w *PostOrder[T]) Value() T { return w.cur.Value() }

// PreOrderSeq ranges over node values in pre-order
func PreOrderSeq[T any](root Node[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for w := NewPreOrder(root); w.Next(); {
			if !yield(w.Value()) {
				return
			}
		}
	}
}

// PostOrderSeq ranges over node values in post-order
func PostOrderSeq[T any](root Node[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for w := NewPostOrder(root); w.Next(); {
			if !yield(w.Value()) {
				return
			}
		}
	}
}
