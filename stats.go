package objdiff

import "github.com/qri-io/objdiff/traverse"

// Stats holds statistical metadata about a diff
type Stats struct {
	Nodes   int `json:"nodes"`             // count of nodes in the diff tree, including the root
	Adds    int `json:"adds,omitempty"`    // number of values added
	Updates int `json:"updates,omitempty"` // number of values replaced
	Removes int `json:"removes,omitempty"` // number of values removed
	Resizes int `json:"resizes,omitempty"` // number of fixed-length sequences resized
}

// NodeChange returns the shift in element count between source & target
func (s Stats) NodeChange() int {
	return s.Adds - s.Removes
}

// Changes is the total number of recorded changes
func (s Stats) Changes() int {
	return s.Adds + s.Updates + s.Removes + s.Resizes
}

func (s *Stats) collect(n *DiffNode) {
	for r := range traverse.PreOrderSeq[nodeRef](nodeRef{node: n}) {
		s.Nodes++
		switch r.node.Op {
		case OpAdd:
			s.Adds++
		case OpUpdate:
			s.Updates++
		case OpRemove:
			s.Removes++
		case OpResize:
			s.Resizes++
		}
	}
}

// CalcStats counts the nodes & changes in a diff tree
func CalcStats(n *DiffNode) *Stats {
	s := &Stats{}
	if n != nil {
		s.collect(n)
	}
	return s
}
