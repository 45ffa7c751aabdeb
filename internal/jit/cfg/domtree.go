package cfg

import "github.com/funvibe/rbjitgo/internal/jit/ids"

// DomTree is the dominator tree, stored out-of-line as parallel arrays
// indexed by block index (spec §4.2 "Derived product", §9: "Dominator
// tree arrays are parallel to the block arena"). It is pure data; the
// dom package computes the immediate-dominator array this is built
// from, so that package can depend on cfg without cfg depending back
// on it.
type DomTree struct {
	idom        []ids.BlockID
	firstChild  []ids.BlockID
	nextSibling []ids.BlockID
	parent      []ids.BlockID
}

// NewDomTree builds a DomTree from an immediate-dominator array indexed
// by block index; idom[entry] should be ids.NoBlock.
func NewDomTree(idom []ids.BlockID) *DomTree {
	n := len(idom)
	t := &DomTree{
		idom:        append([]ids.BlockID(nil), idom...),
		firstChild:  make([]ids.BlockID, n),
		nextSibling: make([]ids.BlockID, n),
		parent:      append([]ids.BlockID(nil), idom...),
	}
	for i := range t.firstChild {
		t.firstChild[i] = ids.NoBlock
		t.nextSibling[i] = ids.NoBlock
	}
	// Children are linked in reverse block-index order so that
	// iterating firstChild/nextSibling visits them in increasing index
	// order, which keeps dumps and tests deterministic.
	for b := n - 1; b >= 0; b-- {
		p := idom[b]
		if p == ids.NoBlock {
			continue
		}
		t.nextSibling[b] = t.firstChild[p]
		t.firstChild[p] = ids.BlockID(b)
	}
	return t
}

func (t *DomTree) IDom(b ids.BlockID) ids.BlockID { return t.idom[b] }
func (t *DomTree) Parent(b ids.BlockID) ids.BlockID { return t.parent[b] }
func (t *DomTree) FirstChild(b ids.BlockID) ids.BlockID { return t.firstChild[b] }
func (t *DomTree) NextSibling(b ids.BlockID) ids.BlockID { return t.nextSibling[b] }

// Children returns b's immediate dominator-tree children.
func (t *DomTree) Children(b ids.BlockID) []ids.BlockID {
	var out []ids.BlockID
	for c := t.firstChild[b]; c != ids.NoBlock; c = t.nextSibling[c] {
		out = append(out, c)
	}
	return out
}

// Dominates reports whether a dominates b (reflexively).
func (t *DomTree) Dominates(a, b ids.BlockID) bool {
	for cur := b; ; cur = t.idom[cur] {
		if cur == a {
			return true
		}
		if cur == ids.NoBlock {
			return false
		}
	}
}

// Size returns the number of blocks the tree was built over.
func (t *DomTree) Size() int { return len(t.idom) }
