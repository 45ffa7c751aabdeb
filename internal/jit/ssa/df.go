package ssa

import "github.com/funvibe/rbjitgo/internal/jit/ids"

// computeDF fills t.df so that t.df[x][y] holds iff block y is in
// block x's dominance frontier, grounded on
// original_source/rbjit/src/ssatranslator.cpp computeDf: for every
// block with two or more predecessors, walk each predecessor's
// dominator-tree ancestry up to (not including) the block's own
// immediate dominator, marking every block passed through along the
// way.
func (t *Translator) computeDF() {
	n := t.g.BlockCount()
	t.df = make([][]bool, n)
	for i := range t.df {
		t.df[i] = make([]bool, n)
	}

	entry := t.g.Entry()
	for i := 0; i < n; i++ {
		b := ids.BlockID(i)
		if b == entry {
			continue
		}
		preds := t.g.Block(b).Backedges()
		if len(preds) < 2 {
			continue
		}
		baseDom := t.tree.IDom(b)
		for _, pred := range preds {
			runner := pred
			for runner != baseDom && runner != ids.NoBlock {
				t.df[runner][i] = true
				runner = t.tree.IDom(runner)
			}
		}
	}
}
