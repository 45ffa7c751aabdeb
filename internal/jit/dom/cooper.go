package dom

import (
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
)

// cooperDominators computes immediate dominators by the iterative
// reverse-postorder fixed-point algorithm (Cooper, Harvey & Kennedy),
// grounded on
// original_source/rbjit/include/rbjit/cooperdominatorfinder.h and
// src/cooperdominatorfinder.cpp. It exists solely to cross-check
// ltFinder under jitconfig.CrossCheckDominators; production builds
// never call it.
func cooperDominators(g *cfg.CFG) []ids.BlockID {
	n := g.BlockCount()
	dfnum := make([]int, n)
	visited := make([]bool, n)
	postorder := make([]ids.BlockID, 0, n)

	var visit func(b ids.BlockID)
	counter := 0
	visit = func(b ids.BlockID) {
		if visited[b] {
			return
		}
		visited[b] = true
		dfnum[b] = counter
		counter++
		if term := g.Block(b).Terminator(); term != nil {
			for _, s := range term.Successors() {
				visit(s)
			}
		}
		postorder = append(postorder, b)
	}
	entry := g.Entry()
	visit(entry)

	idom := make([]ids.BlockID, n)
	for i := range idom {
		idom[i] = ids.NoBlock
	}

	intersect := func(b1, b2 ids.BlockID) ids.BlockID {
		for b1 != b2 {
			for dfnum[b1] > dfnum[b2] {
				b1 = idom[b1]
			}
			for dfnum[b2] > dfnum[b1] {
				b2 = idom[b2]
			}
		}
		return b1
	}

	changed := true
	for changed {
		changed = false
		for i := len(postorder) - 1; i >= 0; i-- {
			b := postorder[i]
			if b == entry {
				continue
			}
			preds := g.Block(b).Backedges()
			if len(preds) == 0 {
				continue
			}
			newIdom := preds[0]
			for _, p := range preds {
				if idom[p] != ids.NoBlock {
					newIdom = intersect(p, newIdom)
				}
			}
			if idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return idom
}
