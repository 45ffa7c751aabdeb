package dom

import (
	"fmt"

	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/jitconfig"
)

// MismatchError reports a block whose Lengauer-Tarjan and Cooper
// immediate dominators disagree, surfaced only when
// jitconfig.CrossCheckDominators is set.
type MismatchError struct {
	Block      ids.BlockID
	LTIdom     ids.BlockID
	CooperIdom ids.BlockID
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("dominator mismatch at block %d: lengauer-tarjan=%d cooper=%d", e.Block, e.LTIdom, e.CooperIdom)
}

// Compute runs the dominator finder over g and attaches the resulting
// tree to g (spec §4.2). It is idempotent: calling it again after a
// mutation recomputes from scratch, since CFG mutation primitives
// invalidate the cached tree.
//
// The exit block's immediate dominator is excluded from the
// cross-check: LTDominatorFinder's own debug harness skips it too,
// since a method's exit block can be reached by edges the DFS visits
// out of forward order relative to how Lengauer-Tarjan numbers it.
func Compute(g *cfg.CFG) (*cfg.DomTree, error) {
	f := newLTFinder(g)
	f.findDominators()
	idom := f.idoms()

	if jitconfig.CrossCheckDominators {
		cooperIdom := cooperDominators(g)
		exit := g.Exit()
		for b := 0; b < g.BlockCount(); b++ {
			bid := ids.BlockID(b)
			if bid == exit || bid == g.Entry() {
				continue
			}
			if idom[b] != cooperIdom[b] {
				return nil, &MismatchError{Block: bid, LTIdom: idom[b], CooperIdom: cooperIdom[b]}
			}
		}
	}

	tree := cfg.NewDomTree(idom)
	g.SetDomTree(tree)
	return tree, nil
}
