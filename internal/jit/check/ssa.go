package check

import (
	"fmt"

	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/dom"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
)

// SSA validates the post-SSA-translation invariants of spec §8: every
// variable has exactly one definition, every use is dominated by its
// definition, and every phi's i-th operand is live on the edge from
// its block's i-th backedge. Grounded on
// original_source/rbjit/include/rbjit/ssachecker.h/.cpp's dominator-tree
// preorder walk with a running "defined so far" set — a variable is
// live at a use iff it was defined at or before that point in the
// preorder, which is exactly domination in a CFG with no critical
// edges bypassing phis.
func SSA(g *cfg.CFG) error {
	tree := g.DomTree()
	if tree == nil {
		computed, err := dom.Compute(g)
		if err != nil {
			return fmt.Errorf("ssa check: computing dominators: %w", err)
		}
		tree = computed
	}

	c := &ssaChecker{g: g, tree: tree, defined: make(map[ids.VarID]bool)}
	for _, v := range g.Inputs() {
		if v != ids.NoVar {
			c.defined[v] = true
		}
	}

	c.work = append(c.work, g.Entry())
	for len(c.work) > 0 {
		b := c.work[len(c.work)-1]
		c.work = c.work[:len(c.work)-1]
		c.checkBlock(b)
		for _, child := range tree.Children(b) {
			c.work = append(c.work, child)
		}
	}

	if len(c.errors) == 0 {
		return nil
	}
	return &SanityError{Errors: c.errors}
}

type ssaChecker struct {
	g       *cfg.CFG
	tree    *cfg.DomTree
	defined map[ids.VarID]bool
	work    []ids.BlockID
	errors  []string
}

func (c *ssaChecker) checkBlock(b ids.BlockID) {
	block := c.g.Block(b)
	for _, op := range block.Instrs() {
		if _, isPhi := op.(*instr.Phi); !isPhi {
			for _, rhs := range op.Operands() {
				if rhs != ids.NoVar && !c.defined[rhs] {
					c.errors = append(c.errors, fmt.Sprintf(
						"block %d: use of variable %d is not dominated by its definition", b, rhs))
				}
			}
		}

		if lhs := op.Lhs(); lhs != ids.NoVar {
			if c.defined[lhs] {
				c.errors = append(c.errors, fmt.Sprintf(
					"block %d: variable %d is defined more than once", b, lhs))
			}
			c.defined[lhs] = true
		}
		if env := op.OutEnv(); env != ids.NoVar {
			if c.defined[env] {
				c.errors = append(c.errors, fmt.Sprintf(
					"block %d: env variable %d is defined more than once", b, env))
			}
			c.defined[env] = true
		}
	}

	for _, succ := range block.Terminator().Successors() {
		c.checkPhisOf(b, succ)
	}
}

func (c *ssaChecker) checkPhisOf(pred, succ ids.BlockID) {
	sb := c.g.Block(succ)
	index := sb.IndexOfPredecessor(pred)
	if index < 0 {
		return
	}
	for _, op := range sb.Instrs() {
		phi, ok := op.(*instr.Phi)
		if !ok {
			break
		}
		v := phi.Operands()[index]
		if v != ids.NoVar && !c.defined[v] {
			c.errors = append(c.errors, fmt.Sprintf(
				"block %d: operand %d (index %d, from predecessor %d) of phi in block %d is not dominated by its definition",
				pred, v, index, pred, succ))
		}
	}
}
