// Package check implements the sanity and SSA checkers (spec §7
// "SanityViolation", §8 "Testable Properties"), grounded on
// original_source/rbjit/include/rbjit/cfgsanitychecker.h/.cpp and
// ssachecker.h/.cpp: after every rewrite (build, SSA translation, demux,
// inlining) the core re-validates its own invariants rather than
// silently propagating a malformed graph into the next pass.
//
// Unlike the original's two-checker split driven by an OpcodeVisitor
// double-dispatch, this port walks instr.Instr's own small interface
// (Lhs/Operands/OutEnv/Successors) directly — the same generic iterator
// instr.Instr already exposes for ssa and duplicate — so most opcode
// kinds share one check instead of one visitOpcode override apiece.
package check

import (
	"fmt"
	"strings"

	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
)

// SanityError reports every violation a check found, following
// builder.UnsupportedSyntaxError's convention of a typed error over
// the AST's sibling "this CFG is malformed" case (spec §7
// "SanityViolation... printed and the compilation aborts").
type SanityError struct {
	Errors []string
}

func (e *SanityError) Error() string {
	return fmt.Sprintf("cfg sanity check failed (%d error(s)): %s", len(e.Errors), strings.Join(e.Errors, "; "))
}

// Sanity validates block/variable index consistency, that every block
// ends in exactly one terminator, and that a terminator's successors
// are mirrored exactly in those successors' backedge lists (spec §8's
// first universally-quantified invariant). Returns nil if g is sound.
func Sanity(g *cfg.CFG) error {
	c := &sanityChecker{g: g, visited: make(map[ids.BlockID]bool)}
	c.run()
	if len(c.errors) == 0 {
		return nil
	}
	return &SanityError{Errors: c.errors}
}

type sanityChecker struct {
	g       *cfg.CFG
	visited map[ids.BlockID]bool
	work    []ids.BlockID
	cur     ids.BlockID
	errors  []string
}

func (c *sanityChecker) addf(format string, args ...interface{}) {
	c.errors = append(c.errors, fmt.Sprintf("block %d: %s", c.cur, fmt.Sprintf(format, args...)))
}

func (c *sanityChecker) run() {
	if c.g.BlockCount() == 0 {
		return
	}
	c.work = append(c.work, c.g.Entry())
	for len(c.work) > 0 {
		b := c.work[len(c.work)-1]
		c.work = c.work[:len(c.work)-1]
		if c.visited[b] {
			continue
		}
		c.visited[b] = true
		c.cur = b
		c.checkBlock(b)
	}
	for bi := 0; bi < c.g.BlockCount(); bi++ {
		if !c.visited[ids.BlockID(bi)] {
			c.errors = append(c.errors, fmt.Sprintf("block %d is unreachable from entry and not referred to by any visited block", bi))
		}
	}
}

func (c *sanityChecker) checkBlock(b ids.BlockID) {
	block := c.g.Block(b)
	if block.Len() == 0 {
		c.addf("has no instructions, so no terminator")
		return
	}

	term := block.Terminator()
	if _, ok := term.(*instr.Jump); !ok {
		if _, ok := term.(*instr.JumpIf); !ok {
			if _, ok := term.(*instr.Exit); !ok {
				c.addf("last instruction %T is not a terminator", term)
			}
		}
	}

	for _, succ := range term.Successors() {
		if int(succ) < 0 || int(succ) >= c.g.BlockCount() {
			c.addf("successor %d is out of range", succ)
			continue
		}
		if c.g.Block(succ).IndexOfPredecessor(b) < 0 {
			c.addf("successor %d has no backedge back to this block", succ)
		}
		c.work = append(c.work, succ)
	}

	for _, pred := range block.Backedges() {
		found := false
		for _, s := range c.g.Block(pred).Terminator().Successors() {
			if s == b {
				found = true
				break
			}
		}
		if !found {
			c.addf("backedge from %d, but %d has no edge back to this block", pred, pred)
		}
	}

	for _, op := range block.Instrs() {
		c.checkOpcode(op)
	}
}

func (c *sanityChecker) checkOpcode(op instr.Instr) {
	if lhs := op.Lhs(); lhs != ids.NoVar && (int(lhs) < 0 || int(lhs) >= c.g.VarCount()) {
		c.addf("lhs variable %d does not belong to this cfg", lhs)
	}
	if env := op.OutEnv(); env != ids.NoVar && (int(env) < 0 || int(env) >= c.g.VarCount()) {
		c.addf("out-env variable %d does not belong to this cfg", env)
	}
	for _, rhs := range op.Operands() {
		if rhs != ids.NoVar && (int(rhs) < 0 || int(rhs) >= c.g.VarCount()) {
			c.addf("operand variable %d does not belong to this cfg", rhs)
		}
	}

	if phi, ok := op.(*instr.Phi); ok {
		if len(phi.Operands()) != c.g.Block(c.cur).PredecessorCount() {
			c.addf("phi has %d operand(s) but block has %d backedge(s)", len(phi.Operands()), c.g.Block(c.cur).PredecessorCount())
		}
	}
}
