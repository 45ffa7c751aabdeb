// Package ssa implements the SSA Translator (spec §3 "SSA form", §4.3),
// grounded on
// original_source/rbjit/include/rbjit/ssatranslator.h and
// src/ssatranslator.cpp: dominance-frontier computation, phi placement
// by iterating the frontier of each variable's definition sites, and a
// dominator-tree-DFS renaming pass that folds trivial same-name copies
// away as it goes.
package ssa

import (
	"errors"

	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
)

// Translator holds the working state of one translate() call. It is
// not reused across CFGs.
type Translator struct {
	g             *cfg.CFG
	tree          *cfg.DomTree
	doCopyFolding bool

	df [][]bool

	phiInserted []ids.VarID
	processed   []ids.VarID

	renameStack [][]ids.VarID
	folded      []ids.VarID
}

// Translate converts g from its pre-SSA form (as the Builder left it,
// with a populated DefInfoMap and a computed dominator tree) into SSA
// form in place: every variable ends up with exactly one definition,
// copy-foldable redundant same-name copies are removed, and the
// DefInfoMap is discarded once renaming completes.
func Translate(g *cfg.CFG, doCopyFolding bool) error {
	tree := g.DomTree()
	if tree == nil {
		return errors.New("ssa: Translate requires a computed dominator tree")
	}
	if g.DefInfo() == nil {
		return errors.New("ssa: Translate requires a populated DefInfoMap")
	}

	t := &Translator{g: g, tree: tree, doCopyFolding: doCopyFolding}
	t.computeDF()
	t.insertPhiFunctions()
	t.renameVariables()
	g.ClearDefInfo()
	return nil
}

////////////////////////////////////////////////////////////////////////////
// rename stack helpers

func (t *Translator) ensure(v ids.VarID) {
	for len(t.renameStack) <= int(v) {
		t.renameStack = append(t.renameStack, nil)
	}
}

func (t *Translator) push(v, val ids.VarID) {
	t.ensure(v)
	t.renameStack[v] = append(t.renameStack[v], val)
}

func (t *Translator) top(v ids.VarID) (ids.VarID, bool) {
	t.ensure(v)
	s := t.renameStack[v]
	if len(s) == 0 {
		return ids.NoVar, false
	}
	return s[len(s)-1], true
}

func (t *Translator) depth(v ids.VarID) int {
	t.ensure(v)
	return len(t.renameStack[v])
}

func (t *Translator) truncate(v ids.VarID, n int) {
	t.ensure(v)
	t.renameStack[v] = t.renameStack[v][:n]
}

////////////////////////////////////////////////////////////////////////////
// renaming

func (t *Translator) renameVariables() {
	for _, in := range t.g.Inputs() {
		t.push(in, in)
	}

	t.renameBlock(t.g.Entry())

	t.g.RemoveVariables(t.folded)

	// The input variables have no real definition; give them a nominal
	// one at the entry block now that renaming (which would otherwise
	// have tried to update their def site) is done.
	entry := t.g.Entry()
	for _, in := range t.g.Inputs() {
		t.g.Var(in).ResetDefSite(entry, ids.NoInstr)
	}
}

func (t *Translator) renameBlock(b ids.BlockID) {
	snapshot := t.g.VarCount()
	depths := make([]int, snapshot)
	for i := 0; i < snapshot; i++ {
		depths[i] = t.depth(ids.VarID(i))
	}

	blk := t.g.Block(b)

	i := 0
	for i < blk.Len() {
		op := blk.Instrs()[i]

		if op.Kind() != instr.KindPhi {
			t.renameRhs(op)
		}

		lhs := op.Lhs()
		if lhs == ids.NoVar {
			t.renameOutEnv(b, op)
			i++
			continue
		}

		if t.doCopyFolding && t.tryFoldCopy(op, lhs) {
			blk.RemoveAt(i)
			continue
		}

		t.renameLhs(b, op, lhs)
		t.renameOutEnv(b, op)
		i++
	}

	if term := blk.Terminator(); term != nil {
		for _, succ := range term.Successors() {
			t.renamePhiOperands(b, succ)
		}
	}

	for _, child := range t.tree.Children(b) {
		t.renameBlock(child)
	}

	for i := 0; i < snapshot; i++ {
		t.truncate(ids.VarID(i), depths[i])
	}
}

func (t *Translator) renameRhs(op instr.Instr) {
	ops := op.Operands()
	for i, o := range ops {
		if o == ids.NoVar {
			continue
		}
		if top, ok := t.top(o); ok {
			op.SetOperand(i, top)
		} else {
			op.SetOperand(i, t.g.Undefined())
		}
	}
}

// tryFoldCopy implements copy propagation: a Copy whose lhs and rhs
// name the same lexical local is redundant bookkeeping the builder
// introduced, and is elided by pushing its rhs directly onto lhs's
// rename stack instead of materializing a new SSA value for it.
func (t *Translator) tryFoldCopy(op instr.Instr, lhs ids.VarID) bool {
	cp, ok := op.(*instr.Copy)
	if !ok {
		return false
	}
	if lhs == t.g.Output() {
		return false
	}
	if t.g.Var(lhs).IsEnv() {
		return false
	}
	if t.g.Var(lhs).NameRef() != t.g.Var(cp.Rhs()).NameRef() {
		return false
	}

	t.push(lhs, cp.Rhs())
	di, ok := t.g.DefInfo().Find(lhs)
	if !ok {
		return true
	}
	if di.DefCount() == 1 {
		t.folded = append(t.folded, lhs)
	} else {
		di.DecrementDefCount()
	}
	return true
}

func (t *Translator) renameLhs(b ids.BlockID, op instr.Instr, lhs ids.VarID) {
	prev := t.g.Var(lhs)
	di, ok := t.g.DefInfo().Find(lhs)

	if ok && di.DefCount() > 1 {
		idx := t.g.Block(b).IndexOf(op)
		temp, tempID := t.g.CreateVariableSSA(b, ids.InstrRef{Block: b, Index: idx}, prev)
		di.DecrementDefCount()
		t.push(lhs, tempID)
		if temp.IsEnv() {
			if b == t.g.Entry() {
				t.g.SetEntryEnv(tempID)
			} else if b == t.g.Exit() {
				t.g.SetExitEnv(tempID)
			}
		}
		op.SetLhs(tempID)
		return
	}

	t.push(lhs, lhs)
	idx := t.g.Block(b).IndexOf(op)
	prev.ResetDefSite(b, ids.InstrRef{Block: b, Index: idx})
}

func (t *Translator) renameOutEnv(b ids.BlockID, op instr.Instr) {
	env := op.OutEnv()
	if env == ids.NoVar {
		return
	}
	prev := t.g.Var(env)
	di, ok := t.g.DefInfo().Find(env)

	if ok && di.DefCount() > 1 {
		idx := t.g.Block(b).IndexOf(op)
		temp, tempID := t.g.CreateVariableSSA(b, ids.InstrRef{Block: b, Index: idx}, prev)
		di.DecrementDefCount()
		t.push(env, tempID)
		op.SetOutEnv(tempID)
		return
	}

	t.push(env, env)
	idx := t.g.Block(b).IndexOf(op)
	prev.ResetDefSite(b, ids.InstrRef{Block: b, Index: idx})
}

func (t *Translator) renamePhiOperands(parent, succ ids.BlockID) {
	succBlk := t.g.Block(succ)
	c := succBlk.IndexOfPredecessor(parent)
	if c < 0 {
		return
	}
	for _, op := range succBlk.Instrs() {
		phi, ok := op.(*instr.Phi)
		if !ok {
			break // phis are always the leading instructions of a block
		}
		key := phi.Operands()[c]
		if top, ok := t.top(key); ok {
			phi.SetOperand(c, top)
		} else {
			phi.SetOperand(c, t.g.Undefined())
		}
	}
}
