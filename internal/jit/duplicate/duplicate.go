// Package duplicate implements the Code Duplicator (spec §3 "CFG
// duplication", §4.6), grounded on
// original_source/rbjit/include/rbjit/codeduplicator.h and
// src/codeduplicator.cpp: an index-offset deep clone of one CFG's
// blocks and variables into another (or into a brand-new CFG), used by
// the Inliner (internal/jit/inline) to make its own copy of a callee's body
// before splicing it into a caller (the same callee may be inlined at
// more than one call site, so its blocks/variables can never be
// consumed in place).
//
// Rather than the original's OpcodeVisitor double-dispatch, this port
// walks instr.Instr's own Visitor once per block (the same pattern
// internal/jit/typeanalyzer already uses for transfer functions).
package duplicate

import (
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
	"github.com/funvibe/rbjitgo/internal/jit/typeconstraint"
)

// Result records the src->dest mapping a duplication produced, so a
// caller (the Inliner) can find where the callee's entry/exit/other
// distinguished variables landed in dest.
type Result struct {
	Blocks map[ids.BlockID]ids.BlockID
	Vars   map[ids.VarID]ids.VarID
	Entry  ids.BlockID
	Exit   ids.BlockID
}

func (r *Result) Block(srcBlock ids.BlockID) ids.BlockID {
	if srcBlock == ids.NoBlock {
		return ids.NoBlock
	}
	return r.Blocks[srcBlock]
}

func (r *Result) Var(srcVar ids.VarID) ids.VarID {
	if srcVar == ids.NoVar {
		return ids.NoVar
	}
	return r.Vars[srcVar]
}

// Duplicate clones src wholesale into a brand-new, standalone CFG, the
// original's "duplicate(ControlFlowGraph*)" entry point.
func Duplicate(src *cfg.CFG) (*cfg.CFG, *Result) {
	dest := cfg.New()
	res := Incorporate(src, nil, dest, nil)

	dest.SetEntry(res.Block(src.Entry()))
	dest.SetExit(res.Block(src.Exit()))
	dest.SetOutput(res.Var(src.Output()))
	dest.SetUndefined(res.Var(src.Undefined()))
	dest.SetEntryEnv(res.Var(src.EntryEnv()))
	dest.SetExitEnv(res.Var(src.ExitEnv()))
	dest.SetArity(src.RequiredArgCount(), src.HasOptionalArg(), src.HasRestArg())

	inputs := make([]ids.VarID, len(src.Inputs()))
	for i, v := range src.Inputs() {
		inputs[i] = res.Var(v)
	}
	dest.SetInputs(inputs)

	return dest, res
}

// Incorporate copies every block and variable of src into dest,
// appending past whatever dest already contains (the original's
// "incorporate" — merging a callee's body into a caller's CFG rather
// than starting a fresh one). If srcTypes/destTypes are non-nil, the
// corresponding type-context entries are duplicated too (clone, except
// a SameAs constraint is rebuilt pointing at the duplicated variable
// rather than blindly cloned, since it refers to another variable by
// identity).
func Incorporate(src *cfg.CFG, srcTypes *typeconstraint.TypeContext, dest *cfg.CFG, destTypes *typeconstraint.TypeContext) *Result {
	d := &duplicator{
		src: src, dest: dest,
		srcTypes: srcTypes, destTypes: destTypes,
		blocks: make(map[ids.BlockID]ids.BlockID, src.BlockCount()),
		vars:   make(map[ids.VarID]ids.VarID, src.VarCount()),
	}
	d.duplicateBlocks()
	d.duplicateVariables()
	d.duplicateInstructions()
	if srcTypes != nil && destTypes != nil {
		d.duplicateTypeContext()
	}
	dest.InvalidateDomTree()

	return &Result{
		Blocks: d.blocks,
		Vars:   d.vars,
		Entry:  d.blocks[src.Entry()],
		Exit:   d.blocks[src.Exit()],
	}
}

type duplicator struct {
	src, dest             *cfg.CFG
	srcTypes, destTypes   *typeconstraint.TypeContext
	blocks                map[ids.BlockID]ids.BlockID
	vars                  map[ids.VarID]ids.VarID

	curBlock ids.BlockID // dest block currently being filled, for def-site bookkeeping
}

func (d *duplicator) duplicateBlocks() {
	for bi := 0; bi < d.src.BlockCount(); bi++ {
		b := ids.BlockID(bi)
		nb := d.dest.NewBlock()
		d.blocks[b] = nb
		d.dest.Block(nb).SetName(d.src.Block(b).Name())
	}
	// Predecessor lists (backedges) are rebuilt as a side effect of
	// re-emitting each Jump/JumpIf's Connect below, not copied
	// directly, so they stay consistent with the instructions actually
	// written into dest.
}

func (d *duplicator) duplicateVariables() {
	for vi := 0; vi < d.src.VarCount(); vi++ {
		v := ids.VarID(vi)
		_, nv := d.dest.CopyVariable(d.src.Var(v))
		d.vars[v] = nv
	}
}

func (d *duplicator) mapOperands(ops []ids.VarID) []ids.VarID {
	out := make([]ids.VarID, len(ops))
	for i, o := range ops {
		out[i] = d.var_(o)
	}
	return out
}

func (d *duplicator) var_(v ids.VarID) ids.VarID {
	if v == ids.NoVar {
		return ids.NoVar
	}
	return d.vars[v]
}

func (d *duplicator) block(b ids.BlockID) ids.BlockID {
	if b == ids.NoBlock {
		return ids.NoBlock
	}
	return d.blocks[b]
}

func (d *duplicator) emit(op instr.Instr) {
	d.dest.Block(d.curBlock).Append(op)
	if lhs := op.Lhs(); lhs != ids.NoVar {
		d.dest.Var(lhs).ResetDefSite(d.curBlock, ids.NoInstr)
	}
	if env := op.OutEnv(); env != ids.NoVar {
		d.dest.Var(env).ResetDefSite(d.curBlock, ids.NoInstr)
	}
}

func (d *duplicator) duplicateInstructions() {
	for bi := 0; bi < d.src.BlockCount(); bi++ {
		b := ids.BlockID(bi)
		d.curBlock = d.blocks[b]
		for _, op := range d.src.Block(b).Instrs() {
			op.Accept(d)
		}
	}
}

////////////////////////////////////////////////////////////////////////////
// instr.Visitor

func (d *duplicator) VisitCopy(op *instr.Copy) {
	d.emit(instr.NewCopy(op.Loc(), d.var_(op.Lhs()), d.var_(op.Rhs())))
}

func (d *duplicator) VisitJump(op *instr.Jump) {
	target := d.block(op.Target())
	d.emit(instr.NewJump(op.Loc(), target))
	d.dest.Connect(d.curBlock, target)
}

func (d *duplicator) VisitJumpIf(op *instr.JumpIf) {
	ifTrue := d.block(op.IfTrue())
	ifFalse := d.block(op.IfFalse())
	d.emit(instr.NewJumpIf(op.Loc(), d.var_(op.Cond()), ifTrue, ifFalse))
	d.dest.Connect(d.curBlock, ifTrue)
	d.dest.Connect(d.curBlock, ifFalse)
}

func (d *duplicator) VisitImmediate(op *instr.Immediate) {
	d.emit(instr.NewImmediate(op.Loc(), d.var_(op.Lhs()), op.Value))
}

func (d *duplicator) VisitEnv(op *instr.Env) {
	d.emit(instr.NewEnv(op.Loc(), d.var_(op.Lhs())))
}

func (d *duplicator) VisitLookup(op *instr.Lookup) {
	d.emit(instr.NewLookup(op.Loc(), d.var_(op.Lhs()), d.var_(op.Receiver()), d.var_(op.InEnv()), op.MethodName))
}

func (d *duplicator) VisitCall(op *instr.Call) {
	args := make([]ids.VarID, len(op.Args()))
	for i, a := range op.Args() {
		args[i] = d.var_(a)
	}
	call := instr.NewCall(op.Loc(), d.var_(op.Lhs()), d.var_(op.Receiver()), args, d.var_(op.Lookup()), d.var_(op.CodeBlock()))
	call.SetOutEnv(d.var_(op.OutEnv()))
	d.emit(call)
}

func (d *duplicator) VisitCodeBlock(op *instr.CodeBlock) {
	d.emit(instr.NewCodeBlock(op.Loc(), d.var_(op.Lhs()), op.BlockAST))
}

func (d *duplicator) VisitConstant(op *instr.Constant) {
	d.emit(instr.NewConstant(op.Loc(), d.var_(op.Lhs()), op.Mode, op.Name, d.mapOperands(op.Bases())))
}

func (d *duplicator) VisitPrimitive(op *instr.Primitive) {
	d.emit(instr.NewPrimitive(op.Loc(), d.var_(op.Lhs()), op.Name, d.mapOperands(op.Operands())))
}

func (d *duplicator) VisitPhi(op *instr.Phi) {
	np := instr.NewPhi(op.Loc(), d.var_(op.Lhs()), d.curBlock, len(op.Operands()))
	for i, o := range op.Operands() {
		np.SetOperand(i, d.var_(o))
	}
	d.emit(np)
}

func (d *duplicator) VisitExit(op *instr.Exit) {
	// Emitting nothing here mirrors the original: a duplicated Exit is
	// almost always about to be inlined, where the exit block becomes an
	// ordinary join rather than a real method return (spec §4.8).
}

func (d *duplicator) VisitArray(op *instr.Array) {
	na := instr.NewArray(op.Loc(), d.var_(op.Lhs()), d.mapOperands(op.Operands()))
	for i := range op.Operands() {
		if op.IsSplat(i) {
			na.MarkSplat(i)
		}
	}
	d.emit(na)
}

func (d *duplicator) VisitRange(op *instr.Range) {
	ops := op.Operands()
	d.emit(instr.NewRange(op.Loc(), d.var_(op.Lhs()), d.var_(ops[0]), d.var_(ops[1]), op.ExclusiveOfEnd))
}

func (d *duplicator) VisitString(op *instr.String) {
	d.emit(instr.NewString(op.Loc(), d.var_(op.Lhs()), op.Literal))
}

func (d *duplicator) VisitHash(op *instr.Hash) {
	d.emit(instr.NewHash(op.Loc(), d.var_(op.Lhs()), d.mapOperands(op.Operands())))
}

func (d *duplicator) VisitEnter(op *instr.Enter) {
	d.emit(instr.NewEnter(op.Loc(), op.Scope))
}

func (d *duplicator) VisitLeave(op *instr.Leave) {
	d.emit(instr.NewLeave(op.Loc(), op.Scope))
}

func (d *duplicator) VisitCheckArg(op *instr.CheckArg) {
	d.emit(instr.NewCheckArg(op.Loc(), d.var_(op.Lhs()), d.var_(op.Argc()), op.RequiredCount, op.HasOptional, op.HasRest))
}

func (d *duplicator) duplicateTypeContext() {
	for vi := 0; vi < d.src.VarCount(); vi++ {
		v := ids.VarID(vi)
		w := d.vars[v]
		t := d.srcTypes.Get(v)
		if _, isNone := t.(*typeconstraint.None); isNone {
			continue
		}
		if sameAs, ok := t.(*typeconstraint.SameAs); ok {
			d.destTypes.Set(w, typeconstraint.NewSameAs(d.var_(sameAs.Source)))
			continue
		}
		d.destTypes.Set(w, t.Clone())
	}
}

var _ instr.Visitor = (*duplicator)(nil)
