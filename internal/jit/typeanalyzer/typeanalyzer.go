// Package typeanalyzer implements the Type Analyzer (spec §3 "Type
// Analyzer", §4.4), grounded on
// original_source/rbjit/include/rbjit/typeanalyzer.h and
// src/typeanalyzer.cpp: an abstract interpreter that runs a sparse
// conditional-constant-propagation fixed point over a CFG's opcodes,
// tracking both a per-variable TypeConstraint and per-block/per-edge
// reachability so that branches the receiver-type lattice proves
// always-taken or always-skipped stop contributing to either.
package typeanalyzer

import (
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
	"github.com/funvibe/rbjitgo/internal/jit/jitconfig"
	"github.com/funvibe/rbjitgo/internal/jit/typeconstraint"
)

type edgeState int

const (
	edgeUnknown edgeState = iota
	edgeReachable
	edgeUnreachable
)

type edgeKey struct{ from, to ids.BlockID }

// Analyzer holds one analyze() run's working state. It is not reused
// across CFGs.
type Analyzer struct {
	g    *cfg.CFG
	refl host.Reflection
	self host.ClassID

	du  *defUseChain
	ctx *typeconstraint.TypeContext

	reachBlock []bool
	reachEdge  map[edgeKey]edgeState

	blockWork []ids.BlockID
	varWork   []ids.VarID
	queued    map[ids.VarID]bool

	block ids.BlockID // the opcode currently being visited's owning block

	mutator bool
	jitOnly bool
}

// New builds an Analyzer over g. self identifies the class the method
// under analysis is defined on, used to recognize a Lookup candidate
// that reenters the very method being compiled (spec §4.4's recursion
// guard).
func New(g *cfg.CFG, refl host.Reflection, self host.ClassID) *Analyzer {
	return &Analyzer{
		g:          g,
		refl:       refl,
		self:       self,
		du:         buildDefUseChain(g),
		ctx:        typeconstraint.NewTypeContext(),
		reachBlock: make([]bool, g.BlockCount()),
		reachEdge:  make(map[edgeKey]edgeState),
		queued:     make(map[ids.VarID]bool),
	}
}

// SetInputType seeds one of the CFG's formal arguments with a known
// constraint before Analyze runs (spec §4.4
// "setInputTypeConstraint(index, type)").
func (a *Analyzer) SetInputType(index int, t typeconstraint.Constraint) {
	a.ctx.Set(a.g.Inputs()[index], t)
}

// Analyze runs the fixed point to completion and returns the resulting
// TypeContext plus whether the method was found to be a mutator (may
// redefine methods/constants) and jit-only (emits a Primitive, so it
// cannot be interpreted without the JIT).
func (a *Analyzer) Analyze() (*typeconstraint.TypeContext, bool, bool) {
	for _, v := range a.g.Vars() {
		if _, ok := a.peek(v.Index()); !ok {
			a.ctx.Set(v.Index(), typeconstraint.NewAny())
		}
	}

	a.blockWork = append(a.blockWork, a.g.Entry())

	for len(a.blockWork) > 0 || len(a.varWork) > 0 {
		for len(a.blockWork) > 0 {
			n := len(a.blockWork) - 1
			b := a.blockWork[n]
			a.blockWork = a.blockWork[:n]
			a.processBlock(b)
		}
		for len(a.varWork) > 0 {
			n := len(a.varWork) - 1
			v := a.varWork[n]
			a.varWork = a.varWork[:n]
			delete(a.queued, v)
			a.evaluateExpressionsUsing(v)
		}
	}

	return a.ctx, a.mutator, a.jitOnly
}

// peek reports whether v already has a constraint without defaulting
// it to None the way Get does, used only by Analyze's seeding pass so
// a caller-supplied SetInputType isn't clobbered.
func (a *Analyzer) peek(v ids.VarID) (typeconstraint.Constraint, bool) {
	t := a.ctx.Get(v)
	if _, isNone := t.(*typeconstraint.None); isNone {
		return nil, false
	}
	return t, true
}

func (a *Analyzer) processBlock(b ids.BlockID) {
	a.reachBlock[b] = true
	for _, op := range a.g.Block(b).Instrs() {
		a.block = b
		op.Accept(a)
	}
}

func (a *Analyzer) evaluateExpressionsUsing(v ids.VarID) {
	for _, u := range a.du.usesOf(v) {
		site := a.g.Var(u.def).DefOpcode()
		if !site.Valid() {
			continue
		}
		a.block = site.Block
		a.g.Block(site.Block).Instrs()[site.Index].Accept(a)
	}
}

func (a *Analyzer) update(v ids.VarID, t typeconstraint.Constraint) {
	if v == ids.NoVar || t == nil {
		return
	}
	if a.ctx.Update(v, t) && !a.queued[v] {
		a.queued[v] = true
		a.varWork = append(a.varWork, v)
	}
}

func (a *Analyzer) makeEdgeReachable(from, to ids.BlockID) {
	key := edgeKey{from, to}
	if a.reachEdge[key] == edgeReachable {
		return
	}
	a.reachEdge[key] = edgeReachable
	a.blockWork = append(a.blockWork, to)
}

func (a *Analyzer) makeEdgeUnreachable(from, to ids.BlockID) {
	a.reachEdge[edgeKey{from, to}] = edgeUnreachable
}

func (a *Analyzer) isEdgeReachable(from, to ids.BlockID) bool {
	return a.reachEdge[edgeKey{from, to}] == edgeReachable
}

// ReachableBlock reports whether b was ever visited by the fixed
// point, i.e. the dead-code signal for b (spec §4.4).
func (a *Analyzer) ReachableBlock(b ids.BlockID) bool { return a.reachBlock[b] }

// IsCondition reports whether v is ever used as a JumpIf's condition
// operand.
func (a *Analyzer) IsCondition(v ids.VarID) bool { return a.du.isCondition(v) }

////////////////////////////////////////////////////////////////////////////
// instr.Visitor

var _ instr.Visitor = (*Analyzer)(nil)

func (a *Analyzer) VisitCopy(op *instr.Copy) {
	a.update(op.Lhs(), a.ctx.Get(op.Rhs()).Clone())
}

func (a *Analyzer) VisitJump(op *instr.Jump) {
	a.makeEdgeReachable(a.block, op.Target())
}

func (a *Analyzer) VisitJumpIf(op *instr.JumpIf) {
	cond := a.ctx.Get(op.Cond())

	switch cond.EvaluatesToBoolean() {
	case typeconstraint.AlwaysTrue:
		a.makeEdgeReachable(a.block, op.IfTrue())
		a.makeEdgeUnreachable(a.block, op.IfFalse())
	case typeconstraint.AlwaysFalse:
		a.makeEdgeUnreachable(a.block, op.IfTrue())
		a.makeEdgeReachable(a.block, op.IfFalse())
	default:
		a.makeEdgeReachable(a.block, op.IfTrue())
		a.makeEdgeReachable(a.block, op.IfFalse())
	}
}

func (a *Analyzer) VisitImmediate(op *instr.Immediate) {
	a.update(op.Lhs(), typeconstraint.NewConstant(op.Value, host.NoClass))
}

func (a *Analyzer) VisitEnv(op *instr.Env) {
	a.update(op.Lhs(), typeconstraint.NewEnv())
}

func (a *Analyzer) VisitLookup(op *instr.Lookup) {
	// A Lookup is only valid when nothing could have changed the
	// method-resolution environment since method entry (spec §3
	// invariant, §4.4): otherwise any class may have been reopened and
	// redispatch could pick a different method at runtime.
	if !a.ctx.IsSameValueAs(op.InEnv(), a.g.EntryEnv()) {
		a.update(op.Lhs(), typeconstraint.NewLookup(false))
		return
	}

	recv := a.ctx.Get(op.Receiver())
	list := recv.Resolve()
	if cs, ok := recv.(*typeconstraint.ClassOrSubclass); ok {
		// ClassOrSubclass resolves through a bounded walk of the subclass
		// tree; past jitconfig.MaxCandidateCount classes it stays Any.
		classes := []host.ClassID{cs.Class}
		for i := 0; i < len(classes) && len(classes) <= jitconfig.MaxCandidateCount; i++ {
			classes = append(classes, a.refl.Subclasses(classes[i])...)
		}
		if len(classes) <= jitconfig.MaxCandidateCount {
			list = typeconstraint.NewTypeList(typeconstraint.LatticeDetermined, classes...)
		}
	}

	name := a.refl.StringOf(op.MethodName)
	if list.Lattice != typeconstraint.LatticeDetermined && host.ArithmeticOperators[name] {
		fixnum := a.fixnumClass()
		if fixnum != host.NoClass {
			list.Add(fixnum)
		}
	}

	lookup := typeconstraint.NewLookup(list.Lattice == typeconstraint.LatticeDetermined)
	seen := make(map[host.MethodKey]bool)
	for _, cls := range list.Classes {
		me, ok := a.refl.LookupMethod(cls, op.MethodName)
		if !ok {
			continue
		}
		key := host.MethodKey{Class: cls, Name: op.MethodName}
		if seen[key] {
			continue
		}
		seen[key] = true
		lookup.AddCandidate(cls, me)
	}

	a.update(op.Lhs(), lookup)
}

// fixnumClass walks nothing — Reflection has no "class for BuiltinClass"
// reverse lookup, so the speculative Fixnum candidate Lookup's transfer
// function wants for arithmetic operators on an undetermined receiver
// is approximated by scanning Subclasses(NoClass) for the one class
// BuiltinClassOf reports as Fixnum. Most fixtures register very few
// classes, so this linear scan is cheap; a real host would expose this
// directly.
func (a *Analyzer) fixnumClass() host.ClassID {
	for _, cls := range a.refl.Subclasses(host.NoClass) {
		if a.refl.BuiltinClassOf(cls) == host.BuiltinClassFixnum {
			return cls
		}
	}
	return host.NoClass
}

func (a *Analyzer) VisitCall(op *instr.Call) {
	lookup, _ := a.ctx.Get(op.Lookup()).(*typeconstraint.Lookup)
	if lookup == nil || len(lookup.Candidates) == 0 {
		if op.Lhs() != ids.NoVar {
			a.update(op.Lhs(), typeconstraint.NewAny())
		}
		a.updateOutEnv(op)
		return
	}

	sel := typeconstraint.NewSelection()
	resolvable := true
	for _, cand := range lookup.Candidates {
		me := cand.Method
		key := host.MethodKey{Class: cand.Class, Name: me.Name}

		if me.Self {
			sel.AddOption(typeconstraint.NewRecursion(key))
			a.mutator = a.mutator || me.MutatorHint
			continue
		}

		switch me.Kind {
		case host.MethodHasAST:
			// The inliner (spec §4.8), not the analyzer, is the place a
			// callee's body gets walked; here its return type is simply
			// unknown until then.
			sel.AddOption(typeconstraint.NewAny())
			a.mutator = a.mutator || me.MutatorHint
			a.jitOnly = a.jitOnly || a.refl.IsJitOnly(me)
		default:
			a.mutator = a.mutator || a.refl.IsMutator(me)
			a.jitOnly = a.jitOnly || a.refl.IsJitOnly(me)
			resolvable = false
		}
	}

	if op.Lhs() != ids.NoVar {
		if !resolvable {
			a.update(op.Lhs(), typeconstraint.NewAny())
		} else if !lookup.Determined {
			sel.AddOption(typeconstraint.NewAny())
			a.update(op.Lhs(), sel)
		} else if len(sel.Types) == 0 {
			a.update(op.Lhs(), typeconstraint.NewAny())
		} else if len(sel.Types) == 1 {
			a.update(op.Lhs(), sel.Types[0])
		} else {
			a.update(op.Lhs(), sel)
		}
	}

	a.updateOutEnv(op)
}

func (a *Analyzer) updateOutEnv(op *instr.Call) {
	if op.OutEnv() == ids.NoVar {
		return
	}
	if a.mutator {
		a.update(op.OutEnv(), typeconstraint.NewEnv())
		return
	}
	// A non-mutating call leaves the environment exactly as the Lookup
	// that resolved it last saw it (spec §4.4: "TypeSameAs(lookup's
	// env)"), found by walking back to the Lookup instruction that
	// defines this Call's lookup operand.
	if site := a.g.Var(op.Lookup()).DefOpcode(); site.Valid() {
		if lk, ok := a.g.Block(site.Block).Instrs()[site.Index].(*instr.Lookup); ok {
			a.update(op.OutEnv(), typeconstraint.NewSameAs(lk.InEnv()))
			return
		}
	}
	a.update(op.OutEnv(), typeconstraint.NewEnv())
}

func (a *Analyzer) VisitConstant(op *instr.Constant) {
	switch op.Mode {
	case instr.ConstantTopLevel, instr.ConstantFree:
		// Both modes search starting from the method's own defining
		// class: a real host additionally walks a separate top-level
		// (Object) scope for ConstantTopLevel and a CRef lexical chain
		// for ConstantFree, but Reflection exposes a single
		// LookupConstant primitive rather than either chain, so both
		// modes resolve through it the same way here.
		a.constantDirect(op, a.self)
	default:
		a.constantRelative(op)
	}
}

func (a *Analyzer) constantDirect(op *instr.Constant, scope host.ClassID) {
	value, found := a.refl.LookupConstant(scope, op.Name)
	switch {
	case found:
		a.update(op.Lhs(), typeconstraint.NewConstant(value, host.NoClass))
	case a.refl.IsAutoloadRegistered(scope, op.Name):
		a.mutator = true
		a.update(op.Lhs(), typeconstraint.NewAny())
	default:
		a.update(op.Lhs(), typeconstraint.NewNone())
	}
}

func (a *Analyzer) constantRelative(op *instr.Constant) {
	sel := typeconstraint.NewSelection()
	undetermined := false
	for _, base := range op.Bases() {
		cls := a.ctx.Get(base).EvaluateClass()
		if cls == host.NoClass {
			undetermined = true
			continue
		}
		value, found := a.refl.LookupConstant(cls, op.Name)
		switch {
		case found:
			sel.AddOption(typeconstraint.NewConstant(value, host.NoClass))
		case a.refl.IsAutoloadRegistered(cls, op.Name):
			sel.AddOption(typeconstraint.NewAny())
			a.mutator = true
		default:
			undetermined = true
		}
	}

	if len(sel.Types) == 0 {
		if undetermined {
			a.update(op.Lhs(), typeconstraint.NewAny())
		} else {
			a.update(op.Lhs(), typeconstraint.NewNone())
		}
		return
	}

	if undetermined {
		sel.AddOption(typeconstraint.NewAny())
	}
	if len(sel.Types) == 1 {
		a.update(op.Lhs(), sel.Types[0])
	} else {
		a.update(op.Lhs(), sel)
	}
}

func (a *Analyzer) VisitPrimitive(op *instr.Primitive) {
	// A compiled Primitive opcode only ever runs under the JIT; the
	// interpreter has no implementation for it (spec §4.1, §4.4).
	a.jitOnly = true

	if op.Lhs() == ids.NoVar {
		return
	}

	name := a.refl.StringOf(op.Name)
	switch name {
	case host.PrimIsFixnum:
		fixnum := a.fixnumClass()
		rhs := a.ctx.Get(op.Operands()[0])
		switch {
		case rhs.EvaluateClass() == fixnum && fixnum != host.NoClass:
			a.update(op.Lhs(), typeconstraint.NewConstant(true, host.NoClass))
		case a.impossibleToBeFixnum(rhs, fixnum):
			a.update(op.Lhs(), typeconstraint.NewConstant(false, host.NoClass))
		default:
			sel := typeconstraint.NewSelection(
				typeconstraint.NewConstant(true, host.NoClass),
				typeconstraint.NewConstant(false, host.NoClass),
			)
			a.update(op.Lhs(), sel)
		}
	case host.PrimTypecastFixnum:
		a.update(op.Lhs(), typeconstraint.NewExactClass(a.fixnumClass()))
	case host.PrimTypecastFixnumBignum:
		sel := typeconstraint.NewSelection(
			typeconstraint.NewExactClass(a.fixnumClass()),
			typeconstraint.NewExactClass(a.bignumClass()),
		)
		a.update(op.Lhs(), sel)
	default:
		a.update(op.Lhs(), typeconstraint.NewAny())
	}
}

func (a *Analyzer) impossibleToBeFixnum(t typeconstraint.Constraint, fixnum host.ClassID) bool {
	resolved := t.Resolve()
	if resolved.Lattice != typeconstraint.LatticeDetermined {
		return false
	}
	for _, c := range resolved.Classes {
		if c == fixnum {
			return false
		}
	}
	return true
}

func (a *Analyzer) bignumClass() host.ClassID {
	for _, cls := range a.refl.Subclasses(host.NoClass) {
		if a.refl.BuiltinClassOf(cls) == host.BuiltinClassBignum {
			return cls
		}
	}
	return host.NoClass
}

func (a *Analyzer) VisitPhi(op *instr.Phi) {
	preds := a.g.Block(op.Block).Backedges()
	sel := typeconstraint.NewSelection()
	for i, rhs := range op.Operands() {
		if i >= len(preds) {
			break
		}
		if !a.isEdgeReachable(preds[i], op.Block) {
			continue
		}
		t := a.ctx.Get(rhs)
		if _, isEnv := t.(*typeconstraint.Env); isEnv {
			sel.AddOption(typeconstraint.NewSameAs(rhs))
		} else {
			sel.AddOption(t.Clone())
		}
	}

	switch len(sel.Types) {
	case 0:
		a.update(op.Lhs(), typeconstraint.NewAny())
	case 1:
		a.update(op.Lhs(), sel.Types[0])
	default:
		a.update(op.Lhs(), sel)
	}
}

func (a *Analyzer) VisitExit(op *instr.Exit) {}

////////////////////////////////////////////////////////////////////////////
// Opcodes the original analyzer never modeled (host-language additions,
// spec §9): each assigns its lhs the lattice top rather than special
// casing a shape the spec's transfer-function table never defines.

func (a *Analyzer) VisitCodeBlock(op *instr.CodeBlock) {
	a.update(op.Lhs(), typeconstraint.NewAny())
}

func (a *Analyzer) VisitArray(op *instr.Array) {
	a.update(op.Lhs(), typeconstraint.NewAny())
}

func (a *Analyzer) VisitRange(op *instr.Range) {
	a.update(op.Lhs(), typeconstraint.NewAny())
}

func (a *Analyzer) VisitString(op *instr.String) {
	a.update(op.Lhs(), typeconstraint.NewConstant(op.Literal, host.NoClass))
}

func (a *Analyzer) VisitHash(op *instr.Hash) {
	a.update(op.Lhs(), typeconstraint.NewAny())
}

func (a *Analyzer) VisitEnter(op *instr.Enter) {}
func (a *Analyzer) VisitLeave(op *instr.Leave) {}

func (a *Analyzer) VisitCheckArg(op *instr.CheckArg) {
	if op.Lhs() != ids.NoVar {
		a.update(op.Lhs(), typeconstraint.NewAny())
	}
}
