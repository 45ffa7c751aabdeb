// Package builder implements the CFG Builder (spec §3 "CFG Builder",
// §4.1), grounded on
// original_source/rbjit/include/rbjit/cfgbuilder.h and
// src/cfgbuilder.cpp: a single recursive descent over the host AST that
// emits instructions into a growing pre-SSA cfg.CFG, reusing one
// value.Variable per lexically-declared name (lexscope.NamedVariable)
// across every assignment to it, and letting the CFG's DefInfoMap track
// how many times and where each gets (re)defined. The SSA Translator
// (package ssa) is run afterward to convert the result to SSA form; the
// Builder itself never creates a phi.
package builder

import (
	"fmt"

	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
	"github.com/funvibe/rbjitgo/internal/jit/lexscope"
)

// UnsupportedSyntaxError reports a host construct the Builder doesn't
// lower, mirroring original_source/rbjit/src/cfgbuilder.cpp's
// UnsupportedSyntaxException (spec §9: some host constructs remain
// explicit non-goals rather than silently miscompiled).
type UnsupportedSyntaxError struct {
	What string
}

func (e *UnsupportedSyntaxError) Error() string { return e.What }

// Builder holds one buildMethod call's working state. Not reused
// across methods.
type Builder struct {
	g     *cfg.CFG
	refl  host.Reflection
	prims host.PrimitiveCatalogue

	scope *lexscope.Scope
	named map[*lexscope.NamedVariable]ids.VarID

	cur        ids.BlockID
	terminated bool // current block already ended with a terminator

	envVar ids.VarID
	name   host.ID // the method name, for diagnostics only
}

// New creates a Builder. prims may be nil, in which case every Call
// lowers through ordinary method lookup rather than ever recognizing a
// primitive.
func New(refl host.Reflection, prims host.PrimitiveCatalogue) *Builder {
	return &Builder{refl: refl, prims: prims}
}

// BuildMethod lowers scope (a method body) into a fresh CFG (spec §4.1
// "buildMethod"). name is used only for diagnostics.
func (b *Builder) BuildMethod(scope *host.Scope, name host.ID) (*cfg.CFG, error) {
	b.g = cfg.New()
	b.scope = lexscope.New(nil)
	b.named = make(map[*lexscope.NamedVariable]ids.VarID)
	b.name = name

	entry := b.g.NewBlock()
	exit := b.g.NewBlock()
	b.g.SetEntry(entry)
	b.g.SetExit(exit)
	b.g.Block(entry).SetName("entry")
	b.g.Block(exit).SetName("exit")

	_, undef := b.g.CreateVariable(host.NoID, nil)
	b.g.SetUndefined(undef)
	b.g.Var(undef).MarkUndefinedSentinel()

	_, out := b.g.CreateVariable(host.NoID, nil)
	b.g.SetOutput(out)

	b.cur = entry

	envVar, err := b.buildEnv()
	if err != nil {
		return nil, err
	}
	b.envVar = envVar
	b.g.SetEntryEnv(envVar)

	b.emit(instr.NewEnter(host.SourceLocation{}, b.scope))

	if err := b.buildArguments(scope); err != nil {
		return nil, err
	}

	result, err := b.buildNode(scope.Body, true)
	if err != nil {
		return nil, err
	}
	if !b.terminated {
		b.buildReturn(result)
	}

	exitEnv, err := b.finishExit(exit)
	if err != nil {
		return nil, err
	}
	b.g.SetExitEnv(exitEnv)

	return b.g, nil
}

// buildEnv materializes the method-resolution-environment token every
// scope threads through Lookup/Call (spec §3, §4.4).
func (b *Builder) buildEnv() (ids.VarID, error) {
	_, v := b.g.CreateVariable(host.NoID, nil)
	b.g.Var(v).MarkEnv()
	op := instr.NewEnv(host.SourceLocation{}, v)
	b.emit(op)
	return v, nil
}

// finishExit appends Leave and Exit to the exit block. Every return
// path (explicit or implicit) funnels through a Jump to exit, so one
// Leave here covers all of them, unlike the per-site Enter/Leave
// pairing a stack-machine interpreter might need.
func (b *Builder) finishExit(exit ids.BlockID) (ids.VarID, error) {
	prevCur, prevTerm := b.cur, b.terminated
	b.cur = exit
	b.terminated = false

	b.emit(instr.NewLeave(host.SourceLocation{}, b.scope))
	b.emit(instr.NewExit(host.SourceLocation{}))

	b.cur, b.terminated = prevCur, prevTerm
	return b.envVar, nil
}

func (b *Builder) buildArguments(scope *host.Scope) error {
	self := b.declare(b.refl.Intern("self"))
	selfVar := b.namedSlot(self)
	b.g.Var(selfVar).ResetDefSite(b.g.Entry(), ids.NoInstr)
	b.g.DefInfo().UpdateDefSite(selfVar, b.g.Entry())
	b.g.SetInputs(append(b.g.Inputs(), selfVar))

	args := scope.Args
	b.g.SetArity(args.RequiredCount, args.HasOptional, args.HasRest)

	if args.HasOptional || args.HasRest {
		return &UnsupportedSyntaxError{
			What: fmt.Sprintf("method %s uses variadic arguments, which this builder doesn't lower (spec §4.1 non-goal)", b.refl.StringOf(b.name)),
		}
	}

	for i := 0; i < args.RequiredCount && i < len(scope.IDTable); i++ {
		nv := b.declare(scope.IDTable[i])
		v := b.namedSlot(nv)
		b.g.Var(v).ResetDefSite(b.g.Entry(), ids.NoInstr)
		b.g.DefInfo().UpdateDefSite(v, b.g.Entry())
		b.g.SetInputs(append(b.g.Inputs(), v))
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////
// shared plumbing

// declare registers name in the current lexical scope, matching
// buildNamedVariable's "first reference wins" rule (spec §4.1).
func (b *Builder) declare(name host.ID) *lexscope.NamedVariable {
	return b.scope.Declare(name)
}

// lookupName resolves name against the active scope chain, same as
// buildNamedVariable for a use rather than a declaration site.
func (b *Builder) lookupName(name host.ID) *lexscope.NamedVariable {
	if nv := b.scope.Find(name); nv != nil {
		return nv
	}
	return b.scope.Declare(name)
}

// namedSlot returns nv's single pre-SSA Variable, creating it on first
// use.
func (b *Builder) namedSlot(nv *lexscope.NamedVariable) ids.VarID {
	if v, ok := b.named[nv]; ok {
		return v
	}
	_, v := b.g.CreateVariable(nv.Name(), nv)
	b.named[nv] = v
	return v
}

// tmp allocates an unnamed pre-SSA temporary.
func (b *Builder) tmp() ids.VarID {
	_, v := b.g.CreateVariable(host.NoID, nil)
	return v
}

// emit appends op to the current block and records its def sites.
func (b *Builder) emit(op instr.Instr) {
	b.g.Block(b.cur).Append(op)
	if lhs := op.Lhs(); lhs != ids.NoVar {
		b.g.DefInfo().UpdateDefSite(lhs, b.cur)
	}
	if env := op.OutEnv(); env != ids.NoVar {
		b.g.DefInfo().UpdateDefSite(env, b.cur)
	}
	for _, operand := range op.Operands() {
		if operand != ids.NoVar {
			b.g.DefInfo().NoteUse(operand, b.cur)
		}
	}
}

// defineNamed records an assignment to a named variable: its value is
// simply copy-folded onto the name's single pre-SSA slot (SSA
// renaming's copy folding, spec §4.3, is what later turns repeated
// definitions of this one slot into distinct SSA values).
func (b *Builder) defineNamed(nv *lexscope.NamedVariable, value ids.VarID) ids.VarID {
	v := b.namedSlot(nv)
	b.emit(instr.NewCopy(host.SourceLocation{}, v, value))
	return v
}

// newBlock creates a fresh block with no predecessors yet; callers
// wire it in with jumpTo/connect.
func (b *Builder) newBlock() ids.BlockID { return b.g.NewBlock() }

func (b *Builder) connect(pred, succ ids.BlockID) { b.g.Connect(pred, succ) }

// jumpTo terminates the current block with an unconditional Jump to
// target and marks the block as no longer accepting more instructions.
func (b *Builder) jumpTo(target ids.BlockID) {
	if b.terminated {
		return
	}
	b.emit(instr.NewJump(host.SourceLocation{}, target))
	b.connect(b.cur, target)
	b.terminated = true
}

// buildReturn funnels a value out to the CFG's output variable and
// jumps to the exit block, used both for an explicit `return` and for
// an implicit end-of-body result (spec §4.1
// "addJumpToReturnBlock").
func (b *Builder) buildReturn(v ids.VarID) {
	if v == ids.NoVar {
		v = b.g.Undefined()
	}
	b.emit(instr.NewCopy(host.SourceLocation{}, b.g.Output(), v))
	b.jumpTo(b.g.Exit())
}
