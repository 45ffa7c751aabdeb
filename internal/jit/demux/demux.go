// Package demux implements the Opcode Demultiplexer (spec §3 "Opcode
// Demux", §4.7), grounded on
// original_source/rbjit/include/rbjit/opcodedemux.h and
// src/opcodedemux.cpp: given a call-site opcode whose receiver type
// analysis narrowed to a short list of candidate classes, split the
// block at that opcode into a chain of binary type tests, one segment
// block per candidate (plus, optionally, one residual "otherwise"
// segment), and an exit block the segments rejoin at through phis. The
// segments themselves are left empty; filling each with a specialized
// inlined body (or, for the otherwise segment, a re-dispatch through
// the original generic Lookup/Call) is internal/jit/inline's job.
package demux

import (
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
	"github.com/funvibe/rbjitgo/internal/jit/typeconstraint"
)

// Result is what demultiplex() returns in the original: the ladder of
// segment blocks (the last one is the "otherwise" residual iff
// Otherwise is true), the block they all rejoin at, and the phis
// inserted there.
type Result struct {
	Segments  []ids.BlockID
	ExitBlock ids.BlockID
	Otherwise bool

	// Phi merges the demultiplexed opcode's lhs across segments, nil if
	// the opcode had no lhs.
	Phi *instr.Phi
	// EnvPhi merges the opcode's out-env across segments, non-nil only
	// when the opcode was a Call (spec §4.7 "if the opcode is a Call").
	EnvPhi *instr.Phi
}

// Demultiplex splits g's block at index (the position of the opcode to
// specialize) into len(cases)-1+(1 if otherwise) binary type-test
// branches against selector, plus a trailing fallthrough segment.
// selector's source location is taken from the opcode being split.
func Demultiplex(g *cfg.CFG, refl host.Reflection, types *typeconstraint.TypeContext, block ids.BlockID, index int, selector ids.VarID, cases []host.ClassID, otherwise bool) *Result {
	opcode := g.Block(block).Instrs()[index]
	loc := opcode.Loc()

	exitBlock := g.SplitBlock(block, index)
	g.Block(exitBlock).SetName("demux_exit")

	// SplitBlock leaves block terminated by a bare Jump straight to
	// exitBlock; that edge is replaced below by the type-test ladder, so
	// strip it back out before appending the ladder's own terminators.
	entry := g.Block(block)
	entry.RemoveAt(entry.Len() - 1)
	g.Disconnect(block, exitBlock)

	count := len(cases) - 1
	if otherwise {
		count++
	}

	cur := block
	segments := make([]ids.BlockID, 0, count+1)
	for i := 0; i < count; i++ {
		cond := generateTypeTestOpcode(g, refl, types, cur, selector, cases[i], loc)

		trueBlock := g.NewBlock()
		g.Block(trueBlock).SetName("demux_segment")
		nextBlock := g.NewBlock()
		g.Block(nextBlock).SetName("demux_cond")

		jumpIf := instr.NewJumpIf(loc, cond, trueBlock, nextBlock)
		g.Block(cur).Append(jumpIf)
		g.Connect(cur, trueBlock)
		g.Connect(cur, nextBlock)

		segments = append(segments, trueBlock)
		cur = nextBlock
	}
	segments = append(segments, cur)

	res := &Result{Segments: segments, ExitBlock: exitBlock, Otherwise: otherwise}

	if call, ok := opcode.(*instr.Call); ok && call.OutEnv() != ids.NoVar {
		envPhi := instr.NewPhi(loc, call.OutEnv(), exitBlock, count+1)
		g.Block(exitBlock).InsertBefore(0, envPhi)
		g.Var(call.OutEnv()).ResetDefSite(exitBlock, ids.NoInstr)
		res.EnvPhi = envPhi
	}

	if lhs := opcode.Lhs(); lhs != ids.NoVar {
		phi := instr.NewPhi(loc, lhs, exitBlock, count+1)
		g.Block(exitBlock).InsertBefore(0, phi)
		g.Var(lhs).ResetDefSite(exitBlock, ids.NoInstr)
		res.Phi = phi
	}

	return res
}

// generateTypeTestOpcode emits, into block, either a dedicated type
// test primitive for one of the specially-typed builtin classes (true,
// false, nil, Fixnum) or the generic class_of+identity-compare pair for
// any other class, and records the test's own Boolean(true|false) type
// with the analyzer's lattice so a later demux pass over the same
// variable can narrow further (spec §4.7, §4.4).
func generateTypeTestOpcode(g *cfg.CFG, refl host.Reflection, types *typeconstraint.TypeContext, block ids.BlockID, selector ids.VarID, cls host.ClassID, loc host.SourceLocation) ids.VarID {
	var cond ids.VarID

	switch refl.BuiltinClassOf(cls) {
	case host.BuiltinClassTrue:
		cond = emitPrimitive(g, block, loc, refl, host.PrimIsTrue, selector)
	case host.BuiltinClassFalse:
		cond = emitPrimitive(g, block, loc, refl, host.PrimIsFalse, selector)
	case host.BuiltinClassNilClass:
		cond = emitPrimitive(g, block, loc, refl, host.PrimIsNil, selector)
	case host.BuiltinClassFixnum:
		cond = emitPrimitive(g, block, loc, refl, host.PrimIsFixnum, selector)
	default:
		_, c := g.CreateVariable(host.NoID, nil)
		g.Block(block).Append(instr.NewImmediate(loc, c, cls))
		g.Var(c).ResetDefSite(block, ids.NoInstr)

		selc := emitPrimitive(g, block, loc, refl, host.PrimClassOf, selector)
		cond = emitPrimitive(g, block, loc, refl, host.PrimBitwiseCompareEq, c, selc)
	}

	if types != nil {
		types.Set(cond, typeconstraint.NewSelection(
			typeconstraint.NewExactClass(boolClass(refl, true)),
			typeconstraint.NewExactClass(boolClass(refl, false)),
		))
	}

	return cond
}

func emitPrimitive(g *cfg.CFG, block ids.BlockID, loc host.SourceLocation, refl host.Reflection, name string, args ...ids.VarID) ids.VarID {
	_, lhs := g.CreateVariable(host.NoID, nil)
	op := instr.NewPrimitive(loc, lhs, refl.Intern(name), args)
	g.Block(block).Append(op)
	g.Var(lhs).ResetDefSite(block, ids.NoInstr)
	return lhs
}

// boolClass finds the host.ClassID for true/false by the same reverse
// BuiltinClassOf scan internal/jit/typeanalyzer already uses for
// Fixnum/Bignum (host.Reflection has no ClassID-by-BuiltinClass query
// of its own).
func boolClass(refl host.Reflection, which bool) host.ClassID {
	want := host.BuiltinClassFalse
	if which {
		want = host.BuiltinClassTrue
	}
	for _, c := range refl.Subclasses(host.NoClass) {
		if refl.BuiltinClassOf(c) == want {
			return c
		}
	}
	return host.NoClass
}
