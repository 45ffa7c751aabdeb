// Package inline implements the Inliner (spec §3 "Inlining", §4.8),
// grounded on original_source/rbjit/include/rbjit/inliner.h and
// src/inliner.cpp: walk a compiled method's CFG looking for Call
// opcodes, and for each one whose receiver type analysis narrowed the
// dispatch to a short candidate list, splice the candidate(s)' own
// already-compiled bodies directly into the caller (via
// internal/jit/duplicate), falling back to a direct re-dispatch call
// for any candidate that cannot be inlined (native methods, recursive
// self-calls, or more than the narrowed list can rule out).
package inline

import (
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/demux"
	"github.com/funvibe/rbjitgo/internal/jit/duplicate"
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
	"github.com/funvibe/rbjitgo/internal/jit/typeconstraint"
)

// CompiledMethod is the subset of a compiled method the Inliner needs
// to splice it into a caller: its CFG and the TypeContext the type
// analyzer produced for it. The original's CompilationInstance bundles
// a good deal more (the source AST, mutator/jit-only flags); those
// stay in compiler.Instance, which hands the Inliner just this view.
type CompiledMethod struct {
	CFG   *cfg.CFG
	Types *typeconstraint.TypeContext
}

// Provider resolves an AST-bearing method entry to its compiled form,
// so the Inliner can duplicate it in place of a call site. Whether
// "compiled" means "already compiled" or "compile on demand" is the
// provider's business; the Inliner only ever reads the result.
type Provider interface {
	Compiled(me host.MethodEntry) (*CompiledMethod, bool)
}

// Recorder is notified of every concrete (class, method) a call site
// ends up wired to (inlined or a known direct call — there is nothing
// to record for the "otherwise" branch, since it re-dispatches
// generically at runtime rather than through any one fixed callee).
// This is the hook the Recompilation Manager (spec §4.9) uses to
// invalidate and recompile callers when that callee is redefined.
// Optional: a nil Recorder simply means relations go untracked.
type Recorder interface {
	AddCalleeCallerRelation(callee host.MethodKey, caller *CompiledMethod)
}

// Inliner mutates one method's CFG/TypeContext in place, inlining call
// sites until none of the remaining ones are inlinable.
type Inliner struct {
	g        *cfg.CFG
	types    *typeconstraint.TypeContext
	refl     host.Reflection
	provider Provider
	recorder Recorder
	self     *CompiledMethod

	work []ids.BlockID
}

func New(g *cfg.CFG, types *typeconstraint.TypeContext, refl host.Reflection, provider Provider, recorder Recorder, self *CompiledMethod) *Inliner {
	return &Inliner{g: g, types: types, refl: refl, provider: provider, recorder: recorder, self: self}
}

// DoInlining is the original's Inliner::doInlining: a worklist walk
// from the entry block, retrying a block from its current instruction
// whenever a Call in it gets inlined (the block's contents shift
// underneath the in-progress scan), and otherwise descending into
// successors once a block is exhausted.
//
// Unlike the original's bare "goto loop" (which abandons the current
// block to the worklist stack and relies on replaceCallWithMethodBody
// alone to requeue anything still reachable), this port explicitly
// requeues the call site's own continuation block (the join/exit block
// inlineCallSite just built) before returning, so later calls in the
// same original block are never silently skipped regardless of the
// exact stack-ordering the original's goto produced.
func (inl *Inliner) DoInlining() {
	inl.work = append(inl.work, inl.g.Entry())
	visited := make(map[ids.BlockID]bool)

loop:
	for len(inl.work) > 0 {
		block := inl.work[len(inl.work)-1]
		inl.work = inl.work[:len(inl.work)-1]
		if visited[block] {
			continue
		}
		visited[block] = true

		for i, op := range inl.g.Block(block).Instrs() {
			if _, ok := op.(*instr.Call); ok {
				if inl.inlineCallSite(block, i) {
					continue loop
				}
			}
		}

		if term := inl.g.Block(block).Terminator(); term != nil {
			for _, succ := range term.Successors() {
				if !visited[succ] {
					inl.work = append(inl.work, succ)
				}
			}
		}
	}
}

// inlineCallSite mirrors Inliner::inlineCallSite: classify the call's
// Lookup candidates into inlinable (AST-bearing, not self-recursive,
// resolvable through the Provider), known-but-not-inlinable (native, or
// self-recursive) and otherwise (dispatch target not statically
// determined), then either splice a single candidate's body in place or
// build a demux ladder and splice/call each candidate into its own
// segment.
func (inl *Inliner) inlineCallSite(block ids.BlockID, idx int) bool {
	op := inl.g.Block(block).Instrs()[idx]
	call, ok := op.(*instr.Call)
	if !ok {
		return false
	}

	lookup, ok := inl.types.Get(call.Lookup()).(*typeconstraint.Lookup)
	if !ok {
		return false
	}

	type candidate struct {
		class     host.ClassID
		method    host.MethodEntry
		compiled  *CompiledMethod
		inlinable bool
	}

	otherwise := !lookup.Determined

	// A call that passes a block literal is never inlined across: its
	// candidates stay direct calls carrying the CodeBlock operand.
	hasCodeBlock := false
	for _, o := range inl.g.Block(block).Instrs() {
		if cb, ok := o.(*instr.CodeBlock); ok && cb.Lhs() == call.CodeBlock() {
			hasCodeBlock = true
			break
		}
	}

	var cands []candidate
	for _, c := range lookup.Candidates {
		if c.Method.Kind == host.MethodUnknown {
			otherwise = true
			continue
		}
		cand := candidate{class: c.Class, method: c.Method}
		if c.Method.Kind == host.MethodHasAST && !c.Method.Self && !hasCodeBlock {
			if cm, ok := inl.provider.Compiled(c.Method); ok {
				cand.compiled = cm
				cand.inlinable = true
			}
		}
		cands = append(cands, cand)
	}

	if len(cands) == 0 {
		return false
	}
	if !otherwise && len(cands) == 1 && !cands[0].inlinable {
		return false
	}

	var lookupOp *instr.Lookup
	for _, o := range inl.g.Block(block).Instrs() {
		if lk, ok := o.(*instr.Lookup); ok && lk.Lhs() == call.Lookup() {
			lookupOp = lk
			break
		}
	}

	if !otherwise && len(cands) == 1 && cands[0].inlinable {
		splitAt := inl.g.Block(block).IndexOf(op)
		join := inl.g.SplitBlock(block, splitAt)
		inl.g.Block(join).SetName("inliner_join")
		// SplitBlock ended block with a Jump to join; the Jump into the
		// duplicated body replaces it, and the body's exit jumps to join.
		blk := inl.g.Block(block)
		blk.RemoveAt(blk.Len() - 1)
		inl.g.Disconnect(block, join)

		_, _, resultBlock := inl.replaceCallWithMethodBody(cands[0].compiled, block, call, lookupOp.InEnv(), call.Lhs(), call.OutEnv())
		inl.g.Block(resultBlock).Append(instr.NewJump(call.Loc(), join))
		inl.g.Connect(resultBlock, join)

		removeOp(inl.g, join, op)
		inl.work = append(inl.work, join)
		inl.recordCallee(cands[0].class, cands[0].method.Name)
	} else {
		cases := make([]host.ClassID, len(cands))
		for i, c := range cands {
			cases[i] = c.class
		}
		res := demux.Demultiplex(inl.g, inl.refl, inl.types, block, inl.g.Block(block).IndexOf(op), call.Receiver(), cases, otherwise)

		size := len(cands)
		if otherwise {
			size++
		}
		otherwiseIdx := size - 1
		for i := 0; i < size; i++ {
			seg := res.Segments[i]

			var lhs, env ids.VarID
			var resultBlock ids.BlockID
			switch {
			case otherwise && i == otherwiseIdx:
				lhs, env, resultBlock = inl.insertCall(host.MethodEntry{}, seg, call, lookupOp.InEnv(), lookupOp.MethodName)
			case cands[i].inlinable:
				lhs, env, resultBlock = inl.replaceCallWithMethodBody(cands[i].compiled, seg, call, lookupOp.InEnv(), ids.NoVar, ids.NoVar)
				inl.recordCallee(cands[i].class, cands[i].method.Name)
			default:
				lhs, env, resultBlock = inl.insertCall(cands[i].method, seg, call, lookupOp.InEnv(), lookupOp.MethodName)
				inl.recordCallee(cands[i].class, cands[i].method.Name)
			}

			inl.g.Block(resultBlock).Append(instr.NewJump(call.Loc(), res.ExitBlock))
			inl.g.Connect(resultBlock, res.ExitBlock)

			index := inl.g.Block(res.ExitBlock).IndexOfPredecessor(resultBlock)
			if res.Phi != nil && lhs != ids.NoVar {
				res.Phi.SetOperand(index, lhs)
			}
			if res.EnvPhi != nil && env != ids.NoVar {
				res.EnvPhi.SetOperand(index, env)
			}
		}

		removeOp(inl.g, res.ExitBlock, op)
		inl.work = append(inl.work, res.ExitBlock)
	}

	removeOp(inl.g, block, lookupOp)
	return true
}

func (inl *Inliner) recordCallee(cls host.ClassID, name host.ID) {
	if inl.recorder != nil && inl.self != nil {
		inl.recorder.AddCalleeCallerRelation(host.MethodKey{Class: cls, Name: name}, inl.self)
	}
}

// replaceCallWithMethodBody is Inliner::replaceCallWithMethodBody:
// duplicate mi's whole CFG into the caller (internal/jit/duplicate),
// wire the call's arguments in as Copy instructions feeding the
// duplicated entry's inputs, alias the duplicated entry env to the
// call's own env via a SameAs constraint, jump entry into the
// duplicated body, and (at the duplicated exit) copy the body's output
// into result/exitEnv — allocating fresh variables for either when the
// caller passes NoVar (the demux-segment case, where each segment needs
// its own phi operand rather than sharing the original call's lhs).
func (inl *Inliner) replaceCallWithMethodBody(mi *CompiledMethod, entry ids.BlockID, call *instr.Call, curEnv, result, exitEnvVar ids.VarID) (ids.VarID, ids.VarID, ids.BlockID) {
	g, types := inl.g, inl.types
	loc := call.Loc()

	dup := duplicate.Incorporate(mi.CFG, mi.Types, g, types)

	args := append([]ids.VarID{call.Receiver()}, call.Args()...)
	for i, in := range mi.CFG.Inputs() {
		newArg := dup.Var(in)
		cp := instr.NewCopy(loc, newArg, args[i])
		g.Block(entry).Append(cp)
		g.Var(newArg).ResetDefSite(entry, ids.NoInstr)
	}

	entryEnv := dup.Var(mi.CFG.EntryEnv())
	types.Set(entryEnv, typeconstraint.NewSameAs(curEnv))

	g.Block(entry).Append(instr.NewJump(loc, dup.Entry))
	g.Connect(entry, dup.Entry)

	exitBlock := dup.Exit

	if call.Lhs() != ids.NoVar {
		if result == ids.NoVar {
			_, result = g.CreateVariable(host.NoID, nil)
			types.Set(result, types.Get(call.Lhs()).Clone())
		}
		out := dup.Var(mi.CFG.Output())
		cp := instr.NewCopy(loc, result, out)
		g.Block(exitBlock).Append(cp)
		g.Var(result).ResetDefSite(exitBlock, ids.NoInstr)
	}

	env := dup.Var(mi.CFG.ExitEnv())
	if exitEnvVar != ids.NoVar {
		cp := instr.NewCopy(loc, exitEnvVar, env)
		g.Block(exitBlock).Append(cp)
		g.Var(exitEnvVar).ResetDefSite(exitBlock, ids.NoInstr)
		env = exitEnvVar
	}

	inl.work = append(inl.work, dup.Entry)

	return result, env, exitBlock
}

// insertCall is Inliner::insertCall + duplicateCall combined: build a
// fresh Lookup (typed as a single determined candidate when me is
// known, or left undetermined for the otherwise branch) and a fresh
// Call duplicating the original's receiver/args/code-block, in entry.
//
// The original encodes a known target by stuffing the resolved
// rb_method_entry_t pointer into a TypeConstant (a VALUE-typed
// constant normally reserved for Ruby objects). This port has no VALUE
// to smuggle a method entry through and already has a constraint built
// for exactly this shape, so it types the new lookup with a determined
// typeconstraint.Lookup carrying the one known Candidate instead.
func (inl *Inliner) insertCall(me host.MethodEntry, entry ids.BlockID, call *instr.Call, curEnv ids.VarID, name host.ID) (ids.VarID, ids.VarID, ids.BlockID) {
	g, types := inl.g, inl.types
	loc := call.Loc()
	receiver := call.Receiver()

	_, lookupVar := g.CreateVariable(host.NoID, nil)
	lk := instr.NewLookup(loc, lookupVar, receiver, curEnv, name)
	g.Block(entry).Append(lk)
	g.Var(lookupVar).ResetDefSite(entry, ids.NoInstr)

	if me.Kind != host.MethodUnknown {
		types.Set(lookupVar, typeconstraint.NewLookup(true, typeconstraint.Candidate{Class: me.Owner, Method: me}))
	} else {
		types.Set(lookupVar, typeconstraint.NewLookup(false))
	}

	args := append([]ids.VarID(nil), call.Args()...)

	var lhs ids.VarID = ids.NoVar
	if call.Lhs() != ids.NoVar {
		_, lhs = g.CreateVariable(host.NoID, nil)
		types.Set(lhs, typeconstraint.NewAny())
	}
	_, outEnv := g.CreateVariable(host.NoID, nil)
	types.Set(outEnv, typeconstraint.NewEnv())

	newCall := instr.NewCall(loc, lhs, receiver, args, lookupVar, call.CodeBlock())
	newCall.SetOutEnv(outEnv)
	g.Block(entry).Append(newCall)

	if lhs != ids.NoVar {
		g.Var(lhs).ResetDefSite(entry, ids.NoInstr)
	}
	g.Var(outEnv).ResetDefSite(entry, ids.NoInstr)

	return lhs, outEnv, entry
}

func removeOp(g *cfg.CFG, block ids.BlockID, op instr.Instr) {
	if op == nil {
		return
	}
	if idx := g.Block(block).IndexOf(op); idx >= 0 {
		g.Block(block).RemoveAt(idx)
	}
}
