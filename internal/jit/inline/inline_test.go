package inline

import (
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/builder"
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/dom"
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
	"github.com/funvibe/rbjitgo/internal/jit/ssa"
	"github.com/funvibe/rbjitgo/internal/jit/typeconstraint"
	"github.com/funvibe/rbjitgo/pkg/jitfixture"
)

func lowerToSSA(t *testing.T, refl host.Reflection, name string, scope *host.Scope) *cfg.CFG {
	t.Helper()
	b := builder.New(refl, nil)
	g, err := b.BuildMethod(scope, refl.Intern(name))
	if err != nil {
		t.Fatalf("BuildMethod(%s): %v", name, err)
	}
	tree, err := dom.Compute(g)
	if err != nil {
		t.Fatalf("dom.Compute(%s): %v", name, err)
	}
	g.SetDomTree(tree)
	if err := ssa.Translate(g, true); err != nil {
		t.Fatalf("ssa.Translate(%s): %v", name, err)
	}
	return g
}

type stubProvider struct {
	byKey map[host.MethodKey]*CompiledMethod
}

func (p *stubProvider) Compiled(me host.MethodEntry) (*CompiledMethod, bool) {
	cm, ok := p.byKey[host.MethodKey{Class: me.Owner, Name: me.Name}]
	return cm, ok
}

type stubRecorder struct {
	recorded []host.MethodKey
}

func (r *stubRecorder) AddCalleeCallerRelation(callee host.MethodKey, _ *CompiledMethod) {
	r.recorded = append(r.recorded, callee)
}

func findCall(g *cfg.CFG) *instr.Call {
	for bi := 0; bi < g.BlockCount(); bi++ {
		for _, op := range g.Block(ids.BlockID(bi)).Instrs() {
			if call, ok := op.(*instr.Call); ok {
				return call
			}
		}
	}
	return nil
}

func TestDoInliningSplicesSingleDeterminedCandidate(t *testing.T) {
	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)
	greeter := refl.DefineClass("Greeter", host.NoClass, host.BuiltinClassNone)

	nArg := in.Intern("n")
	identityScope := jitfixture.Method(jitfixture.Args(1), []host.ID{nArg}, jitfixture.Seq(
		jitfixture.ReturnNode(jitfixture.LocalVar(nArg)),
	))
	identityName := in.Intern("identity")
	calleeCFG := lowerToSSA(t, refl, "identity", identityScope)
	calleeTypes := typeconstraint.NewTypeContext()
	identityME := host.MethodEntry{Kind: host.MethodHasAST, Owner: greeter, Name: identityName, AST: identityScope, RequiredArgCount: 1}
	refl.DefineMethod(greeter, "identity", host.MethodHasAST, identityScope, false, 1)

	twiceScope := jitfixture.Method(jitfixture.Args(1), []host.ID{nArg}, jitfixture.Seq(
		jitfixture.ReturnNode(jitfixture.Funcall(identityName, jitfixture.LocalVar(nArg))),
	))
	callerCFG := lowerToSSA(t, refl, "twice", twiceScope)
	callerTypes := typeconstraint.NewTypeContext()

	call := findCall(callerCFG)
	if call == nil {
		t.Fatalf("no Call instruction found in the caller cfg")
	}
	callerTypes.Set(call.Lookup(), typeconstraint.NewLookup(true, typeconstraint.Candidate{Class: greeter, Method: identityME}))

	provider := &stubProvider{byKey: map[host.MethodKey]*CompiledMethod{
		{Class: greeter, Name: identityName}: {CFG: calleeCFG, Types: calleeTypes},
	}}
	recorder := &stubRecorder{}
	self := &CompiledMethod{CFG: callerCFG, Types: callerTypes}

	inl := New(callerCFG, callerTypes, refl, provider, recorder, self)
	inl.DoInlining()

	if findCall(callerCFG) != nil {
		t.Fatalf("the sole call site was fully determined and inlinable, but a Call instruction still remains")
	}
	if len(recorder.recorded) != 1 || recorder.recorded[0] != (host.MethodKey{Class: greeter, Name: identityName}) {
		t.Fatalf("Recorder.recorded = %v, want exactly one callee/caller edge to Greeter#identity", recorder.recorded)
	}
}

func TestDoInliningLeavesUndeterminedCallAlone(t *testing.T) {
	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)

	nArg := in.Intern("n")
	callScope := jitfixture.Method(jitfixture.Args(1), []host.ID{nArg}, jitfixture.Seq(
		jitfixture.ReturnNode(jitfixture.Funcall(in.Intern("mystery"), jitfixture.LocalVar(nArg))),
	))
	g := lowerToSSA(t, refl, "caller", callScope)
	types := typeconstraint.NewTypeContext()

	call := findCall(g)
	if call == nil {
		t.Fatalf("no Call instruction found")
	}
	// An undetermined lookup with zero candidates: inlineCallSite must
	// decline (len(cands) == 0) rather than building an empty demux.
	types.Set(call.Lookup(), typeconstraint.NewLookup(false))

	provider := &stubProvider{byKey: map[host.MethodKey]*CompiledMethod{}}
	inl := New(g, types, refl, provider, nil, nil)
	inl.DoInlining()

	if findCall(g) == nil {
		t.Fatalf("a call site with zero candidates must be left in place, not removed")
	}
}
