package typeanalyzer

import (
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/builder"
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/dom"
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/ssa"
	"github.com/funvibe/rbjitgo/internal/jit/typeconstraint"
	"github.com/funvibe/rbjitgo/pkg/jitfixture"
)

// lower runs scope all the way through build, dominance and SSA
// translation, the precondition the type analyzer itself documents
// (spec §4.4 expects a validated SSA-form cfg).
func lower(t *testing.T, refl host.Reflection, name string, scope *host.Scope) *cfg.CFG {
	t.Helper()
	b := builder.New(refl, nil)
	g, err := b.BuildMethod(scope, refl.Intern(name))
	if err != nil {
		t.Fatalf("BuildMethod: %v", err)
	}
	tree, err := dom.Compute(g)
	if err != nil {
		t.Fatalf("dom.Compute: %v", err)
	}
	g.SetDomTree(tree)
	if err := ssa.Translate(g, true); err != nil {
		t.Fatalf("ssa.Translate: %v", err)
	}
	return g
}

func TestAnalyzePropagatesInputTypeToReturn(t *testing.T) {
	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)
	greeter := refl.DefineClass("Greeter", host.NoClass, host.BuiltinClassNone)

	n := in.Intern("n")
	scope := jitfixture.Method(jitfixture.Args(1), []host.ID{n}, jitfixture.Seq(
		jitfixture.ReturnNode(jitfixture.LocalVar(n)),
	))
	g := lower(t, refl, "identity", scope)

	a := New(g, refl, greeter)
	// Input 0 is self; n, the value returned, is input 1.
	a.SetInputType(1, typeconstraint.NewExactClass(greeter))
	types, _, _ := a.Analyze()

	ret := types.Get(g.Output())
	list := ret.Resolve()
	found := false
	for _, cls := range list.Classes {
		if cls == greeter {
			found = true
		}
	}
	if !found {
		t.Fatalf("return type %+v (resolved %+v) does not include the input's ExactClass(Greeter)", ret, list)
	}
}

func TestAnalyzeMarksStaticallyDeadBranchUnreachable(t *testing.T) {
	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)
	greeter := refl.DefineClass("Greeter", host.NoClass, host.BuiltinClassNone)

	scope := jitfixture.Method(jitfixture.Args(0), nil, jitfixture.Seq(
		jitfixture.If(jitfixture.FalseNode(), jitfixture.Lit(int64(1)), jitfixture.Lit(int64(2))),
	))
	g := lower(t, refl, "pick", scope)

	a := New(g, refl, greeter)
	a.Analyze()

	if !a.ReachableBlock(g.Entry()) {
		t.Fatalf("entry block must always be reachable")
	}
	if !a.ReachableBlock(g.Exit()) {
		t.Fatalf("exit block must be reachable through the live (else) arm")
	}

	unreachable := 0
	for bi := 0; bi < g.BlockCount(); bi++ {
		if !a.ReachableBlock(ids.BlockID(bi)) {
			unreachable++
		}
	}
	if unreachable == 0 {
		t.Fatalf("a statically-false condition should leave its then-arm block unreachable, but every block was visited")
	}
}
