package check

import (
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/builder"
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/dom"
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ssa"
	"github.com/funvibe/rbjitgo/pkg/jitfixture"
)

// buildSSACFG lowers a tiny `def identity(n); return n; end`-shaped
// method all the way through SSA translation, giving every test in
// this package a known-good starting CFG to mutate into a violation.
func buildSSACFG(t *testing.T) *cfg.CFG {
	t.Helper()

	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)
	n := in.Intern("n")
	scope := jitfixture.Method(jitfixture.Args(1), []host.ID{n}, jitfixture.Seq(
		jitfixture.ReturnNode(jitfixture.LocalVar(n)),
	))

	b := builder.New(refl, nil)
	g, err := b.BuildMethod(scope, in.Intern("identity"))
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
