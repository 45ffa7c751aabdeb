package builder

import (
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
	"github.com/funvibe/rbjitgo/pkg/jitfixture"
)

func TestBuildMethodSetsArityAndInputs(t *testing.T) {
	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)
	n := in.Intern("n")
	scope := jitfixture.Method(jitfixture.Args(1), []host.ID{n}, jitfixture.Seq(
		jitfixture.ReturnNode(jitfixture.LocalVar(n)),
	))

	g, err := New(refl, nil).BuildMethod(scope, in.Intern("identity"))
	if err != nil {
		t.Fatalf("BuildMethod: %v", err)
	}
	if g.RequiredArgCount() != 1 {
		t.Fatalf("RequiredArgCount() = %d, want 1", g.RequiredArgCount())
	}
	// self plus the one declared argument.
	if len(g.Inputs()) != 2 {
		t.Fatalf("Inputs() = %v, want 2 entries (self, n)", g.Inputs())
	}
	if g.Entry() == g.Exit() {
		t.Fatalf("entry and exit must be distinct blocks")
	}
}

func TestBuildMethodRejectsVariadicArguments(t *testing.T) {
	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)
	scope := jitfixture.Method(host.ArgsInfo{RequiredCount: 1, HasRest: true}, nil, jitfixture.Seq(
		jitfixture.ReturnNode(jitfixture.NilNode()),
	))

	_, err := New(refl, nil).BuildMethod(scope, in.Intern("variadic"))
	if err == nil {
		t.Fatalf("BuildMethod should reject a rest argument")
	}
	if _, ok := err.(*UnsupportedSyntaxError); !ok {
		t.Fatalf("BuildMethod error = %T, want *UnsupportedSyntaxError", err)
	}
}

func TestBuildIfProducesMultipleBlocksWithJumpIfTerminator(t *testing.T) {
	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)
	n := in.Intern("n")
	scope := jitfixture.Method(jitfixture.Args(1), []host.ID{n}, jitfixture.Seq(
		jitfixture.If(jitfixture.LocalVar(n), jitfixture.Lit(int64(1)), jitfixture.Lit(int64(2))),
	))

	g, err := New(refl, nil).BuildMethod(scope, in.Intern("pick"))
	if err != nil {
		t.Fatalf("BuildMethod: %v", err)
	}
	if g.BlockCount() < 4 {
		t.Fatalf("BlockCount() = %d, want at least 4 (entry, then, else, exit)", g.BlockCount())
	}

	term := g.Block(g.Entry()).Terminator()
	if term == nil || term.Kind() != instr.KindJumpIf {
		t.Fatalf("entry block's terminator = %+v, want a JumpIf", term)
	}
}

func TestBuildDispatchEmitsPrimitiveWhenArityMatches(t *testing.T) {
	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)
	prims := jitfixture.NewPrimitiveCatalogue(in)

	n := in.Intern("n")
	scope := jitfixture.Method(jitfixture.Args(1), []host.ID{n}, jitfixture.Seq(
		jitfixture.ReturnNode(jitfixture.Funcall(in.Intern(host.PrimIsNil), jitfixture.LocalVar(n))),
	))

	g, err := New(refl, prims).BuildMethod(scope, in.Intern("check"))
	if err != nil {
		t.Fatalf("BuildMethod: %v", err)
	}

	found := false
	for bi := 0; bi < g.BlockCount(); bi++ {
		for _, op := range g.Block(ids.BlockID(bi)).Instrs() {
			if op.Kind() == instr.KindPrimitive {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected a Primitive opcode for a cataloged primitive called with matching arity")
	}
}

func TestBuildDispatchFallsBackToLookupWhenArityMismatches(t *testing.T) {
	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)
	prims := jitfixture.NewPrimitiveCatalogue(in)

	n := in.Intern("n")
	// PrimIsNil is arity 1 (one explicit arg); calling it with zero
	// explicit args (a VCall) must not match and should fall back to an
	// ordinary Lookup+Call dispatch.
	scope := jitfixture.Method(jitfixture.Args(1), []host.ID{n}, jitfixture.Seq(
		jitfixture.ReturnNode(jitfixture.VCall(in.Intern(host.PrimIsNil))),
	))

	g, err := New(refl, prims).BuildMethod(scope, in.Intern("check"))
	if err != nil {
		t.Fatalf("BuildMethod: %v", err)
	}

	foundLookup := false
	foundPrimitive := false
	for bi := 0; bi < g.BlockCount(); bi++ {
		for _, op := range g.Block(ids.BlockID(bi)).Instrs() {
			switch op.Kind() {
			case instr.KindLookup:
				foundLookup = true
			case instr.KindPrimitive:
				foundPrimitive = true
			}
		}
	}
	if foundPrimitive {
		t.Fatalf("arity-0 call to an arity-1 primitive should not emit Primitive")
	}
	if !foundLookup {
		t.Fatalf("expected a Lookup+Call fallback dispatch")
	}
}
