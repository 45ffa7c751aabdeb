package demux

import (
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/builder"
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
	"github.com/funvibe/rbjitgo/pkg/jitfixture"
)

// buildCallSite lowers `def m(n); n.foo; end` — foo is not cataloged as
// a primitive, so buildDispatch falls back to an ordinary Lookup+Call,
// giving demux something to split.
func buildCallSite(t *testing.T) (*cfg.CFG, *jitfixture.Reflection, ids.BlockID, int, *instr.Call) {
	t.Helper()
	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)
	n := in.Intern("n")
	scope := jitfixture.Method(jitfixture.Args(1), []host.ID{n}, jitfixture.Seq(
		jitfixture.ReturnNode(jitfixture.Call(jitfixture.LocalVar(n), in.Intern("foo"), nil)),
	))
	g, err := builder.New(refl, nil).BuildMethod(scope, in.Intern("m"))
	if err != nil {
		t.Fatalf("BuildMethod: %v", err)
	}

	for bi := 0; bi < g.BlockCount(); bi++ {
		blk := g.Block(ids.BlockID(bi))
		for i, op := range blk.Instrs() {
			if call, ok := op.(*instr.Call); ok {
				return g, refl, ids.BlockID(bi), i, call
			}
		}
	}
	t.Fatalf("no Call instruction found in the built cfg")
	return nil, nil, 0, 0, nil
}

func TestDemultiplexSplitsIntoOneSegmentPerCasePlusOtherwise(t *testing.T) {
	g, refl, block, index, call := buildCallSite(t)

	a := refl.DefineClass("A", host.NoClass, host.BuiltinClassNone)
	b := refl.DefineClass("B", host.NoClass, host.BuiltinClassNone)

	res := Demultiplex(g, refl, nil, block, index, call.Receiver(), []host.ClassID{a, b}, true)

	// One segment per case (a, b) plus one otherwise residual = 3 segments.
	if len(res.Segments) != 3 {
		t.Fatalf("len(Segments) = %d, want 3 (one per case, one otherwise residual)", len(res.Segments))
	}
	if !res.Otherwise {
		t.Fatalf("Result.Otherwise = false, want true")
	}
	if res.ExitBlock == block {
		t.Fatalf("ExitBlock must not be the original block")
	}
	if res.Phi == nil {
		t.Fatalf("the split opcode had a lhs, so Result.Phi must be non-nil")
	}
	if len(res.Phi.Operands()) != len(res.Segments) {
		t.Fatalf("Phi has %d operands, want %d (one per segment, including the trailing otherwise)", len(res.Phi.Operands()), len(res.Segments))
	}
}

func TestDemultiplexWithoutOtherwiseHasNoResidualSegment(t *testing.T) {
	g, refl, block, index, call := buildCallSite(t)

	a := refl.DefineClass("A", host.NoClass, host.BuiltinClassNone)
	b := refl.DefineClass("B", host.NoClass, host.BuiltinClassNone)
	c := refl.DefineClass("C", host.NoClass, host.BuiltinClassNone)

	res := Demultiplex(g, refl, nil, block, index, call.Receiver(), []host.ClassID{a, b, c}, false)

	// len(cases)-1 = 2 tested segments plus the final fallthrough for
	// the last case = 3 segments, no otherwise.
	if len(res.Segments) != 3 {
		t.Fatalf("len(Segments) = %d, want 3", len(res.Segments))
	}
	if res.Otherwise {
		t.Fatalf("Result.Otherwise = true, want false")
	}
}

func TestDemultiplexBuiltinClassUsesDedicatedPrimitive(t *testing.T) {
	g, refl, block, index, call := buildCallSite(t)
	trueClass := refl.DefineClass("TrueClass", host.NoClass, host.BuiltinClassTrue)

	Demultiplex(g, refl, nil, block, index, call.Receiver(), []host.ClassID{trueClass}, true)

	foundIsTrue := false
	for bi := 0; bi < g.BlockCount(); bi++ {
		for _, op := range g.Block(ids.BlockID(bi)).Instrs() {
			p, ok := op.(*instr.Primitive)
			if ok && refl.StringOf(p.Name) == host.PrimIsTrue {
				foundIsTrue = true
			}
		}
	}
	if !foundIsTrue {
		t.Fatalf("expected a dedicated PrimIsTrue type test for a BuiltinClassTrue case")
	}
}
