package dom

import (
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/builder"
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/pkg/jitfixture"
)

// buildDiamond lowers:
//
//	def pick(n)
//	  if n
//	    1
//	  else
//	    2
//	  end
//	end
//
// giving entry -> {then, else} -> join -> exit, a classic diamond whose
// dominator tree has then, else and join as children of entry, and
// exit as the child of join.
func buildDiamond(t *testing.T) *cfg.CFG {
	t.Helper()

	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)
	n := in.Intern("n")
	scope := jitfixture.Method(jitfixture.Args(1), []host.ID{n}, jitfixture.Seq(
		jitfixture.If(jitfixture.LocalVar(n), jitfixture.Lit(int64(1)), jitfixture.Lit(int64(2))),
	))

	b := builder.New(refl, nil)
	g, err := b.BuildMethod(scope, in.Intern("pick"))
	if err != nil {
		t.Fatalf("BuildMethod: %v", err)
	}
	return g
}

func buildStraightLine(t *testing.T) *cfg.CFG {
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
	return g
}

func TestComputeStraightLineEveryBlockDominatedByEntry(t *testing.T) {
	g := buildStraightLine(t)
	tree, err := Compute(g)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for bi := 0; bi < g.BlockCount(); bi++ {
		if !tree.Dominates(g.Entry(), ids.BlockID(bi)) {
			t.Fatalf("entry block does not dominate block %d in a straight-line cfg", bi)
		}
	}
	if tree.IDom(g.Entry()) != ids.NoBlock && tree.IDom(g.Entry()) != g.Entry() {
		t.Fatalf("entry's idom = %d, want itself or NoBlock", tree.IDom(g.Entry()))
	}
}

func TestComputeDiamondMergeBlockIdomIsEntry(t *testing.T) {
	g := buildDiamond(t)
	tree, err := Compute(g)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	entry := g.Entry()
	exit := g.Exit()

	// Entry must dominate every block, including the merge point and
	// exit, since both branches converge before returning.
	for bi := 0; bi < g.BlockCount(); bi++ {
		if !tree.Dominates(entry, ids.BlockID(bi)) {
			t.Fatalf("entry does not dominate block %d in the diamond", bi)
		}
	}

	// The merge block is reached from both arms of the if, so neither
	// arm alone can be its immediate dominator: it must be entry.
	merges := 0
	for bi := 0; bi < g.BlockCount(); bi++ {
		if g.Block(ids.BlockID(bi)).PredecessorCount() < 2 {
			continue
		}
		merges++
		if got := tree.IDom(ids.BlockID(bi)); got != entry {
			t.Fatalf("merge block %d has idom %d, want entry %d", bi, got, entry)
		}
	}
	if merges == 0 {
		t.Fatalf("test setup: the diamond has no merge block")
	}

	// The exit block follows the merge block, so its immediate
	// dominator is the merge block, itself dominated by entry.
	idomExit := tree.IDom(exit)
	if idomExit == ids.NoBlock {
		t.Fatalf("exit block has no immediate dominator")
	}
	if !tree.Dominates(entry, idomExit) && idomExit != entry {
		t.Fatalf("exit's idom %d is not entry or dominated by entry", idomExit)
	}
}

func TestComputeIsIdempotentAcrossMutation(t *testing.T) {
	g := buildStraightLine(t)
	first, err := Compute(g)
	if err != nil {
		t.Fatalf("Compute (first): %v", err)
	}
	g.SetDomTree(first)

	extra := g.NewBlock()
	g.Connect(g.Entry(), extra)
	g.Connect(extra, g.Exit())

	second, err := Compute(g)
	if err != nil {
		t.Fatalf("Compute (second, after mutation): %v", err)
	}
	if second.Size() == first.Size() {
		t.Fatalf("recomputed dominator tree size %d did not grow after adding a block", second.Size())
	}
}
