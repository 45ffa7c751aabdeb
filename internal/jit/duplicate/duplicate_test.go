package duplicate

import (
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/builder"
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/pkg/jitfixture"
)

func buildDiamond(t *testing.T) *cfg.CFG {
	t.Helper()
	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)
	n := in.Intern("n")
	scope := jitfixture.Method(jitfixture.Args(1), []host.ID{n}, jitfixture.Seq(
		jitfixture.If(jitfixture.LocalVar(n), jitfixture.Lit(int64(1)), jitfixture.Lit(int64(2))),
	))
	g, err := builder.New(refl, nil).BuildMethod(scope, in.Intern("pick"))
	if err != nil {
		t.Fatalf("BuildMethod: %v", err)
	}
	return g
}

func TestDuplicateProducesStandaloneCopyWithSameShape(t *testing.T) {
	src := buildDiamond(t)
	dest, res := Duplicate(src)

	if dest == src {
		t.Fatalf("Duplicate must return a distinct CFG, not the source")
	}
	if dest.BlockCount() != src.BlockCount() {
		t.Fatalf("dest.BlockCount() = %d, want %d", dest.BlockCount(), src.BlockCount())
	}
	if dest.VarCount() != src.VarCount() {
		t.Fatalf("dest.VarCount() = %d, want %d", dest.VarCount(), src.VarCount())
	}
	if res.Block(src.Entry()) != dest.Entry() {
		t.Fatalf("Result.Block(src.Entry()) = %d, want dest.Entry() = %d", res.Block(src.Entry()), dest.Entry())
	}
	if res.Block(src.Exit()) != dest.Exit() {
		t.Fatalf("Result.Block(src.Exit()) = %d, want dest.Exit() = %d", res.Block(src.Exit()), dest.Exit())
	}
	if res.Block(ids.NoBlock) != ids.NoBlock {
		t.Fatalf("Result.Block(NoBlock) must stay NoBlock")
	}
	if res.Var(ids.NoVar) != ids.NoVar {
		t.Fatalf("Result.Var(NoVar) must stay NoVar")
	}
}

func TestDuplicateInstructionsAreIndependentPerBlock(t *testing.T) {
	src := buildDiamond(t)
	dest, res := Duplicate(src)

	for bi := 0; bi < src.BlockCount(); bi++ {
		srcBlock := src.Block(ids.BlockID(bi))
		destBlock := dest.Block(res.Block(ids.BlockID(bi)))
		want := len(srcBlock.Instrs())
		if ids.BlockID(bi) == src.Exit() {
			// The duplicator emits nothing for Exit, so the exit
			// block's copy is one instruction shorter.
			want--
		}
		if len(destBlock.Instrs()) != want {
			t.Fatalf("block %d: src has %d instrs, dest has %d, want %d", bi, len(srcBlock.Instrs()), len(destBlock.Instrs()), want)
		}
	}

	// Mutating the duplicate must not disturb the source.
	destEntry := dest.Block(dest.Entry())
	before := len(src.Block(src.Entry()).Instrs())
	destEntry.RemoveAt(0)
	after := len(src.Block(src.Entry()).Instrs())
	if before != after {
		t.Fatalf("mutating the duplicate's entry block changed the source's instruction count")
	}
}

func TestIncorporateAppendsIntoExistingCfg(t *testing.T) {
	src := buildDiamond(t)
	dest := cfg.New()
	dest.NewBlock() // pre-existing block unrelated to src

	preexistingBlockCount := dest.BlockCount()
	res := Incorporate(src, nil, dest, nil)

	if dest.BlockCount() != preexistingBlockCount+src.BlockCount() {
		t.Fatalf("dest.BlockCount() = %d, want %d (preexisting %d + src %d)",
			dest.BlockCount(), preexistingBlockCount+src.BlockCount(), preexistingBlockCount, src.BlockCount())
	}
	if res.Entry != res.Block(src.Entry()) {
		t.Fatalf("Result.Entry = %d, want Result.Block(src.Entry()) = %d", res.Entry, res.Block(src.Entry()))
	}
}
