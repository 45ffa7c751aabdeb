package ssa

import (
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/builder"
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/dom"
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
	"github.com/funvibe/rbjitgo/pkg/jitfixture"
)

func diamondMethod(in *jitfixture.Interner) *host.Scope {
	n := in.Intern("n")
	return jitfixture.Method(jitfixture.Args(1), []host.ID{n}, jitfixture.Seq(
		jitfixture.LocalAssign(n, jitfixture.If(jitfixture.LocalVar(n), jitfixture.Lit(int64(1)), jitfixture.Lit(int64(2)))),
		jitfixture.ReturnNode(jitfixture.LocalVar(n)),
	))
}

func buildDiamondSSA(t *testing.T) *cfg.CFG {
	t.Helper()
	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)
	scope := diamondMethod(in)
	b := builder.New(refl, nil)
	g, err := b.BuildMethod(scope, in.Intern("pick"))
	if err != nil {
		t.Fatalf("BuildMethod: %v", err)
	}
	tree, err := dom.Compute(g)
	if err != nil {
		t.Fatalf("dom.Compute: %v", err)
	}
	g.SetDomTree(tree)
	if err := Translate(g, true); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	return g
}

func TestTranslateGivesEveryVariableExactlyOneDefinition(t *testing.T) {
	g := buildDiamondSSA(t)

	defs := make(map[ids.VarID]int)
	for bi := 0; bi < g.BlockCount(); bi++ {
		for _, op := range g.Block(ids.BlockID(bi)).Instrs() {
			if op.Lhs() != ids.NoVar {
				defs[op.Lhs()]++
			}
		}
	}
	for v, n := range defs {
		if n != 1 {
			t.Fatalf("variable %d defined %d times after SSA translation, want exactly 1", v, n)
		}
	}
}

func TestTranslateInsertsPhiAtMergeBlock(t *testing.T) {
	g := buildDiamondSSA(t)

	foundPhi := false
	for bi := 0; bi < g.BlockCount(); bi++ {
		blk := g.Block(ids.BlockID(bi))
		if blk.PredecessorCount() < 2 {
			continue
		}
		for _, op := range blk.Instrs() {
			if op.Kind() == instr.KindPhi {
				foundPhi = true
			}
		}
	}
	if !foundPhi {
		t.Fatalf("no phi instruction found at the diamond's merge block")
	}
}

func TestTranslateWithoutCopyFoldingStillProducesSingleDefs(t *testing.T) {
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

	if err := Translate(g, false); err != nil {
		t.Fatalf("Translate(doCopyFolding=false): %v", err)
	}
	defs := make(map[ids.VarID]int)
	for bi := 0; bi < g.BlockCount(); bi++ {
		for _, op := range g.Block(ids.BlockID(bi)).Instrs() {
			if op.Lhs() != ids.NoVar {
				defs[op.Lhs()]++
			}
		}
	}
	for v, n := range defs {
		if n != 1 {
			t.Fatalf("variable %d defined %d times, want exactly 1", v, n)
		}
	}
}
