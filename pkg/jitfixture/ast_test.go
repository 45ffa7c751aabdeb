package jitfixture

import (
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/host"
)

func TestSeqLinksStatementsInOrder(t *testing.T) {
	a, b, c := TrueNode(), FalseNode(), NilNode()
	block := Seq(a, b, c)
	got := block.Statements()
	if len(got) != 3 || got[0] != host.Node(a) || got[1] != host.Node(b) || got[2] != host.Node(c) {
		t.Fatalf("Seq produced %v, want [a b c] in order", got)
	}
}

func TestSeqEmpty(t *testing.T) {
	if Seq() != nil {
		t.Fatalf("Seq() with no statements should be nil, matching an empty host.Block body")
	}
}

func TestArrayOfElements(t *testing.T) {
	lit1, lit2 := Lit(1), Lit(2)
	arr := ArrayOf(lit1, lit2)
	got := arr.Elements()
	if len(got) != 2 || got[0] != host.Node(lit1) || got[1] != host.Node(lit2) {
		t.Fatalf("ArrayOf produced %v, want [lit1 lit2]", got)
	}
}

func TestMethodShape(t *testing.T) {
	in := NewInterner()
	n := in.Intern("n")
	scope := Method(Args(1), []host.ID{n}, ReturnNode(LocalVar(n)))
	if scope.Args.RequiredCount != 1 {
		t.Fatalf("Method's ArgsInfo.RequiredCount = %d, want 1", scope.Args.RequiredCount)
	}
	if len(scope.IDTable) != 1 || scope.IDTable[0] != n {
		t.Fatalf("Method's IDTable = %v, want [%d]", scope.IDTable, n)
	}
	if _, ok := scope.Body.(*host.Return); !ok {
		t.Fatalf("Method's Body = %T, want *host.Return", scope.Body)
	}
}

func TestIfWhileCallShapes(t *testing.T) {
	cond := TrueNode()
	body := ReturnNode(Lit(1))
	ifNode := If(cond, body, nil)
	if ifNode.Cond != host.Node(cond) || ifNode.Body != host.Node(body) || ifNode.Else != nil {
		t.Fatalf("If built unexpected shape: %+v", ifNode)
	}

	w := While(cond, body, true)
	if !w.Negated || w.BeginLess {
		t.Fatalf("While(negated=true) = %+v, want Negated=true, BeginLess=false", w)
	}

	wd := WhileDo(cond, body, false)
	if !wd.BeginLess || wd.Negated {
		t.Fatalf("WhileDo(negated=false) = %+v, want BeginLess=true, Negated=false", wd)
	}

	in := NewInterner()
	plus := in.Intern("+")
	call := Call(LocalVar(in.Intern("a")), plus, nil, LocalVar(in.Intern("b")))
	if len(call.Args) != 1 || call.MID != plus {
		t.Fatalf("Call built unexpected shape: %+v", call)
	}
}
