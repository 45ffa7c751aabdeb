package check

import (
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/ids"
)

func TestSanityAcceptsWellFormedCFG(t *testing.T) {
	g := buildSSACFG(t)
	if err := Sanity(g); err != nil {
		t.Fatalf("Sanity on a freshly built, SSA-translated cfg: %v", err)
	}
}

func TestSanityCatchesOutOfRangeSuccessor(t *testing.T) {
	g := buildSSACFG(t)
	entry := g.Block(g.Entry())
	term := entry.Terminator()
	term.SetSuccessors([]ids.BlockID{ids.BlockID(g.BlockCount() + 5)})

	err := Sanity(g)
	if err == nil {
		t.Fatalf("Sanity should have reported the out-of-range successor")
	}
	se, ok := err.(*SanityError)
	if !ok {
		t.Fatalf("Sanity returned %T, want *SanityError", err)
	}
	if len(se.Errors) == 0 {
		t.Fatalf("SanityError.Errors is empty")
	}
}

func TestSanityCatchesMissingBackedgeMirror(t *testing.T) {
	g := buildSSACFG(t)
	// Disconnect only removes the backedge; it does not touch the
	// terminator's own successor list, so this reproduces a one-sided
	// edge (forward edge present, backedge missing) the checker must
	// catch.
	var forwardSucc ids.BlockID = ids.NoBlock
	for bi := 0; bi < g.BlockCount(); bi++ {
		term := g.Block(ids.BlockID(bi)).Terminator()
		if len(term.Successors()) > 0 {
			forwardSucc = term.Successors()[0]
			g.Disconnect(ids.BlockID(bi), forwardSucc)
			break
		}
	}
	if forwardSucc == ids.NoBlock {
		t.Fatalf("test setup: no block with a successor found")
	}

	err := Sanity(g)
	if err == nil {
		t.Fatalf("Sanity should have reported the one-sided successor/backedge mismatch")
	}
}

func TestSanityReportsUnreachableBlock(t *testing.T) {
	g := buildSSACFG(t)
	g.NewBlock() // never linked from entry
	if err := Sanity(g); err == nil {
		t.Fatalf("Sanity should have reported the unreachable block")
	}
}
