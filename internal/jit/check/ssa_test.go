package check

import (
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
)

func TestSSAAcceptsWellFormedCFG(t *testing.T) {
	g := buildSSACFG(t)
	if err := SSA(g); err != nil {
		t.Fatalf("SSA check on a freshly built, SSA-translated cfg: %v", err)
	}
}

func TestSSACatchesDoubleDefinition(t *testing.T) {
	g := buildSSACFG(t)
	entry := g.Block(g.Entry())
	var target instr.Instr
	for _, op := range entry.Instrs() {
		if op.Lhs() != ids.NoVar {
			target = op
			break
		}
	}
	if target == nil {
		t.Fatalf("test setup: entry block has no instruction defining a variable")
	}
	// Re-emit the same defining instruction so its lhs is defined twice
	// in the same block.
	entry.Append(target)

	if err := SSA(g); err == nil {
		t.Fatalf("SSA check should have reported the double definition")
	}
}
