package typeconstraint

import (
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
)

func TestNoneAndAnyAreSingletonsAndUnequal(t *testing.T) {
	if NewNone() != NewNone() {
		t.Fatalf("NewNone should return the same singleton instance")
	}
	if NewAny() != NewAny() {
		t.Fatalf("NewAny should return the same singleton instance")
	}
	if NewNone().Equal(NewAny()) {
		t.Fatalf("None must not equal Any")
	}
}

func TestIntegerEquality(t *testing.T) {
	a := NewInteger(3)
	b := NewInteger(3)
	c := NewInteger(4)
	if !a.Equal(b) {
		t.Fatalf("two Integer(3) constraints should be Equal")
	}
	if a.Equal(c) {
		t.Fatalf("Integer(3) must not equal Integer(4)")
	}
}

func TestExactClassResolvesToSingleDeterminedClass(t *testing.T) {
	const fixnum host.ClassID = 7
	e := NewExactClass(fixnum)
	list := e.Resolve()
	if list.Lattice != LatticeDetermined {
		t.Fatalf("ExactClass.Resolve().Lattice = %v, want LatticeDetermined", list.Lattice)
	}
	if len(list.Classes) != 1 || list.Classes[0] != fixnum {
		t.Fatalf("ExactClass.Resolve().Classes = %v, want [%d]", list.Classes, fixnum)
	}
	if e.EvaluateClass() != fixnum {
		t.Fatalf("ExactClass.EvaluateClass() = %d, want %d", e.EvaluateClass(), fixnum)
	}
}

func TestSelectionResolveJoinsAllOptions(t *testing.T) {
	const a, b host.ClassID = 1, 2
	sel := NewSelection(NewExactClass(a), NewExactClass(b))
	list := sel.Resolve()
	if len(list.Classes) != 2 {
		t.Fatalf("Selection.Resolve().Classes = %v, want 2 entries", list.Classes)
	}
}

func TestSelectionResolveDegradesToAnyWhenAnOptionIsAny(t *testing.T) {
	sel := NewSelection(NewExactClass(1), NewAny())
	if list := sel.Resolve(); list.Lattice != LatticeAny {
		t.Fatalf("Selection.Resolve().Lattice = %v, want LatticeAny once any option is Any", list.Lattice)
	}
}

func TestTypeContextGetDefaultsToNone(t *testing.T) {
	ctx := NewTypeContext()
	if _, ok := ctx.Get(42).(*None); !ok {
		t.Fatalf("Get on an unset variable should default to None, got %T", ctx.Get(42))
	}
}

func TestTypeContextUpdateReportsChange(t *testing.T) {
	ctx := NewTypeContext()
	if changed := ctx.Update(1, NewInteger(5)); !changed {
		t.Fatalf("first Update of a variable should report changed=true")
	}
	if changed := ctx.Update(1, NewInteger(5)); changed {
		t.Fatalf("re-Update with an Equal constraint should report changed=false")
	}
	if changed := ctx.Update(1, NewInteger(6)); !changed {
		t.Fatalf("Update with a different constraint should report changed=true")
	}
}

func TestTypeContextCloneIsIndependent(t *testing.T) {
	ctx := NewTypeContext()
	ctx.Set(1, NewInteger(5))
	clone := ctx.Clone()
	clone.Set(1, NewInteger(9))

	if orig, ok := ctx.Get(1).(*Integer); !ok || orig.Value != 5 {
		t.Fatalf("original context mutated by writing to its clone: %+v", ctx.Get(1))
	}
	if got, ok := clone.Get(1).(*Integer); !ok || got.Value != 9 {
		t.Fatalf("clone.Get(1) = %+v, want Integer(9)", clone.Get(1))
	}
}

func TestTypeContextRemapDropsUnmappedVariables(t *testing.T) {
	ctx := NewTypeContext()
	ctx.Set(1, NewInteger(1))
	ctx.Set(2, NewInteger(2))

	// Variable 1 survives, renamed to 10; variable 2 is compacted away.
	ctx.Remap(map[ids.VarID]ids.VarID{1: 10})

	if got, ok := ctx.Get(10).(*Integer); !ok || got.Value != 1 {
		t.Fatalf("Get(10) after remap = %+v, want Integer(1)", ctx.Get(10))
	}
	if _, ok := ctx.Get(2).(*None); !ok {
		t.Fatalf("Get(2) after remap should default back to None, got %T", ctx.Get(2))
	}
	if _, ok := ctx.Get(1).(*None); !ok {
		t.Fatalf("Get(1) after remap should be gone (remapped to 10), got %T", ctx.Get(1))
	}
}
