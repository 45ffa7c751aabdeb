package compiler

import (
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/pkg/jitfixture"
)

// setup builds a Manager and a Reflection with one class, Greeter,
// carrying a `identity(n)` method that just returns its argument and a
// `twice(n)` method that returns identity(n) (one call), so inlining
// has something to do.
func setup(t *testing.T) (*Manager, *jitfixture.Reflection, host.ClassID) {
	t.Helper()
	in := jitfixture.NewInterner()
	refl := jitfixture.NewReflection(in)
	greeter := refl.DefineClass("Greeter", host.NoClass, host.BuiltinClassNone)

	nArg := in.Intern("n")
	identityScope := jitfixture.Method(jitfixture.Args(1), []host.ID{nArg}, jitfixture.Seq(
		jitfixture.ReturnNode(jitfixture.LocalVar(nArg)),
	))
	refl.DefineMethod(greeter, "identity", host.MethodHasAST, identityScope, false, 1)

	twiceScope := jitfixture.Method(jitfixture.Args(1), []host.ID{nArg}, jitfixture.Seq(
		jitfixture.ReturnNode(jitfixture.Funcall(in.Intern("identity"), jitfixture.LocalVar(nArg))),
	))
	refl.DefineMethod(greeter, "twice", host.MethodHasAST, twiceScope, false, 1)

	mgr, err := New(refl, jitfixture.NewPrimitiveCatalogue(in), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return mgr, refl, greeter
}

func TestCompileProducesCheckedCFG(t *testing.T) {
	mgr, refl, greeter := setup(t)
	defer mgr.Close()

	me, ok := refl.LookupMethod(greeter, refl.Intern("identity"))
	if !ok {
		t.Fatalf("identity method not registered")
	}
	inst, err := mgr.Compile(me.AST, greeter, refl.Intern("identity"))
	if err != nil {
		t.Fatalf("Compile(identity): %v", err)
	}
	if inst.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatalf("Instance.ID was not assigned a real uuid")
	}
	if inst.CFG == nil || inst.Types == nil {
		t.Fatalf("Instance missing CFG/Types: %+v", inst)
	}
	if inst.OrigCFG == inst.CFG {
		t.Fatalf("OrigCFG must be a standalone duplicate, not an alias of CFG")
	}

	if got, ok := mgr.Lookup(greeter, refl.Intern("identity")); !ok || got != inst {
		t.Fatalf("Lookup(identity) after Compile = (%v, %v), want the compiled instance", got, ok)
	}
}

func TestCompileInlinesCalleeAndRecordsCallerEdge(t *testing.T) {
	mgr, refl, greeter := setup(t)
	defer mgr.Close()

	identityName := refl.Intern("identity")
	identityME, _ := refl.LookupMethod(greeter, identityName)
	if _, err := mgr.Compile(identityME.AST, greeter, identityName); err != nil {
		t.Fatalf("Compile(identity): %v", err)
	}

	twiceName := refl.Intern("twice")
	twiceME, _ := refl.LookupMethod(greeter, twiceName)
	twiceInst, err := mgr.Compile(twiceME.AST, greeter, twiceName)
	if err != nil {
		t.Fatalf("Compile(twice): %v", err)
	}

	callers := mgr.Recompiler().CallerList(host.MethodKey{Class: greeter, Name: identityName})
	found := false
	for _, c := range callers {
		if c == twiceInst {
			found = true
		}
	}
	if !found {
		t.Fatalf("Recompiler().CallerList(identity) = %v, want it to include twice's instance", callers)
	}
}

func TestInvalidateRestoresOriginalCFGAndForgetsCache(t *testing.T) {
	mgr, refl, greeter := setup(t)
	defer mgr.Close()

	identityName := refl.Intern("identity")
	me, _ := refl.LookupMethod(greeter, identityName)
	inst, err := mgr.Compile(me.AST, greeter, identityName)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	orig := inst.OrigCFG

	inst.Invalidate()
	if inst.CFG != orig {
		t.Fatalf("Invalidate did not restore CFG to OrigCFG")
	}
	if !inst.Invalidated() {
		t.Fatalf("Invalidated() = false after Invalidate")
	}
	if _, ok := mgr.Lookup(greeter, identityName); ok {
		t.Fatalf("Lookup still finds the instance after Invalidate; forget() should have dropped it")
	}

	// Invalidate must be idempotent.
	inst.Invalidate()
}
