package jitfixture

import "testing"

func TestInternerRoundTrip(t *testing.T) {
	in := NewInterner()
	id := in.Intern("foo")
	if id == 0 {
		t.Fatalf("Intern(%q) returned the reserved zero id", "foo")
	}
	if got := in.Intern("foo"); got != id {
		t.Fatalf("interning %q twice gave different ids: %d != %d", "foo", got, id)
	}
	if got := in.StringOf(id); got != "foo" {
		t.Fatalf("StringOf(%d) = %q, want %q", id, got, "foo")
	}
}

func TestReflectionBuiltinsAreSubclassesOfNoClass(t *testing.T) {
	refl := NewReflection(NewInterner())
	subs := refl.Subclasses(0) // host.NoClass
	want := map[int]bool{
		int(refl.TrueClass): false, int(refl.FalseClass): false,
		int(refl.NilClassID): false, int(refl.FixnumClass): false,
		int(refl.BignumClass): false,
	}
	for _, s := range subs {
		delete(want, int(s))
	}
	if len(want) != 0 {
		t.Fatalf("builtins missing from Subclasses(NoClass): %v", want)
	}
}

func TestLookupMethodWalksSuperclassChain(t *testing.T) {
	refl := NewReflection(NewInterner())
	base := refl.DefineClass("Base", 0, 0)
	derived := refl.DefineClass("Derived", base, 0)

	refl.DefineMethod(base, "greet", 1 /* host.MethodHasAST */, nil, false, 0)

	name := refl.Intern("greet")
	me, ok := refl.LookupMethod(derived, name)
	if !ok {
		t.Fatalf("LookupMethod(Derived, greet) not found via superclass chain")
	}
	if me.Owner != base {
		t.Fatalf("LookupMethod found method owned by %d, want %d", me.Owner, base)
	}

	if _, ok := refl.LookupMethod(derived, refl.Intern("nope")); ok {
		t.Fatalf("LookupMethod found a method that was never defined")
	}
}

func TestClassNameAndSuperclass(t *testing.T) {
	refl := NewReflection(NewInterner())
	base := refl.DefineClass("Base", 0, 0)
	derived := refl.DefineClass("Derived", base, 0)

	if got := refl.StringOf(refl.ClassName(derived)); got != "Derived" {
		t.Fatalf("ClassName(Derived) = %q, want %q", got, "Derived")
	}
	super, ok := refl.Superclass(derived)
	if !ok || super != base {
		t.Fatalf("Superclass(Derived) = (%d, %v), want (%d, true)", super, ok, base)
	}
	if _, ok := refl.Superclass(base); ok {
		t.Fatalf("Superclass(Base) reported a superclass, want none (Base's super is NoClass)")
	}
}

func TestConstantsAndAutoload(t *testing.T) {
	refl := NewReflection(NewInterner())
	scope := refl.DefineClass("Scope", 0, 0)

	refl.DefineConstant(scope, "VERSION", 3)
	if v, ok := refl.LookupConstant(scope, refl.Intern("VERSION")); !ok || v != 3 {
		t.Fatalf("LookupConstant(VERSION) = (%v, %v), want (3, true)", v, ok)
	}

	refl.MarkAutoload(scope, "LAZY")
	if !refl.IsAutoloadRegistered(scope, refl.Intern("LAZY")) {
		t.Fatalf("IsAutoloadRegistered(LAZY) = false, want true")
	}
	if refl.IsAutoloadRegistered(scope, refl.Intern("VERSION")) {
		t.Fatalf("IsAutoloadRegistered(VERSION) = true, want false")
	}
}

func TestPrimitiveCatalogueDoesNotRegisterArithmeticOperators(t *testing.T) {
	in := NewInterner()
	c := NewPrimitiveCatalogue(in)
	plus := in.Intern("+")
	if c.IsPrimitive(plus) {
		t.Fatalf(`IsPrimitive("+") = true, want false: arithmetic operators must dispatch through Lookup, not Primitive`)
	}
	isTrue := in.Intern("is_true")
	sig, ok := c.Lookup(isTrue)
	if !ok || sig.Arity != 1 {
		t.Fatalf("Lookup(is_true) = (%+v, %v), want arity 1", sig, ok)
	}
}
