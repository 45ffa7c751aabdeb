// Package jitfixture is the embeddable fixture builder (spec §2 package
// table's "embeddable fixture builder" row, §1's "small, concrete Go
// packages that model those collaborators' contracts... because a JIT
// core with no host to drive it cannot be exercised or tested"): an
// in-memory host.Interner, host.Reflection and host.PrimitiveCatalogue,
// plus a terse constructor API for host.Node trees, so tests, the CLI
// (cmd/rbjitc) and golden fixtures can stand up a complete host without
// parsing any concrete source language. This is explicitly not a
// parser and not the real host — see internal/jit/host's package
// comment.
package jitfixture

import "github.com/funvibe/rbjitgo/internal/jit/host"

// Interner is a simple, single-threaded bidirectional symbol table
// (spec §6 "Symbol interning and string-ification"). Index 0 is
// reserved so host.NoID's zero value never collides with a real
// symbol.
type Interner struct {
	toID  map[string]host.ID
	toStr []string
}

// NewInterner creates an empty Interner.
func NewInterner() *Interner {
	return &Interner{toID: make(map[string]host.ID), toStr: []string{""}}
}

func (in *Interner) Intern(name string) host.ID {
	if id, ok := in.toID[name]; ok {
		return id
	}
	in.toStr = append(in.toStr, name)
	id := host.ID(len(in.toStr) - 1)
	in.toID[name] = id
	return id
}

func (in *Interner) StringOf(id host.ID) string {
	if int(id) <= 0 || int(id) >= len(in.toStr) {
		return ""
	}
	return in.toStr[id]
}

var _ host.Interner = (*Interner)(nil)

// class is one Reflection-registered class: its name, superclass,
// whether it is one of the specially-typed builtins, and its own
// method/constant tables (spec §6's class & method reflection
// contract).
type class struct {
	name     host.ID
	super    host.ClassID
	builtin  host.BuiltinClass
	methods  map[host.ID]host.MethodEntry
	consts   map[host.ID]interface{}
	autoload map[host.ID]bool
}

// Reflection is an in-memory host.Reflection built up by DefineClass /
// DefineMethod / DefineConstant calls, grounded on spec §6's reflection
// contract: method lookup walks the superclass chain exactly the way a
// real object model's method resolution order would, just without
// mixins or singleton classes.
type Reflection struct {
	*Interner

	classes    map[host.ClassID]*class
	subclasses map[host.ClassID][]host.ClassID
	jitOnly    map[host.MethodKey]bool
	next       host.ClassID

	// Well-known builtin classes, pre-registered by NewReflection so
	// every fixture gets the same true/false/nil/Fixnum/Bignum the
	// demux (§4.7) and type analyzer (§4.4) special-case.
	TrueClass, FalseClass, NilClassID, FixnumClass, BignumClass host.ClassID
}

// NewReflection creates a Reflection with true/false/nil/Fixnum/Bignum
// already registered as direct subclasses of host.NoClass.
func NewReflection(in *Interner) *Reflection {
	r := &Reflection{
		Interner:   in,
		classes:    make(map[host.ClassID]*class),
		subclasses: make(map[host.ClassID][]host.ClassID),
		jitOnly:    make(map[host.MethodKey]bool),
		next:       1,
	}
	r.TrueClass = r.DefineClass("TrueClass", host.NoClass, host.BuiltinClassTrue)
	r.FalseClass = r.DefineClass("FalseClass", host.NoClass, host.BuiltinClassFalse)
	r.NilClassID = r.DefineClass("NilClass", host.NoClass, host.BuiltinClassNilClass)
	r.FixnumClass = r.DefineClass("Fixnum", host.NoClass, host.BuiltinClassFixnum)
	r.BignumClass = r.DefineClass("Bignum", host.NoClass, host.BuiltinClassBignum)
	return r
}

// DefineClass registers a new class under super (host.NoClass for a
// root class) and returns its id.
func (r *Reflection) DefineClass(name string, super host.ClassID, builtin host.BuiltinClass) host.ClassID {
	nameID := r.Intern(name)
	id := r.next
	r.next++
	r.classes[id] = &class{
		name:     nameID,
		super:    super,
		builtin:  builtin,
		methods:  make(map[host.ID]host.MethodEntry),
		consts:   make(map[host.ID]interface{}),
		autoload: make(map[host.ID]bool),
	}
	r.subclasses[super] = append(r.subclasses[super], id)
	return id
}

// ClassName returns the interned name a class was registered under, or
// host.NoID if cls is unknown.
func (r *Reflection) ClassName(cls host.ClassID) host.ID {
	cl, ok := r.classes[cls]
	if !ok {
		return host.NoID
	}
	return cl.name
}

// DefineMethod registers a method on cls and returns the MethodEntry
// LookupMethod will later return for it. ast is non-nil iff kind is
// host.MethodHasAST (spec §6: "method entry with kind, originating AST
// if any").
func (r *Reflection) DefineMethod(cls host.ClassID, name string, kind host.MethodEntryKind, ast *host.Scope, mutator bool, requiredArgCount int) host.MethodEntry {
	nameID := r.Intern(name)
	me := host.MethodEntry{
		Kind:             kind,
		Owner:            cls,
		Name:             nameID,
		AST:              ast,
		MutatorHint:      mutator,
		RequiredArgCount: requiredArgCount,
	}
	r.classes[cls].methods[nameID] = me
	return me
}

// MarkJitOnly flags a method as only meaningful under JIT compilation
// (spec: IsJitOnly, consulted by the inliner's recompilation
// bookkeeping so a Primitive-lowering method isn't treated as an
// ordinary call).
func (r *Reflection) MarkJitOnly(cls host.ClassID, name string) {
	r.jitOnly[host.MethodKey{Class: cls, Name: r.Intern(name)}] = true
}

// DefineConstant registers a constant's value under scope.
func (r *Reflection) DefineConstant(scope host.ClassID, name string, value interface{}) {
	r.classes[scope].consts[r.Intern(name)] = value
}

// MarkAutoload registers a constant for autoload without giving it a
// value yet (spec §4.4 "autoload-registered... forces its type to Any
// and sets the mutator flag").
func (r *Reflection) MarkAutoload(scope host.ClassID, name string) {
	r.classes[scope].autoload[r.Intern(name)] = true
}

func (r *Reflection) LookupMethod(cls host.ClassID, name host.ID) (host.MethodEntry, bool) {
	for c := cls; c != host.NoClass; {
		cl, ok := r.classes[c]
		if !ok {
			return host.MethodEntry{}, false
		}
		if me, ok := cl.methods[name]; ok {
			return me, true
		}
		c = cl.super
	}
	return host.MethodEntry{}, false
}

func (r *Reflection) Superclass(cls host.ClassID) (host.ClassID, bool) {
	cl, ok := r.classes[cls]
	if !ok || cl.super == host.NoClass {
		return host.NoClass, false
	}
	return cl.super, true
}

func (r *Reflection) Subclasses(cls host.ClassID) []host.ClassID {
	return r.subclasses[cls]
}

func (r *Reflection) BuiltinClassOf(cls host.ClassID) host.BuiltinClass {
	cl, ok := r.classes[cls]
	if !ok {
		return host.BuiltinClassNone
	}
	return cl.builtin
}

func (r *Reflection) LookupConstant(scope host.ClassID, name host.ID) (interface{}, bool) {
	cl, ok := r.classes[scope]
	if !ok {
		return nil, false
	}
	v, ok := cl.consts[name]
	return v, ok
}

func (r *Reflection) IsAutoloadRegistered(scope host.ClassID, name host.ID) bool {
	cl, ok := r.classes[scope]
	if !ok {
		return false
	}
	return cl.autoload[name]
}

func (r *Reflection) IsMutator(me host.MethodEntry) bool { return me.MutatorHint }

func (r *Reflection) IsJitOnly(me host.MethodEntry) bool {
	return r.jitOnly[host.MethodKey{Class: me.Owner, Name: me.Name}]
}

var _ host.Reflection = (*Reflection)(nil)

// PrimitiveCatalogue is an in-memory host.PrimitiveCatalogue (spec §6
// "An externally loaded list of symbol -> (signature, lowering) plus an
// isPrimitive(name) query"). Lowerings are out of scope (spec §6: "the
// lowerings are consumed only by the code generator"), so only the
// signature half is modeled.
type PrimitiveCatalogue struct {
	in   *Interner
	sigs map[host.ID]host.PrimitiveSignature
}

// NewPrimitiveCatalogue creates an empty catalogue and, for
// convenience, pre-registers the primitive names internal/jit/demux
// emits directly (host.PrimIsTrue and friends) plus the ones
// internal/jit/typeanalyzer special-cases directly by name, all unary
// except PrimBitwiseCompareEq. Arithmetic operators (host.
// ArithmeticOperators) are deliberately NOT registered here: the type
// analyzer's VisitLookup special-cases them by name on an ordinary
// Lookup+Call dispatch (spec §4.4), so cataloguing them as primitives
// would make the builder emit a Primitive opcode instead and bypass
// that speculative-Fixnum-type inference entirely.
func NewPrimitiveCatalogue(in *Interner) *PrimitiveCatalogue {
	c := &PrimitiveCatalogue{in: in, sigs: make(map[host.ID]host.PrimitiveSignature)}
	c.Define(host.PrimIsTrue, 1)
	c.Define(host.PrimIsFalse, 1)
	c.Define(host.PrimIsNil, 1)
	c.Define(host.PrimIsFixnum, 1)
	c.Define(host.PrimClassOf, 1)
	c.Define(host.PrimBitwiseCompareEq, 2)
	c.Define(host.PrimTypecastFixnum, 1)
	c.Define(host.PrimTypecastFixnumBignum, 1)
	c.Define(host.PrimStringInterpolate, 1)
	return c
}

// Define registers (or overwrites) one primitive's signature.
func (c *PrimitiveCatalogue) Define(name string, arity int) {
	id := c.in.Intern(name)
	c.sigs[id] = host.PrimitiveSignature{Name: id, Arity: arity}
}

func (c *PrimitiveCatalogue) IsPrimitive(name host.ID) bool {
	_, ok := c.sigs[name]
	return ok
}

func (c *PrimitiveCatalogue) Lookup(name host.ID) (host.PrimitiveSignature, bool) {
	sig, ok := c.sigs[name]
	return sig, ok
}

var _ host.PrimitiveCatalogue = (*PrimitiveCatalogue)(nil)
