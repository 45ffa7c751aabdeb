package host

// ClassID identifies a host class. The core only ever compares,
// enumerates and looks methods up on these; it never inspects a
// class's own fields.
type ClassID int32

// NoClass is the zero value meaning "no class" / "not yet known".
const NoClass ClassID = 0

// BuiltinClass enumerates the handful of classes the demux (spec §4.7)
// and the type analyzer's Lookup transfer function (spec §4.4) treat
// specially: true, false, nil and Fixnum get dedicated type tests
// instead of the generic class_of + identity-compare ladder.
type BuiltinClass int

const (
	BuiltinClassNone BuiltinClass = iota
	BuiltinClassTrue
	BuiltinClassFalse
	BuiltinClassNilClass
	BuiltinClassFixnum
	BuiltinClassBignum
)

// MethodEntryKind distinguishes a method the core can inline (it has an
// AST body the builder can recurse into) from one it can only call
// indirectly.
type MethodEntryKind int

const (
	// MethodUnknown means no entry was found at all.
	MethodUnknown MethodEntryKind = iota
	// MethodHasAST means the method was itself compiled from a host AST
	// and so is a candidate for inlining (spec §4.8 step 2).
	MethodHasAST
	// MethodNative means the method exists but has no AST the builder
	// can lower (a C-implemented or otherwise opaque method).
	MethodNative
)

// MethodEntry is the result of a (class, name) method lookup.
type MethodEntry struct {
	Kind             MethodEntryKind
	Owner            ClassID
	Name             ID
	AST              *Scope // non-nil iff Kind == MethodHasAST
	MutatorHint      bool
	RequiredArgCount int
	// Self identifies whether this entry belongs to the method
	// currently being compiled, used by the inliner to refuse direct
	// recursion (spec §4.8 step 2) and by the type analyzer's
	// recursion guard (spec §4.4).
	Self bool
}

// MethodKey and ConstKey are the map keys the Recompilation Manager
// multiplexes invalidation on (spec §4.9).
type MethodKey struct {
	Class ClassID
	Name  ID
}

type ConstKey struct {
	Scope ClassID
	Name  ID
}

// Reflection bundles every query the type analyzer and inliner issue
// against the host's class/method/constant model (spec §6). A single
// interface is used (rather than one per concern) because every
// implementation — real or fixture — naturally answers all of them
// from the same object-model snapshot.
type Reflection interface {
	// LookupMethod resolves a method by (class, name), per the
	// receiver-class method-resolution order the host defines.
	LookupMethod(cls ClassID, name ID) (MethodEntry, bool)

	// Superclass returns cls's superclass, or (NoClass, false) at the
	// root of the hierarchy.
	Superclass(cls ClassID) (ClassID, bool)

	// Subclasses returns cls's direct subclasses, used by
	// ClassOrSubclass.resolve()'s bounded hierarchy walk (spec §4.5).
	Subclasses(cls ClassID) []ClassID

	// BuiltinClassOf reports which BuiltinClass cls is, or
	// BuiltinClassNone if it is not one of the specially-typed ones.
	BuiltinClassOf(cls ClassID) BuiltinClass

	// LookupConstant resolves a constant by name starting from scope,
	// per spec §4.4's three modes (top-level, free via CRef chain,
	// relative); which mode the caller wants is selected by how it
	// walks `scope` before calling, so the interface only needs a
	// single direct lookup primitive.
	LookupConstant(scope ClassID, name ID) (value interface{}, found bool)

	// IsAutoloadRegistered reports whether a constant is registered for
	// autoload, which forces its type to Any and sets the mutator flag
	// (spec §4.4 "Constant" transfer function).
	IsAutoloadRegistered(scope ClassID, name ID) bool

	// IsMutator reports whether calling me may redefine methods or
	// constants (spec: "external MutatorTester"), consulted when a
	// candidate has no statically-known method info.
	IsMutator(me MethodEntry) bool

	// IsJitOnly reports whether me is only meaningful under JIT
	// compilation (e.g. it lowers to a Primitive opcode) and so must
	// not be treated as a normal call for recompilation bookkeeping.
	IsJitOnly(me MethodEntry) bool

	Interner
}

// Interner is the symbol table: ID <-> string, populated once at host
// setup and read thereafter (spec §5 "process-wide read-mostly tables").
type Interner interface {
	Intern(name string) ID
	StringOf(id ID) string
}
