package host

// PrimitiveSignature is the data the core needs about a primitive
// operator; the lowering itself (how the code generator emits it) is
// out of scope (spec §6: "The catalogue is data; the lowerings are
// consumed only by the code generator").
type PrimitiveSignature struct {
	Name  ID
	Arity int
}

// Well-known primitive names the type analyzer special-cases (spec
// §4.4's "Primitive" transfer function).
const (
	PrimIsFixnum             = "is_fixnum"
	PrimTypecastFixnum       = "typecast_fixnum"
	PrimTypecastFixnumBignum = "typecast_fixnum_bignum"
	PrimStringInterpolate    = "str_interpolate"
)

// Primitive names the demultiplexer emits directly as generated code
// (spec §4.7): a dedicated type test for each specially-typed builtin
// class, and a generic class_of + identity-compare pair for every other
// candidate class.
const (
	PrimIsTrue           = "is_true"
	PrimIsFalse          = "is_false"
	PrimIsNil            = "is_nil"
	PrimClassOf          = "class_of"
	PrimBitwiseCompareEq = "bitwise_compare_eq"
)

// ArithmeticOperators is the small built-in set of arithmetic operator
// method names the Lookup transfer function also speculatively
// includes the Fixnum class for, when the receiver's type is not fully
// determined (spec §4.4).
var ArithmeticOperators = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"<": true, "<=": true, ">": true, ">=": true, "==": true,
}

// PrimitiveCatalogue is the externally loaded symbol -> signature
// table plus an isPrimitive query (spec §6).
type PrimitiveCatalogue interface {
	IsPrimitive(name ID) bool
	Lookup(name ID) (PrimitiveSignature, bool)
}
