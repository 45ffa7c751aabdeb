// Package instr implements the Opcode model (spec §3, §4.1, §9): a
// tagged sum of instruction kinds sharing a uniform lhs/operands/out-env
// shape, with both a tag-dispatching Visitor and a generic iterator
// interface, per the design note "a virtual class hierarchy is
// preferable to avoid; a tagged sum with a uniform operand-slice
// accessor" (original_source/rbjit/include/rbjit/opcode.h models the
// same set of variants as a C++ class hierarchy; here they are Go
// structs behind one small interface).
package instr

import (
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/lexscope"
)

// Kind tags an instruction's concrete type.
type Kind int

const (
	KindCopy Kind = iota
	KindJump
	KindJumpIf
	KindImmediate
	KindEnv
	KindLookup
	KindCall
	KindCodeBlock
	KindConstant
	KindPrimitive
	KindPhi
	KindExit
	KindArray
	KindRange
	KindString
	KindHash
	KindEnter
	KindLeave
	KindCheckArg
)

func (k Kind) String() string {
	names := [...]string{
		"Copy", "Jump", "JumpIf", "Immediate", "Env", "Lookup", "Call",
		"CodeBlock", "Constant", "Primitive", "Phi", "Exit", "Array",
		"Range", "String", "Hash", "Enter", "Leave", "CheckArg",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "Unknown"
	}
	return names[k]
}

// Instr is the common contract every opcode satisfies: the uniform
// lhs/operand/out-env iterator the SSA Translator, Duplicator and
// checkers all walk, plus a terminator's successor list (empty for
// non-terminators) and Accept for the tag-dispatching Visitor.
type Instr interface {
	Kind() Kind
	Loc() host.SourceLocation

	Lhs() ids.VarID
	SetLhs(ids.VarID)

	Operands() []ids.VarID
	SetOperand(i int, v ids.VarID)

	OutEnv() ids.VarID
	SetOutEnv(ids.VarID)

	IsTerminator() bool
	Successors() []ids.BlockID
	SetSuccessors([]ids.BlockID)

	Accept(Visitor)
}

// Visitor dispatches on an instruction's concrete tag.
type Visitor interface {
	VisitCopy(*Copy)
	VisitJump(*Jump)
	VisitJumpIf(*JumpIf)
	VisitImmediate(*Immediate)
	VisitEnv(*Env)
	VisitLookup(*Lookup)
	VisitCall(*Call)
	VisitCodeBlock(*CodeBlock)
	VisitConstant(*Constant)
	VisitPrimitive(*Primitive)
	VisitPhi(*Phi)
	VisitExit(*Exit)
	VisitArray(*Array)
	VisitRange(*Range)
	VisitString(*String)
	VisitHash(*Hash)
	VisitEnter(*Enter)
	VisitLeave(*Leave)
	VisitCheckArg(*CheckArg)
}

// base is embedded by every concrete instruction and supplies the
// shared lhs/operands/out-env/location bookkeeping. Concrete types
// override IsTerminator/Successors/SetSuccessors when they are
// terminators.
type base struct {
	loc      host.SourceLocation
	lhs      ids.VarID
	operands []ids.VarID
	outEnv   ids.VarID
}

func newBase(loc host.SourceLocation, lhs ids.VarID, operands []ids.VarID) base {
	return base{loc: loc, lhs: lhs, operands: operands, outEnv: ids.NoVar}
}

func (b *base) Loc() host.SourceLocation        { return b.loc }
func (b *base) Lhs() ids.VarID                  { return b.lhs }
func (b *base) SetLhs(v ids.VarID)              { b.lhs = v }
func (b *base) Operands() []ids.VarID           { return b.operands }
func (b *base) SetOperand(i int, v ids.VarID)   { b.operands[i] = v }
func (b *base) OutEnv() ids.VarID               { return b.outEnv }
func (b *base) SetOutEnv(v ids.VarID)           { b.outEnv = v }
func (b *base) IsTerminator() bool              { return false }
func (b *base) Successors() []ids.BlockID       { return nil }
func (b *base) SetSuccessors(_ []ids.BlockID)   {}

// terminator is embedded instead of base by Jump/JumpIf/Exit to add the
// successor list (spec §3: "Terminators ... additionally carry 0, 2, or
// 0 block successors").
type terminator struct {
	base
	successors []ids.BlockID
}

func newTerminator(loc host.SourceLocation, operands []ids.VarID, successors []ids.BlockID) terminator {
	return terminator{base: newBase(loc, ids.NoVar, operands), successors: successors}
}

func (t *terminator) IsTerminator() bool            { return true }
func (t *terminator) Successors() []ids.BlockID     { return t.successors }
func (t *terminator) SetSuccessors(s []ids.BlockID) { t.successors = s }

////////////////////////////////////////////////////////////////////////////
// Copy

// Copy is `lhs := rhs`; Operands()[0] is rhs. Copy folding during SSA
// renaming deletes most of these (spec §4.3 step 3).
type Copy struct{ base }

func NewCopy(loc host.SourceLocation, lhs, rhs ids.VarID) *Copy {
	c := &Copy{base: newBase(loc, lhs, []ids.VarID{rhs})}
	return c
}

func (c *Copy) Kind() Kind          { return KindCopy }
func (c *Copy) Rhs() ids.VarID      { return c.operands[0] }
func (c *Copy) Accept(v Visitor)    { v.VisitCopy(c) }

////////////////////////////////////////////////////////////////////////////
// Jump

type Jump struct{ terminator }

func NewJump(loc host.SourceLocation, target ids.BlockID) *Jump {
	return &Jump{terminator: newTerminator(loc, nil, []ids.BlockID{target})}
}

func (j *Jump) Kind() Kind         { return KindJump }
func (j *Jump) Target() ids.BlockID { return j.successors[0] }
func (j *Jump) Accept(v Visitor)  { v.VisitJump(j) }

////////////////////////////////////////////////////////////////////////////
// JumpIf

// JumpIf branches on Operands()[0]; Successors()[0] is the true edge,
// Successors()[1] is the false edge.
type JumpIf struct{ terminator }

func NewJumpIf(loc host.SourceLocation, cond ids.VarID, ifTrue, ifFalse ids.BlockID) *JumpIf {
	return &JumpIf{terminator: newTerminator(loc, []ids.VarID{cond}, []ids.BlockID{ifTrue, ifFalse})}
}

func (j *JumpIf) Kind() Kind           { return KindJumpIf }
func (j *JumpIf) Cond() ids.VarID      { return j.operands[0] }
func (j *JumpIf) IfTrue() ids.BlockID  { return j.successors[0] }
func (j *JumpIf) IfFalse() ids.BlockID { return j.successors[1] }
func (j *JumpIf) Accept(v Visitor)     { v.VisitJumpIf(j) }

////////////////////////////////////////////////////////////////////////////
// Immediate

// Immediate materializes a host value already known at compile time
// (nil, self, true, false, an integer/string literal, ...).
type Immediate struct {
	base
	Value interface{}
}

func NewImmediate(loc host.SourceLocation, lhs ids.VarID, value interface{}) *Immediate {
	return &Immediate{base: newBase(loc, lhs, nil), Value: value}
}

func (i *Immediate) Kind() Kind       { return KindImmediate }
func (i *Immediate) Accept(v Visitor) { v.VisitImmediate(i) }

////////////////////////////////////////////////////////////////////////////
// Env

// Env produces an opaque method-resolution-environment token.
type Env struct{ base }

func NewEnv(loc host.SourceLocation, lhs ids.VarID) *Env {
	return &Env{base: newBase(loc, lhs, nil)}
}

func (e *Env) Kind() Kind       { return KindEnv }
func (e *Env) Accept(v Visitor) { v.VisitEnv(e) }

////////////////////////////////////////////////////////////////////////////
// Lookup

// Lookup resolves a method name against a receiver's type, valid only
// when Operands()[1] (the in-env) proves equal to the CFG's entryEnv
// (spec §3 invariant, §4.4). Operands()[0] is the receiver.
type Lookup struct {
	base
	MethodName host.ID
}

func NewLookup(loc host.SourceLocation, lhs ids.VarID, receiver, inEnv ids.VarID, name host.ID) *Lookup {
	return &Lookup{base: newBase(loc, lhs, []ids.VarID{receiver, inEnv}), MethodName: name}
}

func (l *Lookup) Kind() Kind          { return KindLookup }
func (l *Lookup) Receiver() ids.VarID { return l.operands[0] }
func (l *Lookup) InEnv() ids.VarID    { return l.operands[1] }
func (l *Lookup) Accept(v Visitor)    { v.VisitLookup(l) }

////////////////////////////////////////////////////////////////////////////
// Call

// Call's operands are (receiver, args…, lookup, codeBlock), per spec
// §4.1. OutEnv is the post-call environment (spec §4.4: Env if any
// candidate is a mutator, otherwise SameAs(lookup.env)).
type Call struct{ base }

func NewCall(loc host.SourceLocation, lhs ids.VarID, receiver ids.VarID, args []ids.VarID, lookup, codeBlock ids.VarID) *Call {
	ops := make([]ids.VarID, 0, len(args)+3)
	ops = append(ops, receiver)
	ops = append(ops, args...)
	ops = append(ops, lookup, codeBlock)
	return &Call{base: newBase(loc, lhs, ops)}
}

func (c *Call) Kind() Kind { return KindCall }

func (c *Call) Receiver() ids.VarID { return c.operands[0] }
func (c *Call) Args() []ids.VarID   { return c.operands[1 : len(c.operands)-2] }
func (c *Call) Lookup() ids.VarID   { return c.operands[len(c.operands)-2] }
func (c *Call) CodeBlock() ids.VarID { return c.operands[len(c.operands)-1] }

func (c *Call) SetReceiver(v ids.VarID)  { c.operands[0] = v }
func (c *Call) SetLookup(v ids.VarID)    { c.operands[len(c.operands)-2] = v }
func (c *Call) SetCodeBlock(v ids.VarID) { c.operands[len(c.operands)-1] = v }

func (c *Call) Accept(v Visitor) { v.VisitCall(c) }

////////////////////////////////////////////////////////////////////////////
// CodeBlock

// CodeBlock materializes a block-literal argument as a value so it can
// flow through Call's operand list like any other variable (spec §9
// open question: the inliner never inlines across one, it just carries
// it opaquely).
type CodeBlock struct {
	base
	BlockAST host.Node
}

func NewCodeBlock(loc host.SourceLocation, lhs ids.VarID, ast host.Node) *CodeBlock {
	return &CodeBlock{base: newBase(loc, lhs, nil), BlockAST: ast}
}

func (c *CodeBlock) Kind() Kind       { return KindCodeBlock }
func (c *CodeBlock) Accept(v Visitor) { v.VisitCodeBlock(c) }

////////////////////////////////////////////////////////////////////////////
// Constant

type ConstantMode int

const (
	ConstantTopLevel ConstantMode = iota
	ConstantFree
	ConstantRelative
)

// Constant looks up a named constant. For ConstantRelative, Operands()
// holds the base(s) to search (Colon2's Base expression); the other
// modes take no operands (spec §4.4 "three modes").
type Constant struct {
	base
	Mode ConstantMode
	Name host.ID
}

func NewConstant(loc host.SourceLocation, lhs ids.VarID, mode ConstantMode, name host.ID, bases []ids.VarID) *Constant {
	return &Constant{base: newBase(loc, lhs, bases), Mode: mode, Name: name}
}

func (c *Constant) Bases() []ids.VarID { return c.operands }

////////////////////////////////////////////////////////////////////////////
// Primitive

// Primitive calls a catalogued primitive operator directly, bypassing
// method lookup (spec §4.1: "If the name is a known primitive, emit
// Primitive instead"). Operands() are the arguments.
type Primitive struct {
	base
	Name host.ID
}

func NewPrimitive(loc host.SourceLocation, lhs ids.VarID, name host.ID, args []ids.VarID) *Primitive {
	return &Primitive{base: newBase(loc, lhs, args), Name: name}
}

func (p *Primitive) Kind() Kind       { return KindPrimitive }
func (p *Primitive) Accept(v Visitor) { v.VisitPrimitive(p) }

////////////////////////////////////////////////////////////////////////////
// Phi

// Phi joins values from its Block's predecessors. Operand i is paired
// positionally with Block's i-th backedge (spec §3 invariant).
type Phi struct {
	base
	Block ids.BlockID
}

func NewPhi(loc host.SourceLocation, lhs ids.VarID, block ids.BlockID, operandCount int) *Phi {
	ops := make([]ids.VarID, operandCount)
	for i := range ops {
		ops[i] = ids.NoVar
	}
	return &Phi{base: newBase(loc, lhs, ops), Block: block}
}

func (p *Phi) Kind() Kind       { return KindPhi }
func (p *Phi) Accept(v Visitor) { v.VisitPhi(p) }

// AppendOperand grows the phi by one slot, used when a predecessor edge
// is added after the phi was created (e.g. demux exit blocks, spec
// §4.7).
func (p *Phi) AppendOperand(v ids.VarID) {
	p.operands = append(p.operands, v)
}

////////////////////////////////////////////////////////////////////////////
// Exit

// Exit is the sole terminator of a CFG's exit block; it has no
// operands and no successors (the return value is read from the CFG's
// output variable, not from Exit itself).
type Exit struct{ terminator }

func NewExit(loc host.SourceLocation) *Exit {
	return &Exit{terminator: newTerminator(loc, nil, nil)}
}

func (e *Exit) Kind() Kind       { return KindExit }
func (e *Exit) Accept(v Visitor) { v.VisitExit(e) }

////////////////////////////////////////////////////////////////////////////
// Array / Range / String / Hash

// Array builds a list value from Operands() in order, splat-expanding
// any operand flagged by the builder as a splat source (tracked
// out-of-band in Splats, since the opcode's operand list itself is
// untyped VarIDs).
type Array struct {
	base
	Splats map[int]bool // operand index -> is-splat
}

func NewArray(loc host.SourceLocation, lhs ids.VarID, elems []ids.VarID) *Array {
	return &Array{base: newBase(loc, lhs, elems)}
}

func (a *Array) Kind() Kind       { return KindArray }
func (a *Array) Accept(v Visitor) { v.VisitArray(a) }

func (a *Array) MarkSplat(i int) {
	if a.Splats == nil {
		a.Splats = make(map[int]bool)
	}
	a.Splats[i] = true
}

func (a *Array) IsSplat(i int) bool { return a.Splats != nil && a.Splats[i] }

// Range builds a Range value from Operands() = [begin, end].
type Range struct {
	base
	ExclusiveOfEnd bool
}

func NewRange(loc host.SourceLocation, lhs ids.VarID, begin, end ids.VarID, exclusive bool) *Range {
	return &Range{base: newBase(loc, lhs, []ids.VarID{begin, end}), ExclusiveOfEnd: exclusive}
}

func (r *Range) Kind() Kind        { return KindRange }
func (r *Range) Begin() ids.VarID  { return r.operands[0] }
func (r *Range) End() ids.VarID    { return r.operands[1] }
func (r *Range) Accept(v Visitor)  { v.VisitRange(r) }

// String materializes a plain (non-interpolated) string literal. A
// DStr with interpolation lowers to a Primitive over the fragments
// instead (spec §4.1), so String never has operands.
type String struct {
	base
	Literal string
}

func NewString(loc host.SourceLocation, lhs ids.VarID, literal string) *String {
	return &String{base: newBase(loc, lhs, nil), Literal: literal}
}

func (s *String) Kind() Kind       { return KindString }
func (s *String) Accept(v Visitor) { v.VisitString(s) }

// Hash builds a hash/map value from Operands() as interleaved
// key,value pairs.
type Hash struct{ base }

func NewHash(loc host.SourceLocation, lhs ids.VarID, pairs []ids.VarID) *Hash {
	return &Hash{base: newBase(loc, lhs, pairs)}
}

func (h *Hash) Kind() Kind       { return KindHash }
func (h *Hash) Accept(v Visitor) { v.VisitHash(h) }

func (h *Hash) Pair(i int) (key, val ids.VarID) {
	return h.operands[2*i], h.operands[2*i+1]
}

func (h *Hash) PairCount() int { return len(h.operands) / 2 }

////////////////////////////////////////////////////////////////////////////
// Enter / Leave

// Enter marks entry into a lexical scope's environment, emitted once
// at the start of the entry block after Env (spec §4.1).
type Enter struct {
	base
	Scope *lexscope.Scope
}

func NewEnter(loc host.SourceLocation, scope *lexscope.Scope) *Enter {
	return &Enter{base: newBase(loc, ids.NoVar, nil), Scope: scope}
}

func (e *Enter) Kind() Kind       { return KindEnter }
func (e *Enter) Accept(v Visitor) { v.VisitEnter(e) }

// Leave marks leaving a lexical scope's environment, the counterpart to
// Enter.
type Leave struct {
	base
	Scope *lexscope.Scope
}

func NewLeave(loc host.SourceLocation, scope *lexscope.Scope) *Leave {
	return &Leave{base: newBase(loc, ids.NoVar, nil), Scope: scope}
}

func (l *Leave) Kind() Kind       { return KindLeave }
func (l *Leave) Accept(v Visitor) { v.VisitLeave(l) }

////////////////////////////////////////////////////////////////////////////
// CheckArg

// CheckArg guards a method entry against its required/optional/rest
// arity. The analyzer types its lhs Any.
type CheckArg struct {
	base
	RequiredCount int
	HasOptional   bool
	HasRest       bool
}

func NewCheckArg(loc host.SourceLocation, lhs ids.VarID, argc ids.VarID, required int, hasOptional, hasRest bool) *CheckArg {
	return &CheckArg{
		base:          newBase(loc, lhs, []ids.VarID{argc}),
		RequiredCount: required,
		HasOptional:   hasOptional,
		HasRest:       hasRest,
	}
}

func (c *CheckArg) Kind() Kind       { return KindCheckArg }
func (c *CheckArg) Argc() ids.VarID  { return c.operands[0] }
func (c *CheckArg) Accept(v Visitor) { v.VisitCheckArg(c) }

func (c *Constant) Kind() Kind       { return KindConstant }
func (c *Constant) Accept(v Visitor) { v.VisitConstant(c) }
