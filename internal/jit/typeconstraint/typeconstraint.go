// Package typeconstraint implements the type lattice (spec §3
// "TypeConstraint", §4.5), grounded on
// original_source/rbjit/include/rbjit/typeconstraint.h. It is a closed
// sum of eleven variants behind one small interface, the same
// structuring choice made for the Opcode model in package instr: a
// tagged sum with a uniform query surface rather than a deep class
// hierarchy.
package typeconstraint

import (
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/jitconfig"
)

// Boolean is the three-valued result of evaluating a constraint as a
// condition (spec §4.5 "evaluatesToBoolean"), letting the analyzer
// prune unreachable if/while branches.
type Boolean int

const (
	TrueOrFalse Boolean = iota
	AlwaysTrue
	AlwaysFalse
)

// Lattice tags how determined a TypeList is.
type Lattice int

const (
	LatticeNone Lattice = iota
	LatticeAny
	LatticeDetermined
)

// TypeList is the resolved set of classes a constraint could evaluate
// to, with a lattice tag for the None/Any extremes that have no
// concrete list (spec §4.5 "resolve() -> TypeList").
type TypeList struct {
	Lattice Lattice
	Classes []host.ClassID
}

func NewTypeList(lattice Lattice, classes ...host.ClassID) *TypeList {
	return &TypeList{Lattice: lattice, Classes: classes}
}

func (l *TypeList) Add(c host.ClassID) { l.Classes = append(l.Classes, c) }

// Join appends other's classes to l's, the same "just concatenate"
// semantics typeconstraint.h's TypeList::join uses — callers combine
// lattices themselves (e.g. Selection.Resolve chooses LatticeAny as
// soon as any option resolves to it).
func (l *TypeList) Join(other *TypeList) {
	l.Classes = append(l.Classes, other.Classes...)
}

// Constraint is the interface every type-lattice element satisfies.
type Constraint interface {
	Clone() Constraint
	Equal(other Constraint) bool
	IsSameValueAs(ctx *TypeContext, v ids.VarID) bool
	EvaluatesToBoolean() Boolean
	EvaluateClass() host.ClassID
	Resolve() *TypeList
	Accept(Visitor) bool
	isConstraint()
}

// Visitor dispatches on a constraint's concrete tag.
type Visitor interface {
	VisitNone(*None) bool
	VisitAny(*Any) bool
	VisitInteger(*Integer) bool
	VisitConstant(*Constant) bool
	VisitEnv(*Env) bool
	VisitLookup(*Lookup) bool
	VisitSameAs(*SameAs) bool
	VisitExactClass(*ExactClass) bool
	VisitClassOrSubclass(*ClassOrSubclass) bool
	VisitSelection(*Selection) bool
	VisitRecursion(*Recursion) bool
}

////////////////////////////////////////////////////////////////////////////
// None / Any / Env — singletons, compared by identity

type None struct{}

var noneInstance = &None{}

// NewNone returns the sole None instance: "nothing is known yet", the
// lattice bottom a fresh TypeContext entry starts at.
func NewNone() *None { return noneInstance }

func (n *None) isConstraint()  {}
func (n *None) Clone() Constraint { return n }
func (n *None) Equal(other Constraint) bool { _, ok := other.(*None); return ok }
func (n *None) IsSameValueAs(*TypeContext, ids.VarID) bool { return false }
func (n *None) EvaluatesToBoolean() Boolean { return TrueOrFalse }
func (n *None) EvaluateClass() host.ClassID { return host.NoClass }
func (n *None) Resolve() *TypeList { return NewTypeList(LatticeNone) }
func (n *None) Accept(v Visitor) bool { return v.VisitNone(n) }

type Any struct{}

var anyInstance = &Any{}

// NewAny returns the sole Any instance: the lattice top, "could be
// literally anything" — reached once widening must stop (spec §9
// "bounded-height enforcement").
func NewAny() *Any { return anyInstance }

func (a *Any) isConstraint()  {}
func (a *Any) Clone() Constraint { return a }
func (a *Any) Equal(other Constraint) bool { _, ok := other.(*Any); return ok }
func (a *Any) IsSameValueAs(*TypeContext, ids.VarID) bool { return false }
func (a *Any) EvaluatesToBoolean() Boolean { return TrueOrFalse }
func (a *Any) EvaluateClass() host.ClassID { return host.NoClass }
func (a *Any) Resolve() *TypeList { return NewTypeList(LatticeAny) }
func (a *Any) Accept(v Visitor) bool { return v.VisitAny(a) }

type Env struct{}

var envInstance = &Env{}

// NewEnv returns the sole Env instance, the type every Env
// environment-token variable carries.
func NewEnv() *Env { return envInstance }

func (e *Env) isConstraint()  {}
func (e *Env) Clone() Constraint { return e }
func (e *Env) Equal(other Constraint) bool { _, ok := other.(*Env); return ok }
func (e *Env) IsSameValueAs(*TypeContext, ids.VarID) bool { return false }
func (e *Env) EvaluatesToBoolean() Boolean { return TrueOrFalse }
func (e *Env) EvaluateClass() host.ClassID { return host.NoClass }
func (e *Env) Resolve() *TypeList { return NewTypeList(LatticeAny) }
func (e *Env) Accept(v Visitor) bool { return v.VisitEnv(e) }

////////////////////////////////////////////////////////////////////////////
// Integer — internal-use-only plain integer (e.g. an argument count)

type Integer struct {
	Value int64
}

func NewInteger(v int64) *Integer { return &Integer{Value: v} }

func (i *Integer) isConstraint()  {}
func (i *Integer) Clone() Constraint { return NewInteger(i.Value) }
func (i *Integer) Equal(other Constraint) bool {
	o, ok := other.(*Integer)
	return ok && o.Value == i.Value
}
func (i *Integer) IsSameValueAs(ctx *TypeContext, v ids.VarID) bool {
	o, ok := ctx.Get(v).(*Integer)
	return ok && o.Value == i.Value
}
func (i *Integer) EvaluatesToBoolean() Boolean { return TrueOrFalse }
func (i *Integer) EvaluateClass() host.ClassID { return host.NoClass }
func (i *Integer) Resolve() *TypeList          { return NewTypeList(LatticeAny) }
func (i *Integer) Accept(v Visitor) bool       { return v.VisitInteger(i) }

////////////////////////////////////////////////////////////////////////////
// Constant — a host value already known at compile time

type Constant struct {
	Value interface{}
	Class host.ClassID
}

func NewConstant(value interface{}, class host.ClassID) *Constant {
	return &Constant{Value: value, Class: class}
}

func (c *Constant) isConstraint()  {}
func (c *Constant) Clone() Constraint { return NewConstant(c.Value, c.Class) }
func (c *Constant) Equal(other Constraint) bool {
	o, ok := other.(*Constant)
	return ok && o.Value == c.Value
}
func (c *Constant) IsSameValueAs(ctx *TypeContext, v ids.VarID) bool {
	o, ok := ctx.Get(v).(*Constant)
	return ok && o.Value == c.Value
}
func (c *Constant) EvaluatesToBoolean() Boolean {
	switch c.Value {
	case nil, false:
		return AlwaysFalse
	default:
		return AlwaysTrue
	}
}
func (c *Constant) EvaluateClass() host.ClassID { return c.Class }
func (c *Constant) Resolve() *TypeList          { return NewTypeList(LatticeDetermined, c.Class) }
func (c *Constant) Accept(v Visitor) bool       { return v.VisitConstant(c) }

////////////////////////////////////////////////////////////////////////////
// Lookup — possible method entries a call site could dispatch to

type Candidate struct {
	Class  host.ClassID
	Method host.MethodEntry
}

type Lookup struct {
	Candidates []Candidate
	// Determined reports whether the receiver's class was fully known
	// (the candidate list is exhaustive) as opposed to merely the
	// classes found among an undetermined receiver type (spec §4.4's
	// "TypeLookup(list->lattice() == DETERMINED)"): the Call transfer
	// function treats a non-determined lookup as "could also dispatch
	// somewhere unknown" and widens accordingly.
	Determined bool
}

func NewLookup(determined bool, candidates ...Candidate) *Lookup {
	return &Lookup{Candidates: candidates, Determined: determined}
}

func (l *Lookup) AddCandidate(cls host.ClassID, me host.MethodEntry) {
	l.Candidates = append(l.Candidates, Candidate{Class: cls, Method: me})
}

func (l *Lookup) isConstraint()  {}
func (l *Lookup) Clone() Constraint {
	return &Lookup{Candidates: append([]Candidate(nil), l.Candidates...), Determined: l.Determined}
}
func (l *Lookup) Equal(other Constraint) bool {
	o, ok := other.(*Lookup)
	if !ok || o.Determined != l.Determined || len(o.Candidates) != len(l.Candidates) {
		return false
	}
	for i, c := range l.Candidates {
		if c != o.Candidates[i] {
			return false
		}
	}
	return true
}
func (l *Lookup) IsSameValueAs(*TypeContext, ids.VarID) bool { return false }
func (l *Lookup) EvaluatesToBoolean() Boolean                { return TrueOrFalse }
func (l *Lookup) EvaluateClass() host.ClassID                { return host.NoClass }
func (l *Lookup) Resolve() *TypeList {
	tl := NewTypeList(LatticeDetermined)
	for _, c := range l.Candidates {
		tl.Add(c.Class)
	}
	return tl
}
func (l *Lookup) Accept(v Visitor) bool { return v.VisitLookup(l) }

////////////////////////////////////////////////////////////////////////////
// SameAs — aliases another variable's constraint in the same TypeContext

type SameAs struct {
	Source ids.VarID
}

func NewSameAs(source ids.VarID) *SameAs { return &SameAs{Source: source} }

func (s *SameAs) isConstraint()  {}
func (s *SameAs) Clone() Constraint { return NewSameAs(s.Source) }
func (s *SameAs) Equal(other Constraint) bool {
	o, ok := other.(*SameAs)
	return ok && o.Source == s.Source
}

// IsSameValueAs follows the SameAs chain rather than comparing it
// structurally against v's own constraint, since two SameAs constraints
// pointing at the same ultimate source do represent the same value even
// though the TypeContext may never collapse one into the other (spec §9
// "TypeSameAs chain collapsing" is an optimization, not a requirement
// this method can assume has already run).
func (s *SameAs) IsSameValueAs(ctx *TypeContext, v ids.VarID) bool {
	if s.Source == v {
		return true
	}
	return ctx.Get(s.Source).IsSameValueAs(ctx, v)
}
func (s *SameAs) EvaluatesToBoolean() Boolean { return TrueOrFalse }
func (s *SameAs) EvaluateClass() host.ClassID { return host.NoClass }
func (s *SameAs) Resolve() *TypeList          { return NewTypeList(LatticeAny) }
func (s *SameAs) Accept(v Visitor) bool       { return v.VisitSameAs(s) }

////////////////////////////////////////////////////////////////////////////
// ExactClass / ClassOrSubclass

type ExactClass struct {
	Class host.ClassID
}

func NewExactClass(cls host.ClassID) *ExactClass { return &ExactClass{Class: cls} }

func (e *ExactClass) isConstraint()  {}
func (e *ExactClass) Clone() Constraint { return NewExactClass(e.Class) }
func (e *ExactClass) Equal(other Constraint) bool {
	o, ok := other.(*ExactClass)
	return ok && o.Class == e.Class
}
func (e *ExactClass) IsSameValueAs(*TypeContext, ids.VarID) bool { return false }
func (e *ExactClass) EvaluatesToBoolean() Boolean                { return TrueOrFalse }
func (e *ExactClass) EvaluateClass() host.ClassID                { return e.Class }
func (e *ExactClass) Resolve() *TypeList {
	return NewTypeList(LatticeDetermined, e.Class)
}
func (e *ExactClass) Accept(v Visitor) bool { return v.VisitExactClass(e) }

type ClassOrSubclass struct {
	Class host.ClassID
}

func NewClassOrSubclass(cls host.ClassID) *ClassOrSubclass { return &ClassOrSubclass{Class: cls} }

func (c *ClassOrSubclass) isConstraint()  {}
func (c *ClassOrSubclass) Clone() Constraint { return NewClassOrSubclass(c.Class) }
func (c *ClassOrSubclass) Equal(other Constraint) bool {
	o, ok := other.(*ClassOrSubclass)
	return ok && o.Class == c.Class
}
func (c *ClassOrSubclass) IsSameValueAs(*TypeContext, ids.VarID) bool { return false }
func (c *ClassOrSubclass) EvaluatesToBoolean() Boolean                { return TrueOrFalse }

// EvaluateClass returns NoClass: a ClassOrSubclass constraint never
// uniquely determines a class by itself (spec §4.5 "isExactClass"
// distinguishes this from ExactClass for exactly this reason).
func (c *ClassOrSubclass) EvaluateClass() host.ClassID { return host.NoClass }

// Resolve is overridden by the type analyzer's own bounded hierarchy
// walk (Subclasses), which needs host Reflection access this package
// doesn't have; a bare resolve here degrades to LatticeAny.
func (c *ClassOrSubclass) Resolve() *TypeList { return NewTypeList(LatticeAny) }
func (c *ClassOrSubclass) Accept(v Visitor) bool { return v.VisitClassOrSubclass(c) }

////////////////////////////////////////////////////////////////////////////
// Selection — a join point's possible constraints, deduplicated

type Selection struct {
	Types []Constraint
}

func NewSelection(types ...Constraint) *Selection {
	s := &Selection{}
	for _, t := range types {
		s.AddOption(t)
	}
	return s
}

// AddOption appends t unless an equal option is already present
// (dedup, spec §9), flattening any nested Selection in t, and collapses
// to a single Any once jitconfig.MaxCandidateCount is exceeded so the
// type analyzer's fixed point is guaranteed to terminate.
func (s *Selection) AddOption(t Constraint) {
	if nested, ok := t.(*Selection); ok {
		for _, inner := range nested.Types {
			s.AddOption(inner)
		}
		return
	}
	for _, existing := range s.Types {
		if existing.Equal(t) {
			return
		}
	}
	s.Types = append(s.Types, t)
	if jitconfig.MaxCandidateCount > 0 && len(s.Types) > jitconfig.MaxCandidateCount {
		s.Types = []Constraint{NewAny()}
	}
}

func (s *Selection) isConstraint()  {}
func (s *Selection) Clone() Constraint {
	c := &Selection{Types: make([]Constraint, len(s.Types))}
	for i, t := range s.Types {
		c.Types[i] = t.Clone()
	}
	return c
}
func (s *Selection) Equal(other Constraint) bool {
	o, ok := other.(*Selection)
	if !ok || len(o.Types) != len(s.Types) {
		return false
	}
	for _, t := range s.Types {
		found := false
		for _, ot := range o.Types {
			if t.Equal(ot) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
func (s *Selection) IsSameValueAs(ctx *TypeContext, v ids.VarID) bool {
	for _, t := range s.Types {
		if !t.IsSameValueAs(ctx, v) {
			return false
		}
	}
	return len(s.Types) > 0
}
func (s *Selection) EvaluatesToBoolean() Boolean {
	if len(s.Types) == 0 {
		return TrueOrFalse
	}
	first := s.Types[0].EvaluatesToBoolean()
	for _, t := range s.Types[1:] {
		if t.EvaluatesToBoolean() != first {
			return TrueOrFalse
		}
	}
	return first
}
func (s *Selection) EvaluateClass() host.ClassID {
	if len(s.Types) == 0 {
		return host.NoClass
	}
	first := s.Types[0].EvaluateClass()
	if first == host.NoClass {
		return host.NoClass
	}
	for _, t := range s.Types[1:] {
		if t.EvaluateClass() != first {
			return host.NoClass
		}
	}
	return first
}
func (s *Selection) Resolve() *TypeList {
	tl := NewTypeList(LatticeDetermined)
	for _, t := range s.Types {
		r := t.Resolve()
		if r.Lattice != LatticeDetermined {
			return NewTypeList(r.Lattice)
		}
		tl.Join(r)
	}
	return tl
}
func (s *Selection) Accept(v Visitor) bool { return v.VisitSelection(s) }

////////////////////////////////////////////////////////////////////////////
// Recursion — marks a call that would re-enter the method under analysis

type Recursion struct {
	Method host.MethodKey
}

var recursionCache = map[host.MethodKey]*Recursion{}

// NewRecursion returns a shared instance per method key, mirroring
// typeconstraint.h's TypeRecursion::cache_ (a pointer-keyed cache there,
// a value-keyed one here since we identify methods by MethodKey rather
// than a MethodInfo pointer).
func NewRecursion(key host.MethodKey) *Recursion {
	if r, ok := recursionCache[key]; ok {
		return r
	}
	r := &Recursion{Method: key}
	recursionCache[key] = r
	return r
}

// ResetRecursionCache clears the process-wide Recursion cache. Tests
// that compile the same host.MethodKey across independent cases should
// call this between them so a *Recursion from an earlier case can't
// leak identity into a later one (spec §9: "tests must be able to
// reset" process-wide shared state).
func ResetRecursionCache() {
	recursionCache = map[host.MethodKey]*Recursion{}
}

func (r *Recursion) isConstraint()  {}
func (r *Recursion) Clone() Constraint { return r }
func (r *Recursion) Equal(other Constraint) bool {
	o, ok := other.(*Recursion)
	return ok && o.Method == r.Method
}
func (r *Recursion) IsSameValueAs(*TypeContext, ids.VarID) bool { return false }
func (r *Recursion) EvaluatesToBoolean() Boolean                { return TrueOrFalse }
func (r *Recursion) EvaluateClass() host.ClassID                { return host.NoClass }
func (r *Recursion) Resolve() *TypeList                         { return NewTypeList(LatticeAny) }
func (r *Recursion) Accept(v Visitor) bool                      { return v.VisitRecursion(r) }
