// Package lexscope gives local variable names lexical structure before
// SSA renaming happens: one Scope per host Scope/Block nesting level,
// mapping a host.ID to a NamedVariable that is shared by every
// occurrence of that name in the lexical scope it was first declared
// in. Grounded on original_source/rbjit/include/rbjit/scope.h.
package lexscope

import "github.com/funvibe/rbjitgo/internal/jit/host"

// NamedVariable is the lexical identity of one local variable name. The
// CFG Builder creates exactly one per name per declaring scope and
// reuses it for every reference; only after SSA renaming do distinct
// definitions of the same name become distinct value.Variable indices.
type NamedVariable struct {
	name  host.ID
	scope *Scope
	index int

	// usedFromInner records scopes nested inside this name's declaring
	// scope that referenced it, which decides whether the variable
	// needs an environment slot (spec §3 Scope).
	usedFromInner []*Scope
}

func newNamedVariable(name host.ID, scope *Scope) *NamedVariable {
	return &NamedVariable{name: name, scope: scope}
}

func (nv *NamedVariable) Name() host.ID    { return nv.name }
func (nv *NamedVariable) Scope() *Scope    { return nv.scope }
func (nv *NamedVariable) Index() int       { return nv.index }
func (nv *NamedVariable) SetIndex(i int)   { nv.index = i }

// AddUseFromInnerScope records that scope (not nv's declaring scope)
// referenced this variable.
func (nv *NamedVariable) AddUseFromInnerScope(scope *Scope) {
	if scope == nv.scope {
		return
	}
	for _, s := range nv.usedFromInner {
		if s == scope {
			return
		}
	}
	nv.usedFromInner = append(nv.usedFromInner, scope)
}

// NeedsEnvSlot reports whether this name is referenced from a scope
// other than the one that declared it, and so must be captured in the
// method-resolution environment rather than kept purely as an SSA
// value local to the builder's walk.
func (nv *NamedVariable) NeedsEnvSlot() bool { return len(nv.usedFromInner) > 0 }

// Scope is one lexical nesting level: a method body, or a block literal
// nested inside one. It maps names to NamedVariables and chains to its
// parent for outer lookups.
type Scope struct {
	parent    *Scope
	variables map[host.ID]*NamedVariable
	order     []*NamedVariable
}

// New creates a root or nested scope. Pass nil for a method's top-level
// scope.
func New(parent *Scope) *Scope {
	return &Scope{parent: parent, variables: make(map[host.ID]*NamedVariable)}
}

func (s *Scope) Parent() *Scope { return s.parent }

// Declare registers a new name in this scope, returning its
// NamedVariable. If the name is already declared here, the existing
// NamedVariable is returned unchanged (first reference wins, per spec
// §4.1: "a single named variable per lexical name on first reference").
func (s *Scope) Declare(name host.ID) *NamedVariable {
	if nv, ok := s.variables[name]; ok {
		return nv
	}
	nv := newNamedVariable(name, s)
	s.variables[name] = nv
	s.order = append(s.order, nv)
	return nv
}

// Find looks up name in this scope, then its ancestors. If found in an
// ancestor scope, that ancestor's NamedVariable is marked as used from
// this (inner) scope.
func (s *Scope) Find(name host.ID) *NamedVariable {
	for cur := s; cur != nil; cur = cur.parent {
		if nv, ok := cur.variables[name]; ok {
			if cur != s {
				nv.AddUseFromInnerScope(s)
			}
			return nv
		}
	}
	return nil
}

// ActiveVariables returns this scope's own NamedVariables in
// declaration order (mirrors Scope::activeVariableList in rbjit).
func (s *Scope) ActiveVariables() []*NamedVariable {
	out := make([]*NamedVariable, len(s.order))
	copy(out, s.order)
	return out
}

// SetIndexes assigns a dense 0-based index to each of this scope's
// NamedVariables (their position in the environment slot array) and
// returns the count.
func (s *Scope) SetIndexes() int {
	for i, nv := range s.order {
		nv.SetIndex(i)
	}
	return len(s.order)
}
