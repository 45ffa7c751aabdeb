package typeconstraint

import "github.com/funvibe/rbjitgo/internal/jit/ids"

// TypeContext is the type analyzer's result: a per-variable constraint
// map, grounded on original_source/rbjit/include/rbjit/typecontext.h.
// A variable absent from the map is implicitly None (the lattice
// bottom), matching the header's own "isSameValueAs... call
// TypeContext::isSameValueAs()" note that callers should never invoke
// a bare Constraint's IsSameValueAs directly.
type TypeContext struct {
	byVar map[ids.VarID]Constraint
}

func NewTypeContext() *TypeContext {
	return &TypeContext{byVar: make(map[ids.VarID]Constraint)}
}

func (c *TypeContext) Get(v ids.VarID) Constraint {
	if t, ok := c.byVar[v]; ok {
		return t
	}
	return NewNone()
}

func (c *TypeContext) Set(v ids.VarID, t Constraint) {
	c.byVar[v] = t
}

// Update sets v's constraint to t and reports whether that changed the
// previous value, the signal the type analyzer's worklist loop uses to
// decide whether consumers of v need to be revisited (spec §4.4 fixed
// point).
func (c *TypeContext) Update(v ids.VarID, t Constraint) bool {
	prev, ok := c.byVar[v]
	c.byVar[v] = t
	return !ok || !prev.Equal(t)
}

// IsSameValueAs is the entry point the header's note directs callers
// to use instead of Constraint.IsSameValueAs directly, since it alone
// knows to special-case v1 == v2.
func (c *TypeContext) IsSameValueAs(v1, v2 ids.VarID) bool {
	if v1 == v2 {
		return true
	}
	return c.Get(v1).IsSameValueAs(c, v2)
}

// Clone deep-copies the context (each constraint cloned too).
func (c *TypeContext) Clone() *TypeContext {
	out := NewTypeContext()
	for v, t := range c.byVar {
		out.byVar[v] = t.Clone()
	}
	return out
}

// Remap rewrites every key through mapping, dropping entries whose
// variable was removed (mapping omits it) — used after
// cfg.CFG.RemoveVariables changes variable indices out from under a
// context built before that compaction.
func (c *TypeContext) Remap(mapping map[ids.VarID]ids.VarID) {
	out := make(map[ids.VarID]Constraint, len(c.byVar))
	for v, t := range c.byVar {
		if nv, ok := mapping[v]; ok {
			out[nv] = t
		}
	}
	c.byVar = out
}
