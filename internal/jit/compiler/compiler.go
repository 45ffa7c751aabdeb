// Package compiler implements the compilation orchestration layer (spec
// §2 package table's "compilation orchestration" row), grounded on
// original_source/rbjit/include/rbjit/compilationinstance.h: the single
// per-method pipeline that wires the CFG Builder (§4.1), Dominator
// Finder (§4.2), SSA Translator (§4.3), Type Analyzer (§4.4), Code
// Duplicator (§4.6, to snapshot the pre-inlining CFG), Inliner (§4.8,
// which itself demultiplexes per §4.7 where needed) and Recompilation
// Manager (§4.9) into one `Compile` call, the Go analog of the
// original's `CompilationInstance` constructor doing `buildCfg()` then
// `analyzeTypes()` on first access.
package compiler

import (
	"fmt"

	"github.com/funvibe/rbjitgo/internal/jit/builder"
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/check"
	"github.com/funvibe/rbjitgo/internal/jit/dom"
	"github.com/funvibe/rbjitgo/internal/jit/duplicate"
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/inline"
	"github.com/funvibe/rbjitgo/internal/jit/recompile"
	"github.com/funvibe/rbjitgo/internal/jit/ssa"
	"github.com/funvibe/rbjitgo/internal/jit/typeanalyzer"
	"github.com/funvibe/rbjitgo/internal/jit/typeconstraint"

	"github.com/google/uuid"
)

// Options tunes one Manager. The candidate-count cap of the type
// lattice is not one of them: it is the process-wide package var
// jitconfig.MaxCandidateCount.
type Options struct {
	// DisableCopyFolding turns off the SSA translator's copy-folding
	// pass (spec §4.3 step 3), which otherwise always runs. Only tests
	// that want to observe pre-folding phi placement set this; every
	// production caller leaves it false.
	DisableCopyFolding bool

	// PersistencePath, if non-empty, opens a recompile.SQLiteStore at
	// this path so the Recompilation Manager's edges survive a process
	// restart (spec §4.10/§4.11: "opt-in via
	// compiler.Options.PersistencePath").
	PersistencePath string
}

// Instance is one compiled method, the Go analog of the original's
// CompilationInstance (spec §5 Ownership: "A CompilationInstance owns
// its CFG and TypeContext and, optionally, a second 'original' CFG
// captured before inlining so that invalidation can restore it"). It
// satisfies recompile.Instance via Invalidate and inline.Provider's
// result shape via its CFG/Types fields.
type Instance struct {
	// ID is this compilation's correlation id (spec §4.11: "every
	// compiler.Instance gets a uuid.UUID compilation id"), printed by
	// cmd/rbjitc and, when persistence is enabled, stored as the caller
	// key of the SQLite-backed edge tables in place of a live pointer.
	ID uuid.UUID

	Owner host.ClassID
	Name  host.ID

	CFG        *cfg.CFG
	OrigCFG    *cfg.CFG
	Types      *typeconstraint.TypeContext
	ReturnType typeconstraint.Constraint
	Mutator    bool
	JitOnly    bool

	invalidated bool
	mgr         *Manager
}

// Invalidate is the original's restoreISeqDefinition(): fall back to
// the pre-inlining CFG snapshot and drop this instance from its
// Manager's cache, so a later recompile starts from a known-good, un-specialized
// body instead of one that still calls through a now-stale
// Lookup/Call chain rewritten by the Inliner.
func (inst *Instance) Invalidate() {
	if inst.invalidated {
		return
	}
	inst.invalidated = true
	if inst.OrigCFG != nil {
		inst.CFG = inst.OrigCFG
	}
	if inst.mgr != nil {
		inst.mgr.forget(host.MethodKey{Class: inst.Owner, Name: inst.Name})
	}
}

// Invalidated reports whether Invalidate has already run.
func (inst *Instance) Invalidated() bool { return inst.invalidated }

var _ recompile.Instance = (*Instance)(nil)

// Manager is the compilation orchestrator: it owns the cache of
// already-compiled Instances (so later compiles can inline through
// them via the Inliner's Provider seam) and the process-wide
// Recompilation Manager (so a redefinition notification reaches every
// recorded caller via the Inliner's Recorder seam).
type Manager struct {
	refl  host.Reflection
	prims host.PrimitiveCatalogue
	opts  Options

	recompiler *recompile.Manager
	store      *recompile.SQLiteStore

	cache map[host.MethodKey]*Instance
}

// New creates a Manager. prims may be nil, in which case the Builder
// never recognizes a primitive and every call lowers through ordinary
// method lookup (builder.New's own contract).
func New(refl host.Reflection, prims host.PrimitiveCatalogue, opts Options) (*Manager, error) {
	m := &Manager{
		refl:       refl,
		prims:      prims,
		opts:       opts,
		recompiler: recompile.New(),
		cache:      make(map[host.MethodKey]*Instance),
	}
	if opts.PersistencePath != "" {
		store, err := recompile.OpenSQLiteStore(opts.PersistencePath)
		if err != nil {
			return nil, fmt.Errorf("compiler: opening persistence store: %w", err)
		}
		m.store = store
	}
	return m, nil
}

// Close releases the persistence store, if Options.PersistencePath
// opened one.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}

// Recompiler exposes the Recompilation Manager so a host can wire its
// own method/constant redefinition callbacks directly to it (spec §6
// "Host redefinition callbacks").
func (m *Manager) Recompiler() *recompile.Manager { return m.recompiler }

// Store exposes the optional persistence layer, or nil if
// Options.PersistencePath was empty.
func (m *Manager) Store() *recompile.SQLiteStore { return m.store }

func (m *Manager) forget(key host.MethodKey) {
	delete(m.cache, key)
}

// Lookup returns a previously compiled Instance for (owner, name).
func (m *Manager) Lookup(owner host.ClassID, name host.ID) (*Instance, bool) {
	inst, ok := m.cache[host.MethodKey{Class: owner, Name: name}]
	return inst, ok
}

// Compile lowers scope into a fresh Instance, running the whole
// pipeline in order: build (§4.1), compute dominance (§4.2), translate
// to SSA (§4.3), re-validate, run the type analyzer (§4.4), snapshot
// the pre-inlining CFG (§4.6, for Instance.Invalidate's restore), run
// the Inliner (§4.8, recording callee->caller edges with the
// Recompilation Manager as it goes), then re-validate again. owner is
// the class the method is defined on, used both as the type analyzer's
// self-recursion key and as half of the Recompilation Manager's
// callee/cache key.
func (m *Manager) Compile(scope *host.Scope, owner host.ClassID, name host.ID) (*Instance, error) {
	b := builder.New(m.refl, m.prims)
	g, err := b.BuildMethod(scope, name)
	if err != nil {
		return nil, fmt.Errorf("compiler: building cfg for %s: %w", m.refl.StringOf(name), err)
	}

	domTree, err := dom.Compute(g)
	if err != nil {
		return nil, fmt.Errorf("compiler: computing dominators for %s: %w", m.refl.StringOf(name), err)
	}
	g.SetDomTree(domTree)

	if err := ssa.Translate(g, !m.opts.DisableCopyFolding); err != nil {
		return nil, fmt.Errorf("compiler: ssa translation of %s: %w", m.refl.StringOf(name), err)
	}
	if err := check.SSA(g); err != nil {
		return nil, fmt.Errorf("compiler: post-ssa check of %s: %w", m.refl.StringOf(name), err)
	}

	analyzer := typeanalyzer.New(g, m.refl, owner)
	// Input 0 is always self (builder.buildArguments registers it
	// first); seed it with the defining class rather than Any so an
	// implicit-self call site resolves to a determined candidate
	// (original_source/rbjit/src/compilationinstance.cpp:
	// setInputTypeConstraint(0, TypeClassOrSubclass(holderClass_))).
	for i := range g.Inputs() {
		if i == 0 {
			analyzer.SetInputType(i, typeconstraint.NewClassOrSubclass(owner))
			continue
		}
		analyzer.SetInputType(i, typeconstraint.NewAny())
	}
	types, mutator, jitOnly := analyzer.Analyze()

	origCFG, _ := duplicate.Duplicate(g)

	inst := &Instance{
		ID:      uuid.New(),
		Owner:   owner,
		Name:    name,
		CFG:     g,
		OrigCFG: origCFG,
		Types:   types,
		Mutator: mutator,
		JitOnly: jitOnly,
		mgr:     m,
	}

	key := host.MethodKey{Class: owner, Name: name}
	m.cache[key] = inst

	self := &inline.CompiledMethod{CFG: g, Types: types}
	inliner := inline.New(g, types, m.refl, &methodProvider{m}, &calleeRecorder{m.recompiler, inst}, self)
	inliner.DoInlining()

	if err := check.Sanity(g); err != nil {
		return nil, fmt.Errorf("compiler: post-inlining sanity check of %s: %w", m.refl.StringOf(name), err)
	}
	if err := check.SSA(g); err != nil {
		return nil, fmt.Errorf("compiler: post-inlining ssa check of %s: %w", m.refl.StringOf(name), err)
	}

	inst.ReturnType = types.Get(g.Output())

	return inst, nil
}

// methodProvider implements inline.Provider over the Manager's cache:
// a candidate is inlinable only if it was already compiled (spec §4.8
// step 2's "precompiled method info"), never by triggering a nested
// compile — recompiling a callee on demand mid-inline would have to
// re-enter the same cache this method is itself being written into.
type methodProvider struct{ mgr *Manager }

func (p *methodProvider) Compiled(me host.MethodEntry) (*inline.CompiledMethod, bool) {
	inst, ok := p.mgr.cache[host.MethodKey{Class: me.Owner, Name: me.Name}]
	if !ok {
		return nil, false
	}
	return &inline.CompiledMethod{CFG: inst.CFG, Types: inst.Types}, true
}

var _ inline.Provider = (*methodProvider)(nil)

// calleeRecorder implements inline.Recorder by forwarding straight to
// the process-wide Recompilation Manager and, when Options.PersistencePath
// opened a store, recording the edge there too (a store write error is
// dropped, as Recorder has no error result). self is closed over rather
// than taken from the caller argument, because the Inliner's caller
// parameter is the lighter-weight inline.CompiledMethod, while
// recompile.Manager needs a full recompile.Instance (Invalidate-able)
// — and a Manager.Compile call only ever inlines into the one Instance
// it is currently building.
type calleeRecorder struct {
	rm   *recompile.Manager
	self *Instance
}

func (r *calleeRecorder) AddCalleeCallerRelation(callee host.MethodKey, _ *inline.CompiledMethod) {
	r.rm.AddCalleeCallerRelation(callee, r.self)
	if s := r.self.mgr.store; s != nil {
		_ = s.RecordCalleeCaller(callee, r.self.ID)
	}
}

var _ inline.Recorder = (*calleeRecorder)(nil)
