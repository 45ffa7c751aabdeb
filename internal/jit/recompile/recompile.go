// Package recompile implements the Recompilation Manager (spec §3
// "Recompilation Manager", §4.9), grounded on
// original_source/rbjit/include/rbjit/recompilationmanager.h and
// src/recompilationmanager.cpp: track, for every method a call site was
// inlined or directly wired to, which compiled instances depend on it,
// so that redefining it can invalidate exactly the right set.
//
// SPEC_FULL.md §4.9 upgrades the callee side of the original's map from
// a bare method-name key to the finer (class, name) host.MethodKey:
// the original invalidates every caller of ANY method sharing a name
// when one gets redefined, which over-invalidates whenever two
// unrelated classes happen to define a same-named method. Keying by
// (class, name) invalidates only callers of the class that was
// actually redefined.
package recompile

import (
	"database/sql"

	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Instance is whatever can be invalidated and recompiled when a callee
// it depends on is redefined — satisfied by compiler.Instance (spec
// §4.9 "restoreISeqDefinition() becomes compiler.Instance.Invalidate()")
// via its own Invalidate method. Declared here rather than imported
// from internal/jit/compiler because compiler depends on this package
// to register edges as it compiles; importing compiler back would
// cycle.
type Instance interface {
	Invalidate()
}

// Manager is the process-wide table of callee->caller and
// constant->referrer edges (spec §5 "process-wide read-mostly tables"
// — read-mostly in steady state, read-write only while compiling or
// handling a redefinition notification).
type Manager struct {
	calleeCaller     map[host.MethodKey]map[Instance]struct{}
	constantReferrer map[host.ConstKey]map[Instance]struct{}
}

func New() *Manager {
	return &Manager{
		calleeCaller:     make(map[host.MethodKey]map[Instance]struct{}),
		constantReferrer: make(map[host.ConstKey]map[Instance]struct{}),
	}
}

// AddCalleeCallerRelation records that caller's compiled code depends
// on callee, the original's addCalleeCallerRelation — called once per
// concrete callee the Inliner wires a call site to (spec §4.8).
func (m *Manager) AddCalleeCallerRelation(callee host.MethodKey, caller Instance) {
	set, ok := m.calleeCaller[callee]
	if !ok {
		set = make(map[Instance]struct{})
		m.calleeCaller[callee] = set
	}
	set[caller] = struct{}{}
}

// CallerList is the original's callerList, exposed for inspection
// (e.g. by jitdebug); returns nil rather than an empty slice when
// callee has no recorded callers, matching the original's
// nullptr-on-miss.
func (m *Manager) CallerList(callee host.MethodKey) []Instance {
	return instances(m.calleeCaller[callee])
}

// AddConstantReferrer records that referrer's compiled code read
// constant (the header's addConstantReferrer — its .cpp body was not
// part of the retrieved source, so this mirrors the method-side
// implementation's shape, which the header declares symmetrically).
func (m *Manager) AddConstantReferrer(constant host.ConstKey, referrer Instance) {
	set, ok := m.constantReferrer[constant]
	if !ok {
		set = make(map[Instance]struct{})
		m.constantReferrer[constant] = set
	}
	set[referrer] = struct{}{}
}

// ConstantReferrerList is the header's constantReferrerList.
func (m *Manager) ConstantReferrerList(constant host.ConstKey) []Instance {
	return instances(m.constantReferrer[constant])
}

// InvalidateCompiledCodeByName is the original's notifyMethodRedefined
// (the header's public name for it is
// invalidateCompiledCodeByName/removeMethodInfoFromMethodEntry,
// collapsed into one call here since this port has no separate
// "detach a MethodInfo from its rb_method_entry_t" step — a redefined
// method's callers are invalidated and the edge is simply dropped):
// invalidate every recorded caller of callee, then forget the edge so
// invalidating twice in a row is a no-op.
func (m *Manager) InvalidateCompiledCodeByName(callee host.MethodKey) {
	for inst := range m.calleeCaller[callee] {
		inst.Invalidate()
	}
	delete(m.calleeCaller, callee)
}

// InvalidateCompiledCodeByConstantRedefinition invalidates every
// compiled instance that read constant, then forgets the edge.
func (m *Manager) InvalidateCompiledCodeByConstantRedefinition(constant host.ConstKey) {
	for inst := range m.constantReferrer[constant] {
		inst.Invalidate()
	}
	delete(m.constantReferrer, constant)
}

func instances(set map[Instance]struct{}) []Instance {
	if len(set) == 0 {
		return nil
	}
	out := make([]Instance, 0, len(set))
	for inst := range set {
		out = append(out, inst)
	}
	return out
}

// SQLiteStore persists the same two edge tables Manager keeps in
// memory, so recompilation bookkeeping survives a process restart —
// the opt-in persistence mode SPEC_FULL.md §4.10 describes for a
// long-lived compilation server (`compiler.Options.PersistencePath`).
// A live Go pointer cannot survive a restart, so edges are keyed by
// the caller's own correlation id (the uuid.UUID every compiler.Instance
// is minted with) rather than an Instance value; the caller is
// responsible for re-associating an id with a live Instance after
// reopening the store, which is exactly what Manager's in-memory
// CallerList already does for the non-persistent case.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS callee_caller (
	class INTEGER NOT NULL,
	method_name INTEGER NOT NULL,
	caller_id TEXT NOT NULL,
	PRIMARY KEY (class, method_name, caller_id)
);
CREATE TABLE IF NOT EXISTS constant_referrer (
	scope INTEGER NOT NULL,
	const_name INTEGER NOT NULL,
	referrer_id TEXT NOT NULL,
	PRIMARY KEY (scope, const_name, referrer_id)
);
`

// OpenSQLiteStore opens (creating if necessary) a persistence file at
// path and ensures its schema exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// RecordCalleeCaller is the persisted analog of
// Manager.AddCalleeCallerRelation.
func (s *SQLiteStore) RecordCalleeCaller(callee host.MethodKey, callerID uuid.UUID) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO callee_caller(class, method_name, caller_id) VALUES (?, ?, ?)`,
		int32(callee.Class), int32(callee.Name), callerID.String())
	return err
}

// CallerIDs is the persisted analog of Manager.CallerList.
func (s *SQLiteStore) CallerIDs(callee host.MethodKey) ([]uuid.UUID, error) {
	rows, err := s.db.Query(
		`SELECT caller_id FROM callee_caller WHERE class = ? AND method_name = ?`,
		int32(callee.Class), int32(callee.Name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ForgetCallee is the persisted analog of the edge-drop half of
// Manager.InvalidateCompiledCodeByName.
func (s *SQLiteStore) ForgetCallee(callee host.MethodKey) error {
	_, err := s.db.Exec(`DELETE FROM callee_caller WHERE class = ? AND method_name = ?`,
		int32(callee.Class), int32(callee.Name))
	return err
}

// RecordConstantReferrer is the persisted analog of
// Manager.AddConstantReferrer.
func (s *SQLiteStore) RecordConstantReferrer(constant host.ConstKey, referrerID uuid.UUID) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO constant_referrer(scope, const_name, referrer_id) VALUES (?, ?, ?)`,
		int32(constant.Scope), int32(constant.Name), referrerID.String())
	return err
}

// ReferrerIDs is the persisted analog of Manager.ConstantReferrerList.
func (s *SQLiteStore) ReferrerIDs(constant host.ConstKey) ([]uuid.UUID, error) {
	rows, err := s.db.Query(
		`SELECT referrer_id FROM constant_referrer WHERE scope = ? AND const_name = ?`,
		int32(constant.Scope), int32(constant.Name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ForgetConstant is the persisted analog of the edge-drop half of
// Manager.InvalidateCompiledCodeByConstantRedefinition.
func (s *SQLiteStore) ForgetConstant(constant host.ConstKey) error {
	_, err := s.db.Exec(`DELETE FROM constant_referrer WHERE scope = ? AND const_name = ?`,
		int32(constant.Scope), int32(constant.Name))
	return err
}
