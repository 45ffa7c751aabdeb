package recompile

import (
	"path/filepath"
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/google/uuid"
)

type stubInstance struct {
	invalidated bool
}

func (s *stubInstance) Invalidate() { s.invalidated = true }

func TestAddCalleeCallerRelationAndCallerList(t *testing.T) {
	m := New()
	callee := host.MethodKey{Class: 1, Name: 2}
	a := &stubInstance{}
	b := &stubInstance{}

	m.AddCalleeCallerRelation(callee, a)
	m.AddCalleeCallerRelation(callee, b)
	// Re-adding the same caller must not duplicate it.
	m.AddCalleeCallerRelation(callee, a)

	callers := m.CallerList(callee)
	if len(callers) != 2 {
		t.Fatalf("CallerList(callee) = %d callers, want 2", len(callers))
	}

	other := host.MethodKey{Class: 1, Name: 3}
	if got := m.CallerList(other); got != nil {
		t.Fatalf("CallerList(other) = %v, want nil for a callee with no recorded callers", got)
	}
}

func TestInvalidateCompiledCodeByNameInvalidatesEveryCallerAndForgetsEdge(t *testing.T) {
	m := New()
	callee := host.MethodKey{Class: 1, Name: 2}
	a := &stubInstance{}
	b := &stubInstance{}
	m.AddCalleeCallerRelation(callee, a)
	m.AddCalleeCallerRelation(callee, b)

	m.InvalidateCompiledCodeByName(callee)

	if !a.invalidated || !b.invalidated {
		t.Fatalf("both recorded callers must be invalidated, got a=%v b=%v", a.invalidated, b.invalidated)
	}
	if got := m.CallerList(callee); got != nil {
		t.Fatalf("CallerList(callee) after invalidation = %v, want nil (edge forgotten)", got)
	}

	// Invalidating again must be a no-op, not a panic on a nil map entry.
	m.InvalidateCompiledCodeByName(callee)
}

func TestInvalidateCompiledCodeByConstantRedefinitionInvalidatesReferrersAndForgetsEdge(t *testing.T) {
	m := New()
	constant := host.ConstKey{Scope: 1, Name: 5}
	a := &stubInstance{}
	m.AddConstantReferrer(constant, a)

	m.InvalidateCompiledCodeByConstantRedefinition(constant)

	if !a.invalidated {
		t.Fatalf("the recorded referrer must be invalidated")
	}
	if got := m.ConstantReferrerList(constant); got != nil {
		t.Fatalf("ConstantReferrerList(constant) after invalidation = %v, want nil", got)
	}
}

func TestSQLiteStoreRoundTripsCalleeCallerEdges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recompile.db")
	store, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	defer store.Close()

	callee := host.MethodKey{Class: 1, Name: 2}
	id := uuid.New()
	if err := store.RecordCalleeCaller(callee, id); err != nil {
		t.Fatalf("RecordCalleeCaller: %v", err)
	}
	// Recording the same edge twice must not produce duplicate rows.
	if err := store.RecordCalleeCaller(callee, id); err != nil {
		t.Fatalf("RecordCalleeCaller (duplicate): %v", err)
	}

	ids, err := store.CallerIDs(callee)
	if err != nil {
		t.Fatalf("CallerIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("CallerIDs(callee) = %v, want exactly [%v]", ids, id)
	}

	if err := store.ForgetCallee(callee); err != nil {
		t.Fatalf("ForgetCallee: %v", err)
	}
	ids, err = store.CallerIDs(callee)
	if err != nil {
		t.Fatalf("CallerIDs after ForgetCallee: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("CallerIDs(callee) after ForgetCallee = %v, want empty", ids)
	}
}

func TestSQLiteStoreRoundTripsConstantReferrerEdges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recompile.db")
	store, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	defer store.Close()

	constant := host.ConstKey{Scope: 1, Name: 7}
	id := uuid.New()
	if err := store.RecordConstantReferrer(constant, id); err != nil {
		t.Fatalf("RecordConstantReferrer: %v", err)
	}

	ids, err := store.ReferrerIDs(constant)
	if err != nil {
		t.Fatalf("ReferrerIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("ReferrerIDs(constant) = %v, want exactly [%v]", ids, id)
	}

	if err := store.ForgetConstant(constant); err != nil {
		t.Fatalf("ForgetConstant: %v", err)
	}
	ids, err = store.ReferrerIDs(constant)
	if err != nil {
		t.Fatalf("ReferrerIDs after ForgetConstant: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("ReferrerIDs(constant) after ForgetConstant = %v, want empty", ids)
	}
}
