package jitfixture

import (
	"testing"

	"github.com/funvibe/rbjitgo/internal/jit/host"
)

const doc = `
classes:
  - name: Greeter
    constants:
      - name: GREETING
        value: hello
    methods:
      - name: identity
        required_args: 1
        locals: [n]
        body:
          kind: seq
          stmts:
            - kind: return
              expr:
                kind: local_var
                name: n
`

func TestLoadResolvesMethodBodyAndConstants(t *testing.T) {
	_, refl, err := Load([]byte(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var greeter host.ClassID
	for _, id := range refl.Subclasses(host.NoClass) {
		if refl.StringOf(refl.ClassName(id)) == "Greeter" {
			greeter = id
		}
	}
	if greeter == host.NoClass {
		t.Fatalf("Greeter class not registered")
	}

	v, ok := refl.LookupConstant(greeter, refl.Intern("GREETING"))
	if !ok || v != "hello" {
		t.Fatalf("LookupConstant(GREETING) = (%v, %v), want (hello, true)", v, ok)
	}

	me, ok := refl.LookupMethod(greeter, refl.Intern("identity"))
	if !ok {
		t.Fatalf("LookupMethod(Greeter, identity) not found")
	}
	if me.Kind != host.MethodHasAST || me.AST == nil {
		t.Fatalf("identity method has no resolved AST: %+v", me)
	}
	if me.AST.Args.RequiredCount != 1 || len(me.AST.IDTable) != 1 {
		t.Fatalf("identity method's Scope = %+v, want 1 required arg and 1 local", me.AST)
	}
	ret, ok := me.AST.Body.(*host.Block)
	if !ok {
		t.Fatalf("identity method's Body = %T, want *host.Block", me.AST.Body)
	}
	stmts := ret.Statements()
	if len(stmts) != 1 {
		t.Fatalf("identity method's body has %d statement(s), want 1", len(stmts))
	}
	if _, ok := stmts[0].(*host.Return); !ok {
		t.Fatalf("identity method's only statement is %T, want *host.Return", stmts[0])
	}
}

func TestLoadRejectsUnknownSuper(t *testing.T) {
	_, _, err := Load([]byte(`
classes:
  - name: Child
    super: Ghost
`))
	if err == nil {
		t.Fatalf("Load should reject a super referencing an undefined class")
	}
}

func TestLoadNativeMethodHasNoAST(t *testing.T) {
	_, refl, err := Load([]byte(`
classes:
  - name: Native
    methods:
      - name: op
        native: true
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var cls host.ClassID
	for _, id := range refl.Subclasses(host.NoClass) {
		if refl.StringOf(refl.ClassName(id)) == "Native" {
			cls = id
		}
	}
	me, ok := refl.LookupMethod(cls, refl.Intern("op"))
	if !ok || me.Kind != host.MethodNative || me.AST != nil {
		t.Fatalf("native method entry = %+v, want Kind=MethodNative and AST=nil", me)
	}
}
