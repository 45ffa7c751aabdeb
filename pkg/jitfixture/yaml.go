package jitfixture

import (
	"fmt"

	"github.com/funvibe/rbjitgo/internal/jit/host"
	"gopkg.in/yaml.v3"
)

// Document is the YAML shape a fixture file decodes into: a reflection
// snapshot (classes, their methods and constants) plus the host-AST
// body of each method, for the CLI and golden tests (spec §4.11:
// "pkg/jitfixture can load a fixture host-AST + reflection snapshot
// (classes, method tables) from a YAML file"). Method bodies are
// expressed as a small recursive node schema (one YAML mapping per
// host.Node, tagged by `kind`) rather than Go source, since this
// package has no parser of its own.
type Document struct {
	Classes []ClassDoc `yaml:"classes"`
}

type ClassDoc struct {
	Name      string        `yaml:"name"`
	Super     string        `yaml:"super"`
	Builtin   string        `yaml:"builtin"`
	Constants []ConstantDoc `yaml:"constants"`
	Methods   []MethodDoc   `yaml:"methods"`
}

type ConstantDoc struct {
	Name     string      `yaml:"name"`
	Value    interface{} `yaml:"value"`
	Autoload bool        `yaml:"autoload"`
}

type MethodDoc struct {
	Name             string   `yaml:"name"`
	Native           bool     `yaml:"native"`
	JitOnly          bool     `yaml:"jit_only"`
	Mutator          bool     `yaml:"mutator"`
	RequiredArgCount int      `yaml:"required_args"`
	Locals           []string `yaml:"locals"`
	Body             NodeDoc  `yaml:"body"`
}

// NodeDoc is a raw YAML node deferred to resolveNode, since host.Node
// is an interface and yaml.v3 cannot unmarshal into one without a
// tag-driven dispatch step of our own.
type NodeDoc struct {
	raw yaml.Node
	set bool
}

func (n *NodeDoc) UnmarshalYAML(value *yaml.Node) error {
	n.raw = *value
	n.set = true
	return nil
}

// builtinByName maps a YAML `builtin:` string to a host.BuiltinClass.
var builtinByName = map[string]host.BuiltinClass{
	"":          host.BuiltinClassNone,
	"true":      host.BuiltinClassTrue,
	"false":     host.BuiltinClassFalse,
	"nil_class": host.BuiltinClassNilClass,
	"fixnum":    host.BuiltinClassFixnum,
	"bignum":    host.BuiltinClassBignum,
}

// Load parses a YAML fixture document and materializes it into a fresh
// Interner/Reflection pair, resolving every method body into a
// host.Scope ready for compiler.Manager.Compile. Classes are defined in
// document order, so a subclass's `super:` must name a class defined
// earlier (or one of the builtins NewReflection pre-registers).
func Load(data []byte) (*Interner, *Reflection, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("jitfixture: parsing yaml: %w", err)
	}

	in := NewInterner()
	refl := NewReflection(in)

	byName := map[string]host.ClassID{
		"TrueClass":  refl.TrueClass,
		"FalseClass": refl.FalseClass,
		"NilClass":   refl.NilClassID,
		"Fixnum":     refl.FixnumClass,
		"Bignum":     refl.BignumClass,
	}

	for _, cd := range doc.Classes {
		super := host.NoClass
		if cd.Super != "" {
			s, ok := byName[cd.Super]
			if !ok {
				return nil, nil, fmt.Errorf("jitfixture: class %q: unknown super %q", cd.Name, cd.Super)
			}
			super = s
		}
		builtin, ok := builtinByName[cd.Builtin]
		if !ok {
			return nil, nil, fmt.Errorf("jitfixture: class %q: unknown builtin kind %q", cd.Name, cd.Builtin)
		}
		cls := refl.DefineClass(cd.Name, super, builtin)
		byName[cd.Name] = cls

		for _, k := range cd.Constants {
			if k.Autoload {
				refl.MarkAutoload(cls, k.Name)
				continue
			}
			refl.DefineConstant(cls, k.Name, k.Value)
		}

		for _, md := range cd.Methods {
			kind := host.MethodNative
			var ast *host.Scope
			if !md.Native {
				kind = host.MethodHasAST
				idTable := make([]host.ID, len(md.Locals))
				for i, l := range md.Locals {
					idTable[i] = in.Intern(l)
				}
				body, err := resolveNode(in, &md.Body)
				if err != nil {
					return nil, nil, fmt.Errorf("jitfixture: class %q method %q: %w", cd.Name, md.Name, err)
				}
				ast = Method(Args(md.RequiredArgCount), idTable, body)
			}
			refl.DefineMethod(cls, md.Name, kind, ast, md.Mutator, md.RequiredArgCount)
			if md.JitOnly {
				refl.MarkJitOnly(cls, md.Name)
			}
		}
	}

	return in, refl, nil
}

// resolveNode decodes one NodeDoc into a concrete host.Node, dispatched
// on its `kind:` field.
func resolveNode(in *Interner, n *NodeDoc) (host.Node, error) {
	if !n.set || n.raw.Kind == 0 {
		return nil, nil
	}
	var tagged struct {
		Kind string `yaml:"kind"`
	}
	if err := n.raw.Decode(&tagged); err != nil {
		return nil, fmt.Errorf("decoding node kind: %w", err)
	}

	switch tagged.Kind {
	case "seq":
		var body struct {
			Stmts []NodeDoc `yaml:"stmts"`
		}
		if err := n.raw.Decode(&body); err != nil {
			return nil, err
		}
		nodes := make([]host.Node, 0, len(body.Stmts))
		for i := range body.Stmts {
			stmt, err := resolveNode(in, &body.Stmts[i])
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, stmt)
		}
		return Seq(nodes...), nil

	case "local_assign":
		var body struct {
			Name  string  `yaml:"name"`
			Value NodeDoc `yaml:"value"`
		}
		if err := n.raw.Decode(&body); err != nil {
			return nil, err
		}
		v, err := resolveNode(in, &body.Value)
		if err != nil {
			return nil, err
		}
		return LocalAssign(in.Intern(body.Name), v), nil

	case "local_var":
		var body struct {
			Name string `yaml:"name"`
		}
		if err := n.raw.Decode(&body); err != nil {
			return nil, err
		}
		return LocalVar(in.Intern(body.Name)), nil

	case "literal":
		var body struct {
			Value interface{} `yaml:"value"`
		}
		if err := n.raw.Decode(&body); err != nil {
			return nil, err
		}
		return Lit(body.Value), nil

	case "self":
		return SelfNode(), nil
	case "true":
		return TrueNode(), nil
	case "false":
		return FalseNode(), nil
	case "nil":
		return NilNode(), nil

	case "and", "or":
		var body struct {
			First  NodeDoc `yaml:"first"`
			Second NodeDoc `yaml:"second"`
		}
		if err := n.raw.Decode(&body); err != nil {
			return nil, err
		}
		first, err := resolveNode(in, &body.First)
		if err != nil {
			return nil, err
		}
		second, err := resolveNode(in, &body.Second)
		if err != nil {
			return nil, err
		}
		if tagged.Kind == "and" {
			return And(first, second), nil
		}
		return Or(first, second), nil

	case "if":
		var body struct {
			Cond NodeDoc `yaml:"cond"`
			Body NodeDoc `yaml:"body"`
			Else NodeDoc `yaml:"else"`
		}
		if err := n.raw.Decode(&body); err != nil {
			return nil, err
		}
		cond, err := resolveNode(in, &body.Cond)
		if err != nil {
			return nil, err
		}
		thenN, err := resolveNode(in, &body.Body)
		if err != nil {
			return nil, err
		}
		elseN, err := resolveNode(in, &body.Else)
		if err != nil {
			return nil, err
		}
		return If(cond, thenN, elseN), nil

	case "while", "until":
		var body struct {
			Cond      NodeDoc `yaml:"cond"`
			Body      NodeDoc `yaml:"body"`
			BeginLess bool    `yaml:"begin_less"`
		}
		if err := n.raw.Decode(&body); err != nil {
			return nil, err
		}
		cond, err := resolveNode(in, &body.Cond)
		if err != nil {
			return nil, err
		}
		loopBody, err := resolveNode(in, &body.Body)
		if err != nil {
			return nil, err
		}
		negated := tagged.Kind == "until"
		if body.BeginLess {
			return WhileDo(cond, loopBody, negated), nil
		}
		return While(cond, loopBody, negated), nil

	case "return":
		var body struct {
			Expr NodeDoc `yaml:"expr"`
		}
		if err := n.raw.Decode(&body); err != nil {
			return nil, err
		}
		expr, err := resolveNode(in, &body.Expr)
		if err != nil {
			return nil, err
		}
		return ReturnNode(expr), nil

	case "call", "funcall", "vcall":
		var body struct {
			Receiver NodeDoc   `yaml:"receiver"`
			Name     string    `yaml:"name"`
			Args     []NodeDoc `yaml:"args"`
		}
		if err := n.raw.Decode(&body); err != nil {
			return nil, err
		}
		mid := in.Intern(body.Name)
		if tagged.Kind == "vcall" {
			return VCall(mid), nil
		}
		args := make([]host.Node, 0, len(body.Args))
		for i := range body.Args {
			a, err := resolveNode(in, &body.Args[i])
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		if tagged.Kind == "funcall" {
			return Funcall(mid, args...), nil
		}
		recv, err := resolveNode(in, &body.Receiver)
		if err != nil {
			return nil, err
		}
		return Call(recv, mid, nil, args...), nil

	case "const":
		var body struct {
			Name string `yaml:"name"`
		}
		if err := n.raw.Decode(&body); err != nil {
			return nil, err
		}
		return Const(in.Intern(body.Name)), nil

	default:
		return nil, fmt.Errorf("unknown node kind %q", tagged.Kind)
	}
}
