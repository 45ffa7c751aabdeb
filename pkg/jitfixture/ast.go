package jitfixture

import "github.com/funvibe/rbjitgo/internal/jit/host"

// Seq builds a host.Block chain out of stmts, in order, the way a real
// parser would link one statement to the next (spec §6: "singly-linked
// statement list"). An empty stmts yields nil, which builder.Builder
// (internal/jit/builder) treats as an empty body.
func Seq(stmts ...host.Node) *host.Block {
	if len(stmts) == 0 {
		return nil
	}
	head := &host.Block{Head: stmts[0]}
	cur := head
	for _, s := range stmts[1:] {
		next := &host.Block{Head: s}
		cur.Next = next
		cur = next
	}
	return head
}

// ArrayOf builds a host.Array chain out of elems, analogous to Seq.
func ArrayOf(elems ...host.Node) *host.Array {
	if len(elems) == 0 {
		return nil
	}
	head := &host.Array{Head: elems[0], ALen: len(elems)}
	cur := head
	for _, e := range elems[1:] {
		next := &host.Array{Head: e, ALen: len(elems)}
		cur.Next = next
		cur = next
	}
	return head
}

// Method builds a host.Scope for use as a method body, with idTable
// listing every local name the body may assign (mirroring the host's
// own per-scope identifier table).
func Method(args host.ArgsInfo, idTable []host.ID, body host.Node) *host.Scope {
	return &host.Scope{Args: args, IDTable: idTable, Body: body}
}

// Args is a terse host.ArgsInfo constructor for the common case of
// required-only arguments.
func Args(required int) host.ArgsInfo {
	return host.ArgsInfo{RequiredCount: required}
}

func LocalAssign(name host.ID, value host.Node) *host.LocalAssign {
	return &host.LocalAssign{Name: name, Value: value}
}

func LocalVar(name host.ID) *host.LocalVar { return &host.LocalVar{Name: name} }

func Lit(value interface{}) *host.Literal { return &host.Literal{Value: value} }

func SelfNode() *host.Self { return &host.Self{} }

func TrueNode() *host.True   { return &host.True{} }
func FalseNode() *host.False { return &host.False{} }
func NilNode() *host.Nil     { return &host.Nil{} }

func ArrayConcat(left, right host.Node) *host.ArrayConcat {
	return &host.ArrayConcat{Left: left, Right: right}
}

func ArrayPush(array, elem host.Node) *host.ArrayPush {
	return &host.ArrayPush{Array: array, Elem: elem}
}

func Splat(value host.Node) *host.Splat { return &host.Splat{Value: value} }

func Range(begin, end host.Node, exclusiveOfEnd bool) *host.Range {
	return &host.Range{Begin: begin, End: end, ExclusiveOfEnd: exclusiveOfEnd}
}

func Str(literal string) *host.Str { return &host.Str{Literal: literal} }

func DStr(literal string, fragments ...host.Node) *host.DStr {
	return &host.DStr{Literal: literal, Fragments: fragments}
}

func HashOf(pairs ...host.HashPair) *host.Hash { return &host.Hash{Pairs: pairs} }

func Pair(key, value host.Node) host.HashPair { return host.HashPair{Key: key, Value: value} }

func And(first, second host.Node) *host.And { return &host.And{First: first, Second: second} }

func Or(first, second host.Node) *host.Or { return &host.Or{First: first, Second: second} }

func If(cond, body, els host.Node) *host.If {
	return &host.If{Cond: cond, Body: body, Else: els}
}

// While builds an ordinary pre-tested while/until loop. Use WhileDo for
// a begin/end-while loop.
func While(cond, body host.Node, negated bool) *host.While {
	return &host.While{Cond: cond, Body: body, Negated: negated}
}

// WhileDo builds a begin/end post-tested while/until loop (spec §4.1's
// "begin/end while jumps from preheader directly into body").
func WhileDo(cond, body host.Node, negated bool) *host.While {
	return &host.While{Cond: cond, Body: body, BeginLess: true, Negated: negated}
}

func ReturnNode(expr host.Node) *host.Return { return &host.Return{Expr: expr} }

// Call builds an explicit-receiver call, optionally with a block.
func Call(receiver host.Node, mid host.ID, codeBlock host.Node, args ...host.Node) *host.Call {
	return &host.Call{Receiver: receiver, MID: mid, Args: args, CodeBlock: codeBlock}
}

// Funcall builds an implicit-self call with arguments.
func Funcall(mid host.ID, args ...host.Node) *host.Funcall {
	return &host.Funcall{MID: mid, Args: args}
}

// VCall builds a bare-identifier implicit-self call with no arguments.
func VCall(mid host.ID) *host.VCall { return &host.VCall{MID: mid} }

func Const(name host.ID) *host.Const { return &host.Const{Name: name} }

func Colon2(base host.Node, name host.ID) *host.Colon2 {
	return &host.Colon2{Base: base, Name: name}
}

func Colon3(name host.ID) *host.Colon3 { return &host.Colon3{Name: name} }
