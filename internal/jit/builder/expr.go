package builder

import (
	"fmt"

	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
)

var loc = host.SourceLocation{}

// buildNode lowers one host AST node, returning the variable holding
// its result (ids.NoVar if useResult is false or the node is itself a
// control-flow statement with no value), grounded on
// original_source/rbjit/src/cfgbuilder.cpp buildNode's switch over
// node_type.
func (b *Builder) buildNode(node host.Node, useResult bool) (ids.VarID, error) {
	if b.terminated {
		return ids.NoVar, nil
	}
	if node == nil {
		if useResult {
			return b.g.Undefined(), nil
		}
		return ids.NoVar, nil
	}

	switch n := node.(type) {
	case *host.Block:
		return b.buildBlock(n, useResult)
	case *host.LocalAssign:
		return b.buildLocalAssign(n)
	case *host.LocalVar:
		return b.namedSlot(b.lookupName(n.Name)), nil
	case *host.Literal:
		lhs := b.tmp()
		b.emit(instr.NewImmediate(loc, lhs, n.Value))
		return lhs, nil
	case *host.Self:
		self := b.refl.Intern("self")
		return b.namedSlot(b.lookupName(self)), nil
	case *host.True:
		lhs := b.tmp()
		b.emit(instr.NewImmediate(loc, lhs, true))
		return lhs, nil
	case *host.False:
		lhs := b.tmp()
		b.emit(instr.NewImmediate(loc, lhs, false))
		return lhs, nil
	case *host.Nil:
		lhs := b.tmp()
		b.emit(instr.NewImmediate(loc, lhs, nil))
		return lhs, nil
	case *host.Array:
		return b.buildArray(n)
	case *host.ArrayConcat:
		return b.buildArrayConcat(n)
	case *host.ArrayPush:
		return b.buildArrayPush(n)
	case *host.Splat:
		// A bare splat outside an Array/argument-list context has no
		// useful value of its own; lower its operand directly (spec
		// §4.1: splats are only ever meaningful as a marked element of
		// something else).
		return b.buildNode(n.Value, useResult)
	case *host.Range:
		return b.buildRange(n)
	case *host.Str:
		lhs := b.tmp()
		b.emit(instr.NewString(loc, lhs, n.Literal))
		return lhs, nil
	case *host.DStr:
		return b.buildDStr(n)
	case *host.Hash:
		return b.buildHash(n)
	case *host.And:
		return b.buildAnd(n)
	case *host.Or:
		return b.buildOr(n)
	case *host.If:
		return b.buildIf(n, useResult)
	case *host.While:
		return b.buildWhile(n, useResult)
	case *host.Return:
		return b.buildReturnStmt(n)
	case *host.Call:
		return b.buildCall(n, useResult)
	case *host.Funcall:
		return b.buildFuncall(n, useResult)
	case *host.VCall:
		return b.buildVCall(n, useResult)
	case *host.Const:
		lhs := b.tmp()
		b.emit(instr.NewConstant(loc, lhs, instr.ConstantFree, n.Name, nil))
		return lhs, nil
	case *host.Colon2:
		base, err := b.buildNode(n.Base, true)
		if err != nil {
			return ids.NoVar, err
		}
		lhs := b.tmp()
		b.emit(instr.NewConstant(loc, lhs, instr.ConstantRelative, n.Name, []ids.VarID{base}))
		return lhs, nil
	case *host.Colon3:
		lhs := b.tmp()
		b.emit(instr.NewConstant(loc, lhs, instr.ConstantTopLevel, n.Name, nil))
		return lhs, nil
	default:
		return ids.NoVar, &UnsupportedSyntaxError{What: fmt.Sprintf("builder: unsupported node kind %v", node.Kind())}
	}
}

func (b *Builder) buildBlock(n *host.Block, useResult bool) (ids.VarID, error) {
	stmts := n.Statements()
	var result ids.VarID = ids.NoVar
	for i, s := range stmts {
		if !b.terminated && i == len(stmts)-1 {
			v, err := b.buildNode(s, useResult)
			if err != nil {
				return ids.NoVar, err
			}
			result = v
			continue
		}
		if b.terminated {
			break
		}
		if _, err := b.buildNode(s, false); err != nil {
			return ids.NoVar, err
		}
	}
	return result, nil
}

func (b *Builder) buildLocalAssign(n *host.LocalAssign) (ids.VarID, error) {
	v, err := b.buildNode(n.Value, true)
	if err != nil {
		return ids.NoVar, err
	}
	nv := b.declare(n.Name)
	return b.defineNamed(nv, v), nil
}

func (b *Builder) buildArray(n *host.Array) (ids.VarID, error) {
	elems := n.Elements()
	ops := make([]ids.VarID, 0, len(elems))
	splats := make([]int, 0)
	for i, el := range elems {
		if sp, ok := el.(*host.Splat); ok {
			v, err := b.buildNode(sp.Value, true)
			if err != nil {
				return ids.NoVar, err
			}
			ops = append(ops, v)
			splats = append(splats, i)
			continue
		}
		v, err := b.buildNode(el, true)
		if err != nil {
			return ids.NoVar, err
		}
		ops = append(ops, v)
	}
	lhs := b.tmp()
	op := instr.NewArray(loc, lhs, ops)
	for _, i := range splats {
		op.MarkSplat(i)
	}
	b.emit(op)
	return lhs, nil
}

func (b *Builder) buildArrayConcat(n *host.ArrayConcat) (ids.VarID, error) {
	left, err := b.buildNode(n.Left, true)
	if err != nil {
		return ids.NoVar, err
	}
	right, err := b.buildNode(n.Right, true)
	if err != nil {
		return ids.NoVar, err
	}
	lhs := b.tmp()
	op := instr.NewArray(loc, lhs, []ids.VarID{left, right})
	op.MarkSplat(0)
	op.MarkSplat(1)
	b.emit(op)
	return lhs, nil
}

func (b *Builder) buildArrayPush(n *host.ArrayPush) (ids.VarID, error) {
	arr, err := b.buildNode(n.Array, true)
	if err != nil {
		return ids.NoVar, err
	}
	elem, err := b.buildNode(n.Elem, true)
	if err != nil {
		return ids.NoVar, err
	}
	lhs := b.tmp()
	op := instr.NewArray(loc, lhs, []ids.VarID{arr, elem})
	op.MarkSplat(0)
	b.emit(op)
	return lhs, nil
}

func (b *Builder) buildRange(n *host.Range) (ids.VarID, error) {
	begin, err := b.buildNode(n.Begin, true)
	if err != nil {
		return ids.NoVar, err
	}
	end, err := b.buildNode(n.End, true)
	if err != nil {
		return ids.NoVar, err
	}
	lhs := b.tmp()
	b.emit(instr.NewRange(loc, lhs, begin, end, n.ExclusiveOfEnd))
	return lhs, nil
}

func (b *Builder) buildDStr(n *host.DStr) (ids.VarID, error) {
	prefix := b.tmp()
	b.emit(instr.NewString(loc, prefix, n.Literal))

	parts := []ids.VarID{prefix}
	for _, frag := range n.Fragments {
		v, err := b.buildNode(frag, true)
		if err != nil {
			return ids.NoVar, err
		}
		parts = append(parts, v)
	}

	lhs := b.tmp()
	name := b.refl.Intern(host.PrimStringInterpolate)
	b.emit(instr.NewPrimitive(loc, lhs, name, parts))
	return lhs, nil
}

func (b *Builder) buildHash(n *host.Hash) (ids.VarID, error) {
	ops := make([]ids.VarID, 0, len(n.Pairs)*2)
	for _, p := range n.Pairs {
		k, err := b.buildNode(p.Key, true)
		if err != nil {
			return ids.NoVar, err
		}
		v, err := b.buildNode(p.Value, true)
		if err != nil {
			return ids.NoVar, err
		}
		ops = append(ops, k, v)
	}
	lhs := b.tmp()
	b.emit(instr.NewHash(loc, lhs, ops))
	return lhs, nil
}

// buildAnd/buildOr lower short-circuit evaluation the same way an if
// would: evaluate the first operand once, branch on it, and only
// evaluate the second operand on the path that needs it (spec §4.1).
func (b *Builder) buildAnd(n *host.And) (ids.VarID, error) {
	return b.buildShortCircuit(n.First, n.Second, false)
}

func (b *Builder) buildOr(n *host.Or) (ids.VarID, error) {
	return b.buildShortCircuit(n.First, n.Second, true)
}

func (b *Builder) buildShortCircuit(first, second host.Node, isOr bool) (ids.VarID, error) {
	firstVar, err := b.buildNode(first, true)
	if err != nil {
		return ids.NoVar, err
	}

	result := b.tmp()
	b.emit(instr.NewCopy(loc, result, firstVar))

	cont := b.newBlock()
	join := b.newBlock()

	if isOr {
		b.emit(instr.NewJumpIf(loc, firstVar, join, cont))
	} else {
		b.emit(instr.NewJumpIf(loc, firstVar, cont, join))
	}
	b.connect(b.cur, cont)
	b.connect(b.cur, join)
	// The edge that skips the second operand gets a cushion block of
	// its own on the way to join.
	b.g.InsertEmptyBlockAfter(b.cur, join)
	b.terminated = true

	b.cur, b.terminated = cont, false
	secondVar, err := b.buildNode(second, true)
	if err != nil {
		return ids.NoVar, err
	}
	b.emit(instr.NewCopy(loc, result, secondVar))
	b.jumpTo(join)

	b.cur, b.terminated = join, false
	return result, nil
}

func (b *Builder) buildIf(n *host.If, useResult bool) (ids.VarID, error) {
	cond, err := b.buildNode(n.Cond, true)
	if err != nil {
		return ids.NoVar, err
	}

	thenBlock := b.newBlock()
	elseBlock := b.newBlock()
	b.emit(instr.NewJumpIf(loc, cond, thenBlock, elseBlock))
	b.connect(b.cur, thenBlock)
	b.connect(b.cur, elseBlock)
	b.terminated = true

	b.cur, b.terminated = thenBlock, false
	thenVal, err := b.buildNode(n.Body, useResult)
	if err != nil {
		return ids.NoVar, err
	}
	thenEnd, thenTerminated := b.cur, b.terminated

	b.cur, b.terminated = elseBlock, false
	elseVal, err := b.buildNode(n.Else, useResult)
	if err != nil {
		return ids.NoVar, err
	}
	elseEnd, elseTerminated := b.cur, b.terminated

	if thenTerminated && elseTerminated {
		b.terminated = true
		if useResult {
			return b.g.Undefined(), nil
		}
		return ids.NoVar, nil
	}

	join := b.newBlock()
	var result ids.VarID = ids.NoVar
	if useResult {
		result = b.tmp()
	}

	if !thenTerminated {
		b.cur, b.terminated = thenEnd, false
		if useResult {
			b.emit(instr.NewCopy(loc, result, thenVal))
		}
		b.jumpTo(join)
	}
	if !elseTerminated {
		b.cur, b.terminated = elseEnd, false
		if useResult {
			b.emit(instr.NewCopy(loc, result, elseVal))
		}
		b.jumpTo(join)
	}

	b.cur, b.terminated = join, false
	return result, nil
}

func (b *Builder) buildWhile(n *host.While, useResult bool) (ids.VarID, error) {
	header := b.newBlock()
	body := b.newBlock()
	after := b.newBlock()

	if n.BeginLess {
		b.jumpTo(body)
	} else {
		b.jumpTo(header)
	}

	b.cur, b.terminated = header, false
	cond, err := b.buildNode(n.Cond, true)
	if err != nil {
		return ids.NoVar, err
	}
	if n.Negated {
		b.emit(instr.NewJumpIf(loc, cond, after, body))
	} else {
		b.emit(instr.NewJumpIf(loc, cond, body, after))
	}
	b.connect(b.cur, body)
	b.connect(b.cur, after)
	b.terminated = true

	b.cur, b.terminated = body, false
	if _, err := b.buildNode(n.Body, false); err != nil {
		return ids.NoVar, err
	}
	if !b.terminated {
		b.jumpTo(header)
	}

	b.cur, b.terminated = after, false
	if useResult {
		lhs := b.tmp()
		b.emit(instr.NewImmediate(loc, lhs, nil))
		return lhs, nil
	}
	return ids.NoVar, nil
}

func (b *Builder) buildReturnStmt(n *host.Return) (ids.VarID, error) {
	v, err := b.buildNode(n.Expr, true)
	if err != nil {
		return ids.NoVar, err
	}
	b.buildReturn(v)
	return ids.NoVar, nil
}

////////////////////////////////////////////////////////////////////////////
// calls

func (b *Builder) buildCall(n *host.Call, useResult bool) (ids.VarID, error) {
	receiver, err := b.buildNode(n.Receiver, true)
	if err != nil {
		return ids.NoVar, err
	}
	return b.buildDispatch(receiver, n.MID, n.Args, n.CodeBlock, useResult)
}

func (b *Builder) buildFuncall(n *host.Funcall, useResult bool) (ids.VarID, error) {
	self := b.refl.Intern("self")
	receiver := b.namedSlot(b.lookupName(self))
	return b.buildDispatch(receiver, n.MID, n.Args, n.CodeBlock, useResult)
}

func (b *Builder) buildVCall(n *host.VCall, useResult bool) (ids.VarID, error) {
	self := b.refl.Intern("self")
	receiver := b.namedSlot(b.lookupName(self))
	return b.buildDispatch(receiver, n.MID, nil, nil, useResult)
}

// buildDispatch lowers a method call. It recognizes a cataloged
// primitive by (name, arity) and emits Primitive directly instead of
// Lookup+Call, bypassing method resolution entirely (spec §4.1 "If the
// name is a known primitive, emit Primitive instead").
func (b *Builder) buildDispatch(receiver ids.VarID, name host.ID, argNodes []host.Node, codeBlockNode host.Node, useResult bool) (ids.VarID, error) {
	args := make([]ids.VarID, 0, len(argNodes))
	for _, a := range argNodes {
		v, err := b.buildNode(a, true)
		if err != nil {
			return ids.NoVar, err
		}
		args = append(args, v)
	}

	if b.prims != nil && b.prims.IsPrimitive(name) {
		if sig, ok := b.prims.Lookup(name); ok && sig.Arity == len(args) {
			var lhs ids.VarID = ids.NoVar
			if useResult {
				lhs = b.tmp()
			}
			b.emit(instr.NewPrimitive(loc, lhs, name, args))
			return lhs, nil
		}
	}

	lookupVar := b.tmp()
	b.emit(instr.NewLookup(loc, lookupVar, receiver, b.envVar, name))

	codeBlockVar := b.g.Undefined()
	if codeBlockNode != nil {
		codeBlockVar = b.tmp()
		b.emit(instr.NewCodeBlock(loc, codeBlockVar, codeBlockNode))
	}

	var lhs ids.VarID = ids.NoVar
	if useResult {
		lhs = b.tmp()
	}
	call := instr.NewCall(loc, lhs, receiver, args, lookupVar, codeBlockVar)
	call.SetOutEnv(b.envVar)
	b.emit(call)
	return lhs, nil
}
