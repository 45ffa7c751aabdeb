// Package jitdebug implements the core's debug/dot printing (spec §2
// package table's "debug/dot printing" row: "named blocks,
// dominator-tree dump, .dot export"), grounded on
// original_source/rbjit/include/rbjit/controlflowgraph.h's
// debugPrintAsDot()/debugPrint() and on the teacher's own
// internal/vm/disasm.go + internal/vm/debugger.go textual-dump style.
// Nothing here is reached unless a caller asks for a dump explicitly —
// the core itself never logs on its own initiative
// (spec §4.10: "logs the way the teacher does: nothing by default").
package jitdebug

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
)

// Enabled is a package-var switch in the style of internal/jitconfig's
// tunables. No package in the core reads it; Dump and DumpDot run
// whenever they are called, whatever its value.
var Enabled = false

// Summary reports the single-line, human-readable shape of a CFG: block
// and variable counts, using humanize.Comma the way a large generated
// method's dump benefits from thousands separators.
func Summary(g *cfg.CFG) string {
	return fmt.Sprintf("cfg: %s block(s), %s variable(s)",
		humanize.Comma(int64(g.BlockCount())), humanize.Comma(int64(g.VarCount())))
}

// Dump writes a textual, block-by-block listing of g to w: one line per
// instruction, each operand rendered as "%N" and each block's backedges
// and dominator-tree parent alongside its label, in the teacher's
// disassembly-listing style (internal/vm/disasm.go's "one instruction
// per line, operands inline").
func Dump(w io.Writer, g *cfg.CFG, refl host.Reflection) {
	fmt.Fprintln(w, Summary(g))
	tree := g.DomTree()
	for bi := 0; bi < g.BlockCount(); bi++ {
		b := g.Block(ids.BlockID(bi))
		label := blockLabel(b)
		parent := ""
		if tree != nil {
			if p := tree.Parent(ids.BlockID(bi)); p != ids.NoBlock {
				parent = fmt.Sprintf(" idom=%s", blockLabel(g.Block(p)))
			}
		}
		fmt.Fprintf(w, "%s:%s  ; preds=%s\n", label, parent, blockList(g, b.Backedges()))
		for _, op := range b.Instrs() {
			fmt.Fprintf(w, "    %s\n", formatInstr(op, refl))
		}
	}
}

// DumpDot writes g as a Graphviz .dot digraph to w, one node per block
// labeled with its instructions and one edge per CFG successor,
// following the same "-dot" idiom the corpus's go/callgraph tooling
// uses for call-graph exports (spec §4.10).
func DumpDot(w io.Writer, g *cfg.CFG, refl host.Reflection) {
	fmt.Fprintln(w, "digraph cfg {")
	fmt.Fprintln(w, `  node [shape=box fontname="monospace"];`)
	for bi := 0; bi < g.BlockCount(); bi++ {
		b := g.Block(ids.BlockID(bi))
		var body strings.Builder
		body.WriteString(blockLabel(b))
		body.WriteString("\\l")
		for _, op := range b.Instrs() {
			body.WriteString(escapeDot(formatInstr(op, refl)))
			body.WriteString("\\l")
		}
		fmt.Fprintf(w, "  b%d [label=\"%s\"];\n", bi, body.String())
		for _, succ := range b.Terminator().Successors() {
			fmt.Fprintf(w, "  b%d -> b%d;\n", bi, succ)
		}
	}
	fmt.Fprintln(w, "}")
}

// escapeDot quotes characters Graphviz's quoted-string labels treat
// specially.
func escapeDot(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func blockLabel(b *cfg.Block) string {
	if n := b.Name(); n != "" {
		return n
	}
	return fmt.Sprintf("bb%d", b.Index())
}

func blockList(g *cfg.CFG, preds []ids.BlockID) string {
	if len(preds) == 0 {
		return "(none)"
	}
	parts := make([]string, len(preds))
	for i, b := range preds {
		parts[i] = blockLabel(g.Block(b))
	}
	return strings.Join(parts, ",")
}

func varName(v ids.VarID) string {
	if v == ids.NoVar {
		return "-"
	}
	return fmt.Sprintf("%%%d", v)
}

// formatInstr renders one instruction as "%lhs = Kind operands... ->
// %outEnv", omitting the assignment and env parts when absent. This
// covers every opcode generically through instr.Instr's accessors
// rather than a per-kind switch, the same simplification
// internal/jit/check and internal/jit/duplicate already use.
func formatInstr(op instr.Instr, refl host.Reflection) string {
	var b strings.Builder
	if lhs := op.Lhs(); lhs != ids.NoVar {
		b.WriteString(varName(lhs))
		b.WriteString(" = ")
	}
	b.WriteString(op.Kind().String())
	operands := op.Operands()
	if len(operands) > 0 {
		b.WriteString(" ")
		parts := make([]string, len(operands))
		for i, v := range operands {
			parts[i] = varName(v)
		}
		b.WriteString(strings.Join(parts, ", "))
	}
	if succs := op.Successors(); len(succs) > 0 {
		parts := make([]string, len(succs))
		for i, s := range succs {
			parts[i] = fmt.Sprintf("bb%d", s)
		}
		b.WriteString(" -> ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if env := op.OutEnv(); env != ids.NoVar {
		fmt.Fprintf(&b, " ; outEnv=%s", varName(env))
	}
	if named := instrName(op, refl); named != "" {
		fmt.Fprintf(&b, " ; %s", named)
	}
	return b.String()
}

// instrName annotates the handful of opcodes that carry an interned
// host.ID (Lookup, Constant, Primitive) with the name it refers to, so
// a dump reads like "%2 = Lookup %0, %1 ; foo".
func instrName(op instr.Instr, refl host.Reflection) string {
	if refl == nil {
		return ""
	}
	switch v := op.(type) {
	case *instr.Lookup:
		return refl.StringOf(v.MethodName)
	case *instr.Constant:
		return refl.StringOf(v.Name)
	case *instr.Primitive:
		return refl.StringOf(v.Name)
	}
	return ""
}
