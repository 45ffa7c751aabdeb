// Package cfg implements Block and CFG (spec §3 "Block", "CFG"),
// grounded on original_source/rbjit/include/rbjit/block.h and
// controlflowgraph.h. All cross-references are ids.BlockID/ids.VarID,
// never pointers (spec §9), so a CFG's arenas can be freely copied and
// offset by the Duplicator.
package cfg

import (
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
)

// Block is an ordered, non-empty sequence of instructions whose last
// element is always a terminator (spec §3 invariant).
type Block struct {
	index     ids.BlockID
	instrs    []instr.Instr
	backedges []ids.BlockID // predecessors in insertion order; pairs positionally with phi operands
	name      string
}

func newBlock(index ids.BlockID) *Block {
	return &Block{index: index}
}

func (b *Block) Index() ids.BlockID { return b.index }

func (b *Block) Name() string      { return b.name }
func (b *Block) SetName(n string)  { b.name = n }

// Instrs returns the block's instructions in order. Callers must not
// retain the slice across a mutation of the block.
func (b *Block) Instrs() []instr.Instr { return b.instrs }

func (b *Block) Len() int { return len(b.instrs) }

// Append adds op as the new last instruction. It is the caller's
// responsibility not to append after a terminator has been added.
func (b *Block) Append(op instr.Instr) {
	b.instrs = append(b.instrs, op)
}

// InsertBefore inserts op immediately before the instruction at index i.
func (b *Block) InsertBefore(i int, op instr.Instr) {
	b.instrs = append(b.instrs, nil)
	copy(b.instrs[i+1:], b.instrs[i:])
	b.instrs[i] = op
}

// RemoveAt deletes the instruction at index i.
func (b *Block) RemoveAt(i int) {
	b.instrs = append(b.instrs[:i], b.instrs[i+1:]...)
}

// IndexOf returns the position of op in this block, or -1.
func (b *Block) IndexOf(op instr.Instr) int {
	for i, o := range b.instrs {
		if o == op {
			return i
		}
	}
	return -1
}

// Terminator returns the block's terminating instruction (spec §3:
// "exactly one terminator per block").
func (b *Block) Terminator() instr.Instr {
	if len(b.instrs) == 0 {
		return nil
	}
	return b.instrs[len(b.instrs)-1]
}

func (b *Block) Backedges() []ids.BlockID { return b.backedges }

func (b *Block) PredecessorCount() int { return len(b.backedges) }

// IndexOfPredecessor returns pred's position in this block's backedge
// list — the index a phi in this block pairs that predecessor's
// operand with (spec §3, §4.1).
func (b *Block) IndexOfPredecessor(pred ids.BlockID) int {
	for i, p := range b.backedges {
		if p == pred {
			return i
		}
	}
	return -1
}

func (b *Block) addBackedge(pred ids.BlockID) {
	b.backedges = append(b.backedges, pred)
}

func (b *Block) removeBackedge(pred ids.BlockID) {
	for i, p := range b.backedges {
		if p == pred {
			b.backedges = append(b.backedges[:i], b.backedges[i+1:]...)
			return
		}
	}
}

// ContainsInstr reports whether op is one of this block's instructions.
func (b *Block) ContainsInstr(op instr.Instr) bool { return b.IndexOf(op) >= 0 }
