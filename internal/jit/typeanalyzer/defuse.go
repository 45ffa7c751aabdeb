package typeanalyzer

import (
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
)

// use pairs the block an instruction lives in with the variable that
// instruction defines, mirroring defusechain.h's
// std::pair<BlockHeader*, Variable*>.
type use struct {
	block ids.BlockID
	def   ids.VarID
}

// defUseChain answers "which definitions read variable v", grounded on
// original_source/rbjit/include/rbjit/defusechain.h and
// src/defusechain.cpp. The original visits each opcode kind by hand to
// decide which of its fields count as a use; here every instruction's
// Operands() (which already enumerates exactly the fields the original
// wires through addDefUseChain/visitOpcodeVa per opcode) is treated
// uniformly, and both of an instruction's defined values (Lhs and
// OutEnv) are recorded as readers, which subsumes Constant's explicit
// "both lhs and outEnv use base and inEnv" case without needing a
// per-opcode switch.
type defUseChain struct {
	uses       map[ids.VarID][]use
	conditions map[ids.VarID]bool
}

func buildDefUseChain(g *cfg.CFG) *defUseChain {
	d := &defUseChain{
		uses:       make(map[ids.VarID][]use),
		conditions: make(map[ids.VarID]bool),
	}
	for bi := 0; bi < g.BlockCount(); bi++ {
		b := ids.BlockID(bi)
		blk := g.Block(b)
		for _, op := range blk.Instrs() {
			d.addOpcode(b, op)
		}
	}
	return d
}

func (d *defUseChain) addOpcode(b ids.BlockID, op instr.Instr) {
	lhs := op.Lhs()
	outEnv := op.OutEnv()

	if jif, ok := op.(*instr.JumpIf); ok {
		d.conditions[jif.Cond()] = true
	}

	for _, o := range op.Operands() {
		if o == ids.NoVar {
			continue
		}
		if lhs != ids.NoVar {
			d.uses[o] = append(d.uses[o], use{block: b, def: lhs})
		}
		if outEnv != ids.NoVar {
			d.uses[o] = append(d.uses[o], use{block: b, def: outEnv})
		}
	}
}

func (d *defUseChain) usesOf(v ids.VarID) []use { return d.uses[v] }

func (d *defUseChain) isCondition(v ids.VarID) bool { return d.conditions[v] }
