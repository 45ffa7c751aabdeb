package cfg

import (
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
	"github.com/funvibe/rbjitgo/internal/jit/lexscope"
	"github.com/funvibe/rbjitgo/internal/jit/value"
)

// CFG is one method's (or inlined code fragment's) control-flow graph:
// a dense block arena, a dense variable arena, and the handful of
// distinguished variables/blocks every CFG carries regardless of the
// method it came from (spec §3 "CFG"). Grounded on
// original_source/rbjit/include/rbjit/controlflowgraph.h.
type CFG struct {
	blocks []*Block
	vars   []*value.Variable

	entry ids.BlockID
	exit  ids.BlockID

	output    ids.VarID
	undefined ids.VarID
	entryEnv  ids.VarID
	exitEnv   ids.VarID

	inputs           []ids.VarID
	requiredArgCount int
	hasOptionalArg   bool
	hasRestArg       bool

	defInfo *value.DefInfoMap
	domTree *DomTree
}

// New returns an empty CFG with no blocks or variables. Callers build
// the entry/exit skeleton themselves (the Builder does this via
// NewBlock + SetEntry/SetExit).
func New() *CFG {
	return &CFG{
		entry:     ids.NoBlock,
		exit:      ids.NoBlock,
		output:    ids.NoVar,
		undefined: ids.NoVar,
		entryEnv:  ids.NoVar,
		exitEnv:   ids.NoVar,
		defInfo:   value.NewDefInfoMap(),
	}
}

func (c *CFG) Entry() ids.BlockID     { return c.entry }
func (c *CFG) SetEntry(b ids.BlockID) { c.entry = b }
func (c *CFG) Exit() ids.BlockID      { return c.exit }
func (c *CFG) SetExit(b ids.BlockID)  { c.exit = b }

func (c *CFG) Output() ids.VarID         { return c.output }
func (c *CFG) SetOutput(v ids.VarID)     { c.output = v }
func (c *CFG) Undefined() ids.VarID      { return c.undefined }
func (c *CFG) SetUndefined(v ids.VarID)  { c.undefined = v }
func (c *CFG) EntryEnv() ids.VarID       { return c.entryEnv }
func (c *CFG) SetEntryEnv(v ids.VarID)   { c.entryEnv = v }
func (c *CFG) ExitEnv() ids.VarID        { return c.exitEnv }
func (c *CFG) SetExitEnv(v ids.VarID)    { c.exitEnv = v }

func (c *CFG) Inputs() []ids.VarID      { return c.inputs }
func (c *CFG) SetInputs(in []ids.VarID) { c.inputs = in }

func (c *CFG) RequiredArgCount() int      { return c.requiredArgCount }
func (c *CFG) HasOptionalArg() bool       { return c.hasOptionalArg }
func (c *CFG) HasRestArg() bool           { return c.hasRestArg }
func (c *CFG) SetArity(required int, hasOptional, hasRest bool) {
	c.requiredArgCount = required
	c.hasOptionalArg = hasOptional
	c.hasRestArg = hasRest
}

func (c *CFG) DefInfo() *value.DefInfoMap { return c.defInfo }

// ClearDefInfo discards the pre-SSA def-site side table once the SSA
// Translator no longer needs it (spec §4.3).
func (c *CFG) ClearDefInfo() {
	c.defInfo = nil
	for _, v := range c.vars {
		v.ClearDefInfo()
	}
}

// DomTree returns the cached dominator tree, or nil if it has never
// been computed or was invalidated by a later mutation.
func (c *CFG) DomTree() *DomTree { return c.domTree }

// SetDomTree attaches a freshly computed dominator tree (called by the
// dom package's Compute, spec §4.2).
func (c *CFG) SetDomTree(t *DomTree) { c.domTree = t }

// InvalidateDomTree discards the cached dominator tree. Every mutation
// primitive below calls this; callers doing raw edits outside those
// primitives must call it themselves.
func (c *CFG) InvalidateDomTree() { c.domTree = nil }

////////////////////////////////////////////////////////////////////////////
// Block arena

// NewBlock appends a fresh, empty block and returns its index. Block
// indices are dense and equal to position in the arena (spec §3
// invariant), so blocks are never removed once the CFG has been built —
// only emptied or left dead and ignored.
func (c *CFG) NewBlock() ids.BlockID {
	idx := ids.BlockID(len(c.blocks))
	c.blocks = append(c.blocks, newBlock(idx))
	c.InvalidateDomTree()
	return idx
}

func (c *CFG) Block(b ids.BlockID) *Block { return c.blocks[b] }

func (c *CFG) Blocks() []*Block { return c.blocks }

func (c *CFG) BlockCount() int { return len(c.blocks) }

// Connect records an edge from pred to succ by adding a backedge entry
// on succ; it does not itself emit the Jump/JumpIf terminator that
// carries the forward half of the edge — callers (the Builder, the
// Inliner's demux rewiring) are responsible for that. Phi operands on
// succ must be appended in the same call that adds the matching
// backedge so the two stay paired (spec §3 invariant).
func (c *CFG) Connect(pred, succ ids.BlockID) {
	c.blocks[succ].addBackedge(pred)
	c.InvalidateDomTree()
}

// Disconnect removes the backedge from pred to succ, used when a
// terminator is rewritten to no longer target succ (e.g. dead-edge
// pruning after type analysis proves a branch unreachable).
func (c *CFG) Disconnect(pred, succ ids.BlockID) {
	c.blocks[succ].removeBackedge(pred)
	c.InvalidateDomTree()
}

// SplitBlock moves the instructions of b from index at onward into a
// new block, leaves a Jump from b to the new block in their place, and
// rewires every successor's backedge from b to the new block (spec §9
// "graph mutation primitives"; used by the Inliner to open a landing
// site at a Call instruction).
func (c *CFG) SplitBlock(b ids.BlockID, at int) ids.BlockID {
	blk := c.blocks[b]
	tail := append([]instr.Instr(nil), blk.instrs[at:]...)
	blk.instrs = blk.instrs[:at]

	newID := c.NewBlock()
	newBlk := c.blocks[newID]
	newBlk.instrs = tail

	blk.Append(instr.NewJump(host.SourceLocation{}, newID))
	newBlk.addBackedge(b)

	if term := newBlk.Terminator(); term != nil {
		for _, succ := range term.Successors() {
			c.blocks[succ].removeBackedge(b)
			c.blocks[succ].addBackedge(newID)
		}
	}
	c.InvalidateDomTree()
	return newID
}

// InsertEmptyBlockAfter splices a new, empty-but-for-a-Jump block onto
// the edge pred->succ, rewiring pred's terminator to target it instead
// of succ. Used to give And/Or short-circuit joins a private
// predecessor slot without disturbing succ's other incoming edges
// (spec §4.1 "cushion block").
func (c *CFG) InsertEmptyBlockAfter(pred, succ ids.BlockID) ids.BlockID {
	newID := c.NewBlock()
	newBlk := c.blocks[newID]
	newBlk.Append(instr.NewJump(host.SourceLocation{}, succ))
	newBlk.addBackedge(pred)

	if term := c.blocks[pred].Terminator(); term != nil {
		succs := term.Successors()
		for i, s := range succs {
			if s == succ {
				succs[i] = newID
			}
		}
		term.SetSuccessors(succs)
	}
	c.blocks[succ].removeBackedge(pred)
	c.blocks[succ].addBackedge(newID)
	c.InvalidateDomTree()
	return newID
}

////////////////////////////////////////////////////////////////////////////
// Variable arena

// CreateVariable appends a fresh pre-SSA variable and returns it along
// with its index.
func (c *CFG) CreateVariable(name host.ID, nameRef *lexscope.NamedVariable) (*value.Variable, ids.VarID) {
	idx := ids.VarID(len(c.vars))
	v := value.New(idx, name, nameRef)
	c.vars = append(c.vars, v)
	return v, idx
}

// CreateVariableSSA appends a variable produced by the SSA Translator's
// renaming pass, tracking prev as its pre-rename ancestor.
func (c *CFG) CreateVariableSSA(defBlock ids.BlockID, defOp ids.InstrRef, prev *value.Variable) (*value.Variable, ids.VarID) {
	idx := ids.VarID(len(c.vars))
	v := value.Copy(idx, defBlock, defOp, prev)
	c.vars = append(c.vars, v)
	return v, idx
}

// CopyVariable appends a variable cloned from src (its name and nameRef
// carried over, its def site left unset), used by the Duplicator when
// src's original def site lies outside the duplicated region.
func (c *CFG) CopyVariable(src *value.Variable) (*value.Variable, ids.VarID) {
	idx := ids.VarID(len(c.vars))
	v := value.New(idx, src.Name(), src.NameRef())
	c.vars = append(c.vars, v)
	return v, idx
}

func (c *CFG) Var(v ids.VarID) *value.Variable { return c.vars[v] }

func (c *CFG) Vars() []*value.Variable { return c.vars }

func (c *CFG) VarCount() int { return len(c.vars) }

// RemoveVariables deletes the given variables from the arena, compacts
// the remaining ones to keep indices dense, and rewrites every
// lhs/operand/out-env reference (and the CFG's own fixed variable
// slots) through the resulting old->new mapping. References to a
// removed variable that weren't themselves pruned become NoVar. Used
// by the SSA Translator to drop copies that copy folding has made dead
// (spec §4.3 step 3).
func (c *CFG) RemoveVariables(remove []ids.VarID) map[ids.VarID]ids.VarID {
	removeSet := make(map[ids.VarID]bool, len(remove))
	for _, v := range remove {
		removeSet[v] = true
	}

	mapping := make(map[ids.VarID]ids.VarID, len(c.vars)-len(remove))
	newVars := make([]*value.Variable, 0, len(c.vars)-len(remove))
	for _, v := range c.vars {
		if removeSet[v.Index()] {
			continue
		}
		newIdx := ids.VarID(len(newVars))
		mapping[v.Index()] = newIdx
		v.SetIndex(newIdx)
		newVars = append(newVars, v)
	}
	c.vars = newVars

	remap := func(v ids.VarID) ids.VarID {
		if v == ids.NoVar {
			return ids.NoVar
		}
		if nv, ok := mapping[v]; ok {
			return nv
		}
		return ids.NoVar
	}

	for _, b := range c.blocks {
		for _, op := range b.instrs {
			op.SetLhs(remap(op.Lhs()))
			for i, o := range op.Operands() {
				op.SetOperand(i, remap(o))
			}
			op.SetOutEnv(remap(op.OutEnv()))
		}
	}

	c.output = remap(c.output)
	c.undefined = remap(c.undefined)
	c.entryEnv = remap(c.entryEnv)
	c.exitEnv = remap(c.exitEnv)
	for i, v := range c.inputs {
		c.inputs[i] = remap(v)
	}

	return mapping
}
