// Package value implements Variable and its pre-SSA DefInfo bookkeeping
// (spec §3 "Variable", "DefInfo"), grounded on
// original_source/rbjit/include/rbjit/variable.h and definfo.h.
package value

import (
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/lexscope"
)

// Variable is an SSA value (once the SSA Translator has run) or a
// pre-SSA local slot (before it has). It never holds pointers to other
// arena-owned entities — only the index types in package ids — so a
// whole CFG's variable arena can be copied and index-offset by the
// Duplicator without chasing pointers (spec §9).
type Variable struct {
	index ids.VarID

	// Name is the interned local-variable name, or host.NoID for an
	// unnamed temporary the builder introduced.
	name host.ID

	// NameRef links back to the lexical scope entry this variable
	// realizes, nil for temporaries that never had a source name.
	nameRef *lexscope.NamedVariable

	defBlock  ids.BlockID
	defOpcode ids.InstrRef

	// Original points at the pre-rename ancestor this variable was
	// copied from during SSA renaming; NoVar if this variable was never
	// produced by renaming (spec §3: "used to check phi consistency").
	original ids.VarID

	// DefInfo is non-nil before SSA translation and nil afterward (SSA
	// form doesn't need def-site bookkeeping once every variable has
	// exactly one definition).
	defInfo *DefInfo

	// undefinedSentinel marks the one designated "value has no reaching
	// definition here" placeholder a CFG creates (spec §9 open
	// question: kept distinct from a true nil constant).
	undefinedSentinel bool

	// env marks a variable as holding a method-resolution-environment
	// token (produced by an Env opcode, or copy-propagated from one).
	// The SSA Translator uses this instead of a name comparison
	// (original_source/rbjit/src/opcode.cpp OpcodeEnv::isEnv) to decide
	// when a folded copy's target becomes the CFG's entry/exit env slot.
	env bool
}

// New creates a variable with no def site yet (defBlock NoBlock,
// defOpcode NoInstr), since the opcode that will define it may not have
// been emitted; callers fix them up with UpdateDefSite.
func New(index ids.VarID, name host.ID, nameRef *lexscope.NamedVariable) *Variable {
	return &Variable{
		index:     index,
		name:      name,
		nameRef:   nameRef,
		defBlock:  ids.NoBlock,
		defOpcode: ids.NoInstr,
		original:  ids.NoVar,
		defInfo:   NewDefInfo(),
	}
}

// Copy creates a fresh variable that records prev as its pre-rename
// ancestor (used by the SSA Translator's renaming pass, spec §4.3).
func Copy(index ids.VarID, defBlock ids.BlockID, defOpcode ids.InstrRef, prev *Variable) *Variable {
	return &Variable{
		index:     index,
		name:      prev.name,
		nameRef:   prev.nameRef,
		defBlock:  defBlock,
		defOpcode: defOpcode,
		original:  prev.index,
		env:       prev.env,
	}
}

func (v *Variable) Index() ids.VarID { return v.index }
func (v *Variable) SetIndex(i ids.VarID) { v.index = i }

func (v *Variable) Name() host.ID     { return v.name }
func (v *Variable) SetName(n host.ID) { v.name = n }

func (v *Variable) NameRef() *lexscope.NamedVariable { return v.nameRef }
func (v *Variable) SetNameRef(nv *lexscope.NamedVariable) { v.nameRef = nv }

func (v *Variable) DefBlock() ids.BlockID  { return v.defBlock }
func (v *Variable) DefOpcode() ids.InstrRef { return v.defOpcode }

// UpdateDefSite records that v is (re)defined at the given site and
// (when v still tracks pre-SSA DefInfo) notes the block for locality
// analysis.
func (v *Variable) UpdateDefSite(block ids.BlockID, op ids.InstrRef) {
	v.defBlock = block
	v.defOpcode = op
	if v.defInfo != nil {
		v.defInfo.AddDefSite(block)
	}
}

func (v *Variable) Original() ids.VarID { return v.original }

// ResetDefSite overwrites the def site directly without touching
// DefInfo, used once per variable after SSA renaming to give arguments
// (which have no real defining instruction) a nominal definition at the
// entry block (original_source/rbjit/src/ssatranslator.cpp
// renameVariables: "the input variables don't have any actual
// definitions").
func (v *Variable) ResetDefSite(block ids.BlockID, op ids.InstrRef) {
	v.defBlock = block
	v.defOpcode = op
}

func (v *Variable) DefInfo() *DefInfo        { return v.defInfo }
func (v *Variable) SetDefInfo(d *DefInfo)    { v.defInfo = d }
func (v *Variable) ClearDefInfo()            { v.defInfo = nil }

// Local reports whether every def and use of v lies in a single block
// (spec §3 DefInfo), which lets the SSA Translator skip phi placement
// for it entirely. A variable with no DefInfo (already in SSA form) is
// trivially local since it has exactly one definition.
func (v *Variable) Local() bool {
	if v.defInfo == nil {
		return true
	}
	return v.defInfo.Local()
}

func (v *Variable) DefCount() int {
	if v.defInfo == nil {
		return 1
	}
	return v.defInfo.DefCount()
}

func (v *Variable) IsUndefinedSentinel() bool    { return v.undefinedSentinel }
func (v *Variable) MarkUndefinedSentinel()       { v.undefinedSentinel = true }

func (v *Variable) IsEnv() bool { return v.env }
func (v *Variable) MarkEnv()    { v.env = true }
