package value

import "github.com/funvibe/rbjitgo/internal/jit/ids"

// DefInfo tracks a pre-SSA variable's definition sites: which blocks
// define it, how many times total, and whether it (and every use of
// it) is confined to a single block. Grounded on
// original_source/rbjit/include/rbjit/definfo.h, where the C++ linked
// list of DefSites is realized here as a deduplicated slice — an
// implementation detail the header itself doesn't mandate.
type DefInfo struct {
	sites     []ids.BlockID
	defCount  int
	soleBlock ids.BlockID
	local     bool
}

// NewDefInfo returns a fresh, as-yet-undefined DefInfo.
func NewDefInfo() *DefInfo {
	return &DefInfo{soleBlock: ids.NoBlock, local: true}
}

// AddDefSite records a definition of the owning variable in block.
func (d *DefInfo) AddDefSite(block ids.BlockID) {
	d.defCount++
	found := false
	for _, b := range d.sites {
		if b == block {
			found = true
			break
		}
	}
	if !found {
		d.sites = append(d.sites, block)
	}
	if d.defCount == 1 {
		d.soleBlock = block
	} else if block != d.soleBlock {
		d.local = false
	}
}

// NoteUse records a use of the owning variable in block, for locality
// purposes: a variable used outside its sole defining block cannot be
// local even if it is defined exactly once.
func (d *DefInfo) NoteUse(block ids.BlockID) {
	if block != d.soleBlock {
		d.local = false
	}
}

func (d *DefInfo) DefSites() []ids.BlockID { return d.sites }
func (d *DefInfo) DefCount() int           { return d.defCount }
func (d *DefInfo) Local() bool             { return d.local }

// IncrementDefCount and DecrementDefCount adjust the tracked definition
// count directly, used by the SSA Translator: inserting a phi adds a
// definition (IncrementDefCount); renaming a multiply-defined variable
// or folding a redundant copy retires one occurrence of the original
// pre-SSA definition (DecrementDefCount).
func (d *DefInfo) IncrementDefCount() { d.defCount++ }
func (d *DefInfo) DecrementDefCount() { d.defCount-- }

// DefInfoMap is the pre-SSA side table the CFG Builder populates and
// the SSA Translator consumes and then discards (spec §4.3: "its
// non-SSA DefInfoMap").
type DefInfoMap struct {
	byVar map[ids.VarID]*DefInfo
}

func NewDefInfoMap() *DefInfoMap {
	return &DefInfoMap{byVar: make(map[ids.VarID]*DefInfo)}
}

// UpdateDefSite records a definition of v in block, creating v's
// DefInfo on first use.
func (m *DefInfoMap) UpdateDefSite(v ids.VarID, block ids.BlockID) *DefInfo {
	info, ok := m.byVar[v]
	if !ok {
		info = NewDefInfo()
		m.byVar[v] = info
	}
	info.AddDefSite(block)
	return info
}

// NoteUse records a use of v in block.
func (m *DefInfoMap) NoteUse(v ids.VarID, block ids.BlockID) {
	if info, ok := m.byVar[v]; ok {
		info.NoteUse(block)
	}
}

func (m *DefInfoMap) Find(v ids.VarID) (*DefInfo, bool) {
	info, ok := m.byVar[v]
	return info, ok
}
