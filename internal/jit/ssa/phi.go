package ssa

import (
	"github.com/funvibe/rbjitgo/internal/jit/host"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
	"github.com/funvibe/rbjitgo/internal/jit/instr"
)

// insertPhiFunctions places a phi for every variable that either has
// more than one definition site or has a single definition site that
// doesn't dominate all its uses, at every block in the iterated
// dominance frontier of its def sites, grounded on
// original_source/rbjit/src/ssatranslator.cpp insertPhiFunctions /
// insertPhiFunctionsForSingleDefSite.
func (t *Translator) insertPhiFunctions() {
	n := t.g.BlockCount()
	t.phiInserted = make([]ids.VarID, n)
	t.processed = make([]ids.VarID, n)
	for i := range t.phiInserted {
		t.phiInserted[i] = ids.NoVar
		t.processed[i] = ids.NoVar
	}

	defInfo := t.g.DefInfo()
	for _, v := range t.g.Vars() {
		di, ok := defInfo.Find(v.Index())
		if !ok {
			continue
		}
		sites := di.DefSites()
		if len(sites) == 0 {
			continue
		}
		if di.Local() && len(sites) == 1 {
			// Every definition and use lies in one block; SSA form
			// needs no phi for it at all.
			continue
		}

		for _, s := range sites {
			t.processed[s] = v.Index()
		}
		for _, s := range sites {
			t.insertPhiForSite(s, v.Index())
		}
	}
}

func (t *Translator) insertPhiForSite(blockIndex ids.BlockID, v ids.VarID) {
	df := t.df[blockIndex]
	for i, inFrontier := range df {
		if !inFrontier {
			continue
		}
		b := ids.BlockID(i)

		if t.phiInserted[i] != v {
			t.insertSinglePhi(b, v)
			t.phiInserted[i] = v
		}

		// The phi just inserted is itself a new definition site, so the
		// frontier propagation continues from here too.
		if t.processed[i] != v {
			t.processed[i] = v
			t.insertPhiForSite(b, v)
		}
	}
}

func (t *Translator) insertSinglePhi(b ids.BlockID, v ids.VarID) {
	blk := t.g.Block(b)
	size := blk.PredecessorCount()
	phi := instr.NewPhi(host.SourceLocation{}, v, b, size)
	// Every operand slot starts out holding v itself, a placeholder the
	// renaming pass reads to learn which pre-SSA variable this phi
	// represents (instr.NewPhi alone has no room to record that
	// separately from the lhs, which gets overwritten by renaming).
	for i := 0; i < size; i++ {
		phi.SetOperand(i, v)
	}
	blk.InsertBefore(0, phi)

	if di, ok := t.g.DefInfo().Find(v); ok {
		di.IncrementDefCount()
	}
}
