// Package dom computes dominator trees over a cfg.CFG (spec §4.2
// "Dominator Finder"). The primary algorithm is Lengauer-Tarjan with
// path compression and the size/child balancing heuristic, grounded on
// original_source/rbjit/include/rbjit/ltdominatorfinder.h and
// src/ltdominatorfinder.cpp. Internally it keeps the original's
// 1-indexed arrays with node 0 reserved as "no such vertex", which is
// what lets eval/link/compress be transcribed without special-casing a
// negative sentinel at every array access; Compute converts back to
// ids.BlockID (with ids.NoBlock for "none") only at the boundary.
package dom

import (
	"github.com/funvibe/rbjitgo/internal/jit/cfg"
	"github.com/funvibe/rbjitgo/internal/jit/ids"
)

type ltFinder struct {
	g *cfg.CFG
	n int

	parent   []int
	ancestor []int
	child    []int
	vertex   []int
	label    []int
	semi     []int
	size     []int
	domv     []int
	bucket   [][]int
}

func newLTFinder(g *cfg.CFG) *ltFinder {
	n := g.BlockCount()
	f := &ltFinder{
		g:        g,
		n:        n,
		parent:   make([]int, n+1),
		ancestor: make([]int, n+1),
		child:    make([]int, n+1),
		vertex:   make([]int, n+1),
		label:    make([]int, n+1),
		semi:     make([]int, n+1),
		size:     make([]int, n+1),
		domv:     make([]int, n+1),
		bucket:   make([][]int, n+1),
	}
	return f
}

// vnum converts a block index to its 1-based internal vertex number.
func vnum(b ids.BlockID) int { return int(b) + 1 }

// vblock converts a 1-based internal vertex number back to a block
// index; 0 maps to ids.NoBlock.
func vblock(v int) ids.BlockID {
	if v == 0 {
		return ids.NoBlock
	}
	return ids.BlockID(v - 1)
}

// dfs carries out step 1: a depth-first search over the forward
// successor edges, numbering vertices 1..n in discovery order and
// recording each vertex's DFS-tree parent (ltdominatorfinder.cpp dfs).
// Predecessor lists are not rebuilt here, unlike the original: a
// Block's Backedges already hold its complete predecessor set, so step
// 2 reads those directly instead.
func (f *ltFinder) dfs() {
	entry := f.g.Entry()
	n := 0

	type frame struct {
		v  int
		si int
	}
	mark := func(v int) {
		n++
		f.semi[v] = n
		f.vertex[n] = v
		f.label[v] = v
		f.ancestor[v] = 0
		f.child[v] = 0
		f.size[v] = 1
	}

	start := vnum(entry)
	mark(start)
	stack := []frame{{start, 0}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		blk := f.g.Block(vblock(top.v))
		term := blk.Terminator()
		var succs []ids.BlockID
		if term != nil {
			succs = term.Successors()
		}
		if top.si >= len(succs) {
			stack = stack[:len(stack)-1]
			continue
		}
		w := vnum(succs[top.si])
		top.si++
		if f.semi[w] == 0 {
			f.parent[w] = top.v
			mark(w)
			stack = append(stack, frame{w, 0})
		}
	}
}

func (f *ltFinder) compress(v int) {
	if f.ancestor[f.ancestor[v]] != 0 {
		f.compress(f.ancestor[v])
		if f.semi[f.label[f.ancestor[v]]] < f.semi[f.label[v]] {
			f.label[v] = f.label[f.ancestor[v]]
		}
		f.ancestor[v] = f.ancestor[f.ancestor[v]]
	}
}

func (f *ltFinder) eval(v int) int {
	if f.ancestor[v] == 0 {
		return f.label[v]
	}
	f.compress(v)
	if f.semi[f.label[f.ancestor[v]]] >= f.semi[f.label[v]] {
		return f.label[v]
	}
	return f.label[f.ancestor[v]]
}

func (f *ltFinder) link(v, w int) {
	s := w
	for f.semi[f.label[w]] < f.semi[f.label[f.child[s]]] {
		if f.size[s]+f.size[f.child[f.child[s]]] >= 2*f.size[f.child[s]] {
			f.ancestor[f.child[s]] = s
			f.child[s] = f.child[f.child[s]]
		} else {
			f.size[f.child[s]] = f.size[s]
			f.ancestor[s] = f.child[s]
			s = f.child[s]
		}
	}
	f.label[s] = f.label[w]
	f.size[v] = f.size[v] + f.size[w]
	if f.size[v] < 2*f.size[w] {
		s, f.child[v] = f.child[v], s
	}
	for s != 0 {
		f.ancestor[s] = v
		s = f.child[s]
	}
}

// findDominators runs steps 2-4 of Lengauer-Tarjan: semidominators,
// implicit immediate dominators via the bucket, then the explicit
// dominator pass in increasing DFS-number order.
func (f *ltFinder) findDominators() {
	f.dfs()

	for i := f.n; i >= 2; i-- {
		w := f.vertex[i]
		for _, predBlock := range f.g.Block(vblock(w)).Backedges() {
			p := vnum(predBlock)
			if f.semi[p] == 0 {
				continue // predecessor unreachable from entry
			}
			u := f.eval(p)
			if f.semi[u] < f.semi[w] {
				f.semi[w] = f.semi[u]
			}
		}
		f.bucket[f.vertex[f.semi[w]]] = append(f.bucket[f.vertex[f.semi[w]]], w)
		f.link(f.parent[w], w)

		b := f.bucket[f.parent[w]]
		for _, v := range b {
			u := f.eval(v)
			if f.semi[u] < f.semi[v] {
				f.domv[v] = u
			} else {
				f.domv[v] = f.parent[w]
			}
		}
		f.bucket[f.parent[w]] = nil
	}

	for i := 2; i <= f.n; i++ {
		w := f.vertex[i]
		if f.domv[w] != f.vertex[f.semi[w]] {
			f.domv[w] = f.domv[f.domv[w]]
		}
	}
}

// idoms returns the immediate-dominator array indexed by block, with
// ids.NoBlock for the entry block and for any block unreachable from
// it. Per the original's own debug note, the exit block's immediate
// dominator is not computed by this pass when the exit isn't reachable
// by a forward edge chain from every path — callers that need it
// should use TypeAnalyzer reachability instead of relying on this for
// the exit block specifically.
func (f *ltFinder) idoms() []ids.BlockID {
	out := make([]ids.BlockID, f.n)
	for i := 0; i < f.n; i++ {
		w := vnum(ids.BlockID(i))
		if f.semi[w] == 0 || f.domv[w] == 0 {
			out[i] = ids.NoBlock
			continue
		}
		out[i] = vblock(f.domv[w])
	}
	return out
}
