/*
 * match.go, part of goff.
 *
 * Copyright 2023 Ignacio Molina <imolina{at}protonDOTme>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package smirks

import (
	"fmt"

	mol "github.com/imolina/goff"
)

// atomView caches, per molecule atom, everything the predicates look at.
type atomView struct {
	z        int
	aromatic bool
	degree   int
	hcount   int
	charge   int
	rings    int
	sizes    []int
}

type bondView struct {
	order    float64
	aromatic bool
	inRing   bool
}

type atomExpr interface {
	ok(a *atomView) bool
}

type bondExpr interface {
	ok(b *bondView) bool
}

type anyAtom struct{}

func (anyAtom) ok(a *atomView) bool { return true }

// elemExpr matches an atomic number; arom restricts to the aromatic (>0)
// or aliphatic (<0) form, 0 accepts both as #n does.
type elemExpr struct {
	z    int
	arom int8
}

func (p elemExpr) ok(a *atomView) bool {
	if a.z != p.z {
		return false
	}
	switch {
	case p.arom > 0:
		return a.aromatic
	case p.arom < 0:
		return !a.aromatic
	}
	return true
}

type aromExpr struct{ want bool }

func (p aromExpr) ok(a *atomView) bool { return a.aromatic == p.want }

type degreeExpr struct{ n int }

func (p degreeExpr) ok(a *atomView) bool { return a.degree == p.n }

type hcountExpr struct{ n int }

func (p hcountExpr) ok(a *atomView) bool { return a.hcount == p.n }

type chargeExpr struct{ q int }

func (p chargeExpr) ok(a *atomView) bool { return a.charge == p.q }

// ringSizeExpr with n == 0 is the bare r, membership in any ring.
type ringSizeExpr struct{ n int }

func (p ringSizeExpr) ok(a *atomView) bool {
	if p.n == 0 {
		return a.rings > 0
	}
	for _, s := range a.sizes {
		if s == p.n {
			return true
		}
	}
	return false
}

// ringCountExpr with n < 0 is the bare R, membership in at least one ring.
type ringCountExpr struct{ n int }

func (p ringCountExpr) ok(a *atomView) bool {
	if p.n < 0 {
		return a.rings > 0
	}
	return a.rings == p.n
}

type notExpr struct{ e atomExpr }

func (p notExpr) ok(a *atomView) bool { return !p.e.ok(a) }

type andExpr []atomExpr

func (p andExpr) ok(a *atomView) bool {
	for _, e := range p {
		if !e.ok(a) {
			return false
		}
	}
	return true
}

type orExpr []atomExpr

func (p orExpr) ok(a *atomView) bool {
	for _, e := range p {
		if e.ok(a) {
			return true
		}
	}
	return false
}

type bondAny struct{}

func (bondAny) ok(b *bondView) bool { return true }

type bondOrder struct{ order int }

func (p bondOrder) ok(b *bondView) bool {
	if b.aromatic {
		return false
	}
	return b.order == float64(p.order)
}

type bondArom struct{}

func (bondArom) ok(b *bondView) bool { return b.aromatic }

// bondDefault stands for a bond with no expression, single or aromatic.
type bondDefault struct{}

func (bondDefault) ok(b *bondView) bool {
	return b.aromatic || b.order == 1
}

type bondRing struct{}

func (bondRing) ok(b *bondView) bool { return b.inRing }

type bondNot struct{ e bondExpr }

func (p bondNot) ok(b *bondView) bool { return !p.e.ok(b) }

type bondAnd []bondExpr

func (p bondAnd) ok(b *bondView) bool {
	for _, e := range p {
		if !e.ok(b) {
			return false
		}
	}
	return true
}

type bondOr []bondExpr

func (p bondOr) ok(b *bondView) bool {
	for _, e := range p {
		if e.ok(b) {
			return true
		}
	}
	return false
}

type molEnv struct {
	atoms     []atomView
	ringBonds map[[2]int]bool
}

func pairKey(i, j int) [2]int {
	if i > j {
		i, j = j, i
	}
	return [2]int{i, j}
}

func newMolEnv(M *mol.Molecule) *molEnv {
	ri := M.Rings()
	e := &molEnv{atoms: make([]atomView, M.Len()), ringBonds: make(map[[2]int]bool)}
	ringsOf := make([][]int, M.Len())
	for _, r := range ri.Rings() {
		for k, a := range r {
			ringsOf[a] = append(ringsOf[a], len(r))
			e.ringBonds[pairKey(a, r[(k+1)%len(r)])] = true
		}
	}
	for i := 0; i < M.Len(); i++ {
		at := M.Atoms[i]
		e.atoms[i] = atomView{
			z:        at.Z,
			aromatic: at.Aromatic,
			degree:   M.Degree(i),
			hcount:   M.HCount(i),
			charge:   at.FormalCharge,
			rings:    ri.RingCount(i),
			sizes:    ringsOf[i],
		}
	}
	return e
}

func (e *molEnv) bondView(b *mol.Bond) bondView {
	return bondView{
		order:    b.Order,
		aromatic: b.Aromatic,
		inRing:   e.ringBonds[pairKey(b.At1.Index, b.At2.Index)],
	}
}

// matchStep places one pattern atom. The root step (from < 0) scans every
// molecule atom; later steps scan the neighbors of an atom already placed.
// extra holds the pattern bonds, ring closures mostly, that become fully
// placed with this step and still have to hold in the molecule.
type matchStep struct {
	atom  int
	from  int
	bond  bondExpr
	extra []patBond
}

func (p *Pattern) plan() []matchStep {
	n := len(p.atoms)
	type edge struct{ to, idx int }
	adj := make([][]edge, n)
	for i, b := range p.bonds {
		adj[b.a] = append(adj[b.a], edge{b.b, i})
		adj[b.b] = append(adj[b.b], edge{b.a, i})
	}
	placed := make([]bool, n)
	usedBond := make([]bool, len(p.bonds))
	steps := make([]matchStep, 0, n)
	var visit func(at, from int, bond bondExpr)
	visit = func(at, from int, bond bondExpr) {
		placed[at] = true
		st := matchStep{atom: at, from: from, bond: bond}
		for _, e := range adj[at] {
			if placed[e.to] && !usedBond[e.idx] {
				usedBond[e.idx] = true
				st.extra = append(st.extra, p.bonds[e.idx])
			}
		}
		steps = append(steps, st)
		for _, e := range adj[at] {
			if !placed[e.to] {
				usedBond[e.idx] = true
				visit(e.to, at, p.bonds[e.idx].expr)
			}
		}
	}
	visit(0, -1, nil)
	return steps
}

// Matches finds every embedding of the pattern in M and returns, for each,
// the molecule atom indices of the mapped pattern atoms, ordered by map
// number. Patterns without atom maps report all their atoms in pattern
// order instead. Embeddings that assign the same atoms to the mapped
// positions are reported once, but symmetry-related orderings count as
// distinct, so a symmetric two-atom pattern reports both (i, j) and (j, i).
//
// Aromaticity flags on atoms and bonds are taken as they come; callers
// whose input format does not provide them should run the molecule
// through PerceiveAromaticity first.
func (p *Pattern) Matches(M *mol.Molecule) [][]int {
	if len(p.atoms) > M.Len() {
		return nil
	}
	env := newMolEnv(M)
	assign := make([]int, len(p.atoms))
	used := make([]bool, M.Len())
	var out [][]int
	seen := make(map[string]bool)

	var place func(k int)
	tryCand := func(k int, st matchStep, cand int, bv *bondView) {
		if used[cand] || !p.atoms[st.atom].expr.ok(&env.atoms[cand]) {
			return
		}
		if bv != nil && !st.bond.ok(bv) {
			return
		}
		assign[st.atom] = cand
		used[cand] = true
		good := true
		for _, ex := range st.extra {
			b := M.BondBetween(assign[ex.a], assign[ex.b])
			if b == nil {
				good = false
				break
			}
			v := env.bondView(b)
			if !ex.expr.ok(&v) {
				good = false
				break
			}
		}
		if good {
			place(k + 1)
		}
		used[cand] = false
	}
	place = func(k int) {
		if k == len(p.steps) {
			res := p.extract(assign)
			key := fmt.Sprint(res)
			if !seen[key] {
				seen[key] = true
				out = append(out, res)
			}
			return
		}
		st := p.steps[k]
		if st.from < 0 {
			for c := 0; c < M.Len(); c++ {
				tryCand(k, st, c, nil)
			}
			return
		}
		base := assign[st.from]
		for _, nb := range M.Neighbors(base) {
			b := M.BondBetween(base, nb)
			if b == nil {
				continue
			}
			v := env.bondView(b)
			tryCand(k, st, nb, &v)
		}
	}
	place(0)
	return out
}

func (p *Pattern) extract(assign []int) []int {
	if p.nMapped == 0 {
		res := make([]int, len(assign))
		copy(res, assign)
		return res
	}
	res := make([]int, p.nMapped)
	for i, a := range p.atoms {
		if a.mapNum > 0 {
			res[a.mapNum-1] = assign[i]
		}
	}
	return res
}
