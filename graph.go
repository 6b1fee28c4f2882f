/*
 * graph.go, part of goff.
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

package mol

import (
	"fmt"
	"sort"
)

//Enumeration of the interaction slots a force field gets applied to.
//Everything here works on molecule-local, 0-based indexes; the Topology
//offsets take care of the global numbering.

// Angles returns every unique angle (i,j,k), j central, as triplets of
// atom indexes. Each angle appears once, with i < k.
func (M *Molecule) Angles() [][3]int {
	ret := make([][3]int, 0, M.Len())
	for j := 0; j < M.Len(); j++ {
		nb := M.Neighbors(j)
		for a := 0; a < len(nb); a++ {
			for b := a + 1; b < len(nb); b++ {
				i, k := nb[a], nb[b]
				if i > k {
					i, k = k, i
				}
				ret = append(ret, [3]int{i, j, k})
			}
		}
	}
	return ret
}

// ProperDihedrals returns every unique proper torsion (i,j,k,l) around
// each central bond j-k. Each torsion appears once; the direction is
// that of the underlying bond.
func (M *Molecule) ProperDihedrals() [][4]int {
	ret := make([][4]int, 0, M.Len())
	for _, b := range M.Bonds {
		j, k := b.At1.Index, b.At2.Index
		for _, i := range M.Neighbors(j) {
			if i == k {
				continue
			}
			for _, l := range M.Neighbors(k) {
				if l == j || l == i {
					continue
				}
				ret = append(ret, [4]int{i, j, k, l})
			}
		}
	}
	return ret
}

// ImproperCandidates returns, for every atom with 3 or more neighbors,
// all combinations of 3 neighbors as quadruplets with the central atom
// in the second position (the convention torsion handlers use).
func (M *Molecule) ImproperCandidates() [][4]int {
	ret := make([][4]int, 0)
	for c := 0; c < M.Len(); c++ {
		nb := M.Neighbors(c)
		if len(nb) < 3 {
			continue
		}
		for a := 0; a < len(nb); a++ {
			for b := a + 1; b < len(nb); b++ {
				for d := b + 1; d < len(nb); d++ {
					ret = append(ret, [4]int{nb[a], c, nb[b], nb[d]})
				}
			}
		}
	}
	return ret
}

// BondSeparations returns the minimal number of bonds separating each
// pair of atoms, up to maxSep, as a map from ordered pairs (i<j).
// Pairs further apart than maxSep are absent.
func (M *Molecule) BondSeparations(maxSep int) map[[2]int]int {
	ret := make(map[[2]int]int)
	for start := 0; start < M.Len(); start++ {
		//plain BFS from each atom
		dist := make([]int, M.Len())
		for i := range dist {
			dist[i] = -1
		}
		dist[start] = 0
		queue := []int{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if dist[cur] >= maxSep {
				continue
			}
			for _, n := range M.Neighbors(cur) {
				if dist[n] == -1 {
					dist[n] = dist[cur] + 1
					queue = append(queue, n)
				}
			}
		}
		for j := start + 1; j < M.Len(); j++ {
			if dist[j] > 0 {
				ret[[2]int{start, j}] = dist[j]
			}
		}
	}
	return ret
}

// Pairs returns the ordered (i<j) atom pairs separated by exactly sep
// bonds. sep 1, 2 and 3 give the 1-2, 1-3 and 1-4 lists used for
// nonbonded exclusions and scaling.
func (M *Molecule) Pairs(sep int) [][2]int {
	seps := M.BondSeparations(sep)
	ret := make([][2]int, 0, len(seps))
	for pair, d := range seps {
		if d == sep {
			ret = append(ret, pair)
		}
	}
	sort.Slice(ret, func(a, b int) bool {
		if ret[a][0] != ret[b][0] {
			return ret[a][0] < ret[b][0]
		}
		return ret[a][1] < ret[b][1]
	})
	return ret
}

// RingInfo holds the result of ring perception for one molecule.
type RingInfo struct {
	rings     [][]int //each ring as a sorted list of atom indexes
	atomRings [][]int //per atom, the sizes of the rings it belongs to
	bondRing  []bool  //per bond index, whether the bond is in a ring
}

// Rings returns the perceived rings, each as a sorted slice of atom indexes.
func (R *RingInfo) Rings() [][]int {
	return R.rings
}

// InRing returns whether the atom with index i belongs to any ring.
func (R *RingInfo) InRing(i int) bool {
	return len(R.atomRings[i]) > 0
}

// RingCount returns the number of perceived rings the atom belongs to.
func (R *RingInfo) RingCount(i int) int {
	return len(R.atomRings[i])
}

// InRingOfSize returns whether the atom with index i belongs to a ring
// with exactly size atoms.
func (R *RingInfo) InRingOfSize(i, size int) bool {
	for _, s := range R.atomRings[i] {
		if s == size {
			return true
		}
	}
	return false
}

// SmallestRingSize returns the size of the smallest ring containing the
// atom, or 0 if the atom is not in a ring.
func (R *RingInfo) SmallestRingSize(i int) int {
	ret := 0
	for _, s := range R.atomRings[i] {
		if ret == 0 || s < ret {
			ret = s
		}
	}
	return ret
}

// BondInRing returns whether the bond with the given index is part of a ring.
func (R *RingInfo) BondInRing(bondIndex int) bool {
	return R.bondRing[bondIndex]
}

// Rings perceives the rings of the molecule: for each bond, the smallest
// ring through it is found by breadth-first search with the bond removed.
// The set of distinct rings found this way is close enough to the usual
// "smallest set of smallest rings" for pattern matching.
func (M *Molecule) Rings() *RingInfo {
	ri := &RingInfo{
		atomRings: make([][]int, M.Len()),
		bondRing:  make([]bool, len(M.Bonds)),
	}
	seen := make(map[string]bool)
	for _, b := range M.Bonds {
		path := M.shortestPathAvoiding(b.At1.Index, b.At2.Index, b.Index)
		if path == nil {
			continue
		}
		ri.bondRing[b.Index] = true
		ring := make([]int, len(path))
		copy(ring, path)
		sort.Ints(ring)
		key := fmt.Sprintf("%v", ring)
		if seen[key] {
			continue
		}
		seen[key] = true
		ri.rings = append(ri.rings, ring)
		for _, a := range ring {
			ri.atomRings[a] = append(ri.atomRings[a], len(ring))
		}
	}
	return ri
}

// shortestPathAvoiding returns the atoms of the shortest path from
// start to goal that does not traverse the bond with index skip,
// or nil if there is none.
func (M *Molecule) shortestPathAvoiding(start, goal, skip int) []int {
	prev := make([]int, M.Len())
	for i := range prev {
		prev[i] = -1
	}
	prev[start] = start
	queue := []int{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == goal {
			path := []int{}
			for at := goal; at != start; at = prev[at] {
				path = append(path, at)
			}
			path = append(path, start)
			return path
		}
		for _, bo := range M.Atoms[cur].Bonds {
			if bo.Index == skip {
				continue
			}
			n := bo.Cross(M.Atoms[cur]).Index
			if prev[n] == -1 {
				prev[n] = cur
				queue = append(queue, n)
			}
		}
	}
	return nil
}

// PerceiveAromaticity marks atoms and bonds of aromatic rings, using a
// simple Hueckel count on the perceived 5- and 6-membered rings: each
// ring atom taking part in a double bond within the ring contributes one
// pi electron, and pyrrole-like N/O/S contribute a lone pair. Rings
// totalling 6 pi electrons are aromatic. Returns the ring information
// so callers don't have to perceive twice.
func (M *Molecule) PerceiveAromaticity() *RingInfo {
	ri := M.Rings()
	for _, ring := range ri.rings {
		if len(ring) != 5 && len(ring) != 6 {
			continue
		}
		inRing := make(map[int]bool, len(ring))
		for _, a := range ring {
			inRing[a] = true
		}
		pi := 0
		ok := true
		for _, a := range ring {
			at := M.Atoms[a]
			switch at.Symbol {
			case "C", "N", "O", "S", "P":
			default:
				ok = false
			}
			if !ok || M.Degree(a) > 3 {
				ok = false
				break
			}
			switch {
			case M.doubleBondWithin(a, inRing):
				pi++
			case at.Aromatic: //pre-flagged by the input format
				pi++
			case at.Symbol == "N" || at.Symbol == "O" || at.Symbol == "S":
				pi += 2 //pyrrole-like lone pair
			case at.Symbol == "C" && at.FormalCharge == -1:
				pi += 2
			default:
				ok = false //sp3 carbon breaks the ring
			}
			if !ok {
				break
			}
		}
		if !ok || pi != 6 {
			continue
		}
		for _, a := range ring {
			M.Atoms[a].Aromatic = true
		}
		for _, b := range M.Bonds {
			if inRing[b.At1.Index] && inRing[b.At2.Index] && ri.bondRing[b.Index] {
				b.Aromatic = true
			}
		}
	}
	return ri
}

// doubleBondWithin returns whether atom a has a bond of order >= 1.5 to
// another atom of the same ring.
func (M *Molecule) doubleBondWithin(a int, inRing map[int]bool) bool {
	at := M.Atoms[a]
	for _, b := range at.Bonds {
		other := b.Cross(at)
		if inRing[other.Index] && b.Order >= 1.5 {
			return true
		}
	}
	return false
}
