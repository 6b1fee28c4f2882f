/*
 * topology.go, part of goff.
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

	"github.com/imolina/goff/xyz"
)

// Topology is an ordered set of molecule instances, plus, optionally, a
// simulation box. Atoms are addressed globally: the global index of the
// k-th atom of the i-th molecule is Offset(i)+k. A Topology carries no
// force-field parameters (see the interchange package for that).
type Topology struct {
	Mols []*Molecule
	Box  *xyz.Box
}

// NewTopology returns a topology with the given molecules. The molecules
// are not copied; the topology takes ownership of them.
func NewTopology(mols ...*Molecule) *Topology {
	return &Topology{Mols: mols}
}

// NMols returns the number of molecule instances in the topology.
func (T *Topology) NMols() int {
	return len(T.Mols)
}

// Len returns the total number of atoms. Part of the Atomer interface.
func (T *Topology) Len() int {
	n := 0
	for _, m := range T.Mols {
		n += m.Len()
	}
	return n
}

// Offset returns the global index of the first atom of the i-th molecule.
func (T *Topology) Offset(i int) int {
	if i < 0 || i >= len(T.Mols) {
		panic(string(ErrAtomOutOfRange))
	}
	off := 0
	for j := 0; j < i; j++ {
		off += T.Mols[j].Len()
	}
	return off
}

// Atom returns the atom with the given global index.
// Panics if out of range. Part of the Atomer interface.
func (T *Topology) Atom(i int) *Atom {
	mi, local := T.MolOf(i)
	return T.Mols[mi].Atom(local)
}

// MolOf returns the molecule index and the molecule-local atom index
// for the given global atom index. Panics if out of range.
func (T *Topology) MolOf(global int) (mol, local int) {
	if global < 0 {
		panic(string(ErrAtomOutOfRange))
	}
	rest := global
	for i, m := range T.Mols {
		if rest < m.Len() {
			return i, rest
		}
		rest -= m.Len()
	}
	panic(string(ErrAtomOutOfRange))
}

// AppendMolecule adds a molecule instance at the end of the topology.
// The molecule is not copied.
func (T *Topology) AppendMolecule(m *Molecule) {
	T.Mols = append(T.Mols, m)
}

// AppendTopology adds all molecules of other at the end of the topology.
// The molecules are not copied. Boxes are left untouched.
func (T *Topology) AppendTopology(other *Topology) {
	T.Mols = append(T.Mols, other.Mols...)
}

// Copy returns a deep copy of the topology, including the box.
func (T *Topology) Copy() *Topology {
	ret := new(Topology)
	ret.Mols = make([]*Molecule, 0, len(T.Mols))
	for _, m := range T.Mols {
		ret.Mols = append(ret.Mols, m.Copy())
	}
	if T.Box != nil {
		ret.Box = T.Box.Copy()
	}
	return ret
}

// Masses returns a slice with the mass of every atom, in global order.
// Part of the Masser interface.
func (T *Topology) Masses() ([]float64, error) {
	ret := make([]float64, 0, T.Len())
	for i, m := range T.Mols {
		ms, err := m.Masses()
		if err != nil {
			return nil, errDecorate(err, fmt.Sprintf("Masses: molecule %d", i))
		}
		ret = append(ret, ms...)
	}
	return ret, nil
}

// Charges returns a slice with the partial charge of every atom, in
// global order.
func (T *Topology) Charges() []float64 {
	ret := make([]float64, 0, T.Len())
	for _, m := range T.Mols {
		ret = append(ret, m.PartialCharges()...)
	}
	return ret
}

// Positions assembles a global coordinate matrix from the conformers of
// the molecules. It errs if any molecule lacks coordinates or has a
// conformer of the wrong size.
func (T *Topology) Positions() (*xyz.Matrix, error) {
	total := T.Len()
	ret := xyz.Zeros(total)
	row := 0
	for i, m := range T.Mols {
		if m.Coords == nil {
			return nil, NewError("Positions", fmt.Sprintf("molecule %d (%s) has no coordinates", i, m.Name))
		}
		if m.Coords.NVecs() != m.Len() {
			return nil, NewError("Positions", fmt.Sprintf("molecule %d (%s): %d coordinates for %d atoms", i, m.Name, m.Coords.NVecs(), m.Len()))
		}
		for k := 0; k < m.Len(); k++ {
			ret.SetVec(row, m.Coords.VecSlice(k))
			row++
		}
	}
	return ret, nil
}

// MolBlock is a run of consecutive identical molecules in a topology,
// as needed for the [molecules] section of a GROMACS topology.
type MolBlock struct {
	Mol   *Molecule
	First int //index in Mols of the first instance
	Count int
}

// GroupIdentical splits the topology into runs of consecutive molecules
// considered identical: same name, formula, and bond list. Packed and
// combined systems produce such runs naturally; interleaved systems
// produce one block per switch. Parametrization runs once per block, so
// the check must not group molecules whose graphs differ.
func (T *Topology) GroupIdentical() []MolBlock {
	ret := make([]MolBlock, 0, 2)
	for i, m := range T.Mols {
		if i > 0 {
			last := &ret[len(ret)-1]
			p := last.Mol
			if p.Name == m.Name && p.Len() == m.Len() && p.Formula() == m.Formula() && sameBonds(p, m) {
				last.Count++
				continue
			}
		}
		ret = append(ret, MolBlock{Mol: m, First: i, Count: 1})
	}
	return ret
}

func sameBonds(a, b *Molecule) bool {
	if len(a.Bonds) != len(b.Bonds) {
		return false
	}
	for i, ba := range a.Bonds {
		bb := b.Bonds[i]
		if ba.At1.Index != bb.At1.Index || ba.At2.Index != bb.At2.Index || ba.Order != bb.Order {
			return false
		}
	}
	return true
}

// NetCharge returns the sum of the formal charges of every atom.
func (T *Topology) NetCharge() int {
	q := 0
	for _, m := range T.Mols {
		q += m.NetCharge()
	}
	return q
}
