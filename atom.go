/*
 * atom.go, part of goff.
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

	"github.com/imolina/goff/xyz"
)

/*Note: several functions here panic instead of returning errors. Those are
 * "fundamental" functions: if something goes wrong in them, the program is
 * most likely just wrong, and should crash. Most panics relate to calling a
 * method on a nil object or accessing out-of-bounds fields.*/

// Atom contains the information of one atom, except for the coordinates,
// which live in a separate matrix (see the xyz package).
type Atom struct {
	Name         string  `json:"name"`
	ID           int     `json:"id"` //1-based, as in most file formats
	Index        int     `json:"-"`  //0-based position in the molecule, kept by FillIndexes
	MolName      string  `json:"molname"`
	MolID        int     `json:"molid"`
	Chain        string  `json:"chain"`
	Symbol       string  `json:"symbol"`
	Z            int     `json:"z"`
	Mass         float64 `json:"mass"`
	Charge       float64 `json:"charge"` //partial charge, in e
	FormalCharge int     `json:"formalcharge"`
	Aromatic     bool    `json:"aromatic"`
	Het          bool    `json:"het"` //was it a HETATM in the PDB file?
	Bonds        []*Bond `json:"-"`
}

// Copy returns a copy of the Atom. Bonds are not copied:
// they belong to the molecule, not to the atom.
func (A *Atom) Copy() *Atom {
	if A == nil {
		panic(string(ErrNilAtom))
	}
	newat := new(Atom)
	*newat = *A
	newat.Bonds = nil
	return newat
}

// Bond represents a chemical bond between two atoms of the same molecule.
type Bond struct {
	Index    int
	At1      *Atom
	At2      *Atom
	Dist     float64
	Order    float64 //Order 0 means undetermined. Fractional orders are allowed.
	Aromatic bool
}

// Cross returns the atom of the bond that is not origin.
// Panics if origin is not part of the bond.
func (B *Bond) Cross(origin *Atom) *Atom {
	if origin.Index == B.At1.Index {
		return B.At2
	}
	if origin.Index == B.At2.Index {
		return B.At1
	}
	panic(string(ErrNotCrossedBond))
}

// Molecule is a set of atoms connected by bonds, plus, optionally, one
// conformer. It is the unit the force-field machinery works on; systems
// with several molecules are represented by the Topology type.
type Molecule struct {
	Name  string
	Atoms []*Atom
	Bonds []*Bond
	//Coords is the conformer for the molecule. It can be nil; several
	//operations (packing, writing coordinate files) will require it.
	Coords *xyz.Matrix
}

// NewMolecule returns an empty molecule with the given name.
func NewMolecule(name string) *Molecule {
	return &Molecule{Name: name, Atoms: make([]*Atom, 0, 10), Bonds: make([]*Bond, 0, 10)}
}

// Len returns the number of atoms in the molecule.
// Part of the Atomer interface.
func (M *Molecule) Len() int {
	return len(M.Atoms)
}

// Atom returns the atom with (0-based) index i.
// Panics if out of range. Part of the Atomer interface.
func (M *Molecule) Atom(i int) *Atom {
	if i < 0 || i >= len(M.Atoms) {
		panic(string(ErrAtomOutOfRange))
	}
	return M.Atoms[i]
}

// AddAtom appends at to the molecule, filling its Index, its Z from the
// symbol (if unset) and its mass from the element tables (if unset).
// It returns the index of the new atom.
func (M *Molecule) AddAtom(at *Atom) int {
	if at == nil {
		panic(string(ErrNilAtom))
	}
	at.Index = len(M.Atoms)
	if at.Z == 0 {
		at.Z = symbolZ[at.Symbol]
	}
	if at.Symbol == "" && at.Z > 0 {
		at.Symbol = zSymbol[at.Z]
	}
	if at.Mass == 0 {
		at.Mass = symbolMass[at.Symbol]
	}
	M.Atoms = append(M.Atoms, at)
	return at.Index
}

// AddBond bonds the atoms with indexes i and j with the given bond order.
// It returns an error if the indexes are out of range, equal, or already bonded.
func (M *Molecule) AddBond(i, j int, order float64) error {
	if i == j {
		return NewError("AddBond", fmt.Sprintf("can't bond atom %d to itself", i))
	}
	if i < 0 || j < 0 || i >= M.Len() || j >= M.Len() {
		return NewError("AddBond", fmt.Sprintf("atom indexes (%d, %d) out of range", i, j))
	}
	if M.Bonded(i, j) {
		return NewError("AddBond", fmt.Sprintf("atoms (%d, %d) are already bonded", i, j))
	}
	b := &Bond{Index: len(M.Bonds), At1: M.Atoms[i], At2: M.Atoms[j], Order: order}
	M.Atoms[i].Bonds = append(M.Atoms[i].Bonds, b)
	M.Atoms[j].Bonds = append(M.Atoms[j].Bonds, b)
	M.Bonds = append(M.Bonds, b)
	return nil
}

// Bonded returns whether the atoms with indexes i and j share a bond.
func (M *Molecule) Bonded(i, j int) bool {
	for _, b := range M.Atoms[i].Bonds {
		if b.Cross(M.Atoms[i]).Index == j {
			return true
		}
	}
	return false
}

// BondBetween returns the bond between atoms i and j, or nil.
func (M *Molecule) BondBetween(i, j int) *Bond {
	for _, b := range M.Atoms[i].Bonds {
		if b.Cross(M.Atoms[i]).Index == j {
			return b
		}
	}
	return nil
}

// Neighbors returns the indexes of the atoms bonded to the atom with index i,
// in ascending order of bond insertion.
func (M *Molecule) Neighbors(i int) []int {
	at := M.Atom(i)
	ret := make([]int, 0, len(at.Bonds))
	for _, b := range at.Bonds {
		ret = append(ret, b.Cross(at).Index)
	}
	return ret
}

// Degree returns the number of bonds of the atom with index i.
func (M *Molecule) Degree(i int) int {
	return len(M.Atom(i).Bonds)
}

// HCount returns the number of hydrogens bonded to the atom with index i.
func (M *Molecule) HCount(i int) int {
	h := 0
	at := M.Atom(i)
	for _, b := range at.Bonds {
		if b.Cross(at).Z == 1 {
			h++
		}
	}
	return h
}

// FillIndexes sets the Index field of every atom to its current
// position in the Atoms slice.
func (M *Molecule) FillIndexes() {
	for i, at := range M.Atoms {
		at.Index = i
	}
}

// Copy returns a deep copy of the molecule: atoms, bonds and, if present,
// coordinates are all new objects.
func (M *Molecule) Copy() *Molecule {
	ret := NewMolecule(M.Name)
	for _, at := range M.Atoms {
		ret.Atoms = append(ret.Atoms, at.Copy())
	}
	for _, b := range M.Bonds {
		nb := &Bond{Index: b.Index, At1: ret.Atoms[b.At1.Index], At2: ret.Atoms[b.At2.Index], Dist: b.Dist, Order: b.Order, Aromatic: b.Aromatic}
		nb.At1.Bonds = append(nb.At1.Bonds, nb)
		nb.At2.Bonds = append(nb.At2.Bonds, nb)
		ret.Bonds = append(ret.Bonds, nb)
	}
	if M.Coords != nil {
		ret.Coords = xyz.Zeros(M.Coords.NVecs())
		ret.Coords.Copy(M.Coords)
	}
	return ret
}

// NetCharge returns the sum of the formal charges of the atoms.
func (M *Molecule) NetCharge() int {
	q := 0
	for _, at := range M.Atoms {
		q += at.FormalCharge
	}
	return q
}

// TotalPartialCharge returns the sum of the partial charges of the atoms.
func (M *Molecule) TotalPartialCharge() float64 {
	q := 0.0
	for _, at := range M.Atoms {
		q += at.Charge
	}
	return q
}

// SetPartialCharges sets the partial charge of each atom from q,
// which must have exactly one value per atom.
func (M *Molecule) SetPartialCharges(q []float64) error {
	if len(q) != M.Len() {
		return NewError("SetPartialCharges", fmt.Sprintf("%d charges given for %d atoms", len(q), M.Len()))
	}
	for i, v := range q {
		M.Atoms[i].Charge = v
	}
	return nil
}

// PartialCharges returns a slice with the partial charge of each atom.
func (M *Molecule) PartialCharges() []float64 {
	ret := make([]float64, M.Len())
	for i, at := range M.Atoms {
		ret[i] = at.Charge
	}
	return ret
}

// HasCharges returns whether any atom has a nonzero partial charge.
// A true zero-charge molecule (say, methane with symmetrized charges)
// will be reported as not having charges, which is the conservative
// answer for the charge-assignment machinery.
func (M *Molecule) HasCharges() bool {
	for _, at := range M.Atoms {
		if at.Charge != 0 {
			return true
		}
	}
	return false
}

// Masses returns a slice with the mass of every atom. It errs
// if any atom has no mass assigned. Part of the Masser interface.
func (M *Molecule) Masses() ([]float64, error) {
	ret := make([]float64, M.Len())
	for i, at := range M.Atoms {
		if at.Mass == 0 {
			return nil, NewError("Masses", fmt.Sprintf("atom %d (%s) has no mass assigned", i, at.Symbol))
		}
		ret[i] = at.Mass
	}
	return ret, nil
}

// Formula returns the Hill-convention molecular formula (C first, H second,
// everything else alphabetical). Used to tell molecules apart cheaply.
func (M *Molecule) Formula() string {
	counts := map[string]int{}
	for _, at := range M.Atoms {
		counts[at.Symbol]++
	}
	write := func(sym string) string {
		n := counts[sym]
		delete(counts, sym)
		if n == 0 {
			return ""
		}
		if n == 1 {
			return sym
		}
		return fmt.Sprintf("%s%d", sym, n)
	}
	ret := write("C") + write("H")
	//the remaining elements, alphabetically
	rest := make([]string, 0, len(counts))
	for k := range counts {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	for _, sym := range rest {
		n := counts[sym]
		if n == 1 {
			ret += sym
		} else {
			ret += fmt.Sprintf("%s%d", sym, n)
		}
	}
	return ret
}

// TotalMass returns the mass of the molecule in amu.
func (M *Molecule) TotalMass() (float64, error) {
	ms, err := M.Masses()
	if err != nil {
		return 0, errDecorate(err, "TotalMass")
	}
	t := 0.0
	for _, v := range ms {
		t += v
	}
	return t, nil
}
