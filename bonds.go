/*
 * bonds.go, part of goff.
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

//constants from DOI:10.1186/1758-2946-3-33
const (
	tooclose = 0.63
	bondtol  = 0.45
)

//returns a new *Bond slice with the bond with index id removed
func takefromslice(bonds []*Bond, id int) []*Bond {
	newb := make([]*Bond, 0, len(bonds)-1)
	for _, v := range bonds {
		if v.Index != id {
			newb = append(newb, v)
		}
	}
	return newb
}

// RemoveBond removes the given bond from both of its atoms and from the
// molecule. The Index fields of the remaining bonds are renumbered.
func (M *Molecule) RemoveBond(b *Bond) error {
	lenb1 := len(b.At1.Bonds)
	lenb2 := len(b.At2.Bonds)
	b.At1.Bonds = takefromslice(b.At1.Bonds, b.Index)
	b.At2.Bonds = takefromslice(b.At2.Bonds, b.Index)
	if len(b.At1.Bonds) == lenb1 || len(b.At2.Bonds) == lenb2 {
		err := NewError("RemoveBond", fmt.Sprintf("failed to remove bond %d from atoms (%d, %d)", b.Index, b.At1.Index, b.At2.Index))
		return err
	}
	M.Bonds = takefromslice(M.Bonds, b.Index)
	for i, v := range M.Bonds {
		v.Index = i
	}
	return nil
}

// AssignBonds assigns bonds to the molecule based on a simple distance
// criterion, similar to that described in DOI:10.1186/1758-2946-3-33.
// Coordinates come from coord, in A. Previous bonds are discarded.
// It might get slow for large systems; it's really not meant
// for proteins or other macromolecules.
func AssignBonds(coord *xyz.Matrix, M *Molecule) error {
	M.FillIndexes()
	M.Bonds = M.Bonds[:0]
	for _, at := range M.Atoms {
		at.Bonds = nil
	}
	tot := M.Len()
	if coord == nil || coord.NVecs() != tot {
		return NewError("AssignBonds", string(ErrCoordsMismatched))
	}
	var nextIndex int
	for i := 0; i < tot; i++ {
		at1 := M.Atom(i)
		cov1 := symbolCovrad[at1.Symbol]
		if cov1 == 0 {
			err := NewError("AssignBonds", fmt.Sprintf("couldn't find the covalent radius for %s %d", at1.Symbol, i))
			return err
		}
		for j := i + 1; j < tot; j++ {
			at2 := M.Atom(j)
			cov2 := symbolCovrad[at2.Symbol]
			if cov2 == 0 {
				err := NewError("AssignBonds", fmt.Sprintf("couldn't find the covalent radius for %s %d", at2.Symbol, j))
				return err
			}
			d := coord.Dist(i, j)
			if d < cov1+cov2+bondtol && d > tooclose {
				b := &Bond{Index: nextIndex, Dist: d, At1: at1, At2: at2, Order: 1}
				at1.Bonds = append(at1.Bonds, b)
				at2.Bonds = append(at2.Bonds, b)
				M.Bonds = append(M.Bonds, b)
				nextIndex++
			}
		}
	}

	//Now we check that no atom has too many bonds.
	for i := 0; i < tot; i++ {
		at := M.Atom(i)
		max := symbolMaxBonds[at.Symbol]
		if max == 0 { //means there is no specified max number of bonds for this atom.
			continue
		}
		sort.Slice(at.Bonds, func(i, j int) bool { return at.Bonds[i].Dist < at.Bonds[j].Dist })
		for len(at.Bonds) > max {
			err := M.RemoveBond(at.Bonds[len(at.Bonds)-1]) //we remove the longest bond
			if err != nil {
				return errDecorate(err, "AssignBonds")
			}
		}
	}
	return nil
}
