/*
 * gasteiger.go, part of goff.
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
	"math"
)

//Gasteiger-Marsili PEOE charges (Tetrahedron 36, 3219, 1980). The
//electronegativity of an atom is chi(q) = a + b q + c q^2; on each
//iteration charge flows along every bond from the less to the more
//electronegative atom, damped by (1/2)^n. Six iterations, as in the
//original paper. Only sigma charges; no special treatment of
//conjugation beyond the sp2 parameters.

type peoeParams struct {
	a, b, c float64
}

//chiPlus is chi at q=+1, the normalization for charge flowing *out* of
//the atom. Hydrogen uses the special value from the paper.
func (p peoeParams) chiPlus() float64 {
	return p.a + p.b + p.c
}

//keys are symbol:hyb with hyb 1 (sp), 2 (sp2) or 3 (sp3).
var peoeTable = map[string]peoeParams{
	"H:3":  {7.17, 6.24, -0.56},
	"C:3":  {7.98, 9.18, 1.88},
	"C:2":  {8.79, 9.32, 1.51},
	"C:1":  {10.39, 9.45, 0.73},
	"N:3":  {11.54, 10.82, 1.36},
	"N:2":  {12.87, 11.15, 0.85},
	"N:1":  {15.68, 11.70, -0.27},
	"O:3":  {14.18, 12.92, 1.39},
	"O:2":  {17.07, 13.79, 0.47},
	"F:3":  {14.66, 13.85, 2.31},
	"Cl:3": {11.00, 9.69, 1.35},
	"Br:3": {10.08, 8.47, 1.16},
	"I:3":  {9.90, 7.96, 0.96},
	"S:3":  {10.14, 9.13, 1.38},
	"S:2":  {10.88, 9.49, 1.33},
	"P:3":  {8.90, 8.24, 0.96},
}

const hChiPlus = 20.02 //cation electronegativity for H, per the paper

// Hybridization returns 1, 2 or 3 for the sp, sp2 or sp3 state of the
// atom with index i, judged from its bond orders: any triple bond or two
// double bonds mean sp, any double or aromatic bond means sp2.
func (M *Molecule) Hybridization(i int) int {
	at := M.Atom(i)
	doubles := 0
	for _, b := range at.Bonds {
		if b.Order >= 3 {
			return 1
		}
		if b.Order >= 2 {
			doubles++
		}
		if b.Aromatic || b.Order == 1.5 {
			doubles++ //aromatic counts as one double bond at most
		}
	}
	switch {
	case doubles >= 2:
		return 1
	case doubles == 1 || at.Aromatic:
		return 2
	default:
		return 3
	}
}

func peoeFor(M *Molecule, i int) (peoeParams, error) {
	at := M.Atom(i)
	hyb := M.Hybridization(i)
	for _, key := range []string{
		fmt.Sprintf("%s:%d", at.Symbol, hyb),
		at.Symbol + ":3", //halogens and such have only one state listed
	} {
		if p, ok := peoeTable[key]; ok {
			return p, nil
		}
	}
	return peoeParams{}, NewError("GasteigerCharges",
		fmt.Sprintf("no electronegativity parameters for %s (atom %d)", at.Symbol, i))
}

// GasteigerCharges computes PEOE partial charges for the molecule and
// returns them without modifying it. The sum of the returned charges
// equals the net formal charge of the molecule.
func GasteigerCharges(M *Molecule) ([]float64, error) {
	n := M.Len()
	params := make([]peoeParams, n)
	for i := 0; i < n; i++ {
		var err error
		params[i], err = peoeFor(M, i)
		if err != nil {
			return nil, err
		}
	}
	q := make([]float64, n)
	for i, at := range M.Atoms {
		q[i] = float64(at.FormalCharge)
	}
	chi := make([]float64, n)
	const iterations = 6
	damp := 1.0
	for it := 1; it <= iterations; it++ {
		damp *= 0.5
		for i := 0; i < n; i++ {
			p := params[i]
			chi[i] = p.a + p.b*q[i] + p.c*q[i]*q[i]
		}
		for _, b := range M.Bonds {
			i, j := b.At1.Index, b.At2.Index
			if chi[i] == chi[j] {
				continue
			}
			//the less electronegative atom gives up charge; its
			//cation electronegativity normalizes the transfer
			donor := i
			if chi[j] < chi[i] {
				donor = j
			}
			norm := params[donor].chiPlus()
			if M.Atoms[donor].Z == 1 {
				norm = hChiPlus
			}
			dq := math.Abs(chi[i]-chi[j]) / norm * damp
			if donor == i {
				q[i] += dq
				q[j] -= dq
			} else {
				q[j] += dq
				q[i] -= dq
			}
		}
	}
	return q, nil
}

// AssignGasteigerCharges computes PEOE charges and stores them as the
// partial charges of the molecule's atoms.
func AssignGasteigerCharges(M *Molecule) error {
	q, err := GasteigerCharges(M)
	if err != nil {
		return errDecorate(err, "AssignGasteigerCharges")
	}
	return M.SetPartialCharges(q)
}

// AssignFormalCharges sets each atom's partial charge to its formal
// charge. This is the "formal-charges" charge method of SMIRNOFF
// charge-increment handlers.
func AssignFormalCharges(M *Molecule) {
	for _, at := range M.Atoms {
		at.Charge = float64(at.FormalCharge)
	}
}
