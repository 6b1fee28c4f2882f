/*
 * reference.go, part of goff.
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

package drivers

import (
	"fmt"
	"math"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/interchange"
	"github.com/imolina/goff/xyz"
)

// defaultCutoff is applied to periodic systems whose collections carry
// no cutoff of their own, in angstrom.
const defaultCutoff = 9.0

// Reference evaluates the single-point energy of a parametrized system
// directly from its collections, with no engine involved. Energies come
// back in kJ/mol under the canonical term names.
//
// Bonded terms are computed on the raw coordinates, so molecules must be
// whole, not wrapped across the box. Pairwise terms use the minimum image
// and plain truncation at the cutoff when the system is periodic, and
// every pair with no cutoff when it is not; there is no Ewald sum, which
// is why electrostatic agreement with PME-running engines is checked
// loosely. Bonds under a distance constraint contribute nothing, the way
// engines treat them. Systems with virtual sites are refused.
func Reference(ic *interchange.Interchange) (*EnergyReport, error) {
	if len(ic.VirtualSiteList()) > 0 {
		return nil, fmt.Errorf("the reference evaluator does not handle virtual sites")
	}
	pos, err := ic.AtomPositions("reference energies")
	if err != nil {
		return nil, err
	}
	rep := NewEnergyReport()
	if ic.HasCollection(interchange.Bonds) {
		e, err := bondEnergy(ic, pos)
		if err != nil {
			return nil, err
		}
		rep.Set(TermBond, e*mol.Kcal2KJ)
	}
	if ic.HasCollection(interchange.Angles) {
		e, err := angleEnergy(ic.MustCollection(interchange.Angles), pos)
		if err != nil {
			return nil, err
		}
		rep.Set(TermAngle, e*mol.Kcal2KJ)
	}
	if ic.HasCollection(interchange.ProperTorsions) || ic.HasCollection(interchange.ImproperTorsions) {
		e := 0.0
		for _, name := range []string{interchange.ProperTorsions, interchange.ImproperTorsions} {
			if !ic.HasCollection(name) {
				continue
			}
			et, err := torsionEnergy(ic.MustCollection(name), pos)
			if err != nil {
				return nil, err
			}
			e += et
		}
		rep.Set(TermTorsion, e*mol.Kcal2KJ)
	}
	if ic.HasCollection(interchange.VdW) || ic.HasCollection(interchange.Electrostatics) {
		lj, q, err := pairEnergy(ic, pos)
		if err != nil {
			return nil, err
		}
		if ic.HasCollection(interchange.VdW) {
			rep.Set(TermVdW, lj*mol.Kcal2KJ)
		}
		if ic.HasCollection(interchange.Electrostatics) {
			rep.Set(TermElectrostatics, q*mol.Kcal2KJ)
		}
	}
	return rep, nil
}

func bondEnergy(ic *interchange.Interchange, pos *xyz.Matrix) (float64, error) {
	bonds := ic.MustCollection(interchange.Bonds)
	var cons *interchange.Collection
	if ic.HasCollection(interchange.Constraints) {
		cons = ic.MustCollection(interchange.Constraints)
	}
	e := 0.0
	for _, slot := range bonds.Slots() {
		if cons != nil && cons.HasSlot(slot) {
			continue
		}
		p, err := bonds.Parameters(slot)
		if err != nil {
			return 0, err
		}
		d := pos.Dist(slot.Atoms[0], slot.Atoms[1]) - p["length"]
		e += 0.5 * p["k"] * d * d
	}
	return e, nil
}

func angleEnergy(c *interchange.Collection, pos *xyz.Matrix) (float64, error) {
	e := 0.0
	for _, slot := range c.Slots() {
		p, err := c.Parameters(slot)
		if err != nil {
			return 0, err
		}
		th := xyz.Angle(pos.VecSlice(slot.Atoms[0]), pos.VecSlice(slot.Atoms[1]), pos.VecSlice(slot.Atoms[2]))
		d := th - p["angle"]
		e += 0.5 * p["k"] * d * d
	}
	return e, nil
}

// torsionEnergy sums k(1+cos(n phi - phi0)) over every slot. Improper
// collections work the same way: each stored ordering is one term, with
// any division among orderings already folded into k.
func torsionEnergy(c *interchange.Collection, pos *xyz.Matrix) (float64, error) {
	e := 0.0
	for _, slot := range c.Slots() {
		p, err := c.Parameters(slot)
		if err != nil {
			return 0, err
		}
		phi := xyz.Dihedral(pos.VecSlice(slot.Atoms[0]), pos.VecSlice(slot.Atoms[1]),
			pos.VecSlice(slot.Atoms[2]), pos.VecSlice(slot.Atoms[3]))
		e += p["k"] * (1 + math.Cos(p["periodicity"]*phi-p["phase"]))
	}
	return e, nil
}

// pairEnergy returns the Lennard-Jones and Coulomb sums, in kcal/mol.
func pairEnergy(ic *interchange.Interchange, pos *xyz.Matrix) (lj, q float64, err error) {
	n := ic.NAtoms()
	sigma := make([]float64, n)
	eps := make([]float64, n)
	charge := make([]float64, n)
	rule := ""
	ljScale := [4]float64{0, 0, 0, 0.5}
	qScale := [4]float64{0, 0, 0, 1 / 1.2}
	cutoff := 0.0

	if ic.HasCollection(interchange.VdW) {
		vdw := ic.MustCollection(interchange.VdW)
		for i := 0; i < n; i++ {
			p, err := vdw.Parameters(interchange.Key(i))
			if err != nil {
				return 0, 0, err
			}
			sigma[i] = p["sigma"]
			eps[i] = p["epsilon"]
		}
		if nb := vdw.Nonbonded; nb != nil {
			ljScale = [4]float64{0, nb.Scale12, nb.Scale13, nb.Scale14}
			rule = nb.MixingRule
			cutoff = nb.Cutoff
		}
	}
	if ic.HasCollection(interchange.Electrostatics) {
		es := ic.MustCollection(interchange.Electrostatics)
		for i := 0; i < n; i++ {
			charge[i] = es.Charges[i]
		}
		if nb := es.Nonbonded; nb != nil {
			qScale = [4]float64{0, nb.Scale12, nb.Scale13, nb.Scale14}
			if cutoff == 0 {
				cutoff = nb.Cutoff
			}
		}
	}
	periodic := ic.Box != nil
	if cutoff <= 0 {
		cutoff = defaultCutoff
	}
	rc2 := cutoff * cutoff

	seps := pairSeparations(ic.Topology, 3)
	d := make([]float64, 3)
	for i := 0; i < n; i++ {
		vi := pos.VecSlice(i)
		for j := i + 1; j < n; j++ {
			ls, qs := 1.0, 1.0
			if s, ok := seps[[2]int{i, j}]; ok {
				ls, qs = ljScale[s], qScale[s]
			}
			if ls == 0 && qs == 0 {
				continue
			}
			vj := pos.VecSlice(j)
			for k := 0; k < 3; k++ {
				d[k] = vj[k] - vi[k]
			}
			if periodic {
				ic.Box.MinImage(d)
			}
			r2 := d[0]*d[0] + d[1]*d[1] + d[2]*d[2]
			if periodic && r2 > rc2 {
				continue
			}
			r := math.Sqrt(r2)
			if e := math.Sqrt(eps[i]*eps[j]) * ls; e != 0 {
				s := mixSigma(rule, sigma[i], sigma[j])
				sr6 := s * s / r2
				sr6 = sr6 * sr6 * sr6
				lj += 4 * e * (sr6*sr6 - sr6)
			}
			q += mol.CoulombK * charge[i] * charge[j] * qs / r
		}
	}
	return lj, q, nil
}

func mixSigma(rule string, a, b float64) float64 {
	if rule == "geometric" {
		return math.Sqrt(a * b)
	}
	return (a + b) / 2
}

// pairSeparations maps global atom pairs, low index first, to their bond
// separation, up to maxSep bonds.
func pairSeparations(top *mol.Topology, maxSep int) map[[2]int]int {
	out := make(map[[2]int]int)
	off := 0
	for _, m := range top.Mols {
		for k, s := range m.BondSeparations(maxSep) {
			out[[2]int{off + k[0], off + k[1]}] = s
		}
		off += m.Len()
	}
	return out
}
