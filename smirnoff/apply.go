/*
 * apply.go, part of goff.
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

package smirnoff

import (
	"fmt"
	"math"
	"strings"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/interchange"
	"github.com/imolina/goff/xyz"
)

// UnsupportedSectionsError means the force field carries sections this
// module cannot apply, so applying the rest would misrepresent it.
type UnsupportedSectionsError struct {
	Sections []string
}

func (e *UnsupportedSectionsError) Error() string {
	return "smirnoff: cannot apply a force field with unsupported sections: " +
		strings.Join(e.Sections, ", ")
}

// ChargeMethodError means no usable source of partial charges was found for
// a molecule. Method is the method the force field asked for, or empty when
// it asked for none at all.
type ChargeMethodError struct {
	Molecule string
	Method   string
}

func (e *ChargeMethodError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("smirnoff: no charge source for molecule %s: the force field provides none and no fallback method was given", e.Molecule)
	}
	return fmt.Sprintf("smirnoff: molecule %s needs %s charges, which this module cannot compute; give preset charges or a fallback charge method", e.Molecule, e.Method)
}

// Options tunes Apply. The zero value works for force fields that carry
// their own charges.
type Options struct {
	//Box overrides the box of the topology.
	Box *xyz.Box
	//PresetCharges are molecules whose partial charges take precedence
	//over every charge source of the force field. A topology molecule
	//uses a preset when their names match, or when their element
	//sequences and formulas do.
	PresetCharges []*mol.Molecule
	//ChargeMethod is the fallback partial-charge method ("gasteiger",
	//"formal-charges" or "zeros") used when the force field asks for
	//a method this module cannot compute, such as AM1-BCC.
	ChargeMethod string
	//Warnf receives human-readable warnings. nil discards them.
	Warnf func(format string, args ...interface{})
}

func (o *Options) warner() func(string, ...interface{}) {
	if o.Warnf == nil {
		return func(string, ...interface{}) {}
	}
	return o.Warnf
}

// canonical tuples for molecule-local slots. The conventions follow the
// interchange key builders so local+offset equals the global key.

func pair(i, j int) [2]int {
	if j < i {
		i, j = j, i
	}
	return [2]int{i, j}
}

func triplet(i, j, k int) [3]int {
	if k < i {
		i, k = k, i
	}
	return [3]int{i, j, k}
}

func quad(i, j, k, l int) [4]int {
	if j > k {
		return [4]int{l, k, j, i}
	}
	return [4]int{i, j, k, l}
}

type improperMatch struct {
	atoms [4]int //as matched, central atom second
	param *TorsionParameter
}

// molAssignment is the parameter assignment of one molecule, on local atom
// indexes. One is computed per block of identical molecules and then
// stamped out once per instance.
type molAssignment struct {
	m           *mol.Molecule
	bonds       map[[2]int]*BondParameter
	angles      map[[3]int]*AngleParameter
	propers     map[[4]int]*TorsionParameter
	paths       map[[2]int]int //proper torsion paths per central bond
	impropers   []improperMatch
	vdw         []*VdWParameter
	constraints map[[2]int]*ConstraintParameter
	charges     []float64
	vsites      []vsiteMatch
}

func orderOf(m *mol.Molecule, lk [2]int) float64 {
	b := m.BondBetween(lk[0], lk[1])
	if b == nil || b.Order == 0 {
		return 1
	}
	return b.Order
}

func bondLengthFor(a *molAssignment, lk [2]int) (float64, bool) {
	if a.bonds == nil {
		return 0, false
	}
	p := a.bonds[lk]
	if p == nil {
		return 0, false
	}
	length, _ := p.At(orderOf(a.m, lk))
	return length, true
}

// separationFor gives the parametrized distance between two atoms: an
// explicit constraint wins over the assigned bond length.
func separationFor(a *molAssignment, i, j int) (float64, bool) {
	lk := pair(i, j)
	if a.constraints != nil {
		if c := a.constraints[lk]; c != nil && c.HasDistance {
			return c.Distance, true
		}
	}
	return bondLengthFor(a, lk)
}

func angleFor(a *molAssignment, i, j, k int) (float64, bool) {
	if a.angles == nil {
		return 0, false
	}
	if p := a.angles[triplet(i, j, k)]; p != nil {
		return p.Angle, true
	}
	return 0, false
}

// assignMolecule runs every handler of the force field over one molecule.
// off is the global index of the molecule's first atom, used only to report
// errors in system numbering.
func assignMolecule(ff *ForceField, m *mol.Molecule, off int, opts *Options, warnf func(string, ...interface{})) (*molAssignment, error) {
	m.PerceiveAromaticity()
	a := &molAssignment{m: m}

	if ff.Bonds != nil {
		a.bonds = make(map[[2]int]*BondParameter)
		for _, p := range ff.Bonds.Parameters {
			for _, hit := range p.pat.Matches(m) {
				lk := pair(hit[0], hit[1])
				a.bonds[lk] = p
				if b := m.BondBetween(lk[0], lk[1]); p.Interpolated() && b != nil && b.Order == 0 {
					warnf("bond (%d, %d) of %s has no order set; interpolating at order 1", off+lk[0], off+lk[1], m.Name)
				}
			}
		}
	}
	for _, b := range m.Bonds {
		lk := pair(b.At1.Index, b.At2.Index)
		if a.bonds == nil || a.bonds[lk] == nil {
			return nil, &interchange.MissingParametersError{
				Collection: interchange.Bonds,
				Key:        interchange.BondKey(off+lk[0], off+lk[1]),
			}
		}
	}

	angles := m.Angles()
	if ff.Angles != nil {
		a.angles = make(map[[3]int]*AngleParameter, len(angles))
		for _, p := range ff.Angles.Parameters {
			for _, hit := range p.pat.Matches(m) {
				a.angles[triplet(hit[0], hit[1], hit[2])] = p
			}
		}
	}
	for _, t := range angles {
		if a.angles == nil || a.angles[t] == nil {
			return nil, &interchange.MissingParametersError{
				Collection: interchange.Angles,
				Key:        interchange.AngleKey(off+t[0], off+t[1], off+t[2]),
			}
		}
	}

	propers := m.ProperDihedrals()
	a.paths = make(map[[2]int]int, len(propers))
	for _, t := range propers {
		a.paths[pair(t[1], t[2])]++
	}
	if ff.ProperTorsions != nil {
		a.propers = make(map[[4]int]*TorsionParameter, len(propers))
		for _, p := range ff.ProperTorsions.Parameters {
			for _, hit := range p.pat.Matches(m) {
				a.propers[quad(hit[0], hit[1], hit[2], hit[3])] = p
			}
		}
	}
	for _, t := range propers {
		if a.propers == nil || a.propers[quad(t[0], t[1], t[2], t[3])] == nil {
			return nil, &interchange.MissingParametersError{
				Collection: interchange.ProperTorsions,
				Key:        interchange.ProperKey(off+t[0], off+t[1], off+t[2], off+t[3]),
			}
		}
	}

	if ff.ImproperTorsions != nil {
		type impKey struct {
			center int
			outer  [3]int
		}
		best := make(map[impKey]improperMatch)
		var seen []impKey
		for _, p := range ff.ImproperTorsions.Parameters {
			for _, hit := range p.pat.Matches(m) {
				outer := [3]int{hit[0], hit[2], hit[3]}
				if outer[0] > outer[1] {
					outer[0], outer[1] = outer[1], outer[0]
				}
				if outer[1] > outer[2] {
					outer[1], outer[2] = outer[2], outer[1]
				}
				if outer[0] > outer[1] {
					outer[0], outer[1] = outer[1], outer[0]
				}
				k := impKey{hit[1], outer}
				if _, ok := best[k]; !ok {
					seen = append(seen, k)
				}
				best[k] = improperMatch{atoms: [4]int{hit[0], hit[1], hit[2], hit[3]}, param: p}
			}
		}
		for _, k := range seen {
			a.impropers = append(a.impropers, best[k])
		}
	}

	a.vdw = make([]*VdWParameter, m.Len())
	for _, p := range ff.VdW.Parameters {
		for _, hit := range p.pat.Matches(m) {
			a.vdw[hit[0]] = p
		}
	}
	for i, p := range a.vdw {
		if p == nil {
			return nil, &interchange.MissingParametersError{
				Collection: interchange.VdW,
				Key:        interchange.Key(off + i),
			}
		}
	}

	if ff.Constraints != nil {
		a.constraints = make(map[[2]int]*ConstraintParameter)
		for _, p := range ff.Constraints.Parameters {
			for _, hit := range p.pat.Matches(m) {
				a.constraints[pair(hit[0], hit[1])] = p
			}
		}
		for lk, p := range a.constraints {
			if !p.HasDistance {
				if _, ok := bondLengthFor(a, lk); !ok {
					return nil, fmt.Errorf("smirnoff: constraint %s between unbonded atoms (%d, %d) needs an explicit distance",
						p.label(), off+lk[0], off+lk[1])
				}
			}
		}
	}

	q, err := assembleCharges(ff, m, opts, warnf)
	if err != nil {
		return nil, err
	}
	a.charges = q

	if ff.VirtualSites != nil {
		if a.vsites, err = matchVirtualSites(ff.VirtualSites, a, off); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Apply parametrizes a topology with a force field and returns the result
// as an Interchange. Identical consecutive molecules are assigned once and
// stamped out per instance. Positions and box are taken from the topology
// (or opts) when present; both may be set on the Interchange later.
func Apply(ff *ForceField, top *mol.Topology, opts *Options) (*interchange.Interchange, error) {
	if opts == nil {
		opts = new(Options)
	}
	warnf := opts.warner()
	if ff == nil {
		return nil, fmt.Errorf("smirnoff: nil force field")
	}
	if top == nil || top.NMols() == 0 || top.Len() == 0 {
		return nil, fmt.Errorf("smirnoff: empty topology")
	}
	if len(ff.Unknown) > 0 {
		return nil, &UnsupportedSectionsError{Sections: append([]string(nil), ff.Unknown...)}
	}
	if ff.VdW == nil {
		return nil, fmt.Errorf("smirnoff: force field has no vdW section")
	}
	if ff.Electrostatics == nil {
		return nil, fmt.Errorf("smirnoff: force field has no Electrostatics section")
	}

	blocks := top.GroupIdentical()
	asn := make([]*molAssignment, len(blocks))
	for bi := range blocks {
		a, err := assignMolecule(ff, blocks[bi].Mol, top.Offset(blocks[bi].First), opts, warnf)
		if err != nil {
			return nil, err
		}
		asn[bi] = a
	}

	ic := interchange.New(top)
	var colConstraints, colBonds, colAngles, colPropers, colImpropers *interchange.Collection
	if ff.Constraints != nil {
		colConstraints = interchange.NewCollection(interchange.Constraints, "")
		ic.AddCollection(interchange.Constraints, colConstraints)
	}
	if ff.Bonds != nil {
		colBonds = interchange.NewCollection(interchange.Bonds, "k/2*(r-length)**2")
		ic.AddCollection(interchange.Bonds, colBonds)
	}
	if ff.Angles != nil {
		colAngles = interchange.NewCollection(interchange.Angles, "k/2*(theta-angle)**2")
		ic.AddCollection(interchange.Angles, colAngles)
	}
	if ff.ProperTorsions != nil {
		colPropers = interchange.NewCollection(interchange.ProperTorsions, "k*(1+cos(periodicity*theta-phase))")
		ic.AddCollection(interchange.ProperTorsions, colPropers)
	}
	if ff.ImproperTorsions != nil {
		colImpropers = interchange.NewCollection(interchange.ImproperTorsions, "k*(1+cos(periodicity*theta-phase))")
		ic.AddCollection(interchange.ImproperTorsions, colImpropers)
	}
	colVdW := interchange.NewCollection(interchange.VdW, "4*epsilon*((sigma/r)**12-(sigma/r)**6)")
	colVdW.Nonbonded = &interchange.Nonbonded{
		Cutoff:            ff.VdW.Cutoff,
		SwitchWidth:       ff.VdW.SwitchWidth,
		Scale12:           ff.VdW.Scale12,
		Scale13:           ff.VdW.Scale13,
		Scale14:           ff.VdW.Scale14,
		Scale15:           ff.VdW.Scale15,
		MixingRule:        ff.VdW.MixingRule,
		PeriodicMethod:    ff.VdW.Periodic,
		NonperiodicMethod: ff.VdW.Nonperiodic,
	}
	ic.AddCollection(interchange.VdW, colVdW)
	colES := interchange.NewCollection(interchange.Electrostatics, "coulomb")
	colES.Nonbonded = &interchange.Nonbonded{
		Cutoff:            ff.Electrostatics.Cutoff,
		SwitchWidth:       ff.Electrostatics.SwitchWidth,
		Scale12:           ff.Electrostatics.Scale12,
		Scale13:           ff.Electrostatics.Scale13,
		Scale14:           ff.Electrostatics.Scale14,
		Scale15:           ff.Electrostatics.Scale15,
		PeriodicMethod:    ff.Electrostatics.Periodic,
		NonperiodicMethod: ff.Electrostatics.Nonperiodic,
	}
	colES.Charges = make(map[int]float64, top.Len())
	ic.AddCollection(interchange.Electrostatics, colES)
	var colVS *interchange.Collection
	for _, a := range asn {
		if len(a.vsites) > 0 {
			colVS = interchange.NewCollection(interchange.VirtualSites, "")
			ic.AddCollection(interchange.VirtualSites, colVS)
			break
		}
	}

	nextParticle := top.Len()
	for bi, b := range blocks {
		a := asn[bi]
		for inst := 0; inst < b.Count; inst++ {
			off := top.Offset(b.First + inst)
			for lk, p := range a.bonds {
				gk := interchange.BondKey(off+lk[0], off+lk[1])
				pk, pot := bondPotential(p, a.m, lk)
				colBonds.AddPotential(pk, pot)
				colBonds.Assign(gk, pk)
			}
			for lt, p := range a.angles {
				gk := interchange.AngleKey(off+lt[0], off+lt[1], off+lt[2])
				pk := interchange.PKey(p.SMIRKS)
				colAngles.AddPotential(pk, interchange.NewPotential(p.ID,
					map[string]float64{"k": p.K, "angle": p.Angle}))
				colAngles.Assign(gk, pk)
			}
			for lt, p := range a.propers {
				emitProper(colPropers, a, off, lt, p)
			}
			for _, im := range a.impropers {
				emitImproper(colImpropers, off, im)
			}
			if colConstraints != nil {
				for lk, p := range a.constraints {
					emitConstraint(colConstraints, a, off, lk, p)
				}
			}
			for i, p := range a.vdw {
				pk := interchange.PKey(p.SMIRKS)
				colVdW.AddPotential(pk, interchange.NewPotential(p.ID,
					map[string]float64{"sigma": p.Sigma, "epsilon": p.Epsilon}))
				colVdW.Assign(interchange.Key(off+i), pk)
			}
			for i, q := range a.charges {
				colES.Charges[off+i] = q
			}
			for _, vm := range a.vsites {
				orient := make([]int, len(vm.orientation))
				for k, o := range vm.orientation {
					orient[k] = off + o
				}
				site := &interchange.VirtualSite{
					Particle:    nextParticle,
					Kind:        vm.param.Type,
					Orientation: orient,
					Weights:     append([]float64(nil), vm.weights...),
					Charge:      vm.siteCharge,
					Sigma:       vm.param.Sigma,
					Epsilon:     vm.param.Epsilon,
				}
				nextParticle++
				colVS.VSites = append(colVS.VSites, site)
				colES.Charges[site.Particle] = site.Charge
				for k, o := range orient {
					colES.Charges[o] += vm.param.Increments[k]
				}
				spk := interchange.PKey(vm.param.SMIRKS + " " + vm.param.Name)
				colVdW.AddPotential(spk, interchange.NewPotential(vm.param.Name,
					map[string]float64{"sigma": vm.param.Sigma, "epsilon": vm.param.Epsilon}))
				colVdW.Assign(interchange.Key(site.Particle), spk)
			}
		}
	}

	if pos, err := top.Positions(); err == nil {
		if err := ic.SetPositions(pos); err != nil {
			return nil, err
		}
	}
	box := opts.Box
	if box == nil {
		box = top.Box
	}
	if box != nil {
		ic.Box = box.Copy()
	}
	return ic, nil
}

func bondPotential(p *BondParameter, m *mol.Molecule, lk [2]int) (interchange.PotentialKey, *interchange.Potential) {
	if !p.Interpolated() {
		return interchange.PKey(p.SMIRKS), interchange.NewPotential(p.ID,
			map[string]float64{"k": p.K, "length": p.Length})
	}
	order := orderOf(m, lk)
	length, k := p.At(order)
	pk := interchange.PKey(fmt.Sprintf("%s[order=%.4g]", p.SMIRKS, order))
	return pk, interchange.NewPotential(p.ID, map[string]float64{"k": k, "length": length})
}

// emitProper writes one slot per cosine term. The division by idivf is
// folded into the stored force constant; "auto" divides by the number of
// torsion paths around the central bond.
func emitProper(col *interchange.Collection, a *molAssignment, off int, lt [4]int, p *TorsionParameter) {
	for term := range p.K {
		idiv := p.IDivF[term]
		id := p.SMIRKS
		if math.IsNaN(idiv) {
			idiv = float64(a.paths[pair(lt[1], lt[2])])
			id = fmt.Sprintf("%s[idivf=%g]", p.SMIRKS, idiv)
		}
		pk := interchange.PKey(id).WithMult(term)
		pot := interchange.NewPotential(p.ID, map[string]float64{
			"k":           p.K[term] / idiv,
			"periodicity": float64(p.Periodicity[term]),
			"phase":       p.Phase[term],
		})
		col.AddPotential(pk, pot)
		slot := interchange.ProperKey(off+lt[0], off+lt[1], off+lt[2], off+lt[3]).WithMult(term)
		col.Assign(slot, pk)
	}
}

// emitImproper writes the trefoil: the three cyclic arrangements of the
// outer atoms around the central one, each carrying a third of the barrier
// (idivf defaults to 3 for impropers).
func emitImproper(col *interchange.Collection, off int, im improperMatch) {
	i, c, k, l := im.atoms[0], im.atoms[1], im.atoms[2], im.atoms[3]
	orderings := [3][4]int{
		{i, c, k, l},
		{k, c, l, i},
		{l, c, i, k},
	}
	p := im.param
	for term := range p.K {
		idiv := p.IDivF[term]
		if math.IsNaN(idiv) {
			idiv = 3
		}
		pk := interchange.PKey(p.SMIRKS).WithMult(term)
		pot := interchange.NewPotential(p.ID, map[string]float64{
			"k":           p.K[term] / idiv,
			"periodicity": float64(p.Periodicity[term]),
			"phase":       p.Phase[term],
		})
		col.AddPotential(pk, pot)
		for _, o := range orderings {
			slot := interchange.Key(off+o[0], off+o[1], off+o[2], off+o[3]).WithMult(term)
			col.Assign(slot, pk)
		}
	}
}

func emitConstraint(col *interchange.Collection, a *molAssignment, off int, lk [2]int, p *ConstraintParameter) {
	d := p.Distance
	id := p.SMIRKS
	if !p.HasDistance {
		//checked to exist at assignment time
		d, _ = bondLengthFor(a, lk)
		id = fmt.Sprintf("%s[d=%.8g]", p.SMIRKS, d)
	}
	pk := interchange.PKey(id)
	col.AddPotential(pk, interchange.NewPotential(p.ID, map[string]float64{"distance": d}))
	col.Assign(interchange.BondKey(off+lk[0], off+lk[1]), pk)
}
