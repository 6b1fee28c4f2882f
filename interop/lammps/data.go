/*
 * data.go, part of goff.
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

package lammps

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/interchange"
	"github.com/imolina/goff/xyz"
)

// A/ps to A/fs.
const v2Fs = 1e-3

type atomType struct {
	name  string
	mass  float64
	sigma float64
	eps   float64
}

type harmType struct { //bond and angle coefficients: K and the equilibrium
	k  float64
	eq float64
}

type dihType struct {
	k float64
	n int
	d int //phase, integer degrees
}

type impType struct {
	k float64
	d int //+1 or -1
	n int
}

// paramTable hands out 1-based type indexes in first-seen order.
type paramTable struct {
	idx map[interchange.PotentialKey]int
}

func newParamTable() *paramTable {
	return &paramTable{idx: make(map[interchange.PotentialKey]int)}
}

func (t *paramTable) add(pk interchange.PotentialKey) (idx int, isNew bool) {
	if i, ok := t.idx[pk]; ok {
		return i, false
	}
	i := len(t.idx) + 1
	t.idx[pk] = i
	return i, true
}

// dataSet is the whole file assembled up front, since the header needs
// every count before the first section can be written.
type dataSet struct {
	natom  int
	types  []atomType
	typeOf []int //per atom, 1-based
	molOf  []int //per atom, 1-based molecule instance
	q      []float64

	bondTypes  []harmType
	bonds      []int //flattened (type, i, j), atoms 1-based
	angleTypes []harmType
	angles     []int //(type, i, j, k)
	dihTypes   []dihType
	dihs       []int //(type, i, j, k, l)
	impTypes   []impType
	imps       []int //(type, i, j, k, l)
}

func coll(ic *interchange.Interchange, name string) *interchange.Collection {
	c, err := ic.Collection(name)
	if err != nil {
		return nil
	}
	return c
}

func cleanName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (d *dataSet) addAtoms(top *mol.Topology, vdw, es *interchange.Collection) error {
	type typeKey struct {
		pk interchange.PotentialKey
		z  int
	}
	byKey := make(map[typeKey]int)
	off := 0
	for mi, m := range top.Mols {
		for i := 0; i < m.Len(); i++ {
			at := m.Atoms[i]
			g := off + i
			pk, ok := vdw.SlotMap[interchange.Key(g)]
			if !ok {
				return &interchange.MissingParametersError{
					Collection: interchange.VdW,
					Key:        interchange.Key(g),
				}
			}
			tk := typeKey{pk, at.Z}
			ti, ok := byKey[tk]
			if !ok {
				pot := vdw.Potentials[pk]
				if pot == nil {
					return fmt.Errorf("vdW slot of atom %d points at unknown potential %s", g, pk)
				}
				name := cleanName(pot.Label)
				if name == "" {
					name = fmt.Sprintf("t%d", len(d.types)+1)
				}
				d.types = append(d.types, atomType{
					name:  name,
					mass:  at.Mass,
					sigma: pot.Parameters["sigma"],
					eps:   pot.Parameters["epsilon"],
				})
				ti = len(d.types) - 1
				byKey[tk] = ti
			}
			d.typeOf = append(d.typeOf, ti+1)
			d.molOf = append(d.molOf, mi+1)
			d.q = append(d.q, es.Charges[g])
		}
		off += m.Len()
	}
	d.natom = off
	return nil
}

// addBonds mirrors the Amber treatment of constraints: a constrained
// pair that is also a bond keeps its constants for fix shake to read,
// and a bare constraint becomes a zero-constant bond carrying the target
// distance.
func (d *dataSet) addBonds(bonds, constraints *interchange.Collection) error {
	t := newParamTable()
	if bonds != nil {
		for _, k := range bonds.Slots() {
			pot, err := bonds.Potential(k)
			if err != nil {
				return err
			}
			idx, isNew := t.add(bonds.SlotMap[k])
			if isNew {
				d.bondTypes = append(d.bondTypes, harmType{k: pot.Parameters["k"] / 2, eq: pot.Parameters["length"]})
			}
			d.bonds = append(d.bonds, idx, k.Atoms[0]+1, k.Atoms[1]+1)
		}
	}
	if constraints != nil {
		for _, k := range constraints.Slots() {
			if bonds != nil && bonds.HasSlot(interchange.BondKey(k.Atoms[0], k.Atoms[1])) {
				continue
			}
			p, err := constraints.Parameters(k)
			if err != nil {
				return err
			}
			idx, isNew := t.add(interchange.PKey("constraint " + constraints.SlotMap[k].ID))
			if isNew {
				d.bondTypes = append(d.bondTypes, harmType{k: 0, eq: p["distance"]})
			}
			d.bonds = append(d.bonds, idx, k.Atoms[0]+1, k.Atoms[1]+1)
		}
	}
	return nil
}

func (d *dataSet) addAngles(angles *interchange.Collection) error {
	if angles == nil {
		return nil
	}
	t := newParamTable()
	for _, k := range angles.Slots() {
		pot, err := angles.Potential(k)
		if err != nil {
			return err
		}
		idx, isNew := t.add(angles.SlotMap[k])
		if isNew {
			d.angleTypes = append(d.angleTypes, harmType{
				k:  pot.Parameters["k"] / 2,
				eq: pot.Parameters["angle"] * mol.Rad2Deg,
			})
		}
		d.angles = append(d.angles, idx, k.Atoms[0]+1, k.Atoms[1]+1, k.Atoms[2]+1)
	}
	return nil
}

// addDihedrals writes every cosine term as its own dihedral with the
// charmm functional form; LAMMPS sums repeated dihedrals over the same
// atoms, which is the multi-term semantics wanted. The charmm weighting
// factor stays 0 because special_bonds already applies the 1-4 scaling.
func (d *dataSet) addDihedrals(propers *interchange.Collection) error {
	if propers == nil {
		return nil
	}
	t := newParamTable()
	for _, k := range propers.Slots() {
		pot, err := propers.Potential(k)
		if err != nil {
			return err
		}
		idx, isNew := t.add(propers.SlotMap[k])
		if isNew {
			d.dihTypes = append(d.dihTypes, dihType{
				k: pot.Parameters["k"],
				n: int(math.Round(pot.Parameters["periodicity"])),
				d: int(math.Round(pot.Parameters["phase"] * mol.Rad2Deg)),
			})
		}
		d.dihs = append(d.dihs, idx, k.Atoms[0]+1, k.Atoms[1]+1, k.Atoms[2]+1, k.Atoms[3]+1)
	}
	return nil
}

// addImpropers maps the periodic improper onto cvff, whose cosine has no
// phase: k(1+cos(n*phi - pi)) is cvff with d=-1, a zero phase is d=+1,
// and anything else cannot be written.
func (d *dataSet) addImpropers(impropers *interchange.Collection) error {
	if impropers == nil {
		return nil
	}
	t := newParamTable()
	for _, k := range impropers.Slots() {
		pot, err := impropers.Potential(k)
		if err != nil {
			return err
		}
		idx, isNew := t.add(impropers.SlotMap[k])
		if isNew {
			phase := pot.Parameters["phase"]
			sign := 0
			switch {
			case math.Abs(phase) < 1e-4:
				sign = 1
			case math.Abs(phase-math.Pi) < 1e-4:
				sign = -1
			default:
				return &interchange.UnsupportedExportError{
					Format: "LAMMPS",
					Reason: fmt.Sprintf("cvff impropers take phases of 0 or pi, not %g rad", phase),
				}
			}
			d.impTypes = append(d.impTypes, impType{
				k: pot.Parameters["k"],
				d: sign,
				n: int(math.Round(pot.Parameters["periodicity"])),
			})
		}
		d.imps = append(d.imps, idx, k.Atoms[0]+1, k.Atoms[1]+1, k.Atoms[2]+1, k.Atoms[3]+1)
	}
	return nil
}

// boxBounds writes xlo/xhi style bounds. A periodic box must be in the
// lower-triangular vector form LAMMPS shares with GROMACS; without a box
// the bounds just wrap the coordinates with some slack.
func boxBounds(bw *bufio.Writer, b *xyz.Box, pos *xyz.Matrix, natom int) error {
	if b == nil {
		lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
		hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
		for i := 0; i < natom; i++ {
			v := pos.VecSlice(i)
			for k := 0; k < 3; k++ {
				lo[k] = math.Min(lo[k], v[k])
				hi[k] = math.Max(hi[k], v[k])
			}
		}
		const pad = 5.0
		fmt.Fprintf(bw, "%16.8f %16.8f  xlo xhi\n", lo[0]-pad, hi[0]+pad)
		fmt.Fprintf(bw, "%16.8f %16.8f  ylo yhi\n", lo[1]-pad, hi[1]+pad)
		fmt.Fprintf(bw, "%16.8f %16.8f  zlo zhi\n", lo[2]-pad, hi[2]+pad)
		return nil
	}
	if b.At(0, 1) != 0 || b.At(0, 2) != 0 || b.At(1, 2) != 0 {
		return &interchange.UnsupportedExportError{
			Format: "LAMMPS",
			Reason: "box vectors must be in lower-triangular form",
		}
	}
	fmt.Fprintf(bw, "%16.8f %16.8f  xlo xhi\n", 0.0, b.At(0, 0))
	fmt.Fprintf(bw, "%16.8f %16.8f  ylo yhi\n", 0.0, b.At(1, 1))
	fmt.Fprintf(bw, "%16.8f %16.8f  zlo zhi\n", 0.0, b.At(2, 2))
	if !b.IsRectangular() {
		fmt.Fprintf(bw, "%16.8f %16.8f %16.8f  xy xz yz\n", b.At(1, 0), b.At(2, 0), b.At(2, 1))
	}
	return nil
}

// WriteData writes the system as a LAMMPS data file for atom_style full
// and units real. The companion input-script settings come from
// InputPreamble.
func WriteData(w io.Writer, ic *interchange.Interchange) error {
	if ic == nil || ic.Topology == nil || ic.Topology.Len() == 0 {
		return fmt.Errorf("cannot write a data file for an empty system")
	}
	if len(ic.VirtualSiteList()) > 0 {
		return &interchange.UnsupportedExportError{
			Format: "LAMMPS",
			Reason: "virtual sites have no data-file representation",
		}
	}
	if err := ic.Validate(); err != nil {
		return err
	}
	vdw, err := ic.Collection(interchange.VdW)
	if err != nil {
		return err
	}
	es, err := ic.Collection(interchange.Electrostatics)
	if err != nil {
		return err
	}
	pos, err := ic.AtomPositions("write a LAMMPS data file")
	if err != nil {
		return err
	}

	d := &dataSet{}
	if err := d.addAtoms(ic.Topology, vdw, es); err != nil {
		return err
	}
	if err := d.addBonds(coll(ic, interchange.Bonds), coll(ic, interchange.Constraints)); err != nil {
		return err
	}
	if err := d.addAngles(coll(ic, interchange.Angles)); err != nil {
		return err
	}
	if err := d.addDihedrals(coll(ic, interchange.ProperTorsions)); err != nil {
		return err
	}
	if err := d.addImpropers(coll(ic, interchange.ImproperTorsions)); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "LAMMPS data file (units real), written by goff\n\n")
	fmt.Fprintf(bw, "%8d  atoms\n", d.natom)
	fmt.Fprintf(bw, "%8d  bonds\n", len(d.bonds)/3)
	fmt.Fprintf(bw, "%8d  angles\n", len(d.angles)/4)
	fmt.Fprintf(bw, "%8d  dihedrals\n", len(d.dihs)/5)
	fmt.Fprintf(bw, "%8d  impropers\n\n", len(d.imps)/5)
	fmt.Fprintf(bw, "%8d  atom types\n", len(d.types))
	fmt.Fprintf(bw, "%8d  bond types\n", len(d.bondTypes))
	fmt.Fprintf(bw, "%8d  angle types\n", len(d.angleTypes))
	fmt.Fprintf(bw, "%8d  dihedral types\n", len(d.dihTypes))
	fmt.Fprintf(bw, "%8d  improper types\n\n", len(d.impTypes))
	if err := boxBounds(bw, ic.Box, pos, d.natom); err != nil {
		return err
	}

	fmt.Fprintf(bw, "\nMasses\n\n")
	for i, t := range d.types {
		fmt.Fprintf(bw, "%d %12.6f  # %s\n", i+1, t.mass, t.name)
	}
	fmt.Fprintf(bw, "\nPair Coeffs\n\n")
	for i, t := range d.types {
		fmt.Fprintf(bw, "%d %14.8f %14.8f  # %s\n", i+1, t.eps, t.sigma, t.name)
	}
	if len(d.bondTypes) > 0 {
		fmt.Fprintf(bw, "\nBond Coeffs\n\n")
		for i, t := range d.bondTypes {
			fmt.Fprintf(bw, "%d %14.6f %12.6f\n", i+1, t.k, t.eq)
		}
	}
	if len(d.angleTypes) > 0 {
		fmt.Fprintf(bw, "\nAngle Coeffs\n\n")
		for i, t := range d.angleTypes {
			fmt.Fprintf(bw, "%d %14.6f %12.4f\n", i+1, t.k, t.eq)
		}
	}
	if len(d.dihTypes) > 0 {
		fmt.Fprintf(bw, "\nDihedral Coeffs\n\n")
		for i, t := range d.dihTypes {
			fmt.Fprintf(bw, "%d %14.6f %3d %6d %4.1f\n", i+1, t.k, t.n, t.d, 0.0)
		}
	}
	if len(d.impTypes) > 0 {
		fmt.Fprintf(bw, "\nImproper Coeffs\n\n")
		for i, t := range d.impTypes {
			fmt.Fprintf(bw, "%d %14.6f %3d %3d\n", i+1, t.k, t.d, t.n)
		}
	}

	fmt.Fprintf(bw, "\nAtoms # full\n\n")
	for i := 0; i < d.natom; i++ {
		v := pos.VecSlice(i)
		fmt.Fprintf(bw, "%d %d %d %12.8f %14.8f %14.8f %14.8f\n",
			i+1, d.molOf[i], d.typeOf[i], d.q[i], v[0], v[1], v[2])
	}
	if ic.Velocities != nil {
		fmt.Fprintf(bw, "\nVelocities\n\n")
		for i := 0; i < d.natom; i++ {
			v := ic.Velocities.VecSlice(i)
			fmt.Fprintf(bw, "%d %14.8f %14.8f %14.8f\n", i+1, v[0]*v2Fs, v[1]*v2Fs, v[2]*v2Fs)
		}
	}

	writeList := func(header string, stride int, vals []int) {
		if len(vals) == 0 {
			return
		}
		fmt.Fprintf(bw, "\n%s\n\n", header)
		id := 1
		for at := 0; at < len(vals); at += stride {
			fmt.Fprintf(bw, "%d", id)
			for k := 0; k < stride; k++ {
				fmt.Fprintf(bw, " %d", vals[at+k])
			}
			bw.WriteByte('\n')
			id++
		}
	}
	writeList("Bonds", 3, d.bonds)
	writeList("Angles", 4, d.angles)
	writeList("Dihedrals", 5, d.dihs)
	writeList("Impropers", 5, d.imps)
	return bw.Flush()
}

// WriteDataFile is WriteData into a named file.
func WriteDataFile(name string, ic *interchange.Interchange) error {
	fi, err := os.Create(name)
	if err != nil {
		return err
	}
	defer fi.Close()
	if err := WriteData(fi, ic); err != nil {
		return err
	}
	return fi.Close()
}

// InputPreamble returns the input-script settings a data file written by
// WriteData runs under: real units, the pair style and cutoffs, the
// bonded styles, and the special_bonds scaling that replaces explicit
// pair lists.
func InputPreamble(ic *interchange.Interchange) string {
	cutoff := 9.0
	mix := "arithmetic"
	lj := [3]float64{0, 0, 0.5}
	q := [3]float64{0, 0, 1 / 1.2}
	kspace := false
	periodic := ic != nil && ic.Box != nil
	if ic != nil {
		if c := coll(ic, interchange.VdW); c != nil && c.Nonbonded != nil {
			if c.Nonbonded.Cutoff > 0 {
				cutoff = c.Nonbonded.Cutoff
			}
			if c.Nonbonded.MixingRule == "geometric" {
				mix = "geometric"
			}
			lj = [3]float64{c.Nonbonded.Scale12, c.Nonbonded.Scale13, c.Nonbonded.Scale14}
		}
		if c := coll(ic, interchange.Electrostatics); c != nil && c.Nonbonded != nil {
			q = [3]float64{c.Nonbonded.Scale12, c.Nonbonded.Scale13, c.Nonbonded.Scale14}
			kspace = periodic && c.Nonbonded.PeriodicMethod == "pme"
		}
	}
	var b strings.Builder
	b.WriteString("units real\natom_style full\n")
	if periodic {
		b.WriteString("boundary p p p\n")
	} else {
		b.WriteString("boundary s s s\n")
	}
	if kspace {
		fmt.Fprintf(&b, "pair_style lj/cut/coul/long %.6g %.6g\n", cutoff, cutoff)
		b.WriteString("kspace_style pppm 1.0e-5\n")
	} else {
		fmt.Fprintf(&b, "pair_style lj/cut/coul/cut %.6g %.6g\n", cutoff, cutoff)
	}
	fmt.Fprintf(&b, "pair_modify mix %s\n", mix)
	b.WriteString("bond_style harmonic\nangle_style harmonic\ndihedral_style charmm\nimproper_style cvff\n")
	fmt.Fprintf(&b, "special_bonds lj %.6g %.6g %.6g coul %.6g %.6g %.6g\n",
		lj[0], lj[1], lj[2], q[0], q[1], q[2])
	return b.String()
}
