/*
 * prmtop.go, part of goff.
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

package amber

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/interchange"
	"github.com/imolina/goff/xyz"
)

// fortran emits the three fixed record layouts a prmtop is made of:
// 20 strings of 4 characters, 10 integers of 8 digits, or 5 floats in
// E16.8 per line. Empty sections still get one blank line, which is what
// the Amber tools themselves write.
type fortran struct {
	bw *bufio.Writer
}

func (f *fortran) flag(name, format string) {
	fmt.Fprintf(f.bw, "%%FLAG %s\n%%FORMAT(%s)\n", name, format)
}

func (f *fortran) ints(name string, vals []int) {
	f.flag(name, "10I8")
	if len(vals) == 0 {
		f.bw.WriteByte('\n')
		return
	}
	for i, v := range vals {
		fmt.Fprintf(f.bw, "%8d", v)
		if (i+1)%10 == 0 {
			f.bw.WriteByte('\n')
		}
	}
	if len(vals)%10 != 0 {
		f.bw.WriteByte('\n')
	}
}

func (f *fortran) floats(name string, vals []float64) {
	f.flag(name, "5E16.8")
	if len(vals) == 0 {
		f.bw.WriteByte('\n')
		return
	}
	for i, v := range vals {
		fmt.Fprintf(f.bw, "%16.8E", v)
		if (i+1)%5 == 0 {
			f.bw.WriteByte('\n')
		}
	}
	if len(vals)%5 != 0 {
		f.bw.WriteByte('\n')
	}
}

func (f *fortran) strs(name string, vals []string) {
	f.flag(name, "20a4")
	if len(vals) == 0 {
		f.bw.WriteByte('\n')
		return
	}
	for i, v := range vals {
		fmt.Fprintf(f.bw, "%-4s", crop(v, 4))
		if (i+1)%20 == 0 {
			f.bw.WriteByte('\n')
		}
	}
	if len(vals)%20 != 0 {
		f.bw.WriteByte('\n')
	}
}

func crop(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// amberName keeps the characters a 4-column type name can carry.
func amberName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '+' || r == '*' {
			b.WriteRune(r)
		}
		if b.Len() == 4 {
			break
		}
	}
	return b.String()
}

// unique4 disambiguates type names within the 4-character budget.
func unique4(base string, used map[string]bool) string {
	base = amberName(base)
	if base == "" {
		base = "gf"
	}
	if !used[base] {
		used[base] = true
		return base
	}
	for n := 2; ; n++ {
		suf := fmt.Sprint(n)
		head := base
		if len(head)+len(suf) > 4 {
			head = head[:4-len(suf)]
		}
		cand := head + suf
		if !used[cand] {
			used[cand] = true
			return cand
		}
	}
}

// paramTable hands out 1-based parameter-set indexes in first-seen order.
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

type ljType struct {
	name  string
	sigma float64
	eps   float64
}

// prmtopData is the whole file, assembled before any byte is written so
// the POINTERS block can be computed from the finished arrays.
type prmtopData struct {
	natom     int
	names     []string
	charges   []float64 //already scaled by AmberQ
	zs        []int
	masses    []float64
	typeIdx   []int //per atom, 1-based
	typeNames []string

	types   []ljType
	parmIdx []int
	acoef   []float64
	bcoef   []float64

	resLabels []string
	resPtrs   []int
	nmxrs     int

	bondK, bondR     []float64
	bondsH, bondsNoH []int

	angleK, angleT     []float64
	anglesH, anglesNoH []int

	dihK, dihN, dihPhase []float64
	dihSCEE, dihSCNB     []float64
	dihsH, dihsNoH       []int

	nexcl []int
	excl  []int
}

func coll(ic *interchange.Interchange, name string) *interchange.Collection {
	c, err := ic.Collection(name)
	if err != nil {
		return nil
	}
	return c
}

func inverseScale(c *interchange.Collection, fallback float64) float64 {
	if c == nil || c.Nonbonded == nil || c.Nonbonded.Scale14 <= 0 {
		return fallback
	}
	return 1 / c.Nonbonded.Scale14
}

// globalSeparations merges the per-molecule bond-separation maps onto
// global atom indexes. Pairs are ordered, i < j.
func globalSeparations(top *mol.Topology, maxSep int) map[[2]int]int {
	out := make(map[[2]int]int)
	off := 0
	for _, m := range top.Mols {
		for p, d := range m.BondSeparations(maxSep) {
			out[[2]int{p[0] + off, p[1] + off}] = d
		}
		off += m.Len()
	}
	return out
}

func ljTable(top *mol.Topology, vdw *interchange.Collection) ([]ljType, []int, []string, error) {
	n := top.Len()
	var types []ljType
	byPK := make(map[interchange.PotentialKey]int)
	used := make(map[string]bool)
	typeIdx := make([]int, n)
	typeNames := make([]string, n)
	for i := 0; i < n; i++ {
		pk, ok := vdw.SlotMap[interchange.Key(i)]
		if !ok {
			return nil, nil, nil, &interchange.MissingParametersError{
				Collection: interchange.VdW,
				Key:        interchange.Key(i),
			}
		}
		ti, ok := byPK[pk]
		if !ok {
			pot := vdw.Potentials[pk]
			if pot == nil {
				return nil, nil, nil, fmt.Errorf("vdW slot of atom %d points at unknown potential %s", i, pk)
			}
			base := pot.Label
			if base == "" {
				base = pk.ID
			}
			types = append(types, ljType{
				name:  unique4(base, used),
				sigma: pot.Parameters["sigma"],
				eps:   pot.Parameters["epsilon"],
			})
			ti = len(types) - 1
			byPK[pk] = ti
		}
		typeIdx[i] = ti + 1
		typeNames[i] = types[ti].name
	}
	return types, typeIdx, typeNames, nil
}

// ljCoefficients fills the triangular A/B tables in the canonical Amber
// pair order (1,1), (1,2), (2,2), (1,3), ... and the NTYPES x NTYPES
// index matrix pointing into them.
func (d *prmtopData) ljCoefficients(rule string) {
	nt := len(d.types)
	d.parmIdx = make([]int, nt*nt)
	n := 0
	for j := 0; j < nt; j++ {
		for i := 0; i <= j; i++ {
			sigma := (d.types[i].sigma + d.types[j].sigma) / 2
			if rule == "geometric" {
				sigma = math.Sqrt(d.types[i].sigma * d.types[j].sigma)
			}
			eps := math.Sqrt(d.types[i].eps * d.types[j].eps)
			s6 := math.Pow(sigma, 6)
			d.acoef = append(d.acoef, 4*eps*s6*s6)
			d.bcoef = append(d.bcoef, 4*eps*s6)
			n++
			d.parmIdx[i*nt+j] = n
			d.parmIdx[j*nt+i] = n
		}
	}
}

func (d *prmtopData) codeBond(i, j, idx int) {
	e := []int{3 * i, 3 * j, idx}
	if d.zs[i] == 1 || d.zs[j] == 1 {
		d.bondsH = append(d.bondsH, e...)
	} else {
		d.bondsNoH = append(d.bondsNoH, e...)
	}
}

// addBonds writes the bond arrays. A constrained pair that is also a
// parametrized bond keeps its force constant, since Amber restrains such
// pairs at run time through SHAKE rather than in the topology. A
// constraint with no bond behind it, like the H-H edge of a rigid water,
// becomes a zero-constant bond so SHAKE still sees the distance.
func (d *prmtopData) addBonds(bonds, constraints *interchange.Collection) error {
	t := newParamTable()
	if bonds != nil {
		for _, k := range bonds.Slots() {
			pot, err := bonds.Potential(k)
			if err != nil {
				return err
			}
			idx, isNew := t.add(bonds.SlotMap[k])
			if isNew {
				d.bondK = append(d.bondK, pot.Parameters["k"]/2)
				d.bondR = append(d.bondR, pot.Parameters["length"])
			}
			d.codeBond(k.Atoms[0], k.Atoms[1], idx)
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
			pk := constraints.SlotMap[k]
			idx, isNew := t.add(interchange.PKey("constraint " + pk.ID))
			if isNew {
				d.bondK = append(d.bondK, 0)
				d.bondR = append(d.bondR, p["distance"])
			}
			d.codeBond(k.Atoms[0], k.Atoms[1], idx)
		}
	}
	return nil
}

func (d *prmtopData) addAngles(angles *interchange.Collection) error {
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
			d.angleK = append(d.angleK, pot.Parameters["k"]/2)
			d.angleT = append(d.angleT, pot.Parameters["angle"])
		}
		i, j, l := k.Atoms[0], k.Atoms[1], k.Atoms[2]
		e := []int{3 * i, 3 * j, 3 * l, idx}
		if d.zs[i] == 1 || d.zs[j] == 1 || d.zs[l] == 1 {
			d.anglesH = append(d.anglesH, e...)
		} else {
			d.anglesNoH = append(d.anglesNoH, e...)
		}
	}
	return nil
}

// codeDihedral appends one torsion entry. Atoms are stored multiplied by
// three; a negative third atom suppresses the 1-4 pair of the torsion, a
// negative fourth marks an improper. Atom 0 cannot carry a sign, so the
// tuple is reversed when it would land on a negated slot, which leaves
// the dihedral angle unchanged.
func (d *prmtopData) codeDihedral(i, j, k, l, idx int, skip14, improper bool) {
	if (skip14 && k == 0) || (improper && l == 0) {
		i, j, k, l = l, k, j, i
	}
	e3, e4 := 3*k, 3*l
	if skip14 {
		e3 = -e3
	}
	if improper {
		e4 = -e4
	}
	e := []int{3 * i, 3 * j, e3, e4, idx}
	if d.zs[i] == 1 || d.zs[j] == 1 || d.zs[k] == 1 || d.zs[l] == 1 {
		d.dihsH = append(d.dihsH, e...)
	} else {
		d.dihsNoH = append(d.dihsNoH, e...)
	}
}

// addDihedrals writes proper and improper torsions. Each 1-4 pair must be
// counted exactly once, so only the first torsion over a pair of end
// atoms three bonds apart computes it; every further term or path over
// the same ends gets the negative third index. Impropers go in with the
// central atom moved from second to third, the Amber convention, which
// swaps the two plane-defining triplets and so changes nothing.
func (d *prmtopData) addDihedrals(propers, impropers *interchange.Collection, seps map[[2]int]int, scee, scnb float64) error {
	t := newParamTable()
	addSet := func(pk interchange.PotentialKey, pot *interchange.Potential) int {
		idx, isNew := t.add(pk)
		if isNew {
			d.dihK = append(d.dihK, pot.Parameters["k"])
			d.dihN = append(d.dihN, pot.Parameters["periodicity"])
			d.dihPhase = append(d.dihPhase, pot.Parameters["phase"])
			d.dihSCEE = append(d.dihSCEE, scee)
			d.dihSCNB = append(d.dihSCNB, scnb)
		}
		return idx
	}
	seen := make(map[[2]int]bool)
	if propers != nil {
		for _, k := range propers.Slots() {
			pot, err := propers.Potential(k)
			if err != nil {
				return err
			}
			idx := addSet(propers.SlotMap[k], pot)
			a := k.Atoms
			ends := [2]int{a[0], a[3]}
			if ends[1] < ends[0] {
				ends[0], ends[1] = ends[1], ends[0]
			}
			skip14 := true
			if !seen[ends] && seps[ends] == 3 {
				skip14 = false
				seen[ends] = true
			}
			d.codeDihedral(a[0], a[1], a[2], a[3], idx, skip14, false)
		}
	}
	if impropers != nil {
		for _, k := range impropers.Slots() {
			pot, err := impropers.Potential(k)
			if err != nil {
				return err
			}
			pk := impropers.SlotMap[k]
			idx := addSet(interchange.PotentialKey{ID: "improper " + pk.ID, Mult: pk.Mult}, pot)
			a := k.Atoms
			//stored with the central atom second
			d.codeDihedral(a[0], a[2], a[1], a[3], idx, true, true)
		}
	}
	return nil
}

// addExclusions fills NUMBER_EXCLUDED_ATOMS and EXCLUDED_ATOMS_LIST: per
// atom, the higher-numbered atoms within three bonds, 1-based and sorted.
// An atom with nothing to exclude contributes a single zero, as the
// format demands.
func (d *prmtopData) addExclusions(seps map[[2]int]int) {
	perAtom := make([][]int, d.natom)
	for p := range seps {
		perAtom[p[0]] = append(perAtom[p[0]], p[1]+1)
	}
	for i := 0; i < d.natom; i++ {
		l := perAtom[i]
		if len(l) == 0 {
			d.nexcl = append(d.nexcl, 1)
			d.excl = append(d.excl, 0)
			continue
		}
		sort.Ints(l)
		d.nexcl = append(d.nexcl, len(l))
		d.excl = append(d.excl, l...)
	}
}

func assemble(ic *interchange.Interchange) (*prmtopData, error) {
	top := ic.Topology
	vdw, err := ic.Collection(interchange.VdW)
	if err != nil {
		return nil, err
	}
	es, err := ic.Collection(interchange.Electrostatics)
	if err != nil {
		return nil, err
	}

	d := &prmtopData{natom: top.Len()}
	off := 0
	for _, m := range top.Mols {
		label := m.Name
		if m.Len() > 0 && m.Atoms[0].MolName != "" {
			label = m.Atoms[0].MolName
		}
		if label == "" {
			label = "MOL"
		}
		d.resLabels = append(d.resLabels, label)
		d.resPtrs = append(d.resPtrs, off+1)
		if m.Len() > d.nmxrs {
			d.nmxrs = m.Len()
		}
		for i := 0; i < m.Len(); i++ {
			at := m.Atoms[i]
			name := at.Name
			if name == "" {
				name = fmt.Sprintf("%s%d", at.Symbol, i+1)
			}
			d.names = append(d.names, name)
			d.zs = append(d.zs, at.Z)
			d.masses = append(d.masses, at.Mass)
			d.charges = append(d.charges, es.Charges[off+i]*mol.AmberQ)
		}
		off += m.Len()
	}

	types, typeIdx, typeNames, err := ljTable(top, vdw)
	if err != nil {
		return nil, err
	}
	d.types, d.typeIdx, d.typeNames = types, typeIdx, typeNames
	rule := ""
	if vdw.Nonbonded != nil {
		rule = vdw.Nonbonded.MixingRule
	}
	d.ljCoefficients(rule)

	seps := globalSeparations(top, 3)
	if err := d.addBonds(coll(ic, interchange.Bonds), coll(ic, interchange.Constraints)); err != nil {
		return nil, err
	}
	if err := d.addAngles(coll(ic, interchange.Angles)); err != nil {
		return nil, err
	}
	scee := inverseScale(es, 1.2)
	scnb := inverseScale(vdw, 2.0)
	if err := d.addDihedrals(coll(ic, interchange.ProperTorsions), coll(ic, interchange.ImproperTorsions), seps, scee, scnb); err != nil {
		return nil, err
	}
	d.addExclusions(seps)
	return d, nil
}

func ifBox(b *xyz.Box) int {
	if b == nil {
		return 0
	}
	if b.IsRectangular() {
		return 1
	}
	ang := b.Angles()
	const oct = 109.4712206
	if math.Abs(ang[0]-oct) < 1e-4 && math.Abs(ang[1]-oct) < 1e-4 && math.Abs(ang[2]-oct) < 1e-4 {
		return 2
	}
	return 3
}

func titleOf(top *mol.Topology) string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range top.Mols {
		n := m.Name
		if n == "" {
			n = "MOL"
		}
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "goff system"
	}
	return crop(strings.Join(names, " + "), 80)
}

// WritePrmtop writes the system as an Amber topology. Distances are
// already in angstrom and energies in kcal/mol, so only the charges and
// the half-constant conventions change at this boundary.
func WritePrmtop(w io.Writer, ic *interchange.Interchange) error {
	if ic == nil || ic.Topology == nil || ic.Topology.Len() == 0 {
		return fmt.Errorf("cannot write a prmtop for an empty system")
	}
	if len(ic.VirtualSiteList()) > 0 {
		return &interchange.UnsupportedExportError{
			Format: "Amber",
			Reason: "virtual sites have no prmtop representation",
		}
	}
	if err := ic.Validate(); err != nil {
		return err
	}
	d, err := assemble(ic)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	f := &fortran{bw: bw}
	fmt.Fprintf(bw, "%%VERSION  VERSION_STAMP = V0001.000  DATE = %s\n",
		time.Now().Format("01/02/06  15:04:05"))
	f.flag("TITLE", "20a4")
	fmt.Fprintf(bw, "%s\n", titleOf(ic.Topology))

	nbonh := len(d.bondsH) / 3
	mbona := len(d.bondsNoH) / 3
	ntheth := len(d.anglesH) / 4
	mtheta := len(d.anglesNoH) / 4
	nphih := len(d.dihsH) / 5
	mphia := len(d.dihsNoH) / 5
	pointers := []int{
		d.natom, len(d.types), nbonh, mbona, ntheth, mtheta, nphih, mphia, 0, 0,
		len(d.excl), len(d.resLabels), mbona, mtheta, mphia,
		len(d.bondK), len(d.angleK), len(d.dihK), len(d.types), 0,
		0, 0, 0, 0, 0, 0, 0, ifBox(ic.Box), d.nmxrs, 0,
		0,
	}
	f.ints("POINTERS", pointers)

	f.strs("ATOM_NAME", d.names)
	f.floats("CHARGE", d.charges)
	f.ints("ATOMIC_NUMBER", d.zs)
	f.floats("MASS", d.masses)
	f.ints("ATOM_TYPE_INDEX", d.typeIdx)
	f.ints("NUMBER_EXCLUDED_ATOMS", d.nexcl)
	f.ints("NONBONDED_PARM_INDEX", d.parmIdx)
	f.strs("RESIDUE_LABEL", d.resLabels)
	f.ints("RESIDUE_POINTER", d.resPtrs)
	f.floats("BOND_FORCE_CONSTANT", d.bondK)
	f.floats("BOND_EQUIL_VALUE", d.bondR)
	f.floats("ANGLE_FORCE_CONSTANT", d.angleK)
	f.floats("ANGLE_EQUIL_VALUE", d.angleT)
	f.floats("DIHEDRAL_FORCE_CONSTANT", d.dihK)
	f.floats("DIHEDRAL_PERIODICITY", d.dihN)
	f.floats("DIHEDRAL_PHASE", d.dihPhase)
	f.floats("SCEE_SCALE_FACTOR", d.dihSCEE)
	f.floats("SCNB_SCALE_FACTOR", d.dihSCNB)
	f.floats("SOLTY", make([]float64, len(d.types)))
	f.floats("LENNARD_JONES_ACOEF", d.acoef)
	f.floats("LENNARD_JONES_BCOEF", d.bcoef)
	f.ints("BONDS_INC_HYDROGEN", d.bondsH)
	f.ints("BONDS_WITHOUT_HYDROGEN", d.bondsNoH)
	f.ints("ANGLES_INC_HYDROGEN", d.anglesH)
	f.ints("ANGLES_WITHOUT_HYDROGEN", d.anglesNoH)
	f.ints("DIHEDRALS_INC_HYDROGEN", d.dihsH)
	f.ints("DIHEDRALS_WITHOUT_HYDROGEN", d.dihsNoH)
	f.ints("EXCLUDED_ATOMS_LIST", d.excl)
	f.floats("HBOND_ACOEF", nil)
	f.floats("HBOND_BCOEF", nil)
	f.floats("HBCUT", nil)
	f.strs("AMBER_ATOM_TYPE", d.typeNames)
	tree := make([]string, d.natom)
	for i := range tree {
		tree[i] = "BLA"
	}
	f.strs("TREE_CHAIN_CLASSIFICATION", tree)
	f.ints("JOIN_ARRAY", make([]int, d.natom))
	f.ints("IROTAT", make([]int, d.natom))

	if ic.Box != nil {
		nspm := ic.Topology.NMols()
		f.ints("SOLVENT_POINTERS", []int{len(d.resLabels), nspm, nspm + 1})
		perMol := make([]int, nspm)
		for i, m := range ic.Topology.Mols {
			perMol[i] = m.Len()
		}
		f.ints("ATOMS_PER_MOLECULE", perMol)
		l, ang := ic.Box.Lengths(), ic.Box.Angles()
		f.floats("BOX_DIMENSIONS", []float64{ang[1], l[0], l[1], l[2]})
	}
	return bw.Flush()
}

// WritePrmtopFile is WritePrmtop into a named file.
func WritePrmtopFile(name string, ic *interchange.Interchange) error {
	fi, err := os.Create(name)
	if err != nil {
		return err
	}
	defer fi.Close()
	if err := WritePrmtop(fi, ic); err != nil {
		return err
	}
	return fi.Close()
}
