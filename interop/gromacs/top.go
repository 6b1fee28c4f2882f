/*
 * top.go, part of goff.
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

package gromacs

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/interchange"
)

// Exclusions are generated up to this many bonds away, matching the 1-4
// reach of the fudge factors.
const nrexcl = 3

// kcal/(mol A^2) to kJ/(mol nm^2). The half-k convention is the same on
// both sides, so the force constant only changes units.
const bondK2Gromacs = mol.Kcal2KJ * mol.Nm2A * mol.Nm2A

// A molUnit is one [moleculetype]: the first instance of a run of
// identical molecules, with the virtual sites that belong to it. Local
// particle numbering puts the molecule's atoms first and its sites after
// them, which is also the order the .gro file must follow.
type molUnit struct {
	name  string
	mol   *mol.Molecule
	off   int //global index of the unit's first atom
	count int
	sites []*interchange.VirtualSite
}

func (u *molUnit) owns(global int) bool {
	return global >= u.off && global < u.off+u.mol.Len()
}

// local translates a global particle index to the unit's 0-based local
// numbering. Virtual sites follow the atoms, in Particle order.
func (u *molUnit) local(global int) int {
	if u.owns(global) {
		return global - u.off
	}
	for i, s := range u.sites {
		if s.Particle == global {
			return u.mol.Len() + i
		}
	}
	return -1
}

// sitesOf returns the virtual sites whose parent atom falls in the global
// range [lo, hi), in Particle order.
func sitesOf(ic *interchange.Interchange, lo, hi int) []*interchange.VirtualSite {
	var ret []*interchange.VirtualSite
	for _, s := range ic.VirtualSiteList() {
		if len(s.Orientation) > 0 && s.Orientation[0] >= lo && s.Orientation[0] < hi {
			ret = append(ret, s)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Particle < ret[j].Particle })
	return ret
}

// units groups the topology into one molUnit per run of identical
// molecules, with unique GROMACS-safe names.
func units(ic *interchange.Interchange) []*molUnit {
	blocks := ic.Topology.GroupIdentical()
	used := make(map[string]bool)
	ret := make([]*molUnit, 0, len(blocks))
	for _, b := range blocks {
		off := ic.Topology.Offset(b.First)
		u := &molUnit{
			mol:   b.Mol,
			off:   off,
			count: b.Count,
			name:  uniqueName(cleanName(b.Mol.Name, "MOL"), used),
			sites: sitesOf(ic, off, off+b.Mol.Len()),
		}
		ret = append(ret, u)
	}
	return ret
}

// cleanName strips everything GROMACS cannot take in a name and falls
// back when nothing is left.
func cleanName(s, fallback string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return fallback
	}
	return out
}

func uniqueName(base string, used map[string]bool) string {
	name := base
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	used[name] = true
	return name
}

type atomType struct {
	name    string
	z       int
	mass    float64
	sigma   float64 //nm
	epsilon float64 //kJ/mol
	vsite   bool
}

// typeTable derives one atom type per distinct (vdW potential, element)
// pair and maps every particle to its type name. Virtual sites get their
// own dummy types.
func typeTable(ic *interchange.Interchange) ([]*atomType, []string, error) {
	vdw, err := ic.Collection(interchange.VdW)
	if err != nil {
		return nil, nil, err
	}
	type tkey struct {
		pk interchange.PotentialKey
		z  int
	}
	seen := make(map[tkey]string)
	used := make(map[string]bool)
	var types []*atomType
	byParticle := make([]string, ic.NParticles())
	nat := ic.NAtoms()
	for i := 0; i < ic.NParticles(); i++ {
		pk, ok := vdw.SlotMap[interchange.Key(i)]
		if !ok {
			return nil, nil, &interchange.MissingParametersError{Collection: interchange.VdW, Key: interchange.Key(i)}
		}
		var z int
		var mass float64
		if i < nat {
			at := ic.Topology.Atom(i)
			z, mass = at.Z, at.Mass
		}
		k := tkey{pk: pk, z: z}
		if name, ok := seen[k]; ok {
			byParticle[i] = name
			continue
		}
		pot, ok := vdw.Potentials[pk]
		if !ok {
			return nil, nil, fmt.Errorf("vdW slot of particle %d points at unknown potential %s", i, pk)
		}
		base := cleanName(pot.Label, "")
		if i >= nat {
			base = "VS"
		} else if base == "" {
			base = cleanName(pk.ID, "gf")
		}
		t := &atomType{
			name:    uniqueName(base, used),
			z:       z,
			mass:    mass,
			sigma:   pot.Parameters["sigma"] * mol.A2Nm,
			epsilon: pot.Parameters["epsilon"] * mol.Kcal2KJ,
			vsite:   i >= nat,
		}
		types = append(types, t)
		seen[k] = t.name
		byParticle[i] = t.name
	}
	return types, byParticle, nil
}

// topWriter carries what every section of one .top file needs.
type topWriter struct {
	ic          *interchange.Interchange
	byParticle  []string
	charges     map[int]float64
	bonds       *interchange.Collection
	angles      *interchange.Collection
	propers     *interchange.Collection
	impropers   *interchange.Collection
	constraints *interchange.Collection
}

func coll(ic *interchange.Interchange, name string) *interchange.Collection {
	c, err := ic.Collection(name)
	if err != nil {
		return nil
	}
	return c
}

// WriteTop writes the system as a GROMACS topology. One [moleculetype] is
// emitted per run of identical molecules, so a packed box of thousands of
// waters costs three lines of [atoms], not thousands. Bonds under a
// distance constraint appear in [constraints], not in [bonds].
func WriteTop(w io.Writer, ic *interchange.Interchange) error {
	if ic == nil || ic.Topology == nil || ic.Topology.Len() == 0 {
		return fmt.Errorf("cannot write a topology file for an empty system")
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
	types, byParticle, err := typeTable(ic)
	if err != nil {
		return err
	}
	t := &topWriter{
		ic:          ic,
		byParticle:  byParticle,
		charges:     es.Charges,
		bonds:       coll(ic, interchange.Bonds),
		angles:      coll(ic, interchange.Angles),
		propers:     coll(ic, interchange.ProperTorsions),
		impropers:   coll(ic, interchange.ImproperTorsions),
		constraints: coll(ic, interchange.Constraints),
	}
	us := units(ic)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "; Created by goff\n\n")
	comb := 2
	if vdw.Nonbonded != nil && vdw.Nonbonded.MixingRule == "geometric" {
		comb = 3
	}
	fmt.Fprintf(bw, "[ defaults ]\n")
	fmt.Fprintf(bw, "; nbfunc comb-rule gen-pairs   fudgeLJ   fudgeQQ\n")
	fmt.Fprintf(bw, "%6d %9d %9s %9.6g %9.6g\n\n", 1, comb, "yes", scale14(vdw, 0.5), scale14(es, 1/1.2))

	fmt.Fprintf(bw, "[ atomtypes ]\n")
	fmt.Fprintf(bw, "; name  at.num       mass     charge  ptype          sigma        epsilon\n")
	for _, at := range types {
		ptype := "A"
		if at.vsite {
			ptype = "D"
		}
		fmt.Fprintf(bw, "%-6s %7d %10.5f %10.5f %6s %14.8f %14.8f\n",
			at.name, at.z, at.mass, 0.0, ptype, at.sigma, at.epsilon)
	}
	fmt.Fprintf(bw, "\n")

	for _, u := range us {
		if err := t.moleculeType(bw, u); err != nil {
			return err
		}
	}

	names := make([]string, len(us))
	for i, u := range us {
		names[i] = u.name
	}
	fmt.Fprintf(bw, "[ system ]\n%s\n\n", strings.Join(names, " + "))
	fmt.Fprintf(bw, "[ molecules ]\n; name  count\n")
	for _, u := range us {
		fmt.Fprintf(bw, "%-10s %6d\n", u.name, u.count)
	}
	return bw.Flush()
}

// WriteTopFile is WriteTop into a named file.
func WriteTopFile(name string, ic *interchange.Interchange) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := WriteTop(f, ic); err != nil {
		return err
	}
	return f.Close()
}

func scale14(c *interchange.Collection, fallback float64) float64 {
	if c == nil || c.Nonbonded == nil {
		return fallback
	}
	return c.Nonbonded.Scale14
}

func (t *topWriter) moleculeType(bw *bufio.Writer, u *molUnit) error {
	fmt.Fprintf(bw, "[ moleculetype ]\n; name  nrexcl\n%-10s %3d\n\n", u.name, nrexcl)
	section(bw, "atoms", t.atomLines(u))
	lines, err := t.bondLines(u)
	if err != nil {
		return err
	}
	section(bw, "bonds", lines)
	section(bw, "pairs", pairLines(u))
	if lines, err = t.angleLines(u); err != nil {
		return err
	}
	section(bw, "angles", lines)
	if lines, err = t.torsionLines(u, t.propers, 9); err != nil {
		return err
	}
	section(bw, "dihedrals", lines)
	if lines, err = t.torsionLines(u, t.impropers, 4); err != nil {
		return err
	}
	section(bw, "dihedrals", lines)
	if lines, err = t.constraintLines(u); err != nil {
		return err
	}
	section(bw, "constraints", lines)
	v2, v3, err := vsiteLines(u)
	if err != nil {
		return err
	}
	section(bw, "virtual_sites2", v2)
	section(bw, "virtual_sites3", v3)
	section(bw, "exclusions", exclusionLines(u))
	return nil
}

func section(bw *bufio.Writer, header string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(bw, "[ %s ]\n", header)
	for _, l := range lines {
		bw.WriteString(l)
	}
	bw.WriteString("\n")
}

// slotsOf filters a collection down to the slots owned by the unit, in
// canonical order. Interactions never span molecules, so checking the
// first atom is enough.
func slotsOf(c *interchange.Collection, u *molUnit) []interchange.TopologyKey {
	if c == nil {
		return nil
	}
	var ret []interchange.TopologyKey
	for _, k := range c.Slots() {
		if u.owns(k.Atoms[0]) {
			ret = append(ret, k)
		}
	}
	return ret
}

func (t *topWriter) atomLines(u *molUnit) []string {
	n := u.mol.Len()
	lines := make([]string, 0, n+len(u.sites))
	res := cleanName(u.mol.Name, u.name)
	for i := 0; i < n; i++ {
		at := u.mol.Atoms[i]
		name := at.Name
		if name == "" {
			name = fmt.Sprintf("%s%d", at.Symbol, i+1)
		}
		rname := at.MolName
		if rname == "" {
			rname = res
		}
		lines = append(lines, fmt.Sprintf("%6d %-8s %6d %-6s %-6s %6d %10.6f %10.5f\n",
			i+1, t.byParticle[u.off+i], 1, crop(rname, 5), crop(name, 5), i+1,
			t.charges[u.off+i], at.Mass))
	}
	for si, s := range u.sites {
		lines = append(lines, fmt.Sprintf("%6d %-8s %6d %-6s %-6s %6d %10.6f %10.5f\n",
			n+si+1, t.byParticle[s.Particle], 1, crop(res, 5), fmt.Sprintf("VS%d", si+1), n+si+1,
			t.charges[s.Particle], 0.0))
	}
	return lines
}

func crop(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func (t *topWriter) bondLines(u *molUnit) ([]string, error) {
	var lines []string
	for _, k := range slotsOf(t.bonds, u) {
		if t.constraints != nil && t.constraints.HasSlot(interchange.BondKey(k.Atoms[0], k.Atoms[1])) {
			continue
		}
		p, err := t.bonds.Parameters(k)
		if err != nil {
			return nil, err
		}
		lines = append(lines, fmt.Sprintf("%5d %5d %5d %12.6f %14.3f\n",
			u.local(k.Atoms[0])+1, u.local(k.Atoms[1])+1, 1,
			p["length"]*mol.A2Nm, p["k"]*bondK2Gromacs))
	}
	return lines, nil
}

// pairLines lists the 1-4 pairs; the parameters come from gen-pairs and
// the fudge factors in [defaults].
func pairLines(u *molUnit) []string {
	var lines []string
	for _, p := range u.mol.Pairs(3) {
		lines = append(lines, fmt.Sprintf("%5d %5d %5d\n", p[0]+1, p[1]+1, 1))
	}
	return lines
}

func (t *topWriter) angleLines(u *molUnit) ([]string, error) {
	var lines []string
	for _, k := range slotsOf(t.angles, u) {
		p, err := t.angles.Parameters(k)
		if err != nil {
			return nil, err
		}
		lines = append(lines, fmt.Sprintf("%5d %5d %5d %5d %12.4f %12.5f\n",
			u.local(k.Atoms[0])+1, u.local(k.Atoms[1])+1, u.local(k.Atoms[2])+1, 1,
			p["angle"]*mol.Rad2Deg, p["k"]*mol.Kcal2KJ))
	}
	return lines, nil
}

// torsionLines writes one line per cosine term; GROMACS adds up repeated
// funct-9 lines over the same four atoms, which is exactly the multi-term
// torsion semantics of the source field.
func (t *topWriter) torsionLines(u *molUnit, c *interchange.Collection, funct int) ([]string, error) {
	if c == nil {
		return nil, nil
	}
	var lines []string
	for _, k := range slotsOf(c, u) {
		p, err := c.Parameters(k)
		if err != nil {
			return nil, err
		}
		lines = append(lines, fmt.Sprintf("%5d %5d %5d %5d %5d %10.2f %12.5f %4d\n",
			u.local(k.Atoms[0])+1, u.local(k.Atoms[1])+1, u.local(k.Atoms[2])+1, u.local(k.Atoms[3])+1,
			funct, p["phase"]*mol.Rad2Deg, p["k"]*mol.Kcal2KJ, int(math.Round(p["periodicity"]))))
	}
	return lines, nil
}

// constraintLines writes funct 1 for constrained pairs that are chemical
// bonds, so they still generate exclusions, and funct 2 for the rest
// (the H-H edge of a rigid water).
func (t *topWriter) constraintLines(u *molUnit) ([]string, error) {
	var lines []string
	for _, k := range slotsOf(t.constraints, u) {
		p, err := t.constraints.Parameters(k)
		if err != nil {
			return nil, err
		}
		li, lj := u.local(k.Atoms[0]), u.local(k.Atoms[1])
		funct := 2
		if bonded(u.mol, li, lj) {
			funct = 1
		}
		lines = append(lines, fmt.Sprintf("%5d %5d %5d %12.6f\n",
			li+1, lj+1, funct, p["distance"]*mol.A2Nm))
	}
	return lines, nil
}

func bonded(m *mol.Molecule, i, j int) bool {
	for _, b := range m.Atoms[i].Bonds {
		if b.At1.Index == j || b.At2.Index == j {
			return true
		}
	}
	return false
}

// vsiteLines expresses site positions in the GROMACS linear-combination
// forms. The stored weights already sum to 1 with the parent first, so
// funct 1 coefficients read off directly.
func vsiteLines(u *molUnit) (v2, v3 []string, err error) {
	for _, s := range u.sites {
		site := u.local(s.Particle) + 1
		switch len(s.Orientation) {
		case 2:
			v2 = append(v2, fmt.Sprintf("%5d %5d %5d %5d %12.6f\n",
				site, u.local(s.Orientation[0])+1, u.local(s.Orientation[1])+1, 1, s.Weights[1]))
		case 3:
			v3 = append(v3, fmt.Sprintf("%5d %5d %5d %5d %5d %12.6f %12.6f\n",
				site, u.local(s.Orientation[0])+1, u.local(s.Orientation[1])+1,
				u.local(s.Orientation[2])+1, 1, s.Weights[1], s.Weights[2]))
		default:
			return nil, nil, &interchange.UnsupportedExportError{
				Format: "GROMACS",
				Reason: fmt.Sprintf("virtual site over %d atoms", len(s.Orientation)),
			}
		}
	}
	return v2, v3, nil
}

// exclusionLines gives each virtual site the exclusions of its parent
// atom: every atom within nrexcl bonds of the parent, the parent itself,
// and any sibling site anchored inside that set.
func exclusionLines(u *molUnit) []string {
	if len(u.sites) == 0 {
		return nil
	}
	seps := u.mol.BondSeparations(nrexcl)
	var lines []string
	for _, s := range u.sites {
		parent := s.Orientation[0] - u.off
		excl := map[int]bool{parent: true}
		for pair := range seps {
			if pair[0] == parent {
				excl[pair[1]] = true
			} else if pair[1] == parent {
				excl[pair[0]] = true
			}
		}
		targets := make([]int, 0, len(excl)+len(u.sites))
		for a := range excl {
			targets = append(targets, a)
		}
		for _, o := range u.sites {
			if o != s && excl[o.Orientation[0]-u.off] {
				targets = append(targets, u.local(o.Particle))
			}
		}
		sort.Ints(targets)
		var b strings.Builder
		fmt.Fprintf(&b, "%5d", u.local(s.Particle)+1)
		for _, a := range targets {
			fmt.Fprintf(&b, " %5d", a+1)
		}
		b.WriteString("\n")
		lines = append(lines, b.String())
	}
	return lines
}
