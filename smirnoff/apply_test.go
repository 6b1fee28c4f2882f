package smirnoff

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/interchange"
	"github.com/imolina/goff/xyz"
)

func ethanol() *mol.Molecule {
	M := mol.NewMolecule("ethanol")
	for _, s := range []string{"C", "C", "O", "H", "H", "H", "H", "H", "H"} {
		M.AddAtom(&mol.Atom{Symbol: s})
	}
	for _, b := range [][2]int{{0, 1}, {1, 2}, {0, 3}, {0, 4}, {0, 5}, {1, 6}, {1, 7}, {2, 8}} {
		if err := M.AddBond(b[0], b[1], 1); err != nil {
			panic(err)
		}
	}
	return M
}

func water() *mol.Molecule {
	M := mol.NewMolecule("water")
	M.AddAtom(&mol.Atom{Symbol: "O"})
	M.AddAtom(&mol.Atom{Symbol: "H"})
	M.AddAtom(&mol.Atom{Symbol: "H"})
	M.AddBond(0, 1, 1)
	M.AddBond(0, 2, 1)
	return M
}

// water in its equilibrium geometry, oxygen at the origin.
func waterWithCoords() *mol.Molecule {
	M := water()
	crd, err := xyz.NewMatrix([]float64{
		0, 0, 0,
		0.9572, 0, 0,
		-0.23995, 0.92664, 0,
	})
	if err != nil {
		panic(err)
	}
	M.Coords = crd
	return M
}

func acetate() *mol.Molecule {
	M := mol.NewMolecule("acetate")
	for _, s := range []string{"C", "C", "O", "O", "H", "H", "H"} {
		M.AddAtom(&mol.Atom{Symbol: s})
	}
	M.AddBond(0, 1, 1)
	M.AddBond(1, 2, 2)
	M.AddBond(1, 3, 1)
	M.AddBond(0, 4, 1)
	M.AddBond(0, 5, 1)
	M.AddBond(0, 6, 1)
	M.Atoms[3].FormalCharge = -1
	return M
}

func formaldehyde(coOrder float64) *mol.Molecule {
	M := mol.NewMolecule("formaldehyde")
	for _, s := range []string{"C", "O", "H", "H"} {
		M.AddAtom(&mol.Atom{Symbol: s})
	}
	M.AddBond(0, 1, coOrder)
	M.AddBond(0, 2, 1)
	M.AddBond(0, 3, 1)
	return M
}

func loadFF(Te *testing.T, text string) *ForceField {
	Te.Helper()
	ff, err := LoadReader(strings.NewReader(text))
	if err != nil {
		Te.Fatalf("LoadReader: %v", err)
	}
	return ff
}

func warnCollector(dst *[]string) func(string, ...interface{}) {
	return func(format string, args ...interface{}) {
		*dst = append(*dst, fmt.Sprintf(format, args...))
	}
}

func checkParam(Te *testing.T, got map[string]float64, name string, want, tol float64) {
	Te.Helper()
	v, ok := got[name]
	if !ok {
		Te.Errorf("parameter %s missing from %v", name, got)
		return
	}
	if math.Abs(v-want) > tol {
		Te.Errorf("parameter %s = %g, want %g", name, v, want)
	}
}

func TestApplyMiniField(Te *testing.T) {
	ff := loadMini(Te)
	top := mol.NewTopology(water(), water(), ethanol())
	var warns []string
	opts := &Options{Box: xyz.Cubic(25), Warnf: warnCollector(&warns)}
	ic, err := Apply(ff, top, opts)
	if err != nil {
		Te.Fatalf("Apply: %v", err)
	}
	wantNames := []string{"Constraints", "Bonds", "Angles", "ProperTorsions",
		"ImproperTorsions", "vdW", "Electrostatics"}
	names := ic.CollectionNames()
	if len(names) != len(wantNames) {
		Te.Fatalf("collections %v, want %v", names, wantNames)
	}
	for i := range wantNames {
		if names[i] != wantNames[i] {
			Te.Errorf("collection %d is %s, want %s", i, names[i], wantNames[i])
		}
	}

	counts := map[string]int{
		interchange.Bonds:          12,
		interchange.Angles:         15,
		interchange.ProperTorsions: 14,
		interchange.Constraints:    6,
		interchange.VdW:            15,
	}
	for name, want := range counts {
		c, err := ic.Collection(name)
		if err != nil {
			Te.Fatalf("Collection(%s): %v", name, err)
		}
		if c.NSlots() != want {
			Te.Errorf("%s has %d slots, want %d", name, c.NSlots(), want)
		}
	}

	// second water: the specific water line must have beaten the generic O-H one
	b, err := ic.GetParameters(interchange.Bonds, 3, 4)
	if err != nil {
		Te.Fatalf("GetParameters(Bonds, 3, 4): %v", err)
	}
	checkParam(Te, b, "length", 0.9572, 1e-12)
	checkParam(Te, b, "k", 1100, 1e-12)
	if rev, err := ic.GetParameters(interchange.Bonds, 4, 3); err != nil || rev["length"] != b["length"] {
		Te.Errorf("reversed bond lookup broken: %v %v", rev, err)
	}
	// ethanol hydroxyl keeps the generic parameter
	b, err = ic.GetParameters(interchange.Bonds, 8, 14)
	if err != nil {
		Te.Fatalf("GetParameters(Bonds, 8, 14): %v", err)
	}
	checkParam(Te, b, "length", 0.97, 1e-12)

	a, err := ic.GetParameters(interchange.Angles, 4, 3, 5)
	if err != nil {
		Te.Fatalf("GetParameters(Angles, 4, 3, 5): %v", err)
	}
	checkParam(Te, a, "angle", 104.52*math.Pi/180, 1e-9)
	checkParam(Te, a, "k", 90, 1e-12)

	// H-C-O-H torsion of ethanol carries two cosine terms
	t, err := ic.GetParameters(interchange.ProperTorsions, 12, 7, 8, 14)
	if err != nil {
		Te.Fatalf("GetParameters(ProperTorsions, 12, 7, 8, 14): %v", err)
	}
	if len(t) != 6 {
		Te.Errorf("merged torsion has %d entries, want 6: %v", len(t), t)
	}
	checkParam(Te, t, "k1", 0.16, 1e-12)
	checkParam(Te, t, "k2", 0.25, 1e-12)
	checkParam(Te, t, "periodicity1", 3, 0)
	checkParam(Te, t, "periodicity2", 1, 0)
	t, err = ic.GetParameters(interchange.ProperTorsions, 9, 6, 7, 12)
	if err != nil {
		Te.Fatalf("GetParameters(ProperTorsions, 9, 6, 7, 12): %v", err)
	}
	if len(t) != 3 {
		Te.Errorf("single-term torsion has %d entries: %v", len(t), t)
	}
	checkParam(Te, t, "k1", 0.3, 1e-12)

	c, err := ic.GetParameters(interchange.Constraints, 0, 1)
	if err != nil {
		Te.Fatalf("GetParameters(Constraints, 0, 1): %v", err)
	}
	checkParam(Te, c, "distance", 0.9572, 1e-12)
	c, err = ic.GetParameters(interchange.Constraints, 4, 5)
	if err != nil {
		Te.Fatalf("GetParameters(Constraints, 4, 5): %v", err)
	}
	checkParam(Te, c, "distance", 1.5139, 1e-12)

	v, err := ic.GetParameters(interchange.VdW, 1)
	if err != nil {
		Te.Fatalf("GetParameters(vdW, 1): %v", err)
	}
	checkParam(Te, v, "sigma", 1.0, 1e-12)
	checkParam(Te, v, "epsilon", 0.0, 1e-12)
	v, err = ic.GetParameters(interchange.VdW, 8)
	if err != nil {
		Te.Fatalf("GetParameters(vdW, 8): %v", err)
	}
	checkParam(Te, v, "sigma", 3.02, 1e-12)
	v, err = ic.GetParameters(interchange.VdW, 9)
	if err != nil {
		Te.Fatalf("GetParameters(vdW, 9): %v", err)
	}
	checkParam(Te, v, "sigma", 2*0.6/math.Pow(2, 1.0/6.0), 1e-12)

	q, err := ic.GetParameters(interchange.Electrostatics, 3)
	if err != nil {
		Te.Fatalf("GetParameters(Electrostatics, 3): %v", err)
	}
	checkParam(Te, q, "charge", -0.834, 1e-12)
	q, _ = ic.GetParameters(interchange.Electrostatics, 4)
	checkParam(Te, q, "charge", 0.417, 1e-12)
	gq, err := mol.GasteigerCharges(ethanol())
	if err != nil {
		Te.Fatalf("GasteigerCharges: %v", err)
	}
	q, err = ic.GetParameters(interchange.Electrostatics, 7)
	if err != nil {
		Te.Fatalf("GetParameters(Electrostatics, 7): %v", err)
	}
	checkParam(Te, q, "charge", gq[1]-0.02, 1e-6)
	q, _ = ic.GetParameters(interchange.Electrostatics, 8)
	checkParam(Te, q, "charge", gq[2]+0.02, 1e-6)

	vdw, _ := ic.Collection(interchange.VdW)
	if vdw.Nonbonded == nil || vdw.Nonbonded.Scale14 != 0.5 ||
		vdw.Nonbonded.MixingRule != "lorentz-berthelot" || vdw.Nonbonded.Cutoff != 9 {
		Te.Errorf("vdW nonbonded settings: %+v", vdw.Nonbonded)
	}
	es, _ := ic.Collection(interchange.Electrostatics)
	if es.Nonbonded == nil || math.Abs(es.Nonbonded.Scale14-0.8333333333) > 1e-9 ||
		es.Nonbonded.PeriodicMethod != "pme" {
		Te.Errorf("electrostatics nonbonded settings: %+v", es.Nonbonded)
	}

	if ic.NParticles() != 15 {
		Te.Errorf("NParticles = %d, want 15", ic.NParticles())
	}
	if ic.Positions != nil {
		Te.Error("positions appeared out of nowhere")
	}
	if ic.Box == nil || !ic.Box.Equal(opts.Box, 1e-9) {
		Te.Errorf("box not taken from options: %v", ic.Box)
	}
	if err := ic.Validate(); err != nil {
		Te.Errorf("Validate: %v", err)
	}
	if len(warns) != 0 {
		Te.Errorf("unexpected warnings: %v", warns)
	}
}

const improperFF = `<SMIRNOFF version="0.3" aromaticity_model="OEAroModel_MDL">
  <Bonds version="0.3">
    <Bond smirks="[#6X4:1]-[#6X3:2]" id="b1" length="1.52 * angstrom" k="500.0 * kilocalories_per_mole/angstrom**2"/>
    <Bond smirks="[#6X3:1]~[#8:2]" id="b2" length="1.25 * angstrom" k="800.0 * kilocalories_per_mole/angstrom**2"/>
    <Bond smirks="[#6X4:1]-[#1:2]" id="b3" length="1.09 * angstrom" k="680.0 * kilocalories_per_mole/angstrom**2"/>
  </Bonds>
  <Angles version="0.3">
    <Angle smirks="[*:1]~[*:2]~[*:3]" id="a1" angle="115.0 * degree" k="80.0 * kilocalories_per_mole/radian**2"/>
  </Angles>
  <ProperTorsions version="0.3" default_idivf="1.0">
    <Proper smirks="[*:1]~[*:2]~[*:3]~[*:4]" id="t1" periodicity1="3" phase1="0.0 * degree" k1="0.2 * kilocalories_per_mole"/>
  </ProperTorsions>
  <ImproperTorsions version="0.3" default_idivf="auto">
    <Improper smirks="[*:1]~[#6X3:2](~[*:3])~[*:4]" id="i1" periodicity1="2" phase1="180.0 * degree" k1="5.25 * kilocalories_per_mole"/>
  </ImproperTorsions>
  <vdW version="0.3">
    <Atom smirks="[#6:1]" id="n1" epsilon="0.1 * kilocalories_per_mole" sigma="3.4 * angstrom"/>
    <Atom smirks="[#8:1]" id="n2" epsilon="0.2 * kilocalories_per_mole" sigma="3.0 * angstrom"/>
    <Atom smirks="[#1:1]" id="n3" epsilon="0.015 * kilocalories_per_mole" sigma="2.6 * angstrom"/>
  </vdW>
  <Electrostatics version="0.3" method="PME"/>
</SMIRNOFF>`

func TestImproperTrefoil(Te *testing.T) {
	ff := loadFF(Te, improperFF)
	top := mol.NewTopology(acetate())
	ic, err := Apply(ff, top, &Options{ChargeMethod: "formal-charges"})
	if err != nil {
		Te.Fatalf("Apply: %v", err)
	}
	col, err := ic.Collection(interchange.ImproperTorsions)
	if err != nil {
		Te.Fatalf("Collection: %v", err)
	}
	slots := col.Slots()
	if len(slots) != 3 {
		Te.Fatalf("improper trefoil has %d slots, want 3: %v", len(slots), slots)
	}
	for _, s := range slots {
		if s.N != 4 || s.Atoms[1] != 1 {
			Te.Errorf("central atom not second in slot %v", s)
		}
		outer := []int{s.Atoms[0], s.Atoms[2], s.Atoms[3]}
		sort.Ints(outer)
		if outer[0] != 0 || outer[1] != 2 || outer[2] != 3 {
			Te.Errorf("outer atoms of slot %v are %v, want [0 2 3]", s, outer)
		}
		pars, err := col.Parameters(s)
		if err != nil {
			Te.Fatalf("Parameters(%v): %v", s, err)
		}
		checkParam(Te, pars, "k", 5.25/3, 1e-12)
		checkParam(Te, pars, "periodicity", 2, 0)
		checkParam(Te, pars, "phase", math.Pi, 1e-9)
	}
	q, err := ic.GetParameters(interchange.Electrostatics, 3)
	if err != nil {
		Te.Fatalf("GetParameters(Electrostatics, 3): %v", err)
	}
	checkParam(Te, q, "charge", -1, 1e-12)
	if err := ic.Validate(); err != nil {
		Te.Errorf("Validate: %v", err)
	}
}

const tip4pFF = `<SMIRNOFF version="0.3" aromaticity_model="OEAroModel_MDL">
  <Constraints version="0.3">
    <Constraint smirks="[#1:1]-[#8X2H2+0:2]" id="c1" distance="0.9572 * angstrom"/>
    <Constraint smirks="[#1:1]-[#8X2H2+0]-[#1:2]" id="c2" distance="1.5139 * angstrom"/>
  </Constraints>
  <Bonds version="0.3">
    <Bond smirks="[#1:1]-[#8X2H2+0:2]" id="b1" length="0.9572 * angstrom" k="1100.0 * kilocalories_per_mole/angstrom**2"/>
  </Bonds>
  <Angles version="0.3">
    <Angle smirks="[#1:1]-[#8X2H2+0:2]-[#1:3]" id="a1" angle="104.52 * degree" k="90.0 * kilocalories_per_mole/radian**2"/>
  </Angles>
  <vdW version="0.3">
    <Atom smirks="[#8X2H2+0:1]" id="n1" epsilon="0.1521 * kilocalories_per_mole" sigma="3.1507 * angstrom"/>
    <Atom smirks="[#1:1]-[#8X2H2+0]" id="n2" epsilon="0.0 * kilocalories_per_mole" sigma="1.0 * angstrom"/>
  </vdW>
  <Electrostatics version="0.3" method="PME"/>
  <LibraryCharges version="0.3">
    <LibraryCharge smirks="[#1:1]-[#8X2H2+0:2]-[#1:3]" id="q1" charge1="0.0 * elementary_charge" charge2="0.0 * elementary_charge" charge3="0.0 * elementary_charge"/>
  </LibraryCharges>
  <VirtualSites version="0.3" exclusion_policy="parents">
    <VirtualSite type="DivalentLonePair" name="EP" smirks="[#1:2]-[#8X2H2+0:1]-[#1:3]" distance="-0.10527 * angstrom" charge_increment1="0.0 * elementary_charge" charge_increment2="0.5258681 * elementary_charge" charge_increment3="0.5258681 * elementary_charge" sigma="1.0 * nanometer" epsilon="0.0 * kilocalories_per_mole" match="once"/>
  </VirtualSites>
</SMIRNOFF>`

func TestVirtualSiteWater(Te *testing.T) {
	ff := loadFF(Te, tip4pFF)
	top := mol.NewTopology(waterWithCoords())
	ic, err := Apply(ff, top, nil)
	if err != nil {
		Te.Fatalf("Apply: %v", err)
	}
	if ic.NAtoms() != 3 || ic.NParticles() != 4 {
		Te.Fatalf("%d atoms, %d particles; want 3 and 4", ic.NAtoms(), ic.NParticles())
	}
	sites := ic.VirtualSiteList()
	if len(sites) != 1 {
		Te.Fatalf("got %d virtual sites, want 1", len(sites))
	}
	s := sites[0]
	if s.Particle != 3 || s.Kind != "DivalentLonePair" {
		Te.Errorf("site particle %d kind %s", s.Particle, s.Kind)
	}
	if len(s.Orientation) != 3 || s.Orientation[0] != 0 {
		Te.Fatalf("orientation %v should start at the oxygen", s.Orientation)
	}
	hs := []int{s.Orientation[1], s.Orientation[2]}
	sort.Ints(hs)
	if hs[0] != 1 || hs[1] != 2 {
		Te.Errorf("orientation %v should cover both hydrogens", s.Orientation)
	}

	// weights from the constrained geometry
	r12, r23 := 0.9572, 1.5139
	theta := math.Acos((r23*r23 - 2*r12*r12) / (-2 * r12 * r12))
	rmid := math.Cos(theta/2) * r12
	w1 := 1 - 0.10527/rmid
	if math.Abs(s.Weights[0]-w1) > 1e-9 {
		Te.Errorf("weight 0 = %g, want %g", s.Weights[0], w1)
	}
	if math.Abs(s.Weights[1]-(1-w1)/2) > 1e-9 || math.Abs(s.Weights[2]-(1-w1)/2) > 1e-9 {
		Te.Errorf("hydrogen weights %v, want both %g", s.Weights[1:], (1-w1)/2)
	}

	q, err := ic.GetParameters(interchange.Electrostatics, 3)
	if err != nil {
		Te.Fatalf("GetParameters(Electrostatics, 3): %v", err)
	}
	checkParam(Te, q, "charge", -1.0517362, 1e-12)
	q, _ = ic.GetParameters(interchange.Electrostatics, 1)
	checkParam(Te, q, "charge", 0.5258681, 1e-12)
	q, _ = ic.GetParameters(interchange.Electrostatics, 0)
	checkParam(Te, q, "charge", 0, 1e-12)

	v, err := ic.GetParameters(interchange.VdW, 3)
	if err != nil {
		Te.Fatalf("GetParameters(vdW, 3): %v", err)
	}
	checkParam(Te, v, "sigma", 10, 1e-12)

	pp, err := ic.ParticlePositions("place virtual sites")
	if err != nil {
		Te.Fatalf("ParticlePositions: %v", err)
	}
	if pp.NVecs() != 4 {
		Te.Fatalf("particle positions have %d rows", pp.NVecs())
	}
	site := pp.VecSlice(3)
	d := math.Sqrt(site[0]*site[0] + site[1]*site[1] + site[2]*site[2])
	if math.Abs(d-0.10527) > 1e-3 {
		Te.Errorf("site sits %g from the oxygen, want 0.10527", d)
	}
	if site[1] <= 0 {
		Te.Errorf("site %v should be on the hydrogen side of the oxygen", site)
	}
	if err := ic.Validate(); err != nil {
		Te.Errorf("Validate: %v", err)
	}
}

const bondOrderFF = `<SMIRNOFF version="0.3" aromaticity_model="OEAroModel_MDL">
  <Bonds version="0.3" fractional_bondorder_method="topology" fractional_bondorder_interpolation="linear">
    <Bond smirks="[#6X3:1]~[#8X1:2]" id="bo" length_bondorder1="1.35 * angstrom" length_bondorder2="1.22 * angstrom" k_bondorder1="800.0 * kilocalories_per_mole/angstrom**2" k_bondorder2="1200.0 * kilocalories_per_mole/angstrom**2"/>
    <Bond smirks="[#6:1]-[#1:2]" id="bh" length="1.09 * angstrom" k="680.0 * kilocalories_per_mole/angstrom**2"/>
  </Bonds>
  <Angles version="0.3">
    <Angle smirks="[*:1]~[*:2]~[*:3]" id="a1" angle="120.0 * degree" k="80.0 * kilocalories_per_mole/radian**2"/>
  </Angles>
  <vdW version="0.3">
    <Atom smirks="[*:1]" id="n1" epsilon="0.1 * kilocalories_per_mole" sigma="3.0 * angstrom"/>
  </vdW>
  <Electrostatics version="0.3" method="PME"/>
</SMIRNOFF>`

func TestBondOrderInterpolation(Te *testing.T) {
	ff := loadFF(Te, bondOrderFF)
	opts := &Options{ChargeMethod: "zeros"}

	ic, err := Apply(ff, mol.NewTopology(formaldehyde(2)), opts)
	if err != nil {
		Te.Fatalf("Apply(order 2): %v", err)
	}
	b, err := ic.GetParameters(interchange.Bonds, 0, 1)
	if err != nil {
		Te.Fatalf("GetParameters: %v", err)
	}
	checkParam(Te, b, "k", 1200, 1e-9)
	checkParam(Te, b, "length", 1.22, 1e-9)

	ic, err = Apply(ff, mol.NewTopology(formaldehyde(1.5)), opts)
	if err != nil {
		Te.Fatalf("Apply(order 1.5): %v", err)
	}
	b, err = ic.GetParameters(interchange.Bonds, 0, 1)
	if err != nil {
		Te.Fatalf("GetParameters: %v", err)
	}
	checkParam(Te, b, "k", 1000, 1e-9)
	checkParam(Te, b, "length", 1.285, 1e-9)

	// a missing order warns and falls back to a single bond
	M := formaldehyde(2)
	M.Bonds[0].Order = 0
	var warns []string
	ic, err = Apply(ff, mol.NewTopology(M), &Options{ChargeMethod: "zeros", Warnf: warnCollector(&warns)})
	if err != nil {
		Te.Fatalf("Apply(order 0): %v", err)
	}
	b, _ = ic.GetParameters(interchange.Bonds, 0, 1)
	checkParam(Te, b, "k", 800, 1e-9)
	checkParam(Te, b, "length", 1.35, 1e-9)
	found := false
	for _, w := range warns {
		if strings.Contains(w, "interpolating at order 1") {
			found = true
		}
	}
	if !found {
		Te.Errorf("no warning about the missing bond order: %v", warns)
	}
}

const constraintFF = `<SMIRNOFF version="0.3" aromaticity_model="OEAroModel_MDL">
  <Constraints version="0.3">
    <Constraint smirks="[#1:1]-[*:2]" id="ch"/>
  </Constraints>
  <Bonds version="0.3">
    <Bond smirks="[#6X4:1]-[#6X4:2]" id="b1" length="1.52 * angstrom" k="500.0 * kilocalories_per_mole/angstrom**2"/>
    <Bond smirks="[#6X4:1]-[#8X2:2]" id="b2" length="1.41 * angstrom" k="520.0 * kilocalories_per_mole/angstrom**2"/>
    <Bond smirks="[#6X4:1]-[#1:2]" id="b3" length="1.09 * angstrom" k="680.0 * kilocalories_per_mole/angstrom**2"/>
    <Bond smirks="[#8X2:1]-[#1:2]" id="b4" length="0.97 * angstrom" k="1060.0 * kilocalories_per_mole/angstrom**2"/>
  </Bonds>
  <Angles version="0.3">
    <Angle smirks="[*:1]~[*:2]~[*:3]" id="a1" angle="109.5 * degree" k="100.0 * kilocalories_per_mole/radian**2"/>
  </Angles>
  <ProperTorsions version="0.3" default_idivf="1.0">
    <Proper smirks="[*:1]~[*:2]~[*:3]~[*:4]" id="t1" periodicity1="3" phase1="0.0 * degree" k1="0.2 * kilocalories_per_mole"/>
  </ProperTorsions>
  <vdW version="0.3">
    <Atom smirks="[*:1]" id="n1" epsilon="0.1 * kilocalories_per_mole" sigma="3.0 * angstrom"/>
  </vdW>
  <Electrostatics version="0.3" method="PME"/>
</SMIRNOFF>`

func TestConstraintFromBondLength(Te *testing.T) {
	ff := loadFF(Te, constraintFF)
	ic, err := Apply(ff, mol.NewTopology(ethanol()), &Options{ChargeMethod: "zeros"})
	if err != nil {
		Te.Fatalf("Apply: %v", err)
	}
	col, err := ic.Collection(interchange.Constraints)
	if err != nil {
		Te.Fatalf("Collection: %v", err)
	}
	if col.NSlots() != 6 {
		Te.Errorf("%d constraint slots, want one per hydrogen", col.NSlots())
	}
	c, err := ic.GetParameters(interchange.Constraints, 2, 8)
	if err != nil {
		Te.Fatalf("GetParameters(Constraints, 2, 8): %v", err)
	}
	checkParam(Te, c, "distance", 0.97, 1e-12)
	c, err = ic.GetParameters(interchange.Constraints, 0, 3)
	if err != nil {
		Te.Fatalf("GetParameters(Constraints, 0, 3): %v", err)
	}
	checkParam(Te, c, "distance", 1.09, 1e-12)
}

func TestConstraintNeedsDistance(Te *testing.T) {
	text := strings.Replace(constraintFF,
		`<Constraint smirks="[#1:1]-[*:2]" id="ch"/>`,
		`<Constraint smirks="[#1:1]-[#8X2H2+0]-[#1:2]" id="hh"/>`, 1)
	ff := loadFF(Te, text)
	_, err := Apply(ff, mol.NewTopology(water()), &Options{ChargeMethod: "zeros"})
	if err == nil {
		Te.Fatal("a distance-less constraint between unbonded atoms must fail")
	}
	if !strings.Contains(err.Error(), "needs an explicit distance") {
		Te.Errorf("unexpected error: %v", err)
	}
}

const autoIDivFFF = `<SMIRNOFF version="0.3" aromaticity_model="OEAroModel_MDL">
  <Bonds version="0.3">
    <Bond smirks="[*:1]~[*:2]" id="b" length="1.4 * angstrom" k="600.0 * kilocalories_per_mole/angstrom**2"/>
  </Bonds>
  <Angles version="0.3">
    <Angle smirks="[*:1]~[*:2]~[*:3]" id="a" angle="109.5 * degree" k="100.0 * kilocalories_per_mole/radian**2"/>
  </Angles>
  <ProperTorsions version="0.3" default_idivf="auto">
    <Proper smirks="[*:1]~[*:2]~[*:3]~[*:4]" id="tg" periodicity1="3" phase1="0.0 * degree" k1="0.6 * kilocalories_per_mole"/>
    <Proper smirks="[*:1]~[#6X4:2]-[#6X4:3]~[*:4]" id="tcc" periodicity1="3" phase1="0.0 * degree" k1="0.9 * kilocalories_per_mole"/>
  </ProperTorsions>
  <vdW version="0.3">
    <Atom smirks="[*:1]" id="n" epsilon="0.1 * kilocalories_per_mole" sigma="3.0 * angstrom"/>
  </vdW>
  <Electrostatics version="0.3" method="PME"/>
</SMIRNOFF>`

func TestAutoIDivF(Te *testing.T) {
	ff := loadFF(Te, autoIDivFFF)
	ic, err := Apply(ff, mol.NewTopology(ethanol()), &Options{ChargeMethod: "zeros"})
	if err != nil {
		Te.Fatalf("Apply: %v", err)
	}
	// 9 torsion paths share the C-C bond, 3 the C-O bond
	t, err := ic.GetParameters(interchange.ProperTorsions, 3, 0, 1, 6)
	if err != nil {
		Te.Fatalf("GetParameters(ProperTorsions, 3, 0, 1, 6): %v", err)
	}
	checkParam(Te, t, "k1", 0.9/9, 1e-12)
	t, err = ic.GetParameters(interchange.ProperTorsions, 0, 1, 2, 8)
	if err != nil {
		Te.Fatalf("GetParameters(ProperTorsions, 0, 1, 2, 8): %v", err)
	}
	checkParam(Te, t, "k1", 0.6/3, 1e-12)
}

func TestMissingParameters(Te *testing.T) {
	text := strings.Replace(constraintFF,
		`<Bond smirks="[#6X4:1]-[#1:2]" id="b3" length="1.09 * angstrom" k="680.0 * kilocalories_per_mole/angstrom**2"/>`,
		``, 1)
	ff := loadFF(Te, text)
	_, err := Apply(ff, mol.NewTopology(ethanol()), &Options{ChargeMethod: "zeros"})
	if err == nil {
		Te.Fatal("an uncovered bond must fail the assignment")
	}
	var mpe *interchange.MissingParametersError
	if !errors.As(err, &mpe) {
		Te.Fatalf("error is %T, not a MissingParametersError", err)
	}
	if mpe.Collection != interchange.Bonds {
		Te.Errorf("missing collection %s, want Bonds", mpe.Collection)
	}
	if mpe.Key != interchange.BondKey(0, 3) {
		Te.Errorf("first uncovered bond is %v, want (0, 3)", mpe.Key)
	}
}

func TestUnsupportedSections(Te *testing.T) {
	text := strings.Replace(miniFF, `<Constraints version="0.3">`,
		`<GBSA version="0.3"><Atom smirks="[*:1]" radius="1.0 * angstrom"/></GBSA><Constraints version="0.3">`, 1)
	ff := loadFF(Te, text)
	_, err := Apply(ff, mol.NewTopology(water()), nil)
	if err == nil {
		Te.Fatal("a force field with unknown sections must not apply")
	}
	var use *UnsupportedSectionsError
	if !errors.As(err, &use) {
		Te.Fatalf("error is %T, not an UnsupportedSectionsError", err)
	}
	if len(use.Sections) != 1 || use.Sections[0] != "GBSA" {
		Te.Errorf("sections %v, want [GBSA]", use.Sections)
	}
}

const am1FF = `<SMIRNOFF version="0.3" aromaticity_model="OEAroModel_MDL">
  <Bonds version="0.3">
    <Bond smirks="[*:1]~[*:2]" id="b" length="1.4 * angstrom" k="600.0 * kilocalories_per_mole/angstrom**2"/>
  </Bonds>
  <Angles version="0.3">
    <Angle smirks="[*:1]~[*:2]~[*:3]" id="a" angle="109.5 * degree" k="100.0 * kilocalories_per_mole/radian**2"/>
  </Angles>
  <ProperTorsions version="0.3" default_idivf="1.0">
    <Proper smirks="[*:1]~[*:2]~[*:3]~[*:4]" id="t" periodicity1="3" phase1="0.0 * degree" k1="0.2 * kilocalories_per_mole"/>
  </ProperTorsions>
  <vdW version="0.3">
    <Atom smirks="[*:1]" id="n" epsilon="0.1 * kilocalories_per_mole" sigma="3.0 * angstrom"/>
  </vdW>
  <Electrostatics version="0.3" method="PME"/>
  <ToolkitAM1BCC version="0.3"/>
</SMIRNOFF>`

func TestChargeFallbacks(Te *testing.T) {
	ff := loadFF(Te, am1FF)
	if !ff.ToolkitAM1BCC {
		Te.Fatal("ToolkitAM1BCC flag not picked up")
	}
	_, err := Apply(ff, mol.NewTopology(ethanol()), nil)
	var cme *ChargeMethodError
	if !errors.As(err, &cme) {
		Te.Fatalf("error is %T (%v), not a ChargeMethodError", err, err)
	}
	if cme.Method != "AM1-BCC" || cme.Molecule != "ethanol" {
		Te.Errorf("ChargeMethodError names %s / %s", cme.Molecule, cme.Method)
	}

	var warns []string
	ic, err := Apply(ff, mol.NewTopology(ethanol()),
		&Options{ChargeMethod: "zeros", Warnf: warnCollector(&warns)})
	if err != nil {
		Te.Fatalf("Apply with fallback: %v", err)
	}
	q, err := ic.GetParameters(interchange.Electrostatics, 0)
	if err != nil {
		Te.Fatalf("GetParameters: %v", err)
	}
	checkParam(Te, q, "charge", 0, 1e-12)
	found := false
	for _, w := range warns {
		if strings.Contains(w, "instead of AM1-BCC") {
			found = true
		}
	}
	if !found {
		Te.Errorf("no warning about the charge fallback: %v", warns)
	}
}

func TestPresetCharges(Te *testing.T) {
	ff := loadFF(Te, am1FF)
	preset := ethanol()
	if err := preset.SetPartialCharges([]float64{-0.1, 0.15, -0.6, 0.05, 0.05, 0.05, 0.1, 0.1, 0.2}); err != nil {
		Te.Fatalf("SetPartialCharges: %v", err)
	}
	ic, err := Apply(ff, mol.NewTopology(ethanol()), &Options{PresetCharges: []*mol.Molecule{preset}})
	if err != nil {
		Te.Fatalf("Apply: %v", err)
	}
	q, err := ic.GetParameters(interchange.Electrostatics, 2)
	if err != nil {
		Te.Fatalf("GetParameters: %v", err)
	}
	checkParam(Te, q, "charge", -0.6, 1e-9)
}

func TestApplyArgumentErrors(Te *testing.T) {
	ff := loadMini(Te)
	if _, err := Apply(nil, mol.NewTopology(water()), nil); err == nil {
		Te.Error("nil force field must fail")
	}
	if _, err := Apply(ff, nil, nil); err == nil {
		Te.Error("nil topology must fail")
	}
	if _, err := Apply(ff, mol.NewTopology(), nil); err == nil {
		Te.Error("empty topology must fail")
	}
}
