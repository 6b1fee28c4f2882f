package smirnoff

import (
	"math"
	"strings"
	"testing"
)

// miniFF covers the ethanol and water fixtures below. The hierarchy is
// deliberate: generic lines first, specific ones later, so last-match-wins
// has something to do.
const miniFF = `<?xml version="1.0" encoding="utf-8"?>
<SMIRNOFF version="0.3" aromaticity_model="OEAroModel_MDL">
  <Author>goff tests</Author>
  <Date>2023-11-02</Date>
  <Constraints version="0.3">
    <Constraint smirks="[#1:1]-[#8X2H2+0:2]" id="c1" distance="0.9572 * angstrom"/>
    <Constraint smirks="[#1:1]-[#8X2H2+0]-[#1:2]" id="c2" distance="1.5139 * angstrom"/>
  </Constraints>
  <Bonds version="0.3" potential="harmonic">
    <Bond smirks="[#6X4:1]-[#6X4:2]" id="b1" length="1.52 * angstrom" k="500.0 * kilocalories_per_mole/angstrom**2"/>
    <Bond smirks="[#6X4:1]-[#8X2:2]" id="b2" length="1.41 * angstrom" k="520.0 * kilocalories_per_mole/angstrom**2"/>
    <Bond smirks="[#6X4:1]-[#1:2]" id="b3" length="1.09 * angstrom" k="680.0 * kilocalories_per_mole/angstrom**2"/>
    <Bond smirks="[#8X2:1]-[#1:2]" id="b4" length="0.97 * angstrom" k="1060.0 * kilocalories_per_mole/angstrom**2"/>
    <Bond smirks="[#1:1]-[#8X2H2+0:2]" id="b-water" length="0.9572 * angstrom" k="1100.0 * kilocalorie ** 1 * angstrom ** -2 * mole ** -1"/>
  </Bonds>
  <Angles version="0.3" potential="harmonic">
    <Angle smirks="[*:1]~[#6X4:2]~[*:3]" angle="109.5 * degree" k="100.0 * kilocalories_per_mole/radian**2" id="a1"/>
    <Angle smirks="[*:1]-[#8X2:2]-[*:3]" angle="110.0 * degree" k="95.0 * kilocalories_per_mole/radian**2" id="a2"/>
    <Angle smirks="[#1:1]-[#8X2H2+0:2]-[#1:3]" angle="104.52 * degree" k="90.0 * kilocalories_per_mole/radian**2" id="a-water"/>
  </Angles>
  <ProperTorsions version="0.3" potential="k*(1+cos(periodicity*theta-phase))" default_idivf="1.0">
    <Proper smirks="[*:1]-[#6X4:2]-[#6X4:3]-[*:4]" periodicity1="3" phase1="0.0 * degree" k1="0.3 * kilocalories_per_mole" idivf1="1.0" id="t1"/>
    <Proper smirks="[*:1]-[#6X4:2]-[#8X2:3]-[*:4]" periodicity1="3" phase1="0.0 * degree" k1="0.25 * kilocalories_per_mole" idivf1="1.0" id="t2"/>
    <Proper smirks="[#1:1]-[#6X4:2]-[#8X2:3]-[#1:4]" periodicity1="3" phase1="0.0 * degree" k1="0.16 * kilocalories_per_mole" idivf1="1.0" periodicity2="1" phase2="0.0 * degree" k2="0.25 * kilocalories_per_mole" idivf2="1.0" id="t3"/>
  </ProperTorsions>
  <ImproperTorsions version="0.3" default_idivf="auto">
    <Improper smirks="[*:1]~[#6X3:2](~[*:3])~[*:4]" periodicity1="2" phase1="180.0 * degree" k1="5.25 * kilocalories_per_mole" id="i1"/>
  </ImproperTorsions>
  <vdW version="0.3" potential="Lennard-Jones-12-6" combining_rules="Lorentz-Berthelot" scale12="0.0" scale13="0.0" scale14="0.5" scale15="1.0" cutoff="9.0 * angstrom" switch_width="1.0 * angstrom" method="cutoff">
    <Atom smirks="[#1:1]" epsilon="0.0157 * kilocalories_per_mole" rmin_half="0.6 * angstrom" id="n1"/>
    <Atom smirks="[#6:1]" epsilon="0.1094 * kilocalories_per_mole" sigma="3.48 * angstrom" id="n2"/>
    <Atom smirks="[#8:1]" epsilon="0.21 * kilocalories_per_mole" sigma="3.02 * angstrom" id="n3"/>
    <Atom smirks="[#8X2H2+0:1]" epsilon="0.1521 * kilocalories_per_mole" sigma="3.1507 * angstrom" id="n-water-O"/>
    <Atom smirks="[#1:1]-[#8X2H2+0]" epsilon="0.0 * kilocalories_per_mole" sigma="1.0 * angstrom" id="n-water-H"/>
  </vdW>
  <Electrostatics version="0.3" method="PME" scale12="0.0" scale13="0.0" scale14="0.8333333333" scale15="1.0" cutoff="9.0 * angstrom"/>
  <LibraryCharges version="0.3">
    <LibraryCharge smirks="[#1:1]-[#8X2H2+0:2]-[#1:3]" charge1="0.417 * elementary_charge" charge2="-0.834 * elementary_charge" charge3="0.417 * elementary_charge" id="q-water"/>
  </LibraryCharges>
  <ChargeIncrementModel version="0.3" partial_charge_method="gasteiger">
    <ChargeIncrement smirks="[#6X4:1]-[#8X2:2]" charge_increment1="-0.02 * elementary_charge" id="ci1"/>
  </ChargeIncrementModel>
</SMIRNOFF>`

func loadMini(Te *testing.T) *ForceField {
	Te.Helper()
	ff, err := LoadReader(strings.NewReader(miniFF))
	if err != nil {
		Te.Fatalf("LoadReader: %v", err)
	}
	return ff
}

func TestLoadSections(Te *testing.T) {
	ff := loadMini(Te)
	if ff.Version != "0.3" || ff.Aromaticity != "OEAroModel_MDL" {
		Te.Errorf("header: version %q, aromaticity %q", ff.Version, ff.Aromaticity)
	}
	if ff.Author != "goff tests" || ff.Date != "2023-11-02" {
		Te.Errorf("author %q, date %q", ff.Author, ff.Date)
	}
	want := []string{"Constraints", "Bonds", "Angles", "ProperTorsions",
		"ImproperTorsions", "vdW", "Electrostatics", "LibraryCharges", "ChargeIncrementModel"}
	got := ff.SectionNames()
	if len(got) != len(want) {
		Te.Fatalf("got sections %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			Te.Errorf("section %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if len(ff.Unknown) != 0 {
		Te.Errorf("unexpected unknown sections %v", ff.Unknown)
	}
	if n := len(ff.Bonds.Parameters); n != 5 {
		Te.Errorf("got %d bond parameters, want 5", n)
	}
	if ff.LJ14Scale() != 0.5 {
		Te.Errorf("LJ14Scale = %g", ff.LJ14Scale())
	}
	if math.Abs(ff.Coulomb14Scale()-1.0/1.2) > 1e-9 {
		Te.Errorf("Coulomb14Scale = %g", ff.Coulomb14Scale())
	}
	if ff.VdW.MixingRule != "lorentz-berthelot" {
		Te.Errorf("mixing rule %q", ff.VdW.MixingRule)
	}
	if ff.Electrostatics.Periodic != "pme" {
		Te.Errorf("electrostatics periodic method %q", ff.Electrostatics.Periodic)
	}
	if ff.ChargeModel.Method != "gasteiger" {
		Te.Errorf("partial charge method %q", ff.ChargeModel.Method)
	}
}

func TestLoadConvertsUnits(Te *testing.T) {
	ff := loadMini(Te)
	b, err := ff.GetParameters("Bonds", "b1")
	if err != nil {
		Te.Fatalf("GetParameters: %v", err)
	}
	if b["length"] != 1.52 || b["k"] != 500 {
		Te.Errorf("b1: %v", b)
	}
	a, err := ff.GetParameters("Angles", "a-water")
	if err != nil {
		Te.Fatalf("GetParameters: %v", err)
	}
	if math.Abs(a["angle"]-104.52*math.Pi/180) > 1e-9 {
		Te.Errorf("a-water angle = %g rad", a["angle"])
	}
	t3, err := ff.GetParameters("ProperTorsions", "t3")
	if err != nil {
		Te.Fatalf("GetParameters: %v", err)
	}
	if t3["k1"] != 0.16 || t3["k2"] != 0.25 || t3["periodicity2"] != 1 {
		Te.Errorf("t3: %v", t3)
	}
	if _, err := ff.GetParameters("Bonds", "no-such-id"); err == nil {
		Te.Error("lookup of a missing id should fail")
	}
	// lookup by SMIRKS works too
	if _, err := ff.GetParameters("vdW", "[#6:1]"); err != nil {
		Te.Errorf("lookup by SMIRKS: %v", err)
	}
}

func TestRminHalfConversion(Te *testing.T) {
	ff := loadMini(Te)
	p, err := ff.GetParameters("vdW", "n1")
	if err != nil {
		Te.Fatalf("GetParameters: %v", err)
	}
	want := 2 * 0.6 / math.Pow(2, 1.0/6.0)
	if math.Abs(p["sigma"]-want) > 1e-12 {
		Te.Errorf("sigma from rmin_half = %g, want %g", p["sigma"], want)
	}
}

func TestInferredChargeIncrement(Te *testing.T) {
	ff := loadMini(Te)
	p := ff.ChargeModel.Parameters[0]
	if len(p.Increments) != 2 {
		Te.Fatalf("got %d increments", len(p.Increments))
	}
	if p.Increments[0] != -0.02 || math.Abs(p.Increments[1]-0.02) > 1e-12 {
		Te.Errorf("increments %v; the omitted last one should balance the sum", p.Increments)
	}
}

func TestUnknownSectionsAreRecorded(Te *testing.T) {
	text := strings.Replace(miniFF, "<Constraints version=\"0.3\">",
		"<GBSA version=\"0.3\"><Atom smirks=\"[*:1]\" radius=\"1.0 * angstrom\"/></GBSA><Constraints version=\"0.3\">", 1)
	ff, err := LoadReader(strings.NewReader(text))
	if err != nil {
		Te.Fatalf("LoadReader: %v", err)
	}
	if len(ff.Unknown) != 1 || ff.Unknown[0] != "GBSA" {
		Te.Errorf("unknown sections %v, want [GBSA]", ff.Unknown)
	}
}

func loadErr(Te *testing.T, body, want string) {
	Te.Helper()
	text := `<SMIRNOFF version="0.3" aromaticity_model="OEAroModel_MDL">` + body + `</SMIRNOFF>`
	_, err := LoadReader(strings.NewReader(text))
	if err == nil {
		Te.Errorf("loading %s should have failed", body)
		return
	}
	if !strings.Contains(err.Error(), want) {
		Te.Errorf("error %q does not mention %q", err, want)
	}
}

func TestLoadErrors(Te *testing.T) {
	if _, err := LoadReader(strings.NewReader("this is not xml")); err == nil {
		Te.Error("parsing garbage should fail")
	}
	loadErr(Te, `<Bonds version="0.3"><Bond smirks="[#6:1]" id="b1" length="1.5 * angstrom" k="500 * kilocalories_per_mole/angstrom**2"/></Bonds>`,
		"maps 1 atoms, need 2")
	loadErr(Te, `<Bonds version="0.3"><Bond smirks="[#6:1](" id="b1" length="1.5 * angstrom" k="1 * kilocalories_per_mole/angstrom**2"/></Bonds>`,
		"b1")
	loadErr(Te, `<Bonds version="0.3"><Bond smirks="[#6:1]-[#6:2]" id="b1" k="500 * kilocalories_per_mole/angstrom**2"/></Bonds>`,
		"needs length")
	loadErr(Te, `<Bonds version="0.3"><Bond smirks="[#6:1]-[#6:2]" id="b1" length="1.0 * parsec" k="1 * kilocalories_per_mole/angstrom**2"/></Bonds>`,
		"unknown unit")
	loadErr(Te, `<Angles version="0.3"><Angle smirks="[*:1]~[*:2]~[*:3]" id="a1" k="100 * kilocalories_per_mole/radian**2"/></Angles>`,
		"missing attribute angle")
	loadErr(Te, `<ProperTorsions version="0.3"><Proper smirks="[*:1]~[*:2]~[*:3]~[*:4]" id="t1" periodicity1="3" k1="0.3 * kilocalories_per_mole"/></ProperTorsions>`,
		"1 periodicities, 0 phases")
	loadErr(Te, `<vdW version="0.3"><Atom smirks="[#6:1]" id="n1" epsilon="0.1 * kilocalories_per_mole" sigma="3.4 * angstrom" rmin_half="1.9 * angstrom"/></vdW>`,
		"both sigma and rmin_half")
	loadErr(Te, `<vdW version="0.3"><Atom smirks="[#6:1]" id="n1" epsilon="0.1 * kilocalories_per_mole"/></vdW>`,
		"needs sigma or rmin_half")
	loadErr(Te, `<LibraryCharges version="0.3"><LibraryCharge smirks="[#1:1]-[#8X2H2+0:2]-[#1:3]" id="q1" charge1="0.4 * elementary_charge" charge2="-0.8 * elementary_charge"/></LibraryCharges>`,
		"2 charges for 3 mapped atoms")
	loadErr(Te, `<ChargeIncrementModel version="0.3" partial_charge_method="gasteiger"><ChargeIncrement smirks="[#6:1]-[#8:2]" charge_increment1="0.1 * elementary_charge" charge_increment2="0.1 * elementary_charge" charge_increment3="0.1 * elementary_charge"/></ChargeIncrementModel>`,
		"3 increments for 2 mapped atoms")
	loadErr(Te, `<VirtualSites version="0.3"><VirtualSite type="MonovalentLonePair" smirks="[#8:1]=[#6:2]-[*:3]" name="EP" distance="0.5 * angstrom" charge_increment1="0.1 * elementary_charge" charge_increment2="0.0 * elementary_charge" charge_increment3="0.0 * elementary_charge"/></VirtualSites>`,
		"unsupported virtual site type")
}
