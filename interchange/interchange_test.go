package interchange

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/xyz"
)

func waterMol() *mol.Molecule {
	M := mol.NewMolecule("water")
	M.AddAtom(&mol.Atom{Symbol: "O"})
	M.AddAtom(&mol.Atom{Symbol: "H"})
	M.AddAtom(&mol.Atom{Symbol: "H"})
	M.AddBond(0, 1, 1)
	M.AddBond(0, 2, 1)
	return M
}

//a hand-parametrized water, the smallest system with every collection kind
func waterSystem() *Interchange {
	ic := New(mol.NewTopology(waterMol()))

	bonds := NewCollection(Bonds, "k/2*(r-length)**2")
	bk := PKey("[#1:1]-[#8:2]")
	bonds.AddPotential(bk, NewPotential("b1", map[string]float64{"k": 1000.0, "length": 0.9572}))
	bonds.Assign(BondKey(0, 1), bk)
	bonds.Assign(BondKey(0, 2), bk)
	ic.AddCollection(Bonds, bonds)

	angles := NewCollection(Angles, "k/2*(theta-angle)**2")
	ak := PKey("[#1:1]-[#8:2]-[#1:3]")
	angles.AddPotential(ak, NewPotential("a1", map[string]float64{"k": 100.0, "angle": 1.824}))
	angles.Assign(AngleKey(1, 0, 2), ak)
	ic.AddCollection(Angles, angles)

	vdw := NewCollection(VdW, "4*epsilon*((sigma/r)**12-(sigma/r)**6)")
	vdw.Nonbonded = &Nonbonded{Cutoff: 9, SwitchWidth: 1, Scale14: 0.5, Scale15: 1,
		MixingRule: "lorentz-berthelot", PeriodicMethod: "cutoff", NonperiodicMethod: "no-cutoff"}
	ok := PKey("[#8:1]")
	hk := PKey("[#1:1]")
	vdw.AddPotential(ok, NewPotential("n1", map[string]float64{"sigma": 3.15, "epsilon": 0.155}))
	vdw.AddPotential(hk, NewPotential("n2", map[string]float64{"sigma": 1.0, "epsilon": 0.0}))
	vdw.Assign(Key(0), ok)
	vdw.Assign(Key(1), hk)
	vdw.Assign(Key(2), hk)
	ic.AddCollection(VdW, vdw)

	es := NewCollection(Electrostatics, "coulomb")
	es.Nonbonded = &Nonbonded{Cutoff: 9, Scale14: 1.0 / 1.2, Scale15: 1,
		PeriodicMethod: "pme", NonperiodicMethod: "coulomb"}
	es.Charges = map[int]float64{0: -0.834, 1: 0.417, 2: 0.417}
	ic.AddCollection(Electrostatics, es)

	pos, _ := xyz.NewMatrix([]float64{
		0, 0, 0,
		0.9572, 0, 0,
		-0.24, 0.927, 0,
	})
	ic.SetPositions(pos)
	return ic
}

func TestKeys(Te *testing.T) {
	if BondKey(5, 2) != BondKey(2, 5) {
		Te.Error("BondKey does not canonicalize")
	}
	if AngleKey(7, 1, 3) != AngleKey(3, 1, 7) {
		Te.Error("AngleKey does not canonicalize")
	}
	if ProperKey(0, 2, 1, 3) != ProperKey(3, 1, 2, 0) {
		Te.Error("ProperKey does not canonicalize")
	}
	k := Key(1, 2, 3).Shift(10)
	if k.Atoms[0] != 11 || k.Atoms[2] != 13 || k.N != 3 {
		Te.Errorf("Shift broken: %v", k)
	}
	if s := Key(0, 100).String(); s != "(0, 100)" {
		Te.Errorf("key string %q", s)
	}
	if !Key(0, 1).Less(Key(0, 2)) || Key(0, 2).Less(Key(0, 1)) {
		Te.Error("Less ordering broken")
	}
	if !Key(1, 2).WithMult(0).Less(Key(1, 2).WithMult(1)) {
		Te.Error("Less ignores multiplicity")
	}
}

func TestCollectionLookupErrors(Te *testing.T) {
	ic := waterSystem()
	_, err := ic.Collection("ImproperTorsions")
	if err == nil {
		Te.Fatal("lookup of an absent collection should fail")
	}
	var mce *MissingCollectionError
	if !errors.As(err, &mce) {
		Te.Fatalf("wrong error type %T", err)
	}
	if !strings.Contains(err.Error(), "could not find component ImproperTorsions") {
		Te.Errorf("unhelpful error: %v", err)
	}
	if !strings.Contains(err.Error(), "Bonds") {
		Te.Errorf("error should list registered components: %v", err)
	}

	_, err = ic.GetParameters(Bonds, 0, 100)
	if err == nil {
		Te.Fatal("lookup of an absent slot should fail")
	}
	var mpe *MissingParametersError
	if !errors.As(err, &mpe) {
		Te.Fatalf("wrong error type %T", err)
	}
	if !strings.Contains(err.Error(), "(0, 100)") {
		Te.Errorf("error should name the atoms: %v", err)
	}
}

func TestGetParameters(Te *testing.T) {
	ic := waterSystem()
	p, err := ic.GetParameters(Bonds, 0, 1)
	if err != nil {
		Te.Fatal(err)
	}
	if p["length"] != 0.9572 {
		Te.Errorf("wrong bond length %v", p)
	}
	//reversed order resolves to the same slot
	p, err = ic.GetParameters(Bonds, 1, 0)
	if err != nil {
		Te.Fatalf("reversed lookup failed: %v", err)
	}
	if p["k"] != 1000.0 {
		Te.Errorf("wrong k %v", p)
	}
	q, err := ic.GetParameters(Electrostatics, 0)
	if err != nil {
		Te.Fatal(err)
	}
	if q["charge"] != -0.834 {
		Te.Errorf("wrong charge %v", q)
	}
}

func TestTorsionMultLookup(Te *testing.T) {
	ic := New(mol.NewTopology(waterMol()))
	tors := NewCollection(ProperTorsions, "k*(1+cos(periodicity*theta-phase))")
	pk := PKey("[*:1]~[*:2]~[*:3]~[*:4]")
	tors.AddPotential(pk.WithMult(0), NewPotential("t1", map[string]float64{"k": 0.2, "periodicity": 3, "phase": 0}))
	tors.AddPotential(pk.WithMult(1), NewPotential("t1", map[string]float64{"k": 0.1, "periodicity": 1, "phase": math.Pi}))
	tors.Assign(ProperKey(1, 0, 2, 1).WithMult(0), pk.WithMult(0)) //indices are fake, lookup only
	tors.Assign(ProperKey(1, 0, 2, 1).WithMult(1), pk.WithMult(1))
	ic.AddCollection(ProperTorsions, tors)

	p, err := ic.GetParameters(ProperTorsions, 1, 0, 2, 1)
	if err != nil {
		Te.Fatal(err)
	}
	if p["k1"] != 0.2 || p["k2"] != 0.1 {
		Te.Errorf("terms not merged: %v", p)
	}
	if p["periodicity1"] != 3 || p["phase2"] != math.Pi {
		Te.Errorf("term attributes wrong: %v", p)
	}
}

func TestMatrixViews(Te *testing.T) {
	ic := waterSystem()
	bonds, _ := ic.Collection(Bonds)
	sys, err := bonds.SystemParameters("k", "length")
	if err != nil {
		Te.Fatal(err)
	}
	r, c := sys.Dims()
	if r != 2 || c != 2 {
		Te.Fatalf("system parameters should be 2x2, got %dx%d", r, c)
	}
	field, err := bonds.FieldParameters("k", "length")
	if err != nil {
		Te.Fatal(err)
	}
	fr, _ := field.Dims()
	if fr != 1 {
		Te.Fatalf("one distinct potential expected, got %d rows", fr)
	}
	assign, err := bonds.AssignmentMatrix()
	if err != nil {
		Te.Fatal(err)
	}
	var prod mat.Dense
	prod.Mul(assign, field)
	if !mat.EqualApprox(&prod, sys, 1e-12) {
		Te.Error("assignment x field != system")
	}

	vdw, _ := ic.Collection(VdW)
	sysv, err := vdw.SystemParameters("sigma", "epsilon")
	if err != nil {
		Te.Fatal(err)
	}
	if v := sysv.At(0, 0); v != 3.15 {
		Te.Errorf("slot (0) should be oxygen sigma, got %g", v)
	}
	if _, err := vdw.SystemParameters("nope"); err == nil {
		Te.Error("unknown parameter name should error")
	}
}

func TestSetBoxPromotion(Te *testing.T) {
	ic := waterSystem()
	if err := ic.SetBox([]float64{20, 25, 30}); err != nil {
		Te.Fatal(err)
	}
	if !ic.Box.IsRectangular() {
		Te.Error("3-vector should promote to a rectangular box")
	}
	if l := ic.Box.Lengths(); l[1] != 25 {
		Te.Errorf("wrong lengths %v", l)
	}
	err := ic.SetBox([]float64{20, 25, 30, 90})
	if err == nil {
		Te.Fatal("4 values should be rejected")
	}
	var ibe *xyz.InvalidBoxError
	if !errors.As(err, &ibe) {
		Te.Errorf("wrong error type %T", err)
	}
}

func TestSetPositionsShape(Te *testing.T) {
	ic := waterSystem()
	bad := xyz.Zeros(5)
	if err := ic.SetPositions(bad); err == nil {
		Te.Error("5 rows for 3 atoms should be rejected")
	}
	if err := ic.SetPositions(xyz.Zeros(3)); err != nil {
		Te.Error(err)
	}
}

func TestCombine(Te *testing.T) {
	a := waterSystem()
	b := waterSystem()
	c, err := a.Combine(b)
	if err != nil {
		Te.Fatal(err)
	}
	if c.NAtoms() != 6 {
		Te.Fatalf("combined system should have 6 atoms, got %d", c.NAtoms())
	}
	bonds, _ := c.Collection(Bonds)
	if bonds.NSlots() != 4 {
		Te.Errorf("combined Bonds should have 4 slots, got %d", bonds.NSlots())
	}
	if !bonds.HasSlot(BondKey(3, 4)) {
		Te.Error("second system's slots not shifted by the first's atom count")
	}
	//the per-slot parameter view of the union is the two views stacked
	asys, _ := mustColl(Te, a, Bonds).SystemParameters("k", "length")
	csys, _ := bonds.SystemParameters("k", "length")
	ar, _ := asys.Dims()
	cr, _ := csys.Dims()
	if cr != 2*ar {
		Te.Errorf("expected %d combined rows, got %d", 2*ar, cr)
	}
	if c.Positions == nil || c.Positions.NVecs() != 6 {
		Te.Error("positions not stacked")
	}
	es, _ := c.Collection(Electrostatics)
	if es.Charges[3] != -0.834 {
		Te.Errorf("charges not rekeyed: %v", es.Charges)
	}
	//mutating the combination must not touch the inputs
	bonds.Assign(BondKey(0, 2), PKey("other"))
	if mustColl(Te, a, Bonds).HasSlot(BondKey(0, 2)) {
		Te.Error("combination aliases the first input")
	}
}

func mustColl(Te *testing.T, ic *Interchange, name string) *Collection {
	Te.Helper()
	c, err := ic.Collection(name)
	if err != nil {
		Te.Fatal(err)
	}
	return c
}

func TestCombinePositionRules(Te *testing.T) {
	a := waterSystem()
	b := waterSystem()
	b.Positions = nil
	c, err := a.Combine(b)
	if err != nil {
		Te.Fatal(err)
	}
	if c.Positions != nil {
		Te.Error("positions should survive only when both systems have them")
	}
}

func TestCombineBoxRules(Te *testing.T) {
	a := waterSystem()
	b := waterSystem()
	a.SetBox([]float64{20, 20, 20})
	if _, err := a.Combine(b); err == nil {
		Te.Error("one box and one nil should not combine")
	}
	b.SetBox([]float64{20, 20, 20})
	c, err := a.Combine(b)
	if err != nil {
		Te.Fatal(err)
	}
	if c.Box == nil || !c.Box.Equal(a.Box, 1e-9) {
		Te.Error("box lost in combination")
	}
	b.SetBox([]float64{25, 20, 20})
	if _, err := a.Combine(b); err == nil {
		Te.Error("different boxes should not combine")
	}
}

func TestCombineMismatchedNonbonded(Te *testing.T) {
	a := waterSystem()
	b := waterSystem()
	mustColl(Te, b, VdW).Nonbonded.Scale14 = 0.8333
	_, err := a.Combine(b)
	if err == nil {
		Te.Fatal("mismatched 1-4 scaling should refuse to combine")
	}
	var ce *CombinationError
	if !errors.As(err, &ce) {
		Te.Errorf("wrong error type %T", err)
	}
}

func TestValidate(Te *testing.T) {
	ic := waterSystem()
	if err := ic.Validate(); err != nil {
		Te.Fatalf("healthy system should validate: %v", err)
	}
	//point a slot at a potential that does not exist
	bonds := mustColl(Te, ic, Bonds)
	bonds.Assign(BondKey(0, 1), PKey("ghost"))
	delete(mustColl(Te, ic, Electrostatics).Charges, 2)
	err := ic.Validate()
	if err == nil {
		Te.Fatal("broken system should not validate")
	}
	msg := err.Error()
	if !strings.Contains(msg, "ghost") {
		Te.Errorf("missing potential not reported: %v", msg)
	}
	if !strings.Contains(msg, "charge") {
		Te.Errorf("missing charge not reported: %v", msg)
	}
}

func TestMissingPositionsError(Te *testing.T) {
	ic := waterSystem()
	ic.Positions = nil
	_, err := ic.AtomPositions("write a .gro file")
	if err == nil {
		Te.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "positions are required to write a .gro file") {
		Te.Errorf("unhelpful message: %v", err)
	}
}

func TestVirtualSitePositions(Te *testing.T) {
	ic := waterSystem()
	vs := NewCollection(VirtualSites, "")
	vs.VSites = []*VirtualSite{{
		Particle:    3,
		Kind:        "BondCharge",
		Orientation: []int{0, 1},
		Weights:     []float64{1.5, -0.5},
	}}
	ic.AddCollection(VirtualSites, vs)
	if ic.NParticles() != 4 {
		Te.Fatalf("3 atoms + 1 site should be 4 particles, got %d", ic.NParticles())
	}
	full, err := ic.ParticlePositions("test")
	if err != nil {
		Te.Fatal(err)
	}
	if full.NVecs() != 4 {
		Te.Fatalf("expected 4 rows, got %d", full.NVecs())
	}
	//site = 1.5*r0 - 0.5*r1, on the O side of the O-H axis
	got := full.VecSlice(3)
	if math.Abs(got[0]- (1.5*0-0.5*0.9572)) > 1e-9 {
		Te.Errorf("wrong site position %v", got)
	}
}

func TestString(Te *testing.T) {
	ic := waterSystem()
	s := ic.String()
	if !strings.Contains(s, "non-periodic") || !strings.Contains(s, "3 atoms") {
		Te.Errorf("unexpected repr %q", s)
	}
	ic.SetBox([]float64{20, 20, 20})
	if strings.Contains(ic.String(), "non-periodic") {
		Te.Errorf("repr should say periodic: %q", ic.String())
	}
}

func TestSnapshotRoundTrip(Te *testing.T) {
	ic := waterSystem()
	ic.SetBox([]float64{20, 22, 24})
	var buf bytes.Buffer
	if err := ic.Save(&buf); err != nil {
		Te.Fatal(err)
	}
	back, err := Load(&buf)
	if err != nil {
		Te.Fatal(err)
	}
	if back.NAtoms() != 3 {
		Te.Fatalf("wrong atom count after round trip: %d", back.NAtoms())
	}
	if got := back.CollectionNames(); len(got) != 4 {
		Te.Fatalf("collections lost: %v", got)
	}
	p, err := back.GetParameters(Bonds, 0, 1)
	if err != nil {
		Te.Fatal(err)
	}
	if p["length"] != 0.9572 {
		Te.Errorf("bond length lost: %v", p)
	}
	if back.Box == nil || !back.Box.Equal(ic.Box, 1e-9) {
		Te.Error("box lost")
	}
	if back.Positions == nil || back.Positions.MaxDiff(ic.Positions) > 1e-12 {
		Te.Error("positions lost")
	}
	es := mustColl(Te, back, Electrostatics)
	if es.Charges[0] != -0.834 {
		Te.Errorf("charges lost: %v", es.Charges)
	}
	if es.Nonbonded == nil || es.Nonbonded.PeriodicMethod != "pme" {
		Te.Error("nonbonded settings lost")
	}
}

func TestSnapshotFiles(Te *testing.T) {
	ic := waterSystem()
	dir := Te.TempDir()
	for _, name := range []string{"sys.json", "sys.jz"} {
		path := filepath.Join(dir, name)
		if err := ic.SaveFile(path); err != nil {
			Te.Fatalf("%s: %v", name, err)
		}
		back, err := LoadFile(path)
		if err != nil {
			Te.Fatalf("%s: %v", name, err)
		}
		if back.NAtoms() != ic.NAtoms() {
			Te.Errorf("%s: atom count lost", name)
		}
		if _, err := back.GetParameters(Angles, 1, 0, 2); err != nil {
			Te.Errorf("%s: %v", name, err)
		}
	}
}
