package mol

import (
	"math"
	"testing"
)

func ethanol() *Molecule {
	M := NewMolecule("ethanol")
	for _, s := range []string{"C", "C", "O", "H", "H", "H", "H", "H", "H"} {
		M.AddAtom(&Atom{Symbol: s})
	}
	for _, b := range [][2]int{{0, 1}, {1, 2}, {0, 3}, {0, 4}, {0, 5}, {1, 6}, {1, 7}, {2, 8}} {
		if err := M.AddBond(b[0], b[1], 1); err != nil {
			panic(err)
		}
	}
	return M
}

func water() *Molecule {
	M := NewMolecule("water")
	M.AddAtom(&Atom{Symbol: "O"})
	M.AddAtom(&Atom{Symbol: "H"})
	M.AddAtom(&Atom{Symbol: "H"})
	M.AddBond(0, 1, 1)
	M.AddBond(0, 2, 1)
	return M
}

func benzene() *Molecule {
	M := NewMolecule("benzene")
	for i := 0; i < 6; i++ {
		M.AddAtom(&Atom{Symbol: "C"})
	}
	for i := 0; i < 6; i++ {
		M.AddAtom(&Atom{Symbol: "H"})
	}
	for i := 0; i < 6; i++ {
		order := 1.0
		if i%2 == 0 {
			order = 2.0
		}
		M.AddBond(i, (i+1)%6, order)
		M.AddBond(i, i+6, 1)
	}
	return M
}

func TestAddAtomFillsElementData(Te *testing.T) {
	M := NewMolecule("test")
	M.AddAtom(&Atom{Symbol: "O"})
	M.AddAtom(&Atom{Z: 6})
	if M.Atom(0).Z != 8 || M.Atom(0).Mass < 15.9 || M.Atom(0).Mass > 16.1 {
		Te.Errorf("oxygen not filled in: Z=%d mass=%.3f", M.Atom(0).Z, M.Atom(0).Mass)
	}
	if M.Atom(1).Symbol != "C" {
		Te.Errorf("Z 6 should become C, got %q", M.Atom(1).Symbol)
	}
}

func TestAddBondRejects(Te *testing.T) {
	M := water()
	if err := M.AddBond(0, 0, 1); err == nil {
		Te.Error("self-bond accepted")
	}
	if err := M.AddBond(0, 5, 1); err == nil {
		Te.Error("out-of-range bond accepted")
	}
	if err := M.AddBond(0, 1, 1); err == nil {
		Te.Error("duplicate bond accepted")
	}
}

func TestNeighborsSymmetric(Te *testing.T) {
	M := ethanol()
	for i := 0; i < M.Len(); i++ {
		for _, j := range M.Neighbors(i) {
			found := false
			for _, k := range M.Neighbors(j) {
				if k == i {
					found = true
				}
			}
			if !found {
				Te.Errorf("atom %d neighbors %d but not the other way", i, j)
			}
		}
	}
}

func TestAngleEnumeration(Te *testing.T) {
	M := ethanol()
	angles := M.Angles()
	//two sp3 carbons with 4 neighbors each give 6 angles apiece, the
	//hydroxyl oxygen one more
	if len(angles) != 13 {
		Te.Errorf("expected 13 angles in ethanol, got %d", len(angles))
	}
	for _, a := range angles {
		if a[0] >= a[2] {
			Te.Errorf("angle %v not canonically ordered", a)
		}
		if !M.Bonded(a[0], a[1]) || !M.Bonded(a[1], a[2]) {
			Te.Errorf("angle %v not bonded through the center", a)
		}
	}
}

func TestProperDihedralEnumeration(Te *testing.T) {
	M := ethanol()
	tors := M.ProperDihedrals()
	//9 around the C-C bond, 3 around C-O
	if len(tors) != 12 {
		Te.Errorf("expected 12 proper torsions in ethanol, got %d", len(tors))
	}
	for _, t := range tors {
		if !M.Bonded(t[0], t[1]) || !M.Bonded(t[1], t[2]) || !M.Bonded(t[2], t[3]) {
			Te.Errorf("torsion %v is not a bonded path", t)
		}
	}
}

func TestImproperCandidates(Te *testing.T) {
	M := ethanol()
	//each carbon has 4 neighbors: C(4,3) = 4 candidate trefoils apiece
	if got := len(M.ImproperCandidates()); got != 8 {
		Te.Errorf("expected 8 improper candidates in ethanol, got %d", got)
	}
	for _, im := range M.ImproperCandidates() {
		c := im[1]
		for _, o := range []int{im[0], im[2], im[3]} {
			if !M.Bonded(c, o) {
				Te.Errorf("improper %v: %d not bonded to central %d", im, o, c)
			}
		}
	}
}

func TestPairSeparations(Te *testing.T) {
	M := ethanol()
	if got := len(M.Pairs(1)); got != len(M.Bonds) {
		Te.Errorf("1-2 pairs: expected %d, got %d", len(M.Bonds), got)
	}
	if got := len(M.Pairs(2)); got != 13 {
		Te.Errorf("1-3 pairs: expected 13, got %d", got)
	}
	if got := len(M.Pairs(3)); got != 12 {
		Te.Errorf("1-4 pairs: expected 12, got %d", got)
	}
	seps := M.BondSeparations(3)
	if d := seps[[2]int{3, 8}]; d != 0 {
		//methyl H to hydroxyl H is 4 bonds away, beyond maxSep
		Te.Errorf("pair (3,8) should be absent at maxSep 3, got %d", d)
	}
}

func TestRingPerception(Te *testing.T) {
	B := benzene()
	ri := B.Rings()
	if len(ri.Rings()) != 1 || len(ri.Rings()[0]) != 6 {
		Te.Fatalf("benzene should have one 6-ring, got %v", ri.Rings())
	}
	for i := 0; i < 6; i++ {
		if !ri.InRingOfSize(i, 6) {
			Te.Errorf("ring atom %d not reported in a 6-ring", i)
		}
	}
	for i := 6; i < 12; i++ {
		if ri.InRing(i) {
			Te.Errorf("hydrogen %d reported in a ring", i)
		}
	}
	E := ethanol()
	if len(E.Rings().Rings()) != 0 {
		Te.Error("ethanol should have no rings")
	}
}

func TestAromaticityPerception(Te *testing.T) {
	B := benzene()
	B.PerceiveAromaticity()
	for i := 0; i < 6; i++ {
		if !B.Atom(i).Aromatic {
			Te.Errorf("benzene carbon %d not aromatic", i)
		}
	}
	arobonds := 0
	for _, b := range B.Bonds {
		if b.Aromatic {
			arobonds++
		}
	}
	if arobonds != 6 {
		Te.Errorf("expected 6 aromatic bonds, got %d", arobonds)
	}
	//cyclohexane: same ring, no pi system
	C := NewMolecule("cyclohexane")
	for i := 0; i < 6; i++ {
		C.AddAtom(&Atom{Symbol: "C"})
	}
	for i := 0; i < 6; i++ {
		C.AddBond(i, (i+1)%6, 1)
	}
	C.PerceiveAromaticity()
	for i := 0; i < 6; i++ {
		if C.Atom(i).Aromatic {
			Te.Errorf("cyclohexane carbon %d marked aromatic", i)
		}
	}
}

func TestGasteigerCharges(Te *testing.T) {
	M := ethanol()
	q, err := GasteigerCharges(M)
	if err != nil {
		Te.Fatal(err)
	}
	sum := 0.0
	min, minAt := 1.0, -1
	for i, v := range q {
		sum += v
		if v < min {
			min, minAt = v, i
		}
	}
	if math.Abs(sum) > 1e-6 {
		Te.Errorf("charges should sum to 0, got %g", sum)
	}
	if minAt != 2 {
		Te.Errorf("oxygen should carry the most negative charge, got atom %d (%g)", minAt, min)
	}
	if q[8] <= q[3] {
		Te.Error("hydroxyl hydrogen should be more positive than a methyl hydrogen")
	}
}

func TestGasteigerConservesNetCharge(Te *testing.T) {
	//acetate, net charge -1
	M := NewMolecule("acetate")
	for _, s := range []string{"C", "C", "O", "O", "H", "H", "H"} {
		M.AddAtom(&Atom{Symbol: s})
	}
	M.AddBond(0, 1, 1)
	M.AddBond(1, 2, 2)
	M.AddBond(1, 3, 1)
	M.AddBond(0, 4, 1)
	M.AddBond(0, 5, 1)
	M.AddBond(0, 6, 1)
	M.Atoms[3].FormalCharge = -1
	q, err := GasteigerCharges(M)
	if err != nil {
		Te.Fatal(err)
	}
	sum := 0.0
	for _, v := range q {
		sum += v
	}
	if math.Abs(sum-(-1)) > 1e-6 {
		Te.Errorf("acetate charges should sum to -1, got %g", sum)
	}
}

func TestFormula(Te *testing.T) {
	if f := ethanol().Formula(); f != "C2H6O" {
		Te.Errorf("ethanol formula: got %q", f)
	}
	if f := water().Formula(); f != "H2O" {
		Te.Errorf("water formula: got %q", f)
	}
}

func TestTopologyIndexing(Te *testing.T) {
	top := NewTopology(water(), ethanol(), water())
	if top.Len() != 3+9+3 {
		Te.Fatalf("expected 15 atoms, got %d", top.Len())
	}
	if off := top.Offset(1); off != 3 {
		Te.Errorf("offset of molecule 1: expected 3, got %d", off)
	}
	mi, local := top.MolOf(4)
	if mi != 1 || local != 1 {
		Te.Errorf("MolOf(4): expected (1,1), got (%d,%d)", mi, local)
	}
	if s := top.Atom(3).Symbol; s != "C" {
		Te.Errorf("global atom 3 should be the first ethanol carbon, got %s", s)
	}
}

func TestGroupIdentical(Te *testing.T) {
	w := water()
	top := NewTopology(w.Copy(), w.Copy(), ethanol())
	blocks := top.GroupIdentical()
	if len(blocks) != 2 {
		Te.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Count != 2 || blocks[0].Mol.Name != "water" {
		Te.Errorf("first block: expected 2 waters, got %d %s", blocks[0].Count, blocks[0].Mol.Name)
	}
	if blocks[1].Count != 1 || blocks[1].First != 2 {
		Te.Errorf("second block: expected 1 ethanol starting at 2, got %d at %d", blocks[1].Count, blocks[1].First)
	}
	//same formula but different bond graph must not group
	a := water()
	b := water()
	b.Bonds[0].Order = 2
	top2 := NewTopology(a, b)
	if len(top2.GroupIdentical()) != 2 {
		Te.Error("molecules with different bond orders were grouped")
	}
}

func TestMoleculeCopyIsDeep(Te *testing.T) {
	M := ethanol()
	C := M.Copy()
	C.Atoms[0].Symbol = "N"
	C.Bonds[0].Order = 3
	if M.Atoms[0].Symbol != "C" || M.Bonds[0].Order != 1 {
		Te.Error("Copy shares state with the original")
	}
	if len(C.Neighbors(0)) != len(M.Neighbors(0)) {
		Te.Error("copied bond graph differs")
	}
}
