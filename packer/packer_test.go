package packer

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/interchange"
	"github.com/imolina/goff/xyz"
)

func water() *mol.Molecule {
	M := mol.NewMolecule("water")
	M.AddAtom(&mol.Atom{Symbol: "O"})
	M.AddAtom(&mol.Atom{Symbol: "H"})
	M.AddAtom(&mol.Atom{Symbol: "H"})
	M.AddBond(0, 1, 1)
	M.AddBond(0, 2, 1)
	return M
}

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

func ethane() *mol.Molecule {
	M := mol.NewMolecule("ethane")
	M.AddAtom(&mol.Atom{Symbol: "C"})
	M.AddAtom(&mol.Atom{Symbol: "C"})
	if err := M.AddBond(0, 1, 1); err != nil {
		panic(err)
	}
	crd, err := xyz.NewMatrix([]float64{0, 0, 0, 1.54, 0, 0})
	if err != nil {
		panic(err)
	}
	M.Coords = crd
	return M
}

// minIntermolecular returns the smallest distance between atoms that
// belong to different molecules, minimum-image when box is not nil.
func minIntermolecular(top *mol.Topology, pos *xyz.Matrix, box *xyz.Box) float64 {
	min := math.Inf(1)
	n := pos.NVecs()
	for i := 0; i < n; i++ {
		mi, _ := top.MolOf(i)
		vi := pos.VecSlice(i)
		for j := i + 1; j < n; j++ {
			mj, _ := top.MolOf(j)
			if mi == mj {
				continue
			}
			vj := pos.VecSlice(j)
			d := []float64{vi[0] - vj[0], vi[1] - vj[1], vi[2] - vj[2]}
			if box != nil {
				box.MinImage(d)
			}
			r := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
			if r < min {
				min = r
			}
		}
	}
	return min
}

func TestPackShape(Te *testing.T) {
	top, pos, err := Pack([]*mol.Molecule{waterWithCoords()}, []int{12},
		&Options{Box: xyz.Cubic(20), Seed: 1})
	if err != nil {
		Te.Fatalf("Pack: %v", err)
	}
	if top.NMols() != 12 || top.Len() != 36 {
		Te.Errorf("packed %d molecules with %d atoms, want 12 with 36", top.NMols(), top.Len())
	}
	if pos.NVecs() != 36 {
		Te.Errorf("positions have %d rows, want 36", pos.NVecs())
	}
	if top.Box == nil || !top.Box.Equal(xyz.Cubic(20), 1e-12) {
		Te.Errorf("topology box not the one given: %v", top.Box)
	}
	blocks := top.GroupIdentical()
	if len(blocks) != 1 || blocks[0].Count != 12 {
		Te.Errorf("got %d molecule blocks, want one of 12 copies", len(blocks))
	}
	for i := 0; i < pos.NVecs(); i++ {
		v := pos.VecSlice(i)
		for k := 0; k < 3; k++ {
			if v[k] < 0 || v[k] > 20 {
				Te.Fatalf("atom %d outside the box: %v", i, v)
			}
		}
	}
	for i, m := range top.Mols {
		if m.Coords == nil || m.Coords.NVecs() != 3 {
			Te.Fatalf("copy %d has no packed coordinates", i)
		}
		if d := m.Coords.Dist(0, 1); math.Abs(d-0.9572) > 1e-9 {
			Te.Errorf("copy %d: O-H distance %g, molecule not moved rigidly", i, d)
		}
	}
	if d := minIntermolecular(top, pos, nil); d < DefaultTolerance-1e-9 {
		Te.Errorf("closest intermolecular contact %g under the tolerance %g", d, DefaultTolerance)
	}
}

func TestPackTwoKinds(Te *testing.T) {
	top, pos, err := Pack([]*mol.Molecule{waterWithCoords(), ethane()}, []int{5, 3},
		&Options{Box: xyz.Cubic(22), Seed: 2})
	if err != nil {
		Te.Fatalf("Pack: %v", err)
	}
	if top.NMols() != 8 || pos.NVecs() != 5*3+3*2 {
		Te.Fatalf("packed %d molecules with %d atoms", top.NMols(), pos.NVecs())
	}
	blocks := top.GroupIdentical()
	if len(blocks) != 2 || blocks[0].Count != 5 || blocks[1].Count != 3 {
		Te.Fatalf("molecule blocks: %+v", blocks)
	}
	if top.Mols[0].Name != "water" || top.Mols[5].Name != "ethane" {
		Te.Errorf("copies out of order: %s, %s", top.Mols[0].Name, top.Mols[5].Name)
	}
	if d := minIntermolecular(top, pos, nil); d < DefaultTolerance-1e-9 {
		Te.Errorf("closest intermolecular contact %g under the tolerance", d)
	}
}

func TestPackDeterministic(Te *testing.T) {
	run := func(seed int64) *xyz.Matrix {
		_, pos, err := Pack([]*mol.Molecule{waterWithCoords()}, []int{6},
			&Options{Box: xyz.Cubic(18), Seed: seed})
		if err != nil {
			Te.Fatalf("Pack: %v", err)
		}
		return pos
	}
	a, b := run(7), run(7)
	if d := a.MaxDiff(b); d != 0 {
		Te.Errorf("two runs with the same seed differ by %g", d)
	}
	c := run(8)
	if d := a.MaxDiff(c); d < 1e-6 {
		Te.Errorf("different seeds produced the same packing")
	}
}

func TestPackPeriodic(Te *testing.T) {
	box := xyz.Cubic(12)
	top, pos, err := Pack([]*mol.Molecule{waterWithCoords()}, []int{8},
		&Options{Box: box, Seed: 5, Periodic: true})
	if err != nil {
		Te.Fatalf("Pack: %v", err)
	}
	if d := minIntermolecular(top, pos, box); d < DefaultTolerance-1e-9 {
		Te.Errorf("closest minimum-image contact %g under the tolerance", d)
	}
	tilted, err := xyz.NewBox([]float64{12, 0, 0, 4, 12, 0, 0, 0, 12})
	if err != nil {
		Te.Fatal(err)
	}
	_, _, err = Pack([]*mol.Molecule{waterWithCoords()}, []int{2},
		&Options{Box: tilted, Seed: 5, Periodic: true})
	if err == nil || !strings.Contains(err.Error(), "rectangular") {
		Te.Errorf("periodic packing into a tilted box: %v", err)
	}
}

func TestPackDensityBox(Te *testing.T) {
	b, err := DensityBox([]*mol.Molecule{waterWithCoords()}, []int{10}, 0.5)
	if err != nil {
		Te.Fatalf("DensityBox: %v", err)
	}
	want := math.Cbrt(10*18.015*1.66053906660/0.5) * 1.1
	l := b.Lengths()
	if !b.IsRectangular() || math.Abs(l[0]-want) > 1e-9 || l[0] != l[1] || l[1] != l[2] {
		Te.Errorf("box lengths %v, want a cube of edge %g", l, want)
	}
	if _, err := DensityBox([]*mol.Molecule{waterWithCoords()}, []int{10}, 0); err == nil {
		Te.Errorf("a zero density should not produce a box")
	}

	top, _, err := Pack([]*mol.Molecule{waterWithCoords()}, []int{5},
		&Options{Density: 0.997, Seed: 3})
	if err != nil {
		Te.Fatalf("Pack with density: %v", err)
	}
	want = math.Cbrt(5*18.015*1.66053906660/0.997) * 1.1
	if l := top.Box.Lengths(); math.Abs(l[0]-want) > 1e-9 {
		Te.Errorf("density-derived edge %g, want %g", l[0], want)
	}
}

func TestPackFailure(Te *testing.T) {
	top, pos, err := Pack([]*mol.Molecule{waterWithCoords()}, []int{30},
		&Options{Box: xyz.Cubic(3), Seed: 3, MaxAttempts: 25})
	if !errors.Is(err, ErrPackingFailed) {
		Te.Fatalf("packing 30 waters into 27 A^3: %v", err)
	}
	if top != nil || pos != nil {
		Te.Errorf("failed packing still returned a result")
	}
	if !strings.Contains(err.Error(), "water") {
		Te.Errorf("error does not name the failing molecule: %v", err)
	}
}

func TestPackBadInput(Te *testing.T) {
	ok := []*mol.Molecule{waterWithCoords()}
	if _, _, err := Pack(nil, nil, &Options{Box: xyz.Cubic(10)}); err == nil {
		Te.Errorf("packing nothing succeeded")
	}
	if _, _, err := Pack(ok, []int{1, 2}, &Options{Box: xyz.Cubic(10)}); err == nil {
		Te.Errorf("mismatched counts accepted")
	}
	if _, _, err := Pack(ok, []int{0}, &Options{Box: xyz.Cubic(10)}); err == nil {
		Te.Errorf("all-zero counts accepted")
	}
	if _, _, err := Pack([]*mol.Molecule{water()}, []int{1}, &Options{Box: xyz.Cubic(10)}); err == nil ||
		!strings.Contains(err.Error(), "no coordinates") {
		Te.Errorf("molecule without coordinates: %v", err)
	}
	if _, _, err := Pack(ok, []int{1}, &Options{}); err == nil {
		Te.Errorf("no box and no density accepted")
	}
}

func TestSetOnInterchange(Te *testing.T) {
	top, pos, err := Pack([]*mol.Molecule{waterWithCoords()}, []int{3},
		&Options{Box: xyz.Cubic(15), Seed: 1})
	if err != nil {
		Te.Fatalf("Pack: %v", err)
	}
	ic := interchange.New(mol.NewTopology(water(), water(), water()))
	if err := SetOnInterchange(ic, top, pos); err != nil {
		Te.Fatalf("SetOnInterchange: %v", err)
	}
	if ic.Positions == nil || ic.Positions.MaxDiff(pos) != 0 {
		Te.Errorf("positions not installed")
	}
	if ic.Box == nil || !ic.Box.Equal(top.Box, 1e-12) {
		Te.Errorf("box not installed")
	}
	small := interchange.New(mol.NewTopology(water()))
	if err := SetOnInterchange(small, top, pos); err == nil {
		Te.Errorf("mismatched atom counts accepted")
	}
}

func TestRecipeRun(Te *testing.T) {
	dir := Te.TempDir()
	xyzPath := filepath.Join(dir, "water.xyz")
	xyzText := "3\nwater\nO 0.0 0.0 0.0\nH 0.9572 0.0 0.0\nH -0.23995 0.92664 0.0\n"
	if err := os.WriteFile(xyzPath, []byte(xyzText), 0644); err != nil {
		Te.Fatal(err)
	}
	recPath := filepath.Join(dir, "recipe.yaml")
	recText := "structures:\n" +
		"  - file: " + xyzPath + "\n" +
		"    count: 4\n" +
		"box: [14, 14, 14]\n" +
		"seed: 11\n"
	if err := os.WriteFile(recPath, []byte(recText), 0644); err != nil {
		Te.Fatal(err)
	}
	r, err := LoadRecipe(recPath)
	if err != nil {
		Te.Fatalf("LoadRecipe: %v", err)
	}
	top, pos, err := r.Run(nil)
	if err != nil {
		Te.Fatalf("Run: %v", err)
	}
	if top.NMols() != 4 || pos.NVecs() != 12 {
		Te.Errorf("recipe packed %d molecules with %d atoms, want 4 with 12", top.NMols(), pos.NVecs())
	}
	if l := top.Box.Lengths(); l[0] != 14 || l[1] != 14 || l[2] != 14 {
		Te.Errorf("recipe box %v, want 14 14 14", l)
	}
	if top.Mols[0].Name != "water" {
		Te.Errorf("molecule name %q, want water", top.Mols[0].Name)
	}

	r.Structures[0].File = filepath.Join(dir, "gone.xyz")
	if _, _, err := r.Run(nil); err == nil {
		Te.Errorf("recipe with a missing structure file ran")
	}
}

func TestRecipeCheck(Te *testing.T) {
	good := &Recipe{
		Structures: []Structure{{File: "water.sdf", Count: 10}},
		Density:    0.8,
	}
	if err := good.Check(); err != nil {
		Te.Errorf("valid recipe rejected: %v", err)
	}
	bad := &Recipe{Density: 0.8}
	if err := bad.Check(); err == nil {
		Te.Errorf("recipe without structures accepted")
	}
	bad = &Recipe{Structures: []Structure{{File: "water.sdf"}}, Density: 0.8}
	if err := bad.Check(); err == nil {
		Te.Errorf("zero count accepted")
	}
	bad = &Recipe{Structures: []Structure{{File: "water.sdf", Count: 1}}}
	if err := bad.Check(); err == nil {
		Te.Errorf("recipe with no box and no density accepted")
	}
	bad = &Recipe{Structures: []Structure{{File: "water.sdf", Count: 1}}, Density: 0.8, Box: []float64{10, 10, 10}}
	if err := bad.Check(); err == nil {
		Te.Errorf("recipe with both box and density accepted")
	}
	bad = &Recipe{Structures: []Structure{{File: "water.sdf", Count: 1}}, Box: []float64{10, 10}}
	if err := bad.Check(); err == nil {
		Te.Errorf("two-value box accepted")
	}
	bad = &Recipe{Structures: []Structure{{File: "water.sdf", Count: 1}}, Density: 0.8, Tolerance: -1}
	if err := bad.Check(); err == nil {
		Te.Errorf("negative tolerance accepted")
	}
}

func TestLoadRecipeErrors(Te *testing.T) {
	if _, err := LoadRecipe(filepath.Join(Te.TempDir(), "missing.yaml")); err == nil {
		Te.Errorf("missing recipe file accepted")
	}
	dir := Te.TempDir()
	badPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(badPath, []byte("structures: {not a list}\n"), 0644); err != nil {
		Te.Fatal(err)
	}
	if _, err := LoadRecipe(badPath); err == nil {
		Te.Errorf("malformed recipe accepted")
	}
}
