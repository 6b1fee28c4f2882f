package xyz

import (
	"fmt"
	"math"
	"testing"
)

func TestMatrixBasics(Te *testing.T) {
	m, err := NewMatrix([]float64{
		0, 0, 0,
		1, 0, 0,
		1, 1, 0,
	})
	if err != nil {
		Te.Fatal(err)
	}
	if m.NVecs() != 3 {
		Te.Errorf("expected 3 vectors, got %d", m.NVecs())
	}
	if d := m.Dist(0, 1); math.Abs(d-1.0) > 1e-12 {
		Te.Errorf("wrong distance: %f", d)
	}
	if d := m.Dist(0, 2); math.Abs(d-math.Sqrt2) > 1e-12 {
		Te.Errorf("wrong diagonal distance: %f", d)
	}
	c := m.Centroid()
	if math.Abs(c[0]-2.0/3.0) > 1e-12 || math.Abs(c[2]) > 1e-12 {
		Te.Errorf("wrong centroid: %v", c)
	}
}

func TestMatrixBadShape(Te *testing.T) {
	_, err := NewMatrix([]float64{1, 2, 3, 4})
	if err == nil {
		Te.Error("expected an error for a non 3xN data slice")
	}
	fmt.Println("shape error, as it should:", err)
}

func TestTranslateCenter(Te *testing.T) {
	m, _ := NewMatrix([]float64{
		1, 1, 1,
		3, 3, 3,
	})
	m.Center()
	c := m.Centroid()
	for i := 0; i < 3; i++ {
		if math.Abs(c[i]) > 1e-12 {
			Te.Errorf("centroid not at origin after Center: %v", c)
		}
	}
	m.Translate([]float64{0, 0, 5})
	if v := m.VecSlice(0); math.Abs(v[2]-4.0) > 1e-12 {
		Te.Errorf("translation failed: %v", v)
	}
}

func TestStack(Te *testing.T) {
	a, _ := NewMatrix([]float64{0, 0, 0})
	b, _ := NewMatrix([]float64{1, 2, 3, 4, 5, 6})
	s := Stack(a, b)
	if s.NVecs() != 3 {
		Te.Fatalf("expected 3 stacked vectors, got %d", s.NVecs())
	}
	if v := s.VecSlice(2); v[1] != 5 {
		Te.Errorf("stack scrambled the rows: %v", v)
	}
}

func TestBoxPromotion(Te *testing.T) {
	b, err := NewBox([]float64{10, 20, 30})
	if err != nil {
		Te.Fatal(err)
	}
	if !b.IsRectangular() {
		Te.Error("a box from 3 lengths must be rectangular")
	}
	l := b.Lengths()
	if l[0] != 10 || l[1] != 20 || l[2] != 30 {
		Te.Errorf("wrong lengths: %v", l)
	}
	if v := b.Volume(); math.Abs(v-6000) > 1e-9 {
		Te.Errorf("wrong volume: %f", v)
	}
	_, err = NewBox([]float64{1, 2, 3, 4})
	if err == nil {
		Te.Error("a 4-element box must be rejected")
	}
}

func TestBoxAngles(Te *testing.T) {
	b := FromLengthsAngles(10, 10, 10, 90, 90, 60)
	ang := b.Angles()
	if math.Abs(ang[2]-60) > 1e-9 {
		Te.Errorf("gamma not preserved: %v", ang)
	}
	l := b.Lengths()
	for i := 0; i < 3; i++ {
		if math.Abs(l[i]-10) > 1e-9 {
			Te.Errorf("lengths not preserved: %v", l)
		}
	}
	if b.IsRectangular() {
		Te.Error("a 60 degree box cannot be rectangular")
	}
}

func TestMinImage(Te *testing.T) {
	b, _ := NewBox([]float64{10, 10, 10})
	d := b.MinImage([]float64{9, -9, 4})
	want := []float64{-1, 1, 4}
	for i := 0; i < 3; i++ {
		if math.Abs(d[i]-want[i]) > 1e-12 {
			Te.Errorf("wrong minimum image: %v", d)
		}
	}
}

func TestBoxJSON(Te *testing.T) {
	b, _ := NewBox([]float64{12, 12, 12})
	text, err := b.MarshalJSON()
	if err != nil {
		Te.Fatal(err)
	}
	var back Box
	if err := back.UnmarshalJSON(text); err != nil {
		Te.Fatal(err)
	}
	if !b.Equal(&back, 1e-12) {
		Te.Error("box did not survive the JSON round trip")
	}
}

func TestRotation(Te *testing.T) {
	r := RotationAboutAxis([]float64{0, 0, 1}, math.Pi/2)
	m, _ := NewMatrix([]float64{1, 0, 0})
	m.Rotate(r)
	v := m.VecSlice(0)
	if math.Abs(v[0]) > 1e-12 || math.Abs(v[1]-1) > 1e-12 {
		Te.Errorf("rotation about z failed: %v", v)
	}
}

func TestAngle(Te *testing.T) {
	o := []float64{0, 0, 0}
	x := []float64{1, 0, 0}
	y := []float64{0, 2, 0}
	if a := Angle(x, o, y); math.Abs(a-math.Pi/2) > 1e-12 {
		Te.Errorf("right angle came out as %f", a)
	}
	if a := Angle(x, o, []float64{3, 0, 0}); a != 0 {
		Te.Errorf("parallel vectors should give 0, got %f", a)
	}
	if a := Angle(x, o, []float64{-2, 0, 0}); math.Abs(a-math.Pi) > 1e-12 {
		Te.Errorf("antiparallel vectors should give pi, got %f", a)
	}
}

func TestDihedral(Te *testing.T) {
	a := []float64{0, 1, 0}
	b := []float64{0, 0, 0}
	c := []float64{1, 0, 0}
	//cis: d on the same side as a
	if phi := Dihedral(a, b, c, []float64{1, 1, 0}); math.Abs(phi) > 1e-12 {
		Te.Errorf("cis dihedral %f, want 0", phi)
	}
	//trans: d opposite to a
	if phi := Dihedral(a, b, c, []float64{1, -1, 0}); math.Abs(math.Abs(phi)-math.Pi) > 1e-12 {
		Te.Errorf("trans dihedral %f, want pi", phi)
	}
	if phi := Dihedral(a, b, c, []float64{1, 0, 1}); math.Abs(math.Abs(phi)-math.Pi/2) > 1e-12 {
		Te.Errorf("perpendicular dihedral %f, want pi/2", phi)
	}
}

func TestRandomRotationOrthogonal(Te *testing.T) {
	r := RandomRotation(0.3, 0.7, 0.1)
	//R*R^T must be the identity
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dot := 0.0
			for k := 0; k < 3; k++ {
				dot += r.At(i, k) * r.At(j, k)
			}
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(dot-want) > 1e-12 {
				Te.Errorf("rotation matrix not orthogonal at %d,%d: %f", i, j, dot)
			}
		}
	}
}
