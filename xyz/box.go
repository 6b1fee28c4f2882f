/*
 * box.go, part of goff.
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

package xyz

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Box is a simulation box: a 3x3 matrix whose rows are the box vectors,
// in A. Boxes are expected in the reduced (lower-triangular) form used
// by GROMACS and LAMMPS; FromLengthsAngles always produces that form.
type Box struct {
	m *mat.Dense
}

// InvalidBoxError reports a value that cannot be interpreted as a box.
type InvalidBoxError struct {
	Got int //number of values received
}

func (e *InvalidBoxError) Error() string {
	return fmt.Sprintf("invalid box: need 3 lengths or a full 3x3 matrix (9 values), got %d values", e.Got)
}

// NewBox builds a box from vals. 3 values are taken as the lengths of a
// rectangular box and promoted to a diagonal matrix; 9 values are taken
// as the full matrix, row by row. Anything else returns an InvalidBoxError.
func NewBox(vals []float64) (*Box, error) {
	switch len(vals) {
	case 3:
		m := mat.NewDense(3, 3, nil)
		m.Set(0, 0, vals[0])
		m.Set(1, 1, vals[1])
		m.Set(2, 2, vals[2])
		return &Box{m}, nil
	case 9:
		d := make([]float64, 9)
		copy(d, vals)
		return &Box{mat.NewDense(3, 3, d)}, nil
	default:
		return nil, &InvalidBoxError{Got: len(vals)}
	}
}

// Cubic returns a cubic box with the given edge length.
func Cubic(edge float64) *Box {
	b, _ := NewBox([]float64{edge, edge, edge})
	return b
}

// FromLengthsAngles builds a reduced triclinic box from cell lengths (A)
// and angles (degrees).
func FromLengthsAngles(a, b, c, alpha, beta, gamma float64) *Box {
	d2r := math.Pi / 180.0
	ca, cb, cg := math.Cos(alpha*d2r), math.Cos(beta*d2r), math.Cos(gamma*d2r)
	sg := math.Sin(gamma * d2r)
	m := mat.NewDense(3, 3, nil)
	m.Set(0, 0, a)
	m.Set(1, 0, b*cg)
	m.Set(1, 1, b*sg)
	v3x := c * cb
	v3y := c * (ca - cb*cg) / sg
	v3z := math.Sqrt(c*c - v3x*v3x - v3y*v3y)
	m.Set(2, 0, v3x)
	m.Set(2, 1, v3y)
	m.Set(2, 2, v3z)
	return &Box{m}
}

// At returns the j-th component of the i-th box vector.
func (B *Box) At(i, j int) float64 {
	return B.m.At(i, j)
}

// Vectors returns the box vectors as a 9-element slice, row by row.
func (B *Box) Vectors() []float64 {
	ret := make([]float64, 0, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			ret = append(ret, B.m.At(i, j))
		}
	}
	return ret
}

// Lengths returns the lengths of the three box vectors.
func (B *Box) Lengths() [3]float64 {
	var ret [3]float64
	for i := 0; i < 3; i++ {
		x, y, z := B.m.At(i, 0), B.m.At(i, 1), B.m.At(i, 2)
		ret[i] = math.Sqrt(x*x + y*y + z*z)
	}
	return ret
}

// Angles returns the cell angles alpha, beta, gamma in degrees
// (alpha between b and c, beta between a and c, gamma between a and b).
func (B *Box) Angles() [3]float64 {
	l := B.Lengths()
	dot := func(i, j int) float64 {
		return B.m.At(i, 0)*B.m.At(j, 0) + B.m.At(i, 1)*B.m.At(j, 1) + B.m.At(i, 2)*B.m.At(j, 2)
	}
	r2d := 180.0 / math.Pi
	return [3]float64{
		math.Acos(dot(1, 2)/(l[1]*l[2])) * r2d,
		math.Acos(dot(0, 2)/(l[0]*l[2])) * r2d,
		math.Acos(dot(0, 1)/(l[0]*l[1])) * r2d,
	}
}

// Volume returns the volume of the box in A^3.
func (B *Box) Volume() float64 {
	return math.Abs(mat.Det(B.m))
}

// IsRectangular reports whether all off-diagonal elements are
// (numerically) zero.
func (B *Box) IsRectangular() bool {
	const tol = 1e-8
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i != j && math.Abs(B.m.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}

// Equal reports whether both boxes have the same vectors within tol.
// A nil box only equals another nil box.
func (B *Box) Equal(other *Box, tol float64) bool {
	if B == nil || other == nil {
		return B == other
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(B.m.At(i, j)-other.m.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}

// Copy returns a deep copy of the box.
func (B *Box) Copy() *Box {
	m := mat.NewDense(3, 3, nil)
	m.Copy(B.m)
	return &Box{m}
}

// MinImage applies the minimum image convention to the displacement d,
// in place, and returns it. The box must be in reduced form for the
// triclinic branch to be exact.
func (B *Box) MinImage(d []float64) []float64 {
	if B.IsRectangular() {
		for i := 0; i < 3; i++ {
			l := B.m.At(i, i)
			d[i] -= l * math.Round(d[i]/l)
		}
		return d
	}
	//reduced triclinic: peel the box vectors from the longest axis down
	for i := 2; i >= 0; i-- {
		n := math.Round(d[i] / B.m.At(i, i))
		if n == 0 {
			continue
		}
		d[0] -= n * B.m.At(i, 0)
		d[1] -= n * B.m.At(i, 1)
		d[2] -= n * B.m.At(i, 2)
	}
	return d
}

// Wrap translates the cartesian point v, in place, by whole box vectors
// until its fractional coordinates fall in [0,1), and returns it.
func (B *Box) Wrap(v []float64) []float64 {
	f := B.Fractional(v)
	for i := 2; i >= 0; i-- {
		n := math.Floor(f[i])
		if n == 0 {
			continue
		}
		v[0] -= n * B.m.At(i, 0)
		v[1] -= n * B.m.At(i, 1)
		v[2] -= n * B.m.At(i, 2)
	}
	return v
}

// Fractional returns the fractional coordinates of the cartesian point v.
func (B *Box) Fractional(v []float64) []float64 {
	var ht mat.Dense
	ht.CloneFrom(B.m.T())
	var f mat.VecDense
	rhs := mat.NewVecDense(3, []float64{v[0], v[1], v[2]})
	_ = f.SolveVec(&ht, rhs)
	return []float64{f.AtVec(0), f.AtVec(1), f.AtVec(2)}
}

// Contains reports whether the cartesian point v falls inside the box,
// leaving at least margin (in fractional units) from every face.
func (B *Box) Contains(v []float64, margin float64) bool {
	f := B.Fractional(v)
	for _, x := range f {
		if x < margin || x > 1-margin {
			return false
		}
	}
	return true
}

// MarshalJSON serializes the box as the 9-element row-major vector list.
func (B *Box) MarshalJSON() ([]byte, error) {
	return json.Marshal(B.Vectors())
}

// UnmarshalJSON accepts either 3 lengths or the full 9-element form,
// with the same promotion rules as NewBox.
func (B *Box) UnmarshalJSON(data []byte) error {
	var vals []float64
	if err := json.Unmarshal(data, &vals); err != nil {
		return err
	}
	nb, err := NewBox(vals)
	if err != nil {
		return err
	}
	B.m = nb.m
	return nil
}
