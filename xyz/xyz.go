/*
 * xyz.go, part of goff.
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
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a set of row vectors in 3D space, one per atom.
// It wraps a gonum Dense with 3 columns; the gonum methods
// are all available through embedding.
type Matrix struct {
	*mat.Dense
}

// Dense2Matrix wraps an n-by-3 gonum Dense into a Matrix.
// It panics if A doesn't have exactly 3 columns.
func Dense2Matrix(A *mat.Dense) *Matrix {
	_, c := A.Dims()
	if c != 3 {
		panic(ErrNot3xXMatrix)
	}
	return &Matrix{A}
}

// Matrix2Dense returns the wrapped gonum Dense.
func Matrix2Dense(A *Matrix) *mat.Dense {
	return A.Dense
}

// NewMatrix generates and returns a Matrix with 3 columns from data.
func NewMatrix(data []float64) (*Matrix, error) {
	const cols int = 3
	l := len(data)
	rows := l / cols
	if l%cols != 0 {
		return nil, Error{fmt.Sprintf("input slice length %d not divisible by %d", l, cols), []string{"NewMatrix"}}
	}
	r := mat.NewDense(rows, cols, data)
	return &Matrix{r}, nil
}

// Zeros returns a zero-filled Matrix with vecs vectors.
func Zeros(vecs int) *Matrix {
	return &Matrix{mat.NewDense(vecs, 3, nil)}
}

// NVecs returns the number of vectors in the matrix.
func (F *Matrix) NVecs() int {
	r, _ := F.Dims()
	return r
}

// VecView returns a view of the i-th vector of the matrix.
// Changes in the view are reflected in F and vice-versa.
func (F *Matrix) VecView(i int) *Matrix {
	r := F.Dense.Slice(i, i+1, 0, 3).(*mat.Dense)
	return &Matrix{r}
}

// VecSlice returns a copy of the i-th vector as a 3-element slice.
func (F *Matrix) VecSlice(i int) []float64 {
	return []float64{F.At(i, 0), F.At(i, 1), F.At(i, 2)}
}

// SetVec sets the i-th vector of the matrix to v (only the first
// 3 elements of v are used).
func (F *Matrix) SetVec(i int, v []float64) {
	F.Set(i, 0, v[0])
	F.Set(i, 1, v[1])
	F.Set(i, 2, v[2])
}

// SwapVecs swaps the vectors with indexes i and j.
func (F *Matrix) SwapVecs(i, j int) {
	vi := F.VecSlice(i)
	vj := F.VecSlice(j)
	F.SetVec(i, vj)
	F.SetVec(j, vi)
}

// Copy copies the content of A into the receiver, which must
// already have the same number of vectors.
func (F *Matrix) Copy(A *Matrix) {
	F.Dense.Copy(A.Dense)
}

// Stack returns a new matrix with the vectors of A on top of those of B.
func Stack(A, B *Matrix) *Matrix {
	ret := Zeros(A.NVecs() + B.NVecs())
	ret.StackInto(A, B)
	return ret
}

// StackInto puts A stacked over B in F, which must have
// NVecs(A)+NVecs(B) vectors.
func (F *Matrix) StackInto(A, B *Matrix) {
	ar := A.NVecs()
	br := B.NVecs()
	if F.NVecs() != ar+br {
		panic(ErrShape)
	}
	for i := 0; i < ar; i++ {
		F.SetVec(i, A.VecSlice(i))
	}
	for i := 0; i < br; i++ {
		F.SetVec(ar+i, B.VecSlice(i))
	}
}

// Dist returns the euclidean distance between the i-th and j-th
// vectors of the matrix.
func (F *Matrix) Dist(i, j int) float64 {
	dx := F.At(i, 0) - F.At(j, 0)
	dy := F.At(i, 1) - F.At(j, 1)
	dz := F.At(i, 2) - F.At(j, 2)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Translate adds the vector v to every vector of the matrix, in place.
func (F *Matrix) Translate(v []float64) {
	n := F.NVecs()
	for i := 0; i < n; i++ {
		F.Set(i, 0, F.At(i, 0)+v[0])
		F.Set(i, 1, F.At(i, 1)+v[1])
		F.Set(i, 2, F.At(i, 2)+v[2])
	}
}

// Centroid returns the geometric center of the vectors in the matrix.
func (F *Matrix) Centroid() []float64 {
	n := F.NVecs()
	c := make([]float64, 3)
	for i := 0; i < n; i++ {
		c[0] += F.At(i, 0)
		c[1] += F.At(i, 1)
		c[2] += F.At(i, 2)
	}
	c[0] /= float64(n)
	c[1] /= float64(n)
	c[2] /= float64(n)
	return c
}

// Center translates the matrix, in place, so its centroid is at the origin.
func (F *Matrix) Center() {
	c := F.Centroid()
	F.Translate([]float64{-c[0], -c[1], -c[2]})
}

// MaxDiff returns the largest absolute elementwise difference
// between F and A. Mostly a test helper.
func (F *Matrix) MaxDiff(A *Matrix) float64 {
	if F.NVecs() != A.NVecs() {
		panic(ErrShape)
	}
	maxd := 0.0
	for i := 0; i < F.NVecs(); i++ {
		for j := 0; j < 3; j++ {
			d := math.Abs(F.At(i, j) - A.At(i, j))
			if d > maxd {
				maxd = d
			}
		}
	}
	return maxd
}

// AllZero reports whether every element of the matrix is exactly zero.
func (F *Matrix) AllZero() bool {
	for i := 0; i < F.NVecs(); i++ {
		if F.At(i, 0) != 0 || F.At(i, 1) != 0 || F.At(i, 2) != 0 {
			return false
		}
	}
	return true
}

// Raw returns the underlying float64 slice, row-major. Changes to it
// are reflected in the matrix.
func (F *Matrix) Raw() []float64 {
	return F.Dense.RawMatrix().Data
}

// Error is the error type for the xyz package, implementing the
// mol.Error interface.
type Error struct {
	message string
	deco    []string
}

func (err Error) Error() string { return err.message }

// Decorate adds dec to the decoration slice of strings of the error,
// and returns the resulting slice.
func (err Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

// PanicMsg is the type of the panic messages of this package, so they
// can be recovered into errors.
type PanicMsg string

func (v PanicMsg) Error() string { return string(v) }

const (
	ErrShape        PanicMsg = "goff/xyz: matrices of incompatible shapes"
	ErrNot3xXMatrix PanicMsg = "goff/xyz: a matrix used by this package must have 3 columns"
)
