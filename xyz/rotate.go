/*
 * rotate.go, part of goff.
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
	"math"

	"gonum.org/v1/gonum/mat"
)

// RotationAboutAxis returns the 3x3 rotation matrix for a rotation of
// angle radians about the given axis (Rodrigues' formula). The axis
// need not be normalized.
func RotationAboutAxis(axis []float64, angle float64) *mat.Dense {
	n := math.Sqrt(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2])
	ux, uy, uz := axis[0]/n, axis[1]/n, axis[2]/n
	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c
	return mat.NewDense(3, 3, []float64{
		c + ux*ux*t, ux*uy*t - uz*s, ux*uz*t + uy*s,
		uy*ux*t + uz*s, c + uy*uy*t, uy*uz*t - ux*s,
		uz*ux*t - uy*s, uz*uy*t + ux*s, c + uz*uz*t,
	})
}

// RandomRotation maps three uniform variates in [0,1) to a uniformly
// distributed rotation matrix, going through Shoemake's random
// quaternion construction.
func RandomRotation(u1, u2, u3 float64) *mat.Dense {
	s1 := math.Sqrt(1 - u1)
	s2 := math.Sqrt(u1)
	x := s1 * math.Sin(2*math.Pi*u2)
	y := s1 * math.Cos(2*math.Pi*u2)
	z := s2 * math.Sin(2*math.Pi*u3)
	w := s2 * math.Cos(2*math.Pi*u3)
	return quat2Rot(w, x, y, z)
}

func quat2Rot(w, x, y, z float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

// Rotate applies the rotation r to every coordinate row of M, in place.
// Rows are treated as column vectors, so each row v becomes r*v.
func (M *Matrix) Rotate(r *mat.Dense) {
	var out mat.Dense
	out.Mul(M.Dense, r.T())
	M.Dense.Copy(&out)
}
