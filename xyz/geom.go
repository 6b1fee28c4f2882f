/*
 * geom.go, part of goff.
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

import "math"

const appzero = 1e-10 //differences under this are floating point noise

func sub3(a, b []float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross3(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm3(a [3]float64) float64 {
	return math.Sqrt(dot3(a, a))
}

// Angle returns the angle at b formed by the points a, b, c, in radians.
func Angle(a, b, c []float64) float64 {
	v1 := sub3(a, b)
	v2 := sub3(c, b)
	arg := dot3(v1, v2) / (norm3(v1) * norm3(v2))
	//acos is only defined in [-1,1]; rounding can push arg just outside
	if math.Abs(arg-1) <= appzero {
		arg = 1
	} else if math.Abs(arg+1) <= appzero {
		arg = -1
	}
	return math.Acos(arg)
}

// Dihedral returns the dihedral angle defined by the chain a-b-c-d, in
// radians, in (-pi, pi].
func Dihedral(a, b, c, d []float64) float64 {
	b1 := sub3(b, a)
	b2 := sub3(c, b)
	b3 := sub3(d, c)
	x := norm3(b2) * dot3(b1, cross3(b2, b3))
	y := dot3(cross3(b1, b2), cross3(b2, b3))
	return math.Atan2(x, y)
}
