/*
 * doc.go, part of goff.
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

/*
Package gromacs writes a parametrized system as GROMACS input: a topology
file (.top) with one [moleculetype] per unique molecule, and a coordinate
file (.gro). It also reads .gro files back, which the validation drivers
use to round-trip coordinates.

Everything inside an Interchange is in angstrom, kcal/mol and radians;
this package converts to nm, kJ/mol and degrees at the file boundary and
nowhere else. Bonds under a distance constraint are written as
[constraints], not as [bonds], so a rigid water carries no leftover bond
terms for the integrator to fight against.
*/
package gromacs
