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

/*Package mol is the main package of the goFF library. It provides the chemical
model (atoms, bonds, molecules and topologies) on which the rest of the library
operates, element data tables, reading and writing of some common molecular
file formats, and a few classic structure-preparation routines.


	**goFF capabilities**

    Builds chemical topologies from SDF, XYZ and PDB files, or atom by atom.

    Perceives bonds from coordinates, rings from bonds, and a simple
	aromaticity model from rings.

    Enumerates the bonded terms of a topology (angles, proper and improper
	torsions) and the 1-2, 1-3 and 1-4 neighbor pairs needed for
	nonbonded exclusions.

    Assigns Gasteiger-Marsili partial charges.

    Applies SMIRNOFF-style force fields to topologies (package smirnoff),
	producing an engine-independent parametrized system (package
	interchange) that can be written as GROMACS, Amber, LAMMPS or OpenMM
	input (packages under interop/).

    Packs simulation boxes from molecule recipes (package packer) and
	cross-checks energies between engines (package drivers).

Coordinates are handled by the xyz subpackage, which wraps gonum matrices.
Within the library a "vector" is a row of such a matrix, i.e. the cartesian
coordinates of one atom, always in Angstroms. Energies are kcal/mol and
angles radians unless a function says otherwise; conversions happen at
format boundaries only.*/
package mol
