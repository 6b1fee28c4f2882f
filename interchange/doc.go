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

// Package interchange holds a parametrized molecular system in an
// engine-agnostic form: a chemical topology plus named collections of
// potentials, each mapping interaction slots (tuples of atom indices) to
// parameters. The same Interchange value can be written out as GROMACS,
// Amber, LAMMPS or OpenMM input by the interop packages, combined with
// other systems, inspected as gonum matrices, or serialized to a
// compressed snapshot and read back.
package interchange
