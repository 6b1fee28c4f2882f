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
Package lammps writes a parametrized system as a LAMMPS data file for
"units real", where a data file alone does not run anything: the force
styles and 1-4 scaling factors live in the input script. InputPreamble
returns the stanza that matches what WriteData emitted, and the energy
drivers embed it verbatim.

Real units keep distances in angstrom and energies in kcal/mol, so the
only conversions here are the harmonic half-constants, angles to degrees
and velocities from A/ps to A/fs.
*/
package lammps
