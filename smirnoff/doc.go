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
Package smirnoff reads SMIRNOFF force fields from OFFXML files and applies
them to chemical topologies.

A SMIRNOFF force field assigns parameters by SMIRKS pattern instead of by
atom type: each section (Bonds, Angles, ProperTorsions, vdW, ...) is an
ordered list of patterns, and for every matching tuple of atoms the last
matching pattern wins. Apply runs that assignment over a mol.Topology and
returns an interchange.Interchange holding the parametrized system.

All quantities are converted to the internal units of this module (angstrom,
kcal/mol, radian, elementary charge, amu) while reading, so the numbers a
ForceField or an Interchange hands out never carry OFFXML unit expressions.
*/
package smirnoff
