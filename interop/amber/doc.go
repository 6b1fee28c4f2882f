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
Package amber writes parametrized systems as Amber input: a .prmtop
topology and an .inpcrd coordinate file.

The prmtop format is a sequence of %FLAG sections in fixed Fortran
layouts (20a4, 10I8, 5E16.8) whose conventions differ from the internal
representation in small, treacherous ways: force constants absorb the 1/2
(PK = k/2), charges are scaled by 18.2223, torsion atoms are stored as
3*index with sign flags (negative third atom: skip the 1-4 pair, negative
fourth: improper), and impropers put the central atom third instead of
second. All of that is handled here, at the boundary; distances stay in
angstrom, which Amber shares with the rest of this module.

Virtual sites have no portable prmtop representation, so systems carrying
them are rejected with an UnsupportedExportError.
*/
package amber
