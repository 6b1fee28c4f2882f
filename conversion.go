/*
 * conversion.go, part of goff.
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

package mol

//This provides useful conversion factors and other constants.
//Internal units are A, kcal/mol, radians and electron charges;
//everything here converts from/to those.

//Conversions
const (
	Deg2Rad = 0.0174533
	Rad2Deg = 1 / 0.0174533
	KJ2Kcal = 1 / 4.184
	Kcal2KJ = 4.184
	A2Nm    = 0.1
	Nm2A    = 10.0
	A2Bohr  = 1.889725989
	Bohr2A  = 1 / 1.889725989
)

//Others
const (
	AmberQ    = 18.2223  //Amber prmtop charges are e * AmberQ (sqrt of the Coulomb constant in Amber units)
	CoulombK  = 332.0637 //Coulomb constant in kcal/mol A e^-2
	AvogadroN = 6.02214076e23
)
