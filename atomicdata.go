/*
 * atomicdata.go, part of goff.
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

//A map for assigning mass to elements.
//Note that just common "bio-elements" are present
var symbolMass = map[string]float64{
	"H":  1.008,
	"B":  10.81,
	"C":  12.011,
	"O":  15.999,
	"N":  14.007,
	"P":  30.974,
	"S":  32.06,
	"Se": 78.96,
	"K":  39.10,
	"Ca": 40.08,
	"Mg": 24.305,
	"Cl": 35.45,
	"Na": 22.99,
	"Cu": 63.55,
	"Zn": 65.38,
	"Co": 58.93,
	"Fe": 55.84,
	"Mn": 54.94,
	"Si": 28.085,
	"F":  18.998,
	"Br": 79.904,
	"I":  126.904,
	"Li": 6.94,
}

//A map for assigning atomic numbers to elements, and its inverse.
//Needed, among other things, for matching the #n pattern primitive.
var symbolZ = map[string]int{
	"H":  1,
	"Li": 3,
	"B":  5,
	"C":  6,
	"N":  7,
	"O":  8,
	"F":  9,
	"Na": 11,
	"Mg": 12,
	"Si": 14,
	"P":  15,
	"S":  16,
	"Cl": 17,
	"K":  19,
	"Ca": 20,
	"Mn": 25,
	"Fe": 26,
	"Co": 27,
	"Cu": 29,
	"Zn": 30,
	"Se": 34,
	"Br": 35,
	"I":  53,
}

var zSymbol = map[int]string{}

func init() {
	for k, v := range symbolZ {
		zSymbol[v] = k
	}
}

// SymbolZ returns the atomic number for a chemical symbol, or 0
// if the element is not in the tables.
func SymbolZ(symbol string) int {
	return symbolZ[symbol]
}

// ZSymbol returns the chemical symbol for an atomic number, or ""
// if the element is not in the tables.
func ZSymbol(z int) string {
	return zSymbol[z]
}

// SymbolMass returns the standard atomic mass for a chemical symbol,
// or 0 if the element is not in the tables.
func SymbolMass(symbol string) float64 {
	return symbolMass[symbol]
}

//A map for assigning covalent radii to elements
//Values from Cordero et al., 2008 (DOI:10.1039/B801115J)
//Note that just common "bio-elements" are present
var symbolCovrad = map[string]float64{
	"H":  0.4, // 0.31; since H always has only one bond a longer radius is harmless, the extra bonds get eliminated later.
	"B":  0.84,
	"C":  0.76, //the sp3 radius
	"O":  0.66,
	"N":  0.71,
	"P":  1.07,
	"S":  1.05,
	"Se": 1.2,
	"K":  2.03,
	"Ca": 1.76,
	"Mg": 1.41,
	"Cl": 1.02,
	"Na": 1.66,
	"Cu": 1.32,
	"Zn": 1.22,
	"Co": 1.5,  //hs
	"Fe": 1.52, //hs
	"Mn": 1.61, //hs
	"Si": 1.11,
	"F":  0.57,
	"Br": 1.2,
	"I":  1.39,
	"Li": 1.28,
}

//A map for assigning van der Waals radii to elements
//Values from 10.1021/j100785a001 and 10.1021/jp8111556
//metal radii from 10.1023/A:1011625728803
//Note that just common "bio-elements" are present
var symbolVdwrad = map[string]float64{
	"H":  1.10,
	"B":  1.92,
	"C":  1.70,
	"O":  1.52,
	"N":  1.55,
	"P":  1.80,
	"S":  1.80,
	"Se": 1.90,
	"K":  2.75,
	"Ca": 2.31,
	"Mg": 1.73,
	"Cl": 1.75,
	"Na": 2.27,
	"Cu": 2.00,
	"Zn": 2.02,
	"Co": 1.95,
	"Fe": 1.96,
	"Mn": 1.96,
	"Si": 2.10,
	"F":  1.47,
	"Br": 1.83,
	"I":  1.98,
	"Li": 1.82,
}

// SymbolVdwRad returns the van der Waals radius (A) for a chemical symbol,
// or 0 if the element is not in the tables.
func SymbolVdwRad(symbol string) float64 {
	return symbolVdwrad[symbol]
}

//A map for checking that atoms don't
//have too many bonds. A value of 0 means
//undefined, i.e. that this atom shouldn't
//be checked for max bonds.
var symbolMaxBonds = map[string]int{
	"H":  1, //this is the only one truly important.
	"C":  4,
	"O":  2,
	"N":  0, //undefined
	"P":  0,
	"S":  0,
	"Se": 0,
	"B":  0,
	"F":  1,
	"Br": 1,
	"I":  1,
}
