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

// Package smirks parses SMIRKS/SMARTS chemical patterns and matches them
// against goff molecules. The dialect covered is the one force-field
// parameter files actually use: bracket atoms with atomic number, element
// symbol, degree (X), hydrogen count (H), formal charge, aromaticity (a/A)
// and ring predicates (r, R), combined with the usual !, &, comma and
// semicolon logic, plus tagged atom maps ([...:1]) which define the order
// in which matched atom indices are reported.
//
// Recursive SMARTS ($(...)), stereochemistry and disconnected patterns
// are not part of the dialect and are rejected at parse time.
package smirks
