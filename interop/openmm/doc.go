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

// Package openmm writes a parametrized system as OpenMM System XML, the
// format XmlSerializer produces, so the file loads straight into an
// OpenMM Context. The System carries no coordinates; positions travel
// separately (OpenMM reads them from a State or a PDB).
//
// OpenMM works in nm and kJ/mol, so lengths, force constants and
// epsilons are converted at the boundary. Unlike the other exporters,
// virtual sites export directly: a two-atom average site for bond-charge
// sites and a three-atom average site for planar divalent ones, with the
// averaging weights the parametrization already resolved.
package openmm
