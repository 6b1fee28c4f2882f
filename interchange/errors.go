/*
 * errors.go, part of goff.
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

package interchange

import (
	"fmt"
	"strings"
)

// MissingCollectionError is returned when looking up a collection that the
// Interchange does not carry.
type MissingCollectionError struct {
	Name string
	Have []string
}

func (e *MissingCollectionError) Error() string {
	return fmt.Sprintf("could not find component %s; this object has the following components registered: %s",
		e.Name, strings.Join(e.Have, ", "))
}

// MissingParametersError is returned when a collection has no parameters
// assigned to the requested atoms.
type MissingParametersError struct {
	Collection string
	Key        TopologyKey
}

func (e *MissingParametersError) Error() string {
	return fmt.Sprintf("could not find parameters for atoms %s in the %s collection", e.Key, e.Collection)
}

// MissingPositionsError is returned by operations that need coordinates
// when the Interchange has none.
type MissingPositionsError struct {
	Op string
}

func (e *MissingPositionsError) Error() string {
	return fmt.Sprintf("positions are required to %s, found none", e.Op)
}

// UnsupportedExportError is returned by writers asked to express something
// their format cannot hold.
type UnsupportedExportError struct {
	Format string
	Reason string
}

func (e *UnsupportedExportError) Error() string {
	return fmt.Sprintf("cannot export to %s: %s", e.Format, e.Reason)
}

// CombinationError is returned by Combine when the two systems disagree on
// something that has a single, global value in every supported engine.
type CombinationError struct {
	Reason string
}

func (e *CombinationError) Error() string {
	return "cannot combine systems: " + e.Reason
}
