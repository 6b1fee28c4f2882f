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

package mol

// Error is the interface for errors that the packages in this library implement.
// The Decorate method allows to add and retrieve info from the error as it is passed
// up the call stack, without changing its type or wrapping it around something else.
// If passed an empty string, Decorate should just return the current decoration
// slice, not add the empty string to it.
type Error interface {
	Error() string
	Decorate(string) []string
}

// CError is the concrete Error used by this package. Each element of the
// decoration slice should be a function in the calling stack, plus, optionally,
// extra info in the format "FunctionName: Extra info".
type CError struct {
	msg  string
	deco []string
}

func (err *CError) Error() string { return err.msg }

func (err *CError) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

// NewError returns a CError with the given message, already decorated
// with the name of the function reporting it.
func NewError(function, msg string) *CError {
	return &CError{msg: msg, deco: []string{function}}
}

// errDecorate decorates err if it implements Error, and otherwise
// wraps it into a CError so the decoration is not lost.
func errDecorate(err error, caller string) error {
	err2, ok := err.(Error)
	if ok {
		err2.Decorate(caller)
		return err2
	}
	return &CError{msg: err.Error(), deco: []string{caller}}
}

// qerr panics on a non-nil error. It is used together with a deferred
// recover to unwind parsing code; the recover turns the panic back
// into a returned error.
func qerr(err error) {
	if err != nil {
		panic(err.Error())
	}
}

// PanicMsg is the type used for the panic messages of functions that panic
// instead of returning errors (i.e. "fundamental" functions where failure
// points to the program being just wrong).
type PanicMsg string

func (v PanicMsg) Error() string { return string(v) }

const (
	ErrNilAtom          PanicMsg = "goff/mol: nil atom"
	ErrAtomOutOfRange   PanicMsg = "goff/mol: requested atom out of range"
	ErrBondOutOfRange   PanicMsg = "goff/mol: bond refers to an atom out of range"
	ErrNotCrossedBond   PanicMsg = "goff/mol: the origin atom given is not part of the bond"
	ErrNilCoords        PanicMsg = "goff/mol: nil coordinates"
	ErrCoordsMismatched PanicMsg = "goff/mol: coordinate rows don't match the number of atoms"
)
