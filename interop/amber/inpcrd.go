/*
 * inpcrd.go, part of goff.
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

package amber

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/imolina/goff/interchange"
)

// WriteInpcrd writes the coordinates as an Amber restart, 6F12.7, in
// angstrom. When the system is periodic a final line carries the box
// lengths and angles.
func WriteInpcrd(w io.Writer, ic *interchange.Interchange) error {
	if ic == nil || ic.Topology == nil || ic.Topology.Len() == 0 {
		return fmt.Errorf("cannot write an inpcrd for an empty system")
	}
	if len(ic.VirtualSiteList()) > 0 {
		return &interchange.UnsupportedExportError{
			Format: "Amber",
			Reason: "virtual sites have no inpcrd representation",
		}
	}
	pos, err := ic.AtomPositions("write an inpcrd file")
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n", titleOf(ic.Topology))
	fmt.Fprintf(bw, "%6d\n", ic.NAtoms())
	n := 0
	for i := 0; i < ic.NAtoms(); i++ {
		v := pos.VecSlice(i)
		for d := 0; d < 3; d++ {
			fmt.Fprintf(bw, "%12.7f", v[d])
			n++
			if n%6 == 0 {
				bw.WriteByte('\n')
			}
		}
	}
	if n%6 != 0 {
		bw.WriteByte('\n')
	}
	if ic.Box != nil {
		l, a := ic.Box.Lengths(), ic.Box.Angles()
		fmt.Fprintf(bw, "%12.7f%12.7f%12.7f%12.7f%12.7f%12.7f\n",
			l[0], l[1], l[2], a[0], a[1], a[2])
	}
	return bw.Flush()
}

// WriteInpcrdFile is WriteInpcrd into a named file.
func WriteInpcrdFile(name string, ic *interchange.Interchange) error {
	fi, err := os.Create(name)
	if err != nil {
		return err
	}
	defer fi.Close()
	if err := WriteInpcrd(fi, ic); err != nil {
		return err
	}
	return fi.Close()
}
