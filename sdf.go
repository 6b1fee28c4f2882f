/*
 * sdf.go, part of goff.
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

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/imolina/goff/xyz"
)

//SDF (MDL mol, V2000) reading and writing. Fixed-column format: the counts
// line has atoms in cols 0:3 and bonds in 3:6, the atom block has x/y/z in
//cols 0:10/10:20/20:30 and the symbol in 31:34, and the bond block has the
//two atom IDs and the order in 3-column fields. Order 4 marks an aromatic
//bond, which we store as order 1.5 plus the Aromatic flag.

//the old-style charge column of the atom block. 4 (radical) is left out.
var sdfChargeCol = map[int]int{1: 3, 2: 2, 3: 1, 5: -1, 6: -2, 7: -3}

// SDFRead reads every V2000 record in r, one molecule per record.
// Coordinates are attached as the molecule's conformer. Formal charges
// come from M  CHG lines when present, which override the atom-block
// charge column, as the format prescribes.
func SDFRead(r io.Reader) ([]*Molecule, error) {
	mols := make([]*Molecule, 0, 1)
	buf := bufio.NewReader(r)
	for {
		m, err := sdfNextRecord(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errDecorate(err, fmt.Sprintf("SDFRead: record %d", len(mols)+1))
		}
		mols = append(mols, m)
	}
	if len(mols) == 0 {
		return nil, NewError("SDFRead", "no molecule records found")
	}
	return mols, nil
}

// SDFFileRead reads every molecule in the named SDF file.
func SDFFileRead(name string) ([]*Molecule, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mols, err := SDFRead(f)
	if err != nil {
		return nil, errDecorate(err, "SDFFileRead: "+name)
	}
	return mols, nil
}

func sdfNextRecord(buf *bufio.Reader) (M *Molecule, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError("sdfNextRecord", fmt.Sprintf("%v", r))
		}
	}()
	header := make([]string, 0, 3)
	for len(header) < 3 {
		line, rerr := buf.ReadString('\n')
		if rerr != nil && line == "" {
			if len(header) == 0 || (len(header) == 1 && strings.TrimSpace(header[0]) == "") {
				return nil, io.EOF //clean end, possibly after a trailing newline
			}
			return nil, rerr
		}
		header = append(header, strings.TrimRight(line, "\r\n"))
	}
	counts, err := buf.ReadString('\n')
	if err != nil && counts == "" {
		return nil, NewError("sdfNextRecord", "record truncated at the counts line")
	}
	if len(counts) < 6 {
		return nil, NewError("sdfNextRecord", "counts line too short: "+counts)
	}
	natoms, err := strconv.Atoi(strings.TrimSpace(counts[0:3]))
	qerr(err)
	nbonds, err := strconv.Atoi(strings.TrimSpace(counts[3:6]))
	qerr(err)
	M = NewMolecule(strings.TrimSpace(header[0]))
	coords := make([]float64, 0, natoms*3)
	for i := 0; i < natoms; i++ {
		line, rerr := buf.ReadString('\n')
		if rerr != nil && line == "" {
			return nil, NewError("sdfNextRecord", "record truncated in the atom block")
		}
		if len(line) < 34 {
			return nil, NewError("sdfNextRecord", fmt.Sprintf("atom line %d too short: %s", i+1, line))
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(line[0:10]), 64)
		qerr(err)
		y, err := strconv.ParseFloat(strings.TrimSpace(line[10:20]), 64)
		qerr(err)
		z, err := strconv.ParseFloat(strings.TrimSpace(line[20:30]), 64)
		qerr(err)
		at := &Atom{Symbol: strings.TrimSpace(line[31:34]), MolName: M.Name, MolID: 1}
		at.ID = i + 1
		at.Name = fmt.Sprintf("%s%d", at.Symbol, i+1)
		if len(line) >= 39 {
			if cc, err2 := strconv.Atoi(strings.TrimSpace(line[36:39])); err2 == nil {
				at.FormalCharge = sdfChargeCol[cc]
			}
		}
		M.AddAtom(at)
		coords = append(coords, x, y, z)
	}
	for i := 0; i < nbonds; i++ {
		line, rerr := buf.ReadString('\n')
		if rerr != nil && line == "" {
			return nil, NewError("sdfNextRecord", "record truncated in the bond block")
		}
		if len(line) < 9 {
			return nil, NewError("sdfNextRecord", fmt.Sprintf("bond line %d too short: %s", i+1, line))
		}
		a1, err := strconv.Atoi(strings.TrimSpace(line[0:3]))
		qerr(err)
		a2, err := strconv.Atoi(strings.TrimSpace(line[3:6]))
		qerr(err)
		ordercode, err := strconv.Atoi(strings.TrimSpace(line[6:9]))
		qerr(err)
		order := float64(ordercode)
		aromatic := false
		if ordercode == 4 {
			order = 1.5
			aromatic = true
		}
		if err := M.AddBond(a1-1, a2-1, order); err != nil {
			return nil, errDecorate(err, "sdfNextRecord")
		}
		M.Bonds[len(M.Bonds)-1].Aromatic = aromatic
		if aromatic {
			M.Atoms[a1-1].Aromatic = true
			M.Atoms[a2-1].Aromatic = true
		}
	}
	//properties block, up to M  END, then data items up to $$$$
	chgSeen := false
	for {
		line, rerr := buf.ReadString('\n')
		if rerr != nil && line == "" {
			break //records without a $$$$ terminator are tolerated
		}
		clean := strings.TrimSpace(line)
		if clean == "$$$$" {
			break
		}
		if strings.HasPrefix(line, "M  CHG") {
			if !chgSeen {
				//M  CHG resets the atom-block charges
				for _, at := range M.Atoms {
					at.FormalCharge = 0
				}
				chgSeen = true
			}
			f := strings.Fields(clean)
			//fields: M CHG n atom charge atom charge ...
			for k := 3; k+1 < len(f); k += 2 {
				idx, err := strconv.Atoi(f[k])
				qerr(err)
				q, err := strconv.Atoi(f[k+1])
				qerr(err)
				if idx < 1 || idx > M.Len() {
					return nil, NewError("sdfNextRecord", fmt.Sprintf("M  CHG entry for nonexistent atom %d", idx))
				}
				M.Atoms[idx-1].FormalCharge = q
			}
		}
	}
	M.Coords, err = xyz.NewMatrix(coords)
	qerr(err)
	return M, nil
}

// SDFWrite writes the molecules to w as a multi-record V2000 SDF.
// Every molecule needs a conformer.
func SDFWrite(w io.Writer, mols ...*Molecule) error {
	for i, M := range mols {
		if M.Coords == nil || M.Coords.NVecs() != M.Len() {
			return NewError("SDFWrite", fmt.Sprintf("molecule %d (%s): %s", i, M.Name, ErrCoordsMismatched))
		}
		fmt.Fprintf(w, "%s\n  goff\n\n", M.Name)
		fmt.Fprintf(w, "%3d%3d  0  0  0  0  0  0  0  0999 V2000\n", M.Len(), len(M.Bonds))
		for k := 0; k < M.Len(); k++ {
			v := M.Coords.VecSlice(k)
			fmt.Fprintf(w, "%10.4f%10.4f%10.4f %-3s 0  0  0  0  0  0  0  0  0  0  0  0\n",
				v[0], v[1], v[2], M.Atoms[k].Symbol)
		}
		for _, b := range M.Bonds {
			order := int(b.Order)
			if b.Aromatic || b.Order == 1.5 {
				order = 4
			}
			fmt.Fprintf(w, "%3d%3d%3d  0\n", b.At1.Index+1, b.At2.Index+1, order)
		}
		charged := make([]*Atom, 0, 2)
		for _, at := range M.Atoms {
			if at.FormalCharge != 0 {
				charged = append(charged, at)
			}
		}
		//M  CHG lines take at most 8 atom/charge pairs each
		for len(charged) > 0 {
			n := len(charged)
			if n > 8 {
				n = 8
			}
			fmt.Fprintf(w, "M  CHG%3d", n)
			for _, at := range charged[:n] {
				fmt.Fprintf(w, " %3d %3d", at.Index+1, at.FormalCharge)
			}
			fmt.Fprint(w, "\n")
			charged = charged[n:]
		}
		fmt.Fprint(w, "M  END\n$$$$\n")
	}
	return nil
}

// SDFFileWrite writes the molecules to the named file as an SDF.
func SDFFileWrite(name string, mols ...*Molecule) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := SDFWrite(f, mols...); err != nil {
		return errDecorate(err, "SDFFileWrite: "+name)
	}
	return nil
}
