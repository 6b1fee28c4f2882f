/*
 * fileio.go, part of goff.
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
	"path/filepath"
	"strconv"
	"strings"

	"github.com/imolina/goff/xyz"
)

//XYZ and PDB reading and writing, plus the suffix-dispatched loader the
//packer and the command line use. XYZ files carry no connectivity, so
//molecules read from them have no bonds until AssignBonds is called.

// XYZRead reads one XYZ geometry from r. The comment line is kept as the
// molecule name if nonempty.
func XYZRead(r io.Reader) (*Molecule, error) {
	buf := bufio.NewReader(r)
	line, err := buf.ReadString('\n')
	if err != nil {
		return nil, NewError("XYZRead", "missing atom-count line")
	}
	natoms, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return nil, NewError("XYZRead", "malformed atom-count line: "+line)
	}
	comment, _ := buf.ReadString('\n')
	M := NewMolecule(strings.TrimSpace(comment))
	coords := make([]float64, 0, natoms*3)
	for i := 0; i < natoms; i++ {
		line, err = buf.ReadString('\n')
		if err != nil && line == "" {
			return nil, NewError("XYZRead", fmt.Sprintf("file ends at atom %d of %d", i, natoms))
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, NewError("XYZRead", fmt.Sprintf("line %d ill-formed: %s", i+3, line))
		}
		at := &Atom{Symbol: fields[0], ID: i + 1, MolID: 1}
		at.Name = fmt.Sprintf("%s%d", at.Symbol, i+1)
		M.AddAtom(at)
		for k := 1; k <= 3; k++ {
			v, perr := strconv.ParseFloat(fields[k], 64)
			if perr != nil {
				return nil, NewError("XYZRead", fmt.Sprintf("bad coordinate on line %d: %s", i+3, fields[k]))
			}
			coords = append(coords, v)
		}
	}
	M.Coords, err = xyz.NewMatrix(coords)
	if err != nil {
		return nil, errDecorate(err, "XYZRead")
	}
	return M, nil
}

// XYZFileRead reads the named XYZ file. The file base name is used as the
// molecule name when the comment line is empty.
func XYZFileRead(name string) (*Molecule, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	M, err := XYZRead(f)
	if err != nil {
		return nil, errDecorate(err, "XYZFileRead: "+name)
	}
	if M.Name == "" {
		M.Name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	return M, nil
}

// XYZWrite writes the molecule's conformer to w in XYZ format.
func XYZWrite(w io.Writer, M *Molecule) error {
	if M.Coords == nil || M.Coords.NVecs() != M.Len() {
		return NewError("XYZWrite", string(ErrCoordsMismatched))
	}
	fmt.Fprintf(w, "%d\n%s\n", M.Len(), M.Name)
	for i := 0; i < M.Len(); i++ {
		v := M.Coords.VecSlice(i)
		_, err := fmt.Fprintf(w, "%-2s %12.6f %12.6f %12.6f\n", M.Atoms[i].Symbol, v[0], v[1], v[2])
		if err != nil {
			return err
		}
	}
	return nil
}

// XYZFileWrite writes the molecule to the named file in XYZ format.
func XYZFileWrite(name string, M *Molecule) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return XYZWrite(f, M)
}

//PDB handling. Only the records this library produces and consumes are
//supported: ATOM/HETATM, TER, CRYST1, END. Molecules are split on TER.

// PDBRead reads a PDB from r into a topology: atoms between TER records
// (or with different chain letters) form one molecule each. A CRYST1
// record becomes the topology box. No bonds are assigned.
func PDBRead(r io.Reader) (*Topology, error) {
	top := NewTopology()
	cur := NewMolecule("")
	coords := make([]float64, 0, 300)
	flush := func() error {
		if cur.Len() == 0 {
			return nil
		}
		var err error
		cur.Coords, err = xyz.NewMatrix(coords)
		if err != nil {
			return errDecorate(err, "PDBRead")
		}
		if cur.Name == "" {
			cur.Name = cur.Atoms[0].MolName
		}
		top.AppendMolecule(cur)
		cur = NewMolecule("")
		coords = coords[:0]
		return nil
	}
	buf := bufio.NewReader(r)
	lineno := 0
	for {
		line, rerr := buf.ReadString('\n')
		if rerr != nil && line == "" {
			break
		}
		lineno++
		switch {
		case strings.HasPrefix(line, "ATOM") || strings.HasPrefix(line, "HETATM"):
			at, c, err := pdbLine2Atom(line)
			if err != nil {
				return nil, errDecorate(err, fmt.Sprintf("PDBRead: line %d", lineno))
			}
			cur.AddAtom(at)
			coords = append(coords, c[0], c[1], c[2])
		case strings.HasPrefix(line, "TER"):
			if err := flush(); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "CRYST1"):
			b, err := pdbCryst2Box(line)
			if err != nil {
				return nil, errDecorate(err, fmt.Sprintf("PDBRead: line %d", lineno))
			}
			top.Box = b
		case strings.HasPrefix(line, "END"):
			//both END and ENDMDL stop the reading; multi-model
			//files yield their first model.
			if err := flush(); err != nil {
				return nil, err
			}
			return top, nil
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if top.NMols() == 0 {
		return nil, NewError("PDBRead", "no ATOM or HETATM records found")
	}
	return top, nil
}

// PDBFileRead reads the named PDB file into a topology.
func PDBFileRead(name string) (*Topology, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	top, err := PDBRead(f)
	if err != nil {
		return nil, errDecorate(err, "PDBFileRead: "+name)
	}
	return top, nil
}

func pdbLine2Atom(line string) (*Atom, [3]float64, error) {
	var c [3]float64
	if len(line) < 54 {
		return nil, c, NewError("pdbLine2Atom", "line too short: "+line)
	}
	errs := make([]error, 6)
	at := new(Atom)
	at.Het = strings.HasPrefix(line, "HETATM")
	at.ID, errs[0] = strconv.Atoi(strings.TrimSpace(line[6:11]))
	at.Name = strings.TrimSpace(line[12:16])
	at.MolName = strings.TrimSpace(line[17:21])
	at.Chain = strings.TrimSpace(line[21:22])
	at.MolID, errs[1] = strconv.Atoi(strings.TrimSpace(line[22:26]))
	c[0], errs[2] = strconv.ParseFloat(strings.TrimSpace(line[30:38]), 64)
	c[1], errs[3] = strconv.ParseFloat(strings.TrimSpace(line[38:46]), 64)
	c[2], errs[4] = strconv.ParseFloat(strings.TrimSpace(line[46:54]), 64)
	if len(line) >= 78 {
		at.Symbol = strings.TrimSpace(line[76:78])
	}
	if at.Symbol == "" {
		//guess from the name: strip digits, try 2 letters, then 1
		bare := strings.TrimLeft(at.Name, "0123456789")
		if len(bare) >= 2 && symbolZ[bare[0:1]+strings.ToLower(bare[1:2])] > 0 {
			at.Symbol = bare[0:1] + strings.ToLower(bare[1:2])
		} else if len(bare) >= 1 && symbolZ[bare[0:1]] > 0 {
			at.Symbol = bare[0:1]
		} else {
			errs[5] = NewError("pdbLine2Atom", "couldn't guess the element of atom "+at.Name)
		}
	}
	for _, e := range errs {
		if e != nil {
			return nil, c, errDecorate(e, "pdbLine2Atom")
		}
	}
	return at, c, nil
}

func pdbCryst2Box(line string) (*xyz.Box, error) {
	f := strings.Fields(line)
	if len(f) < 7 {
		return nil, NewError("pdbCryst2Box", "CRYST1 record too short: "+line)
	}
	v := make([]float64, 6)
	for i := 0; i < 6; i++ {
		var err error
		v[i], err = strconv.ParseFloat(f[i+1], 64)
		if err != nil {
			return nil, NewError("pdbCryst2Box", "bad CRYST1 field: "+f[i+1])
		}
	}
	return xyz.FromLengthsAngles(v[0], v[1], v[2], v[3], v[4], v[5]), nil
}

// PDBWrite writes the topology to w as a PDB, one TER per molecule,
// CRYST1 when the topology has a box. All molecules need conformers.
func PDBWrite(w io.Writer, top *Topology) error {
	if top.Box != nil {
		l := top.Box.Lengths()
		a := top.Box.Angles()
		fmt.Fprintf(w, "CRYST1%9.3f%9.3f%9.3f%7.2f%7.2f%7.2f P 1           1\n",
			l[0], l[1], l[2], a[0], a[1], a[2])
	}
	serial := 1
	for mi, M := range top.Mols {
		if M.Coords == nil || M.Coords.NVecs() != M.Len() {
			return NewError("PDBWrite", fmt.Sprintf("molecule %d (%s): %s", mi, M.Name, ErrCoordsMismatched))
		}
		for i, at := range M.Atoms {
			v := M.Coords.VecSlice(i)
			rec := "ATOM  "
			if at.Het {
				rec = "HETATM"
			}
			name := at.Name
			if len(name) < 4 {
				name = " " + name //column 13 is only used by 4-char names
			}
			chain := at.Chain
			if chain == "" {
				chain = "A"
			}
			molname := at.MolName
			if molname == "" {
				molname = "UNL"
			}
			molid := at.MolID
			if molid == 0 {
				molid = mi + 1
			}
			_, err := fmt.Fprintf(w, "%s%5d %-4s %-4s%1s%4d    %8.3f%8.3f%8.3f%6.2f%6.2f          %2s\n",
				rec, serial, name, molname, chain, molid, v[0], v[1], v[2], 1.0, 0.0, at.Symbol)
			if err != nil {
				return err
			}
			serial++
		}
		fmt.Fprint(w, "TER\n")
	}
	fmt.Fprint(w, "END\n")
	return nil
}

// PDBFileWrite writes the topology to the named file as a PDB.
func PDBFileWrite(name string, top *Topology) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return PDBWrite(f, top)
}

// ReadFile loads a structure file into a topology, dispatching on the
// suffix: .sdf (one molecule per record), .pdb and .xyz are understood.
func ReadFile(name string) (*Topology, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".sdf", ".mol":
		mols, err := SDFFileRead(name)
		if err != nil {
			return nil, err
		}
		return NewTopology(mols...), nil
	case ".pdb":
		return PDBFileRead(name)
	case ".xyz":
		M, err := XYZFileRead(name)
		if err != nil {
			return nil, err
		}
		return NewTopology(M), nil
	default:
		return nil, NewError("ReadFile", "don't know how to read "+name)
	}
}
