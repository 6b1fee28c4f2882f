/*
 * gro.go, part of goff.
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

package gromacs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/interchange"
	"github.com/imolina/goff/xyz"
)

// WriteGro writes the system coordinates in .gro format, in the same
// particle order as the topology file: each molecule's atoms followed by
// that molecule's virtual sites. Positions are required; velocities go in
// when the system has them.
func WriteGro(w io.Writer, ic *interchange.Interchange) error {
	if ic == nil || ic.Topology == nil || ic.Topology.Len() == 0 {
		return fmt.Errorf("cannot write a .gro file for an empty system")
	}
	pos, err := ic.ParticlePositions("write a .gro file")
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Written by goff, t= 0.0\n")
	fmt.Fprintf(bw, "%5d\n", ic.NParticles())
	top := ic.Topology
	serial := 0
	for m := 0; m < top.NMols(); m++ {
		mm := top.Mols[m]
		off := top.Offset(m)
		resname := crop(cleanName(mm.Name, "MOL"), 5)
		resid := (m + 1) % 100000
		for i := 0; i < mm.Len(); i++ {
			at := mm.Atoms[i]
			name := at.Name
			if name == "" {
				name = fmt.Sprintf("%s%d", at.Symbol, i+1)
			}
			rn := at.MolName
			if rn == "" {
				rn = resname
			}
			serial++
			groRow(bw, ic, pos, resid, crop(rn, 5), crop(name, 5), serial, off+i)
		}
		for si, s := range sitesOf(ic, off, off+mm.Len()) {
			serial++
			groRow(bw, ic, pos, resid, resname, fmt.Sprintf("VS%d", si+1), serial, s.Particle)
		}
	}
	groBox(bw, ic.Box)
	return bw.Flush()
}

// WriteGroFile is WriteGro into a named file.
func WriteGroFile(name string, ic *interchange.Interchange) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := WriteGro(f, ic); err != nil {
		return err
	}
	return f.Close()
}

func groRow(bw *bufio.Writer, ic *interchange.Interchange, pos *xyz.Matrix, resid int, resname, name string, serial, g int) {
	p := pos.VecSlice(g)
	fmt.Fprintf(bw, "%5d%-5s%5s%5d%8.3f%8.3f%8.3f", resid, resname, name, serial%100000,
		p[0]*mol.A2Nm, p[1]*mol.A2Nm, p[2]*mol.A2Nm)
	if v := velocityRow(ic, g); v != nil {
		fmt.Fprintf(bw, "%8.4f%8.4f%8.4f", v[0]*mol.A2Nm, v[1]*mol.A2Nm, v[2]*mol.A2Nm)
	}
	bw.WriteString("\n")
}

// velocityRow gives the velocity of a padded particle index, zero for
// virtual sites when the stored matrix covers atoms only.
func velocityRow(ic *interchange.Interchange, g int) []float64 {
	v := ic.Velocities
	if v == nil {
		return nil
	}
	if v.NVecs() == ic.NParticles() || g < ic.NAtoms() {
		return v.VecSlice(g)
	}
	return []float64{0, 0, 0}
}

func groBox(bw *bufio.Writer, b *xyz.Box) {
	if b == nil {
		fmt.Fprintf(bw, "%10.5f%10.5f%10.5f\n", 0.0, 0.0, 0.0)
		return
	}
	if b.IsRectangular() {
		l := b.Lengths()
		fmt.Fprintf(bw, "%10.5f%10.5f%10.5f\n", l[0]*mol.A2Nm, l[1]*mol.A2Nm, l[2]*mol.A2Nm)
		return
	}
	//order: v1(x) v2(y) v3(z) v1(y) v1(z) v2(x) v2(z) v3(x) v3(y)
	for _, ij := range [9][2]int{{0, 0}, {1, 1}, {2, 2}, {0, 1}, {0, 2}, {1, 0}, {1, 2}, {2, 0}, {2, 1}} {
		fmt.Fprintf(bw, "%10.5f", b.At(ij[0], ij[1])*mol.A2Nm)
	}
	bw.WriteString("\n")
}

// A GroFile is the contents of a .gro file, converted to angstrom, in the
// order the file listed its particles.
type GroFile struct {
	Title      string
	Names      []string
	Residues   []string
	ResIDs     []int
	Positions  *xyz.Matrix
	Velocities *xyz.Matrix //nil when the file has no velocity columns
	Box        *xyz.Box    //nil when the box line is absent or all zeros
}

// Len returns the number of particles read.
func (g *GroFile) Len() int {
	return len(g.Names)
}

// ReadGro parses a .gro file. The drivers use it to pull coordinates back
// from engine output, so it follows the same column-width rule GROMACS
// applies: the width is the distance between the first two decimal points.
func ReadGro(r io.Reader) (*GroFile, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return nil, fmt.Errorf("empty .gro input")
	}
	g := &GroFile{Title: strings.TrimSpace(sc.Text())}
	if !sc.Scan() {
		return nil, fmt.Errorf("truncated .gro input: no particle count")
	}
	n, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil || n < 0 {
		return nil, fmt.Errorf("bad particle count line %q", sc.Text())
	}
	g.Positions = xyz.Zeros(n)
	var vel *xyz.Matrix
	for i := 0; i < n; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("truncated .gro input: got %d of %d particle lines", i, n)
		}
		line := strings.TrimRight(sc.Text(), "\r")
		if len(line) < 20 {
			return nil, fmt.Errorf(".gro line %d too short: %q", i+3, line)
		}
		resid, err := strconv.Atoi(strings.TrimSpace(line[0:5]))
		if err != nil {
			return nil, fmt.Errorf(".gro line %d: bad residue number: %w", i+3, err)
		}
		g.ResIDs = append(g.ResIDs, resid)
		g.Residues = append(g.Residues, strings.TrimSpace(line[5:10]))
		g.Names = append(g.Names, strings.TrimSpace(line[10:15]))
		nums, err := groFloats(line[20:])
		if err != nil {
			return nil, fmt.Errorf(".gro line %d: %w", i+3, err)
		}
		if len(nums) < 3 {
			return nil, fmt.Errorf(".gro line %d has only %d coordinate fields", i+3, len(nums))
		}
		g.Positions.SetVec(i, []float64{nums[0] * mol.Nm2A, nums[1] * mol.Nm2A, nums[2] * mol.Nm2A})
		if len(nums) >= 6 {
			if vel == nil {
				vel = xyz.Zeros(n)
			}
			vel.SetVec(i, []float64{nums[3] * mol.Nm2A, nums[4] * mol.Nm2A, nums[5] * mol.Nm2A})
		}
	}
	g.Velocities = vel
	if sc.Scan() {
		box, err := groBoxLine(sc.Text())
		if err != nil {
			return nil, err
		}
		g.Box = box
	}
	return g, sc.Err()
}

// ReadGroFile is ReadGro on a named file.
func ReadGroFile(name string) (*GroFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := ReadGro(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return g, nil
}

// groFloats splits the numeric tail of a .gro line into its fixed-width
// columns.
func groFloats(s string) ([]float64, error) {
	d1 := strings.IndexByte(s, '.')
	if d1 < 0 {
		return nil, fmt.Errorf("no decimal point in %q", s)
	}
	d2 := strings.IndexByte(s[d1+1:], '.')
	if d2 < 0 {
		return nil, fmt.Errorf("only one numeric column in %q", s)
	}
	width := d2 + 1
	var out []float64
	for start := 0; start+width <= len(s) && len(out) < 6; start += width {
		field := strings.TrimSpace(s[start : start+width])
		if field == "" {
			break
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", field, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func groBoxLine(line string) (*xyz.Box, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	vals := make([]float64, 0, len(fields))
	allZero := true
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad box field %q: %w", f, err)
		}
		if v != 0 {
			allZero = false
		}
		vals = append(vals, v*mol.Nm2A)
	}
	if allZero {
		return nil, nil
	}
	switch len(vals) {
	case 3:
		return xyz.NewBox(vals)
	case 9:
		//back from v1(x) v2(y) v3(z) v1(y) v1(z) v2(x) v2(z) v3(x) v3(y)
		return xyz.NewBox([]float64{
			vals[0], vals[3], vals[4],
			vals[5], vals[1], vals[6],
			vals[7], vals[8], vals[2],
		})
	default:
		return nil, fmt.Errorf("box line has %d fields, want 3 or 9", len(vals))
	}
}
