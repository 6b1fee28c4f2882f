/*
 * lammps.go, part of goff.
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

package drivers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/interchange"
	"github.com/imolina/goff/interop/lammps"
)

// lammpsCandidates are the binary names tried in order when none is
// given; packagers cannot agree on one.
var lammpsCandidates = []string{"lmp", "lmp_serial", "lmp_mpi"}

// LammpsDriver evaluates a system with LAMMPS: a data file, the input
// preamble the exporter prescribes, and a run 0 whose thermo line
// carries the per-term energies.
type LammpsDriver struct {
	Bin string //explicit binary; when empty the usual names are tried
}

func (L *LammpsDriver) Name() string { return "lammps" }

func (L *LammpsDriver) bin() string {
	if L.Bin != "" {
		return L.Bin
	}
	for _, c := range lammpsCandidates {
		if onPath(c) {
			return c
		}
	}
	return ""
}

// Available reports whether some LAMMPS binary is on the PATH.
func (L *LammpsDriver) Available() bool { return L.bin() != "" }

// lammpsTerms maps thermo column headers to canonical terms. Dihedral
// and improper energies fold into Torsion, the tail correction into vdW
// and the k-space sum into Electrostatics.
var lammpsTerms = map[string]string{
	"E_bond":  TermBond,
	"E_angle": TermAngle,
	"E_dihed": TermTorsion,
	"E_impro": TermTorsion,
	"E_vdwl":  TermVdW,
	"E_tail":  TermVdW,
	"E_coul":  TermElectrostatics,
	"E_long":  TermElectrostatics,
}

// Run writes sp.data and an input script into a scratch directory, runs
// zero steps, and parses the thermo table. Real units, so everything is
// converted from kcal/mol.
func (L *LammpsDriver) Run(ctx context.Context, ic *interchange.Interchange) (*EnergyReport, error) {
	dir, err := os.MkdirTemp("", "goff-lmp")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if err := lammps.WriteDataFile(filepath.Join(dir, "sp.data"), ic); err != nil {
		return nil, err
	}
	input := lammps.InputPreamble(ic)
	if ic.Box == nil {
		input = gasPhaseCutoff(input)
	}
	input += "read_data sp.data\n" +
		"thermo_style custom ebond eangle edihed eimp evdwl ecoul elong etail pe\n" +
		"thermo 1\nrun 0\n"
	if err := os.WriteFile(filepath.Join(dir, "sp.in"), []byte(input), 0644); err != nil {
		return nil, err
	}
	out, err := runCommand(ctx, dir, "", L.bin(), "-in", "sp.in", "-log", "sp.log")
	if err != nil {
		return nil, err
	}
	terms, ok := parseLammpsThermo(out)
	if !ok {
		return nil, fmt.Errorf("no thermo table in the lammps output")
	}
	rep := NewEnergyReport()
	for _, term := range []string{TermBond, TermAngle, TermTorsion, TermVdW, TermElectrostatics} {
		if v, ok := terms[term]; ok {
			rep.Set(term, v*mol.Kcal2KJ)
		}
	}
	return rep, nil
}

// gasPhaseCutoff pushes the pair cutoff past any reasonable molecule, so
// a system with no box is evaluated over every pair the way the other
// evaluators do it.
func gasPhaseCutoff(preamble string) string {
	lines := strings.Split(preamble, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, "pair_style lj/cut/coul/cut") {
			lines[i] = "pair_style lj/cut/coul/cut 999 999"
		}
	}
	return strings.Join(lines, "\n")
}

// parseLammpsThermo finds the thermo header line and the values row
// under it, and folds the known columns into canonical terms.
func parseLammpsThermo(out string) (map[string]float64, bool) {
	lines := strings.Split(out, "\n")
	for i := 0; i+1 < len(lines); i++ {
		head := strings.Fields(lines[i])
		known := 0
		for _, h := range head {
			if _, ok := lammpsTerms[h]; ok {
				known++
			}
		}
		if known == 0 {
			continue
		}
		vals := strings.Fields(lines[i+1])
		if len(vals) != len(head) {
			continue
		}
		terms := make(map[string]float64)
		good := true
		for k, f := range vals {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				good = false
				break
			}
			if term, isTerm := lammpsTerms[head[k]]; isTerm {
				terms[term] += v
			}
		}
		if good {
			return terms, true
		}
	}
	return nil, false
}
