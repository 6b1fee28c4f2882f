/*
 * amber.go, part of goff.
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
	"github.com/imolina/goff/interop/amber"
)

// AmberDriver evaluates a system with sander: prmtop plus inpcrd, a
// zero-cycle minimization, and the FINAL RESULTS block of the mdout.
type AmberDriver struct {
	Bin string //the sander binary, "sander" when empty
}

func (A *AmberDriver) Name() string { return "amber" }

func (A *AmberDriver) bin() string {
	if A.Bin != "" {
		return A.Bin
	}
	return "sander"
}

// Available reports whether sander is on the PATH.
func (A *AmberDriver) Available() bool { return onPath(A.bin()) }

// amberTerms maps sander energy names to canonical terms. DIHED already
// includes the impropers, since Amber treats them as ordinary periodic
// torsions, and the 1-4 terms fold into their pairwise totals. EELEC
// covers pmemd, which prints it where sander prints EEL.
var amberTerms = map[string]string{
	"BOND":    TermBond,
	"ANGLE":   TermAngle,
	"DIHED":   TermTorsion,
	"VDWAALS": TermVdW,
	"1-4 VDW": TermVdW,
	"1-4 NB":  TermVdW,
	"EEL":     TermElectrostatics,
	"1-4 EEL": TermElectrostatics,
	"EELEC":   TermElectrostatics,
}

// Run writes sp.prmtop and sp.inpcrd into a scratch directory, runs a
// zero-cycle minimization, and reads the terms out of sp.out. Amber
// works in kcal/mol and angstrom, so values are converted on the way in.
func (A *AmberDriver) Run(ctx context.Context, ic *interchange.Interchange) (*EnergyReport, error) {
	dir, err := os.MkdirTemp("", "goff-amber")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if err := amber.WritePrmtopFile(filepath.Join(dir, "sp.prmtop"), ic); err != nil {
		return nil, err
	}
	if err := amber.WriteInpcrdFile(filepath.Join(dir, "sp.inpcrd"), ic); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "sp.in"), []byte(A.mdin(ic)), 0644); err != nil {
		return nil, err
	}
	_, err = runCommand(ctx, dir, "", A.bin(), "-O", "-i", "sp.in", "-o", "sp.out",
		"-p", "sp.prmtop", "-c", "sp.inpcrd")
	if err != nil {
		return nil, err
	}
	mdout, err := os.ReadFile(filepath.Join(dir, "sp.out"))
	if err != nil {
		return nil, err
	}
	terms, ok := parseAmberMdout(string(mdout))
	if !ok {
		return nil, fmt.Errorf("no FINAL RESULTS block in the sander output")
	}
	rep := NewEnergyReport()
	for _, term := range []string{TermBond, TermAngle, TermTorsion, TermVdW, TermElectrostatics} {
		if v, ok := terms[term]; ok {
			rep.Set(term, v*mol.Kcal2KJ)
		}
	}
	return rep, nil
}

// mdin renders a single-point input: a minimization that never takes a
// step. Periodic systems run under constant volume with the cutoff the
// parameters ask for; systems with no box run in vacuum with the cutoff
// pushed past everything.
func (A *AmberDriver) mdin(ic *interchange.Interchange) string {
	var b strings.Builder
	b.WriteString("single point\n &cntrl\n  imin = 1, maxcyc = 0, ncyc = 0,\n")
	if ic.Box != nil {
		rc := defaultCutoff
		if nb := nonbondedOf(ic, interchange.VdW); nb != nil && nb.Cutoff > 0 {
			rc = nb.Cutoff
		}
		fmt.Fprintf(&b, "  ntb = 1, cut = %.2f,\n", rc)
	} else {
		b.WriteString("  ntb = 0, cut = 999.0,\n")
	}
	b.WriteString(" /\n")
	return b.String()
}

// parseAmberMdout folds the NAME = VALUE pairs under FINAL RESULTS into
// canonical terms, skipping sander's | commentary lines and any name it
// does not know.
func parseAmberMdout(out string) (map[string]float64, bool) {
	lines := strings.Split(out, "\n")
	start := -1
	for i, l := range lines {
		if strings.Contains(l, "FINAL RESULTS") {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, false
	}
	terms := make(map[string]float64)
	got := false
	for _, l := range lines[start:] {
		if strings.HasPrefix(strings.TrimSpace(l), "|") {
			continue
		}
		for name, v := range equalsPairs(l) {
			if term, ok := amberTerms[name]; ok {
				terms[term] += v
				got = true
			}
		}
	}
	return terms, got
}

// equalsPairs parses a line of NAME = VALUE pairs where names can hold
// spaces, the way sander prints energies: each segment between = signs
// carries the value of the pair before it and the name of the next one.
func equalsPairs(line string) map[string]float64 {
	out := make(map[string]float64)
	chunks := strings.Split(line, "=")
	if len(chunks) < 2 {
		return out
	}
	name := strings.TrimSpace(chunks[0])
	for _, c := range chunks[1:] {
		fs := strings.Fields(c)
		if len(fs) == 0 {
			break
		}
		v, err := strconv.ParseFloat(fs[0], 64)
		if err != nil {
			break
		}
		if name != "" {
			out[name] = v
		}
		name = strings.Join(fs[1:], " ")
	}
	return out
}
