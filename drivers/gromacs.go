/*
 * gromacs.go, part of goff.
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
	"github.com/imolina/goff/interop/gromacs"
)

// GromacsDriver evaluates a system with GROMACS: grompp, a zero-step
// mdrun rerun over the written coordinates, then gmx energy once per
// term of interest. Needs a periodic system, since the Verlet scheme
// will not run without a box.
type GromacsDriver struct {
	Bin string //the gmx binary, "gmx" when empty
}

func (G *GromacsDriver) Name() string { return "gromacs" }

func (G *GromacsDriver) bin() string {
	if G.Bin != "" {
		return G.Bin
	}
	return "gmx"
}

// Available reports whether the gmx binary is on the PATH.
func (G *GromacsDriver) Available() bool { return onPath(G.bin()) }

// gmxTerms maps gmx energy selections, in the dashed form the selection
// parser takes multi-word names in, to canonical terms. Selections the
// energy file does not carry simply fail and are skipped, so it is fine
// to list terms only some systems produce.
var gmxTerms = []struct{ sel, term string }{
	{"Bond", TermBond},
	{"Angle", TermAngle},
	{"Proper-Dih.", TermTorsion},
	{"Per.-Imp.-Dih.", TermTorsion},
	{"Improper-Dih.", TermTorsion},
	{"LJ-14", TermVdW},
	{"LJ-(SR)", TermVdW},
	{"Disper.-corr.", TermVdW},
	{"Coulomb-14", TermElectrostatics},
	{"Coulomb-(SR)", TermElectrostatics},
	{"Coul.-recip.", TermElectrostatics},
}

// Run writes sp.top, sp.gro and sp.mdp into a scratch directory, builds
// a run input with grompp, reruns the single frame, and reads the terms
// back with gmx energy. Energies are native kJ/mol.
func (G *GromacsDriver) Run(ctx context.Context, ic *interchange.Interchange) (*EnergyReport, error) {
	if ic.Box == nil {
		return nil, fmt.Errorf("the gromacs driver needs a periodic system")
	}
	dir, err := os.MkdirTemp("", "goff-gmx")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if err := gromacs.WriteTopFile(filepath.Join(dir, "sp.top"), ic); err != nil {
		return nil, err
	}
	if err := gromacs.WriteGroFile(filepath.Join(dir, "sp.gro"), ic); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "sp.mdp"), []byte(G.mdp(ic)), 0644); err != nil {
		return nil, err
	}
	_, err = runCommand(ctx, dir, "", G.bin(), "grompp", "-f", "sp.mdp",
		"-c", "sp.gro", "-p", "sp.top", "-o", "sp.tpr", "-maxwarn", "2")
	if err != nil {
		return nil, err
	}
	_, err = runCommand(ctx, dir, "", G.bin(), "mdrun", "-deffnm", "sp",
		"-rerun", "sp.gro", "-ntmpi", "1")
	if err != nil {
		return nil, err
	}

	rep := NewEnergyReport()
	got := false
	for i, t := range gmxTerms {
		out, err := runCommand(ctx, dir, t.sel+"\n0\n", G.bin(), "energy",
			"-f", "sp.edr", "-o", fmt.Sprintf("e%d.xvg", i))
		if err != nil {
			//the term is not in the energy file
			continue
		}
		if v, ok := parseGmxEnergy(out); ok {
			rep.Add(t.term, v)
			got = true
		}
	}
	if !got {
		return nil, fmt.Errorf("no energy terms could be read back from gmx energy")
	}
	return rep, nil
}

// mdp renders run settings for a zero-step single point: plain cutoffs
// with no potential shift, so the short-range terms mean what the raw
// parameters say, and PME only when the force field asked for it.
func (G *GromacsDriver) mdp(ic *interchange.Interchange) string {
	rc := defaultCutoff
	if nb := nonbondedOf(ic, interchange.VdW); nb != nil && nb.Cutoff > 0 {
		rc = nb.Cutoff
	}
	coulomb := "Cut-off"
	if nb := nonbondedOf(ic, interchange.Electrostatics); nb != nil && nb.PeriodicMethod == "pme" {
		coulomb = "PME"
	}
	var b strings.Builder
	b.WriteString("integrator = md\nnsteps = 0\ncutoff-scheme = Verlet\npbc = xyz\n")
	fmt.Fprintf(&b, "rvdw = %.4f\nrcoulomb = %.4f\n", rc*mol.A2Nm, rc*mol.A2Nm)
	b.WriteString("vdw-modifier = None\ncoulomb-modifier = None\n")
	fmt.Fprintf(&b, "coulombtype = %s\n", coulomb)
	b.WriteString("constraints = none\n")
	return b.String()
}

// parseGmxEnergy pulls the average out of a one-term gmx energy table:
// the first field that parses as a number on the first data line after
// the header rule.
func parseGmxEnergy(out string) (float64, bool) {
	lines := strings.Split(out, "\n")
	for i := 1; i < len(lines); i++ {
		if !strings.HasPrefix(strings.TrimSpace(lines[i]), "----") ||
			!strings.HasPrefix(strings.TrimSpace(lines[i-1]), "Energy") {
			continue
		}
		for _, dl := range lines[i+1:] {
			for _, f := range strings.Fields(dl) {
				if v, err := strconv.ParseFloat(f, 64); err == nil {
					return v, true
				}
			}
		}
	}
	return 0, false
}

func nonbondedOf(ic *interchange.Interchange, name string) *interchange.Nonbonded {
	c, err := ic.Collection(name)
	if err != nil {
		return nil
	}
	return c.Nonbonded
}
