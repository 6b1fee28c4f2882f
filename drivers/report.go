/*
 * report.go, part of goff.
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
	"fmt"
	"strings"
	"text/tabwriter"

	"go.uber.org/multierr"
)

// Canonical energy terms. Engines that split things differently (1-4
// contributions, reciprocal-space sums, improper torsions) get folded
// into these when their output is parsed.
const (
	TermBond           = "Bond"
	TermAngle          = "Angle"
	TermTorsion        = "Torsion"
	TermVdW            = "vdW"
	TermElectrostatics = "Electrostatics"
	//TermNonbonded is used when an engine reports a single nonbonded
	//number it cannot split into vdW and electrostatics.
	TermNonbonded = "Nonbonded"
)

// DefaultTolerances are the per-term comparison tolerances, in kJ/mol.
// Electrostatics is deliberately loose: the reference evaluator
// truncates where the engines run PME, so a systematic difference is
// expected on periodic systems.
var DefaultTolerances = map[string]float64{
	TermBond:           1.0,
	TermAngle:          1.0,
	TermTorsion:        1.0,
	TermVdW:            10.0,
	TermElectrostatics: 100.0,
	TermNonbonded:      100.0,
}

// An EnergyReport holds single-point energies by term, in kJ/mol, in the
// order the terms were added.
type EnergyReport struct {
	terms map[string]float64
	order []string
}

// NewEnergyReport returns an empty report.
func NewEnergyReport() *EnergyReport {
	return &EnergyReport{terms: make(map[string]float64)}
}

// Set stores a term, replacing any previous value.
func (R *EnergyReport) Set(term string, v float64) {
	if _, ok := R.terms[term]; !ok {
		R.order = append(R.order, term)
	}
	R.terms[term] = v
}

// Add accumulates onto a term, creating it at zero first if needed.
func (R *EnergyReport) Add(term string, v float64) {
	if _, ok := R.terms[term]; !ok {
		R.order = append(R.order, term)
	}
	R.terms[term] += v
}

// Get returns a term and whether it is present.
func (R *EnergyReport) Get(term string) (float64, bool) {
	v, ok := R.terms[term]
	return v, ok
}

// Terms returns the term names in insertion order.
func (R *EnergyReport) Terms() []string {
	return append([]string(nil), R.order...)
}

// Total returns the sum of every term.
func (R *EnergyReport) Total() float64 {
	t := 0.0
	for _, v := range R.terms {
		t += v
	}
	return t
}

// nonbondedSum folds the pairwise terms into one number, for comparing
// against engines that cannot split them.
func (R *EnergyReport) nonbondedSum() float64 {
	s := 0.0
	for _, t := range []string{TermVdW, TermElectrostatics, TermNonbonded} {
		s += R.terms[t]
	}
	return s
}

// Compare returns the signed per-term differences, R minus other, and an
// error naming every term whose magnitude exceeds its tolerance. Terms
// absent from one side count as zero, except that when only one side
// reports a combined Nonbonded term, the comparison folds the other
// side's vdW and Electrostatics into it instead of comparing the split
// terms one by one. A nil tolerance map means DefaultTolerances; terms
// without a tolerance are reported but never flagged.
func (R *EnergyReport) Compare(other *EnergyReport, tol map[string]float64) (map[string]float64, error) {
	if tol == nil {
		tol = DefaultTolerances
	}
	_, mineNB := R.terms[TermNonbonded]
	_, theirsNB := other.terms[TermNonbonded]
	folded := mineNB != theirsNB

	names := R.Terms()
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, n := range other.Terms() {
		if !seen[n] {
			names = append(names, n)
		}
	}

	devs := make(map[string]float64, len(names))
	var errs error
	check := func(term string, d float64) {
		devs[term] = d
		t, ok := tol[term]
		if ok && (d > t || d < -t) {
			errs = multierr.Append(errs, fmt.Errorf("%s differs by %+.4f kJ/mol (tolerance %g)", term, d, t))
		}
	}
	for _, term := range names {
		if folded && (term == TermVdW || term == TermElectrostatics || term == TermNonbonded) {
			continue
		}
		check(term, R.terms[term]-other.terms[term])
	}
	if folded {
		check(TermNonbonded, R.nonbondedSum()-other.nonbondedSum())
	}
	return devs, errs
}

// String renders the report as an aligned table.
func (R *EnergyReport) String() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Term\tkJ/mol\n")
	for _, term := range R.order {
		fmt.Fprintf(w, "%s\t%.4f\n", term, R.terms[term])
	}
	fmt.Fprintf(w, "Total\t%.4f\n", R.Total())
	w.Flush()
	return b.String()
}
