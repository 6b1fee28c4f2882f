/*
 * charges.go, part of goff.
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

package smirnoff

import (
	"fmt"
	"math"
	"sort"
	"strings"

	mol "github.com/imolina/goff"
)

// assembleCharges produces the per-atom partial charges of one molecule.
// The precedence is: preset charges given by the caller, then library
// charges covering the whole molecule, then the force field's charge
// increment model on top of its base method, then the caller's fallback
// method. Virtual-site increments are applied later, per instance.
func assembleCharges(ff *ForceField, m *mol.Molecule, opts *Options, warnf func(string, ...interface{})) ([]float64, error) {
	if pm := findPreset(opts.PresetCharges, m); pm != nil {
		q := append([]float64(nil), pm.PartialCharges()...)
		return normalizeCharges(m, q, warnf), nil
	}

	if ff.LibraryCharges != nil {
		q := make([]float64, m.Len())
		covered := make([]bool, m.Len())
		for _, p := range ff.LibraryCharges.Parameters {
			for _, hit := range p.pat.Matches(m) {
				for k, atom := range hit {
					q[atom] = p.Charges[k]
					covered[atom] = true
				}
			}
		}
		n := 0
		for _, c := range covered {
			if c {
				n++
			}
		}
		if n == m.Len() {
			return normalizeCharges(m, q, warnf), nil
		}
		if n > 0 {
			warnf("library charges cover %d of %d atoms of %s; using another charge source for the whole molecule",
				n, m.Len(), m.Name)
		}
	}

	if ff.ChargeModel != nil {
		base, err := baseCharges(ff.ChargeModel.Method, m, opts, warnf)
		if err != nil {
			return nil, err
		}
		type incHit struct {
			param *ChargeIncrementParameter
			atoms []int
		}
		best := make(map[string]incHit)
		var seen []string
		for _, p := range ff.ChargeModel.Parameters {
			for _, hit := range p.pat.Matches(m) {
				k := tupleKey(hit)
				if _, ok := best[k]; !ok {
					seen = append(seen, k)
				}
				best[k] = incHit{param: p, atoms: append([]int(nil), hit...)}
			}
		}
		for _, k := range seen {
			h := best[k]
			for i, atom := range h.atoms {
				base[atom] += h.param.Increments[i]
			}
		}
		return normalizeCharges(m, base, warnf), nil
	}

	if ff.ToolkitAM1BCC {
		if opts.ChargeMethod == "" {
			return nil, &ChargeMethodError{Molecule: m.Name, Method: "AM1-BCC"}
		}
		warnf("molecule %s: using %s charges instead of AM1-BCC", m.Name, opts.ChargeMethod)
		q, err := namedCharges(opts.ChargeMethod, m)
		if err != nil {
			return nil, err
		}
		return normalizeCharges(m, q, warnf), nil
	}

	if opts.ChargeMethod != "" {
		q, err := namedCharges(opts.ChargeMethod, m)
		if err != nil {
			return nil, err
		}
		return normalizeCharges(m, q, warnf), nil
	}
	return nil, &ChargeMethodError{Molecule: m.Name}
}

// baseCharges computes the base method of a charge increment model, falling
// back to the caller's method when the file asks for one we cannot run.
func baseCharges(method string, m *mol.Molecule, opts *Options, warnf func(string, ...interface{})) ([]float64, error) {
	if !supportedChargeMethod(method) {
		if opts.ChargeMethod == "" {
			return nil, &ChargeMethodError{Molecule: m.Name, Method: method}
		}
		warnf("molecule %s: computing %s charges instead of %s", m.Name, opts.ChargeMethod, method)
		method = opts.ChargeMethod
	}
	return namedCharges(method, m)
}

func supportedChargeMethod(method string) bool {
	switch normalizeChargeMethod(method) {
	case "gasteiger", "formal-charges", "zeros":
		return true
	}
	return false
}

// namedCharges runs one of the partial-charge methods this module can
// compute itself.
func namedCharges(method string, m *mol.Molecule) ([]float64, error) {
	switch normalizeChargeMethod(method) {
	case "gasteiger":
		q, err := mol.GasteigerCharges(m)
		if err != nil {
			return nil, fmt.Errorf("smirnoff: molecule %s: %v", m.Name, err)
		}
		return q, nil
	case "formal-charges":
		q := make([]float64, m.Len())
		for i, at := range m.Atoms {
			q[i] = float64(at.FormalCharge)
		}
		return q, nil
	case "zeros":
		return make([]float64, m.Len()), nil
	}
	return nil, &ChargeMethodError{Molecule: m.Name, Method: method}
}

func normalizeChargeMethod(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "_", "-"))
	switch s {
	case "formal-charge", "formal-charges", "formal":
		return "formal-charges"
	case "zero", "zeros":
		return "zeros"
	}
	return s
}

// normalizeCharges spreads any difference between the summed partial
// charges and the formal net charge evenly over the atoms, so totals stay
// integral after rounding unit conversions.
func normalizeCharges(m *mol.Molecule, q []float64, warnf func(string, ...interface{})) []float64 {
	target := float64(m.NetCharge())
	sum := 0.0
	for _, v := range q {
		sum += v
	}
	miss := target - sum
	if math.Abs(miss) < 1e-10 || len(q) == 0 {
		return q
	}
	if math.Abs(miss) > 0.01 {
		warnf("partial charges of %s sum to %.4f, expected %.0f; spreading the difference",
			m.Name, sum, target)
	}
	shift := miss / float64(len(q))
	for i := range q {
		q[i] += shift
	}
	return q
}

// findPreset picks the caller-provided molecule whose charges should
// override the force field for m, if any.
func findPreset(presets []*mol.Molecule, m *mol.Molecule) *mol.Molecule {
	for _, p := range presets {
		if p == nil || !p.HasCharges() || p.Len() != m.Len() {
			continue
		}
		if p.Name != "" && p.Name == m.Name {
			return p
		}
		if p.Formula() == m.Formula() && sameElementSequence(p, m) {
			return p
		}
	}
	return nil
}

func sameElementSequence(a, b *mol.Molecule) bool {
	for i := range a.Atoms {
		if a.Atoms[i].Z != b.Atoms[i].Z {
			return false
		}
	}
	return true
}

// tupleKey is an order-free key for a matched atom tuple.
func tupleKey(atoms []int) string {
	s := append([]int(nil), atoms...)
	sort.Ints(s)
	return fmt.Sprint(s)
}
