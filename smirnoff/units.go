/*
 * units.go, part of goff.
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
	"strconv"
	"strings"

	mol "github.com/imolina/goff"
)

// unitFactor gives the conversion from one named unit to the internal one
// of its dimension: angstrom for lengths, kcal/mol for energies, radian for
// angles, elementary charge for charges, amu for masses. "mole" appears in
// OFFXML energy expressions but our energies are already molar, so it
// converts as 1.
func unitFactor(name string) (float64, bool) {
	switch name {
	case "angstrom", "angstroms":
		return 1, true
	case "nanometer", "nanometers":
		return 10, true
	case "picometer", "picometers":
		return 0.01, true
	case "bohr":
		return mol.Bohr2A, true
	case "radian", "radians":
		return 1, true
	case "degree", "degrees":
		return math.Pi / 180, true
	case "kilocalorie", "kilocalories":
		return 1, true
	case "kilojoule", "kilojoules":
		return mol.KJ2Kcal, true
	case "kilocalorie_per_mole", "kilocalories_per_mole":
		return 1, true
	case "kilojoule_per_mole", "kilojoules_per_mole":
		return mol.KJ2Kcal, true
	case "mole", "mol":
		return 1, true
	case "elementary_charge", "elementary_charges":
		return 1, true
	case "amu", "dalton", "daltons":
		return 1, true
	}
	return 0, false
}

type unitToken struct {
	kind byte // 'u' unit name, 'n' integer, '*', '/', '^' for **
	text string
	n    int
}

func lexUnits(s string) ([]unitToken, error) {
	var toks []unitToken
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '*':
			if i+1 < len(s) && s[i+1] == '*' {
				toks = append(toks, unitToken{kind: '^'})
				i += 2
			} else {
				toks = append(toks, unitToken{kind: '*'})
				i++
			}
		case c == '/':
			toks = append(toks, unitToken{kind: '/'})
			i++
		case c == '-' || c == '+' || (c >= '0' && c <= '9'):
			j := i + 1
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			n, err := strconv.Atoi(s[i:j])
			if err != nil {
				return nil, fmt.Errorf("bad exponent %q", s[i:j])
			}
			toks = append(toks, unitToken{kind: 'n', n: n})
			i = j
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			j := i + 1
			for j < len(s) && (s[j] == '_' || (s[j] >= 'a' && s[j] <= 'z') || (s[j] >= 'A' && s[j] <= 'Z')) {
				j++
			}
			toks = append(toks, unitToken{kind: 'u', text: strings.ToLower(s[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", string(c))
		}
	}
	return toks, nil
}

// unitsFactor evaluates a unit expression like
// "kilocalorie ** 1 * angstrom ** -2 * mole ** -1" or
// "kilocalories_per_mole/radian**2" into a single conversion factor.
func unitsFactor(expr string) (float64, error) {
	toks, err := lexUnits(expr)
	if err != nil {
		return 0, err
	}
	f := 1.0
	invert := false
	i := 0
	for i < len(toks) {
		t := toks[i]
		switch t.kind {
		case 'u':
			uf, ok := unitFactor(t.text)
			if !ok {
				return 0, fmt.Errorf("unknown unit %q", t.text)
			}
			exp := 1
			if i+1 < len(toks) && toks[i+1].kind == '^' {
				if i+2 >= len(toks) || toks[i+2].kind != 'n' {
					return 0, fmt.Errorf("missing exponent after %q **", t.text)
				}
				exp = toks[i+2].n
				i += 2
			}
			if invert {
				exp = -exp
			}
			f *= math.Pow(uf, float64(exp))
			invert = false
		case '*':
			invert = false
		case '/':
			invert = true
		case '^', 'n':
			return 0, fmt.Errorf("misplaced token in unit expression %q", expr)
		}
		i++
	}
	return f, nil
}

// ParseQuantity converts an OFFXML quantity, a number with an optional unit
// expression ("1.522 * angstrom", "109.5 * degree", "0.5"), into internal
// units. Bare numbers pass through unchanged.
func ParseQuantity(s string) (float64, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	if v, err := strconv.ParseFloat(t, 64); err == nil {
		return v, nil
	}
	// Longest numeric prefix, then units.
	i := 0
	for i < len(t) {
		c := t[i]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' ||
			c == 'e' || c == 'E' {
			i++
			continue
		}
		break
	}
	num := strings.TrimSpace(t[:i])
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("quantity %q: no leading number", s)
	}
	f, err := unitsFactor(t[i:])
	if err != nil {
		return 0, fmt.Errorf("quantity %q: %v", s, err)
	}
	return v * f, nil
}

// MustQuantity is ParseQuantity for hardwired strings; it panics on error.
func MustQuantity(s string) float64 {
	v, err := ParseQuantity(s)
	if err != nil {
		panic(err.Error())
	}
	return v
}
