/*
 * smirks.go, part of goff.
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

package smirks

import (
	"fmt"

	mol "github.com/imolina/goff"
)

// A ParseError locates the offending byte within the pattern text.
type ParseError struct {
	Pattern string
	Pos     int
	Msg     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("smirks: %s at position %d in %q", e.Msg, e.Pos, e.Pattern)
}

// Pattern is a parsed SMIRKS/SMARTS query, ready to be matched against
// molecules. Patterns are immutable and safe for concurrent use.
type Pattern struct {
	src     string
	atoms   []patAtom
	bonds   []patBond
	nMapped int
	steps   []matchStep
}

type patAtom struct {
	expr   atomExpr
	mapNum int
}

type patBond struct {
	a, b int
	expr bondExpr
}

// String returns the pattern text Parse was given.
func (p *Pattern) String() string { return p.src }

// NumAtoms returns the number of atoms in the pattern, mapped or not.
func (p *Pattern) NumAtoms() int { return len(p.atoms) }

// NumMapped returns the highest atom-map number in the pattern. Mapped
// atoms are numbered 1..NumMapped without gaps.
func (p *Pattern) NumMapped() int { return p.nMapped }

// MustParse is Parse for patterns known at compile time. It panics on error.
func MustParse(s string) *Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err.Error())
	}
	return p
}

// Parse compiles a SMIRKS/SMARTS pattern. Errors carry the position of the
// offending byte. Atom maps, when present, must cover 1..N with no gaps and
// no repeats.
func Parse(s string) (*Pattern, error) {
	p := &parser{src: s, openRings: make(map[int]ringHalf), maps: make(map[int]int)}
	if err := p.run(); err != nil {
		return nil, err
	}
	pat := &Pattern{src: s, atoms: p.atoms, bonds: p.bonds}
	for n := range p.maps {
		if n > pat.nMapped {
			pat.nMapped = n
		}
	}
	if pat.nMapped != len(p.maps) {
		return nil, &ParseError{Pattern: s, Pos: len(s), Msg: fmt.Sprintf("atom maps must be 1..%d with no gaps", len(p.maps))}
	}
	pat.steps = pat.plan()
	return pat, nil
}

type ringHalf struct {
	atom int
	expr bondExpr
	pos  int
}

type parser struct {
	src       string
	pos       int
	atoms     []patAtom
	bonds     []patBond
	openRings map[int]ringHalf
	maps      map[int]int
}

func (p *parser) errf(pos int, msg string) error {
	return &ParseError{Pattern: p.src, Pos: pos, Msg: msg}
}

func (p *parser) peek(ahead int) byte {
	if p.pos+ahead >= len(p.src) {
		return 0
	}
	return p.src[p.pos+ahead]
}

func (p *parser) run() error {
	prev := -1
	var pending bondExpr
	pendingPos := 0
	var stack []int
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '(':
			if prev < 0 {
				return p.errf(p.pos, "branch with no preceding atom")
			}
			if pending != nil {
				return p.errf(pendingPos, "bond before a branch")
			}
			stack = append(stack, prev)
			p.pos++
		case c == ')':
			if len(stack) == 0 {
				return p.errf(p.pos, "unmatched ')'")
			}
			if pending != nil {
				return p.errf(pendingPos, "dangling bond")
			}
			prev = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			p.pos++
		case c == '.':
			return p.errf(p.pos, "disconnected patterns are not supported")
		case c == '$':
			return p.errf(p.pos, "recursive SMARTS are not supported")
		case isBondStart(c):
			if prev < 0 {
				return p.errf(p.pos, "bond with no preceding atom")
			}
			if pending != nil {
				return p.errf(p.pos, "two bond expressions in a row")
			}
			pendingPos = p.pos
			var err error
			pending, err = p.parseBondExpr()
			if err != nil {
				return err
			}
		case isDigit(c) || c == '%':
			if prev < 0 {
				return p.errf(p.pos, "ring closure with no preceding atom")
			}
			start := p.pos
			n, err := p.ringNumber()
			if err != nil {
				return err
			}
			if half, open := p.openRings[n]; open {
				expr := pending
				if expr == nil {
					expr = half.expr
				}
				if expr == nil {
					expr = bondDefault{}
				}
				if half.atom == prev {
					return p.errf(start, "ring bond closes on its own atom")
				}
				p.bonds = append(p.bonds, patBond{a: half.atom, b: prev, expr: expr})
				delete(p.openRings, n)
			} else {
				p.openRings[n] = ringHalf{atom: prev, expr: pending, pos: start}
			}
			pending = nil
		default:
			idx, err := p.parseAtom()
			if err != nil {
				return err
			}
			if prev >= 0 {
				expr := pending
				if expr == nil {
					expr = bondDefault{}
				}
				p.bonds = append(p.bonds, patBond{a: prev, b: idx, expr: expr})
			} else if pending != nil {
				return p.errf(pendingPos, "bond with no preceding atom")
			}
			pending = nil
			prev = idx
		}
	}
	if pending != nil {
		return p.errf(pendingPos, "dangling bond at end of pattern")
	}
	if len(stack) > 0 {
		return p.errf(len(p.src), "unclosed branch")
	}
	for n, half := range p.openRings {
		return p.errf(half.pos, fmt.Sprintf("unclosed ring bond %d", n))
	}
	if len(p.atoms) == 0 {
		return p.errf(0, "empty pattern")
	}
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isBondStart(c byte) bool {
	switch c {
	case '-', '=', '#', ':', '~', '@', '/', '\\', '!':
		return true
	}
	return false
}

func isBondPrim(c byte) bool {
	switch c {
	case '-', '=', '#', ':', '~', '@', '/', '\\':
		return true
	}
	return false
}

func (p *parser) ringNumber() (int, error) {
	if p.src[p.pos] == '%' {
		if !isDigit(p.peek(1)) || !isDigit(p.peek(2)) {
			return 0, p.errf(p.pos, "'%' ring closure needs two digits")
		}
		n := int(p.src[p.pos+1]-'0')*10 + int(p.src[p.pos+2]-'0')
		p.pos += 3
		return n, nil
	}
	n := int(p.src[p.pos] - '0')
	p.pos++
	return n, nil
}

func (p *parser) number() (int, error) {
	start := p.pos
	n := 0
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		n = n*10 + int(p.src[p.pos]-'0')
		p.pos++
	}
	if p.pos == start {
		return 0, p.errf(start, "expected a number")
	}
	return n, nil
}

func (p *parser) maybeNumber() (int, bool) {
	if p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		n, _ := p.number()
		return n, true
	}
	return 0, false
}

// parseAtom handles one atom outside or inside brackets and returns its
// index within the pattern.
func (p *parser) parseAtom() (int, error) {
	c := p.src[p.pos]
	if c == '[' {
		return p.parseBracket()
	}
	var expr atomExpr
	switch {
	case c == '*':
		p.pos++
		expr = anyAtom{}
	case c == 'C' && p.peek(1) == 'l':
		p.pos += 2
		expr = elemExpr{z: 17, arom: -1}
	case c == 'B' && p.peek(1) == 'r':
		p.pos += 2
		expr = elemExpr{z: 35, arom: -1}
	default:
		z, aromatic, ok := organicSubset(c)
		if !ok {
			return 0, p.errf(p.pos, fmt.Sprintf("unexpected character %q", rune(c)))
		}
		p.pos++
		a := int8(-1)
		if aromatic {
			a = 1
		}
		expr = elemExpr{z: z, arom: a}
	}
	p.atoms = append(p.atoms, patAtom{expr: expr})
	return len(p.atoms) - 1, nil
}

func organicSubset(c byte) (z int, aromatic, ok bool) {
	switch c {
	case 'B':
		return 5, false, true
	case 'C':
		return 6, false, true
	case 'N':
		return 7, false, true
	case 'O':
		return 8, false, true
	case 'P':
		return 15, false, true
	case 'S':
		return 16, false, true
	case 'F':
		return 9, false, true
	case 'I':
		return 53, false, true
	case 'b':
		return 5, true, true
	case 'c':
		return 6, true, true
	case 'n':
		return 7, true, true
	case 'o':
		return 8, true, true
	case 'p':
		return 15, true, true
	case 's':
		return 16, true, true
	}
	return 0, false, false
}

func (p *parser) parseBracket() (int, error) {
	open := p.pos
	p.pos++
	if p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		return 0, p.errf(p.pos, "isotope specifications are not supported")
	}
	expr, mapNum, err := p.parseAtomExpr()
	if err != nil {
		return 0, err
	}
	if p.pos >= len(p.src) || p.src[p.pos] != ']' {
		return 0, p.errf(open, "unclosed bracket atom")
	}
	p.pos++
	if mapNum > 0 {
		if _, dup := p.maps[mapNum]; dup {
			return 0, p.errf(open, fmt.Sprintf("atom map %d used twice", mapNum))
		}
		p.maps[mapNum] = len(p.atoms)
	}
	p.atoms = append(p.atoms, patAtom{expr: expr, mapNum: mapNum})
	return len(p.atoms) - 1, nil
}

// Bracket expressions follow SMARTS precedence: '!' binds tightest, then
// '&' (also implied by adjacency), then ',', then ';'.
func (p *parser) parseAtomExpr() (atomExpr, int, error) {
	mapNum := 0
	first, err := p.parseAtomOr(true, &mapNum)
	if err != nil {
		return nil, 0, err
	}
	terms := []atomExpr{first}
	for p.pos < len(p.src) && p.src[p.pos] == ';' {
		p.pos++
		t, err := p.parseAtomOr(false, &mapNum)
		if err != nil {
			return nil, 0, err
		}
		terms = append(terms, t)
	}
	if len(terms) == 1 {
		return terms[0], mapNum, nil
	}
	return andExpr(terms), mapNum, nil
}

func (p *parser) parseAtomOr(first bool, mapNum *int) (atomExpr, error) {
	t, err := p.parseAtomAnd(first, mapNum)
	if err != nil {
		return nil, err
	}
	terms := []atomExpr{t}
	for p.pos < len(p.src) && p.src[p.pos] == ',' {
		p.pos++
		t, err := p.parseAtomAnd(false, mapNum)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return orExpr(terms), nil
}

func (p *parser) parseAtomAnd(first bool, mapNum *int) (atomExpr, error) {
	t, err := p.parseAtomNot(first)
	if err != nil {
		return nil, err
	}
	terms := []atomExpr{t}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '&' {
			p.pos++
			t, err := p.parseAtomNot(false)
			if err != nil {
				return nil, err
			}
			terms = append(terms, t)
			continue
		}
		if c == ':' {
			pos := p.pos
			p.pos++
			n, err := p.number()
			if err != nil {
				return nil, err
			}
			if *mapNum != 0 {
				return nil, p.errf(pos, "second atom map on one atom")
			}
			if n == 0 {
				return nil, p.errf(pos, "atom maps start at 1")
			}
			*mapNum = n
			continue
		}
		if c == '!' || isAtomPrimStart(c) {
			t, err := p.parseAtomNot(false)
			if err != nil {
				return nil, err
			}
			terms = append(terms, t)
			continue
		}
		break
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return andExpr(terms), nil
}

func isAtomPrimStart(c byte) bool {
	return c == '*' || c == '#' || c == '+' || c == '-' ||
		(c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func (p *parser) parseAtomNot(first bool) (atomExpr, error) {
	neg := false
	for p.pos < len(p.src) && p.src[p.pos] == '!' {
		neg = !neg
		first = false
		p.pos++
	}
	prim, err := p.atomPrimitive(first)
	if err != nil {
		return nil, err
	}
	if neg {
		return notExpr{prim}, nil
	}
	return prim, nil
}

// atomPrimitive reads one atomic predicate. hFirst is true only for the
// token that opens the bracket, where a lone H names the hydrogen element
// rather than a hydrogen count.
func (p *parser) atomPrimitive(hFirst bool) (atomExpr, error) {
	if p.pos >= len(p.src) {
		return nil, p.errf(p.pos, "truncated atom expression")
	}
	c := p.src[p.pos]
	switch c {
	case '*':
		p.pos++
		return anyAtom{}, nil
	case '#':
		p.pos++
		z, err := p.number()
		if err != nil {
			return nil, err
		}
		return elemExpr{z: z}, nil
	case '+':
		p.pos++
		n := 1
		for p.pos < len(p.src) && p.src[p.pos] == '+' {
			n++
			p.pos++
		}
		if v, ok := p.maybeNumber(); ok {
			n = v
		}
		return chargeExpr{q: n}, nil
	case '-':
		p.pos++
		n := 1
		for p.pos < len(p.src) && p.src[p.pos] == '-' {
			n++
			p.pos++
		}
		if v, ok := p.maybeNumber(); ok {
			n = v
		}
		return chargeExpr{q: -n}, nil
	}
	// Two-letter element symbols win over single-letter predicates, so Rn
	// is radon and Xe is xenon even though R and X are predicates.
	if z, arom, ok := p.twoLetterSymbol(); ok {
		p.pos += 2
		return elemExpr{z: z, arom: arom}, nil
	}
	switch c {
	case 'a':
		p.pos++
		return aromExpr{want: true}, nil
	case 'A':
		p.pos++
		return aromExpr{want: false}, nil
	case 'H':
		p.pos++
		if hFirst && !isDigit(p.peek(0)) {
			return elemExpr{z: 1, arom: -1}, nil
		}
		n := 1
		if v, ok := p.maybeNumber(); ok {
			n = v
		}
		return hcountExpr{n: n}, nil
	case 'X':
		p.pos++
		n := 1
		if v, ok := p.maybeNumber(); ok {
			n = v
		}
		return degreeExpr{n: n}, nil
	case 'r':
		p.pos++
		if v, ok := p.maybeNumber(); ok {
			if v < 3 {
				return nil, p.errf(p.pos-1, "ring size below 3")
			}
			return ringSizeExpr{n: v}, nil
		}
		return ringSizeExpr{}, nil
	case 'R':
		p.pos++
		if v, ok := p.maybeNumber(); ok {
			return ringCountExpr{n: v}, nil
		}
		return ringCountExpr{n: -1}, nil
	}
	if c >= 'A' && c <= 'Z' {
		if z := mol.SymbolZ(string(c)); z > 0 {
			p.pos++
			return elemExpr{z: z, arom: -1}, nil
		}
	}
	if z, aromatic, ok := organicSubset(c); ok && aromatic {
		p.pos++
		return elemExpr{z: z, arom: 1}, nil
	}
	return nil, p.errf(p.pos, fmt.Sprintf("unknown atom primitive %q", rune(c)))
}

func (p *parser) twoLetterSymbol() (z int, arom int8, ok bool) {
	c, d := p.peek(0), p.peek(1)
	if d < 'a' || d > 'z' {
		return 0, 0, false
	}
	switch {
	case c == 's' && d == 'e':
		return 34, 1, true
	case c == 'a' && d == 's':
		return 33, 1, true
	case c < 'A' || c > 'Z':
		return 0, 0, false
	}
	// Cl and Br are symbols; Ca, Na, Sc and friends too. Anything whose
	// two letters are a known element is taken as that element.
	if z := mol.SymbolZ(string(c) + string(d)); z > 0 {
		return z, -1, true
	}
	return 0, 0, false
}

// Bond expressions share the four precedence levels of atom expressions.
func (p *parser) parseBondExpr() (bondExpr, error) {
	t, err := p.parseBondOr()
	if err != nil {
		return nil, err
	}
	terms := []bondExpr{t}
	for p.pos < len(p.src) && p.src[p.pos] == ';' {
		p.pos++
		t, err := p.parseBondOr()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return bondAnd(terms), nil
}

func (p *parser) parseBondOr() (bondExpr, error) {
	t, err := p.parseBondAnd()
	if err != nil {
		return nil, err
	}
	terms := []bondExpr{t}
	for p.pos < len(p.src) && p.src[p.pos] == ',' {
		p.pos++
		t, err := p.parseBondAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return bondOr(terms), nil
}

func (p *parser) parseBondAnd() (bondExpr, error) {
	t, err := p.parseBondNot()
	if err != nil {
		return nil, err
	}
	terms := []bondExpr{t}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '&' {
			p.pos++
			t, err := p.parseBondNot()
			if err != nil {
				return nil, err
			}
			terms = append(terms, t)
			continue
		}
		if c == '!' || isBondPrim(c) {
			t, err := p.parseBondNot()
			if err != nil {
				return nil, err
			}
			terms = append(terms, t)
			continue
		}
		break
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return bondAnd(terms), nil
}

func (p *parser) parseBondNot() (bondExpr, error) {
	neg := false
	for p.pos < len(p.src) && p.src[p.pos] == '!' {
		neg = !neg
		p.pos++
	}
	if p.pos >= len(p.src) || !isBondPrim(p.src[p.pos]) {
		return nil, p.errf(p.pos, "expected a bond primitive")
	}
	var prim bondExpr
	switch p.src[p.pos] {
	case '-', '/', '\\':
		prim = bondOrder{order: 1}
	case '=':
		prim = bondOrder{order: 2}
	case '#':
		prim = bondOrder{order: 3}
	case ':':
		prim = bondArom{}
	case '~':
		prim = bondAny{}
	case '@':
		prim = bondRing{}
	}
	p.pos++
	if neg {
		return bondNot{prim}, nil
	}
	return prim, nil
}
