/*
 * forcefield.go, part of goff.
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
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/imolina/goff/smirks"
)

// A LoadError reports a problem with the contents of an OFFXML file.
type LoadError struct {
	Section string
	ID      string //parameter id or SMIRKS, when the problem is per-parameter
	Msg     string
}

func (e *LoadError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("smirnoff: %s parameter %s: %s", e.Section, e.ID, e.Msg)
	}
	if e.Section != "" {
		return fmt.Sprintf("smirnoff: section %s: %s", e.Section, e.Msg)
	}
	return "smirnoff: " + e.Msg
}

// The XML shapes are generic on purpose: every SMIRNOFF section is a list
// of elements whose attributes carry the actual data, so one pair of types
// covers them all and the per-section code only deals with attribute maps.
type xmlEntry struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
}

type xmlSection struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Entries []xmlEntry `xml:",any"`
}

type xmlRoot struct {
	XMLName  xml.Name     `xml:"SMIRNOFF"`
	Version  string       `xml:"version,attr"`
	Model    string       `xml:"aromaticity_model,attr"`
	Sections []xmlSection `xml:",any"`
}

type attrMap map[string]string

func toAttrMap(attrs []xml.Attr) attrMap {
	m := make(attrMap, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}

func (a attrMap) str(name, def string) string {
	if v, ok := a[name]; ok {
		return v
	}
	return def
}

// quantity parses a required attribute into internal units.
func (a attrMap) quantity(name string) (float64, bool, error) {
	v, ok := a[name]
	if !ok {
		return 0, false, nil
	}
	q, err := ParseQuantity(v)
	if err != nil {
		return 0, true, fmt.Errorf("attribute %s: %v", name, err)
	}
	return q, true, nil
}

func (a attrMap) quantityDefault(name string, def float64) (float64, error) {
	q, ok, err := a.quantity(name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return q, nil
}

// series collects the raw values of numbered attributes prefix1, prefix2...
// stopping at the first gap.
func (a attrMap) series(prefix string) []string {
	var out []string
	for n := 1; ; n++ {
		v, ok := a[prefix+strconv.Itoa(n)]
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func (a attrMap) quantitySeries(prefix string) ([]float64, error) {
	raw := a.series(prefix)
	out := make([]float64, len(raw))
	for i, s := range raw {
		q, err := ParseQuantity(s)
		if err != nil {
			return nil, fmt.Errorf("attribute %s%d: %v", prefix, i+1, err)
		}
		out[i] = q
	}
	return out, nil
}

// compilePattern parses the SMIRKS of a parameter and checks its mapped-atom
// count. want < 0 means any count larger than zero.
func compilePattern(section, id, src string, want int) (*smirks.Pattern, error) {
	if src == "" {
		return nil, &LoadError{section, id, "missing smirks attribute"}
	}
	pat, err := smirks.Parse(src)
	if err != nil {
		return nil, &LoadError{section, id, err.Error()}
	}
	if want > 0 && pat.NumMapped() != want {
		return nil, &LoadError{section, id,
			fmt.Sprintf("pattern %s maps %d atoms, need %d", src, pat.NumMapped(), want)}
	}
	if want < 0 && pat.NumMapped() == 0 {
		return nil, &LoadError{section, id, fmt.Sprintf("pattern %s maps no atoms", src)}
	}
	return pat, nil
}

// A BondParameter is one line of the Bonds section. Either Length/K are set,
// or the bond-order anchor maps are (never both halves for the same field).
type BondParameter struct {
	SMIRKS string
	ID     string
	Length float64
	K      float64
	//anchor points for fractional bond-order interpolation, keyed by
	//integer bond order. nil when the parameter is plain.
	LengthBondOrder map[int]float64
	KBondOrder      map[int]float64
	pat             *smirks.Pattern
}

// Interpolated reports whether any field of the parameter depends on the
// fractional bond order.
func (p *BondParameter) Interpolated() bool {
	return p.KBondOrder != nil || p.LengthBondOrder != nil
}

// At evaluates the parameter at the given bond order, interpolating (or,
// outside the anchor range, extrapolating) linearly between anchors.
func (p *BondParameter) At(order float64) (length, k float64) {
	length = p.Length
	k = p.K
	if p.LengthBondOrder != nil {
		length = interpolateAnchors(p.LengthBondOrder, order)
	}
	if p.KBondOrder != nil {
		k = interpolateAnchors(p.KBondOrder, order)
	}
	return length, k
}

func interpolateAnchors(anchors map[int]float64, order float64) float64 {
	keys := make([]int, 0, len(anchors))
	for k := range anchors {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	if len(keys) == 1 {
		return anchors[keys[0]]
	}
	i := 0
	for i < len(keys)-2 && float64(keys[i+1]) < order {
		i++
	}
	lo, hi := float64(keys[i]), float64(keys[i+1])
	t := (order - lo) / (hi - lo)
	vlo, vhi := anchors[keys[i]], anchors[keys[i+1]]
	return vlo + t*(vhi-vlo)
}

// BondHandler is the Bonds section: harmonic bond stretches.
type BondHandler struct {
	Potential     string
	OrderMethod   string //fractional bond-order source named by the file
	Interpolation string
	Parameters    []*BondParameter
}

// AngleParameter is one line of the Angles section.
type AngleParameter struct {
	SMIRKS string
	ID     string
	Angle  float64 //equilibrium angle, radians
	K      float64 //kcal/mol/rad^2
	pat    *smirks.Pattern
}

type AngleHandler struct {
	Potential  string
	Parameters []*AngleParameter
}

// TorsionParameter is one line of ProperTorsions or ImproperTorsions. The
// slices run over the cosine terms of the series; IDivF holds NaN where the
// file said (or defaulted to) "auto".
type TorsionParameter struct {
	SMIRKS      string
	ID          string
	Periodicity []int
	Phase       []float64 //radians
	K           []float64 //kcal/mol
	IDivF       []float64
	pat         *smirks.Pattern
}

type TorsionHandler struct {
	Potential string
	Proper    bool
	//DefaultIDivF applies to terms without their own idivf; NaN means "auto".
	DefaultIDivF float64
	Parameters   []*TorsionParameter
}

// VdWParameter is one line of the vdW section, always stored as
// sigma/epsilon. rmin_half inputs are converted at load time.
type VdWParameter struct {
	SMIRKS  string
	ID      string
	Sigma   float64
	Epsilon float64
	pat     *smirks.Pattern
}

type VdWHandler struct {
	Potential   string
	MixingRule  string
	Scale12     float64
	Scale13     float64
	Scale14     float64
	Scale15     float64
	Cutoff      float64
	SwitchWidth float64
	Periodic    string
	Nonperiodic string
	Parameters  []*VdWParameter
}

// ElectrostaticsHandler has no parameter lines, only the global settings.
type ElectrostaticsHandler struct {
	Scale12     float64
	Scale13     float64
	Scale14     float64
	Scale15     float64
	Cutoff      float64
	SwitchWidth float64
	Periodic    string
	Nonperiodic string
}

// LibraryChargeParameter fixes the charges of every atom its pattern maps.
type LibraryChargeParameter struct {
	SMIRKS  string
	ID      string
	Charges []float64
	pat     *smirks.Pattern
}

type LibraryChargeHandler struct {
	Parameters []*LibraryChargeParameter
}

// ChargeIncrementParameter moves charge between the mapped atoms: increment
// k is added to the charge of mapped atom k. When the file lists one
// increment fewer than it maps atoms, the last one is minus the sum of the
// others, so each parameter conserves charge.
type ChargeIncrementParameter struct {
	SMIRKS     string
	ID         string
	Increments []float64
	pat        *smirks.Pattern
}

type ChargeIncrementHandler struct {
	Method      string //partial charge method the increments correct
	NConformers int
	Parameters  []*ChargeIncrementParameter
}

// ConstraintParameter freezes the distance between two atoms. Without an
// explicit distance the assigned bond length is used at apply time.
type ConstraintParameter struct {
	SMIRKS      string
	ID          string
	Distance    float64
	HasDistance bool
	pat         *smirks.Pattern
}

type ConstraintHandler struct {
	Parameters []*ConstraintParameter
}

// VirtualSiteParameter places a massless charged particle relative to the
// mapped atoms. The first mapped atom is the parent the site is anchored to.
type VirtualSiteParameter struct {
	SMIRKS          string
	Type            string //BondCharge or DivalentLonePair
	Name            string
	Distance        float64
	OutOfPlaneAngle float64
	Increments      []float64
	Sigma           float64
	Epsilon         float64
	Match           string //"once" or "all_permutations"
	pat             *smirks.Pattern
}

type VirtualSiteHandler struct {
	ExclusionPolicy string
	Parameters      []*VirtualSiteParameter
}

// ForceField is a parsed SMIRNOFF force field. Section fields are nil when
// the file does not carry the section. All numbers are in internal units.
type ForceField struct {
	Version     string
	Aromaticity string
	Author      string
	Date        string

	Constraints      *ConstraintHandler
	Bonds            *BondHandler
	Angles           *AngleHandler
	ProperTorsions   *TorsionHandler
	ImproperTorsions *TorsionHandler
	VdW              *VdWHandler
	Electrostatics   *ElectrostaticsHandler
	LibraryCharges   *LibraryChargeHandler
	ChargeModel      *ChargeIncrementHandler
	VirtualSites     *VirtualSiteHandler

	//ToolkitAM1BCC is a directive, not a parameter list: charges come
	//from AM1-BCC, which this module cannot compute. Apply needs a
	//charge override (or library coverage) when it is the only source.
	ToolkitAM1BCC bool

	sections []string //section names in file order
	Unknown  []string //sections we do not understand
}

// Load reads a SMIRNOFF force field from an OFFXML file.
func Load(path string) (*ForceField, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ff, err := LoadReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return ff, nil
}

// LoadReader reads a SMIRNOFF force field from OFFXML text.
func LoadReader(r io.Reader) (*ForceField, error) {
	var root xmlRoot
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("smirnoff: %v", err)
	}
	ff := &ForceField{Version: root.Version, Aromaticity: root.Model}
	for i := range root.Sections {
		sec := &root.Sections[i]
		name := sec.XMLName.Local
		var err error
		switch name {
		case "Author":
			ff.Author = strings.TrimSpace(sec.Text)
			continue
		case "Date":
			ff.Date = strings.TrimSpace(sec.Text)
			continue
		case "Constraints":
			ff.Constraints, err = parseConstraints(sec)
		case "Bonds":
			ff.Bonds, err = parseBonds(sec)
		case "Angles":
			ff.Angles, err = parseAngles(sec)
		case "ProperTorsions":
			ff.ProperTorsions, err = parseTorsions(sec, true)
		case "ImproperTorsions":
			ff.ImproperTorsions, err = parseTorsions(sec, false)
		case "vdW":
			ff.VdW, err = parseVdW(sec)
		case "Electrostatics":
			ff.Electrostatics, err = parseElectrostatics(sec)
		case "LibraryCharges":
			ff.LibraryCharges, err = parseLibraryCharges(sec)
		case "ChargeIncrementModel":
			ff.ChargeModel, err = parseChargeModel(sec)
		case "VirtualSites":
			ff.VirtualSites, err = parseVirtualSites(sec)
		case "ToolkitAM1BCC":
			ff.ToolkitAM1BCC = true
		default:
			ff.Unknown = append(ff.Unknown, name)
		}
		if err != nil {
			return nil, err
		}
		ff.sections = append(ff.sections, name)
	}
	return ff, nil
}

// SectionNames lists the sections of the file, in file order.
func (ff *ForceField) SectionNames() []string {
	return append([]string(nil), ff.sections...)
}

// Handler returns the parameter handler behind a section name, or nil
// when the file has no such section. The caller type-asserts to the
// concrete handler; the typed fields of ForceField are the more
// convenient route when the section is known at compile time.
func (ff *ForceField) Handler(name string) interface{} {
	switch name {
	case "Constraints":
		if ff.Constraints != nil {
			return ff.Constraints
		}
	case "Bonds":
		if ff.Bonds != nil {
			return ff.Bonds
		}
	case "Angles":
		if ff.Angles != nil {
			return ff.Angles
		}
	case "ProperTorsions":
		if ff.ProperTorsions != nil {
			return ff.ProperTorsions
		}
	case "ImproperTorsions":
		if ff.ImproperTorsions != nil {
			return ff.ImproperTorsions
		}
	case "vdW":
		if ff.VdW != nil {
			return ff.VdW
		}
	case "Electrostatics":
		if ff.Electrostatics != nil {
			return ff.Electrostatics
		}
	case "LibraryCharges":
		if ff.LibraryCharges != nil {
			return ff.LibraryCharges
		}
	case "ChargeIncrementModel":
		if ff.ChargeModel != nil {
			return ff.ChargeModel
		}
	case "VirtualSites":
		if ff.VirtualSites != nil {
			return ff.VirtualSites
		}
	}
	return nil
}

// LJ14Scale is the factor applied to 1-4 Lennard-Jones interactions.
func (ff *ForceField) LJ14Scale() float64 {
	if ff.VdW == nil {
		return 0.5
	}
	return ff.VdW.Scale14
}

// Coulomb14Scale is the factor applied to 1-4 electrostatic interactions.
func (ff *ForceField) Coulomb14Scale() float64 {
	if ff.Electrostatics == nil {
		return 1.0 / 1.2
	}
	return ff.Electrostatics.Scale14
}

func parseConstraints(sec *xmlSection) (*ConstraintHandler, error) {
	h := new(ConstraintHandler)
	for _, e := range sec.Entries {
		if e.XMLName.Local != "Constraint" {
			return nil, &LoadError{"Constraints", "", "unexpected element " + e.XMLName.Local}
		}
		a := toAttrMap(e.Attrs)
		p := &ConstraintParameter{SMIRKS: a["smirks"], ID: a["id"]}
		var err error
		if p.pat, err = compilePattern("Constraints", p.label(), p.SMIRKS, 2); err != nil {
			return nil, err
		}
		d, ok, err := a.quantity("distance")
		if err != nil {
			return nil, &LoadError{"Constraints", p.label(), err.Error()}
		}
		p.Distance, p.HasDistance = d, ok
		h.Parameters = append(h.Parameters, p)
	}
	return h, nil
}

func (p *ConstraintParameter) label() string {
	if p.ID != "" {
		return p.ID
	}
	return p.SMIRKS
}

func parseBonds(sec *xmlSection) (*BondHandler, error) {
	sa := toAttrMap(sec.Attrs)
	h := &BondHandler{
		Potential:     sa.str("potential", "harmonic"),
		OrderMethod:   sa.str("fractional_bondorder_method", ""),
		Interpolation: sa.str("fractional_bondorder_interpolation", "linear"),
	}
	for _, e := range sec.Entries {
		if e.XMLName.Local != "Bond" {
			return nil, &LoadError{"Bonds", "", "unexpected element " + e.XMLName.Local}
		}
		a := toAttrMap(e.Attrs)
		p := &BondParameter{SMIRKS: a["smirks"], ID: a["id"]}
		label := p.ID
		if label == "" {
			label = p.SMIRKS
		}
		var err error
		if p.pat, err = compilePattern("Bonds", label, p.SMIRKS, 2); err != nil {
			return nil, err
		}
		if p.LengthBondOrder, err = anchorMap(a, "length_bondorder"); err != nil {
			return nil, &LoadError{"Bonds", label, err.Error()}
		}
		if p.KBondOrder, err = anchorMap(a, "k_bondorder"); err != nil {
			return nil, &LoadError{"Bonds", label, err.Error()}
		}
		length, okL, err := a.quantity("length")
		if err != nil {
			return nil, &LoadError{"Bonds", label, err.Error()}
		}
		k, okK, err := a.quantity("k")
		if err != nil {
			return nil, &LoadError{"Bonds", label, err.Error()}
		}
		p.Length, p.K = length, k
		if !okL && p.LengthBondOrder == nil {
			return nil, &LoadError{"Bonds", label, "needs length or length_bondorder anchors"}
		}
		if !okK && p.KBondOrder == nil {
			return nil, &LoadError{"Bonds", label, "needs k or k_bondorder anchors"}
		}
		h.Parameters = append(h.Parameters, p)
	}
	return h, nil
}

// anchorMap collects numbered bond-order anchors (prefix1, prefix2, ...)
// into an order->value map. Returns nil when there are none.
func anchorMap(a attrMap, prefix string) (map[int]float64, error) {
	vals, err := a.quantitySeries(prefix)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	if len(vals) == 1 {
		return nil, fmt.Errorf("%s needs at least two anchor points", prefix)
	}
	m := make(map[int]float64, len(vals))
	for i, v := range vals {
		m[i+1] = v
	}
	return m, nil
}

func parseAngles(sec *xmlSection) (*AngleHandler, error) {
	sa := toAttrMap(sec.Attrs)
	h := &AngleHandler{Potential: sa.str("potential", "harmonic")}
	for _, e := range sec.Entries {
		if e.XMLName.Local != "Angle" {
			return nil, &LoadError{"Angles", "", "unexpected element " + e.XMLName.Local}
		}
		a := toAttrMap(e.Attrs)
		p := &AngleParameter{SMIRKS: a["smirks"], ID: a["id"]}
		label := p.ID
		if label == "" {
			label = p.SMIRKS
		}
		var err error
		if p.pat, err = compilePattern("Angles", label, p.SMIRKS, 3); err != nil {
			return nil, err
		}
		angle, ok, err := a.quantity("angle")
		if err != nil || !ok {
			return nil, &LoadError{"Angles", label, attrProblem("angle", err)}
		}
		k, ok, err := a.quantity("k")
		if err != nil || !ok {
			return nil, &LoadError{"Angles", label, attrProblem("k", err)}
		}
		p.Angle, p.K = angle, k
		h.Parameters = append(h.Parameters, p)
	}
	return h, nil
}

func attrProblem(name string, err error) string {
	if err != nil {
		return err.Error()
	}
	return "missing attribute " + name
}

func parseTorsions(sec *xmlSection, proper bool) (*TorsionHandler, error) {
	section, element := "ImproperTorsions", "Improper"
	if proper {
		section, element = "ProperTorsions", "Proper"
	}
	sa := toAttrMap(sec.Attrs)
	h := &TorsionHandler{
		Potential: sa.str("potential", "k*(1+cos(periodicity*theta-phase))"),
		Proper:    proper,
	}
	def := sa.str("default_idivf", "auto")
	if def == "auto" {
		h.DefaultIDivF = math.NaN()
	} else {
		v, err := strconv.ParseFloat(def, 64)
		if err != nil {
			return nil, &LoadError{section, "", "bad default_idivf " + def}
		}
		h.DefaultIDivF = v
	}
	for _, e := range sec.Entries {
		if e.XMLName.Local != element {
			return nil, &LoadError{section, "", "unexpected element " + e.XMLName.Local}
		}
		a := toAttrMap(e.Attrs)
		p := &TorsionParameter{SMIRKS: a["smirks"], ID: a["id"]}
		label := p.ID
		if label == "" {
			label = p.SMIRKS
		}
		var err error
		if p.pat, err = compilePattern(section, label, p.SMIRKS, 4); err != nil {
			return nil, err
		}
		periods := a.series("periodicity")
		if len(periods) == 0 {
			return nil, &LoadError{section, label, "missing attribute periodicity1"}
		}
		p.Periodicity = make([]int, len(periods))
		for i, s := range periods {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return nil, &LoadError{section, label, "bad periodicity " + s}
			}
			p.Periodicity[i] = n
		}
		if p.Phase, err = a.quantitySeries("phase"); err != nil {
			return nil, &LoadError{section, label, err.Error()}
		}
		if p.K, err = a.quantitySeries("k"); err != nil {
			return nil, &LoadError{section, label, err.Error()}
		}
		if len(p.Phase) != len(p.Periodicity) || len(p.K) != len(p.Periodicity) {
			return nil, &LoadError{section, label,
				fmt.Sprintf("got %d periodicities, %d phases, %d force constants",
					len(p.Periodicity), len(p.Phase), len(p.K))}
		}
		idivs := a.series("idivf")
		if len(idivs) > len(p.Periodicity) {
			return nil, &LoadError{section, label, "more idivf values than terms"}
		}
		p.IDivF = make([]float64, len(p.Periodicity))
		for i := range p.IDivF {
			if i >= len(idivs) || idivs[i] == "auto" {
				if i >= len(idivs) {
					p.IDivF[i] = h.DefaultIDivF
				} else {
					p.IDivF[i] = math.NaN()
				}
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(idivs[i]), 64)
			if err != nil {
				return nil, &LoadError{section, label, "bad idivf " + idivs[i]}
			}
			p.IDivF[i] = v
		}
		h.Parameters = append(h.Parameters, p)
	}
	return h, nil
}

func parseVdW(sec *xmlSection) (*VdWHandler, error) {
	sa := toAttrMap(sec.Attrs)
	h := &VdWHandler{
		Potential:   sa.str("potential", "Lennard-Jones-12-6"),
		MixingRule:  strings.ToLower(sa.str("combining_rules", "Lorentz-Berthelot")),
		Periodic:    strings.ToLower(sa.str("periodic_method", sa.str("method", "cutoff"))),
		Nonperiodic: strings.ToLower(sa.str("nonperiodic_method", "no-cutoff")),
	}
	var err error
	if h.Scale12, err = sa.quantityDefault("scale12", 0); err != nil {
		return nil, &LoadError{"vdW", "", err.Error()}
	}
	if h.Scale13, err = sa.quantityDefault("scale13", 0); err != nil {
		return nil, &LoadError{"vdW", "", err.Error()}
	}
	if h.Scale14, err = sa.quantityDefault("scale14", 0.5); err != nil {
		return nil, &LoadError{"vdW", "", err.Error()}
	}
	if h.Scale15, err = sa.quantityDefault("scale15", 1); err != nil {
		return nil, &LoadError{"vdW", "", err.Error()}
	}
	if h.Cutoff, err = sa.quantityDefault("cutoff", 9); err != nil {
		return nil, &LoadError{"vdW", "", err.Error()}
	}
	if h.SwitchWidth, err = sa.quantityDefault("switch_width", 1); err != nil {
		return nil, &LoadError{"vdW", "", err.Error()}
	}
	for _, e := range sec.Entries {
		if e.XMLName.Local != "Atom" {
			return nil, &LoadError{"vdW", "", "unexpected element " + e.XMLName.Local}
		}
		a := toAttrMap(e.Attrs)
		p := &VdWParameter{SMIRKS: a["smirks"], ID: a["id"]}
		label := p.ID
		if label == "" {
			label = p.SMIRKS
		}
		if p.pat, err = compilePattern("vdW", label, p.SMIRKS, 1); err != nil {
			return nil, err
		}
		eps, ok, err := a.quantity("epsilon")
		if err != nil || !ok {
			return nil, &LoadError{"vdW", label, attrProblem("epsilon", err)}
		}
		p.Epsilon = eps
		sigma, okS, err := a.quantity("sigma")
		if err != nil {
			return nil, &LoadError{"vdW", label, err.Error()}
		}
		rmin, okR, err := a.quantity("rmin_half")
		if err != nil {
			return nil, &LoadError{"vdW", label, err.Error()}
		}
		switch {
		case okS && okR:
			return nil, &LoadError{"vdW", label, "both sigma and rmin_half given"}
		case okS:
			p.Sigma = sigma
		case okR:
			p.Sigma = 2 * rmin / math.Pow(2, 1.0/6.0)
		default:
			return nil, &LoadError{"vdW", label, "needs sigma or rmin_half"}
		}
		h.Parameters = append(h.Parameters, p)
	}
	return h, nil
}

func parseElectrostatics(sec *xmlSection) (*ElectrostaticsHandler, error) {
	sa := toAttrMap(sec.Attrs)
	h := new(ElectrostaticsHandler)
	var err error
	if h.Scale12, err = sa.quantityDefault("scale12", 0); err != nil {
		return nil, &LoadError{"Electrostatics", "", err.Error()}
	}
	if h.Scale13, err = sa.quantityDefault("scale13", 0); err != nil {
		return nil, &LoadError{"Electrostatics", "", err.Error()}
	}
	if h.Scale14, err = sa.quantityDefault("scale14", 1.0/1.2); err != nil {
		return nil, &LoadError{"Electrostatics", "", err.Error()}
	}
	if h.Scale15, err = sa.quantityDefault("scale15", 1); err != nil {
		return nil, &LoadError{"Electrostatics", "", err.Error()}
	}
	if h.Cutoff, err = sa.quantityDefault("cutoff", 9); err != nil {
		return nil, &LoadError{"Electrostatics", "", err.Error()}
	}
	if h.SwitchWidth, err = sa.quantityDefault("switch_width", 0); err != nil {
		return nil, &LoadError{"Electrostatics", "", err.Error()}
	}
	h.Periodic = normalizeESMethod(sa.str("periodic_potential", sa.str("method", "PME")))
	h.Nonperiodic = normalizeESMethod(sa.str("nonperiodic_potential", "Coulomb"))
	return h, nil
}

// normalizeESMethod folds the spellings the OFFXML versions use for the
// electrostatics method into the short names the exporters switch on.
func normalizeESMethod(s string) string {
	switch strings.ToLower(s) {
	case "pme", "ewald3d-conductingboundary":
		return "pme"
	case "coulomb", "no-cutoff":
		return "coulomb"
	case "cutoff", "reaction-field":
		return "cutoff"
	}
	return strings.ToLower(s)
}

func parseLibraryCharges(sec *xmlSection) (*LibraryChargeHandler, error) {
	h := new(LibraryChargeHandler)
	for _, e := range sec.Entries {
		if e.XMLName.Local != "LibraryCharge" {
			return nil, &LoadError{"LibraryCharges", "", "unexpected element " + e.XMLName.Local}
		}
		a := toAttrMap(e.Attrs)
		p := &LibraryChargeParameter{SMIRKS: a["smirks"], ID: a["id"]}
		label := p.ID
		if label == "" {
			label = p.SMIRKS
		}
		var err error
		if p.pat, err = compilePattern("LibraryCharges", label, p.SMIRKS, -1); err != nil {
			return nil, err
		}
		if p.Charges, err = a.quantitySeries("charge"); err != nil {
			return nil, &LoadError{"LibraryCharges", label, err.Error()}
		}
		if len(p.Charges) != p.pat.NumMapped() {
			return nil, &LoadError{"LibraryCharges", label,
				fmt.Sprintf("%d charges for %d mapped atoms", len(p.Charges), p.pat.NumMapped())}
		}
		h.Parameters = append(h.Parameters, p)
	}
	return h, nil
}

func parseChargeModel(sec *xmlSection) (*ChargeIncrementHandler, error) {
	sa := toAttrMap(sec.Attrs)
	h := &ChargeIncrementHandler{
		Method: strings.ToLower(sa.str("partial_charge_method", "formal_charge")),
	}
	if n := sa.str("number_of_conformers", ""); n != "" {
		v, err := strconv.Atoi(n)
		if err != nil {
			return nil, &LoadError{"ChargeIncrementModel", "", "bad number_of_conformers " + n}
		}
		h.NConformers = v
	}
	for _, e := range sec.Entries {
		if e.XMLName.Local != "ChargeIncrement" {
			return nil, &LoadError{"ChargeIncrementModel", "", "unexpected element " + e.XMLName.Local}
		}
		a := toAttrMap(e.Attrs)
		p := &ChargeIncrementParameter{SMIRKS: a["smirks"], ID: a["id"]}
		label := p.ID
		if label == "" {
			label = p.SMIRKS
		}
		var err error
		if p.pat, err = compilePattern("ChargeIncrementModel", label, p.SMIRKS, -1); err != nil {
			return nil, err
		}
		if p.Increments, err = a.quantitySeries("charge_increment"); err != nil {
			return nil, &LoadError{"ChargeIncrementModel", label, err.Error()}
		}
		mapped := p.pat.NumMapped()
		switch len(p.Increments) {
		case mapped:
		case mapped - 1:
			sum := 0.0
			for _, v := range p.Increments {
				sum += v
			}
			p.Increments = append(p.Increments, -sum)
		default:
			return nil, &LoadError{"ChargeIncrementModel", label,
				fmt.Sprintf("%d increments for %d mapped atoms", len(p.Increments), mapped)}
		}
		h.Parameters = append(h.Parameters, p)
	}
	return h, nil
}

func parseVirtualSites(sec *xmlSection) (*VirtualSiteHandler, error) {
	sa := toAttrMap(sec.Attrs)
	h := &VirtualSiteHandler{ExclusionPolicy: strings.ToLower(sa.str("exclusion_policy", "parents"))}
	for _, e := range sec.Entries {
		if e.XMLName.Local != "VirtualSite" {
			return nil, &LoadError{"VirtualSites", "", "unexpected element " + e.XMLName.Local}
		}
		a := toAttrMap(e.Attrs)
		p := &VirtualSiteParameter{
			SMIRKS: a["smirks"],
			Type:   a["type"],
			Name:   a.str("name", "EP"),
			Match:  strings.ToLower(a.str("match", "")),
		}
		label := p.Name + " " + p.SMIRKS
		var mapped int
		switch p.Type {
		case "BondCharge":
			mapped = 2
			if p.Match == "" {
				p.Match = "all_permutations"
			}
		case "DivalentLonePair":
			mapped = 3
			if p.Match == "" {
				p.Match = "once"
			}
		default:
			return nil, &LoadError{"VirtualSites", label, "unsupported virtual site type " + p.Type}
		}
		var err error
		if p.pat, err = compilePattern("VirtualSites", label, p.SMIRKS, mapped); err != nil {
			return nil, err
		}
		d, ok, err := a.quantity("distance")
		if err != nil || !ok {
			return nil, &LoadError{"VirtualSites", label, attrProblem("distance", err)}
		}
		p.Distance = d
		if p.OutOfPlaneAngle, err = a.quantityDefault("outOfPlaneAngle", 0); err != nil {
			return nil, &LoadError{"VirtualSites", label, err.Error()}
		}
		if p.Sigma, err = a.quantityDefault("sigma", 0); err != nil {
			return nil, &LoadError{"VirtualSites", label, err.Error()}
		}
		if p.Epsilon, err = a.quantityDefault("epsilon", 0); err != nil {
			return nil, &LoadError{"VirtualSites", label, err.Error()}
		}
		if rmin, ok, err := a.quantity("rmin_half"); err != nil {
			return nil, &LoadError{"VirtualSites", label, err.Error()}
		} else if ok {
			p.Sigma = 2 * rmin / math.Pow(2, 1.0/6.0)
		}
		if p.Increments, err = a.quantitySeries("charge_increment"); err != nil {
			return nil, &LoadError{"VirtualSites", label, err.Error()}
		}
		switch len(p.Increments) {
		case mapped:
		case mapped - 1:
			sum := 0.0
			for _, v := range p.Increments {
				sum += v
			}
			p.Increments = append(p.Increments, -sum)
		default:
			return nil, &LoadError{"VirtualSites", label,
				fmt.Sprintf("%d charge increments for %d mapped atoms", len(p.Increments), mapped)}
		}
		switch p.Match {
		case "once", "all_permutations":
		default:
			return nil, &LoadError{"VirtualSites", label, "bad match policy " + p.Match}
		}
		h.Parameters = append(h.Parameters, p)
	}
	return h, nil
}

// GetParameters returns the numbers of one force-field line, looked up by id
// or by SMIRKS, with the attribute names the OFFXML format uses (k, length,
// k1, phase1...) but values in internal units.
func (ff *ForceField) GetParameters(section, key string) (map[string]float64, error) {
	notFound := func() error {
		return fmt.Errorf("smirnoff: no parameter %q in section %s", key, section)
	}
	switch section {
	case "Bonds":
		if ff.Bonds == nil {
			return nil, notFound()
		}
		for _, p := range ff.Bonds.Parameters {
			if p.ID != key && p.SMIRKS != key {
				continue
			}
			out := map[string]float64{}
			if p.LengthBondOrder == nil {
				out["length"] = p.Length
			} else {
				for o, v := range p.LengthBondOrder {
					out[fmt.Sprintf("length_bondorder%d", o)] = v
				}
			}
			if p.KBondOrder == nil {
				out["k"] = p.K
			} else {
				for o, v := range p.KBondOrder {
					out[fmt.Sprintf("k_bondorder%d", o)] = v
				}
			}
			return out, nil
		}
	case "Angles":
		if ff.Angles == nil {
			return nil, notFound()
		}
		for _, p := range ff.Angles.Parameters {
			if p.ID == key || p.SMIRKS == key {
				return map[string]float64{"angle": p.Angle, "k": p.K}, nil
			}
		}
	case "ProperTorsions", "ImproperTorsions":
		h := ff.ProperTorsions
		if section == "ImproperTorsions" {
			h = ff.ImproperTorsions
		}
		if h == nil {
			return nil, notFound()
		}
		for _, p := range h.Parameters {
			if p.ID != key && p.SMIRKS != key {
				continue
			}
			out := map[string]float64{}
			for i := range p.K {
				out[fmt.Sprintf("periodicity%d", i+1)] = float64(p.Periodicity[i])
				out[fmt.Sprintf("phase%d", i+1)] = p.Phase[i]
				out[fmt.Sprintf("k%d", i+1)] = p.K[i]
				if !math.IsNaN(p.IDivF[i]) {
					out[fmt.Sprintf("idivf%d", i+1)] = p.IDivF[i]
				}
			}
			return out, nil
		}
	case "vdW":
		if ff.VdW == nil {
			return nil, notFound()
		}
		for _, p := range ff.VdW.Parameters {
			if p.ID == key || p.SMIRKS == key {
				return map[string]float64{"sigma": p.Sigma, "epsilon": p.Epsilon}, nil
			}
		}
	case "LibraryCharges":
		if ff.LibraryCharges == nil {
			return nil, notFound()
		}
		for _, p := range ff.LibraryCharges.Parameters {
			if p.ID != key && p.SMIRKS != key {
				continue
			}
			out := map[string]float64{}
			for i, q := range p.Charges {
				out[fmt.Sprintf("charge%d", i+1)] = q
			}
			return out, nil
		}
	case "Constraints":
		if ff.Constraints == nil {
			return nil, notFound()
		}
		for _, p := range ff.Constraints.Parameters {
			if p.ID != key && p.SMIRKS != key {
				continue
			}
			out := map[string]float64{}
			if p.HasDistance {
				out["distance"] = p.Distance
			}
			return out, nil
		}
	default:
		return nil, fmt.Errorf("smirnoff: no section %s with retrievable parameters", section)
	}
	return nil, notFound()
}
