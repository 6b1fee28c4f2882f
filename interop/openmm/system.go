/*
 * system.go, part of goff.
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

package openmm

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/interchange"
	"github.com/imolina/goff/xyz"
)

// The serialization format version OpenMM itself stamps on System XML.
const openmmVersion = "8.1.2"

// NonbondedForce method codes, as XmlSerializer numbers them.
const (
	methodNoCutoff          = 0
	methodCutoffNonPeriodic = 1
	methodCutoffPeriodic    = 2
	methodPME               = 4
)

type vecXML struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
	Z float64 `xml:"z,attr"`
}

type boxXML struct {
	A vecXML `xml:"A"`
	B vecXML `xml:"B"`
	C vecXML `xml:"C"`
}

type twoSiteXML struct {
	P1 int     `xml:"p1,attr"`
	P2 int     `xml:"p2,attr"`
	W1 float64 `xml:"w1,attr"`
	W2 float64 `xml:"w2,attr"`
}

type threeSiteXML struct {
	P1 int     `xml:"p1,attr"`
	P2 int     `xml:"p2,attr"`
	P3 int     `xml:"p3,attr"`
	W1 float64 `xml:"w1,attr"`
	W2 float64 `xml:"w2,attr"`
	W3 float64 `xml:"w3,attr"`
}

// localSiteXML is the general averaging site for four or more atoms. The
// local position is always zero here, so the frame axes never displace
// the site; the axis weights only need to give nonzero difference
// vectors, and first differences do.
type localSiteXML struct {
	particles []int
	origin    []float64
}

func intAttr(name string, v int) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: strconv.Itoa(v)}
}

func floatAttr(name string, v float64) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: strconv.FormatFloat(v, 'g', -1, 64)}
}

func (s *localSiteXML) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	n := len(s.particles)
	attrs := []xml.Attr{intAttr("particles", n)}
	for i := 0; i < n; i++ {
		wx, wy := 0.0, 0.0
		switch i {
		case 0:
			wx = -1
		case 1:
			wx, wy = 1, -1
		case 2:
			wy = 1
		}
		attrs = append(attrs,
			intAttr(fmt.Sprintf("p%d", i+1), s.particles[i]),
			floatAttr(fmt.Sprintf("wo%d", i+1), s.origin[i]),
			floatAttr(fmt.Sprintf("wx%d", i+1), wx),
			floatAttr(fmt.Sprintf("wy%d", i+1), wy))
	}
	attrs = append(attrs, floatAttr("pos1", 0), floatAttr("pos2", 0), floatAttr("pos3", 0))
	start.Attr = attrs
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type particleXML struct {
	Mass  float64       `xml:"mass,attr"`
	Two   *twoSiteXML   `xml:"TwoParticleAverageSite"`
	Three *threeSiteXML `xml:"ThreeParticleAverageSite"`
	Local *localSiteXML `xml:"LocalCoordinatesSite"`
}

type constraintXML struct {
	D  float64 `xml:"d,attr"`
	P1 int     `xml:"p1,attr"`
	P2 int     `xml:"p2,attr"`
}

type systemXML struct {
	XMLName       xml.Name `xml:"System"`
	OpenMMVersion string   `xml:"openmmVersion,attr"`
	Type          string   `xml:"type,attr"`
	Version       int      `xml:"version,attr"`
	Box           boxXML   `xml:"PeriodicBoxVectors"`
	Particles     struct {
		Particle []particleXML `xml:"Particle"`
	} `xml:"Particles"`
	Constraints struct {
		Constraint []constraintXML `xml:"Constraint"`
	} `xml:"Constraints"`
	Forces struct {
		Force []interface{} `xml:"Force"`
	} `xml:"Forces"`
}

type bondXML struct {
	D  float64 `xml:"d,attr"`
	K  float64 `xml:"k,attr"`
	P1 int     `xml:"p1,attr"`
	P2 int     `xml:"p2,attr"`
}

type bondForceXML struct {
	ForceGroup   int    `xml:"forceGroup,attr"`
	Name         string `xml:"name,attr"`
	Type         string `xml:"type,attr"`
	UsesPeriodic int    `xml:"usesPeriodic,attr"`
	Version      int    `xml:"version,attr"`
	Bonds        struct {
		Bond []bondXML `xml:"Bond"`
	} `xml:"Bonds"`
}

type angleXML struct {
	A  float64 `xml:"a,attr"`
	K  float64 `xml:"k,attr"`
	P1 int     `xml:"p1,attr"`
	P2 int     `xml:"p2,attr"`
	P3 int     `xml:"p3,attr"`
}

type angleForceXML struct {
	ForceGroup   int    `xml:"forceGroup,attr"`
	Name         string `xml:"name,attr"`
	Type         string `xml:"type,attr"`
	UsesPeriodic int    `xml:"usesPeriodic,attr"`
	Version      int    `xml:"version,attr"`
	Angles       struct {
		Angle []angleXML `xml:"Angle"`
	} `xml:"Angles"`
}

type torsionXML struct {
	K           float64 `xml:"k,attr"`
	P1          int     `xml:"p1,attr"`
	P2          int     `xml:"p2,attr"`
	P3          int     `xml:"p3,attr"`
	P4          int     `xml:"p4,attr"`
	Periodicity int     `xml:"periodicity,attr"`
	Phase       float64 `xml:"phase,attr"`
}

type torsionForceXML struct {
	ForceGroup   int    `xml:"forceGroup,attr"`
	Name         string `xml:"name,attr"`
	Type         string `xml:"type,attr"`
	UsesPeriodic int    `xml:"usesPeriodic,attr"`
	Version      int    `xml:"version,attr"`
	Torsions     struct {
		Torsion []torsionXML `xml:"Torsion"`
	} `xml:"Torsions"`
}

type nbParticleXML struct {
	Eps float64 `xml:"eps,attr"`
	Q   float64 `xml:"q,attr"`
	Sig float64 `xml:"sig,attr"`
}

type exceptionXML struct {
	Eps float64 `xml:"eps,attr"`
	P1  int     `xml:"p1,attr"`
	P2  int     `xml:"p2,attr"`
	Q   float64 `xml:"q,attr"`
	Sig float64 `xml:"sig,attr"`
}

type nonbondedForceXML struct {
	Alpha                 float64 `xml:"alpha,attr"`
	Cutoff                float64 `xml:"cutoff,attr"`
	DispersionCorrection  int     `xml:"dispersionCorrection,attr"`
	EwaldTolerance        float64 `xml:"ewaldTolerance,attr"`
	ExceptionsUsePeriodic int     `xml:"exceptionsUsePeriodic,attr"`
	ForceGroup            int     `xml:"forceGroup,attr"`
	Method                int     `xml:"method,attr"`
	Name                  string  `xml:"name,attr"`
	NX                    int     `xml:"nx,attr"`
	NY                    int     `xml:"ny,attr"`
	NZ                    int     `xml:"nz,attr"`
	RecipForceGroup       int     `xml:"recipForceGroup,attr"`
	RFDielectric          float64 `xml:"rfDielectric,attr"`
	SwitchingDistance     float64 `xml:"switchingDistance,attr"`
	Type                  string  `xml:"type,attr"`
	UseSwitchingFunction  int     `xml:"useSwitchingFunction,attr"`
	Version               int     `xml:"version,attr"`
	Particles             struct {
		Particle []nbParticleXML `xml:"Particle"`
	} `xml:"Particles"`
	Exceptions struct {
		Exception []exceptionXML `xml:"Exception"`
	} `xml:"Exceptions"`
}

func coll(ic *interchange.Interchange, name string) *interchange.Collection {
	c, err := ic.Collection(name)
	if err != nil {
		return nil
	}
	return c
}

func boxVectors(b *xyz.Box) boxXML {
	if b == nil {
		//the OpenMM default box
		return boxXML{A: vecXML{X: 2}, B: vecXML{Y: 2}, C: vecXML{Z: 2}}
	}
	return boxXML{
		A: vecXML{X: b.At(0, 0) * mol.A2Nm, Y: b.At(0, 1) * mol.A2Nm, Z: b.At(0, 2) * mol.A2Nm},
		B: vecXML{X: b.At(1, 0) * mol.A2Nm, Y: b.At(1, 1) * mol.A2Nm, Z: b.At(1, 2) * mol.A2Nm},
		C: vecXML{X: b.At(2, 0) * mol.A2Nm, Y: b.At(2, 1) * mol.A2Nm, Z: b.At(2, 2) * mol.A2Nm},
	}
}

// nbParticle holds one particle's nonbonded parameters in internal units.
type nbParticle struct {
	q     float64
	sigma float64
	eps   float64
}

func particleParameters(ic *interchange.Interchange, vdw, es *interchange.Collection) ([]nbParticle, error) {
	total := ic.NParticles()
	out := make([]nbParticle, total)
	for i := 0; i < total; i++ {
		pk, ok := vdw.SlotMap[interchange.Key(i)]
		if !ok {
			return nil, &interchange.MissingParametersError{
				Collection: interchange.VdW,
				Key:        interchange.Key(i),
			}
		}
		pot := vdw.Potentials[pk]
		if pot == nil {
			return nil, fmt.Errorf("vdW slot of particle %d points at unknown potential %s", i, pk)
		}
		out[i] = nbParticle{
			q:     es.Charges[i],
			sigma: pot.Parameters["sigma"],
			eps:   pot.Parameters["epsilon"],
		}
	}
	return out, nil
}

func mixSigma(rule string, a, b float64) float64 {
	if rule == "geometric" {
		return math.Sqrt(a * b)
	}
	return (a + b) / 2
}

func globalSeparations(top *mol.Topology, maxSep int) map[[2]int]int {
	out := make(map[[2]int]int)
	off := 0
	for _, m := range top.Mols {
		for k, s := range m.BondSeparations(maxSep) {
			out[[2]int{off + k[0], off + k[1]}] = s
		}
		off += m.Len()
	}
	return out
}

// exceptionList builds the pairwise overrides: 1-2 and 1-3 pairs are
// excluded outright, 1-4 pairs carry the scaled products, and virtual
// sites inherit the relationships of their parent atom, the first
// orientation atom, plus an exclusion against the parent itself.
func exceptionList(ic *interchange.Interchange, parts []nbParticle, vdwNB, esNB *interchange.Nonbonded, rule string) []exceptionXML {
	lj := [4]float64{0, 0, 0, 0.5}
	qs := [4]float64{0, 0, 0, 1 / 1.2}
	if vdwNB != nil {
		lj = [4]float64{0, vdwNB.Scale12, vdwNB.Scale13, vdwNB.Scale14}
	}
	if esNB != nil {
		qs = [4]float64{0, esNB.Scale12, esNB.Scale13, esNB.Scale14}
	}
	seps := globalSeparations(ic.Topology, 3)
	pairs := make([][2]int, 0, len(seps))
	for k := range seps {
		pairs = append(pairs, k)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	emitted := make(map[[2]int]bool)
	var out []exceptionXML
	add := func(i, j int, ljScale, qScale float64) {
		if j < i {
			i, j = j, i
		}
		if emitted[[2]int{i, j}] {
			return
		}
		emitted[[2]int{i, j}] = true
		x := exceptionXML{P1: i, P2: j, Sig: 1}
		if ljScale != 0 || qScale != 0 {
			x.Eps = math.Sqrt(parts[i].eps*parts[j].eps) * ljScale * mol.Kcal2KJ
			x.Q = parts[i].q * parts[j].q * qScale
			x.Sig = mixSigma(rule, parts[i].sigma, parts[j].sigma) * mol.A2Nm
		}
		out = append(out, x)
	}
	for _, p := range pairs {
		s := seps[p]
		add(p[0], p[1], lj[s], qs[s])
	}
	vs := ic.VirtualSiteList()
	for vi, v := range vs {
		parent := v.Orientation[0]
		add(v.Particle, parent, 0, 0)
		for _, p := range pairs {
			s := seps[p]
			switch parent {
			case p[0]:
				add(v.Particle, p[1], lj[s], qs[s])
			case p[1]:
				add(v.Particle, p[0], lj[s], qs[s])
			}
		}
		for _, u := range vs[vi+1:] {
			other := u.Orientation[0]
			if other == parent {
				add(v.Particle, u.Particle, 0, 0)
				continue
			}
			pk := [2]int{parent, other}
			if other < parent {
				pk = [2]int{other, parent}
			}
			if s, ok := seps[pk]; ok {
				add(v.Particle, u.Particle, lj[s], qs[s])
			}
		}
	}
	return out
}

// WriteSystemXML serializes the parametrized system as OpenMM System
// XML. Bonds under a distance constraint are written as constraints
// only, without a spring, the way GROMACS topologies treat them.
func WriteSystemXML(w io.Writer, ic *interchange.Interchange) error {
	if ic == nil || ic.Topology == nil || ic.Topology.Len() == 0 {
		return fmt.Errorf("cannot write a System XML for an empty system")
	}
	if err := ic.Validate(); err != nil {
		return err
	}
	vdw, err := ic.Collection(interchange.VdW)
	if err != nil {
		return err
	}
	es, err := ic.Collection(interchange.Electrostatics)
	if err != nil {
		return err
	}

	sys := &systemXML{
		OpenMMVersion: openmmVersion,
		Type:          "System",
		Version:       1,
		Box:           boxVectors(ic.Box),
	}

	n := ic.Topology.Len()
	total := ic.NParticles()
	sys.Particles.Particle = make([]particleXML, total)
	for i := 0; i < n; i++ {
		sys.Particles.Particle[i].Mass = ic.Topology.Atom(i).Mass
	}
	for _, v := range ic.VirtualSiteList() {
		if v.Particle < 0 || v.Particle >= total {
			return fmt.Errorf("virtual site particle %d outside the padded system", v.Particle)
		}
		p := &sys.Particles.Particle[v.Particle]
		p.Mass = 0
		switch len(v.Orientation) {
		case 2:
			p.Two = &twoSiteXML{
				P1: v.Orientation[0], P2: v.Orientation[1],
				W1: v.Weights[0], W2: v.Weights[1],
			}
		case 3:
			p.Three = &threeSiteXML{
				P1: v.Orientation[0], P2: v.Orientation[1], P3: v.Orientation[2],
				W1: v.Weights[0], W2: v.Weights[1], W3: v.Weights[2],
			}
		default:
			p.Local = &localSiteXML{particles: v.Orientation, origin: v.Weights}
		}
	}

	constraints := coll(ic, interchange.Constraints)
	if constraints != nil {
		for _, k := range constraints.Slots() {
			p, err := constraints.Parameters(k)
			if err != nil {
				return err
			}
			sys.Constraints.Constraint = append(sys.Constraints.Constraint, constraintXML{
				D: p["distance"] * mol.A2Nm, P1: k.Atoms[0], P2: k.Atoms[1]})
		}
	}

	if bonds := coll(ic, interchange.Bonds); bonds != nil {
		f := &bondForceXML{Name: "HarmonicBondForce", Type: "HarmonicBondForce", Version: 2}
		for _, k := range bonds.Slots() {
			if constraints != nil && constraints.HasSlot(interchange.BondKey(k.Atoms[0], k.Atoms[1])) {
				continue
			}
			p, err := bonds.Parameters(k)
			if err != nil {
				return err
			}
			f.Bonds.Bond = append(f.Bonds.Bond, bondXML{
				D:  p["length"] * mol.A2Nm,
				K:  p["k"] * mol.Kcal2KJ / (mol.A2Nm * mol.A2Nm),
				P1: k.Atoms[0], P2: k.Atoms[1],
			})
		}
		sys.Forces.Force = append(sys.Forces.Force, f)
	}

	if angles := coll(ic, interchange.Angles); angles != nil {
		f := &angleForceXML{Name: "HarmonicAngleForce", Type: "HarmonicAngleForce", Version: 2}
		for _, k := range angles.Slots() {
			p, err := angles.Parameters(k)
			if err != nil {
				return err
			}
			f.Angles.Angle = append(f.Angles.Angle, angleXML{
				A:  p["angle"],
				K:  p["k"] * mol.Kcal2KJ,
				P1: k.Atoms[0], P2: k.Atoms[1], P3: k.Atoms[2],
			})
		}
		sys.Forces.Force = append(sys.Forces.Force, f)
	}

	propers := coll(ic, interchange.ProperTorsions)
	impropers := coll(ic, interchange.ImproperTorsions)
	if propers != nil || impropers != nil {
		f := &torsionForceXML{Name: "PeriodicTorsionForce", Type: "PeriodicTorsionForce", Version: 2}
		addTorsions := func(c *interchange.Collection) error {
			if c == nil {
				return nil
			}
			for _, k := range c.Slots() {
				p, err := c.Parameters(k)
				if err != nil {
					return err
				}
				f.Torsions.Torsion = append(f.Torsions.Torsion, torsionXML{
					K:           p["k"] * mol.Kcal2KJ,
					P1:          k.Atoms[0],
					P2:          k.Atoms[1],
					P3:          k.Atoms[2],
					P4:          k.Atoms[3],
					Periodicity: int(math.Round(p["periodicity"])),
					Phase:       p["phase"],
				})
			}
			return nil
		}
		if err := addTorsions(propers); err != nil {
			return err
		}
		if err := addTorsions(impropers); err != nil {
			return err
		}
		sys.Forces.Force = append(sys.Forces.Force, f)
	}

	parts, err := particleParameters(ic, vdw, es)
	if err != nil {
		return err
	}
	nb := &nonbondedForceXML{
		DispersionCorrection: 1,
		EwaldTolerance:       0.0005,
		Name:                 "NonbondedForce",
		RecipForceGroup:      -1,
		RFDielectric:         78.3,
		SwitchingDistance:    -1,
		Type:                 "NonbondedForce",
		Version:              4,
	}
	cutoff := 9.0
	if vdw.Nonbonded != nil && vdw.Nonbonded.Cutoff > 0 {
		cutoff = vdw.Nonbonded.Cutoff
	}
	nb.Cutoff = cutoff * mol.A2Nm
	periodic := ic.Box != nil
	switch {
	case periodic && es.Nonbonded != nil && es.Nonbonded.PeriodicMethod == "pme":
		nb.Method = methodPME
	case periodic:
		nb.Method = methodCutoffPeriodic
	case es.Nonbonded != nil && es.Nonbonded.NonperiodicMethod == "cutoff":
		nb.Method = methodCutoffNonPeriodic
	default:
		nb.Method = methodNoCutoff
	}
	if nb.Method != methodNoCutoff && vdw.Nonbonded != nil && vdw.Nonbonded.SwitchWidth > 0 {
		nb.UseSwitchingFunction = 1
		nb.SwitchingDistance = (cutoff - vdw.Nonbonded.SwitchWidth) * mol.A2Nm
	}
	for _, p := range parts {
		nb.Particles.Particle = append(nb.Particles.Particle, nbParticleXML{
			Eps: p.eps * mol.Kcal2KJ,
			Q:   p.q,
			Sig: p.sigma * mol.A2Nm,
		})
	}
	rule := "lorentz-berthelot"
	if vdw.Nonbonded != nil && vdw.Nonbonded.MixingRule != "" {
		rule = vdw.Nonbonded.MixingRule
	}
	nb.Exceptions.Exception = exceptionList(ic, parts, vdw.Nonbonded, es.Nonbonded, rule)
	sys.Forces.Force = append(sys.Forces.Force, nb)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(bw)
	enc.Indent("", "\t")
	if err := enc.Encode(sys); err != nil {
		return err
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

// WriteSystemXMLFile is WriteSystemXML into a named file.
func WriteSystemXMLFile(name string, ic *interchange.Interchange) error {
	fi, err := os.Create(name)
	if err != nil {
		return err
	}
	defer fi.Close()
	if err := WriteSystemXML(fi, ic); err != nil {
		return err
	}
	return fi.Close()
}
