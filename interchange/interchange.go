/*
 * interchange.go, part of goff.
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

package interchange

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/xyz"
)

// Collection names, in the order exporters and reports walk them.
const (
	Constraints      = "Constraints"
	Bonds            = "Bonds"
	Angles           = "Angles"
	ProperTorsions   = "ProperTorsions"
	ImproperTorsions = "ImproperTorsions"
	VdW              = "vdW"
	Electrostatics   = "Electrostatics"
	VirtualSites     = "VirtualSites"
)

// An Interchange is a fully parametrized system: topology, collections of
// potentials, and optionally positions, velocities and a periodic box.
// Positions cover the physical atoms; virtual sites, when present, are
// appended after them on demand.
type Interchange struct {
	Topology   *mol.Topology
	Positions  *xyz.Matrix
	Velocities *xyz.Matrix
	Box        *xyz.Box

	names       []string
	collections map[string]*Collection
}

// New builds an empty Interchange over a topology.
func New(top *mol.Topology) *Interchange {
	return &Interchange{
		Topology:    top,
		collections: make(map[string]*Collection),
	}
}

// AddCollection registers a collection under a name, keeping insertion
// order. Registering a name again replaces the collection in place.
func (ic *Interchange) AddCollection(name string, c *Collection) {
	if _, ok := ic.collections[name]; !ok {
		ic.names = append(ic.names, name)
	}
	ic.collections[name] = c
}

// Collection looks a collection up by name.
func (ic *Interchange) Collection(name string) (*Collection, error) {
	c, ok := ic.collections[name]
	if !ok {
		return nil, &MissingCollectionError{Name: name, Have: ic.CollectionNames()}
	}
	return c, nil
}

// MustCollection is like Collection but panics on a missing name. Meant for
// exporters that have already checked CollectionNames.
func (ic *Interchange) MustCollection(name string) *Collection {
	c, err := ic.Collection(name)
	if err != nil {
		panic(err.Error())
	}
	return c
}

// HasCollection reports whether a collection with that name is registered.
func (ic *Interchange) HasCollection(name string) bool {
	_, ok := ic.collections[name]
	return ok
}

// CollectionNames returns the registered names in insertion order.
func (ic *Interchange) CollectionNames() []string {
	return append([]string(nil), ic.names...)
}

// GetParameters returns the parameters assigned to the given atoms in a
// collection. Bond, angle and proper-torsion tuples may be given in either
// direction. Multi-term torsions come back merged, with the term index
// appended to each name (k1, phase1, ...). A single atom index against
// Electrostatics returns its charge.
func (ic *Interchange) GetParameters(name string, atoms ...int) (map[string]float64, error) {
	c, err := ic.Collection(name)
	if err != nil {
		return nil, err
	}
	if name == Electrostatics && len(atoms) == 1 {
		q, ok := c.Charges[atoms[0]]
		if !ok {
			return nil, &MissingParametersError{Collection: name, Key: Key(atoms[0])}
		}
		return map[string]float64{"charge": q}, nil
	}
	key := Key(atoms...)
	if params, err := c.Parameters(key); err == nil {
		return params, nil
	}
	if params, err := c.Parameters(reverseKey(key)); err == nil {
		return params, nil
	}
	// torsions store one slot per term
	merged := make(map[string]float64)
	terms := 0
	for m := 0; ; m++ {
		pot, err := c.Potential(key.WithMult(m))
		if err != nil {
			if pot, err = c.Potential(reverseKey(key).WithMult(m)); err != nil {
				break
			}
		}
		for pn, pv := range pot.Parameters {
			merged[fmt.Sprintf("%s%d", pn, m+1)] = pv
		}
		terms++
	}
	if terms == 0 {
		return nil, &MissingParametersError{Collection: name, Key: key}
	}
	return merged, nil
}

func reverseKey(k TopologyKey) TopologyKey {
	r := k
	for i := 0; i < k.N; i++ {
		r.Atoms[i] = k.Atoms[k.N-1-i]
	}
	return r
}

// NAtoms returns the number of physical atoms.
func (ic *Interchange) NAtoms() int {
	if ic.Topology == nil {
		return 0
	}
	return ic.Topology.Len()
}

// VirtualSiteList returns the virtual sites of the system, or nil.
func (ic *Interchange) VirtualSiteList() []*VirtualSite {
	c, ok := ic.collections[VirtualSites]
	if !ok {
		return nil
	}
	return c.VSites
}

// NParticles returns physical atoms plus virtual sites.
func (ic *Interchange) NParticles() int {
	return ic.NAtoms() + len(ic.VirtualSiteList())
}

// SetPositions installs coordinates for the system. The matrix must have
// one row per atom, or one per particle when the system has virtual sites.
func (ic *Interchange) SetPositions(m *xyz.Matrix) error {
	if m == nil {
		ic.Positions = nil
		return nil
	}
	if r := m.NVecs(); r != ic.NAtoms() && r != ic.NParticles() {
		return fmt.Errorf("positions have %d rows, topology has %d atoms (%d particles)",
			r, ic.NAtoms(), ic.NParticles())
	}
	ic.Positions = m
	return nil
}

// SetVelocities installs velocities, with the same row-count rules as
// SetPositions.
func (ic *Interchange) SetVelocities(m *xyz.Matrix) error {
	if m == nil {
		ic.Velocities = nil
		return nil
	}
	if r := m.NVecs(); r != ic.NAtoms() && r != ic.NParticles() {
		return fmt.Errorf("velocities have %d rows, topology has %d atoms (%d particles)",
			r, ic.NAtoms(), ic.NParticles())
	}
	ic.Velocities = m
	return nil
}

// SetBox installs a periodic box from 3 edge lengths or 9 matrix entries,
// in angstrom. Three values become a rectangular box; anything else that
// is not a full 3x3 matrix is an InvalidBoxError.
func (ic *Interchange) SetBox(vals []float64) error {
	if vals == nil {
		ic.Box = nil
		return nil
	}
	b, err := xyz.NewBox(vals)
	if err != nil {
		return err
	}
	ic.Box = b
	return nil
}

// AtomPositions returns the coordinates of the physical atoms, erroring
// with a MissingPositionsError naming op when there are none.
func (ic *Interchange) AtomPositions(op string) (*xyz.Matrix, error) {
	if ic.Positions == nil {
		return nil, &MissingPositionsError{Op: op}
	}
	if ic.Positions.NVecs() == ic.NAtoms() {
		return ic.Positions, nil
	}
	atoms := xyz.Zeros(ic.NAtoms())
	for i := 0; i < ic.NAtoms(); i++ {
		atoms.SetVec(i, ic.Positions.VecSlice(i))
	}
	return atoms, nil
}

// ParticlePositions returns coordinates for every particle, computing
// virtual-site rows from their orientation atoms when the stored matrix
// covers atoms only.
func (ic *Interchange) ParticlePositions(op string) (*xyz.Matrix, error) {
	if ic.Positions == nil {
		return nil, &MissingPositionsError{Op: op}
	}
	sites := ic.VirtualSiteList()
	if ic.Positions.NVecs() == ic.NParticles() && len(sites) == 0 {
		return ic.Positions, nil
	}
	full := xyz.Zeros(ic.NParticles())
	for i := 0; i < ic.NAtoms(); i++ {
		full.SetVec(i, ic.Positions.VecSlice(i))
	}
	for _, s := range sites {
		p := s.Position(func(i int) []float64 { return ic.Positions.VecSlice(i) })
		full.SetVec(s.Particle, p[:])
	}
	return full, nil
}

// Combine merges another parametrized system into a copy of this one,
// shifting the other's atom indices past this system's atoms. Nonbonded
// settings must agree, boxes must be equal or both absent, and positions
// survive only when both sides have them.
func (ic *Interchange) Combine(other *Interchange) (*Interchange, error) {
	if len(ic.VirtualSiteList()) > 0 || len(other.VirtualSiteList()) > 0 {
		return nil, &CombinationError{Reason: "combining systems with virtual sites is not supported"}
	}
	offset := ic.NAtoms()
	out := New(ic.Topology.Copy())
	out.Topology.AppendTopology(other.Topology.Copy())

	for _, name := range ic.names {
		out.AddCollection(name, ic.collections[name].Copy())
	}
	for _, name := range other.names {
		oc := other.collections[name].shifted(offset)
		mine, ok := out.collections[name]
		if !ok {
			out.AddCollection(name, oc)
			continue
		}
		if mine.Type != oc.Type || mine.Expression != oc.Expression {
			return nil, &CombinationError{Reason: fmt.Sprintf("collection %s has mismatched forms", name)}
		}
		if !mine.Nonbonded.Equal(oc.Nonbonded) {
			return nil, &CombinationError{Reason: fmt.Sprintf("collection %s has mismatched nonbonded settings", name)}
		}
		for k, v := range oc.SlotMap {
			mine.SlotMap[k] = v
		}
		for k, v := range oc.Potentials {
			mine.Potentials[k] = v
		}
		for k, v := range oc.Charges {
			if mine.Charges == nil {
				mine.Charges = make(map[int]float64)
			}
			mine.Charges[k] = v
		}
	}

	switch {
	case ic.Box == nil && other.Box == nil:
	case ic.Box != nil && other.Box != nil && ic.Box.Equal(other.Box, 1e-8):
		out.Box = ic.Box.Copy()
	default:
		return nil, &CombinationError{Reason: "periodic boxes differ"}
	}

	if ic.Positions != nil && other.Positions != nil {
		a, err := ic.AtomPositions("combine")
		if err != nil {
			return nil, err
		}
		b, err := other.AtomPositions("combine")
		if err != nil {
			return nil, err
		}
		out.Positions = xyz.Stack(a, b)
	}
	if ic.Velocities != nil && other.Velocities != nil {
		out.Velocities = xyz.Stack(ic.Velocities, other.Velocities)
	}
	return out, nil
}

// Validate checks the internal consistency of the system and returns every
// problem found, combined into one error.
func (ic *Interchange) Validate() error {
	var errs error
	if ic.Topology == nil || ic.Topology.Len() == 0 {
		return fmt.Errorf("interchange has no topology")
	}
	n := ic.NParticles()
	if ic.Positions != nil {
		if r := ic.Positions.NVecs(); r != ic.NAtoms() && r != n {
			errs = multierr.Append(errs, fmt.Errorf("positions have %d rows for %d atoms (%d particles)", r, ic.NAtoms(), n))
		}
	}
	if ic.Velocities != nil {
		if r := ic.Velocities.NVecs(); r != ic.NAtoms() && r != n {
			errs = multierr.Append(errs, fmt.Errorf("velocities have %d rows for %d atoms (%d particles)", r, ic.NAtoms(), n))
		}
	}
	for _, name := range ic.names {
		c := ic.collections[name]
		for slot, pk := range c.SlotMap {
			for _, a := range slot.AtomIndices() {
				if a < 0 || a >= n {
					errs = multierr.Append(errs, fmt.Errorf("%s: slot %s indexes outside the %d particles", name, slot, n))
					break
				}
			}
			if _, ok := c.Potentials[pk]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("%s: slot %s points at unknown potential %s", name, slot, pk))
			}
		}
		for _, s := range c.VSites {
			if len(s.Orientation) != len(s.Weights) {
				errs = multierr.Append(errs, fmt.Errorf("virtual site on particle %d has %d orientation atoms and %d weights",
					s.Particle, len(s.Orientation), len(s.Weights)))
			}
			if s.Particle < ic.NAtoms() || s.Particle >= n {
				errs = multierr.Append(errs, fmt.Errorf("virtual site particle %d outside the padded range", s.Particle))
			}
		}
	}
	if c, ok := ic.collections[Electrostatics]; ok {
		for i := 0; i < n; i++ {
			if _, ok := c.Charges[i]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("no charge assigned to particle %d", i))
			}
		}
	}
	if c, ok := ic.collections[VdW]; ok {
		for i := 0; i < ic.NAtoms(); i++ {
			if !c.HasSlot(Key(i)) {
				errs = multierr.Append(errs, fmt.Errorf("no vdW parameters assigned to atom %d", i))
			}
		}
	}
	return errs
}

// String summarizes the system the way logs want it.
func (ic *Interchange) String() string {
	periodic := "non-periodic"
	if ic.Box != nil {
		periodic = "periodic"
	}
	pos := ""
	if ic.Positions != nil {
		pos = ", positions set"
	}
	return fmt.Sprintf("Interchange with %d collections (%s), %s topology with %d atoms%s",
		len(ic.names), strings.Join(ic.names, ", "), periodic, ic.NAtoms(), pos)
}
