/*
 * collection.go, part of goff.
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
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Nonbonded holds the settings shared by every pairwise interaction of one
// kind: cutoff treatment and the scaling of pairs separated by 1 to 3
// bonds. Lengths in angstrom.
type Nonbonded struct {
	Cutoff            float64 `json:"cutoff"`
	SwitchWidth       float64 `json:"switchWidth"`
	Scale12           float64 `json:"scale12"`
	Scale13           float64 `json:"scale13"`
	Scale14           float64 `json:"scale14"`
	Scale15           float64 `json:"scale15"`
	MixingRule        string  `json:"mixingRule,omitempty"`
	PeriodicMethod    string  `json:"periodicMethod"`
	NonperiodicMethod string  `json:"nonperiodicMethod"`
}

// Copy returns a copy of the settings.
func (n *Nonbonded) Copy() *Nonbonded {
	c := *n
	return &c
}

// Equal reports whether two settings blocks agree. Used when combining
// systems, since every engine has a single global value for these.
func (n *Nonbonded) Equal(o *Nonbonded) bool {
	if n == nil || o == nil {
		return n == o
	}
	return *n == *o
}

// A VirtualSite is a massless particle whose position is a weighted
// average of its orientation atoms. Particle is its index in the padded
// system, physical atoms first. Weights line up with Orientation; the
// averaging has already folded in the site geometry, so exporters never
// rederive it.
type VirtualSite struct {
	Particle    int       `json:"particle"`
	Kind        string    `json:"kind"`
	Orientation []int     `json:"orientation"`
	Weights     []float64 `json:"weights"`
	Charge      float64   `json:"charge"`
	Sigma       float64   `json:"sigma"`
	Epsilon     float64   `json:"epsilon"`
}

// Position computes the site coordinates from the given atom positions.
func (v *VirtualSite) Position(atomPos func(i int) []float64) [3]float64 {
	var out [3]float64
	for k, o := range v.Orientation {
		p := atomPos(o)
		for d := 0; d < 3; d++ {
			out[d] += v.Weights[k] * p[d]
		}
	}
	return out
}

// Copy returns a deep copy of the site.
func (v *VirtualSite) Copy() *VirtualSite {
	n := *v
	n.Orientation = append([]int(nil), v.Orientation...)
	n.Weights = append([]float64(nil), v.Weights...)
	return &n
}

// A Collection is one kind of interaction over the whole system: a slot map
// from atom tuples to potential keys, and the potentials themselves. The
// split keeps the number of stored parameter sets at the number of distinct
// force-field lines exercised, not the number of interactions.
//
// Nonbonded is set on the vdW and Electrostatics collections only. Charges
// (per particle index) is set on Electrostatics, VSites on VirtualSites.
type Collection struct {
	Type       string
	Expression string
	SlotMap    map[TopologyKey]PotentialKey
	Potentials map[PotentialKey]*Potential
	Nonbonded  *Nonbonded
	Charges    map[int]float64
	VSites     []*VirtualSite
}

// NewCollection builds an empty collection of the given type, with the
// energy expression written the way the force field states it.
func NewCollection(ctype, expression string) *Collection {
	return &Collection{
		Type:       ctype,
		Expression: expression,
		SlotMap:    make(map[TopologyKey]PotentialKey),
		Potentials: make(map[PotentialKey]*Potential),
	}
}

// AddPotential registers a potential under its key, replacing any previous
// one.
func (c *Collection) AddPotential(key PotentialKey, pot *Potential) {
	c.Potentials[key] = pot
}

// Assign points a slot at a potential key. Assigning the same slot again
// overwrites, which is what gives force-field hierarchies their
// last-match-wins semantics.
func (c *Collection) Assign(slot TopologyKey, key PotentialKey) {
	c.SlotMap[slot] = key
}

// HasSlot reports whether the slot has a potential assigned.
func (c *Collection) HasSlot(slot TopologyKey) bool {
	_, ok := c.SlotMap[slot]
	return ok
}

// NSlots returns the number of assigned slots.
func (c *Collection) NSlots() int { return len(c.SlotMap) }

// Slots returns every assigned slot in canonical order.
func (c *Collection) Slots() []TopologyKey {
	out := make([]TopologyKey, 0, len(c.SlotMap))
	for k := range c.SlotMap {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// PotentialKeys returns every registered potential key in canonical order.
func (c *Collection) PotentialKeys() []PotentialKey {
	out := make([]PotentialKey, 0, len(c.Potentials))
	for k := range c.Potentials {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Parameters returns the parameter map assigned to a slot.
func (c *Collection) Parameters(slot TopologyKey) (map[string]float64, error) {
	pk, ok := c.SlotMap[slot]
	if !ok {
		return nil, &MissingParametersError{Collection: c.Type, Key: slot}
	}
	pot, ok := c.Potentials[pk]
	if !ok {
		return nil, fmt.Errorf("collection %s: slot %s points at unknown potential %s", c.Type, slot, pk)
	}
	return pot.Parameters, nil
}

// Potential returns the potential assigned to a slot.
func (c *Collection) Potential(slot TopologyKey) (*Potential, error) {
	pk, ok := c.SlotMap[slot]
	if !ok {
		return nil, &MissingParametersError{Collection: c.Type, Key: slot}
	}
	pot, ok := c.Potentials[pk]
	if !ok {
		return nil, fmt.Errorf("collection %s: slot %s points at unknown potential %s", c.Type, slot, pk)
	}
	return pot, nil
}

// SystemParameters tabulates the named parameters per slot, one row per
// slot in Slots order, one column per name. This is the per-interaction
// view of the system, with parameter values repeated wherever slots share
// a potential.
func (c *Collection) SystemParameters(names ...string) (*mat.Dense, error) {
	slots := c.Slots()
	if len(slots) == 0 {
		return nil, fmt.Errorf("collection %s has no slots", c.Type)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no parameter names given")
	}
	m := mat.NewDense(len(slots), len(names), nil)
	for i, s := range slots {
		pot, err := c.Potential(s)
		if err != nil {
			return nil, err
		}
		for j, name := range names {
			v, ok := pot.Parameters[name]
			if !ok {
				return nil, fmt.Errorf("collection %s: potential for slot %s has no parameter %q", c.Type, s, name)
			}
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// FieldParameters tabulates the named parameters per potential, one row per
// key in PotentialKeys order. This is the force-field view: each distinct
// parameter set appears once no matter how many slots use it.
func (c *Collection) FieldParameters(names ...string) (*mat.Dense, error) {
	keys := c.PotentialKeys()
	if len(keys) == 0 {
		return nil, fmt.Errorf("collection %s has no potentials", c.Type)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no parameter names given")
	}
	m := mat.NewDense(len(keys), len(names), nil)
	for i, k := range keys {
		pot := c.Potentials[k]
		for j, name := range names {
			v, ok := pot.Parameters[name]
			if !ok {
				return nil, fmt.Errorf("collection %s: potential %s has no parameter %q", c.Type, k, name)
			}
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// AssignmentMatrix returns the 0/1 incidence of slots (rows, Slots order)
// onto potentials (columns, PotentialKeys order). Multiplying it by
// FieldParameters reproduces SystemParameters.
func (c *Collection) AssignmentMatrix() (*mat.Dense, error) {
	slots := c.Slots()
	keys := c.PotentialKeys()
	if len(slots) == 0 || len(keys) == 0 {
		return nil, fmt.Errorf("collection %s is empty", c.Type)
	}
	col := make(map[PotentialKey]int, len(keys))
	for j, k := range keys {
		col[k] = j
	}
	m := mat.NewDense(len(slots), len(keys), nil)
	for i, s := range slots {
		j, ok := col[c.SlotMap[s]]
		if !ok {
			return nil, fmt.Errorf("collection %s: slot %s points at unknown potential %s", c.Type, s, c.SlotMap[s])
		}
		m.Set(i, j, 1)
	}
	return m, nil
}

// Copy returns a deep copy of the collection.
func (c *Collection) Copy() *Collection {
	n := NewCollection(c.Type, c.Expression)
	for k, v := range c.SlotMap {
		n.SlotMap[k] = v
	}
	for k, v := range c.Potentials {
		n.Potentials[k] = v.Copy()
	}
	if c.Nonbonded != nil {
		n.Nonbonded = c.Nonbonded.Copy()
	}
	if c.Charges != nil {
		n.Charges = make(map[int]float64, len(c.Charges))
		for k, v := range c.Charges {
			n.Charges[k] = v
		}
	}
	for _, v := range c.VSites {
		n.VSites = append(n.VSites, v.Copy())
	}
	return n
}

// shifted returns a deep copy with every atom index moved up by n, for
// combining systems.
func (c *Collection) shifted(n int) *Collection {
	out := NewCollection(c.Type, c.Expression)
	for k, v := range c.SlotMap {
		out.SlotMap[k.Shift(n)] = v
	}
	for k, v := range c.Potentials {
		out.Potentials[k] = v.Copy()
	}
	if c.Nonbonded != nil {
		out.Nonbonded = c.Nonbonded.Copy()
	}
	if c.Charges != nil {
		out.Charges = make(map[int]float64, len(c.Charges))
		for k, v := range c.Charges {
			out.Charges[k+n] = v
		}
	}
	for _, v := range c.VSites {
		s := v.Copy()
		s.Particle += n
		for i := range s.Orientation {
			s.Orientation[i] += n
		}
		out.VSites = append(out.VSites, s)
	}
	return out
}
