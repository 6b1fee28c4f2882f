/*
 * keys.go, part of goff.
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
)

// A TopologyKey names the atoms one interaction applies to, by global index
// within the topology. Torsions carry an extra multiplicity so each cosine
// term gets its own slot. TopologyKey is a value type usable as a map key.
type TopologyKey struct {
	Atoms [4]int
	N     int
	Mult  int
}

// Key builds a TopologyKey over 1 to 4 atoms, with no multiplicity.
func Key(atoms ...int) TopologyKey {
	if len(atoms) == 0 || len(atoms) > 4 {
		panic(fmt.Sprintf("interchange: a topology key takes 1 to 4 atoms, not %d", len(atoms)))
	}
	k := TopologyKey{N: len(atoms), Mult: -1}
	for i := range k.Atoms {
		if i < len(atoms) {
			k.Atoms[i] = atoms[i]
		} else {
			k.Atoms[i] = -1
		}
	}
	return k
}

// BondKey returns the canonical key for a pair: lowest index first.
func BondKey(i, j int) TopologyKey {
	if j < i {
		i, j = j, i
	}
	return Key(i, j)
}

// AngleKey returns the canonical key for a triplet: outer atoms ordered.
func AngleKey(i, j, k int) TopologyKey {
	if k < i {
		i, k = k, i
	}
	return Key(i, j, k)
}

// ProperKey returns the canonical key for a proper torsion: the tuple is
// reversed when the central pair is descending, so (i,j,k,l) and (l,k,j,i)
// land on the same slot.
func ProperKey(i, j, k, l int) TopologyKey {
	if j > k {
		i, j, k, l = l, k, j, i
	}
	return Key(i, j, k, l)
}

// WithMult returns a copy of the key carrying a term multiplicity.
func (k TopologyKey) WithMult(m int) TopologyKey {
	k.Mult = m
	return k
}

// AtomIndices returns the atoms of the key as a slice of length N.
func (k TopologyKey) AtomIndices() []int {
	out := make([]int, k.N)
	copy(out, k.Atoms[:k.N])
	return out
}

// Shift returns the key with every atom index moved up by n. Combining two
// systems shifts every key of the second one by the atom count of the first.
func (k TopologyKey) Shift(n int) TopologyKey {
	for i := 0; i < k.N; i++ {
		k.Atoms[i] += n
	}
	return k
}

// Less orders keys by atom count, then indices, then multiplicity. The
// ordering is what makes matrix views and exported files deterministic.
func (k TopologyKey) Less(o TopologyKey) bool {
	if k.N != o.N {
		return k.N < o.N
	}
	for i := 0; i < k.N; i++ {
		if k.Atoms[i] != o.Atoms[i] {
			return k.Atoms[i] < o.Atoms[i]
		}
	}
	return k.Mult < o.Mult
}

func (k TopologyKey) String() string {
	parts := make([]string, k.N)
	for i := 0; i < k.N; i++ {
		parts[i] = fmt.Sprint(k.Atoms[i])
	}
	s := "(" + strings.Join(parts, ", ") + ")"
	if k.Mult >= 0 {
		s += fmt.Sprintf(" mult %d", k.Mult)
	}
	return s
}

// A PotentialKey identifies one parametrized potential within a collection.
// ID is the SMIRKS pattern the parameter came from, or any other unique
// label; Mult separates the cosine terms of multi-term torsions.
type PotentialKey struct {
	ID   string
	Mult int
}

// PKey builds a PotentialKey with no multiplicity.
func PKey(id string) PotentialKey {
	return PotentialKey{ID: id, Mult: -1}
}

// WithMult returns a copy of the key carrying a term multiplicity.
func (k PotentialKey) WithMult(m int) PotentialKey {
	k.Mult = m
	return k
}

// Less orders potential keys by ID, then multiplicity.
func (k PotentialKey) Less(o PotentialKey) bool {
	if k.ID != o.ID {
		return k.ID < o.ID
	}
	return k.Mult < o.Mult
}

func (k PotentialKey) String() string {
	if k.Mult >= 0 {
		return fmt.Sprintf("%s mult %d", k.ID, k.Mult)
	}
	return k.ID
}

// A Potential is a bag of named numbers, all in internal units (angstrom,
// kcal/mol, radian, elementary charge, amu). Label carries the short
// parameter id from the force field line, when there was one.
type Potential struct {
	Label      string
	Parameters map[string]float64
}

// NewPotential builds a potential from a parameter map. The map is taken
// over, not copied.
func NewPotential(label string, params map[string]float64) *Potential {
	return &Potential{Label: label, Parameters: params}
}

// Get looks a parameter up by name.
func (p *Potential) Get(name string) (float64, bool) {
	v, ok := p.Parameters[name]
	return v, ok
}

// Copy returns a deep copy of the potential.
func (p *Potential) Copy() *Potential {
	n := &Potential{Label: p.Label, Parameters: make(map[string]float64, len(p.Parameters))}
	for k, v := range p.Parameters {
		n.Parameters[k] = v
	}
	return n
}
