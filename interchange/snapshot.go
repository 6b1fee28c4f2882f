/*
 * snapshot.go, part of goff.
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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/xyz"
)

const snapshotVersion = 1

// The serial types mirror the in-memory ones with map keys flattened into
// lists, since struct-keyed maps have no JSON form.
type serialSnapshot struct {
	Version     int                 `json:"version"`
	Molecules   []*serialMolecule   `json:"molecules"`
	Collections []*serialCollection `json:"collections"`
	Positions   []float64           `json:"positions,omitempty"`
	Velocities  []float64           `json:"velocities,omitempty"`
	Box         []float64           `json:"box,omitempty"`
}

type serialMolecule struct {
	Name   string       `json:"name"`
	Atoms  []*mol.Atom  `json:"atoms"`
	Bonds  []serialBond `json:"bonds,omitempty"`
	Coords []float64    `json:"coords,omitempty"`
}

type serialBond struct {
	I        int     `json:"i"`
	J        int     `json:"j"`
	Order    float64 `json:"order"`
	Aromatic bool    `json:"aromatic,omitempty"`
}

type serialCollection struct {
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Expression string            `json:"expression,omitempty"`
	Slots      []serialSlot      `json:"slots,omitempty"`
	Potentials []serialPotential `json:"potentials,omitempty"`
	Nonbonded  *Nonbonded        `json:"nonbonded,omitempty"`
	Charges    map[int]float64   `json:"charges,omitempty"`
	VSites     []*VirtualSite    `json:"virtualSites,omitempty"`
}

type serialSlot struct {
	Atoms []int  `json:"atoms"`
	Mult  int    `json:"mult"`
	ID    string `json:"id"`
	PMult int    `json:"pmult"`
}

type serialPotential struct {
	ID         string             `json:"id"`
	Mult       int                `json:"mult"`
	Label      string             `json:"label,omitempty"`
	Parameters map[string]float64 `json:"parameters"`
}

func (ic *Interchange) toSerial() *serialSnapshot {
	s := &serialSnapshot{Version: snapshotVersion}
	if ic.Topology != nil {
		for _, m := range ic.Topology.Mols {
			sm := &serialMolecule{Name: m.Name, Atoms: m.Atoms}
			for _, b := range m.Bonds {
				sm.Bonds = append(sm.Bonds, serialBond{I: b.At1.Index, J: b.At2.Index, Order: b.Order, Aromatic: b.Aromatic})
			}
			if m.Coords != nil {
				sm.Coords = append([]float64(nil), m.Coords.Raw()...)
			}
			s.Molecules = append(s.Molecules, sm)
		}
	}
	for _, name := range ic.names {
		c := ic.collections[name]
		sc := &serialCollection{
			Name:       name,
			Type:       c.Type,
			Expression: c.Expression,
			Nonbonded:  c.Nonbonded,
			Charges:    c.Charges,
			VSites:     c.VSites,
		}
		for _, slot := range c.Slots() {
			pk := c.SlotMap[slot]
			sc.Slots = append(sc.Slots, serialSlot{Atoms: slot.AtomIndices(), Mult: slot.Mult, ID: pk.ID, PMult: pk.Mult})
		}
		for _, pk := range c.PotentialKeys() {
			pot := c.Potentials[pk]
			sc.Potentials = append(sc.Potentials, serialPotential{ID: pk.ID, Mult: pk.Mult, Label: pot.Label, Parameters: pot.Parameters})
		}
		s.Collections = append(s.Collections, sc)
	}
	if ic.Positions != nil {
		s.Positions = append([]float64(nil), ic.Positions.Raw()...)
	}
	if ic.Velocities != nil {
		s.Velocities = append([]float64(nil), ic.Velocities.Raw()...)
	}
	if ic.Box != nil {
		s.Box = ic.Box.Vectors()
	}
	return s
}

func fromSerial(s *serialSnapshot) (*Interchange, error) {
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d not supported, want %d", s.Version, snapshotVersion)
	}
	mols := make([]*mol.Molecule, 0, len(s.Molecules))
	for _, sm := range s.Molecules {
		m := mol.NewMolecule(sm.Name)
		for _, at := range sm.Atoms {
			m.AddAtom(at)
		}
		for _, sb := range sm.Bonds {
			if err := m.AddBond(sb.I, sb.J, sb.Order); err != nil {
				return nil, fmt.Errorf("snapshot molecule %s: %w", sm.Name, err)
			}
			m.Bonds[len(m.Bonds)-1].Aromatic = sb.Aromatic
		}
		if sm.Coords != nil {
			coords, err := xyz.NewMatrix(sm.Coords)
			if err != nil {
				return nil, fmt.Errorf("snapshot molecule %s: %w", sm.Name, err)
			}
			m.Coords = coords
		}
		mols = append(mols, m)
	}
	ic := New(mol.NewTopology(mols...))
	for _, sc := range s.Collections {
		c := NewCollection(sc.Type, sc.Expression)
		c.Nonbonded = sc.Nonbonded
		c.Charges = sc.Charges
		c.VSites = sc.VSites
		for _, sl := range sc.Slots {
			c.SlotMap[Key(sl.Atoms...).WithMult(sl.Mult)] = PotentialKey{ID: sl.ID, Mult: sl.PMult}
		}
		for _, sp := range sc.Potentials {
			c.Potentials[PotentialKey{ID: sp.ID, Mult: sp.Mult}] = NewPotential(sp.Label, sp.Parameters)
		}
		ic.AddCollection(sc.Name, c)
	}
	if s.Positions != nil {
		m, err := xyz.NewMatrix(s.Positions)
		if err != nil {
			return nil, err
		}
		if err := ic.SetPositions(m); err != nil {
			return nil, err
		}
	}
	if s.Velocities != nil {
		m, err := xyz.NewMatrix(s.Velocities)
		if err != nil {
			return nil, err
		}
		if err := ic.SetVelocities(m); err != nil {
			return nil, err
		}
	}
	if s.Box != nil {
		if err := ic.SetBox(s.Box); err != nil {
			return nil, err
		}
	}
	return ic, nil
}

// Save writes the system as a JSON snapshot.
func (ic *Interchange) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(ic.toSerial())
}

// Load reads a snapshot written by Save.
func Load(r io.Reader) (*Interchange, error) {
	var s serialSnapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, err
	}
	return fromSerial(&s)
}

// SaveFile writes a snapshot to a file. Names ending in "z" get
// zstd-compressed, so systems of any size stay cheap to keep around.
func (ic *Interchange) SaveFile(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	if !strings.HasSuffix(name, "z") {
		return ic.Save(f)
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return err
	}
	if err := ic.Save(zw); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// LoadFile reads a snapshot file written by SaveFile, sniffing the
// compression from the name the same way.
func LoadFile(name string) (*Interchange, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if !strings.HasSuffix(name, "z") {
		return Load(f)
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return Load(zr)
}
