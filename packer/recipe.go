/*
 * recipe.go, part of goff.
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

package packer

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/xyz"
)

// A Recipe is a packing job read from YAML: which structure files to
// load, how many copies of each, and either an explicit box or a target
// density. A minimal recipe looks like
//
//	structures:
//	  - file: water.sdf
//	    count: 500
//	  - file: ethanol.sdf
//	    count: 100
//	density: 0.9
//	seed: 42
type Recipe struct {
	Structures []Structure `yaml:"structures"`
	//Box holds 3 edge lengths or the full 9 box-matrix entries, in A.
	//Give either Box or Density, never both.
	Box     []float64 `yaml:"box,omitempty"`
	Density float64   `yaml:"density,omitempty"` //g/cm3
	//Tolerance, Seed and Periodic map onto the packing Options.
	Tolerance float64 `yaml:"tolerance,omitempty"`
	Seed      int64   `yaml:"seed,omitempty"`
	Periodic  bool    `yaml:"periodic,omitempty"`
}

// Structure is one recipe entry: a structure file, read by suffix (.sdf,
// .mol, .pdb or .xyz), and the number of copies to pack. The file must
// hold a single molecule.
type Structure struct {
	File  string `yaml:"file"`
	Count int    `yaml:"count"`
}

// LoadRecipe reads a YAML recipe from a file and validates it.
func LoadRecipe(name string) (*Recipe, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	r := new(Recipe)
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("recipe %s: %w", name, err)
	}
	if err := r.Check(); err != nil {
		return nil, fmt.Errorf("recipe %s: %w", name, err)
	}
	return r, nil
}

// Check validates the recipe without touching the filesystem.
func (R *Recipe) Check() error {
	if len(R.Structures) == 0 {
		return errors.New("recipe has no structures")
	}
	for i, s := range R.Structures {
		if s.File == "" {
			return fmt.Errorf("structure %d has no file", i)
		}
		if s.Count < 1 {
			return fmt.Errorf("structure %d (%s): count must be at least 1, got %d", i, s.File, s.Count)
		}
	}
	switch {
	case len(R.Box) > 0 && R.Density > 0:
		return errors.New("give either a box or a density, not both")
	case len(R.Box) == 0 && R.Density <= 0:
		return errors.New("recipe needs a box or a positive density")
	case len(R.Box) > 0:
		if _, err := xyz.NewBox(R.Box); err != nil {
			return err
		}
	}
	if R.Tolerance < 0 {
		return fmt.Errorf("negative tolerance %g", R.Tolerance)
	}
	return nil
}

// Run loads the recipe's structures and packs them. The logger may be
// nil. It returns the packed topology and the assembled coordinates,
// like Pack does.
func (R *Recipe) Run(logger *zap.Logger) (*mol.Topology, *xyz.Matrix, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := R.Check(); err != nil {
		return nil, nil, err
	}
	mols := make([]*mol.Molecule, 0, len(R.Structures))
	counts := make([]int, 0, len(R.Structures))
	for _, s := range R.Structures {
		t, err := mol.ReadFile(s.File)
		if err != nil {
			return nil, nil, err
		}
		if t.NMols() != 1 {
			return nil, nil, fmt.Errorf("structure file %s holds %d molecules, recipes need one per file",
				s.File, t.NMols())
		}
		logger.Info("loaded structure",
			zap.String("file", s.File),
			zap.Int("atoms", t.Mols[0].Len()),
			zap.Int("copies", s.Count))
		mols = append(mols, t.Mols[0])
		counts = append(counts, s.Count)
	}
	opts := &Options{
		Density:   R.Density,
		Tolerance: R.Tolerance,
		Seed:      R.Seed,
		Periodic:  R.Periodic,
		Logger:    logger,
	}
	if len(R.Box) > 0 {
		b, err := xyz.NewBox(R.Box)
		if err != nil {
			return nil, nil, err
		}
		opts.Box = b
	}
	return Pack(mols, counts, opts)
}
