/*
 * pack.go, part of goff.
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

// Package packer fills simulation boxes with molecules. Copies of the
// input molecules are inserted one by one at random positions and
// orientations, and a placement is kept only when no atom comes closer
// than a tolerance to the atoms already in the box. The packed topology
// can then be parametrized like any other.
package packer

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/interchange"
	"github.com/imolina/goff/xyz"
)

// Defaults for the packing options.
const (
	DefaultTolerance   = 2.0 //A
	DefaultMaxAttempts = 2000
)

// ErrPackingFailed reports that some molecule copy could not be placed
// without clashes within the allowed attempts. Errors returned by Pack
// wrap it with the copy that failed.
var ErrPackingFailed = errors.New("no clash-free placement found")

// Options control a packing run.
type Options struct {
	//Box is the target box, in A. When nil, a cubic box is derived
	//from Density.
	Box *xyz.Box
	//Density is the target mass density in g/cm3. It is only used
	//when Box is nil.
	Density float64
	//Tolerance is the minimum allowed distance between atoms of
	//different molecules, in A. Zero means DefaultTolerance.
	Tolerance float64
	//MaxAttempts is how many placements are tried for each copy before
	//the run is abandoned. Zero means DefaultMaxAttempts.
	MaxAttempts int
	//Seed feeds the random source. Runs with the same molecules,
	//counts and options produce the same coordinates.
	Seed int64
	//Periodic switches the clash checks to minimum-image distances and
	//lets molecules stick out of the box, for systems meant to run
	//under periodic boundary conditions. It needs a rectangular box.
	Periodic bool
	//Logger, when given, receives progress entries.
	Logger *zap.Logger
}

// Pack replicates each molecule counts[i] times and places the copies in
// a box, randomly rotated and translated, never letting atoms of
// different molecules come closer than the tolerance. It returns the
// packed topology, with the box and one positioned molecule instance per
// copy, plus the assembled coordinates. The run is deterministic for a
// given seed; a copy that cannot be placed within MaxAttempts tries
// makes the whole run fail with an error wrapping ErrPackingFailed.
func Pack(mols []*mol.Molecule, counts []int, opts *Options) (*mol.Topology, *xyz.Matrix, error) {
	if opts == nil {
		opts = &Options{}
	}
	if len(mols) == 0 {
		return nil, nil, fmt.Errorf("Pack: nothing to pack")
	}
	if len(mols) != len(counts) {
		return nil, nil, fmt.Errorf("Pack: %d molecules but %d counts", len(mols), len(counts))
	}
	total := 0
	for i, m := range mols {
		if counts[i] < 0 {
			return nil, nil, fmt.Errorf("Pack: negative count %d for molecule %d", counts[i], i)
		}
		total += counts[i]
		if m.Coords == nil {
			return nil, nil, fmt.Errorf("Pack: molecule %d (%s) has no coordinates", i, m.Name)
		}
		if m.Coords.NVecs() != m.Len() {
			return nil, nil, fmt.Errorf("Pack: molecule %d (%s): %d coordinates for %d atoms",
				i, m.Name, m.Coords.NVecs(), m.Len())
		}
	}
	if total == 0 {
		return nil, nil, fmt.Errorf("Pack: all counts are zero")
	}
	tol := opts.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}
	if tol < 0 {
		return nil, nil, fmt.Errorf("Pack: negative tolerance %g", tol)
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	box := opts.Box
	if box == nil {
		var err error
		box, err = DensityBox(mols, counts, opts.Density)
		if err != nil {
			return nil, nil, errDecorate(err, "Pack")
		}
	}
	if opts.Periodic && !box.IsRectangular() {
		return nil, nil, fmt.Errorf("Pack: periodic clash checks need a rectangular box")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("packing",
		zap.Int("molecules", total),
		zap.Float64("tolerance", tol),
		zap.Float64("volume", box.Volume()),
		zap.Bool("periodic", opts.Periodic))

	rng := rand.New(rand.NewSource(opts.Seed))
	grid := newCellGrid(box, tol, opts.Periodic)
	top := mol.NewTopology()
	top.Box = box.Copy()

	placed := 0
	for mi, m := range mols {
		tmpl := xyz.Zeros(m.Coords.NVecs())
		tmpl.Copy(m.Coords)
		tmpl.Center()
		for c := 0; c < counts[mi]; c++ {
			work := xyz.Zeros(tmpl.NVecs())
			done := false
			attempts := 0
			for attempts < maxAttempts {
				attempts++
				work.Copy(tmpl)
				work.Rotate(xyz.RandomRotation(rng.Float64(), rng.Float64(), rng.Float64()))
				work.Translate(randomPoint(rng, box))
				if !opts.Periodic && !allInside(work, box) {
					continue
				}
				if grid.Clashes(work) {
					continue
				}
				done = true
				break
			}
			if !done {
				return nil, nil, fmt.Errorf("%w: copy %d/%d of %s, %d attempts",
					ErrPackingFailed, c+1, counts[mi], m.Name, maxAttempts)
			}
			grid.Accept(work)
			cp := m.Copy()
			cp.Coords = work
			top.AppendMolecule(cp)
			placed++
			logger.Info("inserted",
				zap.String("molecule", m.Name),
				zap.Int("n", placed),
				zap.Int("of", total),
				zap.Int("retries", attempts-1))
		}
	}
	pos, err := top.Positions()
	if err != nil {
		return nil, nil, errDecorate(err, "Pack")
	}
	logger.Info("packing done", zap.Int("molecules", placed), zap.Int("atoms", pos.NVecs()))
	return top, pos, nil
}

// SetOnInterchange stamps a packing result onto a parametrized system.
// It is meant for re-packing: the Interchange must have been built from
// a topology with the same composition (same molecules, same counts, in
// order) that the packer was run with, so atom indices line up.
func SetOnInterchange(ic *interchange.Interchange, top *mol.Topology, pos *xyz.Matrix) error {
	if ic.NAtoms() != top.Len() {
		return fmt.Errorf("SetOnInterchange: packed topology has %d atoms, the system has %d",
			top.Len(), ic.NAtoms())
	}
	if err := ic.SetPositions(pos); err != nil {
		return err
	}
	if top.Box != nil {
		ic.Box = top.Box.Copy()
	}
	return nil
}

const (
	amuToGram = 1.66053906660e-24
	cm3ToA3   = 1e24
)

// DensityBox returns a cubic box sized so the given composition reaches
// the target mass density, in g/cm3, before a 10% edge margin is added
// to leave the packer room to work. The realized density of the returned
// box is therefore below the target.
func DensityBox(mols []*mol.Molecule, counts []int, density float64) (*xyz.Box, error) {
	if density <= 0 {
		return nil, fmt.Errorf("DensityBox: need a box or a positive target density, got %g g/cm3", density)
	}
	if len(mols) != len(counts) {
		return nil, fmt.Errorf("DensityBox: %d molecules but %d counts", len(mols), len(counts))
	}
	totalMass := 0.0 //amu
	for i, m := range mols {
		masses, err := m.Masses()
		if err != nil {
			return nil, errDecorate(err, "DensityBox")
		}
		totalMass += floats.Sum(masses) * float64(counts[i])
	}
	volume := totalMass * amuToGram / density * cm3ToA3 //A^3
	edge := math.Cbrt(volume) * 1.1
	return xyz.Cubic(edge), nil
}

func errDecorate(err error, caller string) error {
	if err2, ok := err.(mol.Error); ok {
		err2.Decorate(caller)
		return err2
	}
	return fmt.Errorf("%s: %w", caller, err)
}

// randomPoint samples a point uniformly inside the box, as a fractional
// combination of the box vectors.
func randomPoint(rng *rand.Rand, box *xyz.Box) []float64 {
	u := [3]float64{rng.Float64(), rng.Float64(), rng.Float64()}
	p := make([]float64, 3)
	for j := 0; j < 3; j++ {
		p[j] = u[0]*box.At(0, j) + u[1]*box.At(1, j) + u[2]*box.At(2, j)
	}
	return p
}

func allInside(c *xyz.Matrix, box *xyz.Box) bool {
	for i := 0; i < c.NVecs(); i++ {
		if !box.Contains(c.VecSlice(i), 0) {
			return false
		}
	}
	return true
}

// cellGrid bins the atoms already in the box on a uniform grid, so a
// clash check only visits the 27 cells around each candidate atom. Cell
// widths never drop under the tolerance, which keeps that neighborhood
// sufficient.
type cellGrid struct {
	tol2     float64
	box      *xyz.Box
	periodic bool
	origin   [3]float64
	width    [3]float64
	n        [3]int
	cells    map[int][]int
	atoms    [][3]float64
}

func newCellGrid(box *xyz.Box, tol float64, periodic bool) *cellGrid {
	g := &cellGrid{tol2: tol * tol, box: box, periodic: periodic, cells: make(map[int][]int)}
	var lo, hi [3]float64
	if periodic {
		for i := 0; i < 3; i++ {
			hi[i] = box.At(i, i)
		}
	} else {
		lo, hi = boxAABB(box)
	}
	for i := 0; i < 3; i++ {
		span := hi[i] - lo[i]
		n := 1
		if tol > 0 {
			n = int(math.Floor(span / tol))
			if n < 1 {
				n = 1
			}
		}
		g.n[i] = n
		g.width[i] = span / float64(n)
		g.origin[i] = lo[i]
	}
	return g
}

// boxAABB returns the axis-aligned bounding box of the cell spanned by
// the box vectors, from the positions of its 8 corners.
func boxAABB(box *xyz.Box) (lo, hi [3]float64) {
	for corner := 0; corner < 8; corner++ {
		var p [3]float64
		for v := 0; v < 3; v++ {
			if corner&(1<<v) == 0 {
				continue
			}
			for j := 0; j < 3; j++ {
				p[j] += box.At(v, j)
			}
		}
		for j := 0; j < 3; j++ {
			if corner == 0 || p[j] < lo[j] {
				lo[j] = p[j]
			}
			if corner == 0 || p[j] > hi[j] {
				hi[j] = p[j]
			}
		}
	}
	return lo, hi
}

func (g *cellGrid) cellOf(v []float64) [3]int {
	var c [3]int
	for i := 0; i < 3; i++ {
		x := v[i] - g.origin[i]
		if g.periodic {
			l := g.width[i] * float64(g.n[i])
			x -= l * math.Floor(x/l)
		}
		k := int(math.Floor(x / g.width[i]))
		//atoms may fall outside the grid in nonperiodic runs; clamping
		//them to the border cells preserves neighborhood adjacency
		if k < 0 {
			k = 0
		}
		if k >= g.n[i] {
			k = g.n[i] - 1
		}
		c[i] = k
	}
	return c
}

func (g *cellGrid) linear(c [3]int) int {
	return (c[0]*g.n[1]+c[1])*g.n[2] + c[2]
}

// Clashes reports whether any atom of c comes closer than the tolerance
// to an atom already accepted into the grid.
func (g *cellGrid) Clashes(c *xyz.Matrix) bool {
	d := make([]float64, 3)
	for i := 0; i < c.NVecs(); i++ {
		v := c.VecSlice(i)
		home := g.cellOf(v)
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for dz := -1; dz <= 1; dz++ {
					cc := [3]int{home[0] + dx, home[1] + dy, home[2] + dz}
					inGrid := true
					for k := 0; k < 3; k++ {
						if g.periodic {
							cc[k] = ((cc[k] % g.n[k]) + g.n[k]) % g.n[k]
						} else if cc[k] < 0 || cc[k] >= g.n[k] {
							inGrid = false
							break
						}
					}
					if !inGrid {
						continue
					}
					for _, ai := range g.cells[g.linear(cc)] {
						a := g.atoms[ai]
						d[0], d[1], d[2] = v[0]-a[0], v[1]-a[1], v[2]-a[2]
						if g.periodic {
							g.box.MinImage(d)
						}
						if d[0]*d[0]+d[1]*d[1]+d[2]*d[2] < g.tol2 {
							return true
						}
					}
				}
			}
		}
	}
	return false
}

// Accept adds the atoms of c to the grid.
func (g *cellGrid) Accept(c *xyz.Matrix) {
	for i := 0; i < c.NVecs(); i++ {
		v := c.VecSlice(i)
		g.atoms = append(g.atoms, [3]float64{v[0], v[1], v[2]})
		idx := g.linear(g.cellOf(v))
		g.cells[idx] = append(g.cells[idx], len(g.atoms)-1)
	}
}
