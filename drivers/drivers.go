/*
 * drivers.go, part of goff.
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

// Package drivers checks exported systems against the engines themselves.
// Each driver writes the files its engine needs into a scratch directory,
// runs a zero-step single-point evaluation, and parses the energy terms
// back out. CompareAll runs every requested engine on one system and
// compares the results, term by term, against a direct evaluation of the
// parametrized collections, so a unit slip or a scaling mistake in an
// exporter shows up as a per-term deviation rather than a crashed
// simulation three weeks later.
package drivers

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/imolina/goff/interchange"
)

// ReferenceName is the report key CompareAll stores the direct
// evaluation under.
const ReferenceName = "reference"

// A Driver runs one engine on a parametrized system and reports the
// single-point energies in kJ/mol.
type Driver interface {
	//Name returns the engine name used in reports and logs.
	Name() string
	//Available reports whether the engine binary is on the PATH.
	Available() bool
	//Run evaluates the system and returns its energy terms.
	Run(ctx context.Context, ic *interchange.Interchange) (*EnergyReport, error)
}

// CompareOptions steer CompareAll. Engines lists the engines to run,
// by name or common alias; empty means every known engine. A nil
// Tolerances means DefaultTolerances.
type CompareOptions struct {
	Engines    []string
	Tolerances map[string]float64
	Logger     *zap.Logger
}

// CompareAll evaluates the system with the reference evaluator and with
// every requested engine that is installed, in parallel, then compares
// each engine against the reference. It returns every report it obtained,
// keyed by engine name plus ReferenceName, together with an error
// collecting the tolerance violations and engine failures, so a caller
// can print the numbers even when they disagree.
func CompareAll(ctx context.Context, ic *interchange.Interchange, opts *CompareOptions) (map[string]*EnergyReport, error) {
	if opts == nil {
		opts = &CompareOptions{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ref, err := Reference(ic)
	if err != nil {
		return nil, err
	}
	reports := map[string]*EnergyReport{ReferenceName: ref}

	drivers, err := selectDrivers(opts.Engines)
	if err != nil {
		return nil, err
	}
	avail := drivers[:0]
	for _, d := range drivers {
		if !d.Available() {
			log.Info("engine not found, skipping", zap.String("engine", d.Name()))
			continue
		}
		avail = append(avail, d)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range avail {
		d := d
		g.Go(func() error {
			rep, err := d.Run(gctx, ic)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Name(), err)
			}
			mu.Lock()
			reports[d.Name()] = rep
			mu.Unlock()
			log.Info("engine done", zap.String("engine", d.Name()),
				zap.Strings("terms", rep.Terms()))
			return nil
		})
	}
	errs := g.Wait()

	names := make([]string, 0, len(reports))
	for name := range reports {
		if name != ReferenceName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		devs, err := reports[name].Compare(ref, opts.Tolerances)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s vs reference: %w", name, err))
		}
		for term, d := range devs {
			log.Debug("term deviation", zap.String("engine", name),
				zap.String("term", term), zap.Float64("kJ/mol", d))
		}
	}
	return reports, errs
}

// selectDrivers resolves engine names, accepting the binary names as
// aliases. An empty list selects every engine.
func selectDrivers(engines []string) ([]Driver, error) {
	if len(engines) == 0 {
		return []Driver{&GromacsDriver{}, &AmberDriver{}, &LammpsDriver{}}, nil
	}
	var out []Driver
	for _, e := range engines {
		switch strings.ToLower(e) {
		case "gromacs", "gmx":
			out = append(out, &GromacsDriver{})
		case "amber", "sander":
			out = append(out, &AmberDriver{})
		case "lammps", "lmp":
			out = append(out, &LammpsDriver{})
		default:
			return nil, fmt.Errorf("unknown engine %q, know gromacs, amber and lammps", e)
		}
	}
	return out, nil
}

// runCommand runs a program in dir, feeding it stdin when non-empty, and
// returns the combined output. On failure the error carries the tail of
// the output, which is where every engine prints its complaint.
func runCommand(ctx context.Context, dir, stdin, prog string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, prog, args...)
	cmd.Dir = dir
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w\n%s", prog, strings.Join(args, " "), err, outputTail(out))
	}
	return string(out), nil
}

// outputTail keeps the last chunk of engine output for error messages.
func outputTail(out []byte) string {
	const keep = 2048
	s := strings.TrimSpace(string(out))
	if len(s) <= keep {
		return s
	}
	return "..." + s[len(s)-keep:]
}

func onPath(prog string) bool {
	_, err := exec.LookPath(prog)
	return err == nil
}
