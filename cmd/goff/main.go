/*
 * main.go, part of goff.
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

// goff parametrizes chemical systems with SMIRNOFF force fields and moves
// them between MD engines. The subcommands cover the whole pipeline:
// convert (structure + force field -> engine input files), pack (fill a
// box from a YAML recipe), validate (cross-engine single-point energies)
// and info (describe a saved system).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	mol "github.com/imolina/goff"
	"github.com/imolina/goff/drivers"
	"github.com/imolina/goff/interchange"
	"github.com/imolina/goff/interop/amber"
	"github.com/imolina/goff/interop/gromacs"
	"github.com/imolina/goff/interop/lammps"
	"github.com/imolina/goff/interop/openmm"
	"github.com/imolina/goff/packer"
	"github.com/imolina/goff/smirnoff"
	"github.com/imolina/goff/xyz"
)

var (
	debug bool
	// convert
	structureFile  string
	forcefieldFile string
	outFile        string
	chargeMethod   string
	boxSpec        string
	// validate
	engines    string
	plotFile   string
	configFile string
)

var logger *zap.Logger

func main() {
	rootCmd := &cobra.Command{
		Use:           "goff",
		Short:         "force-field parametrization and engine interchange",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if debug {
				z := zap.NewDevelopmentConfig()
				z.OutputPaths = []string{"stdout"}
				logger, err = z.Build()
			} else {
				logger, err = zap.NewProduction()
			}
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose development logging")

	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "parametrize a structure and write engine input files",
		Long: `Load a structure and a SMIRNOFF force field, parametrize, and write
the format the output suffix asks for: .top/.gro (GROMACS),
.prmtop/.inpcrd (Amber), .data (LAMMPS), .xml (OpenMM System),
.json/.jz (goff system snapshot). Coordinate files (.gro, .inpcrd)
are written alongside their topology when positions are available.`,
		RunE: runConvert,
	}
	convertCmd.Flags().StringVarP(&structureFile, "structure", "s", "", "structure file (.sdf, .pdb, .xyz)")
	convertCmd.Flags().StringVarP(&forcefieldFile, "forcefield", "f", "", "force field (.offxml)")
	convertCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file; the suffix picks the format")
	convertCmd.Flags().StringVar(&chargeMethod, "charges", "", "fallback charge method (gasteiger, formal-charges, zeros)")
	convertCmd.Flags().StringVar(&boxSpec, "box", "", "periodic box, 3 or 9 values in angstrom, e.g. \"40 40 40\"")
	convertCmd.MarkFlagRequired("structure")
	convertCmd.MarkFlagRequired("forcefield")
	convertCmd.MarkFlagRequired("out")

	packCmd := &cobra.Command{
		Use:   "pack [recipe.yaml]",
		Short: "fill a box with molecules from a YAML recipe",
		Args:  cobra.ExactArgs(1),
		RunE:  runPack,
	}
	packCmd.Flags().StringVarP(&outFile, "out", "o", "packed.pdb", "output coordinates (.pdb or .gro)")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "cross-check single-point energies between engines",
		Long: `Evaluate a saved system with the in-process reference evaluator and
with every requested engine found on the PATH, then compare the energy
terms. Exits nonzero when any term is out of tolerance.`,
		RunE: runValidate,
	}
	validateCmd.Flags().StringVarP(&structureFile, "system", "s", "", "saved system (.json or .jz)")
	validateCmd.Flags().StringVar(&engines, "engines", "", "comma-separated engines (gromacs, amber, lammps); empty means all installed")
	validateCmd.Flags().StringVar(&plotFile, "plot", "", "write a per-term comparison chart (.png, .svg, .pdf)")
	validateCmd.Flags().StringVarP(&configFile, "config", "c", "", "validation config file (yaml)")
	validateCmd.MarkFlagRequired("system")

	infoCmd := &cobra.Command{
		Use:   "info [system.jz]",
		Short: "describe a saved system",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}

	rootCmd.AddCommand(convertCmd, packCmd, validateCmd, infoCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "goff: %v\n", err)
		os.Exit(1)
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	top, err := mol.ReadFile(structureFile)
	if err != nil {
		return err
	}
	ff, err := smirnoff.Load(forcefieldFile)
	if err != nil {
		return err
	}
	sugar := logger.Sugar()
	opts := &smirnoff.Options{
		ChargeMethod: chargeMethod,
		Warnf:        sugar.Warnf,
	}
	if boxSpec != "" {
		vals, err := parseFloats(boxSpec)
		if err != nil {
			return fmt.Errorf("bad --box: %w", err)
		}
		b, err := xyz.NewBox(vals)
		if err != nil {
			return err
		}
		opts.Box = b
	}
	ic, err := smirnoff.Apply(ff, top, opts)
	if err != nil {
		return err
	}
	if ic.Positions != nil && ic.Positions.AllZero() {
		sugar.Warnf("positions seem to all be zero")
	}
	sugar.Infow("parametrized", "atoms", ic.NAtoms(), "particles", ic.NParticles(),
		"collections", strings.Join(ic.CollectionNames(), ", "))
	return export(ic, outFile)
}

// export dispatches on the output suffix and writes the companion
// coordinate file next to topology formats when positions exist.
func export(ic *interchange.Interchange, name string) error {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	switch strings.ToLower(filepath.Ext(name)) {
	case ".top":
		if err := gromacs.WriteTopFile(name, ic); err != nil {
			return err
		}
		if ic.Positions != nil {
			return gromacs.WriteGroFile(base+".gro", ic)
		}
		return nil
	case ".gro":
		return gromacs.WriteGroFile(name, ic)
	case ".prmtop":
		if err := amber.WritePrmtopFile(name, ic); err != nil {
			return err
		}
		if ic.Positions != nil {
			return amber.WriteInpcrdFile(base+".inpcrd", ic)
		}
		return nil
	case ".inpcrd":
		return amber.WriteInpcrdFile(name, ic)
	case ".data", ".lmp":
		return lammps.WriteDataFile(name, ic)
	case ".xml":
		return openmm.WriteSystemXMLFile(name, ic)
	case ".json", ".jz":
		return ic.SaveFile(name)
	default:
		return fmt.Errorf("don't know how to write %s: supported suffixes are .top, .gro, .prmtop, .inpcrd, .data, .xml, .json, .jz", name)
	}
}

func runPack(cmd *cobra.Command, args []string) error {
	recipe, err := packer.LoadRecipe(args[0])
	if err != nil {
		return err
	}
	top, pos, err := recipe.Run(logger)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(outFile)) {
	case ".pdb":
		return mol.PDBFileWrite(outFile, top)
	case ".gro":
		ic := interchange.New(top)
		if err := ic.SetPositions(pos); err != nil {
			return err
		}
		ic.Box = top.Box
		return gromacs.WriteGroFile(outFile, ic)
	default:
		return fmt.Errorf("pack writes .pdb or .gro, not %s", outFile)
	}
}

// validateConfig is the YAML file behind `goff validate -c`.
type validateConfig struct {
	Engines    []string           `yaml:"engines,omitempty"`
	Tolerances map[string]float64 `yaml:"tolerances,omitempty"` //kJ/mol per term
	Plot       string             `yaml:"plot,omitempty"`
}

func loadValidateConfig(name string) (*validateConfig, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	cfg := new(validateConfig)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("bad validation config %s: %w", name, err)
	}
	return cfg, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	ic, err := interchange.LoadFile(structureFile)
	if err != nil {
		return err
	}
	opts := &drivers.CompareOptions{Logger: logger}
	if engines != "" {
		for _, e := range strings.Split(engines, ",") {
			if e = strings.TrimSpace(e); e != "" {
				opts.Engines = append(opts.Engines, e)
			}
		}
	}
	if configFile != "" {
		cfg, err := loadValidateConfig(configFile)
		if err != nil {
			return err
		}
		if len(opts.Engines) == 0 {
			opts.Engines = cfg.Engines
		}
		opts.Tolerances = cfg.Tolerances
		if plotFile == "" {
			plotFile = cfg.Plot
		}
	}
	reports, cmpErr := drivers.CompareAll(context.Background(), ic, opts)
	names := make([]string, 0, len(reports))
	for n := range reports {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Printf("== %s ==\n%s\n", n, reports[n])
	}
	if plotFile != "" {
		if err := drivers.PlotComparison(plotFile, reports); err != nil {
			return err
		}
		logger.Sugar().Infow("wrote comparison plot", "file", plotFile)
	}
	if cmpErr != nil {
		return cmpErr
	}
	if len(reports) == 1 {
		logger.Sugar().Warnf("no external engine was available; only the reference evaluation ran")
	}
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	ic, err := interchange.LoadFile(args[0])
	if err != nil {
		return err
	}
	fmt.Println(ic)
	if ic.Box != nil {
		l := ic.Box.Lengths()
		a := ic.Box.Angles()
		fmt.Printf("box: %.3f x %.3f x %.3f A, angles %.2f %.2f %.2f deg\n",
			l[0], l[1], l[2], a[0], a[1], a[2])
	}
	for _, name := range ic.CollectionNames() {
		col := ic.MustCollection(name)
		fmt.Printf("  %-18s %s\n", name, describeCollection(col))
	}
	if err := ic.Validate(); err != nil {
		return fmt.Errorf("system does not validate: %w", err)
	}
	return nil
}

func describeCollection(col *interchange.Collection) string {
	switch {
	case col.Charges != nil:
		return fmt.Sprintf("%d charges", len(col.Charges))
	case len(col.VSites) > 0:
		return fmt.Sprintf("%d virtual sites", len(col.VSites))
	default:
		return fmt.Sprintf("%d slots, %d potentials", len(col.SlotMap), len(col.Potentials))
	}
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	ret := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		ret = append(ret, v)
	}
	if len(ret) == 0 {
		return nil, errors.New("empty value")
	}
	return ret, nil
}
