package drivers

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/imolina/goff/interchange"
)

const gmxTable = `                 :-) GROMACS - gmx energy, 2023 (-:

Statistics over 1 steps [ 0.0000 through 0.0000 ps ], 1 data sets
All statistics are over 1 points

Energy                      Average   Err.Est.       RMSD  Tot-Drift
-------------------------------------------------------------------------------
Proper Dih.                 14.3353         --          0          0  (kJ/mol)
`

func TestParseGmxEnergy(Te *testing.T) {
	v, ok := parseGmxEnergy(gmxTable)
	if !ok {
		Te.Fatal("no value parsed from the energy table")
	}
	if math.Abs(v-14.3353) > 1e-9 {
		Te.Errorf("got %v, want 14.3353", v)
	}
	//a term name holding digits must not be mistaken for the value
	lj14 := strings.Replace(gmxTable, "Proper Dih.                 14.3353",
		"LJ-14                       -1.5000", 1)
	v, ok = parseGmxEnergy(lj14)
	if !ok || math.Abs(v+1.5) > 1e-9 {
		Te.Errorf("got %v %v, want -1.5 true", v, ok)
	}
	if _, ok := parseGmxEnergy("Select the terms you want\nBond 1\n"); ok {
		Te.Error("parsed a value out of output with no statistics table")
	}
}

const lammpsLog = `LAMMPS (2 Aug 2023 - Update 3)
Reading data file ...
Generated 0 of 1 mixed pair_coeff terms from arithmetic mixing rule
Setting up run ...
Per MPI rank memory allocation (min/avg/max) = 2.3 | 2.3 | 2.3 Mbytes
   Step         E_bond        E_angle        E_dihed        E_impro        E_vdwl         E_coul         E_long         E_tail         PotEng
         0   1.2            3.4            0.5            0.25           -2             8              -6             -0.1            4.95
Loop time of 1e-06 on 1 procs for 0 steps with 6 atoms
`

func TestParseLammpsThermo(Te *testing.T) {
	terms, ok := parseLammpsThermo(lammpsLog)
	if !ok {
		Te.Fatal("no thermo table parsed")
	}
	want := map[string]float64{
		TermBond:           1.2,
		TermAngle:          3.4,
		TermTorsion:        0.75,
		TermVdW:            -2.1,
		TermElectrostatics: 2,
	}
	for term, w := range want {
		if math.Abs(terms[term]-w) > 1e-9 {
			Te.Errorf("%s: got %v, want %v", term, terms[term], w)
		}
	}
	if _, ok := parseLammpsThermo("LAMMPS (2 Aug 2023)\nERROR: Unknown command\n"); ok {
		Te.Error("parsed a table out of an error transcript")
	}
}

const amberMdout = `   4.  RESULTS

   NSTEP       ENERGY          RMS            GMAX         NAME    NUMBER
      1      -9.0000E+01     1.3727E+01     5.0679E+01     O           7

 BOND    =        9.9999  ANGLE   =        9.9999  DIHED      =        9.9999
 VDWAALS =        9.9999  EEL     =        9.9999  HBOND      =        0.0000

                    FINAL RESULTS

   NSTEP       ENERGY          RMS            GMAX         NAME    NUMBER
      1      -1.1923E+02     1.3727E+01     5.0679E+01     O           7

 BOND    =        1.5000  ANGLE   =        2.2500  DIHED      =        0.7500
 VDWAALS =        3.7930  EEL     =      -99.7142  HBOND      =        0.0000
 1-4 VDW =        0.2500  1-4 EEL =        4.0000  RESTRAINT  =        0.0000

 Maximum number of minimization cycles reached.

 |  Setup wallclock =  0.01 seconds
`

func TestParseAmberMdout(Te *testing.T) {
	terms, ok := parseAmberMdout(amberMdout)
	if !ok {
		Te.Fatal("no FINAL RESULTS parsed")
	}
	want := map[string]float64{
		TermBond:           1.5,
		TermAngle:          2.25,
		TermTorsion:        0.75,
		TermVdW:            3.7930 + 0.25,
		TermElectrostatics: -99.7142 + 4,
	}
	for term, w := range want {
		if math.Abs(terms[term]-w) > 1e-9 {
			Te.Errorf("%s: got %v, want %v", term, terms[term], w)
		}
	}
	if _, ok := parseAmberMdout("sander crashed before results\n"); ok {
		Te.Error("parsed terms out of output with no FINAL RESULTS")
	}
}

func TestEqualsPairs(Te *testing.T) {
	got := equalsPairs(" 1-4 VDW =        0.2500  1-4 EEL =        4.0000  RESTRAINT  =        0.0000")
	if len(got) != 3 {
		Te.Fatalf("got %d pairs, want 3: %v", len(got), got)
	}
	if got["1-4 VDW"] != 0.25 || got["1-4 EEL"] != 4 || got["RESTRAINT"] != 0 {
		Te.Errorf("wrong pairs: %v", got)
	}
	if pairs := equalsPairs("   NSTEP       ENERGY          RMS"); len(pairs) != 0 {
		Te.Errorf("pairs out of a line with no equals signs: %v", pairs)
	}
	//an overflowed field ends the line early but keeps what came before
	got = equalsPairs(" BOND    =        1.5000  ANGLE   =  *************")
	if len(got) != 1 || got["BOND"] != 1.5 {
		Te.Errorf("wrong pairs from the overflowed line: %v", got)
	}
}

func TestReportBasics(Te *testing.T) {
	r := NewEnergyReport()
	r.Set(TermBond, 1)
	r.Add(TermBond, 0.5)
	r.Add(TermAngle, 2)
	if v, ok := r.Get(TermBond); !ok || v != 1.5 {
		Te.Errorf("Bond: got %v %v", v, ok)
	}
	if terms := r.Terms(); len(terms) != 2 || terms[0] != TermBond || terms[1] != TermAngle {
		Te.Errorf("wrong term order: %v", terms)
	}
	if r.Total() != 3.5 {
		Te.Errorf("Total: got %v, want 3.5", r.Total())
	}
	s := r.String()
	for _, sub := range []string{"Term", "Bond", "1.5000", "Total", "3.5000"} {
		if !strings.Contains(s, sub) {
			Te.Errorf("report table is missing %q:\n%s", sub, s)
		}
	}
}

func TestCompareSplit(Te *testing.T) {
	a := NewEnergyReport()
	a.Set(TermBond, 10)
	a.Set(TermAngle, 0.5)
	b := NewEnergyReport()
	b.Set(TermBond, 12)
	devs, err := a.Compare(b, nil)
	if err == nil || !strings.Contains(err.Error(), "Bond") {
		Te.Fatalf("expected a Bond violation, got %v", err)
	}
	if devs[TermBond] != -2 {
		Te.Errorf("Bond deviation: got %v, want -2", devs[TermBond])
	}
	//Angle is only on one side: counts as a deviation from zero
	if devs[TermAngle] != 0.5 {
		Te.Errorf("Angle deviation: got %v, want 0.5", devs[TermAngle])
	}
	if err := multierrLen(err); err != 1 {
		Te.Errorf("got %d violations, want 1 (Angle is within tolerance)", err)
	}
}

func TestCompareFolded(Te *testing.T) {
	ref := NewEnergyReport()
	ref.Set(TermBond, 10)
	ref.Set(TermVdW, 5)
	ref.Set(TermElectrostatics, -20)
	eng := NewEnergyReport()
	eng.Set(TermBond, 10.2)
	eng.Set(TermNonbonded, -15.4)

	devs, err := eng.Compare(ref, nil)
	if err != nil {
		Te.Fatalf("within default tolerances, got %v", err)
	}
	if _, ok := devs[TermVdW]; ok {
		Te.Error("vdW compared separately despite the folded nonbonded term")
	}
	if math.Abs(devs[TermNonbonded]+0.4) > 1e-9 {
		Te.Errorf("Nonbonded deviation: got %v, want -0.4", devs[TermNonbonded])
	}
	if _, err := eng.Compare(ref, map[string]float64{TermNonbonded: 0.1}); err == nil ||
		!strings.Contains(err.Error(), "Nonbonded") {
		Te.Errorf("expected a Nonbonded violation, got %v", err)
	}
}

// multierrLen counts the violations in a combined error, which multierr
// renders separated by semicolons.
func multierrLen(err error) int {
	if err == nil {
		return 0
	}
	return len(strings.Split(err.Error(), ";"))
}

func TestSelectDrivers(Te *testing.T) {
	all, err := selectDrivers(nil)
	if err != nil || len(all) != 3 {
		Te.Fatalf("got %d drivers, %v", len(all), err)
	}
	named, err := selectDrivers([]string{"GMX", "Sander", "lmp"})
	if err != nil {
		Te.Fatal(err)
	}
	want := []string{"gromacs", "amber", "lammps"}
	for i, d := range named {
		if d.Name() != want[i] {
			Te.Errorf("driver %d: got %s, want %s", i, d.Name(), want[i])
		}
	}
	if _, err := selectDrivers([]string{"namd"}); err == nil {
		Te.Error("an unknown engine was accepted")
	}
}

func TestGromacsNeedsBox(Te *testing.T) {
	ic := buildSystem(Te, []float64{0, 0, 0, 2, 0, 0}, [][2]int{{0, 1}})
	g := &GromacsDriver{}
	if _, err := g.Run(context.Background(), ic); err == nil ||
		!strings.Contains(err.Error(), "periodic") {
		Te.Fatalf("expected a periodicity refusal, got %v", err)
	}
}

func TestGromacsMdp(Te *testing.T) {
	ic := buildSystem(Te, []float64{0, 0, 0, 2, 0, 0}, nil)
	addVdW(ic, 3, 0.2, &interchange.Nonbonded{Cutoff: 10, Scale14: 0.5})
	addCharges(ic, map[int]float64{0: 0.1, 1: -0.1},
		&interchange.Nonbonded{Cutoff: 10, Scale14: 1 / 1.2, PeriodicMethod: "pme"})
	g := &GromacsDriver{}
	mdp := g.mdp(ic)
	for _, sub := range []string{"nsteps = 0", "pbc = xyz", "rvdw = 1.0000",
		"rcoulomb = 1.0000", "coulombtype = PME", "vdw-modifier = None"} {
		if !strings.Contains(mdp, sub) {
			Te.Errorf("mdp is missing %q:\n%s", sub, mdp)
		}
	}
	plain := buildSystem(Te, []float64{0, 0, 0, 2, 0, 0}, nil)
	addCharges(plain, map[int]float64{0: 0.1, 1: -0.1}, &interchange.Nonbonded{Cutoff: 9})
	if mdp := g.mdp(plain); !strings.Contains(mdp, "coulombtype = Cut-off") {
		Te.Errorf("expected plain cutoff electrostatics:\n%s", mdp)
	}
}

func TestAmberMdin(Te *testing.T) {
	ic := buildSystem(Te, []float64{0, 0, 0, 2, 0, 0}, nil)
	addVdW(ic, 3, 0.2, &interchange.Nonbonded{Cutoff: 10, Scale14: 0.5})
	if err := ic.SetBox([]float64{20, 20, 20}); err != nil {
		Te.Fatal(err)
	}
	a := &AmberDriver{}
	mdin := a.mdin(ic)
	for _, sub := range []string{"imin = 1", "maxcyc = 0", "ntb = 1", "cut = 10.00"} {
		if !strings.Contains(mdin, sub) {
			Te.Errorf("mdin is missing %q:\n%s", sub, mdin)
		}
	}
	gas := buildSystem(Te, []float64{0, 0, 0, 2, 0, 0}, nil)
	mdin = a.mdin(gas)
	for _, sub := range []string{"ntb = 0", "cut = 999.0"} {
		if !strings.Contains(mdin, sub) {
			Te.Errorf("vacuum mdin is missing %q:\n%s", sub, mdin)
		}
	}
}

func TestLammpsGasCutoff(Te *testing.T) {
	in := "units real\npair_style lj/cut/coul/cut 9 9\npair_modify mix arithmetic\n"
	out := gasPhaseCutoff(in)
	if !strings.Contains(out, "pair_style lj/cut/coul/cut 999 999") {
		Te.Errorf("cutoff not widened:\n%s", out)
	}
	ewald := "pair_style lj/cut/coul/long 9 9\n"
	if gasPhaseCutoff(ewald) != ewald {
		Te.Error("a periodic pair style was rewritten")
	}
}

func TestCompareAllNoEngines(Te *testing.T) {
	Te.Setenv("PATH", Te.TempDir())
	ic := buildSystem(Te, []float64{0, 0, 0, 3.5, 0, 0}, nil)
	addVdW(ic, 3, 0.2, &interchange.Nonbonded{Cutoff: 9, Scale14: 0.5})
	reports, err := CompareAll(context.Background(), ic, nil)
	if err != nil {
		Te.Fatal(err)
	}
	if len(reports) != 1 || reports[ReferenceName] == nil {
		Te.Fatalf("expected the reference report alone, got %v", reports)
	}
	if _, err := CompareAll(context.Background(), ic,
		&CompareOptions{Engines: []string{"namd"}}); err == nil {
		Te.Error("an unknown engine was accepted")
	}
}

func TestPlotComparison(Te *testing.T) {
	ref := NewEnergyReport()
	ref.Set(TermBond, 10)
	ref.Set(TermVdW, -5)
	eng := NewEnergyReport()
	eng.Set(TermBond, 10.2)
	eng.Set(TermVdW, -5.1)
	path := filepath.Join(Te.TempDir(), "cmp.png")
	err := PlotComparison(path, map[string]*EnergyReport{
		ReferenceName: ref,
		"gromacs":     eng,
	})
	if err != nil {
		Te.Fatal(err)
	}
	fi, err := os.Stat(path)
	if err != nil || fi.Size() == 0 {
		Te.Fatalf("no figure written: %v", err)
	}
	if err := PlotComparison(path, nil); err == nil {
		Te.Error("plotted an empty report set")
	}
}

func TestOutputTail(Te *testing.T) {
	if got := outputTail([]byte("  boom\n")); got != "boom" {
		Te.Errorf("got %q", got)
	}
	long := strings.Repeat("x", 3000)
	got := outputTail([]byte(long))
	if !strings.HasPrefix(got, "...") || len(got) != 2048+3 {
		Te.Errorf("tail is %d bytes with prefix %q", len(got), got[:3])
	}
}
