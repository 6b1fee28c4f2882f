/*
 * plot.go, part of goff.
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

package drivers

import (
	"fmt"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotComparison draws the reports as grouped bars, one group per energy
// term and one bar per evaluator, and saves the figure to path; the
// suffix picks the format, .png, .pdf or .svg. The reference report, when
// present, is drawn first so the engines read against it.
func PlotComparison(path string, reports map[string]*EnergyReport) error {
	if len(reports) == 0 {
		return fmt.Errorf("nothing to plot")
	}
	names := make([]string, 0, len(reports))
	for name := range reports {
		if name != ReferenceName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := reports[ReferenceName]; ok {
		names = append([]string{ReferenceName}, names...)
	}

	var terms []string
	seen := make(map[string]bool)
	for _, name := range names {
		for _, t := range reports[name].Terms() {
			if !seen[t] {
				seen[t] = true
				terms = append(terms, t)
			}
		}
	}

	p := plot.New()
	p.Title.Text = "Single-point energies"
	p.Y.Label.Text = "kJ/mol"
	w := vg.Points(40) / vg.Length(len(names))
	for i, name := range names {
		vals := make(plotter.Values, len(terms))
		for k, t := range terms {
			vals[k], _ = reports[name].Get(t)
		}
		bars, err := plotter.NewBarChart(vals, w)
		if err != nil {
			return err
		}
		bars.LineStyle.Width = 0
		bars.Color = plotutil.Color(i)
		bars.Offset = w * vg.Length(float64(i)-float64(len(names)-1)/2)
		p.Add(bars)
		p.Legend.Add(name, bars)
	}
	p.Legend.Top = true
	p.NominalX(terms...)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
