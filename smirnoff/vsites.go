/*
 * vsites.go, part of goff.
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

package smirnoff

import (
	"fmt"
	"math"
	"sort"
)

// A vsiteMatch is one virtual site to instantiate on a molecule: the
// winning parameter, the matched atoms (parent first), and the averaging
// weights already derived from the parametrized geometry. The weights are
// what exporters consume; no geometry is redone downstream.
type vsiteMatch struct {
	param       *VirtualSiteParameter
	orientation []int
	weights     []float64
	siteCharge  float64
}

// matchVirtualSites runs the VirtualSites section over one molecule.
// Between parameters, the last one matching the same site (same name, same
// atom set) wins. Within one parameter, the match policy decides whether a
// symmetric pattern yields one site or one per orientation.
func matchVirtualSites(h *VirtualSiteHandler, a *molAssignment, off int) ([]vsiteMatch, error) {
	winners := make(map[string][]vsiteMatch)
	var seen []string
	for _, p := range h.Parameters {
		local := make(map[string][]vsiteMatch)
		var localSeen []string
		for _, hit := range p.pat.Matches(a.m) {
			k := p.Name + "|" + tupleKey(hit)
			if p.Match == "once" && len(local[k]) > 0 {
				continue
			}
			if _, ok := local[k]; !ok {
				localSeen = append(localSeen, k)
			}
			local[k] = append(local[k], vsiteMatch{
				param:       p,
				orientation: append([]int(nil), hit...),
			})
		}
		for _, k := range localSeen {
			if _, ok := winners[k]; !ok {
				seen = append(seen, k)
			}
			winners[k] = local[k]
		}
	}
	var out []vsiteMatch
	for _, k := range seen {
		out = append(out, winners[k]...)
	}
	for i := range out {
		if err := resolveVSite(&out[i], a, off); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].orientation[0] != out[j].orientation[0] {
			return out[i].orientation[0] < out[j].orientation[0]
		}
		return out[i].param.Name < out[j].param.Name
	})
	return out, nil
}

// resolveVSite turns the site geometry (distances along the parametrized
// bond framework) into averaging weights over the orientation atoms, and
// settles the site charge. The increments move charge from the site to the
// atoms: each orientation atom gains its increment, the site carries minus
// their sum.
func resolveVSite(v *vsiteMatch, a *molAssignment, off int) error {
	p := v.param
	v.siteCharge = 0
	for _, inc := range p.Increments {
		v.siteCharge -= inc
	}
	switch p.Type {
	case "BondCharge":
		parent, other := v.orientation[0], v.orientation[1]
		sep, ok := separationFor(a, parent, other)
		if !ok || sep == 0 {
			return fmt.Errorf("smirnoff: virtual site %s: no parametrized distance between atoms (%d, %d)",
				p.Name, off+parent, off+other)
		}
		//positive distance places the site past the parent, away from
		//the other atom
		r := p.Distance / sep
		v.weights = []float64{1 + r, -r}
	case "DivalentLonePair":
		if p.OutOfPlaneAngle != 0 {
			return fmt.Errorf("smirnoff: virtual site %s: out-of-plane angles are not supported", p.Name)
		}
		c, h2, h3 := v.orientation[0], v.orientation[1], v.orientation[2]
		r12, ok1 := separationFor(a, c, h2)
		r13, ok2 := separationFor(a, c, h3)
		if !ok1 || !ok2 || r12 == 0 || r13 == 0 {
			return fmt.Errorf("smirnoff: virtual site %s: no parametrized distances around atom %d",
				p.Name, off+c)
		}
		r23, ok := separationFor(a, h2, h3)
		if !ok {
			ang, okA := angleFor(a, h2, c, h3)
			if !okA {
				return fmt.Errorf("smirnoff: virtual site %s: no distance or angle between atoms (%d, %d)",
					p.Name, off+h2, off+h3)
			}
			r23 = math.Sqrt(r12*r12 + r13*r13 - 2*r12*r13*math.Cos(ang))
		}
		cosTheta := (r23*r23 - r12*r12 - r13*r13) / (-2 * r12 * r13)
		theta := math.Acos(cosTheta)
		rmid := math.Cos(theta/2) * r12
		//negative distance places the site between the central atom and
		//the midpoint of the other two, as four-point waters want
		w1 := 1 + p.Distance/rmid
		v.weights = []float64{w1, (1 - w1) / 2, (1 - w1) / 2}
	default:
		return fmt.Errorf("smirnoff: virtual site type %s not handled", p.Type)
	}
	return nil
}
