// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
)

// DefaultOverlapThreshold is the minimum number of shared labels two
// onboarding pages need before they become eligible link targets for each
// other.
const DefaultOverlapThreshold = 2

// BuildOnboarding constructs the label-overlap eligibility graph.
//
// For every pair of pages an edge exists iff the pages share at least
// threshold labels; the edge weight is the overlap count. A threshold of
// zero or below falls back to DefaultOverlapThreshold. Pages without
// completed content get no edges.
func BuildOnboarding(pages []datatypes.Page, threshold int) Graph {
	if threshold <= 0 {
		threshold = DefaultOverlapThreshold
	}

	g := newAdjacency()

	labelSets := make(map[string]map[string]struct{}, len(pages))
	for _, p := range pages {
		g.addPage(p.ID)
		set := make(map[string]struct{}, len(p.Labels))
		for _, l := range p.Labels {
			set[l] = struct{}{}
		}
		labelSets[p.ID] = set
	}

	for i := range pages {
		a := pages[i]
		if !a.ContentComplete {
			continue
		}
		for _, b := range pages[i+1:] {
			if !b.ContentComplete {
				continue
			}
			overlap := labelOverlap(labelSets[a.ID], labelSets[b.ID])
			if overlap >= threshold {
				g.addEdge(a.ID, b.ID, float64(overlap))
			}
		}
	}

	g.freeze()
	return g
}

func labelOverlap(a, b map[string]struct{}) int {
	// Iterate the smaller set.
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for l := range a {
		if _, ok := b[l]; ok {
			n++
		}
	}
	return n
}
