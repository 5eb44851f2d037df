// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"sort"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
	"github.com/linkforge-seo/linkforge/services/planner/graph"
)

// Onboarding candidate scoring weights.
const (
	priorityBonus  = 2.0
	inboundPenalty = 0.5
)

// PlannedLink is a selected (source, target) pair before anchor selection
// and injection.
type PlannedLink struct {
	SourceID  string
	TargetID  string
	Mandatory bool
}

// SelectTargets fills every page's link budget from its graph neighbors.
//
// Pages are processed in ascending ID order (the graph's PageIDs order);
// after each page's targets commit, the accumulator's inbound tallies update
// before the next page is scored. That makes the diversity penalty
// order-sensitive but reproducible. onPage, when non-nil, is called after
// each page for progress reporting.
//
// A page with fewer eligible neighbors than its budget simply receives
// fewer links; that is not a failure.
func SelectTargets(pages []datatypes.Page, g graph.Graph, acc *Accumulator, onPage func(done, total int)) []PlannedLink {
	byID := make(map[string]datatypes.Page, len(pages))
	var parentID string
	for _, p := range pages {
		byID[p.ID] = p
		if p.Role == datatypes.RoleParent {
			parentID = p.ID
		}
	}

	ids := g.PageIDs()
	var planned []PlannedLink
	for i, id := range ids {
		p, ok := byID[id]
		if !ok {
			continue
		}

		var targets []PlannedLink
		switch {
		case p.Role == datatypes.RoleParent:
			targets = selectForParent(p, g)
		case p.Role == datatypes.RoleChild:
			targets = selectForChild(p, parentID, g, byID, acc)
		default:
			targets = selectForOnboarding(p, g, byID, acc)
		}

		for _, t := range targets {
			acc.AddInbound(t.TargetID)
		}
		planned = append(planned, targets...)

		if onPage != nil {
			onPage(i+1, len(ids))
		}
	}
	return planned
}

// selectForParent takes the top-budget children by composite score. The
// graph's neighbor order (descending weight, which is the child's score) is
// already the required ranking.
func selectForParent(p datatypes.Page, g graph.Graph) []PlannedLink {
	budget := Budget(p.WordCount)
	var out []PlannedLink
	for _, n := range g.Neighbors(p.ID) {
		if len(out) == budget {
			break
		}
		out = append(out, PlannedLink{SourceID: p.ID, TargetID: n.PageID})
	}
	return out
}

// selectForChild reserves slot one for the mandatory parent link, then fills
// the rest with siblings ranked by composite score, ties broken by fewest
// inbound links received so far (spreading link equity), then by ID.
func selectForChild(p datatypes.Page, parentID string, g graph.Graph, byID map[string]datatypes.Page, acc *Accumulator) []PlannedLink {
	var out []PlannedLink
	var siblings []datatypes.Page
	for _, n := range g.Neighbors(p.ID) {
		if n.PageID == parentID {
			continue
		}
		siblings = append(siblings, byID[n.PageID])
	}

	// Slot one is the mandatory parent link, unconditionally.
	if parentID != "" {
		out = append(out, PlannedLink{SourceID: p.ID, TargetID: parentID, Mandatory: true})
	}

	sort.Slice(siblings, func(i, j int) bool {
		a, b := siblings[i], siblings[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		if acc.Inbound(a.ID) != acc.Inbound(b.ID) {
			return acc.Inbound(a.ID) < acc.Inbound(b.ID)
		}
		return a.ID < b.ID
	})

	for _, sib := range siblings {
		if len(out) == Budget(p.WordCount) {
			break
		}
		out = append(out, PlannedLink{SourceID: p.ID, TargetID: sib.ID})
	}
	return out
}

// selectForOnboarding scores every neighbor as
// overlap + 2*priority - 0.5*inbound and takes the top budget, ties broken
// by ascending target ID.
func selectForOnboarding(p datatypes.Page, g graph.Graph, byID map[string]datatypes.Page, acc *Accumulator) []PlannedLink {
	type scored struct {
		id    string
		score float64
	}
	var candidates []scored
	for _, n := range g.Neighbors(p.ID) {
		target := byID[n.PageID]
		score := n.Weight - inboundPenalty*float64(acc.Inbound(n.PageID))
		if target.IsPriority {
			score += priorityBonus
		}
		candidates = append(candidates, scored{id: n.PageID, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})

	budget := Budget(p.WordCount)
	var out []PlannedLink
	for _, c := range candidates {
		if len(out) == budget {
			break
		}
		out = append(out, PlannedLink{SourceID: p.ID, TargetID: c.id})
	}
	return out
}
