// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"
	"sort"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
)

// Validation rule identifiers, surfaced as "failed:<rule>" page statuses.
const (
	RuleBudget    = "budget_exceeded"
	RuleSelfLink  = "self_link"
	RuleDuplicate = "duplicate_pair"
	RuleFirstLink = "first_link_rule"
	RuleSilo      = "silo_integrity"

	// WarnLowDiversity is non-fatal: every inbound anchor for some target
	// is the same string.
	WarnLowDiversity = "low_anchor_diversity"
)

// ValidatePlan checks the finished plan against the structural rules and
// returns one validation record per page. Any hard violation fails the whole
// plan with an error wrapping ErrValidationFailed; warnings alone do not.
func ValidatePlan(pages []datatypes.Page, links []datatypes.Link) ([]datatypes.PageValidation, error) {
	byID := make(map[string]datatypes.Page, len(pages))
	var parentID string
	cluster := false
	for _, p := range pages {
		byID[p.ID] = p
		if p.Scope == datatypes.ScopeCluster {
			cluster = true
		}
		if p.Role == datatypes.RoleParent {
			parentID = p.ID
		}
	}

	outbound := make(map[string][]datatypes.Link)
	inboundAnchors := make(map[string]map[string]struct{})
	inboundCount := make(map[string]int)
	pairs := make(map[[2]string]int)
	failures := make(map[string][]string) // pageID -> failed rules
	warnings := make(map[string][]string)

	fail := func(pageID, rule string) {
		failures[pageID] = append(failures[pageID], rule)
	}

	for _, l := range links {
		outbound[l.SourcePageID] = append(outbound[l.SourcePageID], l)

		if l.SourcePageID == l.TargetPageID {
			fail(l.SourcePageID, RuleSelfLink)
		}
		pairs[[2]string{l.SourcePageID, l.TargetPageID}]++

		if anchors := inboundAnchors[l.TargetPageID]; anchors == nil {
			inboundAnchors[l.TargetPageID] = map[string]struct{}{anchorKey(l.AnchorText): {}}
		} else {
			anchors[anchorKey(l.AnchorText)] = struct{}{}
		}
		inboundCount[l.TargetPageID]++

		if cluster {
			_, srcIn := byID[l.SourcePageID]
			_, dstIn := byID[l.TargetPageID]
			if !srcIn || !dstIn {
				fail(l.SourcePageID, RuleSilo)
			}
		}
	}

	for pair, n := range pairs {
		if n > 1 {
			fail(pair[0], RuleDuplicate)
		}
	}

	for _, p := range pages {
		out := outbound[p.ID]
		if len(out) > Budget(p.WordCount) {
			fail(p.ID, RuleBudget)
		}

		// First-link rule: on every child page, no link may precede the
		// parent link in document order. Injection orders anchors inside a
		// shared paragraph with the parent link first, so an equal position
		// passes; only a strictly earlier link is a violation.
		if cluster && p.Role == datatypes.RoleChild && len(out) > 0 {
			parentPos := -1
			for _, l := range out {
				if l.TargetPageID == parentID {
					parentPos = l.Position
					break
				}
			}
			if parentPos == -1 {
				fail(p.ID, RuleFirstLink)
			} else {
				for _, l := range out {
					if l.Position < parentPos {
						fail(p.ID, RuleFirstLink)
						break
					}
				}
			}
		}

		// Anchor diversity: a target with several inbound links should not
		// receive the identical anchor every time.
		if inboundCount[p.ID] >= 2 && len(inboundAnchors[p.ID]) < 2 {
			warnings[p.ID] = append(warnings[p.ID], WarnLowDiversity)
		}
	}

	results := make([]datatypes.PageValidation, 0, len(pages))
	var failedRules []string
	for _, p := range pages {
		v := datatypes.PageValidation{PageID: p.ID, Status: "verified"}
		if ws := warnings[p.ID]; len(ws) > 0 {
			v.Status = "warnings"
			v.Warnings = ws
		}
		if fs := failures[p.ID]; len(fs) > 0 {
			sort.Strings(fs)
			v.Status = "failed:" + fs[0]
			failedRules = append(failedRules, fs...)
		}
		results = append(results, v)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].PageID < results[j].PageID })

	if len(failedRules) > 0 {
		sort.Strings(failedRules)
		return results, fmt.Errorf("%w: %s", ErrValidationFailed, failedRules[0])
	}
	return results, nil
}
