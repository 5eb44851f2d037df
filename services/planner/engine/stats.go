// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
)

// LinkMap assembles the scope's graph view: per-page summaries, every link,
// and aggregate stats. Validation is recomputed on read so the pass rate
// reflects manual edits made since the last run.
func (p *Planner) LinkMap(scopeKey string) (datatypes.LinkMapResponse, error) {
	var zero datatypes.LinkMapResponse

	pages, err := p.store.PagesByScope(scopeKey)
	if err != nil {
		return zero, err
	}
	if len(pages) == 0 {
		return zero, fmt.Errorf("scope %s: %w", scopeKey, ErrNoPages)
	}
	links, err := p.store.LinksByScope(scopeKey)
	if err != nil {
		return zero, err
	}

	outbound := make(map[string]int)
	inbound := make(map[string]int)
	methods := make(map[string]int)
	anchorTypes := make(map[string]int)
	for _, l := range links {
		outbound[l.SourcePageID]++
		inbound[l.TargetPageID]++
		methods[string(l.Method)]++
		anchorTypes[string(l.AnchorType)]++
	}

	summaries := make([]datatypes.PageSummary, 0, len(pages))
	for _, pg := range pages {
		summaries = append(summaries, datatypes.PageSummary{
			ID:             pg.ID,
			Role:           pg.Role,
			Labels:         pg.Labels,
			WordCount:      pg.WordCount,
			CompositeScore: pg.CompositeScore,
			OutboundLinks:  outbound[pg.ID],
			InboundLinks:   inbound[pg.ID],
		})
	}

	results, _ := ValidatePlan(pages, links)
	passing := 0
	for _, r := range results {
		if _, failed := failedRule(r.Status); !failed {
			passing++
		}
	}
	passRate := 0.0
	if len(results) > 0 {
		passRate = float64(passing) / float64(len(results))
	}

	return datatypes.LinkMapResponse{
		ScopeKey: scopeKey,
		Pages:    summaries,
		Links:    links,
		Stats: datatypes.LinkStats{
			TotalLinks:          len(links),
			AvgLinksPerPage:     float64(len(links)) / float64(len(pages)),
			ValidationPassRate:  passRate,
			MethodBreakdown:     methods,
			AnchorTypeBreakdown: anchorTypes,
		},
	}, nil
}

// PageLinks lists one page's outbound links in document order, its inbound
// links, and the inbound anchor diversity score.
func (p *Planner) PageLinks(pageID string) (datatypes.PageLinksResponse, error) {
	var zero datatypes.PageLinksResponse

	page, err := p.store.GetPage(pageID)
	if err != nil {
		return zero, err
	}
	links, err := p.store.LinksByScope(page.ScopeKey)
	if err != nil {
		return zero, err
	}

	resp := datatypes.PageLinksResponse{PageID: pageID}
	distinct := make(map[string]struct{})
	for _, l := range links {
		switch pageID {
		case l.SourcePageID:
			resp.Outbound = append(resp.Outbound, l)
		case l.TargetPageID:
			resp.Inbound = append(resp.Inbound, l)
			distinct[anchorKey(l.AnchorText)] = struct{}{}
		}
	}
	if len(resp.Inbound) > 0 {
		resp.AnchorDiversityScore = float64(len(distinct)) / float64(len(resp.Inbound))
	}
	return resp, nil
}
