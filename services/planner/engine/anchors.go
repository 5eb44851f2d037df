// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
	"github.com/linkforge-seo/linkforge/services/planner/inject"
	"github.com/linkforge-seo/linkforge/services/planner/rewrite"
)

// NaturalPhrasesPerTarget is how many natural anchor phrases are generated
// per target page, once per planning run.
const NaturalPhrasesPerTarget = 3

// Project-wide anchor tag distribution aims. Used only as a soft tie-break,
// never as a hard constraint.
var tagAims = map[datatypes.AnchorType]float64{
	datatypes.AnchorPartialMatch: 0.55,
	datatypes.AnchorExactMatch:   0.10,
	datatypes.AnchorNatural:      0.35,
}

// AnchorCandidate is one anchor text option for a target page.
type AnchorCandidate struct {
	Text string
	Tag  datatypes.AnchorType
}

// TargetDescription summarizes a page for the rewrite service prompts.
func TargetDescription(p datatypes.Page) string {
	parts := []string{p.PrimaryKeyword}
	if len(p.Labels) > 0 {
		parts = append(parts, strings.Join(p.Labels, ", "))
	}
	return strings.Join(parts, " — ")
}

// BuildAnchorPools assembles the candidate pool for every target page:
// the primary keyword (exact_match), the keyword variations (partial_match),
// and generated natural phrases (natural).
//
// Phrase generation failures degrade to a pool without natural candidates;
// the exact and partial pools still satisfy selection.
func BuildAnchorPools(ctx context.Context, pages []datatypes.Page, targetIDs map[string]struct{}, rw rewrite.Rewriter, logger *slog.Logger) map[string][]AnchorCandidate {
	pools := make(map[string][]AnchorCandidate, len(targetIDs))
	for _, p := range pages {
		if _, isTarget := targetIDs[p.ID]; !isTarget {
			continue
		}

		var pool []AnchorCandidate
		if p.PrimaryKeyword != "" {
			pool = append(pool, AnchorCandidate{Text: p.PrimaryKeyword, Tag: datatypes.AnchorExactMatch})
		}
		for _, v := range p.Variations {
			if strings.TrimSpace(v) == "" {
				continue
			}
			pool = append(pool, AnchorCandidate{Text: v, Tag: datatypes.AnchorPartialMatch})
		}

		phrases, err := rw.GenerateNaturalPhrases(ctx, TargetDescription(p), NaturalPhrasesPerTarget)
		if err != nil {
			logger.Warn("natural phrase generation failed, continuing without natural pool",
				"target", p.ID, "error", err)
		}
		for _, ph := range phrases {
			pool = append(pool, AnchorCandidate{Text: ph, Tag: datatypes.AnchorNatural})
		}

		pools[p.ID] = pool
	}
	return pools
}

// ChooseAnchor picks the best candidate for one planned (source, target)
// link. Candidates at the per-target reuse cap are excluded before scoring.
//
// Scoring: -uses_so_far (diversity penalty) +1 when the candidate text
// appears verbatim in the source body (context fit). Ties prefer the tag
// furthest below its project-wide distribution aim, then the lexicographically
// smaller text.
//
// Returns ok=false when every candidate is capped out or the pool is empty;
// the caller leaves that slot unfilled.
func ChooseAnchor(cands []AnchorCandidate, targetID string, sourceDoc *inject.Document, acc *Accumulator) (AnchorCandidate, bool) {
	type scored struct {
		cand  AnchorCandidate
		score float64
	}
	var usable []scored
	for _, c := range cands {
		uses := acc.AnchorUses(targetID, c.Text)
		if uses >= MaxAnchorReuse {
			continue
		}
		score := -float64(uses)
		if sourceDoc != nil && sourceDoc.ContainsVerbatim(c.Text) {
			score++
		}
		usable = append(usable, scored{cand: c, score: score})
	}
	if len(usable) == 0 {
		return AnchorCandidate{}, false
	}

	sort.Slice(usable, func(i, j int) bool {
		if usable[i].score != usable[j].score {
			return usable[i].score > usable[j].score
		}
		di := tagAims[usable[i].cand.Tag] - acc.TagShare(usable[i].cand.Tag)
		dj := tagAims[usable[j].cand.Tag] - acc.TagShare(usable[j].cand.Tag)
		if di != dj {
			return di > dj
		}
		return usable[i].cand.Text < usable[j].cand.Text
	})
	return usable[0].cand, true
}
