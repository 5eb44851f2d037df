// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"strings"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
)

// MaxAnchorReuse is the hard cap on how many times one anchor string may be
// used for the same target across a whole run.
const MaxAnchorReuse = 3

// Accumulator carries the run-global tallies that make selection
// order-sensitive: inbound link counts per page, anchor usage per target,
// and the anchor tag distribution.
//
// It is deliberately NOT safe for concurrent use. Selection is a strictly
// sequential fold over pages in a fixed order, and the accumulator is passed
// into that fold explicitly; this keeps the order dependency visible and the
// tallies reproducible.
type Accumulator struct {
	inbound    map[string]int
	anchorUses map[string]map[string]int
	tagCounts  map[datatypes.AnchorType]int
	tagTotal   int
}

// NewAccumulator returns an empty run accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		inbound:    make(map[string]int),
		anchorUses: make(map[string]map[string]int),
		tagCounts:  make(map[datatypes.AnchorType]int),
	}
}

// Inbound returns how many links the page has received so far in this run.
func (a *Accumulator) Inbound(pageID string) int {
	return a.inbound[pageID]
}

// AddInbound records one more inbound link for the page.
func (a *Accumulator) AddInbound(pageID string) {
	a.inbound[pageID]++
}

func anchorKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// AnchorUses returns how often the anchor string has been used for the
// target so far. Comparison is case-insensitive.
func (a *Accumulator) AnchorUses(targetID, anchor string) int {
	return a.anchorUses[targetID][anchorKey(anchor)]
}

// UseAnchor records one use of the anchor string for the target.
func (a *Accumulator) UseAnchor(targetID, anchor string, tag datatypes.AnchorType) {
	m := a.anchorUses[targetID]
	if m == nil {
		m = make(map[string]int)
		a.anchorUses[targetID] = m
	}
	m[anchorKey(anchor)]++
	a.tagCounts[tag]++
	a.tagTotal++
}

// TagShare returns the fraction of anchors so far carrying the tag.
func (a *Accumulator) TagShare(tag datatypes.AnchorType) float64 {
	if a.tagTotal == 0 {
		return 0
	}
	return float64(a.tagCounts[tag]) / float64(a.tagTotal)
}
