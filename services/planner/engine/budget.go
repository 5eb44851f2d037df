// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engine implements the link planning core: budget derivation,
// target and anchor selection, plan validation, and the pipeline state
// machine that sequences them.
package engine

import (
	"math"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
)

// Budget formula constants.
const (
	// WordsPerSlot is the word count that earns one link slot.
	WordsPerSlot = 250

	// MinBudget and MaxBudget clamp the slot count.
	MinBudget = 3
	MaxBudget = 5
)

// Budget derives a page's outbound link slot count from its word count:
// round(words/250) clamped to [3,5].
func Budget(wordCount int) int {
	b := int(math.Round(float64(wordCount) / WordsPerSlot))
	if b < MinBudget {
		return MinBudget
	}
	if b > MaxBudget {
		return MaxBudget
	}
	return b
}

// DiscretionarySlots returns the slots left after reserved links. Cluster
// child pages permanently reserve one slot for the mandatory parent link.
func DiscretionarySlots(p datatypes.Page) int {
	b := Budget(p.WordCount)
	if p.Scope == datatypes.ScopeCluster && p.Role == datatypes.RoleChild {
		return b - 1
	}
	return b
}
