// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
	"github.com/linkforge-seo/linkforge/services/planner/graph"
)

func siloPage(id string, role datatypes.PageRole, words int, score float64) datatypes.Page {
	return datatypes.Page{
		ID: id, ScopeKey: "silo-1", Scope: datatypes.ScopeCluster,
		Role: role, WordCount: words, CompositeScore: score, ContentComplete: true,
	}
}

func TestSelectTargets_ClusterSilo(t *testing.T) {
	pages := []datatypes.Page{
		siloPage("hub", datatypes.RoleParent, 1000, 0),
		siloPage("leaf-a", datatypes.RoleChild, 500, 0.9),
		siloPage("leaf-b", datatypes.RoleChild, 500, 0.8),
		siloPage("leaf-c", datatypes.RoleChild, 500, 0.7),
	}
	g, err := graph.BuildCluster(pages)
	require.NoError(t, err)

	planned := SelectTargets(pages, g, NewAccumulator(), nil)

	bySource := make(map[string][]PlannedLink)
	for _, pl := range planned {
		bySource[pl.SourceID] = append(bySource[pl.SourceID], pl)
	}

	// Parent budget is 4 but only 3 children exist.
	require.Len(t, bySource["hub"], 3)
	assert.Equal(t, "leaf-a", bySource["hub"][0].TargetID)

	// Each child reserves slot one for the mandatory parent link.
	for _, child := range []string{"leaf-a", "leaf-b", "leaf-c"} {
		links := bySource[child]
		require.Len(t, links, 3, "child %s", child)
		assert.True(t, links[0].Mandatory)
		assert.Equal(t, "hub", links[0].TargetID)
		for _, l := range links[1:] {
			assert.False(t, l.Mandatory)
			assert.NotEqual(t, "hub", l.TargetID)
			assert.NotEqual(t, child, l.TargetID)
		}
	}
}

func TestSelectTargets_SiblingRanking(t *testing.T) {
	pages := []datatypes.Page{
		siloPage("hub", datatypes.RoleParent, 1000, 0),
		siloPage("leaf-a", datatypes.RoleChild, 200, 0.5),
		siloPage("leaf-b", datatypes.RoleChild, 200, 0.9),
		siloPage("leaf-c", datatypes.RoleChild, 200, 0.7),
		siloPage("leaf-d", datatypes.RoleChild, 200, 0.6),
	}
	g, err := graph.BuildCluster(pages)
	require.NoError(t, err)

	planned := SelectTargets(pages, g, NewAccumulator(), nil)

	var leafA []string
	for _, pl := range planned {
		if pl.SourceID == "leaf-a" && !pl.Mandatory {
			leafA = append(leafA, pl.TargetID)
		}
	}
	// Budget 3 minus mandatory slot leaves two sibling picks, highest
	// composite score first.
	assert.Equal(t, []string{"leaf-b", "leaf-c"}, leafA)
}

func TestSelectTargets_OnboardingPriorityBoost(t *testing.T) {
	pages := []datatypes.Page{
		{ID: "faq", ScopeKey: "ob-1", Scope: datatypes.ScopeOnboarding, WordCount: 200,
			Labels: []string{"setup", "billing", "accounts"}, ContentComplete: true},
		{ID: "pricing", ScopeKey: "ob-1", Scope: datatypes.ScopeOnboarding, WordCount: 200,
			Labels: []string{"setup", "billing"}, IsPriority: true, ContentComplete: true},
		{ID: "teams", ScopeKey: "ob-1", Scope: datatypes.ScopeOnboarding, WordCount: 200,
			Labels: []string{"setup", "billing", "accounts"}, ContentComplete: true},
	}
	g := graph.BuildOnboarding(pages, 2)

	planned := SelectTargets(pages, g, NewAccumulator(), nil)

	var faq []string
	for _, pl := range planned {
		if pl.SourceID == "faq" {
			faq = append(faq, pl.TargetID)
		}
	}
	// teams overlaps faq on 3 labels, pricing only on 2, but the priority
	// bonus (+2) outweighs the extra overlap.
	require.NotEmpty(t, faq)
	assert.Equal(t, "pricing", faq[0])
}

func TestSelectTargets_ProgressCallback(t *testing.T) {
	pages := []datatypes.Page{
		siloPage("hub", datatypes.RoleParent, 1000, 0),
		siloPage("leaf-a", datatypes.RoleChild, 500, 0.9),
	}
	g, err := graph.BuildCluster(pages)
	require.NoError(t, err)

	var calls [][2]int
	SelectTargets(pages, g, NewAccumulator(), func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, calls)
}
