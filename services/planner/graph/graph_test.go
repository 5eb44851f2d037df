// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
)

func clusterPage(id string, role datatypes.PageRole, score float64) datatypes.Page {
	return datatypes.Page{
		ID:              id,
		Role:            role,
		CompositeScore:  score,
		ContentComplete: true,
	}
}

func onboardingPage(id string, labels ...string) datatypes.Page {
	return datatypes.Page{
		ID:              id,
		Labels:          labels,
		ContentComplete: true,
	}
}

func TestBuildCluster_ParentAndChildEdges(t *testing.T) {
	pages := []datatypes.Page{
		clusterPage("parent", datatypes.RoleParent, 0.9),
		clusterPage("child-a", datatypes.RoleChild, 0.8),
		clusterPage("child-b", datatypes.RoleChild, 0.6),
	}

	g, err := BuildCluster(pages)
	require.NoError(t, err)

	// Parent connects to every child, weighted by the child's score.
	parentNs := g.Neighbors("parent")
	require.Len(t, parentNs, 2)
	assert.Equal(t, "child-a", parentNs[0].PageID)
	assert.Equal(t, 0.8, parentNs[0].Weight)
	assert.Equal(t, "child-b", parentNs[1].PageID)
	assert.Equal(t, 0.6, parentNs[1].Weight)

	// Children connect to the parent and to each other (average score).
	aNs := g.Neighbors("child-a")
	require.Len(t, aNs, 2)
	assert.Equal(t, "parent", aNs[0].PageID)
	assert.Equal(t, "child-b", aNs[1].PageID)
	assert.InDelta(t, 0.7, aNs[1].Weight, 1e-9)
}

func TestBuildCluster_IncompleteContentExcluded(t *testing.T) {
	draft := clusterPage("child-draft", datatypes.RoleChild, 0.9)
	draft.ContentComplete = false

	pages := []datatypes.Page{
		clusterPage("parent", datatypes.RoleParent, 0.9),
		clusterPage("child-a", datatypes.RoleChild, 0.8),
		draft,
	}

	g, err := BuildCluster(pages)
	require.NoError(t, err)

	assert.Empty(t, g.Neighbors("child-draft"))
	for _, n := range g.Neighbors("parent") {
		assert.NotEqual(t, "child-draft", n.PageID)
	}
	// The draft page is still a valid member of the scope.
	assert.Contains(t, g.PageIDs(), "child-draft")
}

func TestBuildCluster_Errors(t *testing.T) {
	t.Run("no parent", func(t *testing.T) {
		_, err := BuildCluster([]datatypes.Page{
			clusterPage("child-a", datatypes.RoleChild, 0.5),
		})
		assert.ErrorIs(t, err, ErrNoParent)
	})

	t.Run("two parents", func(t *testing.T) {
		_, err := BuildCluster([]datatypes.Page{
			clusterPage("p1", datatypes.RoleParent, 0.5),
			clusterPage("p2", datatypes.RoleParent, 0.5),
		})
		assert.ErrorIs(t, err, ErrMultipleParents)
	})
}

func TestBuildOnboarding_OverlapThreshold(t *testing.T) {
	pages := []datatypes.Page{
		onboardingPage("a", "running", "women", "trail"),
		onboardingPage("b", "running", "women", "road"),
		onboardingPage("c", "shoes", "boots"),
		onboardingPage("d", "shoes", "laces"),
	}

	g := BuildOnboarding(pages, 2)

	// a/b share {running, women} -> edge with weight 2.
	aNs := g.Neighbors("a")
	require.Len(t, aNs, 1)
	assert.Equal(t, "b", aNs[0].PageID)
	assert.Equal(t, 2.0, aNs[0].Weight)

	// c/d share only {shoes} -> below threshold, no edge.
	assert.Empty(t, g.Neighbors("c"))
	assert.Empty(t, g.Neighbors("d"))
}

func TestBuildOnboarding_ZeroDegreePagesAreValid(t *testing.T) {
	pages := []datatypes.Page{
		onboardingPage("lonely", "kayaks"),
		onboardingPage("other", "tents", "stoves"),
	}

	g := BuildOnboarding(pages, 0) // falls back to the default threshold

	assert.Equal(t, 0, g.EdgeCount())
	assert.Equal(t, []string{"lonely", "other"}, g.PageIDs())
}

func TestNeighbors_DeterministicOrder(t *testing.T) {
	// Equal weights must tie-break by ascending page ID.
	pages := []datatypes.Page{
		onboardingPage("hub", "x", "y"),
		onboardingPage("zeta", "x", "y"),
		onboardingPage("alpha", "x", "y"),
	}

	g := BuildOnboarding(pages, 2)
	ns := g.Neighbors("hub")
	require.Len(t, ns, 2)
	assert.Equal(t, "alpha", ns[0].PageID)
	assert.Equal(t, "zeta", ns[1].PageID)
}
