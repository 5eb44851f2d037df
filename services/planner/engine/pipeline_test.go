// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
	"github.com/linkforge-seo/linkforge/services/planner/rewrite"
	"github.com/linkforge-seo/linkforge/services/planner/storage"
)

// stubRewriter is a deterministic rewrite backend for tests. Rewritten
// paragraphs always contain the anchor verbatim, matching the contract the
// injector relies on.
type stubRewriter struct {
	mu         sync.Mutex
	phrases    []string
	phraseErr  error
	rewriteErr error

	// block, when non-nil, stalls phrase generation until closed. Used to
	// hold a run open while admission checks are exercised.
	block chan struct{}
}

func (s *stubRewriter) RewriteParagraph(_ context.Context, _, anchorText, _ string) (string, error) {
	s.mu.Lock()
	err := s.rewriteErr
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return "Readers comparing options should see " + anchorText + " before deciding.", nil
}

func (s *stubRewriter) GenerateNaturalPhrases(_ context.Context, _ string, n int) ([]string, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phraseErr != nil {
		return nil, s.phraseErr
	}
	out := s.phrases
	if out == nil {
		out = []string{"the deeper guide", "more on this topic"}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *stubRewriter) setRewriteErr(err error) {
	s.mu.Lock()
	s.rewriteErr = err
	s.mu.Unlock()
}

func newTestPlanner(t *testing.T, rw rewrite.Rewriter) (*Planner, *storage.Store) {
	t.Helper()
	store, err := storage.Open(storage.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewPlanner(store, rw, Options{Logger: discardLogger()}), store
}

func waitRun(t *testing.T, run *Run) datatypes.PlanStatus {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(15 * time.Second):
		t.Fatal("run did not reach a terminal state")
	}
	return run.Status()
}

func body(paragraphs ...string) string {
	var sb strings.Builder
	for _, p := range paragraphs {
		sb.WriteString("<p>")
		sb.WriteString(p)
		sb.WriteString("</p>")
	}
	return sb.String()
}

func clusterFixture(scopeKey string) []datatypes.Page {
	generic := body(
		"Every season we refresh the lineup with new arrivals and returning favorites.",
		"Sizing guidance lives on each product page alongside the care instructions.",
		"Orders placed before noon ship the same day from our warehouse.",
		"Questions about fit or materials are always welcome at the counter.",
	)
	return []datatypes.Page{
		{
			ID: "hub-1", ScopeKey: scopeKey, Scope: datatypes.ScopeCluster,
			Role: datatypes.RoleParent, WordCount: 1000, CompositeScore: 0.95,
			PrimaryKeyword: "trail running shoes",
			Variations:     []string{"running shoes", "trail shoes"},
			ContentComplete: true, BodyHTML: generic,
		},
		{
			ID: "leaf-a", ScopeKey: scopeKey, Scope: datatypes.ScopeCluster,
			Role: datatypes.RoleChild, WordCount: 500, CompositeScore: 0.9,
			PrimaryKeyword: "waterproof hiking boots",
			Variations:     []string{"hiking boots"},
			ContentComplete: true,
			BodyHTML: body(
				"Our running shoes pair naturally with the rest of the trail range.",
				"Waterproofing matters most in shoulder season when trails stay wet.",
				"A proper break-in period saves blisters on longer routes.",
				"Resoling is worth considering once the tread wears flat.",
			),
		},
		{
			ID: "leaf-b", ScopeKey: scopeKey, Scope: datatypes.ScopeCluster,
			Role: datatypes.RoleChild, WordCount: 500, CompositeScore: 0.8,
			PrimaryKeyword: "wool trekking socks",
			Variations:     []string{"trekking socks"},
			ContentComplete: true, BodyHTML: generic,
		},
		{
			ID: "leaf-c", ScopeKey: scopeKey, Scope: datatypes.ScopeCluster,
			Role: datatypes.RoleChild, WordCount: 500, CompositeScore: 0.7,
			PrimaryKeyword: "camp stoves",
			Variations:     []string{"backpacking stoves"},
			ContentComplete: true, BodyHTML: generic,
		},
	}
}

func TestPlanner_ClusterRun(t *testing.T) {
	p, store := newTestPlanner(t, &stubRewriter{})
	require.NoError(t, store.UpsertPages(clusterFixture("silo-1")))

	run, err := p.Start(context.Background(), "silo-1")
	require.NoError(t, err)
	status := waitRun(t, run)
	require.Equal(t, datatypes.RunComplete, status.State, "error: %s", status.Error)

	links, err := store.LinksByScope("silo-1")
	require.NoError(t, err)
	// Parent links its three children; each child links the parent plus two
	// siblings.
	require.Len(t, links, 12)

	mandatory := map[string]int{}
	seen := map[[2]string]bool{}
	for _, l := range links {
		assert.Equal(t, datatypes.LinkVerified, l.Status)
		assert.Equal(t, "silo-1", l.ClusterID)
		assert.NotEqual(t, l.SourcePageID, l.TargetPageID)
		assert.False(t, seen[[2]string{l.SourcePageID, l.TargetPageID}], "duplicate pair")
		seen[[2]string{l.SourcePageID, l.TargetPageID}] = true
		if l.IsMandatory {
			mandatory[l.SourcePageID]++
			assert.Equal(t, "hub-1", l.TargetPageID)
		}
	}
	assert.Equal(t, map[string]int{"leaf-a": 1, "leaf-b": 1, "leaf-c": 1}, mandatory)

	// Every page body carries exactly its outbound links as engine anchors.
	for _, id := range []string{"hub-1", "leaf-a", "leaf-b", "leaf-c"} {
		page, err := store.GetPage(id)
		require.NoError(t, err)
		assert.Equal(t, 3, strings.Count(page.BodyHTML, "data-linkforge"), id)
	}

	// leaf-a mentions the parent's keyword verbatim, so its mandatory link
	// places by rule; the generic bodies force the generative fallback.
	methods := map[datatypes.PlacementMethod]int{}
	for _, l := range links {
		methods[l.Method]++
	}
	assert.GreaterOrEqual(t, methods[datatypes.PlacementRuleBased], 1)
	assert.GreaterOrEqual(t, methods[datatypes.PlacementLLMFallback], 1)

	assert.Equal(t, datatypes.RunComplete, p.Status("silo-1").State)
	_, err = store.GetMarker("silo-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// A late subscriber still receives the terminal status immediately.
	ch, cancel := run.Subscribe()
	defer cancel()
	assert.Equal(t, datatypes.RunComplete, (<-ch).State)

	m, err := p.LinkMap("silo-1")
	require.NoError(t, err)
	assert.Equal(t, 12, m.Stats.TotalLinks)
	assert.InDelta(t, 3.0, m.Stats.AvgLinksPerPage, 0.001)
	assert.InDelta(t, 1.0, m.Stats.ValidationPassRate, 0.001)
}

func TestPlanner_OnboardingRun(t *testing.T) {
	generic := body(
		"Getting set up takes a few minutes from the dashboard.",
		"Most questions are answered in the knowledge base already.",
		"Reach out to support when something looks off.",
	)
	pages := []datatypes.Page{
		{ID: "ob-faq", ScopeKey: "ob-1", Scope: datatypes.ScopeOnboarding, WordCount: 400,
			Labels: []string{"setup", "billing"}, PrimaryKeyword: "billing questions",
			ContentComplete: true, BodyHTML: generic},
		{ID: "ob-pricing", ScopeKey: "ob-1", Scope: datatypes.ScopeOnboarding, WordCount: 400,
			Labels: []string{"setup", "billing"}, PrimaryKeyword: "plan pricing", IsPriority: true,
			ContentComplete: true, BodyHTML: generic},
		{ID: "ob-teams", ScopeKey: "ob-1", Scope: datatypes.ScopeOnboarding, WordCount: 400,
			Labels: []string{"setup", "billing"}, PrimaryKeyword: "team workspaces",
			ContentComplete: true, BodyHTML: generic},
	}
	p, store := newTestPlanner(t, &stubRewriter{})
	require.NoError(t, store.UpsertPages(pages))

	run, err := p.Start(context.Background(), "ob-1")
	require.NoError(t, err)
	status := waitRun(t, run)
	require.Equal(t, datatypes.RunComplete, status.State, "error: %s", status.Error)

	links, err := store.LinksByScope("ob-1")
	require.NoError(t, err)
	require.NotEmpty(t, links)
	for _, l := range links {
		assert.False(t, l.IsMandatory, "onboarding plans no mandatory links")
		assert.Empty(t, l.ClusterID)
	}
}

func TestPlanner_StartGuards(t *testing.T) {
	t.Run("no pages", func(t *testing.T) {
		p, _ := newTestPlanner(t, &stubRewriter{})
		_, err := p.Start(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNoPages)
	})

	t.Run("incomplete content", func(t *testing.T) {
		p, store := newTestPlanner(t, &stubRewriter{})
		pages := clusterFixture("silo-1")
		pages[2].ContentComplete = false
		require.NoError(t, store.UpsertPages(pages))

		_, err := p.Start(context.Background(), "silo-1")
		assert.ErrorIs(t, err, ErrIncompleteContent)
	})

	t.Run("links exist", func(t *testing.T) {
		p, store := newTestPlanner(t, &stubRewriter{})
		require.NoError(t, store.UpsertPages(clusterFixture("silo-1")))
		run, err := p.Start(context.Background(), "silo-1")
		require.NoError(t, err)
		require.Equal(t, datatypes.RunComplete, waitRun(t, run).State)

		_, err = p.Start(context.Background(), "silo-1")
		assert.ErrorIs(t, err, ErrLinksExist)
	})

	t.Run("run active", func(t *testing.T) {
		rw := &stubRewriter{block: make(chan struct{})}
		p, store := newTestPlanner(t, rw)
		require.NoError(t, store.UpsertPages(clusterFixture("silo-1")))

		run, err := p.Start(context.Background(), "silo-1")
		require.NoError(t, err)

		_, err = p.Start(context.Background(), "silo-1")
		assert.ErrorIs(t, err, ErrRunActive)
		_, active := p.ActiveRun("silo-1")
		assert.True(t, active)

		close(rw.block)
		waitRun(t, run)
	})
}

func TestPlanner_ParentLinkLeadsChildBody(t *testing.T) {
	// leaf-a's opening paragraph starts with its sibling's keyword and only
	// mentions the parent keyword far enough in that the word-gap rule would
	// allow a sibling anchor at word zero. The parent link must still end up
	// first in the rendered body.
	leafAOpening := "Trail snacks belong in every pack heading up the valley. " +
		strings.Repeat("Long climbs reward a steady measured pace on the way. ", 6) +
		"Our alpine camping gear list covers the rest."
	pages := []datatypes.Page{
		{
			ID: "hub-1", ScopeKey: "silo-3", Scope: datatypes.ScopeCluster,
			Role: datatypes.RoleParent, WordCount: 1000, CompositeScore: 0.95,
			PrimaryKeyword:  "alpine camping gear",
			ContentComplete: true,
			BodyHTML: body(
				"Every trip starts with the right load-out for the conditions.",
				"Seasonal picks rotate through as the weather turns.",
			),
		},
		{
			ID: "leaf-a", ScopeKey: "silo-3", Scope: datatypes.ScopeCluster,
			Role: datatypes.RoleChild, WordCount: 500, CompositeScore: 0.9,
			PrimaryKeyword:  "ultralight shelters",
			ContentComplete: true,
			BodyHTML: body(
				leafAOpening,
				"Hydration planning matters more once the snow line recedes.",
				"Campsite etiquette keeps the alpine meadows in good shape.",
			),
		},
		{
			ID: "leaf-b", ScopeKey: "silo-3", Scope: datatypes.ScopeCluster,
			Role: datatypes.RoleChild, WordCount: 500, CompositeScore: 0.8,
			PrimaryKeyword:  "trail snacks",
			ContentComplete: true,
			BodyHTML: body(
				"Dense calories beat bulk on any route over a few hours.",
				"Resupply options thin out quickly above the tree line.",
			),
		},
	}
	p, store := newTestPlanner(t, &stubRewriter{})
	require.NoError(t, store.UpsertPages(pages))

	run, err := p.Start(context.Background(), "silo-3")
	require.NoError(t, err)
	status := waitRun(t, run)
	require.Equal(t, datatypes.RunComplete, status.State, "error: %s", status.Error)

	leafA, err := store.GetPage("leaf-a")
	require.NoError(t, err)
	first := strings.Index(leafA.BodyHTML, `href="`)
	require.GreaterOrEqual(t, first, 0)
	assert.True(t, strings.HasPrefix(leafA.BodyHTML[first:], `href="/collections/hub-1"`),
		"first link on a child page must target the parent")

	// The sibling link survived, just not ahead of the parent link.
	links, err := store.LinksByScope("silo-3")
	require.NoError(t, err)
	var parentPos, siblingPos = -1, -1
	for _, l := range links {
		if l.SourcePageID != "leaf-a" {
			continue
		}
		switch l.TargetPageID {
		case "hub-1":
			parentPos = l.Position
		case "leaf-b":
			siblingPos = l.Position
		}
	}
	require.NotEqual(t, -1, parentPos)
	require.NotEqual(t, -1, siblingPos)
	assert.GreaterOrEqual(t, siblingPos, parentPos)
}

func TestPlanner_FailedRunCommitsNothing(t *testing.T) {
	pages := []datatypes.Page{
		{ID: "hub-1", ScopeKey: "silo-2", Scope: datatypes.ScopeCluster,
			Role: datatypes.RoleParent, WordCount: 1000, PrimaryKeyword: "garden tools",
			ContentComplete: true, BodyHTML: body("Everything for the garden in one place.")},
		{ID: "leaf-x", ScopeKey: "silo-2", Scope: datatypes.ScopeCluster,
			Role: datatypes.RoleChild, WordCount: 500, CompositeScore: 0.9,
			PrimaryKeyword: "pruning shears", ContentComplete: true,
			// No paragraph blocks at all, so the mandatory link has nowhere
			// to land.
			BodyHTML: "<div>Stub page awaiting copy.</div>"},
	}
	p, store := newTestPlanner(t, &stubRewriter{})
	require.NoError(t, store.UpsertPages(pages))

	run, err := p.Start(context.Background(), "silo-2")
	require.NoError(t, err)
	status := waitRun(t, run)
	require.Equal(t, datatypes.RunFailed, status.State)
	assert.Contains(t, status.Error, "mandatory")

	links, err := store.LinksByScope("silo-2")
	require.NoError(t, err)
	assert.Empty(t, links, "failed run must leave the link table untouched")

	hub, err := store.GetPage("hub-1")
	require.NoError(t, err)
	assert.Equal(t, pages[0].BodyHTML, hub.BodyHTML, "failed run must leave content untouched")
}

func TestPlanner_Replan(t *testing.T) {
	p, store := newTestPlanner(t, &stubRewriter{})
	require.NoError(t, store.UpsertPages(clusterFixture("silo-1")))

	run, err := p.Start(context.Background(), "silo-1")
	require.NoError(t, err)
	require.Equal(t, datatypes.RunComplete, waitRun(t, run).State)

	before, err := store.LinksByScope("silo-1")
	require.NoError(t, err)
	require.Len(t, before, 12)

	run, err = p.Replan(context.Background(), "silo-1")
	require.NoError(t, err)
	status := waitRun(t, run)
	require.Equal(t, datatypes.RunComplete, status.State, "error: %s", status.Error)

	snaps, err := store.SnapshotsByScope("silo-1")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 12, snaps[0].TotalLinks)
	assert.Contains(t, snaps[0].PageHTML["hub-1"], "data-linkforge",
		"snapshot captures the pre-strip bodies")

	after, err := store.LinksByScope("silo-1")
	require.NoError(t, err)
	require.Len(t, after, 12)
	oldIDs := map[string]bool{}
	for _, l := range before {
		oldIDs[l.ID] = true
	}
	for _, l := range after {
		assert.False(t, oldIDs[l.ID], "replanned links are fresh records")
	}

	_, err = store.GetMarker("silo-1")
	assert.ErrorIs(t, err, storage.ErrNotFound, "marker cleared after successful replan")
}

func TestPlanner_ReplanFailureAfterStrip(t *testing.T) {
	rw := &stubRewriter{}
	p, store := newTestPlanner(t, rw)
	require.NoError(t, store.UpsertPages(clusterFixture("silo-1")))

	run, err := p.Start(context.Background(), "silo-1")
	require.NoError(t, err)
	require.Equal(t, datatypes.RunComplete, waitRun(t, run).State)

	// The rebuild's fallback rewrites now fail, killing a mandatory
	// placement after the strip already happened.
	rw.setRewriteErr(errors.New("backend down"))

	run, err = p.Replan(context.Background(), "silo-1")
	require.NoError(t, err)
	status := waitRun(t, run)
	require.Equal(t, datatypes.RunFailedAfterStrip, status.State)

	marker, err := store.GetMarker("silo-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.PhaseStripped, marker.Phase)

	links, err := store.LinksByScope("silo-1")
	require.NoError(t, err)
	assert.Empty(t, links)
	hub, err := store.GetPage("hub-1")
	require.NoError(t, err)
	assert.NotContains(t, hub.BodyHTML, "data-linkforge", "bodies stay stripped")

	snaps, err := store.SnapshotsByScope("silo-1")
	require.NoError(t, err)
	require.Len(t, snaps, 1, "snapshot retained for recovery")

	// A planner with no in-memory run handle still reports the stuck scope
	// from the persisted marker.
	fresh := NewPlanner(store, rw, Options{Logger: discardLogger()})
	st := fresh.Status("silo-1")
	assert.Equal(t, datatypes.RunFailedAfterStrip, st.State)
	assert.Contains(t, st.Error, snaps[0].ID)
}
