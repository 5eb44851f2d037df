// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph builds the undirected weighted eligibility graph a planning
// run selects link targets from.
//
// Two topologies exist: a cluster silo (parent plus children) and an
// onboarding label-overlap graph. Both are exposed through the same Graph
// interface so the target selector is written once.
package graph

import (
	"sort"
)

// Neighbor is one eligible link target with its edge weight.
type Neighbor struct {
	PageID string
	Weight float64
}

// Graph answers neighbor queries over a scope's pages.
//
// Neighbors returns eligible targets sorted by descending weight, ties by
// ascending page ID. PageIDs returns every in-scope page in ascending ID
// order; this is the deterministic processing order selection relies on.
// A page with no edges is valid and simply yields no neighbors.
type Graph interface {
	Neighbors(pageID string) []Neighbor
	PageIDs() []string
	EdgeCount() int
}

// adjacency is the shared undirected adjacency-map implementation behind
// both builders.
type adjacency struct {
	pages map[string]struct{}
	edges map[string][]Neighbor
	count int
}

func newAdjacency() *adjacency {
	return &adjacency{
		pages: make(map[string]struct{}),
		edges: make(map[string][]Neighbor),
	}
}

func (g *adjacency) addPage(id string) {
	g.pages[id] = struct{}{}
}

// addEdge inserts an undirected edge. Self-edges are ignored.
func (g *adjacency) addEdge(a, b string, weight float64) {
	if a == b {
		return
	}
	g.edges[a] = append(g.edges[a], Neighbor{PageID: b, Weight: weight})
	g.edges[b] = append(g.edges[b], Neighbor{PageID: a, Weight: weight})
	g.count++
}

// freeze sorts every neighbor list into the canonical order. Called once by
// the builders; the graph is read-only afterwards.
func (g *adjacency) freeze() {
	for id, ns := range g.edges {
		sort.Slice(ns, func(i, j int) bool {
			if ns[i].Weight != ns[j].Weight {
				return ns[i].Weight > ns[j].Weight
			}
			return ns[i].PageID < ns[j].PageID
		})
		g.edges[id] = ns
	}
}

func (g *adjacency) Neighbors(pageID string) []Neighbor {
	return g.edges[pageID]
}

func (g *adjacency) PageIDs() []string {
	ids := make([]string, 0, len(g.pages))
	for id := range g.pages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *adjacency) EdgeCount() int {
	return g.count
}
