// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"errors"
	"fmt"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
)

// Sentinel errors for cluster graph construction.
var (
	// ErrNoParent indicates a cluster scope without a parent page.
	ErrNoParent = errors.New("cluster has no parent page")

	// ErrMultipleParents indicates a cluster scope with more than one parent.
	ErrMultipleParents = errors.New("cluster has multiple parent pages")
)

// BuildCluster constructs the silo eligibility graph.
//
// The parent connects to every child with the child's composite score as
// weight; every pair of children connects with the average of their two
// scores. Pages without completed content get no edges at all.
func BuildCluster(pages []datatypes.Page) (Graph, error) {
	g := newAdjacency()

	var parent *datatypes.Page
	var children []datatypes.Page
	for i := range pages {
		p := pages[i]
		g.addPage(p.ID)
		switch p.Role {
		case datatypes.RoleParent:
			if parent != nil {
				return nil, fmt.Errorf("%w: %s and %s", ErrMultipleParents, parent.ID, p.ID)
			}
			parent = &pages[i]
		case datatypes.RoleChild:
			children = append(children, p)
		default:
			return nil, fmt.Errorf("page %s has no cluster role", p.ID)
		}
	}
	if parent == nil {
		return nil, ErrNoParent
	}

	for i, c := range children {
		if !c.ContentComplete {
			continue
		}
		if parent.ContentComplete {
			g.addEdge(parent.ID, c.ID, c.CompositeScore)
		}
		for _, sib := range children[i+1:] {
			if !sib.ContentComplete {
				continue
			}
			g.addEdge(c.ID, sib.ID, (c.CompositeScore+sib.CompositeScore)/2)
		}
	}

	g.freeze()
	return g, nil
}
