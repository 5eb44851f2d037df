// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the domain records shared across the planner:
// pages, links, plan snapshots, and the DTOs exposed at the API boundary.
package datatypes

// ScopeType distinguishes the two planning topologies.
type ScopeType string

const (
	// ScopeCluster is a silo: one parent page plus N child pages.
	ScopeCluster ScopeType = "cluster"

	// ScopeOnboarding is a flat page set related by shared labels.
	ScopeOnboarding ScopeType = "onboarding"
)

// PageRole is the position of a page inside a cluster silo.
// Onboarding pages carry no role.
type PageRole string

const (
	RoleParent PageRole = "parent"
	RoleChild  PageRole = "child"
)

// Page is the read-mostly input record supplied by the upstream content
// system. The planner mutates only BodyHTML (via injection and strip);
// everything else is owned by the collaborator.
type Page struct {
	ID       string    `json:"id"`
	ScopeKey string    `json:"scope_key"`
	Scope    ScopeType `json:"scope_type"`

	// URL is the page's public path, used as link href. Defaults to
	// "/collections/<id>" when the collaborator leaves it empty.
	URL string `json:"url,omitempty"`

	// Role is set for cluster pages, Labels for onboarding pages.
	Role   PageRole `json:"role,omitempty"`
	Labels []string `json:"labels,omitempty"`

	WordCount       int      `json:"word_count"`
	IsPriority      bool     `json:"is_priority,omitempty"`
	CompositeScore  float64  `json:"composite_score"`
	PrimaryKeyword  string   `json:"primary_keyword"`
	Variations      []string `json:"keyword_variations,omitempty"`
	ContentComplete bool     `json:"content_complete"`
	BodyHTML        string   `json:"body_html"`
}

// AnchorType classifies anchor text.
type AnchorType string

const (
	AnchorExactMatch   AnchorType = "exact_match"
	AnchorPartialMatch AnchorType = "partial_match"
	AnchorNatural      AnchorType = "natural"
)

// PlacementMethod records how a link landed in the content.
type PlacementMethod string

const (
	PlacementRuleBased   PlacementMethod = "rule_based"
	PlacementLLMFallback PlacementMethod = "llm_fallback"
)

// LinkStatus is the lifecycle state of a link record.
type LinkStatus string

const (
	LinkPlanned  LinkStatus = "planned"
	LinkInjected LinkStatus = "injected"
	LinkVerified LinkStatus = "verified"
	LinkRemoved  LinkStatus = "removed"
)

// Link is an internal link owned by the planner.
//
// Invariants: SourcePageID != TargetPageID; at most one link per ordered
// (source, target) pair; in cluster scope every child page has exactly one
// mandatory link targeting the parent.
type Link struct {
	ID           string    `json:"id"`
	SourcePageID string    `json:"source_page_id"`
	TargetPageID string    `json:"target_page_id"`
	ScopeKey     string    `json:"scope_key"`
	Scope        ScopeType `json:"scope_type"`
	ClusterID    string    `json:"cluster_id,omitempty"`

	AnchorText string     `json:"anchor_text"`
	AnchorType AnchorType `json:"anchor_type"`

	// Position is the paragraph index the anchor was injected into.
	Position int `json:"position_in_content"`

	IsMandatory bool            `json:"is_mandatory,omitempty"`
	Method      PlacementMethod `json:"placement_method"`
	Status      LinkStatus      `json:"status"`
	CreatedAt   int64           `json:"created_at"`
}

// PlanSnapshot is an immutable capture of a scope's pre-injection page HTML
// and its full link set, taken only immediately before a destructive re-plan.
// Retained indefinitely for rollback and audit.
type PlanSnapshot struct {
	ID       string `json:"id"`
	ScopeKey string `json:"scope_key"`

	// PageHTML maps page ID to the body HTML as it was before stripping.
	PageHTML map[string]string `json:"page_html"`

	Links      []Link `json:"links"`
	TotalLinks int    `json:"total_links"`
	CreatedAt  int64  `json:"created_at"`
}

// ReplanPhase is the three-phase commit marker for a destructive re-plan.
// It makes the "stuck after strip" window detectable instead of silently
// lost: a marker left in PhaseStripped means the scope needs manual recovery.
type ReplanPhase string

const (
	PhaseSnapshotted ReplanPhase = "snapshotted"
	PhaseStripped    ReplanPhase = "stripped"
	PhaseRebuilt     ReplanPhase = "rebuilt"
)

// ReplanMarker is the persisted commit record for a re-plan in flight.
type ReplanMarker struct {
	ScopeKey   string      `json:"scope_key"`
	SnapshotID string      `json:"snapshot_id"`
	Phase      ReplanPhase `json:"phase"`
	UpdatedAt  int64       `json:"updated_at"`
}
