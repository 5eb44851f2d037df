// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// RunState is the pipeline state machine exposed by planning status.
type RunState string

const (
	RunIdle             RunState = "idle"
	RunSnapshotting     RunState = "snapshotting"
	RunStripping        RunState = "stripping"
	RunDeleting         RunState = "deleting"
	RunBuildingGraph    RunState = "building_graph"
	RunSelectingTargets RunState = "selecting_targets"
	RunInjectingLinks   RunState = "injecting_links"
	RunValidating       RunState = "validating"
	RunComplete         RunState = "complete"
	RunFailed           RunState = "failed"

	// RunFailedAfterStrip is the distinct terminal state for a re-plan that
	// failed after existing links were stripped. The snapshot is retained
	// and the scope needs manual recovery.
	RunFailedAfterStrip RunState = "failed_after_strip"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == RunComplete || s == RunFailed || s == RunFailedAfterStrip
}

// PlanStatus is the polling/websocket view of a planning run.
// PagesProcessed/TotalPages are meaningful for the per-page steps
// (selecting_targets, injecting_links).
type PlanStatus struct {
	ScopeKey       string   `json:"scope_key"`
	State          RunState `json:"state"`
	CurrentStep    string   `json:"current_step,omitempty"`
	PagesProcessed int      `json:"pages_processed"`
	TotalPages     int      `json:"total_pages"`
	Error          string   `json:"error,omitempty"`
}

// PageValidation is the per-page outcome of plan validation.
// Status is "verified", "warnings", or "failed:<rule>".
type PageValidation struct {
	PageID   string   `json:"page_id"`
	Status   string   `json:"status"`
	Warnings []string `json:"warnings,omitempty"`
}

// LinkStats aggregates a scope's link graph for the map view.
type LinkStats struct {
	TotalLinks          int                `json:"total_links"`
	AvgLinksPerPage     float64            `json:"avg_links_per_page"`
	ValidationPassRate  float64            `json:"validation_pass_rate"`
	MethodBreakdown     map[string]int     `json:"method_breakdown"`
	AnchorTypeBreakdown map[string]int     `json:"anchor_type_breakdown"`
}

// PageSummary is the page view embedded in the link map. Body HTML is
// deliberately omitted; the map endpoint is a graph view, not a content view.
type PageSummary struct {
	ID             string    `json:"id"`
	Role           PageRole  `json:"role,omitempty"`
	Labels         []string  `json:"labels,omitempty"`
	WordCount      int       `json:"word_count"`
	CompositeScore float64   `json:"composite_score"`
	OutboundLinks  int       `json:"outbound_links"`
	InboundLinks   int       `json:"inbound_links"`
}

// LinkMapResponse is the response for the scope link map endpoint.
type LinkMapResponse struct {
	ScopeKey string        `json:"scope_key"`
	Pages    []PageSummary `json:"pages"`
	Links    []Link        `json:"links"`
	Stats    LinkStats     `json:"stats"`
}

// PageLinksResponse lists a single page's links in document order.
type PageLinksResponse struct {
	PageID string `json:"page_id"`

	// Outbound is ordered by position in content.
	Outbound []Link `json:"outbound"`
	Inbound  []Link `json:"inbound"`

	// AnchorDiversityScore is the ratio of distinct inbound anchor strings
	// to inbound links (1.0 = every anchor unique, 0 = no inbound links).
	AnchorDiversityScore float64 `json:"anchor_diversity_score"`
}

// AddLinkRequest creates a manual link between two pages in one scope.
type AddLinkRequest struct {
	SourcePageID string `json:"source_page_id" binding:"required,ident"`
	TargetPageID string `json:"target_page_id" binding:"required,ident"`
	AnchorText   string `json:"anchor_text" binding:"required"`

	// Override lets the caller exceed the source page's link budget.
	Override bool `json:"override,omitempty"`
}

// EditAnchorRequest re-injects an existing link with new anchor text at the
// same paragraph position.
type EditAnchorRequest struct {
	NewText string `json:"new_text" binding:"required"`
}

// UpsertPagesRequest feeds collaborator pages into the page store.
type UpsertPagesRequest struct {
	Pages []Page `json:"pages" binding:"required,dive"`
}
