// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/linkforge-seo/linkforge/services/planner/datatypes"
	"github.com/linkforge-seo/linkforge/services/planner/inject"
)

// AddManualLink places a curator-requested link between two pages of one
// scope. The same injection rules apply as during a run; Override only
// bypasses the source page's link budget, never the structural rules.
func (p *Planner) AddManualLink(ctx context.Context, req datatypes.AddLinkRequest) (datatypes.Link, error) {
	var zero datatypes.Link

	source, err := p.store.GetPage(req.SourcePageID)
	if err != nil {
		return zero, fmt.Errorf("source page: %w", err)
	}
	target, err := p.store.GetPage(req.TargetPageID)
	if err != nil {
		return zero, fmt.Errorf("target page: %w", err)
	}
	if source.ScopeKey != target.ScopeKey {
		return zero, fmt.Errorf("pages %s and %s belong to different scopes", source.ID, target.ID)
	}
	if source.ID == target.ID {
		return zero, fmt.Errorf("page %s: %w", source.ID, ErrSelfLink)
	}
	if _, active := p.ActiveRun(source.ScopeKey); active {
		return zero, fmt.Errorf("scope %s: %w", source.ScopeKey, ErrRunActive)
	}

	links, err := p.store.LinksByScope(source.ScopeKey)
	if err != nil {
		return zero, err
	}
	outbound := 0
	for _, l := range links {
		if l.SourcePageID == source.ID && l.TargetPageID == target.ID {
			return zero, fmt.Errorf("%s -> %s: %w", source.ID, target.ID, ErrDuplicateLink)
		}
		if l.SourcePageID == source.ID {
			outbound++
		}
	}
	if !req.Override && outbound >= Budget(source.WordCount) {
		return zero, fmt.Errorf("page %s at %d links: %w", source.ID, outbound, ErrBudgetExceeded)
	}

	doc, err := inject.ParseDocument(source.BodyHTML)
	if err != nil {
		return zero, fmt.Errorf("parse page %s: %w", source.ID, err)
	}

	// A manual link on a cluster child must not land before the mandatory
	// parent link in document order.
	if source.Scope == datatypes.ScopeCluster && source.Role == datatypes.RoleChild {
		for _, l := range links {
			if l.SourcePageID == source.ID && l.IsMandatory {
				if t, err := p.store.GetPage(l.TargetPageID); err == nil {
					doc.RequireAfter(PageHref(t))
				}
				break
			}
		}
	}

	href := PageHref(target)
	position := 0
	method := datatypes.PlacementRuleBased
	res := doc.TryInject(req.AnchorText, href, false)
	if res.Placed {
		position = res.Position
	} else {
		para := doc.FallbackParagraph(false, fallbackTerms(target))
		if para < 0 {
			return zero, fmt.Errorf("page %s has no paragraph able to take the link", source.ID)
		}
		rewritten, err := p.rewriter.RewriteParagraph(ctx, doc.ParagraphText(para), req.AnchorText, TargetDescription(target))
		if err != nil {
			return zero, fmt.Errorf("rewrite fallback: %w", err)
		}
		if err := doc.ReplaceParagraph(para, rewritten, req.AnchorText, href); err != nil {
			return zero, err
		}
		position = para
		method = datatypes.PlacementLLMFallback
	}

	body, err := doc.HTML()
	if err != nil {
		return zero, err
	}

	link := datatypes.Link{
		ID:           uuid.NewString(),
		SourcePageID: source.ID,
		TargetPageID: target.ID,
		ScopeKey:     source.ScopeKey,
		Scope:        source.Scope,
		AnchorText:   req.AnchorText,
		AnchorType:   classifyAnchor(target, req.AnchorText),
		Position:     position,
		Method:       method,
		Status:       datatypes.LinkInjected,
		CreatedAt:    time.Now().Unix(),
	}
	if source.Scope == datatypes.ScopeCluster {
		link.ClusterID = source.ScopeKey
	}

	// One transaction covers the link record and the mutated body.
	err = p.store.CommitPlan(source.ScopeKey, []datatypes.Link{link}, map[string]string{source.ID: body}, nil)
	if err != nil {
		return zero, err
	}
	p.opts.Metrics.LinksPlannedTotal.WithLabelValues(string(link.AnchorType), string(link.Method)).Inc()
	return link, nil
}

// EditAnchor swaps a link's anchor text in place: the old engine anchor is
// unwrapped and the new text injected into the same paragraph, falling back
// to a rewrite of that paragraph when the new text does not occur there.
func (p *Planner) EditAnchor(ctx context.Context, linkID, newText string) (datatypes.Link, error) {
	var zero datatypes.Link

	link, err := p.store.GetLink(linkID)
	if err != nil {
		return zero, err
	}
	if _, active := p.ActiveRun(link.ScopeKey); active {
		return zero, fmt.Errorf("scope %s: %w", link.ScopeKey, ErrRunActive)
	}
	source, err := p.store.GetPage(link.SourcePageID)
	if err != nil {
		return zero, fmt.Errorf("source page: %w", err)
	}
	target, err := p.store.GetPage(link.TargetPageID)
	if err != nil {
		return zero, fmt.Errorf("target page: %w", err)
	}

	doc, err := inject.ParseDocument(source.BodyHTML)
	if err != nil {
		return zero, fmt.Errorf("parse page %s: %w", source.ID, err)
	}

	href := PageHref(target)
	if !doc.RemoveEngineAnchor(href) {
		return zero, fmt.Errorf("page %s carries no engine anchor for %s", source.ID, href)
	}

	method := datatypes.PlacementRuleBased
	res := doc.InjectAt(link.Position, newText, href)
	if !res.Placed {
		rewritten, err := p.rewriter.RewriteParagraph(ctx, doc.ParagraphText(link.Position), newText, TargetDescription(target))
		if err != nil {
			return zero, fmt.Errorf("rewrite fallback: %w", err)
		}
		if err := doc.ReplaceParagraph(link.Position, rewritten, newText, href); err != nil {
			return zero, err
		}
		method = datatypes.PlacementLLMFallback
	}

	body, err := doc.HTML()
	if err != nil {
		return zero, err
	}

	link.AnchorText = newText
	link.AnchorType = classifyAnchor(target, newText)
	link.Method = method
	link.Status = datatypes.LinkInjected
	err = p.store.CommitPlan(link.ScopeKey, []datatypes.Link{link}, map[string]string{source.ID: body}, nil)
	if err != nil {
		return zero, err
	}
	return link, nil
}

// RemoveLink unwraps a link's anchor from the source body and deletes its
// record. Mandatory child-to-parent links cannot be removed; the silo rules
// require them.
func (p *Planner) RemoveLink(ctx context.Context, linkID string) error {
	link, err := p.store.GetLink(linkID)
	if err != nil {
		return err
	}
	if link.IsMandatory {
		return fmt.Errorf("link %s: %w", linkID, ErrMandatoryLink)
	}
	if _, active := p.ActiveRun(link.ScopeKey); active {
		return fmt.Errorf("scope %s: %w", link.ScopeKey, ErrRunActive)
	}

	source, err := p.store.GetPage(link.SourcePageID)
	if err != nil {
		return fmt.Errorf("source page: %w", err)
	}
	target, err := p.store.GetPage(link.TargetPageID)
	if err != nil {
		return fmt.Errorf("target page: %w", err)
	}

	doc, err := inject.ParseDocument(source.BodyHTML)
	if err != nil {
		return fmt.Errorf("parse page %s: %w", source.ID, err)
	}

	// Strip the HTML first. A crash between the two writes leaves a stale
	// link record, which is visible and recoverable, rather than an anchor
	// no record owns.
	if doc.RemoveEngineAnchor(PageHref(target)) {
		body, err := doc.HTML()
		if err != nil {
			return err
		}
		if err := p.store.UpdatePageHTML(source.ID, body); err != nil {
			return err
		}
	}
	return p.store.DeleteLink(linkID)
}

// classifyAnchor tags an anchor string relative to the target's keyword set.
func classifyAnchor(target datatypes.Page, text string) datatypes.AnchorType {
	key := anchorKey(text)
	if key == anchorKey(target.PrimaryKeyword) {
		return datatypes.AnchorExactMatch
	}
	for _, v := range target.Variations {
		if key == anchorKey(v) {
			return datatypes.AnchorPartialMatch
		}
	}
	return datatypes.AnchorNatural
}
