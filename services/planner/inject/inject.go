// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package inject

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Density and placement rules for rule-based injection.
const (
	// MaxLinksPerParagraph caps engine links in one paragraph block.
	MaxLinksPerParagraph = 2

	// MinWordGap is the minimum word distance between two engine links.
	MinWordGap = 50

	// MandatoryParagraphWindow is how many leading paragraphs a mandatory
	// child-to-parent link must land in.
	MandatoryParagraphWindow = 2
)

// FallbackReason explains why rule-based placement could not succeed.
type FallbackReason string

const (
	// ReasonNoMatch: the anchor text never occurs outside an existing link.
	ReasonNoMatch FallbackReason = "no_text_match"

	// ReasonDensity: every matching paragraph is at the per-paragraph cap
	// or too close to an already injected link.
	ReasonDensity FallbackReason = "density_rules"

	// ReasonPosition: a mandatory link found no usable match inside the
	// leading paragraph window.
	ReasonPosition FallbackReason = "position_rule"
)

// PlacementResult is the outcome of a rule-based injection attempt.
// Either Placed is true and Position holds the paragraph index, or the
// caller must take the generative fallback path for Reason.
type PlacementResult struct {
	Placed   bool
	Position int
	Reason   FallbackReason
}

func placed(pos int) PlacementResult {
	return PlacementResult{Placed: true, Position: pos}
}

func needsFallback(r FallbackReason) PlacementResult {
	return PlacementResult{Reason: r}
}

// boundaryPattern compiles a case-insensitive word-boundary matcher for the
// anchor text. Interior whitespace matches any whitespace run.
func boundaryPattern(anchor string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(strings.TrimSpace(anchor))
	quoted = regexp.MustCompile(`(\\\s|\s)+`).ReplaceAllString(quoted, `\s+`)
	return regexp.MustCompile(`(?i)\b` + quoted + `\b`)
}

// TryInject scans paragraph blocks in document order for the first
// occurrence of anchor that satisfies every placement rule, wraps it in an
// engine-tagged <a href=...>, and reports the paragraph used.
//
// Mandatory links only consider the leading paragraph window; if no rule
// conformant match exists there the caller falls back to a rewrite.
func (d *Document) TryInject(anchor, href string, mandatory bool) PlacementResult {
	pat := boundaryPattern(anchor)

	limit := len(d.paras)
	if mandatory && limit > MandatoryParagraphWindow {
		limit = MandatoryParagraphWindow
	}

	sawMatch := false
	for i := 0; i < limit; i++ {
		p := d.paras[i]
		tn, start, end := findMatchOutsideAnchors(p, pat)
		if tn == nil {
			continue
		}
		sawMatch = true

		if d.floorSet && d.wordOffset(i, tn, start) < d.floorWords {
			continue
		}
		if engineLinkCount(p) >= MaxLinksPerParagraph {
			continue
		}
		if !d.gapOK(i, tn, start) {
			continue
		}

		wrapMatch(tn, start, end, href)
		return placed(i)
	}

	if !sawMatch {
		if mandatory && limit < len(d.paras) {
			// The anchor may well match further down; the binding rule here
			// is positional.
			return needsFallback(ReasonPosition)
		}
		return needsFallback(ReasonNoMatch)
	}
	if mandatory {
		return needsFallback(ReasonPosition)
	}
	return needsFallback(ReasonDensity)
}

// RequireAfter pins the placement floor to the engine anchor carrying href.
// Subsequent TryInject calls refuse matches that precede that anchor in
// document order, and fallback paragraph selection skips paragraphs before
// the anchor's paragraph. A child page calls this once its parent link is
// placed so no later link can end up first in document order. Reports
// whether the anchor was found.
func (d *Document) RequireAfter(href string) bool {
	words := 0
	for i, p := range d.paras {
		found := false
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if found {
				return
			}
			if isEngineAnchor(n) {
				if anchorHref(n) == href {
					found = true
					return
				}
				words += countWords(nodeText(n))
				return
			}
			if n.Type == html.TextNode {
				words += countWords(n.Data)
				return
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(p)
		if found {
			d.floorSet = true
			d.floorPara = i
			d.floorWords = words
			return true
		}
	}
	return false
}

// findMatchOutsideAnchors walks the paragraph subtree in document order and
// returns the first text node (with match bounds) that matches pat and is
// not inside any <a> element.
func findMatchOutsideAnchors(p *html.Node, pat *regexp.Regexp) (*html.Node, int, int) {
	var found *html.Node
	var start, end int
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil || isAnchor(n) {
			return
		}
		if n.Type == html.TextNode {
			if loc := pat.FindStringIndex(n.Data); loc != nil {
				found, start, end = n, loc[0], loc[1]
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(p)
	return found, start, end
}

// wrapMatch splits the text node around [start,end) and inserts an
// engine-tagged anchor element over the matched run.
func wrapMatch(tn *html.Node, start, end int, href string) {
	parent := tn.Parent
	before, mid, after := tn.Data[:start], tn.Data[start:end], tn.Data[end:]

	a := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.A,
		Data:     "a",
		Attr: []html.Attribute{
			{Key: "href", Val: href},
			{Key: EngineAttr, Val: "1"},
		},
	}
	a.AppendChild(&html.Node{Type: html.TextNode, Data: mid})

	if before != "" {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: before}, tn)
	}
	parent.InsertBefore(a, tn)
	if after != "" {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: after}, tn)
	}
	parent.RemoveChild(tn)
}

// gapOK checks the 50-word separation rule between the candidate match and
// every engine link already in the document.
func (d *Document) gapOK(paraIdx int, tn *html.Node, start int) bool {
	cand := d.wordOffset(paraIdx, tn, start)
	for _, off := range d.engineAnchorOffsets() {
		delta := cand - off
		if delta < 0 {
			delta = -delta
		}
		if delta < MinWordGap {
			return false
		}
	}
	return true
}

// wordOffset computes the document word offset of a position inside a
// paragraph's text node.
func (d *Document) wordOffset(paraIdx int, target *html.Node, start int) int {
	words := 0
	for i := 0; i < paraIdx; i++ {
		words += countWords(nodeText(d.paras[i]))
	}
	done := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if done {
			return
		}
		if n == target {
			words += countWords(n.Data[:start])
			done = true
			return
		}
		if n.Type == html.TextNode {
			words += countWords(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.paras[paraIdx])
	return words
}

// engineAnchorOffsets returns the document word offset of every engine link.
func (d *Document) engineAnchorOffsets() []int {
	var offs []int
	words := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if isEngineAnchor(n) {
			offs = append(offs, words)
			words += countWords(nodeText(n))
			return
		}
		if n.Type == html.TextNode {
			words += countWords(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, p := range d.paras {
		walk(p)
	}
	return offs
}

// InjectAt attempts rule-based injection restricted to one paragraph, used
// by anchor edits that must keep a link at its recorded position. Density
// and word-gap rules still apply.
func (d *Document) InjectAt(paraIdx int, anchor, href string) PlacementResult {
	if paraIdx < 0 || paraIdx >= len(d.paras) {
		return needsFallback(ReasonNoMatch)
	}
	p := d.paras[paraIdx]
	pat := boundaryPattern(anchor)

	tn, start, end := findMatchOutsideAnchors(p, pat)
	if tn == nil {
		return needsFallback(ReasonNoMatch)
	}
	if engineLinkCount(p) >= MaxLinksPerParagraph {
		return needsFallback(ReasonDensity)
	}
	if !d.gapOK(paraIdx, tn, start) {
		return needsFallback(ReasonDensity)
	}
	wrapMatch(tn, start, end, href)
	return placed(paraIdx)
}

// ReplaceParagraph swaps paragraph i's content for rewritten text, wrapping
// the first occurrence of anchor in an engine-tagged link. Used by the
// generative fallback path; the rewrite contract guarantees the anchor text
// occurs in the rewritten paragraph.
func (d *Document) ReplaceParagraph(i int, rewritten, anchor, href string) error {
	if i < 0 || i >= len(d.paras) {
		return fmt.Errorf("paragraph index %d out of range [0,%d)", i, len(d.paras))
	}
	loc := boundaryPattern(anchor).FindStringIndex(rewritten)
	if loc == nil {
		return fmt.Errorf("rewritten paragraph does not contain anchor %q", anchor)
	}

	p := d.paras[i]
	for p.FirstChild != nil {
		p.RemoveChild(p.FirstChild)
	}
	if before := rewritten[:loc[0]]; before != "" {
		p.AppendChild(&html.Node{Type: html.TextNode, Data: before})
	}
	a := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.A,
		Data:     "a",
		Attr: []html.Attribute{
			{Key: "href", Val: href},
			{Key: EngineAttr, Val: "1"},
		},
	}
	a.AppendChild(&html.Node{Type: html.TextNode, Data: rewritten[loc[0]:loc[1]]})
	p.AppendChild(a)
	if after := rewritten[loc[1]:]; after != "" {
		p.AppendChild(&html.Node{Type: html.TextNode, Data: after})
	}
	return nil
}

// ContainsVerbatim reports whether the document's plain text contains the
// phrase at a word boundary, ignoring case. Used as the context-fit signal
// during anchor selection.
func (d *Document) ContainsVerbatim(phrase string) bool {
	if strings.TrimSpace(phrase) == "" {
		return false
	}
	pat := boundaryPattern(phrase)
	for _, p := range d.paras {
		if pat.MatchString(nodeText(p)) {
			return true
		}
	}
	return false
}
