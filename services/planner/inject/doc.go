// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package inject mutates stored page HTML: it wraps anchor text occurrences
// in engine-tagged <a> elements, replaces paragraphs with rewritten versions,
// and strips engine-tagged links during re-plans.
//
// Engine-injected anchors carry the data-linkforge="1" attribute so strip
// can remove them without touching externally authored links.
package inject

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// EngineAttr marks anchors owned by the planner.
const EngineAttr = "data-linkforge"

// Document is a parsed page body whose <p> elements are addressable as
// paragraph blocks in document order.
type Document struct {
	roots []*html.Node
	paras []*html.Node

	// Placement floor, set by RequireAfter. When active, TryInject refuses
	// matches that precede the floor word offset and fallback paragraph
	// selection skips paragraphs before the floor paragraph.
	floorSet   bool
	floorPara  int
	floorWords int
}

// ParseDocument parses a body HTML fragment and indexes its paragraphs.
func ParseDocument(bodyHTML string) (*Document, error) {
	ctx := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	roots, err := html.ParseFragment(strings.NewReader(bodyHTML), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse body html: %w", err)
	}

	d := &Document{roots: roots}
	for _, root := range roots {
		collectParagraphs(root, &d.paras)
	}
	return d, nil
}

func collectParagraphs(n *html.Node, out *[]*html.Node) {
	if n.Type == html.ElementNode && n.DataAtom == atom.P {
		*out = append(*out, n)
		return // p elements do not nest
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectParagraphs(c, out)
	}
}

// HTML renders the (possibly mutated) document back to a fragment string.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	for _, root := range d.roots {
		if err := html.Render(&buf, root); err != nil {
			return "", fmt.Errorf("render body html: %w", err)
		}
	}
	return buf.String(), nil
}

// ParagraphCount returns the number of paragraph blocks.
func (d *Document) ParagraphCount() int {
	return len(d.paras)
}

// ParagraphText returns the plain text of paragraph i.
func (d *Document) ParagraphText(i int) string {
	if i < 0 || i >= len(d.paras) {
		return ""
	}
	return nodeText(d.paras[i])
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// isEngineAnchor reports whether n is an <a> injected by this engine.
func isEngineAnchor(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.A {
		return false
	}
	for _, attr := range n.Attr {
		if attr.Key == EngineAttr {
			return true
		}
	}
	return false
}

func isAnchor(n *html.Node) bool {
	return n.Type == html.ElementNode && n.DataAtom == atom.A
}

func anchorHref(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			return attr.Val
		}
	}
	return ""
}

// engineLinkCount counts engine anchors inside the subtree of n.
func engineLinkCount(n *html.Node) int {
	count := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if isEngineAnchor(n) {
			count++
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return count
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
