// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package inject

import (
	"golang.org/x/net/html"
)

// StripEngineLinks removes every engine-tagged <a> wrapper from the body,
// keeping its inner text in place. Externally authored links are untouched.
// Stripping is idempotent: running it on already stripped content returns
// the same content and a zero count.
func StripEngineLinks(bodyHTML string) (string, int, error) {
	d, err := ParseDocument(bodyHTML)
	if err != nil {
		return "", 0, err
	}
	removed := 0
	for _, root := range d.roots {
		removed += unwrapEngineAnchors(root)
	}
	out, err := d.HTML()
	if err != nil {
		return "", 0, err
	}
	return out, removed, nil
}

// RemoveEngineAnchor unwraps the first engine anchor pointing at href,
// keeping its inner text. Returns false when no such anchor exists.
// Used by manual link removal and anchor edits, which target one link
// rather than the whole plan.
func (d *Document) RemoveEngineAnchor(href string) bool {
	var target *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if target != nil {
			return
		}
		if isEngineAnchor(n) {
			for _, attr := range n.Attr {
				if attr.Key == "href" && attr.Val == href {
					target = n
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	for _, root := range d.roots {
		find(root)
	}
	if target == nil {
		return false
	}

	parent := target.Parent
	for gc := target.FirstChild; gc != nil; {
		next := gc.NextSibling
		target.RemoveChild(gc)
		parent.InsertBefore(gc, target)
		gc = next
	}
	parent.RemoveChild(target)
	return true
}

// unwrapEngineAnchors replaces each engine anchor under n with its children.
func unwrapEngineAnchors(n *html.Node) int {
	removed := 0
	c := n.FirstChild
	for c != nil {
		next := c.NextSibling
		if isEngineAnchor(c) {
			for gc := c.FirstChild; gc != nil; {
				gcNext := gc.NextSibling
				c.RemoveChild(gc)
				n.InsertBefore(gc, c)
				gc = gcNext
			}
			n.RemoveChild(c)
			removed++
		} else {
			removed += unwrapEngineAnchors(c)
		}
		c = next
	}
	return removed
}
