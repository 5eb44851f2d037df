// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package inject

import (
	"strings"
)

// MostRelevantParagraph picks the fallback paragraph for a non-mandatory
// link: the paragraph whose text shares the most terms with the target's
// keywords. Paragraphs already carrying an engine link are skipped because a
// rewrite replaces the paragraph's text wholesale and would erase them. Ties
// go to the earlier paragraph. Returns -1 when no paragraph is usable.
func (d *Document) MostRelevantParagraph(terms []string) int {
	termSet := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		for _, w := range strings.Fields(strings.ToLower(t)) {
			termSet[w] = struct{}{}
		}
	}

	best, bestScore := -1, -1
	for i, p := range d.paras {
		if d.floorSet && i < d.floorPara {
			continue
		}
		if engineLinkCount(p) > 0 {
			continue
		}
		score := 0
		for _, w := range strings.Fields(strings.ToLower(nodeText(p))) {
			w = strings.Trim(w, ".,;:!?\"'()")
			if _, ok := termSet[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// FallbackParagraph resolves where the generative fallback should rewrite:
// the first paragraph for mandatory links, otherwise the most keyword
// relevant paragraph.
func (d *Document) FallbackParagraph(mandatory bool, terms []string) int {
	if d.ParagraphCount() == 0 {
		return -1
	}
	if mandatory {
		return 0
	}
	return d.MostRelevantParagraph(terms)
}
