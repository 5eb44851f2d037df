package rewrite

import (
	"context"
	"strings"
)

// TemplateRewriter is the no-API fallback backend. It appends a templated
// sentence carrying the anchor text instead of rewriting the paragraph, and
// derives phrase candidates from the target description. Placement quality is
// lower than the OpenAI backend but the output is deterministic and free,
// which suits local development and CI.
type TemplateRewriter struct{}

func NewTemplateRewriter() *TemplateRewriter {
	return &TemplateRewriter{}
}

// RewriteParagraph implements the Rewriter interface.
func (t *TemplateRewriter) RewriteParagraph(_ context.Context, paragraph, anchorText, _ string) (string, error) {
	paragraph = strings.TrimSpace(paragraph)
	if paragraph != "" && !strings.HasSuffix(paragraph, ".") &&
		!strings.HasSuffix(paragraph, "!") && !strings.HasSuffix(paragraph, "?") {
		paragraph += "."
	}
	sentence := "For a closer look, browse " + anchorText + "."
	if paragraph == "" {
		return sentence, nil
	}
	return paragraph + " " + sentence, nil
}

// GenerateNaturalPhrases implements the Rewriter interface. The description
// leads with the target's primary keyword, so templated phrases around it
// read acceptably in collection copy.
func (t *TemplateRewriter) GenerateNaturalPhrases(_ context.Context, targetDescription string, n int) ([]string, error) {
	if n <= 0 {
		n = 3
	}
	subject := targetDescription
	if i := strings.IndexAny(subject, ".;("); i > 0 {
		subject = subject[:i]
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "this collection"
	}

	candidates := []string{
		"our " + subject + " range",
		"the full " + subject + " collection",
		"more " + subject + " options",
	}
	if n < len(candidates) {
		candidates = candidates[:n]
	}
	return candidates, nil
}
