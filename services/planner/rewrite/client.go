// Package rewrite wraps the content-rewriting service the injector falls
// back to when rule-based anchor placement cannot succeed.
package rewrite

import "context"

// Rewriter is the standard interface for any rewrite backend.
type Rewriter interface {
	// RewriteParagraph rewrites one paragraph so that it naturally contains
	// anchorText as a link to the described target, preserving meaning and
	// approximate length. The returned text is plain paragraph text with the
	// anchor text present verbatim; the injector wraps it in the tag.
	RewriteParagraph(ctx context.Context, paragraph, anchorText, targetDescription string) (string, error)

	// GenerateNaturalPhrases produces n natural-language anchor phrase
	// candidates for the described target page.
	GenerateNaturalPhrases(ctx context.Context, targetDescription string, n int) ([]string, error)
}
