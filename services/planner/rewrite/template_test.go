package rewrite

import (
	"context"
	"strings"
	"testing"
)

func TestTemplateRewriter_RewriteParagraph(t *testing.T) {
	r := NewTemplateRewriter()

	out, err := r.RewriteParagraph(context.Background(),
		"Grip is the first thing to fail on wet rock", "trail running shoes", "")
	if err != nil {
		t.Fatalf("RewriteParagraph: %v", err)
	}
	if !strings.Contains(out, "trail running shoes") {
		t.Errorf("anchor text missing from rewrite: %q", out)
	}
	if !strings.Contains(out, "wet rock.") {
		t.Errorf("original sentence should be terminated and preserved: %q", out)
	}

	out, err = r.RewriteParagraph(context.Background(), "", "wool socks", "")
	if err != nil {
		t.Fatalf("RewriteParagraph empty: %v", err)
	}
	if !strings.Contains(out, "wool socks") {
		t.Errorf("empty paragraph rewrite missing anchor: %q", out)
	}
}

func TestTemplateRewriter_GenerateNaturalPhrases(t *testing.T) {
	r := NewTemplateRewriter()

	phrases, err := r.GenerateNaturalPhrases(context.Background(),
		"waterproof hiking boots; best sellers for wet trails", 2)
	if err != nil {
		t.Fatalf("GenerateNaturalPhrases: %v", err)
	}
	if len(phrases) != 2 {
		t.Fatalf("expected 2 phrases, got %d", len(phrases))
	}
	for _, p := range phrases {
		if !strings.Contains(p, "waterproof hiking boots") {
			t.Errorf("phrase %q should build on the keyword before the separator", p)
		}
	}

	phrases, err = r.GenerateNaturalPhrases(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("GenerateNaturalPhrases defaults: %v", err)
	}
	if len(phrases) != 3 {
		t.Errorf("expected 3 default phrases, got %d", len(phrases))
	}
}
