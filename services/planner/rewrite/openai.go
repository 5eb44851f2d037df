package rewrite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultCallTimeout = 30 * time.Second

	// defaultCallsPerSecond keeps a full-scope injection pass under the
	// OpenAI tier-1 request ceiling.
	defaultCallsPerSecond = 2
)

type OpenAIRewriter struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	timeout time.Duration
}

func NewOpenAIRewriter() (*OpenAIRewriter, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = defaultModel
		slog.Warn("OPENAI_MODEL not set, defaulting", "model", defaultModel)
	}
	slog.Info("Initializing OpenAI rewrite client", "model", model)
	return &OpenAIRewriter{
		client:  openai.NewClient(apiKey),
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(defaultCallsPerSecond), 1),
		timeout: defaultCallTimeout,
	}, nil
}

// WithTimeout overrides the per-call timeout. Zero restores the default.
func (o *OpenAIRewriter) WithTimeout(d time.Duration) *OpenAIRewriter {
	if d <= 0 {
		d = defaultCallTimeout
	}
	o.timeout = d
	return o
}

func (o *OpenAIRewriter) complete(ctx context.Context, system, user string) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// RewriteParagraph implements the Rewriter interface.
func (o *OpenAIRewriter) RewriteParagraph(ctx context.Context, paragraph, anchorText, targetDescription string) (string, error) {
	slog.Debug("Rewriting paragraph via OpenAI", "anchor", anchorText)
	system := "You are an editor for e-commerce collection pages. " +
		"Rewrite the paragraph you are given so that it naturally contains the requested phrase. " +
		"Preserve the meaning and approximate length. Return only the rewritten paragraph text, no markup."
	user := fmt.Sprintf(
		"Paragraph:\n%s\n\nWeave in this exact phrase so it can become a link: %q\nThe link will point at: %s",
		paragraph, anchorText, targetDescription)

	out, err := o.complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	if !strings.Contains(strings.ToLower(out), strings.ToLower(anchorText)) {
		return "", fmt.Errorf("rewrite did not contain the anchor text %q", anchorText)
	}
	return out, nil
}

// GenerateNaturalPhrases implements the Rewriter interface.
func (o *OpenAIRewriter) GenerateNaturalPhrases(ctx context.Context, targetDescription string, n int) ([]string, error) {
	if n <= 0 {
		n = 3
	}
	slog.Debug("Generating natural anchor phrases via OpenAI", "n", n)
	system := "You write natural anchor text for internal links on e-commerce collection pages. " +
		"Respond with one phrase per line, no numbering, no quotes."
	user := fmt.Sprintf("Write %d short natural anchor phrases (3-6 words) for a link to: %s", n, targetDescription)

	out, err := o.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}
	phrases := splitPhrases(out, n)
	if len(phrases) == 0 {
		return nil, fmt.Errorf("OpenAI returned no usable phrases")
	}
	return phrases, nil
}

// splitPhrases parses a newline-separated phrase list, tolerating the
// numbering and bullets models add despite instructions.
func splitPhrases(raw string, limit int) []string {
	var phrases []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. )")
		line = strings.Trim(line, `"`)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		phrases = append(phrases, line)
		if len(phrases) == limit {
			break
		}
	}
	return phrases
}
