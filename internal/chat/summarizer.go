package chat

import (
	"context"
	"strings"
)

// Summarizer condenses a slice of evicted turns into a single summary
// string. Kept as a capability so the placeholder strategy can be swapped
// for a model-backed one without touching the window's eviction policy.
type Summarizer interface {
	Summarize(ctx context.Context, turns []Turn) (string, error)
}

// ConcatSummarizer is the placeholder strategy: it joins "role: content"
// pairs with " | ". No semantic compression, but deterministic and free.
type ConcatSummarizer struct{}

func (ConcatSummarizer) Summarize(_ context.Context, turns []Turn) (string, error) {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, string(t.Role)+": "+t.Content)
	}
	return strings.Join(parts, " | "), nil
}

const summarizeSystem = `Tu compresses l'historique d'une conversation. Conserve les faits, les décisions et les questions ouvertes. Omets les politesses.`

// LLMSummarizer produces a model-backed summary through the completion
// gateway. Falls back to ConcatSummarizer when the upstream call fails,
// so eviction never blocks on provider availability.
type LLMSummarizer struct {
	Client Client
	Model  string
}

func (s LLMSummarizer) Summarize(ctx context.Context, turns []Turn) (string, error) {
	msgs := []Turn{
		{Role: RoleSystem, Content: summarizeSystem},
		{Role: RoleUser, Content: "Résume l'historique suivant en quelques phrases :\n\n" + RenderForSummary(turns)},
	}
	out, err := s.Client.Complete(ctx, Request{Model: s.Model, Messages: msgs})
	if err != nil {
		return ConcatSummarizer{}.Summarize(ctx, turns)
	}
	return strings.TrimSpace(out), nil
}

// RenderForSummary renders turns as plain text for summarization prompts.
func RenderForSummary(ms []Turn) string {
	var b strings.Builder
	for _, m := range ms {
		b.WriteString("[" + string(m.Role) + "] ")
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}
