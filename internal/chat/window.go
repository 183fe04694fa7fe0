// Package chat holds the provider-agnostic conversation model: turns,
// the completion client contract, and the rolling context window that
// bounds what is sent with each request.
package chat

import "context"

// Defaults for the context window. A window keeps at most MaxRecent live
// turns; overflow folds the oldest SummaryChunk turns into the rolling
// summary.
const (
	DefaultMaxRecent    = 15
	DefaultSummaryChunk = 10
)

// summaryPrefix labels recalled context so the model can tell it apart
// from live turns.
const summaryPrefix = "Contexte précédent : "

// Window maintains the bounded set of recent turns plus a rolling summary
// of evicted older turns. It holds no durable state: a fresh Window starts
// empty, and resuming a stored discussion goes through Seed instead.
// A Window is not safe for concurrent use.
type Window struct {
	MaxRecent    int
	SummaryChunk int

	summarizer Summarizer
	recent     []Turn
	summary    string
}

// NewWindow creates an empty window using the given summarizer for
// eviction. A nil summarizer falls back to ConcatSummarizer.
func NewWindow(s Summarizer) *Window {
	if s == nil {
		s = ConcatSummarizer{}
	}
	return &Window{
		MaxRecent:    DefaultMaxRecent,
		SummaryChunk: DefaultSummaryChunk,
		summarizer:   s,
	}
}

// Append adds a turn to the recent set. Eviction only happens in Manage,
// so callers control when summarization cost is paid.
func (w *Window) Append(t Turn) {
	w.recent = append(w.recent, t)
}

// Seed replaces the window content with a stored discussion's turns,
// bypassing the summarizer. The previous summary is discarded: the seeded
// turns are the full context being resumed.
func (w *Window) Seed(turns []Turn) {
	w.recent = append([]Turn(nil), turns...)
	w.summary = ""
}

// BuildContext produces the message list to send with the next request:
// the labeled summary as a leading system turn (when non-empty), then the
// recent turns. The result is a fresh slice; the output is fully
// determined by the current (summary, recent) pair.
func (w *Window) BuildContext() []Turn {
	out := make([]Turn, 0, len(w.recent)+1)
	if w.summary != "" {
		out = append(out, Turn{Role: RoleSystem, Content: summaryPrefix + w.summary})
	}
	out = append(out, w.recent...)
	return out
}

// Manage enforces the recency bound. Called after each assistant reply is
// recorded: when the recent set exceeds MaxRecent, the oldest SummaryChunk
// turns are folded into a new summary and dropped. The new summary
// replaces the old one wholesale, matching the single-slot summary model.
func (w *Window) Manage(ctx context.Context) error {
	if len(w.recent) <= w.MaxRecent {
		return nil
	}
	chunk := w.SummaryChunk
	if chunk > len(w.recent) {
		chunk = len(w.recent)
	}
	summary, err := w.summarizer.Summarize(ctx, w.recent[:chunk])
	if err != nil {
		return err
	}
	w.summary = summary
	w.recent = append([]Turn(nil), w.recent[chunk:]...)
	return nil
}

// Recent returns a copy of the live turns.
func (w *Window) Recent() []Turn {
	return append([]Turn(nil), w.recent...)
}

// Summary returns the current rolling summary, empty if nothing has been
// evicted yet.
func (w *Window) Summary() string {
	return w.summary
}
