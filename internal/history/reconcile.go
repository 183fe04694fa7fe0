package history

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ChamsBouzaiene/causette/internal/chat"
)

// CommitInput carries one completed exchange plus the routing hints the
// client sent with it.
type CommitInput struct {
	// DiscussionID is the opaque id minted client-side at "new
	// discussion" time. Primary addressing mechanism.
	DiscussionID string
	// SelectedIdx is the legacy positional fallback. Advisory only: it
	// is re-resolved against the store's current list at commit time and
	// ignored when out of range.
	SelectedIdx *int
	// Outgoing is the full message list the client sent upstream; the
	// latest user turn is extracted from it.
	Outgoing []chat.Turn
	// Reply is the assistant text produced for this exchange.
	Reply string
}

// Outcome says what the reconciler did with an exchange.
type Outcome int

const (
	// OutcomeAppended means the turn pair was added to an existing
	// discussion.
	OutcomeAppended Outcome = iota
	// OutcomeCreated means a new discussion was materialized.
	OutcomeCreated
	// OutcomeDiscarded means the exchange was only echoed to the caller,
	// never persisted (greeting-only, or no user turn to pair).
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAppended:
		return "appended"
	case OutcomeCreated:
		return "created"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Result reports the outcome and, for appended/created, which discussion
// the exchange landed in.
type Result struct {
	Outcome      Outcome
	DiscussionID string
}

// Reconciler matches a completed exchange to a discussion and commits it
// exactly once. It shares the store's lock, so the whole decide-and-write
// sequence is atomic with respect to other mutations.
type Reconciler struct {
	store *Store
	log   zerolog.Logger
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(store *Store, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, log: log}
}

// Commit decides which discussion the exchange belongs to and persists
// it. The branch order is a deliberate priority, first match wins:
//
//  1. DiscussionID present: append to that discussion, or — when the id
//     is unknown — create it, but only if the outgoing list carries a
//     real question (not just the default system prompt).
//  2. SelectedIdx valid against the current list: append there. No
//     real-question filter on this path; it mirrors the historical
//     behavior and is kept for compatibility only.
//  3. Neither: create a new discussion with a freshly minted id, again
//     behind the real-question filter.
//
// A pure-greeting exchange is never persisted; the reply is only echoed
// back for display.
func (r *Reconciler) Commit(in CommitInput) Result {
	user := lastUserTurn(in.Outgoing)
	if user == nil {
		// Nothing to pair the reply with.
		return Result{Outcome: OutcomeDiscarded}
	}
	pair := []chat.Turn{
		*user,
		{Role: chat.RoleAssistant, Content: in.Reply},
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if in.DiscussionID != "" {
		if i := r.store.findLocked(in.DiscussionID); i >= 0 {
			r.store.appendAtLocked(i, pair)
			return Result{Outcome: OutcomeAppended, DiscussionID: in.DiscussionID}
		}
		if !hasRealQuestion(in.Outgoing) {
			return Result{Outcome: OutcomeDiscarded}
		}
		// Brand-new discussion under a client-minted id: seed it with
		// the full outgoing context, not just the last pair.
		r.store.createLocked(Discussion{
			ID:       in.DiscussionID,
			Date:     time.Now(),
			Messages: append(append([]chat.Turn(nil), in.Outgoing...), pair[1]),
		})
		return Result{Outcome: OutcomeCreated, DiscussionID: in.DiscussionID}
	}

	if in.SelectedIdx != nil {
		idx := *in.SelectedIdx
		if idx >= 0 && idx < len(r.store.discussions) {
			r.log.Warn().
				Int("index", idx).
				Msg("positional discussion addressing is deprecated, send a discussionId")
			r.store.appendAtLocked(idx, pair)
			return Result{Outcome: OutcomeAppended, DiscussionID: r.store.discussions[idx].ID}
		}
		// Stale index, likely invalidated by a concurrent delete. Fall
		// through rather than guessing at a neighbor.
		r.log.Warn().Int("index", idx).Msg("stale discussion index ignored")
	}

	if !hasRealQuestion(in.Outgoing) {
		return Result{Outcome: OutcomeDiscarded}
	}
	id := uuid.NewString()
	r.store.createLocked(Discussion{
		ID:       id,
		Date:     time.Now(),
		Messages: append(append([]chat.Turn(nil), in.Outgoing...), pair[1]),
	})
	return Result{Outcome: OutcomeCreated, DiscussionID: id}
}
