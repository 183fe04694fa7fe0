// Package history is the durable record of discussions and the
// reconciliation logic that decides where a completed exchange belongs.
package history

import (
	"time"

	"github.com/ChamsBouzaiene/causette/internal/chat"
)

// DefaultSystemPrompt is the fixed system prompt the browser client sends
// on page load. An exchange whose only user content equals this text is a
// greeting, not a real question, and is never persisted.
const DefaultSystemPrompt = "Réponds-moi en français, sois concis et limite chaque explication à une seule phrase simple. Donne-moi uniquement l'essentiel, sans détails inutiles."

// Discussion is a persisted, identifiable conversation transcript.
// ID is empty on records migrated from the legacy shape.
type Discussion struct {
	ID       string      `json:"id,omitempty"`
	Date     time.Time   `json:"date"`
	Messages []chat.Turn `json:"messages"`
}

// record is the on-disk shape. Newer records carry id/date/messages;
// legacy records are a single {user, bot} pair, sometimes with a
// "timestamp" field instead of "date".
type record struct {
	ID        string      `json:"id,omitempty"`
	Date      time.Time   `json:"date,omitempty"`
	Timestamp time.Time   `json:"timestamp,omitempty"`
	Messages  []chat.Turn `json:"messages,omitempty"`
	User      string      `json:"user,omitempty"`
	Bot       string      `json:"bot,omitempty"`
}

// toModern normalizes one raw record into the modern Discussion shape.
// The second return is false for records that carry neither messages nor
// a legacy pair and should be discarded. Internal logic only ever sees
// the modern shape; this is the sole place the legacy variant exists.
func toModern(r record) (Discussion, bool) {
	date := r.Date
	if date.IsZero() {
		date = r.Timestamp
	}

	if len(r.Messages) > 0 {
		return Discussion{ID: r.ID, Date: date, Messages: r.Messages}, true
	}

	if r.User != "" || r.Bot != "" {
		return Discussion{
			ID:   r.ID,
			Date: date,
			Messages: []chat.Turn{
				{Role: chat.RoleUser, Content: r.User},
				{Role: chat.RoleAssistant, Content: r.Bot},
			},
		}, true
	}

	return Discussion{}, false
}

// hasRealQuestion reports whether the turns contain at least one user
// turn whose content is not the fixed default system prompt. Discussions
// where the user "only greeted, never asked" are filtered out on the
// creation paths.
func hasRealQuestion(turns []chat.Turn) bool {
	for _, t := range turns {
		if t.Role == chat.RoleUser && t.Content != DefaultSystemPrompt {
			return true
		}
	}
	return false
}

// lastUserTurn returns the most recent user turn, nil if there is none.
func lastUserTurn(turns []chat.Turn) *chat.Turn {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == chat.RoleUser {
			t := turns[i]
			return &t
		}
	}
	return nil
}
