package chat

import (
	"context"
	"fmt"
)

// Role identifies the sender of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in a conversation. Turns are never
// mutated after creation; windows and stores copy them by value.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Validate checks if the Turn carries a known role.
func (t Turn) Validate() error {
	switch t.Role {
	case RoleSystem, RoleUser, RoleAssistant:
		return nil
	default:
		return fmt.Errorf("invalid turn role: %s", t.Role)
	}
}

// Request is what the completion gateway needs for one call.
type Request struct {
	Model    string // empty means the provider default
	Messages []Turn
	Stream   bool // stream upstream, but still return only the final text
}

// Client abstracts the completion SDK (DeepSeek, OpenAI, Anthropic, ...).
// Implementations live in internal/gateway.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
