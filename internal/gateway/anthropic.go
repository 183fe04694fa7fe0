package gateway

import (
	"context"
	"strings"

	"github.com/ChamsBouzaiene/causette/internal/chat"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const anthropicMaxTokens = 4096

// AnthropicClient implements chat.Client by calling the Anthropic SDK
// directly.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a new Anthropic-backed client.
func NewAnthropicClient(apiKey, modelName string) (*AnthropicClient, error) {
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey),
		model:  modelName,
	}, nil
}

// Complete implements chat.Client.
func (c *AnthropicClient) Complete(ctx context.Context, req chat.Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", chat.ErrEmptyMessages
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	// Anthropic carries system text out of band, not as a message.
	var systemParts []anthropic.MessageSystemPart
	var msgs []anthropic.Message
	for _, t := range req.Messages {
		if err := t.Validate(); err != nil {
			return "", err
		}
		switch t.Role {
		case chat.RoleSystem:
			systemParts = append(systemParts, anthropic.MessageSystemPart{
				Type: "text",
				Text: t.Content,
			})
		case chat.RoleUser:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(t.Content)},
			})
		case chat.RoleAssistant:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(t.Content)},
			})
		}
	}

	apiReq := anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		Messages:  msgs,
		MaxTokens: anthropicMaxTokens,
	}
	if len(systemParts) > 0 {
		apiReq.MultiSystem = systemParts
	}

	if req.Stream {
		return c.completeStream(ctx, apiReq)
	}

	resp, err := c.client.CreateMessages(ctx, apiReq)
	if err != nil {
		return "", chat.WrapUpstream(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text.WriteString(*block.Text)
		}
	}
	if text.Len() == 0 {
		return NoContentReply, nil
	}
	return text.String(), nil
}

func (c *AnthropicClient) completeStream(ctx context.Context, apiReq anthropic.MessagesRequest) (string, error) {
	var reply strings.Builder
	_, err := c.client.CreateMessagesStream(ctx, anthropic.MessagesStreamRequest{
		MessagesRequest: apiReq,
		OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
			if data.Delta.Text != nil {
				reply.WriteString(*data.Delta.Text)
			}
		},
	})
	if err != nil {
		return "", chat.WrapUpstream(err)
	}
	return reply.String(), nil
}
