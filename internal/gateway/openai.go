// Package gateway implements chat.Client against the real completion
// providers. DeepSeek and other OpenAI-compatible APIs share the OpenAI
// client via a base URL override.
package gateway

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/ChamsBouzaiene/causette/internal/chat"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// NoContentReply is returned when the upstream response carries no
// content at all. Fixed text, same as the original client-facing string.
const NoContentReply = "Réponse indisponible."

// OpenAIClient implements chat.Client by calling the OpenAI SDK directly.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client for OpenAI or any compatible API
// (DeepSeek, Kimi, local servers) selected through baseURL.
func NewOpenAIClient(apiKey, modelName, baseURL string) (*OpenAIClient, error) {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  modelName,
	}, nil
}

// Complete implements chat.Client. Streaming mode consumes the upstream
// stream and concatenates every content fragment in arrival order; only
// the final text is returned, no partial results surface to the caller.
func (c *OpenAIClient) Complete(ctx context.Context, req chat.Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", chat.ErrEmptyMessages
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, t := range req.Messages {
		if err := t.Validate(); err != nil {
			return "", err
		}
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Content,
		})
	}

	if req.Stream {
		return c.completeStream(ctx, model, msgs)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	})
	if err != nil {
		return "", chat.WrapUpstream(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return NoContentReply, nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) completeStream(ctx context.Context, model string, msgs []openai.ChatCompletionMessage) (string, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Stream:   true,
	})
	if err != nil {
		return "", chat.WrapUpstream(err)
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		response, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Some SDK paths wrap EOF instead of returning it as-is.
			if strings.Contains(err.Error(), "EOF") {
				break
			}
			return "", chat.WrapUpstream(err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		reply.WriteString(response.Choices[0].Delta.Content)
	}

	return reply.String(), nil
}
