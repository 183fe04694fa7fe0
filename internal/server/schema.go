package server

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// chatRequestSchema constrains the /api/chat payload before it reaches
// the gateway: a non-empty message list with known roles, plus the
// optional routing hints.
const chatRequestSchema = `{
	"type": "object",
	"required": ["messages"],
	"properties": {
		"model": {"type": "string"},
		"stream": {"type": "boolean"},
		"discussionId": {"type": "string"},
		"selectedHistoryIdx": {"type": "integer", "minimum": 0},
		"messages": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["role", "content"],
				"properties": {
					"role": {"enum": ["system", "user", "assistant"]},
					"content": {"type": "string"}
				}
			}
		}
	}
}`

var chatSchema = gojsonschema.NewStringLoader(chatRequestSchema)

// validateChatRequest checks the raw request body against the schema and
// returns a single joined message describing every violation.
func validateChatRequest(body []byte) error {
	result, err := gojsonschema.Validate(chatSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var errorMsgs []string
		for _, verr := range result.Errors() {
			errorMsgs = append(errorMsgs, verr.String())
		}
		return fmt.Errorf("invalid chat request: %s", strings.Join(errorMsgs, "; "))
	}
	return nil
}
