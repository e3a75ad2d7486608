package Web

import (
	"modelrelay/driver"
	"modelrelay/llm"

	openai "github.com/sashabaranov/go-openai"
)

// CompletionRequest is the inbound wire format for the normalized completion
// endpoint. Message and tool shapes reuse the community OpenAI wire structs
// so existing OpenAI-compatible callers need no translation layer.
type CompletionRequest struct {
	Model          string                            `json:"model,omitempty"`
	SystemPrompt   string                            `json:"system_prompt,omitempty"`
	Context        string                            `json:"context,omitempty"`
	Messages       []openai.ChatCompletionMessage    `json:"messages" binding:"required"`
	Tools          []openai.Tool                     `json:"tools,omitempty"`
	ToolParams     map[string]map[string]interface{} `json:"tool_params,omitempty"`
	Temperature    *float64                          `json:"temperature,omitempty"`
	MaxTokens      *int64                            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]interface{}            `json:"response_format,omitempty"`
}

// ToDriverRequest maps the wire request onto the driver's normalized form.
// Caller message histories are sanitized (orphan tool results dropped,
// misplaced user messages deferred) before the driver sees them; the driver
// itself takes the history verbatim.
func (cr *CompletionRequest) ToDriverRequest(apiKey string) driver.Request {
	msgs := make([]llm.Message, 0, len(cr.Messages))
	for _, m := range cr.Messages {
		msg := llm.Message{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		msgs = append(msgs, msg)
	}

	var specs []driver.ToolSpec
	for _, t := range cr.Tools {
		if t.Function == nil {
			continue
		}
		params, _ := t.Function.Parameters.(map[string]interface{})
		specs = append(specs, driver.ToolSpec{
			ID:          t.Function.Name,
			Description: t.Function.Description,
			Parameters:  params,
			Params:      cr.ToolParams[t.Function.Name],
		})
	}

	return driver.Request{
		APIKey:         apiKey,
		Model:          cr.Model,
		SystemPrompt:   cr.SystemPrompt,
		Context:        cr.Context,
		Messages:       llm.SanitizeToolCallMessages(msgs),
		Tools:          specs,
		Temperature:    cr.Temperature,
		MaxTokens:      cr.MaxTokens,
		ResponseFormat: cr.ResponseFormat,
	}
}
