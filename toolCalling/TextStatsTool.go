package toolCalling

import (
	"context"
	"fmt"
	"strings"

	"modelrelay/llm"

	"github.com/mitchellh/mapstructure"
)

// TextStatsTool measures a piece of text: characters, words, lines and an
// estimated BPE token count.
type TextStatsTool struct{}

func NewTextStatsTool() *TextStatsTool {
	return &TextStatsTool{}
}

func (h *TextStatsTool) Name() string {
	return "TextStatsTool"
}

func (h *TextStatsTool) Description() string {
	return "Computes statistics for a text: character count, word count, line count and an estimated LLM token count."
}

func (h *TextStatsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"text": map[string]interface{}{
				"type":        "string",
				"description": "The text to analyze.(required)",
			},
		},
		"required": []string{"text"},
	}
}

type textStatsArgs struct {
	Text string `mapstructure:"text"`
}

func (h *TextStatsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var a textStatsArgs
	if err := mapstructure.Decode(args, &a); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Text == "" {
		return nil, fmt.Errorf("missing 'text' parameter")
	}

	lines := strings.Count(a.Text, "\n") + 1
	return map[string]interface{}{
		"chars":  len([]rune(a.Text)),
		"words":  len(strings.Fields(a.Text)),
		"lines":  lines,
		"tokens": llm.CountTokens(a.Text),
	}, nil
}
