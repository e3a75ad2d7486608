package llm

// Turn is an atomic conversation unit: either a single message, or an
// assistant message with tool calls together with all of its tool results.
// A turn must never be split when a message history is inspected or pruned.
type Turn struct {
	Messages []Message `json:"messages"`
}

// Flatten returns all messages in the turn as a flat slice.
func (t Turn) Flatten() []Message {
	return t.Messages
}

// Size returns the estimated token count of the turn.
func (t Turn) Size() int {
	return CountTurnTokens(t)
}

// Role returns the role of the first message in the turn (the "primary" role).
func (t Turn) Role() string {
	if len(t.Messages) == 0 {
		return ""
	}
	return t.Messages[0].Role
}

// HasToolCalls reports whether the turn opens with an assistant message that
// requested tool calls.
func (t Turn) HasToolCalls() bool {
	if len(t.Messages) == 0 {
		return false
	}
	return len(t.Messages[0].ToolCalls) > 0
}

// IsComplete reports whether every tool call in the turn has a matching tool
// result. Turns without tool calls are always complete.
func (t Turn) IsComplete() bool {
	if len(t.Messages) == 0 {
		return true
	}
	first := t.Messages[0]
	if first.Role != RoleAssistant || len(first.ToolCalls) == 0 {
		return true
	}
	needed := map[string]bool{}
	for _, tc := range first.ToolCalls {
		if tc.ID != "" {
			needed[tc.ID] = true
		}
	}
	for _, m := range t.Messages[1:] {
		if m.Role == RoleTool && m.ToolCallID != "" {
			delete(needed, m.ToolCallID)
		}
	}
	return len(needed) == 0
}

// FlattenTurns converts a slice of turns back to a flat message slice.
func FlattenTurns(turns []Turn) []Message {
	total := 0
	for _, t := range turns {
		total += len(t.Messages)
	}
	out := make([]Message, 0, total)
	for _, t := range turns {
		out = append(out, t.Messages...)
	}
	return out
}

// BuildTurns groups a flat message slice into turns. An assistant message
// with tool calls starts a turn that absorbs the subsequent tool result
// messages matching its call IDs; everything else is a single-message turn.
func BuildTurns(messages []Message) []Turn {
	if len(messages) == 0 {
		return nil
	}
	var turns []Turn
	i := 0
	for i < len(messages) {
		m := messages[i]
		if m.Role == RoleAssistant && len(m.ToolCalls) > 0 {
			needed := map[string]bool{}
			for _, tc := range m.ToolCalls {
				if tc.ID != "" {
					needed[tc.ID] = true
				}
			}
			turn := Turn{Messages: []Message{m}}
			j := i + 1
			for j < len(messages) && len(needed) > 0 {
				if messages[j].Role == RoleTool && messages[j].ToolCallID != "" && needed[messages[j].ToolCallID] {
					turn.Messages = append(turn.Messages, messages[j])
					delete(needed, messages[j].ToolCallID)
					j++
					continue
				}
				// Unrelated message — the tool block is over.
				break
			}
			turns = append(turns, turn)
			i = j
		} else {
			turns = append(turns, Turn{Messages: []Message{m}})
			i++
		}
	}
	return turns
}
