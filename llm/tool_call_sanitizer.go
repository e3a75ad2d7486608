package llm

// SanitizeToolCallMessages repairs a caller-supplied message history so the
// completion endpoint accepts it: tool results whose call ID was never issued
// by a preceding assistant message are dropped, and user/system messages
// stuck between an assistant tool-call message and its results are deferred
// until after the tool block (the API requires results to follow the call
// directly). Histories that already respect the protocol pass through
// unchanged, in order.
func SanitizeToolCallMessages(messages []Message) []Message {
	if len(messages) == 0 {
		return messages
	}
	allowed := map[string]bool{}
	out := make([]Message, 0, len(messages))
	var deferred []Message
	pendingToolCalls := false
	for _, m := range messages {
		if m.Role == RoleAssistant {
			if len(deferred) > 0 {
				out = append(out, deferred...)
				deferred = nil
			}
			for _, tc := range m.ToolCalls {
				if tc.ID != "" {
					allowed[tc.ID] = true
				}
			}
			pendingToolCalls = len(m.ToolCalls) > 0
			out = append(out, m)
			continue
		}
		if m.Role == RoleTool {
			if m.ToolCallID != "" && allowed[m.ToolCallID] {
				out = append(out, m)
			}
			continue
		}
		// user / system message
		if pendingToolCalls {
			deferred = append(deferred, m)
		} else {
			out = append(out, m)
		}
	}
	if len(deferred) > 0 {
		out = append(out, deferred...)
	}
	return out
}
