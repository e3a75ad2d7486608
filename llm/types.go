package llm

// Role constants — provider-agnostic.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall represents a single function call requested by the model.
// Arguments is the raw JSON string exactly as the model produced it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is the universal chat message used throughout the project.
// One Message is one conversation turn.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolDef describes a function tool that can be passed to the model.
type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Payload is the full request for one round trip with the completion
// endpoint. Optional knobs are pointers: nil means the key is omitted from
// the wire request entirely, never sent as null or a placeholder.
type Payload struct {
	Model          string
	Messages       []Message
	Tools          []ToolDef
	Temperature    *float64
	MaxTokens      *int64
	ResponseFormat map[string]interface{}
}

// Usage carries token consumption from a single LLM API call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Add accumulates usage from another API call. Zero fields (absent usage
// blocks) contribute nothing; totals never decrease.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Response is the provider-agnostic result of a chat completion call.
type Response struct {
	Content   string     // assistant text content
	ToolCalls []ToolCall // tool calls requested by the model
	Usage     Usage      // token usage for this call
}
