package driver

import (
	"context"
	"time"

	"modelrelay/llm"
)

// Request is the normalized completion request handed to the driver by the
// orchestration layer. Optional knobs are pointers or nil-able maps: nil
// means unset and the corresponding wire key is omitted entirely.
type Request struct {
	APIKey         string
	Model          string
	SystemPrompt   string
	Context        string
	Messages       []llm.Message
	Tools          []ToolSpec
	Temperature    *float64
	MaxTokens      *int64
	ResponseFormat map[string]interface{}
}

// ToolSpec is a capability the model may invoke. ID doubles as the wire-level
// function name and must be unique within a request. Params are fixed default
// arguments merged under the model-supplied arguments on every call.
type ToolSpec struct {
	ID          string                 `json:"id"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
	Params      map[string]interface{} `json:"params,omitempty"`
}

// ToolCallRecord documents one successfully executed tool invocation.
type ToolCallRecord struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
	StartTime time.Time              `json:"startTime"`
	EndTime   time.Time              `json:"endTime"`
	Duration  time.Duration          `json:"duration"`
	Result    interface{}            `json:"result"`
}

// Response is the normalized result of one driver run.
type Response struct {
	Content     string           `json:"content"`
	Model       string           `json:"model"`
	Tokens      llm.Usage        `json:"tokens"`
	ToolCalls   []ToolCallRecord `json:"toolCalls,omitempty"`
	ToolResults []interface{}    `json:"toolResults,omitempty"`
}

// ToolTiming is optional execution timing reported by an executor.
type ToolTiming struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// ToolResult is what a tool executor reports back for one invocation.
// Success=false means the tool ran but declined or failed on its own terms;
// the invocation is then dropped without aborting the batch.
type ToolResult struct {
	Success bool
	Output  interface{}
	Timing  *ToolTiming
}

// ToolExecutor dispatches a named tool with merged arguments. A returned
// error means the executor itself blew up; per-tool failure is reported via
// ToolResult.Success instead.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error)
}

// ClientFactory builds (or fetches) the LLM client for a bearer API key.
type ClientFactory func(apiKey string) llm.Client
