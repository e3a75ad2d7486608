package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"modelrelay/llm"

	"go.uber.org/zap"
)

// DefaultModel is used when a request does not name a model.
const DefaultModel = "gpt-4o-mini"

// maxIterations caps the total number of round trips per request. It is a
// safety bound against runaway agentic loops, not an error condition: when
// the cap is hit the driver returns whatever it has accumulated.
const maxIterations = 10

// ErrMissingAPIKey is returned before any network interaction when the
// request carries no bearer credential.
var ErrMissingAPIKey = errors.New("request is missing an API key")

// skip reasons for invocations that produce no record and no turns.
const (
	skipBadArguments  = "bad_arguments"
	skipUnknownTool   = "unknown_tool"
	skipExecutorError = "executor_error"
	skipToolFailure   = "tool_failure"
)

// Driver turns a normalized Request into zero or more round trips with an
// OpenAI-compatible completion endpoint, executing tool calls in between.
type Driver struct {
	clients  ClientFactory
	executor ToolExecutor
	logger   *zap.Logger
}

// NewDriver builds a driver. factory may be nil, in which case the shared
// per-key client pool is used. logger may be nil (logging disabled).
func NewDriver(factory ClientFactory, executor ToolExecutor, logger *zap.Logger) *Driver {
	if factory == nil {
		factory = llm.ForAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{clients: factory, executor: executor, logger: logger}
}

// loopState holds everything one ExecuteRequest invocation accumulates.
// It is owned by that invocation alone and never shared.
type loopState struct {
	messages []llm.Message
	content  string
	tokens   llm.Usage
	records  []ToolCallRecord
	results  []interface{}
}

// absorb folds one endpoint response into the state. Empty assistant text
// does not erase previously captured content; usage only ever grows.
func (st *loopState) absorb(resp llm.Response) {
	if resp.Content != "" {
		st.content = resp.Content
	}
	st.tokens.Add(resp.Usage)
}

// invocationOutcome is the typed result of processing a single tool call:
// either a record plus its two conversation turns, or a skip with a reason.
type invocationOutcome struct {
	skipped bool
	reason  string
	record  ToolCallRecord
	result  interface{}
	turns   [2]llm.Message
}

// ExecuteRequest is the driver's sole entry point. It performs the first
// round trip, then keeps dispatching tool calls and re-invoking the model
// until the model stops requesting tools or maxIterations round trips have
// been made. Remote-call failure is the single fatal path; every per-tool
// problem degrades to skipping that invocation.
func (d *Driver) ExecuteRequest(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return Response{}, ErrMissingAPIKey
	}

	cli := d.clients(req.APIKey)
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	st := &loopState{messages: AssembleMessages(req)}

	// The payload is built once and reused as the template for every round
	// trip; only Messages changes between iterations.
	payload := buildPayload(model, req)
	payload.Messages = st.messages

	resp, err := d.roundTrip(ctx, cli, payload)
	if err != nil {
		return Response{}, err
	}
	st.absorb(resp)

	for calls := 1; calls < maxIterations && len(resp.ToolCalls) > 0; calls++ {
		for _, call := range resp.ToolCalls {
			out := d.runInvocation(ctx, req.Tools, call)
			if out.skipped {
				continue
			}
			st.records = append(st.records, out.record)
			st.results = append(st.results, out.result)
			st.messages = append(st.messages, out.turns[0], out.turns[1])
		}

		payload.Messages = st.messages
		resp, err = d.roundTrip(ctx, cli, payload)
		if err != nil {
			return Response{}, err
		}
		st.absorb(resp)
	}

	return Response{
		Content:     st.content,
		Model:       model,
		Tokens:      st.tokens,
		ToolCalls:   st.records,
		ToolResults: st.results,
	}, nil
}

// roundTrip performs one blocking exchange with the completion endpoint.
func (d *Driver) roundTrip(ctx context.Context, cli llm.Client, payload llm.Payload) (llm.Response, error) {
	if ce := d.logger.Check(zap.DebugLevel, "chat round trip"); ce != nil {
		ce.Write(
			zap.String("model", payload.Model),
			zap.Int("messages", len(payload.Messages)),
			zap.Int("turns", len(llm.BuildTurns(payload.Messages))),
			zap.Int("prompt_tokens_est", llm.CountMessagesTokens(payload.Messages)),
		)
	}
	resp, err := cli.Chat(ctx, payload)
	if err != nil {
		d.logger.Error("chat completion call failed",
			zap.String("model", payload.Model), zap.Error(err))
		return llm.Response{}, fmt.Errorf("chat completion: %w", err)
	}
	return resp, nil
}

// runInvocation processes a single model-issued tool call. Every failure
// mode maps to a skip outcome; only a successful execution yields a record
// and its assistant/tool turn pair.
func (d *Driver) runInvocation(ctx context.Context, specs []ToolSpec, call llm.ToolCall) invocationOutcome {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		d.logger.Warn("tool call arguments unparseable",
			zap.String("tool", call.Name), zap.Error(err))
		return invocationOutcome{skipped: true, reason: skipBadArguments}
	}

	spec, ok := findSpec(specs, call.Name)
	if !ok {
		// Not an error: the model may invent names or target tools owned by
		// another layer. The call simply produces nothing.
		return invocationOutcome{skipped: true, reason: skipUnknownTool}
	}

	merged := mergeArgs(spec.Params, args)

	started := time.Now()
	res, err := d.executor.ExecuteTool(ctx, call.Name, merged)
	finished := time.Now()
	if err != nil {
		d.logger.Warn("tool execution failed",
			zap.String("tool", call.Name), zap.Error(err))
		return invocationOutcome{skipped: true, reason: skipExecutorError}
	}
	if !res.Success {
		d.logger.Debug("tool reported failure", zap.String("tool", call.Name))
		return invocationOutcome{skipped: true, reason: skipToolFailure}
	}

	resultJSON, err := json.Marshal(res.Output)
	if err != nil {
		d.logger.Warn("tool result not serializable",
			zap.String("tool", call.Name), zap.Error(err))
		return invocationOutcome{skipped: true, reason: skipExecutorError}
	}

	timing := res.Timing
	if timing == nil {
		timing = &ToolTiming{StartTime: started, EndTime: finished, Duration: finished.Sub(started)}
	}

	return invocationOutcome{
		record: ToolCallRecord{
			Name:      call.Name,
			Arguments: args,
			StartTime: timing.StartTime,
			EndTime:   timing.EndTime,
			Duration:  timing.Duration,
			Result:    res.Output,
		},
		result: res.Output,
		turns: [2]llm.Message{
			// The assistant turn echoes exactly this one call, verbatim, so
			// the endpoint's context stays valid; the tool turn follows with
			// the same call ID.
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{call}},
			{Role: llm.RoleTool, ToolCallID: call.ID, Content: string(resultJSON)},
		},
	}
}

// AssembleMessages builds the initial conversation: optional system turn,
// optional context turn, then the caller's messages verbatim and in order.
func AssembleMessages(req Request) []llm.Message {
	msgs := make([]llm.Message, 0, len(req.Messages)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: req.SystemPrompt})
	}
	if req.Context != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: req.Context})
	}
	return append(msgs, req.Messages...)
}

// buildPayload maps the request onto the round-trip payload template.
func buildPayload(model string, req Request) llm.Payload {
	p := llm.Payload{
		Model:          model,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: req.ResponseFormat,
	}
	for _, ts := range req.Tools {
		p.Tools = append(p.Tools, llm.ToolDef{
			Name:        ts.ID,
			Description: ts.Description,
			Parameters:  ts.Parameters,
		})
	}
	return p
}

func findSpec(specs []ToolSpec, name string) (ToolSpec, bool) {
	for _, s := range specs {
		if s.ID == name {
			return s, true
		}
	}
	return ToolSpec{}, false
}

// mergeArgs overlays model-supplied arguments on the spec's fixed defaults;
// call arguments win on key collision.
func mergeArgs(defaults, call map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(defaults)+len(call))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range call {
		merged[k] = v
	}
	return merged
}
