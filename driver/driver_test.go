package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"modelrelay/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient replays a fixed sequence of responses and records every
// payload it was called with. Once the script is exhausted the last entry
// repeats, which lets a single tool-call response drive an endless loop.
type scriptedClient struct {
	script []llm.Response
	errs   []error
	calls  []llm.Payload
}

func (c *scriptedClient) Chat(ctx context.Context, payload llm.Payload) (llm.Response, error) {
	cp := payload
	cp.Messages = append([]llm.Message(nil), payload.Messages...)
	c.calls = append(c.calls, cp)

	i := len(c.calls) - 1
	if i < len(c.errs) && c.errs[i] != nil {
		return llm.Response{}, c.errs[i]
	}
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	return c.script[i], nil
}

type execCall struct {
	name string
	args map[string]interface{}
}

// stubExecutor answers by tool name and records every dispatch.
type stubExecutor struct {
	results map[string]ToolResult
	errs    map[string]error
	calls   []execCall
}

func (e *stubExecutor) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error) {
	e.calls = append(e.calls, execCall{name: name, args: args})
	if err, ok := e.errs[name]; ok {
		return ToolResult{}, err
	}
	if res, ok := e.results[name]; ok {
		return res, nil
	}
	return ToolResult{Success: true, Output: "ok"}, nil
}

func newTestDriver(cli llm.Client, exec ToolExecutor) (*Driver, *int) {
	factoryCalls := 0
	factory := func(apiKey string) llm.Client {
		factoryCalls++
		return cli
	}
	return NewDriver(factory, exec, nil), &factoryCalls
}

func textResponse(content string, usage llm.Usage) llm.Response {
	return llm.Response{Content: content, Usage: usage}
}

func toolResponse(content string, calls ...llm.ToolCall) llm.Response {
	return llm.Response{Content: content, ToolCalls: calls}
}

func TestMissingAPIKeyFailsBeforeNetwork(t *testing.T) {
	cli := &scriptedClient{script: []llm.Response{textResponse("hello", llm.Usage{})}}
	d, factoryCalls := newTestDriver(cli, &stubExecutor{})

	_, err := d.ExecuteRequest(context.Background(), Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Zero(t, *factoryCalls, "no client should be built")
	assert.Empty(t, cli.calls, "no remote call should be made")

	_, err = d.ExecuteRequest(context.Background(), Request{APIKey: "   "})
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestSingleRoundTripNoTools(t *testing.T) {
	cli := &scriptedClient{script: []llm.Response{
		textResponse("hello", llm.Usage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10}),
	}}
	d, _ := newTestDriver(cli, &stubExecutor{})

	resp, err := d.ExecuteRequest(context.Background(), Request{
		APIKey:   "k",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, DefaultModel, resp.Model)
	assert.Equal(t, llm.Usage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10}, resp.Tokens)
	assert.Nil(t, resp.ToolCalls)
	assert.Nil(t, resp.ToolResults)
	assert.Len(t, cli.calls, 1)
}

func TestMessageAssemblyOrder(t *testing.T) {
	cli := &scriptedClient{script: []llm.Response{textResponse("ok", llm.Usage{})}}
	d, _ := newTestDriver(cli, &stubExecutor{})

	_, err := d.ExecuteRequest(context.Background(), Request{
		APIKey:       "k",
		SystemPrompt: "be brief",
		Context:      "today is monday",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "first"},
			{Role: llm.RoleAssistant, Content: "second"},
			{Role: llm.RoleUser, Content: "third"},
		},
	})
	require.NoError(t, err)
	require.Len(t, cli.calls, 1)

	got := cli.calls[0].Messages
	require.Len(t, got, 5)
	assert.Equal(t, llm.Message{Role: llm.RoleSystem, Content: "be brief"}, got[0])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "today is monday"}, got[1])
	assert.Equal(t, "first", got[2].Content)
	assert.Equal(t, "second", got[3].Content)
	assert.Equal(t, "third", got[4].Content)
}

func TestRequestedModelIsUsed(t *testing.T) {
	cli := &scriptedClient{script: []llm.Response{textResponse("ok", llm.Usage{})}}
	d, _ := newTestDriver(cli, &stubExecutor{})

	resp, err := d.ExecuteRequest(context.Background(), Request{
		APIKey: "k",
		Model:  "custom-model",
	})
	require.NoError(t, err)
	assert.Equal(t, "custom-model", resp.Model)
	assert.Equal(t, "custom-model", cli.calls[0].Model)
}

func TestToolLoopPartialFailures(t *testing.T) {
	// Six invocations in one batch; only two survive every filter.
	batch := toolResponse("thinking",
		llm.ToolCall{ID: "c1", Name: "lookup", Arguments: `{"x":2}`},
		llm.ToolCall{ID: "c2", Name: "nonexistent", Arguments: `{}`},
		llm.ToolCall{ID: "c3", Name: "lookup", Arguments: `{not json`},
		llm.ToolCall{ID: "c4", Name: "flaky", Arguments: `{}`},
		llm.ToolCall{ID: "c5", Name: "refuser", Arguments: `{}`},
		llm.ToolCall{ID: "c6", Name: "lookup", Arguments: `{"x":9}`},
	)
	cli := &scriptedClient{script: []llm.Response{
		batch,
		textResponse("done", llm.Usage{}),
	}}
	exec := &stubExecutor{
		results: map[string]ToolResult{
			"lookup":  {Success: true, Output: map[string]interface{}{"hit": true}},
			"refuser": {Success: false, Output: "nope"},
		},
		errs: map[string]error{"flaky": errors.New("boom")},
	}
	d, _ := newTestDriver(cli, exec)

	req := Request{
		APIKey:   "k",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "go"}},
		Tools: []ToolSpec{
			{ID: "lookup", Description: "find things", Params: map[string]interface{}{"fixed": "v", "x": 1}},
			{ID: "flaky"},
			{ID: "refuser"},
		},
	}
	resp, err := d.ExecuteRequest(context.Background(), req)
	require.NoError(t, err)

	// Two records and two raw results, in invocation order.
	require.Len(t, resp.ToolCalls, 2)
	require.Len(t, resp.ToolResults, 2)
	assert.Equal(t, "lookup", resp.ToolCalls[0].Name)
	assert.Equal(t, "lookup", resp.ToolCalls[1].Name)
	assert.Equal(t, map[string]interface{}{"x": float64(2)}, resp.ToolCalls[0].Arguments)
	assert.Equal(t, map[string]interface{}{"x": float64(9)}, resp.ToolCalls[1].Arguments)

	// Everything that parses and resolves reaches the executor, even the
	// invocations that end up skipped.
	require.Len(t, exec.calls, 4) // lookup, flaky, refuser, lookup

	// Fixed params are merged under call arguments; call args win.
	assert.Equal(t, map[string]interface{}{"fixed": "v", "x": float64(2)}, exec.calls[0].args)

	// The conversation gained exactly 2×2 turns, alternating, in order.
	require.Len(t, cli.calls, 2)
	first := cli.calls[0].Messages
	second := cli.calls[1].Messages
	require.Len(t, second, len(first)+4)

	tail := second[len(first):]
	assert.Equal(t, llm.RoleAssistant, tail[0].Role)
	require.Len(t, tail[0].ToolCalls, 1)
	assert.Equal(t, "c1", tail[0].ToolCalls[0].ID)
	assert.Equal(t, `{"x":2}`, tail[0].ToolCalls[0].Arguments)
	assert.Equal(t, llm.RoleTool, tail[1].Role)
	assert.Equal(t, "c1", tail[1].ToolCallID)
	assert.JSONEq(t, `{"hit":true}`, tail[1].Content)
	assert.Equal(t, llm.RoleAssistant, tail[2].Role)
	require.Len(t, tail[2].ToolCalls, 1)
	assert.Equal(t, "c6", tail[2].ToolCalls[0].ID)
	assert.Equal(t, llm.RoleTool, tail[3].Role)
	assert.Equal(t, "c6", tail[3].ToolCallID)
}

func TestRefusedToolRunsButLeavesNoTrace(t *testing.T) {
	cli := &scriptedClient{script: []llm.Response{
		toolResponse("", llm.ToolCall{ID: "c1", Name: "refuser", Arguments: `{}`}),
		textResponse("done", llm.Usage{}),
	}}
	exec := &stubExecutor{results: map[string]ToolResult{
		"refuser": {Success: false, Output: "declined"},
	}}
	d, _ := newTestDriver(cli, exec)

	resp, err := d.ExecuteRequest(context.Background(), Request{
		APIKey: "k",
		Tools:  []ToolSpec{{ID: "refuser"}},
	})
	require.NoError(t, err)

	assert.Len(t, exec.calls, 1, "the tool did execute")
	assert.Nil(t, resp.ToolCalls)
	assert.Nil(t, resp.ToolResults)
	assert.Equal(t, cli.calls[0].Messages, cli.calls[1].Messages,
		"a refused invocation appends no turns")
}

func TestPayloadTemplateIdempotence(t *testing.T) {
	temp := 0.4
	maxTok := int64(256)
	cli := &scriptedClient{script: []llm.Response{
		toolResponse("", llm.ToolCall{ID: "c1", Name: "lookup", Arguments: `{}`}),
		toolResponse("", llm.ToolCall{ID: "c2", Name: "lookup", Arguments: `{}`}),
		textResponse("done", llm.Usage{}),
	}}
	d, _ := newTestDriver(cli, &stubExecutor{})

	_, err := d.ExecuteRequest(context.Background(), Request{
		APIKey:         "k",
		Model:          "m",
		Temperature:    &temp,
		MaxTokens:      &maxTok,
		ResponseFormat: map[string]interface{}{"schema": map[string]interface{}{"type": "object"}},
		Tools:          []ToolSpec{{ID: "lookup", Description: "d"}},
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: "go"}},
	})
	require.NoError(t, err)
	require.Len(t, cli.calls, 3)

	for i := 1; i < len(cli.calls); i++ {
		prev, cur := cli.calls[i-1], cli.calls[i]
		assert.Equal(t, prev.Model, cur.Model)
		assert.Equal(t, prev.Temperature, cur.Temperature)
		assert.Equal(t, prev.MaxTokens, cur.MaxTokens)
		assert.Equal(t, prev.ResponseFormat, cur.ResponseFormat)
		assert.Equal(t, prev.Tools, cur.Tools)
		assert.Greater(t, len(cur.Messages), len(prev.Messages),
			"only messages change between round trips")
	}
}

func TestLoopStopsAtTenRemoteCalls(t *testing.T) {
	// The stub repeats its last scripted response forever, so the model
	// never stops asking for tools.
	cli := &scriptedClient{script: []llm.Response{
		toolResponse("", llm.ToolCall{ID: "c", Name: "lookup", Arguments: `{}`}),
	}}
	d, _ := newTestDriver(cli, &stubExecutor{})

	resp, err := d.ExecuteRequest(context.Background(), Request{
		APIKey: "k",
		Tools:  []ToolSpec{{ID: "lookup"}},
	})
	require.NoError(t, err, "cap exhaustion is not an error")
	assert.Len(t, cli.calls, 10)
	assert.Len(t, resp.ToolCalls, 9, "one successful invocation per completed iteration")
}

func TestTokenAccumulationIsAdditive(t *testing.T) {
	cli := &scriptedClient{script: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "lookup", Arguments: `{}`}},
			Usage: llm.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}},
		// Second response carries no usage block at all.
		{ToolCalls: []llm.ToolCall{{ID: "c2", Name: "lookup", Arguments: `{}`}}},
		{Content: "done", Usage: llm.Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5}},
	}}
	d, _ := newTestDriver(cli, &stubExecutor{})

	resp, err := d.ExecuteRequest(context.Background(), Request{
		APIKey: "k",
		Tools:  []ToolSpec{{ID: "lookup"}},
	})
	require.NoError(t, err)
	assert.Equal(t, llm.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}, resp.Tokens)
}

func TestEmptyContentDoesNotEraseEarlierText(t *testing.T) {
	cli := &scriptedClient{script: []llm.Response{
		toolResponse("partial answer", llm.ToolCall{ID: "c1", Name: "lookup", Arguments: `{}`}),
		textResponse("", llm.Usage{}),
	}}
	d, _ := newTestDriver(cli, &stubExecutor{})

	resp, err := d.ExecuteRequest(context.Background(), Request{
		APIKey: "k",
		Tools:  []ToolSpec{{ID: "lookup"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "partial answer", resp.Content)
}

func TestLaterContentOverwrites(t *testing.T) {
	cli := &scriptedClient{script: []llm.Response{
		toolResponse("draft", llm.ToolCall{ID: "c1", Name: "lookup", Arguments: `{}`}),
		textResponse("final", llm.Usage{}),
	}}
	d, _ := newTestDriver(cli, &stubExecutor{})

	resp, err := d.ExecuteRequest(context.Background(), Request{
		APIKey: "k",
		Tools:  []ToolSpec{{ID: "lookup"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "final", resp.Content)
}

func TestRemoteErrorIsFatal(t *testing.T) {
	boom := errors.New("connection reset")

	cli := &scriptedClient{errs: []error{boom}}
	d, _ := newTestDriver(cli, &stubExecutor{})
	_, err := d.ExecuteRequest(context.Background(), Request{APIKey: "k"})
	require.ErrorIs(t, err, boom)

	// Mid-loop failure aborts the whole request too.
	cli = &scriptedClient{
		script: []llm.Response{
			toolResponse("", llm.ToolCall{ID: "c1", Name: "lookup", Arguments: `{}`}),
		},
		errs: []error{nil, boom},
	}
	d, _ = newTestDriver(cli, &stubExecutor{})
	_, err = d.ExecuteRequest(context.Background(), Request{
		APIKey: "k",
		Tools:  []ToolSpec{{ID: "lookup"}},
	})
	require.ErrorIs(t, err, boom)
	assert.Len(t, cli.calls, 2)
}

func TestExecutorTimingIsPreferred(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(42 * time.Millisecond)
	cli := &scriptedClient{script: []llm.Response{
		toolResponse("", llm.ToolCall{ID: "c1", Name: "timed", Arguments: `{}`}),
		textResponse("done", llm.Usage{}),
	}}
	exec := &stubExecutor{results: map[string]ToolResult{
		"timed": {
			Success: true,
			Output:  "ok",
			Timing:  &ToolTiming{StartTime: start, EndTime: end, Duration: end.Sub(start)},
		},
	}}
	d, _ := newTestDriver(cli, exec)

	resp, err := d.ExecuteRequest(context.Background(), Request{
		APIKey: "k",
		Tools:  []ToolSpec{{ID: "timed"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	rec := resp.ToolCalls[0]
	assert.Equal(t, start, rec.StartTime)
	assert.Equal(t, end, rec.EndTime)
	assert.Equal(t, 42*time.Millisecond, rec.Duration)
}

func TestMergeArgsPrecedence(t *testing.T) {
	merged := mergeArgs(
		map[string]interface{}{"a": 1, "b": "keep"},
		map[string]interface{}{"a": 2, "c": true},
	)
	assert.Equal(t, map[string]interface{}{"a": 2, "b": "keep", "c": true}, merged)

	assert.Empty(t, mergeArgs(nil, nil))
	assert.Equal(t, map[string]interface{}{"a": 1}, mergeArgs(map[string]interface{}{"a": 1}, nil))
}
