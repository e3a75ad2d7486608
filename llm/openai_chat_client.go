package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// jsonSchemaDefaultName is used when a response-format spec carries no
// "name" field; the json_schema envelope requires one.
const jsonSchemaDefaultName = "response"

// OpenAIChatClient implements Client using the official openai/openai-go
// SDK's Chat Completions API (/v1/chat/completions).
type OpenAIChatClient struct {
	cli openai.Client
}

// NewOpenAIChatClient creates a client that uses the Chat Completions API.
func NewOpenAIChatClient(opts ...option.RequestOption) *OpenAIChatClient {
	return &OpenAIChatClient{
		cli: openai.NewClient(opts...),
	}
}

// Chat implements Client.Chat via the Chat Completions API.
func (c *OpenAIChatClient) Chat(ctx context.Context, payload Payload) (Response, error) {
	resp, err := c.cli.Chat.Completions.New(ctx, PayloadToChatParams(payload))
	if err != nil {
		return Response{}, err
	}
	return fromChatCompletion(resp)
}

// --- conversion helpers: llm types → Chat Completions params ---

// PayloadToChatParams maps a Payload onto SDK request params. Unset optional
// knobs stay invalid param.Opt values, which the SDK omits from the wire
// request rather than sending null.
func PayloadToChatParams(p Payload) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.Model),
		Messages: messagesToChatParams(p.Messages),
	}
	if p.Temperature != nil {
		params.Temperature = openai.Float(*p.Temperature)
	}
	if p.MaxTokens != nil {
		params.MaxTokens = openai.Int(*p.MaxTokens)
	}
	if p.ResponseFormat != nil {
		params.ResponseFormat = responseFormatToParam(p.ResponseFormat)
	}
	if len(p.Tools) > 0 {
		params.Tools = toolDefsToChatTools(p.Tools)
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("auto"),
		}
	}
	return params
}

func messagesToChatParams(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		case RoleUser:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		case RoleAssistant:
			asst := &openai.ChatCompletionAssistantMessageParam{
				Content: openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(m.Content),
				},
			}
			for _, tc := range m.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: asst,
			})
		case RoleTool:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					ToolCallID: m.ToolCallID,
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		}
	}
	return out
}

func toolDefsToChatTools(defs []ToolDef) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, len(defs))
	for i, d := range defs {
		out[i] = openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: shared.FunctionDefinitionParam{
					Name:        d.Name,
					Description: openai.String(d.Description),
					Parameters:  shared.FunctionParameters(d.Parameters),
				},
			},
		}
	}
	return out
}

// responseFormatToParam wraps a raw response-format spec under json_schema.
// The spec's "schema" field becomes the schema; when the spec has no
// "schema" key the whole spec map is used as the schema verbatim.
func responseFormatToParam(rf map[string]interface{}) openai.ChatCompletionNewParamsResponseFormatUnion {
	var schema interface{} = rf
	if s, ok := rf["schema"]; ok {
		schema = s
	}
	name := jsonSchemaDefaultName
	if n, ok := rf["name"].(string); ok && n != "" {
		name = n
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   name,
				Schema: schema,
			},
		},
	}
}

// --- conversion helpers: Chat Completions output → llm types ---

func fromChatCompletion(resp *openai.ChatCompletion) (Response, error) {
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("empty response (finish_reason=none)")
	}
	msg := resp.Choices[0].Message
	r := Response{Content: msg.Content}
	if resp.Usage.TotalTokens > 0 {
		r.Usage = Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	for _, tc := range msg.ToolCalls {
		if tc.Type == "function" {
			fn := tc.AsFunction()
			r.ToolCalls = append(r.ToolCalls, ToolCall{
				ID:        fn.ID,
				Name:      fn.Function.Name,
				Arguments: fn.Function.Arguments,
			})
		}
	}
	return r, nil
}
