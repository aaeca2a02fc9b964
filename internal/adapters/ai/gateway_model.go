package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"advisor/internal/metrics"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

const gatewayService = "llm_gateway"

// GatewayModel adapts chat completions to ADK's model.LLM interface.
type GatewayModel struct {
	client      openai.Client
	name        string
	temperature float64
	log         *logger.Logger
}

// Name returns the model name.
func (m *GatewayModel) Name() string {
	return m.name
}

// GenerateContent implements model.LLM. The gateway is called without streaming;
// when stream is requested the complete response is yielded once.
func (m *GatewayModel) GenerateContent(
	ctx context.Context,
	req *model.LLMRequest,
	stream bool,
) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

func (m *GatewayModel) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params, err := m.buildParams(req)
	if err != nil {
		return nil, err
	}

	m.log.Debugw("Calling LLM", "messages", len(params.Messages), "tools", len(params.Tools))

	start := time.Now()
	completion, err := m.client.Chat.Completions.New(ctx, params)
	metrics.RecordExternalAPICall(gatewayService, m.name, time.Since(start), err)
	if err != nil {
		m.log.Errorw("LLM call failed", "error", err)
		return nil, errors.Wrapf(errors.Join(errors.ErrExternal, err), "gateway chat completion (%s)", m.name)
	}

	m.log.Debugw("LLM response received",
		"choices", len(completion.Choices),
		"tokens", completion.Usage.TotalTokens,
	)

	return m.toLLMResponse(completion)
}

func (m *GatewayModel) buildParams(req *model.LLMRequest) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(m.name),
		Temperature: openai.Float(m.temperature),
	}
	if req == nil {
		return params, errors.Wrap(errors.ErrInvalidInput, "nil LLM request")
	}

	if cfg := req.Config; cfg != nil {
		if cfg.Temperature != nil {
			params.Temperature = openai.Float(float64(*cfg.Temperature))
		}
		if cfg.MaxOutputTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(cfg.MaxOutputTokens))
		}
		if sys := contentText(cfg.SystemInstruction); sys != "" {
			params.Messages = append(params.Messages, openai.SystemMessage(sys))
		}

		tools, err := convertTools(cfg.Tools)
		if err != nil {
			return params, err
		}
		params.Tools = tools
	}

	msgs, err := convertContents(req.Contents)
	if err != nil {
		return params, err
	}
	params.Messages = append(params.Messages, msgs...)

	if len(params.Messages) == 0 {
		return params, errors.Wrap(errors.ErrInvalidInput, "LLM request has no messages")
	}
	return params, nil
}

// callIDs pairs function responses with the calls that produced them. ADK may strip
// the IDs it generated before the history reaches the model, so calls are matched
// by name in issue order.
type callIDs struct {
	pending map[string][]string
	seq     int
}

func (c *callIDs) next() string {
	c.seq++
	return fmt.Sprintf("call_%d", c.seq)
}

func (c *callIDs) issue(fc *genai.FunctionCall) string {
	id := fc.ID
	if id == "" {
		id = c.next()
	}
	c.pending[fc.Name] = append(c.pending[fc.Name], id)
	return id
}

func (c *callIDs) resolve(fr *genai.FunctionResponse) string {
	if queue := c.pending[fr.Name]; len(queue) > 0 {
		c.pending[fr.Name] = queue[1:]
		return queue[0]
	}
	if fr.ID != "" {
		return fr.ID
	}
	return c.next()
}

func convertContents(contents []*genai.Content) ([]openai.ChatCompletionMessageParamUnion, error) {
	ids := &callIDs{pending: make(map[string][]string)}
	var msgs []openai.ChatCompletionMessageParamUnion

	for _, content := range contents {
		if content == nil {
			continue
		}

		if content.Role == string(genai.RoleModel) {
			msg, ok, err := assistantMessage(content, ids)
			if err != nil {
				return nil, err
			}
			if ok {
				msgs = append(msgs, msg)
			}
			continue
		}

		var text []string
		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			if fr := part.FunctionResponse; fr != nil {
				payload, err := json.Marshal(fr.Response)
				if err != nil {
					return nil, errors.Wrapf(err, "encode response of %s", fr.Name)
				}
				msgs = append(msgs, openai.ToolMessage(string(payload), ids.resolve(fr)))
				continue
			}
			if part.Text != "" {
				text = append(text, part.Text)
			}
		}
		if len(text) > 0 {
			msgs = append(msgs, openai.UserMessage(strings.Join(text, "\n")))
		}
	}

	return msgs, nil
}

func assistantMessage(content *genai.Content, ids *callIDs) (openai.ChatCompletionMessageParamUnion, bool, error) {
	var (
		asst openai.ChatCompletionAssistantMessageParam
		text []string
	)

	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if fc := part.FunctionCall; fc != nil {
			args, err := json.Marshal(fc.Args)
			if err != nil {
				return openai.ChatCompletionMessageParamUnion{}, false, errors.Wrapf(err, "encode args of %s", fc.Name)
			}
			asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: ids.issue(fc),
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      fc.Name,
						Arguments: string(args),
					},
				},
			})
			continue
		}
		if part.Text != "" {
			text = append(text, part.Text)
		}
	}

	if len(text) == 0 && len(asst.ToolCalls) == 0 {
		return openai.ChatCompletionMessageParamUnion{}, false, nil
	}
	if len(text) > 0 {
		asst.Content.OfString = openai.String(strings.Join(text, "\n"))
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &asst}, true, nil
}

func convertTools(tools []*genai.Tool) ([]openai.ChatCompletionToolUnionParam, error) {
	var out []openai.ChatCompletionToolUnionParam
	for _, t := range tools {
		if t == nil {
			continue
		}
		for _, fd := range t.FunctionDeclarations {
			if fd == nil {
				continue
			}
			schema, err := declarationSchema(fd)
			if err != nil {
				return nil, err
			}
			def := shared.FunctionDefinitionParam{
				Name:       fd.Name,
				Parameters: shared.FunctionParameters(schema),
			}
			if fd.Description != "" {
				def.Description = openai.String(fd.Description)
			}
			out = append(out, openai.ChatCompletionFunctionTool(def))
		}
	}
	return out, nil
}

// declarationSchema renders the declaration's parameters as a JSON schema object.
// genai schemas use upper-case type names, JSON schema expects lower case.
func declarationSchema(fd *genai.FunctionDeclaration) (map[string]any, error) {
	var src any
	switch {
	case fd.ParametersJsonSchema != nil:
		src = fd.ParametersJsonSchema
	case fd.Parameters != nil:
		src = fd.Parameters
	default:
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}

	raw, err := json.Marshal(src)
	if err != nil {
		return nil, errors.Wrapf(err, "encode schema of %s", fd.Name)
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, errors.Wrapf(err, "decode schema of %s", fd.Name)
	}
	lowerTypes(schema)
	return schema, nil
}

func lowerTypes(node any) {
	switch v := node.(type) {
	case map[string]any:
		for key, val := range v {
			if key == "type" {
				switch t := val.(type) {
				case string:
					v[key] = strings.ToLower(t)
					continue
				case []any:
					for i, item := range t {
						if s, ok := item.(string); ok {
							t[i] = strings.ToLower(s)
						}
					}
					continue
				}
			}
			lowerTypes(val)
		}
	case []any:
		for _, item := range v {
			lowerTypes(item)
		}
	}
}

// RawArgumentsKey carries tool call arguments that were not a JSON object
const RawArgumentsKey = "raw_arguments"

func (m *GatewayModel) toLLMResponse(completion *openai.ChatCompletion) (*model.LLMResponse, error) {
	if len(completion.Choices) == 0 {
		return nil, errors.Wrapf(errors.ErrExternal, "gateway returned no choices for %s", m.name)
	}
	choice := completion.Choices[0]

	content := &genai.Content{Role: string(genai.RoleModel)}
	if choice.Message.Content != "" {
		content.Parts = append(content.Parts, genai.NewPartFromText(choice.Message.Content))
	}

	for _, tc := range choice.Message.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				// the call is kept so the tool rejects it and the model can retry
				m.log.Warnw("Failed to parse tool call arguments", "tool", tc.Function.Name, "error", err)
				args = map[string]any{RawArgumentsKey: raw}
			}
		}
		content.Parts = append(content.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: args,
			},
		})
	}

	return &model.LLMResponse{
		Content:      content,
		FinishReason: finishReason(choice.FinishReason),
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(completion.Usage.PromptTokens),
			CandidatesTokenCount: int32(completion.Usage.CompletionTokens),
			TotalTokenCount:      int32(completion.Usage.TotalTokens),
		},
		TurnComplete: true,
	}, nil
}

func finishReason(reason string) genai.FinishReason {
	switch reason {
	case "length":
		return genai.FinishReasonMaxTokens
	case "content_filter":
		return genai.FinishReasonSafety
	default:
		return genai.FinishReasonStop
	}
}

var _ model.LLM = (*GatewayModel)(nil)

func contentText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var text []string
	for _, part := range content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			text = append(text, part.Text)
		}
	}
	return strings.Join(text, "\n")
}
