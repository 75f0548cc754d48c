package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/galileo0/galileo/internal/log"
)

// GenkitGenerator implements Generator over a Genkit instance. Tool requests
// are returned to the caller instead of being dispatched by Genkit, which
// keeps the handoff state machine and history composition under the runner's
// control.
type GenkitGenerator struct {
	g      *genkit.Genkit
	model  string
	logger log.Logger
}

// NewGenkitGenerator wraps an initialized Genkit instance. model is the full
// model name including provider prefix (e.g. "googleai/gemini-2.0-flash").
func NewGenkitGenerator(g *genkit.Genkit, model string, logger log.Logger) *GenkitGenerator {
	if logger == nil {
		logger = log.NewNop()
	}
	return &GenkitGenerator{g: g, model: model, logger: logger}
}

// RegisterTool registers a tool definition so the model sees its name,
// description and the argument schema inferred from In. The handler never
// runs: generation returns tool requests for external dispatch.
func RegisterTool[In any](gen *GenkitGenerator, name, description string) {
	genkit.DefineTool(gen.g, name, description,
		func(_ *ai.ToolContext, _ In) (string, error) {
			return "", fmt.Errorf("tool %s is dispatched by the runner", name)
		})
}

// Generate performs one model call. stream may be nil.
func (gen *GenkitGenerator) Generate(ctx context.Context, req Request, stream StreamFunc) (*Outcome, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(gen.model),
		ai.WithMessages(toAIMessages(req.Messages)...),
		ai.WithReturnToolRequests(true),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}

	if len(req.Tools) > 0 {
		refs := make([]ai.ToolRef, 0, len(req.Tools))
		for _, def := range req.Tools {
			tool := genkit.LookupTool(gen.g, def.Name)
			if tool == nil {
				return nil, fmt.Errorf("tool %s is not registered", def.Name)
			}
			refs = append(refs, tool)
		}
		opts = append(opts, ai.WithTools(refs...))
	}
	if req.RequireTool {
		opts = append(opts, ai.WithToolChoice(ai.ToolChoiceRequired))
	}

	if stream != nil {
		opts = append(opts, ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			stream(chunk.Text())
			return nil
		}))
	}

	resp, err := genkit.Generate(ctx, gen.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("model generation: %w", err)
	}

	out := &Outcome{Text: resp.Text()}
	for _, tr := range resp.ToolRequests() {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			Ref:  tr.Ref,
			Name: tr.Name,
			Args: toArgs(tr.Input),
		})
	}

	gen.logger.Debug("model call complete",
		"model", gen.model, "tool_calls", len(out.ToolCalls), "text_len", len(out.Text))
	return out, nil
}

// toAIMessages converts boundary messages into Genkit messages.
func toAIMessages(msgs []Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.ToolResult != nil:
			out = append(out, ai.NewMessage(ai.RoleTool, nil, ai.NewToolResponsePart(&ai.ToolResponse{
				Ref:    m.ToolResult.Ref,
				Name:   m.ToolResult.Name,
				Output: m.ToolResult.Output,
			})))
		case m.Role == RoleAssistant:
			var parts []*ai.Part
			if m.Content != "" {
				parts = append(parts, ai.NewTextPart(m.Content))
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, ai.NewToolRequestPart(&ai.ToolRequest{
					Ref:   tc.Ref,
					Name:  tc.Name,
					Input: tc.Args,
				}))
			}
			out = append(out, ai.NewMessage(ai.RoleModel, nil, parts...))
		default:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	return out
}

// toArgs normalizes a tool request input into a string-keyed map.
func toArgs(input any) map[string]any {
	switch v := input.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return map[string]any{}
	}
	args := map[string]any{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return map[string]any{}
	}
	return args
}
