// Package llm defines the model invocation boundary.
//
// The rest of the system only shapes a Request (history, tool definitions,
// whether a tool call is mandatory) and reacts to the Outcome: text, tool
// calls, or both. How the model is reached is a Generator implementation
// detail.
package llm

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model request to invoke one tool. Ref correlates the call
// with its eventual ToolResult.
type ToolCall struct {
	Ref  string
	Name string
	Args map[string]any
}

// ToolResult carries a tool's textual output back to the model.
type ToolResult struct {
	Ref    string
	Name   string
	Output string
}

// Message is one history item. Assistant messages may carry tool calls;
// a message with ToolResult set uses RoleTool regardless of Role.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolResult *ToolResult
}

// ToolDef exposes a registered tool to the model by name. Argument schemas
// are attached at tool registration time, not per request.
type ToolDef struct {
	Name        string
	Description string
}

// Request is one model invocation.
type Request struct {
	System      string
	Messages    []Message
	Tools       []ToolDef
	RequireTool bool
}

// Outcome is the model's reply: final text, tool calls, or text accompanying
// tool calls.
type Outcome struct {
	Text      string
	ToolCalls []ToolCall
}

// StreamFunc receives text fragments as the model produces them.
type StreamFunc func(chunk string)

// Generator invokes the model once. Implementations must not dispatch tool
// calls themselves; requested calls are returned in the Outcome for the
// caller to run.
type Generator interface {
	Generate(ctx context.Context, req Request, stream StreamFunc) (*Outcome, error)
}
