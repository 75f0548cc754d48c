package agent

import (
	"context"
	"strings"
)

// State tracks the task lifecycle across the Collector to Executor handoff.
type State int

const (
	StateCollecting State = iota
	StateHandingOff
	StateExecuting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StateHandingOff:
		return "handing_off"
	case StateExecuting:
		return "executing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Report is the sole structured payload a handoff carries. It is opaque
// prose: the shared TaskContext, not the report, is the data channel
// between the agents.
type Report struct {
	Report string `json:"report"`
}

// ToolSpec describes one callable tool.
type ToolSpec struct {
	Name        string
	Description string

	// Invoke runs the tool. Errors are fed back to the model as tool
	// output text, not raised.
	Invoke func(ctx context.Context, args map[string]any) (string, error)

	// Integrate folds a successful call's arguments and output into the
	// shared task context. Optional.
	Integrate func(task *TaskContext, args map[string]any, output string)
}

// HandoffSpec declares one legal control transfer to another agent.
type HandoffSpec struct {
	Target *AgentSpec

	// OnHandoff is an observability hook fired when the transfer happens.
	// It must not alter control flow.
	OnHandoff func(Report)
}

// ToolName is the pseudo-tool name the model calls to perform this handoff.
func (h HandoffSpec) ToolName() string {
	return "transfer_to_" + strings.ToLower(h.Target.Name)
}

// AgentSpec is a named participant: a system prompt, callable tools and
// optionally handoff targets. With RequireToolCall set the agent cannot
// produce a terminal answer before invoking at least one tool.
type AgentSpec struct {
	Name            string
	Description     string
	Prompt          string
	Tools           []ToolSpec
	Handoffs        []HandoffSpec
	RequireToolCall bool
}

func (a *AgentSpec) findTool(name string) *ToolSpec {
	for i := range a.Tools {
		if a.Tools[i].Name == name {
			return &a.Tools[i]
		}
	}
	return nil
}

func (a *AgentSpec) findHandoff(name string) *HandoffSpec {
	for i := range a.Handoffs {
		if a.Handoffs[i].ToolName() == name {
			return &a.Handoffs[i]
		}
	}
	return nil
}
