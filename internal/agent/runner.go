package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/galileo0/galileo/internal/llm"
	"github.com/galileo0/galileo/internal/log"
)

// EventType discriminates runner events.
type EventType string

const (
	EventTextFragment EventType = "text_fragment"
	EventMessage      EventType = "message"
	EventToolCall     EventType = "tool_call"
	EventToolResult   EventType = "tool_result"
	EventAgentSwitch  EventType = "agent_switch"
	EventFinal        EventType = "final"
	EventError        EventType = "error"
)

// Event is one element of the lazy sequence a turn produces. Consumers must
// drain events in order; exactly one terminal event (final or error) closes
// the sequence.
type Event struct {
	Type    EventType
	Agent   string
	Tool    string
	Content string
	Err     error
}

// HistoryPolicy selects which intermediate material persists into the
// rolling cross-turn history.
type HistoryPolicy string

const (
	PolicyTool           HistoryPolicy = "tool"
	PolicyHandoff        HistoryPolicy = "handoff"
	PolicyToolAndHandoff HistoryPolicy = "tool_and_handoff"
	PolicyNothingElse    HistoryPolicy = "nothing_else"
)

// ParseHistoryPolicy validates a configuration string.
func ParseHistoryPolicy(s string) (HistoryPolicy, error) {
	switch HistoryPolicy(s) {
	case PolicyTool, PolicyHandoff, PolicyToolAndHandoff, PolicyNothingElse:
		return HistoryPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown history policy %q (want tool, handoff, tool_and_handoff or nothing_else)", s)
	}
}

func (p HistoryPolicy) keepsToolOutput() bool {
	return p == PolicyTool || p == PolicyToolAndHandoff
}

func (p HistoryPolicy) keepsHandoffArgs() bool {
	return p == PolicyHandoff || p == PolicyToolAndHandoff
}

// DefaultMaxTurns caps model turns per task.
const DefaultMaxTurns = 10

// Runner drives conversational turns against the agent pipeline. Turns
// execute strictly sequentially; the runner is the sole writer of its
// TaskContext and history.
type Runner struct {
	gen      llm.Generator
	start    *AgentSpec
	task     *TaskContext
	policy   HistoryPolicy
	maxTurns int
	logger   log.Logger
	session  uuid.UUID

	current    *AgentSpec
	state      State
	toolCalled bool
	history    []llm.Message
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

func WithHistoryPolicy(p HistoryPolicy) RunnerOption {
	return func(r *Runner) { r.policy = p }
}

func WithMaxTurns(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

func WithLogger(l log.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a runner starting each task at start, sharing task
// across turns.
func NewRunner(gen llm.Generator, start *AgentSpec, task *TaskContext, opts ...RunnerOption) *Runner {
	r := &Runner{
		gen:      gen,
		start:    start,
		task:     task,
		policy:   PolicyNothingElse,
		maxTurns: DefaultMaxTurns,
		logger:   log.NewNop(),
		session:  uuid.New(),
		current:  start,
		state:    StateCollecting,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Session identifies this runner's conversation.
func (r *Runner) Session() uuid.UUID { return r.session }

// State reports the current task state.
func (r *Runner) State() State { return r.state }

// Context returns the shared task context.
func (r *Runner) Context() *TaskContext { return r.task }

// History returns a copy of the rolling cross-turn history.
func (r *Runner) History() []llm.Message {
	return slices.Clone(r.history)
}

// Run executes one conversational turn, returning a channel of events that
// is closed after the terminal event. A fresh turn always starts at the
// starting agent with a fresh handoff state; history and task context
// persist across turns. No two turns may run concurrently on one runner.
func (r *Runner) Run(ctx context.Context, userText string) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		r.runTurn(ctx, userText, events)
	}()
	return events
}

func (r *Runner) runTurn(ctx context.Context, userText string, events chan<- Event) {
	r.current = r.start
	r.state = StateCollecting
	r.toolCalled = false

	r.task.AppendUserQuery(userText)
	r.history = append(r.history, llm.Message{Role: llm.RoleUser, Content: userText})

	// msgs is the turn-local view; kept collects what the history policy
	// persists across turns.
	msgs := slices.Clone(r.history)
	var kept []llm.Message

	r.logger.Debug("turn started", "session", r.session, "agent", r.current.Name)

	for turn := 1; ; turn++ {
		if turn > r.maxTurns {
			r.logger.Error("turn budget exhausted", "session", r.session, "turns", r.maxTurns)
			r.emit(ctx, events, Event{Type: EventError, Err: fmt.Errorf("%w: %d model turns", ErrTurnBudget, r.maxTurns)})
			return
		}

		outcome, err := r.gen.Generate(ctx, llm.Request{
			System:      r.current.Prompt,
			Messages:    msgs,
			Tools:       r.toolDefs(),
			RequireTool: r.current.RequireToolCall && !r.toolCalled,
		}, func(chunk string) {
			if chunk != "" {
				r.emit(ctx, events, Event{Type: EventTextFragment, Agent: r.current.Name, Content: chunk})
			}
		})
		if err != nil {
			r.emit(ctx, events, Event{Type: EventError, Err: err})
			return
		}

		if len(outcome.ToolCalls) == 0 {
			final := outcome.Text
			r.history = append(r.history, kept...)
			r.history = append(r.history, llm.Message{Role: llm.RoleAssistant, Content: final})
			if r.state == StateExecuting {
				r.state = StateDone
			}
			if !r.emit(ctx, events, Event{Type: EventMessage, Agent: r.current.Name, Content: final}) {
				return
			}
			r.emit(ctx, events, Event{Type: EventFinal, Agent: r.current.Name, Content: final})
			return
		}

		// Free text alongside tool calls is working material, not an answer.
		r.task.AppendNote(outcome.Text)

		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: outcome.Text, ToolCalls: outcome.ToolCalls})

		// Every call in the batch belongs to the agent that produced it,
		// even if an earlier call in the batch switched agents.
		issuer := r.current
		for _, call := range outcome.ToolCalls {
			if !r.emit(ctx, events, Event{Type: EventToolCall, Agent: issuer.Name, Tool: call.Name, Content: renderArgs(call.Args)}) {
				return
			}

			var output string
			var switched bool
			if spec := issuer.findHandoff(call.Name); spec != nil {
				output, switched = r.performHandoff(spec, call, &kept)
			} else {
				output = r.invokeTool(ctx, issuer, call)
				if r.policy.keepsToolOutput() {
					kept = append(kept, llm.Message{Role: llm.RoleAssistant, Content: output})
				}
			}

			if !r.emit(ctx, events, Event{Type: EventToolResult, Agent: issuer.Name, Tool: call.Name, Content: output}) {
				return
			}
			msgs = append(msgs, llm.Message{ToolResult: &llm.ToolResult{Ref: call.Ref, Name: call.Name, Output: output}})

			if switched {
				if !r.emit(ctx, events, Event{Type: EventAgentSwitch, Agent: r.current.Name}) {
					return
				}
			}
		}

		// The model sees only what changed since its last look at the
		// shared context.
		if delta := r.task.Delta(FieldUserQueries); !delta.Empty() {
			if body, err := delta.MarshalForModel(); err == nil {
				msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: body})
			} else {
				r.logger.Warn("delta serialization failed", "error", err)
			}
		}
	}
}

// performHandoff applies the one legal Collector to Executor transition.
// A second attempt is answered with the sentinel error text instead of a
// transfer. Returns the tool output text and whether the switch happened.
func (r *Runner) performHandoff(spec *HandoffSpec, call llm.ToolCall, kept *[]llm.Message) (string, bool) {
	if r.state != StateCollecting {
		return ErrHandoffDone.Error(), false
	}
	r.state = StateHandingOff

	var report Report
	if raw, ok := call.Args["report"].(string); ok {
		report.Report = raw
	}
	if spec.OnHandoff != nil {
		spec.OnHandoff(report)
	}

	if r.policy.keepsHandoffArgs() {
		*kept = append(*kept, llm.Message{Role: llm.RoleAssistant, Content: renderArgs(call.Args)})
	}

	r.current = spec.Target
	r.toolCalled = false
	r.state = StateExecuting
	r.logger.Info("agent handoff",
		"session", r.session, "to", spec.Target.Name, "report_len", len(report.Report))

	return fmt.Sprintf("handed off to %s", spec.Target.Name), true
}

// invokeTool runs one tool call. Failures become descriptive tool output so
// the model can retry with a corrected call.
func (r *Runner) invokeTool(ctx context.Context, issuer *AgentSpec, call llm.ToolCall) string {
	spec := issuer.findTool(call.Name)
	if spec == nil {
		return fmt.Sprintf("unknown tool: %s", call.Name)
	}

	out, err := spec.Invoke(ctx, call.Args)
	if issuer == r.current {
		r.toolCalled = true
	}
	if err != nil {
		r.logger.Warn("tool failed", "session", r.session, "tool", call.Name, "error", err)
		return fmt.Sprintf("tool %s failed: %v", call.Name, err)
	}

	if spec.Integrate != nil {
		spec.Integrate(r.task, call.Args, out)
	}
	return out
}

func (r *Runner) toolDefs() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(r.current.Tools)+len(r.current.Handoffs))
	for _, t := range r.current.Tools {
		defs = append(defs, llm.ToolDef{Name: t.Name, Description: t.Description})
	}
	for _, h := range r.current.Handoffs {
		defs = append(defs, llm.ToolDef{Name: h.ToolName(), Description: h.Target.Description})
	}
	return defs
}

// emit delivers ev unless the turn is canceled. Reports delivery.
func (r *Runner) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func renderArgs(args map[string]any) string {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(raw)
}
