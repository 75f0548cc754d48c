package agent

import "time"

// NewExecutor builds the query-execution agent. Its execution tool is
// mandatory on its first turn: it cannot answer without running SQL at
// least once.
func NewExecutor(execTool ToolSpec, now time.Time) *AgentSpec {
	return &AgentSpec{
		Name:            ExecutorName,
		Description:     "Agent that runs PostgreSQL queries on the database",
		Prompt:          ExecutorPrompt(now),
		Tools:           []ToolSpec{execTool},
		RequireToolCall: true,
	}
}

// NewCollector builds the context-gathering agent with the executor as its
// single handoff target. onHandoff may be nil.
func NewCollector(executor *AgentSpec, tools []ToolSpec, onHandoff func(Report), now time.Time) *AgentSpec {
	return &AgentSpec{
		Name:        CollectorName,
		Description: "Agent that explores the database and collects useful data for writing a SQL query",
		Prompt:      CollectorPrompt(now),
		Tools:       tools,
		Handoffs: []HandoffSpec{
			{Target: executor, OnHandoff: onHandoff},
		},
	}
}
