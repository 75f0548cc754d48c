// Package agent implements the Collector/Executor pipeline: a shared task
// context with delta tracking, the one-shot handoff protocol between the two
// agents, and the turn-level streaming runner that drives them.
package agent

import "errors"

// Sentinel errors for the task lifecycle.
var (
	// ErrEmptyQuery rejects recording a blank executed-SQL string.
	ErrEmptyQuery = errors.New("empty executed query")

	// ErrHandoffDone reports a handoff attempt after the one legal
	// Collector to Executor transition already happened.
	ErrHandoffDone = errors.New("handoff already performed")

	// ErrTurnBudget reports that a task exceeded its model-turn cap.
	ErrTurnBudget = errors.New("max turns exceeded")
)
