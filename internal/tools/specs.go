package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/galileo0/galileo/internal/agent"
	"github.com/galileo0/galileo/internal/llm"
)

// Argument shapes exposed to the model. Schemas are inferred from these
// types at tool registration time.
type (
	// ExecuteQueryArgs parameterizes the execution tool.
	ExecuteQueryArgs struct {
		Query string `json:"query" jsonschema_description:"The PostgreSQL query to execute"`
		Mode  string `json:"mode,omitempty" jsonschema_description:"Execution mode: row_cursor or bulk_frame"`
	}

	// GetMetadataArgs parameterizes the schema lookup tool.
	GetMetadataArgs struct {
		RetrievedTables []string `json:"retrieved_tables" jsonschema_description:"Exact table names to describe"`
	}

	// RetrieveQueriesArgs parameterizes the example retrieval tool.
	RetrieveQueriesArgs struct {
		UserQuery string `json:"user_query" jsonschema_description:"The user's natural language question"`
	}

	// HandoffArgs parameterizes the transfer_to_executor pseudo-tool.
	HandoffArgs struct {
		Report string `json:"report" jsonschema_description:"Structured analysis report for the executor"`
	}
)

// RegisterAll registers every tool definition, including the handoff
// pseudo-tool, with the model boundary.
func RegisterAll(gen *llm.GenkitGenerator) {
	llm.RegisterTool[ExecuteQueryArgs](gen, NameExecuteQuery,
		"Executes a PostgreSQL query on the database and returns the result as tabular text")
	llm.RegisterTool[GetMetadataArgs](gen, NameGetMetadata,
		"Extracts the metadata (columns, types, comments) of a list of tables")
	llm.RegisterTool[RetrieveQueriesArgs](gen, NameRetrieveQueries,
		"Retrieves stored SQL examples similar to the user's natural language question")
	llm.RegisterTool[HandoffArgs](gen, "transfer_to_executor",
		"Hands off to the agent that writes and executes the final query")
}

// CollectorSpecs returns the collector's tools wired into the shared task
// context.
func (h *Handler) CollectorSpecs() []agent.ToolSpec {
	return []agent.ToolSpec{
		{
			Name:        NameRetrieveQueries,
			Description: "Retrieves stored SQL examples similar to the user's natural language question",
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				query, _ := args["user_query"].(string)
				if strings.TrimSpace(query) == "" {
					return "", fmt.Errorf("user_query is required")
				}
				return h.RetrieveQueries(ctx, query)
			},
			Integrate: func(task *agent.TaskContext, _ map[string]any, output string) {
				task.AppendRetrieved(output)
			},
		},
		{
			Name:        NameGetMetadata,
			Description: "Extracts the metadata (columns, types, comments) of a list of tables",
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				tables := stringSlice(args["retrieved_tables"])
				if len(tables) == 0 {
					return "", fmt.Errorf("retrieved_tables is required")
				}
				return h.GetMetadata(ctx, tables)
			},
			Integrate: func(task *agent.TaskContext, _ map[string]any, output string) {
				task.AppendMetadata(output)
			},
		},
	}
}

// ExecutorSpec returns the execution tool wired into the shared task
// context.
func (h *Handler) ExecutorSpec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        NameExecuteQuery,
		Description: "Executes a PostgreSQL query on the database and returns the result as tabular text",
		Invoke: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			mode, _ := args["mode"].(string)
			return h.ExecuteQuery(ctx, query, mode)
		},
		Integrate: func(task *agent.TaskContext, args map[string]any, _ string) {
			if query, ok := args["query"].(string); ok {
				if err := task.AppendExecutedSQL(query); err != nil {
					h.logger.Warn("skipping executed-query record", "error", err)
				}
			}
		},
	}
}

// stringSlice coerces a decoded JSON array into []string, dropping
// non-string elements.
func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
