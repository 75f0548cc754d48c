package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/galileo0/galileo/internal/agent"
	"github.com/galileo0/galileo/internal/llm"
	"github.com/galileo0/galileo/internal/tools"
	"github.com/galileo0/galileo/internal/ui"
)

// Model calls are paced to stay inside free-tier quotas.
const (
	modelRequestsPerSecond = 1
	modelBurst             = 2
)

var inputMode string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat console",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&inputMode, "input-mode", "",
		"history policy: tool, handoff, tool_and_handoff or nothing_else")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	policyName := rt.cfg.HistoryPolicy
	if inputMode != "" {
		policyName = inputMode
	}
	policy, err := agent.ParseHistoryPolicy(policyName)
	if err != nil {
		return err
	}

	g, err := initGenkit(ctx)
	if err != nil {
		return err
	}

	gen := llm.NewGenkitGenerator(g, rt.cfg.ModelName, rt.logger)
	tools.RegisterAll(gen)
	limited := llm.NewRateLimited(gen, modelRequestsPerSecond, modelBurst)

	store, err := rt.openStore(g)
	if err != nil {
		return err
	}
	handler := tools.New(rt.pool, store, tools.Config{
		Collection:     rt.cfg.Collection,
		TopK:           rt.cfg.TopK,
		ScoreThreshold: rt.cfg.ScoreThreshold,
	}, rt.logger)

	now := time.Now()
	executor := agent.NewExecutor(handler.ExecutorSpec(), now)
	collector := agent.NewCollector(executor, handler.CollectorSpecs(), func(r agent.Report) {
		rt.logger.Info("collector report", "length", len(r.Report))
	}, now)

	runner := agent.NewRunner(limited, collector, agent.NewTaskContext(),
		agent.WithHistoryPolicy(policy),
		agent.WithMaxTurns(rt.cfg.MaxTurns),
		agent.WithLogger(rt.logger))

	console := ui.New(runner, os.Stdin, os.Stdout, rt.logger)
	return console.Run(ctx)
}
