// Package cmd wires the galileo command surface: the interactive chat
// console, STAC ingestion, vector collection management and schema
// migrations.
package cmd

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/galileo0/galileo/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "galileo",
	Short: "Galileo - natural language access to Sentinel satellite imagery",
	Long: `Galileo answers plain-language questions about Sentinel Earth-observation
scenes by translating them to SQL over a PostgreSQL catalogue.

Running galileo without a subcommand starts the interactive chat console.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	// A local .env supplies GEMINI_API_KEY and POSTGRES_* in development;
	// absence is fine.
	_ = godotenv.Load()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}
