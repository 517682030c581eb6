// Package cmd implements the pluma command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pluma",
	Short: "pluma - broiler production expert assistant",
	Long: `pluma answers broiler production questions by retrieving supporting
knowledge before generation: it resolves conversational follow-ups, routes
queries through a layered intent classifier, searches the primary knowledge
base, augments low-confidence retrievals from external academic sources and
injects token-budgeted terminology into the prompt.

Run "pluma serve" to expose the pipeline over HTTP, or "pluma ask" for a
one-shot query.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
