package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pluma0/pluma/internal/config"
	"github.com/pluma0/pluma/internal/log"
	"github.com/pluma0/pluma/internal/pipeline"
)

var askShowPrompt bool

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Run a one-shot query through the retrieval pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().BoolVar(&askShowPrompt, "show-prompt", false, "print the assembled generation prompt")
	rootCmd.AddCommand(askCmd)
}

func runAsk(ctx context.Context, query string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	a, err := setup(ctx, cfg, log.New(log.Config{}))
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	resp, err := a.Pipeline.Process(ctx, pipeline.Request{Query: query})
	if err != nil {
		return err
	}

	printResponse(resp)
	return nil
}

func printResponse(resp pipeline.Response) {
	fmt.Printf("Query:      %s\n", resp.ExpandedQuery)
	fmt.Printf("Intent:     %s (%.2f, mode %s)\n", resp.Intent, resp.Confidence, resp.Mode)
	fmt.Printf("Retrieval:  %s, confidence %.2f", resp.Retrieval.SourceKind, resp.Retrieval.Confidence)
	if resp.Retrieval.Augmented {
		fmt.Printf(", augmented via %s", strings.Join(resp.Diagnostics.ExternalSourcesCalled, ", "))
	}
	fmt.Println()
	if resp.Retrieval.Note != "" {
		fmt.Printf("Note:       %s\n", resp.Retrieval.Note)
	}

	for i, doc := range resp.Retrieval.Documents {
		fmt.Printf("  %d. %s (%d, %s)\n", i+1, doc.Title, doc.Year, doc.SourceName)
	}
	if resp.Diagnostics.TermsInjected > 0 {
		fmt.Printf("Terms:      %d injected (%d tokens)\n", resp.Diagnostics.TermsInjected, resp.Prompt.TokenCount)
	}

	if askShowPrompt {
		fmt.Println()
		fmt.Println(resp.Prompt.BasePrompt)
		if resp.Prompt.TerminologyBlock != "" {
			fmt.Println(resp.Prompt.TerminologyBlock)
		}
	}
}
