package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/pagepick/internal/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the configured LLM provider offers",
	RunE:  runModels,
}

func init() {
	modelsCmd.Flags().String("provider", "", "LLM provider: ollama or anthropic")
	modelsCmd.Flags().String("ollama-url", "", "Ollama server URL")
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	provider, err := llm.NewProvider(cfg.LLM, log)
	if err != nil {
		return err
	}
	if !provider.IsAvailable(cmd.Context()) {
		return fmt.Errorf("%s provider is not available", provider.Name())
	}

	models, err := provider.ListModels(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, m := range models {
		marker := " "
		if m == provider.Model() {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s\n", marker, m)
	}
	return nil
}
