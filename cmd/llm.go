package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/codeguardian/internal/llm"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect the configured LLM provider",
}

var llmModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List Gemini models that support generateContent",
	RunE: func(cmd *cobra.Command, args []string) error {
		return llmModelsRun(cmd.Context())
	},
}

func init() {
	llmCmd.AddCommand(llmModelsCmd)
	rootCmd.AddCommand(llmCmd)
}

func llmModelsRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	g, err := llm.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return err
	}
	defer g.Close()

	names, err := g.ListModels(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		ui.Warning("No models support generateContent for this key")
		return nil
	}

	ui.Info("Models supporting generateContent:")
	for _, name := range names {
		marker := " "
		if name == "models/"+cfg.Gemini.Model {
			marker = "*"
		}
		fmt.Fprintf(ui.Out, "  %s %s\n", marker, name)
	}
	return nil
}
