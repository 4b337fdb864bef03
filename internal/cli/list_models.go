/*
PURPOSE:
  Defines the 'list-models' subcommand.
  Helps debug connectivity and model discovery.

REQUIREMENTS:
  User-specified:
  - List servable models before committing to a run.

  Implementation-discovered:
  - Useful validation step before full run.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Client.ListModels()

ERROR HANDLING:
  - Prints error (with corrective hint) if the backend is unreachable.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  canopy-bench list-models --url http://ollama-1:11434

RELATED FILES:
  - internal/engine/client.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/canopy-bench/internal/config"
	"github.com/daryltucker/canopy-bench/internal/engine"
)

var listModelsURL string

var listModelsCmd = &cobra.Command{
	Use:   "list-models",
	Short: "List available models on the target host",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("url") {
			cfg.BaseURL = listModelsURL
		}

		client := engine.NewClient(cfg)
		models, err := client.ListModels(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Models on %s:\n", cfg.BaseURL)
		for _, m := range models {
			fmt.Printf("- %s\n", m)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listModelsCmd)
	listModelsCmd.Flags().StringVar(&listModelsURL, "url", "", "Ollama API base URL")
}
