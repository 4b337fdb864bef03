/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes the benchmark suite against the requested models.

REQUIREMENTS:
  User-specified:
  - Models as positional args: canopy-bench run llama3.1:8b mistral:7b
  - Flags for iterations, prompt, sampling options, timeout, output
    format, export path, quiet mode.

  Implementation-discovered:
  - Need to load config first, then apply flag overrides.
  - Ctrl-C should stop issuing new trials but still let the process
    exit cleanly.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Run()
  - Uses: internal/config, internal/output

ERROR HANDLING:
  - Returns error if config is invalid or the pre-flight check fails.
    Partial trial/model failures are data inside the report, not
    errors here.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Validate -> Engine.Run -> Render.

USAGE:
  canopy-bench run llama3.1:8b mistral:7b -n 10 -o json

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/daryltucker/canopy-bench/internal/config"
	"github.com/daryltucker/canopy-bench/internal/engine"
	"github.com/daryltucker/canopy-bench/internal/output"
)

var (
	urlOverride    string
	iterations     int
	concurrency    int
	promptOverride string
	promptFile     string
	temperature    float64
	topP           float64
	maxTokens      int
	timeoutSeconds int
	maxRetries     int
	noWarmup       bool
	noStream       bool
	outputFormat   string
	exportPath     string
	trialsOutPath  string
	quiet          bool
)

var runCmd = &cobra.Command{
	Use:   "run MODEL [MODEL...]",
	Short: "Run the benchmark suite",
	Long: `Benchmarks each requested model with repeated timed generation
requests and prints per-model statistics plus the overall winner.

The process follows a strict protocol:
1. Pre-flight: confirms the backend is reachable and which models it serves.
2. Warm-up: one discarded trial per model absorbs the model-load cost.
3. Trials: iterations x prompts timed requests per model, with bounded
   concurrency. A failing model never aborts the others.`,
	Example: `  # Compare two models with defaults (5 iterations each)
  canopy-bench run llama3.1:8b mistral:7b

  # More iterations, JSON on stdout
  canopy-bench run -n 10 -o json qwen2.5:7b

  # Custom prompt and a Markdown export
  canopy-bench run --prompt "Explain quantum computing" -e results.md llama3.1:8b

  # Keep the raw per-trial log
  canopy-bench run --trials-out trials.jsonl llama3.1:8b mistral:7b`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// 2. Overrides
		cfg.Models = args
		flags := cmd.Flags()
		if flags.Changed("url") {
			cfg.BaseURL = urlOverride
		}
		if flags.Changed("iterations") {
			cfg.Iterations = iterations
		}
		if flags.Changed("concurrency") {
			cfg.Concurrency = concurrency
		}
		if flags.Changed("prompt") {
			cfg.Prompts = []string{promptOverride}
		}
		if flags.Changed("prompt-file") {
			data, err := os.ReadFile(promptFile)
			if err != nil {
				return fmt.Errorf("failed to read prompt file: %w", err)
			}
			cfg.Prompts = []string{string(data)}
		}
		if flags.Changed("temperature") {
			cfg.Temperature = temperature
		}
		if flags.Changed("top-p") {
			cfg.TopP = topP
		}
		if flags.Changed("max-tokens") {
			cfg.MaxTokens = maxTokens
		}
		if flags.Changed("timeout") {
			cfg.TimeoutSeconds = timeoutSeconds
		}
		if flags.Changed("retries") {
			cfg.MaxRetries = maxRetries
		}
		if noWarmup {
			cfg.Warmup = false
		}
		if noStream {
			cfg.Stream = false
		}
		if flags.Changed("output") {
			cfg.Output = outputFormat
		}
		if flags.Changed("export") {
			cfg.Export = exportPath
		}
		if flags.Changed("trials-out") {
			cfg.TrialsOut = trialsOutPath
		}
		if quiet {
			cfg.Quiet = true
		}

		// 3. Validation (run-aborting; no partial results past here)
		if err := cfg.Validate(); err != nil {
			return err
		}

		if cfg.Quiet {
			output.SetQuiet()
		}

		// 4. Observers: live progress, plus the raw trial log if asked.
		observers := []engine.Observer{output.NewProgress(os.Stderr, cfg.Quiet)}
		if cfg.TrialsOut != "" {
			tw, err := output.NewTrialWriter(cfg.TrialsOut)
			if err != nil {
				return fmt.Errorf("failed to open trials log: %w", err)
			}
			defer tw.Close()
			observers = append(observers, tw)
		}

		// 5. Execution. Ctrl-C stops issuing new trials.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		report, err := engine.Run(ctx, cfg, engine.MultiObserver(observers...))
		if err != nil {
			return err
		}

		// 6. Results
		switch cfg.Output {
		case config.FormatJSON:
			s, err := output.RenderJSON(*report)
			if err != nil {
				return err
			}
			fmt.Print(s)
		case config.FormatCSV:
			fmt.Print(output.RenderCSV(*report))
		case config.FormatMarkdown:
			fmt.Print(output.RenderMarkdown(*report))
		default:
			fmt.Print(output.RenderTable(*report))
		}

		if cfg.Export != "" {
			if err := output.Export(*report, cfg.Export); err != nil {
				return err
			}
			output.Logger.Info("Results exported", "path", cfg.Export)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&urlOverride, "url", "", "Ollama API base URL")
	runCmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "Number of trials per prompt per model")
	runCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Max trials in flight per model")
	runCmd.Flags().StringVar(&promptOverride, "prompt", "", "Custom prompt (overrides config prompts)")
	runCmd.Flags().StringVarP(&promptFile, "prompt-file", "p", "", "Path to a text file containing the prompt")
	runCmd.Flags().Float64VarP(&temperature, "temperature", "t", 0, "Sampling temperature (0.0-2.0)")
	runCmd.Flags().Float64Var(&topP, "top-p", 0, "Nucleus sampling cutoff (0.0-1.0)")
	runCmd.Flags().IntVarP(&maxTokens, "max-tokens", "m", 0, "Maximum tokens to generate per trial")
	runCmd.Flags().IntVar(&timeoutSeconds, "timeout", 0, "Per-request timeout in seconds")
	runCmd.Flags().IntVar(&maxRetries, "retries", -1, "Retry attempts for transient failures")
	runCmd.Flags().BoolVar(&noWarmup, "no-warmup", false, "Skip the discarded warm-up trial")
	runCmd.Flags().BoolVar(&noStream, "no-stream", false, "Use non-streamed requests (TTFT degrades to total duration)")
	runCmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: table, json, csv, markdown")
	runCmd.Flags().StringVarP(&exportPath, "export", "e", "", "Export results to a file (.json, .csv, .md)")
	runCmd.Flags().StringVar(&trialsOutPath, "trials-out", "", "Write the raw per-trial log as JSON Lines")
	runCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
}
