package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"weave/internal/interactions"
	"weave/internal/llm"
	"weave/internal/modules"
)

var (
	inferFormat         string
	inferCoverageTarget float64
	inferMaxRetries     int
)

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Run the full interaction inference pipeline",
	Long: `Run interaction inference over the indexed repo:

  1. Sync deterministic interactions from call-graph and import evidence
  2. Generate per-edge semantic descriptions (batched LLM calls)
  3. Infer cross-process connections between process groups
  4. Remove fan-in anomalies among inferred edges
  5. Drive relationship coverage toward the target via targeted passes

Examples:
  weave infer
  weave infer --coverage-target=95 --max-retries=3
  weave infer --format=json`,
	Run: runInfer,
}

func init() {
	inferCmd.Flags().StringVar(&inferFormat, "format", "human", "Output format (json, human)")
	inferCmd.Flags().Float64Var(&inferCoverageTarget, "coverage-target", 0, "Coverage percent to drive toward (overrides config)")
	inferCmd.Flags().IntVar(&inferMaxRetries, "max-retries", -1, "Max coverage gate retries (overrides config)")
	rootCmd.AddCommand(inferCmd)
}

func runInfer(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(inferFormat)
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)

	if inferCoverageTarget > 0 {
		cfg.Inference.CoverageTarget = inferCoverageTarget
	}
	if inferMaxRetries >= 0 {
		cfg.Inference.MaxGateRetries = inferMaxRetries
	}

	db := mustOpenDB(repoRoot, logger)
	defer db.Close()

	if err := modules.ApplyDeclarations(repoRoot, db, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying module declarations: %v\n", err)
		os.Exit(1)
	}

	client := llm.NewHTTPClient(cfg.LLM)
	engine := interactions.NewEngine(db, client, logger, cfg)

	report, err := engine.Run(newContext())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running inference: %v\n", err)
		os.Exit(1)
	}

	if inferFormat == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error formatting report: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
	} else {
		printHumanReport(report)
	}

	logger.Debug("Inference completed", map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func printHumanReport(r *interactions.Report) {
	fmt.Printf("Run %s\n", r.RunID)
	fmt.Printf("  modules: %d in %d process group(s)\n", r.Modules, r.ProcessGroups)
	fmt.Printf("  static:  %d ast, %d import, %d fallback (%d duplicates skipped, %d default semantics)\n",
		r.ASTInteractions, r.ImportInteractions, r.FallbackInteractions, r.SkippedDuplicates, r.SemanticDefaults)
	fmt.Printf("  cross-process: %d proposed, %d accepted, %d rejected\n",
		r.CrossProcessProposed, r.CrossProcessAccepted, r.CrossProcessRejected)
	fmt.Printf("  coverage gate: %d attempt(s), %d confirmed, %d skipped\n",
		r.GateAttempts, r.TargetedConfirmed, r.TargetedSkipped)
	if r.FanInModulesFlagged > 0 {
		fmt.Printf("  fan-in cleanup: %d module(s) flagged, %d interaction(s) removed\n",
			r.FanInModulesFlagged, r.FanInRemoved)
	}
	fmt.Printf("  final coverage: %.1f%% (%d uncovered pair(s))\n", r.FinalCoveragePercent, r.UncoveredPairs)
}
