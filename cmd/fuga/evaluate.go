package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/fuga/internal/evaluate"
	"github.com/franz/fuga/internal/report"
	"github.com/franz/fuga/internal/store"
	"github.com/franz/fuga/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score logged searches and write a retrieval report",
	Long: `Evaluate every stored search attempt against its ground-truth line.

A returned line counts as correct when it belongs to the same score as the
ground truth, or when the stored alignment of the two lines is below the
threshold on all three tracks. A failed track (-1) counts as below the
threshold unless --exclude-failed is set.

Reports Hit@1, Hit@3, Hit@5 and MRR overall and by instrument, musical form,
query length and score, each split by algorithm and search type.

The report is saved to <artifacts>/reports/<timestamp>/evaluation.md and
evaluation.json`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, "threshold", "exclude-failed")
	},
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().Float64("threshold", evaluate.DefaultThreshold, "distance below which two lines are a near match")
	evaluateCmd.Flags().Bool("exclude-failed", false, "never count a failed track (-1) as a near match")
	evaluateCmd.Flags().String("out", "", "output directory (default: <artifacts>/reports/<timestamp>)")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	threshold := GetConfigFloat("threshold", evaluate.DefaultThreshold)

	dbPath := viper.GetString("db")
	util.InfoLog("=== Evaluating search attempts ===")
	util.InfoLog("Database: %s", dbPath)

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := newEventLogger()
	defer logger.Close()

	lines, err := db.GetAllMelodicLines()
	if err != nil {
		return fmt.Errorf("failed to load melodic lines: %w", err)
	}
	attempts, err := db.GetSearchAttempts()
	if err != nil {
		return fmt.Errorf("failed to load search attempts: %w", err)
	}
	if len(attempts) == 0 {
		util.WarnLog("No search attempts stored (use fuga searches import)")
	}
	if n, err := db.CountAlignments(); err == nil && n == 0 {
		util.WarnLog("No alignments stored; only same-score results count as correct")
	}

	evaluator, err := evaluate.New(lines, db, threshold)
	if err != nil {
		return err
	}
	if GetConfigBool("exclude-failed") {
		util.InfoLog("Failed tracks never count as near matches")
		evaluator.SetExcludeFailed(true)
	}
	evalReport, err := evaluator.Evaluate(attempts)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	summary, err := report.GenerateSummaryReport(db, evalReport, logger.Path())
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	summary.DatabasePath = dbPath

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputDir = filepath.Join(artifactsDir(), "reports", timestamp)
	}
	mdPath := filepath.Join(outputDir, "evaluation.md")
	jsonPath := filepath.Join(outputDir, "evaluation.json")

	if err := report.WriteMarkdownReport(summary, mdPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := report.WriteJSONReport(summary, jsonPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.LogEvaluate(evalReport.Attempts, evaluator.Threshold(), mdPath)

	util.SuccessLog("Evaluated %s search attempts", util.FormatCount(int64(evalReport.Attempts)))
	for _, g := range evalReport.ByGrouping(evaluate.Overall) {
		util.InfoLog("  %s/%s: Hit@1 %.1f%%  Hit@3 %.1f%%  Hit@5 %.1f%%  MRR %.3f (%d attempts)",
			g.Key.Algorithm, g.Key.SearchType,
			g.HitRate[1]*100, g.HitRate[3]*100, g.HitRate[5]*100, g.MRR, g.Attempts)
	}
	util.InfoLog("")
	util.InfoLog("Report saved to: %s", mdPath)
	return nil
}
