package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/franz/fuga/internal/align"
	"github.com/franz/fuga/internal/costmatrix"
	"github.com/franz/fuga/internal/pairwise"
	"github.com/franz/fuga/internal/store"
	"github.com/franz/fuga/internal/util"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "Align every pair of stored melodic lines",
	Long: `Compute the chromatic, diatonic and rhythmic alignment distance of every
unordered pair of melodic lines and store the results.

Engines:
  inprocess  global alignment with the cost maps, inside this process
  exec       runs <engine-binary> [engine-args...] <a> <b> -f <track> per track

The inprocess engine minimizes cost, so it needs global cost maps. Local maps
only make sense for an external aligner that maximizes similarity.

By default the alignment table is cleared and the whole corpus is aligned
again. With --resume, pairs that already have a result are skipped.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, "costmaps", "mode", "workers", "batch-size", "engine",
			"engine-binary", "engine-args", "engine-timeout", "resume", "progress-interval", "truncate-costs")
	},
	RunE: runAlign,
}

func init() {
	rootCmd.AddCommand(alignCmd)

	alignCmd.Flags().String("costmaps", "", "cost map directory (default: <artifacts>/costmaps)")
	alignCmd.Flags().String("mode", "global", "cost map mode: global or local")
	alignCmd.Flags().Int("workers", 0, "concurrent pair alignments (0 = number of CPUs)")
	alignCmd.Flags().Int("batch-size", pairwise.DefaultBatchSize, "results per database transaction")
	alignCmd.Flags().String("engine", "inprocess", "alignment engine: inprocess or exec")
	alignCmd.Flags().String("engine-binary", "", "aligner executable for the exec engine (default: this binary)")
	alignCmd.Flags().StringSlice("engine-args", nil, "arguments placed before <a> <b> for the exec engine")
	alignCmd.Flags().Duration("engine-timeout", align.DefaultTimeout, "timeout of one exec engine invocation")
	alignCmd.Flags().Bool("resume", false, "keep existing results and skip pairs that have one")
	alignCmd.Flags().Duration("progress-interval", pairwise.DefaultProgressInterval, "progress report interval")
	alignCmd.Flags().Bool("truncate-costs", false, "truncate alignment cells to integers like the legacy aligner")
}

func runAlign(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Configuration errors are reported before any work begins
	workers := GetConfigInt("workers", 0)
	if workers < 0 {
		return fmt.Errorf("%w: --workers must be >= 0", util.ErrInvalidConfig)
	}
	batchSize := GetConfigInt("batch-size", pairwise.DefaultBatchSize)
	if batchSize < 1 {
		return fmt.Errorf("%w: --batch-size must be >= 1", util.ErrInvalidConfig)
	}
	mode, err := costmatrix.ParseMode(GetConfigString("mode", "global"))
	if err != nil {
		return err
	}
	costmapDir := GetConfigString("costmaps", filepath.Join(artifactsDir(), "costmaps"))
	resume := GetConfigBool("resume")

	engine, err := newEngine(ctx, costmapDir, mode)
	if err != nil {
		return err
	}

	dbPath := viper.GetString("db")
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database %s: %w (run fuga ingest first)", dbPath, util.ErrNotFound)
	}
	util.InfoLog("Opening database: %s", dbPath)
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	lines, err := db.GetAllMelodicLines()
	if err != nil {
		return fmt.Errorf("failed to load melodic lines: %w", err)
	}
	if len(lines) < 2 {
		util.WarnLog("%d melodic lines stored, nothing to align", len(lines))
	}
	if versions, err := db.GetDictionaryVersions(); err == nil && len(versions) > 1 {
		util.WarnLog("Lines were encoded with %d different dictionary versions", len(versions))
	}
	if running, err := db.HasRunningRun(); err == nil && running {
		util.WarnLog("A previous alignment run did not finish")
	}

	var skip func(id1, id2 string) bool
	if resume {
		done, err := db.GetAlignedPairs()
		if err != nil {
			return fmt.Errorf("failed to load existing results: %w", err)
		}
		util.InfoLog("Resuming: %s pairs already aligned", util.FormatCount(int64(len(done))))
		skip = func(id1, id2 string) bool {
			_, ok := done[store.PairKey(id1, id2)]
			return ok
		}
	} else {
		if err := db.ClearAlignments(); err != nil {
			return err
		}
	}

	logger := newEventLogger()
	defer logger.Close()

	runID := uuid.NewString()
	orch, err := pairwise.New(pairwise.Config{
		Engine:           engine,
		Sink:             db,
		Workers:          workers,
		BatchSize:        batchSize,
		ProgressInterval: GetConfigDuration("progress-interval", pairwise.DefaultProgressInterval),
		Logger:           logger,
		RunID:            runID,
		Skip:             skip,
		OnFlush: func(written, failed int64) {
			if err := db.UpdateRunProgress(runID, written, failed); err != nil {
				util.DebugLog("Failed to update run progress: %v", err)
			}
		},
	})
	if err != nil {
		return err
	}

	err = db.StartRun(&store.AlignmentRun{
		ID:         runID,
		Engine:     engine.Name(),
		Workers:    orch.Workers(),
		BatchSize:  batchSize,
		TotalPairs: pairwise.PairCount(len(lines)),
	})
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	util.InfoLog("=== Alignment run %s ===", runID)
	result, runErr := orch.Run(ctx, lines)

	status := store.RunCompleted
	if runErr != nil {
		status = store.RunFailed
	}
	var written, failed int64
	if result != nil {
		written, failed = result.Written, result.Failed
	}
	if err := db.FinishRun(runID, status, written, failed, runErr); err != nil {
		util.WarnLog("Failed to finalize run %s: %v", runID, err)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("alignment interrupted after %s pairs; rerun with --resume to continue",
				util.FormatCount(written))
		}
		return fmt.Errorf("alignment failed: %w", runErr)
	}

	util.InfoLog("  Pairs: %s written, %s skipped", util.FormatCount(result.Written), util.FormatCount(result.Skipped))
	if result.Failed > 0 {
		util.WarnLog("  Failed invocations: %s (stored as -1)", util.FormatCount(result.Failed))
	}
	if secs := result.Duration.Seconds(); secs > 0 {
		util.InfoLog("  Throughput: %s pairs/s", util.FormatRate(float64(result.Processed)/secs))
	}
	util.InfoLog("  Duration: %v", result.Duration.Round(time.Second))
	return nil
}

// newEngine builds the configured alignment engine
func newEngine(ctx context.Context, costmapDir string, mode costmatrix.Mode) (align.Engine, error) {
	truncate := GetConfigBool("truncate-costs")
	switch name := GetConfigString("engine", "inprocess"); name {
	case "inprocess":
		if mode != costmatrix.Global {
			return nil, fmt.Errorf("%w: the inprocess engine needs global cost maps, got %s", util.ErrInvalidConfig, mode)
		}
		if !costmatrix.Exists(costmapDir, mode) {
			return nil, fmt.Errorf("%s cost maps not found in %s: %w (run fuga costmap first)",
				mode, costmapDir, util.ErrNotFound)
		}
		set, err := costmatrix.LoadSet(ctx, costmapDir, mode)
		if err != nil {
			return nil, fmt.Errorf("failed to load cost maps: %w", err)
		}
		engine, err := align.NewInProcess(set, align.DefaultGapPenalty)
		if err != nil {
			return nil, err
		}
		engine.SetTruncation(truncate)
		return engine, nil

	case "exec":
		binary := GetConfigString("engine-binary", "")
		prefix := GetConfigStringSlice("engine-args")
		if binary == "" {
			// Default to this binary's distance command
			self, err := os.Executable()
			if err != nil {
				return nil, fmt.Errorf("cannot locate own executable: %w", err)
			}
			binary = self
			if mode != costmatrix.Global {
				return nil, fmt.Errorf("%w: fuga distance needs global cost maps, got %s", util.ErrInvalidConfig, mode)
			}
			if len(prefix) == 0 {
				prefix = []string{"distance", "--costmaps", costmapDir, "--mode", string(mode), "--quiet"}
				if truncate {
					prefix = append(prefix, "--truncate-costs")
				}
			}
		}
		engine, err := align.NewExec(binary, prefix, GetConfigDuration("engine-timeout", align.DefaultTimeout))
		if err != nil {
			return nil, err
		}
		util.InfoLog("Exec engine: %s", engine.Binary)
		return engine, nil

	default:
		return nil, fmt.Errorf("%w: unknown engine %q (inprocess or exec)", util.ErrInvalidConfig, name)
	}
}
