package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/costmatrix"
	"github.com/franz/fuga/internal/util"
	"github.com/spf13/cobra"
)

var costmapCmd = &cobra.Command{
	Use:   "costmap",
	Short: "Build the substitution cost matrices of a dictionary set",
	Long: `Build one symbol-by-symbol cost matrix per track from a dictionary set and
write them as binary cost maps under <out>/<mode>/<track>_cost_map.bin.

Modes:
  global  match 0, mismatch +|a-b|  (distances, lower is closer)
  local   match 1, mismatch -|a-b|  (scores, higher is closer)`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, "dict", "mode", "costmaps")
	},
	RunE: runCostmap,
}

func init() {
	rootCmd.AddCommand(costmapCmd)

	costmapCmd.Flags().String("dict", "", "dictionary set file")
	costmapCmd.Flags().String("mode", "global", "alignment mode: global or local")
	costmapCmd.Flags().String("costmaps", "", "output directory (default: <artifacts>/costmaps)")
}

func runCostmap(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	dictPath := GetConfigString("dict", "")
	if dictPath == "" {
		return fmt.Errorf("dictionary set is required (use --dict or set in config)")
	}
	mode, err := costmatrix.ParseMode(GetConfigString("mode", "global"))
	if err != nil {
		return err
	}
	outDir := GetConfigString("costmaps", filepath.Join(artifactsDir(), "costmaps"))

	logger := newEventLogger()
	defer logger.Close()

	set, err := alphabet.LoadSet(ctx, dictPath)
	if err != nil {
		return fmt.Errorf("failed to load dictionary set: %w", err)
	}
	util.InfoLog("Dictionary set %s (%s regime)", set.Version, set.Regime)

	matrices, err := costmatrix.BuildSet(set, mode)
	if err != nil {
		return fmt.Errorf("failed to build cost matrices: %w", err)
	}
	for _, t := range alphabet.Tracks {
		if err := matrices[t].Validate(mode); err != nil {
			return fmt.Errorf("%s cost matrix: %w", t, err)
		}
	}
	if err := costmatrix.WriteSet(outDir, mode, matrices); err != nil {
		return fmt.Errorf("failed to write cost maps: %w", err)
	}

	for _, t := range alphabet.Tracks {
		path := costmatrix.Path(outDir, mode, t)
		util.InfoLog("  %-9s %3d symbols -> %s", t, len(matrices[t]), path)
		logger.LogCostMap(string(t), path, string(mode), len(matrices[t]))
	}

	util.SuccessLog("Wrote %s cost maps to %s", mode, filepath.Join(outDir, string(mode)))
	return nil
}
