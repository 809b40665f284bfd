package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/franz/fuga/internal/align"
	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/costmatrix"
	"github.com/franz/fuga/internal/util"
	"github.com/spf13/cobra"
)

var distanceCmd = &cobra.Command{
	Use:   "distance <a> <b> -f <track>",
	Short: "Print the alignment distance of two encoded strings",
	Long: `Align two encoded strings of one track with that track's cost map and print
the distance on stdout. Exit status is non-zero on any error.

This is the command line contract of an external aligner, so the exec
engine of "fuga align" can run fuga itself.`,
	Args: cobra.ExactArgs(2),
	RunE: runDistance,
}

func init() {
	rootCmd.AddCommand(distanceCmd)

	distanceCmd.Flags().StringP("track", "f", "", "feature track: chromatic, diatonic or rhythmic")
	distanceCmd.Flags().String("costmaps", "", "cost map directory (default: <artifacts>/costmaps)")
	distanceCmd.Flags().String("mode", "global", "cost map mode: global or local")
	distanceCmd.Flags().Float64("gap", align.DefaultGapPenalty, "insertion and deletion cost")
	distanceCmd.Flags().Bool("truncate-costs", false, "truncate alignment cells to integers like the legacy aligner")
	distanceCmd.MarkFlagRequired("track")
}

func runDistance(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	trackName, _ := cmd.Flags().GetString("track")
	track, err := alphabet.ParseTrack(trackName)
	if err != nil {
		return err
	}
	modeName, _ := cmd.Flags().GetString("mode")
	mode, err := costmatrix.ParseMode(modeName)
	if err != nil {
		return err
	}
	if mode != costmatrix.Global {
		return fmt.Errorf("%w: distance needs global cost maps, got %s", util.ErrInvalidConfig, mode)
	}
	dir, _ := cmd.Flags().GetString("costmaps")
	if dir == "" {
		dir = filepath.Join(artifactsDir(), "costmaps")
	}
	gap, _ := cmd.Flags().GetFloat64("gap")

	// Only the requested track's matrix is needed
	m, err := costmatrix.Load(ctx, costmatrix.Path(dir, mode, track))
	if err != nil {
		return fmt.Errorf("failed to load cost map: %w", err)
	}
	engine, err := align.NewInProcess(costmatrix.Set{track: m}, gap)
	if err != nil {
		return err
	}
	truncate, _ := cmd.Flags().GetBool("truncate-costs")
	engine.SetTruncation(truncate)

	d, err := engine.Distance(ctx, args[0], args[1], track)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(d, 'f', -1, 64))
	return nil
}
