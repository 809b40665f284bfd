package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/export"
	"github.com/franz/fuga/internal/store"
	"github.com/franz/fuga/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export encoded melodic lines as FASTA files for BLAST",
	Long: `Write the stored encodings of every melodic line as FASTA sequences, one file
per track: chromatic.fsa, diatonic.fsa and rhythm.fsa. Build a BLAST database
from them with makeblastdb -dbtype prot.

The lines must have been ingested with the given exact regime dictionary set.
Lines with an empty encoding on a track are left out of that track's file.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, "dict")
	},
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("dict", "", "exact regime dictionary set the lines were ingested with")
	exportCmd.Flags().String("out", "", "output directory (default: <artifacts>/blast)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	dictPath := GetConfigString("dict", "")
	if dictPath == "" {
		return fmt.Errorf("dictionary set is required (use --dict or set in config)")
	}
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = filepath.Join(artifactsDir(), "blast")
	}

	set, err := alphabet.LoadSet(ctx, dictPath)
	if err != nil {
		return fmt.Errorf("failed to load dictionary set: %w", err)
	}

	db, err := store.Open(viper.GetString("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	lines, err := db.GetAllMelodicLines()
	if err != nil {
		return fmt.Errorf("failed to load melodic lines: %w", err)
	}
	if len(lines) == 0 {
		util.WarnLog("No melodic lines stored (use fuga ingest)")
	}

	util.InfoLog("=== Exporting FASTA ===")
	util.InfoLog("Dictionary set: %s (%s regime)", set.Version, set.Regime)

	results, err := export.WriteFASTASet(outDir, set, lines)
	if err != nil {
		return err
	}
	for _, r := range results {
		util.InfoLog("  %s: %s sequences", r.Path, util.FormatCount(int64(r.Written)))
		if r.Empty > 0 {
			util.WarnLog("  %s: %d lines with an empty encoding left out", filepath.Base(r.Path), r.Empty)
		}
	}

	util.SuccessLog("FASTA files written to %s", outDir)
	return nil
}
