package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/franz/fuga/internal/store"
	"github.com/franz/fuga/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var searchesCmd = &cobra.Command{
	Use:   "searches",
	Short: "Manage logged search attempts",
}

var searchesImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import search attempts logged by the search engine",
	Long: `Import a JSON array of search attempts into the database. Each attempt
carries its recording (musician, instrument, format, ground-truth line), the
query sequence, the algorithm and search type, resource usage and the ranked
results:

  [{"recording_id": "r1", "instrument": "violin", "melodic_line_id": "...",
    "algorithm": "blast", "search_type": "chromatic", "sequence": "2;-1;0",
    "timing": {"fe_clock_ms": 12.5, "alignment_clock_ms": 40},
    "results": [{"melodic_line_id": "...", "ranking_position": 1}]}]`,
	Args: cobra.ExactArgs(1),
	RunE: runSearchesImport,
}

var searchesCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored search attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(viper.GetString("db"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		n, err := db.CountSearchAttempts()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchesCmd)
	searchesCmd.AddCommand(searchesImportCmd)
	searchesCmd.AddCommand(searchesCountCmd)
}

// readSearchAttempts parses an exported search log
func readSearchAttempts(ctx context.Context, path string) ([]*store.SearchAttempt, error) {
	data, err := util.RetryableReadFile(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	var attempts []*store.SearchAttempt
	if err := json.Unmarshal(data, &attempts); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", util.ErrCorrupt, path, err)
	}
	for i, a := range attempts {
		if a.TargetLineID == "" {
			return nil, fmt.Errorf("%w: attempt %d has no melodic_line_id", util.ErrCorrupt, i)
		}
		if a.Algorithm == "" || a.SearchType == "" {
			return nil, fmt.Errorf("%w: attempt %d needs an algorithm and a search type", util.ErrCorrupt, i)
		}
	}
	return attempts, nil
}

func runSearchesImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	attempts, err := readSearchAttempts(ctx, args[0])
	if err != nil {
		return err
	}

	dbPath := viper.GetString("db")
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	unknown := 0
	for _, a := range attempts {
		line, err := db.GetMelodicLine(a.TargetLineID)
		if err != nil {
			return err
		}
		if line == nil {
			unknown++
			util.DebugLog("Search target %s is not an ingested line", a.TargetLineID)
		}
		if err := db.InsertSearchAttempt(a); err != nil {
			return fmt.Errorf("failed to store search attempt: %w", err)
		}
	}

	util.SuccessLog("Imported %s search attempts into %s", util.FormatCount(int64(len(attempts))), dbPath)
	if unknown > 0 {
		util.WarnLog("%d attempts target lines that are not ingested; they are evaluated by score only", unknown)
	}
	return nil
}
