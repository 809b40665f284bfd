package main

import (
	"context"
	"fmt"
	"os"

	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/ingest"
	"github.com/franz/fuga/internal/store"
	"github.com/franz/fuga/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Encode corpus feature files and store them as melodic lines",
	Long: `Read every feature JSON file of the corpus, encode its three tracks with a
dictionary set and store the result in the database.

Re-ingesting a line replaces it. Tokens missing from the dictionaries are
dropped from the encoded strings and counted.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, "corpus", "dict", "concurrency", "network")
	},
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("corpus", "", "corpus directory of feature JSON files")
	ingestCmd.Flags().String("dict", "", "dictionary set file")
	ingestCmd.Flags().Int("concurrency", 8, "files processed in parallel")
	ingestCmd.Flags().Bool("network", false, "force network corpus tuning on or off (default: detect)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	corpus := GetConfigString("corpus", "")
	if corpus == "" {
		return fmt.Errorf("corpus directory is required (use --corpus or set in config)")
	}
	if _, err := os.Stat(corpus); os.IsNotExist(err) {
		return fmt.Errorf("corpus directory does not exist: %s", corpus)
	}
	dictPath := GetConfigString("dict", "")
	if dictPath == "" {
		return fmt.Errorf("dictionary set is required (use --dict or set in config)")
	}

	set, err := alphabet.LoadSet(ctx, dictPath)
	if err != nil {
		return fmt.Errorf("failed to load dictionary set: %w", err)
	}

	dbPath := viper.GetString("db")
	util.InfoLog("Opening database: %s", dbPath)
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := newEventLogger()
	defer logger.Close()

	util.InfoLog("=== Ingesting corpus ===")
	util.InfoLog("Corpus: %s", corpus)
	util.InfoLog("Dictionary set: %s (%s regime)", set.Version, set.Regime)

	tuning := readTuning(corpus)
	ingester, err := ingest.New(&ingest.Config{
		Store:       db,
		Set:         set,
		Concurrency: tuning.Concurrency,
		Retry:       tuning.Retry,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	result, err := ingester.Ingest(ctx, corpus)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	util.InfoLog("  Files found: %s", util.FormatCount(int64(result.FilesFound)))
	util.InfoLog("  Lines stored: %s", util.FormatCount(int64(result.LinesIngested)))
	if result.FilesFailed > 0 {
		util.WarnLog("  Files failed: %d", result.FilesFailed)
	}

	versions, err := db.GetDictionaryVersions()
	if err == nil && len(versions) > 1 {
		util.WarnLog("Database holds lines encoded with %d dictionary versions; re-ingest the whole corpus before aligning", len(versions))
	}

	util.InfoLog("")
	util.InfoLog("Next step: fuga align --costmaps <dir>")
	return nil
}
