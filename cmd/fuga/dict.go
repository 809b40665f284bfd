package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/ingest"
	"github.com/franz/fuga/internal/util"
	"github.com/spf13/cobra"
)

var dictCmd = &cobra.Command{
	Use:   "dict",
	Short: "Build a dictionary set from corpus token frequencies",
	Long: `Count token frequencies over every feature file of the corpus and assign
one symbol to each of the most frequent tokens, per track.

Regimes:
  exact        20 protein letters, for aligners that only accept amino acids
  approximate  222 printable single-byte symbols

With --from-csv the counts come from frequency tables saved by an earlier
--freq-csv run instead of the corpus.

Every build gets a new version; existing sets are never modified. Lines must
be re-ingested to use a new set.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, "corpus", "regime", "top", "silences", "keep-no-change", "concurrency", "network")
	},
	RunE: runDict,
}

func init() {
	rootCmd.AddCommand(dictCmd)

	dictCmd.Flags().String("corpus", "", "corpus directory of feature JSON files")
	dictCmd.Flags().String("regime", "exact", "symbol regime: exact or approximate")
	dictCmd.Flags().Int("top", 0, "number of tokens to keep per track (0 = whole alphabet)")
	dictCmd.Flags().Bool("silences", false, "keep rests as distinct tokens")
	dictCmd.Flags().Bool("keep-no-change", false, "keep the no-change interval on pitch tracks")
	dictCmd.Flags().Int("concurrency", 8, "files read in parallel")
	dictCmd.Flags().Bool("network", false, "force network corpus tuning on or off (default: detect)")
	dictCmd.Flags().String("out", "", "output file (default: <artifacts>/dictionaries/<regime>.json)")
	dictCmd.Flags().String("freq-csv", "", "directory to write per-track frequency tables to (optional)")
	dictCmd.Flags().String("from-csv", "", "directory of saved frequency tables to build from instead of the corpus")
}

func runDict(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fromCSV, _ := cmd.Flags().GetString("from-csv")
	corpus := GetConfigString("corpus", "")
	if fromCSV == "" {
		if corpus == "" {
			return fmt.Errorf("corpus directory is required (use --corpus or set in config)")
		}
		if _, err := os.Stat(corpus); err != nil {
			return fmt.Errorf("corpus directory: %w", err)
		}
	}

	regime, err := alphabet.ParseRegime(GetConfigString("regime", "exact"))
	if err != nil {
		return err
	}
	opts := alphabet.BuildOptions{
		Regime:       regime,
		Top:          GetConfigInt("top", 0),
		Silences:     GetConfigBool("silences"),
		KeepNoChange: GetConfigBool("keep-no-change"),
	}
	if opts.Top < 0 || opts.Top > len(regime.Symbols()) {
		return fmt.Errorf("%w: --top must be between 0 and %d for the %s regime",
			util.ErrInvalidConfig, len(regime.Symbols()), regime)
	}

	outPath, _ := cmd.Flags().GetString("out")
	if outPath == "" {
		outPath = filepath.Join(artifactsDir(), "dictionaries", string(regime)+".json")
	}

	logger := newEventLogger()
	defer logger.Close()

	util.InfoLog("=== Building %s dictionaries ===", regime)

	var counters map[alphabet.Track]*alphabet.Counter
	if fromCSV != "" {
		util.InfoLog("Frequency tables: %s", fromCSV)
		if counters, err = readFrequencyTables(fromCSV, opts); err != nil {
			return err
		}
	} else {
		util.InfoLog("Corpus: %s", corpus)
		tuning := readTuning(corpus)
		var docs int
		counters, docs, err = ingest.CountTokens(ctx, corpus, opts, tuning.Concurrency, tuning.Retry)
		if err != nil {
			return fmt.Errorf("failed to count tokens: %w", err)
		}
		util.InfoLog("Counted tokens of %s feature files", util.FormatCount(int64(docs)))
	}

	set, err := alphabet.BuildSet(counters, opts)
	if err != nil {
		return fmt.Errorf("failed to build dictionaries: %w", err)
	}

	for _, t := range alphabet.Tracks {
		freqs := counters[t].Sorted()
		dict := set.Dictionaries[t]
		coverage := alphabet.Coverage(freqs, dict)
		util.InfoLog("  %-9s %3d of %d distinct tokens, %.1f%% of occurrences",
			t, len(dict), counters[t].Distinct(), coverage*100)
		logger.LogDictionary(set.Version, string(t), len(dict), coverage)
	}

	if csvDir, _ := cmd.Flags().GetString("freq-csv"); csvDir != "" {
		if err := writeFrequencyTables(csvDir, counters); err != nil {
			return err
		}
		util.InfoLog("Frequency tables: %s", csvDir)
	}

	if err := alphabet.SaveSet(outPath, set); err != nil {
		return fmt.Errorf("failed to save dictionary set: %w", err)
	}

	util.SuccessLog("Dictionary set %s written to %s", set.Version, outPath)
	util.InfoLog("")
	util.InfoLog("Next step: fuga costmap --dict %s --mode global", outPath)
	return nil
}

func frequencyTablePath(dir string, t alphabet.Track) string {
	return filepath.Join(dir, string(t)+"_frequencies.csv")
}

// readFrequencyTables loads the tables of writeFrequencyTables into counters
// normalizing the way opts builds
func readFrequencyTables(dir string, opts alphabet.BuildOptions) (map[alphabet.Track]*alphabet.Counter, error) {
	counters := alphabet.NewCounters(opts)
	for _, t := range alphabet.Tracks {
		path := frequencyTablePath(dir, t)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open frequency table: %w", err)
		}
		freqs, err := alphabet.ReadFrequencyCSV(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("frequency table %s: %w", path, err)
		}
		counters[t].AddFrequencies(freqs)
	}
	return counters, nil
}

func writeFrequencyTables(dir string, counters map[alphabet.Track]*alphabet.Counter) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	for _, t := range alphabet.Tracks {
		path := frequencyTablePath(dir, t)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := alphabet.WriteFrequencyCSV(f, counters[t].Sorted()); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
