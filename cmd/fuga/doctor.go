package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/costmatrix"
	"github.com/franz/fuga/internal/store"
	"github.com/franz/fuga/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure fuga can operate correctly.

This command checks:
- SQLite version compatibility
- Database accessibility and integrity
- Corpus directory readability
- Dictionary set and cost maps
- The external aligner, when the exec engine is configured
- Disk space for artifacts

Use this command to troubleshoot issues before running an alignment.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, "corpus", "dict", "costmaps", "mode", "engine", "engine-binary")
	},
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().String("corpus", "", "corpus directory to check (optional)")
	doctorCmd.Flags().String("dict", "", "dictionary set to check (optional)")
	doctorCmd.Flags().String("costmaps", "", "cost map directory (default: <artifacts>/costmaps)")
	doctorCmd.Flags().String("mode", "global", "cost map mode to check")
	doctorCmd.Flags().String("engine", "inprocess", "alignment engine to check")
	doctorCmd.Flags().String("engine-binary", "", "external aligner to check")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== Fuga Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	results = append(results, checkSQLite())
	results = append(results, checkDatabase(viper.GetString("db")))
	results = append(results, checkDatabaseMount(viper.GetString("db")))

	if corpus := GetConfigString("corpus", ""); corpus != "" {
		results = append(results, checkCorpusDirectory(corpus))
	}
	if dictPath := GetConfigString("dict", ""); dictPath != "" {
		results = append(results, checkDictionary(dictPath))
	}

	mode, err := costmatrix.ParseMode(GetConfigString("mode", "global"))
	if err != nil {
		return err
	}
	results = append(results, checkCostMaps(GetConfigString("costmaps", filepath.Join(artifactsDir(), "costmaps")), mode))

	if GetConfigString("engine", "inprocess") == "exec" {
		if binary := GetConfigString("engine-binary", ""); binary != "" {
			results = append(results, checkAligner(binary))
		}
	}

	results = append(results, checkDiskSpace(artifactsDir(), "artifacts"))

	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running fuga.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! System is ready for fuga operations.")
	}

	return nil
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite is linked in, so only the version can be checked
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies database file accessibility
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	lines, _ := db.CountMelodicLines()
	alignments, _ := db.CountAlignments()
	size := util.FormatBytes(info.Size())

	result := checkResult{
		name: "Database",
		message: fmt.Sprintf("%s (%s, %s lines, %s alignments)", dbPath, size,
			util.FormatCount(int64(lines)), util.FormatCount(alignments)),
	}
	if versions, err := db.GetDictionaryVersions(); err == nil && len(versions) > 1 {
		result.warning = true
		result.message += fmt.Sprintf(" - lines encoded with %d dictionary versions", len(versions))
	}
	if running, err := db.HasRunningRun(); err == nil && running {
		result.warning = true
		result.message += " - an alignment run did not finish"
	}
	return result
}

// checkDatabaseMount warns when the database sits on a network mount, where
// the WAL shared-memory index is not safe
func checkDatabaseMount(dbPath string) checkResult {
	dir := filepath.Dir(dbPath)
	info, err := util.DetectMount(dir)
	if err != nil {
		return checkResult{
			name:    "Database filesystem",
			warning: true,
			message: fmt.Sprintf("cannot inspect %s: %v", dir, err),
		}
	}
	if info.IsNetwork {
		return checkResult{
			name:    "Database filesystem",
			warning: true,
			message: fmt.Sprintf("%s is on a %s mount; keep the database on local disk", dir, info.Protocol),
		}
	}
	return checkResult{
		name:    "Database filesystem",
		message: "local",
	}
}

// checkCorpusDirectory verifies the corpus is readable and holds feature files
func checkCorpusDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{
			name:    "Corpus directory",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Corpus directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return checkResult{
			name:    "Corpus directory",
			error:   true,
			message: fmt.Sprintf("cannot read %s: %v", path, err),
		}
	}

	return checkResult{
		name:    "Corpus directory",
		message: fmt.Sprintf("%s (%d entries)", path, len(entries)),
	}
}

// checkDictionary verifies a dictionary set loads and validates
func checkDictionary(path string) checkResult {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	set, err := alphabet.LoadSet(ctx, path)
	if err != nil {
		return checkResult{
			name:    "Dictionary set",
			error:   true,
			message: err.Error(),
		}
	}

	return checkResult{
		name: "Dictionary set",
		message: fmt.Sprintf("%s (%s regime, %d/%d/%d symbols)", set.Version, set.Regime,
			len(set.Dictionaries[alphabet.Chromatic]), len(set.Dictionaries[alphabet.Diatonic]),
			len(set.Dictionaries[alphabet.Rhythmic])),
	}
}

// checkCostMaps verifies the cost maps of mode are present and readable
func checkCostMaps(dir string, mode costmatrix.Mode) checkResult {
	name := fmt.Sprintf("Cost maps (%s)", mode)
	if !costmatrix.Exists(dir, mode) {
		return checkResult{
			name:    name,
			warning: true,
			message: fmt.Sprintf("not found in %s (run fuga costmap)", dir),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	set, err := costmatrix.LoadSet(ctx, dir, mode)
	if err != nil {
		return checkResult{
			name:    name,
			error:   true,
			message: err.Error(),
		}
	}
	for _, t := range alphabet.Tracks {
		if err := set[t].Validate(mode); err != nil {
			return checkResult{
				name:    name,
				error:   true,
				message: fmt.Sprintf("%s: %v", t, err),
			}
		}
	}

	return checkResult{
		name: name,
		message: fmt.Sprintf("%s (%d/%d/%d symbols)", filepath.Join(dir, string(mode)),
			len(set[alphabet.Chromatic]), len(set[alphabet.Diatonic]), len(set[alphabet.Rhythmic])),
	}
}

// checkAligner verifies the external aligner is executable
func checkAligner(binary string) checkResult {
	path, err := exec.LookPath(binary)
	if err != nil {
		return checkResult{
			name:    "External aligner",
			error:   true,
			message: fmt.Sprintf("%s not found or not executable (required by the exec engine)", binary),
		}
	}

	return checkResult{
		name:    "External aligner",
		message: path,
	}
}

// checkDiskSpace verifies available disk space
func checkDiskSpace(path string, label string) checkResult {
	// Statfs needs an existing path
	for {
		if _, err := os.Stat(path); err == nil || filepath.Dir(path) == path {
			break
		}
		path = filepath.Dir(path)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    fmt.Sprintf("Disk space (%s)", label),
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - (stat.Bfree * uint64(stat.Bsize))

	usedPercent := 0.0
	if totalBytes > 0 {
		usedPercent = float64(usedBytes) / float64(totalBytes) * 100
	}

	// Alignment tables of large corpora run into gigabytes
	warning := false
	warningMsg := ""
	if availBytes < 1<<30 {
		warning = true
		warningMsg = " (low space!)"
	} else if usedPercent > 95 {
		warning = true
		warningMsg = " (>95% used)"
	}

	return checkResult{
		name:    fmt.Sprintf("Disk space (%s)", label),
		warning: warning,
		message: fmt.Sprintf("%s available%s", util.FormatBytes(int64(availBytes)), warningMsg),
	}
}
