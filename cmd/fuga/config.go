package main

import (
	"path/filepath"
	"time"

	"github.com/franz/fuga/internal/report"
	"github.com/franz/fuga/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (FUGA_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt(key)
}

// GetConfigFloat retrieves a float config value with proper precedence
func GetConfigFloat(key string, defaultValue float64) float64 {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetFloat64(key)
}

// GetConfigDuration retrieves a duration config value ("30s", "2m")
func GetConfigDuration(key string, defaultValue time.Duration) time.Duration {
	val := viper.GetDuration(key)
	if val <= 0 {
		return defaultValue
	}
	return val
}

// GetConfigBool retrieves a bool config value
func GetConfigBool(key string) bool {
	return viper.GetBool(key)
}

// GetConfigStringSlice retrieves a string slice config value
func GetConfigStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}

// readTuning picks corpus read settings. --network forces network mode on
// or off; unset, the corpus filesystem decides.
func readTuning(corpus string) *util.ReadTuning {
	var force *bool
	if viper.IsSet("network") {
		v := viper.GetBool("network")
		force = &v
	}
	return util.TuneForCorpus(corpus, force, GetConfigInt("concurrency", 8))
}

// bindFlags binds a command's own flags to viper keys of the same name.
// Several commands share keys (corpus, dict), so binding happens when the
// command runs rather than in init.
func bindFlags(cmd *cobra.Command, keys ...string) error {
	for _, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(key)); err != nil {
			return err
		}
	}
	return nil
}

// setupLogging applies --verbose and --quiet before any command runs
func setupLogging(cmd *cobra.Command, args []string) error {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
	return nil
}

func artifactsDir() string {
	return GetConfigString("artifacts", "artifacts")
}

// newEventLogger opens the JSONL event log under the artifacts directory.
// Failure to create it is not fatal.
func newEventLogger() *report.EventLogger {
	logLevel := report.LevelInfo
	if viper.GetBool("quiet") {
		logLevel = report.LevelWarning
	} else if viper.GetBool("verbose") {
		logLevel = report.LevelDebug
	}

	logger, err := report.NewEventLogger(filepath.Join(artifactsDir(), "events"), logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}
	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}
	return logger
}
