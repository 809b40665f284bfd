package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/franz/fuga/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "fuga",
		Short: "Fuga - melodic similarity retrieval over a score corpus",
		Long: `fuga encodes the melodic lines of a score corpus as symbol strings,
aligns every pair of lines on their chromatic, diatonic and rhythmic tracks,
and evaluates logged melodic searches against the resulting similarity data.

Typical pipeline:
  fuga dict     --corpus DIR --regime exact
  fuga costmap  --dict artifacts/dictionaries/exact.json --mode global
  fuga ingest   --corpus DIR --dict artifacts/dictionaries/exact.json
  fuga align    --costmaps artifacts/costmaps
  fuga searches import searches.json
  fuga evaluate`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogging,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/fuga.yaml)")
	rootCmd.PersistentFlags().String("db", "fuga.db", "corpus database file")
	rootCmd.PersistentFlags().String("artifacts", "artifacts", "directory for dictionaries, cost maps, event logs and reports")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("artifacts", rootCmd.PersistentFlags().Lookup("artifacts"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("fuga")
		viper.SetConfigType("yaml")
	}

	// FUGA_BATCH_SIZE etc.
	viper.SetEnvPrefix("FUGA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
