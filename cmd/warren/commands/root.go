package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	// cfgFile is the path to warren.yml, shared by all subcommands.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warren",
	Short: "Warren - Human-gated content pipeline with hash-chained artifacts",
	Long: `Warren is a multi-stage content-generation pipeline in which every
producer's output is held for explicit human approval before any downstream
stage may read it.

Approved artifacts are immutable and hash-locked; each downstream artifact
records the exact content hashes of the upstream artifacts it was derived
from, so every dependency is provable and tampering is detectable.

State lives in Redis, namespaced per instance, with a per-run single-writer
lock and an append-only audit trail.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "warren.yml", "Path to warren.yml")

	// Silence Cobra's default error and usage printing; the printer package
	// already writes rich errors to stderr.
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}
