package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/langware-labs/skillit/internal/config"
	"github.com/langware-labs/skillit/internal/logger"
)

// Version information set via ldflags
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	verbose    bool
	configFile string
	projectDir string
)

var rootCmd = &cobra.Command{
	Use:   "skillit",
	Short: "Activation-rule engine for Claude Code hooks",
	Long: `Skillit evaluates activation rules against conversation transcripts.

A rule pairs a trigger condition with an ordered action list, bound to a
set of hook events. The eval harness replays each rule against recorded
fixture transcripts before the rule is trusted; only rules whose cases
all pass are certified.

Rules live one per directory:
  <name>/rule.yaml                     rule definition
  <name>/eval/<case>/transcript.jsonl  fixture transcript
  <name>/eval/<case>/expected_output.json`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("skillit %s\n", Version)
		fmt.Printf("  commit: %s\n", Commit)
		fmt.Printf("  built:  %s\n", Date)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Override config file path")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "p", "", "Override project directory")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() *config.Config {
	loader, err := config.NewLoader(projectDir)
	if err != nil {
		return config.DefaultConfig()
	}

	var cfg *config.Config
	if configFile != "" {
		cfg, err = loader.LoadFromFile(configFile)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}

func initLogging(cfg *config.Config) {
	level := cfg.Settings.LogLevel
	if verbose {
		level = "debug"
	}
	if err := logger.Init(level, cfg.Settings.LogFile); err != nil {
		logger.InitQuiet()
	}
}
