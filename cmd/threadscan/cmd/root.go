package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/corey/threadscan/internal/config"
)

var (
	configPath string
	logLevel   string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "threadscan",
	Short: "threadscan: find threading and parallelism markers in source trees",
	Long: "Recursively scans a directory for source files that use threads, process pools,\n" +
		"OpenMP, async runtimes and similar constructs, and writes a report of every\n" +
		"matched term with its line numbers.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configPath, "config", config.DefaultFile, "Config file (missing file = defaults)")
	f.StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	f.BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}
