package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  "Prints the configuration after applying the config file to the defaults, in config file form.",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	source := configPath
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		source = configPath + " (not found, using defaults)"
	}
	fmt.Fprintf(out, "# config: %s\n", source)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "# invalid: %v\n", err)
	}

	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
