package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corey/threadscan/internal/app"
)

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Scan a directory and write the report",
	Long: "Walks dir (default: current directory), matches every source file against the\n" +
		"rule tables and writes search_results_<dir>.txt. Exits 2 when no source files\n" +
		"are found.",
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	addScanFlags(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadScanConfig(cmd)
	if err != nil {
		return err
	}
	a, cleanup, err := newApp(cfg, rootArg(args))
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, _, err := a.Run(ctx); err != nil {
		if errors.Is(err, app.ErrNoSourceFiles) {
			return scanExit{2}
		}
		return err
	}
	return nil
}
