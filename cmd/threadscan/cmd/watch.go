package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corey/threadscan/internal/app"
)

var (
	watchDebounce time.Duration
	watchEvery    string
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Scan, then keep the report current as files change",
	Long: "Performs a full scan, then watches dir for source file changes and rewrites the\n" +
		"report after each one. --every adds scheduled full rescans (cron syntax, e.g.\n" +
		"\"*/15 * * * *\" or \"@every 1h\"). Stops on Ctrl-C.",
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	addScanFlags(watchCmd)
	f := watchCmd.Flags()
	f.DurationVar(&watchDebounce, "debounce", 100*time.Millisecond, "Quiet period before a changed file is rescanned")
	f.StringVar(&watchEvery, "every", "", "Cron spec for periodic full rescans")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadScanConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("debounce") {
		cfg.Watch.Debounce = watchDebounce
	}
	if cmd.Flags().Changed("every") {
		cfg.Watch.Every = watchEvery
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, cleanup, err := newApp(cfg, rootArg(args))
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Watch(ctx, app.WatchConfig{
		Debounce: cfg.Watch.Debounce,
		Every:    cfg.Watch.Every,
	})
}
