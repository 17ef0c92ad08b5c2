package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyClear bool
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past scans recorded in the cache",
	Long:  "Lists runs recorded while the cache was enabled, newest first. --clear wipes history and cached results.",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.IntVarP(&historyLimit, "limit", "n", 20, "Show at most N runs (0 = all)")
	f.BoolVar(&historyClear, "clear", false, "Delete history and cached results")
	f.BoolVar(&historyJSON, "json", false, "Output as JSON")
	f.StringVar(&scanCachePath, "cache-path", "", "Cache database file")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cfg.Cache.Path
	if cmd.Flags().Changed("cache-path") {
		path = scanCachePath
	}
	out := cmd.OutOrStdout()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(out, "No scan history at %s (enable the cache with --cache)\n", path)
		return nil
	}
	store, err := openCache(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if historyClear {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintf(out, "Cleared %s\n", path)
		return nil
	}

	runs, err := store.Runs(historyLimit)
	if err != nil {
		return err
	}
	if historyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet")
		return nil
	}

	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %s  %s matched of %d scanned",
			r.StartedAt.Local().Format(time.DateTime),
			r.Root,
			green.Sprintf("%d", r.FilesMatched),
			r.FilesScanned)
		if r.FilesFailed > 0 {
			fmt.Fprintf(out, ", %d unreadable", r.FilesFailed)
		}
		if r.CacheHits > 0 {
			fmt.Fprintf(out, ", %d cached", r.CacheHits)
		}
		fmt.Fprintf(out, "  %s\n", gray.Sprintf("%s %s", shortID(r.ID), r.Duration().Round(time.Millisecond)))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
