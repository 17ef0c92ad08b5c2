package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corey/threadscan/internal/adapters/bbolt"
	"github.com/corey/threadscan/internal/adapters/report"
	"github.com/corey/threadscan/internal/app"
	"github.com/corey/threadscan/internal/config"
	"github.com/corey/threadscan/internal/domain/ruleset"
	"github.com/corey/threadscan/internal/logger"
)

// Flags shared by scan and watch. They override config file values only
// when set on the command line.
var (
	scanExtensions   []string
	scanExcludeDirs  []string
	scanWorkers      int
	scanOutputDir    string
	scanFormat       string
	scanRulesFile    string
	scanReplaceRules bool
	scanCache        bool
	scanCachePath    string
)

func addScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVarP(&scanExtensions, "ext", "e", nil, "File extensions to scan (default .py,.cpp,.h,.r,.java,.js,.c,.hpp)")
	f.StringSliceVar(&scanExcludeDirs, "exclude-dir", nil, "Directory names or globs to skip")
	f.IntVarP(&scanWorkers, "workers", "w", 1, "Files scanned concurrently")
	f.StringVarP(&scanOutputDir, "output-dir", "o", "", "Directory for the report (default: working directory)")
	f.StringVarP(&scanFormat, "format", "f", "text", "Report format: "+report.FormatNames())
	f.StringVar(&scanRulesFile, "rules", "", "Extra YAML rule table merged with the built-in rules")
	f.BoolVar(&scanReplaceRules, "replace-rules", false, "Use --rules alone instead of merging")
	f.BoolVar(&scanCache, "cache", false, "Cache results and record run history")
	f.StringVar(&scanCachePath, "cache-path", "", "Cache database file")
}

// loadConfig reads the config file and applies global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// loadScanConfig applies the scan flags on top of loadConfig and validates.
func loadScanConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("ext") {
		cfg.Extensions = scanExtensions
	}
	if f.Changed("exclude-dir") {
		cfg.ExcludeDirs = scanExcludeDirs
	}
	if f.Changed("workers") {
		cfg.Workers = scanWorkers
	}
	if f.Changed("output-dir") {
		cfg.OutputDir = scanOutputDir
	}
	if f.Changed("format") {
		cfg.Format = scanFormat
	}
	if f.Changed("rules") {
		cfg.RulesFile = scanRulesFile
	}
	if f.Changed("replace-rules") {
		cfg.ReplaceDefaultRules = scanReplaceRules
	}
	if f.Changed("cache") {
		cfg.Cache.Enabled = scanCache
	}
	if f.Changed("cache-path") {
		cfg.Cache.Path = scanCachePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadRules builds the effective rule set: built-in tables, merged with or
// replaced by the configured rules file.
func loadRules(cfg *config.Config) (*ruleset.RuleSet, error) {
	if cfg.RulesFile == "" {
		return ruleset.Default(), nil
	}
	user, err := ruleset.LoadFile(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	if cfg.ReplaceDefaultRules {
		return user, nil
	}
	return ruleset.Default().Merge(user), nil
}

// openCache opens the bbolt store at path with lock diagnostics.
func openCache(path string) (*bbolt.Store, error) {
	store, err := bbolt.NewStore(path)
	if err != nil {
		if isDBLockError(err) {
			return nil, errors.New(diagnoseDBLock(path))
		}
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return store, nil
}

// newApp wires an App for root from cfg. The returned cleanup closes the cache.
func newApp(cfg *config.Config, root string) (*app.App, func(), error) {
	format, err := cfg.ReportFormat()
	if err != nil {
		return nil, nil, err
	}
	rules, err := loadRules(cfg)
	if err != nil {
		return nil, nil, err
	}

	cachePath := ""
	if cfg.Cache.Enabled {
		cachePath = cfg.Cache.Path
	}
	paths, err := app.NewPaths(root, cfg.OutputDir, format, cachePath)
	if err != nil {
		return nil, nil, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, nil, fmt.Errorf("create directories: %w", err)
	}

	log := logger.NewConsoleLogger(os.Stderr, cfg.LogLevel)
	acfg := app.Config{
		Paths:     paths,
		Rules:     rules,
		Collector: cfg.CollectorOptions(),
		Workers:   cfg.Workers,
		Format:    format,
		Logger:    log,
	}

	cleanup := func() {}
	if cachePath != "" {
		store, err := openCache(paths.CacheDB)
		if err != nil {
			return nil, nil, err
		}
		acfg.Cache = store
		cleanup = func() { store.Close() }
	}

	a, err := app.New(acfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}

// rootArg returns the directory argument, defaulting to ".".
func rootArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
