package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/corey/threadscan/internal/adapters/recon"
	"github.com/corey/threadscan/internal/domain/ruleset"
)

var (
	rulesFile     string
	rulesReplace  bool
	rulesCategory string
	rulesTest     string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List, validate or try out the rule tables",
	Long: "Prints the effective literal, pattern and indicator tables. With --rules the\n" +
		"file is validated and merged first. With --test the given line is matched and\n" +
		"the hits of each pass are shown.",
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	f := rulesCmd.Flags()
	f.StringVar(&rulesFile, "rules", "", "YAML rule table to validate and merge")
	f.BoolVar(&rulesReplace, "replace-rules", false, "Show --rules alone instead of merged")
	f.StringVarP(&rulesCategory, "category", "c", "", "Only list one table: literals, patterns, indicators")
	f.StringVarP(&rulesTest, "test", "t", "", "Match a single line and show the hits")
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("rules") {
		cfg.RulesFile = rulesFile
	}
	if cmd.Flags().Changed("replace-rules") {
		cfg.ReplaceDefaultRules = rulesReplace
	}
	rs, err := loadRules(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rulesTest != "" {
		printLineHits(out, recon.NewMatcher(rs), rulesTest)
		return nil
	}

	cats := []ruleset.Category{ruleset.CategoryLiteral, ruleset.CategoryPattern, ruleset.CategoryIndicator}
	if rulesCategory != "" {
		c, err := parseCategory(rulesCategory)
		if err != nil {
			return err
		}
		cats = []ruleset.Category{c}
	}

	bold := color.New(color.Bold)
	for _, c := range cats {
		bold.Fprintf(out, "%s (%d)\n", c, rs.Count(c))
		for _, entry := range entries(rs, c) {
			fmt.Fprintf(out, "  %s\n", entry)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "fingerprint %016x\n", rs.Fingerprint())
	return nil
}

func parseCategory(s string) (ruleset.Category, error) {
	for _, c := range []ruleset.Category{ruleset.CategoryLiteral, ruleset.CategoryPattern, ruleset.CategoryIndicator} {
		if strings.EqualFold(s, c.String()) || strings.EqualFold(s+"s", c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q (want literals, patterns or indicators)", s)
}

func entries(rs *ruleset.RuleSet, c ruleset.Category) []string {
	switch c {
	case ruleset.CategoryLiteral:
		return rs.Literals()
	case ruleset.CategoryIndicator:
		return rs.Indicators()
	}
	pats := rs.Patterns()
	out := make([]string, len(pats))
	for i, p := range pats {
		out[i] = p.Source
	}
	return out
}

// printLineHits shows what each pass finds in line.
func printLineHits(w io.Writer, m *recon.Matcher, line string) {
	passes := []struct {
		name string
		hits []string
	}{
		{"literals", m.LiteralHits(line)},
		{"patterns", m.PatternHits(line)},
		{"indicators", m.IndicatorHits(line)},
	}
	cyan := color.New(color.FgCyan)
	total := 0
	for _, p := range passes {
		total += len(p.hits)
		if len(p.hits) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", p.name)
		for _, h := range p.hits {
			fmt.Fprintf(w, "  - %s\n", cyan.Sprint(h))
		}
	}
	if total == 0 {
		fmt.Fprintln(w, "no hits")
	}
}
