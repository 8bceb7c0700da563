package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coolbeans/citecheck/pkg/normalize"
	"github.com/coolbeans/citecheck/pkg/pipeline"
	"github.com/coolbeans/citecheck/pkg/review"
	"github.com/coolbeans/citecheck/pkg/rules"
	"github.com/coolbeans/citecheck/pkg/store"
)

var version = "0.1.0"

func main() {
	cobra.OnInitialize(initConfig)

	rootCmd := &cobra.Command{
		Use:   "citecheck",
		Short: "Legal citation extraction and rule validation",
		Long: `Citecheck extracts citations from legal footnote text and validates
them against a declarative citation-style rule catalog.

For each footnote it:
  - Normalizes formatting markers left behind by word-processor export
  - Segments the text into discrete citation units
  - Classifies each unit (case, statute, book, journal, cross-reference)
  - Evaluates the rule catalog and deterministic structural checks
  - Recommends approve or flag-for-review per citation`,
		Version: version,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $HOME/.citecheck.yaml)")
	rootCmd.PersistentFlags().String("rules-dir", "", "directory of rule catalog YAML files (default: embedded catalog)")
	rootCmd.PersistentFlags().Float64("threshold", 0.9, "auto-approve confidence threshold")
	viper.BindPFlag("rules_dir", rootCmd.PersistentFlags().Lookup("rules-dir"))
	viper.BindPFlag("auto_approve_threshold", rootCmd.PersistentFlags().Lookup("threshold"))

	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(normalizeCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(runsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var configFile string

func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".citecheck")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CITECHECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("auto_approve_threshold", 0.9)
	viper.SetDefault("severity_weights.critical", 0.5)
	viper.SetDefault("severity_weights.high", 0.25)
	viper.SetDefault("severity_weights.medium", 0.1)
	viper.SetDefault("severity_weights.low", 0.05)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "using config file: %s\n", viper.ConfigFileUsed())
	}
}

// routingConfig assembles the routing policy from config and flags.
func routingConfig() review.RoutingConfig {
	return review.RoutingConfig{
		AutoApproveThreshold: viper.GetFloat64("auto_approve_threshold"),
		SeverityWeights: map[rules.Severity]float64{
			rules.SeverityCritical: viper.GetFloat64("severity_weights.critical"),
			rules.SeverityHigh:     viper.GetFloat64("severity_weights.high"),
			rules.SeverityMedium:   viper.GetFloat64("severity_weights.medium"),
			rules.SeverityLow:      viper.GetFloat64("severity_weights.low"),
		},
	}
}

// loadCatalog loads the configured rules directory, falling back to the
// embedded default catalog.
func loadCatalog() (*rules.Catalog, error) {
	dir := viper.GetString("rules_dir")
	if dir == "" {
		return rules.DefaultCatalog()
	}
	catalog, err := rules.LoadDirectory(dir)
	if err != nil {
		return nil, fmt.Errorf("loading rules from %s: %w", dir, err)
	}
	if len(catalog.Rules) == 0 {
		return nil, fmt.Errorf("no rules found in %s", dir)
	}
	return catalog, nil
}

func checkCmd() *cobra.Command {
	var (
		format    string
		dbPath    string
		title     string
		workers   int
		failFlags bool
	)

	cmd := &cobra.Command{
		Use:   "check [input-file]",
		Short: "Check footnote citations against the rule catalog",
		Long: `Check runs the full pipeline over a batch of footnotes.

The input file is either a JSON object mapping footnote numbers to their
text, or plain text treated as a single footnote. Pass "-" (or no
argument) to read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(args)
			if err != nil {
				return err
			}
			footnotes, err := parseFootnotes(input)
			if err != nil {
				return err
			}

			catalog, err := loadCatalog()
			if err != nil {
				return err
			}

			cfg := pipeline.Config{Routing: routingConfig(), Workers: workers}
			results, err := pipeline.Process(cmd.Context(), footnotes, catalog, cfg)
			if err != nil {
				return err
			}

			// Skip records repeat per footnote; report them once.
			if len(results) > 0 {
				for _, skipped := range results[0].SkippedRules {
					fmt.Fprintf(os.Stderr, "warning: rule %s skipped: %s\n", skipped.RuleID, skipped.Reason)
				}
			}

			report := pipeline.BuildReport(title, results)

			if dbPath != "" {
				s, err := store.Open(dbPath)
				if err != nil {
					return err
				}
				defer s.Close()

				runID, err := s.SaveRun(cmd.Context(), title, results)
				if err != nil {
					return fmt.Errorf("saving run: %w", err)
				}
				fmt.Fprintf(os.Stderr, "saved run %s\n", runID)
			}

			switch format {
			case "markdown", "md":
				fmt.Print(report.ToMarkdown())
			case "json":
				data, err := report.ToJSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			default:
				return fmt.Errorf("unknown format %q (markdown, json)", format)
			}

			if failFlags {
				if _, _, flagged, _ := report.Totals(); flagged > 0 {
					os.Exit(2)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format (markdown, json)")
	cmd.Flags().StringVar(&dbPath, "store", "", "SQLite database to record the run in")
	cmd.Flags().StringVar(&title, "title", "Citation Review Report", "report title")
	cmd.Flags().IntVar(&workers, "workers", 0, "footnote workers (0 = one per CPU)")
	cmd.Flags().BoolVar(&failFlags, "fail-on-flagged", false, "exit non-zero when citations are flagged")
	return cmd
}

func normalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [input-file]",
		Short: "Normalize formatting markers in footnote text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(args)
			if err != nil {
				return err
			}

			normalized, warnings := normalize.Normalize(string(input))
			for _, warning := range warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", warning.Message)
			}
			fmt.Println(normalized)
			return nil
		},
	}
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate rule catalogs",
	}
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesLintCmd())
	cmd.AddCommand(rulesWatchCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the active rule catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog()
			if err != nil {
				return err
			}

			fmt.Printf("Catalog: %s (%d rules)\n\n", catalog.Name, len(catalog.Rules))
			fmt.Printf("%-32s %-10s %-16s %s\n", "ID", "SEVERITY", "CATEGORY", "MESSAGE")
			for _, rule := range catalog.Rules {
				fmt.Printf("%-32s %-10s %-16s %s\n", rule.ID, rule.Severity, rule.Category, rule.Message)
			}
			return nil
		},
	}
}

func rulesLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint [catalog-file-or-dir]",
		Short: "Validate a rule catalog against the schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var catalog *rules.Catalog
			var err error
			switch {
			case len(args) == 1:
				info, statErr := os.Stat(args[0])
				if statErr != nil {
					return statErr
				}
				if info.IsDir() {
					catalog, err = rules.LoadDirectory(args[0])
				} else {
					catalog, err = rules.LoadFile(args[0])
				}
			default:
				catalog, err = loadCatalog()
			}
			if err != nil {
				return err
			}

			errs := rules.ValidateCatalog(catalog)
			if len(errs) == 0 {
				fmt.Printf("OK: %d rules valid\n", len(catalog.Rules))
				return nil
			}

			fmt.Fprintln(os.Stderr, errs.Error())
			os.Exit(1)
			return nil
		},
	}
}

func rulesWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <rules-dir>",
		Short: "Watch a rules directory and report reloads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := rules.NewRegistryWithDirectory(args[0])
			if err != nil {
				return err
			}
			registry.SetOnChange(func(event, file string) {
				fmt.Printf("%s %s (%d rules active)\n", event, file, registry.Count())
			})
			if err := registry.Watch(); err != nil {
				return err
			}
			defer registry.StopWatch()

			fmt.Printf("watching %s (%d rules), ctrl-c to stop\n", args[0], registry.Count())

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	var dbPath string
	var format string

	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Render a stored run's review report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := s.LoadReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			switch format {
			case "markdown", "md":
				fmt.Print(report.ToMarkdown())
			case "json":
				data, err := report.ToJSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			default:
				return fmt.Errorf("unknown format %q (markdown, json)", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "store", "citecheck.db", "SQLite database holding stored runs")
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format (markdown, json)")
	return cmd
}

func runsCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()

			summaries, err := s.Runs(cmd.Context())
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("no stored runs")
				return nil
			}

			fmt.Printf("%-36s %-20s %10s %10s %8s\n", "RUN", "CREATED", "CITATIONS", "APPROVED", "FLAGGED")
			for _, summary := range summaries {
				fmt.Printf("%-36s %-20s %10d %10d %8d\n",
					summary.ID,
					summary.CreatedAt.Format("2006-01-02 15:04:05"),
					summary.Citations, summary.Approved, summary.Flagged)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "store", "citecheck.db", "SQLite database holding stored runs")
	return cmd
}

// readInput reads the named file, or stdin for "-" or no argument.
func readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", args[0], err)
	}
	return data, nil
}

// parseFootnotes accepts either a JSON object mapping footnote numbers to
// text, or plain text treated as footnote 1.
func parseFootnotes(input []byte) (map[int]string, error) {
	trimmed := strings.TrimSpace(string(input))
	if trimmed == "" {
		return nil, fmt.Errorf("empty input")
	}

	if strings.HasPrefix(trimmed, "{") {
		var raw map[string]string
		if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
			return nil, fmt.Errorf("parsing footnote JSON: %w", err)
		}

		footnotes := make(map[int]string, len(raw))
		for key, text := range raw {
			number, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("footnote key %q is not a number", key)
			}
			footnotes[number] = text
		}
		if len(footnotes) == 0 {
			return nil, fmt.Errorf("no footnotes in input")
		}
		return footnotes, nil
	}

	return map[int]string{1: trimmed}, nil
}
