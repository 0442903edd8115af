package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"abfunnel/adapters/excel"
	"abfunnel/internal"
	"abfunnel/internal/cleaning"
	"abfunnel/internal/config"
	"abfunnel/internal/container"
	"abfunnel/internal/errors"
	"abfunnel/internal/report"
	"abfunnel/internal/testkit"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every command
type globalFlags struct {
	configPath string
	format     string
	output     string
	logLevel   string
	rule       string
	lenient    bool

	events      string
	profiles    string
	assignments string
}

func main() {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error [%s]: %v\n", errors.GetCode(err), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "abfunnel",
		Short:         "A/B test analysis of a five-step web funnel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to config.yaml (default: search ./config.yaml, ../config.yaml)")
	pf.StringVarP(&flags.format, "format", "f", "", "Output format: text, json, markdown, html")
	pf.StringVarP(&flags.output, "output", "o", "", "Write the report to a file instead of stdout")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: ERROR, WARN, INFO, DEBUG, TRACE")
	pf.StringVar(&flags.rule, "rule", "", "Keep one session per client: first, longest or deepest")
	pf.StringVar(&flags.events, "events", "", "Events file (overrides EVENTS_FILE)")
	pf.StringVar(&flags.profiles, "profiles", "", "Demographics file (overrides PROFILES_FILE)")
	pf.StringVar(&flags.assignments, "assignments", "", "Experiment roster file (overrides ASSIGNMENTS_FILE)")
	pf.BoolVar(&flags.lenient, "lenient", false, "Keep the first arm of clients seen in both variations instead of failing")

	rootCmd.AddCommand(
		newAnalyzeCmd(flags),
		newKPIsCmd(flags),
		newSessionsCmd(flags),
		newSegmentCmd(flags),
		newSnapshotCmd(flags),
		newGenerateCmd(),
		newMigrateCmd(flags),
		newImportCmd(flags),
	)
	return rootCmd
}

// setup loads configuration, applies flag overrides and wires the container
func setup(flags *globalFlags) (*container.Container, report.Format, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, "", err
	}
	if flags.format != "" {
		cfg.Output.Format = flags.format
	}
	if flags.output != "" {
		cfg.Output.Path = flags.output
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.rule != "" {
		cfg.Analysis.SessionRule = flags.rule
	}
	if flags.lenient {
		cfg.Analysis.StrictVariation = false
	}
	if flags.events != "" {
		cfg.Files.Events = flags.events
	}
	if flags.profiles != "" {
		cfg.Files.Profiles = flags.profiles
	}
	if flags.assignments != "" {
		cfg.Files.Assignments = flags.assignments
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}

	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, "", err
	}

	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
	if cfg.Source != "" {
		logger.Debug("Configuration read from %s", cfg.Source)
	}
	c, err := container.New(cfg, logger)
	if err != nil {
		return nil, "", err
	}
	return c, format, nil
}

// withOutput runs write against stdout or the configured output file
func withOutput(c *container.Container, write func(io.Writer) error) error {
	path := c.Config.Output.Path
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	c.Logger.Info("Report written to %s", path)
	return f.Close()
}

func newAnalyzeCmd(flags *globalFlags) *cobra.Command {
	var compareRules bool
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute per-arm KPIs and both hypothesis tests",
		Long: `Load, clean and analyze the experiment, then print the full report.

Example: abfunnel analyze --rule first --format markdown -o report.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, format, err := setup(flags)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			req := c.Request()
			if compareRules {
				req.CompareRules = true
			}
			r, err := c.Service.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return withOutput(c, func(w io.Writer) error { return report.Render(w, r, format) })
		},
	}
	cmd.Flags().BoolVar(&compareRules, "compare-rules", false, "Also compare the session-selection rules on a sample")
	return cmd
}

func newKPIsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "kpis",
		Short: "Print per-arm funnel KPIs and the completion lift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, format, err := setup(flags)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			cmp, err := c.Service.KPIs(cmd.Context(), c.Request())
			if err != nil {
				return err
			}
			return withOutput(c, func(w io.Writer) error { return report.RenderKPIs(w, cmp, format) })
		},
	}
}

func newSessionsCmd(flags *globalFlags) *cobra.Command {
	var sampleSize int
	var seed int64
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Compare first, longest and deepest session selection on multi-visit clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, format, err := setup(flags)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			req := c.Request()
			if cmd.Flags().Changed("sample") {
				req.Params.SampleSize = sampleSize
			}
			if cmd.Flags().Changed("seed") {
				req.Params.Seed = seed
			}
			rules, err := c.Service.SessionRules(cmd.Context(), req)
			if err != nil {
				return err
			}
			return withOutput(c, func(w io.Writer) error { return report.RenderSessionRules(w, rules, format) })
		},
	}
	cmd.Flags().IntVar(&sampleSize, "sample", config.DefaultSampleSize, "Number of multi-visit clients to sample")
	cmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "Random seed for the sample")
	return cmd
}

func newSegmentCmd(flags *globalFlags) *cobra.Command {
	var firstOnly bool
	cmd := &cobra.Command{
		Use:   "segment <step|all>",
		Short: "Profile the clients seen at a step and test progression by arm",
		Long: `Segment clients at one funnel step (start, step_1, step_2, step_3, confirm)
or at every step with "all", and run a chi-square test of independence.

Example: abfunnel segment step_2 --first-only`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, format, err := setup(flags)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			res, err := c.Service.Segment(cmd.Context(), c.Request(), args[0], firstOnly)
			if err != nil {
				return err
			}
			return withOutput(c, func(w io.Writer) error { return report.RenderSegment(w, res, format) })
		},
	}
	cmd.Flags().BoolVar(&firstOnly, "first-only", false, "Only the first session of multi-visit clients")
	return cmd
}

func newSnapshotCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print one summary row per client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, format, err := setup(flags)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			snaps, err := c.Service.Snapshots(cmd.Context(), c.Request())
			if err != nil {
				return err
			}
			return withOutput(c, func(w io.Writer) error { return report.RenderSnapshots(w, snaps, format) })
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var dir string
	var xlsx bool
	genConfig := testkit.DefaultFunnelConfig()

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic experiment (events, demographics, roster)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds := testkit.NewFunnelDataGenerator(genConfig).Generate()
			paths, err := testkit.WriteFiles(dir, ds, xlsx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d clients, %d events\n  events:      %s\n  profiles:    %s\n  assignments: %s\n",
				len(ds.Clients), len(ds.Events), paths.Events, paths.Profiles, paths.Assignments)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "data", "Output directory")
	cmd.Flags().BoolVar(&xlsx, "xlsx", false, "Write the event log as an XLSX workbook")
	cmd.Flags().IntVar(&genConfig.ClientCount, "clients", genConfig.ClientCount, "Number of clients")
	cmd.Flags().Float64Var(&genConfig.ControlCompletion, "control-completion", genConfig.ControlCompletion, "Completion probability of the Control arm")
	cmd.Flags().Float64Var(&genConfig.TestCompletion, "test-completion", genConfig.TestCompletion, "Completion probability of the Test arm")
	cmd.Flags().Float64Var(&genConfig.MultiVisitRate, "multi-visit", genConfig.MultiVisitRate, "Chance of each extra abandoned visit")
	cmd.Flags().Int64Var(&genConfig.Seed, "seed", genConfig.Seed, "Random seed")
	return cmd
}

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the events table in Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := setup(flags)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())
			return c.Migrate(cmd.Context())
		},
	}
}

func newImportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <events-file>",
		Short: "Load an event file into the Postgres events table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := setup(flags)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			store, err := c.EventStore()
			if err != nil {
				return err
			}
			sep, err := excel.ParseSeparator(c.Config.Files.Separator)
			if err != nil {
				return errors.ConfigInvalid(err.Error())
			}
			readerConfig := excel.DefaultReaderConfig()
			readerConfig.Separator = sep

			var roster string
			if c.Config.Files.Assignments != "" {
				roster = c.Config.AssignmentsPath()
			}
			source := excel.NewFileSource(args[0], "", roster, readerConfig, c.Logger)
			events, err := source.LoadEvents(cmd.Context())
			if err != nil {
				return err
			}
			assignments, err := source.LoadAssignments(cmd.Context())
			if err != nil {
				return err
			}
			events = cleaning.CleanEvents(cleaning.AssignVariations(events, assignments))

			n, err := store.SaveEvents(cmd.Context(), events)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d events into %s\n", n, c.Config.Database.EventsTable)
			return nil
		},
	}
}
