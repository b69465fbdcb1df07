package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"biztrack_e2e/application/catalog"
	"biztrack_e2e/application/runner"
	"biztrack_e2e/domain/entities"
	"biztrack_e2e/domain/interfaces"
	"biztrack_e2e/infrastructure/browser"
	"biztrack_e2e/infrastructure/config"
	"biztrack_e2e/infrastructure/fixtures"
	"biztrack_e2e/infrastructure/security"
	"biztrack_e2e/infrastructure/storage"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// ErrScenariosFailed is returned by run when a selected scenario failed or errored
var ErrScenariosFailed = errors.New("scenarios did not pass")

type TerminalInterface struct {
	cfg    *config.Config
	logger *logrus.Logger
	out    io.Writer
}

// NewTerminalInterface - creates the command line front end writing to out
func NewTerminalInterface(out io.Writer) *TerminalInterface {
	// Setup logger
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &TerminalInterface{
		logger: logger,
		out:    out,
	}
}

// Execute - runs the command line with os.Args
func Execute() error {
	return NewTerminalInterface(os.Stdout).RootCommand().Execute()
}

// RootCommand - builds the biztrack-e2e command tree
func (t *TerminalInterface) RootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "biztrack-e2e",
		Short: "End-to-end browser scenarios for the BizTrack web app",
		Long: `biztrack-e2e replays scripted browser scenarios against the BizTrack
single-page app (login, clients, tasks, calendar) and checks one visible
text per scenario.

Configuration is read from the environment and an optional .env file.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			t.cfg = cfg

			t.logger.SetOutput(cmd.ErrOrStderr())
			t.logger.SetLevel(cfg.LogLevel)
			if verbose {
				t.logger.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
	}
	root.SetOut(t.out)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(t.runCommand())
	root.AddCommand(t.listCommand())
	root.AddCommand(t.fixturesCommand())
	root.AddCommand(t.resultsCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "biztrack-e2e %s\n", root.Version)
		},
	})

	return root
}

func (t *TerminalInterface) runCommand() *cobra.Command {
	var (
		tags             []string
		driverName       string
		parallel         int
		allowDestructive bool
		scenariosDir     string
		headless         bool
		reportName       string
	)

	cmd := &cobra.Command{
		Use:   "run [scenario IDs...]",
		Short: "Run scenarios (all by default)",
		Long: `Run replays the selected scenarios, each in its own browser, and prints
a summary. Every run is saved under RESULTS_DIR and a JUnit report is written
for the batch. The exit status is non-zero when any scenario failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("driver") {
				t.cfg.Driver = driverName
			}
			if flags.Changed("parallel") {
				t.cfg.Parallel = parallel
			}
			if flags.Changed("allow-destructive") {
				t.cfg.AllowDestructive = allowDestructive
			}
			if flags.Changed("scenarios") {
				t.cfg.ScenariosDir = scenariosDir
			}
			if flags.Changed("headless") {
				t.cfg.Headless = headless
			}
			if err := t.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return t.run(ctx, args, tags, reportName)
		},
	}

	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Only run scenarios carrying every given tag")
	cmd.Flags().StringVar(&driverName, "driver", "playwright", "Browser driver: playwright or selenium")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 1, "Number of scenarios to run at once")
	cmd.Flags().BoolVar(&allowDestructive, "allow-destructive", false, "Run scenarios that delete or reset data")
	cmd.Flags().StringVar(&scenariosDir, "scenarios", "", "Directory with additional scenario YAML files")
	cmd.Flags().BoolVar(&headless, "headless", true, "Run the browser headless")
	cmd.Flags().StringVar(&reportName, "report", "junit", "Name of the JUnit report written to RESULTS_DIR")

	return cmd
}

func (t *TerminalInterface) run(ctx context.Context, ids, tags []string, reportName string) error {
	vars, err := t.generateFixtures()
	if err != nil {
		return err
	}

	cat, err := catalog.Load(vars, t.cfg.ScenariosDir)
	if err != nil {
		return fmt.Errorf("failed to load scenarios (are E2E_EMAIL and E2E_PASSWORD set?): %w", err)
	}
	scenarios, err := cat.Select(ids, tags)
	if err != nil {
		return err
	}

	store, err := storage.NewRunStore(t.cfg.ResultsDir)
	if err != nil {
		return err
	}

	// Initialize security layer
	securityLayer := security.NewSecurityLayer(t.logger, t.cfg.AllowDestructive)

	r := runner.NewRunner(t.newDriver(), securityLayer, store, t.runnerOptions(), t.logger)

	t.logger.Infof("Running %d scenario(s) against %s with %s", len(scenarios), t.cfg.BaseURL, t.cfg.Driver)
	results := r.RunAll(ctx, scenarios)

	PrintSummary(t.out, results)

	path, err := store.WriteReport(reportName, results)
	if err != nil {
		t.logger.Warnf("Failed to write report: %v", err)
	} else {
		fmt.Fprintf(t.out, "\nReport: %s\n", path)
	}

	if n := CountFailures(results); n > 0 {
		return fmt.Errorf("%d of %d: %w", n, len(results), ErrScenariosFailed)
	}
	return nil
}

func (t *TerminalInterface) newDriver() interfaces.Driver {
	if t.cfg.Driver == "selenium" {
		return browser.NewSeleniumDriver(t.logger, t.cfg.ChromeDriverPath, t.cfg.ChromeBinaryPath)
	}
	return browser.NewPlaywrightDriver(t.logger)
}

func (t *TerminalInterface) runnerOptions() runner.Options {
	launch := browser.DefaultLaunchOptions()
	launch.Headless = t.cfg.Headless
	launch.DefaultTimeout = t.cfg.DefaultTimeout
	launch.NavTimeout = t.cfg.NavTimeout
	launch.SettleTimeout = t.cfg.SettleTimeout

	return runner.Options{
		BaseURL:       t.cfg.BaseURL,
		Launch:        launch,
		StepPause:     t.cfg.StepPause,
		AssertTimeout: t.cfg.AssertTimeout,
		ArtifactsDir:  t.cfg.ResultsDir,
		Parallel:      t.cfg.Parallel,
	}
}

func (t *TerminalInterface) generateFixtures() (map[string]string, error) {
	generated, err := fixtures.Generate(t.cfg.FixturesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to generate fixtures: %w", err)
	}
	return mergeVars(t.cfg.Vars(), generated), nil
}

func (t *TerminalInterface) listCommand() *cobra.Command {
	var (
		tags         []string
		scenariosDir string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("scenarios") {
				t.cfg.ScenariosDir = scenariosDir
			}

			paths, err := fixtures.Paths(t.cfg.FixturesDir)
			if err != nil {
				return err
			}
			// Listing never signs in, so unset credentials are not an error here
			unset := map[string]string{"E2E_EMAIL": "", "E2E_PASSWORD": ""}
			cat, err := catalog.Load(mergeVars(unset, t.cfg.Vars(), paths), t.cfg.ScenariosDir)
			if err != nil {
				return fmt.Errorf("failed to load scenarios: %w", err)
			}
			scenarios, err := cat.Select(nil, tags)
			if err != nil {
				return err
			}

			guard := security.NewSecurityLayer(t.logger, t.cfg.AllowDestructive)
			PrintScenarios(cmd.Context(), cmd.OutOrStdout(), scenarios, guard)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Only list scenarios carrying every given tag")
	cmd.Flags().StringVar(&scenariosDir, "scenarios", "", "Directory with additional scenario YAML files")
	return cmd
}

func (t *TerminalInterface) fixturesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fixtures",
		Short: "Generate the upload fixtures used by the import scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := fixtures.Generate(t.cfg.FixturesDir)
			if err != nil {
				return err
			}
			for _, fx := range fixtures.All() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-22s %s\n", fx.Var, vars[fx.Var])
			}
			return nil
		},
	}
}

func (t *TerminalInterface) resultsCommand() *cobra.Command {
	var junit string

	cmd := &cobra.Command{
		Use:   "results [run ID]",
		Short: "Show the latest result of every scenario, or one run in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.NewRunStore(t.cfg.ResultsDir)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				result, err := store.LoadRun(args[0])
				if err != nil {
					return err
				}
				PrintRun(cmd.OutOrStdout(), result)
				return nil
			}

			results, err := store.Latest()
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet")
				return nil
			}
			PrintSummary(cmd.OutOrStdout(), results)

			if junit != "" {
				path, err := store.WriteReport(junit, results)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nReport: %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&junit, "junit", "", "Also write the latest results as a JUnit report with this name")
	return cmd
}

// CountFailures returns how many results neither passed nor were skipped
func CountFailures(results []*entities.RunResult) int {
	n := 0
	for _, r := range results {
		if r == nil || !r.Succeeded() {
			n++
		}
	}
	return n
}

func mergeVars(sets ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}
