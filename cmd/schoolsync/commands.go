package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"schoolsync/internal/config"
	"schoolsync/internal/logger"
	"schoolsync/internal/pipeline"
	"schoolsync/internal/report"
	"schoolsync/internal/scheduler"
	"schoolsync/internal/schools"
	"schoolsync/pkg/metadata"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	outDir     string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "schoolsync",
		Short: "Fetch the schools directory and export it as flat tables",
		Long: `schoolsync downloads the schools directory JSON, resolves a fixed set of
columns from loosely structured records, normalizes contacts into phone and
email lists, and writes CSV, XLSX and optional SQLite outputs.

Settings come from an optional YAML file (--config) and SCHOOLSYNC_*
environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML config file (default: built-in settings)")
	pf.StringVarP(&flags.outDir, "out", "o", "", "Output directory (overrides output.dir)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(
		newRunCmd(flags),
		newConvertCmd(flags),
		newScheduleCmd(flags),
		newWatchCmd(flags),
		newStatsCmd(flags),
		newPathsCmd(flags),
		newVerifyCmd(),
		newInitConfigCmd(),
	)

	return root
}

// loadConfig reads the config file and applies flag overrides. mutate may
// adjust the source before validation.
func (f *globalFlags) loadConfig(mutate func(*config.Config)) (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}

	if f.outDir != "" {
		cfg.Output.Dir = f.outDir
	}

	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}

	if f.logFormat != "" {
		cfg.Logging.Format = f.logFormat
	}

	if mutate != nil {
		mutate(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *logger.Logger {
	return logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func newRunner(cmd *cobra.Command, cfg *config.Config) (*pipeline.Runner, *logger.Logger, error) {
	log := newLogger(cmd, cfg)

	runner, err := pipeline.NewRunner(cfg, log, pipeline.WithConsole(cmd.OutOrStdout()))
	if err != nil {
		return nil, nil, err
	}

	return runner, log, nil
}

func runOnce(cmd *cobra.Command, cfg *config.Config) error {
	runner, _, err := newRunner(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d rows (%d columns), run %s\n",
		len(res.Table.Rows), len(res.Table.Columns), res.RunID)

	return nil
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch the schools endpoint once and write all outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig(func(c *config.Config) {
				if url != "" {
					c.Source.URL = url
					c.Source.File = ""
				}
			})
			if err != nil {
				return err
			}

			return runOnce(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Source URL (overrides source.url)")

	return cmd
}

func newConvertCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <raw.json>",
		Short: "Build the outputs from a saved JSON payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig(func(c *config.Config) { c.Source.File = args[0] })
			if err != nil {
				return err
			}

			return runOnce(cmd, cfg)
		},
	}
}

func newScheduleCmd(flags *globalFlags) *cobra.Command {
	var (
		expr   string
		runNow bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run repeatedly on a cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig(func(c *config.Config) {
				if expr != "" {
					c.Schedule.Cron = expr
				}
			})
			if err != nil {
				return err
			}

			runner, log, err := newRunner(cmd, cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			return scheduler.RunCron(ctx, cfg.Schedule.Cron, runNow, runAndLog(runner, log), log)
		},
	}

	cmd.Flags().StringVar(&expr, "cron", "", "Cron expression (overrides schedule.cron)")
	cmd.Flags().BoolVar(&runNow, "now", false, "Also run once immediately")

	return cmd
}

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var debounce = scheduler.DefaultDebounce

	cmd := &cobra.Command{
		Use:   "watch <raw.json>",
		Short: "Rebuild the outputs whenever a saved payload changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig(func(c *config.Config) { c.Source.File = args[0] })
			if err != nil {
				return err
			}

			runner, log, err := newRunner(cmd, cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			return scheduler.Watch(ctx, args[0], debounce, runAndLog(runner, log), log)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", debounce, "Quiet period before a rebuild")

	return cmd
}

// runAndLog adapts a runner for repeated runs. An empty payload is logged
// and does not count as a failure.
func runAndLog(runner *pipeline.Runner, log *logger.Logger) scheduler.RunFunc {
	return func(ctx context.Context) error {
		res, err := runner.Run(ctx)
		if errors.Is(err, schools.ErrEmptyRecordSet) {
			return nil
		}

		if err != nil {
			return err
		}

		log.Info("Run finished", "run_id", res.RunID, "rows", len(res.Table.Rows))

		return nil
	}
}

func newStatsCmd(flags *globalFlags) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "stats [raw.json]",
		Short: "Print dataset statistics without writing outputs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig(func(c *config.Config) {
				if len(args) == 1 {
					c.Source.File = args[0]
				}
			})
			if err != nil {
				return err
			}

			runner, _, err := newRunner(cmd, cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			table, err := runner.Table(ctx)
			if err != nil {
				return err
			}

			return report.WriteSummary(cmd.OutOrStdout(), report.Summarize(table), top)
		},
	}

	cmd.Flags().IntVar(&top, "top", 5, "Values shown per breakdown (0 = all)")

	return cmd
}

func newPathsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the effective candidate path table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig(nil)
			if err != nil {
				return err
			}

			table := schools.DefaultPathTable()

			if cfg.Mapping.CandidatePaths != "" {
				if table, err = schools.LoadPathTable(cfg.Mapping.CandidatePaths); err != nil {
					return err
				}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)

			if err := enc.Encode(table); err != nil {
				return err
			}

			return enc.Close()
		},
	}
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <manifest.json>",
		Short: "Check a run manifest against the files it lists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := metadata.Read(args[0])
			if err != nil {
				return err
			}

			if err := m.Verify(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "OK: run %s, %d artifact(s) verified\n", m.RunID, len(m.Artifacts))

			return nil
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write the default configuration to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().SaveConfig(args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[0])

			return nil
		},
	}
}
