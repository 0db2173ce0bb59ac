package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/soyunomas/dupescan/internal/config"
	"github.com/soyunomas/dupescan/internal/engine"
	"github.com/soyunomas/dupescan/internal/hasher"
	"github.com/soyunomas/dupescan/internal/report"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitConfig      = 2
	exitInterrupted = 130
)

// flagSettings maps command-line flags onto config file keys so both go
// through the same parser.
var flagSettings = map[string]string{
	"algorithm":     "hash.algorithm",
	"format":        "output.format",
	"report":        "output.report",
	"number-format": "output.number_format",
	"order":         "output.order",
	"rfactor":       "output.rfactor",
	"min":           "filter.min",
	"max":           "filter.max",
	"no-empty":      "filter.no_empty",
	"max-depth":     "filter.max_depth",
	"hard-links":    "filter.hard_links",
	"regex":         "filter.regex",
	"glob":          "filter.glob",
	"workers":       "performance.workers",
	"batch-size":    "performance.batch_size",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), terminationSignals...)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return exitStatus(cmd.ExecuteContext(ctx), stderr)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		configPath string
		outputPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "dupescan [flags] [directory...]",
		Short: "Find files with identical content",
		Long: `Find files with identical content under the given directories
(default: the current directory). Groups of duplicates are written to stdout;
diagnostics and the optional report go to stderr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(stderr, verbose)

			settings, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd.Flags(), settings); err != nil {
				return err
			}
			if err := settings.Validate(); err != nil {
				return err
			}
			logger.WithFields(settings.Fields()).Debug("configuration")

			roots := args
			if len(roots) == 0 {
				wd, err := os.Getwd()
				if err != nil {
					return errors.Wrap(err, "could not determine working directory")
				}
				roots = []string{wd}
			}

			stats, err := engine.New(settings.EngineOptions(logger)).Run(cmd.Context(), roots)
			if err != nil {
				return err
			}

			if err := writeGroups(stdout, outputPath, settings.Format, stats.ReplicateGroups()); err != nil {
				return err
			}
			if settings.Report {
				if _, err := report.NewSummary(stats, settings.NumberFormat).WriteTo(stderr); err != nil {
					return errors.Wrap(err, "writing report")
				}
			}
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &config.Error{Field: "flags", Err: err}
	})

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.BoolP("report", "r", false, "print a summary of the scan to stderr")
	flags.StringP("format", "f", report.Fdupes.String(), "output format: "+strings.Join(report.Formats(), ", "))
	flags.StringP("algorithm", "a", hasher.Blake2b.String(), "hash algorithm: "+strings.Join(hasher.Names(), ", "))
	flags.String("min", "0", "minimum file size, e.g. 512, 10KB, 1.5GB")
	flags.String("max", "", "maximum file size (default unbounded)")
	flags.BoolP("no-empty", "n", false, "ignore empty files")
	flags.String("regex", "", "only check files whose name matches this regular expression")
	flags.String("glob", "", "only check files whose name matches this glob pattern")
	flags.StringSlice("exclude", nil, "directory names to skip")
	flags.Int("max-depth", 0, "maximum directory depth below each root (0 is unlimited)")
	flags.BoolP("hard-links", "H", false, "report every path of a hard-linked file")
	flags.IntP("workers", "j", 0, "number of hashing workers (default number of CPUs)")
	flags.Int("batch-size", engine.DefaultBatchSize, "files handed to a worker at a time")
	flags.String("order", engine.OrderArrival.String(), "group order: arrival, natural, size")
	flags.String("rfactor", engine.DefaultFactor.String(), "replication factor under|equal|over:n; equal:1 lists unique files")
	flags.StringVarP(&outputPath, "output", "o", "", "write groups to this file instead of stdout")
	flags.String("number-format", report.DefaultNumberFormat, "number pattern for the report")
	flags.StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/"+config.FileName+")")
	flags.BoolVarP(&verbose, "verbose", "v", false, "show debug-level log messages")

	return cmd
}

// writeGroups renders to stdout, or to a file created at path when one
// is given.
func writeGroups(stdout io.Writer, path string, format report.Format, groups [][]string) error {
	if path == "" {
		return errors.Wrap(report.Render(stdout, format, groups), "writing duplicate groups")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "writing output to the file %q", path)
	}
	if err := report.Render(f, format, groups); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing output to the file %q", path)
	}
	return errors.Wrapf(f.Close(), "writing output to the file %q", path)
}

// applyFlags overlays the flags the user actually set onto settings.
func applyFlags(flags *pflag.FlagSet, settings *config.Settings) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		if f.Name == "exclude" {
			names, _ := flags.GetStringSlice("exclude")
			err = settings.Set("filter.exclude", strings.Join(names, ","))
			return
		}
		if field, ok := flagSettings[f.Name]; ok {
			err = settings.Set(field, f.Value.String())
		}
	})
	return err
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func exitStatus(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "interrupted")
		return exitInterrupted
	}
	fmt.Fprintf(stderr, "dupescan: %v\n", err)
	var cerr *config.Error
	if errors.As(err, &cerr) {
		return exitConfig
	}
	return exitFailure
}
