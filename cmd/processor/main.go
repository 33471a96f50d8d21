package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pollcli/internal/config"
	"pollcli/internal/dataprocessing"
	apperrors "pollcli/internal/errors"
	"pollcli/internal/exporter"
	"pollcli/internal/infrastructure"
	"pollcli/internal/validation"
	"pollcli/pkg/contracts"
	"pollcli/pkg/contracts/domain"
)

// shutdownTimeout bounds how long telemetry may take to flush on exit
const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("Poll processing failed",
			slog.String("error", err.Error()),
			slog.String("error_type", string(apperrors.TypeOf(err))))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command line flags of one invocation
type options struct {
	input       string
	configPath  string
	outDir      string
	format      string
	inputFormat string
	version     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("processor", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.input, "in", "", "input file with raw poll records (.csv, .json, .jsonl or .xlsx)")
	fs.StringVar(&opts.configPath, "config", "", "path to YAML config file (defaults to pollcli.yaml or configs/pollcli.yaml)")
	fs.StringVar(&opts.outDir, "out", "", "output directory (overrides output.dir)")
	fs.StringVar(&opts.format, "format", "", "artifact format: csv or xlsx (overrides output.format)")
	fs.StringVar(&opts.inputFormat, "input-format", "", "force the input format instead of detecting it from the extension")
	fs.BoolVar(&opts.version, "version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.input == "" && fs.NArg() > 0 {
		opts.input = fs.Arg(0)
	}
	return opts, nil
}

// applyOverrides layers command line flags over the loaded configuration
func applyOverrides(cfg *config.Config, opts *options) error {
	if opts.outDir != "" {
		cfg.Output.Dir = opts.outDir
	}
	if opts.format != "" {
		cfg.Output.Format = opts.format
	}
	if opts.inputFormat != "" {
		cfg.Input.Format = opts.inputFormat
	}
	return cfg.Validate()
}

// run executes one cleaning run: read, clean, publish. It prints the record
// tallies to stdout on success.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return nil
	}
	if opts.input == "" {
		return apperrors.NewInputError("no input file given (use -in)", nil)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := applyOverrides(cfg, opts); err != nil {
		return err
	}

	baseLogger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return apperrors.NewConfigError("failed to initialize logger", err)
	}
	defer infrastructure.CloseLogFile()
	logger := infrastructure.WithComponent(baseLogger, "processor")

	ctx = infrastructure.EnsureRunID(ctx)
	runID := infrastructure.GetRunID(ctx)
	startedAt := time.Now().UTC()

	logger.InfoContext(ctx, "Starting poll processing",
		slog.String("version", contracts.Version),
		slog.String("input", opts.input),
		slog.String("output_dir", cfg.Output.Dir),
		slog.String("format", cfg.Output.Format))

	tel, err := infrastructure.InitializeTelemetry(cfg.Telemetry, baseLogger)
	if err != nil {
		return apperrors.NewConfigError("failed to initialize telemetry", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			infrastructure.WithError(logger, err).Warn("Telemetry shutdown failed")
		}
	}()

	validator := validation.NewFileValidator(baseLogger)
	if err := validator.ValidateInputFile(opts.input, cfg.Input.Format); err != nil {
		return err
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return err
	}
	if err := validator.ValidatePaths(paths); err != nil {
		return err
	}

	reader := dataprocessing.NewReader(cfg.Input, baseLogger)
	raws, err := reader.ReadFile(ctx, opts.input)
	if err != nil {
		return err
	}

	pipeline := dataprocessing.NewPipeline(cfg.Pipeline, cfg.Fields, tel, baseLogger)
	result, err := pipeline.Run(ctx, raws)
	if err != nil {
		return err
	}

	summary := &domain.RunSummary{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Counts:     result.Counts,
		Artifacts:  paths.Artifacts(),
	}

	sink := exporter.NewSink(cfg.Output, paths, baseLogger)
	if err := sink.Write(exporter.Artifacts{
		Points:  result.Points,
		Audit:   result.Audit,
		Polls:   result.Polls,
		Summary: summary,
	}); err != nil {
		return err
	}

	if err := tel.WriteMetricsTextfile(); err != nil {
		infrastructure.WithError(logger, err).WarnContext(ctx, "Failed to write metrics textfile")
	}

	logger.InfoContext(ctx, "Poll processing completed",
		slog.Int("input", result.Counts.Input),
		slog.Int("valid", result.Counts.Valid),
		slog.Int("repaired", result.Counts.Repaired),
		slog.Int("rejected", result.Counts.Rejected),
		slog.Int("points", result.Counts.Points),
		slog.Int("dropouts", len(result.Dropouts)),
		slog.Duration("duration", summary.FinishedAt.Sub(startedAt)))

	fmt.Fprintf(stdout, "valid=%d repaired=%d rejected=%d\n",
		result.Counts.Valid, result.Counts.Repaired, result.Counts.Rejected)
	return nil
}
