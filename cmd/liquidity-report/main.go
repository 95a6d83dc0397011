// Command liquidity-report validates one position file, calculates LCR,
// NSFR and the itemized breakdown, and writes the report files.
//
// Exit status is 0 when the submission is calculated, 2 when it fails
// validation and 1 on any other error.
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

	"regliq/internal/config"
	"regliq/internal/dataprocessing"
	"regliq/internal/exporter"
	"regliq/internal/infrastructure"
	"regliq/internal/services"
	"regliq/internal/storage"
	"regliq/internal/storage/memory"
	"regliq/internal/validation"
	"regliq/pkg/contracts"
	api "regliq/pkg/contracts/api/v1"
	"regliq/pkg/contracts/domain"
)

// Exit codes
const (
	exitOK               = 0
	exitError            = 1
	exitValidationFailed = 2
)

type options struct {
	input        string
	entity       string
	date         string
	submissionID string
	configFile   string
	registryFile string
	paramsFile   string
	outputDir    string
	format       string
	version      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("liquidity-report", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.input, "in", "", "position file (.csv or .xlsx)")
	fs.StringVar(&opts.entity, "entity", "", "legal entity id of the submission")
	fs.StringVar(&opts.date, "date", "", "report date (YYYY-MM-DD)")
	fs.StringVar(&opts.submissionID, "id", "", "submission id (generated when empty)")
	fs.StringVar(&opts.configFile, "config", "", "YAML config file")
	fs.StringVar(&opts.registryFile, "registry", "", "validation registry file (defaults to paths.registry_file)")
	fs.StringVar(&opts.paramsFile, "params", "", "regulatory parameters file (defaults to paths.parameters_file)")
	fs.StringVar(&opts.outputDir, "out", "", "output directory (defaults to <reports_dir>/<entity>/<date>)")
	fs.StringVar(&opts.format, "format", exporter.FormatAll, "output format: csv, xlsx, json or all")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.version {
		return opts, nil
	}

	switch {
	case opts.input == "":
		return nil, errors.New("-in is required")
	case opts.entity == "":
		return nil, errors.New("-entity is required")
	case opts.date == "":
		return nil, errors.New("-date is required")
	case !exporter.ValidFormat(opts.format):
		return nil, fmt.Errorf("unsupported format %q", opts.format)
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, "error:", err)
		}
		return exitError
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetVersionString())
		return exitOK
	}

	cfg, err := config.LoadFile(opts.configFile)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitError
	}

	cfg.Logging.Output = "console"
	logger, _, err := infrastructure.NewLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitError
	}

	ctx = infrastructure.EnsureTraceID(ctx)
	report, err := generate(ctx, cfg, opts, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Liquidity report failed", slog.String("error", err.Error()))
		return exitError
	}

	printSummary(stdout, report)

	if report.Submission.Status == domain.SubmissionStatusValidationFailed {
		return exitValidationFailed
	}
	return exitOK
}

// generate loads, processes and exports one submission
func generate(ctx context.Context, cfg *config.Config, opts *options, logger *slog.Logger) (*services.SubmissionReport, error) {
	reportDate, err := time.Parse(api.DateFormat, opts.date)
	if err != nil {
		return nil, fmt.Errorf("invalid -date %q: %w", opts.date, err)
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, err
	}

	outDir := opts.outputDir
	if outDir == "" {
		if outDir, err = paths.GetSubmissionReportDir(opts.entity, reportDate); err != nil {
			return nil, err
		}
	}

	files := validation.NewFileValidator(infrastructure.WithComponent(logger, "file_validator"))
	if err := files.ValidatePositionFile(opts.input); err != nil {
		return nil, err
	}

	params := cfg.Parameters
	if opts.paramsFile != "" {
		if err := files.ValidateRegistryFile(opts.paramsFile); err != nil {
			return nil, err
		}
		if params, err = config.LoadParameters(opts.paramsFile); err != nil {
			return nil, err
		}
	}

	registryFile := paths.RegistryFile
	if opts.registryFile != "" {
		registryFile = opts.registryFile
	}

	stores := memory.NewStores()
	if registryFile != "" {
		if err := files.ValidateRegistryFile(registryFile); err != nil {
			return nil, err
		}
		reg, err := config.LoadRegistry(registryFile)
		if err != nil {
			return nil, err
		}
		if err := storage.SeedRegistry(ctx, stores.Registry, reg.Rules, reg.Registries()); err != nil {
			return nil, fmt.Errorf("seed registry: %w", err)
		}
	} else {
		logger.WarnContext(ctx, "No registry file given, only the stored defaults apply")
	}

	loader := dataprocessing.NewLoader(reportDate, infrastructure.WithComponent(logger, "loader"))
	ds, err := loader.LoadFile(ctx, opts.input)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	logger.InfoContext(ctx, "Loaded positions",
		slog.String("file", opts.input),
		slog.Int("items", len(ds.Items)))

	service, err := services.NewLiquidityService(params, stores, logger,
		services.WithReconcileTolerance(cfg.Engine.ReconcileTolerance),
		services.WithMaxConcurrency(cfg.Engine.MaxConcurrency),
	)
	if err != nil {
		return nil, err
	}

	report, err := service.ProcessSubmission(ctx, services.SubmissionRequest{
		SubmissionID:  opts.submissionID,
		LegalEntityID: opts.entity,
		ReportDate:    reportDate,
		Items:         ds.Items,
		Rows:          ds.Rows,
	})
	if err != nil {
		return nil, err
	}

	if err := files.ValidateOutputDirectory(outDir); err != nil {
		return nil, err
	}

	written, err := exporter.NewReportExporter(paths, logger).Export(ctx, outDir, opts.format, report.ExportReport())
	if err != nil {
		return nil, fmt.Errorf("export report: %w", err)
	}

	logger.InfoContext(ctx, "Liquidity report generated successfully",
		slog.String("submission_id", report.Submission.ID),
		slog.String("status", string(report.Submission.Status)),
		slog.String("directory", outDir),
		slog.Int("files", len(written)))

	return report, nil
}

func printSummary(w io.Writer, report *services.SubmissionReport) {
	sub := report.Submission
	counts := report.Validation.CountBySeverity()

	fmt.Fprintf(w, "\n=== LIQUIDITY REPORT %s / %s ===\n", sub.LegalEntityID, sub.ReportDate.Format(api.DateFormat))
	fmt.Fprintf(w, "Submission: %s\n", sub.ID)
	fmt.Fprintf(w, "Status:     %s\n", sub.Status)
	fmt.Fprintf(w, "Validation: %d rows, %d errors, %d warnings\n",
		report.Validation.TotalRows, counts[validation.SeverityError], counts[validation.SeverityWarning])

	if report.LCR == nil || report.NSFR == nil {
		fmt.Fprintln(w, "\nNo ratios calculated.")
		return
	}

	fmt.Fprintln(w, "\nMetric | Value            | Compliant")
	fmt.Fprintln(w, "-------|------------------|----------")
	fmt.Fprintf(w, "HQLA   | %16.2f |\n", report.LCR.TotalHQLA)
	fmt.Fprintf(w, "NCO    | %16.2f |\n", report.LCR.NetCashOutflows)
	fmt.Fprintf(w, "LCR    | %16.4f | %t\n", report.LCR.LCRRatio, report.LCR.IsCompliant)
	fmt.Fprintf(w, "NSFR   | %16.4f | %t\n", report.NSFR.NSFRRatio, report.NSFR.IsCompliant)

	if report.Reconciliation != nil && !report.Reconciliation.Reconciled {
		fmt.Fprintf(w, "\nWARNING: breakdown does not reconcile (%d mismatches)\n", len(report.Reconciliation.Mismatches))
	}
}
