package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"regliq/internal/breakdown"
	"regliq/internal/config"
	"regliq/internal/liquidity"
	"regliq/internal/validation"
)

// Output formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
	FormatAll  = "all"
)

// File names written into a submission report directory
const (
	SummaryCSVFile        = "summary.csv"
	SummaryJSONFile       = "summary.json"
	HQLACSVFile           = "hqla_components.csv"
	OutflowCSVFile        = "outflow_components.csv"
	InflowCSVFile         = "inflow_components.csv"
	ReconciliationCSVFile = "reconciliation.csv"
	ValidationCSVFile     = "validation_errors.csv"
	RuleExecutionCSVFile  = "rule_executions.csv"
	ReportJSONFile        = "report.json"
	WorkbookFile          = "liquidity_report.xlsx"
)

// Report is everything produced for one submission
type Report struct {
	SubmissionID   string                `json:"submission_id"`
	LegalEntityID  string                `json:"legal_entity_id"`
	ReportDate     time.Time             `json:"report_date"`
	Validation     validation.RunResult  `json:"validation"`
	LCR            *liquidity.LCRResult  `json:"lcr,omitempty"`
	NSFR           *liquidity.NSFRResult `json:"nsfr,omitempty"`
	Breakdown      *breakdown.Result     `json:"breakdown,omitempty"`
	Reconciliation *breakdown.Report     `json:"reconciliation,omitempty"`
}

// Calculated reports whether the report carries calculation results
func (r Report) Calculated() bool {
	return r.LCR != nil && r.NSFR != nil
}

// ReportExporter writes submission reports in the supported formats
type ReportExporter struct {
	csv    *CSVWriter
	logger *slog.Logger
}

// NewReportExporter creates an exporter writing relative paths under the reports directory
func NewReportExporter(paths *config.Paths, logger *slog.Logger) *ReportExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportExporter{
		csv:    NewCSVWriter(paths, logger),
		logger: logger,
	}
}

// ValidFormat reports whether format names a supported output format
func ValidFormat(format string) bool {
	switch format {
	case FormatCSV, FormatXLSX, FormatJSON, FormatAll:
		return true
	default:
		return false
	}
}

// Export writes the report into dir in the requested format and returns the written files
func (e *ReportExporter) Export(ctx context.Context, dir, format string, report Report) ([]string, error) {
	var files []string

	write := func(fn func(context.Context, string, Report) ([]string, error)) error {
		written, err := fn(ctx, dir, report)
		files = append(files, written...)
		return err
	}

	var err error
	switch strings.ToLower(format) {
	case FormatCSV:
		err = write(e.ExportCSV)
	case FormatXLSX:
		err = write(e.ExportXLSX)
	case FormatJSON:
		err = write(e.ExportJSON)
	case FormatAll:
		for _, fn := range []func(context.Context, string, Report) ([]string, error){e.ExportCSV, e.ExportXLSX, e.ExportJSON} {
			if err = write(fn); err != nil {
				break
			}
		}
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return files, err
}

// table is one result table, written as a CSV file or a workbook sheet
type table struct {
	file    string
	sheet   string
	headers []string
	records [][]string
}

// tables lists the result tables present in a report
func tables(report Report) []table {
	ts := []table{
		{ValidationCSVFile, SheetValidation, validationErrorHeader, validationErrorRecords(report.Validation.Errors)},
		{RuleExecutionCSVFile, SheetRuleExecutions, ruleExecutionHeader, ruleExecutionRecords(report.Validation.RuleExecutions)},
	}
	if report.Breakdown != nil {
		ts = append(ts,
			table{HQLACSVFile, SheetHQLA, hqlaHeader, hqlaRecords(report.Breakdown.HQLA)},
			table{OutflowCSVFile, SheetOutflows, outflowHeader, outflowRecords(report.Breakdown.Outflows)},
			table{InflowCSVFile, SheetInflows, inflowHeader, inflowRecords(report.Breakdown.Inflows)},
		)
	}
	if report.Reconciliation != nil {
		ts = append(ts, table{ReconciliationCSVFile, SheetReconciliation, reconciliationHeader, reconciliationRecords(report.Reconciliation.Lines)})
	}
	return ts
}

// ExportCSV writes one CSV file per result table
func (e *ReportExporter) ExportCSV(ctx context.Context, dir string, report Report) ([]string, error) {
	var files []string
	for _, t := range tables(report) {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		path := filepath.Join(dir, t.file)
		if err := e.csv.WriteTable(path, t.headers, t.records); err != nil {
			return files, fmt.Errorf("write %s: %w", t.file, err)
		}
		files = append(files, e.csv.resolvePath(path))
	}

	if report.Calculated() {
		path := e.csv.resolvePath(filepath.Join(dir, SummaryCSVFile))
		if err := liquidity.SaveToCSV([]liquidity.Summary{summaryOf(report)}, path); err != nil {
			return files, fmt.Errorf("write %s: %w", SummaryCSVFile, err)
		}
		files = append(files, path)
	}

	e.logger.InfoContext(ctx, "CSV report exported",
		slog.String("submission_id", report.SubmissionID),
		slog.Int("files", len(files)))

	return files, nil
}

// ExportJSON writes the full report and the ratio summary as JSON
func (e *ReportExporter) ExportJSON(ctx context.Context, dir string, report Report) ([]string, error) {
	path := e.csv.resolvePath(filepath.Join(dir, ReportJSONFile))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", ReportJSONFile, err)
	}
	files := []string{path}

	if report.Calculated() {
		summaryPath := e.csv.resolvePath(filepath.Join(dir, SummaryJSONFile))
		if err := liquidity.SaveToJSON([]liquidity.Summary{summaryOf(report)}, summaryPath); err != nil {
			return files, fmt.Errorf("write %s: %w", SummaryJSONFile, err)
		}
		files = append(files, summaryPath)
	}

	e.logger.InfoContext(ctx, "JSON report exported",
		slog.String("submission_id", report.SubmissionID),
		slog.String("path", path))

	return files, nil
}

func summaryOf(r Report) liquidity.Summary {
	return liquidity.Summary{
		LegalEntityID: r.LegalEntityID,
		ReportDate:    r.ReportDate,
		LCR:           *r.LCR,
		NSFR:          *r.NSFR,
	}
}
