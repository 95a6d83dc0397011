package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"regliq/internal/liquidity"
)

// Sheet names of the result workbook
const (
	SheetSummary        = "Summary"
	SheetHQLA           = "HQLA"
	SheetOutflows       = "Outflows"
	SheetInflows        = "Inflows"
	SheetReconciliation = "Reconciliation"
	SheetValidation     = "Validation Errors"
	SheetRuleExecutions = "Rule Executions"
)

// ExportXLSX writes every result table into one workbook, one sheet per table
func (e *ReportExporter) ExportXLSX(ctx context.Context, dir string, report Report) ([]string, error) {
	path := e.csv.resolvePath(filepath.Join(dir, WorkbookFile))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	if err := writeSheet(f, SheetSummary, []string{"Metric", "Value"}, summaryRows(report), headerStyle); err != nil {
		return nil, err
	}

	sheets := tables(report)
	for _, s := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := f.NewSheet(s.sheet); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", s.sheet, err)
		}
		if err := writeSheet(f, s.sheet, s.headers, s.records, headerStyle); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("save workbook: %w", err)
	}

	e.logger.InfoContext(ctx, "XLSX report exported",
		slog.String("submission_id", report.SubmissionID),
		slog.String("path", path),
		slog.Int("sheets", len(sheets)+1))

	return []string{path}, nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, records [][]string, headerStyle int) error {
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}

	for i, record := range records {
		row := make([]interface{}, len(record))
		for j, v := range record {
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func summaryRows(r Report) [][]string {
	rows := [][]string{
		{"Submission", r.SubmissionID},
		{"Legal Entity", r.LegalEntityID},
		{"Report Date", r.ReportDate.Format("2006-01-02")},
		{"Validation Passed", formatBool(r.Validation.Passed)},
		{"Validation Errors", formatInt(len(r.Validation.Errors))},
		{"Error Rows", formatInt(r.Validation.ErrorRows)},
	}
	if !r.Calculated() {
		return rows
	}

	lcr, nsfr := *r.LCR, *r.NSFR
	rows = append(rows,
		[]string{"Total HQLA", formatAmount(lcr.TotalHQLA)},
		[]string{"Level 1", formatAmount(lcr.Level1)},
		[]string{"Level 2A", formatAmount(lcr.Level2A)},
		[]string{"Level 2B", formatAmount(lcr.Level2B)},
	)
	for _, cat := range liquidity.OutflowCategories {
		rows = append(rows, []string{"Outflows " + string(cat), formatAmount(lcr.Outflows.Get(cat))})
	}
	rows = append(rows,
		[]string{"Total Cash Outflows", formatAmount(lcr.TotalCashOutflows)},
		[]string{"Total Cash Inflows", formatAmount(lcr.TotalCashInflows)},
		[]string{"Capped Inflows", formatAmount(lcr.CappedInflows)},
		[]string{"Net Cash Outflows", formatAmount(lcr.NetCashOutflows)},
		[]string{"LCR", formatRate(lcr.LCRRatio)},
		[]string{"LCR Compliant", formatBool(lcr.IsCompliant)},
		[]string{"Available Stable Funding", formatAmount(nsfr.AvailableStableFunding)},
		[]string{"Required Stable Funding", formatAmount(nsfr.RequiredStableFunding)},
		[]string{"NSFR", formatRate(nsfr.NSFRRatio)},
		[]string{"NSFR Compliant", formatBool(nsfr.IsCompliant)},
	)
	if r.Reconciliation != nil {
		rows = append(rows, []string{"Reconciled", formatBool(r.Reconciliation.Reconciled)})
	}
	return rows
}
