package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"regliq/internal/breakdown"
	"regliq/internal/config"
	"regliq/internal/liquidity"
	"regliq/internal/validation"
	"regliq/pkg/contracts/domain"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1234.5, "1234.50"},
		{2.345, "2.34"},
		{2.355, "2.36"},
		{-0.125, "-0.12"},
		{0, "0.00"},
		{math.NaN(), "0.00"},
		{math.Inf(1), "0.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatAmount(tt.in), "amount %v", tt.in)
	}

	assert.Equal(t, "0.1250", formatRate(0.125))
	assert.Equal(t, "1.2346", formatRate(1.23456))
	assert.Equal(t, "0.6667", formatRate(2.0/3.0))
}

func TestCSVWriter_WriteTable(t *testing.T) {
	dir := t.TempDir()
	writer := NewCSVWriter(&config.Paths{ReportsDir: dir}, nil)

	require.NoError(t, writer.WriteTable("out/test.csv", []string{"x"}, [][]string{{"stale"}}))
	require.NoError(t, writer.WriteTable("out/test.csv", []string{"a", "b"}, [][]string{{"1", "2"}, {"3", "4"}}))

	data, err := os.ReadFile(filepath.Join(dir, "out", "test.csv"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}), "BOM written")

	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}, {"3", "4"}}, records)

	abs := filepath.Join(t.TempDir(), "abs.csv")
	assert.Equal(t, abs, writer.resolvePath(abs))
}

func testReport(t *testing.T) Report {
	t.Helper()
	ctx := context.Background()
	params := liquidity.DefaultParameters()

	items := []domain.LineItem{
		{ProductID: "GOV1", Category: domain.CategorySecurities, MaturityBucket: domain.MaturityOver1Year,
			CounterpartyType: domain.CounterpartySovereign, Currency: "USD", OutstandingBalance: 1000,
			IsHQLA: true, HQLALevel: domain.HQLALevel1},
		{ProductID: "DEP1", Category: domain.CategoryDeposits, SubProduct: domain.SubProductStable,
			MaturityBucket: domain.MaturityOvernight, CounterpartyType: domain.CounterpartyRetail, Currency: "USD",
			OutstandingBalance: 2000, ProjectedCashOutflow: 2000},
		{ProductID: "LN1", Category: domain.CategoryLoans, MaturityBucket: domain.Maturity8To30Days,
			CounterpartyType: domain.CounterpartyCorporate, Currency: "USD",
			OutstandingBalance: 500, ProjectedCashInflow: 100},
	}

	lcr := liquidity.NewLCRCalculator(params, nil).Calculate(ctx, items)
	nsfr := liquidity.NewNSFRCalculator(params, nil).Calculate(ctx, items)
	bd := breakdown.NewEngine(params, nil).Compute(ctx, items)
	rec := breakdown.Reconcile(bd, lcr, breakdown.DefaultTolerance)

	return Report{
		SubmissionID:  "sub-1",
		LegalEntityID: "LE001",
		ReportDate:    time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		Validation: validation.RunResult{
			SubmissionID: "sub-1",
			TotalRows:    3,
			ValidRows:    3,
			Passed:       true,
			Errors: []validation.ValidationError{{
				SubmissionID: "sub-1", RowID: "r1", RuleID: "DUP", ErrorType: "duplicate",
				Message: "duplicate row", Severity: validation.SeverityWarning,
			}},
			RuleExecutions: []validation.RuleExecutionStat{{RuleID: "DUP", Name: "Duplicates", Category: validation.CategoryDuplicate, RowsChecked: 3, RowsPassed: 2, RowsFailed: 1, DistinctRowsFailed: 1}},
		},
		LCR:            &lcr,
		NSFR:           &nsfr,
		Breakdown:      &bd,
		Reconciliation: &rec,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	require.NoError(t, err)
	return records
}

func TestReportExporter_ExportCSV(t *testing.T) {
	dir := t.TempDir()
	exp := NewReportExporter(&config.Paths{ReportsDir: dir}, nil)

	files, err := exp.Export(context.Background(), "LE001", FormatCSV, testReport(t))
	require.NoError(t, err)
	assert.Len(t, files, 7)

	hqla := readCSV(t, filepath.Join(dir, "LE001", HQLACSVFile))
	require.Len(t, hqla, 2)
	assert.Equal(t, hqlaHeader, hqla[0])
	assert.Equal(t, "Level1", hqla[1][0])
	assert.Equal(t, "1000.00", hqla[1][10])
	assert.Equal(t, "GOV1", hqla[1][14])

	outflows := readCSV(t, filepath.Join(dir, "LE001", OutflowCSVFile))
	require.Len(t, outflows, 3, "retail deposit plus a zero contractual outflow for the loan")
	assert.Equal(t, "retail", outflows[1][0])
	assert.Equal(t, "60.00", outflows[1][7])
	assert.Equal(t, "other_contractual", outflows[2][0])
	assert.Equal(t, "0.00", outflows[2][7])

	errs := readCSV(t, filepath.Join(dir, "LE001", ValidationCSVFile))
	require.Len(t, errs, 2)
	assert.Equal(t, "warning", errs[1][4])

	summary := readCSV(t, filepath.Join(dir, "LE001", SummaryCSVFile))
	require.Len(t, summary, 2)
	assert.Equal(t, "LE001", summary[1][0])
}

func TestReportExporter_ExportCSV_ValidationOnly(t *testing.T) {
	dir := t.TempDir()
	exp := NewReportExporter(&config.Paths{ReportsDir: dir}, nil)

	report := testReport(t)
	report.LCR, report.NSFR, report.Breakdown, report.Reconciliation = nil, nil, nil, nil

	files, err := exp.ExportCSV(context.Background(), dir, report)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.NoFileExists(t, filepath.Join(dir, SummaryCSVFile))
}

func TestReportExporter_ExportXLSX(t *testing.T) {
	dir := t.TempDir()
	exp := NewReportExporter(&config.Paths{ReportsDir: dir}, nil)

	files, err := exp.ExportXLSX(context.Background(), dir, testReport(t))
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := excelize.OpenFile(files[0])
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{
		SheetSummary, SheetValidation, SheetRuleExecutions,
		SheetHQLA, SheetOutflows, SheetInflows, SheetReconciliation,
	}, f.GetSheetList())

	rows, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Metric", "Value"}, rows[0])
	assert.Equal(t, []string{"Legal Entity", "LE001"}, rows[2])

	found := false
	for _, row := range rows {
		if len(row) == 2 && row[0] == "Reconciled" {
			found = true
			assert.Equal(t, "true", row[1])
		}
	}
	assert.True(t, found)

	recon, err := f.GetRows(SheetReconciliation)
	require.NoError(t, err)
	assert.Len(t, recon, 10, "header plus nine reconciliation lines")
}

func TestReportExporter_ExportJSON(t *testing.T) {
	dir := t.TempDir()
	exp := NewReportExporter(&config.Paths{ReportsDir: dir}, nil)

	files, err := exp.ExportJSON(context.Background(), dir, testReport(t))
	require.NoError(t, err)
	require.Len(t, files, 2)

	data, err := os.ReadFile(filepath.Join(dir, ReportJSONFile))
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "sub-1", decoded.SubmissionID)
	require.NotNil(t, decoded.LCR)
	assert.InDelta(t, 1000.0, decoded.LCR.TotalHQLA, 1e-9)
	assert.FileExists(t, filepath.Join(dir, SummaryJSONFile))
}

func TestReportExporter_Export(t *testing.T) {
	dir := t.TempDir()
	exp := NewReportExporter(&config.Paths{ReportsDir: dir}, nil)

	files, err := exp.Export(context.Background(), dir, FormatAll, testReport(t))
	require.NoError(t, err)
	assert.Len(t, files, 10)

	_, err = exp.Export(context.Background(), dir, "pdf", testReport(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format")

	assert.True(t, ValidFormat(FormatXLSX))
	assert.False(t, ValidFormat("pdf"))
}
