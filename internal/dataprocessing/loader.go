package dataprocessing

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"regliq/internal/validation"
	"regliq/pkg/contracts/domain"
)

// Sheet names tried, in order, when loading a workbook
var positionSheetNames = []string{"positions", "Positions", "data", "Data"}

// requiredColumns must appear in the header of every position file
var requiredColumns = []string{"product_id", "category"}

// knownColumns are mapped to typed fields; any other header lands in Row.Attributes
var knownColumns = map[string]bool{
	"row_id": true, "legal_entity_id": true, "product_id": true, "category": true,
	"sub_product": true, "maturity_bucket": true, "counterparty_type": true,
	"counterparty_id": true, "asset_class": true, "currency": true,
	"outstanding_balance": true, "projected_cash_inflow": true, "projected_cash_outflow": true,
	"is_hqla": true, "hqla_level": true, "haircut": true, "runoff_rate": true,
	"rsf_factor": true, "asf_factor": true, "encumbered_amount": true,
	"internal_rating": true, "market_value": true, "lendable_value": true,
	"internal_flag": true, "internal_counterparty": true, "report_date": true,
}

// Dataset is a loaded position file: typed line items for the calculators
// and raw rows for the validation engine, index-aligned.
type Dataset struct {
	Source string
	Items  []domain.LineItem
	Rows   []validation.Row
}

// Loader reads position files
type Loader struct {
	reportDate time.Time
	logger     *slog.Logger
}

// NewLoader creates a loader stamping items with reportDate unless the file carries its own
func NewLoader(reportDate time.Time, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		reportDate: reportDate,
		logger:     logger,
	}
}

// LoadFile reads a CSV or XLSX position file
func (l *Loader) LoadFile(ctx context.Context, path string) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open position file: %w", err)
		}
		defer f.Close()

		ds, err := l.LoadCSV(ctx, f)
		if err != nil {
			return nil, err
		}
		ds.Source = path
		return ds, nil
	case ".xlsx":
		return l.LoadXLSX(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported position file %s", path)
	}
}

// LoadCSV reads positions from CSV with a header row
func (l *Loader) LoadCSV(ctx context.Context, r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}

	return l.parseRecords(ctx, records)
}

// LoadXLSX reads positions from the first matching sheet of a workbook
func (l *Loader) LoadXLSX(ctx context.Context, path string) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	ds, err := l.parseWorkbook(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("workbook %s: %w", path, err)
	}
	ds.Source = path
	return ds, nil
}

// LoadXLSXReader reads a workbook from r, typically an uploaded file
func (l *Loader) LoadXLSXReader(ctx context.Context, r io.Reader) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return l.parseWorkbook(ctx, f)
}

func (l *Loader) parseWorkbook(ctx context.Context, f *excelize.File) (*Dataset, error) {
	sheet := ""
	for _, name := range positionSheetNames {
		if idx, err := f.GetSheetIndex(name); err == nil && idx >= 0 {
			sheet = name
			break
		}
	}
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	l.logger.InfoContext(ctx, "found position data in sheet",
		slog.String("sheet_name", sheet),
		slog.Int("total_rows", len(rows)))

	return l.parseRecords(ctx, rows)
}

// parseRecords maps header names to columns and converts every data row
func (l *Loader) parseRecords(ctx context.Context, records [][]string) (*Dataset, error) {
	if len(records) == 0 {
		return nil, errors.New("position file is empty")
	}

	columns := make(map[string]int)
	for i, h := range records[0] {
		name := normalizeHeader(h)
		if name == "" {
			continue
		}
		if _, dup := columns[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		columns[name] = i
	}

	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, fmt.Errorf("could not find required column: %s", col)
		}
	}

	ds := &Dataset{}
	skipped := 0

	for i, record := range records[1:] {
		line := i + 2 // header is line 1

		if isBlank(record) {
			skipped++
			continue
		}

		rec := record
		get := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[idx])
		}

		item, row, err := l.parseRow(get, columns, rec, line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ds.Items = append(ds.Items, item)
		ds.Rows = append(ds.Rows, row)
	}

	l.logger.InfoContext(ctx, "position file parsed",
		slog.Int("rows", len(ds.Rows)),
		slog.Int("blank_rows_skipped", skipped),
		slog.Int("columns", len(columns)))

	return ds, nil
}

func (l *Loader) parseRow(get func(string) string, columns map[string]int, record []string, line int) (domain.LineItem, validation.Row, error) {
	var (
		item domain.LineItem
		row  validation.Row
		err  error
	)

	row.ID = get("row_id")
	if row.ID == "" {
		row.ID = "row-" + strconv.Itoa(line)
	}

	item.ProductID = get("product_id")
	item.Category = domain.Category(strings.ToLower(get("category")))
	item.SubProduct = get("sub_product")
	item.MaturityBucket = domain.MaturityBucket(strings.ToLower(get("maturity_bucket")))
	item.CounterpartyType = domain.CounterpartyType(strings.ToLower(get("counterparty_type")))
	item.AssetClass = get("asset_class")
	item.Currency = get("currency")
	item.InternalRating = get("internal_rating")
	item.ReportDate = l.reportDate

	if v := get("report_date"); v != "" {
		if item.ReportDate, err = time.Parse("2006-01-02", v); err != nil {
			return item, row, fmt.Errorf("report_date %q: %w", v, err)
		}
	}

	amounts := []struct {
		column string
		target *float64
	}{
		{"outstanding_balance", &item.OutstandingBalance},
		{"projected_cash_inflow", &item.ProjectedCashInflow},
		{"projected_cash_outflow", &item.ProjectedCashOutflow},
		{"haircut", &item.Haircut},
		{"encumbered_amount", &item.EncumberedAmount},
	}
	for _, a := range amounts {
		if *a.target, err = parseAmount(get(a.column)); err != nil {
			return item, row, fmt.Errorf("%s: %w", a.column, err)
		}
	}

	optional := []struct {
		column string
		target **float64
	}{
		{"runoff_rate", &item.RunoffRate},
		{"rsf_factor", &item.RequiredStableFundingFactor},
		{"asf_factor", &item.AvailableStableFundingFactor},
		{"market_value", &row.MarketValue},
		{"lendable_value", &row.LendableValue},
	}
	for _, o := range optional {
		if *o.target, err = parseOptionalAmount(get(o.column)); err != nil {
			return item, row, fmt.Errorf("%s: %w", o.column, err)
		}
	}

	if item.IsHQLA, err = parseBool(get("is_hqla")); err != nil {
		return item, row, fmt.Errorf("is_hqla: %w", err)
	}
	if v := get("hqla_level"); v != "" {
		level, err := strconv.Atoi(v)
		if err != nil {
			return item, row, fmt.Errorf("hqla_level %q: %w", v, err)
		}
		item.HQLALevel = domain.HQLALevel(level)
	}
	if row.InternalFlag, err = parseBool(get("internal_flag")); err != nil {
		return item, row, fmt.Errorf("internal_flag: %w", err)
	}

	row.LegalEntityID = get("legal_entity_id")
	row.ProductID = item.ProductID
	row.SubProduct = item.SubProduct
	row.CounterpartyID = get("counterparty_id")
	row.MaturityBucket = string(item.MaturityBucket)
	row.Currency = item.Currency
	row.InternalCounterparty = get("internal_counterparty")

	for name, idx := range columns {
		if knownColumns[name] {
			continue
		}
		if row.Attributes == nil {
			row.Attributes = make(map[string]string)
		}
		if idx < len(record) {
			row.Attributes[name] = strings.TrimSpace(record[idx])
		}
	}
	setTypedAttributes(&row, item)

	return item, row, nil
}

// setTypedAttributes exposes typed columns that have no Row field to enumeration rules
func setTypedAttributes(row *validation.Row, item domain.LineItem) {
	if row.Attributes == nil {
		row.Attributes = make(map[string]string)
	}
	row.Attributes["category"] = string(item.Category)
	row.Attributes["counterparty_type"] = string(item.CounterpartyType)
	if item.AssetClass != "" {
		row.Attributes["asset_class"] = item.AssetClass
	}
}

// RowsFromItems derives validation rows for line items submitted without raw
// rows. Row ids follow the item position, starting at item-1.
func RowsFromItems(items []domain.LineItem) []validation.Row {
	rows := make([]validation.Row, len(items))
	for i, item := range items {
		row := validation.Row{
			ID:             "item-" + strconv.Itoa(i+1),
			ProductID:      item.ProductID,
			SubProduct:     item.SubProduct,
			MaturityBucket: string(item.MaturityBucket),
			Currency:       item.Currency,
		}
		setTypedAttributes(&row, item)
		rows[i] = row
	}
	return rows
}

// normalizeHeader lower-cases a header and joins words with underscores
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseAmount parses a number that may carry thousands separators; empty is zero.
// NaN and infinities are rejected.
func parseAmount(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}

func parseOptionalAmount(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseAmount(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "n", "no", "false":
		return false, nil
	case "1", "y", "yes", "true":
		return true, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}
