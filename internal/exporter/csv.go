package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"regliq/internal/config"
)

// utf8BOM lets Excel open the report tables as UTF-8
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes the per-table CSV files of a submission report.
// Relative paths land under the configured reports directory.
type CSVWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewCSVWriter creates a writer for report tables
func NewCSVWriter(paths *config.Paths, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{paths: paths, logger: logger}
}

// WriteTable replaces filePath with one result table: a BOM, the header row,
// then the records. Missing directories are created.
func (w *CSVWriter) WriteTable(filePath string, header []string, records [][]string) (err error) {
	fullPath := w.resolvePath(filePath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("create report table: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err := file.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	w.logger.Debug("report table written",
		slog.String("path", fullPath),
		slog.Int("rows", len(records)))
	return nil
}

// resolvePath keeps absolute paths and places relative ones under the reports directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.paths == nil {
		return filePath
	}
	return w.paths.GetReportPath(filePath)
}
