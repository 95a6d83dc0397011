package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileValidator checks the inputs and the report directory of a batch
// liquidity run before any position is loaded.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a validator for batch run inputs
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger}
}

// ValidateOutputDirectory creates the report directory of a submission and
// proves it writable with a probe file that is removed again.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Cannot create report directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe := filepath.Join(dir, ".write_test")
	file, err := os.Create(probe)
	if err != nil {
		v.logger.Error("Report directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(probe)

	v.logger.Info("Report directory ready", slog.String("directory", dir))
	return nil
}

// ValidateFile checks that path is an existing, readable regular file
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		v.logger.Error("Input file does not exist", slog.String("file", path))
		return fmt.Errorf("file %s does not exist", path)
	case err != nil:
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	case info.IsDir():
		v.logger.Error("Input path is a directory", slog.String("path", path))
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("Input file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidatePositionFile accepts a CSV or XLSX position file. Excel lock
// files (~$name.xlsx) are rejected even though they carry the workbook extension.
func (v *FileValidator) ValidatePositionFile(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".xlsx" {
		v.logger.Error("Unsupported position file",
			slog.String("file", path),
			slog.String("extension", ext))
		return fmt.Errorf("file %s is not a CSV or XLSX file (extension: %s)", path, ext)
	}
	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("Skipping Excel lock file", slog.String("file", path))
		return fmt.Errorf("file %s is a temporary Excel file", path)
	}
	return nil
}

// ValidateRegistryFile accepts the YAML rule registry or a parameters file
func (v *FileValidator) ValidateRegistryFile(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext != ".yaml" && ext != ".yml" {
		v.logger.Error("Registry file is not YAML",
			slog.String("file", path),
			slog.String("extension", ext))
		return fmt.Errorf("file %s is not a YAML file (extension: %s)", path, ext)
	}
	return nil
}
