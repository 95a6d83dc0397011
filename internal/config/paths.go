package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Paths contains the resolved file system locations used by the application
type Paths struct {
	BaseDir        string
	DataDir        string
	ReportsDir     string
	LogsDir        string
	RegistryFile   string
	ParametersFile string
}

// ResolvePaths turns the configured paths into absolute ones. Relative paths
// are anchored at BaseDir, which itself defaults to the working directory.
func (c *Config) ResolvePaths() (*Paths, error) {
	base := c.Paths.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}

	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	return &Paths{
		BaseDir:        base,
		DataDir:        resolve(c.Paths.DataDir),
		ReportsDir:     resolve(c.Paths.ReportsDir),
		LogsDir:        resolve(c.Paths.LogsDir),
		RegistryFile:   resolve(c.Paths.RegistryFile),
		ParametersFile: resolve(c.Paths.ParametersFile),
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.ReportsDir, p.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// GetReportPath returns the path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// ErrOutsideReportsDir is returned when a legal entity id would place exports
// outside the reports directory
var ErrOutsideReportsDir = errors.New("report directory escapes the reports directory")

// GetSubmissionReportDir returns the directory holding every export of one submission,
// e.g. reports/LE001/2024-06-30
func (p *Paths) GetSubmissionReportDir(legalEntityID string, reportDate time.Time) (string, error) {
	dir := filepath.Join(p.ReportsDir, legalEntityID, reportDate.Format("2006-01-02"))

	rel, err := filepath.Rel(p.ReportsDir, dir)
	if err != nil {
		return "", fmt.Errorf("resolve report directory for %q: %w", legalEntityID, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("legal entity %q: %w", legalEntityID, ErrOutsideReportsDir)
	}
	return dir, nil
}

// LogPathResolution logs the resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("reports", p.ReportsDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("config_files",
			slog.String("registry", p.RegistryFile),
			slog.String("parameters", p.ParametersFile),
		))
}
