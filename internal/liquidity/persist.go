package liquidity

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// Summary pairs the LCR and NSFR results of one legal entity and reporting date
type Summary struct {
	LegalEntityID string     `json:"legal_entity_id"`
	ReportDate    time.Time  `json:"report_date"`
	LCR           LCRResult  `json:"lcr"`
	NSFR          NSFRResult `json:"nsfr"`
}

// summaryHeader is the column layout of the results CSV
var summaryHeader = []string{
	"Legal_Entity",
	"Report_Date",
	"Total_HQLA",
	"Level1",
	"Level2A",
	"Level2B",
	"Outflows_Retail",
	"Outflows_Wholesale",
	"Outflows_Secured",
	"Outflows_Derivatives",
	"Outflows_Other_Contractual",
	"Outflows_Other_Contingent",
	"Total_Cash_Outflows",
	"Total_Cash_Inflows",
	"Capped_Inflows",
	"Net_Cash_Outflows",
	"LCR_Ratio",
	"LCR_Compliant",
	"ASF",
	"RSF",
	"NSFR_Ratio",
	"NSFR_Compliant",
}

// SaveToCSV saves ratio summaries to a CSV file, one row per entity and date
func SaveToCSV(summaries []Summary, outputPath string) error {
	if len(summaries) == 0 {
		return fmt.Errorf("no results to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	return WriteCSV(file, summaries)
}

// WriteCSV writes ratio summaries as CSV, sorted by date then legal entity
func WriteCSV(w io.Writer, summaries []Summary) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(summaryHeader); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	sorted := make([]Summary, len(summaries))
	copy(sorted, summaries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ReportDate.Equal(sorted[j].ReportDate) {
			return sorted[i].LegalEntityID < sorted[j].LegalEntityID
		}
		return sorted[i].ReportDate.Before(sorted[j].ReportDate)
	})

	for _, s := range sorted {
		if err := writer.Write(formatSummaryRecord(s)); err != nil {
			return fmt.Errorf("write CSV record for %s: %w", s.LegalEntityID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// formatSummaryRecord converts a Summary to a CSV record
func formatSummaryRecord(s Summary) []string {
	return []string{
		s.LegalEntityID,
		s.ReportDate.Format("2006-01-02"),
		formatFloat(s.LCR.TotalHQLA, 2),
		formatFloat(s.LCR.Level1, 2),
		formatFloat(s.LCR.Level2A, 2),
		formatFloat(s.LCR.Level2B, 2),
		formatFloat(s.LCR.Outflows.Retail, 2),
		formatFloat(s.LCR.Outflows.Wholesale, 2),
		formatFloat(s.LCR.Outflows.Secured, 2),
		formatFloat(s.LCR.Outflows.Derivatives, 2),
		formatFloat(s.LCR.Outflows.OtherContractual, 2),
		formatFloat(s.LCR.Outflows.OtherContingent, 2),
		formatFloat(s.LCR.TotalCashOutflows, 2),
		formatFloat(s.LCR.TotalCashInflows, 2),
		formatFloat(s.LCR.CappedInflows, 2),
		formatFloat(s.LCR.NetCashOutflows, 2),
		formatFloat(s.LCR.LCRRatio, 4),
		strconv.FormatBool(s.LCR.IsCompliant),
		formatFloat(s.NSFR.AvailableStableFunding, 2),
		formatFloat(s.NSFR.RequiredStableFunding, 2),
		formatFloat(s.NSFR.NSFRRatio, 4),
		strconv.FormatBool(s.NSFR.IsCompliant),
	}
}

// formatFloat formats a float64 value for CSV output with specified precision
func formatFloat(value float64, precision int) string {
	return strconv.FormatFloat(value, 'f', precision, 64)
}

// SaveToJSON saves ratio summaries to a JSON file with a metadata header
func SaveToJSON(summaries []Summary, outputPath string) error {
	if len(summaries) == 0 {
		return fmt.Errorf("no results to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	compliant := 0
	for _, s := range summaries {
		if s.LCR.IsCompliant && s.NSFR.IsCompliant {
			compliant++
		}
	}

	output := map[string]interface{}{
		"metadata": map[string]interface{}{
			"generated_at":    time.Now().Format(time.RFC3339),
			"total_records":   len(summaries),
			"fully_compliant": compliant,
		},
		"results": summaries,
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}

	return nil
}
