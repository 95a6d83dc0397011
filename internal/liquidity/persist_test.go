package liquidity

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSummaries(t *testing.T) []Summary {
	t.Helper()
	ctx := context.Background()
	date := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	lcr := NewLCRCalculator(DefaultParameters(), testLogger())
	nsfr := NewNSFRCalculator(DefaultParameters(), testLogger())

	return []Summary{
		{LegalEntityID: "LE002", ReportDate: date, LCR: lcr.Calculate(ctx, scenarioA()), NSFR: nsfr.Calculate(ctx, scenarioB())},
		{LegalEntityID: "LE001", ReportDate: date, LCR: lcr.Calculate(ctx, scenarioA()), NSFR: nsfr.Calculate(ctx, scenarioB())},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testSummaries(t)))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, summaryHeader, records[0])
	assert.Equal(t, "LE001", records[1][0], "rows sorted by legal entity within a date")
	assert.Equal(t, "2024-03-31", records[1][1])
	assert.Equal(t, "100.00", records[1][2])
	assert.Equal(t, "1.2500", records[1][16])
	assert.Equal(t, "true", records[1][17])
	assert.Equal(t, "1.7059", records[1][20])
}

func TestSaveToCSVAndJSON(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty input", func(t *testing.T) {
		assert.Error(t, SaveToCSV(nil, filepath.Join(dir, "empty.csv")))
		assert.Error(t, SaveToJSON(nil, filepath.Join(dir, "empty.json")))
	})

	t.Run("csv in nested directory", func(t *testing.T) {
		path := filepath.Join(dir, "nested", "ratios.csv")
		require.NoError(t, SaveToCSV(testSummaries(t), path))
		assert.FileExists(t, path)
	})

	t.Run("json with metadata", func(t *testing.T) {
		path := filepath.Join(dir, "ratios.json")
		require.NoError(t, SaveToJSON(testSummaries(t), path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var decoded struct {
			Metadata map[string]interface{} `json:"metadata"`
			Results  []Summary              `json:"results"`
		}
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, float64(2), decoded.Metadata["total_records"])
		assert.Equal(t, float64(2), decoded.Metadata["fully_compliant"])
		require.Len(t, decoded.Results, 2)
		assert.InDelta(t, 1.25, decoded.Results[0].LCR.LCRRatio, tolerance)
	})
}
