package breakdown

import (
	"math"

	"regliq/internal/liquidity"
)

// DefaultTolerance is the relative tolerance used when comparing totals
const DefaultTolerance = 1e-6

// ReconciliationLine compares one breakdown total with the calculator figure
type ReconciliationLine struct {
	Name       string  `json:"name"`
	Breakdown  float64 `json:"breakdown"`
	Calculator float64 `json:"calculator"`
	Delta      float64 `json:"delta"`
	Matched    bool    `json:"matched"`
	// Binding lines must match for the report to reconcile
	Binding bool `json:"binding"`
}

// Report is the outcome of reconciling a breakdown with an LCR result
type Report struct {
	Lines      []ReconciliationLine `json:"lines"`
	Reconciled bool                 `json:"reconciled"`
	Mismatches []string             `json:"mismatches,omitempty"`
}

// Reconcile compares component sums with the calculator totals. HQLA and
// every outflow category are binding. Inflow components only cover flows
// within the stress horizon, so the inflow line is reported but not binding.
func Reconcile(result Result, lcr liquidity.LCRResult, tolerance float64) Report {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	report := Report{Reconciled: true}

	add := func(name string, breakdown, calculator float64, binding bool) {
		delta := breakdown - calculator
		matched := math.Abs(delta) <= tolerance*math.Max(1, math.Abs(calculator))

		report.Lines = append(report.Lines, ReconciliationLine{
			Name:       name,
			Breakdown:  breakdown,
			Calculator: calculator,
			Delta:      delta,
			Matched:    matched,
			Binding:    binding,
		})

		if !matched {
			report.Mismatches = append(report.Mismatches, name)
			if binding {
				report.Reconciled = false
			}
		}
	}

	add("hqla_total", result.Totals.HQLA, lcr.TotalHQLA, true)
	for _, category := range liquidity.OutflowCategories {
		add("outflows_"+string(category), result.Totals.Outflows.Get(category), lcr.Outflows.Get(category), true)
	}
	add("outflows_total", result.Totals.Outflows.Total, lcr.TotalCashOutflows, true)
	add("inflows_total", result.Totals.Inflows, lcr.TotalCashInflows, false)

	return report
}
