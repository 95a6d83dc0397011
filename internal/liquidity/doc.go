// Package liquidity computes the Basel III liquidity ratios for a single
// legal entity and reporting date.
//
// # Core Components
//
//  1. LCR: high-quality liquid assets over net cash outflows across a 30 day stress horizon
//  2. NSFR: available over required stable funding across a one year horizon
//
// Both calculators are pure transforms over an in-memory slice of
// domain.LineItem values. Every rate they apply lives in Parameters, so a
// regulatory change is a configuration change.
//
// # Architecture
//
//   - params.go: regulatory rates, defaults and validation
//   - types.go: result types and outflow categories
//   - lcr.go: HQLA, outflow and inflow aggregation
//   - nsfr.go: ASF and RSF aggregation
//   - persist.go: CSV and JSON output of ratio summaries
//
// # Usage Example
//
//	params := liquidity.DefaultParameters()
//	lcr := liquidity.NewLCRCalculator(params, slog.Default()).Calculate(ctx, items)
//	nsfr := liquidity.NewNSFRCalculator(params, slog.Default()).Calculate(ctx, items)
//
//	err := liquidity.SaveToCSV([]liquidity.Summary{{
//	    LegalEntityID: "LE001",
//	    ReportDate:    reportDate,
//	    LCR:           lcr,
//	    NSFR:          nsfr,
//	}}, "reports/ratios.csv")
//
// # Concentration Caps
//
// Level 2A and Level 2B assets are capped relative to Level 1 assets
// (2/3 and 15/85 of Level 1 respectively), not relative to total adjusted
// HQLA.
package liquidity
