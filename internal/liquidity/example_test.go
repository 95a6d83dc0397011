package liquidity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Example_lcr demonstrates an LCR calculation for a minimal balance sheet
func Example_lcr() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	calc := NewLCRCalculator(DefaultParameters(), logger)

	result := calc.Calculate(context.Background(), scenarioA())

	fmt.Printf("HQLA: %.2f\n", result.TotalHQLA)
	fmt.Printf("Outflows: retail %.2f, derivatives %.2f\n", result.Outflows.Retail, result.Outflows.Derivatives)
	fmt.Printf("Net cash outflows: %.2f\n", result.NetCashOutflows)
	fmt.Printf("LCR: %.2f compliant=%t\n", result.LCRRatio, result.IsCompliant)
	// Output:
	// HQLA: 100.00
	// Outflows: retail 30.00, derivatives 50.00
	// Net cash outflows: 80.00
	// LCR: 1.25 compliant=true
}

// Example_nsfr demonstrates an NSFR calculation
func Example_nsfr() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	calc := NewNSFRCalculator(DefaultParameters(), logger)

	result := calc.Calculate(context.Background(), scenarioB())

	fmt.Printf("ASF: %.2f\n", result.AvailableStableFunding)
	fmt.Printf("RSF: %.2f\n", result.RequiredStableFunding)
	fmt.Printf("NSFR: %.3f compliant=%t\n", result.NSFRRatio, result.IsCompliant)
	// Output:
	// ASF: 1450.00
	// RSF: 850.00
	// NSFR: 1.706 compliant=true
}
