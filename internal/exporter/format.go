package exporter

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Reported precision
const (
	amountPlaces = 2
	ratePlaces   = 4
)

// formatAmount renders a monetary amount with banker's rounding to 2 decimals
func formatAmount(f float64) string {
	return roundBank(f, amountPlaces).StringFixed(amountPlaces)
}

// formatRate renders a rate, factor or ratio with 4 decimals
func formatRate(f float64) string {
	return roundBank(f, ratePlaces).StringFixed(ratePlaces)
}

// roundBank rounds half to even, the convention of regulatory templates
func roundBank(f float64, places int32) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f).RoundBank(places)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
