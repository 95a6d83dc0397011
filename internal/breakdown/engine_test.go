package breakdown

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regliq/internal/liquidity"
	"regliq/pkg/contracts/domain"
)

const tolerance = 1e-9

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine() *Engine {
	return NewEngine(liquidity.DefaultParameters(), testLogger())
}

func TestHQLAComponentsGrouping(t *testing.T) {
	items := []domain.LineItem{
		{ProductID: "GOV-1", Category: domain.CategorySecurities, AssetClass: "government", IsHQLA: true, HQLALevel: domain.HQLALevel1, OutstandingBalance: 100},
		{ProductID: "GOV-2", Category: domain.CategorySecurities, AssetClass: "government", IsHQLA: true, HQLALevel: domain.HQLALevel1, OutstandingBalance: 300, EncumberedAmount: 100, Haircut: 0.1},
		{ProductID: "CORP-1", Category: domain.CategorySecurities, AssetClass: "corporate", IsHQLA: true, HQLALevel: domain.HQLALevel2A, OutstandingBalance: 100},
		{ProductID: "CASH-1", Category: domain.CategoryOtherAssets, AssetClass: "cash", IsHQLA: true, HQLALevel: domain.HQLALevel1, OutstandingBalance: 50},
		{ProductID: "NOLEVEL", Category: domain.CategorySecurities, IsHQLA: true, OutstandingBalance: 999},
		{ProductID: "LOAN", Category: domain.CategoryLoans, OutstandingBalance: 999},
	}

	components := newTestEngine().HQLAComponents(context.Background(), items)
	require.Len(t, components, 3)

	// sorted by level, then category, then asset class
	gov := components[1]
	assert.Equal(t, HQLAKey{Level: domain.HQLALevel1, Category: domain.CategorySecurities, AssetClass: "government"}, gov.HQLAKey)
	assert.Equal(t, domain.CategoryOtherAssets, components[0].Category)
	assert.Equal(t, domain.HQLALevel2A, components[2].Level)

	assert.Equal(t, []string{"GOV-1", "GOV-2"}, gov.LineItemIDs)
	assert.Equal(t, 2, gov.RecordCount)
	assert.InDelta(t, 400.0, gov.TotalAmount, tolerance)
	assert.InDelta(t, 100.0, gov.EncumberedAmount, tolerance)
	assert.InDelta(t, 280.0, gov.AmountAfterHaircut, tolerance)
	assert.InDelta(t, 1-280.0/300.0, gov.AverageHaircut, tolerance)
	assert.InDelta(t, 1.0, gov.LiquidityValueFactor, tolerance)
	assert.InDelta(t, 280.0, gov.LiquidityValue, tolerance)
	assert.Equal(t, RefLevel1, gov.RegulatoryReference)
	assert.NotEmpty(t, gov.Methodology)

	corp := components[2]
	assert.InDelta(t, 0.85, corp.LiquidityValueFactor, tolerance)
	assert.InDelta(t, 85.0, corp.LiquidityValue, tolerance, "well under the level 2A cap")
	assert.Zero(t, corp.CapAdjustment)
	assert.Equal(t, RefLevel2A, corp.RegulatoryReference)
}

func TestHQLAComponentsCapsProRata(t *testing.T) {
	items := []domain.LineItem{
		{ProductID: "GOV", Category: domain.CategorySecurities, AssetClass: "government", IsHQLA: true, HQLALevel: domain.HQLALevel1, OutstandingBalance: 100},
		{ProductID: "CORP", Category: domain.CategorySecurities, AssetClass: "corporate", IsHQLA: true, HQLALevel: domain.HQLALevel2A, OutstandingBalance: 100},
		{ProductID: "COVERED", Category: domain.CategorySecurities, AssetClass: "covered_bond", IsHQLA: true, HQLALevel: domain.HQLALevel2A, OutstandingBalance: 300},
		{ProductID: "EQUITY", Category: domain.CategorySecurities, AssetClass: "equity", IsHQLA: true, HQLALevel: domain.HQLALevel2B, OutstandingBalance: 100},
	}

	engine := newTestEngine()
	components := engine.HQLAComponents(context.Background(), items)
	require.Len(t, components, 4)

	var level2a, level2b, adjustment float64
	for _, c := range components {
		switch c.Level {
		case domain.HQLALevel2A:
			level2a += c.LiquidityValue
			adjustment += c.CapAdjustment
			assert.InDelta(t, c.UncappedLiquidityValue-c.CapAdjustment, c.LiquidityValue, tolerance)
		case domain.HQLALevel2B:
			level2b += c.LiquidityValue
		}
	}

	assert.InDelta(t, 100.0*2/3, level2a, 1e-6)
	assert.InDelta(t, 340.0-100.0*2/3, adjustment, 1e-6)
	assert.InDelta(t, 100.0*15/85, level2b, 1e-6)

	// the covered bond carries three quarters of the level 2A value before and after capping
	for _, c := range components {
		if c.AssetClass == "covered_bond" {
			assert.InDelta(t, 0.75*100.0*2/3, c.LiquidityValue, 1e-6)
		}
	}

	calc := liquidity.NewLCRCalculator(liquidity.DefaultParameters(), testLogger())
	hqla := calc.ComputeHQLA(context.Background(), items)
	result := engine.Compute(context.Background(), items)
	assert.InDelta(t, hqla.Total, result.Totals.HQLA, 1e-6)
}

func TestOutflowComponents(t *testing.T) {
	items := []domain.LineItem{
		{ProductID: "RET-1", Category: domain.CategoryDeposits, SubProduct: "stable", CounterpartyType: domain.CounterpartyRetail, MaturityBucket: domain.MaturityOpen, OutstandingBalance: 1000},
		{ProductID: "RET-2", Category: domain.CategoryDeposits, SubProduct: "stable", CounterpartyType: domain.CounterpartyRetail, MaturityBucket: domain.MaturityOpen, OutstandingBalance: 500},
		{ProductID: "FI-1", Category: domain.CategoryDeposits, CounterpartyType: domain.CounterpartyFinancialInstitution, MaturityBucket: domain.MaturityOvernight, OutstandingBalance: 200},
		{ProductID: "REPO-1", Category: domain.CategorySecuredFunding, CounterpartyType: domain.CounterpartyFinancialInstitution, MaturityBucket: domain.MaturityOvernight, IsHQLA: true, HQLALevel: domain.HQLALevel1, OutstandingBalance: 300},
		{ProductID: "IRS-1", Category: domain.CategoryDerivatives, CounterpartyType: domain.CounterpartyFinancialInstitution, MaturityBucket: domain.Maturity8To30Days, ProjectedCashOutflow: 50},
		{ProductID: "RCF-1", Category: domain.CategoryCreditFacilities, CounterpartyType: domain.CounterpartyCorporate, MaturityBucket: domain.MaturityOver1Year, OutstandingBalance: 1000},
		{ProductID: "PAY-1", Category: domain.CategoryOtherLiabilities, CounterpartyType: domain.CounterpartyOther, MaturityBucket: domain.Maturity2To7Days, ProjectedCashOutflow: 20},
		{ProductID: "BOND-1", Category: domain.CategoryOtherLiabilities, CounterpartyType: domain.CounterpartyOther, MaturityBucket: domain.MaturityOver1Year, ProjectedCashOutflow: 20},
	}

	components := newTestEngine().OutflowComponents(context.Background(), items)
	require.Len(t, components, 6)

	byCategory := make(map[liquidity.OutflowCategory]OutflowComponent)
	for _, c := range components {
		byCategory[c.OutflowCategory] = c
	}

	retail := byCategory[liquidity.OutflowRetail]
	assert.Equal(t, []string{"RET-1", "RET-2"}, retail.LineItemIDs)
	assert.Equal(t, 2, retail.RecordCount)
	assert.InDelta(t, 1500.0, retail.TotalAmount, tolerance)
	assert.InDelta(t, 45.0, retail.ComputedAmount, tolerance)
	assert.InDelta(t, 0.03, retail.EffectiveRate, tolerance)
	assert.Equal(t, RefRetailDeposits, retail.RegulatoryReference)

	assert.InDelta(t, 200.0, byCategory[liquidity.OutflowWholesale].ComputedAmount, tolerance)
	assert.Zero(t, byCategory[liquidity.OutflowSecured].ComputedAmount)
	assert.InDelta(t, 300.0, byCategory[liquidity.OutflowSecured].TotalAmount, tolerance)
	assert.InDelta(t, 50.0, byCategory[liquidity.OutflowDerivatives].ComputedAmount, tolerance)
	assert.InDelta(t, 50.0, byCategory[liquidity.OutflowOtherContingent].ComputedAmount, tolerance)
	assert.InDelta(t, 20.0, byCategory[liquidity.OutflowOtherContractual].ComputedAmount, tolerance)

	assert.True(t, sort.SliceIsSorted(components, func(i, j int) bool {
		return components[i].FlowKey.less(components[j].FlowKey)
	}))
}

func TestOutflowComponents_ShortDatedFacility(t *testing.T) {
	items := []domain.LineItem{
		{ProductID: "LF-1", Category: domain.CategoryLiquidityFacilities, CounterpartyType: domain.CounterpartyFinancialInstitution, MaturityBucket: domain.MaturityOvernight, OutstandingBalance: 2000, ProjectedCashOutflow: 700},
	}

	components := newTestEngine().OutflowComponents(context.Background(), items)
	require.Len(t, components, 1)

	c := components[0]
	assert.Equal(t, liquidity.OutflowOtherContingent, c.OutflowCategory)
	assert.Equal(t, []string{"LF-1"}, c.LineItemIDs)
	assert.InDelta(t, 2000.0, c.TotalAmount, tolerance)
	assert.InDelta(t, 100.0, c.ComputedAmount, tolerance)
	assert.Equal(t, RefFacilities, c.RegulatoryReference)

	calc := liquidity.NewLCRCalculator(liquidity.DefaultParameters(), testLogger())
	outflows := calc.ComputeCashOutflows(context.Background(), items)
	assert.InDelta(t, c.ComputedAmount, outflows.Get(liquidity.OutflowOtherContingent), tolerance)
	assert.Zero(t, outflows.Get(liquidity.OutflowOtherContractual))
}

func TestInflowComponents(t *testing.T) {
	items := []domain.LineItem{
		{ProductID: "LN-1", Category: domain.CategoryLoans, CounterpartyType: domain.CounterpartyCorporate, MaturityBucket: domain.Maturity8To30Days, ProjectedCashInflow: 100},
		{ProductID: "RR-1", Category: domain.CategorySecurities, SubProduct: domain.SubProductReverseRepo, CounterpartyType: domain.CounterpartyCentralBank, MaturityBucket: domain.MaturityOvernight, ProjectedCashInflow: 200},
		{ProductID: "RR-2", Category: domain.CategorySecurities, SubProduct: domain.SubProductReverseRepo, CounterpartyType: domain.CounterpartyFinancialInstitution, MaturityBucket: domain.MaturityOvernight, ProjectedCashInflow: 200},
		{ProductID: "LN-LONG", Category: domain.CategoryLoans, CounterpartyType: domain.CounterpartyCorporate, MaturityBucket: domain.MaturityOver1Year, ProjectedCashInflow: 100},
		{ProductID: "NEG", Category: domain.CategoryLoans, CounterpartyType: domain.CounterpartyCorporate, MaturityBucket: domain.MaturityOvernight, ProjectedCashInflow: -5},
	}

	components := newTestEngine().InflowComponents(context.Background(), items)
	require.Len(t, components, 3)

	computed := make(map[string]float64)
	for _, c := range components {
		require.Len(t, c.LineItemIDs, 1)
		computed[c.LineItemIDs[0]] = c.ComputedAmount
		assert.Equal(t, RefInflows, c.RegulatoryReference)
	}

	assert.InDelta(t, 50.0, computed["LN-1"], tolerance)
	assert.InDelta(t, 200.0, computed["RR-1"], tolerance, "central bank reverse repo counts in full")
	assert.InDelta(t, 100.0, computed["RR-2"], tolerance)
	assert.NotContains(t, computed, "LN-LONG")
	assert.NotContains(t, computed, "NEG")
}

// randomBalanceSheet builds a reproducible mixed dataset
func randomBalanceSheet(seed int64, n int) []domain.LineItem {
	rng := rand.New(rand.NewSource(seed))

	buckets := []domain.MaturityBucket{
		domain.MaturityOvernight, domain.Maturity2To7Days, domain.Maturity8To30Days,
		domain.Maturity31To90Days, domain.Maturity181To365, domain.MaturityOver1Year, domain.MaturityOpen,
	}
	counterparties := []domain.CounterpartyType{
		domain.CounterpartyRetail, domain.CounterpartyCorporate,
		domain.CounterpartyFinancialInstitution, domain.CounterpartyCentralBank,
	}
	subProducts := []string{"", domain.SubProductStable, domain.SubProductOperational, domain.SubProductReverseRepo}
	assetClasses := []string{"government", "covered_bond", "corporate", "equity"}

	items := make([]domain.LineItem, 0, n)
	for i := 0; i < n; i++ {
		item := domain.LineItem{
			ProductID:            fmt.Sprintf("P%04d", i),
			Category:             domain.Categories[rng.Intn(len(domain.Categories))],
			SubProduct:           subProducts[rng.Intn(len(subProducts))],
			MaturityBucket:       buckets[rng.Intn(len(buckets))],
			CounterpartyType:     counterparties[rng.Intn(len(counterparties))],
			AssetClass:           assetClasses[rng.Intn(len(assetClasses))],
			Currency:             "EUR",
			OutstandingBalance:   float64(rng.Intn(10000)),
			ProjectedCashInflow:  float64(rng.Intn(400) - 50),
			ProjectedCashOutflow: float64(rng.Intn(400)),
		}
		if rng.Intn(4) == 0 {
			item.RunoffRate = func(v float64) *float64 { return &v }(float64(rng.Intn(100)) / 100)
		}
		if rng.Intn(3) == 0 {
			item.IsHQLA = true
			item.HQLALevel = domain.HQLALevel(rng.Intn(3) + 1)
			item.Haircut = float64(rng.Intn(40)) / 100
			item.EncumberedAmount = item.OutstandingBalance * float64(rng.Intn(20)) / 100
		}
		items = append(items, item)
	}
	return items
}

func TestComputeDeterministic(t *testing.T) {
	engine := newTestEngine()
	items := randomBalanceSheet(7, 400)

	first := engine.Compute(context.Background(), items)
	second := engine.Compute(context.Background(), items)

	assert.Equal(t, first, second)
}
