package exporter

import (
	"strconv"
	"strings"

	"regliq/internal/breakdown"
	"regliq/internal/validation"
)

var hqlaHeader = []string{
	"HQLA_Level", "Category", "Asset_Class", "Total_Amount", "Encumbered_Amount",
	"Average_Haircut", "Amount_After_Haircut", "Liquidity_Value_Factor",
	"Uncapped_Liquidity_Value", "Cap_Adjustment", "Liquidity_Value",
	"Methodology", "Regulatory_Reference", "Record_Count", "Line_Item_IDs",
}

var outflowHeader = []string{
	"Outflow_Category", "Category", "Product_Type", "Counterparty_Type", "Maturity_Bucket",
	"Total_Amount", "Effective_Rate", "Computed_Amount",
	"Methodology", "Regulatory_Reference", "Record_Count", "Line_Item_IDs",
}

var inflowHeader = []string{
	"Category", "Product_Type", "Counterparty_Type", "Maturity_Bucket",
	"Total_Amount", "Effective_Rate", "Computed_Amount",
	"Methodology", "Regulatory_Reference", "Record_Count", "Line_Item_IDs",
}

var reconciliationHeader = []string{"Line", "Breakdown", "Calculator", "Delta", "Matched", "Binding"}

var validationErrorHeader = []string{
	"Submission_ID", "Row_ID", "Rule_ID", "Error_Type", "Severity",
	"Field_Name", "Expected_Value", "Actual_Value", "Message",
}

var ruleExecutionHeader = []string{
	"Rule_ID", "Name", "Category", "Rows_Checked", "Rows_Passed", "Rows_Failed",
	"Distinct_Rows_Failed", "Execution_Time_Ms", "Notes",
}

// joinIDs keeps line item id lists in one cell
func joinIDs(ids []string) string {
	return strings.Join(ids, ";")
}

func hqlaLevelName(level int) string {
	switch level {
	case 1:
		return "Level1"
	case 2:
		return "Level2A"
	case 3:
		return "Level2B"
	default:
		return strconv.Itoa(level)
	}
}

func hqlaRecords(components []breakdown.HQLAComponent) [][]string {
	records := make([][]string, 0, len(components))
	for _, c := range components {
		records = append(records, []string{
			hqlaLevelName(int(c.Level)),
			string(c.Category),
			c.AssetClass,
			formatAmount(c.TotalAmount),
			formatAmount(c.EncumberedAmount),
			formatRate(c.AverageHaircut),
			formatAmount(c.AmountAfterHaircut),
			formatRate(c.LiquidityValueFactor),
			formatAmount(c.UncappedLiquidityValue),
			formatAmount(c.CapAdjustment),
			formatAmount(c.LiquidityValue),
			c.Methodology,
			c.RegulatoryReference,
			formatInt(c.RecordCount),
			joinIDs(c.LineItemIDs),
		})
	}
	return records
}

func outflowRecords(components []breakdown.OutflowComponent) [][]string {
	records := make([][]string, 0, len(components))
	for _, c := range components {
		records = append(records, []string{
			string(c.OutflowCategory),
			string(c.Category),
			c.ProductType,
			string(c.CounterpartyType),
			string(c.MaturityBucket),
			formatAmount(c.TotalAmount),
			formatRate(c.EffectiveRate),
			formatAmount(c.ComputedAmount),
			c.Methodology,
			c.RegulatoryReference,
			formatInt(c.RecordCount),
			joinIDs(c.LineItemIDs),
		})
	}
	return records
}

func inflowRecords(components []breakdown.InflowComponent) [][]string {
	records := make([][]string, 0, len(components))
	for _, c := range components {
		records = append(records, []string{
			string(c.Category),
			c.ProductType,
			string(c.CounterpartyType),
			string(c.MaturityBucket),
			formatAmount(c.TotalAmount),
			formatRate(c.EffectiveRate),
			formatAmount(c.ComputedAmount),
			c.Methodology,
			c.RegulatoryReference,
			formatInt(c.RecordCount),
			joinIDs(c.LineItemIDs),
		})
	}
	return records
}

func reconciliationRecords(lines []breakdown.ReconciliationLine) [][]string {
	records := make([][]string, 0, len(lines))
	for _, l := range lines {
		records = append(records, []string{
			l.Name,
			formatAmount(l.Breakdown),
			formatAmount(l.Calculator),
			strconv.FormatFloat(l.Delta, 'g', -1, 64),
			formatBool(l.Matched),
			formatBool(l.Binding),
		})
	}
	return records
}

func validationErrorRecords(errs []validation.ValidationError) [][]string {
	records := make([][]string, 0, len(errs))
	for _, ve := range errs {
		records = append(records, []string{
			ve.SubmissionID,
			ve.RowID,
			ve.RuleID,
			ve.ErrorType,
			string(ve.Severity),
			ve.FieldName,
			ve.ExpectedValue,
			ve.ActualValue,
			ve.Message,
		})
	}
	return records
}

func ruleExecutionRecords(stats []validation.RuleExecutionStat) [][]string {
	records := make([][]string, 0, len(stats))
	for _, s := range stats {
		records = append(records, []string{
			s.RuleID,
			s.Name,
			string(s.Category),
			formatInt(s.RowsChecked),
			formatInt(s.RowsPassed),
			formatInt(s.RowsFailed),
			formatInt(s.DistinctRowsFailed),
			strconv.FormatInt(s.ExecutionTimeMs, 10),
			s.Notes,
		})
	}
	return records
}
