package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// evaluation is what one evaluator produces for one rule
type evaluation struct {
	errors []ValidationError
	// note is recorded on the rule stat; registryMissing also raises a run warning
	note            string
	registryMissing bool
}

// evaluator scans the full row set once for a single rule
type evaluator func(rule ValidationRule, rows []Row, reg *registrySets) evaluation

// evaluators maps every rule category to its evaluator
var evaluators = map[RuleCategory]evaluator{
	CategoryEnumeration:     evaluateEnumeration,
	CategoryDataType:        evaluateDataType,
	CategoryCrossField:      evaluateCrossField,
	CategoryFieldDependency: evaluateFieldDependency,
	CategoryDuplicate:       evaluateDuplicate,
	CategoryLegalEntity:     evaluateLegalEntity,
}

// registrySets holds the registries as lookup sets, built once per run
type registrySets struct {
	allowed       map[string]map[string]struct{}
	allowedList   map[string]string
	legalEntities map[string]struct{}
}

func newRegistrySets(reg Registries) *registrySets {
	sets := &registrySets{
		allowed:       make(map[string]map[string]struct{}, len(reg.AllowedValues)),
		allowedList:   make(map[string]string, len(reg.AllowedValues)),
		legalEntities: make(map[string]struct{}, len(reg.LegalEntities)),
	}

	for field, values := range reg.AllowedValues {
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		sets.allowed[field] = set

		sorted := append([]string(nil), values...)
		sort.Strings(sorted)
		sets.allowedList[field] = strings.Join(sorted, ",")
	}

	for _, id := range reg.LegalEntities {
		sets.legalEntities[id] = struct{}{}
	}

	return sets
}

func newError(rule ValidationRule, row Row, severity Severity, field, message string) ValidationError {
	return ValidationError{
		RowID:     row.ID,
		RuleID:    rule.ID,
		ErrorType: string(rule.Category),
		Message:   message,
		FieldName: field,
		Severity:  severity,
	}
}

// evaluateEnumeration checks a target field against the allowed-value registry.
// Empty values are left to required-field checks.
func evaluateEnumeration(rule ValidationRule, rows []Row, reg *registrySets) evaluation {
	if rule.TargetField == "" {
		return evaluation{note: "rule has no target field; nothing checked"}
	}

	allowed := reg.allowed[rule.TargetField]
	if len(allowed) == 0 {
		return evaluation{
			note:            fmt.Sprintf("no allowed values registered for %s; rule produced no errors", rule.TargetField),
			registryMissing: true,
		}
	}

	var out evaluation
	for _, row := range rows {
		value := row.Field(rule.TargetField)
		if value == "" {
			continue
		}
		if _, ok := allowed[value]; ok {
			continue
		}

		e := newError(rule, row, SeverityError, rule.TargetField,
			fmt.Sprintf("%s value %q is not an allowed value", rule.TargetField, value))
		e.ExpectedValue = reg.allowedList[rule.TargetField]
		e.ActualValue = value
		out.errors = append(out.errors, e)
	}

	return out
}

// evaluateDataType checks the currency field against the ISO 4217 whitelist
func evaluateDataType(rule ValidationRule, rows []Row, _ *registrySets) evaluation {
	var out evaluation
	for _, row := range rows {
		if IsCurrencyCode(row.Currency) {
			continue
		}

		message := fmt.Sprintf("currency %q is not an ISO 4217 code", row.Currency)
		if row.Currency == "" {
			message = "currency is missing"
		}

		e := newError(rule, row, SeverityError, "currency", message)
		e.ExpectedValue = "ISO 4217 currency code"
		e.ActualValue = row.Currency
		out.errors = append(out.errors, e)
	}
	return out
}

// evaluateCrossField checks that the lendable value never exceeds the market value
func evaluateCrossField(rule ValidationRule, rows []Row, _ *registrySets) evaluation {
	var out evaluation
	for _, row := range rows {
		if row.LendableValue == nil || row.MarketValue == nil {
			continue
		}
		if *row.LendableValue <= *row.MarketValue {
			continue
		}

		e := newError(rule, row, SeverityError, "lendable_value",
			"lendable value exceeds market value")
		e.ExpectedValue = "<= " + formatAmount(*row.MarketValue)
		e.ActualValue = formatAmount(*row.LendableValue)
		out.errors = append(out.errors, e)
	}
	return out
}

// evaluateFieldDependency checks that internal rows name their internal counterparty
func evaluateFieldDependency(rule ValidationRule, rows []Row, _ *registrySets) evaluation {
	var out evaluation
	for _, row := range rows {
		if !row.InternalFlag || strings.TrimSpace(row.InternalCounterparty) != "" {
			continue
		}

		e := newError(rule, row, SeverityError, "internal_counterparty",
			"internal counterparty is required when internal flag is set")
		e.ExpectedValue = "non-empty"
		out.errors = append(out.errors, e)
	}
	return out
}

// naturalKey identifies a reporting row
type naturalKey struct {
	LegalEntityID  string
	ProductID      string
	SubProduct     string
	CounterpartyID string
	MaturityBucket string
	Currency       string
}

func (k naturalKey) String() string {
	return strings.Join([]string{k.LegalEntityID, k.ProductID, k.SubProduct, k.CounterpartyID, k.MaturityBucket, k.Currency}, "|")
}

// evaluateDuplicate flags every row whose natural key was already seen,
// together with the first row carrying that key. It runs sequentially so
// first-seen and repeat rows are decided by row order.
func evaluateDuplicate(rule ValidationRule, rows []Row, _ *registrySets) evaluation {
	var out evaluation

	firstSeen := make(map[naturalKey]int, len(rows))
	flagged := make(map[naturalKey]bool)

	for i, row := range rows {
		key := naturalKey{
			LegalEntityID:  row.LegalEntityID,
			ProductID:      row.ProductID,
			SubProduct:     row.SubProduct,
			CounterpartyID: row.CounterpartyID,
			MaturityBucket: row.MaturityBucket,
			Currency:       row.Currency,
		}

		first, seen := firstSeen[key]
		if !seen {
			firstSeen[key] = i
			continue
		}

		if !flagged[key] {
			out.errors = append(out.errors, duplicateError(rule, rows[first], key, ""))
			flagged[key] = true
		}
		out.errors = append(out.errors, duplicateError(rule, row, key, rows[first].ID))
	}

	return out
}

func duplicateError(rule ValidationRule, row Row, key naturalKey, firstRowID string) ValidationError {
	message := "natural key appears more than once"
	if firstRowID != "" {
		message = fmt.Sprintf("natural key duplicates row %s", firstRowID)
	}

	e := newError(rule, row, SeverityWarning, "natural_key", message)
	e.ExpectedValue = "unique"
	e.ActualValue = key.String()
	return e
}

// evaluateLegalEntity checks that referenced legal entities exist in the registry
func evaluateLegalEntity(rule ValidationRule, rows []Row, reg *registrySets) evaluation {
	if len(reg.legalEntities) == 0 {
		return evaluation{
			note:            "legal entity registry is empty; rule produced no errors",
			registryMissing: true,
		}
	}

	var out evaluation
	for _, row := range rows {
		if row.LegalEntityID == "" {
			continue
		}
		if _, ok := reg.legalEntities[row.LegalEntityID]; ok {
			continue
		}

		e := newError(rule, row, SeverityError, "legal_entity_id",
			fmt.Sprintf("legal entity %q is not registered", row.LegalEntityID))
		e.ActualValue = row.LegalEntityID
		out.errors = append(out.errors, e)
	}
	return out
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
