package validation

import "github.com/go-playground/validator/v10"

// currencies validates ISO 4217 codes; a Validate is safe for concurrent use
var currencies = validator.New()

// IsCurrencyCode reports whether code is an ISO 4217 currency code.
// Codes are matched exactly, so lower case is rejected.
func IsCurrencyCode(code string) bool {
	return currencies.Var(code, "iso4217") == nil
}
