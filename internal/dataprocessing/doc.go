// Package dataprocessing turns position files into the line items consumed by
// the liquidity calculators and the rows consumed by the validation engine.
//
// CSV and XLSX files are supported. Headers are matched case-insensitively and
// spaces or dashes are treated as underscores, so "Outstanding Balance" and
// "outstanding_balance" name the same column. Unknown columns are preserved as
// row attributes and can be targeted by validation rules.
package dataprocessing
