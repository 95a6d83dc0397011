// Package exporter writes submission results for regulatory reporting.
//
// CSVWriter writes a single result table with a UTF-8 BOM for Excel.
// ReportExporter builds on it and writes a submission Report as
// one CSV per result table, a single XLSX workbook with one sheet per table,
// or JSON. Monetary amounts are rounded half to even to two decimals and
// rates to four.
package exporter
