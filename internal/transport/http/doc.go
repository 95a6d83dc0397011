// Package http implements the HTTP handlers of the liquidity engine.
//
// Handlers stay thin: they decode and validate the request, delegate to the
// services package and render the result as JSON. Every failure goes through
// the shared error handler and is returned as RFC 7807 problem details.
//
// Routes, relative to /api/v1:
//
//	POST /lcr                     LCR of the posted line items
//	POST /nsfr                    NSFR of the posted line items
//	POST /breakdown               itemized LCR with reconciliation
//	POST /calculate               all of the above in one response
//	POST /validate                registry rules over posted rows
//	POST /submissions             create and process a submission (JSON, CSV or XLSX)
//	GET  /submissions             list submissions of a legal entity
//	GET  /submissions/{id}        submission with validation and results
//	POST /submissions/{id}/export write the report files of a submission
package http
