// Package infrastructure provides the logging, trace-context and
// OpenTelemetry plumbing shared by the server and the batch CLI.
package infrastructure
