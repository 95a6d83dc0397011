// Package services implements the orchestration layer between transports and
// the liquidity engines.
//
// LiquidityService drives one submission through validation, calculation,
// breakdown and reconciliation, persisting every stage through the storage
// interfaces and publishing status changes to an optional broadcaster. The
// stateless Calculate helpers serve requests that do not need persistence.
//
// HealthService reports liveness, readiness and version information.
package services
