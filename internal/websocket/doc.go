// Package websocket broadcasts submission lifecycle events to connected
// clients through a single hub goroutine.
package websocket
