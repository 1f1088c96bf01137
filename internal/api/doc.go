// Package api implements the node's local diagnostics HTTP API.
//
// This package provides:
//   - Health and runtime metrics endpoints for monitoring
//   - Read-only views of the connection sequence and the entity table
//   - Operator commands (suspend, resume, republish) for the broker session
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Architecture
//
// Handlers never touch the communication core directly. They read the
// snapshot the node loop publishes on every pass and submit commands that
// the loop executes on its next pass, so the core stays single-threaded.
//
// # Endpoints
//
//	GET  /api/v1/health
//	GET  /api/v1/metrics
//	GET  /api/v1/status
//	GET  /api/v1/entities
//	GET  /api/v1/entities/{name}
//	POST /api/v1/session/{command}
package api
