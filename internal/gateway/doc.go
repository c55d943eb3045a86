// Package gateway serves the kvgate HTTP API.
//
// # Overview
//
// The Gateway owns one in-memory store, one authentication gate, and the
// metrics collectors for the life of the process. It binds the API listener
// (plain TCP or a Tailscale tsnet node) and an optional metrics listener, and
// serves until its context is canceled.
//
// # HTTP API
//
//   - GET, HEAD /health - Liveness check, always "OK", never gated
//   - GET /api/kv/{key} - Value of key as text/plain, or 404
//   - POST /api/kv - Upsert a JSON object of string keys to string values, 201
//
// Any other path yields 404 and any other method on a known path yields 405.
//
// # Handler Chain
//
// Requests pass through, in order:
//
//	request id -> observe (access log, metrics) -> recover -> auth gate -> Router
//
// The gate runs before routing, so when authentication is enabled an
// uncredentialed request to an unknown path gets 401, not 404. Every 401 has
// the same body regardless of which check failed. Every failure, including
// 404, 405 and a recovered panic (500), carries a plain-text body.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil { ... }
//	err = gw.Run(ctx) // blocks; nil after graceful shutdown
//
// Run shuts the servers down with a five second deadline once ctx is done or
// either server fails.
package gateway
