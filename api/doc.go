// Copyright (c) CouncilFlow Authors.
// Licensed under the MIT License.

// Package api defines the wire types of the CouncilFlow HTTP API.
//
// # API Overview
//
// CouncilFlow exposes a RESTful API for:
//   - Council deliberation (three-stage answer, peer review, synthesis)
//   - Stage-boundary streaming via SSE and WebSocket
//   - Conversation management (list, create, fetch, delete)
//   - Health monitoring and metrics
//
// # Authentication
//
// When authentication is enabled, endpoints accept either an API key or a
// bearer token:
//
//	X-API-Key: your-api-key
//	Authorization: Bearer <jwt>
//
// Health endpoints are always exempt.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// # Endpoints
//
//	POST /api/v1/council/ask           run one round, full result JSON
//	POST /api/v1/council/ask/stream    run one round, SSE stage events
//	GET  /api/v1/council/ws            run rounds over a WebSocket
//	GET  /api/v1/conversations         list conversation summaries
//	POST /api/v1/conversations         create an empty conversation
//	GET  /api/v1/conversations/{id}    fetch a conversation with rounds
//	DELETE /api/v1/conversations/{id}  delete a conversation
//	GET  /health, /healthz             liveness
//	GET  /ready, /readyz               readiness (store + provider probes)
//	GET  /version                      build information
//
// Metrics are served on the separate admin port at /metrics, alongside the
// configuration endpoints under /api/v1/config.
package api
