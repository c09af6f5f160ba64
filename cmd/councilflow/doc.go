// Copyright (c) CouncilFlow Authors.
// Licensed under the MIT License.

/*
Package main provides the CouncilFlow server entry point.

# Overview

cmd/councilflow is the executable front door of the CouncilFlow service. It
exposes the council deliberation HTTP API along with archive schema
migrations, health checks and version reporting as subcommands. The program
loads YAML configuration, logs structurally via zap, serves Prometheus
metrics on a dedicated port and hot-reloads its configuration file.

# Core types

  - Server         — main server, managing the HTTP and metrics listeners and graceful shutdown
  - Middleware     — HTTP middleware signature func(http.Handler) http.Handler
  - responseWriter — wraps http.ResponseWriter to capture the status code

# Capabilities

  - Subcommands: serve (run the service), migrate (archive schema), version, health
  - Middleware chain: Recovery, RequestID, SecurityHeaders, RequestLogger,
    MetricsMiddleware, optional OTelTracing, CORS, RateLimiter (per IP),
    Auth (X-API-Key header, api_key query parameter or HS256 bearer token)
  - Token exchange: POST /api/v1/auth/token mints short-lived bearer tokens
    for browser WebSocket clients
  - Config hot reload: HotReloadManager watches the file and fires callbacks
  - Metrics server: /metrics (Prometheus) on its own port
  - Graceful shutdown: signal → stop hot reload → close HTTP → close metrics →
    flush telemetry → close store
  - Build injection: Version, BuildTime, GitCommit set via ldflags
*/
package main
