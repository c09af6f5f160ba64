// Copyright (c) CouncilFlow Authors.
// Licensed under the MIT License.

/*
Package server manages the HTTP/HTTPS server lifecycle: non-blocking start,
graceful shutdown and signal handling.

# Overview

Manager wraps net/http.Server and owns listening, serving, shutdown and
error propagation. It serves plain HTTP or TLS, handles SIGINT/SIGTERM, and
drains in-flight requests on shutdown.

# Core types

  - Manager: holds the http.Server, the net.Listener and an asynchronous
    error channel; exposes Start/StartTLS/Shutdown/WaitForShutdown.
  - Config: listen address, read/write/idle timeouts, header size cap and
    the graceful shutdown timeout.

# Capabilities

  - Non-blocking start: Start/StartTLS serve from a background goroutine.
  - Graceful shutdown: Shutdown drains requests within the configured
    timeout.
  - Signal handling: WaitForShutdown blocks on SIGINT/SIGTERM and then
    shuts down.
  - Error propagation: Errors() exposes serve failures to the caller.
  - State queries: IsRunning and Addr report the live server state; with
    ":0" Addr returns the actually bound port.
*/
package server
