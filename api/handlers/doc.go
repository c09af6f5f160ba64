// Copyright (c) CouncilFlow Authors.
// Licensed under the MIT License.

/*
Package handlers implements the request handlers of the CouncilFlow HTTP API.

# Overview

The handlers package contains the request handling logic for every HTTP
endpoint: council deliberation, conversation management, health checks, and
the shared response and error envelope. All handlers follow the standard
net/http interface and carry Swagger annotations for API documentation.

# Core types

  - CouncilHandler: deliberation rounds, sync, SSE streaming and WebSocket
  - ConversationHandler: conversation CRUD over the persistence store
  - HealthHandler: service health checks (/health, /healthz, /ready)
  - Response: the uniform JSON envelope (success + data + error + timestamp)
  - ErrorInfo: structured error with code, message and retryable flag
  - ResponseWriter: wraps http.ResponseWriter to capture the status code
  - HealthCheck: pluggable readiness probe (store, providers)

# Capabilities

  - Uniform responses: WriteSuccess / WriteError / WriteJSON helpers
  - Request validation: DecodeJSONBody (1 MB cap, strict mode) and
    ValidateContentType
  - Automatic ErrorCode to HTTP status mapping (4xx/5xx)
  - SSE stage streaming: CouncilHandler.HandleAskStream emits
    text/event-stream frames at each stage boundary
  - WebSocket rounds: CouncilHandler.HandleWS runs repeated rounds over one
    connection
  - Extensible health checks: RegisterCheck adds custom HealthCheck
    implementations
*/
package handlers
