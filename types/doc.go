// Copyright (c) CouncilFlow Authors.
// Licensed under the MIT License.

/*
Package types provides the shared type definitions for councilflow.

types is the lowest-level common package. It depends on no other
councilflow package and gives llm, council, conversation and api a single
type contract to build on, avoiding circular imports.

# Core types

  - Message / Role      — conversation message (system / user / assistant)
  - Error / ErrorCode   — structured error with HTTP status, Retryable and
    Provider markers
  - ModelID helpers     — "provider/model" identifier parsing lives in llm;
    types keeps the identifier itself an opaque string

# Error tooling

  - NewError with builder methods (WithCause, WithHTTPStatus, WithRetryable,
    WithProvider)
  - AsError / IsErrorCode / IsRetryable / GetErrorCode for inspection
*/
package types
