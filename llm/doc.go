// Copyright (c) CouncilFlow Authors.
// Licensed under the MIT License.

/*
Package llm provides the unified model access layer: the Provider
abstraction, provider registry, model identifier parsing and the Gateway
the deliberation engine talks to.

The goal is to hide per-vendor differences in endpoints, authentication,
error semantics and streaming protocols behind one request/response model,
so the council core can treat every model as a uniform text-in/text-out
capability.

# Provider abstraction

The core interface is [Provider]: Completion, Stream and HealthCheck plus a
Name. Concrete implementations live under llm/providers and are hand-rolled
over net/http; no vendor SDKs.

# Model identifiers

Models are addressed as "provider/model" strings (for example
"openai/gpt-4o" or "anthropic/claude-sonnet-4-5"). [ParseModelRef] splits
them once, at configuration time; nothing re-parses per call.

# Registry and Gateway

[ProviderRegistry] is a concurrency-safe pool of provider instances keyed
by provider name, with lazy construction via GetOrCreate so unused
providers cost nothing. [Gateway] sits on top and implements [Querier], the
minimal surface the council engine consumes: per-call timeouts, optional
retry for retryable upstream errors, and structured [Error] values for
everything that goes wrong.
*/
package llm
