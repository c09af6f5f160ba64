// Copyright (c) CouncilFlow Authors.
// Licensed under the MIT License.

// Package providers holds the shared plumbing for concrete [llm.Provider]
// implementations: provider configuration structs, the OpenAI-compatible wire
// types, message conversion, and the HTTP status to [llm.Error] mapping that
// every adapter funnels upstream failures through.
//
// Vendor adapters live in subpackages. openaicompat implements the
// OpenAI-compatible chat protocol and is embedded by the thin openai and grok
// wrappers; anthropic and gemini speak their own wire formats but reuse the
// helpers here.
package providers
