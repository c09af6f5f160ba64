// Copyright (c) CouncilFlow Authors.
// Licensed under the MIT License.

/*
Package testutil provides shared helpers for tests across the project.

# Overview

testutil centralizes the small pieces every package's tests need so they are
not reimplemented in each _test.go file: contexts wired to t.Cleanup, polling
waits, stream draining, and JSON round-trip helpers.

# Capabilities

  - Context helpers: TestContext / TestContextWithTimeout / CancelledContext
  - Polling: WaitFor / WaitForChannel
  - Streams: CollectStreamChunks / CollectStreamContent / SendChunksToChannel
  - Data: MustJSON / MustParseJSON

# Subpackages

  - testutil/mocks: scripted Provider (llm.Provider) and Querier (llm.Querier)
    doubles with per-model responses, error injection, delays, and call
    recording
  - testutil/fixtures: canned deliberation data, including answers and review
    texts that end in parseable ranking blocks

# Usage

	ctx := testutil.TestContext(t)
	q := mocks.NewQuerier().Answer("openai/gpt-5.2", "the answer")
	text, err := q.Query(ctx, "openai/gpt-5.2", msgs)
*/
package testutil
