package council

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/councilflow/llm"
)

func TestCollectEvaluations_IdenticalAnonymizedPrompt(t *testing.T) {
	t.Parallel()

	results := []StageOneResult{
		{Model: "openai/gpt-5.2", Answer: "Use a heap."},
		{Model: "anthropic/claude-sonnet-4-5", Answer: "Use a balanced tree."},
	}
	mapping, err := AssignLabels(results)
	require.NoError(t, err)

	q := newStubQuerier().
		script("openai/gpt-5.2", reply("FINAL RANKING:\n1. Response B\n2. Response A")).
		script("anthropic/claude-sonnet-4-5", reply("FINAL RANKING:\n1. Response A\n2. Response B"))

	_, _, err = CollectEvaluations(context.Background(), q, mapping, results, "Which data structure?", 0)
	require.NoError(t, err)

	first := q.prompt("openai/gpt-5.2", 0)
	second := q.prompt("anthropic/claude-sonnet-4-5", 0)
	assert.Equal(t, first, second, "every evaluator must see the same prompt")

	// Answers appear under labels only; each evaluator reviews its own
	// answer without being told which one it is.
	assert.Contains(t, first, "Which data structure?")
	assert.Contains(t, first, "Response A:")
	assert.Contains(t, first, "Response B:")
	assert.Contains(t, first, "Use a heap.")
	assert.Contains(t, first, "Use a balanced tree.")
	assert.Contains(t, first, "FINAL RANKING:")
	assert.NotContains(t, first, "openai/gpt-5.2")
	assert.NotContains(t, first, "claude")
}

func TestCollectEvaluations_ParsesRankings(t *testing.T) {
	t.Parallel()

	results := stageOneResults("m-1", "m-2")
	mapping, err := AssignLabels(results)
	require.NoError(t, err)

	q := newStubQuerier().
		script("m-1", reply("B is tighter.\n\nFINAL RANKING:\n1. Response B\n2. Response A")).
		script("m-2", reply("They are all great."))

	evals, failures, err := CollectEvaluations(context.Background(), q, mapping, results, "q", 0)
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, evals, 2)

	assert.Equal(t, "m-1", evals[0].Model)
	assert.Equal(t, []Label{"B", "A"}, evals[0].Ranking)

	// An unparseable review is kept verbatim with a nil ranking.
	assert.Equal(t, "m-2", evals[1].Model)
	assert.Equal(t, "They are all great.", evals[1].RawText)
	assert.Nil(t, evals[1].Ranking)
}

func TestCollectEvaluations_FailuresAreNonFatal(t *testing.T) {
	t.Parallel()

	results := stageOneResults("m-1", "m-2")
	mapping, err := AssignLabels(results)
	require.NoError(t, err)

	q := newStubQuerier().
		script("m-1", fail(&llm.Error{Code: llm.ErrUpstreamTimeout, Message: "timeout"})).
		script("m-2", reply("FINAL RANKING:\n1. Response A\n2. Response B"))

	evals, failures, err := CollectEvaluations(context.Background(), q, mapping, results, "q", 0)
	require.NoError(t, err)

	require.Len(t, evals, 1)
	assert.Equal(t, "m-2", evals[0].Model)

	require.Len(t, failures, 1)
	assert.Equal(t, "m-1", failures[0].Model)
	assert.Equal(t, StateCollectingStage2, failures[0].Stage)
	assert.Equal(t, FailureTimeout, failures[0].Kind)
}

func TestCollectEvaluations_AllFailedStillNonFatal(t *testing.T) {
	t.Parallel()

	results := stageOneResults("m-1", "m-2")
	mapping, err := AssignLabels(results)
	require.NoError(t, err)

	q := newStubQuerier().
		script("m-1", fail(&llm.Error{Code: llm.ErrUpstreamError, Message: "boom"})).
		script("m-2", fail(&llm.Error{Code: llm.ErrUpstreamError, Message: "boom"}))

	evals, failures, err := CollectEvaluations(context.Background(), q, mapping, results, "q", 0)
	require.NoError(t, err)
	assert.Empty(t, evals)
	assert.Len(t, failures, 2)
}
