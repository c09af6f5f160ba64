package council

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func stageOneResults(models ...string) []StageOneResult {
	out := make([]StageOneResult, 0, len(models))
	for _, m := range models {
		out = append(out, StageOneResult{Model: m, Answer: "answer from " + m})
	}
	return out
}

func TestAssignLabels_CanonicalOrder(t *testing.T) {
	t.Parallel()

	results := stageOneResults("openai/gpt-5.2", "google/gemini-2.0-flash", "anthropic/claude-sonnet-4-5")
	mapping, err := AssignLabels(results)
	require.NoError(t, err)

	assert.Equal(t, []Label{"A", "B", "C"}, mapping.Labels())
	assert.Equal(t, []string{"openai/gpt-5.2", "google/gemini-2.0-flash", "anthropic/claude-sonnet-4-5"}, mapping.Models())

	lb, ok := mapping.LabelFor("google/gemini-2.0-flash")
	require.True(t, ok)
	assert.Equal(t, Label("B"), lb)

	model, ok := mapping.ModelFor("C")
	require.True(t, ok)
	assert.Equal(t, "anthropic/claude-sonnet-4-5", model)

	_, ok = mapping.ModelFor("D")
	assert.False(t, ok)
}

func TestAssignLabels_Empty(t *testing.T) {
	t.Parallel()

	mapping, err := AssignLabels(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, mapping.Len())
	assert.Empty(t, mapping.Labels())
}

func TestAssignLabels_Exhaustion(t *testing.T) {
	t.Parallel()

	results := make([]StageOneResult, MaxCouncilSize+1)
	for i := range results {
		results[i] = StageOneResult{Model: fmt.Sprintf("provider/model-%d", i), Answer: "a"}
	}

	mapping, err := AssignLabels(results)
	require.ErrorIs(t, err, ErrLabelsExhausted)
	assert.Nil(t, mapping)
}

func TestAssignLabels_FullAlphabet(t *testing.T) {
	t.Parallel()

	results := make([]StageOneResult, MaxCouncilSize)
	for i := range results {
		results[i] = StageOneResult{Model: fmt.Sprintf("provider/model-%d", i), Answer: "a"}
	}

	mapping, err := AssignLabels(results)
	require.NoError(t, err)
	assert.Equal(t, MaxCouncilSize, mapping.Len())

	last, ok := mapping.ModelFor("Z")
	require.True(t, ok)
	assert.Equal(t, "provider/model-25", last)
}

func TestAssignLabels_DuplicateModel(t *testing.T) {
	t.Parallel()

	results := stageOneResults("openai/gpt-5.2", "openai/gpt-5.2")
	mapping, err := AssignLabels(results)
	require.Error(t, err)
	assert.Nil(t, mapping)
}

func TestAssignLabels_Deterministic(t *testing.T) {
	t.Parallel()

	results := stageOneResults("x-ai/grok-4", "openai/gpt-5.2", "groq/llama-3.3-70b-versatile")

	first, err := AssignLabels(results)
	require.NoError(t, err)
	second, err := AssignLabels(results)
	require.NoError(t, err)

	assert.Equal(t, first.Labels(), second.Labels())
	assert.Equal(t, first.Models(), second.Models())
}

func TestLabelMapping_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	mapping, err := AssignLabels(stageOneResults("openai/gpt-5.2", "google/gemini-2.0-flash"))
	require.NoError(t, err)

	data, err := json.Marshal(mapping)
	require.NoError(t, err)
	assert.JSONEq(t, `{"A":"openai/gpt-5.2","B":"google/gemini-2.0-flash"}`, string(data))

	var decoded LabelMapping
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, mapping.Labels(), decoded.Labels())
	assert.Equal(t, mapping.Models(), decoded.Models())
}

func TestLabelMapping_UnmarshalRejectsDuplicateModel(t *testing.T) {
	t.Parallel()

	var decoded LabelMapping
	err := json.Unmarshal([]byte(`{"A":"openai/gpt-5.2","B":"openai/gpt-5.2"}`), &decoded)
	require.Error(t, err)
}

func TestProperty_AssignLabels_Bijection(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, MaxCouncilSize).Draw(rt, "n")
		results := make([]StageOneResult, n)
		for i := range results {
			results[i] = StageOneResult{Model: fmt.Sprintf("provider/model-%d", i), Answer: "a"}
		}

		mapping, err := AssignLabels(results)
		require.NoError(t, err)
		require.Equal(t, n, mapping.Len())

		for i, r := range results {
			lb, ok := mapping.LabelFor(r.Model)
			require.True(t, ok, "model %s has no label", r.Model)
			assert.Equal(t, Label(labelAlphabet[i:i+1]), lb)

			back, ok := mapping.ModelFor(lb)
			require.True(t, ok)
			assert.Equal(t, r.Model, back, "label %s does not map back", lb)
		}

		seen := make(map[Label]bool, n)
		for _, lb := range mapping.Labels() {
			assert.False(t, seen[lb], "label %s assigned twice", lb)
			seen[lb] = true
		}
	})
}
