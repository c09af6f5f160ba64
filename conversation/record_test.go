package conversation

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/councilflow/council"
	"github.com/BaSui01/councilflow/types"
)

// sampleResult builds a completed round with every ephemeral and durable
// field populated.
func sampleResult(t *testing.T) *council.Result {
	t.Helper()

	answers := []council.StageOneResult{
		{Model: "openai/gpt-5.2", Answer: "first answer"},
		{Model: "google/gemini-2.0-flash", Answer: "second answer"},
	}
	mapping, err := council.AssignLabels(answers)
	require.NoError(t, err)

	evals := []council.Evaluation{
		{Model: "openai/gpt-5.2", RawText: "review", Ranking: []council.Label{"B", "A"}},
		{Model: "google/gemini-2.0-flash", RawText: "review", Ranking: []council.Label{"B", "A"}},
	}

	return &council.Result{
		Question:    "What is a monad?",
		Answers:     answers,
		Mapping:     mapping,
		Evaluations: evals,
		Aggregate:   council.Aggregate(mapping, evals),
		Synthesis:   &council.Synthesis{Model: "anthropic/claude-sonnet-4.5", Answer: "final"},
		Timings:     council.Timings{Stage1: time.Second, Total: 3 * time.Second},
	}
}

func TestNewRound_ProjectsDurableFields(t *testing.T) {
	res := sampleResult(t)
	round := NewRound(res)

	assert.NotEmpty(t, round.ID)
	assert.False(t, round.CreatedAt.IsZero())
	assert.Equal(t, res.Question, round.Question)
	assert.Equal(t, res.Answers, round.Answers)
	assert.Equal(t, res.Evaluations, round.Evaluations)
	require.NotNil(t, round.Synthesis)
	assert.Equal(t, "final", round.Synthesis.Answer)
	assert.Equal(t, res.Timings, round.Timings)
	assert.Equal(t, "final", round.FinalAnswer())
}

func TestNewRound_DropsEphemeralState(t *testing.T) {
	round := NewRound(sampleResult(t))

	data, err := json.Marshal(round)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "label_mapping")
	assert.NotContains(t, string(data), "aggregate")
}

func TestNewRound_CopiesSlices(t *testing.T) {
	res := sampleResult(t)
	round := NewRound(res)

	res.Answers[0].Answer = "mutated"
	res.Evaluations[0].RawText = "mutated"
	res.Synthesis.Answer = "mutated"

	assert.Equal(t, "first answer", round.Answers[0].Answer)
	assert.Equal(t, "review", round.Evaluations[0].RawText)
	assert.Equal(t, "final", round.Synthesis.Answer)
}

func TestRound_LabelMappingReproducesOriginal(t *testing.T) {
	res := sampleResult(t)
	round := NewRound(res)

	rebuilt, err := round.LabelMapping()
	require.NoError(t, err)

	for _, lb := range []council.Label{"A", "B"} {
		wantModel, ok := res.Mapping.ModelFor(lb)
		require.True(t, ok)
		gotModel, ok := rebuilt.ModelFor(lb)
		require.True(t, ok)
		assert.Equal(t, wantModel, gotModel)
	}
}

func TestRound_AggregateRankingMatchesLive(t *testing.T) {
	res := sampleResult(t)
	round := NewRound(res)

	rebuilt, err := round.AggregateRanking()
	require.NoError(t, err)
	assert.Equal(t, res.Aggregate, rebuilt)
}

func TestProperty_StoredRoundRemapIsStable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, council.MaxCouncilSize).Draw(rt, "n")
		answers := make([]council.StageOneResult, n)
		for i := range answers {
			answers[i] = council.StageOneResult{
				Model:  fmt.Sprintf("provider/model-%d", i),
				Answer: fmt.Sprintf("answer %d", i),
			}
		}
		live, err := council.AssignLabels(answers)
		require.NoError(t, err)

		round := NewRound(&council.Result{Question: "q", Answers: answers})
		rebuilt, err := round.LabelMapping()
		require.NoError(t, err)

		for _, r := range answers {
			wantLabel, ok := live.LabelFor(r.Model)
			require.True(t, ok)
			gotLabel, ok := rebuilt.LabelFor(r.Model)
			require.True(t, ok)
			assert.Equal(t, wantLabel, gotLabel)
		}
	})
}

func TestConversation_History(t *testing.T) {
	synth := &council.Synthesis{Model: "m", Answer: "final one"}
	conv := &Conversation{
		Rounds: []Round{
			{Question: "first question", Synthesis: synth},
			{Question: "failed question"}, // never reached synthesis
			{Question: "third question", Synthesis: &council.Synthesis{Model: "m", Answer: "final three"}},
		},
	}

	history := conv.History()
	require.Len(t, history, 5)
	assert.Equal(t, types.RoleUser, history[0].Role)
	assert.Equal(t, "first question", history[0].Content)
	assert.Equal(t, types.RoleAssistant, history[1].Role)
	assert.Equal(t, "final one", history[1].Content)
	assert.Equal(t, types.RoleUser, history[2].Role)
	assert.Equal(t, "failed question", history[2].Content)
	assert.Equal(t, types.RoleUser, history[3].Role)
	assert.Equal(t, types.RoleAssistant, history[4].Role)
	assert.Equal(t, "final three", history[4].Content)
}

func TestConversation_HistoryEmpty(t *testing.T) {
	conv := &Conversation{}
	assert.Empty(t, conv.History())
}

func TestConversation_Clone(t *testing.T) {
	conv := &Conversation{
		ID:     "c-1",
		Title:  "original",
		Rounds: []Round{{ID: "r-1", Question: "q"}},
	}

	clone := conv.Clone()
	clone.Title = "changed"
	clone.Rounds = append(clone.Rounds, Round{ID: "r-2"})

	assert.Equal(t, "original", conv.Title)
	assert.Len(t, conv.Rounds, 1)

	var nilConv *Conversation
	assert.Nil(t, nilConv.Clone())
}

func TestConversation_Summarize(t *testing.T) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        "c-1",
		Title:     "greetings",
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now,
		Rounds:    []Round{{}, {}},
	}

	sum := conv.Summarize()
	assert.Equal(t, "c-1", sum.ID)
	assert.Equal(t, "greetings", sum.Title)
	assert.Equal(t, 2, sum.RoundCount)
	assert.Equal(t, now, sum.UpdatedAt)
}
