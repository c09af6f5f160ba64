package council

import (
	"context"
	"time"

	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/types"
)

// CollectEvaluations runs Stage 2: the anonymized peer-review prompt goes to
// every model that produced a Stage-1 answer, with the same fan-out
// mechanics as Stage 1. Every successful response is kept as an Evaluation
// with its raw text; the ranking parser fills Ranking, and an unparseable
// review simply carries a nil one. Zero successful evaluations is not fatal;
// the round proceeds with an empty aggregate.
func CollectEvaluations(ctx context.Context, q llm.Querier, mapping *LabelMapping, results []StageOneResult, question string, timeout time.Duration) ([]Evaluation, []ModelFailure, error) {
	prompt, err := BuildEvaluationPrompt(question, mapping, results)
	if err != nil {
		return nil, nil, err
	}
	msgs := []types.Message{types.NewUserMessage(prompt)}

	evaluators := make([]string, 0, len(results))
	for _, r := range results {
		evaluators = append(evaluators, r.Model)
	}

	outcomes, err := fanOut(ctx, q, evaluators, msgs, timeout)
	if err != nil {
		return nil, nil, err
	}

	valid := mapping.Labels()
	evals := make([]Evaluation, 0, len(evaluators))
	var failures []ModelFailure
	for i, out := range outcomes {
		if out.err != nil {
			failures = append(failures, newModelFailure(evaluators[i], StateCollectingStage2, out.err))
			continue
		}
		evals = append(evals, Evaluation{
			Model:   evaluators[i],
			RawText: out.text,
			Ranking: ParseRanking(out.text, valid),
		})
	}
	return evals, failures, nil
}
