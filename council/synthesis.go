package council

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/types"
)

// Synthesize runs Stage 3: one call to the chairman model over the
// de-anonymized answers, reviews and aggregate ranking. A failed chairman
// call is terminal for the round; there is no fallback chairman at this
// point. The returned error wraps both ErrChairmanFailed and the underlying
// cause.
func Synthesize(ctx context.Context, q llm.Querier, chairman, question string, results []StageOneResult, evals []Evaluation, aggregate []AggregateEntry, mapping *LabelMapping, timeout time.Duration) (*Synthesis, error) {
	prompt, err := BuildSynthesisPrompt(question, results, evals, aggregate, mapping)
	if err != nil {
		return nil, err
	}

	cctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	answer, err := q.Query(cctx, chairman, []types.Message{types.NewUserMessage(prompt)})
	if err != nil {
		return nil, fmt.Errorf("%w: model %s: %w", ErrChairmanFailed, chairman, err)
	}
	return &Synthesis{Model: chairman, Answer: answer}, nil
}
