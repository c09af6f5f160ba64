package council

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/types"
)

// queryOutcome is one model's fan-out result, indexed by input position.
type queryOutcome struct {
	text string
	err  error
}

// fanOut sends the same messages to every model in parallel and collects
// per-model outcomes in input order. Goroutines return nil so one failure
// never cancels siblings; the caller decides what a failure means. Each call
// runs under its own timeout when one is given.
func fanOut(ctx context.Context, q llm.Querier, models []string, msgs []types.Message, timeout time.Duration) ([]queryOutcome, error) {
	outcomes := make([]queryOutcome, len(models))
	g := new(errgroup.Group)
	for i, model := range models {
		i, model := i, model
		g.Go(func() error {
			cctx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			text, err := q.Query(cctx, model, msgs)
			outcomes[i] = queryOutcome{text: text, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// CollectAnswers runs Stage 1: the question (appended to any prior turns)
// goes to every council model in parallel. Results preserve the council
// order regardless of completion order; failures are recorded per model.
// The returned error is non-nil only when the context ended or every call
// failed.
func CollectAnswers(ctx context.Context, q llm.Querier, models []string, question string, history []types.Message, timeout time.Duration) ([]StageOneResult, []ModelFailure, error) {
	if len(models) == 0 {
		return nil, nil, ErrNoModels
	}

	msgs := make([]types.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, types.NewUserMessage(question))

	outcomes, err := fanOut(ctx, q, models, msgs, timeout)
	if err != nil {
		return nil, nil, err
	}

	results := make([]StageOneResult, 0, len(models))
	var failures []ModelFailure
	for i, out := range outcomes {
		if out.err != nil {
			failures = append(failures, newModelFailure(models[i], StateCollectingStage1, out.err))
			continue
		}
		results = append(results, StageOneResult{Model: models[i], Answer: out.text})
	}

	if len(results) == 0 {
		return nil, failures, fmt.Errorf("%w: %d models", ErrAllModelsFailed, len(models))
	}
	return results, failures, nil
}
