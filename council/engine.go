package council

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/llm/tokenizer"
	"github.com/BaSui01/councilflow/types"
)

// DefaultPerCallTimeout bounds a single model call when no timeout is
// configured.
const DefaultPerCallTimeout = 120 * time.Second

// promptOverheadTokens approximates the template scaffolding around the
// variable prompt parts when estimating prompt size.
const promptOverheadTokens = 256

// Engine drives deliberation rounds. It is stateless between rounds and safe
// for concurrent use; each round's mutable state lives on the Run stack.
// Concurrent rounds for the same conversation must be serialized by the
// caller.
type Engine struct {
	querier  llm.Querier
	members  []string
	chairman string
	timeout  time.Duration
	sink     EventSink
	logger   *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithEventSink installs a sink for stage-boundary events. A nil sink drops
// them.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithPerCallTimeout sets the timeout applied to each individual model call.
func WithPerCallTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine over the given querier, council members and
// chairman model.
func NewEngine(querier llm.Querier, members []string, chairman string, opts ...Option) (*Engine, error) {
	if querier == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if len(members) == 0 {
		return nil, ErrNoModels
	}
	if len(members) > MaxCouncilSize {
		return nil, fmt.Errorf("%w: %d members, %d labels", ErrLabelsExhausted, len(members), MaxCouncilSize)
	}
	if chairman == "" {
		return nil, ErrNoChairman
	}

	e := &Engine{
		querier:  querier,
		members:  append([]string(nil), members...),
		chairman: chairman,
		timeout:  DefaultPerCallTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "council_engine"))
	return e, nil
}

// Members returns the configured council model identifiers.
func (e *Engine) Members() []string {
	return append([]string(nil), e.members...)
}

// Chairman returns the configured chairman model identifier.
func (e *Engine) Chairman() string {
	return e.chairman
}

// Run executes one deliberation round for the question.
func (e *Engine) Run(ctx context.Context, question string) (*Result, error) {
	return e.RunWithHistory(ctx, question, nil)
}

// RunWithHistory executes one round with prior conversation turns prepended
// to the Stage-1 prompt. The returned Result always carries everything the
// round produced, even when err is non-nil.
func (e *Engine) RunWithHistory(ctx context.Context, question string, history []types.Message) (*Result, error) {
	started := time.Now()
	res := &Result{Question: question}

	e.logger.Info("round started",
		zap.Int("council_size", len(e.members)),
		zap.String("chairman", e.chairman),
	)

	// Stage 1: collect answers.
	s1 := time.Now()
	answers, failures, err := CollectAnswers(ctx, e.querier, e.members, question, history, e.timeout)
	res.Answers = answers
	res.Failures = failures
	res.Timings.Stage1 = time.Since(s1)
	if err != nil {
		if errors.Is(err, ErrAllModelsFailed) {
			e.failRound(ctx, res, StateCollectingStage1, ReasonAllStage1Failed, started)
		} else {
			res.Timings.Total = time.Since(started)
		}
		return res, err
	}
	e.logger.Debug("stage1 complete",
		zap.Int("answers", len(answers)),
		zap.Int("failures", len(failures)),
		zap.Duration("elapsed", res.Timings.Stage1),
	)
	e.emit(ctx, Event{Kind: EventStage1Complete, Answers: answers})

	// Anonymize.
	mapping, err := AssignLabels(answers)
	if err != nil {
		e.failRound(ctx, res, StateAnonymizing, ReasonLabelExhaustion, started)
		return res, err
	}
	res.Mapping = mapping

	if err := ctx.Err(); err != nil {
		res.Timings.Total = time.Since(started)
		return res, err
	}

	// Stage 2: anonymized peer review.
	budgetParts := make([]string, 0, len(answers)+1)
	budgetParts = append(budgetParts, question)
	for _, a := range answers {
		budgetParts = append(budgetParts, a.Answer)
	}
	for _, a := range answers {
		e.promptBudgetCheck(StateCollectingStage2, a.Model, budgetParts)
	}

	s2 := time.Now()
	evals, evalFailures, err := CollectEvaluations(ctx, e.querier, mapping, answers, question, e.timeout)
	if err != nil {
		res.Timings.Stage2 = time.Since(s2)
		res.Timings.Total = time.Since(started)
		return res, err
	}
	res.Evaluations = evals
	res.Failures = append(res.Failures, evalFailures...)
	res.Timings.Stage2 = time.Since(s2)
	e.logger.Debug("stage2 complete",
		zap.Int("evaluations", len(evals)),
		zap.Int("failures", len(evalFailures)),
		zap.Duration("elapsed", res.Timings.Stage2),
	)

	// Aggregate.
	res.Aggregate = Aggregate(mapping, evals)
	e.emit(ctx, Event{
		Kind:        EventStage2Complete,
		Evaluations: evals,
		Mapping:     mapping,
		Aggregate:   res.Aggregate,
	})

	if err := ctx.Err(); err != nil {
		res.Timings.Total = time.Since(started)
		return res, err
	}

	// Stage 3: chairman synthesis.
	for _, ev := range evals {
		budgetParts = append(budgetParts, ev.RawText)
	}
	e.promptBudgetCheck(StateSynthesizing, e.chairman, budgetParts)

	s3 := time.Now()
	syn, err := Synthesize(ctx, e.querier, e.chairman, question, answers, evals, res.Aggregate, mapping, e.timeout)
	res.Timings.Stage3 = time.Since(s3)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			res.Timings.Total = time.Since(started)
			return res, cerr
		}
		res.Failures = append(res.Failures, newModelFailure(e.chairman, StateSynthesizing, err))
		e.failRound(ctx, res, StateSynthesizing, ReasonChairmanFailed, started)
		return res, err
	}
	res.Synthesis = syn
	e.emit(ctx, Event{Kind: EventStage3Complete, Synthesis: syn})

	res.Timings.Total = time.Since(started)
	e.logger.Info("round complete",
		zap.Duration("total", res.Timings.Total),
		zap.Int("answers", len(res.Answers)),
		zap.Int("evaluations", len(res.Evaluations)),
	)
	return res, nil
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	if e.sink != nil {
		e.sink.OnEvent(ctx, ev)
	}
	if s, ok := sinkFromContext(ctx); ok {
		s.OnEvent(ctx, ev)
	}
}

func (e *Engine) failRound(ctx context.Context, res *Result, stage State, reason FailReason, started time.Time) {
	res.Timings.Total = time.Since(started)
	e.logger.Warn("round failed",
		zap.String("stage", string(stage)),
		zap.String("reason", string(reason)),
	)
	e.emit(ctx, Event{Kind: EventRoundFailed, Stage: stage, Reason: reason})
}

// promptBudgetCheck estimates whether the upcoming prompt fits the model's
// context window and logs a warning when it likely does not. Advisory only;
// the call is never blocked.
func (e *Engine) promptBudgetCheck(stage State, model string, parts []string) {
	name := model
	if ref, err := llm.ParseModelRef(model); err == nil {
		name = ref.Model
	}
	tk := tokenizer.GetTokenizerOrEstimator(name)

	total := promptOverheadTokens
	for _, p := range parts {
		n, err := tk.CountTokens(p)
		if err != nil {
			return
		}
		total += n
	}
	if limit := tk.MaxTokens(); total > limit {
		e.logger.Warn("prompt may exceed model context",
			zap.String("stage", string(stage)),
			zap.String("model", model),
			zap.Int("estimated_tokens", total),
			zap.Int("context_limit", limit),
		)
	}
}
