package council

import "context"

// EventKind names the stage-boundary events a round emits.
type EventKind string

const (
	EventStage1Complete EventKind = "stage1_complete"
	EventStage2Complete EventKind = "stage2_complete"
	EventStage3Complete EventKind = "stage3_complete"
	EventRoundFailed    EventKind = "round_failed"
)

// FailReason names why a round terminated early.
type FailReason string

const (
	ReasonAllStage1Failed FailReason = "AllStage1Failed"
	ReasonChairmanFailed  FailReason = "ChairmanFailed"
	ReasonLabelExhaustion FailReason = "LabelExhaustion"
)

// Event carries the payload available at one stage boundary. Events 1-3 are
// strictly ordered and occur at most once per round; after round_failed no
// further events follow.
type Event struct {
	Kind        EventKind        `json:"kind"`
	Answers     []StageOneResult `json:"answers,omitempty"`
	Evaluations []Evaluation     `json:"evaluations,omitempty"`
	Mapping     *LabelMapping    `json:"label_mapping,omitempty"`
	Aggregate   []AggregateEntry `json:"aggregate,omitempty"`
	Synthesis   *Synthesis       `json:"synthesis,omitempty"`
	Stage       State            `json:"stage,omitempty"`
	Reason      FailReason       `json:"reason,omitempty"`
}

// EventSink receives round events. Implementations must be fast or hand off
// to their own goroutine; the engine calls them inline between stages.
type EventSink interface {
	OnEvent(ctx context.Context, ev Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, ev Event)

// OnEvent calls f.
func (f EventSinkFunc) OnEvent(ctx context.Context, ev Event) { f(ctx, ev) }

type ctxSinkKey struct{}

// ContextWithSink routes the events of rounds run under ctx to sink, in
// addition to any engine-level sink. Streaming handlers use it to follow
// their own request's round without seeing concurrent rounds.
func ContextWithSink(ctx context.Context, sink EventSink) context.Context {
	return context.WithValue(ctx, ctxSinkKey{}, sink)
}

func sinkFromContext(ctx context.Context) (EventSink, bool) {
	s, ok := ctx.Value(ctxSinkKey{}).(EventSink)
	return s, ok && s != nil
}
