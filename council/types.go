package council

import (
	"encoding/json"
	"fmt"
	"time"
)

// StageOneResult is one model's successful answer to the round's question.
// The slice order of results is the canonical council order from config,
// never completion order.
type StageOneResult struct {
	Model  string `json:"model"`
	Answer string `json:"answer"`
}

// Label identifies one anonymized Stage-1 answer within a single round.
// Labels are single uppercase letters assigned in canonical order; a
// label's binding to a model holds for one round only.
type Label string

// Evaluation is one evaluator's Stage-2 output: the raw review text plus the
// ranking parsed out of it. A nil Ranking means the evaluator contributed no
// parseable ranking, which is an expected outcome rather than an error.
type Evaluation struct {
	Model   string  `json:"model"`
	RawText string  `json:"raw_text"`
	Ranking []Label `json:"ranking,omitempty"`
}

// AggregateEntry is one model's standing in the aggregated peer ranking.
// VoteCount == 0 marks a model no evaluator ranked; AveragePosition is then
// the zero sentinel (real positions are 1-based).
type AggregateEntry struct {
	Model           string  `json:"model"`
	AveragePosition float64 `json:"average_position"`
	VoteCount       int     `json:"vote_count"`
}

// Synthesis is the chairman's final answer.
type Synthesis struct {
	Model  string `json:"model"`
	Answer string `json:"answer"`
}

// Timings records wall-clock duration per stage.
type Timings struct {
	Stage1 time.Duration `json:"stage1"`
	Stage2 time.Duration `json:"stage2"`
	Stage3 time.Duration `json:"stage3"`
	Total  time.Duration `json:"total"`
}

// Result is everything a round produced. On a failed round it still carries
// all data produced before the failing stage, so callers can display
// whatever succeeded.
//
// Mapping and Aggregate are ephemeral round metadata: they appear in API
// responses but are never persisted, and both are regenerable from the
// stored Stage-1 order.
type Result struct {
	Question    string           `json:"question"`
	Answers     []StageOneResult `json:"answers"`
	Mapping     *LabelMapping    `json:"label_mapping,omitempty"`
	Evaluations []Evaluation     `json:"evaluations,omitempty"`
	Aggregate   []AggregateEntry `json:"aggregate,omitempty"`
	Synthesis   *Synthesis       `json:"synthesis,omitempty"`
	Failures    []ModelFailure   `json:"failures,omitempty"`
	Timings     Timings          `json:"timings"`
}

// FinalAnswer returns the chairman's answer, or "" when the round did not
// reach synthesis.
func (r *Result) FinalAnswer() string {
	if r == nil || r.Synthesis == nil {
		return ""
	}
	return r.Synthesis.Answer
}

// State names the orchestrator's position in a round.
type State string

const (
	StateCollectingStage1 State = "collecting_stage1"
	StateAnonymizing      State = "anonymizing"
	StateCollectingStage2 State = "collecting_stage2"
	StateAggregating      State = "aggregating"
	StateSynthesizing     State = "synthesizing"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// MarshalJSON emits the mapping as a label -> model object, the transient
// form API responses carry.
func (m *LabelMapping) MarshalJSON() ([]byte, error) {
	out := make(map[Label]string, len(m.labels))
	for _, lb := range m.labels {
		out[lb] = m.labelToModel[lb]
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds a mapping from the label -> model object form.
func (m *LabelMapping) UnmarshalJSON(data []byte) error {
	var raw map[Label]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rebuilt, err := newLabelMapping(raw)
	if err != nil {
		return fmt.Errorf("label mapping: %w", err)
	}
	*m = *rebuilt
	return nil
}
