package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/councilflow/council"
	"github.com/BaSui01/councilflow/types"
)

// Round is the durable record of one deliberation: everything worth keeping
// from a council.Result. The label mapping and the aggregate ranking are
// deliberately absent; labels are a pure function of the stored Stage-1
// order, so both can be rebuilt at any time.
//
// A Round is immutable once appended to a conversation.
type Round struct {
	ID          string                   `json:"id"`
	Question    string                   `json:"question"`
	Answers     []council.StageOneResult `json:"answers"`
	Evaluations []council.Evaluation     `json:"evaluations,omitempty"`
	Synthesis   *council.Synthesis       `json:"synthesis,omitempty"`
	Failures    []council.ModelFailure   `json:"failures,omitempty"`
	Timings     council.Timings          `json:"timings"`
	CreatedAt   time.Time                `json:"created_at"`
}

// NewRound projects a council result into its durable form. Slices are
// copied so later mutation of the result cannot reach the stored round.
func NewRound(res *council.Result) Round {
	r := Round{
		ID:        uuid.New().String(),
		Question:  res.Question,
		Timings:   res.Timings,
		CreatedAt: time.Now().UTC(),
	}
	if len(res.Answers) > 0 {
		r.Answers = make([]council.StageOneResult, len(res.Answers))
		copy(r.Answers, res.Answers)
	}
	if len(res.Evaluations) > 0 {
		r.Evaluations = make([]council.Evaluation, len(res.Evaluations))
		copy(r.Evaluations, res.Evaluations)
	}
	if len(res.Failures) > 0 {
		r.Failures = make([]council.ModelFailure, len(res.Failures))
		copy(r.Failures, res.Failures)
	}
	if res.Synthesis != nil {
		synth := *res.Synthesis
		r.Synthesis = &synth
	}
	return r
}

// LabelMapping rebuilds the anonymization mapping the live round used.
// Labels depend only on the Stage-1 answer order, which is stored, so the
// rebuilt mapping equals the original.
func (r *Round) LabelMapping() (*council.LabelMapping, error) {
	return council.AssignLabels(r.Answers)
}

// AggregateRanking recomputes the aggregated peer ranking from the stored
// evaluations.
func (r *Round) AggregateRanking() ([]council.AggregateEntry, error) {
	mapping, err := r.LabelMapping()
	if err != nil {
		return nil, err
	}
	return council.Aggregate(mapping, r.Evaluations), nil
}

// FinalAnswer returns the chairman's answer, or "" when the round never
// reached synthesis.
func (r *Round) FinalAnswer() string {
	if r.Synthesis == nil {
		return ""
	}
	return r.Synthesis.Answer
}

// Conversation is one persistent dialog: metadata plus the ordered rounds.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Rounds    []Round   `json:"rounds"`
}

// Summary is the listing view of a conversation: metadata without rounds.
type Summary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	RoundCount int       `json:"round_count"`
}

// Summarize returns the conversation's listing view.
func (c *Conversation) Summarize() Summary {
	return Summary{
		ID:         c.ID,
		Title:      c.Title,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
		RoundCount: len(c.Rounds),
	}
}

// History flattens the rounds into chat messages for the next round's
// Stage-1 calls: one user question per round plus, when the round reached
// synthesis, the chairman's answer as the assistant turn.
func (c *Conversation) History() []types.Message {
	msgs := make([]types.Message, 0, 2*len(c.Rounds))
	for i := range c.Rounds {
		rd := &c.Rounds[i]
		msgs = append(msgs, types.NewUserMessage(rd.Question))
		if rd.Synthesis != nil {
			msgs = append(msgs, types.NewAssistantMessage(rd.Synthesis.Answer))
		}
	}
	return msgs
}

// Clone returns a copy whose Rounds slice is independent of the receiver.
// Rounds themselves are immutable, so a per-round value copy is enough.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	if c.Rounds != nil {
		out.Rounds = make([]Round, len(c.Rounds))
		copy(out.Rounds, c.Rounds)
	}
	return &out
}
