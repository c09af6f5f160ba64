package council

import (
	"context"
	"errors"

	"github.com/BaSui01/councilflow/llm"
)

// Fatal round errors. Everything else is per-model and non-fatal.
var (
	// ErrAllModelsFailed aborts a round when every Stage-1 call failed.
	ErrAllModelsFailed = errors.New("all council models failed")

	// ErrLabelsExhausted aborts a round with more successful answers than
	// the label alphabet can name.
	ErrLabelsExhausted = errors.New("label alphabet exhausted")

	// ErrChairmanFailed aborts a round whose chairman call failed. Stage-1
	// and Stage-2 data is still returned alongside it.
	ErrChairmanFailed = errors.New("chairman synthesis failed")

	// ErrNoModels rejects an engine configured with an empty council.
	ErrNoModels = errors.New("council has no models")

	// ErrNoChairman rejects an engine configured without a chairman.
	ErrNoChairman = errors.New("council has no chairman")
)

// FailureKind classifies one model's failure for observability. The round
// treats all kinds identically; they are recorded, never acted on.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureAuth        FailureKind = "auth_failure"
	FailureRateLimited FailureKind = "rate_limited"
	FailureMalformed   FailureKind = "malformed"
	FailureUnknown     FailureKind = "unknown"
)

// ModelFailure records one model's failure within a round.
type ModelFailure struct {
	Model string      `json:"model"`
	Stage State       `json:"stage"`
	Kind  FailureKind `json:"kind"`
	Cause string      `json:"cause,omitempty"`
}

func newModelFailure(model string, stage State, err error) ModelFailure {
	f := ModelFailure{Model: model, Stage: stage, Kind: ClassifyFailure(err)}
	if err != nil {
		f.Cause = err.Error()
	}
	return f
}

// ClassifyFailure maps a provider error onto the failure taxonomy.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}
	var lerr *llm.Error
	if errors.As(err, &lerr) {
		switch lerr.Code {
		case llm.ErrUpstreamTimeout:
			return FailureTimeout
		case llm.ErrUnauthorized, llm.ErrForbidden:
			return FailureAuth
		case llm.ErrRateLimited, llm.ErrQuotaExceeded:
			return FailureRateLimited
		case llm.ErrInvalidRequest, llm.ErrMalformedResponse, llm.ErrEmptyCompletion:
			return FailureMalformed
		}
		return FailureUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	return FailureUnknown
}
