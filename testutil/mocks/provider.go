// Package mocks provides scripted test doubles for the provider and querier
// contracts.
//
// Provider stands in for a vendor adapter behind the registry; Querier stands
// in for the whole gateway in front of the council engine. Both are scripted
// per model, record their calls, and are safe for concurrent use.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/types"
)

// Call records one request made against a mock.
type Call struct {
	Model    string
	Messages []types.Message
}

// Provider is a scripted llm.Provider.
type Provider struct {
	mu sync.Mutex

	name      string
	fallback  string
	responses map[string]string
	errs      map[string]error
	err       error
	delay     time.Duration

	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	calls []Call
}

// NewProvider creates a Provider named "mock" that answers "mock response"
// for every model until scripted otherwise.
func NewProvider() *Provider {
	return &Provider{
		name:      "mock",
		fallback:  "mock response",
		responses: make(map[string]string),
		errs:      make(map[string]error),
	}
}

// WithName overrides the provider name.
func (p *Provider) WithName(name string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
	return p
}

// WithResponse sets the answer returned for models without a scripted one.
func (p *Provider) WithResponse(text string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = text
	return p
}

// WithModelResponse scripts the answer for one model.
func (p *Provider) WithModelResponse(model, text string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[model] = text
	return p
}

// WithError makes every call fail with err.
func (p *Provider) WithError(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	return p
}

// WithModelError makes calls for one model fail with err.
func (p *Provider) WithModelError(model string, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[model] = err
	return p
}

// WithDelay makes every call sleep before answering, honoring ctx.
func (p *Provider) WithDelay(d time.Duration) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
	return p
}

// WithCompletionFunc replaces the scripted behavior entirely.
func (p *Provider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completionFunc = fn
	return p
}

// Name implements llm.Provider.
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// Completion implements llm.Provider.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Model: req.Model, Messages: append([]types.Message(nil), req.Messages...)})
	delay := p.delay
	fn := p.completionFunc
	err := p.err
	if merr, ok := p.errs[req.Model]; ok {
		err = merr
	}
	text, ok := p.responses[req.Model]
	if !ok {
		text = p.fallback
	}
	name := p.name
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	return &llm.ChatResponse{
		ID:       "mock-response",
		Provider: name,
		Model:    req.Model,
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      types.Message{Role: types.RoleAssistant, Content: text},
		}},
		Usage:     llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		CreatedAt: time.Now(),
	}, nil
}

// Stream implements llm.Provider by sending the scripted answer as one chunk.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	resp, err := p.Completion(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.StreamChunk, 1)
	ch <- llm.StreamChunk{
		ID:           resp.ID,
		Provider:     resp.Provider,
		Model:        resp.Model,
		Delta:        types.Message{Role: types.RoleAssistant, Content: resp.FirstText()},
		FinishReason: "stop",
	}
	close(ch)
	return ch, nil
}

// HealthCheck implements llm.Provider and always reports healthy.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Calls returns a copy of all recorded calls.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CallCount returns the number of recorded calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// Reset clears recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// Querier is a scripted llm.Querier for driving the council engine without
// providers. Each model holds a sequence of replies; every query it receives
// consumes the next entry, and the last entry repeats once the sequence runs
// out. A deliberation round queries each member twice, so a member needs its
// stage-one answer scripted first and its review second.
type Querier struct {
	mu sync.Mutex

	scripts  map[string][]queryStep
	perModel map[string]int
	fallback string
	delay    time.Duration

	queryFunc func(ctx context.Context, model string, msgs []types.Message) (string, error)

	calls []Call
}

type queryStep struct {
	text string
	err  error
}

// NewQuerier creates a Querier answering "mock answer" for every model until
// scripted otherwise.
func NewQuerier() *Querier {
	return &Querier{
		scripts:  make(map[string][]queryStep),
		perModel: make(map[string]int),
		fallback: "mock answer",
	}
}

// Answer appends a scripted reply to the model's sequence.
func (q *Querier) Answer(model, text string) *Querier {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scripts[model] = append(q.scripts[model], queryStep{text: text})
	return q
}

// Fail appends a failing step to the model's sequence.
func (q *Querier) Fail(model string, err error) *Querier {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scripts[model] = append(q.scripts[model], queryStep{err: err})
	return q
}

// WithFallback sets the reply for models with no scripted sequence.
func (q *Querier) WithFallback(text string) *Querier {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fallback = text
	return q
}

// WithDelay makes every call sleep before answering, honoring ctx.
func (q *Querier) WithDelay(d time.Duration) *Querier {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delay = d
	return q
}

// WithQueryFunc replaces the scripted behavior entirely.
func (q *Querier) WithQueryFunc(fn func(ctx context.Context, model string, msgs []types.Message) (string, error)) *Querier {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queryFunc = fn
	return q
}

// Query implements llm.Querier.
func (q *Querier) Query(ctx context.Context, model string, msgs []types.Message) (string, error) {
	q.mu.Lock()
	q.calls = append(q.calls, Call{Model: model, Messages: append([]types.Message(nil), msgs...)})
	idx := q.perModel[model]
	q.perModel[model]++
	delay := q.delay
	fn := q.queryFunc

	var st queryStep
	if steps := q.scripts[model]; len(steps) > 0 {
		if idx >= len(steps) {
			idx = len(steps) - 1
		}
		st = steps[idx]
	} else {
		st = queryStep{text: q.fallback}
	}
	q.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	if fn != nil {
		return fn(ctx, model, msgs)
	}
	return st.text, st.err
}

// Calls returns a copy of all recorded calls.
func (q *Querier) Calls() []Call {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Call(nil), q.calls...)
}

// CallsFor returns the recorded calls for one model.
func (q *Querier) CallsFor(model string) []Call {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Call
	for _, c := range q.calls {
		if c.Model == model {
			out = append(out, c)
		}
	}
	return out
}

// CallCount returns the number of recorded calls.
func (q *Querier) CallCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

// Reset clears recorded calls and rewinds every sequence.
func (q *Querier) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = nil
	q.perModel = make(map[string]int)
}
