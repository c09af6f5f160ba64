package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/councilflow/types"
)

// stubProvider is a minimal in-package Provider for registry and gateway tests.
type stubProvider struct {
	name     string
	reply    string
	err      error
	healthy  bool
	calls    atomic.Int32
	lastReq  *ChatRequest
	respFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

func (s *stubProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	s.calls.Add(1)
	s.lastReq = req
	if s.respFunc != nil {
		return s.respFunc(ctx, req)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &ChatResponse{
		Provider: s.name,
		Model:    req.Model,
		Choices: []ChatChoice{
			{Message: types.Message{Role: types.RoleAssistant, Content: s.reply}},
		},
	}, nil
}

func (s *stubProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk)
	close(ch)
	return ch, nil
}

func (s *stubProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: s.healthy}, nil
}

func (s *stubProvider) Name() string { return s.name }

func TestProviderRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	r := NewProviderRegistry()
	p := &stubProvider{name: "openai"}

	r.Register("openai", p)

	got, ok := r.Get("openai")
	require.True(t, ok)
	assert.Same(t, p, got.(*stubProvider))

	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestProviderRegistry_DefaultLifecycle(t *testing.T) {
	t.Parallel()

	r := NewProviderRegistry()

	_, err := r.Default()
	assert.Error(t, err, "no default set yet")

	assert.Error(t, r.SetDefault("nope"), "cannot default an unregistered provider")

	r.Register("anthropic", &stubProvider{name: "anthropic"})
	require.NoError(t, r.SetDefault("anthropic"))

	p, err := r.Default()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	r.Unregister("anthropic")
	_, err = r.Default()
	assert.Error(t, err, "unregistering the default clears it")
}

func TestProviderRegistry_List(t *testing.T) {
	t.Parallel()

	r := NewProviderRegistry()
	r.Register("gemini", &stubProvider{name: "gemini"})
	r.Register("anthropic", &stubProvider{name: "anthropic"})
	r.Register("openai", &stubProvider{name: "openai"})

	assert.Equal(t, []string{"anthropic", "gemini", "openai"}, r.List())
}

func TestProviderRegistry_GetOrCreate_BuildsOnce(t *testing.T) {
	t.Parallel()

	r := NewProviderRegistry()
	var builds atomic.Int32
	build := func(name string) (Provider, error) {
		builds.Add(1)
		return &stubProvider{name: name}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := r.GetOrCreate("grok", build)
			assert.NoError(t, err)
			assert.Equal(t, "grok", p.Name())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load(), "concurrent callers share one build")
	assert.Equal(t, 1, r.Len())
}

func TestProviderRegistry_GetOrCreate_BuildError(t *testing.T) {
	t.Parallel()

	r := NewProviderRegistry()
	buildErr := errors.New("no api key")
	_, err := r.GetOrCreate("openai", func(string) (Provider, error) {
		return nil, buildErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, buildErr)
	assert.Equal(t, 0, r.Len(), "failed builds are not cached")
}

func TestProviderRegistry_GetOrCreate_PrefersRegistered(t *testing.T) {
	t.Parallel()

	r := NewProviderRegistry()
	p := &stubProvider{name: "openai"}
	r.Register("openai", p)

	got, err := r.GetOrCreate("openai", func(string) (Provider, error) {
		t.Fatal("builder must not run for a registered provider")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Same(t, p, got.(*stubProvider))
}
