package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/types"
)

const (
	// DefaultTitleModel is a cheap, fast model; titling never needs the
	// full council.
	DefaultTitleModel = "openai/gpt-4o-mini"

	defaultTitleTimeout = 30 * time.Second
	maxTitleRunes       = 80
	fallbackTitleRunes  = 48
)

const titlePromptText = `Generate a short title (3-7 words) summarizing the question below.
Reply with the title only: no quotes, no trailing punctuation.

Question:
%s`

// Titler produces conversation titles from the first question of a dialog.
// Titling is best effort: every failure falls back to truncating the
// question, so it can never fail or block a round.
type Titler struct {
	querier llm.Querier
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewTitler builds a titler that asks model for titles through querier.
// A nil logger disables logging.
func NewTitler(querier llm.Querier, model string, logger *zap.Logger) *Titler {
	if model == "" {
		model = DefaultTitleModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Titler{
		querier: querier,
		model:   model,
		timeout: defaultTitleTimeout,
		logger:  logger,
	}
}

// Title returns a short human title for the question.
func (t *Titler) Title(ctx context.Context, question string) string {
	if t == nil || t.querier == nil {
		return FallbackTitle(question)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	msgs := []types.Message{
		types.NewUserMessage(fmt.Sprintf(titlePromptText, question)),
	}
	raw, err := t.querier.Query(ctx, t.model, msgs)
	if err != nil {
		t.logger.Debug("title generation failed, falling back to truncation",
			zap.String("model", t.model),
			zap.Error(err))
		return FallbackTitle(question)
	}

	title := sanitizeTitle(raw)
	if title == "" {
		return FallbackTitle(question)
	}
	return title
}

// sanitizeTitle reduces a model reply to a single clean line.
func sanitizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	title = strings.Trim(title, `"'`)
	title = strings.TrimSpace(title)

	runes := []rune(title)
	if len(runes) > maxTitleRunes {
		title = strings.TrimSpace(string(runes[:maxTitleRunes]))
	}
	return title
}

// FallbackTitle derives a title by truncating the question's first line.
func FallbackTitle(question string) string {
	line := strings.TrimSpace(question)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return "New conversation"
	}

	runes := []rune(line)
	if len(runes) <= fallbackTitleRunes {
		return line
	}
	return strings.TrimSpace(string(runes[:fallbackTitleRunes])) + "..."
}
