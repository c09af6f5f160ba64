package council

import (
	"fmt"
	"strings"
	"text/template"
)

const evaluationPromptText = `You are reviewing answers to the following question. The answers are anonymized; you do not know which model wrote which answer.

Question: {{.Question}}

{{range .Answers}}Response {{.Label}}:
{{.Text}}

{{end}}Evaluate each response for accuracy, completeness, and clarity. Discuss concrete strengths and weaknesses; be specific and critical.

End your reply with a section that starts with the exact line "FINAL RANKING:" followed by a numbered list of the responses from best to worst, one per line, for example:

FINAL RANKING:
1. Response X
2. Response Y

Do not write anything after the ranking.`

const synthesisPromptText = `You are the chairman of a council of AI models. Each member answered the user's question independently, then anonymously reviewed the full set of answers. Your job is to produce the single final answer.

Question: {{.Question}}

Council answers:
{{range .Answers}}--- {{.Model}} ---
{{.Answer}}

{{end}}Peer reviews:
{{range .Evaluations}}--- Review by {{.Model}} ---
{{.RawText}}
{{if .RankedModels}}Parsed ranking: {{join .RankedModels ", "}}
{{end}}
{{end}}{{if .Aggregate}}Aggregate peer ranking (best to worst):
{{range .Aggregate}}- {{.Model}}{{if .VoteCount}} (average position {{printf "%.2f" .AveragePosition}}, {{.VoteCount}} votes){{else}} (unranked){{end}}
{{end}}
{{end}}Synthesize the strongest elements of the council's work into one final answer. Where members disagree, resolve the disagreement with your own judgment. Respond with the final answer only.`

var (
	evaluationTmpl = template.Must(template.New("evaluation").Parse(evaluationPromptText))
	synthesisTmpl  = template.Must(template.New("synthesis").Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(synthesisPromptText))
)

type labeledAnswer struct {
	Label Label
	Text  string
}

type evaluationPromptData struct {
	Question string
	Answers  []labeledAnswer
}

// BuildEvaluationPrompt renders the Stage-2 peer-review prompt: every
// successful answer appears under its label only, never under its model
// identity. The same prompt goes to every evaluator, so each reviews its own
// answer without knowing which one it is.
func BuildEvaluationPrompt(question string, mapping *LabelMapping, results []StageOneResult) (string, error) {
	answers := make([]labeledAnswer, 0, len(results))
	for _, r := range results {
		lb, ok := mapping.LabelFor(r.Model)
		if !ok {
			return "", fmt.Errorf("no label for model %q", r.Model)
		}
		answers = append(answers, labeledAnswer{Label: lb, Text: r.Answer})
	}
	var sb strings.Builder
	if err := evaluationTmpl.Execute(&sb, evaluationPromptData{Question: question, Answers: answers}); err != nil {
		return "", fmt.Errorf("render evaluation prompt: %w", err)
	}
	return sb.String(), nil
}

type reviewSection struct {
	Model        string
	RawText      string
	RankedModels []string
}

type synthesisPromptData struct {
	Question    string
	Answers     []StageOneResult
	Evaluations []reviewSection
	Aggregate   []AggregateEntry
}

// BuildSynthesisPrompt renders the Stage-3 chairman prompt from
// de-anonymized material: answers under their real model identifiers, each
// review with its ranking translated from labels back to model names, and
// the aggregate peer ranking.
func BuildSynthesisPrompt(question string, results []StageOneResult, evals []Evaluation, aggregate []AggregateEntry, mapping *LabelMapping) (string, error) {
	sections := make([]reviewSection, 0, len(evals))
	for _, ev := range evals {
		sec := reviewSection{Model: ev.Model, RawText: ev.RawText}
		for _, lb := range ev.Ranking {
			if model, ok := mapping.ModelFor(lb); ok {
				sec.RankedModels = append(sec.RankedModels, model)
			}
		}
		sections = append(sections, sec)
	}
	var sb strings.Builder
	err := synthesisTmpl.Execute(&sb, synthesisPromptData{
		Question:    question,
		Answers:     results,
		Evaluations: sections,
		Aggregate:   aggregate,
	})
	if err != nil {
		return "", fmt.Errorf("render synthesis prompt: %w", err)
	}
	return sb.String(), nil
}
