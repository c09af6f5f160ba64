package council

import (
	"fmt"
	"sort"
)

const labelAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// MaxCouncilSize is the largest number of successful answers one round can
// anonymize; it is bounded by the label alphabet.
const MaxCouncilSize = len(labelAlphabet)

// LabelMapping is the bijection between labels and model identifiers for one
// round. It exists only in memory for the duration of the round; a past
// round's mapping is rebuilt by running [AssignLabels] over the stored
// Stage-1 order.
type LabelMapping struct {
	labelToModel map[Label]string
	modelToLabel map[string]Label
	labels       []Label
}

// AssignLabels labels successful Stage-1 results "A", "B", ... in the order
// given, which is the canonical council order. Identical ordered input
// always yields the identical mapping. More results than the alphabet holds
// is a round-fatal error, never a silent truncation.
func AssignLabels(results []StageOneResult) (*LabelMapping, error) {
	if len(results) > MaxCouncilSize {
		return nil, fmt.Errorf("%w: %d answers, %d labels", ErrLabelsExhausted, len(results), MaxCouncilSize)
	}
	m := &LabelMapping{
		labelToModel: make(map[Label]string, len(results)),
		modelToLabel: make(map[string]Label, len(results)),
		labels:       make([]Label, 0, len(results)),
	}
	for i, r := range results {
		lb := Label(labelAlphabet[i : i+1])
		if _, dup := m.modelToLabel[r.Model]; dup {
			return nil, fmt.Errorf("duplicate model %q in stage-one results", r.Model)
		}
		m.labelToModel[lb] = r.Model
		m.modelToLabel[r.Model] = lb
		m.labels = append(m.labels, lb)
	}
	return m, nil
}

// newLabelMapping rebuilds a mapping from its label -> model object form,
// enforcing the bijection.
func newLabelMapping(raw map[Label]string) (*LabelMapping, error) {
	m := &LabelMapping{
		labelToModel: make(map[Label]string, len(raw)),
		modelToLabel: make(map[string]Label, len(raw)),
		labels:       make([]Label, 0, len(raw)),
	}
	for lb, model := range raw {
		if prev, dup := m.modelToLabel[model]; dup {
			return nil, fmt.Errorf("model %q carries labels %s and %s", model, prev, lb)
		}
		m.labelToModel[lb] = model
		m.modelToLabel[model] = lb
		m.labels = append(m.labels, lb)
	}
	sort.Slice(m.labels, func(i, j int) bool { return m.labels[i] < m.labels[j] })
	return m, nil
}

// LabelFor returns the label assigned to model.
func (m *LabelMapping) LabelFor(model string) (Label, bool) {
	lb, ok := m.modelToLabel[model]
	return lb, ok
}

// ModelFor returns the model behind label.
func (m *LabelMapping) ModelFor(label Label) (string, bool) {
	model, ok := m.labelToModel[label]
	return model, ok
}

// Labels returns the round's labels in assignment order ("A" first).
func (m *LabelMapping) Labels() []Label {
	out := make([]Label, len(m.labels))
	copy(out, m.labels)
	return out
}

// Models returns the labeled models in label order.
func (m *LabelMapping) Models() []string {
	out := make([]string, 0, len(m.labels))
	for _, lb := range m.labels {
		out = append(out, m.labelToModel[lb])
	}
	return out
}

// Len returns the number of labeled models.
func (m *LabelMapping) Len() int {
	return len(m.labels)
}
