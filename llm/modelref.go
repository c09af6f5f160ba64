package llm

import (
	"fmt"
	"strings"
)

// ModelRef is the parsed form of a "provider/model" identifier.
// Configuration parses every identifier exactly once; the rest of the
// system passes ModelRef values around instead of re-splitting strings.
type ModelRef struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ParseModelRef splits a model identifier into provider and model parts.
// Both "provider/model" and "provider:model" are accepted; the model part
// may itself contain the separator (gemini model paths do).
func ParseModelRef(id string) (ModelRef, error) {
	sep := strings.IndexAny(id, "/:")
	if sep <= 0 || sep == len(id)-1 {
		return ModelRef{}, fmt.Errorf("model identifier %q is not of the form provider/model", id)
	}
	ref := ModelRef{
		Provider: strings.ToLower(strings.TrimSpace(id[:sep])),
		Model:    strings.TrimSpace(id[sep+1:]),
	}
	if ref.Provider == "" || ref.Model == "" {
		return ModelRef{}, fmt.Errorf("model identifier %q has an empty provider or model part", id)
	}
	return ref, nil
}

// String renders the canonical "provider/model" form.
func (r ModelRef) String() string {
	return r.Provider + "/" + r.Model
}
