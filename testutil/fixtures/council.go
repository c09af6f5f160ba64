// Package fixtures provides canned deliberation data for council tests
// and examples.
package fixtures

import (
	"fmt"
	"strings"
)

// Question returns a deliberation question with a defensible best answer.
func Question() string {
	return "Should a new service expose gRPC or REST first?"
}

// Answers returns stage-one answers keyed by model, in a three-member shape.
func Answers() map[string]string {
	return map[string]string{
		"openai/gpt-5.2":                "Start with REST. Every client toolchain speaks it and debugging is curl-grade.",
		"anthropic/claude-sonnet-4-5":   "Expose gRPC first and generate a REST gateway from the proto definitions.",
		"google/gemini-3-flash-preview": "Pick based on the first consumer. Internal callers favor gRPC, public ones REST.",
	}
}

// ReviewWithRanking builds a review that ends in a parseable ranking block.
// Labels are listed best-first.
func ReviewWithRanking(commentary string, labels ...string) string {
	var b strings.Builder
	if commentary != "" {
		b.WriteString(commentary)
		b.WriteString("\n\n")
	}
	b.WriteString("FINAL RANKING:")
	for i, label := range labels {
		fmt.Fprintf(&b, "\n%d. Response %s", i+1, label)
	}
	return b.String()
}

// RankingOnly builds a bare ranking block with no commentary.
func RankingOnly(labels ...string) string {
	return ReviewWithRanking("", labels...)
}

// Synthesis returns a chairman answer consistent with Answers.
func Synthesis() string {
	return "Expose REST first for reach, and add a gRPC surface once an internal consumer needs streaming or strict contracts."
}
