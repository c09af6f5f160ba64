package council

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// rankingMarkerRe finds the ranking section marker; when an evaluator
	// repeats it (quoting the instructions, then complying), the last
	// occurrence wins.
	rankingMarkerRe = regexp.MustCompile(`(?i)FINAL\s+RANKING\s*:`)

	// strictLineRe matches numbered ranking lines after the marker:
	// "1. Response A" or "2. B", tolerating bold markers and stray
	// whitespace. The label is a single letter.
	strictLineRe = regexp.MustCompile(`(?m)^\s*\*{0,2}\s*(\d+)[.)]\s*\*{0,2}\s*(?:[Rr]esponse\s+)?([A-Za-z])\b`)

	// mentionRe matches prose mentions like "Response B" for the fallback
	// scan over the whole text.
	mentionRe = regexp.MustCompile(`(?i)\bresponse\s+([A-Za-z])\b`)
)

// ParseRanking extracts an ordered ranking of labels from one evaluator's
// raw text. Two phases, explicitly ordered:
//
//  1. Strict: take the text after the last ranking marker and read its
//     numbered lines in increasing list-number order.
//  2. Fallback: when the strict phase yields nothing, scan the entire text
//     for "Response X" mentions in order of first appearance.
//
// Either way the candidates are de-duplicated keeping the first occurrence
// and filtered to the round's valid labels. A nil result means this
// evaluator contributes no ranking, which is an expected outcome, not an
// error; malformed output from one evaluator never aborts a round.
func ParseRanking(text string, valid []Label) []Label {
	candidates := parseStrict(text)
	if len(candidates) == 0 {
		candidates = parseMentions(text)
	}
	return dedupeAndFilter(candidates, valid)
}

func parseStrict(text string) []Label {
	locs := rankingMarkerRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	tail := text[locs[len(locs)-1][1]:]

	type numbered struct {
		n     int
		label Label
	}
	matches := strictLineRe.FindAllStringSubmatch(tail, -1)
	lines := make([]numbered, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		lines = append(lines, numbered{n: n, label: Label(strings.ToUpper(m[2]))})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].n < lines[j].n })

	out := make([]Label, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.label)
	}
	return out
}

func parseMentions(text string) []Label {
	matches := mentionRe.FindAllStringSubmatch(text, -1)
	out := make([]Label, 0, len(matches))
	for _, m := range matches {
		out = append(out, Label(strings.ToUpper(m[1])))
	}
	return out
}

func dedupeAndFilter(candidates []Label, valid []Label) []Label {
	if len(candidates) == 0 {
		return nil
	}
	validSet := make(map[Label]struct{}, len(valid))
	for _, lb := range valid {
		validSet[lb] = struct{}{}
	}
	seen := make(map[Label]struct{}, len(candidates))
	var out []Label
	for _, lb := range candidates {
		if _, dup := seen[lb]; dup {
			continue
		}
		seen[lb] = struct{}{}
		if _, ok := validSet[lb]; !ok {
			continue
		}
		out = append(out, lb)
	}
	return out
}
